package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blatik/shortlink/internal/model"
	"github.com/blatik/shortlink/internal/service"
)

// Edge-provided geo headers consumed on the redirect path
const (
	countryHeader = "CF-IPCountry"
	cityHeader    = "CF-IPCity"
)

// Links is the slice of the link service the handlers use
type Links interface {
	CreateLink(ctx context.Context, originalURL, customAlias, ownerID string) (*model.Link, error)
	ResolveAndRecord(ctx context.Context, shortCode string, click service.ClickContext) (string, error)
	ListLinks(ctx context.Context, ownerID string) ([]model.Link, error)
}

// Analytics summarizes click history per short code
type Analytics interface {
	Summarize(ctx context.Context, shortCode string) (*model.AnalyticsSummary, error)
}

// OwnerResolver resolves the owner identity of a request once, at the
// boundary; the resolved id is threaded explicitly into the service layer.
type OwnerResolver interface {
	ResolveOwner(req *http.Request) (string, bool)
}

// URLHandler handles HTTP requests for link operations
type URLHandler struct {
	links       Links
	analytics   Analytics
	owners      OwnerResolver
	baseURL     string
	frontendURL string
}

// NewURLHandler creates a new URL handler instance
func NewURLHandler(links Links, analytics Analytics, owners OwnerResolver, baseURL, frontendURL string) *URLHandler {
	return &URLHandler{
		links:       links,
		analytics:   analytics,
		owners:      owners,
		baseURL:     baseURL,
		frontendURL: frontendURL,
	}
}

// ShortenRequest represents the request body for creating a short link
type ShortenRequest struct {
	URL         string `json:"url" binding:"required"`
	CustomAlias string `json:"custom_alias,omitempty"`
}

// ShortenResponse represents the response for a created short link
type ShortenResponse struct {
	ShortURL    string `json:"short_url"`
	ShortCode   string `json:"short_code"`
	OriginalURL string `json:"original_url"`
}

// Shorten handles POST /api/shorten
func (h *URLHandler) Shorten(c *gin.Context) {
	var req ShortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ownerID, ok := h.owners.ResolveOwner(c.Request)
	if !ok {
		ownerID = model.AnonymousOwner
	}

	link, err := h.links.CreateLink(c.Request.Context(), req.URL, req.CustomAlias, ownerID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ShortenResponse{
		ShortURL:    fmt.Sprintf("%s/%s", h.baseURL, link.ShortCode),
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
	})
}

// Redirect handles GET /:code
func (h *URLHandler) Redirect(c *gin.Context) {
	shortCode := c.Param("code")

	click := service.ClickContext{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
		Country:   c.GetHeader(countryHeader),
		City:      c.GetHeader(cityHeader),
	}

	target, err := h.links.ResolveAndRecord(c.Request.Context(), shortCode, click)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.Redirect(http.StatusFound, target)
}

// ListURLs handles GET /api/urls
func (h *URLHandler) ListURLs(c *gin.Context) {
	ownerID, ok := h.owners.ResolveOwner(c.Request)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrMissingOwner.Error()})
		return
	}

	links, err := h.links.ListLinks(c.Request.Context(), ownerID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, links)
}

// AnalyticsSummary handles GET /api/analytics/:code
func (h *URLHandler) AnalyticsSummary(c *gin.Context) {
	shortCode := c.Param("code")

	summary, err := h.analytics.Summarize(c.Request.Context(), shortCode)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Home handles GET /, redirecting to the dashboard frontend when configured
func (h *URLHandler) Home(c *gin.Context) {
	if h.frontendURL != "" {
		c.Redirect(http.StatusFound, h.frontendURL)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HealthCheck handles GET /health
func (h *URLHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusForError maps service error kinds to HTTP statuses. Not-found and
// expired codes get distinct statuses (404 vs 410) on purpose.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrInvalidAlias),
		errors.Is(err, service.ErrMissingOwner):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAliasTaken):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrLinkExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
