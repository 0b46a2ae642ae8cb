package service

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/blatik/shortlink/internal/filter"
	"github.com/blatik/shortlink/internal/model"
	"github.com/blatik/shortlink/internal/useragent"
	"github.com/blatik/shortlink/internal/utils"
)

// maxListLinks caps per-owner listings
const maxListLinks = 50

// Sentinels recorded when a click field cannot be derived
const (
	unknownPlace   = "Unknown"
	directReferrer = "Direct"
)

// LinkStore is the point-lookup store holding the authoritative short code ->
// link mapping. PutLinkIfAbsent must be a conditional create so concurrent
// claims on the same code resolve to exactly one winner.
type LinkStore interface {
	GetLink(ctx context.Context, shortCode string) (*model.Link, error)
	PutLinkIfAbsent(ctx context.Context, link *model.Link) (bool, error)
	Exists(ctx context.Context, shortCode string) (bool, error)
}

// LinkCatalog is the relational mirror used for listings and click history
type LinkCatalog interface {
	InsertLink(ctx context.Context, link *model.Link) error
	InsertClick(ctx context.Context, click *model.Click) error
	IncrementClicks(ctx context.Context, shortCode string) error
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]model.Link, error)
}

// GeoResolver supplies a country for an IP when edge geo headers are absent
type GeoResolver interface {
	CountryForIP(ctx context.Context, ip string) string
}

// ClickContext carries the raw request attributes a redirect derives its
// click record from. IP is hashed before persisting and never stored raw.
type ClickContext struct {
	IP        string
	UserAgent string
	Referrer  string
	Country   string // edge-provided, e.g. CF-IPCountry
	City      string // edge-provided, e.g. CF-IPCity
}

// LinkService orchestrates link creation, redirect resolution, and the
// best-effort click recording pipeline.
type LinkService struct {
	store    LinkStore
	catalog  LinkCatalog
	codes    *filter.CodeFilter
	geo      GeoResolver
	hashSalt string
}

// NewLinkService creates a new link service instance
func NewLinkService(store LinkStore, catalog LinkCatalog, codes *filter.CodeFilter, geo GeoResolver, hashSalt string) *LinkService {
	return &LinkService{
		store:    store,
		catalog:  catalog,
		codes:    codes,
		geo:      geo,
		hashSalt: hashSalt,
	}
}

// CreateLink validates the URL, claims a short code (the custom alias or a
// generated one), writes the link to the store, and mirrors it into the
// catalog. A catalog failure is surfaced as ErrStorage even though the store
// write stands; the caller should know the dashboard row is missing.
func (s *LinkService) CreateLink(ctx context.Context, originalURL, customAlias, ownerID string) (*model.Link, error) {
	if err := validateURL(originalURL); err != nil {
		return nil, err
	}
	if ownerID == "" {
		ownerID = model.AnonymousOwner
	}

	var link *model.Link
	if customAlias != "" {
		claimed, err := s.claimAlias(ctx, customAlias, originalURL, ownerID)
		if err != nil {
			return nil, err
		}
		link = claimed
	} else {
		claimed, err := s.claimGeneratedCode(ctx, originalURL, ownerID)
		if err != nil {
			return nil, err
		}
		link = claimed
	}

	s.codes.Add(link.ShortCode)

	if err := s.catalog.InsertLink(ctx, link); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	return link, nil
}

// claimAlias validates and claims a caller-chosen short code. Alias conflicts
// are hard user-facing errors, unlike generated-code collisions which are
// silently retried.
func (s *LinkService) claimAlias(ctx context.Context, alias, originalURL, ownerID string) (*model.Link, error) {
	if !utils.ValidateAlias(alias) {
		return nil, ErrInvalidAlias
	}

	exists, err := s.store.Exists(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if exists {
		return nil, ErrAliasTaken
	}

	link := newLink(alias, originalURL, ownerID)
	created, err := s.store.PutLinkIfAbsent(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !created {
		// Lost the race to a concurrent claim on the same alias.
		return nil, ErrAliasTaken
	}
	return link, nil
}

// claimGeneratedCode draws random codes until one is claimed. Codes stay 4
// characters for the first attempts and widen to 5 after repeated collisions,
// so the loop needs no cap.
func (s *LinkService) claimGeneratedCode(ctx context.Context, originalURL, ownerID string) (*model.Link, error) {
	for attempt := 0; ; attempt++ {
		code, err := utils.GenerateCode(utils.CodeLengthForAttempt(attempt))
		if err != nil {
			return nil, err
		}

		exists, err := s.store.Exists(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		if exists {
			continue
		}

		link := newLink(code, originalURL, ownerID)
		created, err := s.store.PutLinkIfAbsent(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		if created {
			return link, nil
		}
		// Another writer claimed the code between the existence check and
		// the write; draw again.
	}
}

// ResolveAndRecord resolves a short code to its redirect target and kicks off
// best-effort click recording. Recording never blocks or fails the redirect.
func (s *LinkService) ResolveAndRecord(ctx context.Context, shortCode string, click ClickContext) (string, error) {
	if !s.codes.MightContain(shortCode) {
		return "", ErrNotFound
	}

	link, err := s.store.GetLink(ctx, shortCode)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if link == nil {
		return "", ErrNotFound
	}
	if link.IsExpired() {
		return "", ErrLinkExpired
	}

	// Fire and forget: the redirect is returned without waiting for the
	// catalog writes, and any failure is logged and dropped.
	go s.recordClick(shortCode, click)

	return link.OriginalURL, nil
}

// ListLinks returns up to 50 links owned by ownerID, newest first
func (s *LinkService) ListLinks(ctx context.Context, ownerID string) ([]model.Link, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	links, err := s.catalog.ListByOwner(ctx, ownerID, maxListLinks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return links, nil
}

// recordClick derives the analytics fields and appends the click to the
// catalog. Runs detached from the request; uses its own timeout so a slow
// geo lookup or catalog cannot hold the goroutine forever.
func (s *LinkService) recordClick(shortCode string, cc ClickContext) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	click := s.buildClick(ctx, shortCode, cc)

	if err := s.catalog.InsertClick(ctx, click); err != nil {
		log.Printf("failed to record click for %s: %v", shortCode, err)
	}
	if err := s.catalog.IncrementClicks(ctx, shortCode); err != nil {
		log.Printf("failed to increment click count for %s: %v", shortCode, err)
	}
}

func (s *LinkService) buildClick(ctx context.Context, shortCode string, cc ClickContext) *model.Click {
	device, browser, os := useragent.Classify(cc.UserAgent)

	country := cc.Country
	if country == "" && s.geo != nil {
		country = s.geo.CountryForIP(ctx, cc.IP)
	}
	if country == "" {
		country = unknownPlace
	}

	city := cc.City
	if city == "" {
		city = unknownPlace
	}

	referrer := cc.Referrer
	if referrer == "" {
		referrer = directReferrer
	}

	return &model.Click{
		ID:         utils.GenerateID(),
		ShortCode:  shortCode,
		ClickedAt:  time.Now().UTC(),
		Country:    country,
		City:       city,
		DeviceType: device,
		Browser:    browser,
		OS:         os,
		Referrer:   referrer,
		IPHash:     utils.HashIP(cc.IP, s.hashSalt),
	}
}

func newLink(shortCode, originalURL, ownerID string) *model.Link {
	return &model.Link{
		ID:          utils.GenerateID(),
		ShortCode:   shortCode,
		OriginalURL: originalURL,
		UserID:      ownerID,
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   nil,
		Clicks:      0,
	}
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return ErrInvalidURL
	}
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL
	}
	if parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
