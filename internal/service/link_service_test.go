package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blatik/shortlink/internal/filter"
	"github.com/blatik/shortlink/internal/model"
)

// fakeStore is an in-memory LinkStore. failExists makes the first N existence
// checks report the code as taken, to drive the collision-retry loop.
type fakeStore struct {
	mu          sync.Mutex
	links       map[string]*model.Link
	failExists  int
	existsCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{links: make(map[string]*model.Link)}
}

func (s *fakeStore) GetLink(_ context.Context, shortCode string) (*model.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[shortCode]
	if !ok {
		return nil, nil
	}
	cp := *link
	return &cp, nil
}

func (s *fakeStore) PutLinkIfAbsent(_ context.Context, link *model.Link) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.links[link.ShortCode]; taken {
		return false, nil
	}
	cp := *link
	s.links[link.ShortCode] = &cp
	return true, nil
}

func (s *fakeStore) Exists(_ context.Context, shortCode string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existsCalls++
	if s.existsCalls <= s.failExists {
		return true, nil
	}
	_, taken := s.links[shortCode]
	return taken, nil
}

type fakeCatalog struct {
	mu             sync.Mutex
	links          []model.Link
	clicks         []model.Click
	increments     map[string]int
	failInsertLink bool
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{increments: make(map[string]int)}
}

func (c *fakeCatalog) InsertLink(_ context.Context, link *model.Link) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failInsertLink {
		return errors.New("catalog unavailable")
	}
	c.links = append(c.links, *link)
	return nil
}

func (c *fakeCatalog) InsertClick(_ context.Context, click *model.Click) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clicks = append(c.clicks, *click)
	return nil
}

func (c *fakeCatalog) IncrementClicks(_ context.Context, shortCode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.increments[shortCode]++
	return nil
}

func (c *fakeCatalog) ListByOwner(_ context.Context, ownerID string, limit int) ([]model.Link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Link, 0)
	for _, l := range c.links {
		if l.UserID == ownerID && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

func (c *fakeCatalog) clickCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clicks)
}

func (c *fakeCatalog) firstClick() model.Click {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clicks[0]
}

type fakeGeo struct {
	country string
	calls   atomic.Int32
}

func (g *fakeGeo) CountryForIP(_ context.Context, _ string) string {
	g.calls.Add(1)
	return g.country
}

func newTestService(st *fakeStore, cat *fakeCatalog, geo GeoResolver) *LinkService {
	return NewLinkService(st, cat, filter.NewCodeFilter(1000, 0.01), geo, "test-salt")
}

func TestCreateLinkGeneratedCode(t *testing.T) {
	st := newFakeStore()
	cat := newFakeCatalog()
	svc := newTestService(st, cat, nil)

	link, err := svc.CreateLink(context.Background(), "https://example.com/page", "", "user-1")
	require.NoError(t, err)

	assert.Len(t, link.ShortCode, 4)
	assert.Equal(t, "https://example.com/page", link.OriginalURL)
	assert.Equal(t, "user-1", link.UserID)
	assert.EqualValues(t, 0, link.Clicks)
	assert.Nil(t, link.ExpiresAt)
	assert.Len(t, link.ID, 36)

	stored, err := st.GetLink(context.Background(), link.ShortCode)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, link.OriginalURL, stored.OriginalURL)

	require.Len(t, cat.links, 1)
	assert.Equal(t, link.ShortCode, cat.links[0].ShortCode)
}

func TestCreateLinkAnonymousOwner(t *testing.T) {
	st := newFakeStore()
	cat := newFakeCatalog()
	svc := newTestService(st, cat, nil)

	link, err := svc.CreateLink(context.Background(), "http://example.com", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.AnonymousOwner, link.UserID)
}

func TestCreateLinkInvalidURL(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeCatalog(), nil)

	for _, raw := range []string{"", "not a url", "ftp://example.com", "example.com/no-scheme"} {
		_, err := svc.CreateLink(context.Background(), raw, "", "user-1")
		assert.ErrorIs(t, err, ErrInvalidURL, "url %q", raw)
	}
}

func TestCreateLinkCollisionWidensCode(t *testing.T) {
	st := newFakeStore()
	st.failExists = 3 // three collisions, still within the 4-char window
	svc := newTestService(st, newFakeCatalog(), nil)

	link, err := svc.CreateLink(context.Background(), "https://example.com", "", "user-1")
	require.NoError(t, err)
	assert.Len(t, link.ShortCode, 4)

	st = newFakeStore()
	st.failExists = 7 // past five retries the code space widens
	svc = newTestService(st, newFakeCatalog(), nil)

	link, err = svc.CreateLink(context.Background(), "https://example.com", "", "user-1")
	require.NoError(t, err)
	assert.Len(t, link.ShortCode, 5)
}

func TestCreateLinkCustomAlias(t *testing.T) {
	st := newFakeStore()
	cat := newFakeCatalog()
	svc := newTestService(st, cat, nil)

	link, err := svc.CreateLink(context.Background(), "https://example.com", "my-alias_1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "my-alias_1", link.ShortCode)
}

func TestCreateLinkInvalidAlias(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeCatalog(), nil)

	for _, alias := range []string{"ab", "bad@alias", "way-too-long-alias-over-20-chars"} {
		_, err := svc.CreateLink(context.Background(), "https://example.com", alias, "user-1")
		assert.ErrorIs(t, err, ErrInvalidAlias, "alias %q", alias)
	}
}

func TestCreateLinkAliasTaken(t *testing.T) {
	st := newFakeStore()
	st.links["taken"] = &model.Link{ShortCode: "taken", OriginalURL: "https://old.example.com"}
	svc := newTestService(st, newFakeCatalog(), nil)

	_, err := svc.CreateLink(context.Background(), "https://example.com", "taken", "user-1")
	assert.ErrorIs(t, err, ErrAliasTaken)
}

func TestCreateLinkConcurrentAliasClaims(t *testing.T) {
	st := newFakeStore()
	cat := newFakeCatalog()
	svc := newTestService(st, cat, nil)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateLink(context.Background(), "https://example.com", "contested", "user-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrAliasTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one claim must win")
	assert.Equal(t, 1, conflicts)
}

func TestCreateLinkCatalogFailureSurfaces(t *testing.T) {
	st := newFakeStore()
	cat := newFakeCatalog()
	cat.failInsertLink = true
	svc := newTestService(st, cat, nil)

	_, err := svc.CreateLink(context.Background(), "https://example.com", "my-alias", "user-1")
	assert.ErrorIs(t, err, ErrStorage)

	// The store write stands; the inconsistency is surfaced, not rolled back.
	stored, gerr := st.GetLink(context.Background(), "my-alias")
	require.NoError(t, gerr)
	assert.NotNil(t, stored)
}

func TestResolveAndRecordNotFound(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeCatalog(), nil)

	_, err := svc.ResolveAndRecord(context.Background(), "nope", ClickContext{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveAndRecordExpired(t *testing.T) {
	st := newFakeStore()
	cat := newFakeCatalog()
	past := time.Now().Add(-time.Hour)
	st.links["old1"] = &model.Link{ShortCode: "old1", OriginalURL: "https://example.com", ExpiresAt: &past}

	codes := filter.NewCodeFilter(1000, 0.01)
	codes.Add("old1")
	svc := NewLinkService(st, cat, codes, nil, "test-salt")

	_, err := svc.ResolveAndRecord(context.Background(), "old1", ClickContext{})
	assert.ErrorIs(t, err, ErrLinkExpired)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, cat.clickCount(), "expired redirects must not record clicks")
}

func TestResolveAndRecordSuccess(t *testing.T) {
	st := newFakeStore()
	cat := newFakeCatalog()
	svc := newTestService(st, cat, nil)

	link, err := svc.CreateLink(context.Background(), "https://example.com/target", "", "user-1")
	require.NoError(t, err)

	click := ClickContext{
		IP:        "203.0.113.9",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Safari/537.36",
		Referrer:  "https://news.ycombinator.com/",
		Country:   "Germany",
		City:      "Berlin",
	}

	target, err := svc.ResolveAndRecord(context.Background(), link.ShortCode, click)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/target", target)

	assert.Eventually(t, func() bool {
		return cat.clickCount() == 1
	}, time.Second, 10*time.Millisecond, "click should be recorded asynchronously")

	recorded := cat.firstClick()
	assert.Equal(t, link.ShortCode, recorded.ShortCode)
	assert.Equal(t, "Germany", recorded.Country)
	assert.Equal(t, "Berlin", recorded.City)
	assert.Equal(t, "Desktop", recorded.DeviceType)
	assert.Equal(t, "Chrome", recorded.Browser)
	assert.Equal(t, "Windows", recorded.OS)
	assert.Equal(t, "https://news.ycombinator.com/", recorded.Referrer)
	assert.Len(t, recorded.IPHash, 64)
	assert.NotContains(t, recorded.IPHash, "203.0.113.9")

	assert.Eventually(t, func() bool {
		cat.mu.Lock()
		defer cat.mu.Unlock()
		return cat.increments[link.ShortCode] == 1
	}, time.Second, 10*time.Millisecond)
}

func TestResolveAndRecordSentinels(t *testing.T) {
	st := newFakeStore()
	cat := newFakeCatalog()
	svc := newTestService(st, cat, nil)

	link, err := svc.CreateLink(context.Background(), "https://example.com", "", "user-1")
	require.NoError(t, err)

	_, err = svc.ResolveAndRecord(context.Background(), link.ShortCode, ClickContext{IP: "203.0.113.9"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return cat.clickCount() == 1 }, time.Second, 10*time.Millisecond)

	recorded := cat.firstClick()
	assert.Equal(t, "Unknown", recorded.Country)
	assert.Equal(t, "Unknown", recorded.City)
	assert.Equal(t, "Direct", recorded.Referrer)
	assert.Equal(t, "Other", recorded.Browser)
}

func TestResolveAndRecordGeoFallback(t *testing.T) {
	st := newFakeStore()
	cat := newFakeCatalog()
	geo := &fakeGeo{country: "France"}
	svc := newTestService(st, cat, geo)

	link, err := svc.CreateLink(context.Background(), "https://example.com", "", "user-1")
	require.NoError(t, err)

	// No edge country header: the geo resolver supplies it.
	_, err = svc.ResolveAndRecord(context.Background(), link.ShortCode, ClickContext{IP: "203.0.113.9"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return cat.clickCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "France", cat.firstClick().Country)

	// Edge header present: no lookup happens.
	callsBefore := geo.calls.Load()
	_, err = svc.ResolveAndRecord(context.Background(), link.ShortCode, ClickContext{IP: "203.0.113.9", Country: "Spain"})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return cat.clickCount() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, callsBefore, geo.calls.Load())
}

func TestRepeatedRedirectsRecordAllClicks(t *testing.T) {
	st := newFakeStore()
	cat := newFakeCatalog()
	svc := newTestService(st, cat, nil)

	link, err := svc.CreateLink(context.Background(), "https://example.com", "", "user-1")
	require.NoError(t, err)

	const n = 7
	for i := 0; i < n; i++ {
		_, err := svc.ResolveAndRecord(context.Background(), link.ShortCode, ClickContext{IP: "203.0.113.9"})
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return cat.clickCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestListLinks(t *testing.T) {
	st := newFakeStore()
	cat := newFakeCatalog()
	svc := newTestService(st, cat, nil)

	_, err := svc.ListLinks(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingOwner)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateLink(context.Background(), "https://example.com", "", "owner-a")
		require.NoError(t, err)
	}
	_, err = svc.CreateLink(context.Background(), "https://example.com", "", "owner-b")
	require.NoError(t, err)

	links, err := svc.ListLinks(context.Background(), "owner-a")
	require.NoError(t, err)
	assert.Len(t, links, 3)
	for _, l := range links {
		assert.Equal(t, "owner-a", l.UserID)
	}
}
