package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"shortlink/pkg/cache"
	"shortlink/pkg/logging"
	"shortlink/pkg/middleware"
	"shortlink/pkg/storage"

	"github.com/google/uuid"
)

// maxGenerateAttempts bounds code generation retries after uniqueness conflicts.
const maxGenerateAttempts = 7

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type LinkService struct {
	links    storage.LinkStorage
	events   storage.ClickEventStorage
	cache    cache.LinkCacheInterface
	recorder ClickRecorder
	logger   *logging.Logger

	gen      CodeGenerator
	now      func() time.Time
	baseURL  string
	cacheTTL time.Duration
	negTTL   time.Duration
}

// Options tunes a LinkService. Zero values fall back to production defaults.
type Options struct {
	BaseURL          string
	CacheTTL         time.Duration
	NegativeCacheTTL time.Duration
	Generator        CodeGenerator
	Now              func() time.Time
}

// NewLinkService wires the allocator and resolver around a store. linkCache
// may be nil, in which case every lookup goes to the store.
func NewLinkService(links storage.LinkStorage, events storage.ClickEventStorage, linkCache cache.LinkCacheInterface, recorder ClickRecorder, logger *logging.Logger, opts Options) *LinkService {
	s := &LinkService{
		links:    links,
		events:   events,
		cache:    linkCache,
		recorder: recorder,
		logger:   logger,
		gen:      opts.Generator,
		now:      opts.Now,
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		cacheTTL: opts.CacheTTL,
		negTTL:   opts.NegativeCacheTTL,
	}
	if s.gen == nil {
		s.gen = RandomGenerator{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 24 * time.Hour
	}
	if s.negTTL <= 0 {
		s.negTTL = 30 * time.Second
	}
	return s
}

type CreateLinkRequest struct {
	LongURL             string    `json:"long_url"`
	Alias               *string   `json:"alias,omitempty"`
	ExpirationPolicy    string    `json:"expiration_policy,omitempty"`
	ExpirationMagnitude Magnitude `json:"expiration_magnitude,omitempty"`
}

type CreateLinkResponse struct {
	Link     *storage.Link `json:"link"`
	ShortURL string        `json:"short_url"`
}

// CreateLink validates the request and inserts a new link. A custom alias
// gets exactly one insert attempt; generated codes are retried on conflict
// up to maxGenerateAttempts times.
func (s *LinkService) CreateLink(ctx context.Context, req *CreateLinkRequest) (*CreateLinkResponse, error) {
	parsed, err := ValidateURL(req.LongURL)
	if err != nil {
		s.logger.LogURLValidation(ctx, false, "")
		return nil, err
	}
	s.logger.LogURLValidation(ctx, true, parsed.Scheme)

	var alias string
	if req.Alias != nil && strings.TrimSpace(*req.Alias) != "" {
		alias = *req.Alias
		if err := ValidateAlias(alias); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	exp, err := ResolveExpiration(req.ExpirationPolicy, int(req.ExpirationMagnitude), now)
	if err != nil {
		return nil, err
	}

	link := &storage.Link{
		OriginalURL:         strings.TrimSpace(req.LongURL),
		ExpiresAt:           exp.ExpiresAt,
		ExpirationPolicy:    exp.Policy,
		ExpirationMagnitude: exp.Magnitude,
		CreatedAt:           now,
	}
	if owner := middleware.GetOwnerIDFromContext(ctx); owner != uuid.Nil {
		link.OwnerID = &owner
	}

	if alias != "" {
		err = s.insertAlias(ctx, link, alias)
	} else {
		err = s.insertGenerated(ctx, link)
	}
	if err != nil {
		s.logger.LogLinkOperation(ctx, "create", link.ShortCode, middleware.GetSubFromContext(ctx), false)
		return nil, err
	}
	s.logger.LogLinkOperation(ctx, "create", link.ShortCode, middleware.GetSubFromContext(ctx), true)

	// Overwrites any negative entry from an earlier lookup of this code.
	s.writeCache(ctx, link.ShortCode, link)

	return &CreateLinkResponse{Link: link, ShortURL: s.ShortURL(link.ShortCode)}, nil
}

func (s *LinkService) insertAlias(ctx context.Context, link *storage.Link, alias string) error {
	link.ShortCode = alias
	err := s.links.Create(ctx, link)
	if errors.Is(err, storage.ErrCodeConflict) {
		return ErrAliasTaken
	}
	if err != nil {
		return storeError("create link", err)
	}
	return nil
}

func (s *LinkService) insertGenerated(ctx context.Context, link *storage.Link) error {
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		code, err := s.gen.NewCode()
		if err != nil {
			return err
		}
		link.ShortCode = code
		err = s.links.Create(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrCodeConflict) {
			return storeError("create link", err)
		}
		s.logger.Debug(ctx, "short code collision, retrying", "attempt", attempt)
	}
	link.ShortCode = ""
	return ErrAllocationExhausted
}

// ShortURL is the public redirect URL for code.
func (s *LinkService) ShortURL(code string) string {
	return s.baseURL + "/r/" + code
}

// GetLink returns a link whether or not it has expired.
func (s *LinkService) GetLink(ctx context.Context, code string) (*storage.Link, error) {
	if code == "" {
		return nil, ErrEmptyCode
	}
	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		return nil, storeError("get link", err)
	}
	if link == nil {
		return nil, ErrNotFound
	}
	return link, nil
}

// IsExpired reports whether link has expired by the service clock.
func (s *LinkService) IsExpired(link *storage.Link) bool {
	return link.ExpiredAt(s.now())
}

// ListLinks returns the caller's links, newest first.
func (s *LinkService) ListLinks(ctx context.Context, limit, offset int) ([]storage.Link, error) {
	owner := middleware.GetOwnerIDFromContext(ctx)
	if owner == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	links, err := s.links.ListByOwner(ctx, owner, limit, offset)
	if err != nil {
		return nil, storeError("list links", err)
	}
	return links, nil
}

func (s *LinkService) DeleteLink(ctx context.Context, code string) error {
	owner := middleware.GetOwnerIDFromContext(ctx)
	if owner == uuid.Nil {
		return ErrUnauthenticated
	}

	link, err := s.GetLink(ctx, code)
	if err != nil {
		return err
	}
	if link.OwnerID == nil || *link.OwnerID != owner {
		return ErrForbidden
	}

	if err := s.links.Delete(ctx, code); err != nil {
		return storeError("delete link", err)
	}
	s.writeCache(ctx, code, nil)
	s.logger.LogLinkOperation(ctx, "delete", code, middleware.GetSubFromContext(ctx), true)
	return nil
}

// writeCache replaces the cached entry for code after a write. A nil link
// leaves a tombstone for the full positive TTL so a resolver that read the
// row before the delete cannot re-cache it.
func (s *LinkService) writeCache(ctx context.Context, code string, link *storage.Link) {
	if s.cache == nil {
		return
	}
	entry, ttl := s.cacheEntry(link)
	if link == nil {
		ttl = s.cacheTTL
	}
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, code, entry, ttl); err != nil {
		s.logger.Warn(ctx, "link cache write failed", "code", code, "error", err)
	}
}
