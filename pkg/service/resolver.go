package service

import (
	"context"
	"time"

	"shortlink/pkg/cache"
	"shortlink/pkg/storage"
)

// ResolveRequest carries a short code plus the request metadata used only
// for click analytics.
type ResolveRequest struct {
	Code      string
	Referrer  string
	UserAgent string
	Country   string
	City      string
	IsQR      bool
}

type ResolveResult struct {
	Code        string `json:"code"`
	OriginalURL string `json:"url"`
}

// Resolve maps a short code to its destination. The only blocking work is
// the lookup; the click is handed to the recorder and never awaited.
func (s *LinkService) Resolve(ctx context.Context, req ResolveRequest) (*ResolveResult, error) {
	if req.Code == "" {
		return nil, ErrEmptyCode
	}

	entry, err := s.lookup(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if entry.Missing {
		return nil, ErrNotFound
	}
	now := s.now()
	if entry.ExpiresAt != nil && !entry.ExpiresAt.After(now) {
		return nil, ErrExpired
	}

	s.recorder.Record(ctx, storage.ClickEvent{
		ShortCode: req.Code,
		Referrer:  optional(req.Referrer),
		UserAgent: optional(req.UserAgent),
		Country:   optional(req.Country),
		City:      optional(req.City),
		Device:    ClassifyDevice(req.UserAgent),
		IsQR:      req.IsQR,
		CreatedAt: now.UTC(),
	})

	return &ResolveResult{Code: req.Code, OriginalURL: entry.OriginalURL}, nil
}

// lookup reads through the cache. Cache errors are logged and the store is
// consulted instead. The fill is set-if-absent: a create or delete that
// landed between the store read and the fill has already written the
// authoritative entry.
func (s *LinkService) lookup(ctx context.Context, code string) (*cache.CachedLink, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, code)
		if err != nil {
			s.logger.Warn(ctx, "link cache read failed", "code", code, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		return nil, storeError("lookup link", err)
	}

	entry, ttl := s.cacheEntry(link)
	if s.cache != nil && ttl > 0 {
		if _, err := s.cache.SetIfAbsent(ctx, code, entry, ttl); err != nil {
			s.logger.Warn(ctx, "link cache write failed", "code", code, "error", err)
		}
	}
	return entry, nil
}

// cacheEntry builds the cache entry for a store result. A nil link yields a
// negative entry. Positive entries never outlive the link's expiry.
func (s *LinkService) cacheEntry(link *storage.Link) (*cache.CachedLink, time.Duration) {
	if link == nil {
		return &cache.CachedLink{Missing: true}, s.negTTL
	}
	ttl := s.cacheTTL
	if link.ExpiresAt != nil {
		if remaining := link.ExpiresAt.Sub(s.now()); remaining < ttl {
			ttl = remaining
		}
	}
	return &cache.CachedLink{OriginalURL: link.OriginalURL, ExpiresAt: link.ExpiresAt}, ttl
}
