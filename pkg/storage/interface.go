package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrCodeConflict is returned by Create when short_code is already taken.
var ErrCodeConflict = errors.New("short code already exists")

// LinkStorage is the Link Store contract. Lookups return (nil, nil) when
// nothing matches.
type LinkStorage interface {
	// Create inserts link and fills in ID. Uniqueness of ShortCode is
	// enforced by the insert itself.
	Create(ctx context.Context, link *Link) error
	GetByCode(ctx context.Context, code string) (*Link, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Link, error)
	Delete(ctx context.Context, code string) error
	IncrementClicks(ctx context.Context, code string) error
}

type ClickEventStorage interface {
	InsertClickEvent(ctx context.Context, event *ClickEvent) error
	ListClickEvents(ctx context.Context, code string, limit int) ([]ClickEvent, error)
}
