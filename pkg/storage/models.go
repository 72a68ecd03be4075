package storage

import (
	"time"

	"github.com/google/uuid"
)

type ExpirationPolicy string

const (
	PolicyNever   ExpirationPolicy = "never"
	PolicyMinutes ExpirationPolicy = "minutes"
	PolicyHours   ExpirationPolicy = "hours"
	PolicyDays    ExpirationPolicy = "days"
	PolicyMonths  ExpirationPolicy = "months"
)

type Link struct {
	ID                  uuid.UUID        `json:"id" db:"id"`
	ShortCode           string           `json:"short_code" db:"short_code"`
	OriginalURL         string           `json:"original_url" db:"original_url"`
	OwnerID             *uuid.UUID       `json:"owner_id,omitempty" db:"owner_id"`
	ExpiresAt           *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
	ExpirationPolicy    ExpirationPolicy `json:"expiration_policy" db:"expiration_policy"`
	ExpirationMagnitude int              `json:"expiration_magnitude" db:"expiration_magnitude"`
	Clicks              int64            `json:"clicks" db:"clicks"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
}

// ExpiredAt reports whether the link no longer resolves at now.
// A link whose expires_at equals now is already expired.
func (l *Link) ExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

type Device string

const (
	DeviceMobile  Device = "mobile"
	DeviceTablet  Device = "tablet"
	DeviceDesktop Device = "desktop"
)

// ClickEvent is an append-only record of one redirect. ShortCode is not a
// foreign key; events for deleted links are kept.
type ClickEvent struct {
	ID        int64     `json:"id" db:"id"`
	ShortCode string    `json:"short_code" db:"short_code"`
	Referrer  *string   `json:"referrer,omitempty" db:"referrer"`
	UserAgent *string   `json:"user_agent,omitempty" db:"user_agent"`
	Country   *string   `json:"country,omitempty" db:"country"`
	City      *string   `json:"city,omitempty" db:"city"`
	Device    *Device   `json:"device,omitempty" db:"device"`
	IsQR      bool      `json:"is_qr" db:"is_qr"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
