package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const linkColumns = `id, short_code, original_url, owner_id, expires_at, expiration_policy, expiration_magnitude, clicks, created_at`

type PostgresLinkStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresLinkStorage(pool *pgxpool.Pool) *PostgresLinkStorage {
	return &PostgresLinkStorage{pool: pool}
}

func (s *PostgresLinkStorage) Create(ctx context.Context, link *Link) error {
	query := `INSERT INTO links (short_code, original_url, owner_id, expires_at, expiration_policy, expiration_magnitude, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, clicks, created_at`
	err := s.pool.QueryRow(ctx, query,
		link.ShortCode, link.OriginalURL, link.OwnerID, link.ExpiresAt,
		string(link.ExpirationPolicy), link.ExpirationMagnitude, link.CreatedAt,
	).Scan(&link.ID, &link.Clicks, &link.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrCodeConflict
		}
		return err
	}
	return nil
}

func (s *PostgresLinkStorage) GetByCode(ctx context.Context, code string) (*Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`
	link, err := scanLink(s.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return link, nil
}

func (s *PostgresLinkStorage) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE owner_id = $1 ORDER BY created_at DESC, short_code LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := []Link{}
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

func (s *PostgresLinkStorage) Delete(ctx context.Context, code string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM links WHERE short_code = $1`, code)
	return err
}

func (s *PostgresLinkStorage) IncrementClicks(ctx context.Context, code string) error {
	_, err := s.pool.Exec(ctx, `UPDATE links SET clicks = clicks + 1 WHERE short_code = $1`, code)
	return err
}

func (s *PostgresLinkStorage) InsertClickEvent(ctx context.Context, event *ClickEvent) error {
	var device *string
	if event.Device != nil {
		d := string(*event.Device)
		device = &d
	}
	query := `INSERT INTO click_events (short_code, referrer, user_agent, country, city, device, is_qr, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`
	return s.pool.QueryRow(ctx, query,
		event.ShortCode, event.Referrer, event.UserAgent, event.Country, event.City,
		device, event.IsQR, event.CreatedAt,
	).Scan(&event.ID)
}

func (s *PostgresLinkStorage) ListClickEvents(ctx context.Context, code string, limit int) ([]ClickEvent, error) {
	query := `SELECT id, short_code, referrer, user_agent, country, city, device, is_qr, created_at
FROM click_events WHERE short_code = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, query, code, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []ClickEvent{}
	for rows.Next() {
		var e ClickEvent
		var device *string
		if err := rows.Scan(&e.ID, &e.ShortCode, &e.Referrer, &e.UserAgent, &e.Country, &e.City, &device, &e.IsQR, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan click event: %w", err)
		}
		if device != nil {
			d := Device(*device)
			e.Device = &d
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanLink(row pgx.Row) (*Link, error) {
	var link Link
	var policy string
	err := row.Scan(&link.ID, &link.ShortCode, &link.OriginalURL, &link.OwnerID, &link.ExpiresAt,
		&policy, &link.ExpirationMagnitude, &link.Clicks, &link.CreatedAt)
	if err != nil {
		return nil, err
	}
	link.ExpirationPolicy = ExpirationPolicy(policy)
	return &link, nil
}
