package service

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"shortlink/pkg/storage"
)

const maxURLLength = 2048

var aliasRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Upper bounds keep expires_at within roughly a century.
var maxMagnitude = map[storage.ExpirationPolicy]int{
	storage.PolicyMinutes: 100 * 365 * 24 * 60,
	storage.PolicyHours:   100 * 365 * 24,
	storage.PolicyDays:    100 * 365,
	storage.PolicyMonths:  100 * 12,
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	if len(raw) > maxURLLength {
		return nil, fmt.Errorf("%w: URL is longer than %d characters", ErrInvalidURL, maxURLLength)
	}
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() {
		return nil, fmt.Errorf("%w: enter a valid URL starting with http:// or https://", ErrInvalidURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: only http and https are allowed", ErrInvalidURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: URL has no host", ErrInvalidURL)
	}
	return parsed, nil
}

func ValidateAlias(alias string) error {
	if !aliasRegex.MatchString(alias) {
		return fmt.Errorf("%w: alias can only contain letters, numbers, hyphens and underscores", ErrInvalidAlias)
	}
	return nil
}

type Expiration struct {
	Policy    storage.ExpirationPolicy
	Magnitude int
	ExpiresAt *time.Time
}

// Magnitude is an expiration amount as sent by clients. Only JSON integers
// decode; anything else is ErrInvalidExpiration rather than a syntax error.
type Magnitude int

func (m *Magnitude) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: amount must be a number", ErrInvalidExpiration)
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		return fmt.Errorf("%w: amount must be a whole number, got %s", ErrInvalidExpiration, n)
	}
	*m = Magnitude(v)
	return nil
}

func ParsePolicy(raw string) (storage.ExpirationPolicy, error) {
	switch p := storage.ExpirationPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return storage.PolicyNever, nil
	case storage.PolicyNever, storage.PolicyMinutes, storage.PolicyHours, storage.PolicyDays, storage.PolicyMonths:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown policy %q", ErrInvalidExpiration, raw)
	}
}

// ResolveExpiration turns a policy and magnitude into an absolute expiry.
// Months use time.AddDate, so Jan 31 + 1 month normalises to early March.
func ResolveExpiration(rawPolicy string, magnitude int, now time.Time) (Expiration, error) {
	policy, err := ParsePolicy(rawPolicy)
	if err != nil {
		return Expiration{}, err
	}
	if policy == storage.PolicyNever {
		return Expiration{Policy: policy}, nil
	}
	if magnitude <= 0 {
		return Expiration{}, fmt.Errorf("%w: %s requires a positive amount", ErrInvalidExpiration, policy)
	}
	if magnitude > maxMagnitude[policy] {
		return Expiration{}, fmt.Errorf("%w: at most %d %s", ErrInvalidExpiration, maxMagnitude[policy], policy)
	}

	var expiresAt time.Time
	switch policy {
	case storage.PolicyMinutes:
		expiresAt = now.Add(time.Duration(magnitude) * time.Minute)
	case storage.PolicyHours:
		expiresAt = now.Add(time.Duration(magnitude) * time.Hour)
	case storage.PolicyDays:
		expiresAt = now.AddDate(0, 0, magnitude)
	case storage.PolicyMonths:
		expiresAt = now.AddDate(0, magnitude, 0)
	}
	return Expiration{Policy: policy, Magnitude: magnitude, ExpiresAt: &expiresAt}, nil
}
