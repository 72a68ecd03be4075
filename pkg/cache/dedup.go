package cache

import (
	"context"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// EventDeduper suppresses click events that repeat within a short window.
// It is best effort: a redis failure means "not a duplicate".
type EventDeduper struct {
	client *redis.Client
	window time.Duration
}

func NewEventDeduper(client *redis.Client, window time.Duration) *EventDeduper {
	return &EventDeduper{client: client, window: window}
}

// FirstSeen records fingerprint and reports whether it was new.
func (d *EventDeduper) FirstSeen(ctx context.Context, fingerprint string) (bool, error) {
	if d.window <= 0 {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, "clickdup:"+fingerprint, 1, d.window).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}

// Fingerprint hashes the identifying fields of a click so that raw user
// agents and referrers never become redis keys.
func Fingerprint(code, userAgent, referrer string, isQR bool) string {
	h, _ := blake2b.New(16, nil)
	for _, part := range []string{code, userAgent, referrer, strconv.FormatBool(isQR)} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
