package service

import (
	"context"
	"testing"
	"time"

	"shortlink/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	day1 := time.Date(2025, time.May, 1, 23, 30, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Hour)
	mobile, desktop := storage.DeviceMobile, storage.DeviceDesktop

	events := []storage.ClickEvent{
		{Country: strPtr("us"), Device: &mobile, Referrer: strPtr("https://www.google.com/search"), IsQR: true, CreatedAt: day1},
		{Country: strPtr("US"), Device: &mobile, Referrer: strPtr("https://google.com/"), CreatedAt: day1},
		{Country: strPtr("de"), Device: &desktop, Referrer: strPtr("https://news.ycombinator.com/item?id=1"), CreatedAt: day2},
		{Referrer: strPtr("::not a url"), CreatedAt: day2},
		{CreatedAt: day2},
	}

	stats := Aggregate(events)
	assert.Equal(t, 5, stats.TotalEvents)
	assert.Equal(t, 1, stats.QRClicks)
	assert.Equal(t, []Bucket{{"UNKNOWN", 2}, {"US", 2}, {"DE", 1}}, stats.Countries)
	assert.Equal(t, []Bucket{{"mobile", 2}, {"unknown", 2}, {"desktop", 1}}, stats.Devices)
	assert.Equal(t, []Bucket{{"Direct", 2}, {"google.com", 2}, {"news.ycombinator.com", 1}}, stats.Referrers)
	assert.Equal(t, []Bucket{{"2025-05-01", 2}, {"2025-05-02", 3}}, stats.ByDay)
}

func TestAggregateTopLimits(t *testing.T) {
	var events []storage.ClickEvent
	for _, c := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		events = append(events, storage.ClickEvent{Country: strPtr(c)})
	}
	stats := Aggregate(events)
	assert.Len(t, stats.Countries, 6)
	assert.Equal(t, "A", stats.Countries[0].Key)
	assert.Len(t, stats.Devices, 1)

	empty := Aggregate(nil)
	assert.Zero(t, empty.TotalEvents)
	assert.Empty(t, empty.Countries)
	assert.Empty(t, empty.ByDay)
}

func TestLinkServiceStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.CreateLink(ctx, &CreateLinkRequest{LongURL: "https://example.com/page", Alias: strPtr("demo1")})
	require.NoError(t, err)

	w := NewClickWriter(f.store, f.store, nil, f.svc.logger)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Write(ctx, storage.ClickEvent{ShortCode: "demo1", Country: strPtr("fr"), CreatedAt: testNow}))
	}

	stats, err := f.svc.Stats(ctx, "demo1")
	require.NoError(t, err)
	assert.Equal(t, "demo1", stats.Code)
	assert.Equal(t, "https://example.com/page", stats.OriginalURL)
	assert.EqualValues(t, 3, stats.Clicks)
	assert.Equal(t, 3, stats.TotalEvents)
	assert.Equal(t, []Bucket{{"FR", 3}}, stats.Countries)

	_, err = f.svc.Stats(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
