package service

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"shortlink/pkg/storage"
)

// statsEventLimit is how many recent click events feed the aggregates.
const statsEventLimit = 1000

type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type Stats struct {
	Code        string   `json:"code"`
	OriginalURL string   `json:"original_url"`
	Clicks      int64    `json:"clicks"`
	TotalEvents int      `json:"total_events"`
	QRClicks    int      `json:"qr_clicks"`
	Countries   []Bucket `json:"countries"`
	Devices     []Bucket `json:"devices"`
	Referrers   []Bucket `json:"referrers"`
	ByDay       []Bucket `json:"by_day"`
}

// Stats summarises the most recent click events of a link.
func (s *LinkService) Stats(ctx context.Context, code string) (*Stats, error) {
	link, err := s.GetLink(ctx, code)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListClickEvents(ctx, code, statsEventLimit)
	if err != nil {
		return nil, storeError("list click events", err)
	}

	stats := Aggregate(events)
	stats.Code = link.ShortCode
	stats.OriginalURL = link.OriginalURL
	stats.Clicks = link.Clicks
	return stats, nil
}

// Aggregate buckets events by country, device, referrer host and UTC day.
func Aggregate(events []storage.ClickEvent) *Stats {
	countries := map[string]int{}
	devices := map[string]int{}
	referrers := map[string]int{}
	days := map[string]int{}
	stats := &Stats{TotalEvents: len(events)}

	for _, e := range events {
		if e.IsQR {
			stats.QRClicks++
		}
		country := "UNKNOWN"
		if e.Country != nil && *e.Country != "" {
			country = strings.ToUpper(*e.Country)
		}
		countries[country]++

		device := "unknown"
		if e.Device != nil {
			device = string(*e.Device)
		}
		devices[device]++

		referrers[referrerHost(e.Referrer)]++
		days[e.CreatedAt.UTC().Format("2006-01-02")]++
	}

	stats.Countries = top(countries, 6)
	stats.Devices = top(devices, 3)
	stats.Referrers = top(referrers, 6)

	stats.ByDay = make([]Bucket, 0, len(days))
	for day, n := range days {
		stats.ByDay = append(stats.ByDay, Bucket{Key: day, Count: n})
	}
	sort.Slice(stats.ByDay, func(i, j int) bool { return stats.ByDay[i].Key < stats.ByDay[j].Key })
	return stats
}

func referrerHost(referrer *string) string {
	if referrer == nil || *referrer == "" {
		return "Direct"
	}
	u, err := url.Parse(*referrer)
	if err != nil || u.Hostname() == "" {
		return "Direct"
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func top(counts map[string]int, n int) []Bucket {
	buckets := make([]Bucket, 0, len(counts))
	for k, c := range counts {
		buckets = append(buckets, Bucket{Key: k, Count: c})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Key < buckets[j].Key
	})
	if len(buckets) > n {
		buckets = buckets[:n]
	}
	return buckets
}
