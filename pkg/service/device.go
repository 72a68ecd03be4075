package service

import (
	"regexp"
	"strings"

	"shortlink/pkg/storage"
)

var (
	tabletPattern = regexp.MustCompile(`(?i)ipad|tablet|kindle|silk/|playbook|nexus (7|9|10)|sm-t\d`)
	mobilePattern = regexp.MustCompile(`(?i)mobi|iphone|ipod|android|blackberry|bb10|opera mini|iemobile|windows phone|webos`)
)

// ClassifyDevice is a best-effort guess from the User-Agent. Android without
// "mobile" is treated as a tablet, the usual convention for Android UAs.
func ClassifyDevice(userAgent string) *storage.Device {
	if strings.TrimSpace(userAgent) == "" {
		return nil
	}
	device := storage.DeviceDesktop
	lower := strings.ToLower(userAgent)
	switch {
	case tabletPattern.MatchString(userAgent),
		strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"):
		device = storage.DeviceTablet
	case mobilePattern.MatchString(userAgent):
		device = storage.DeviceMobile
	}
	return &device
}
