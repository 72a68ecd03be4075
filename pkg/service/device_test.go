package service

import (
	"testing"

	"shortlink/pkg/storage"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDevice(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want storage.Device
	}{
		{"iphone", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148", storage.DeviceMobile},
		{"android phone", "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Chrome/120.0 Mobile Safari/537.36", storage.DeviceMobile},
		{"android tablet", "Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 Chrome/120.0 Safari/537.36", storage.DeviceTablet},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148", storage.DeviceTablet},
		{"kindle", "Mozilla/5.0 (Linux; U; en-us; KFAPWI Build/JDQ39) AppleWebKit/535.19 Silk/3.13 Safari/535.19", storage.DeviceTablet},
		{"opera mini", "Opera/9.80 (J2ME/MIDP; Opera Mini/9.80/37.9178; U; en) Presto/2.12.423 Version/12.16", storage.DeviceMobile},
		{"desktop chrome", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36", storage.DeviceDesktop},
		{"curl", "curl/8.4.0", storage.DeviceDesktop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyDevice(tt.ua)
			if assert.NotNil(t, got) {
				assert.Equal(t, tt.want, *got)
			}
		})
	}

	assert.Nil(t, ClassifyDevice(""))
	assert.Nil(t, ClassifyDevice("   "))
}
