package ua

import (
	"testing"

	"github.com/adshield/fraudguard/internal/models"
)

const (
	chromeDesktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	iphoneUA        = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	ipadUA          = "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"
	googlebotUA     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	headlessUA      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) HeadlessChrome/119.0.0.0 Safari/537.36"
)

func TestInferDeviceType(t *testing.T) {
	var tests = []struct {
		name string
		in   string
		want models.DeviceType
	}{
		{"chrome on windows", chromeDesktopUA, models.DeviceDesktop},
		{"iphone", iphoneUA, models.DeviceMobile},
		{"ipad", ipadUA, models.DeviceTablet},
		{"googlebot", googlebotUA, models.DeviceBot},
		{"headless chrome", headlessUA, models.DeviceBot},
		{"empty", "", models.DeviceUnknown},
		{"gibberish", "Mozzarella?()();;/%^$@!~", models.DeviceUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := InferDeviceType(tc.in); got != tc.want {
				t.Errorf("InferDeviceType(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestIsHeadless(t *testing.T) {
	if !IsHeadless(headlessUA) {
		t.Error("HeadlessChrome UA not flagged")
	}
	if !IsHeadless("phantomjs/2.1.1") {
		t.Error("PhantomJS UA not flagged")
	}
	if IsHeadless(chromeDesktopUA) {
		t.Error("regular Chrome UA flagged as headless")
	}
}

func TestNormalizeFillsOnlyUnsetFields(t *testing.T) {
	fp := models.Fingerprint{
		UserAgent: headlessUA,
		Device:    models.Device{Type: models.DeviceMobile, Browser: "opera mini"},
	}
	Normalize(&fp)

	// Explicit collector values survive.
	if fp.Device.Type != models.DeviceMobile {
		t.Errorf("type overwritten: %s", fp.Device.Type)
	}
	if fp.Device.Browser != "opera mini" {
		t.Errorf("browser overwritten: %s", fp.Device.Browser)
	}
	// Headless is a security signal and only ever escalates.
	if !fp.Device.IsHeadless {
		t.Error("headless flag not raised from UA")
	}
}

func TestNormalizeFillsEmptyFingerprint(t *testing.T) {
	fp := models.Fingerprint{UserAgent: chromeDesktopUA}
	Normalize(&fp)

	if fp.Device.Type != models.DeviceDesktop {
		t.Errorf("type = %s, want desktop", fp.Device.Type)
	}
	if fp.Device.Browser != "chrome" {
		t.Errorf("browser = %q, want chrome", fp.Device.Browser)
	}
	if fp.Device.IsHeadless {
		t.Error("headless raised for a regular browser")
	}
}
