// Package ua fills gaps in client-reported fingerprints from the raw
// user-agent string. The engine itself trusts the fingerprint as given;
// this runs in the transport layer, before classification, and only for
// fields the collector left unset.
package ua

import (
	"strings"

	"github.com/adshield/fraudguard/internal/models"
	uasurfer "github.com/avct/uasurfer"
)

// Headless-browser signatures matched case-insensitively against the raw
// user agent.
var headlessSignatures = []string{
	"headlesschrome", "phantomjs", "slimerjs", "electron", "puppeteer",
	"playwright", "selenium",
}

// InferDeviceType maps a user agent to the engine's device classes.
// Crawlers map to bot; anything unparsable maps to unknown.
func InferDeviceType(userAgent string) models.DeviceType {
	if strings.TrimSpace(userAgent) == "" {
		return models.DeviceUnknown
	}
	parsed := uasurfer.Parse(userAgent)

	if parsed.IsBot() || IsHeadless(userAgent) {
		return models.DeviceBot
	}

	switch parsed.DeviceType {
	case uasurfer.DeviceComputer:
		return models.DeviceDesktop
	case uasurfer.DevicePhone:
		return models.DeviceMobile
	case uasurfer.DeviceTablet:
		return models.DeviceTablet
	default:
		return models.DeviceUnknown
	}
}

// IsHeadless reports whether the user agent carries a known
// headless-browser signature.
func IsHeadless(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	for _, sig := range headlessSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// BrowserName returns a lowercase browser label for the high-risk browser
// check, e.g. "chrome" or "ucbrowser".
func BrowserName(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return ""
	}
	parsed := uasurfer.Parse(userAgent)
	name := parsed.Browser.Name.String()
	return strings.ToLower(strings.TrimPrefix(name, "Browser"))
}

// Normalize fills unset fingerprint fields from the user agent. Explicit
// collector values always win.
func Normalize(fp *models.Fingerprint) {
	if fp.Device.Type == "" {
		fp.Device.Type = InferDeviceType(fp.UserAgent)
	}
	if !fp.Device.IsHeadless && IsHeadless(fp.UserAgent) {
		fp.Device.IsHeadless = true
	}
	if fp.Device.Browser == "" {
		fp.Device.Browser = BrowserName(fp.UserAgent)
	}
}
