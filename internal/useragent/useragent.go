// Package useragent derives coarse device, browser, and OS categories from a
// raw User-Agent header using ordered substring rules. It is deliberately not
// a full UA parser; click analytics only needs stable buckets.
package useragent

import "strings"

// Fallback sentinels for unmatched user agents.
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	Other         = "Other"
)

// Classify maps a raw User-Agent string to (device type, browser, os).
// Rules are ordered and the first match wins per axis: "edg" must be checked
// before "chrome" (Edge UAs contain Chrome) and "chrome" before "safari"
// (Chrome UAs historically carry a Safari token).
func Classify(userAgent string) (device, browser, os string) {
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"):
		device = DeviceMobile
	case strings.Contains(ua, "tablet"), strings.Contains(ua, "ipad"):
		device = DeviceTablet
	default:
		device = DeviceDesktop
	}

	switch {
	case strings.Contains(ua, "edg"):
		browser = "Edge"
	case strings.Contains(ua, "chrome"):
		browser = "Chrome"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "opera"), strings.Contains(ua, "opr"):
		browser = "Opera"
	default:
		browser = Other
	}

	switch {
	case strings.Contains(ua, "windows"):
		os = "Windows"
	case strings.Contains(ua, "mac"):
		os = "macOS"
	case strings.Contains(ua, "linux"):
		os = "Linux"
	case strings.Contains(ua, "android"):
		os = "Android"
	case strings.Contains(ua, "ios"), strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		os = "iOS"
	default:
		os = Other
	}

	return device, browser, os
}
