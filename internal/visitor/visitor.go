// Package visitor derives best-effort visitor metadata from request headers.
// Everything here is a pure function of the header set: given the same
// headers the derived IP/location/device/browser tuple is always the same.
// The results only enrich visit records and never affect redirect decisions.
package visitor

import (
	"net/http"
	"net/netip"
	"strings"
)

// Device classification labels.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceUnknown = "unknown"
)

// BrowserUnknown is returned when no browser rule matches.
const BrowserUnknown = "unknown"

// realIPHeaders are platform-specific single-value client IP headers,
// consulted in order when no usable X-Forwarded-For chain is present.
var realIPHeaders = []string{
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
}

// geoHeaders are (city, country) hint header pairs, first pair with any
// value wins.
var geoHeaders = [][2]string{
	{"X-Vercel-IP-City", "X-Vercel-IP-Country"},
	{"CF-IPCity", "CF-IPCountry"},
}

// uaRule maps a lowercase user-agent substring to a label.
// Rules are evaluated in order and the first match wins.
type uaRule struct {
	token string
	label string
}

var tabletRules = []uaRule{
	{"tablet", DeviceTablet},
	{"ipad", DeviceTablet},
}

var mobileRules = []uaRule{
	{"mobile", DeviceMobile},
	{"android", DeviceMobile},
	{"iphone", DeviceMobile},
	{"ipod", DeviceMobile},
}

// browserRules is an ordered first-match-wins list. Chrome deliberately
// precedes firefox and safari: Chrome user agents also contain "safari",
// and Edge/Opera agents also contain "chrome", so the ordering reproduces
// the upstream substring heuristic exactly.
var browserRules = []uaRule{
	{"chrome", "chrome"},
	{"firefox", "firefox"},
	{"safari", "safari"},
	{"edge", "edge"},
	{"opera", "opera"},
}

// Metadata is the derived visitor information attached to a visit record.
type Metadata struct {
	IPAddress  string // empty when nothing usable was found
	Location   string // "city, country", either part may be omitted; empty when both absent
	DeviceType string
	Browser    string
}

// Derive extracts visitor metadata from the given request headers.
func Derive(h http.Header) Metadata {
	ua := h.Get("User-Agent")
	return Metadata{
		IPAddress:  ClientIP(h),
		Location:   Location(h),
		DeviceType: DeviceType(ua),
		Browser:    Browser(ua),
	}
}

// ClientIP returns the best-effort client address. The X-Forwarded-For
// chain is scanned left to right for the first public address; if every
// entry is private the first entry is used as a fallback. When the chain
// is absent the platform real-IP headers are tried in priority order.
// Returns "" when nothing usable is present.
func ClientIP(h http.Header) string {
	if fwd := h.Get("X-Forwarded-For"); fwd != "" {
		entries := strings.Split(fwd, ",")
		first := ""
		for _, entry := range entries {
			ip := strings.TrimSpace(entry)
			if ip == "" {
				continue
			}
			if first == "" {
				first = ip
			}
			if isPublic(ip) {
				return ip
			}
		}
		if first != "" {
			return first
		}
	}

	for _, header := range realIPHeaders {
		if ip := strings.TrimSpace(h.Get(header)); ip != "" {
			return ip
		}
	}
	return ""
}

// isPublic reports whether s parses as an IP address outside the
// private/loopback/link-local ranges. Unparseable entries are treated
// as non-public so the scan keeps looking.
func isPublic(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
		return false
	}
	return true
}

// Location joins the city and country hint headers with ", ", omitting
// empty parts. Returns "" when both are absent.
func Location(h http.Header) string {
	for _, pair := range geoHeaders {
		city := strings.TrimSpace(h.Get(pair[0]))
		country := strings.TrimSpace(h.Get(pair[1]))
		switch {
		case city != "" && country != "":
			return city + ", " + country
		case city != "":
			return city
		case country != "":
			return country
		}
	}
	return ""
}

// DeviceType classifies the user agent as tablet, mobile or desktop.
// Tablet rules run before mobile rules since tablet agents often also
// carry mobile tokens. Returns unknown for an absent user agent.
func DeviceType(userAgent string) string {
	if userAgent == "" {
		return DeviceUnknown
	}
	ua := strings.ToLower(userAgent)
	for _, rule := range tabletRules {
		if strings.Contains(ua, rule.token) {
			return rule.label
		}
	}
	for _, rule := range mobileRules {
		if strings.Contains(ua, rule.token) {
			return rule.label
		}
	}
	return DeviceDesktop
}

// Browser assigns a best-guess browser label from the user agent using
// the ordered first-match-wins rule list.
func Browser(userAgent string) string {
	if userAgent == "" {
		return BrowserUnknown
	}
	ua := strings.ToLower(userAgent)
	for _, rule := range browserRules {
		if strings.Contains(ua, rule.token) {
			return rule.label
		}
	}
	return BrowserUnknown
}
