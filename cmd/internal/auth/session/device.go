package session

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

const maxUserAgentLen = 512

// Device is the client context recorded with a session.
type Device struct {
	UserAgent string
	IP        net.IP
	// Label is a short human-readable description, e.g. "Firefox 120.0 / Linux x86_64".
	Label string
}

// DeviceFromRequest captures the client context of r. Forwarding headers are
// only honored when trustProxy is set.
func DeviceFromRequest(r *http.Request, trustProxy bool) Device {
	ua := strings.TrimSpace(r.UserAgent())
	if len(ua) > maxUserAgentLen {
		ua = ua[:maxUserAgentLen]
	}
	return Device{
		UserAgent: ua,
		IP:        ClientIP(r, trustProxy),
		Label:     deviceLabel(ua),
	}
}

func deviceLabel(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		name, _ := ua.Browser()
		return "bot: " + name
	}

	name, version := ua.Browser()
	browser := strings.TrimSpace(name + " " + version)
	os := ua.OS()

	switch {
	case browser == "" && os == "":
		return ""
	case os == "":
		return browser
	case browser == "":
		return os
	}
	label := browser + " / " + os
	if ua.Mobile() {
		label += " (mobile)"
	}
	return label
}

// ClientIP returns the address of the client that sent r.
func ClientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	for p := range strings.SplitSeq(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
