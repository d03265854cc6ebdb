package session

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/auth/login", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	r.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0")
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	dev := DeviceFromRequest(r, false)
	assert.Equal(t, "192.0.2.10", dev.IP.String())
	assert.Contains(t, dev.Label, "Firefox")
	assert.Contains(t, dev.Label, "Linux")

	dev = DeviceFromRequest(r, true)
	assert.Equal(t, "203.0.113.7", dev.IP.String())
}

func TestDeviceFromRequest_Empty(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "garbage"
	r.Header.Del("User-Agent")

	dev := DeviceFromRequest(r, true)
	assert.Nil(t, dev.IP)
	assert.Empty(t, dev.Label)
	assert.Empty(t, dev.UserAgent)
}

func TestDeviceFromRequest_TruncatesUserAgent(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("User-Agent", strings.Repeat("x", 2000))

	assert.Len(t, DeviceFromRequest(r, false).UserAgent, maxUserAgentLen)
}

func TestClientIP_RealIPFallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Real-IP", "198.51.100.3")

	assert.Equal(t, "198.51.100.3", ClientIP(r, true).String())
	assert.Equal(t, "192.0.2.1", ClientIP(r, false).String())
}
