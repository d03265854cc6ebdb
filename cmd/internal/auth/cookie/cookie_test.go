package cookie

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertHardened(t *testing.T, header string) {
	t.Helper()
	assert.Contains(t, header, "HttpOnly")
	assert.Contains(t, header, "Secure")
	assert.Contains(t, header, "SameSite=Strict")
}

func TestEncode_AlwaysHardened(t *testing.T) {
	tr := DefaultTransport()

	for _, name := range []string{AccessCookie, RefreshCookie, SessionCookie} {
		h := tr.Encode(name, "v1")
		assert.True(t, strings.HasPrefix(h, name+"=v1"), h)
		assert.Contains(t, h, "Path=/")
		assertHardened(t, h)
	}

	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	h := tr.EncodeUntil(AccessCookie, "v2", exp)
	assertHardened(t, h)
	assert.Contains(t, h, "Expires=Wed, 02 Jan 2030 03:04:05 GMT")
}

func TestEncode_Scope(t *testing.T) {
	tr := Transport{Path: "/api", Domain: "example.com"}
	h := tr.Encode(SessionCookie, "abc")
	assert.Contains(t, h, "Path=/api")
	assert.Contains(t, h, "Domain=example.com")
}

func TestExpire(t *testing.T) {
	h := DefaultTransport().Expire(RefreshCookie)
	assert.True(t, strings.HasPrefix(h, "refresh_token=;"), h)
	assert.Contains(t, h, "Max-Age=0")
	assertHardened(t, h)
}

func TestDecode(t *testing.T) {
	tr := DefaultTransport()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "sid"})
	r.AddCookie(&http.Cookie{Name: AccessCookie, Value: ""})

	v, err := tr.Decode(r, SessionCookie)
	require.NoError(t, err)
	assert.Equal(t, "sid", v)

	_, err = tr.Decode(r, AccessCookie)
	require.ErrorIs(t, err, ErrMissingCookie)

	_, err = tr.Decode(r, RefreshCookie)
	require.ErrorIs(t, err, ErrMissingCookie)
}

func TestRoundTripThroughRecorder(t *testing.T) {
	tr := DefaultTransport()
	rec := httptest.NewRecorder()
	Set(rec, []string{tr.Encode(AccessCookie, "tok"), tr.Encode(SessionCookie, "sid")})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}

	v, err := tr.Decode(r, AccessCookie)
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
}

func TestTransportFromEnv(t *testing.T) {
	t.Setenv("AUTH_COOKIE_PATH", "/auth")
	t.Setenv("AUTH_COOKIE_DOMAIN", "example.org")
	assert.Equal(t, Transport{Path: "/auth", Domain: "example.org"}, TransportFromEnv())
}
