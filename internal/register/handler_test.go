package register

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"regdns/internal/registry"
)

type fixedSource struct {
	local netip.Addr
	err   error
}

func (f fixedSource) Effective(remote netip.Addr) (netip.Addr, error) {
	if remote.IsLoopback() {
		return f.local, f.err
	}
	return remote, nil
}

func newTestHandler(t *testing.T, src AddressSource) (*Handler, *registry.Table) {
	t.Helper()
	table := registry.NewTable()
	return NewHandler(table, src, zaptest.NewLogger(t)), table
}

func postRegister(h http.Handler, remote, domain string) *httptest.ResponseRecorder {
	form := url.Values{"domain": {domain}}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegister_UsesRemoteAddress(t *testing.T) {
	h, table := newTestHandler(t, fixedSource{})

	rec := postRegister(h, "198.51.100.20:40000", "MySite")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Registered: mysite -> 198.51.100.20")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))

	got, ok := table.Lookup("mysite")
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("198.51.100.20"), got)
}

func TestRegister_LoopbackUsesDetectedAddress(t *testing.T) {
	h, table := newTestHandler(t, fixedSource{local: netip.MustParseAddr("192.168.1.50")})

	rec := postRegister(h, "127.0.0.1:5555", "laptop")
	require.Equal(t, http.StatusOK, rec.Code)

	got, ok := table.Lookup("laptop")
	require.True(t, ok)
	assert.Equal(t, "192.168.1.50", got.String())
}

func TestRegister_LastWriteWins(t *testing.T) {
	h, table := newTestHandler(t, fixedSource{})

	require.Equal(t, http.StatusOK, postRegister(h, "10.0.0.1:1", "mysite").Code)
	require.Equal(t, http.StatusOK, postRegister(h, "10.0.0.2:1", "MYSITE").Code)

	got, _ := table.Lookup("mysite")
	assert.Equal(t, "10.0.0.2", got.String())
	assert.Len(t, table.Enumerate(), 1)
}

func TestRegister_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		src    fixedSource
		remote string
		domain string
	}{
		{name: "empty domain", remote: "10.0.0.1:1", domain: ""},
		{name: "blank domain", remote: "10.0.0.1:1", domain: "   "},
		{name: "dotted domain", remote: "10.0.0.1:1", domain: "my.site"},
		{name: "leading hyphen", remote: "10.0.0.1:1", domain: "-site"},
		{name: "label too long", remote: "10.0.0.1:1", domain: strings.Repeat("a", 64)},
		{name: "ipv6 client", remote: "[2001:db8::1]:1", domain: "mysite"},
		{name: "detection fails", src: fixedSource{err: errors.New("no route")}, remote: "127.0.0.1:1", domain: "mysite"},
		{name: "unparseable remote", remote: "pipe", domain: "mysite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, table := newTestHandler(t, tt.src)
			rec := postRegister(h, tt.remote, tt.domain)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, table.Len())
		})
	}
}

func TestGetIP(t *testing.T) {
	h, _ := newTestHandler(t, fixedSource{local: netip.MustParseAddr("192.168.1.50")})

	req := httptest.NewRequest(http.MethodGet, "/getip", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "192.168.1.50", rec.Body.String())
}

func TestListAndRecords(t *testing.T) {
	h, table := newTestHandler(t, fixedSource{})
	require.NoError(t, table.Upsert("alpha", netip.MustParseAddr("10.0.0.1")))
	require.NoError(t, table.Upsert("bravo", netip.MustParseAddr("10.0.0.2")))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Registered Domains:\nalpha -> 10.0.0.1\nbravo -> 10.0.0.2\n", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var records []registry.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Equal(t, table.Enumerate(), records)
}

func TestRoutes(t *testing.T) {
	h, _ := newTestHandler(t, fixedSource{})

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodOptions, "/register", http.StatusOK},
		{http.MethodOptions, "/anything", http.StatusOK},
		{http.MethodGet, "/register", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodPost, "/nope", http.StatusNotFound},
		{http.MethodDelete, "/register", http.StatusMethodNotAllowed},
		{http.MethodPost, "/list", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestValidateLabel(t *testing.T) {
	got, err := ValidateLabel("  My-Site1 ")
	require.NoError(t, err)
	assert.Equal(t, "my-site1", got)

	for _, bad := range []string{"", "a.b", "site-", "under_score", "ünï"} {
		_, err := ValidateLabel(bad)
		assert.ErrorIs(t, err, ErrInvalidLabel, bad)
	}
}
