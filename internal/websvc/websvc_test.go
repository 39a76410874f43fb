package websvc_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"testing"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/mapper"
	"github.com/AdguardTeam/NetMapper/internal/nmhttp"
	"github.com/AdguardTeam/NetMapper/internal/nmtest"
	"github.com/AdguardTeam/NetMapper/internal/snapshot"
	"github.com/AdguardTeam/NetMapper/internal/websvc"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestMain(m *testing.M) {
	testutil.DiscardLogOutput(m)
}

// newConfig returns a new valid *websvc.Config that uses a manager with the
// common test entries and doesn't listen on any address.
func newConfig(t *testing.T) (c *websvc.Config) {
	t.Helper()

	m := nmtest.NewManager(t)

	return &websvc.Config{
		Logger:    slogutil.NewDiscardLogger(),
		Mapper:    m,
		Snapshots: m,
		Metrics:   websvc.EmptyMetrics{},
		Timeout:   nmtest.Timeout,
	}
}

// serve performs a GET request to svc with the path and query and returns the
// response recorder.
func serve(t *testing.T, svc *websvc.Service, path string, q url.Values) (rw *httptest.ResponseRecorder) {
	t.Helper()

	u := &url.URL{
		Path:     path,
		RawQuery: q.Encode(),
	}

	r := httptest.NewRequest(http.MethodGet, u.String(), nil)
	rw = httptest.NewRecorder()
	svc.ServeHTTP(rw, r)

	return rw
}

func TestService_ServeHTTP_lookup(t *testing.T) {
	svc := websvc.New(newConfig(t))

	testCases := []struct {
		name     string
		ip       string
		wantBody string
		wantCode int
	}{{
		name:     "ipv4",
		ip:       nmtest.IPv4B.String(),
		wantBody: `{"ip":"10.1.2.3","label":"label-b","generation":1,"found":true}`,
		wantCode: http.StatusOK,
	}, {
		name:     "ipv4_enclosing",
		ip:       nmtest.IPv4A.String(),
		wantBody: `{"ip":"10.2.2.2","label":"label-a","generation":1,"found":true}`,
		wantCode: http.StatusOK,
	}, {
		name:     "ipv6",
		ip:       nmtest.IPv6A.String(),
		wantBody: `{"ip":"2001:db8::1","label":"label-a","generation":1,"found":true}`,
		wantCode: http.StatusOK,
	}, {
		name:     "mapped",
		ip:       "::ffff:10.1.2.3",
		wantBody: `{"ip":"::ffff:10.1.2.3","label":"label-b","generation":1,"found":true}`,
		wantCode: http.StatusOK,
	}, {
		name:     "zone",
		ip:       "2001:db8::1%eth0",
		wantBody: `{"ip":"2001:db8::1","label":"label-a","generation":1,"found":true}`,
		wantCode: http.StatusOK,
	}, {
		name:     "not_found",
		ip:       nmtest.IPv4None.String(),
		wantBody: `{"ip":"8.8.8.8","label":"","generation":1,"found":false}`,
		wantCode: http.StatusOK,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rw := serve(t, svc, websvc.PathPatternLookup, url.Values{"ip": {tc.ip}})

			assert.Equal(t, tc.wantCode, rw.Code)
			assert.Equal(t, nmhttp.HdrValApplicationJSON, rw.Header().Get(httphdr.ContentType))
			assert.JSONEq(t, tc.wantBody, rw.Body.String())
			assert.Equal(t, nmhttp.UserAgent(), rw.Header().Get(httphdr.Server))
		})
	}
}

func TestService_ServeHTTP_lookupBadRequest(t *testing.T) {
	svc := websvc.New(newConfig(t))

	testCases := []struct {
		query    url.Values
		name     string
		wantBody string
	}{{
		query:    url.Values{"ip": {"bad"}},
		name:     "bad_ip",
		wantBody: `ip: ParseAddr("bad"): unable to parse IP` + "\n",
	}, {
		query:    url.Values{},
		name:     "no_ip",
		wantBody: "no ip\n",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rw := serve(t, svc, websvc.PathPatternLookup, tc.query)

			assert.Equal(t, http.StatusBadRequest, rw.Code)
			assert.Equal(t, tc.wantBody, rw.Body.String())
		})
	}
}

func TestService_ServeHTTP_rateLimit(t *testing.T) {
	c := newConfig(t)
	c.RateLimit = rate.Every(time.Hour)
	c.RateBurst = 1

	svc := websvc.New(c)
	q := url.Values{"ip": {nmtest.IPv4A.String()}}

	rw := serve(t, svc, websvc.PathPatternLookup, q)
	assert.Equal(t, http.StatusOK, rw.Code)

	rw = serve(t, svc, websvc.PathPatternLookup, q)
	assert.Equal(t, http.StatusTooManyRequests, rw.Code)

	// Only lookups are rate limited.
	rw = serve(t, svc, websvc.PathPatternSnapshot, nil)
	assert.Equal(t, http.StatusOK, rw.Code)
}

func TestService_ServeHTTP_snapshot(t *testing.T) {
	c := newConfig(t)
	svc := websvc.New(c)

	rw := serve(t, svc, websvc.PathPatternSnapshot, nil)
	require.Equal(t, http.StatusOK, rw.Code)

	st := c.Snapshots.Current().Stats()
	wantBody := fmt.Sprintf(
		`{"created":%q,"generation":1,"entries":7,"labels":2,"nodes":%d}`,
		st.Created.UTC().Format(time.RFC3339Nano),
		st.Nodes,
	)

	assert.JSONEq(t, wantBody, rw.Body.String())
}

func TestService_ServeHTTP_noSnapshot(t *testing.T) {
	svc := websvc.New(&websvc.Config{
		Logger: slogutil.NewDiscardLogger(),
		Mapper: &nmtest.Mapper{
			OnLookup: func(_ netip.Addr) (res mapper.Result) {
				return mapper.Result{}
			},
		},
		Snapshots: &nmtest.SnapshotSource{
			OnCurrent: func() (s *snapshot.Snapshot) {
				return nil
			},
		},
		Metrics: websvc.EmptyMetrics{},
	})

	rw := serve(t, svc, websvc.PathPatternSnapshot, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rw.Code)

	rw = serve(t, svc, websvc.PathPatternLookup, url.Values{"ip": {nmtest.IPv4A.String()}})
	assert.Equal(t, http.StatusOK, rw.Code)
	assert.JSONEq(
		t,
		`{"ip":"10.2.2.2","label":"","generation":0,"found":false}`,
		rw.Body.String(),
	)
}

func TestService_ServeHTTP_other(t *testing.T) {
	svc := websvc.New(newConfig(t))

	rw := serve(t, svc, websvc.PathPatternRobotsTxt, nil)
	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, nmhttp.RobotsDisallowAll, rw.Body.String())

	rw = serve(t, svc, "/other", nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)
}

func TestService_Start(t *testing.T) {
	c := newConfig(t)
	c.Addresses = []netip.AddrPort{netip.MustParseAddrPort("127.0.0.1:0")}

	svc := websvc.New(c)

	err := svc.Start(testutil.ContextWithTimeout(t, nmtest.Timeout))
	require.NoError(t, err)

	testutil.CleanupAndRequireSuccess(t, func() (err error) {
		return svc.Shutdown(testutil.ContextWithTimeout(t, nmtest.Timeout))
	})

	addrs := svc.LocalAddrs()
	require.Len(t, addrs, 1)

	u := &url.URL{
		Scheme:   "http",
		Host:     addrs[0].String(),
		Path:     websvc.PathPatternLookup,
		RawQuery: url.Values{"ip": {nmtest.IPv4B.String()}}.Encode(),
	}

	client := &http.Client{
		Timeout: nmtest.Timeout,
	}

	resp, err := client.Get(u.String())
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(
		t,
		`{"ip":"10.1.2.3","label":"label-b","generation":1,"found":true}`,
		string(body),
	)
}
