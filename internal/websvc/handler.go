package websvc

import (
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/nmhttp"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil/httputil"
)

// Path pattern constants.
const (
	PathPatternLookup    = "/api/v1/lookup"
	PathPatternSnapshot  = "/api/v1/snapshot"
	PathPatternRobotsTxt = "/robots.txt"
)

// Route pattern constants.
const (
	routePatternLookup    = http.MethodGet + " " + PathPatternLookup
	routePatternSnapshot  = http.MethodGet + " " + PathPatternSnapshot
	routePatternRobotsTxt = http.MethodGet + " " + PathPatternRobotsTxt
)

// queryKeyIP is the query parameter containing the address to look up.
const queryKeyIP = "ip"

// newHandler returns the HTTP handler of the API.
func (svc *Service) newHandler() (h http.Handler) {
	mux := http.NewServeMux()
	mux.HandleFunc(routePatternLookup, svc.serveLookup)
	mux.HandleFunc(routePatternSnapshot, svc.serveSnapshot)
	mux.HandleFunc(routePatternRobotsTxt, svc.serveRobotsTxt)
	mux.HandleFunc("/", svc.serveNotFound)

	h = httputil.NewLogMiddleware(svc.logger, slogutil.LevelTrace).Wrap(mux)

	return httputil.ServerHeaderMiddleware(nmhttp.UserAgent()).Wrap(h)
}

// type check
var _ http.Handler = (*Service)(nil)

// ServeHTTP implements the [http.Handler] interface for *Service.
func (svc *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	svc.handler.ServeHTTP(w, r)
}

// lookupResponse describes the response to the GET /api/v1/lookup HTTP API.
type lookupResponse struct {
	IP         string `json:"ip"`
	Label      string `json:"label"`
	Generation uint64 `json:"generation"`
	Found      bool   `json:"found"`
}

// serveLookup handles the GET /api/v1/lookup endpoint.
func (svc *Service) serveLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if svc.limiter != nil && !svc.limiter.Allow() {
		svc.metrics.IncrementReqCount(ctx, RequestTypeRateLimited)
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)

		return
	}

	addr, err := addrFromQuery(r.URL.Query())
	if err != nil {
		svc.logger.DebugContext(ctx, "bad lookup request", slogutil.KeyError, err)
		svc.metrics.IncrementReqCount(ctx, RequestTypeBadRequest)
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	res := svc.mapper.Lookup(addr)
	svc.metrics.IncrementReqCount(ctx, RequestTypeLookup)

	nmhttp.WriteJSONResponse(ctx, svc.logger, w, http.StatusOK, &lookupResponse{
		IP:         addr.String(),
		Label:      res.Label,
		Generation: res.Generation,
		Found:      res.Found,
	})
}

// errNoIP is returned when the lookup request has no address.
const errNoIP errors.Error = "no ip"

// addrFromQuery returns the address to look up from the query.  The zone of
// the address, if any, is dropped.
func addrFromQuery(q url.Values) (addr netip.Addr, err error) {
	s := q.Get(queryKeyIP)
	if s == "" {
		return netip.Addr{}, errNoIP
	}

	addr, err = netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%s: %w", queryKeyIP, err)
	}

	return addr.WithZone(""), nil
}

// snapshotResponse describes the response to the GET /api/v1/snapshot HTTP
// API.
type snapshotResponse struct {
	Created    time.Time `json:"created"`
	Generation uint64    `json:"generation"`
	Entries    int       `json:"entries"`
	Labels     int       `json:"labels"`
	Nodes      int       `json:"nodes"`
}

// serveSnapshot handles the GET /api/v1/snapshot endpoint.
func (svc *Service) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	svc.metrics.IncrementReqCount(ctx, RequestTypeSnapshot)

	s := svc.snapshots.Current()
	if s == nil {
		http.Error(w, "no snapshot published", http.StatusServiceUnavailable)

		return
	}

	st := s.Stats()
	nmhttp.WriteJSONResponse(ctx, svc.logger, w, http.StatusOK, &snapshotResponse{
		Created:    st.Created.UTC(),
		Generation: st.Generation,
		Entries:    st.Entries,
		Labels:     st.Labels,
		Nodes:      st.Nodes,
	})
}

// serveRobotsTxt writes predefined disallow-all response.
func (svc *Service) serveRobotsTxt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	svc.metrics.IncrementReqCount(ctx, RequestTypeRobotsTxt)

	w.Header().Set(httphdr.ContentType, nmhttp.HdrValTextPlain)

	_, err := io.WriteString(w, nmhttp.RobotsDisallowAll)
	if err != nil {
		svc.logger.DebugContext(ctx, "writing robots.txt", slogutil.KeyError, err)
	}
}

// serveNotFound responds with a plain-text 404 page.
func (svc *Service) serveNotFound(w http.ResponseWriter, r *http.Request) {
	svc.metrics.IncrementReqCount(r.Context(), RequestTypeNotFound)

	http.NotFound(w, r)
}
