package debugsvc

import (
	"log/slog"
	"net/http"

	"github.com/AdguardTeam/NetMapper/internal/nmhttp"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil/httputil"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ErrDebugPanic is a default error for panic handler.
const ErrDebugPanic errors.Error = "debug panic"

// Path pattern constants.
const (
	PathPatternDebugAPIMapper  = "/debug/api/mapper"
	PathPatternDebugAPIRefresh = "/debug/api/refresh"
	PathPatternDebugPanic      = "/debug/panic"
	PathPatternHealthCheck     = "/health-check"
	PathPatternMetrics         = "/metrics"
)

// Route pattern constants.
const (
	routePatternDebugAPIMapper  = http.MethodGet + " " + PathPatternDebugAPIMapper
	routePatternDebugAPIRefresh = http.MethodPost + " " + PathPatternDebugAPIRefresh
	routePatternDebugPanic      = http.MethodPost + " " + PathPatternDebugPanic
	routePatternHealthCheck     = http.MethodGet + " " + PathPatternHealthCheck
	routePatternMetrics         = http.MethodGet + " " + PathPatternMetrics
)

// routeFunc adds the handlers of a handler group to the router using the
// logger of the group.
type routeFunc func(router httputil.Router, l *slog.Logger)

// route further initializes the svc.servers field by adding handlers and
// loggers to each server.
func (svc *Service) route(c *Config) {
	const hdlrGrpKey = "hdlr_grp"

	groups := []struct {
		route routeFunc
		addr  string
		name  handlerGroup
	}{{
		route: svc.routeAPI,
		addr:  c.APIAddr,
		name:  handlerGroupAPI,
	}, {
		route: routePprof,
		addr:  c.PprofAddr,
		name:  handlerGroupPprof,
	}, {
		route: routeMetrics,
		addr:  c.PrometheusAddr,
		name:  handlerGroupPrometheus,
	}}

	for _, g := range groups {
		srv := svc.servers[g.addr]
		if srv == nil {
			continue
		}

		g.route(srv.http.Handler.(httputil.Router), svc.logger.With(hdlrGrpKey, g.name))
	}

	srvHdrMw := httputil.ServerHeaderMiddleware(nmhttp.UserAgent())
	for _, srv := range svc.servers {
		l := svc.logger.With("name", srv.name)
		srv.http.ErrorLog = slog.NewLogLogger(l.Handler(), slog.LevelDebug)
		srv.http.Handler = srvHdrMw.Wrap(srv.http.Handler)
	}
}

// routeAPI adds the health check and the debug API handlers.
func (svc *Service) routeAPI(router httputil.Router, l *slog.Logger) {
	router.Handle(
		routePatternHealthCheck,
		httputil.NewLogMiddleware(l, slogutil.LevelTrace).Wrap(httputil.HealthCheckHandler),
	)

	infoLogMw := httputil.NewLogMiddleware(l, slog.LevelInfo)
	router.Handle(routePatternDebugAPIRefresh, infoLogMw.Wrap(svc.refrHdlr))
	router.Handle(routePatternDebugPanic, infoLogMw.Wrap(httputil.PanicHandler(ErrDebugPanic)))

	if svc.mapper != nil {
		debugLogMw := httputil.NewLogMiddleware(l, slog.LevelDebug)
		router.Handle(routePatternDebugAPIMapper, debugLogMw.Wrap(http.HandlerFunc(svc.serveMapper)))
	}
}

// serveMapper handles the GET /debug/api/mapper endpoint.
func (svc *Service) serveMapper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := svc.mapper.Status()

	nmhttp.WriteJSONResponse(ctx, slogutil.MustLoggerFromContext(ctx), w, http.StatusOK, st)
}

// routePprof adds the pprof handlers.
func routePprof(router httputil.Router, l *slog.Logger) {
	mw := httputil.NewLogMiddleware(l, slog.LevelDebug)

	httputil.RoutePprof(httputil.RouterFunc(func(pattern string, h http.Handler) {
		router.Handle(pattern, mw.Wrap(h))
	}))
}

// routeMetrics adds the prometheus metrics handler.
func routeMetrics(router httputil.Router, l *slog.Logger) {
	router.Handle(
		routePatternMetrics,
		httputil.NewLogMiddleware(l, slogutil.LevelTrace).Wrap(promhttp.Handler()),
	)
}
