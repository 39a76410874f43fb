// Package debugsvc contains the debug HTTP API of NetMapper.
package debugsvc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/mapper"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/golibs/service"
)

// Service is the debug HTTP service of NetMapper.  It serves prometheus
// metrics, pprof, health check, refresh, and other endpoints.
type Service struct {
	logger   *slog.Logger
	mapper   MapperStatus
	refrHdlr *refreshHandler

	// mu protects the listeners of servers.
	mu      *sync.Mutex
	servers map[string]*server
}

// Config is the NetMapper debug HTTP service configuration structure.
type Config struct {
	// Logger is used for logging the operation of the service.  It must not be
	// nil.
	Logger *slog.Logger

	// Mapper is used to report the state of the snapshot manager.  If it is
	// nil, the mapper endpoint isn't added.
	Mapper MapperStatus

	// Refreshers are the entities that can be refreshed through the API.
	Refreshers Refreshers

	// RefreshTimeout is the timeout of each refresh requested through the API.
	// If it is zero, only the request context limits a refresh.
	RefreshTimeout time.Duration

	// APIAddr is the address of the health-check and API server.  If it is
	// empty, the server isn't started.
	APIAddr string

	// PprofAddr is the address of the pprof server.  If it is empty, the
	// server isn't started.
	PprofAddr string

	// PrometheusAddr is the address of the metrics server.  If it is empty,
	// the server isn't started.
	PrometheusAddr string
}

// MapperStatus is the source of the snapshot manager state.
type MapperStatus interface {
	// Status returns the current state of the manager.
	Status() (st mapper.Status)
}

// type check
var _ MapperStatus = (*mapper.Manager)(nil)

// handlerGroup is a semantic alias for names of handler groups.
type handlerGroup = string

// Valid handler groups.
const (
	handlerGroupAPI        handlerGroup = "api"
	handlerGroupPprof      handlerGroup = "pprof"
	handlerGroupPrometheus handlerGroup = "prometheus"
)

// New returns a new properly initialized *Service.  c must not be nil and must
// be valid.
func New(c *Config) (svc *Service) {
	svc = &Service{
		logger: c.Logger,
		mapper: c.Mapper,
		refrHdlr: &refreshHandler{
			refrs:   c.Refreshers,
			timeout: c.RefreshTimeout,
		},
		mu:      &sync.Mutex{},
		servers: map[string]*server{},
	}

	svc.addServer(c.PrometheusAddr, handlerGroupPrometheus)
	svc.addServer(c.PprofAddr, handlerGroupPprof)
	svc.addServer(c.APIAddr, handlerGroupAPI)

	svc.route(c)

	return svc
}

// server is a single server within the NetMapper debug HTTP service.
type server struct {
	http     *http.Server
	listener net.Listener
	name     string
}

// addServer adds the named handler group to the service, creating a new server
// listening on a different address if necessary.  If addr is empty, the server
// isn't created.
func (svc *Service) addServer(addr string, grp handlerGroup) {
	if addr == "" {
		return
	}

	srv, ok := svc.servers[addr]
	if ok {
		srv.name += ";" + grp

		return
	}

	svc.servers[addr] = &server{
		// #nosec G112 -- Do not set the timeouts, since debug/pprof and
		// similar debug APIs may be busy for a long time.
		http: &http.Server{
			Addr:    addr,
			Handler: http.NewServeMux(),
		},
		name: grp,
	}
}

// type check
var _ service.Interface = (*Service)(nil)

// Start implements the [service.Interface] interface for *Service.  It starts
// the listeners of all servers and serves the endpoints in separate goroutines.
func (svc *Service) Start(ctx context.Context) (err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	for _, addr := range svc.sortedAddrs() {
		srv := svc.servers[addr]
		srv.listener, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("starting server %s: listening on %s: %w", srv.name, addr, err)
		}

		go svc.serve(context.WithoutCancel(ctx), srv)
	}

	return nil
}

// serve serves the endpoints of srv and exits the program if there is an
// unexpected error.  It is intended to be used as a goroutine.
func (svc *Service) serve(ctx context.Context, srv *server) {
	defer slogutil.RecoverAndExit(ctx, svc.logger, osutil.ExitCodeFailure)

	svc.logger.InfoContext(ctx, "listening", "name", srv.name, "addr", srv.listener.Addr())

	err := srv.http.Serve(srv.listener)
	if !errors.Is(err, http.ErrServerClosed) {
		panic(fmt.Errorf("debugsvc: serving %s on %s: %w", srv.name, srv.http.Addr, err))
	}
}

// Shutdown implements the [service.Interface] interface for *Service.  It stops
// serving all endpoints.
func (svc *Service) Shutdown(ctx context.Context) (err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	srvNum := 0
	for _, addr := range svc.sortedAddrs() {
		srv := svc.servers[addr]
		err = srv.http.Shutdown(ctx)
		if err != nil {
			return fmt.Errorf("server %s shutdown: %w", srv.name, err)
		}

		srvNum++

		svc.logger.InfoContext(ctx, "server is shutdown", "name", srv.name)
	}

	svc.logger.InfoContext(ctx, "all servers shutdown", "num", srvNum)

	return nil
}

// LocalAddrs returns the addresses on which the servers are listening.  It must
// be called after a successful [Service.Start].
func (svc *Service) LocalAddrs() (addrs []net.Addr) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	for _, addr := range svc.sortedAddrs() {
		if l := svc.servers[addr].listener; l != nil {
			addrs = append(addrs, l.Addr())
		}
	}

	return addrs
}

// sortedAddrs returns the configured addresses of the servers in a stable
// order.
func (svc *Service) sortedAddrs() (addrs []string) {
	addrs = make([]string, 0, len(svc.servers))
	for addr := range svc.servers {
		addrs = append(addrs, addr)
	}

	slices.Sort(addrs)

	return addrs
}
