// Package dnssvc contains the DNS front-end of NetMapper, which answers the TXT
// queries for the reversed addresses under a zone with their labels.
package dnssvc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/errcoll"
	"github.com/AdguardTeam/NetMapper/internal/mapper"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/miekg/dns"
)

// Service is the DNS service of NetMapper.
type Service struct {
	logger  *slog.Logger
	mapper  mapper.Interface
	errColl errcoll.Interface
	metrics Metrics

	zone    string
	addrs   []netip.AddrPort
	timeout time.Duration
	ttl     uint32

	// mu protects servers.
	mu      *sync.Mutex
	servers []*dns.Server
}

// New returns a new properly initialized *Service.  c must not be nil and must
// be valid.
func New(c *Config) (svc *Service) {
	return &Service{
		logger:  c.Logger,
		mapper:  c.Mapper,
		errColl: c.ErrColl,
		metrics: c.Metrics,
		zone:    strings.ToLower(dns.Fqdn(c.Zone)),
		addrs:   c.Addresses,
		timeout: c.Timeout,
		ttl:     uint32(c.TTL.Seconds()),
		mu:      &sync.Mutex{},
	}
}

// type check
var _ service.Interface = (*Service)(nil)

// Start implements the [service.Interface] interface for *Service.  It opens
// the UDP and TCP listeners and serves the queries in separate goroutines.
func (svc *Service) Start(ctx context.Context) (err error) {
	defer func() { err = errors.Annotate(err, "starting dns service: %w") }()

	svc.mu.Lock()
	defer svc.mu.Unlock()

	for _, addr := range svc.addrs {
		var conn *net.UDPConn
		conn, err = net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
		if err != nil {
			return fmt.Errorf("listening udp on %s: %w", addr, err)
		}

		err = svc.startServer(ctx, &dns.Server{
			PacketConn: conn,
			Net:        "udp",
		})
		if err != nil {
			return err
		}

		var l *net.TCPListener
		l, err = net.ListenTCP("tcp", net.TCPAddrFromAddrPort(addr))
		if err != nil {
			return fmt.Errorf("listening tcp on %s: %w", addr, err)
		}

		err = svc.startServer(ctx, &dns.Server{
			Listener: l,
			Net:      "tcp",
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// startServer starts srv in a separate goroutine and waits until it is ready to
// serve.  svc.mu must be locked.
func (svc *Service) startServer(ctx context.Context, srv *dns.Server) (err error) {
	started := make(chan struct{})

	srv.Handler = svc
	srv.ReadTimeout = svc.timeout
	srv.WriteTimeout = svc.timeout
	srv.NotifyStartedFunc = func() { close(started) }

	svc.servers = append(svc.servers, srv)

	go svc.serve(context.WithoutCancel(ctx), srv)

	select {
	case <-started:
		svc.logger.InfoContext(ctx, "started", "net", srv.Net, "addr", serverAddr(srv))

		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s server: %w", srv.Net, context.Cause(ctx))
	}
}

// serve serves the queries on srv until it is shut down.  It is intended to be
// used as a goroutine.
func (svc *Service) serve(ctx context.Context, srv *dns.Server) {
	defer slogutil.RecoverAndLog(ctx, svc.logger)

	err := srv.ActivateAndServe()
	if err != nil {
		errcoll.Collect(ctx, svc.errColl, svc.logger, "serving dns", err)
	}
}

// Shutdown implements the [service.Interface] interface for *Service.
func (svc *Service) Shutdown(ctx context.Context) (err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var errs []error
	for _, srv := range svc.servers {
		err = srv.ShutdownContext(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("shutting down %s server: %w", srv.Net, err))
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		return fmt.Errorf("shutting down dns service: %w", err)
	}

	svc.logger.InfoContext(ctx, "shut down", "servers", len(svc.servers))
	svc.servers = nil

	return nil
}

// LocalAddrs returns the addresses on which the service is listening.  It
// must be called after a successful [Service.Start].
func (svc *Service) LocalAddrs() (addrs []net.Addr) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	for _, srv := range svc.servers {
		if addr := serverAddr(srv); addr != nil {
			addrs = append(addrs, addr)
		}
	}

	return addrs
}

// serverAddr returns the local address of srv or nil if it has no listener.
func serverAddr(srv *dns.Server) (addr net.Addr) {
	switch {
	case srv.PacketConn != nil:
		return srv.PacketConn.LocalAddr()
	case srv.Listener != nil:
		return srv.Listener.Addr()
	default:
		return nil
	}
}
