// Package websvc contains the NetMapper web service, which serves the lookup
// HTTP API.
package websvc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/AdguardTeam/NetMapper/internal/mapper"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/service"
	"golang.org/x/time/rate"
)

// Service is the NetMapper web service.
type Service struct {
	logger    *slog.Logger
	mapper    mapper.Interface
	snapshots SnapshotSource
	metrics   Metrics
	handler   http.Handler

	// limiter is nil if the lookups are not rate limited.
	limiter *rate.Limiter

	servers []*server
}

// New returns a new properly initialized *Service.  c must not be nil and must
// be valid.
func New(c *Config) (svc *Service) {
	svc = &Service{
		logger:    c.Logger,
		mapper:    c.Mapper,
		snapshots: c.Snapshots,
		metrics:   c.Metrics,
	}

	if c.RateLimit != 0 {
		svc.limiter = rate.NewLimiter(c.RateLimit, c.RateBurst)
	}

	svc.handler = svc.newHandler()

	for _, addr := range c.Addresses {
		svc.servers = append(svc.servers, newServer(c.Logger, svc, addr, c.Timeout))
	}

	return svc
}

// type check
var _ service.Interface = (*Service)(nil)

// Start implements the [service.Interface] interface for *Service.  It starts
// the listeners and serves the HTTP API in separate goroutines.
func (svc *Service) Start(ctx context.Context) (err error) {
	for _, srv := range svc.servers {
		err = srv.listen(svc.logger)
		if err != nil {
			return fmt.Errorf("starting web service: %w", err)
		}

		go srv.serve(context.WithoutCancel(ctx))
	}

	return nil
}

// Shutdown implements the [service.Interface] interface for *Service.
func (svc *Service) Shutdown(ctx context.Context) (err error) {
	var errs []error
	for _, srv := range svc.servers {
		err = srv.shutdown(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		return fmt.Errorf("shutting down web service: %w", err)
	}

	svc.logger.InfoContext(ctx, "shut down", "servers", len(svc.servers))

	return nil
}

// LocalAddrs returns the addresses on which the service is listening.  It
// must be called after a successful [Service.Start].
func (svc *Service) LocalAddrs() (addrs []net.Addr) {
	for _, srv := range svc.servers {
		if addr := srv.localAddr(); addr != nil {
			addrs = append(addrs, addr)
		}
	}

	return addrs
}
