package websvc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil/urlutil"
)

// server contains an *http.Server as well as the listener and the data
// associated with it.
type server struct {
	// mu protects http, logger, listener, and url.
	mu       *sync.Mutex
	http     *http.Server
	logger   *slog.Logger
	listener net.Listener
	url      *url.URL

	initialAddr netip.AddrPort
}

// loggerKeyServer is the key used by [server] to identify itself.
const loggerKeyServer = "server"

// newServer returns a *server that is ready to serve HTTP queries on addr.
// The TCP listener is not started.
func newServer(
	baseLogger *slog.Logger,
	h http.Handler,
	addr netip.AddrPort,
	timeout time.Duration,
) (s *server) {
	u := &url.URL{
		Scheme: urlutil.SchemeHTTP,
		Host:   addr.String(),
	}

	logger := baseLogger.With(loggerKeyServer, u)

	return &server{
		mu: &sync.Mutex{},
		http: &http.Server{
			Handler:           h,
			ReadTimeout:       timeout,
			ReadHeaderTimeout: timeout,
			WriteTimeout:      timeout,
			IdleTimeout:       timeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelDebug),
		},
		logger: logger,
		url:    u,

		initialAddr: addr,
	}
}

// localAddr returns the local address of the server if the server has started
// listening; otherwise, it returns nil.
func (s *server) localAddr() (addr net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l := s.listener; l != nil {
		return l.Addr()
	}

	return nil
}

// listen starts the TCP listener of s.  baseLogger is used as a base logger
// for s.
func (s *server) listen(baseLogger *slog.Logger) (err error) {
	l, err := net.ListenTCP("tcp", net.TCPAddrFromAddrPort(s.initialAddr))
	if err != nil {
		return fmt.Errorf("listening tcp on %s: %w", s.initialAddr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.listener = l

	// Reassign the address in case the port was zero.
	s.url.Host = l.Addr().String()
	s.logger = baseLogger.With(loggerKeyServer, s.url)
	s.http.ErrorLog = slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug)

	return nil
}

// serve serves HTTP queries on the listener of s, which must be started.  If
// s fails to serve with anything other than [http.ErrServerClosed], it causes
// an unhandled panic.  It is intended to be used as a goroutine.
func (s *server) serve(ctx context.Context) {
	s.mu.Lock()
	l, logger := s.listener, s.logger
	s.mu.Unlock()

	logger.InfoContext(ctx, "starting")
	err := s.http.Serve(l)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorContext(ctx, "serving", slogutil.KeyError, err)

		panic(fmt.Errorf("websvc: serving: %w", err))
	}
}

// shutdown shuts s down.
func (s *server) shutdown(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	err = s.http.Shutdown(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("shutting down server %s: %w", s.url, err))
	}

	// Close the listener separately, as it might not have been closed if the
	// context has been canceled.
	if l := s.listener; l != nil {
		err = l.Close()
		if err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("closing listener for server %s: %w", s.url, err))
		}
	}

	return errors.Join(errs...)
}
