package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"runtime"
	"slices"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/debugsvc"
	"github.com/AdguardTeam/NetMapper/internal/dnssvc"
	"github.com/AdguardTeam/NetMapper/internal/errcoll"
	"github.com/AdguardTeam/NetMapper/internal/mapconf"
	"github.com/AdguardTeam/NetMapper/internal/mapper"
	"github.com/AdguardTeam/NetMapper/internal/metrics"
	"github.com/AdguardTeam/NetMapper/internal/websvc"
	"github.com/AdguardTeam/golibs/contextutil"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/AdguardTeam/golibs/service"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/prometheus/client_golang/prometheus"
)

// Constants that define debug identifiers for the debug HTTP service.
const (
	debugIDMapper      = "mapper"
	debugIDMapperForce = "mapper_force"
)

// builder contains the logic of configuring and combining together NetMapper
// entities.
//
// NOTE:  Keep method definitions in the rough order in which they are intended
// to be called.
type builder struct {
	// The fields below are initialized immediately on construction.  Keep them
	// sorted.

	baseLogger     *slog.Logger
	conf           *configuration
	debugRefrs     debugsvc.Refreshers
	env            *environment
	errColl        errcoll.Interface
	logger         *slog.Logger
	mtrcNamespace  string
	promRegisterer prometheus.Registerer
	rand           *rand.Rand
	sigHdlr        *service.SignalHandler

	// The fields below are initialized later by calling the builder's methods.
	// Keep them sorted.

	dnsSvc  *dnssvc.Service
	mapper  *mapper.Manager
	readers *mapper.ReaderPool
	webSvc  *websvc.Service
}

// builderConfig contains the initial configuration for the builder.
type builderConfig struct {
	// envs contains the environment variables for the builder.  It must be
	// valid and must not be nil.
	envs *environment

	// conf contains the configuration from the configuration file for the
	// builder.  It must be valid and must not be nil.
	conf *configuration

	// baseLogger is used to create loggers for other entities.  It should not
	// have a prefix and must not be nil.
	baseLogger *slog.Logger

	// errColl is used to collect errors in the entities.  It must not be nil.
	errColl errcoll.Interface
}

// shutdownTimeout is the default shutdown timeout for all services.
const shutdownTimeout = 5 * time.Second

// newBuilder returns a new properly initialized builder.  c must not be nil.
func newBuilder(c *builderConfig) (b *builder) {
	return &builder{
		baseLogger:     c.baseLogger,
		conf:           c.conf,
		debugRefrs:     debugsvc.Refreshers{},
		env:            c.envs,
		errColl:        c.errColl,
		logger:         c.baseLogger.With(slogutil.KeyPrefix, "builder"),
		mtrcNamespace:  metrics.Namespace,
		promRegisterer: prometheus.DefaultRegisterer,
		// #nosec G115 G404 -- The Unix epoch time is highly unlikely to be
		// negative and we don't need a real random for simple refresh time
		// randomization.
		rand: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		sigHdlr: service.NewSignalHandler(&service.SignalHandlerConfig{
			Logger:          c.baseLogger.With(slogutil.KeyPrefix, service.SignalHandlerPrefix),
			ShutdownTimeout: shutdownTimeout,
		}),
	}
}

// initCrashReporter initializes the crash output file, if it is enabled.
func (b *builder) initCrashReporter(ctx context.Context) (err error) {
	crashOut := newCrashOutput(b.env, b.baseLogger.With(slogutil.KeyPrefix, "crash_output"))

	err = crashOut.Start(ctx)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	b.sigHdlr.AddService(crashOut)

	b.logger.DebugContext(ctx, "initialized crash reporter", "enabled", crashOut != nil)

	return nil
}

// initMapper initializes the snapshot manager and the pool of its readers used
// by the front-ends, publishes the first snapshot, and starts the reloads.  It also adds the refreshers with IDs
// [debugIDMapper] and [debugIDMapperForce] to the debug refreshers.
func (b *builder) initMapper(ctx context.Context) (err error) {
	mtrc, err := metrics.NewMapper(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("registering mapper metrics: %w", err)
	}

	src := mapconf.NewFile(&mapconf.FileConfig{
		Logger:    b.baseLogger.With(slogutil.KeyPrefix, "mapconf"),
		Path:      b.env.DataPath,
		CachePath: b.env.DataCachePath,
		MaxSize:   b.env.DataMaxSize,
	})

	c := b.conf.Mapper
	b.mapper = mapper.New(&mapper.Config{
		Logger:            b.baseLogger.With(slogutil.KeyPrefix, "mapper"),
		Source:            src,
		Metrics:           mtrc,
		GracePollInterval: time.Duration(c.GracePollIvl),
	})

	timeout := time.Duration(c.RefreshTimeout)
	err = initialRefresh(ctx, b.mapper, timeout)
	if err != nil {
		return fmt.Errorf("mapper: initial refresh: %w", err)
	}

	// Randomize the reloads by up to 10 % so that the instances sharing the
	// data file don't stat it at the same time.
	refrIvl := time.Duration(c.RefreshIvl)
	sched := timeutil.NewRandomizedSchedule(
		timeutil.NewConstSchedule(refrIvl),
		b.rand,
		0,
		refrIvl/10,
	)
	refr := service.NewRefreshWorker(&service.RefreshWorkerConfig{
		ContextConstructor: contextutil.NewTimeoutConstructor(timeout),
		ErrorHandler: errcoll.NewRefreshErrorHandler(
			b.baseLogger.With(slogutil.KeyPrefix, "mapper_refresh"),
			b.errColl,
		),
		Refresher:         b.mapper,
		Schedule:          sched,
		RefreshOnShutdown: false,
	})
	err = refr.Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("starting mapper refresher: %w", err)
	}

	b.readers = mapper.NewReaderPool(b.mapper, runtime.GOMAXPROCS(0))

	b.sigHdlr.AddService(b.mapper)
	b.sigHdlr.AddService(b.readers)
	b.sigHdlr.AddService(refr)

	b.debugRefrs[debugIDMapper] = b.mapper
	b.debugRefrs[debugIDMapperForce] = b.mapper.ForceRefresher()

	b.logger.DebugContext(ctx, "initialized mapper", "generation", b.mapper.Current().Generation())

	return nil
}

// initialRefresh performs the first load of the data with the given timeout.
func initialRefresh(ctx context.Context, m *mapper.Manager, timeout time.Duration) (err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return m.Refresh(ctx)
}

// initWeb initializes and starts the HTTP lookup API, if it is enabled.
//
// [builder.initMapper] must be called before this method.
func (b *builder) initWeb(ctx context.Context) (err error) {
	c := b.conf.Web
	if c == nil {
		b.logger.DebugContext(ctx, "web disabled")

		return nil
	}

	mtrc, err := metrics.NewWebSvc(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("registering web service metrics: %w", err)
	}

	b.webSvc = websvc.New(c.toInternal(b.baseLogger, b.mapper, b.readers, mtrc))

	err = b.webSvc.Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("starting web service: %w", err)
	}

	b.sigHdlr.AddService(b.webSvc)

	b.logger.DebugContext(ctx, "initialized web", "addrs", b.webSvc.LocalAddrs())

	return nil
}

// initDNS initializes and starts the DNS lookup front-end, if it is enabled.
//
// [builder.initMapper] must be called before this method.
func (b *builder) initDNS(ctx context.Context) (err error) {
	c := b.conf.DNS
	if c == nil {
		b.logger.DebugContext(ctx, "dns disabled")

		return nil
	}

	mtrc, err := metrics.NewDNSSvc(b.mtrcNamespace, b.promRegisterer)
	if err != nil {
		return fmt.Errorf("registering dns service metrics: %w", err)
	}

	b.dnsSvc = dnssvc.New(c.toInternal(b.baseLogger, b.readers, b.errColl, mtrc))

	err = b.dnsSvc.Start(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("starting dns service: %w", err)
	}

	b.sigHdlr.AddService(b.dnsSvc)

	b.logger.DebugContext(ctx, "initialized dns", "addrs", b.dnsSvc.LocalAddrs())

	return nil
}

// mustInitDebugSvc initializes and starts the debug HTTP service.  It panics
// on errors.
//
// [builder.initMapper] must be called before this method.
func (b *builder) mustInitDebugSvc(ctx context.Context) {
	debugSvcConf := b.env.debugConf(b.debugRefrs, b.baseLogger)
	debugSvcConf.Mapper = b.mapper
	debugSvcConf.RefreshTimeout = time.Duration(b.conf.Mapper.RefreshTimeout)
	debugSvc := debugsvc.New(debugSvcConf)

	err := debugSvc.Start(context.WithoutCancel(ctx))
	if err != nil {
		panic(fmt.Errorf("starting debug service: %w", err))
	}

	b.sigHdlr.AddService(debugSvc)

	b.logger.DebugContext(
		ctx,
		"initialized debug",
		"refr_ids", slices.Sorted(maps.Keys(b.debugRefrs)),
	)
}

// handleSignals blocks and processes signals from the OS.  status is
// [osutil.ExitCodeSuccess] on success and [osutil.ExitCodeFailure] on error.
//
// handleSignals must not be called concurrently with any other methods.
func (b *builder) handleSignals(ctx context.Context) (code osutil.ExitCode) {
	return b.sigHdlr.Handle(ctx)
}
