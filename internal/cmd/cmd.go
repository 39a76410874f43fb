// Package cmd is the NetMapper entry point.  It contains the on-disk
// configuration file utilities, signal processing logic, the validation
// command, and so on.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	"github.com/AdguardTeam/NetMapper/internal/errcoll"
	"github.com/AdguardTeam/NetMapper/internal/mapconf"
	"github.com/AdguardTeam/NetMapper/internal/metrics"
	"github.com/AdguardTeam/NetMapper/internal/snapshot"
	"github.com/AdguardTeam/NetMapper/internal/version"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/c2h5oh/datasize"
	"golang.org/x/sys/unix"
)

// cmdValidate is the name of the command that validates a data file.
const cmdValidate = "validate"

// Main is the entry point of application.
func Main() {
	if len(os.Args) > 1 && os.Args[1] == cmdValidate {
		os.Exit(mainValidate(os.Args[2:]))
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)

	envs := errors.Must(parseEnvironment())
	errors.Check(envs.Validate())

	baseLogger := newBaseLogger(envs)

	mainLogger := baseLogger.With(slogutil.KeyPrefix, "main")

	// Signal service startup now that we have the logs set up.
	branch := version.Branch()
	commitTime := version.CommitTime()
	buildVersion := version.Version()
	revision := version.Revision()
	mainLogger.InfoContext(
		ctx,
		"netmapper starting",
		"version", buildVersion,
		"revision", revision,
		"branch", branch,
		"commit_time", commitTime,
	)

	errColl := errors.Must(envs.buildErrColl(baseLogger))

	defer reportPanics(ctx, errColl, mainLogger)

	setMaxThreads(ctx, mainLogger, envs.MaxThreads)

	c := errors.Must(parseConfig(envs.ConfPath))

	errors.Check(c.Validate())

	b := newBuilder(&builderConfig{
		envs:       envs,
		conf:       c,
		baseLogger: baseLogger,
		errColl:    errColl,
	})

	errors.Check(b.initCrashReporter(ctx))

	errors.Check(b.initMapper(ctx))

	errors.Check(b.initWeb(ctx))

	errors.Check(b.initDNS(ctx))

	b.mustInitDebugSvc(ctx)

	// Signal that the server is started.
	errors.Check(metrics.SetUpGauge(
		b.promRegisterer,
		buildVersion,
		branch,
		commitTime,
		revision,
		runtime.Version(),
	))

	// Unregister the signal behavior for ctx.
	stop()
	ctx = context.WithoutCancel(ctx)

	os.Exit(b.handleSignals(ctx))
}

// newBaseLogger returns the logger without a prefix configured from envs.
// envs must be valid.
func newBaseLogger(envs *environment) (l *slog.Logger) {
	lvl := errors.Must(slogutil.VerbosityToLevel(envs.Verbosity))

	return slogutil.New(&slogutil.Config{
		// Don't use [slogutil.NewFormat] here, because the value is validated.
		Format:       slogutil.Format(envs.LogFormat),
		AddTimestamp: bool(envs.LogTimestamp),
		Level:        lvl,
	})
}

// reportPanics reports the panic, if any, to the error collector and logs it.
// After that it panics again.  It is intended to be used in a defer in Main.
func reportPanics(ctx context.Context, errColl errcoll.Interface, l *slog.Logger) {
	v := recover()
	if v == nil {
		return
	}

	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("non-error panic: %v", v)
	}

	errcoll.Collect(ctx, errColl, l, "panic in main", err)

	if fc, isFlush := errColl.(errcoll.ErrorFlushCollector); isFlush {
		fc.Flush()
	}

	panic(v)
}

// mainValidate is the entry point of the validation command.  args are the
// arguments after the command name.
func mainValidate(args []string) (code osutil.ExitCode) {
	if len(args) != 1 {
		_, _ = fmt.Fprintf(os.Stderr, "usage: %s %s FILE\n", os.Args[0], cmdValidate)

		return osutil.ExitCodeFailure
	}

	envs, err := parseEnvironment()
	if err == nil {
		err = envs.Validate()
	}

	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "environment: %s\n", err)

		return osutil.ExitCodeFailure
	}

	ctx := context.Background()
	l := newBaseLogger(envs).With(slogutil.KeyPrefix, cmdValidate)
	err = validateFile(ctx, l, os.Stdout, args[0], envs.DataMaxSize)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%s: %s\n", args[0], err)

		return osutil.ExitCodeFailure
	}

	return osutil.ExitCodeSuccess
}

// validateFile loads, validates, and compiles the data file at path and writes
// the summary of the result to w.
func validateFile(
	ctx context.Context,
	l *slog.Logger,
	w io.Writer,
	path string,
	maxSize datasize.ByteSize,
) (err error) {
	entries, err := mapconf.LoadFile(path, maxSize)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	snap, err := snapshot.Build(ctx, l, 1, entries)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	st := snap.Stats()
	_, err = fmt.Fprintf(
		w,
		"%s: ok\nnetworks: %d\nlabels: %d\nnodes: %d\n",
		path,
		st.Entries,
		st.Labels,
		st.Nodes,
	)

	return err
}
