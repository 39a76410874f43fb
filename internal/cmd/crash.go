package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/service"
)

// crashOutput is a service that redirects the Go runtime crash output, such as
// unrecovered panics and fatal errors, into a file.  Empty files are removed on
// shutdown.
type crashOutput struct {
	logger *slog.Logger
	file   *os.File

	dir     string
	pattern string
}

// newCrashOutput returns a new crash output service using the crash-output
// properties of envs.  If the crash output is disabled, svc is nil.  envs must
// be valid.
func newCrashOutput(envs *environment, l *slog.Logger) (svc *crashOutput) {
	if !envs.CrashOutputEnabled {
		return nil
	}

	return &crashOutput{
		logger: l,
		dir:    envs.CrashOutputDir,
		pattern: fmt.Sprintf(
			"%s_%s_%07d_*.txt",
			envs.CrashOutputPrefix,
			time.Now().Format("20060102150405"),
			os.Getpid(),
		),
	}
}

// type check
var _ service.Interface = (*crashOutput)(nil)

// Start implements the [service.Interface] interface for *crashOutput.  If c is
// nil, err is nil.
func (c *crashOutput) Start(ctx context.Context) (err error) {
	if c == nil {
		return nil
	}

	defer func() { err = errors.Annotate(err, "starting crash output: %w") }()

	c.file, err = os.CreateTemp(c.dir, c.pattern)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is, and
		// there is already errors.Annotate here.
		return err
	}

	c.logger = c.logger.With("path", c.file.Name())

	err = debug.SetCrashOutput(c.file, debug.CrashOptions{})
	if err != nil {
		return fmt.Errorf("setting: %w", err)
	}

	c.logger.InfoContext(ctx, "crash output set")

	return nil
}

// Shutdown implements the [service.Interface] interface for *crashOutput.  If c
// is nil, err is nil.
func (c *crashOutput) Shutdown(ctx context.Context) (err error) {
	if c == nil {
		return nil
	}

	defer func() { err = errors.Annotate(err, "closing crash output: %w") }()

	fi, err := c.file.Stat()
	if err != nil {
		return fmt.Errorf("getting file info: %w", err)
	}

	name := c.file.Name()
	err = c.file.Close()
	if err != nil {
		return fmt.Errorf("closing file: %w", err)
	}

	if fi.Size() > 0 {
		c.logger.WarnContext(ctx, "crash output is not empty; keeping")

		return nil
	}

	c.logger.DebugContext(ctx, "crash output is empty; removing")

	return os.Remove(name)
}
