package cmd

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/debug"
)

// setMaxThreads sets the maximum number of OS threads of the Go runtime.  If n
// is zero, the runtime default is kept.  l must not be nil, n must not be
// negative.
func setMaxThreads(ctx context.Context, l *slog.Logger, n int) {
	if n == 0 {
		l.DebugContext(ctx, "using default max threads", "gomaxprocs", runtime.GOMAXPROCS(0))

		return
	}

	prev := debug.SetMaxThreads(n)

	l.InfoContext(ctx, "set max threads", "n", n, "prev", prev)
}
