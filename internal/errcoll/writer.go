package errcoll

import (
	"context"
	"fmt"
	"io"
	"path"
	"runtime"
	"sync"
	"time"
)

// WriterErrorCollector is an [Interface] implementation that writes errors to
// a writer, one line per error.  It is safe for concurrent use.
type WriterErrorCollector struct {
	// mu prevents the lines written by concurrent calls from interleaving.
	mu *sync.Mutex
	w  io.Writer
}

// NewWriterErrorCollector returns a new properly initialized
// *WriterErrorCollector.  w must not be nil.
func NewWriterErrorCollector(w io.Writer) (c *WriterErrorCollector) {
	return &WriterErrorCollector{
		mu: &sync.Mutex{},
		w:  w,
	}
}

// type check
var _ Interface = (*WriterErrorCollector)(nil)

// Collect implements the [Interface] interface for *WriterErrorCollector.
func (c *WriterErrorCollector) Collect(_ context.Context, err error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	loc := caller(2)

	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.w, "%s: %s: caught error: %s\n", now, loc, err)
}

// caller returns the package directory, file name, and line of the function
// skip frames up the stack, or "unknown" if it cannot be determined.
func caller(skip int) (loc string) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}

	return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
}
