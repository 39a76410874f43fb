package mapper

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/AdguardTeam/golibs/service"
)

// ReaderPool is a fixed set of registered readers shared by the goroutines of
// a front-end.  A lookup borrows an idle reader and uses its read section.  If
// all readers are busy, the lookup falls back to [Manager.Lookup].
type ReaderPool struct {
	mgr  *Manager
	idle chan *Reader
}

// NewReaderPool returns a new pool of n registered readers of m.  n must be
// positive.
func NewReaderPool(m *Manager, n int) (p *ReaderPool) {
	p = &ReaderPool{
		mgr:  m,
		idle: make(chan *Reader, n),
	}

	for range n {
		p.idle <- m.NewReader()
	}

	return p
}

// type check
var _ Interface = (*ReaderPool)(nil)

// Lookup implements the [Interface] interface for *ReaderPool.  It doesn't
// block.
func (p *ReaderPool) Lookup(addr netip.Addr) (res Result) {
	select {
	case r := <-p.idle:
		res = r.Lookup(addr)
		p.idle <- r

		return res
	default:
		return p.mgr.Lookup(addr)
	}
}

// type check
var _ service.Interface = (*ReaderPool)(nil)

// Start implements the [service.Interface] interface for *ReaderPool.  It does
// nothing, since the readers are registered on construction.
func (p *ReaderPool) Start(_ context.Context) (err error) {
	return nil
}

// Shutdown implements the [service.Interface] interface for *ReaderPool.  It
// waits for the borrowed readers to be returned and unregisters all of them.
// After that, all lookups use [Manager.Lookup].
func (p *ReaderPool) Shutdown(ctx context.Context) (err error) {
	for n := cap(p.idle); n > 0; n-- {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d readers: %w", n, ctx.Err())
		case r := <-p.idle:
			// Close never returns an error.
			_ = r.Close()
		}
	}

	return nil
}
