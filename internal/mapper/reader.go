package mapper

import (
	"io"
	"net/netip"
	"sync/atomic"
)

// Reader is a registered reader of the published snapshot.  Its lookups don't
// touch any shared counters; instead, the manager waits for every reader to
// leave its read section before destroying a retired snapshot.  A Reader must
// only be used by one goroutine at a time.
type Reader struct {
	mgr *Manager

	// epoch is the epoch at which the current read section has started or
	// zero if the reader is quiescent.
	epoch atomic.Uint64
}

// NewReader registers and returns a new reader.  It must be closed after use,
// since an unused registered reader never delays reclamation but still takes
// time to check.
func (m *Manager) NewReader() (r *Reader) {
	r = &Reader{
		mgr: m,
	}

	m.readersMu.Lock()
	defer m.readersMu.Unlock()

	m.readers.Add(r)

	return r
}

// Lookup is like [Manager.Lookup] but uses the read section of r.
func (r *Reader) Lookup(addr netip.Addr) (res Result) {
	r.epoch.Store(r.mgr.epoch.Load())
	s := r.mgr.current.Load()
	if s != nil {
		res = lookup(s, addr)
	}

	r.epoch.Store(0)

	return res
}

// type check
var _ io.Closer = (*Reader)(nil)

// Close implements the [io.Closer] interface for *Reader.  It unregisters r.
func (r *Reader) Close() (err error) {
	r.mgr.readersMu.Lock()
	defer r.mgr.readersMu.Unlock()

	r.mgr.readers.Delete(r)

	return nil
}
