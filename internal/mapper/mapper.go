// Package mapper contains the manager of the published lookup snapshot, which
// rebuilds it from the source and retires the replaced ones once no reader can
// still use them.
package mapper

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/snapshot"
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
)

// Config is the configuration structure for a [Manager].
type Config struct {
	// Logger is used for logging the operation of the manager.  It must not
	// be nil.
	Logger *slog.Logger

	// Source is the source of the networks.  It must not be nil.
	Source Source

	// Metrics is used for the collection of the manager statistics.  It must
	// not be nil.
	Metrics Metrics

	// GracePollInterval is how often the manager checks whether the readers
	// have left a retired snapshot.  It must be positive.
	GracePollInterval time.Duration
}

// Interface is the interface for looking up the labels of addresses.
type Interface interface {
	// Lookup returns the label of the longest network containing addr.
	Lookup(addr netip.Addr) (res Result)
}

// type check
var (
	_ Interface = (*Manager)(nil)
	_ Interface = (*Reader)(nil)
)

// Result is the result of a lookup.
type Result struct {
	// Label is the label of the longest matching network.  It is empty if
	// Found is false.
	Label string

	// Generation is the generation of the snapshot used for the lookup.  It
	// is zero if no snapshot has been published yet.
	Generation uint64

	// Found is true if a matching network has been found.
	Found bool
}

// Manager owns the published snapshot.  All methods are safe for concurrent
// use.
type Manager struct {
	logger  *slog.Logger
	source  Source
	metrics Metrics

	current atomic.Pointer[snapshot.Snapshot]

	// epoch is incremented on every publish.  It starts with one, so that a
	// zero reader slot means a quiescent reader.
	epoch atomic.Uint64

	// readersMu protects readers.
	readersMu *sync.Mutex
	readers   *container.MapSet[*Reader]

	// publishMu serializes publishes and protects the fields below.
	publishMu   *sync.Mutex
	retiring    []*retired
	fingerprint Fingerprint
	generation  uint64

	pollIvl time.Duration
}

// retired is a replaced snapshot waiting for its grace period to end.
type retired struct {
	snap *snapshot.Snapshot

	// since is the time when the snapshot was replaced.
	since time.Time

	// epoch is the value of the epoch right after the snapshot was replaced.
	epoch uint64
}

// New returns a new properly initialized *Manager with no published snapshot.
// c must not be nil and must be valid.
func New(c *Config) (m *Manager) {
	m = &Manager{
		logger:    c.Logger,
		source:    c.Source,
		metrics:   c.Metrics,
		readersMu: &sync.Mutex{},
		readers:   container.NewMapSet[*Reader](),
		publishMu: &sync.Mutex{},
		pollIvl:   c.GracePollInterval,
	}
	m.epoch.Store(1)

	return m
}

// type check
var _ service.Interface = (*Manager)(nil)

// Start implements the [service.Interface] interface for *Manager.  It does
// nothing, since snapshots are published by [Manager.Refresh] and
// [Manager.Publish].
func (m *Manager) Start(_ context.Context) (err error) {
	return nil
}

// Shutdown implements the [service.Interface] interface for *Manager.  It
// waits for the grace periods of all retired snapshots and destroys them.
func (m *Manager) Shutdown(ctx context.Context) (err error) {
	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	err = m.reap(ctx)
	if err != nil {
		return fmt.Errorf("reaping %d retired snapshots: %w", len(m.retiring), err)
	}

	return nil
}

// Current returns the published snapshot or nil if there isn't one.  The
// snapshot may be destroyed after a subsequent publish, after which only its
// [snapshot.Snapshot.Stats] and [snapshot.Snapshot.Generation] may be used.
func (m *Manager) Current() (s *snapshot.Snapshot) {
	return m.current.Load()
}

// Publish makes snap the published snapshot and destroys the previously
// published one after the grace period.  snap must be built and never
// published before.  If ctx is canceled during the grace period, the previous
// snapshot is destroyed on the next publish or on shutdown.
func (m *Manager) Publish(ctx context.Context, snap *snapshot.Snapshot) (err error) {
	if snap == nil {
		return errNilSnapshot
	}

	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	return m.publish(ctx, snap)
}

// publish publishes snap.  m.publishMu must be locked.
func (m *Manager) publish(ctx context.Context, snap *snapshot.Snapshot) (err error) {
	err = snap.MarkPublished()
	if err != nil {
		return fmt.Errorf("publishing snapshot %d: %w", snap.Generation(), err)
	}

	old := m.current.Swap(snap)
	epoch := m.epoch.Add(1)
	m.generation = max(m.generation, snap.Generation())

	m.metrics.SetSnapshot(ctx, snap.Stats())
	m.logger.InfoContext(ctx, "published snapshot", "gen", snap.Generation(), "epoch", epoch)

	if old != nil {
		err = old.MarkRetiring()
		if err != nil {
			// Should not happen, since only published snapshots are stored.
			panic(fmt.Errorf("retiring snapshot %d: %w", old.Generation(), err))
		}

		m.retiring = append(m.retiring, &retired{
			snap:  old,
			since: time.Now(),
			epoch: epoch,
		})
	}

	err = m.reap(ctx)
	if err != nil {
		m.logger.WarnContext(
			ctx,
			"grace period interrupted",
			"retiring", len(m.retiring),
			slogutil.KeyError, err,
		)
	}

	return nil
}

// reap waits for the grace periods of the retired snapshots and destroys them.
// m.publishMu must be locked.
func (m *Manager) reap(ctx context.Context) (err error) {
	defer func() { m.metrics.SetRetiring(ctx, len(m.retiring)) }()

	for len(m.retiring) > 0 {
		r := m.retiring[0]
		err = m.waitGrace(ctx, r)
		if err != nil {
			return err
		}

		err = r.snap.Destroy()
		if err != nil {
			// Should not happen, since only retiring snapshots are stored.
			panic(fmt.Errorf("destroying snapshot %d: %w", r.snap.Generation(), err))
		}

		m.metrics.ObserveGracePeriod(ctx, time.Since(r.since))
		m.logger.DebugContext(ctx, "destroyed snapshot", "gen", r.snap.Generation())

		m.retiring[0] = nil
		m.retiring = m.retiring[1:]
	}

	return nil
}

// waitGrace blocks until no reader can use the snapshot of r or until ctx is
// done.
func (m *Manager) waitGrace(ctx context.Context, r *retired) (err error) {
	if m.graceOver(r) {
		return nil
	}

	t := time.NewTicker(m.pollIvl)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if m.graceOver(r) {
				return nil
			}
		}
	}
}

// graceOver returns true if every registered reader is either quiescent or
// has entered its read section after r was replaced, and no unregistered
// lookup holds a reference to it.
func (m *Manager) graceOver(r *retired) (ok bool) {
	m.readersMu.Lock()
	defer m.readersMu.Unlock()

	for rd := range m.readers.Range {
		if e := rd.epoch.Load(); e != 0 && e < r.epoch {
			return false
		}
	}

	return r.snap.Refs() == 0
}

// Lookup returns the label of the longest network containing addr in the
// published snapshot.  It can be used without registering a [Reader].
//
// Lookup is lock-free but not wait-free: it retries if a publish happens
// between loading and acquiring the snapshot.  [Reader.Lookup] and
// [ReaderPool.Lookup] with an idle reader never retry.
func (m *Manager) Lookup(addr netip.Addr) (res Result) {
	for {
		s := m.current.Load()
		if s == nil {
			return Result{}
		}

		s.Acquire()
		if m.current.Load() != s {
			// A publish has happened in between, so s might already be
			// destroyed.
			s.Release()

			continue
		}

		res = lookup(s, addr)
		s.Release()

		return res
	}
}

// lookup performs the lookup of addr in s.
func lookup(s *snapshot.Snapshot, addr netip.Addr) (res Result) {
	label, ok := s.Lookup(addr)

	return Result{
		Label:      label,
		Generation: s.Generation(),
		Found:      ok,
	}
}
