package mapper

import (
	"context"
	"fmt"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/snapshot"
	"github.com/AdguardTeam/golibs/service"
)

// Fingerprint identifies a version of the source data.  Two equal fingerprints
// mean that the data hasn't changed.
type Fingerprint struct {
	// ModTime is the modification time, in nanoseconds since the Unix epoch.
	ModTime int64

	// ChangeTime is the status change time, in nanoseconds since the Unix
	// epoch.
	ChangeTime int64

	// Inode is the inode number.
	Inode uint64

	// Device is the device number.
	Device uint64

	// Size is the size of the data, in bytes.
	Size int64
}

// Source is the source of the labeled networks.
type Source interface {
	// Fingerprint returns the fingerprint of the current data.
	Fingerprint(ctx context.Context) (fp Fingerprint, err error)

	// Entries reads and validates the current data.
	Entries(ctx context.Context) (entries []snapshot.Entry, err error)
}

// type check
var _ service.Refresher = (*Manager)(nil)

// Refresh implements the [service.Refresher] interface for *Manager.  It
// rebuilds and publishes the snapshot if the source data has changed.  If
// there is an error, the published snapshot stays in place.
func (m *Manager) Refresh(ctx context.Context) (err error) {
	return m.refresh(ctx, false)
}

// ForceRefresher returns a refresher that rebuilds and publishes the snapshot
// regardless of the source fingerprint.
func (m *Manager) ForceRefresher() (r service.Refresher) {
	return service.RefresherFunc(func(ctx context.Context) (err error) {
		return m.refresh(ctx, true)
	})
}

// refresh reloads the snapshot.  If force is false, it does nothing when the
// fingerprint of the source data is the same as that of the published one.
func (m *Manager) refresh(ctx context.Context, force bool) (err error) {
	m.logger.DebugContext(ctx, "refresh started", "force", force)
	defer m.logger.DebugContext(ctx, "refresh finished")

	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	start := time.Now()
	defer func() { m.metrics.ObserveRefresh(ctx, time.Since(start), err) }()

	fp, err := m.source.Fingerprint(ctx)
	if err != nil {
		return fmt.Errorf("checking source: %w", err)
	}

	if !force && fp == m.fingerprint && m.current.Load() != nil {
		m.logger.DebugContext(ctx, "source not changed")

		return nil
	}

	entries, err := m.source.Entries(ctx)
	if err != nil {
		return fmt.Errorf("loading source: %w", err)
	}

	snap, err := snapshot.Build(ctx, m.logger, m.generation+1, entries)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	err = m.publish(ctx, snap)
	if err != nil {
		return fmt.Errorf("refreshing: %w", err)
	}

	m.fingerprint = fp

	return nil
}
