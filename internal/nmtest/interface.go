package nmtest

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/AdguardTeam/NetMapper/internal/errcoll"
	"github.com/AdguardTeam/NetMapper/internal/mapper"
	"github.com/AdguardTeam/NetMapper/internal/snapshot"
	"github.com/AdguardTeam/NetMapper/internal/websvc"
	"github.com/AdguardTeam/golibs/service"
)

// Interface Mocks
//
// Keep entities within a module/package in alphabetic order.

// Package errcoll

// type check
var _ errcoll.Interface = (*ErrorCollector)(nil)

// ErrorCollector is an [errcoll.Interface] for tests.
type ErrorCollector struct {
	OnCollect func(ctx context.Context, err error)
}

// Collect implements the [errcoll.Interface] interface for *ErrorCollector.
func (c *ErrorCollector) Collect(ctx context.Context, err error) {
	c.OnCollect(ctx, err)
}

// NewErrorCollector returns a new *ErrorCollector all methods of which panic.
func NewErrorCollector() (c *ErrorCollector) {
	return &ErrorCollector{
		OnCollect: func(_ context.Context, err error) {
			panic(fmt.Errorf("unexpected call to ErrorCollector.Collect(%v)", err))
		},
	}
}

// Package mapper

// type check
var _ mapper.Interface = (*Mapper)(nil)

// Mapper is a [mapper.Interface] for tests.
type Mapper struct {
	OnLookup func(addr netip.Addr) (res mapper.Result)
}

// Lookup implements the [mapper.Interface] interface for *Mapper.
func (m *Mapper) Lookup(addr netip.Addr) (res mapper.Result) {
	return m.OnLookup(addr)
}

// type check
var _ mapper.Source = (*Source)(nil)

// Source is a [mapper.Source] for tests.  A zero Source has a constant
// fingerprint and returns [NewEntries].
type Source struct {
	OnFingerprint func(ctx context.Context) (fp mapper.Fingerprint, err error)
	OnEntries     func(ctx context.Context) (entries []snapshot.Entry, err error)
}

// Fingerprint implements the [mapper.Source] interface for *Source.
func (s *Source) Fingerprint(ctx context.Context) (fp mapper.Fingerprint, err error) {
	if s.OnFingerprint == nil {
		return mapper.Fingerprint{}, nil
	}

	return s.OnFingerprint(ctx)
}

// Entries implements the [mapper.Source] interface for *Source.
func (s *Source) Entries(ctx context.Context) (entries []snapshot.Entry, err error) {
	if s.OnEntries == nil {
		return NewEntries(), nil
	}

	return s.OnEntries(ctx)
}

// Package websvc

// type check
var _ websvc.SnapshotSource = (*SnapshotSource)(nil)

// SnapshotSource is a [websvc.SnapshotSource] for tests.
type SnapshotSource struct {
	OnCurrent func() (s *snapshot.Snapshot)
}

// Current implements the [websvc.SnapshotSource] interface for
// *SnapshotSource.
func (s *SnapshotSource) Current() (snap *snapshot.Snapshot) {
	return s.OnCurrent()
}

// Module golibs

// type check
var _ service.Refresher = (*Refresher)(nil)

// Refresher is a [service.Refresher] for tests.
type Refresher struct {
	OnRefresh func(ctx context.Context) (err error)
}

// Refresh implements the [service.Refresher] interface for *Refresher.
func (r *Refresher) Refresh(ctx context.Context) (err error) {
	return r.OnRefresh(ctx)
}
