package mapper_test

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/mapper"
	"github.com/AdguardTeam/NetMapper/internal/nmtest"
	"github.com/AdguardTeam/NetMapper/internal/snapshot"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	testutil.DiscardLogOutput(m)
}

// newManager returns a new manager with src and no published snapshot.
func newManager(src mapper.Source) (m *mapper.Manager) {
	return mapper.New(&mapper.Config{
		Logger:            slogutil.NewDiscardLogger(),
		Source:            src,
		Metrics:           mapper.EmptyMetrics{},
		GracePollInterval: nmtest.GracePollInterval,
	})
}

func TestManager_Lookup(t *testing.T) {
	m := nmtest.NewManager(t)

	r := m.NewReader()
	testutil.CleanupAndRequireSuccess(t, r.Close)

	testCases := []struct {
		addr netip.Addr
		name string
		want mapper.Result
	}{{
		addr: nmtest.IPv4B,
		name: "more_specific",
		want: mapper.Result{Label: nmtest.LabelB, Generation: 1, Found: true},
	}, {
		addr: nmtest.IPv4A,
		name: "less_specific",
		want: mapper.Result{Label: nmtest.LabelA, Generation: 1, Found: true},
	}, {
		addr: nmtest.IPv6A,
		name: "ipv6",
		want: mapper.Result{Label: nmtest.LabelA, Generation: 1, Found: true},
	}, {
		addr: nmtest.IPv4None,
		name: "none",
		want: mapper.Result{Label: "", Generation: 1, Found: false},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.Lookup(tc.addr))
			assert.Equal(t, tc.want, r.Lookup(tc.addr))
		})
	}
}

func TestManager_Lookup_empty(t *testing.T) {
	m := newManager(&nmtest.Source{})

	assert.Equal(t, mapper.Result{}, m.Lookup(nmtest.IPv4A))
	assert.Nil(t, m.Current())

	r := m.NewReader()
	testutil.CleanupAndRequireSuccess(t, r.Close)

	assert.Equal(t, mapper.Result{}, r.Lookup(nmtest.IPv4A))
}

func TestManager_Publish(t *testing.T) {
	m := newManager(&nmtest.Source{})
	ctx := testutil.ContextWithTimeout(t, nmtest.Timeout)

	first := nmtest.NewSnapshot(t, 1, nmtest.NewEntries())
	require.NoError(t, m.Publish(ctx, first))

	assert.Equal(t, snapshot.StatePublished, first.State())
	assert.Same(t, first, m.Current())

	second := nmtest.NewSnapshot(t, 2, nil)
	require.NoError(t, m.Publish(ctx, second))

	assert.Equal(t, snapshot.StateDestroyed, first.State())
	assert.Equal(t, snapshot.StatePublished, second.State())
	assert.Equal(t, mapper.Result{Generation: 2}, m.Lookup(nmtest.IPv4A))

	err := m.Publish(ctx, second)
	testutil.AssertErrorMsg(
		t,
		"publishing snapshot 2: snapshot: transition to published: state is published, want loading",
		err,
	)

	err = m.Publish(ctx, nil)
	testutil.AssertErrorMsg(t, "nil snapshot", err)
}

func TestManager_Publish_graceReader(t *testing.T) {
	m := newManager(&nmtest.Source{})
	ctx := testutil.ContextWithTimeout(t, nmtest.Timeout)

	first := nmtest.NewSnapshot(t, 1, nmtest.NewEntries())
	require.NoError(t, m.Publish(ctx, first))

	// Keep a reference to the published snapshot as a lookup in progress
	// would.
	first.Acquire()

	second := nmtest.NewSnapshot(t, 2, nmtest.NewEntries())

	cancelCtx, cancel := context.WithTimeout(ctx, 10*nmtest.GracePollInterval)
	defer cancel()

	require.NoError(t, m.Publish(cancelCtx, second))

	assert.Equal(t, snapshot.StateRetiring, first.State())
	assert.Same(t, second, m.Current())

	first.Release()

	require.NoError(t, m.Shutdown(ctx))
	assert.Equal(t, snapshot.StateDestroyed, first.State())
}

func TestManager_Shutdown_canceled(t *testing.T) {
	m := newManager(&nmtest.Source{})
	ctx := testutil.ContextWithTimeout(t, nmtest.Timeout)

	first := nmtest.NewSnapshot(t, 1, nil)
	require.NoError(t, m.Publish(ctx, first))

	first.Acquire()

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()

	require.NoError(t, m.Publish(canceledCtx, nmtest.NewSnapshot(t, 2, nil)))

	err := m.Shutdown(canceledCtx)
	require.Error(t, err)

	assert.ErrorIs(t, err, context.Canceled)

	first.Release()
	require.NoError(t, m.Shutdown(ctx))
}

func TestManager_Refresh(t *testing.T) {
	var fp atomic.Int64
	var loads atomic.Int64
	var entries atomic.Pointer[[]snapshot.Entry]

	initial := nmtest.NewEntries()
	entries.Store(&initial)

	src := &nmtest.Source{
		OnFingerprint: func(_ context.Context) (f mapper.Fingerprint, err error) {
			return mapper.Fingerprint{ModTime: fp.Load()}, nil
		},
		OnEntries: func(_ context.Context) (e []snapshot.Entry, err error) {
			loads.Add(1)

			return *entries.Load(), nil
		},
	}

	m := newManager(src)
	ctx := testutil.ContextWithTimeout(t, nmtest.Timeout)

	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, int64(1), loads.Load())
	assert.Equal(t, uint64(1), m.Current().Generation())

	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, int64(1), loads.Load())

	require.NoError(t, m.ForceRefresher().Refresh(ctx))
	assert.Equal(t, int64(2), loads.Load())
	assert.Equal(t, uint64(2), m.Current().Generation())

	// Make the new data invalid.
	dup := append(nmtest.NewEntries(), snapshot.Entry{
		Prefix: netip.MustParsePrefix("10.0.0.0/8"),
		Label:  nmtest.LabelB,
	})
	entries.Store(&dup)
	fp.Store(1)

	err := m.Refresh(ctx)
	testutil.AssertErrorMsg(t, "building snapshot 3: normalizing: duplicate network 10.0.0.0/8", err)

	assert.Equal(t, uint64(2), m.Current().Generation())
	assert.Equal(t, nmtest.LabelB, m.Lookup(nmtest.IPv4B).Label)

	// The failed data is retried on the next refresh.
	fixed := nmtest.NewEntries()[1:]
	entries.Store(&fixed)

	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, uint64(3), m.Current().Generation())
	assert.Equal(t, nmtest.LabelB, m.Lookup(nmtest.IPv4B).Label)
	assert.False(t, m.Lookup(nmtest.IPv4A).Found)
}

func TestManager_Refresh_sourceError(t *testing.T) {
	const testError errors.Error = "test error"

	testCases := []struct {
		src        *nmtest.Source
		name       string
		wantErrMsg string
	}{{
		src: &nmtest.Source{
			OnFingerprint: func(_ context.Context) (fp mapper.Fingerprint, err error) {
				return mapper.Fingerprint{}, testError
			},
		},
		name:       "fingerprint",
		wantErrMsg: "checking source: test error",
	}, {
		src: &nmtest.Source{
			OnEntries: func(_ context.Context) (e []snapshot.Entry, err error) {
				return nil, testError
			},
		},
		name:       "entries",
		wantErrMsg: "loading source: test error",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := newManager(tc.src)
			ctx := testutil.ContextWithTimeout(t, nmtest.Timeout)

			err := m.Refresh(ctx)
			testutil.AssertErrorMsg(t, tc.wantErrMsg, err)
			assert.ErrorIs(t, err, testError)

			assert.Nil(t, m.Current())
		})
	}
}

// publishTimeout is the timeout for the concurrent publishing test.
const publishTimeout = 30 * time.Second

func TestManager_concurrent(t *testing.T) {
	const (
		publishes = 1000
		readers   = 8
	)

	m := newManager(&nmtest.Source{})
	ctx := testutil.ContextWithTimeout(t, publishTimeout)

	// Every generation labels its networks with its own number, so that a
	// mismatch between the label and the generation of a result would mean a
	// torn snapshot.
	newGen := func(gen uint64) (s *snapshot.Snapshot) {
		label := fmt.Sprintf("gen-%d", gen)
		entries := []snapshot.Entry{{
			Prefix: netip.MustParsePrefix("10.0.0.0/8"),
			Label:  label,
		}, {
			Prefix: netip.MustParsePrefix("2001:db8::/32"),
			Label:  label,
		}}

		return nmtest.NewSnapshot(t, gen, append(entries, nmtest.Placeholders()...))
	}

	require.NoError(t, m.Publish(ctx, newGen(1)))

	var published atomic.Uint64
	published.Store(1)

	stop := make(chan struct{})
	errCh := make(chan error, readers)

	wg := &sync.WaitGroup{}
	for i := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			errCh <- readLoop(m, i%2 == 0, &published, stop)
		}()
	}

	snaps := make([]*snapshot.Snapshot, 0, publishes)
	for gen := uint64(2); gen <= publishes+1; gen++ {
		s := newGen(gen)
		snaps = append(snaps, s)

		require.NoError(t, m.Publish(ctx, s))
		published.Store(gen)
	}

	close(stop)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	for _, s := range snaps[:len(snaps)-1] {
		assert.Equal(t, snapshot.StateDestroyed, s.State())
	}

	assert.Equal(t, snapshot.StatePublished, snaps[len(snaps)-1].State())
}

// readLoop performs lookups until stop is closed and checks that every result
// is consistent.  If registered is true, it uses a registered reader.
func readLoop(
	m *mapper.Manager,
	registered bool,
	published *atomic.Uint64,
	stop <-chan struct{},
) (err error) {
	var l mapper.Interface = m
	if registered {
		r := m.NewReader()
		defer func() { err = errors.WithDeferred(err, r.Close()) }()

		l = r
	}

	addrs := []netip.Addr{
		netip.MustParseAddr("10.1.2.3"),
		netip.MustParseAddr("::ffff:10.1.2.3"),
		netip.MustParseAddr("2001:db8::1"),
	}

	var last uint64
	for i := 0; ; i++ {
		select {
		case <-stop:
			return nil
		default:
		}

		minGen := published.Load()
		res := l.Lookup(addrs[i%len(addrs)])
		err = checkResult(res, minGen, last)
		if err != nil {
			return err
		}

		last = res.Generation
	}
}

// checkResult returns an error if res is not a result of a fully built and
// published snapshot or if it's older than minGen or last.
func checkResult(res mapper.Result, minGen, last uint64) (err error) {
	if !res.Found {
		return fmt.Errorf("gen %d: no match", res.Generation)
	}

	gen, err := strconv.ParseUint(strings.TrimPrefix(res.Label, "gen-"), 10, 64)
	if err != nil {
		return fmt.Errorf("bad label %q: %w", res.Label, err)
	}

	switch {
	case gen != res.Generation:
		return fmt.Errorf("label %q from gen %d", res.Label, res.Generation)
	case gen < minGen:
		return fmt.Errorf("gen %d older than published gen %d", gen, minGen)
	case gen < last:
		return fmt.Errorf("gen %d older than previously seen gen %d", gen, last)
	default:
		return nil
	}
}

var resultSink mapper.Result

func BenchmarkManager_Lookup(b *testing.B) {
	m := nmtest.NewManager(b)

	b.Run("refcount", func(b *testing.B) {
		b.ReportAllocs()
		for b.Loop() {
			resultSink = m.Lookup(nmtest.IPv4B)
		}

		assert.True(b, resultSink.Found)
	})

	b.Run("reader", func(b *testing.B) {
		r := m.NewReader()
		testutil.CleanupAndRequireSuccess(b, r.Close)

		b.ReportAllocs()
		for b.Loop() {
			resultSink = r.Lookup(nmtest.IPv4B)
		}

		assert.True(b, resultSink.Found)
	})
}

func TestManager_Status(t *testing.T) {
	m := newManager(&nmtest.Source{})
	assert.Equal(t, mapper.Status{Generation: 0, Epoch: 1, Readers: 0}, m.Status())

	m = nmtest.NewManager(t)

	r := m.NewReader()
	assert.Equal(t, mapper.Status{Generation: 1, Epoch: 2, Readers: 1}, m.Status())

	require.NoError(t, r.Close())
	assert.Equal(t, 0, m.Status().Readers)
}

func TestReaderPool(t *testing.T) {
	const n = 4

	m := nmtest.NewManager(t)
	p := mapper.NewReaderPool(m, n)

	assert.Equal(t, n, m.Status().Readers)

	want := mapper.Result{Label: nmtest.LabelB, Generation: 1, Found: true}
	assert.Equal(t, want, p.Lookup(nmtest.IPv4B))

	ctx := testutil.ContextWithTimeout(t, nmtest.Timeout)

	wg := &sync.WaitGroup{}
	for range 2 * n {
		wg.Go(func() {
			for range 100 {
				res := p.Lookup(nmtest.IPv4A)
				assert.Equal(t, nmtest.LabelA, res.Label)
			}
		})
	}

	require.NoError(t, m.Publish(ctx, nmtest.NewSnapshot(t, 2, nmtest.NewEntries())))

	wg.Wait()

	require.NoError(t, p.Shutdown(ctx))
	assert.Zero(t, m.Status().Readers)

	// Lookups after the shutdown use the manager directly.
	want.Generation = 2
	assert.Equal(t, want, p.Lookup(nmtest.IPv4B))
}

func TestReaderPool_Shutdown_canceled(t *testing.T) {
	m := nmtest.NewManager(t)
	p := mapper.NewReaderPool(m, 1)

	ctx := testutil.ContextWithTimeout(t, nmtest.Timeout)
	require.NoError(t, p.Shutdown(ctx))

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()

	// All readers have already been taken, so a repeated shutdown can only
	// wait for the context.
	err := p.Shutdown(canceledCtx)
	assert.ErrorIs(t, err, context.Canceled)
}
