package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-lynx/scf/capability"
	"github.com/go-lynx/scf/metrics"
	"github.com/go-lynx/scf/object"
)

var (
	softwareV1 = capability.New("renderer.software", 1, 0, 0)
	softwareV2 = capability.New("renderer.software", 2, 0, 0)
	vfsV1      = capability.New("vfs", 1, 0, 0)
)

func provider(t *testing.T, id string, caps ...capability.Descriptor) *object.Base {
	t.Helper()
	b := object.New(object.WithID(id))
	for _, d := range caps {
		require.NoError(t, b.Implement(d, id))
	}
	return b
}

func TestGetOnEmptyRegistryThenRegister(t *testing.T) {
	r := New()

	_, err := r.Get(softwareV1)
	require.ErrorIs(t, err, ErrNotRegistered)
	assert.ErrorIs(t, err, object.ErrCapabilityNotFound)

	obj := provider(t, "soft", softwareV1)
	require.NoError(t, r.Register(softwareV1, "", obj))
	assert.Equal(t, 2, obj.RefCount())

	h, err := r.Get(softwareV1)
	require.NoError(t, err)
	assert.Equal(t, "soft", h.Object().ID())
	assert.Equal(t, 3, obj.RefCount())
	require.NoError(t, h.Release())

	_, err = r.Get(softwareV2)
	assert.ErrorIs(t, err, object.ErrCapabilityNotFound)
	assert.Equal(t, 2, obj.RefCount())
}

func TestGetTagged(t *testing.T) {
	r := New()
	fast := provider(t, "fast", softwareV1)
	safe := provider(t, "safe", softwareV1)
	require.NoError(t, r.Register(softwareV1, "fast", fast))
	require.NoError(t, r.Register(softwareV1, "safe", safe))

	h, err := r.GetTagged(softwareV1, "fast")
	require.NoError(t, err)
	assert.Equal(t, "fast", h.Object().ID())
	require.NoError(t, h.Release())

	_, err = r.GetTagged(softwareV1, "missing")
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = r.GetTagged(softwareV2, "fast")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestUntaggedGetPrefersMostRecent(t *testing.T) {
	r := New()
	first := provider(t, "first", softwareV1)
	second := provider(t, "second", softwareV1)
	require.NoError(t, r.Register(softwareV1, "a", first))
	require.NoError(t, r.Register(softwareV1, "b", second))

	h, err := r.Get(softwareV1)
	require.NoError(t, err)
	assert.Equal(t, "second", h.Object().ID())
	require.NoError(t, h.Release())

	require.True(t, r.Unregister(softwareV1, "b"))
	h, err = r.Get(softwareV1)
	require.NoError(t, err)
	assert.Equal(t, "first", h.Object().ID())
	require.NoError(t, h.Release())
}

func TestGetSkipsIncompatibleVersions(t *testing.T) {
	r := New()
	old := provider(t, "old", softwareV1)
	newer := provider(t, "newer", softwareV2)
	require.NoError(t, r.Register(softwareV1, "old", old))
	require.NoError(t, r.Register(softwareV2, "newer", newer))

	h, err := r.Get(capability.New("renderer.software", 1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "old", h.Object().ID())
	require.NoError(t, h.Release())
}

func TestReplaceReleasesPreviousExactlyOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New("test", reg)
	require.NoError(t, err)
	r := New(WithMetrics(m))

	old := provider(t, "old", softwareV1)
	destroyed := 0
	old.OnDestroy(func() { destroyed++ })
	require.NoError(t, r.Register(softwareV1, "", old))
	require.NoError(t, old.Release())
	assert.Equal(t, 1, old.RefCount())

	replacement := provider(t, "new", softwareV1)
	require.NoError(t, r.Register(softwareV1, "", replacement))
	assert.True(t, old.Destroyed())
	assert.Equal(t, 1, destroyed)
	assert.Equal(t, 1, r.Len())

	h, err := r.Get(softwareV1)
	require.NoError(t, err)
	assert.Equal(t, "new", h.Object().ID())
	require.NoError(t, h.Release())

	expected := `
# HELP test_registry_registrations_total Provider registrations by outcome (new or replaced).
# TYPE test_registry_registrations_total counter
test_registry_registrations_total{outcome="new"} 1
test_registry_registrations_total{outcome="replaced"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_registry_registrations_total"))
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Register(capability.Descriptor{}, "", object.New()), capability.ErrInvalidDescriptor)
	assert.Error(t, r.Register(softwareV1, "", nil))

	dead := object.New()
	require.NoError(t, dead.Release())
	assert.ErrorIs(t, r.Register(softwareV1, "", dead), object.ErrDestroyed)
	assert.Zero(t, r.Len())
}

func TestUnregisterObjectLeavesReplacement(t *testing.T) {
	r := New()
	a := provider(t, "a", vfsV1)
	b := provider(t, "b", vfsV1)
	require.NoError(t, r.Register(vfsV1, "", a))
	require.NoError(t, r.Register(vfsV1, "", b))

	assert.False(t, r.UnregisterObject(vfsV1, "", a))
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.UnregisterObject(vfsV1, "", b))
	assert.Equal(t, 1, b.RefCount())
	assert.False(t, r.Unregister(vfsV1, ""))
}

func TestClearReleasesNewestFirstAndIsIdempotent(t *testing.T) {
	r := New()
	var order []string
	for _, id := range []string{"one", "two", "three"} {
		p := provider(t, id, capability.New(id, 1, 0, 0))
		p.OnDestroy(func() { order = append(order, id) })
		require.NoError(t, r.Register(capability.New(id, 1, 0, 0), "", p))
		require.NoError(t, p.Release())
	}

	r.Clear()
	assert.Equal(t, []string{"three", "two", "one"}, order)
	assert.Zero(t, r.Len())

	r.Clear()
	assert.Len(t, order, 3)
}

func TestDestructorMayCallBackIntoRegistry(t *testing.T) {
	r := New()
	p := provider(t, "p", vfsV1)
	p.OnDestroy(func() {
		_, err := r.Get(vfsV1)
		assert.True(t, errors.Is(err, ErrNotRegistered))
	})
	require.NoError(t, r.Register(vfsV1, "", p))
	require.NoError(t, p.Release())

	r.Clear()
	assert.True(t, p.Destroyed())
}

func TestEntriesInRegistrationOrder(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(vfsV1, "", provider(t, "v", vfsV1)))
	require.NoError(t, r.Register(softwareV1, "gl", provider(t, "s", softwareV1)))

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "v", entries[0].ObjectID)
	assert.Equal(t, "gl", entries[1].Tag)
	assert.Equal(t, softwareV1, entries[1].Descriptor)
}

func TestConcurrentGetAndRegister(t *testing.T) {
	r := New()
	base := provider(t, "base", softwareV1)
	require.NoError(t, r.Register(softwareV1, "", base))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h, err := r.Get(softwareV1)
				if err != nil {
					t.Error(err)
					return
				}
				_ = h.Release()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				p := object.New()
				_ = p.Implement(vfsV1, p)
				_ = r.Register(vfsV1, "churn", p)
				_ = p.Release()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, base.RefCount())
	r.Clear()
	assert.Equal(t, 1, base.RefCount())
}

func TestRegisterRequiresQueryableProvider(t *testing.T) {
	r := New()
	plain := object.New(object.WithID("plain"))
	err := r.Register(softwareV1, "", plain)
	require.ErrorIs(t, err, object.ErrCapabilityNotFound)
	assert.Equal(t, 1, plain.RefCount())
	assert.Zero(t, r.Len())

	older := provider(t, "older", softwareV1)
	assert.ErrorIs(t, r.Register(capability.New("renderer.software", 1, 5, 0), "", older), object.ErrCapabilityNotFound)
	assert.Equal(t, 1, older.RefCount())

	_, err = r.Get(softwareV1)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

// switchable stops answering queries once off is set.
type switchable struct {
	*object.Base
	off bool
}

func (s *switchable) Query(d capability.Descriptor) (*object.Handle, error) {
	if s.off {
		return nil, fmt.Errorf("%w: %s switched off", object.ErrCapabilityNotFound, d)
	}
	return s.Base.Query(d)
}

func TestGetFallsBackToOlderProvider(t *testing.T) {
	r := New()
	v15 := capability.New("renderer.software", 1, 5, 0)
	a := provider(t, "a", v15)
	b := &switchable{Base: provider(t, "b", v15)}
	require.NoError(t, r.Register(v15, "a", a))
	require.NoError(t, r.Register(v15, "b", b))

	b.off = true
	h, err := r.Get(capability.New("renderer.software", 1, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, "a", h.Object().ID())
	require.NoError(t, h.Release())

	require.True(t, r.Unregister(v15, "a"))
	_, err = r.Get(softwareV1)
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Contains(t, err.Error(), "switched off")
}

func TestUnregisterAllOf(t *testing.T) {
	r := New()
	p := provider(t, "p", vfsV1, softwareV1)
	other := provider(t, "other", vfsV1)
	require.NoError(t, r.Register(vfsV1, "", p))
	require.NoError(t, r.Register(softwareV1, "gl", p))
	require.NoError(t, r.Register(vfsV1, "zip", other))
	assert.Equal(t, 3, p.RefCount())

	assert.Equal(t, 2, r.UnregisterAllOf(p))
	assert.Equal(t, 1, p.RefCount())
	assert.Equal(t, 1, r.Len())
	assert.Zero(t, r.UnregisterAllOf(p))
	assert.Zero(t, r.UnregisterAllOf(nil))
}
