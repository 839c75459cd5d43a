package scf

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-lynx/scf/capability"
	"github.com/go-lynx/scf/factory"
	"github.com/go-lynx/scf/object"
	"github.com/go-lynx/scf/registry"
)

func TestSafeCall(t *testing.T) {
	assert.NoError(t, safeCall("p", OpCreate, func() error { return nil }))

	boom := errors.New("boom")
	assert.ErrorIs(t, safeCall("p", OpCreate, func() error { return boom }), boom)

	err := safeCall("p", OpCreate, func() error { panic("bad pointer") })
	require.ErrorIs(t, err, ErrPluginPanic)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad pointer", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestPanickingPluginsFailAlone(t *testing.T) {
	h := newHarness(t)
	h.class("vfs", []capability.Descriptor{vfsV1}, nil, nil)
	h.classes.MustRegister(factory.Class{
		ID:     "crash.create",
		Create: func() (object.Object, error) { panic("constructor exploded") },
	})
	h.class("crash.init", []capability.Descriptor{engineV1}, nil, func(context.Context, *registry.Registry) error {
		panic("init exploded")
	})
	h.request("crash.create", "crash.init", "vfs")

	err := h.loader.LoadPlugins(context.Background())
	require.ErrorIs(t, err, ErrPluginPanic)
	assert.Equal(t, StateFailed, h.state("crash.create"))
	assert.Equal(t, StateFailed, h.state("crash.init"))
	assert.Equal(t, StateLoaded, h.state("vfs"))

	info, _ := h.loader.Plugin("crash.init")
	var perr *PluginError
	require.ErrorAs(t, info.Err, &perr)
	assert.Equal(t, OpInitialize, perr.Operation)

	_, err = h.loader.Registry().Get(engineV1)
	assert.ErrorIs(t, err, registry.ErrNotRegistered)
	assert.True(t, h.roots["crash.init"].Destroyed())
}
