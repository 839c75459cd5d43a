package factory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-lynx/scf/object"
)

func newClass(id string, deps ...string) Class {
	return Class{
		ID:           id,
		Dependencies: deps,
		Create: func() (object.Object, error) {
			return object.New(object.WithID(id)), nil
		},
	}
}

func TestRegisterAndCreate(t *testing.T) {
	f := New()
	require.NoError(t, f.Register(newClass("vfs")))

	obj, err := f.Create("vfs")
	require.NoError(t, err)
	assert.Equal(t, "vfs", obj.ID())
	assert.Equal(t, 1, obj.RefCount())

	_, err = f.Create("missing")
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestRegisterRejectsDuplicatesAndInvalid(t *testing.T) {
	f := New()
	require.NoError(t, f.Register(newClass("vfs")))
	assert.ErrorIs(t, f.Register(newClass("vfs")), ErrClassExists)
	assert.Error(t, f.Register(Class{ID: "nil-ctor"}))
	assert.Error(t, f.Register(newClass("")))
	assert.Panics(t, func() { f.MustRegister(newClass("vfs")) })
}

func TestCreateWrapsConstructorFailure(t *testing.T) {
	f := New()
	boom := errors.New("boom")
	f.MustRegister(Class{ID: "bad", Create: func() (object.Object, error) { return nil, boom }})
	f.MustRegister(Class{ID: "empty", Create: func() (object.Object, error) { return nil, nil }})

	_, err := f.Create("bad")
	assert.ErrorIs(t, err, boom)
	_, err = f.Create("empty")
	assert.Error(t, err)
}

func TestClassesSortedAndUnregister(t *testing.T) {
	f := New()
	f.MustRegister(newClass("video.opengl", "renderer."))
	f.MustRegister(newClass("renderer.software"))
	f.MustRegister(newClass("engine"))

	var ids []string
	for _, c := range f.Classes() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"engine", "renderer.software", "video.opengl"}, ids)

	c, ok := f.Lookup("video.opengl")
	require.True(t, ok)
	assert.Equal(t, []string{"renderer."}, c.Dependencies)

	assert.True(t, f.Unregister("engine"))
	assert.False(t, f.Unregister("engine"))
	_, ok = f.Lookup("engine")
	assert.False(t, ok)
}

func TestGlobalIsShared(t *testing.T) {
	assert.Same(t, Global(), Global())
}
