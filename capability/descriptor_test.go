package capability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatches(t *testing.T) {
	req := New("renderer.software", 1, 2, 3)

	tests := []struct {
		name     string
		provided Descriptor
		want     bool
	}{
		{"identical", New("renderer.software", 1, 2, 3), true},
		{"newer revision", New("renderer.software", 1, 2, 4), true},
		{"newer minor older revision", New("renderer.software", 1, 3, 0), true},
		{"older revision", New("renderer.software", 1, 2, 2), false},
		{"older minor newer revision", New("renderer.software", 1, 1, 9), false},
		{"newer major", New("renderer.software", 2, 2, 3), false},
		{"older major", New("renderer.software", 0, 9, 9), false},
		{"other name", New("renderer.opengl", 1, 2, 3), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(req, tt.provided))
			assert.Equal(t, tt.want, req.SatisfiedBy(tt.provided))
		})
	}
}

// Matches must agree with the lexicographic rule on (minor, revision).
func TestMatchesExhaustiveSmallGrid(t *testing.T) {
	for rMaj := 0; rMaj < 3; rMaj++ {
		for rMin := 0; rMin < 3; rMin++ {
			for rRev := 0; rRev < 3; rRev++ {
				for pMaj := 0; pMaj < 3; pMaj++ {
					for pMin := 0; pMin < 3; pMin++ {
						for pRev := 0; pRev < 3; pRev++ {
							r := New("x", rMaj, rMin, rRev)
							p := New("x", pMaj, pMin, pRev)
							want := rMaj == pMaj && (pMin > rMin || (pMin == rMin && pRev >= rRev))
							if got := Matches(r, p); got != want {
								t.Fatalf("Matches(%s, %s) = %v, want %v", r, p, got, want)
							}
						}
					}
				}
			}
		}
	}
}

func TestParse(t *testing.T) {
	d, err := Parse("renderer.software@1.2.3")
	require.NoError(t, err)
	assert.Equal(t, New("renderer.software", 1, 2, 3), d)

	d, err = Parse("sound.loader@v2.1")
	require.NoError(t, err)
	assert.Equal(t, New("sound.loader", 2, 1, 0), d)

	d, err = Parse("translator")
	require.NoError(t, err)
	assert.Equal(t, New("translator", 0, 0, 0), d)

	for _, bad := range []string{"", "@1.0.0", "x@", "x@abc", "x@1.0.0-beta", "x@1.0.0+build"} {
		_, err := Parse(bad)
		assert.Truef(t, errors.Is(err, ErrInvalidDescriptor), "Parse(%q) = %v", bad, err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	d := New("vfs", 0, 0, 1)
	assert.Equal(t, "vfs@0.0.1", d.String())
	back, err := Parse(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, New("a", 0, 0, 0).Validate())
	assert.ErrorIs(t, New("", 1, 0, 0).Validate(), ErrInvalidDescriptor)
	assert.ErrorIs(t, New("a", 1, -1, 0).Validate(), ErrInvalidDescriptor)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 0, Compare(New("a", 1, 2, 3), New("b", 1, 2, 3)))
	assert.Equal(t, -1, Compare(New("a", 1, 2, 3), New("a", 1, 3, 0)))
	assert.Equal(t, 1, Compare(New("a", 2, 0, 0), New("a", 1, 9, 9)))
	assert.Equal(t, -1, Compare(New("a", 1, 2, 3), New("a", 1, 2, 4)))
}

func TestVersion(t *testing.T) {
	v := New("a", 1, 2, 3).Version()
	assert.Equal(t, "1.2.3", v.String())
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("") })
	assert.NotPanics(t, func() { MustParse("a@1.0.0") })
}
