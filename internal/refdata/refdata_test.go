package refdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultContainsWellKnownOIDs(t *testing.T) {
	s := Default()
	for _, oid := range []string{PGANA, Admin, TBD, Sandbox} {
		assert.True(t, s.Contains(oid), oid)
	}
	assert.False(t, s.Contains("test:product.1"))
}

func TestWithDoesNotMutate(t *testing.T) {
	base := New("a")
	ext := base.With("b")

	assert.True(t, ext.Contains("a"))
	assert.True(t, ext.Contains("b"))
	assert.False(t, base.Contains("b"))
	assert.Equal(t, []string{"a", "b"}, ext.OIDs())
	assert.Equal(t, 2, ext.Len())
}

func TestZeroSet(t *testing.T) {
	var s Set
	assert.False(t, s.Contains(PGANA))
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.OIDs())
}
