package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndCheck(t *testing.T) {
	f, err := New(nil, DefaultConfig())
	require.NoError(t, err)
	defer f.Release()

	assert.False(t, f.Check([]byte("missing")))

	added, err := f.Add([]byte("a"))
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, f.Check([]byte("a")))

	added, err = f.Add([]byte("a"))
	require.NoError(t, err)
	assert.False(t, added)
}

func TestGrowsANewLayerWhenSaturated(t *testing.T) {
	f, err := New(nil, Config{InitialCapacity: 8, ErrorRate: 0.1})
	require.NoError(t, err)
	defer f.Release()

	for i := 0; i < 64; i++ {
		_, err := f.Add([]byte(fmt.Sprintf("item-%d", i)))
		require.NoError(t, err)
	}

	assert.GreaterOrEqual(t, f.Metadata().NumLayers(), uint64(2))
	for i := 0; i < 64; i++ {
		assert.True(t, f.Check([]byte(fmt.Sprintf("item-%d", i))))
	}
}

func TestPersistAndReload(t *testing.T) {
	f, err := New(nil, DefaultConfig())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		_, err := f.Add([]byte(fmt.Sprintf("k%d", i)))
		require.NoError(t, err)
	}
	snapshot := append([]byte(nil), f.Bytes()...)
	f.Release()

	reloaded, err := New(snapshot, DefaultConfig())
	require.NoError(t, err)
	defer reloaded.Release()

	for i := 0; i < 20; i++ {
		assert.True(t, reloaded.Check([]byte(fmt.Sprintf("k%d", i))))
	}
	assert.False(t, reloaded.Check([]byte("never-added")))
}

func TestRejectsBadMagic(t *testing.T) {
	bad := make([]byte, MetadataSize)
	_, err := New(bad, DefaultConfig())
	require.Error(t, err)
}
