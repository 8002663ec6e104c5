package topk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracksHeaviestKey(t *testing.T) {
	tk := New(Config{K: 3, Width: 256, Depth: 4, Decay: 0.9})

	for i := 0; i < 100; i++ {
		tk.Add([]string{"heavy"})
	}
	tk.Add([]string{"light-a", "light-b"})

	found, count := tk.Query("heavy")
	require.True(t, found)
	assert.GreaterOrEqual(t, count, uint64(50))
}

func TestListSortedDescending(t *testing.T) {
	tk := New(Config{K: 5, Width: 512, Depth: 4, Decay: 0.9})
	for i := 0; i < 30; i++ {
		tk.Add([]string{"a"})
	}
	for i := 0; i < 10; i++ {
		tk.Add([]string{"b"})
	}

	items := tk.List()
	require.NotEmpty(t, items)
	for i := 1; i < len(items); i++ {
		assert.GreaterOrEqual(t, items[i-1].Count, items[i].Count)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	tk := New(DefaultConfig())
	for i := 0; i < 200; i++ {
		tk.Add([]string{"x", "y", "z"})
	}
	encoded := append([]byte(nil), tk.Bytes()...)

	reloaded, err := NewFromBytes(encoded)
	require.NoError(t, err)

	found, _ := reloaded.Query("x")
	assert.True(t, found)
}

func TestNewFromBytesRejectsShortData(t *testing.T) {
	_, err := NewFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}
