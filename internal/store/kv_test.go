package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	ID    int      `json:"id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	sqlite, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": sqlite,
	}
}

func TestRoundTrip(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			kv := New(b)
			want := []note{{ID: 1, Title: "a", Tags: []string{"x"}}, {ID: 2, Title: "b"}}

			require.NoError(t, Save(kv, "notes", want, V(3)))
			got := Load(kv, "notes", []note(nil), V(3))

			assert.Equal(t, want, got)
		})
	}
}

func TestRoundTripUnversioned(t *testing.T) {
	kv := New(NewMemoryBackend())
	require.NoError(t, Save(kv, "count", 42, Unversioned))
	assert.Equal(t, 42, Load(kv, "count", 0, Unversioned))
}

func TestVersionGate(t *testing.T) {
	def := []note{{ID: 9, Title: "seed"}}

	t.Run("mismatched tag returns default", func(t *testing.T) {
		kv := New(NewMemoryBackend())
		require.NoError(t, Save(kv, "notes", []note{{ID: 1, Title: "saved"}}, V(1)))
		assert.Equal(t, def, Load(kv, "notes", def, V(2)))
	})

	t.Run("absent tag returns default", func(t *testing.T) {
		kv := New(NewMemoryBackend())
		require.NoError(t, Save(kv, "notes", []note{{ID: 1, Title: "saved"}}, Unversioned))
		assert.Equal(t, def, Load(kv, "notes", def, V(1)))
	})

	t.Run("mismatched tag does not parse stored value", func(t *testing.T) {
		b := NewMemoryBackend()
		require.NoError(t, b.Set("notes", "{not json"))
		require.NoError(t, b.Set(VersionKey("notes"), "1"))
		assert.Equal(t, def, Load(New(b), "notes", def, V(2)))
	})

	t.Run("unversioned load ignores tag", func(t *testing.T) {
		kv := New(NewMemoryBackend())
		saved := []note{{ID: 1, Title: "saved"}}
		require.NoError(t, Save(kv, "notes", saved, V(7)))
		assert.Equal(t, saved, Load(kv, "notes", def, Unversioned))
	})
}

func TestLoadFallbacks(t *testing.T) {
	b := NewMemoryBackend()
	kv := New(b)

	assert.Equal(t, "dflt", Load(kv, "missing", "dflt", Unversioned))

	require.NoError(t, b.Set("broken", "{{{"))
	assert.Equal(t, 5, Load(kv, "broken", 5, Unversioned))
}

func TestSaveWriteFailureIsReturnedNotFatal(t *testing.T) {
	b := NewMemoryBackend()
	b.FailWrites = errors.New("quota exceeded")
	kv := New(b)

	err := Save(kv, "notes", []note{{ID: 1}}, V(1))

	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "save", serr.Op)
	assert.Equal(t, "notes", serr.Key)
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestSaveEncodeFailure(t *testing.T) {
	kv := New(NewMemoryBackend())
	err := Save(kv, "bad", make(chan int), Unversioned)

	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "encode", serr.Op)
}

func TestStrings(t *testing.T) {
	kv := New(NewMemoryBackend())

	assert.Equal(t, "fallback", LoadString(kv, "model", "fallback"))
	require.NoError(t, SaveString(kv, "model", "gpt-4o"))
	assert.Equal(t, "gpt-4o", LoadString(kv, "model", "fallback"))

	require.NoError(t, SaveString(kv, "model", ""))
	assert.Equal(t, "fallback", LoadString(kv, "model", "fallback"))
}

func TestSQLiteBackendPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kv.db")

	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	require.NoError(t, Save(New(b), "theme", "flat", V(1)))
	require.NoError(t, b.Close())

	b2, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	defer b2.Close()

	assert.Equal(t, "flat", Load(New(b2), "theme", "stereo", V(1)))

	tag, ok, err := b2.Get(VersionKey("theme"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", tag)
}

func TestSQLiteBackendDelete(t *testing.T) {
	b, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Set("k", "v"))
	require.NoError(t, b.Delete("k"))
	require.NoError(t, b.Delete("k"))

	_, ok, err := b.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}
