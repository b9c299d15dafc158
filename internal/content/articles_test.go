package content

import (
	"strings"
	"testing"
	"time"

	"digibox/internal/store"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newStore(t *testing.T) (*Store, *store.KV) {
	t.Helper()
	kv := store.New(store.NewMemoryBackend())
	s := NewStore(kv)
	s.Now = func() time.Time { return fixedNow }
	return s, kv
}

func ids(articles []Article) []int {
	out := make([]int, len(articles))
	for i, a := range articles {
		out[i] = a.ID
	}
	return out
}

func TestFirstRunSeeds(t *testing.T) {
	s, _ := newStore(t)
	if diff := cmp.Diff(SeedArticles(), s.List()); diff != "" {
		t.Errorf("seed mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateIDAssignment(t *testing.T) {
	s, _ := newStore(t)
	for _, a := range s.List() {
		require.NoError(t, s.Delete(a.ID))
	}

	first, err := s.Create("First", "")
	require.NoError(t, err)
	assert.Equal(t, 1, first.ID, "empty store assigns id 1")

	_, err = s.Create("Second", "")
	require.NoError(t, err)
	require.NoError(t, s.Delete(1))

	third, err := s.Create("Third", "")
	require.NoError(t, err)
	assert.Equal(t, 3, third.ID, "max(existing)+1, not count+1")
}

func TestCreateRequiresTitle(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Create("   ", "body")
	assert.ErrorIs(t, err, ErrEmptyTitle)
	assert.Equal(t, 4, s.Len())
}

func TestDeleteThenCreateScenario(t *testing.T) {
	s, kv := newStore(t)

	require.NoError(t, s.Delete(2))
	created, err := s.Create("Test", "")
	require.NoError(t, err)

	list := s.List()
	assert.Len(t, list, 4)
	assert.NotContains(t, ids(list), 2)
	assert.Equal(t, Article{ID: 5, Title: "Test", Date: "2026-03-14"}, created)
	assert.Equal(t, created, list[0], "new articles go first")

	reloaded := NewStore(kv)
	if diff := cmp.Diff(list, reloaded.List()); diff != "" {
		t.Errorf("persisted list mismatch (-want +got):\n%s", diff)
	}
}

func TestVersionBumpResetsToSeed(t *testing.T) {
	kv := store.New(store.NewMemoryBackend())

	s := NewStoreVersion(kv, 7)
	require.NoError(t, s.Delete(1))
	_, err := s.Create("Only in v7", "")
	require.NoError(t, err)

	same := NewStoreVersion(kv, 7)
	assert.Equal(t, s.List(), same.List())

	bumped := NewStoreVersion(kv, 8)
	if diff := cmp.Diff(SeedArticles(), bumped.List()); diff != "" {
		t.Errorf("expected seed after version bump (-want +got):\n%s", diff)
	}
}

func TestUpdateKeepsDate(t *testing.T) {
	s, _ := newStore(t)

	updated, err := s.Update(3, "M4 回顾（更新）", "new body")
	require.NoError(t, err)
	assert.Equal(t, "2024-11-15", updated.Date)
	assert.Equal(t, "new body", updated.Content)

	got, err := s.Get(3)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	_, err = s.Update(3, "", "x")
	assert.ErrorIs(t, err, ErrEmptyTitle)
	_, err = s.Update(99, "x", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMissing(t *testing.T) {
	s, _ := newStore(t)
	assert.ErrorIs(t, s.Delete(42), ErrNotFound)
	_, err := s.Get(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListIsACopy(t *testing.T) {
	s, _ := newStore(t)
	list := s.List()
	list[0].Title = "mutated"
	got, _ := s.Get(list[0].ID)
	assert.NotEqual(t, "mutated", got.Title)
}

func TestWriteFailureKeepsMemoryState(t *testing.T) {
	backend := store.NewMemoryBackend()
	s := NewStore(store.New(backend))
	backend.FailWrites = assert.AnError

	_, err := s.Create("Offline", "")
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())
}

func TestCategories(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 6)
	for _, c := range cats {
		assert.NotEmpty(t, c.Title)
		assert.Len(t, c.Paragraphs, 4)
	}
	hw, ok := CategoryByKey("hardware")
	require.True(t, ok)
	assert.Equal(t, "硬件", hw.Title)
	_, ok = CategoryByKey("admin")
	assert.False(t, ok)
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("**招新部门：**\n- 技术部", 60, false)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "技术部"))
}
