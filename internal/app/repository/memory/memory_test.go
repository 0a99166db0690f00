package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sifan077/linkgate/internal/app/model"
	"github.com/sifan077/linkgate/internal/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_InsertLinkRejectsDuplicateSlug(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.InsertLink(ctx, &model.Link{ID: "1", Slug: "abcd", Target: "https://a.example"}))
	err := store.InsertLink(ctx, &model.Link{ID: "2", Slug: "abcd", Target: "https://b.example"})
	assert.ErrorIs(t, err, repository.ErrSlugExists)

	link, err := store.FindLinkBySlug(ctx, "abcd")
	require.NoError(t, err)
	assert.Equal(t, "https://a.example", link.Target)
}

func TestStore_FindReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.InsertLink(ctx, &model.Link{ID: "1", Slug: "abcd", Target: "https://a.example"}))

	link, err := store.FindLinkBySlug(ctx, "abcd")
	require.NoError(t, err)
	link.Target = "mutated"

	again, err := store.FindLinkBySlug(ctx, "abcd")
	require.NoError(t, err)
	assert.Equal(t, "https://a.example", again.Target)
}

func TestStore_UpdateLinkRotatesSlug(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.InsertLink(ctx, &model.Link{ID: "1", Slug: "old1", IsActive: true}))

	slug := "new1"
	updated, err := store.UpdateLink(ctx, "1", repository.LinkUpdate{Slug: &slug})
	require.NoError(t, err)
	assert.Equal(t, "new1", updated.Slug)

	_, err = store.FindLinkBySlug(ctx, "old1")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	_, err = store.FindLinkBySlug(ctx, "new1")
	assert.NoError(t, err)
}

func TestStore_UpdateLinkConflictLeavesLinkUntouched(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.InsertLink(ctx, &model.Link{ID: "1", Slug: "aaaa", IsActive: true}))
	require.NoError(t, store.InsertLink(ctx, &model.Link{ID: "2", Slug: "bbbb", IsActive: true}))

	slug := "bbbb"
	inactive := false
	_, err := store.UpdateLink(ctx, "1", repository.LinkUpdate{Slug: &slug, IsActive: &inactive})
	assert.ErrorIs(t, err, repository.ErrSlugExists)

	link, err := store.FindLinkBySlug(ctx, "aaaa")
	require.NoError(t, err)
	assert.True(t, link.IsActive)
}

func TestStore_UpdateLinkExpiry(t *testing.T) {
	ctx := context.Background()
	store := New()
	expires := time.Now().Add(time.Hour)
	require.NoError(t, store.InsertLink(ctx, &model.Link{ID: "1", Slug: "aaaa", ExpiresAt: &expires}))

	updated, err := store.UpdateLink(ctx, "1", repository.LinkUpdate{ClearExpiresAt: true})
	require.NoError(t, err)
	assert.Nil(t, updated.ExpiresAt)

	_, err = store.UpdateLink(ctx, "missing", repository.LinkUpdate{ClearExpiresAt: true})
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

func TestStore_ClicksAreCountedAndOrdered(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.InsertLink(ctx, &model.Link{ID: "1", Slug: "aaaa"}))

	base := time.Now()
	for i := 0; i < 60; i++ {
		click := &model.Click{ID: fmt.Sprintf("c%d", i), At: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, store.InsertClickAndIncrement(ctx, "1", click))
	}

	link, err := store.FindLinkBySlug(ctx, "aaaa")
	require.NoError(t, err)
	assert.EqualValues(t, 60, link.TotalClicks)

	recent, err := store.ListRecentClicks(ctx, "1", 50)
	require.NoError(t, err)
	require.Len(t, recent, 50)
	assert.True(t, recent[0].At.Equal(base.Add(59*time.Second)))
	assert.True(t, recent[0].At.After(recent[1].At))

	err = store.InsertClickAndIncrement(ctx, "missing", &model.Click{ID: "x"})
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

func TestStore_DuplicateClickIsRejected(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.InsertLink(ctx, &model.Link{ID: "1", Slug: "aaaa"}))

	require.NoError(t, store.InsertClickAndIncrement(ctx, "1", &model.Click{ID: "c1", At: time.Now()}))
	err := store.InsertClickAndIncrement(ctx, "1", &model.Click{ID: "c1", At: time.Now()})
	assert.ErrorIs(t, err, repository.ErrClickExists)

	link, err := store.FindLinkBySlug(ctx, "aaaa")
	require.NoError(t, err)
	assert.EqualValues(t, 1, link.TotalClicks)
	assert.Equal(t, 1, store.ClickCount("1"))
}

func TestStore_LinksDoNotShareALock(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.InsertLink(ctx, &model.Link{ID: "a", Slug: "aaaa", Target: "https://a.example", IsActive: true}))
	require.NoError(t, store.InsertLink(ctx, &model.Link{ID: "b", Slug: "bbbb", Target: "https://b.example", IsActive: true}))

	busy, ok := store.byID("b")
	require.True(t, ok)
	busy.mu.Lock()
	defer busy.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		if _, err := store.FindLinkBySlug(ctx, "aaaa"); err != nil {
			done <- err
			return
		}
		done <- store.InsertClickAndIncrement(ctx, "a", &model.Click{ID: "c1", At: time.Now()})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("work on one link blocked behind another link's lock")
	}
	assert.Equal(t, 1, store.ClickCount("a"))
}

func TestStore_ConcurrentClicksAcrossLinks(t *testing.T) {
	ctx := context.Background()
	store := New()
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		require.NoError(t, store.InsertLink(ctx, &model.Link{ID: id, Slug: "slug-" + id, Target: "https://x.example", IsActive: true}))
	}

	var wg sync.WaitGroup
	for i := 0; i < 400; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := ids[i%len(ids)]
			assert.NoError(t, store.InsertClickAndIncrement(ctx, id, &model.Click{ID: fmt.Sprintf("click-%d", i), At: time.Now()}))
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		link, err := store.FindLinkBySlug(ctx, "slug-"+id)
		require.NoError(t, err)
		assert.Equal(t, int64(100), link.TotalClicks)
		assert.Equal(t, 100, store.ClickCount(id))
	}
}
