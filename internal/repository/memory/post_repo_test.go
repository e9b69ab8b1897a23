package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/goph-blog/internal/errs"
	"github.com/and161185/goph-blog/internal/model"
)

func strPtr(s string) *string { return &s }

func TestPostRepo_CreateListOrdered(t *testing.T) {
	t.Parallel()
	r := NewPostRepo()
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		_, err := r.Create(ctx, &model.Post{Title: title, AuthorID: 1})
		require.NoError(t, err)
	}
	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, p := range list {
		require.Equal(t, int64(i+1), p.ID)
	}
}

func TestPostRepo_IDsNeverReused(t *testing.T) {
	t.Parallel()
	r := NewPostRepo()
	ctx := context.Background()

	id1, _ := r.Create(ctx, &model.Post{Title: "a"})
	_, err := r.Delete(ctx, id1, nil)
	require.NoError(t, err)
	id2, _ := r.Create(ctx, &model.Post{Title: "b"})
	require.Greater(t, id2, id1)
}

func TestPostRepo_UpdatePartial(t *testing.T) {
	t.Parallel()
	r := NewPostRepo()
	ctx := context.Background()
	id, _ := r.Create(ctx, &model.Post{Title: "T", Content: "C", AuthorID: 7})

	got, err := r.Update(ctx, id, model.PostPatch{Title: strPtr("T2")}, nil)
	require.NoError(t, err)
	require.Equal(t, "T2", got.Title)
	require.Equal(t, "C", got.Content)

	got, err = r.Update(ctx, id, model.PostPatch{Content: strPtr("")}, nil)
	require.NoError(t, err)
	require.Equal(t, "T2", got.Title)
	require.Equal(t, "", got.Content)
	require.Equal(t, int64(7), got.AuthorID)
}

func TestPostRepo_AuthorizeRejectLeavesPostUntouched(t *testing.T) {
	t.Parallel()
	r := NewPostRepo()
	ctx := context.Background()
	id, _ := r.Create(ctx, &model.Post{Title: "T", Content: "C", AuthorID: 7})
	deny := func(model.Post) error { return errs.ErrNotOwner }

	_, err := r.Update(ctx, id, model.PostPatch{Title: strPtr("X")}, deny)
	require.ErrorIs(t, err, errs.ErrNotOwner)
	_, err = r.Delete(ctx, id, deny)
	require.ErrorIs(t, err, errs.ErrNotOwner)

	p, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "T", p.Title)
}

func TestPostRepo_NotFoundBeforeAuthorize(t *testing.T) {
	t.Parallel()
	r := NewPostRepo()
	ctx := context.Background()
	called := false
	check := func(model.Post) error { called = true; return errors.New("unreachable") }

	_, err := r.Update(ctx, 42, model.PostPatch{}, check)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = r.Delete(ctx, 42, check)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = r.Get(ctx, 42)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.False(t, called)
}

func TestPostRepo_DeleteReturnsRecord(t *testing.T) {
	t.Parallel()
	r := NewPostRepo()
	ctx := context.Background()
	id, _ := r.Create(ctx, &model.Post{Title: "bye"})

	p, err := r.Delete(ctx, id, func(model.Post) error { return nil })
	require.NoError(t, err)
	require.Equal(t, "bye", p.Title)

	n, _ := r.Count(ctx)
	require.Zero(t, n)
	_, err = r.Delete(ctx, id, nil)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPostRepo_ConcurrentCreateDistinctIDs(t *testing.T) {
	t.Parallel()
	r := NewPostRepo()

	var mu sync.Mutex
	seen := map[int64]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.Create(context.Background(), &model.Post{Title: "x"})
			require.NoError(t, err)
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, 100)
}
