package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guyuepp/go-comment-engine/domain"
)

func TestCommentCache(t *testing.T) {
	cache := NewCommentCache(time.Minute)
	ctx := context.Background()

	_, err := cache.GetList(ctx, "comments:recent")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	rows := []domain.CommentRow{{Comment: domain.Comment{ID: 1, Comment: "a"}}}
	require.NoError(t, cache.SetList(ctx, "comments:recent", 0, rows))

	// the cache keeps its own copy
	rows[0].Comment.Comment = "changed"

	got, err := cache.GetList(ctx, "comments:recent")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Comment.Comment)

	require.NoError(t, cache.Invalidate(ctx, "comments:recent", "comments:page:/x"))
	_, err = cache.GetList(ctx, "comments:recent")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestCommentCache_Expires(t *testing.T) {
	cache := NewCommentCache(20 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, cache.SetList(ctx, "k", 0, []domain.CommentRow{}))
	_, err := cache.GetList(ctx, "k")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	_, err = cache.GetList(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestCommentCache_StaleGenerationIsDropped(t *testing.T) {
	cache := NewCommentCache(time.Minute)
	ctx := context.Background()

	gen, err := cache.Generation(ctx, "comments:page:/a")
	require.NoError(t, err)

	// a write lands while the rows are being loaded
	require.NoError(t, cache.Invalidate(ctx, "comments:page:/a"))

	require.NoError(t, cache.SetList(ctx, "comments:page:/a", gen, []domain.CommentRow{}))
	_, err = cache.GetList(ctx, "comments:page:/a")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	gen, err = cache.Generation(ctx, "comments:page:/a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
	require.NoError(t, cache.SetList(ctx, "comments:page:/a", gen, []domain.CommentRow{}))
	_, err = cache.GetList(ctx, "comments:page:/a")
	assert.NoError(t, err)
}
