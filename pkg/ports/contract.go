package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunEntityRepositoryContract runs a suite of tests to verify that an EntityRepository
// implementation adheres to the defined interface contract.
func RunEntityRepositoryContract(t *testing.T, repo EntityRepository) {
	ctx := context.Background()
	title := "Contract " + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		entity, err := domain.NewEntity(map[string]any{
			"title":    title,
			"text":     "Hello ''world''",
			"tags":     []string{"alpha", "two words"},
			"modified": "20240102030405006",
			"caption":  "A caption",
		})
		require.NoError(t, err)

		require.NoError(t, repo.Save(ctx, entity), "Save should not return error")

		loaded, err := repo.Load(ctx, title)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, title, loaded.Title())
		assert.Equal(t, "Hello ''world''", loaded.Text())
		assert.Equal(t, []string{"alpha", "two words"}, loaded.Tags())
		assert.Equal(t, entity.Modified(), loaded.Modified())
		caption, _ := loaded.Field("caption")
		assert.Equal(t, "A caption", caption)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, domain.NewTextEntity(title, "first")))
		require.NoError(t, repo.Save(ctx, domain.NewTextEntity(title, "second")))

		loaded, err := repo.Load(ctx, title)
		require.NoError(t, err)
		assert.Equal(t, "second", loaded.Text())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := repo.Load(ctx, "non-existent-"+title)
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, domain.NewTextEntity(title, "bye")))

		require.NoError(t, repo.Delete(ctx, title), "Delete should not return error")

		_, err := repo.Load(ctx, title)
		assert.ErrorIs(t, err, domain.ErrEntityNotFound, "Load after Delete should return ErrEntityNotFound")
	})

	t.Run("List", func(t *testing.T) {
		a := title + " A"
		b := title + " B"
		require.NoError(t, repo.Save(ctx, domain.NewTextEntity(a, "a")))
		require.NoError(t, repo.Save(ctx, domain.NewTextEntity(b, "b")))

		defer func() {
			_ = repo.Delete(ctx, a)
			_ = repo.Delete(ctx, b)
		}()

		titles, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, titles, a)
		assert.Contains(t, titles, b)
	})
}
