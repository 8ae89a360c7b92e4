package loam_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/adapters/loam"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *loam.Repository {
	t.Helper()
	repo, err := loam.Open(t.TempDir())
	require.NoError(t, err, "Failed to init loam repo")
	return repo
}

func TestRepository_Contract(t *testing.T) {
	ports.RunEntityRepositoryContract(t, open(t))
}

func TestRepository_ReadsHandWrittenFrontmatter(t *testing.T) {
	repo := open(t)
	content := "---\ntitle: Hand Written\ntags: [alpha, beta]\ncolor: red\nmodified: \"20240102030405000\"\n---\nSome ''text''"
	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir(), "Hand%20Written.md"), []byte(content), 0o644))

	e, err := repo.Load(context.Background(), "Hand Written")
	require.NoError(t, err)
	assert.Equal(t, "Hand Written", e.Title())
	assert.Equal(t, "Some ''text''", e.Text())
	assert.Equal(t, []string{"alpha", "beta"}, e.Tags())
	assert.True(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Equal(e.Modified()))
	color, _ := e.Field("color")
	assert.Equal(t, "red", color)
}

func TestRepository_TitleWithSlashes(t *testing.T) {
	repo := open(t)
	ctx := context.Background()
	title := "$:/state/slider/Home"

	require.NoError(t, repo.Save(ctx, domain.NewTextEntity(title, "open")))
	_, err := os.Stat(filepath.Join(repo.Dir(), "$:%2Fstate%2Fslider%2FHome.md"))
	require.NoError(t, err, "Expected the title to be escaped into one file name")

	e, err := repo.Load(ctx, title)
	require.NoError(t, err)
	assert.Equal(t, "open", e.Text())

	titles, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{title}, titles)
}

func TestRepository_DeleteMissingIsNoop(t *testing.T) {
	assert.NoError(t, open(t).Delete(context.Background(), "ghost"))
}
