package mcp

import (
	"context"
	"testing"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/render"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*Server, *tendril.Wiki) {
	t.Helper()
	wiki, err := tendril.New()
	require.NoError(t, err)
	wiki.Put(domain.NewTextEntity("Home", "Hello ''world''"))
	wiki.Tick()
	return NewServer(wiki), wiki
}

func TestListEntities(t *testing.T) {
	s, _ := newServer(t)
	res, err := s.handleListEntities(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.JSONEq(t, `["Home"]`, res.Content[0].(mcp.TextContent).Text)
}

func TestGetEntity(t *testing.T) {
	s, _ := newServer(t)
	ctx := context.Background()

	got, err := s.handleGetEntity(ctx, mcp.CallToolRequest{}, map[string]any{"title": "Home"})
	require.NoError(t, err)
	assert.Equal(t, "Home", got.Title)
	assert.Equal(t, "Hello ''world''", got.Fields["text"])

	_, err = s.handleGetEntity(ctx, mcp.CallToolRequest{}, map[string]any{"title": "Nowhere"})
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestRenderEntity(t *testing.T) {
	s, _ := newServer(t)
	ctx := context.Background()

	got, err := s.handleRenderEntity(ctx, mcp.CallToolRequest{}, map[string]any{"title": "Home"})
	require.NoError(t, err)
	assert.Equal(t, render.FormatHTML, got.Format)
	assert.Equal(t, "<p>Hello <strong>world</strong></p>", got.Output)

	got, err = s.handleRenderEntity(ctx, mcp.CallToolRequest{}, map[string]any{"title": "Home", "format": render.FormatPlain})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got.Output)

	_, err = s.handleRenderEntity(ctx, mcp.CallToolRequest{}, map[string]any{"title": "Home", "format": "image/png"})
	assert.ErrorIs(t, err, domain.ErrUnknownFormat)
}

func TestPutEntity(t *testing.T) {
	s, wiki := newServer(t)
	ctx := context.Background()

	got, err := s.handlePutEntity(ctx, mcp.CallToolRequest{}, map[string]any{
		"title":  "Note",
		"text":   "see [[Home]]",
		"fields": `{"tags":"draft","title":"ignored"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "Note", got.Title)
	assert.Equal(t, "draft", got.Fields["tags"])

	e, ok := wiki.Get("Note")
	require.True(t, ok)
	assert.True(t, e.HasTag("draft"))

	_, err = s.handlePutEntity(ctx, mcp.CallToolRequest{}, map[string]any{"title": "Bad", "fields": "{"})
	assert.Error(t, err)
	_, err = s.handlePutEntity(ctx, mcp.CallToolRequest{}, map[string]any{"text": "no title"})
	assert.ErrorIs(t, err, domain.ErrMissingTitle)
}

func TestTitlesResource(t *testing.T) {
	s, _ := newServer(t)
	contents, err := s.handleTitlesResource(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text := contents[0].(mcp.TextResourceContents)
	assert.Equal(t, TitlesURI, text.URI)
	assert.JSONEq(t, `["Home"]`, text.Text)
}
