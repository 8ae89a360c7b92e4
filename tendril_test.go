package tendril_test

import (
	"context"
	"testing"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/grammar"
	"github.com/aretw0/tendril/pkg/macro"
	"github.com/aretw0/tendril/pkg/render"
	"github.com/aretw0/tendril/pkg/tree"
	"github.com/aretw0/tendril/pkg/wikitext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWiki(t *testing.T, opts ...tendril.Option) *tendril.Wiki {
	t.Helper()
	w, err := tendril.New(opts...)
	require.NoError(t, err)
	return w
}

func TestNew_DuplicateMacroIsConfigError(t *testing.T) {
	_, err := tendril.New(tendril.WithMacro(macro.Macro{
		Info:    macro.Info{Name: "echo"},
		Execute: func(*macro.Call) (*macro.Output, error) { return &macro.Output{}, nil },
	}))
	var cfg *domain.ConfigError
	require.ErrorAs(t, err, &cfg)
	assert.ErrorIs(t, err, domain.ErrDuplicateMacro)
}

func TestNew_ExtraRuleAndMacro(t *testing.T) {
	w := newWiki(t,
		tendril.WithRule(grammar.Run, grammar.Rule{
			Name:    "mention",
			Pattern: `@(\w+)`,
			Parse: func(s grammar.Scanner, m grammar.Match) []tree.Node {
				s.SetPos(m.End)
				return []tree.Node{&tree.Macro{Name: "shout", Args: m.Group(1)}}
			},
		}),
		tendril.WithMacro(macro.Macro{
			Info: macro.Info{Name: "shout", Params: []macro.ParamSpec{{Name: "who", Mode: macro.ByPosition}}},
			Execute: func(c *macro.Call) (*macro.Output, error) {
				return &macro.Output{Nodes: []tree.Node{tree.NewElement("b", nil, tree.NewText(c.Params.Get("who")))}}, nil
			},
		}),
	)
	out, err := w.RenderText("hi @ana", "", render.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi <b>ana</b></p>", out)
}

func TestWiki_DisabledRules(t *testing.T) {
	w := newWiki(t, tendril.WithDisabledRules("emphasis"))
	out, err := w.RenderText("''plain''", "", render.FormatPlain)
	require.NoError(t, err)
	assert.Equal(t, "''plain''", out)
}

func TestWiki_RenderEntity(t *testing.T) {
	w := newWiki(t)
	w.Put(domain.NewTextEntity("Home", "! Hello\n\nSee [[Other]]."))

	html, err := w.RenderEntity("Home", render.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, `<div><h1>Hello</h1><p>See <a class="tendril-link tendril-missing" href="#Other">Other</a>.</p></div>`, html)

	_, err = w.RenderEntity("Nowhere", render.FormatHTML)
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)

	_, err = w.RenderEntity("Home", "application/pdf")
	assert.ErrorIs(t, err, domain.ErrUnknownFormat)
}

func TestWiki_MountReconcilesOnTick(t *testing.T) {
	w := newWiki(t)
	w.Put(domain.NewTextEntity("Home", "{{Part}}"))
	w.Put(domain.NewTextEntity("Part", "one"))
	w.Tick()

	sink := memory.NewSink()
	m := w.Mount("Home", sink, nil)
	assert.Equal(t, "<p><p>one</p></p>", sink.HTML())

	w.Put(domain.NewTextEntity("Part", "two"))
	assert.Equal(t, "<p><p>one</p></p>", sink.HTML(), "changes apply on the next tick")

	w.Tick()
	assert.Equal(t, "<p><p>two</p></p>", sink.HTML())
	assert.Equal(t, 1, m.LastStats().Rebuilt)

	m.Unmount()
	assert.Empty(t, sink.HTML())
	w.Put(domain.NewTextEntity("Part", "three"))
	w.Tick()
	assert.Empty(t, sink.HTML())
}

func findTag(nodes []*render.Node, tag string) *render.Node {
	for _, n := range nodes {
		if n.Kind == render.KindElement && n.Tag == tag {
			return n
		}
		if found := findTag(n.Children, tag); found != nil {
			return found
		}
	}
	return nil
}

func TestMount_DispatchAppliesChanges(t *testing.T) {
	w := newWiki(t)
	w.Put(domain.NewTextEntity("Page", "<<slider Details><hidden text>>"))

	sink := memory.NewSink()
	m := w.Mount("Page", sink, nil)
	assert.NotContains(t, sink.Text(), "hidden text")

	button := findTag(m.Tree().Roots, "button")
	require.NotNil(t, button)
	require.True(t, m.Dispatch(button.Handle, domain.NewMessage(wikitext.MsgClick, "")))

	assert.Contains(t, sink.Text(), "hidden text")
	assert.Equal(t, 1, m.Stats().Rebuilt)
}

func TestWiki_LoadAndPersist(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	require.NoError(t, repo.Save(ctx, domain.NewTextEntity("Stored", "from disk")))

	w := newWiki(t, tendril.WithRepository(repo))
	n, err := w.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"Stored"}, w.Titles())

	sub, err := w.Persist(ctx)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	w.Put(domain.NewTextEntity("New", "fresh"))
	w.Delete("Stored")
	w.Tick()

	saved, err := repo.Load(ctx, "New")
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.Text())
	_, err = repo.Load(ctx, "Stored")
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestWiki_SyncDoesNotWriteBack(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepository{Repository: memory.NewRepository()}
	w := newWiki(t, tendril.WithRepository(repo))
	sub, err := w.Persist(ctx)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, repo.Repository.Save(ctx, domain.NewTextEntity("Edited", "on disk")))
	changes := make(chan domain.ChangeSet, 2)
	changes <- domain.ChangeSet{"Edited": {Modified: true}}
	changes <- domain.ChangeSet{"Ghost": {Deleted: true}}
	close(changes)

	require.NoError(t, w.Sync(ctx, changes))

	e, ok := w.Get("Edited")
	require.True(t, ok)
	assert.Equal(t, "on disk", e.Text())
	assert.Zero(t, repo.saves, "synced entities are not saved again")

	w.Put(domain.NewTextEntity("Edited", "in memory"))
	w.Tick()
	assert.Equal(t, 1, repo.saves)
}

func TestWiki_NoRepository(t *testing.T) {
	w := newWiki(t)
	_, err := w.Load(context.Background())
	assert.ErrorIs(t, err, tendril.ErrNoRepository)
	_, err = w.Persist(context.Background())
	assert.ErrorIs(t, err, tendril.ErrNoRepository)
}

type countingRepository struct {
	*memory.Repository
	saves int
}

func (r *countingRepository) Save(ctx context.Context, e *domain.Entity) error {
	r.saves++
	return r.Repository.Save(ctx, e)
}
