package render_test

import (
	"testing"

	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/macro"
	"github.com/aretw0/tendril/pkg/parser"
	"github.com/aretw0/tendril/pkg/render"
	"github.com/aretw0/tendril/pkg/tree"
	"github.com/aretw0/tendril/pkg/wikitext"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *memory.Store
	macros *macro.Registry
	exec   *render.Executor
	parser *parser.Parser
	sink   *memory.Sink
	events []*domain.ExecuteEvent
}

func newFixture(t *testing.T, entities ...*domain.Entity) *fixture {
	t.Helper()
	g, err := wikitext.NewGrammar()
	require.NoError(t, err)
	macros := macro.NewRegistry()
	require.NoError(t, wikitext.RegisterMacros(macros))

	f := &fixture{
		store:  memory.NewStore(),
		macros: macros,
		parser: parser.New(g),
		sink:   memory.NewSink(),
	}
	f.exec = render.NewExecutor(f.store, macros, f.parser, render.WithHooks(domain.LifecycleHooks{
		OnExecute: func(e *domain.ExecuteEvent) { f.events = append(f.events, e) },
	}))
	for _, e := range entities {
		f.store.Put(e)
	}
	f.store.Flush()
	return f
}

// mount realizes title into the sink and reconciles it on every store tick.
func (f *fixture) mount(title string) (*render.Tree, *render.Stats) {
	tr := f.exec.ExecuteEntity(title)
	tr.Realize(f.sink, nil)
	stats := &render.Stats{}
	f.store.OnChange(func(cs domain.ChangeSet) {
		*stats = tr.Reconcile(cs)
	})
	return tr, stats
}

func text(title, body string) *domain.Entity {
	return domain.NewTextEntity(title, body)
}

func tagged(t *testing.T, title, tags string) *domain.Entity {
	e, err := domain.NewEntity(map[string]any{"title": title, "tags": tags})
	require.NoError(t, err)
	return e
}

// find returns the first node, depth first, for which match is true.
func find(nodes []*render.Node, match func(*render.Node) bool) *render.Node {
	for _, n := range nodes {
		if match(n) {
			return n
		}
		if found := find(n.Children, match); found != nil {
			return found
		}
	}
	return nil
}

func byTag(tag string) func(*render.Node) bool {
	return func(n *render.Node) bool { return n.Kind == render.KindElement && n.Tag == tag }
}

func byMacro(name string) func(*render.Node) bool {
	return func(n *render.Node) bool { return n.Kind == render.KindMacro && n.Name == name }
}

func TestRender_Idempotent(t *testing.T) {
	f := newFixture(t, text("A", "! Title\n\nHello ''world'' <<echo hi>>"))

	first, err := f.exec.ExecuteEntity("A").Render(render.FormatHTML)
	require.NoError(t, err)
	second, err := f.exec.ExecuteEntity("A").Render(render.FormatHTML)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "<div><h1>Title</h1><p>Hello <strong>world</strong> hi</p></div>", first)
}

func TestRender_Formats(t *testing.T) {
	f := newFixture(t, text("A", "! Title\n\nSome ''bold'' text"))
	tr := f.exec.ExecuteEntity("A")

	plain, err := tr.Render(render.FormatPlain)
	require.NoError(t, err)
	assert.Equal(t, "TitleSome bold text", plain)

	md, err := tr.Render(render.FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nSome **bold** text\n", md)

	_, err = tr.Render("application/pdf")
	assert.ErrorIs(t, err, domain.ErrUnknownFormat)
}

func TestRender_Golden(t *testing.T) {
	f := newFixture(t, text("Golden", "! Heading\n\n"+
		"A ''bold'' and //italic// [[link|Target]] ~NoLink.\n\n"+
		"* one\n* two\n** nested\n\n"+
		"<<echo \"x < y\">>\n"))

	out, err := f.exec.ExecuteEntity("Golden").Render(render.FormatHTML)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "wikitext", []byte(out))
}

func TestRender_SkipsUnsafeAttributeNames(t *testing.T) {
	tr := &render.Tree{Roots: []*render.Node{{
		Kind:       render.KindElement,
		Tag:        "span",
		Attributes: map[string]string{`x"onclick`: "1", "a<b": "2", "class": "ok"},
		Children:   []*render.Node{{Kind: render.KindText, Text: "hi"}},
	}}}
	out, err := tr.Render(render.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, `<span class="ok">hi</span>`, out)
}

func TestRender_PlainTextEntity(t *testing.T) {
	e, err := domain.NewEntity(map[string]any{"title": "P", "text": "''not bold''", "type": domain.TypePlain})
	require.NoError(t, err)
	f := newFixture(t, e)

	out, err := f.exec.ExecuteEntity("P").Render(render.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "<pre>&#39;&#39;not bold&#39;&#39;</pre>", out)
}

func TestExecute_ErrorMarkersAreLocal(t *testing.T) {
	f := newFixture(t, text("A", "before <<nope>> <<list>> after"))

	tr := f.exec.ExecuteEntity("A")
	out, err := tr.Render(render.FormatHTML)
	require.NoError(t, err)

	assert.Contains(t, out, "before ")
	assert.Contains(t, out, " after")
	assert.Contains(t, out, `<span class="tendril-error">unknown macro &#34;nope&#34;</span>`)

	list := find(tr.Roots, byMacro("list"))
	require.NotNil(t, list)
	var perr *domain.ParamError
	require.ErrorAs(t, list.Err, &perr)
	assert.Equal(t, "filter", perr.Param)
}

func TestExecute_CycleIsReportedAtReentry(t *testing.T) {
	f := newFixture(t, text("A", "{{B}}"), text("B", "{{A}}"))

	tr := f.exec.ExecuteEntity("A")
	var rerr *domain.RecursionError
	failed := find(tr.Roots, func(n *render.Node) bool { return n.Err != nil })
	require.NotNil(t, failed)
	require.ErrorAs(t, failed.Err, &rerr)
	assert.Equal(t, "A", rerr.Title)
	assert.Equal(t, []string{"A", "B"}, rerr.Chain)

	out, err := tr.Render(render.FormatHTML)
	require.NoError(t, err)
	assert.Contains(t, out, render.ErrorClass)
}

func TestExecute_ContextAlreadyInAncestors(t *testing.T) {
	f := newFixture(t)
	pt := f.parser.Parse("hello")

	tr := f.exec.Execute(pt, []string{"X"}, "X")
	require.Len(t, tr.Roots, 1)
	var rerr *domain.RecursionError
	assert.ErrorAs(t, tr.Roots[0].Err, &rerr)

	ok := f.exec.Execute(pt, []string{"Y"}, "X")
	out, err := ok.Render(render.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", out)
}

func TestExecute_DependenciesBubbleUp(t *testing.T) {
	f := newFixture(t, text("A", "{{B}} [[C]] <<view caption>>"), text("B", "b"))

	tr := f.exec.ExecuteEntity("A")
	d := tr.Dependencies()
	assert.True(t, d.Has("A"))
	assert.True(t, d.Has("B"))
	assert.True(t, d.Has("C"))
	assert.False(t, d.All())

	changed := domain.ChangeSet{}
	changed.Record("C", false)
	assert.True(t, d.HasChanged(changed, "A"))
	unrelated := domain.ChangeSet{}
	unrelated.Record("Z", false)
	assert.False(t, d.HasChanged(unrelated, "A"))
}

func TestReconcile_UnaffectedSubtreeKeepsHandle(t *testing.T) {
	f := newFixture(t, text("A", "{{B}}\n\n{{C}}"), text("B", "bee"), text("C", "sea"))
	tr, stats := f.mount("A")
	assert.Equal(t, "<div><p><p>bee</p></p><p><p>sea</p></p></div>", f.sink.HTML())

	frame := tr.Roots[0].Children[0]
	bPara, cPara := frame.Children[0], frame.Children[1]
	cHandle := cPara.Handle
	cTransclusion := cPara.Children[0]

	f.store.Put(text("B", "buzz"))
	f.store.Flush()

	assert.Same(t, cHandle, cPara.Handle)
	assert.Same(t, cTransclusion, cPara.Children[0])
	assert.Equal(t, domain.OutcomeReused, cPara.Outcome)
	assert.Equal(t, domain.OutcomeRebuilt, bPara.Children[0].Outcome)
	assert.Equal(t, 1, stats.Rebuilt)
	assert.Equal(t, "<div><p><p>buzz</p></p><p><p>sea</p></p></div>", f.sink.HTML())
}

func TestReconcile_UnrelatedChangeTouchesNothing(t *testing.T) {
	f := newFixture(t, text("A", "{{B}}"), text("B", "bee"))
	tr, stats := f.mount("A")
	root := tr.Roots[0].Handle
	f.sink.ResetOps()

	f.store.Put(text("Z", "unrelated"))
	f.store.Flush()

	assert.Same(t, root, tr.Roots[0].Handle)
	assert.Empty(t, f.sink.Ops())
	assert.Equal(t, render.Stats{Reused: 1}, *stats)
}

func TestReconcile_GlobalDependencyAlwaysReevaluates(t *testing.T) {
	f := newFixture(t, text("A", "<<count>>"))
	evaluations := 0
	f.macros.MustRegister(macro.Macro{
		Info: macro.Info{Name: "count", DependentAll: true},
		Execute: func(c *macro.Call) (*macro.Output, error) {
			evaluations++
			n := len(c.Store().AllTitles(nil))
			return &macro.Output{Nodes: []tree.Node{tree.NewText(string(rune('0' + n)))}}, nil
		},
	})
	_, _ = f.mount("A")
	assert.Equal(t, 1, evaluations)
	assert.Equal(t, "1", f.sink.Text())

	f.store.Put(text("Unrelated", ""))
	f.store.Flush()
	assert.Equal(t, 2, evaluations)
	assert.Equal(t, "2", f.sink.Text())
}

func TestReconcile_ListDiffIsMinimal(t *testing.T) {
	f := newFixture(t,
		text("L", `<<list "[tag[item]]">>`),
		tagged(t, "A", "item"), tagged(t, "B", "item"), tagged(t, "C", "item"),
	)
	tr, stats := f.mount("L")

	list := find(tr.Roots, byMacro("list"))
	require.NotNil(t, list)
	require.True(t, list.IsCollection())
	items := list.Items()
	require.Len(t, items, 3)
	b, c := items[1], items[2]
	bHandle, cHandle := b.Handle, c.Handle

	f.store.Delete("A")
	f.store.Put(tagged(t, "D", "item"))
	f.store.Flush()

	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 0, stats.Rebuilt)

	items = list.Items()
	require.Len(t, items, 3)
	assert.Same(t, b, items[0])
	assert.Same(t, c, items[1])
	assert.Same(t, bHandle, items[0].Handle)
	assert.Same(t, cHandle, items[1].Handle)
	assert.Equal(t, wikitext.ItemKey("D", ""), items[2].Key)
	assert.Equal(t, domain.OutcomeInserted, items[2].Outcome)

	assert.Equal(t,
		`<div><div><a class="tendril-link" href="#B">B</a></div>`+
			`<div><a class="tendril-link" href="#C">C</a></div>`+
			`<div><a class="tendril-link" href="#D">D</a></div></div>`,
		f.sink.HTML())
}

func TestReconcile_ListReorder(t *testing.T) {
	f := newFixture(t,
		text("L", `<<list "[tag[item]!sort[title]]">>`),
		tagged(t, "A", "item"), tagged(t, "B", "item"),
	)
	_, stats := f.mount("L")
	assert.Contains(t, f.sink.Text(), "BA")

	f.store.Put(tagged(t, "C", "item"))
	f.store.Flush()
	assert.Equal(t, "CBA", f.sink.Text())
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 0, stats.Removed)
}

func TestReconcile_EmptyMessage(t *testing.T) {
	f := newFixture(t, text("L", `<<list "[tag[item]]" emptyMessage:"nothing here">>`))
	_, stats := f.mount("L")
	assert.Equal(t, "nothing here", f.sink.Text())

	f.store.Put(tagged(t, "A", "item"))
	f.store.Flush()
	assert.Equal(t, "A", f.sink.Text())
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 1, stats.Inserted)
}

func TestReconcile_FocusedEditIsLeftAlone(t *testing.T) {
	note, err := domain.NewEntity(map[string]any{"title": "Note", "caption": "one"})
	require.NoError(t, err)
	f := newFixture(t, note, text("Page", "<<edit caption tiddler:Note>>"))
	tr, stats := f.mount("Page")

	edit := find(tr.Roots, byMacro("edit"))
	require.NotNil(t, edit)
	input := edit.Handle.(*memory.Node)
	assert.Equal(t, "one", input.Attributes["value"])

	f.sink.Focus(input)
	next, err := note.With(map[string]any{"caption": "two"})
	require.NoError(t, err)
	f.store.Put(next)
	f.store.Flush()

	assert.Same(t, input, edit.Handle)
	assert.Equal(t, 1, stats.Refreshed)
	assert.Equal(t, 0, stats.Rebuilt)
	assert.Equal(t, "one", input.Attributes["value"], "focused input keeps what the user sees")

	f.sink.Blur()
	last, err := note.With(map[string]any{"caption": "three"})
	require.NoError(t, err)
	f.store.Put(last)
	f.store.Flush()

	assert.Same(t, input, edit.Handle)
	assert.Equal(t, "three", input.Attributes["value"])
}

func TestReconcile_BlurredEditCatchesUpOnUnrelatedChange(t *testing.T) {
	note, err := domain.NewEntity(map[string]any{"title": "Note", "caption": "one"})
	require.NoError(t, err)
	f := newFixture(t, note, text("Page", "<<edit caption tiddler:Note>>"))
	tr, _ := f.mount("Page")

	edit := find(tr.Roots, byMacro("edit"))
	require.NotNil(t, edit)
	input := edit.Handle.(*memory.Node)

	f.sink.Focus(input)
	changed, err := note.With(map[string]any{"caption": "two"})
	require.NoError(t, err)
	f.store.Put(changed)
	f.store.Flush()
	assert.Equal(t, "one", input.Attributes["value"])

	f.sink.Blur()
	other, err := changed.With(map[string]any{"other": "x"})
	require.NoError(t, err)
	f.store.Put(other)
	f.store.Flush()

	assert.Same(t, input, edit.Handle)
	assert.Equal(t, "two", input.Attributes["value"])
}

func TestDispatch_EditWritesBack(t *testing.T) {
	f := newFixture(t, text("Page", "<<edit caption>>"))
	tr, _ := f.mount("Page")

	input := find(tr.Roots, byTag("input"))
	require.NotNil(t, input)
	assert.True(t, tr.Dispatch(input.Handle, &domain.Message{Type: wikitext.MsgChange, Param: "typed"}))

	page, ok := f.store.Get("Page")
	require.True(t, ok)
	caption, _ := page.Field("caption")
	assert.Equal(t, "typed", caption)
}

func TestDispatch_BubblesToSlider(t *testing.T) {
	f := newFixture(t, text("Page", "<<slider Details><inner text>>"))
	tr, _ := f.mount("Page")
	assert.NotContains(t, f.sink.Text(), "inner text")

	button := find(tr.Roots, byTag("button"))
	require.NotNil(t, button)
	consumed := tr.Dispatch(button.Handle, domain.NewMessage(wikitext.MsgClick, ""))
	require.True(t, consumed)

	state, ok := f.store.Get("$:/state/slider/Page/Details")
	require.True(t, ok)
	assert.Equal(t, "open", state.Text())

	f.store.Flush()
	assert.Contains(t, f.sink.Text(), "inner text")
}

func TestDispatch_UnhandledMessage(t *testing.T) {
	f := newFixture(t, text("Page", "plain"))
	tr, _ := f.mount("Page")

	p := find(tr.Roots, byTag("p"))
	require.NotNil(t, p)
	assert.False(t, tr.Dispatch(p.Handle, domain.NewMessage("nobody-listens", "")))
	assert.False(t, tr.Dispatch("not a handle", domain.NewMessage(wikitext.MsgClick, "")))
}

func TestDetach_RemovesOutput(t *testing.T) {
	f := newFixture(t, text("A", "x"))
	tr, _ := f.mount("A")
	require.NotEmpty(t, f.sink.HTML())

	tr.Detach()
	assert.Empty(t, f.sink.HTML())
	assert.Equal(t, render.StateDetached, tr.Roots[0].State)
}
