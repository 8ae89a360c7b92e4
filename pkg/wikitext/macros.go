package wikitext

import (
	"net/url"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/macro"
	"github.com/aretw0/tendril/pkg/tree"
)

// Message types understood by the core macros.
const (
	MsgClick  = "tendril-click"
	MsgChange = "tendril-change"
	MsgToggle = "tendril-toggle"
)

// Classes set on elements produced by the core macros.
const (
	ClassLink    = "tendril-link"
	ClassMissing = "tendril-missing"
	ClassSlider  = "tendril-slider"
)

// Macros returns the core macro set.
func Macros() []macro.Macro {
	return []macro.Macro{
		echoMacro(),
		linkMacro(),
		viewMacro(),
		tiddlerMacro(),
		listMacro(),
		fieldsMacro(),
		editMacro(),
		buttonMacro(),
		sliderMacro(),
	}
}

// RegisterMacros adds the core macros to r.
func RegisterMacros(r *macro.Registry) error {
	for _, m := range Macros() {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

func echoMacro() macro.Macro {
	return macro.Macro{
		Info: macro.Info{
			Name:   "echo",
			Params: []macro.ParamSpec{{Name: "text", Mode: macro.ByNameOrPosition}},
		},
		Execute: func(c *macro.Call) (*macro.Output, error) {
			return &macro.Output{Nodes: []tree.Node{tree.NewText(c.Params.Get("text"))}}, nil
		},
	}
}

// LinkHref is the href of a link to title.
func LinkHref(title string) string {
	return "#" + url.PathEscape(title)
}

func linkMacro() macro.Macro {
	return macro.Macro{
		Info: macro.Info{
			Name:   "link",
			Params: []macro.ParamSpec{{Name: "to", Mode: macro.ByNameOrPosition, Type: macro.TypeEntityRef}},
		},
		Execute: func(c *macro.Call) (*macro.Output, error) {
			to := c.Params.Get("to")
			if to == "" {
				to = c.Title
			}
			class := ClassLink
			if !c.Exists(to) {
				class += " " + ClassMissing
			}
			content := c.Content
			if len(content) == 0 {
				content = []tree.Node{tree.NewText(to)}
			}
			return &macro.Output{Nodes: []tree.Node{
				tree.NewElement("a", map[string]string{"href": LinkHref(to), "class": class}, content...),
			}}, nil
		},
	}
}

// subject reads the entity named by the tiddler parameter, or the context entity.
func subject(c *macro.Call) (*domain.Entity, string, bool) {
	if title := c.Params.Get("tiddler"); title != "" {
		e, ok := c.Entity(title)
		return e, title, ok
	}
	e, ok := c.ContextEntity()
	return e, c.Title, ok
}

type viewConfig struct {
	Field    string `mapstructure:"field"`
	Format   string `mapstructure:"format"`
	Template string `mapstructure:"template"`
}

func viewMacro() macro.Macro {
	return macro.Macro{
		Info: macro.Info{
			Name: "view",
			Params: []macro.ParamSpec{
				{Name: "tiddler", Mode: macro.ByName, Type: macro.TypeEntityRef},
				{Name: "field", Mode: macro.ByPosition, Position: 0, Default: domain.FieldText},
				{Name: "format", Mode: macro.ByPosition, Position: 1, Default: "text"},
				{Name: "template", Mode: macro.ByName, Default: "2006-01-02 15:04"},
			},
		},
		Execute: func(c *macro.Call) (*macro.Output, error) {
			var cfg viewConfig
			if err := c.Params.Decode(&cfg); err != nil {
				return nil, err
			}
			entity, title, ok := subject(c)
			if !ok {
				return &macro.Output{}, nil
			}
			value, _ := entity.Field(cfg.Field)

			switch cfg.Format {
			case "link":
				return &macro.Output{
					Nodes: []tree.Node{&tree.Macro{Name: "link", Preset: map[string]string{"to": value}}},
					Value: value,
				}, nil
			case "wikified":
				if cfg.Field == domain.FieldText {
					nodes, _ := c.ParseEntity(title)
					return &macro.Output{Nodes: nodes, Context: title, Source: title}, nil
				}
				return &macro.Output{Nodes: c.Parse(value), Context: title, Value: value}, nil
			case "date":
				t, err := domain.ParseDate(value)
				if err != nil {
					return nil, &domain.ParamError{Macro: c.Name, Param: "field", Reason: err.Error()}
				}
				value = t.Format(cfg.Template)
			case "text":
			default:
				return nil, &domain.ParamError{Macro: c.Name, Param: "format", Reason: "unknown format " + cfg.Format}
			}
			return &macro.Output{Nodes: []tree.Node{tree.NewText(value)}, Value: value}, nil
		},
	}
}

func tiddlerMacro() macro.Macro {
	return macro.Macro{
		Info: macro.Info{
			Name: "tiddler",
			Params: []macro.ParamSpec{
				{Name: "target", Mode: macro.ByNameOrPosition, Type: macro.TypeEntityRef},
				{Name: "template", Mode: macro.ByName, Type: macro.TypeEntityRef},
				{Name: "templateText", Mode: macro.ByName},
			},
		},
		Execute: func(c *macro.Call) (*macro.Output, error) {
			target := c.Params.Get("target")
			if target == "" {
				target = c.Title
			}
			return macro.Transclude(c, target, c.Params.Get("template"), c.Params.Get("templateText"))
		},
	}
}

// ItemKey is the collection key of one list item. Items rendered through an
// inline template text are keyed with an empty template.
func ItemKey(title, template string) string {
	return title + "|" + template
}

func listMacro() macro.Macro {
	return macro.Macro{
		Info: macro.Info{
			Name: "list",
			Params: []macro.ParamSpec{
				{Name: "filter", Mode: macro.ByNameOrPosition, Type: macro.TypeQuery, Required: true},
				{Name: "template", Mode: macro.ByName, Type: macro.TypeEntityRef},
				{Name: "templateText", Mode: macro.ByName},
				{Name: "emptyMessage", Mode: macro.ByName},
				{Name: "tag", Mode: macro.ByName, Default: "div"},
				{Name: "class", Mode: macro.ByName},
			},
		},
		Execute: func(c *macro.Call) (*macro.Output, error) {
			template := c.Params.Get("template")
			templateText := c.Params.Get("templateText")
			coll := &macro.Collection{Tag: c.Params.Get("tag")}
			if class := c.Params.Get("class"); class != "" {
				coll.Attributes = map[string]string{"class": class}
			}
			for _, title := range c.Filter(c.Params.Query("filter")) {
				coll.Items = append(coll.Items, macro.Item{
					Key:  ItemKey(title, template),
					Node: listItem(title, template, templateText),
				})
			}
			if len(coll.Items) == 0 {
				if msg := c.Params.Get("emptyMessage"); msg != "" {
					coll.Items = []macro.Item{{Key: macro.EmptyKey, Node: single(c.Parse(msg))}}
				}
			}
			return &macro.Output{Collection: coll}, nil
		},
	}
}

func listItem(title, template, templateText string) tree.Node {
	if template == "" && templateText == "" {
		link := &tree.Macro{Name: "link", Preset: map[string]string{"to": title}}
		return &tree.Element{Tag: "div", Children: []tree.Node{link}, Block: true}
	}
	preset := map[string]string{"target": title}
	if template != "" {
		preset["template"] = template
	}
	if templateText != "" {
		preset["templateText"] = templateText
	}
	return &tree.Macro{Name: "tiddler", Preset: preset, Block: true}
}

func single(nodes []tree.Node) tree.Node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	return &tree.Element{Tag: "span", Children: nodes}
}

func fieldsMacro() macro.Macro {
	return macro.Macro{
		Info: macro.Info{
			Name: "fields",
			Params: []macro.ParamSpec{
				{Name: "tiddler", Mode: macro.ByName, Type: macro.TypeEntityRef},
				{Name: "template", Mode: macro.ByName, Type: macro.TypeEntityRef},
			},
		},
		Execute: func(c *macro.Call) (*macro.Output, error) {
			entity, _, ok := subject(c)
			if !ok {
				return &macro.Output{}, nil
			}
			if template := c.Params.Get("template"); template != "" {
				tpl, ok := c.Entity(template)
				if !ok {
					return &macro.Output{}, nil
				}
				var nodes []tree.Node
				for _, name := range entity.FieldNames() {
					value, _ := entity.Field(name)
					text := strings.NewReplacer("$name$", name, "$value$", value).Replace(tpl.Text())
					nodes = append(nodes, c.Parse(text)...)
				}
				return &macro.Output{Nodes: nodes}, nil
			}
			table := &tree.Element{Tag: "table", Attributes: map[string]string{"class": "tendril-fields"}, Block: true}
			for _, name := range entity.FieldNames() {
				value, _ := entity.Field(name)
				table.Children = append(table.Children, tree.NewElement("tr", nil,
					tree.NewElement("td", nil, tree.NewText(name)),
					tree.NewElement("td", nil, tree.NewText(value)),
				))
			}
			return &macro.Output{Nodes: []tree.Node{table}}, nil
		},
	}
}

// editMacro renders an input bound to one field. While the input holds focus
// the reconciler leaves it alone; otherwise only a stale value is rewritten.
func editMacro() macro.Macro {
	return macro.Macro{
		Info: macro.Info{
			Name: "edit",
			Params: []macro.ParamSpec{
				{Name: "field", Mode: macro.ByNameOrPosition, Default: domain.FieldText},
				{Name: "tiddler", Mode: macro.ByName, Type: macro.TypeEntityRef},
			},
		},
		Execute: func(c *macro.Call) (*macro.Output, error) {
			field := c.Params.Get("field")
			var value string
			if entity, _, ok := subject(c); ok {
				value, _ = entity.Field(field)
			}
			input := tree.NewElement("input", map[string]string{"type": "text", "name": field, "value": value})
			return &macro.Output{Nodes: []tree.Node{input}, Value: value}, nil
		},
		Refresh: func(rc *macro.RefreshContext) bool {
			if rc.Focused {
				return true
			}
			if rc.Previous.Value != rc.Current.Value {
				rc.Sink.SetAttribute(rc.Handle, "value", rc.Current.Value)
			}
			return true
		},
		Handlers: map[string]macro.HandlerFunc{
			MsgChange: func(c *macro.Call, msg *domain.Message) bool {
				title := c.Params.Get("tiddler")
				if title == "" {
					title = c.Title
				}
				store := c.Store()
				fields := map[string]any{c.Params.Get("field"): msg.Param}
				var (
					updated *domain.Entity
					err     error
				)
				if current, ok := store.Get(title); ok {
					updated, err = current.With(fields)
				} else {
					fields[domain.FieldTitle] = title
					updated, err = domain.NewEntity(fields)
				}
				if err != nil {
					c.Logger().Error("edit failed", "title", title, "error", err)
					return true
				}
				store.Put(updated)
				return true
			},
		},
	}
}

func buttonMacro() macro.Macro {
	return macro.Macro{
		Info: macro.Info{
			Name: "button",
			Params: []macro.ParamSpec{
				{Name: "message", Mode: macro.ByNameOrPosition, Required: true},
				{Name: "param", Mode: macro.ByNameOrPosition},
				{Name: "class", Mode: macro.ByName},
			},
		},
		Execute: func(c *macro.Call) (*macro.Output, error) {
			attrs := map[string]string{}
			if class := c.Params.Get("class"); class != "" {
				attrs["class"] = class
			}
			content := c.Content
			if len(content) == 0 {
				content = []tree.Node{tree.NewText(c.Params.Get("message"))}
			}
			return &macro.Output{Nodes: []tree.Node{tree.NewElement("button", attrs, content...)}}, nil
		},
		Handlers: map[string]macro.HandlerFunc{
			MsgClick: func(c *macro.Call, _ *domain.Message) bool {
				c.Dispatch(domain.NewMessage(c.Params.Get("message"), c.Params.Get("param")))
				return true
			},
		},
	}
}

// sliderState returns the entity holding a slider's open state.
func sliderState(c *macro.Call) string {
	if state := c.Params.Get("state"); state != "" {
		return state
	}
	return "$:/state/slider/" + c.Title + "/" + c.Params.Get("label")
}

func sliderMacro() macro.Macro {
	return macro.Macro{
		Info: macro.Info{
			Name: "slider",
			Params: []macro.ParamSpec{
				{Name: "label", Mode: macro.ByNameOrPosition, Required: true},
				{Name: "state", Mode: macro.ByName, Type: macro.TypeEntityRef},
			},
		},
		Execute: func(c *macro.Call) (*macro.Output, error) {
			state := sliderState(c)
			open := false
			if e, ok := c.Entity(state); ok {
				open = e.Text() == "open"
			}
			toggle := &tree.Macro{
				Name:    "button",
				Preset:  map[string]string{"message": MsgToggle},
				Content: []tree.Node{tree.NewText(c.Params.Get("label"))},
			}
			children := []tree.Node{toggle}
			if open {
				children = append(children, &tree.Element{Tag: "div", Children: c.Content, Block: true})
			}
			return &macro.Output{Nodes: []tree.Node{
				&tree.Element{Tag: "div", Attributes: map[string]string{"class": ClassSlider}, Children: children, Block: c.Block},
			}}, nil
		},
		Handlers: map[string]macro.HandlerFunc{
			MsgToggle: func(c *macro.Call, _ *domain.Message) bool {
				store := c.Store()
				state := sliderState(c)
				next := "open"
				if e, ok := store.Get(state); ok && e.Text() == "open" {
					next = "closed"
				}
				store.Put(domain.NewTextEntity(state, next))
				return true
			},
		},
	}
}
