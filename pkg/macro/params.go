package macro

import (
	"fmt"
	"maps"
	"strings"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/parser"
	"github.com/aretw0/tendril/pkg/query"
	"github.com/mitchellh/mapstructure"
)

// ParamType selects the coercion applied to a bound value.
type ParamType string

const (
	TypeText      ParamType = "text"
	TypeEntityRef ParamType = "entity-reference"
	TypeQuery     ParamType = "query"
)

// BindMode says where a parameter's value is taken from.
type BindMode int

const (
	// ByName binds only name:value arguments.
	ByName BindMode = iota
	// ByPosition binds the positional value at Position, or a same-named argument.
	ByPosition
	// ByNameOrPosition binds a named value, else the next positional value not
	// claimed by a ByPosition parameter.
	ByNameOrPosition
)

// ParamSpec declares one parameter.
type ParamSpec struct {
	Name     string
	Mode     BindMode
	Position int
	Type     ParamType
	Required bool
	Default  string
}

// Info is the declaration part of a macro.
type Info struct {
	Name   string
	Params []ParamSpec
	// DependentAll declares that the macro depends on the entire store.
	DependentAll bool
	// CascadeDefaults lets lone arguments inherit the name of the preceding argument.
	CascadeDefaults bool
}

// Params holds bound, coerced parameter values.
type Params struct {
	macro   string
	values  map[string]string
	types   map[string]ParamType
	queries map[string]*query.Filter
}

// Bind resolves info's parameters from a raw argument string and preset values.
// Presets override parsed arguments of the same name.
func Bind(info Info, raw string, preset map[string]string) (*Params, error) {
	args := parser.ParseArgs(raw, parser.ArgOptions{CascadeDefaults: info.CascadeDefaults})
	positional := args.Positional()

	claimed := make(map[int]bool)
	for _, spec := range info.Params {
		if spec.Mode == ByPosition {
			claimed[spec.Position] = true
		}
	}
	next := 0
	nextFree := func() (string, bool) {
		for ; next < len(positional); next++ {
			if !claimed[next] {
				v := positional[next]
				next++
				return v, true
			}
		}
		return "", false
	}

	p := &Params{
		macro:   info.Name,
		values:  make(map[string]string),
		types:   make(map[string]ParamType),
		queries: make(map[string]*query.Filter),
	}
	for _, spec := range info.Params {
		value, ok := preset[spec.Name]
		if !ok {
			value, ok = args.Named(spec.Name)
		}
		if !ok {
			switch spec.Mode {
			case ByPosition:
				if spec.Position < len(positional) {
					value, ok = positional[spec.Position], true
				}
			case ByNameOrPosition:
				value, ok = nextFree()
			}
		}
		if !ok && spec.Default != "" {
			value, ok = spec.Default, true
		}
		if !ok {
			if spec.Required {
				return nil, &domain.ParamError{Macro: info.Name, Param: spec.Name, Reason: "required parameter missing"}
			}
			continue
		}
		if err := p.set(spec, value); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Params) set(spec ParamSpec, value string) error {
	typ := spec.Type
	if typ == "" {
		typ = TypeText
	}
	switch typ {
	case TypeEntityRef:
		value = strings.TrimSpace(value)
		if value == "" && spec.Required {
			return &domain.ParamError{Macro: p.macro, Param: spec.Name, Reason: "empty entity reference"}
		}
	case TypeQuery:
		f, err := query.Parse(value)
		if err != nil {
			return &domain.ParamError{Macro: p.macro, Param: spec.Name, Reason: err.Error()}
		}
		p.queries[spec.Name] = f
	case TypeText:
	default:
		return &domain.ParamError{Macro: p.macro, Param: spec.Name, Reason: fmt.Sprintf("unknown type %q", typ)}
	}
	p.values[spec.Name] = value
	p.types[spec.Name] = typ
	return nil
}

// Get returns the value of a parameter, or "" when it is not bound.
func (p *Params) Get(name string) string {
	return p.values[name]
}

// Has reports whether a parameter is bound.
func (p *Params) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Query returns the parsed filter of a query parameter.
func (p *Params) Query(name string) *query.Filter {
	return p.queries[name]
}

// References returns the bound entity-reference values.
func (p *Params) References() []string {
	var refs []string
	for name, typ := range p.types {
		if typ == TypeEntityRef && p.values[name] != "" {
			refs = append(refs, p.values[name])
		}
	}
	return refs
}

// HasQuery reports whether any query parameter is bound.
func (p *Params) HasQuery() bool {
	return len(p.queries) > 0
}

// Values returns a copy of all bound values.
func (p *Params) Values() map[string]string {
	return maps.Clone(p.values)
}

// Decode copies the bound values into a struct using mapstructure tags.
// Input is weakly typed, so "3" decodes into an int field and "true" into a bool.
func (p *Params) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(p.values); err != nil {
		return &domain.ParamError{Macro: p.macro, Param: "*", Reason: err.Error()}
	}
	return nil
}
