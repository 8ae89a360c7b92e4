package parser

import "regexp"

const argToken = `(?:"((?:\\"|[^"])+)"|'((?:\\'|[^'])+)'|\[\[([\s\S]*?)\]\]|\{\{([\s\S]*?)\}\}|([^"':\s][^\s:]*)|(""|''))`

// tokenGroups is the number of capture groups in argToken.
const tokenGroups = 6

var (
	namedArgs   = regexp.MustCompile(`\s*` + argToken + `\s*(?:(:)\s*` + argToken + `)?`)
	unnamedArgs = regexp.MustCompile(`(?:"((?:\\"|[^"])+)"|'((?:\\'|[^'])+)'|\[\[([\s\S]*?)\]\]|\{\{([\s\S]*?)\}\}|([^"'\s]\S*)|(""|''))`)
)

// Arg is one argument in source order. Name is empty for positional values.
type Arg struct {
	Name  string
	Value string
}

// Args is the result of ParseArgs.
type Args struct {
	Items []Arg
}

// ArgOptions tunes ParseArgs.
type ArgOptions struct {
	// DefaultName names lone values that would otherwise be positional.
	DefaultName string
	// CascadeDefaults makes a lone value inherit the name of the preceding value.
	CascadeDefaults bool
	// NoNames disables name:value recognition; every value is positional.
	NoNames bool
}

// ParseArgs tokenizes a macro argument string into positional and named values.
// Values may be double quoted, single quoted, wrapped in [[ ]] or {{ }}, bare, or an empty quote.
func ParseArgs(raw string, opts ArgOptions) *Args {
	args := &Args{}
	if opts.NoNames {
		for _, loc := range unnamedArgs.FindAllStringSubmatchIndex(raw, -1) {
			v, _ := token(raw, loc, 1)
			args.Items = append(args.Items, Arg{Value: v})
		}
		return args
	}

	defaultName := opts.DefaultName
	for _, loc := range namedArgs.FindAllStringSubmatchIndex(raw, -1) {
		first, _ := token(raw, loc, 1)
		arg := Arg{Value: first}
		if second, ok := token(raw, loc, tokenGroups+2); ok {
			arg = Arg{Name: first, Value: second}
		} else if defaultName != "" {
			arg.Name = defaultName
		}
		args.Items = append(args.Items, arg)
		if opts.CascadeDefaults {
			defaultName = arg.Name
		}
	}
	return args
}

// token returns the value of the token whose groups start at group first.
// The first participating alternative wins; the empty-quote alternative yields "".
func token(raw string, loc []int, first int) (string, bool) {
	for g := first; g < first+tokenGroups; g++ {
		start, end := loc[2*g], loc[2*g+1]
		if start < 0 {
			continue
		}
		if g == first+tokenGroups-1 {
			return "", true
		}
		return raw[start:end], true
	}
	return "", false
}

// Positional returns the unnamed values in order.
func (a *Args) Positional() []string {
	var out []string
	for _, item := range a.Items {
		if item.Name == "" {
			out = append(out, item.Value)
		}
	}
	return out
}

// Named returns the first value given for name.
func (a *Args) Named(name string) (string, bool) {
	for _, item := range a.Items {
		if item.Name == name {
			return item.Value, true
		}
	}
	return "", false
}

// NamedAll returns every value given for name, in order.
func (a *Args) NamedAll(name string) []string {
	var out []string
	for _, item := range a.Items {
		if item.Name == name {
			out = append(out, item.Value)
		}
	}
	return out
}

// ByName groups the named values.
func (a *Args) ByName() map[string][]string {
	out := make(map[string][]string)
	for _, item := range a.Items {
		if item.Name != "" {
			out[item.Name] = append(out[item.Name], item.Value)
		}
	}
	return out
}
