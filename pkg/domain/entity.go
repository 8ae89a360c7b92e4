package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Conventional field names.
const (
	FieldTitle    = "title"
	FieldText     = "text"
	FieldType     = "type"
	FieldTags     = "tags"
	FieldCreated  = "created"
	FieldModified = "modified"
	FieldCreator  = "creator"
	FieldModifier = "modifier"
)

// Content types understood by the default parsers.
const (
	TypeWikitext = "text/vnd.tiddlywiki"
	TypePlain    = "text/plain"
)

type unsetValue struct{}

// Unset removes a field when passed as a value to Entity.With.
var Unset any = unsetValue{}

const dateLayout = "20060102150405"

// Entity is an immutable bundle of fields identified by its title.
// Field values are strings, except tags ([]string) and dates (time.Time).
type Entity struct {
	fields map[string]any
}

// NewEntity builds an entity from a field map.
// Tags may be given as []string or as a bracketed string list, dates as
// time.Time or as YYYYMMDDHHMMSS[mmm] strings. Any other value is stringified.
func NewEntity(fields map[string]any) (*Entity, error) {
	e := &Entity{fields: make(map[string]any, len(fields))}
	for name, v := range fields {
		if v == Unset || v == nil {
			continue
		}
		nv, err := normalizeField(name, v)
		if err != nil {
			return nil, err
		}
		e.fields[name] = nv
	}
	if e.Title() == "" {
		return nil, ErrMissingTitle
	}
	return e, nil
}

// NewTextEntity is a shorthand for an entity with only a title and a text.
func NewTextEntity(title, text string) *Entity {
	return &Entity{fields: map[string]any{FieldTitle: title, FieldText: text}}
}

func normalizeField(name string, v any) (any, error) {
	switch name {
	case FieldTags:
		switch tv := v.(type) {
		case []string:
			return slices.Clone(tv), nil
		case []any:
			tags := make([]string, 0, len(tv))
			for _, t := range tv {
				tags = append(tags, fmt.Sprint(t))
			}
			return tags, nil
		case string:
			return ParseStringList(tv), nil
		}
	case FieldCreated, FieldModified:
		switch tv := v.(type) {
		case time.Time:
			return tv.UTC(), nil
		case string:
			t, err := ParseDate(tv)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			return t, nil
		}
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

// With returns a new entity with fields merged onto a copy of e.
// A field whose value is Unset is removed.
func (e *Entity) With(fields map[string]any) (*Entity, error) {
	merged := maps.Clone(e.fields)
	for name, v := range fields {
		if v == Unset || v == nil {
			delete(merged, name)
			continue
		}
		merged[name] = v
	}
	return NewEntity(merged)
}

func (e *Entity) Title() string { return e.str(FieldTitle) }
func (e *Entity) Text() string  { return e.str(FieldText) }

// Type returns the content type, defaulting to wikitext.
func (e *Entity) Type() string {
	if t := e.str(FieldType); t != "" {
		return t
	}
	return TypeWikitext
}

// Tags returns a copy of the tag list.
func (e *Entity) Tags() []string {
	tags, _ := e.fields[FieldTags].([]string)
	return slices.Clone(tags)
}

// HasTag reports whether tag is among the entity's tags.
func (e *Entity) HasTag(tag string) bool {
	tags, _ := e.fields[FieldTags].([]string)
	return slices.Contains(tags, tag)
}

func (e *Entity) Created() time.Time  { return e.date(FieldCreated) }
func (e *Entity) Modified() time.Time { return e.date(FieldModified) }

// Field returns the string form of a field.
func (e *Entity) Field(name string) (string, bool) {
	v, ok := e.fields[name]
	if !ok {
		return "", false
	}
	return stringify(v), true
}

// Has reports whether the field is present.
func (e *Entity) Has(name string) bool {
	_, ok := e.fields[name]
	return ok
}

// FieldNames returns the names of all fields, sorted.
func (e *Entity) FieldNames() []string {
	return slices.Sorted(maps.Keys(e.fields))
}

// Strings returns every field in its string form.
func (e *Entity) Strings() map[string]string {
	out := make(map[string]string, len(e.fields))
	for name, v := range e.fields {
		out[name] = stringify(v)
	}
	return out
}

func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Strings())
}

func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewEntity(raw)
	if err != nil {
		return err
	}
	e.fields = parsed.fields
	return nil
}

func (e *Entity) str(name string) string {
	s, _ := e.fields[name].(string)
	return s
}

func (e *Entity) date(name string) time.Time {
	t, _ := e.fields[name].(time.Time)
	return t
}

func stringify(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case []string:
		return StringifyList(tv)
	case time.Time:
		return FormatDate(tv)
	default:
		return fmt.Sprint(v)
	}
}

// ParseDate reads a YYYYMMDDHHMMSS timestamp with optional trailing milliseconds.
func ParseDate(s string) (time.Time, error) {
	if len(s) < len(dateLayout) {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	t, err := time.Parse(dateLayout, s[:len(dateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	if rest := s[len(dateLayout):]; rest != "" {
		ms, err := strconv.Atoi(rest)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		t = t.Add(time.Duration(ms) * time.Millisecond)
	}
	return t, nil
}

// FormatDate is the inverse of ParseDate.
func FormatDate(t time.Time) string {
	t = t.UTC()
	return t.Format(dateLayout) + fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
}

// ParseStringList splits a space separated list where items containing spaces
// are wrapped in double square brackets: `one [[two words]] three`.
func ParseStringList(s string) []string {
	var out []string
	for i := 0; i < len(s); {
		switch {
		case s[i] == ' ' || s[i] == '\t' || s[i] == '\n':
			i++
		case strings.HasPrefix(s[i:], "[["):
			end := strings.Index(s[i+2:], "]]")
			if end < 0 {
				out = append(out, s[i+2:])
				return out
			}
			out = append(out, s[i+2:i+2+end])
			i += end + 4
		default:
			end := strings.IndexAny(s[i:], " \t\n")
			if end < 0 {
				out = append(out, s[i:])
				return out
			}
			out = append(out, s[i:i+end])
			i += end
		}
	}
	return out
}

// StringifyList is the inverse of ParseStringList.
func StringifyList(items []string) string {
	parts := make([]string, len(items))
	for i, item := range items {
		if strings.ContainsAny(item, " \t\n") {
			parts[i] = "[[" + item + "]]"
		} else {
			parts[i] = item
		}
	}
	return strings.Join(parts, " ")
}
