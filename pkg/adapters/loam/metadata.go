package loam

import (
	"fmt"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// EntityMetadata is the frontmatter of an entity file.
// Known keys are decoded into fields, the rest is kept in Fields.
type EntityMetadata struct {
	Title    string         `json:"title" mapstructure:"title"`
	Type     string         `json:"type,omitempty" mapstructure:"type"`
	Tags     any            `json:"tags,omitempty" mapstructure:"tags"`
	Created  string         `json:"created,omitempty" mapstructure:"created"`
	Modified string         `json:"modified,omitempty" mapstructure:"modified"`
	Fields   map[string]any `json:"-" mapstructure:",remain"`
}

func decodeMetadata(raw map[string]any) (EntityMetadata, error) {
	var meta EntityMetadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &meta,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return meta, err
	}
	if err := dec.Decode(raw); err != nil {
		return meta, fmt.Errorf("decode frontmatter: %w", err)
	}
	return meta, nil
}

// entity assembles the entity stored in a file. fallbackTitle is used when the
// frontmatter carries no title.
func (m EntityMetadata) entity(fallbackTitle, text string) (*domain.Entity, error) {
	fields := make(map[string]any, len(m.Fields)+6)
	for name, v := range m.Fields {
		fields[name] = fmt.Sprint(v)
	}
	fields[domain.FieldTitle] = m.Title
	if m.Title == "" {
		fields[domain.FieldTitle] = fallbackTitle
	}
	fields[domain.FieldText] = text
	set := func(name, v string) {
		if v != "" {
			fields[name] = v
		}
	}
	set(domain.FieldType, m.Type)
	set(domain.FieldCreated, m.Created)
	set(domain.FieldModified, m.Modified)
	if m.Tags != nil {
		fields[domain.FieldTags] = m.Tags
	}
	return domain.NewEntity(fields)
}

// frontmatter is the metadata written for an entity. Text goes into the body.
func frontmatter(e *domain.Entity) map[string]any {
	meta := make(map[string]any)
	for name, v := range e.Strings() {
		meta[name] = v
	}
	delete(meta, domain.FieldText)
	if tags := e.Tags(); len(tags) > 0 {
		meta[domain.FieldTags] = tags
	}
	return meta
}
