package domain

import "strings"

// TextReference addresses one field of an entity, written as "Title!!field".
type TextReference struct {
	Title string
	Field string
}

// ParseTextReference splits a reference. The field defaults to "text".
func ParseTextReference(ref string) TextReference {
	title, field, ok := strings.Cut(ref, "!!")
	if !ok || field == "" {
		field = FieldText
	}
	return TextReference{Title: strings.TrimSpace(title), Field: strings.TrimSpace(field)}
}

func (r TextReference) String() string {
	if r.Field == FieldText {
		return r.Title
	}
	return r.Title + "!!" + r.Field
}
