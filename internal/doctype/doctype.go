// Package doctype turns configured document types into typed field maps.
// Types are built once at startup and only read afterwards.
package doctype

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/xxxsen/mpage/internal/config"
)

const FieldPrefix = "field_"

// Well known field keys that also feed document columns.
const (
	KeyTitle  = FieldPrefix + "title"
	KeyParent = FieldPrefix + "parent"
	KeyWeight = FieldPrefix + "weight"
)

var widgets = map[string]struct{}{
	"text":     {},
	"textarea": {},
	"checkbox": {},
	"select":   {},
	"hidden":   {},
}

type Choice struct {
	Value string
	Label string
}

type FormSpec struct {
	Widget   string
	Required bool
	Choices  []Choice
}

type Field struct {
	ID          string
	Key         string
	Label       string
	Description string
	Default     string
	Render      string
	Suppressed  bool
	Weight      int
	Form        *FormSpec
}

type Type struct {
	Name        string
	Label       string
	Description string
	Fields      []Field
	byKey       map[string]int
}

// Field looks up a declared field by its "field_<id>" key.
func (t *Type) Field(key string) (Field, bool) {
	if t == nil {
		return Field{}, false
	}
	idx, ok := t.byKey[key]
	if !ok {
		return Field{}, false
	}
	return t.Fields[idx], true
}

func (t *Type) Has(key string) bool {
	_, ok := t.Field(key)
	return ok
}

// FormFields returns the fields that carry a form widget, ordered by weight.
// Fields with equal weight keep their declaration order.
func (t *Type) FormFields() []Field {
	if t == nil {
		return nil
	}
	out := make([]Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.Form != nil {
			out = append(out, f)
		}
	}
	slices.SortStableFunc(out, func(a, b Field) int {
		return cmp.Compare(a.Weight, b.Weight)
	})
	return out
}

// Defaults returns the default value of every declared field.
func (t *Type) Defaults() map[string]string {
	out := make(map[string]string)
	if t == nil {
		return out
	}
	for _, f := range t.Fields {
		if f.Default != "" {
			out[f.Key] = f.Default
		}
	}
	return out
}

type Registry struct {
	types map[string]*Type
}

func NewRegistry(cfg map[string]config.TypeConfig) (*Registry, error) {
	r := &Registry{types: make(map[string]*Type, len(cfg))}
	for name, tc := range cfg {
		t, err := buildType(name, tc)
		if err != nil {
			return nil, err
		}
		r.types[name] = t
	}
	return r, nil
}

func buildType(name string, tc config.TypeConfig) (*Type, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("document type name is required")
	}
	t := &Type{
		Name:        name,
		Label:       tc.Name,
		Description: tc.Description,
		Fields:      make([]Field, 0, len(tc.Fields)),
		byKey:       make(map[string]int, len(tc.Fields)),
	}
	if t.Label == "" {
		t.Label = name
	}
	for _, fc := range tc.Fields {
		if fc.ID == "" {
			return nil, fmt.Errorf("type %s: field id is required", name)
		}
		key := FieldPrefix + fc.ID
		if _, dup := t.byKey[key]; dup {
			return nil, fmt.Errorf("type %s: duplicate field %s", name, fc.ID)
		}
		f := Field{
			ID:          fc.ID,
			Key:         key,
			Label:       fc.Label,
			Description: fc.Description,
			Default:     defaultString(fc.Default),
			Render:      fc.Render.Name,
			Suppressed:  fc.Render.Suppressed,
			Weight:      fc.Weight,
		}
		if f.Label == "" {
			f.Label = fc.ID
		}
		if fc.Form != nil {
			widget := fc.Form.Widget
			if widget == "" {
				widget = "text"
			}
			if _, ok := widgets[widget]; !ok {
				return nil, fmt.Errorf("type %s: field %s: unknown widget %q", name, fc.ID, widget)
			}
			f.Form = &FormSpec{
				Widget:   widget,
				Required: fc.Form.Required,
				Choices:  sortedChoices(fc.Form.Choices),
			}
		}
		t.byKey[key] = len(t.Fields)
		t.Fields = append(t.Fields, f)
	}
	return t, nil
}

func defaultString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "on"
		}
		return ""
	case float64:
		if val == 0 {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, defaultString(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

func sortedChoices(choices map[string]string) []Choice {
	if len(choices) == 0 {
		return nil
	}
	out := make([]Choice, 0, len(choices))
	for value, label := range choices {
		out = append(out, Choice{Value: value, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

func (r *Registry) Lookup(name string) (*Type, bool) {
	t, ok := r.types[name]
	return t, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
