package doctype

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mpage/internal/config"
)

func testTypes() map[string]config.TypeConfig {
	return map[string]config.TypeConfig{
		"testdoc": {
			Name: "Test",
			Fields: []config.FieldConfig{
				{ID: "title", Label: "Title", Render: config.RenderPolicy{Name: "title"}, Form: &config.WidgetConfig{Widget: "text", Required: true}},
				{ID: "body", Label: "Body", Default: "", Render: config.RenderPolicy{Name: "markdown"}, Weight: 5, Form: &config.WidgetConfig{Widget: "textarea"}},
				{ID: "parent", Default: []interface{}{}, Render: config.RenderPolicy{Suppressed: true}, Weight: -1, Form: &config.WidgetConfig{Widget: "text"}},
				{ID: "weight", Default: float64(0), Render: config.RenderPolicy{Suppressed: true}},
				{ID: "kind", Default: "page", Form: &config.WidgetConfig{Widget: "select", Choices: map[string]string{"page": "Page", "faq": "FAQ"}}},
			},
		},
	}
}

func TestRegistryBuildsTypedFields(t *testing.T) {
	reg, err := NewRegistry(testTypes())
	require.NoError(t, err)

	typ, ok := reg.Lookup("testdoc")
	require.True(t, ok)
	require.Equal(t, "Test", typ.Label)
	require.Len(t, typ.Fields, 5)

	title, ok := typ.Field(KeyTitle)
	require.True(t, ok)
	require.Equal(t, "title", title.Render)
	require.True(t, title.Form.Required)

	parent, ok := typ.Field(KeyParent)
	require.True(t, ok)
	require.True(t, parent.Suppressed)
	require.Equal(t, "", parent.Default)

	require.False(t, typ.Has("field_missing"))
	require.Equal(t, map[string]string{"field_kind": "page"}, typ.Defaults())

	kind, _ := typ.Field("field_kind")
	require.Equal(t, []Choice{{Value: "faq", Label: "FAQ"}, {Value: "page", Label: "Page"}}, kind.Form.Choices)

	_, ok = reg.Lookup("missing")
	require.False(t, ok)
	require.Equal(t, []string{"testdoc"}, reg.Names())
}

func TestFormFieldsSortedByWeight(t *testing.T) {
	reg, err := NewRegistry(testTypes())
	require.NoError(t, err)
	typ, _ := reg.Lookup("testdoc")

	keys := make([]string, 0)
	for _, f := range typ.FormFields() {
		keys = append(keys, f.Key)
	}
	require.Equal(t, []string{"field_parent", "field_title", "field_kind", "field_body"}, keys)
}

func TestRegistryRejectsBadDefinitions(t *testing.T) {
	_, err := NewRegistry(map[string]config.TypeConfig{
		"a": {Fields: []config.FieldConfig{{ID: "x"}, {ID: "x"}}},
	})
	require.Error(t, err)

	_, err = NewRegistry(map[string]config.TypeConfig{
		"a": {Fields: []config.FieldConfig{{ID: "x", Form: &config.WidgetConfig{Widget: "wysiwyg"}}}},
	})
	require.Error(t, err)

	_, err = NewRegistry(map[string]config.TypeConfig{
		"a": {Fields: []config.FieldConfig{{Label: "no id"}}},
	})
	require.Error(t, err)
}

func TestFormFieldsExtremeWeights(t *testing.T) {
	reg, err := NewRegistry(map[string]config.TypeConfig{
		"page": {Fields: []config.FieldConfig{
			{ID: "last", Weight: math.MaxInt, Form: &config.WidgetConfig{}},
			{ID: "first", Weight: math.MinInt, Form: &config.WidgetConfig{}},
		}},
	})
	require.NoError(t, err)
	typ, _ := reg.Lookup("page")
	fields := typ.FormFields()
	require.Equal(t, "field_first", fields[0].Key)
	require.Equal(t, "field_last", fields[1].Key)
}
