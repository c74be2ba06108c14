package view

import (
	"bytes"
	"html/template"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mpage/internal/form"
	"github.com/xxxsen/mpage/internal/hierarchy"
	"github.com/xxxsen/mpage/internal/model"
	"github.com/xxxsen/mpage/internal/render"
)

func execute(t *testing.T, name string, page Page) string {
	t.Helper()
	tmpl, err := Load()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, tmpl.ExecuteTemplate(&buf, name, page))
	return buf.String()
}

func TestDocumentTemplate(t *testing.T) {
	out := execute(t, "document.html", Page{
		Title:     "B <i>",
		CanManage: true,
		Document:  &model.Document{ID: "a/b", Type: "page", Published: true},
		Parent:    &model.TreeNode{ID: "a", Title: "A"},
		Menu: hierarchy.Menu{Title: "A", Path: "a", Items: []*model.TreeNode{
			{ID: "a/b", Title: "B", Active: true},
		}},
		Prose: []render.Fragment{{Field: "body", HTML: template.HTML("<p>Hello</p>")}},
	})
	require.Contains(t, out, "<title>B &lt;i&gt;</title>")
	require.Contains(t, out, `<li class="active"><a href="/a/b">B</a>`)
	require.Contains(t, out, "<p>Hello</p>")
	require.Contains(t, out, `href="/edit/a/b"`)
	require.Contains(t, out, `href="/new/page"`)
	require.NotContains(t, out, "Unpublished")
}

func TestFormTemplate(t *testing.T) {
	out := execute(t, "form.html", Page{
		Title: "Create",
		Form: &form.View{
			Title:  "Create Page",
			Action: "/new/page",
			Token:  "tok",
			Errors: []string{"Title is required"},
			Submit: "Save",
			Fields: []*form.Widget{
				{Name: "_id", Label: "Path", Type: "text", Value: "x", ReadOnly: true},
				{Name: "published", Label: "Published", Type: "checkbox", Checked: true},
			},
		},
	})
	require.Contains(t, out, `name="_token" value="tok"`)
	require.Contains(t, out, `value="x" readonly`)
	require.Contains(t, out, `name="published" checked`)
	require.Contains(t, out, "Title is required")
}

func TestDocumentTemplateEscapesPaths(t *testing.T) {
	out := execute(t, "document.html", Page{
		Title:     "Q",
		CanManage: true,
		Document:  &model.Document{ID: "a/x?y", Type: "page", Published: true},
		Menu: hierarchy.Menu{Title: "A", Path: "a", Items: []*model.TreeNode{
			{ID: "a/x?y", Title: "Q", Active: true},
		}},
	})
	require.Contains(t, out, `<a href="/a/x%3Fy">Q</a>`)
	require.Contains(t, out, `href="/edit/a/x%3Fy"`)
	require.Contains(t, out, `href="/delete/a/x%3Fy"`)
}
