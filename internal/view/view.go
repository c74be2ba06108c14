// Package view holds the embedded page templates.
package view

import (
	"embed"
	"html/template"

	"github.com/xxxsen/mpage/internal/doctype"
	"github.com/xxxsen/mpage/internal/form"
	"github.com/xxxsen/mpage/internal/hierarchy"
	"github.com/xxxsen/mpage/internal/model"
	"github.com/xxxsen/mpage/internal/render"
)

//go:embed templates/*.html
var files embed.FS

// Page is the data every template receives.
type Page struct {
	Title     string
	User      *model.User
	CanManage bool
	RequestID string

	Document *model.Document
	Parent   *model.TreeNode
	Menu     hierarchy.Menu
	Prose    []render.Fragment
	Content  []render.Fragment

	Items []*model.TreeNode
	Types []*doctype.Type

	Form *form.View

	Status int
	Error  string
	Name   string
}

func Funcs() template.FuncMap {
	return template.FuncMap{
		"path": model.Path,
	}
}

// Load parses every page template together with the shared layout.
func Load() (*template.Template, error) {
	return template.New("").Funcs(Funcs()).ParseFS(files, "templates/*.html")
}
