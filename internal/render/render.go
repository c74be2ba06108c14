// Package render turns document fields into display fragments.
package render

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/xxxsen/mpage/internal/doctype"
	"github.com/xxxsen/mpage/internal/model"
	"github.com/xxxsen/mpage/internal/pkg/sanitize"
)

// Slot says where the document template places a fragment.
type Slot string

const (
	SlotProse   Slot = "prose"
	SlotContent Slot = "content"
)

// Output is what a renderer produces: a Fragment or a SetTitle.
type Output interface {
	output()
}

type Fragment struct {
	Field string
	Slot  Slot
	HTML  template.HTML
}

// SetTitle asks the caller to use Title as the document's display title.
type SetTitle struct {
	Title string
}

func (Fragment) output() {}
func (SetTitle) output() {}

// Func renders a single field value. A nil Output contributes nothing.
type Func func(value string) (Output, error)

type Result struct {
	Title     string
	Fragments []Fragment
}

type Renderer struct {
	funcs map[string]Func
}

func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	r := &Renderer{funcs: make(map[string]Func)}
	r.Register("restrictedHTML", restrictedHTML)
	r.Register("markdown", markdownFunc(md))
	r.Register("title", title)
	r.Register("plain", plain)
	return r
}

// Register adds or replaces a named renderer.
func (r *Renderer) Register(name string, fn Func) {
	r.funcs[name] = fn
}

func (r *Renderer) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Render walks the type's fields in declaration order. Fields that are
// suppressed, empty or unknown to the type produce nothing.
func (r *Renderer) Render(t *doctype.Type, doc *model.Document) (Result, error) {
	res := Result{Title: doc.Title}
	if t == nil {
		return res, nil
	}
	for _, f := range t.Fields {
		if f.Suppressed {
			continue
		}
		value := doc.Field(f.Key)
		if value == "" {
			continue
		}
		out, err := r.renderField(f, value)
		if err != nil {
			return Result{}, fmt.Errorf("render field %s: %w", f.ID, err)
		}
		switch o := out.(type) {
		case nil:
		case SetTitle:
			res.Title = o.Title
		case Fragment:
			if o.HTML == "" {
				continue
			}
			o.Field = f.ID
			if o.Slot == "" {
				o.Slot = SlotContent
			}
			res.Fragments = append(res.Fragments, o)
		}
	}
	return res, nil
}

// Title returns the display title a document would render with.
func (r *Renderer) Title(t *doctype.Type, doc *model.Document) string {
	res, err := r.Render(t, doc)
	if err != nil {
		return doc.Title
	}
	return res.Title
}

func (r *Renderer) renderField(f doctype.Field, value string) (Output, error) {
	if fn, ok := r.funcs[f.Render]; ok && f.Render != "" {
		return fn(value)
	}
	return Fragment{Slot: SlotContent, HTML: template.HTML(sanitize.StripTags(value))}, nil
}

func restrictedHTML(value string) (Output, error) {
	return Fragment{Slot: SlotProse, HTML: template.HTML(sanitize.StripTags(value))}, nil
}

func title(value string) (Output, error) {
	return SetTitle{Title: sanitize.Text(value)}, nil
}

func plain(value string) (Output, error) {
	escaped := html.EscapeString(sanitize.Text(value))
	return Fragment{Slot: SlotContent, HTML: template.HTML(strings.ReplaceAll(escaped, "\n", "<br/>"))}, nil
}

func markdownFunc(md goldmark.Markdown) Func {
	return func(value string) (Output, error) {
		var buf bytes.Buffer
		if err := md.Convert([]byte(value), &buf); err != nil {
			return nil, err
		}
		return Fragment{Slot: SlotProse, HTML: template.HTML(buf.String())}, nil
	}
}

// Markdown converts a rendered result back into a markdown document.
func Markdown(res Result) (string, error) {
	var body strings.Builder
	for _, f := range res.Fragments {
		body.WriteString(string(f.HTML))
		body.WriteString("\n")
	}
	converted, err := htmltomarkdown.ConvertString(body.String())
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	var out strings.Builder
	if res.Title != "" {
		out.WriteString("# " + res.Title + "\n\n")
	}
	out.WriteString(strings.TrimSpace(converted))
	out.WriteString("\n")
	return out.String(), nil
}
