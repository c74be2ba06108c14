// Package sanitize strips markup down to a small allow-list of tags and
// attributes. It is used for restricted HTML fields and for every field
// value that has no dedicated renderer.
package sanitize

import (
	"html"
	"strings"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Policy lists the tags and per tag attributes that survive sanitizing.
// The "*" entry of Attributes applies to every allowed tag.
type Policy struct {
	Tags       map[string]struct{}
	Attributes map[string]map[string]struct{}
}

var defaultPolicy = NewPolicy(
	[]string{
		"a", "b", "blockquote", "code", "del", "dd", "dl", "dt", "em",
		"h1", "h2", "h3", "i", "img", "li", "ol", "p", "pre", "sup", "sub",
		"strong", "strike", "ul", "br", "hr",
	},
	map[string][]string{
		"img": {"src", "width", "height", "alt"},
		"a":   {"href"},
		"*":   {"title"},
	},
)

// dropped elements lose their content as well as their tags.
var dropped = map[atom.Atom]struct{}{
	atom.Script:   {},
	atom.Style:    {},
	atom.Iframe:   {},
	atom.Object:   {},
	atom.Noscript: {},
	atom.Template: {},
}

var void = map[atom.Atom]struct{}{
	atom.Br:  {},
	atom.Hr:  {},
	atom.Img: {},
}

func NewPolicy(tags []string, attrs map[string][]string) *Policy {
	p := &Policy{
		Tags:       make(map[string]struct{}, len(tags)),
		Attributes: make(map[string]map[string]struct{}, len(attrs)),
	}
	for _, tag := range tags {
		p.Tags[strings.ToLower(tag)] = struct{}{}
	}
	for tag, names := range attrs {
		set := make(map[string]struct{}, len(names))
		for _, name := range names {
			set[strings.ToLower(name)] = struct{}{}
		}
		p.Attributes[strings.ToLower(tag)] = set
	}
	return p
}

// StripTags sanitizes input with the default policy.
func StripTags(input string) string {
	return defaultPolicy.Sanitize(input)
}

// Sanitize keeps allowed tags with their allowed attributes, removes any
// other tag while keeping its text, and forces javascript: links to "#".
func (p *Policy) Sanitize(input string) string {
	if input == "" {
		return ""
	}
	var out strings.Builder
	z := nethtml.NewTokenizer(strings.NewReader(input))
	skipDepth := 0
	var skipAtom atom.Atom
	var open []string
	for {
		tt := z.Next()
		if tt == nethtml.ErrorToken {
			// io.EOF or a read error; either way the output so far is complete markup.
			closeTags(&out, open)
			return out.String()
		}
		tok := z.Token()
		if skipDepth > 0 {
			switch {
			case tt == nethtml.StartTagToken && tok.DataAtom == skipAtom:
				skipDepth++
			case tt == nethtml.EndTagToken && tok.DataAtom == skipAtom:
				skipDepth--
			}
			continue
		}
		switch tt {
		case nethtml.TextToken:
			out.WriteString(html.EscapeString(tok.Data))
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			if _, drop := dropped[tok.DataAtom]; drop {
				// browsers ignore the slash on these, the content still follows
				skipDepth = 1
				skipAtom = tok.DataAtom
				continue
			}
			if !p.allowed(tok.Data) {
				continue
			}
			p.writeStartTag(&out, tok, tt == nethtml.SelfClosingTagToken)
			if _, ok := void[tok.DataAtom]; !ok && tt == nethtml.StartTagToken {
				open = append(open, tok.Data)
			}
		case nethtml.EndTagToken:
			if !p.allowed(tok.Data) {
				continue
			}
			for i := len(open) - 1; i >= 0; i-- {
				if open[i] == tok.Data {
					closeTags(&out, open[i:])
					open = open[:i]
					break
				}
			}
		}
	}
}

// closeTags writes end tags for open, innermost first.
func closeTags(out *strings.Builder, open []string) {
	for i := len(open) - 1; i >= 0; i-- {
		out.WriteString("</" + open[i] + ">")
	}
}

func (p *Policy) allowed(tag string) bool {
	_, ok := p.Tags[tag]
	return ok
}

func (p *Policy) attrAllowed(tag, name string) bool {
	if set, ok := p.Attributes[tag]; ok {
		if _, ok := set[name]; ok {
			return true
		}
	}
	if set, ok := p.Attributes["*"]; ok {
		if _, ok := set[name]; ok {
			return true
		}
	}
	return false
}

func (p *Policy) writeStartTag(out *strings.Builder, tok nethtml.Token, selfClosing bool) {
	out.WriteString("<" + tok.Data)
	for _, attr := range tok.Attr {
		name := strings.ToLower(attr.Key)
		if attr.Namespace != "" || !p.attrAllowed(tok.Data, name) {
			continue
		}
		value := attr.Val
		if name == "href" && strings.HasPrefix(strings.TrimSpace(value), "javascript:") {
			value = "#"
		}
		out.WriteString(" " + name + `="` + html.EscapeString(value) + `"`)
	}
	if selfClosing {
		out.WriteString("/>")
		return
	}
	out.WriteString(">")
}

// Text drops every tag and returns the unescaped text content.
func Text(input string) string {
	var out strings.Builder
	z := nethtml.NewTokenizer(strings.NewReader(input))
	skipDepth := 0
	for {
		tt := z.Next()
		switch tt {
		case nethtml.ErrorToken:
			return strings.TrimSpace(out.String())
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			if _, drop := dropped[z.Token().DataAtom]; drop {
				skipDepth++
			}
		case nethtml.EndTagToken:
			if _, drop := dropped[z.Token().DataAtom]; drop && skipDepth > 0 {
				skipDepth--
			}
		case nethtml.TextToken:
			if skipDepth == 0 {
				out.Write(z.Text())
			}
		}
	}
}
