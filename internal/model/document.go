package model

import (
	"net/url"
	"strings"
)

// Document is a content record addressed by its URL path.
type Document struct {
	ID        string            `json:"id"`
	Revision  string            `json:"revision,omitempty"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Published bool              `json:"published"`
	Parent    string            `json:"parent,omitempty"`
	Weight    int               `json:"weight"`
	Fields    map[string]string `json:"fields"`
	Ctime     int64             `json:"ctime"`
	Mtime     int64             `json:"mtime"`
}

// Path is the URL path of a document id, each segment escaped.
func Path(id string) string {
	segs := strings.Split(strings.Trim(id, "/"), "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return "/" + strings.Join(segs, "/")
}

func (d *Document) Field(key string) string {
	if d == nil || d.Fields == nil {
		return ""
	}
	return d.Fields[key]
}

func (d *Document) SetField(key, value string) {
	if d.Fields == nil {
		d.Fields = make(map[string]string)
	}
	d.Fields[key] = value
}

// Clone returns a deep copy so callers can mutate fields without touching
// the stored value.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Fields = make(map[string]string, len(d.Fields))
	for k, v := range d.Fields {
		cp.Fields[k] = v
	}
	return &cp
}

// HierarchyEntry is one row of the hierarchy index. Querying key K yields
// the document whose id is K and every document whose parent is K.
type HierarchyEntry struct {
	Path      string `json:"path"`
	Title     string `json:"title"`
	Weight    int    `json:"weight"`
	Parent    string `json:"parent,omitempty"`
	Published bool   `json:"published"`
}
