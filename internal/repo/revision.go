package repo

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/zeebo/xxh3"

	"github.com/xxxsen/mpage/internal/model"
	appErr "github.com/xxxsen/mpage/internal/pkg/errors"
)

type revisionBody struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Published bool              `json:"published"`
	Parent    string            `json:"parent"`
	Weight    int               `json:"weight"`
	Fields    map[string]string `json:"fields"`
}

// nextRevision returns "<generation>-<content hash>", one generation past prev.
// An empty prev starts at generation 1.
func nextRevision(prev string, doc *model.Document) (string, error) {
	gen := 0
	if prev != "" {
		parsed, err := revisionGeneration(prev)
		if err != nil {
			return "", err
		}
		gen = parsed
	}
	data, err := json.Marshal(revisionBody{
		Type:      doc.Type,
		Title:     doc.Title,
		Published: doc.Published,
		Parent:    doc.Parent,
		Weight:    doc.Weight,
		Fields:    doc.Fields,
	})
	if err != nil {
		return "", fmt.Errorf("encode revision body: %w", err)
	}
	return fmt.Sprintf("%d-%016x", gen+1, xxh3.Hash(data)), nil
}

// A malformed revision can never match a stored one, so it is a conflict.
func revisionGeneration(rev string) (int, error) {
	head, _, ok := strings.Cut(rev, "-")
	if !ok {
		return 0, fmt.Errorf("malformed revision %q: %w", rev, appErr.ErrConflict)
	}
	gen, err := strconv.Atoi(head)
	if err != nil || gen < 1 {
		return 0, fmt.Errorf("malformed revision %q: %w", rev, appErr.ErrConflict)
	}
	return gen, nil
}

func encodeFields(fields map[string]string) (string, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeFields(raw string) (map[string]string, error) {
	fields := make(map[string]string)
	if raw == "" {
		return fields, nil
	}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
