package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mpage/internal/doctype"
	"github.com/xxxsen/mpage/internal/model"
	appErr "github.com/xxxsen/mpage/internal/pkg/errors"
	"github.com/xxxsen/mpage/internal/render"
)

// DocumentStore is implemented by repo.DocumentRepo and repo.MemoryDocumentRepo.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*model.Document, error)
	Insert(ctx context.Context, doc *model.Document) error
	Update(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, id, revision string) error
	Hierarchy(ctx context.Context, key string) ([]model.HierarchyEntry, error)
	ReferencesText(ctx context.Context, text string) (bool, error)
}

const (
	MsgReservedPath = "This path is reserved"
	MsgPathInUse    = "This path is already in use"
	MsgNoType       = "No document type selected."
)

var reservedPath = regexp.MustCompile(`(?i)^(?:new|edit|delete)\b`)

type DocumentService struct {
	store    DocumentStore
	types    *doctype.Registry
	renderer *render.Renderer
}

func NewDocumentService(store DocumentStore, types *doctype.Registry, renderer *render.Renderer) *DocumentService {
	return &DocumentService{store: store, types: types, renderer: renderer}
}

// Load fetches a document and keeps only the fields its type declares.
// A document whose type is no longer configured loads with no fields.
func (s *DocumentService) Load(ctx context.Context, id string) (*model.Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t, _ := s.types.Lookup(doc.Type)
	fields := make(map[string]string, len(doc.Fields))
	for key, value := range doc.Fields {
		if t.Has(key) {
			fields[key] = value
		}
	}
	doc.Fields = fields
	return doc, nil
}

// New returns an unsaved document of the named type filled with the
// type's defaults.
func (s *DocumentService) New(typeName string) (*model.Document, error) {
	t, ok := s.types.Lookup(typeName)
	if !ok {
		return nil, appErr.Invalid(MsgNoType)
	}
	return &model.Document{
		Type:      t.Name,
		Published: true,
		Fields:    t.Defaults(),
	}, nil
}

func (s *DocumentService) Type(name string) (*doctype.Type, bool) {
	return s.types.Lookup(name)
}

func (s *DocumentService) Insert(ctx context.Context, doc *model.Document) error {
	if doc.Revision != "" {
		return appErr.Invalid("A new document cannot carry a revision")
	}
	if err := s.prepare(doc); err != nil {
		return err
	}
	if err := s.store.Insert(ctx, doc); err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	logutil.GetLogger(ctx).Info("document created", zap.String("doc_id", doc.ID), zap.String("type", doc.Type))
	return nil
}

// Update saves doc over the revision it carries. A stale revision yields
// ErrConflict and leaves the stored document untouched.
func (s *DocumentService) Update(ctx context.Context, doc *model.Document) error {
	if doc.Revision == "" {
		return fmt.Errorf("update document %s: missing revision: %w", doc.ID, appErr.ErrConflict)
	}
	if err := s.prepare(doc); err != nil {
		return err
	}
	if err := s.store.Update(ctx, doc); err != nil {
		return fmt.Errorf("update document %s: %w", doc.ID, err)
	}
	logutil.GetLogger(ctx).Info("document updated", zap.String("doc_id", doc.ID), zap.String("revision", doc.Revision))
	return nil
}

func (s *DocumentService) Delete(ctx context.Context, doc *model.Document) error {
	if err := s.store.Delete(ctx, doc.ID, doc.Revision); err != nil {
		return fmt.Errorf("delete document %s: %w", doc.ID, err)
	}
	logutil.GetLogger(ctx).Info("document deleted", zap.String("doc_id", doc.ID))
	return nil
}

// CheckID normalizes a candidate path and verifies it is free.
func (s *DocumentService) CheckID(ctx context.Context, candidate string) (string, error) {
	id := NormalizeID(candidate)
	if id == "" {
		return "", appErr.Invalid("Path is required")
	}
	if reservedPath.MatchString(id) {
		return "", appErr.Invalid(MsgReservedPath)
	}
	_, err := s.store.Get(ctx, id)
	switch {
	case err == nil:
		return "", appErr.Invalid(MsgPathInUse)
	case appErr.IsNotFound(err):
		return id, nil
	default:
		return "", fmt.Errorf("check path %s: %w", id, err)
	}
}

// NormalizeID trims whitespace and surrounding slashes from a path.
func NormalizeID(candidate string) string {
	return strings.Trim(strings.TrimSpace(candidate), "/")
}

// Hierarchy exposes the store's hierarchy index to the resolver.
func (s *DocumentService) Hierarchy(ctx context.Context, key string) ([]model.HierarchyEntry, error) {
	return s.store.Hierarchy(ctx, key)
}

// Render produces the display fragments of doc.
func (s *DocumentService) Render(doc *model.Document) (render.Result, error) {
	t, _ := s.types.Lookup(doc.Type)
	return s.renderer.Render(t, doc)
}

// prepare drops undeclared fields and derives the columns that mirror
// field values.
func (s *DocumentService) prepare(doc *model.Document) error {
	t, ok := s.types.Lookup(doc.Type)
	if !ok {
		return appErr.Invalid(MsgNoType)
	}
	fields := make(map[string]string, len(doc.Fields))
	for key, value := range doc.Fields {
		if t.Has(key) {
			fields[key] = value
		}
	}
	doc.Fields = fields

	doc.Parent = strings.Trim(strings.TrimSpace(doc.Field(doctype.KeyParent)), "/")
	if doc.Parent != "" && doc.Parent == doc.ID {
		return appErr.Invalid("A document cannot be its own parent")
	}
	doc.Weight = 0
	if raw := strings.TrimSpace(doc.Field(doctype.KeyWeight)); raw != "" {
		w, err := strconv.Atoi(raw)
		if err != nil {
			return appErr.Invalid("Weight must be a whole number")
		}
		doc.Weight = w
	}
	doc.Title = ""
	doc.Title = s.renderer.Title(t, doc)
	if doc.Title == "" {
		doc.Title = doc.ID
	}
	return nil
}
