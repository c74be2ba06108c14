package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xxxsen/mpage/internal/model"
	appErr "github.com/xxxsen/mpage/internal/pkg/errors"
	"github.com/xxxsen/mpage/internal/pkg/timeutil"
)

// MemoryDocumentRepo keeps documents in process memory. It follows the
// same revision rules as DocumentRepo and backs the "memory" driver used
// for local previews.
type MemoryDocumentRepo struct {
	mu   sync.RWMutex
	docs map[string]*model.Document
}

func NewMemoryDocumentRepo() *MemoryDocumentRepo {
	return &MemoryDocumentRepo{docs: make(map[string]*model.Document)}
}

func (r *MemoryDocumentRepo) Get(ctx context.Context, id string) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return doc.Clone(), nil
}

func (r *MemoryDocumentRepo) Insert(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		return appErr.Invalid("Path is required")
	}
	rev, err := nextRevision("", doc)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.docs[doc.ID]; exists {
		return appErr.ErrConflict
	}
	now := timeutil.NowUnix()
	doc.Revision = rev
	doc.Ctime = now
	doc.Mtime = now
	r.docs[doc.ID] = doc.Clone()
	return nil
}

func (r *MemoryDocumentRepo) Update(ctx context.Context, doc *model.Document) error {
	if doc.Revision == "" {
		return fmt.Errorf("update %s without revision: %w", doc.ID, appErr.ErrConflict)
	}
	rev, err := nextRevision(doc.Revision, doc)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.docs[doc.ID]
	if !ok {
		return appErr.ErrNotFound
	}
	if current.Revision != doc.Revision {
		return appErr.ErrConflict
	}
	doc.Revision = rev
	doc.Ctime = current.Ctime
	doc.Mtime = timeutil.NowUnix()
	r.docs[doc.ID] = doc.Clone()
	return nil
}

func (r *MemoryDocumentRepo) Delete(ctx context.Context, id, revision string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.docs[id]
	if !ok {
		return appErr.ErrNotFound
	}
	if current.Revision != revision {
		return appErr.ErrConflict
	}
	delete(r.docs, id)
	return nil
}

func (r *MemoryDocumentRepo) Hierarchy(ctx context.Context, key string) ([]model.HierarchyEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]model.HierarchyEntry, 0)
	for _, doc := range r.docs {
		if doc.ID != key && doc.Parent != key {
			continue
		}
		entries = append(entries, model.HierarchyEntry{
			Path:      doc.ID,
			Title:     doc.Title,
			Weight:    doc.Weight,
			Parent:    doc.Parent,
			Published: doc.Published,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (r *MemoryDocumentRepo) ReferencesText(ctx context.Context, text string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, doc := range r.docs {
		for _, value := range doc.Fields {
			if strings.Contains(value, text) {
				return true, nil
			}
		}
	}
	return false, nil
}
