package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/mpage/internal/model"
	"github.com/xxxsen/mpage/internal/pkg/dbutil"
	appErr "github.com/xxxsen/mpage/internal/pkg/errors"
	"github.com/xxxsen/mpage/internal/pkg/timeutil"
)

const documentTable = "documents"

var documentColumns = []string{"id", "revision", "type", "title", "published", "parent", "weight", "fields", "ctime", "mtime"}

// DocumentRepo stores documents in postgres. Every write checks the
// revision in its WHERE clause, which is the only concurrency control.
type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Get(ctx context.Context, id string) (*model.Document, error) {
	where := map[string]interface{}{
		"id": id,
	}
	sqlStr, args, err := builder.BuildSelect(documentTable, where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	return scanDocument(rows)
}

func (r *DocumentRepo) Insert(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		return appErr.Invalid("Path is required")
	}
	rev, err := nextRevision("", doc)
	if err != nil {
		return err
	}
	fields, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}
	now := timeutil.NowUnix()
	data := map[string]interface{}{
		"id":        doc.ID,
		"revision":  rev,
		"type":      doc.Type,
		"title":     doc.Title,
		"published": boolToInt(doc.Published),
		"parent":    doc.Parent,
		"weight":    doc.Weight,
		"fields":    fields,
		"ctime":     now,
		"mtime":     now,
	}
	sqlStr, args, err := builder.BuildInsert(documentTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	doc.Revision = rev
	doc.Ctime = now
	doc.Mtime = now
	return nil
}

func (r *DocumentRepo) Update(ctx context.Context, doc *model.Document) error {
	if doc.Revision == "" {
		return fmt.Errorf("update %s without revision: %w", doc.ID, appErr.ErrConflict)
	}
	rev, err := nextRevision(doc.Revision, doc)
	if err != nil {
		return err
	}
	fields, err := encodeFields(doc.Fields)
	if err != nil {
		return err
	}
	now := timeutil.NowUnix()
	where := map[string]interface{}{
		"id":       doc.ID,
		"revision": doc.Revision,
	}
	update := map[string]interface{}{
		"revision":  rev,
		"type":      doc.Type,
		"title":     doc.Title,
		"published": boolToInt(doc.Published),
		"parent":    doc.Parent,
		"weight":    doc.Weight,
		"fields":    fields,
		"mtime":     now,
	}
	sqlStr, args, err := builder.BuildUpdate(documentTable, where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return r.missingOrConflict(ctx, doc.ID)
	}
	doc.Revision = rev
	doc.Mtime = now
	return nil
}

func (r *DocumentRepo) Delete(ctx context.Context, id, revision string) error {
	where := map[string]interface{}{
		"id":       id,
		"revision": revision,
	}
	sqlStr, args, err := builder.BuildDelete(documentTable, where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

// Hierarchy returns the row of key itself plus every child of key,
// ordered by id.
func (r *DocumentRepo) Hierarchy(ctx context.Context, key string) ([]model.HierarchyEntry, error) {
	where := map[string]interface{}{
		"_custom_hierarchy": builder.Custom("(parent = ? OR id = ?)", key, key),
		"_orderby":          "id asc",
	}
	sqlStr, args, err := builder.BuildSelect(documentTable, where, []string{"id", "title", "weight", "parent", "published"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	entries := make([]model.HierarchyEntry, 0)
	for rows.Next() {
		var (
			entry     model.HierarchyEntry
			published int
		)
		if err := rows.Scan(&entry.Path, &entry.Title, &entry.Weight, &entry.Parent, &published); err != nil {
			return nil, err
		}
		entry.Published = published == 1
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ReferencesText reports whether any document field contains text.
func (r *DocumentRepo) ReferencesText(ctx context.Context, text string) (bool, error) {
	where := map[string]interface{}{
		"fields like": "%" + text + "%",
		"_limit":      []uint{0, 1},
	}
	sqlStr, args, err := builder.BuildSelect(documentTable, where, []string{"id"})
	if err != nil {
		return false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()
	found := rows.Next()
	return found, rows.Err()
}

func (r *DocumentRepo) missingOrConflict(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return appErr.ErrConflict
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		doc       model.Document
		published int
		fields    string
	)
	if err := row.Scan(&doc.ID, &doc.Revision, &doc.Type, &doc.Title, &published, &doc.Parent, &doc.Weight, &fields, &doc.Ctime, &doc.Mtime); err != nil {
		return nil, err
	}
	doc.Published = published == 1
	decoded, err := decodeFields(fields)
	if err != nil {
		return nil, fmt.Errorf("decode fields of %s: %w", doc.ID, err)
	}
	doc.Fields = decoded
	return &doc, nil
}
