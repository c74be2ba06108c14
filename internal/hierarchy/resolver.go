// Package hierarchy builds the navigation tree of a document from the
// hierarchy index.
package hierarchy

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mpage/internal/model"
)

// Index answers hierarchy queries: for a key it returns the row of the
// document with that id plus the rows of its children.
type Index interface {
	Hierarchy(ctx context.Context, key string) ([]model.HierarchyEntry, error)
}

type Resolver struct {
	index Index
}

func NewResolver(index Index) *Resolver {
	return &Resolver{index: index}
}

// Resolve never fails: a failed index query is logged and its branch of the
// tree is left empty.
func (r *Resolver) Resolve(ctx context.Context, doc *model.Document) *model.TreeNode {
	node := &model.TreeNode{ID: doc.ID, Title: doc.Title, Weight: doc.Weight, Active: true, Published: doc.Published}

	var (
		wg          sync.WaitGroup
		childRows   []model.HierarchyEntry
		siblingRows []model.HierarchyEntry
		childErr    error
		siblingErr  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		childRows, childErr = r.index.Hierarchy(ctx, doc.ID)
	}()
	if doc.Parent != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			siblingRows, siblingErr = r.index.Hierarchy(ctx, doc.Parent)
		}()
	}
	wg.Wait()

	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", doc.ID))
	if childErr != nil {
		logger.Warn("children query failed, rendering without children", zap.Error(childErr))
		childRows = nil
	}
	if siblingErr != nil {
		logger.Warn("sibling query failed, rendering without siblings", zap.Error(siblingErr), zap.String("parent", doc.Parent))
		siblingRows = nil
	}

	node.Children = children(doc.ID, childRows)
	if doc.Parent == "" {
		return node
	}

	group, siblings := splitSiblings(doc.Parent, siblingRows)
	if group == nil {
		group = &model.TreeNode{ID: doc.Parent, Title: doc.Parent}
	}
	node.Parent = group

	found := false
	for _, s := range siblings {
		if s.ID == doc.ID {
			s.Active = true
			s.Children = node.Children
			found = true
		}
	}
	if !found {
		// the menu always lists the document itself, even when the index lags
		siblings = append(siblings, &model.TreeNode{
			ID:        doc.ID,
			Title:     doc.Title,
			Weight:    doc.Weight,
			Active:    true,
			Published: doc.Published,
			Children:  node.Children,
		})
		sortByWeight(siblings)
	}
	node.Siblings = siblings
	return node
}

// children drops the boundary row of id itself.
func children(id string, rows []model.HierarchyEntry) []*model.TreeNode {
	out := make([]*model.TreeNode, 0, len(rows))
	for _, row := range rows {
		if row.Path == id {
			continue
		}
		out = append(out, entryNode(row))
	}
	sortByWeight(out)
	return out
}

// splitSiblings separates the parent's own row, used as the group title,
// from the sibling rows.
func splitSiblings(parent string, rows []model.HierarchyEntry) (*model.TreeNode, []*model.TreeNode) {
	var group *model.TreeNode
	out := make([]*model.TreeNode, 0, len(rows))
	for _, row := range rows {
		if row.Path == parent {
			group = entryNode(row)
			continue
		}
		out = append(out, entryNode(row))
	}
	sortByWeight(out)
	return group, out
}

func entryNode(row model.HierarchyEntry) *model.TreeNode {
	title := row.Title
	if title == "" {
		title = row.Path
	}
	return &model.TreeNode{ID: row.Path, Title: title, Weight: row.Weight, Published: row.Published}
}

func sortByWeight(nodes []*model.TreeNode) {
	slices.SortStableFunc(nodes, func(a, b *model.TreeNode) int {
		return cmp.Compare(a.Weight, b.Weight)
	})
}

// Menu is the listing shown next to a document.
type Menu struct {
	Title string
	Path  string
	Items []*model.TreeNode
}

// MenuOf presents a root document's children under its own title, and a
// nested document's siblings under its parent.
func MenuOf(node *model.TreeNode) Menu {
	if node == nil {
		return Menu{}
	}
	if node.Parent == nil {
		return Menu{Title: node.Title, Path: node.ID, Items: node.Children}
	}
	return Menu{Title: node.Parent.Title, Path: node.Parent.ID, Items: node.Siblings}
}

// Published drops unpublished items at every depth, keeping the active one.
// The nodes are copied so the resolved tree is left as it was.
func (m Menu) Published() Menu {
	m.Items = publishedNodes(m.Items)
	return m
}

func publishedNodes(nodes []*model.TreeNode) []*model.TreeNode {
	out := make([]*model.TreeNode, 0, len(nodes))
	for _, n := range nodes {
		if !n.Published && !n.Active {
			continue
		}
		cp := *n
		cp.Children = publishedNodes(n.Children)
		out = append(out, &cp)
	}
	return out
}
