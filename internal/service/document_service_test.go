package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mpage/internal/config"
	"github.com/xxxsen/mpage/internal/doctype"
	"github.com/xxxsen/mpage/internal/model"
	appErr "github.com/xxxsen/mpage/internal/pkg/errors"
	"github.com/xxxsen/mpage/internal/render"
	"github.com/xxxsen/mpage/internal/repo"
)

func newTestDocumentService(t *testing.T) *DocumentService {
	t.Helper()
	types, err := doctype.NewRegistry(map[string]config.TypeConfig{
		"page": {
			Name: "Page",
			Fields: []config.FieldConfig{
				{ID: "title", Render: config.RenderPolicy{Name: "title"}, Form: &config.WidgetConfig{Required: true}},
				{ID: "body", Render: config.RenderPolicy{Name: "markdown"}, Form: &config.WidgetConfig{Widget: "textarea"}},
				{ID: "parent", Render: config.RenderPolicy{Suppressed: true}, Form: &config.WidgetConfig{}},
				{ID: "weight", Render: config.RenderPolicy{Suppressed: true}, Default: "0", Form: &config.WidgetConfig{}},
			},
		},
	})
	require.NoError(t, err)
	return NewDocumentService(repo.NewMemoryDocumentRepo(), types, render.New())
}

func newPage(id, title string) *model.Document {
	return &model.Document{
		ID:        id,
		Type:      "page",
		Published: true,
		Fields:    map[string]string{"field_title": title},
	}
}

func TestCheckID(t *testing.T) {
	svc := newTestDocumentService(t)
	ctx := context.Background()
	require.NoError(t, svc.Insert(ctx, newPage("existing", "Existing")))

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "free path", input: "  /docs/intro/ ", want: "docs/intro"},
		{name: "reserved new", input: "new/foo", wantErr: MsgReservedPath},
		{name: "reserved case insensitive", input: "/EDIT", wantErr: MsgReservedPath},
		{name: "reserved delete with dash", input: "delete-me", wantErr: MsgReservedPath},
		{name: "word prefix allowed", input: "newsletter", want: "newsletter"},
		{name: "editorial allowed", input: "editorial/2024", want: "editorial/2024"},
		{name: "in use", input: "/existing/", wantErr: MsgPathInUse},
		{name: "empty", input: " / ", wantErr: "Path is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.CheckID(ctx, tt.input)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, appErr.ErrInvalid)
				require.Equal(t, tt.wantErr, appErr.Message(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestInsertLoadRoundTrip(t *testing.T) {
	svc := newTestDocumentService(t)
	ctx := context.Background()
	doc := newPage("guide/setup", "Setup <b>guide</b>")
	doc.SetField("field_body", "# Hello")
	doc.SetField("field_parent", "/guide/")
	doc.SetField("field_weight", "3")
	doc.SetField("field_unknown", "dropped")

	require.NoError(t, svc.Insert(ctx, doc))
	require.NotEmpty(t, doc.Revision)

	got, err := svc.Load(ctx, "guide/setup")
	require.NoError(t, err)
	require.Equal(t, doc.Revision, got.Revision)
	require.Equal(t, "guide", got.Parent)
	require.Equal(t, 3, got.Weight)
	require.Equal(t, "Setup guide", got.Title)
	require.Equal(t, "# Hello", got.Field("field_body"))
	_, ok := got.Fields["field_unknown"]
	require.False(t, ok)

	_, err = svc.Load(ctx, "nope")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestInsertRejects(t *testing.T) {
	svc := newTestDocumentService(t)
	ctx := context.Background()

	doc := newPage("a", "A")
	doc.SetField("field_parent", "a")
	require.ErrorIs(t, svc.Insert(ctx, doc), appErr.ErrInvalid)

	doc = newPage("b", "B")
	doc.SetField("field_weight", "heavy")
	require.ErrorIs(t, svc.Insert(ctx, doc), appErr.ErrInvalid)

	doc = newPage("c", "C")
	doc.Type = "missing"
	err := svc.Insert(ctx, doc)
	require.Equal(t, MsgNoType, appErr.Message(err))

	require.ErrorIs(t, svc.Insert(ctx, newPage("", "Empty")), appErr.ErrInvalid)

	require.NoError(t, svc.Insert(ctx, newPage("d", "D")))
	require.ErrorIs(t, svc.Insert(ctx, newPage("d", "D again")), appErr.ErrConflict)
}

func TestUpdateStaleRevision(t *testing.T) {
	svc := newTestDocumentService(t)
	ctx := context.Background()
	doc := newPage("page", "First")
	require.NoError(t, svc.Insert(ctx, doc))
	stale := doc.Clone()

	doc.SetField("field_title", "Second")
	require.NoError(t, svc.Update(ctx, doc))
	require.NotEqual(t, stale.Revision, doc.Revision)

	stale.SetField("field_title", "Lost")
	require.ErrorIs(t, svc.Update(ctx, stale), appErr.ErrConflict)

	got, err := svc.Load(ctx, "page")
	require.NoError(t, err)
	require.Equal(t, "Second", got.Title)
	require.Equal(t, doc.Revision, got.Revision)

	require.ErrorIs(t, svc.Delete(ctx, stale), appErr.ErrConflict)
	require.NoError(t, svc.Delete(ctx, got))
	_, err = svc.Load(ctx, "page")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestNewDocumentDefaults(t *testing.T) {
	svc := newTestDocumentService(t)
	doc, err := svc.New("page")
	require.NoError(t, err)
	require.True(t, doc.Published)
	require.Equal(t, "0", doc.Field("field_weight"))

	_, err = svc.New("nope")
	require.Equal(t, MsgNoType, appErr.Message(err))
}

func TestTitleFallsBackToID(t *testing.T) {
	svc := newTestDocumentService(t)
	doc := newPage("untitled", "")
	require.NoError(t, svc.Insert(context.Background(), doc))
	require.Equal(t, "untitled", doc.Title)
}
