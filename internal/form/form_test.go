package form

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mpage/internal/config"
	"github.com/xxxsen/mpage/internal/doctype"
	"github.com/xxxsen/mpage/internal/model"
	appErr "github.com/xxxsen/mpage/internal/pkg/errors"
	"github.com/xxxsen/mpage/internal/render"
	"github.com/xxxsen/mpage/internal/repo"
	"github.com/xxxsen/mpage/internal/service"
)

var (
	editor = &model.User{Name: "editor", Permissions: []string{model.PermManageContent}}
	reader = &model.User{Name: "reader"}
)

type fixture struct {
	forms  *Forms
	docs   *service.DocumentService
	tokens *TokenCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	types, err := doctype.NewRegistry(map[string]config.TypeConfig{
		"testdoc": {
			Name: "Test document",
			Fields: []config.FieldConfig{
				{ID: "body", Label: "Body", Weight: 2, Form: &config.WidgetConfig{Widget: "textarea"}},
				{ID: "title", Label: "Title", Weight: 1, Render: config.RenderPolicy{Name: "title"}, Form: &config.WidgetConfig{Required: true}},
				{ID: "mood", Label: "Mood", Weight: 3, Form: &config.WidgetConfig{Widget: "select", Choices: map[string]string{"happy": "Happy", "sad": "Sad"}}},
				{ID: "internal", Label: "Internal", Default: "x"},
			},
		},
	})
	require.NoError(t, err)
	docs := service.NewDocumentService(repo.NewMemoryDocumentRepo(), types, render.New())
	tokens := NewTokenCache(16, time.Minute)
	return &fixture{forms: New(docs, tokens), docs: docs, tokens: tokens}
}

func (f *fixture) get(t *testing.T, fc *Context) *View {
	t.Helper()
	res, err := f.forms.Process(context.Background(), fc)
	require.NoError(t, err)
	require.NotNil(t, res.View)
	return res.View
}

func fieldNames(v *View) []string {
	names := make([]string, 0, len(v.Fields))
	for _, w := range v.Fields {
		names = append(names, w.Name)
	}
	return names
}

func TestAccessDenied(t *testing.T) {
	f := newFixture(t)
	for _, user := range []*model.User{nil, reader} {
		_, err := f.forms.Process(context.Background(), &Context{Kind: KindNew, TypeName: "testdoc", User: user})
		require.ErrorIs(t, err, appErr.ErrForbidden)
	}
	require.Equal(t, 0, f.tokens.Len())
}

func TestNewFormFields(t *testing.T) {
	f := newFixture(t)
	v := f.get(t, &Context{Kind: KindNew, TypeName: "testdoc", User: editor})

	require.Equal(t, []string{FieldID, FieldPublished, "field_title", "field_body", "field_mood"}, fieldNames(v))
	require.True(t, v.Fields[1].Checked)
	require.True(t, v.Fields[0].Required)
	require.False(t, v.Fields[0].ReadOnly)
	require.Equal(t, "/new/testdoc", v.Action)
	require.NotEmpty(t, v.Token)
	require.Empty(t, v.Errors)
}

func TestNewFormUnknownType(t *testing.T) {
	f := newFixture(t)
	v := f.get(t, &Context{Kind: KindNew, TypeName: "nope", User: editor})
	require.Equal(t, []string{service.MsgNoType}, v.Errors)
	require.Empty(t, v.Fields)
}

func TestNewFormSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.get(t, &Context{Kind: KindNew, TypeName: "testdoc", User: editor})

	values := url.Values{
		FieldToken:    {v.Token},
		FieldID:       {"/test/"},
		"field_title": {"Ewok"},
		"field_body":  {"Hello"},
	}
	res, err := f.forms.Process(ctx, &Context{Kind: KindNew, TypeName: "testdoc", User: editor, Submit: true, Values: values})
	require.NoError(t, err)
	require.Equal(t, "/test", res.Redirect)

	doc, err := f.docs.Load(ctx, "test")
	require.NoError(t, err)
	require.Equal(t, "Ewok", doc.Title)
	require.False(t, doc.Published)
	require.Equal(t, "x", doc.Field("field_internal"))

	_, ok := f.tokens.Lookup(v.Token)
	require.False(t, ok)

	res, err = f.forms.Process(ctx, &Context{Kind: KindNew, TypeName: "testdoc", User: editor, Submit: true, Values: values})
	require.NoError(t, err)
	require.Equal(t, []string{MsgExpired}, res.View.Errors)
}

func TestNewFormValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.get(t, &Context{Kind: KindNew, TypeName: "testdoc", User: editor})

	res, err := f.forms.Process(ctx, &Context{Kind: KindNew, TypeName: "testdoc", User: editor, Submit: true, Values: url.Values{
		FieldToken:   {v.Token},
		FieldID:      {"edit/this"},
		"field_mood": {"angry"},
	}})
	require.NoError(t, err)
	require.Empty(t, res.Redirect)
	require.ElementsMatch(t, []string{
		"Title is required",
		"An illegal choice has been detected for Mood",
		service.MsgReservedPath,
	}, res.View.Errors)
	require.Equal(t, v.Token, res.View.Token)
	require.Equal(t, "edit/this", res.View.Fields[0].Value)
	require.Equal(t, service.MsgReservedPath, res.View.Fields[0].Error)
}

func TestTokenBoundToUserAndKind(t *testing.T) {
	f := newFixture(t)
	other := &model.User{Name: "other", Permissions: []string{model.PermManageContent}}
	v := f.get(t, &Context{Kind: KindNew, TypeName: "testdoc", User: editor})

	res, err := f.forms.Process(context.Background(), &Context{Kind: KindNew, TypeName: "testdoc", User: other, Submit: true, Values: url.Values{
		FieldToken: {v.Token}, FieldID: {"x"}, "field_title": {"X"},
	}})
	require.NoError(t, err)
	require.Equal(t, []string{MsgExpired}, res.View.Errors)
	require.NotEqual(t, v.Token, res.View.Token)
}

func seed(t *testing.T, f *fixture, id, title string) *model.Document {
	t.Helper()
	doc := &model.Document{ID: id, Type: "testdoc", Published: true, Fields: map[string]string{"field_title": title}}
	require.NoError(t, f.docs.Insert(context.Background(), doc))
	return doc
}

func TestEditForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seed(t, f, "test", "Ewok")

	_, err := f.forms.Process(ctx, &Context{Kind: KindEdit, DocID: "missing", User: editor})
	require.ErrorIs(t, err, appErr.ErrNotFound)

	v := f.get(t, &Context{Kind: KindEdit, DocID: "test", User: editor})
	require.True(t, v.Fields[0].ReadOnly)
	require.Equal(t, "test", v.Fields[0].Value)
	require.Equal(t, "Ewok", v.Fields[2].Value)
	require.Equal(t, "/edit/test", v.Action)

	res, err := f.forms.Process(ctx, &Context{Kind: KindEdit, DocID: "test", User: editor, Submit: true, Values: url.Values{
		FieldToken:    {v.Token},
		FieldID:       {"renamed"},
		FieldPublished: {"on"},
		"field_title": {"Wicket"},
	}})
	require.NoError(t, err)
	require.Equal(t, "/test", res.Redirect)

	doc, err := f.docs.Load(ctx, "test")
	require.NoError(t, err)
	require.Equal(t, "Wicket", doc.Title)
	_, err = f.docs.Load(ctx, "renamed")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestEditFormConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seed(t, f, "test", "Ewok")

	first := f.get(t, &Context{Kind: KindEdit, DocID: "test", User: editor})
	second := f.get(t, &Context{Kind: KindEdit, DocID: "test", User: editor})

	res, err := f.forms.Process(ctx, &Context{Kind: KindEdit, DocID: "test", User: editor, Submit: true, Values: url.Values{
		FieldToken: {second.Token}, FieldPublished: {"on"}, "field_title": {"Second"},
	}})
	require.NoError(t, err)
	require.NotEmpty(t, res.Redirect)

	res, err = f.forms.Process(ctx, &Context{Kind: KindEdit, DocID: "test", User: editor, Submit: true, Values: url.Values{
		FieldToken: {first.Token}, FieldPublished: {"on"}, "field_title": {"First"},
	}})
	require.NoError(t, err)
	require.Equal(t, []string{MsgConflict}, res.View.Errors)
	require.Equal(t, first.Token, res.View.Token)

	doc, err := f.docs.Load(ctx, "test")
	require.NoError(t, err)
	require.Equal(t, "Second", doc.Title)
}

func TestDeleteForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seed(t, f, "test", "Ewok")

	v := f.get(t, &Context{Kind: KindDelete, DocID: "test", User: editor})
	require.Empty(t, v.Fields)
	require.Equal(t, "Delete", v.Submit)
	require.Equal(t, "Cancel", v.Cancel)

	res, err := f.forms.Process(ctx, &Context{Kind: KindDelete, DocID: "test", User: editor, Submit: true, Values: url.Values{
		FieldToken: {v.Token}, FieldCancel: {"Cancel"},
	}})
	require.NoError(t, err)
	require.Equal(t, "/test", res.Redirect)
	_, err = f.docs.Load(ctx, "test")
	require.NoError(t, err)

	v = f.get(t, &Context{Kind: KindDelete, DocID: "test", User: editor})
	res, err = f.forms.Process(ctx, &Context{Kind: KindDelete, DocID: "test", User: editor, Submit: true, Values: url.Values{
		FieldToken: {v.Token},
	}})
	require.NoError(t, err)
	require.Equal(t, "/", res.Redirect)
	_, err = f.docs.Load(ctx, "test")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestTokenCacheExpires(t *testing.T) {
	c := NewTokenCache(2, 20*time.Millisecond)
	token := c.Issue(PendingState{Kind: KindNew, User: "u"})
	state, ok := c.Lookup(token)
	require.True(t, ok)
	require.Equal(t, KindNew, state.Kind)

	require.Eventually(t, func() bool {
		_, ok := c.Lookup(token)
		return !ok
	}, time.Second, 10*time.Millisecond)

	a := c.Issue(PendingState{})
	c.Issue(PendingState{})
	c.Issue(PendingState{})
	_, ok = c.Lookup(a)
	require.False(t, ok)
	_, ok = c.Lookup("")
	require.False(t, ok)
}
