// Package form builds and processes the new, edit and delete document forms.
//
// Every request runs the same pipeline over a Context:
// validateAccess, loadContext, buildFields, bindSubmission, validate and
// onSuccess. A GET stops after buildFields. Validation and conflict errors
// stop the pipeline and the form is rendered again with its messages.
package form

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mpage/internal/doctype"
	"github.com/xxxsen/mpage/internal/model"
	appErr "github.com/xxxsen/mpage/internal/pkg/errors"
	"github.com/xxxsen/mpage/internal/service"
)

type Kind string

const (
	KindNew    Kind = "new"
	KindEdit   Kind = "edit"
	KindDelete Kind = "delete"
)

const (
	FieldToken     = "_token"
	FieldID        = "_id"
	FieldPublished = "published"
	FieldCancel    = "cancel"
)

const (
	MsgExpired  = "This form has expired, please try again."
	MsgConflict = "This document was changed by someone else, reload and retry."
)

// errHalt stops the pipeline after validate has recorded its messages.
var errHalt = fmt.Errorf("form has errors: %w", appErr.ErrInvalid)

// Widget is one rendered form control.
type Widget struct {
	Name        string
	Label       string
	Description string
	Type        string
	Value       string
	Checked     bool
	Required    bool
	ReadOnly    bool
	Choices     []doctype.Choice
	Error       string
}

// View is everything the form template needs.
type View struct {
	Kind     Kind
	Title    string
	Action   string
	Token    string
	Fields   []*Widget
	Errors   []string
	Submit   string
	Cancel   string
	Document *model.Document
}

type Result struct {
	Redirect string
	View     *View
}

// Context carries one form request through the pipeline.
type Context struct {
	Kind     Kind
	User     *model.User
	TypeName string
	DocID    string
	Submit   bool
	Values   url.Values

	Type     *doctype.Type
	Document *model.Document
	Token    string
	State    PendingState
	Fields   []*Widget
	Errors   []string
	Redirect string
}

func (fc *Context) field(name string) *Widget {
	for _, w := range fc.Fields {
		if w.Name == name {
			return w
		}
	}
	return nil
}

func (fc *Context) fail(w *Widget, msg string) {
	if w != nil && w.Error == "" {
		w.Error = msg
	}
	fc.Errors = append(fc.Errors, msg)
}

type stage func(ctx context.Context, fc *Context) error

type Forms struct {
	docs   *service.DocumentService
	tokens *TokenCache
}

func New(docs *service.DocumentService, tokens *TokenCache) *Forms {
	return &Forms{docs: docs, tokens: tokens}
}

// Process runs the pipeline. ErrForbidden, ErrNotFound and unexpected
// store errors are returned; everything else ends in a Result.
func (f *Forms) Process(ctx context.Context, fc *Context) (*Result, error) {
	stages := []stage{f.validateAccess, f.loadContext, f.buildFields}
	if fc.Submit {
		stages = append(stages, f.bindSubmission, f.validate, f.onSuccess)
	}
	for _, run := range stages {
		if err := run(ctx, fc); err != nil {
			if !appErr.IsInvalid(err) && !appErr.IsConflict(err) {
				return nil, err
			}
			if !errors.Is(err, errHalt) {
				fc.fail(nil, message(err))
			}
			logutil.GetLogger(ctx).Debug("form rejected",
				zap.String("kind", string(fc.Kind)), zap.String("doc_id", fc.DocID), zap.Strings("errors", fc.Errors))
			return &Result{View: f.view(fc)}, nil
		}
	}
	if fc.Redirect != "" {
		return &Result{Redirect: fc.Redirect}, nil
	}
	return &Result{View: f.view(fc)}, nil
}

func message(err error) string {
	if appErr.IsConflict(err) {
		return MsgConflict
	}
	return appErr.Message(err)
}

func (f *Forms) validateAccess(ctx context.Context, fc *Context) error {
	if !fc.User.HasPermission(model.PermManageContent) {
		return appErr.ErrForbidden
	}
	return nil
}

func (f *Forms) loadContext(ctx context.Context, fc *Context) error {
	switch fc.Kind {
	case KindNew:
		doc, err := f.docs.New(fc.TypeName)
		if err != nil {
			return err
		}
		fc.Document = doc
		fc.Type, _ = f.docs.Type(fc.TypeName)
	case KindEdit, KindDelete:
		doc, err := f.docs.Load(ctx, fc.DocID)
		if err != nil {
			return err
		}
		fc.Document = doc
		fc.TypeName = doc.Type
		fc.Type, _ = f.docs.Type(doc.Type)
	default:
		return fmt.Errorf("unknown form kind %q", fc.Kind)
	}
	return nil
}

func (f *Forms) buildFields(ctx context.Context, fc *Context) error {
	if fc.Kind == KindDelete {
		return nil
	}
	doc := fc.Document
	fc.Fields = append(fc.Fields,
		&Widget{
			Name:     FieldID,
			Label:    "Path",
			Type:     "text",
			Value:    doc.ID,
			Required: true,
			ReadOnly: fc.Kind == KindEdit,
		},
		&Widget{
			Name:    FieldPublished,
			Label:   "Published",
			Type:    "checkbox",
			Checked: doc.Published,
		},
	)
	for _, field := range fc.Type.FormFields() {
		value := doc.Field(field.Key)
		fc.Fields = append(fc.Fields, &Widget{
			Name:        field.Key,
			Label:       field.Label,
			Description: field.Description,
			Type:        field.Form.Widget,
			Value:       value,
			Checked:     value != "",
			Required:    field.Form.Required,
			Choices:     field.Form.Choices,
		})
	}
	return nil
}

// bindSubmission checks the form token and copies submitted values onto
// the widgets and the document.
func (f *Forms) bindSubmission(ctx context.Context, fc *Context) error {
	state, ok := f.tokens.Lookup(fc.Values.Get(FieldToken))
	if !ok || !f.matches(fc, state) {
		return appErr.Invalid(MsgExpired)
	}
	fc.Token = fc.Values.Get(FieldToken)
	fc.State = state

	doc := fc.Document
	if fc.Kind != KindNew {
		doc.Revision = state.Revision
	}
	if fc.Kind == KindDelete {
		return nil
	}
	for _, w := range fc.Fields {
		switch {
		case w.ReadOnly:
		case w.Name == FieldID:
			w.Value = fc.Values.Get(FieldID)
		case w.Name == FieldPublished:
			w.Checked = fc.Values.Get(FieldPublished) != ""
			doc.Published = w.Checked
		case w.Type == "checkbox":
			w.Checked = fc.Values.Get(w.Name) != ""
			w.Value = ""
			if w.Checked {
				w.Value = "on"
			}
			doc.SetField(w.Name, w.Value)
		default:
			w.Value = fc.Values.Get(w.Name)
			doc.SetField(w.Name, w.Value)
		}
	}
	return nil
}

func (f *Forms) matches(fc *Context, state PendingState) bool {
	if state.Kind != fc.Kind || fc.User == nil || state.User != fc.User.Name {
		return false
	}
	if fc.Kind == KindNew {
		return state.TypeName == fc.TypeName
	}
	return state.DocID == fc.Document.ID
}

func (f *Forms) validate(ctx context.Context, fc *Context) error {
	if fc.Kind == KindDelete {
		return nil
	}
	for _, w := range fc.Fields {
		if w.ReadOnly || w.Type == "checkbox" {
			continue
		}
		if w.Required && strings.TrimSpace(w.Value) == "" {
			fc.fail(w, w.Label+" is required")
			continue
		}
		if w.Type == "select" && w.Value != "" && !hasChoice(w.Choices, w.Value) {
			fc.fail(w, "An illegal choice has been detected for "+w.Label)
		}
	}
	if fc.Kind == KindNew {
		if w := fc.field(FieldID); w != nil && w.Error == "" {
			id, err := f.docs.CheckID(ctx, w.Value)
			if err != nil {
				if !appErr.IsInvalid(err) {
					return err
				}
				fc.fail(w, appErr.Message(err))
			} else {
				w.Value = id
				fc.Document.ID = id
			}
		}
	}
	if len(fc.Errors) > 0 {
		return errHalt
	}
	return nil
}

func hasChoice(choices []doctype.Choice, value string) bool {
	for _, c := range choices {
		if c.Value == value {
			return true
		}
	}
	return false
}

func (f *Forms) onSuccess(ctx context.Context, fc *Context) error {
	doc := fc.Document
	switch fc.Kind {
	case KindNew:
		if err := f.docs.Insert(ctx, doc); err != nil {
			if appErr.IsConflict(err) {
				return appErr.Invalid(service.MsgPathInUse)
			}
			return err
		}
		fc.Redirect = model.Path(doc.ID)
	case KindEdit:
		if err := f.docs.Update(ctx, doc); err != nil {
			return err
		}
		fc.Redirect = model.Path(doc.ID)
	case KindDelete:
		if fc.Values.Get(FieldCancel) != "" {
			fc.Redirect = model.Path(doc.ID)
			break
		}
		if err := f.docs.Delete(ctx, doc); err != nil {
			return err
		}
		fc.Redirect = "/"
	}
	f.tokens.Consume(fc.Token)
	return nil
}

// view assembles the template data. A form without a live token gets a
// fresh one; a live token is kept so the captured revision survives
// re-rendering.
func (f *Forms) view(fc *Context) *View {
	v := &View{
		Kind:     fc.Kind,
		Fields:   fc.Fields,
		Errors:   fc.Errors,
		Document: fc.Document,
	}
	if fc.Document == nil {
		v.Title = "Create content"
		return v
	}
	token := fc.Token
	if _, ok := f.tokens.Lookup(token); !ok && fc.User != nil {
		token = f.tokens.Issue(PendingState{
			Kind:     fc.Kind,
			TypeName: fc.TypeName,
			DocID:    fc.Document.ID,
			Revision: fc.Document.Revision,
			User:     fc.User.Name,
		})
	}
	v.Token = token
	switch fc.Kind {
	case KindNew:
		label := fc.TypeName
		if fc.Type != nil {
			label = fc.Type.Label
		}
		v.Title = "Create " + label
		v.Action = "/new/" + url.PathEscape(fc.TypeName)
		v.Submit = "Save"
	case KindEdit:
		v.Title = "Edit " + fc.Document.Title
		v.Action = "/edit" + model.Path(fc.Document.ID)
		v.Submit = "Save"
	case KindDelete:
		v.Title = fmt.Sprintf("Are you sure you want to delete %s?", fc.Document.Title)
		v.Action = "/delete" + model.Path(fc.Document.ID)
		v.Submit = "Delete"
		v.Cancel = "Cancel"
	}
	return v
}
