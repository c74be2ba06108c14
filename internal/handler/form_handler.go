package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mpage/internal/form"
	"github.com/xxxsen/mpage/internal/middleware"
)

type FormHandler struct {
	forms *form.Forms
}

func NewFormHandler(forms *form.Forms) *FormHandler {
	return &FormHandler{forms: forms}
}

func (h *FormHandler) New(c *gin.Context) {
	h.process(c, &form.Context{Kind: form.KindNew, TypeName: c.Param("type")})
}

func (h *FormHandler) Edit(c *gin.Context) {
	h.process(c, &form.Context{Kind: form.KindEdit, DocID: strings.Trim(c.Param("path"), "/")})
}

func (h *FormHandler) Delete(c *gin.Context) {
	h.process(c, &form.Context{Kind: form.KindDelete, DocID: strings.Trim(c.Param("path"), "/")})
}

func (h *FormHandler) process(c *gin.Context, fc *form.Context) {
	fc.User = middleware.CurrentUser(c)
	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err != nil {
			renderError(c, http.StatusBadRequest, "Bad request", "The submitted form could not be read.")
			return
		}
		fc.Submit = true
		fc.Values = c.Request.PostForm
	}
	res, err := h.forms.Process(c.Request.Context(), fc)
	if err != nil {
		handleError(c, err)
		return
	}
	if res.Redirect != "" {
		c.Redirect(http.StatusFound, res.Redirect)
		return
	}
	page := newPage(c, res.View.Title)
	page.Form = res.View
	c.HTML(http.StatusOK, "form.html", page)
}
