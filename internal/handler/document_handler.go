package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mpage/internal/doctype"
	"github.com/xxxsen/mpage/internal/hierarchy"
	"github.com/xxxsen/mpage/internal/middleware"
	"github.com/xxxsen/mpage/internal/model"
	"github.com/xxxsen/mpage/internal/render"
	"github.com/xxxsen/mpage/internal/service"
)

type DocumentHandler struct {
	docs     *service.DocumentService
	resolver *hierarchy.Resolver
	types    *doctype.Registry
	siteName string
}

func NewDocumentHandler(docs *service.DocumentService, resolver *hierarchy.Resolver, types *doctype.Registry, siteName string) *DocumentHandler {
	if siteName == "" {
		siteName = "Home"
	}
	return &DocumentHandler{docs: docs, resolver: resolver, types: types, siteName: siteName}
}

// View serves the document addressed by the request path.
func (h *DocumentHandler) View(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		renderError(c, http.StatusMethodNotAllowed, "Method not allowed", "This page only supports GET requests.")
		return
	}
	id := strings.Trim(c.Request.URL.Path, "/")
	if id == "" {
		h.home(c)
		return
	}
	ctx := c.Request.Context()
	doc, err := h.docs.Load(ctx, id)
	if err != nil {
		handleError(c, err)
		return
	}
	canManage := middleware.HasPermission(c, model.PermManageContent)
	if !doc.Published && !canManage {
		renderError(c, http.StatusForbidden, "Access denied", "You are not authorized to access this page.")
		return
	}
	res, err := h.docs.Render(doc)
	if err != nil {
		handleError(c, err)
		return
	}
	if c.Query("format") == "markdown" {
		md, err := render.Markdown(res)
		if err != nil {
			handleError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
		return
	}

	node := h.resolver.Resolve(ctx, doc)
	menu := hierarchy.MenuOf(node)
	if !canManage {
		menu = menu.Published()
	}
	page := newPage(c, res.Title)
	page.Document = doc
	page.Parent = node.Parent
	page.Menu = menu
	for _, frag := range res.Fragments {
		if frag.Slot == render.SlotProse {
			page.Prose = append(page.Prose, frag)
			continue
		}
		page.Content = append(page.Content, frag)
	}
	c.HTML(http.StatusOK, "document.html", page)
}

// home lists the root documents and, for editors, the types they can create.
func (h *DocumentHandler) home(c *gin.Context) {
	canManage := middleware.HasPermission(c, model.PermManageContent)
	node := h.resolver.Resolve(c.Request.Context(), &model.Document{Title: h.siteName, Published: true})
	menu := hierarchy.MenuOf(node)
	if !canManage {
		menu = menu.Published()
	}
	page := newPage(c, h.siteName)
	page.Items = menu.Items
	if canManage {
		for _, name := range h.types.Names() {
			t, _ := h.types.Lookup(name)
			page.Types = append(page.Types, t)
		}
	}
	c.HTML(http.StatusOK, "home.html", page)
}
