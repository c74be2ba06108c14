package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mpage/internal/middleware"
	"github.com/xxxsen/mpage/internal/model"
	appErr "github.com/xxxsen/mpage/internal/pkg/errors"
	"github.com/xxxsen/mpage/internal/view"
)

func newPage(c *gin.Context, title string) view.Page {
	return view.Page{
		Title:     title,
		User:      middleware.CurrentUser(c),
		CanManage: middleware.HasPermission(c, model.PermManageContent),
		RequestID: middleware.GetRequestID(c),
	}
}

func renderError(c *gin.Context, status int, title, msg string) {
	page := newPage(c, title)
	page.Status = status
	page.Error = msg
	c.HTML(status, "error.html", page)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	switch {
	case appErr.IsNotFound(err):
		renderError(c, http.StatusNotFound, "Page not found", "The requested page could not be found.")
	case errors.Is(err, appErr.ErrForbidden), errors.Is(err, appErr.ErrUnauthorized):
		renderError(c, http.StatusForbidden, "Access denied", "You are not authorized to access this page.")
	case errors.Is(err, appErr.ErrTooMany):
		renderError(c, http.StatusTooManyRequests, "Too many requests", "Please wait a moment and try again.")
	default:
		user := ""
		if u := middleware.CurrentUser(c); u != nil {
			user = u.Name
		}
		logutil.GetLogger(c.Request.Context()).Error("request failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("user", user),
			zap.Error(err),
		)
		renderError(c, http.StatusInternalServerError, "Error", "The website encountered an unexpected error.")
	}
}
