package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mpage/internal/model"
	appErr "github.com/xxxsen/mpage/internal/pkg/errors"
)

type staticAuth map[string]*model.User

func (a staticAuth) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if u, ok := a[token]; ok {
		return u, nil
	}
	return nil, appErr.ErrUnauthorized
}

func TestSessionSetsUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := staticAuth{"good": {Name: "editor", Permissions: []string{model.PermManageContent}}}
	r := gin.New()
	r.Use(RequestID(), Session(auth, "sid"))
	r.GET("/", func(c *gin.Context) {
		if HasPermission(c, model.PermManageContent) {
			c.String(http.StatusOK, CurrentUser(c).Name)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	cases := map[string]string{"": "anonymous", "bad": "anonymous", "good": "editor"}
	for cookie, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: "sid", Value: cookie})
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, want, w.Body.String())
		require.NotEmpty(t, w.Header().Get(HeaderRequestID))
	}
}

func TestRequestIDKeepsIncomingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "abc", w.Body.String())
}
