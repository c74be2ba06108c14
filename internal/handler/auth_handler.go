package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mpage/internal/service"
)

type AuthHandler struct {
	auth         *service.AuthService
	cookieName   string
	cookieSecure bool
}

func NewAuthHandler(auth *service.AuthService, cookieName string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, cookieName: cookieName, cookieSecure: cookieSecure}
}

func (h *AuthHandler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", newPage(c, "Log in"))
}

func (h *AuthHandler) Login(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	_, token, err := h.auth.Login(c.Request.Context(), name, c.PostForm("password"))
	if err != nil {
		logutil.GetLogger(c.Request.Context()).Info("login failed", zap.String("name", name), zap.String("ip", c.ClientIP()))
		page := newPage(c, "Log in")
		page.Name = name
		page.Error = "Unrecognized username or password."
		c.HTML(http.StatusOK, "login.html", page)
		return
	}
	h.setCookie(c, token, int(h.auth.TTL().Seconds()))
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.setCookie(c, "", -1)
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, value, maxAge, "/", "", h.cookieSecure, true)
}
