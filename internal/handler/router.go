package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mpage/internal/middleware"
	"github.com/xxxsen/mpage/internal/view"
)

type RouterDeps struct {
	Documents      *DocumentHandler
	Forms          *FormHandler
	Auth           *AuthHandler
	Assets         *AssetHandler
	Authenticator  middleware.Authenticator
	CookieName     string
	LoginRateLimit time.Duration
	CORSAllowlist  []string
}

// NewEngine builds the gin engine with templates, middlewares and routes.
func NewEngine(deps RouterDeps) (*gin.Engine, error) {
	tmpl, err := view.Load()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(),
		gzip.Gzip(gzip.DefaultCompression),
		middleware.Session(deps.Authenticator, deps.CookieName),
	)
	engine.SetHTMLTemplate(tmpl)
	RegisterRoutes(engine, deps)
	return engine, nil
}

// RegisterRoutes mounts the form, auth and asset routes. Every other path
// is a document path and falls through to the document view.
func RegisterRoutes(r *gin.Engine, deps RouterDeps) {
	r.GET("/new/:type", deps.Forms.New)
	r.POST("/new/:type", deps.Forms.New)
	r.GET("/edit/*path", deps.Forms.Edit)
	r.POST("/edit/*path", deps.Forms.Edit)
	r.GET("/delete/*path", deps.Forms.Delete)
	r.POST("/delete/*path", deps.Forms.Delete)

	r.GET("/login", deps.Auth.LoginPage)
	r.POST("/login", middleware.RateLimit(deps.LoginRateLimit), deps.Auth.Login)
	r.GET("/logout", deps.Auth.Logout)
	r.POST("/logout", deps.Auth.Logout)

	assets := r.Group("/assets", middleware.CORS(deps.CORSAllowlist))
	assets.POST("", deps.Assets.Upload)
	assets.GET("/:key", deps.Assets.Get)
	assets.OPTIONS("", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.NoRoute(deps.Documents.View)
}
