package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mpage/internal/model"
)

const ContextUserKey = "user"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// Session resolves the session cookie to a user. Requests without a valid
// session continue anonymously.
func Session(auth Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err == nil && token != "" {
			if user, err := auth.Authenticate(c.Request.Context(), token); err == nil {
				c.Set(ContextUserKey, user)
			}
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}

// HasPermission reports whether the authenticated user holds perm.
func HasPermission(c *gin.Context, perm string) bool {
	return CurrentUser(c).HasPermission(perm)
}
