package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionIDKey = "session_id"

// Session makes sure every visitor carries a session cookie. The cart is
// keyed by this id.
func Session(cookieName string, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(cookieName)
		if err != nil || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, sid, 0, "/", "", secure, true)
		}
		c.Set(sessionIDKey, sid)
		c.Next()
	}
}

// GetSessionID returns the visitor session id set by Session.
func GetSessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}
