package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
	"github.com/d60-Lab/friendlyvoice/internal/session"
	"github.com/d60-Lab/friendlyvoice/pkg/response"
)

const sessionKey = "fv.session"

// RequireSession 解析 Bearer 令牌并把会话放入 gin 上下文
func RequireSession(m *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, apperr.ErrNotAuthenticated)
			return
		}
		s, err := m.Resolve(token)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// Session 返回 RequireSession 放入的会话
func Session(c *gin.Context) *session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
