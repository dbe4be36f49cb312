package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Resolve はセッションから Context を解決してリクエストに載せるミドルウェアです。
// 有効期限または無操作時間を超えたセッションはここで破棄します。
func (m *Manager) Resolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		authCtx, expired := m.resolve(session)
		switch {
		case expired != "":
			if err := m.endSession(c); err != nil {
				m.logger.Printf("failed to clear expired session: %v", err)
			}
			c.Set(ginKeyExpired, expired)
		case authCtx.SignedIn:
			session.Set(sessionKeyLastActive, m.now().Unix())
			if err := session.Save(); err != nil {
				m.logger.Printf("failed to refresh session: %v", err)
			}
		}
		c.Set(ginKeyContext, authCtx)
		c.Next()
	}
}

// RequireLogin はサインイン済みでないリクエストを 401 で止めるミドルウェアです。Resolve の後に置きます。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if FromGin(c).SignedIn {
			c.Next()
			return
		}

		switch c.GetString(ginKeyExpired) {
		case codeSessionExpired:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    codeSessionExpired,
				"message": "Your session has expired. Please sign in again.",
			})
		case codeSessionIdle:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    codeSessionIdle,
				"message": "You were signed out after a period of inactivity.",
			})
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Please sign in to continue.",
			})
		}
	}
}

// VerifyCSRF は X-CSRF-Token ヘッダーを検証するミドルウェアです。
func (m *Manager) VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		session := sessions.Default(c)
		expected, ok := session.Get(sessionKeyCSRF).(string)
		if !ok || expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_MISSING",
				"message": "No CSRF token has been issued for this session.",
			})
			return
		}

		received := c.GetHeader(csrfHeader)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_INVALID",
				"message": "The CSRF token does not match.",
			})
			return
		}

		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
