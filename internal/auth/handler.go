package auth

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/printdrop/internal/apperr"
)

// SignUp は POST /api/auth/signup のハンドラーです。登録に成功するとそのままサインイン状態になります。
func (m *Manager) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperr.New(apperr.CodeInvalidInput, "Send the sign-up form as JSON.", err))
		return
	}
	if errs := ValidateSignUp(req); len(errs) > 0 {
		respondWithFieldErrors(c, errs)
		return
	}

	account, err := m.accounts.Register(req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	authCtx, token, err := m.startSession(c, account)
	if err != nil {
		m.logger.Printf("failed to start session: %v", err)
		respondWithError(c, apperr.New(apperr.CodeInternal, "The session could not be saved.", err))
		return
	}

	c.Header(csrfHeader, token)
	c.JSON(http.StatusCreated, gin.H{"auth": authCtx, "csrfToken": token})
}

// SignIn は POST /api/auth/signin のハンドラーです。
func (m *Manager) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperr.New(apperr.CodeInvalidInput, "Send the sign-in form as JSON.", err))
		return
	}
	if errs := ValidateSignIn(req); len(errs) > 0 {
		respondWithFieldErrors(c, errs)
		return
	}

	ip := c.ClientIP()
	if retryAfter := m.checkLock(ip); retryAfter > 0 {
		// Retry-After は秒数で返す
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code":    "TOO_MANY_ATTEMPTS",
			"message": "Too many failed attempts. Please try again later.",
		})
		return
	}

	account, err := m.accounts.Authenticate(req.Email, req.Password)
	if err != nil {
		remaining := m.recordFailure(ip)
		c.JSON(apperr.HTTPStatus(err), gin.H{
			"code":              apperr.CodeOf(err),
			"message":           messageOf(err),
			"remainingAttempts": remaining,
		})
		return
	}
	m.resetAttempts(ip)

	authCtx, token, err := m.startSession(c, account)
	if err != nil {
		m.logger.Printf("failed to start session: %v", err)
		respondWithError(c, apperr.New(apperr.CodeInternal, "The session could not be saved.", err))
		return
	}

	c.Header(csrfHeader, token)
	c.JSON(http.StatusOK, gin.H{"auth": authCtx, "csrfToken": token})
}

// SignOut は POST /api/auth/signout のハンドラーです。進行中の注文フォームも破棄されます。
func (m *Manager) SignOut(c *gin.Context) {
	if err := m.endSession(c); err != nil {
		respondWithError(c, apperr.New(apperr.CodeInternal, "The session could not be cleared.", err))
		return
	}
	c.Status(http.StatusNoContent)
}

// Me は GET /api/auth/me のハンドラーです。サインイン中は CSRF トークンも返します。
func (m *Manager) Me(c *gin.Context) {
	authCtx := FromGin(c)
	payload := gin.H{"auth": authCtx}
	if authCtx.SignedIn {
		if token, ok := sessions.Default(c).Get(sessionKeyCSRF).(string); ok && token != "" {
			c.Header(csrfHeader, token)
			payload["csrfToken"] = token
		}
	}
	c.JSON(http.StatusOK, payload)
}

// Navigation は GET /api/nav のハンドラーです。
func (m *Manager) Navigation(c *gin.Context) {
	authCtx := FromGin(c)
	c.JSON(http.StatusOK, gin.H{
		"auth":  authCtx,
		"links": Links(authCtx),
	})
}

func respondWithFieldErrors(c *gin.Context, errs FieldErrors) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"code":        apperr.CodeValidationFailed,
		"message":     "Please correct the highlighted errors and try again.",
		"fieldErrors": errs,
	})
}

func respondWithError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{
		"code":    apperr.CodeOf(err),
		"message": messageOf(err),
	})
}

func messageOf(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An internal server error occurred."
}
