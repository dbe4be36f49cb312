// Package auth はサインイン状態の管理と、それに基づくナビゲーションを提供します。
package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	ginKeyContext = "auth.context"
	ginKeyExpired = "auth.expired"
)

// Context はリクエストごとのサインイン状態です。セッションから毎回解決され、必要な処理へ明示的に渡します。
type Context struct {
	SignedIn bool      `json:"signedIn"`
	Email    string    `json:"email,omitempty"`
	Name     string    `json:"name,omitempty"`
	IssuedAt time.Time `json:"issuedAt,omitzero"`
}

// FromGin は Resolve ミドルウェアが解決した Context を返します。未解決の場合はサインアウト状態です。
func FromGin(c *gin.Context) Context {
	if v, ok := c.Get(ginKeyContext); ok {
		if authCtx, ok := v.(Context); ok {
			return authCtx
		}
	}
	return Context{}
}

// Link はナビゲーションの1項目です。Method が空の場合は画面遷移です。
type Link struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Method string `json:"method,omitempty"`
}

// Links はサインイン状態に応じたナビゲーションを返します。
// 注文フォームはサインイン中のみ表示し、未サインインの場合は登録とサインインを表示します。
func Links(authCtx Context) []Link {
	links := []Link{
		{Label: "Home", Path: "/"},
		{Label: "Services", Path: "/#services"},
		{Label: "Contact", Path: "/#contact"},
	}
	if authCtx.SignedIn {
		return append(links,
			Link{Label: "Form", Path: "/form"},
			Link{Label: "Sign out", Path: "/api/auth/signout", Method: http.MethodPost},
		)
	}
	return append(links,
		Link{Label: "Sign up", Path: "/signup"},
		Link{Label: "Sign In", Path: "/signin"},
	)
}
