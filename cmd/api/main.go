// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/printdrop/internal/auth"
	"github.com/yourusername/printdrop/internal/config"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	logger := log.Default()
	app, err := newApplication(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()
	setupMiddleware(router, cfg, app)
	setupRoutes(router, app)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.jobs.StartWorkers()
	go app.sweepWizards(ctx, time.Minute)

	// サーバーの起動
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Starting API server on %s (mode: %s)", srv.Addr, cfg.GinMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
	if err := app.close(shutdownCtx); err != nil {
		log.Printf("Application shutdown: %v", err)
	}
}

// setupMiddleware はセッションと CORS を設定します。
func setupMiddleware(router *gin.Engine, cfg *config.Config, app *application) {
	// セッションストアの設定（クッキー署名鍵は release モードでは必須）
	store := cookie.NewStore(sessionKey(cfg))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   app.auth.SessionMaxAgeSeconds(),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteStrictMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"X-CSRF-Token", // CSRF保護用ヘッダー
	}
	// フロントエンドがレスポンスヘッダーから CSRF トークンを読み取れるように公開
	corsConfig.ExposeHeaders = []string{"X-CSRF-Token"}
	router.Use(cors.New(corsConfig))
}

// sessionKey はクッキー署名鍵を返します。未設定の場合は起動ごとの一時鍵を使うため、再起動でセッションは無効になります。
func sessionKey(cfg *config.Config) []byte {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("Failed to generate session key: %v", err)
	}
	log.Printf("SESSION_SECRET is not set; using a temporary session key")
	return key
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "printdrop-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループと認証周りの配線を行います。
func setupRoutes(router *gin.Engine, app *application) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	authManager := app.auth

	api := router.Group("/api")
	api.Use(authManager.Resolve())
	{
		api.GET("/nav", authManager.Navigation)

		authRoutes := api.Group("/auth")
		{
			// サインイン前はセッション未生成なので CSRF 検証は不要
			authRoutes.POST("/signup", authManager.SignUp)
			authRoutes.POST("/signin", authManager.SignIn)
			authRoutes.GET("/me", authManager.Me)
			authRoutes.POST("/signout",
				authManager.RequireLogin(),
				authManager.VerifyCSRF(),
				authManager.SignOut,
			)
		}

		protected := api.Group("")
		protected.Use(authManager.RequireLogin(), authManager.VerifyCSRF())
		{
			orders := app.orders
			order := protected.Group("/order")
			order.POST("", orders.Create)
			order.GET("", orders.State)
			order.DELETE("", orders.Discard)
			order.POST("/next", orders.Next)
			order.POST("/back", orders.Back)
			order.POST("/jump/:step", orders.Jump)
			order.POST("/files", limitBody(app.maxUploadBytes()), orders.UploadFiles)
			order.DELETE("/files/:name", orders.RemoveFile)
			order.PUT("/fields/:step", orders.SetField)
			order.GET("/summary", orders.Summary)
			order.POST("/submit", orders.Submit)

			protected.GET("/jobs/:id", jobStatusHandler(app.jobs))
			protected.GET("/jobs/:id/download", jobDownloadHandler(app.jobs))
		}
	}
}

// limitBody はリクエストボディの上限を設定するミドルウェアです。
func limitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"code":    "LIMIT_EXCEEDED",
				"message": "The upload is too large.",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
