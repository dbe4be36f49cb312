// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// セッション設定
	SessionSecret          string `env:"SESSION_SECRET"`                            // セッション署名用の秘密鍵
	SessionLifetimeMinutes int    `env:"SESSION_LIFETIME_MINUTES" envDefault:"720"` // サインインの最大有効時間（分）
	SessionIdleMinutes     int    `env:"SESSION_IDLE_MINUTES" envDefault:"30"`      // 無操作でサインアウトするまでの時間（分）

	// サーバー設定
	Port    string `env:"PORT" envDefault:"8080"`      // APIサーバーのポート番号
	GinMode string `env:"GIN_MODE" envDefault:"debug"` // Ginの実行モード (debug, release, test)

	// CORS設定（カンマ区切り）
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`

	// アップロード制限
	MaxFileSize int64 `env:"MAX_FILE_SIZE" envDefault:"104857600"` // 単一ファイルの最大サイズ（バイト）
	MaxPages    int   `env:"MAX_PAGES" envDefault:"200"`           // 単一ファイルの最大ページ数
	MaxFiles    int   `env:"MAX_FILES" envDefault:"20"`            // 1注文あたりの最大ファイル数

	// ウィザード設定
	WizardIdleMinutes int    `env:"WIZARD_IDLE_MINUTES" envDefault:"30"` // 操作がないウィザードを破棄するまでの時間（分）
	SummaryLocale     string `env:"SUMMARY_LOCALE" envDefault:"en"`      // 支払いサマリーの金額表記に使うロケール

	// ジョブ/キュー設定
	QueueRedisURL     string `env:"QUEUE_REDIS_URL" envDefault:"redis://127.0.0.1:6379/0"` // Asynq用Redis接続URL
	JobExpireMinutes  int    `env:"JOB_EXPIRE_MINUTES" envDefault:"60"`                    // ジョブの有効期限（分）
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"4"`                     // 印刷ジョブの同時実行数
	WorkspaceDir      string `env:"WORKSPACE_DIR"`                                         // jobs/ と uploads/ を置く作業領域（空ならOSの一時ディレクトリ）
	JobResultBaseURL  string `env:"JOB_RESULT_BASE_URL"`                                   // 結果ファイル取得用のベースURL
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.WorkspaceDir == "" {
		cfg.WorkspaceDir = filepath.Join(os.TempDir(), "printdrop")
	}

	// 必須設定のバリデーション
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Locale は支払いサマリーに使う言語タグです。Validate 済みであることを前提とします。
func (c *Config) Locale() language.Tag {
	tag, err := language.Parse(c.SummaryLocale)
	if err != nil {
		return language.English
	}
	return tag
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("MAX_PAGES must be positive")
	}
	if c.MaxFiles <= 0 {
		return fmt.Errorf("MAX_FILES must be positive")
	}
	if c.SessionLifetimeMinutes <= 0 || c.SessionIdleMinutes <= 0 {
		return fmt.Errorf("SESSION_LIFETIME_MINUTES and SESSION_IDLE_MINUTES must be positive")
	}

	if _, err := language.Parse(c.SummaryLocale); err != nil {
		return fmt.Errorf("SUMMARY_LOCALE is not a valid language tag: %w", err)
	}

	// ローカル開発ではセッション鍵は任意
	if c.GinMode == "release" {
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.QueueRedisURL == "" {
			return fmt.Errorf("QUEUE_REDIS_URL is required in release mode")
		}
	}

	return nil
}
