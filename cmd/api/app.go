package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/yourusername/printdrop/internal/auth"
	"github.com/yourusername/printdrop/internal/config"
	"github.com/yourusername/printdrop/internal/jobs"
	"github.com/yourusername/printdrop/internal/pdf"
	"github.com/yourusername/printdrop/internal/storage"
	"github.com/yourusername/printdrop/internal/wizard"
)

// application はハンドラーが依存するコンポーネントをまとめたものです。
type application struct {
	cfg       *config.Config
	logger    *log.Logger
	auth      *auth.Manager
	registry  *wizard.Registry
	orders    *wizard.Handler
	jobs      *jobs.Manager
	workspace *storage.Local
}

func newApplication(cfg *config.Config, logger *log.Logger) (*application, error) {
	// 入力途中のファイルとジョブの作業領域は別のディレクトリに置く
	workspace, err := storage.NewLocal(filepath.Join(cfg.WorkspaceDir, "jobs"), jobTTL(cfg))
	if err != nil {
		return nil, err
	}
	uploads, err := storage.NewUploads(filepath.Join(cfg.WorkspaceDir, "uploads"))
	if err != nil {
		return nil, err
	}

	jobManager, err := setupJobs(cfg, workspace, logger)
	if err != nil {
		return nil, fmt.Errorf("setup jobs: %w", err)
	}

	registry := wizard.NewRegistry(wizard.Options{
		Inspector: pdf.NewInspector(pdf.Limits{
			MaxFileSize: cfg.MaxFileSize,
			MaxPages:    cfg.MaxPages,
		}),
		Gateway:  jobs.NewGateway(workspace, jobManager, logger),
		Stash:    uploads,
		MaxFiles: cfg.MaxFiles,
	}, time.Duration(cfg.WizardIdleMinutes)*time.Minute)

	orders := wizard.NewHandler(registry, wizard.HandlerOptions{
		Locale:      cfg.Locale(),
		MaxFileSize: cfg.MaxFileSize,
		Logger:      logger,
	})

	authManager := auth.NewManager(cfg, auth.NewAccounts(0), logger)
	// サインアウトや期限切れのときは入力途中の注文も破棄する
	authManager.OnSignOut(orders.DiscardSession)

	return &application{
		cfg:       cfg,
		logger:    logger,
		auth:      authManager,
		registry:  registry,
		orders:    orders,
		jobs:      jobManager,
		workspace: workspace,
	}, nil
}

// maxUploadBytes は1回のアップロードリクエストで受け付けるボディの上限です。
func (a *application) maxUploadBytes() int64 {
	const multipartOverhead = 1 << 20
	return a.cfg.MaxFileSize*int64(a.cfg.MaxFiles) + multipartOverhead
}

// sweepWizards は期限切れのウィザードを定期的に破棄します。
func (a *application) sweepWizards(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.registry.Sweep(); n > 0 {
				a.logger.Printf("discarded %d idle order forms", n)
			}
		}
	}
}

func (a *application) close(ctx context.Context) error {
	a.workspace.Close()
	return a.jobs.Shutdown(ctx)
}

func jobTTL(cfg *config.Config) time.Duration {
	minutes := cfg.JobExpireMinutes
	if minutes <= 0 {
		minutes = 10
	}
	return time.Duration(minutes) * time.Minute
}
