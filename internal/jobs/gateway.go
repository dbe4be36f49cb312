package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/printdrop/internal/storage"
	"github.com/yourusername/printdrop/internal/wizard"
)

const stageWorkers = 4

// Enqueuer は印刷タスクをキューに投入します。*Manager が実装します。
type Enqueuer interface {
	Enqueue(ctx context.Context, payload *TaskPayload) (string, error)
}

// Gateway は wizard.Gateway の実装です。フォームが保存したファイルをジョブの作業領域へ複製し、印刷ジョブとして投入します。
type Gateway struct {
	storage *storage.Local
	queue   Enqueuer
	logger  *log.Logger
	now     func() time.Time
	newID   func() string
}

var _ wizard.Gateway = (*Gateway)(nil)

// NewGateway は Gateway を作成します。
func NewGateway(local *storage.Local, queue Enqueuer, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{
		storage: local,
		queue:   queue,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// SubmitOrder は注文を受け付けてジョブIDを返します。途中で失敗した場合は作業領域を片付けます。
func (g *Gateway) SubmitOrder(ctx context.Context, order wizard.Order) (*wizard.Confirmation, error) {
	if g.storage == nil || g.queue == nil {
		return nil, errors.New("gateway is not configured")
	}
	if len(order.Files) == 0 {
		return nil, errors.New("order has no files")
	}

	jobID := g.newID()
	ws, err := g.storage.Create(jobID)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		JobID:        jobID,
		WizardID:     order.WizardID,
		Files:        make([]ManifestFile, len(order.Files)),
		PrintOptions: order.PrintOptions,
		Address:      order.Address,
		TotalCost:    order.TotalCost,
		CreatedAt:    g.now().UTC(),
	}
	for i, f := range order.Files {
		manifest.Files[i] = ManifestFile{
			StoredName:   fmt.Sprintf("%03d_%s", i+1, storage.SanitizeName(f.Name)),
			OriginalName: f.Name,
			Size:         f.Size,
			Pages:        f.Pages,
		}
	}

	if err := g.stage(ctx, ws, order.Files, manifest.Files); err != nil {
		g.discard(jobID)
		return nil, fmt.Errorf("stage order files: %w", err)
	}
	if err := writeManifest(ws.Dir, manifest); err != nil {
		g.discard(jobID)
		return nil, err
	}
	if _, err := g.queue.Enqueue(ctx, &TaskPayload{JobID: jobID, WizardID: order.WizardID, Owner: order.Owner}); err != nil {
		g.discard(jobID)
		return nil, fmt.Errorf("enqueue print job: %w", err)
	}

	g.logger.Printf("print job queued job=%s wizard=%s files=%d cost=%d", jobID, order.WizardID, len(order.Files), order.TotalCost)
	return &wizard.Confirmation{
		ID:        jobID,
		StatusURL: "/api/jobs/" + jobID,
	}, nil
}

func (g *Gateway) stage(ctx context.Context, ws *storage.Workspace, files []wizard.OrderFile, stored []ManifestFile) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(stageWorkers)
	for i := range files {
		src, name := files[i].Path, stored[i].StoredName
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := ws.CopyInput(name, src)
			return err
		})
	}
	return eg.Wait()
}

func (g *Gateway) discard(jobID string) {
	if err := g.storage.Remove(jobID); err != nil {
		g.logger.Printf("failed to remove workspace job=%s: %v", jobID, err)
	}
}
