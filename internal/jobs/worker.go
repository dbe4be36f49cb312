// Package jobs は送信された注文を印刷ジョブとして非同期に処理します。
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/yourusername/printdrop/internal/apperr"
	"github.com/yourusername/printdrop/internal/pdf"
	"github.com/yourusername/printdrop/internal/storage"
)

// OutputFilename は印刷用にまとめたファイルの名前です。
const OutputFilename = "order.pdf"

// recordStore はワーカーが使うジョブ記録の操作です。*Store が実装します。
type recordStore interface {
	Get(ctx context.Context, jobID string) (*Record, error)
	Upsert(ctx context.Context, record *Record) error
	MarkRunning(ctx context.Context, jobID, stage string) error
	UpdateProgress(ctx context.Context, jobID string, progress ProgressInfo) error
	MarkDone(ctx context.Context, jobID string, downloadURL string, meta *PrintMeta) error
	MarkFailed(ctx context.Context, jobID string, errInfo *ErrorInfo) error
}

// MergeFunc は入力PDFを順に結合して output に書き出し、結果のページ数を返します。
type MergeFunc func(ctx context.Context, inputs []string, output string) (int, error)

// Processor は order:print タスクの本体です。キューとは独立して実行できます。
type Processor struct {
	storage       *storage.Local
	store         recordStore
	merge         MergeFunc
	resultBaseURL string
	logger        *log.Logger
}

// NewProcessor は Processor を作成します。merge が nil の場合は pdf.MergeFiles を使います。
func NewProcessor(local *storage.Local, store recordStore, merge MergeFunc, resultBaseURL string, logger *log.Logger) *Processor {
	if merge == nil {
		merge = pdf.MergeFiles
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Processor{
		storage:       local,
		store:         store,
		merge:         merge,
		resultBaseURL: resultBaseURL,
		logger:        logger,
	}
}

// Process は保存済みの注文を読み込み、1つの印刷用PDFにまとめます。
// 処理自体の失敗はジョブ記録に残して nil を返し、記録の更新に失敗した場合のみエラーを返します。
//
// 進捗:
//   - load: 0 → 20%
//   - merge: 20 → 80%
//   - verify: 80 → 100%
func (p *Processor) Process(ctx context.Context, payload TaskPayload) error {
	if payload.JobID == "" {
		return fmt.Errorf("missing jobId in payload")
	}
	jobID := payload.JobID

	if err := p.store.MarkRunning(ctx, jobID, "load"); err != nil {
		return err
	}

	meta, err := p.run(ctx, jobID)
	if scheduleErr := p.storage.ScheduleRemoval(jobID); scheduleErr != nil {
		p.logger.Printf("failed to schedule workspace removal job=%s: %v", jobID, scheduleErr)
	}
	if err != nil {
		p.logger.Printf("print job failed job=%s: %v", jobID, err)
		return p.failJobWithError(ctx, jobID, err)
	}
	return p.store.MarkDone(ctx, jobID, p.buildDownloadURL(jobID), meta)
}

func (p *Processor) run(ctx context.Context, jobID string) (*PrintMeta, error) {
	ws, err := p.storage.Open(jobID)
	if err != nil {
		return nil, apperr.New(codeWorkspaceMissing, "The order files are no longer available.", err)
	}
	manifest, err := loadManifest(ws.Dir)
	if err != nil {
		return nil, apperr.New(codeInvalidManifest, "The order could not be read.", err)
	}

	inputs := make([]string, len(manifest.Files))
	for i, f := range manifest.Files {
		inputs[i] = ws.InputPath(f.StoredName)
	}
	p.reportProgress(ctx, jobID, "merge", 20)

	output := ws.OutputPath(OutputFilename)
	pages, err := p.merge(ctx, inputs, output)
	if err != nil {
		return nil, err
	}
	p.reportProgress(ctx, jobID, "verify", 80)

	// 受付時のページ数と一致しなければ料金と印刷物がずれる
	if want := manifest.TotalPages(); pages != want {
		return nil, apperr.New(codePageMismatch,
			fmt.Sprintf("The print bundle has %d pages but the order was priced for %d.", pages, want), nil)
	}

	return &PrintMeta{
		Files:     len(manifest.Files),
		Pages:     pages,
		TotalCost: manifest.TotalCost,
		Output:    OutputFilename,
	}, nil
}

func (p *Processor) reportProgress(ctx context.Context, jobID, stage string, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if err := p.store.UpdateProgress(ctx, jobID, ProgressInfo{
		Percent: percent,
		Stage:   stage,
	}); err != nil {
		p.logger.Printf("failed to update progress job=%s: %v", jobID, err)
	}
}

func (p *Processor) failJobWithError(ctx context.Context, jobID string, err error) error {
	info := &ErrorInfo{Code: apperr.CodeInternal, Message: "The print job failed."}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		info = &ErrorInfo{Code: appErr.Code, Message: appErr.Message}
	}
	return p.store.MarkFailed(ctx, jobID, info)
}

func (p *Processor) buildDownloadURL(jobID string) string {
	base := p.resultBaseURL
	if base == "" {
		return fmt.Sprintf("/api/jobs/%s/download", jobID)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), jobID, url.PathEscape(OutputFilename))
}

// OpenResult は完了したジョブの出力ファイルを開きます。
func (p *Processor) OpenResult(jobID string) (*os.File, os.FileInfo, error) {
	ws, err := p.storage.Open(jobID)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.Open(ws.OutputPath(OutputFilename))
	if err != nil {
		return nil, nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return file, info, nil
}

const (
	codeWorkspaceMissing = "WORKSPACE_MISSING"
	codeInvalidManifest  = "INVALID_MANIFEST"
	codePageMismatch     = "PAGE_COUNT_MISMATCH"
)
