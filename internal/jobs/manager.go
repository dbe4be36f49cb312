package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/hibiken/asynq"

	"github.com/yourusername/printdrop/internal/config"
)

const (
	taskTypePrint = "order:print"
	queuePrint    = "print"
)

// Manager はジョブの投入と状態管理を担います。
type Manager struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	store     *Store
	processor *Processor
	logger    *log.Logger
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, store *Store, processor *Processor, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if processor == nil {
		return nil, errors.New("processor is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queuePrint: 1,
			},
			Logger: newAsynqLogger(logger),
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client:    asynq.NewClient(opt),
		server:    server,
		mux:       mux,
		store:     store,
		processor: processor,
		logger:    logger,
	}
	mux.HandleFunc(taskTypePrint, manager.handlePrintTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			m.logger.Printf("asynq server stopped with error: %v", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	return errors.Join(m.client.Close(), m.store.Close())
}

// Enqueue は印刷ジョブを記録してからキューに投入します。
func (m *Manager) Enqueue(ctx context.Context, payload *TaskPayload) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("payload is nil")
	}
	if payload.JobID == "" {
		return "", fmt.Errorf("payload.JobID is required")
	}

	record := &Record{
		JobID:     payload.JobID,
		WizardID:  payload.WizardID,
		Owner:     payload.Owner,
		Operation: OperationPrint,
		Status:    StatusQueued,
		Progress: ProgressInfo{
			Percent: 0,
			Stage:   "queued",
		},
	}
	if err := m.store.Upsert(ctx, record); err != nil {
		return "", err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(taskTypePrint, body, asynq.Queue(queuePrint))
	info, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(1), asynq.TaskID(payload.JobID))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// GetRecord はジョブ情報を取得します。
func (m *Manager) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	return m.store.Get(ctx, jobID)
}

// OpenResult は完了したジョブの出力ファイルを開きます。
func (m *Manager) OpenResult(jobID string) (*os.File, os.FileInfo, error) {
	return m.processor.OpenResult(jobID)
}

func (m *Manager) handlePrintTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return m.processor.Process(ctx, payload)
}

// asynqLogger は asynq のログを共通の *log.Logger に流します。
type asynqLogger struct {
	logger *log.Logger
}

func newAsynqLogger(logger *log.Logger) *asynqLogger {
	return &asynqLogger{logger: logger}
}

func (l *asynqLogger) Debug(args ...any) {}

func (l *asynqLogger) Info(args ...any) {
	l.logger.Print(append([]any{"asynq: "}, args...)...)
}

func (l *asynqLogger) Warn(args ...any) {
	l.logger.Print(append([]any{"asynq warn: "}, args...)...)
}

func (l *asynqLogger) Error(args ...any) {
	l.logger.Print(append([]any{"asynq error: "}, args...)...)
}

func (l *asynqLogger) Fatal(args ...any) {
	l.logger.Fatal(append([]any{"asynq fatal: "}, args...)...)
}
