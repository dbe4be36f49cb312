package jobs

import "time"

// OperationPrint は注文を印刷用の1ファイルにまとめるジョブです。
const OperationPrint = "print"

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "done"
	StatusFailed    Status = "error"
)

// ProgressInfo は進捗の補足情報を表します。
type ProgressInfo struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorInfo はジョブ失敗時のエラー情報を保持します。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PrintMeta は完了した印刷ジョブの概要です。
type PrintMeta struct {
	Files     int    `json:"files"`
	Pages     int    `json:"pages"`
	TotalCost int64  `json:"totalCost"`
	Output    string `json:"output"`
}

// Record はジョブの現在状態を表します。注文内容そのものは保持しません。
type Record struct {
	JobID       string       `json:"jobId"`
	WizardID    string       `json:"wizardId,omitempty"`
	Owner       string       `json:"owner,omitempty"`
	Operation   string       `json:"operation"`
	Status      Status       `json:"status"`
	Progress    ProgressInfo `json:"progress"`
	DownloadURL string       `json:"downloadUrl,omitempty"`
	Meta        *PrintMeta   `json:"meta,omitempty"`
	Error       *ErrorInfo   `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

// TaskPayload は order:print タスクのペイロードです。
type TaskPayload struct {
	JobID    string `json:"jobId"`
	WizardID string `json:"wizardId,omitempty"`
	Owner    string `json:"owner,omitempty"`
}
