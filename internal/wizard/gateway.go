package wizard

import (
	"context"
	"time"
)

// PageCounter はアップロードされたファイルのページ数を数えます。
// 受け付けられない形式や壊れたファイルの場合はエラーを返します。
type PageCounter interface {
	CountPages(ctx context.Context, name string, data []byte) (int, error)
}

// FileStash は受け付けたファイルの保存先です。ウィザードは保存先のパスだけを保持します。
// *storage.Uploads が実装します。
type FileStash interface {
	Stash(wizardID string, seq uint64, name string, data []byte) (string, error)
	Drop(path string) error
	Release(wizardID string) error
}

// Gateway は確定した注文を送信先へ渡します。
type Gateway interface {
	SubmitOrder(ctx context.Context, order Order) (*Confirmation, error)
}

// OrderFile は送信対象のファイルです。Path は FileStash が返した保存先です。
type OrderFile struct {
	UploadedFile
	Path string `json:"-"`
}

// Order は送信時点の入力一式です。
type Order struct {
	WizardID     string       `json:"wizardId"`
	Owner        string       `json:"owner"`
	Files        []OrderFile  `json:"files"`
	PrintOptions PrintOptions `json:"printOptions"`
	Address      Address      `json:"address"`
	TotalCost    int64        `json:"totalCost"`
}

// Confirmation は送信先が払い出した受付情報です。
type Confirmation struct {
	ID        string `json:"id"`
	StatusURL string `json:"statusUrl,omitempty"`
}

// SubmissionStatus は最後に行った送信の結果です。
type SubmissionStatus string

const (
	SubmissionSucceeded SubmissionStatus = "succeeded"
	SubmissionFailed    SubmissionStatus = "failed"
)

// Submission は最後の送信結果を保持します。
type Submission struct {
	Status       SubmissionStatus `json:"status"`
	Confirmation *Confirmation    `json:"confirmation,omitempty"`
	Message      string           `json:"message,omitempty"`
	At           time.Time        `json:"at"`
}
