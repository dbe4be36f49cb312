package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Uploads は入力途中の注文が受け付けたファイルを <root>/<wizardID>/in に置きます。
// 注文フォームはメモリ上にしか無いため、起動時に前回の残りを消します。
type Uploads struct {
	local *Local
}

// NewUploads は root を空にしてから Uploads を作成します。
func NewUploads(root string) (*Uploads, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage: upload directory is required")
	}
	if err := os.RemoveAll(root); err != nil {
		return nil, fmt.Errorf("storage: reset uploads: %w", err)
	}
	local, err := NewLocal(root, 0)
	if err != nil {
		return nil, err
	}
	return &Uploads{local: local}, nil
}

// Stash は data を保存してパスを返します。seq はフォーム内で一意な番号で、名前の衝突を防ぎます。
func (u *Uploads) Stash(wizardID string, seq uint64, name string, data []byte) (string, error) {
	ws, err := u.local.Open(wizardID)
	if errors.Is(err, fs.ErrNotExist) {
		ws, err = u.local.Create(wizardID)
	}
	if err != nil {
		return "", err
	}
	return ws.SaveInput(fmt.Sprintf("%04d_%s", seq, SanitizeName(name)), data)
}

// Drop は Stash で保存したファイルを1つ削除します。既に無い場合は何もしません。
func (u *Uploads) Drop(path string) error {
	rel, err := filepath.Rel(u.local.Root(), path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("storage: %s is outside the upload directory", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Release はフォームのファイルをすべて削除します。
func (u *Uploads) Release(wizardID string) error {
	return u.local.Remove(wizardID)
}
