// Package storage は印刷ジョブの作業領域をローカルファイルシステム上に管理します。
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrInvalidJobID はパスとして使えないジョブIDです。
var ErrInvalidJobID = errors.New("storage: invalid job id")

// Local はジョブごとのディレクトリ（<root>/<jobID>/in|out）を管理します。
// 処理が終わったジョブは retention 経過後に自動削除されます。
type Local struct {
	root      string
	retention time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// Workspace は1ジョブ分の作業ディレクトリです。
type Workspace struct {
	JobID  string
	Dir    string
	InDir  string
	OutDir string
}

// NewLocal は root 配下を使う Local を作成します。retention が 0 以下の場合は ScheduleRemoval で即時削除します。
func NewLocal(root string, retention time.Duration) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage: root directory is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &Local{
		root:      root,
		retention: retention,
		timers:    make(map[string]*time.Timer),
	}, nil
}

// Root は作業領域のルートディレクトリです。
func (l *Local) Root() string {
	return l.root
}

// Create は jobID の作業ディレクトリを新しく作成します。既に存在する場合はエラーです。
func (l *Local) Create(jobID string) (*Workspace, error) {
	ws, err := l.workspace(jobID)
	if err != nil {
		return nil, err
	}
	if err := os.Mkdir(ws.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create workspace %s: %w", jobID, err)
	}
	for _, dir := range []string{ws.InDir, ws.OutDir} {
		if err := os.Mkdir(dir, 0o750); err != nil {
			_ = os.RemoveAll(ws.Dir)
			return nil, fmt.Errorf("storage: create workspace %s: %w", jobID, err)
		}
	}
	return ws, nil
}

// Open は既存の作業ディレクトリを返します。存在しない場合は fs.ErrNotExist を包んだエラーです。
func (l *Local) Open(jobID string) (*Workspace, error) {
	ws, err := l.workspace(jobID)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(ws.Dir)
	if err != nil {
		return nil, fmt.Errorf("storage: open workspace %s: %w", jobID, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: %s is not a directory", ws.Dir)
	}
	return ws, nil
}

// Remove は作業ディレクトリを削除します。予約済みの自動削除は取り消されます。
func (l *Local) Remove(jobID string) error {
	ws, err := l.workspace(jobID)
	if err != nil {
		return err
	}
	l.mu.Lock()
	if timer, ok := l.timers[jobID]; ok {
		timer.Stop()
		delete(l.timers, jobID)
	}
	l.mu.Unlock()
	return os.RemoveAll(ws.Dir)
}

// ScheduleRemoval は retention 経過後に作業ディレクトリを削除します。再予約すると期限が延長されます。
func (l *Local) ScheduleRemoval(jobID string) error {
	if _, err := l.workspace(jobID); err != nil {
		return err
	}
	if l.retention <= 0 {
		return l.Remove(jobID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if timer, ok := l.timers[jobID]; ok {
		timer.Stop()
	}
	l.timers[jobID] = time.AfterFunc(l.retention, func() {
		_ = l.Remove(jobID)
	})
	return nil
}

// Pending は自動削除待ちのジョブ数です。
func (l *Local) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// Close は予約済みの自動削除をすべて止めます。ディレクトリは残ります。
func (l *Local) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, timer := range l.timers {
		timer.Stop()
		delete(l.timers, id)
	}
}

func (l *Local) workspace(jobID string) (*Workspace, error) {
	if !validJobID(jobID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	dir := filepath.Join(l.root, jobID)
	return &Workspace{
		JobID:  jobID,
		Dir:    dir,
		InDir:  filepath.Join(dir, "in"),
		OutDir: filepath.Join(dir, "out"),
	}, nil
}

// SaveInput は入力ファイルを in/ に書き込み、保存先のパスを返します。
func (w *Workspace) SaveInput(storedName string, data []byte) (string, error) {
	if storedName != SanitizeName(storedName) {
		return "", fmt.Errorf("storage: unsafe file name %q", storedName)
	}
	path := w.InputPath(storedName)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("storage: save %s: %w", storedName, err)
	}
	return path, nil
}

// CopyInput は src の内容を in/ に複製し、保存先のパスを返します。
func (w *Workspace) CopyInput(storedName, src string) (string, error) {
	if storedName != SanitizeName(storedName) {
		return "", fmt.Errorf("storage: unsafe file name %q", storedName)
	}
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("storage: open %s: %w", src, err)
	}
	defer in.Close()

	path := w.InputPath(storedName)
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return "", fmt.Errorf("storage: create %s: %w", storedName, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("storage: copy %s: %w", storedName, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("storage: copy %s: %w", storedName, err)
	}
	return path, nil
}

// InputPath は in/ 配下のパスです。
func (w *Workspace) InputPath(storedName string) string {
	return filepath.Join(w.InDir, storedName)
}

// OutputPath は out/ 配下のパスです。
func (w *Workspace) OutputPath(name string) string {
	return filepath.Join(w.OutDir, name)
}

// SanitizeName はファイル名をディレクトリ成分を含まない安全な名前に変換します。
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

func validJobID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && SanitizeName(id) == id
}
