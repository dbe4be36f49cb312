package wizard

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/printdrop/internal/apperr"
)

// Registry はセッションごとのウィザードをメモリ上に保持します。
// 一定時間操作のないウィザードは次回アクセス時に破棄されます（永続化はしません）。
type Registry struct {
	mu      sync.Mutex
	wizards map[string]*Wizard
	opts    Options
	idle    time.Duration
	now     func() time.Time
	newID   func() string
}

// NewRegistry は Registry を作成します。idle が 0 以下の場合は期限切れを判定しません。
func NewRegistry(opts Options, idle time.Duration) *Registry {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		wizards: make(map[string]*Wizard),
		opts:    opts,
		idle:    idle,
		now:     now,
		newID:   uuid.NewString,
	}
}

// Create は owner のウィザードを新しく作成して登録します。
func (r *Registry) Create(owner string) *Wizard {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()
	opts := r.opts
	opts.Owner = owner
	w := New(r.newID(), opts)
	r.wizards[w.ID()] = w
	return w
}

// Get は id のウィザードを返します。存在しない、または期限切れの場合は WIZARD_NOT_FOUND です。
func (r *Registry) Get(id string) (*Wizard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.wizards[id]
	if !ok {
		return nil, apperr.New(apperr.CodeWizardNotFound, "No order is in progress. Start a new order.", nil)
	}
	if r.expired(w) {
		w.Close()
		delete(r.wizards, id)
		return nil, apperr.New(apperr.CodeWizardNotFound, "The order form expired. Start a new order.", nil)
	}
	return w, nil
}

// Discard は id のウィザードを閉じて登録を解除します。
func (r *Registry) Discard(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.wizards[id]
	if !ok {
		return false
	}
	w.Close()
	delete(r.wizards, id)
	return true
}

// Sweep は期限切れのウィザードを破棄し、破棄した数を返します。
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked()
}

// Len は登録中のウィザード数です。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wizards)
}

func (r *Registry) sweepLocked() int {
	removed := 0
	for id, w := range r.wizards {
		if r.expired(w) {
			w.Close()
			delete(r.wizards, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) expired(w *Wizard) bool {
	if r.idle <= 0 {
		return false
	}
	return r.now().Sub(w.idleSince()) > r.idle
}
