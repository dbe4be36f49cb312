package auth

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/printdrop/internal/config"
)

const (
	SessionCookieName    = "pd_session"
	sessionKeyEmail      = "auth_email"
	sessionKeyName       = "auth_name"
	sessionKeyIssuedAt   = "issued_at"
	sessionKeyLastActive = "last_activity"
	sessionKeyCSRF       = "csrf_token"

	csrfHeader = "X-CSRF-Token"
)

const (
	codeSessionExpired = "SESSION_EXPIRED"
	codeSessionIdle    = "SESSION_IDLE_TIMEOUT"
)

var (
	loginWindow      = 15 * time.Minute
	lockDuration     = 10 * time.Minute
	maxLoginAttempts = 5
)

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	accounts *Accounts
	lifetime time.Duration
	idle     time.Duration
	logger   *log.Logger
	now      func() time.Time

	lock     sync.Mutex
	attempts map[string]*attemptState

	signOutHooks []func(*gin.Context)
}

// NewManager は認証マネージャーを作成します。
func NewManager(cfg *config.Config, accounts *Accounts, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	lifetime := 12 * time.Hour
	idle := 30 * time.Minute
	if cfg != nil {
		if cfg.SessionLifetimeMinutes > 0 {
			lifetime = time.Duration(cfg.SessionLifetimeMinutes) * time.Minute
		}
		if cfg.SessionIdleMinutes > 0 {
			idle = time.Duration(cfg.SessionIdleMinutes) * time.Minute
		}
	}
	return &Manager{
		accounts: accounts,
		lifetime: lifetime,
		idle:     idle,
		logger:   logger,
		now:      time.Now,
		attempts: make(map[string]*attemptState),
	}
}

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func (m *Manager) SessionMaxAgeSeconds() int {
	return int(m.lifetime.Seconds())
}

// OnSignOut はサインアウトまたは期限切れでセッションを破棄する直前に呼ばれる処理を登録します。
func (m *Manager) OnSignOut(fn func(*gin.Context)) {
	m.signOutHooks = append(m.signOutHooks, fn)
}

// resolve はセッションから Context を組み立てます。期限切れの場合は理由のコードを返します。
func (m *Manager) resolve(session sessions.Session) (Context, string) {
	email, ok := session.Get(sessionKeyEmail).(string)
	if !ok || email == "" {
		return Context{}, ""
	}

	now := m.now()
	issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
	lastActive := readUnix(session.Get(sessionKeyLastActive))
	if issuedAt.IsZero() || now.Sub(issuedAt) > m.lifetime {
		return Context{}, codeSessionExpired
	}
	if lastActive.IsZero() || now.Sub(lastActive) > m.idle {
		return Context{}, codeSessionIdle
	}

	name, _ := session.Get(sessionKeyName).(string)
	return Context{
		SignedIn: true,
		Email:    email,
		Name:     name,
		IssuedAt: issuedAt,
	}, ""
}

// startSession はサインイン状態をセッションに保存し、新しい CSRF トークンを返します。
func (m *Manager) startSession(c *gin.Context, account *Account) (Context, string, error) {
	token, err := generateToken()
	if err != nil {
		return Context{}, "", err
	}

	session := sessions.Default(c)
	// 別のアカウントのセッションが残っていれば、その注文フォームごと破棄してから切り替える
	if prev, ok := session.Get(sessionKeyEmail).(string); ok && prev != "" && !strings.EqualFold(prev, account.Email) {
		for _, hook := range m.signOutHooks {
			hook(c)
		}
		session.Clear()
	}
	now := m.now()
	session.Set(sessionKeyEmail, account.Email)
	session.Set(sessionKeyName, account.Name())
	session.Set(sessionKeyIssuedAt, now.Unix())
	session.Set(sessionKeyLastActive, now.Unix())
	session.Set(sessionKeyCSRF, token)
	if err := session.Save(); err != nil {
		return Context{}, "", err
	}

	authCtx := Context{
		SignedIn: true,
		Email:    account.Email,
		Name:     account.Name(),
		IssuedAt: time.Unix(now.Unix(), 0),
	}
	c.Set(ginKeyContext, authCtx)
	return authCtx, token, nil
}

// endSession は登録済みの処理を呼んでからセッションを空にします。
func (m *Manager) endSession(c *gin.Context) error {
	for _, hook := range m.signOutHooks {
		hook(c)
	}
	session := sessions.Default(c)
	session.Clear()
	c.Set(ginKeyContext, Context{})
	return session.Save()
}

func (m *Manager) checkLock(ip string) time.Duration {
	m.lock.Lock()
	defer m.lock.Unlock()

	state, ok := m.attempts[ip]
	if !ok {
		return 0
	}
	now := m.now()
	if now.After(state.lockedUntil) {
		return 0
	}
	return state.lockedUntil.Sub(now)
}

func (m *Manager) recordFailure(ip string) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	state, ok := m.attempts[ip]
	if !ok || now.Sub(state.firstAttempt) > loginWindow {
		state = &attemptState{firstAttempt: now}
		m.attempts[ip] = state
	}

	state.count++
	if state.count >= maxLoginAttempts {
		state.lockedUntil = now.Add(lockDuration)
		state.count = maxLoginAttempts
	}

	remaining := maxLoginAttempts - state.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (m *Manager) resetAttempts(ip string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.attempts, ip)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func readUnix(v any) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}
