package auth

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/printdrop/internal/apperr"
)

// Account は登録済みのアカウントです。パスワードはハッシュのみ保持します。
type Account struct {
	FirstName string
	LastName  string
	Email     string
	CreatedAt time.Time

	passwordHash []byte
}

// Name は表示用の氏名です。
func (a *Account) Name() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Accounts はアカウントをメモリ上に保持します。プロセスを再起動すると失われます。
type Accounts struct {
	mu      sync.RWMutex
	byEmail map[string]*Account
	cost    int

	// 未登録メールアドレスでも照合時間を揃えるためのハッシュ
	dummyHash []byte
}

// NewAccounts は Accounts を作成します。cost が 0 以下の場合は bcrypt.DefaultCost を使います。
func NewAccounts(cost int) *Accounts {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("printdrop-placeholder"), cost)
	return &Accounts{
		byEmail:   make(map[string]*Account),
		cost:      cost,
		dummyHash: dummy,
	}
}

// Register は検証済みの入力からアカウントを作成します。同じメールアドレスは登録できません。
func (a *Accounts) Register(req SignUpRequest) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.cost)
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidInput, "The password cannot be used.", err)
	}

	key := emailKey(req.Email)
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.byEmail[key]; exists {
		return nil, apperr.New(apperr.CodeAccountExists, "An account with this email already exists.", nil)
	}
	account := &Account{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		CreatedAt:    time.Now().UTC(),
		passwordHash: hash,
	}
	a.byEmail[key] = account
	return account, nil
}

// Authenticate はメールアドレスとパスワードを照合します。
func (a *Accounts) Authenticate(email, password string) (*Account, error) {
	a.mu.RLock()
	account, ok := a.byEmail[emailKey(email)]
	a.mu.RUnlock()

	hash := a.dummyHash
	if ok {
		hash = account.passwordHash
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !ok {
		return nil, apperr.New(apperr.CodeInvalidCredentials, "The email or password is incorrect.", nil)
	}
	return account, nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
