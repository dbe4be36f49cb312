package auth

import (
	"regexp"
	"strings"
	"unicode"
)

// FieldErrors はフィールド名からエラーメッセージへの対応です。
type FieldErrors map[string]string

// SignUpRequest は登録フォームの入力値です。
type SignUpRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// SignInRequest はサインインフォームの入力値です。
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var (
	namePattern  = regexp.MustCompile(`^[A-Za-z]+$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// 登録時に受け付けないトップレベルドメイン
	restrictedSuffixes = []string{".co", ".c", ".org", ".net"}
)

// ValidateSignUp は登録フォームを検証します。フィールドごとに最初の1件だけを返します。
func ValidateSignUp(req SignUpRequest) FieldErrors {
	errs := FieldErrors{}

	switch {
	case req.FirstName == "":
		errs["firstName"] = "First name is required."
	case !namePattern.MatchString(req.FirstName):
		errs["firstName"] = "First name should only contain letters."
	}

	switch {
	case req.LastName == "":
		errs["lastName"] = "Last name is required."
	case !namePattern.MatchString(req.LastName):
		errs["lastName"] = "Last name should only contain letters."
	}

	switch {
	case req.Email == "":
		errs["email"] = "Email is required."
	case !validSignUpEmail(req.Email):
		errs["email"] = "Please enter a valid email address (e.g., ending in .com)."
	}

	switch {
	case req.Password == "":
		errs["password"] = "Password is required."
	case !strongPassword(req.Password):
		errs["password"] = "Password must be at least 8 characters long and include both letters and numbers."
	}

	return errs
}

// ValidateSignIn はサインインフォームを検証します。パスワードは存在のみ確認します。
func ValidateSignIn(req SignInRequest) FieldErrors {
	errs := FieldErrors{}

	switch {
	case req.Email == "":
		errs["email"] = "Email is required."
	case !emailPattern.MatchString(req.Email):
		errs["email"] = "Please enter a valid email address."
	}

	if req.Password == "" {
		errs["password"] = "Password is required."
	}

	return errs
}

func validSignUpEmail(email string) bool {
	if !emailPattern.MatchString(email) {
		return false
	}
	suffix := email[strings.LastIndex(email, "."):]
	for _, restricted := range restrictedSuffixes {
		if suffix == restricted {
			return strings.HasSuffix(email, ".com")
		}
	}
	return true
}

func strongPassword(password string) bool {
	if len([]rune(password)) < 8 {
		return false
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case r <= unicode.MaxASCII && unicode.IsLetter(r):
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return letter && digit
}
