// Package apperr はアプリケーション全体で共有するエラー型とHTTPステータスへの対応付けを提供します。
package apperr

import (
	"context"
	"errors"
	"net/http"
)

// エラーコード一覧。クライアントはこのコードで表示内容を切り替えます。
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeUnsupportedFile    = "UNSUPPORTED_FILE"
	CodeInvalidPDF         = "INVALID_PDF"
	CodeLimitExceeded      = "LIMIT_EXCEEDED"
	CodeDuplicateFile      = "DUPLICATE_FILE"
	CodeStaleInspection    = "STALE_INSPECTION"
	CodeWizardNotFound     = "WIZARD_NOT_FOUND"
	CodeWizardClosed       = "WIZARD_CLOSED"
	CodeNotTerminalStep    = "NOT_TERMINAL_STEP"
	CodeFileNotFound       = "FILE_NOT_FOUND"
	CodeUnknownField       = "UNKNOWN_FIELD"
	CodeSubmitInProgress   = "SUBMIT_IN_PROGRESS"
	CodeAlreadySubmitted   = "ALREADY_SUBMITTED"
	CodeSubmissionFailed   = "SUBMISSION_FAILED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountExists      = "ACCOUNT_EXISTS"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error はコードとユーザー向けメッセージを持つエラーです。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New はコードとメッセージから Error を作成します。cause は nil でも構いません。
func New(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// CodeOf は err に含まれる Error のコードを返します。該当しない場合は INTERNAL_ERROR です。
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus は err に対応するHTTPステータスを返します。
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, context.Canceled) {
		return http.StatusRequestTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeLimitExceeded:
		return http.StatusRequestEntityTooLarge
	case CodeUnsupportedFile:
		return http.StatusUnsupportedMediaType
	case CodeValidationFailed, CodeInvalidPDF:
		return http.StatusUnprocessableEntity
	case CodeDuplicateFile, CodeStaleInspection, CodeNotTerminalStep, CodeAccountExists, CodeWizardClosed,
		CodeSubmitInProgress, CodeAlreadySubmitted:
		return http.StatusConflict
	case CodeWizardNotFound, CodeFileNotFound:
		return http.StatusNotFound
	case CodeUnauthorized, CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeSubmissionFailed:
		return http.StatusBadGateway
	case CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
