package wizard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/yourusername/printdrop/internal/apperr"
)

var (
	errClosed     = apperr.New(apperr.CodeWizardClosed, "This order form has been closed. Start a new order.", nil)
	errSubmitting = apperr.New(apperr.CodeSubmitInProgress, "The order is being submitted and can no longer be changed.", nil)
	errSubmitted  = apperr.New(apperr.CodeAlreadySubmitted, "This order has already been submitted.", nil)
)

// Rejection は検査で受け付けられなかったファイルの通知です。
type Rejection struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Options は Wizard の依存関係と制限値です。
type Options struct {
	Inspector PageCounter
	Gateway   Gateway
	Stash     FileStash
	Owner     string // フォームを作成したアカウントのメールアドレス
	MaxFiles  int    // 0 以下は無制限
	Now       func() time.Time
}

type fileEntry struct {
	file UploadedFile
	path string
}

// Wizard は1回分の注文フォームの状態を保持します。
// 状態を変更できるのはこの型の遷移メソッドだけで、各メソッドは呼び出し側から見て不可分に完了します。
// ページ数の検査と送信は外部呼び出しのためロックを外して実行し、完了時に状態が変わっていないか確認します。
type Wizard struct {
	mu sync.Mutex

	id        string
	owner     string
	inspector PageCounter
	gateway   Gateway
	stash     FileStash
	maxFiles  int
	now       func() time.Time

	current    Step
	completed  map[Step]bool
	files      []fileEntry
	totalCost  int64
	options    PrintOptions
	address    Address
	errors     map[Step]FieldErrors
	rejections []Rejection

	// 検査中のファイル名 → チケット。削除や再追加で古い完了通知を捨てるために使う
	pending map[string]uint64
	ticket  uint64

	submitting bool
	submission *Submission
	closed     bool
	lastActive time.Time
}

// New は新しい Wizard を作成します。状態は毎回まっさらで、保存・再開はできません。
func New(id string, opts Options) *Wizard {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Wizard{
		id:         id,
		owner:      opts.Owner,
		inspector:  opts.Inspector,
		gateway:    opts.Gateway,
		stash:      opts.Stash,
		maxFiles:   opts.MaxFiles,
		now:        now,
		current:    StepUpload,
		completed:  make(map[Step]bool),
		errors:     make(map[Step]FieldErrors),
		pending:    make(map[string]uint64),
		lastActive: now(),
	}
}

// ID はウィザードの識別子を返します。
func (w *Wizard) ID() string {
	return w.id
}

// Owner はフォームを作成したアカウントです。
func (w *Wizard) Owner() string {
	return w.owner
}

// GoNext は現在のステップを検証し、問題がなければ完了にして次へ進みます。
// エラーがある場合は現在のステップのエラーに統合して返し、ステップは変わりません。
// アップロードステップの完了はファイル追加時に付与されるため、ここでは付与しません。
// 終端ステップでは検証のみ行い、移動も完了の付与もしません。
func (w *Wizard) GoNext() (FieldErrors, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return nil, err
	}
	w.touch()

	if errs := Validate(w.current, w.form()); len(errs) > 0 {
		w.mergeErrors(w.current, errs)
		return errs, nil
	}

	delete(w.errors, w.current)
	// 終端ステップの完了は Submit の成功で付与する
	if w.current == LastStep {
		return nil, nil
	}
	if w.current != StepUpload {
		w.completed[w.current] = true
	}
	w.current++
	return nil, nil
}

// GoBack は1つ前のステップへ戻ります。検証は行わず、最初のステップより前には戻りません。
func (w *Wizard) GoBack() (Step, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return w.current, err
	}
	w.touch()

	if w.current > StepUpload {
		w.current--
	}
	return w.current, nil
}

// JumpTo は step へ移動します。step が最初のステップか、直前のステップが完了済みの場合のみ移動し、
// それ以外は何もせず false を返します。
func (w *Wizard) JumpTo(step Step) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return false, err
	}
	w.touch()

	if !step.Valid() {
		return false, nil
	}
	if step != StepUpload && !w.completed[step-1] {
		return false, nil
	}
	w.current = step
	return true, nil
}

// AddFile は data のページ数を検査し、成功したらファイル一覧の末尾に追加して料金を加算します。
// 検査に失敗した場合はファイル単位の通知を記録してエラーを返します。ファイル一覧と料金は変わりません。
func (w *Wizard) AddFile(ctx context.Context, name string, data []byte) (*UploadedFile, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ticket, err := w.beginInspection(name)
	if err != nil {
		return nil, err
	}

	pages, inspectErr := w.inspector.CountPages(ctx, name, data)
	if inspectErr == nil && pages <= 0 {
		inspectErr = apperr.New(apperr.CodeInvalidPDF, fmt.Sprintf("%s has no pages.", name), nil)
	}

	return w.finishInspection(name, ticket, data, pages, inspectErr)
}

func (w *Wizard) beginInspection(name string) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return 0, err
	}
	w.touch()

	if strings.TrimSpace(name) == "" {
		return 0, apperr.New(apperr.CodeInvalidInput, "The file has no name.", nil)
	}
	if w.inspector == nil || w.stash == nil {
		return 0, apperr.New(apperr.CodeInternal, "File uploads are not configured.", nil)
	}
	if _, inFlight := w.pending[name]; inFlight || w.indexOf(name) >= 0 {
		return 0, apperr.New(apperr.CodeDuplicateFile, fmt.Sprintf("%s has already been added.", name), nil)
	}
	if w.maxFiles > 0 && len(w.files)+len(w.pending) >= w.maxFiles {
		return 0, apperr.New(apperr.CodeLimitExceeded, fmt.Sprintf("An order can contain at most %d files.", w.maxFiles), nil)
	}

	w.ticket++
	w.pending[name] = w.ticket
	return w.ticket, nil
}

func (w *Wizard) finishInspection(name string, ticket uint64, data []byte, pages int, inspectErr error) (*UploadedFile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 検査中にフォームが閉じられた、またはファイルが取り消された場合は結果を捨てる
	if w.closed {
		return nil, errClosed
	}
	if w.pending[name] != ticket {
		return nil, apperr.New(apperr.CodeStaleInspection, fmt.Sprintf("%s was removed before its check finished.", name), nil)
	}
	delete(w.pending, name)

	if inspectErr != nil {
		w.reject(name, inspectErr)
		return nil, inspectErr
	}

	path, err := w.stash.Stash(w.id, ticket, name, data)
	if err != nil {
		stashErr := apperr.New(apperr.CodeInternal, fmt.Sprintf("%s could not be stored. Please try again.", name), err)
		w.reject(name, stashErr)
		return nil, stashErr
	}

	file := UploadedFile{Name: name, Size: int64(len(data)), Pages: pages}
	w.files = append(w.files, fileEntry{file: file, path: path})
	w.totalCost += LineCost(pages)
	w.completed[StepUpload] = true
	w.dismiss(name)
	w.clearError(StepUpload, FieldFiles)
	return &file, nil
}

// RemoveFile は name のファイルを取り除き、追加時に加算した料金をそのまま差し引きます。
// 検査中のファイルであれば検査結果を破棄させ、通知だけが残っている場合は通知を消します。
// 現在のステップや他のステップの完了状態は変わりません。
func (w *Wizard) RemoveFile(name string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return false, err
	}
	w.touch()

	removed := false
	if _, inFlight := w.pending[name]; inFlight {
		delete(w.pending, name)
		removed = true
	}
	if idx := w.indexOf(name); idx >= 0 {
		w.totalCost -= LineCost(w.files[idx].file.Pages)
		// 消し損ねたファイルは Close 時の Release で消える
		_ = w.stash.Drop(w.files[idx].path)
		w.files = slices.Delete(w.files, idx, idx+1)
		if len(w.files) == 0 {
			// ファイルが無くなったらアップロードの前提が崩れる
			delete(w.completed, StepUpload)
		}
		removed = true
	}
	if w.dismiss(name) {
		removed = true
	}
	return removed, nil
}

// SetField は step の入力レコードのフィールドを更新し、そのフィールドのエラーだけを消します。
// 再検証は GoNext / Submit のときに行います。
func (w *Wizard) SetField(step Step, name, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	w.touch()

	r := w.recordFor(step)
	if r == nil {
		return apperr.New(apperr.CodeUnknownField, fmt.Sprintf("The %s step has no editable fields.", step), nil)
	}
	field, ok := r.lookup(name)
	if !ok {
		return apperr.New(apperr.CodeUnknownField, fmt.Sprintf("%s is not a field of the %s step.", name, step), nil)
	}
	*field = value
	w.clearError(step, name)
	return nil
}

// Submit は終端ステップでのみ受け付け、全ステップを再検証してから Gateway に注文を渡します。
// 終端ステップ以外、検証エラーあり、検査中のファイルあり、送信済みの場合は Gateway を呼びません。
// 送信中と送信成功後のフォームは変更できません。
// Gateway の失敗時も入力内容は保持され、再送信できます。
func (w *Wizard) Submit(ctx context.Context) (*Confirmation, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	order, err := w.beginSubmit()
	if err != nil {
		return nil, err
	}

	confirmation, submitErr := w.gateway.SubmitOrder(ctx, order)
	if submitErr == nil && confirmation == nil {
		submitErr = errors.New("gateway returned no confirmation")
	}
	return w.finishSubmit(confirmation, submitErr)
}

func (w *Wizard) beginSubmit() (Order, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return Order{}, errClosed
	}
	w.touch()

	if w.current != LastStep {
		return Order{}, apperr.New(apperr.CodeNotTerminalStep, "The order can only be submitted from the payment step.", nil)
	}
	if w.gateway == nil {
		return Order{}, apperr.New(apperr.CodeInternal, "No submission gateway is configured.", nil)
	}
	if w.submitting {
		return Order{}, apperr.New(apperr.CodeSubmitInProgress, "The order is already being submitted.", nil)
	}
	if w.submitted() {
		return Order{}, errSubmitted
	}
	if len(w.pending) > 0 {
		return Order{}, apperr.New(apperr.CodeValidationFailed, "Wait until every file has been checked.", nil)
	}

	if failed := ValidateAll(w.form()); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, step := range Steps() {
			if errs, ok := failed[step]; ok {
				w.mergeErrors(step, errs)
				names = append(names, step.String())
			}
		}
		return Order{}, apperr.New(apperr.CodeValidationFailed,
			"Some steps are incomplete: "+strings.Join(names, ", ")+".", nil)
	}

	files := make([]OrderFile, len(w.files))
	for i, entry := range w.files {
		files[i] = OrderFile{UploadedFile: entry.file, Path: entry.path}
	}
	w.submitting = true
	return Order{
		WizardID:     w.id,
		Owner:        w.owner,
		Files:        files,
		PrintOptions: w.options,
		Address:      w.address,
		TotalCost:    w.totalCost,
	}, nil
}

func (w *Wizard) finishSubmit(confirmation *Confirmation, submitErr error) (*Confirmation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false

	if submitErr != nil {
		w.submission = &Submission{
			Status:  SubmissionFailed,
			Message: "The order could not be submitted. Please try again.",
			At:      w.now(),
		}
		return nil, apperr.New(apperr.CodeSubmissionFailed, w.submission.Message, submitErr)
	}

	w.submission = &Submission{
		Status:       SubmissionSucceeded,
		Confirmation: confirmation,
		At:           w.now(),
	}
	w.completed[LastStep] = true
	// 送信先が複製を持つので手元のファイルは不要
	if w.stash != nil {
		_ = w.stash.Release(w.id)
	}
	return confirmation, nil
}

// Close はウィザードを破棄済みにします。以降の操作と、実行中の検査の完了通知はすべて拒否されます。
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	clear(w.pending)
	if w.stash != nil {
		_ = w.stash.Release(w.id)
	}
}

// RecordRejection は検査まで進めなかったファイルの通知を記録し、その内容を返します。
// 変更できない状態のフォームには記録しません。
func (w *Wizard) RecordRejection(name string, err error) Rejection {
	w.mu.Lock()
	defer w.mu.Unlock()
	rejection := rejectionFor(name, err)
	if w.editable() != nil {
		return rejection
	}
	w.touch()
	w.dismiss(name)
	w.rejections = append(w.rejections, rejection)
	return rejection
}

// TotalCost は現在の合計料金です。
func (w *Wizard) TotalCost() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalCost
}

// CurrentStep は現在のステップです。
func (w *Wizard) CurrentStep() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Completed は step が完了済みかどうかを返します。
func (w *Wizard) Completed(step Step) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.completed[step]
}

// Files は追加順のファイル一覧のコピーを返します。
func (w *Wizard) Files() []UploadedFile {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.uploadedFiles()
}

// Errors は step のフィールドエラーのコピーを返します。
func (w *Wizard) Errors(step Step) FieldErrors {
	w.mu.Lock()
	defer w.mu.Unlock()
	return copyErrors(w.errors[step])
}

// Summary は支払いステップ用の概要を返します。
func (w *Wizard) Summary(tag language.Tag) Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return NewSummary(w.uploadedFiles(), w.options, w.address, tag)
}

// State は描画側に渡すスナップショットです。
type State struct {
	ID           string                 `json:"id"`
	CurrentStep  Step                   `json:"currentStep"`
	StepName     string                 `json:"stepName"`
	Completed    []Step                 `json:"completed"`
	Files        []UploadedFile         `json:"files"`
	Pending      []string               `json:"pending,omitempty"`
	PrintOptions PrintOptions           `json:"printOptions"`
	Address      Address                `json:"address"`
	TotalCost    int64                  `json:"totalCost"`
	Errors       map[string]FieldErrors `json:"errors,omitempty"`
	Rejections   []Rejection            `json:"rejections,omitempty"`
	Submission   *Submission            `json:"submission,omitempty"`
	Closed       bool                   `json:"closed,omitempty"`
}

// State は現在の状態のスナップショットを返します。
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	completed := make([]Step, 0, len(w.completed))
	for step, done := range w.completed {
		if done {
			completed = append(completed, step)
		}
	}
	slices.Sort(completed)

	pending := make([]string, 0, len(w.pending))
	for name := range w.pending {
		pending = append(pending, name)
	}
	sort.Strings(pending)

	var errs map[string]FieldErrors
	for step, fieldErrs := range w.errors {
		if len(fieldErrs) == 0 {
			continue
		}
		if errs == nil {
			errs = make(map[string]FieldErrors)
		}
		errs[step.String()] = copyErrors(fieldErrs)
	}

	var submission *Submission
	if w.submission != nil {
		s := *w.submission
		submission = &s
	}

	return State{
		ID:           w.id,
		CurrentStep:  w.current,
		StepName:     w.current.String(),
		Completed:    completed,
		Files:        w.uploadedFiles(),
		Pending:      pending,
		PrintOptions: w.options,
		Address:      w.address,
		TotalCost:    w.totalCost,
		Errors:       errs,
		Rejections:   slices.Clone(w.rejections),
		Submission:   submission,
		Closed:       w.closed,
	}
}

func (w *Wizard) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

func (w *Wizard) touch() {
	w.lastActive = w.now()
}

// editable は入力を変更できるかを返します。送信中と送信済みのフォームは変更できません。
func (w *Wizard) editable() error {
	switch {
	case w.closed:
		return errClosed
	case w.submitting:
		return errSubmitting
	case w.submitted():
		return errSubmitted
	}
	return nil
}

func (w *Wizard) submitted() bool {
	return w.submission != nil && w.submission.Status == SubmissionSucceeded
}

func (w *Wizard) form() Form {
	return Form{
		Files:        w.uploadedFiles(),
		PrintOptions: w.options,
		Address:      w.address,
	}
}

func (w *Wizard) recordFor(step Step) record {
	switch step {
	case StepPrintOptions:
		return &w.options
	case StepAddress:
		return &w.address
	}
	return nil
}

func (w *Wizard) uploadedFiles() []UploadedFile {
	files := make([]UploadedFile, len(w.files))
	for i, entry := range w.files {
		files[i] = entry.file
	}
	return files
}

func (w *Wizard) indexOf(name string) int {
	for i, entry := range w.files {
		if entry.file.Name == name {
			return i
		}
	}
	return -1
}

func (w *Wizard) mergeErrors(step Step, errs FieldErrors) {
	target, ok := w.errors[step]
	if !ok {
		target = make(FieldErrors, len(errs))
		w.errors[step] = target
	}
	for name, msg := range errs {
		target[name] = msg
	}
}

func (w *Wizard) clearError(step Step, name string) {
	errs, ok := w.errors[step]
	if !ok {
		return
	}
	delete(errs, name)
	if len(errs) == 0 {
		delete(w.errors, step)
	}
}

func (w *Wizard) reject(name string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	w.dismiss(name)
	w.rejections = append(w.rejections, rejectionFor(name, err))
}

func rejectionFor(name string, err error) Rejection {
	rejection := Rejection{Name: name, Code: apperr.CodeOf(err), Message: "The file could not be read."}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		rejection.Message = appErr.Message
	}
	return rejection
}

func (w *Wizard) dismiss(name string) bool {
	before := len(w.rejections)
	w.rejections = slices.DeleteFunc(w.rejections, func(r Rejection) bool {
		return r.Name == name
	})
	return len(w.rejections) != before
}

func copyErrors(errs FieldErrors) FieldErrors {
	if errs == nil {
		return nil
	}
	out := make(FieldErrors, len(errs))
	for name, msg := range errs {
		out[name] = msg
	}
	return out
}
