package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/yourusername/printdrop/internal/apperr"
	"github.com/yourusername/printdrop/internal/auth"
)

// SessionKeyWizard はセッションに保存するウィザードIDのキーです。
const SessionKeyWizard = "wizard_id"

// HandlerOptions は Handler の設定です。
type HandlerOptions struct {
	Locale      language.Tag
	MaxFileSize int64
	Logger      *log.Logger
}

// Handler は /api/order 配下のハンドラーをまとめた構造体です。
type Handler struct {
	registry    *Registry
	locale      language.Tag
	maxFileSize int64
	logger      *log.Logger
}

// NewHandler は Handler を作成します。
func NewHandler(registry *Registry, opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	locale := opts.Locale
	if locale == language.Und {
		locale = language.English
	}
	return &Handler{
		registry:    registry,
		locale:      locale,
		maxFileSize: opts.MaxFileSize,
		logger:      logger,
	}
}

// Create は POST /api/order のハンドラーです。以前のウィザードは破棄して新しく作り直します。
func (h *Handler) Create(c *gin.Context) {
	session := sessions.Default(c)
	if prev, ok := session.Get(SessionKeyWizard).(string); ok && prev != "" {
		h.registry.Discard(prev)
	}

	w := h.registry.Create(auth.FromGin(c).Email)
	session.Set(SessionKeyWizard, w.ID())
	if err := session.Save(); err != nil {
		h.registry.Discard(w.ID())
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "The session could not be saved.",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"state": w.State()})
}

// State は GET /api/order のハンドラーです。
func (h *Handler) State(c *gin.Context) {
	w, ok := h.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": w.State()})
}

// Discard は DELETE /api/order のハンドラーです。
func (h *Handler) Discard(c *gin.Context) {
	h.DiscardSession(c)
	session := sessions.Default(c)
	session.Delete(SessionKeyWizard)
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "The session could not be saved.",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// DiscardSession はセッションに紐づくウィザードを破棄します。レスポンスは書きません。
func (h *Handler) DiscardSession(c *gin.Context) {
	if id, ok := sessions.Default(c).Get(SessionKeyWizard).(string); ok && id != "" {
		h.registry.Discard(id)
	}
}

// Next は POST /api/order/next のハンドラーです。
func (h *Handler) Next(c *gin.Context) {
	w, ok := h.current(c)
	if !ok {
		return
	}

	fieldErrs, err := w.GoNext()
	if err != nil {
		respondWithError(c, err, nil)
		return
	}
	if len(fieldErrs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":        apperr.CodeValidationFailed,
			"message":     "Fill in the required fields.",
			"fieldErrors": fieldErrs,
			"state":       w.State(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": w.State()})
}

// Back は POST /api/order/back のハンドラーです。
func (h *Handler) Back(c *gin.Context) {
	w, ok := h.current(c)
	if !ok {
		return
	}
	if _, err := w.GoBack(); err != nil {
		respondWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": w.State()})
}

// Jump は POST /api/order/jump/:step のハンドラーです。移動できない場合も 200 で moved=false を返します。
func (h *Handler) Jump(c *gin.Context) {
	w, ok := h.current(c)
	if !ok {
		return
	}
	step, err := ParseStep(c.Param("step"))
	if err != nil {
		respondWithError(c, apperr.New(apperr.CodeInvalidInput, err.Error(), nil), nil)
		return
	}

	moved, err := w.JumpTo(step)
	if err != nil {
		respondWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": moved, "state": w.State()})
}

// UploadFiles は POST /api/order/files のハンドラーです。
// ファイルごとに検査結果を返し、受け付けられなかったファイルは rejected に入ります。
func (h *Handler) UploadFiles(c *gin.Context) {
	w, ok := h.current(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respondWithError(c, apperr.New(apperr.CodeInvalidInput, "Send the files as multipart/form-data.", err), nil)
		return
	}
	defer form.RemoveAll()

	headers := collectFiles(form)
	if len(headers) == 0 {
		respondWithError(c, apperr.New(apperr.CodeInvalidInput, "No files were uploaded.", nil), nil)
		return
	}

	accepted := make([]UploadedFile, 0, len(headers))
	rejected := make([]Rejection, 0)
	for _, fh := range headers {
		data, err := h.readUpload(fh)
		if err != nil {
			readErr := apperr.New(apperr.CodeInvalidInput, "The file could not be read.", err)
			rejected = append(rejected, w.RecordRejection(fh.Filename, readErr))
			continue
		}

		file, err := w.AddFile(c.Request.Context(), fh.Filename, data)
		if err != nil {
			switch apperr.CodeOf(err) {
			case apperr.CodeWizardClosed, apperr.CodeSubmitInProgress, apperr.CodeAlreadySubmitted:
				respondWithError(c, err, w)
				return
			}
			rejected = append(rejected, rejectionFor(fh.Filename, err))
			continue
		}
		accepted = append(accepted, *file)
	}

	c.JSON(http.StatusOK, gin.H{
		"accepted": accepted,
		"rejected": rejected,
		"state":    w.State(),
	})
}

// RemoveFile は DELETE /api/order/files/:name のハンドラーです。
func (h *Handler) RemoveFile(c *gin.Context) {
	w, ok := h.current(c)
	if !ok {
		return
	}
	name := c.Param("name")

	removed, err := w.RemoveFile(name)
	if err != nil {
		respondWithError(c, err, nil)
		return
	}
	if !removed {
		respondWithError(c, apperr.New(apperr.CodeFileNotFound, fmt.Sprintf("%s is not part of this order.", name), nil), w)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": w.State()})
}

type fieldRequest struct {
	Name  string `json:"name" binding:"required"`
	Value string `json:"value"`
}

// SetField は PUT /api/order/fields/:step のハンドラーです。
func (h *Handler) SetField(c *gin.Context) {
	w, ok := h.current(c)
	if !ok {
		return
	}
	step, err := ParseStep(c.Param("step"))
	if err != nil {
		respondWithError(c, apperr.New(apperr.CodeInvalidInput, err.Error(), nil), nil)
		return
	}

	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperr.New(apperr.CodeInvalidInput, `Send {"name": ..., "value": ...} as JSON.`, err), nil)
		return
	}

	if err := w.SetField(step, req.Name, req.Value); err != nil {
		respondWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": w.State()})
}

// Summary は GET /api/order/summary のハンドラーです。
func (h *Handler) Summary(c *gin.Context) {
	w, ok := h.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": w.Summary(h.locale)})
}

// Submit は POST /api/order/submit のハンドラーです。失敗時も入力は保持されるため state を返します。
func (h *Handler) Submit(c *gin.Context) {
	w, ok := h.current(c)
	if !ok {
		return
	}

	confirmation, err := w.Submit(c.Request.Context())
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeSubmissionFailed {
			h.logger.Printf("order submission failed wizard=%s: %v", w.ID(), err)
		}
		respondWithError(c, err, w)
		return
	}

	h.logger.Printf("order submitted wizard=%s confirmation=%s", w.ID(), confirmation.ID)
	c.JSON(http.StatusOK, gin.H{
		"confirmation": confirmation,
		"state":        w.State(),
	})
}

func (h *Handler) current(c *gin.Context) (*Wizard, bool) {
	id, _ := sessions.Default(c).Get(SessionKeyWizard).(string)
	if id == "" {
		respondWithError(c, apperr.New(apperr.CodeWizardNotFound, "No order is in progress. Start a new order.", nil), nil)
		return nil, false
	}
	w, err := h.registry.Get(id)
	if err != nil {
		respondWithError(c, err, nil)
		return nil, false
	}
	// 別のアカウントが作ったフォームは見せない
	if w.Owner() != auth.FromGin(c).Email {
		respondWithError(c, apperr.New(apperr.CodeWizardNotFound, "No order is in progress. Start a new order.", nil), nil)
		return nil, false
	}
	return w, true
}

func (h *Handler) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var r io.Reader = file
	if h.maxFileSize > 0 {
		// 上限+1バイトまで読めば Inspector が上限超過を判定できる
		r = io.LimitReader(file, h.maxFileSize+1)
	}
	return io.ReadAll(r)
}

func collectFiles(form *multipart.Form) []*multipart.FileHeader {
	if form == nil {
		return nil
	}
	var headers []*multipart.FileHeader
	for _, key := range []string{"files[]", "files", "file"} {
		headers = append(headers, form.File[key]...)
	}
	return headers
}

func respondWithError(c *gin.Context, err error, w *Wizard) {
	payload := gin.H{
		"code":    apperr.CodeOf(err),
		"message": "An internal server error occurred.",
	}
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		payload["message"] = appErr.Message
	case errors.Is(err, context.Canceled):
		payload["code"] = "REQUEST_CANCELED"
		payload["message"] = "The request was canceled."
	}
	if w != nil {
		payload["state"] = w.State()
	}
	c.JSON(apperr.HTTPStatus(err), payload)
}
