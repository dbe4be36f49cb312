package wizard

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/yourusername/printdrop/internal/apperr"
	"github.com/yourusername/printdrop/internal/pdf"
	"github.com/yourusername/printdrop/internal/pdf/pdftest"
	"github.com/yourusername/printdrop/internal/storage"
)

// testClient はリクエスト間でセッションCookieを引き継ぎます。
type testClient struct {
	t       *testing.T
	router  *gin.Engine
	cookies []*http.Cookie
	uploads string
}

func newTestClient(t *testing.T, gw *stubGateway) *testClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	uploadsDir := filepath.Join(t.TempDir(), "uploads")
	uploads, err := storage.NewUploads(uploadsDir)
	require.NoError(t, err)

	registry := NewRegistry(Options{
		Inspector: pdf.NewInspector(pdf.Limits{MaxFileSize: 1 << 20, MaxPages: 50}),
		Gateway:   gw,
		Stash:     uploads,
		MaxFiles:  5,
	}, time.Hour)
	handler := NewHandler(registry, HandlerOptions{
		Locale:      language.English,
		MaxFileSize: 1 << 20,
		Logger:      log.New(io.Discard, "", 0),
	})

	router := gin.New()
	router.Use(sessions.Sessions("pd_session", cookie.NewStore([]byte("test-secret"))))
	order := router.Group("/api/order")
	order.POST("", handler.Create)
	order.GET("", handler.State)
	order.DELETE("", handler.Discard)
	order.POST("/next", handler.Next)
	order.POST("/back", handler.Back)
	order.POST("/jump/:step", handler.Jump)
	order.POST("/files", handler.UploadFiles)
	order.DELETE("/files/:name", handler.RemoveFile)
	order.PUT("/fields/:step", handler.SetField)
	order.GET("/summary", handler.Summary)
	order.POST("/submit", handler.Submit)

	return &testClient{t: t, router: router, uploads: uploadsDir}
}

func (c *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	if got := rec.Result().Cookies(); len(got) > 0 {
		c.cookies = got
	}
	return rec
}

func (c *testClient) send(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

func (c *testClient) upload(files map[string][]byte) *httptest.ResponseRecorder {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range files {
		part, err := writer.CreateFormFile("files[]", name)
		require.NoError(c.t, err)
		_, err = part.Write(data)
		require.NoError(c.t, err)
	}
	require.NoError(c.t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/order/files", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req)
}

type stateResponse struct {
	Code         string         `json:"code"`
	Message      string         `json:"message"`
	Moved        *bool          `json:"moved"`
	FieldErrors  FieldErrors    `json:"fieldErrors"`
	State        State          `json:"state"`
	Accepted     []UploadedFile `json:"accepted"`
	Rejected     []Rejection    `json:"rejected"`
	Summary      *Summary       `json:"summary"`
	Confirmation *Confirmation  `json:"confirmation"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var resp stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestOrderEndpointsRequireWizard(t *testing.T) {
	client := newTestClient(t, &stubGateway{})

	rec := client.send(http.MethodGet, "/api/order", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.CodeWizardNotFound, decode(t, rec).Code)

	rec = client.send(http.MethodPost, "/api/order/next", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderFlowOverHTTP(t *testing.T) {
	gw := &stubGateway{}
	client := newTestClient(t, gw)

	rec := client.send(http.MethodPost, "/api/order", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, StepUpload, decode(t, rec).State.CurrentStep)

	rec = client.send(http.MethodPost, "/api/order/next", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, FieldErrors{FieldFiles: RequiredMessage}, decode(t, rec).FieldErrors)

	rec = client.upload(map[string][]byte{
		"thesis.pdf": pdftest.Build(3),
		"cover.pdf":  pdftest.Build(2),
		"notes.txt":  []byte("just some notes"),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Len(t, resp.Accepted, 2)
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, "notes.txt", resp.Rejected[0].Name)
	assert.Equal(t, apperr.CodeUnsupportedFile, resp.Rejected[0].Code)
	assert.EqualValues(t, 20, resp.State.TotalCost)
	assert.Len(t, resp.State.Rejections, 1)

	rec = client.send(http.MethodPost, "/api/order/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StepPrintOptions, decode(t, rec).State.CurrentStep)

	rec = client.send(http.MethodPost, "/api/order/next", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp = decode(t, rec)
	assert.Len(t, resp.FieldErrors, 10)
	assert.Equal(t, RequiredMessage, resp.FieldErrors[FieldCopies])
	assert.Equal(t, RequiredMessage, resp.State.Errors["printOptions"][FieldCopies])

	printOptions := map[string]string{
		FieldCopies: "1", FieldCategories: "Assignment", FieldPaperSize: "A4",
		FieldPrintColor: "Color", FieldPrintingSides: "Single", FieldOrientation: "Portrait",
		FieldBindingOption: "None", FieldPaperType: "Plain", FieldPrintSpeed: "Express",
		FieldOtherDescription: "-",
	}
	for name, value := range printOptions {
		rec = client.send(http.MethodPut, "/api/order/fields/printOptions", gin.H{"name": name, "value": value})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Empty(t, decode(t, rec).State.Errors, "editing each field clears its error")

	rec = client.send(http.MethodPost, "/api/order/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	address := map[string]string{
		FieldStreetAddress: "4 Lake View", FieldCity: "Pune",
		FieldPostalCode: "411001", FieldPhoneNumber: "9000000000",
	}
	for name, value := range address {
		rec = client.send(http.MethodPut, "/api/order/fields/2", gin.H{"name": name, "value": value})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec = client.send(http.MethodPost, "/api/order/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StepPayment, decode(t, rec).State.CurrentStep)

	rec = client.send(http.MethodGet, "/api/order/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode(t, rec).Summary
	require.NotNil(t, summary)
	assert.EqualValues(t, 20, summary.TotalCost)
	assert.Equal(t, 5, summary.Pages)

	rec = client.send(http.MethodPost, "/api/order/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp = decode(t, rec)
	require.NotNil(t, resp.Confirmation)
	assert.Equal(t, "job-1", resp.Confirmation.ID)
	require.NotNil(t, resp.State.Submission)
	assert.Equal(t, SubmissionSucceeded, resp.State.Submission.Status)
	require.Equal(t, 1, gw.calls)
	assert.EqualValues(t, 20, gw.orders[0].TotalCost)
	assert.Len(t, gw.orders[0].Files, 2)

	rec = client.send(http.MethodPost, "/api/order/submit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperr.CodeAlreadySubmitted, decode(t, rec).Code)
	assert.Equal(t, 1, gw.calls)

	rec = client.upload(map[string][]byte{"late.pdf": pdftest.Build(1)})
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp = decode(t, rec)
	assert.Equal(t, apperr.CodeAlreadySubmitted, resp.Code)
	assert.EqualValues(t, 20, resp.State.TotalCost)

	rec = client.send(http.MethodPut, "/api/order/fields/address", gin.H{"name": FieldCity, "value": "Elsewhere"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoDirExists(t, filepath.Join(client.uploads, resp.State.ID), "sent files are released")
}

func TestUploadsAreKeptOnDisk(t *testing.T) {
	client := newTestClient(t, &stubGateway{})
	id := decode(t, client.send(http.MethodPost, "/api/order", nil)).State.ID

	rec := client.upload(map[string][]byte{"a.pdf": pdftest.Build(2)})
	require.Equal(t, http.StatusOK, rec.Code)
	entries, err := os.ReadDir(filepath.Join(client.uploads, id, "in"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_a.pdf"))

	rec = client.send(http.MethodDelete, "/api/order", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoDirExists(t, filepath.Join(client.uploads, id))
}

func TestJumpAndBackOverHTTP(t *testing.T) {
	client := newTestClient(t, &stubGateway{})
	require.Equal(t, http.StatusCreated, client.send(http.MethodPost, "/api/order", nil).Code)

	rec := client.send(http.MethodPost, "/api/order/jump/address", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	require.NotNil(t, resp.Moved)
	assert.False(t, *resp.Moved)
	assert.Equal(t, StepUpload, resp.State.CurrentStep)

	rec = client.send(http.MethodPost, "/api/order/jump/shipping", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	client.upload(map[string][]byte{"a.pdf": pdftest.Build(1)})
	rec = client.send(http.MethodPost, "/api/order/jump/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *decode(t, rec).Moved)

	rec = client.send(http.MethodPost, "/api/order/back", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StepUpload, decode(t, rec).State.CurrentStep)
}

func TestSubmitBeforePaymentIsRejected(t *testing.T) {
	gw := &stubGateway{}
	client := newTestClient(t, gw)
	client.send(http.MethodPost, "/api/order", nil)

	rec := client.send(http.MethodPost, "/api/order/submit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperr.CodeNotTerminalStep, decode(t, rec).Code)
	assert.Zero(t, gw.calls)
}

func TestRemoveFileAndUnknownField(t *testing.T) {
	client := newTestClient(t, &stubGateway{})
	client.send(http.MethodPost, "/api/order", nil)
	client.upload(map[string][]byte{"a.pdf": pdftest.Build(4)})

	rec := client.send(http.MethodDelete, "/api/order/files/missing.pdf", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.CodeFileNotFound, decode(t, rec).Code)

	rec = client.send(http.MethodDelete, "/api/order/files/a.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode(t, rec).State
	assert.Zero(t, state.TotalCost)
	assert.Empty(t, state.Files)

	rec = client.send(http.MethodPut, "/api/order/fields/address", gin.H{"name": "country", "value": "IN"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.CodeUnknownField, decode(t, rec).Code)

	rec = client.send(http.MethodPut, "/api/order/fields/upload", gin.H{"name": "files", "value": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiscardDropsWizard(t *testing.T) {
	client := newTestClient(t, &stubGateway{})
	client.send(http.MethodPost, "/api/order", nil)

	rec := client.send(http.MethodDelete, "/api/order", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = client.send(http.MethodGet, "/api/order", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateReplacesPreviousWizard(t *testing.T) {
	client := newTestClient(t, &stubGateway{})
	first := decode(t, client.send(http.MethodPost, "/api/order", nil)).State.ID
	client.upload(map[string][]byte{"a.pdf": pdftest.Build(2)})

	rec := client.send(http.MethodPost, "/api/order", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	state := decode(t, rec).State
	assert.NotEqual(t, first, state.ID)
	assert.Empty(t, state.Files, "a new order starts from scratch")
	assert.False(t, strings.Contains(rec.Body.String(), "a.pdf"))
}
