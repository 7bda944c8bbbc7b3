package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pureclean/api/internal/domain"
	"github.com/pureclean/api/internal/services"
)

type fakeWizard struct {
	snapshot *services.WizardSnapshot
	err      error

	lastCommand services.SubmitStepCommand
	cancelled   []string
}

func (f *fakeWizard) StartSession(ctx context.Context) (*services.WizardSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func (f *fakeWizard) SubmitStep(ctx context.Context, cmd services.SubmitStepCommand) (*services.WizardSnapshot, error) {
	f.lastCommand = cmd
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func (f *fakeWizard) GoBack(ctx context.Context, sessionID string) (*services.WizardSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func (f *fakeWizard) Snapshot(ctx context.Context, sessionID string) (*services.WizardSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func (f *fakeWizard) ResetSession(ctx context.Context, sessionID string) (*services.WizardSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func (f *fakeWizard) CancelSession(ctx context.Context, sessionID string) error {
	f.cancelled = append(f.cancelled, sessionID)
	return f.err
}

type fakePhotoStore struct {
	uploaded []string
	err      error
}

func (f *fakePhotoStore) Upload(ctx context.Context, sessionID, itemID, fileName string, data []byte) (domain.PhotoRef, error) {
	if f.err != nil {
		return domain.PhotoRef{}, f.err
	}
	f.uploaded = append(f.uploaded, fmt.Sprintf("%s/%s/%s", sessionID, itemID, fileName))
	return domain.PhotoRef{ID: "photo-1", ObjectName: "sessions/" + sessionID + "/" + fileName, UploadedAt: time.Unix(1700000000, 0)}, nil
}

func (f *fakePhotoStore) SignedURL(ctx context.Context, ref domain.PhotoRef, ttl time.Duration) (string, error) {
	return "https://storage.example.com/" + ref.ObjectName, nil
}

func baseSnapshot() *services.WizardSnapshot {
	return &services.WizardSnapshot{
		SessionID:    "sess-1",
		OrderID:      "order-1",
		Stage:        domain.StageClient,
		Step:         domain.StepClientInfo,
		CanProceed:   true,
		LastActivity: time.Unix(1700000000, 0),
	}
}

func newTestRouter(wizard services.WizardService, photos services.PhotoStore) http.Handler {
	h := NewWizardHandlers(wizard, photos, time.Minute)
	return NewRouter(WithWizardRoutes(h.Routes))
}

func TestStartSessionReturnsSnapshot(t *testing.T) {
	wizard := &fakeWizard{snapshot: baseSnapshot()}
	router := newTestRouter(wizard, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/wizard/sessions", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var got snapshotPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.SessionID != "sess-1" || got.Step != "client_info" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestSubmitStepDecodesPayload(t *testing.T) {
	wizard := &fakeWizard{snapshot: baseSnapshot()}
	router := newTestRouter(wizard, nil)

	body := `{"client":{"clientId":"c-9","clientName":"  Dana Ives ","branch":"Main"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wizard/sessions/sess-1/steps/client_info", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if wizard.lastCommand.SessionID != "sess-1" {
		t.Fatalf("session id = %q", wizard.lastCommand.SessionID)
	}
	if wizard.lastCommand.Step != domain.StepClientInfo {
		t.Fatalf("step = %q", wizard.lastCommand.Step)
	}
	client := wizard.lastCommand.Payload.Client
	if client == nil {
		t.Fatal("client payload not decoded")
	}
	if client.ClientName != "Dana Ives" {
		t.Fatalf("client name = %q, want trimmed", client.ClientName)
	}
}

func TestSubmitStepStripsMarkupFromFreeText(t *testing.T) {
	wizard := &fakeWizard{snapshot: baseSnapshot()}
	router := newTestRouter(wizard, nil)

	body := `{"stainsDefects":{"noGuaranteeReason":"<script>alert(1)</script>heavy wear"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wizard/sessions/sess-1/steps/item_stains_defects", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}
	sd := wizard.lastCommand.Payload.StainsDefects
	if sd == nil {
		t.Fatal("stains payload not decoded")
	}
	if strings.Contains(sd.NoGuaranteeReason, "<script>") {
		t.Fatalf("markup not stripped: %q", sd.NoGuaranteeReason)
	}
	if !strings.Contains(sd.NoGuaranteeReason, "heavy wear") {
		t.Fatalf("text content lost: %q", sd.NoGuaranteeReason)
	}
}

func TestSubmitStepValidationErrorMapsTo422(t *testing.T) {
	wizard := &fakeWizard{err: &services.ValidationError{
		Step:    domain.StepItemBasicInfo,
		Field:   "quantity",
		Message: "quantity must be at least 1",
	}}
	router := newTestRouter(wizard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wizard/sessions/sess-1/steps/item_basic_info", strings.NewReader(`{"basicInfo":{"category":"CLOTHING"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "quantity") {
		t.Fatalf("body does not name the field: %s", rec.Body.String())
	}
}

func TestSubmitStepStateErrorMapsTo409(t *testing.T) {
	wizard := &fakeWizard{err: &services.StateError{From: domain.StepClientInfo, Event: "item_pricing"}}
	router := newTestRouter(wizard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wizard/sessions/sess-1/steps/item_pricing", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestGetSessionNotFoundMapsTo404(t *testing.T) {
	wizard := &fakeWizard{err: services.ErrSessionNotFound}
	router := newTestRouter(wizard, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/wizard/sessions/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestSubmitStepInfrastructureErrorMapsTo503(t *testing.T) {
	wizard := &fakeWizard{err: &services.InfrastructureError{Op: "sessions.save", Err: fmt.Errorf("deadline exceeded")}}
	router := newTestRouter(wizard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wizard/sessions/sess-1/steps/client_info", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestSubmitStepRejectsMalformedJSON(t *testing.T) {
	wizard := &fakeWizard{snapshot: baseSnapshot()}
	router := newTestRouter(wizard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wizard/sessions/sess-1/steps/client_info", strings.NewReader(`{"client":`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestCancelSessionReturnsNoContent(t *testing.T) {
	wizard := &fakeWizard{snapshot: baseSnapshot()}
	router := newTestRouter(wizard, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/wizard/sessions/sess-1", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(wizard.cancelled) != 1 || wizard.cancelled[0] != "sess-1" {
		t.Fatalf("cancelled = %v", wizard.cancelled)
	}
}

func TestUploadPhotoReturnsRef(t *testing.T) {
	wizard := &fakeWizard{snapshot: baseSnapshot()}
	photos := &fakePhotoStore{}
	router := newTestRouter(wizard, photos)

	var buf bytes.Buffer
	writer := newMultipartPhoto(t, &buf, "coat.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wizard/sessions/sess-1/items/item-1/photos", &buf)
	req.Header.Set("Content-Type", writer)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	var got photoRefPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != "photo-1" || got.URL == "" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if len(photos.uploaded) != 1 || !strings.HasPrefix(photos.uploaded[0], "sess-1/item-1/") {
		t.Fatalf("uploaded = %v", photos.uploaded)
	}
}

// newMultipartPhoto writes a single-file multipart body and returns its
// content type header.
func newMultipartPhoto(t *testing.T, buf *bytes.Buffer, fileName string, data []byte) string {
	t.Helper()
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("photo", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write photo bytes: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return writer.FormDataContentType()
}

func TestUploadPhotoWithoutStoreReturns503(t *testing.T) {
	wizard := &fakeWizard{snapshot: baseSnapshot()}
	router := newTestRouter(wizard, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/wizard/sessions/sess-1/items/item-1/photos", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
