package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/promed/internal/medicine"
	"github.com/hitoshi/promed/internal/middleware"
	"github.com/hitoshi/promed/internal/model"
)

// --- モック定義 ---

// mockMedicineService はMedicineServiceInterfaceのモック実装。
type mockMedicineService struct {
	createFn  func(ctx context.Context, ownerID string, in medicine.CreateInput) (*model.MedicineWithStatus, error)
	listFn    func(ctx context.Context, ownerID, statusFilter string) ([]model.MedicineWithStatus, error)
	getFn     func(ctx context.Context, ownerID, id string) (*model.MedicineWithStatus, error)
	getByQRFn func(ctx context.Context, qrIdentifier string) (*model.MedicineWithStatus, error)
	deleteFn  func(ctx context.Context, ownerID, id string) error
}

func (m *mockMedicineService) Create(ctx context.Context, ownerID string, in medicine.CreateInput) (*model.MedicineWithStatus, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ownerID, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockMedicineService) List(ctx context.Context, ownerID, statusFilter string) ([]model.MedicineWithStatus, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID, statusFilter)
	}
	return nil, nil
}

func (m *mockMedicineService) Get(ctx context.Context, ownerID, id string) (*model.MedicineWithStatus, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ownerID, id)
	}
	return nil, model.NewMedicineNotFoundError(id)
}

func (m *mockMedicineService) GetByQR(ctx context.Context, qrIdentifier string) (*model.MedicineWithStatus, error) {
	if m.getByQRFn != nil {
		return m.getByQRFn(ctx, qrIdentifier)
	}
	return nil, model.NewMedicineNotFoundError(qrIdentifier)
}

func (m *mockMedicineService) Delete(ctx context.Context, ownerID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ownerID, id)
	}
	return nil
}

type countingRecorder struct {
	created int
}

func (c *countingRecorder) RecordMedicineCreated() { c.created++ }

// --- テストヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleMedicine() *model.MedicineWithStatus {
	return &model.MedicineWithStatus{
		Medicine: model.Medicine{
			ID:              "4b9c7f4e-8f2e-4a55-9d3c-2f4a1e6b7c01",
			OwnerID:         "user-123",
			Name:            "Aspirin",
			FactoryName:     "Bayer",
			Uses:            "Pain relief",
			ManufactureDate: date(2023, time.January, 15),
			ExpiryDate:      date(2024, time.June, 11),
			QRIdentifier:    "0f8fad5b-d9cb-469f-a165-70867728950e",
		},
		Status:        model.StatusExpiringSoon,
		DaysRemaining: 1,
	}
}

func newTestMedicineHandler(svc MedicineServiceInterface, recorder MedicineCreatedRecorder) *MedicineHandler {
	return NewMedicineHandler(svc, "https://promed.example.com", recorder, discardLogger())
}

// --- POST /api/medicines ---

func TestMedicineHandler_CreateMedicine_Success(t *testing.T) {
	recorder := &countingRecorder{}
	svc := &mockMedicineService{
		createFn: func(ctx context.Context, ownerID string, in medicine.CreateInput) (*model.MedicineWithStatus, error) {
			if ownerID != "user-123" {
				t.Errorf("ownerID = %q, want %q", ownerID, "user-123")
			}
			if in.Name != "Aspirin" || in.ExpiryDate != "2024-06-11" {
				t.Errorf("input = %+v, unexpected", in)
			}
			return sampleMedicine(), nil
		},
	}
	h := newTestMedicineHandler(svc, recorder)

	body := `{"name":"Aspirin","factory_name":"Bayer","uses":"Pain relief","manufacture_date":"2023-01-15","expiry_date":"2024-06-11"}`
	req := httptest.NewRequest(http.MethodPost, "/api/medicines", bytes.NewBufferString(body))
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateMedicine(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp medicineResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.QRURL != "https://promed.example.com/m/0f8fad5b-d9cb-469f-a165-70867728950e" {
		t.Errorf("qr_url = %q, unexpected", resp.QRURL)
	}
	if resp.ExpiryDate != "2024-06-11" || resp.ManufactureDate != "2023-01-15" {
		t.Errorf("dates = %s/%s, want 2023-01-15/2024-06-11", resp.ManufactureDate, resp.ExpiryDate)
	}
	if resp.Status != "expiring_soon" || resp.DaysRemaining != 1 {
		t.Errorf("status = %s/%d, want expiring_soon/1", resp.Status, resp.DaysRemaining)
	}
	if recorder.created != 1 {
		t.Errorf("RecordMedicineCreated called %d times, want 1", recorder.created)
	}
}

func TestMedicineHandler_CreateMedicine_InvalidJSON_Returns400(t *testing.T) {
	h := newTestMedicineHandler(&mockMedicineService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/medicines", bytes.NewBufferString(`{"name":`))
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateMedicine(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := parseAPIErrorResponse(t, w)["code"]; got != model.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", got, model.ErrCodeInvalidRequest)
	}
}

func TestMedicineHandler_CreateMedicine_ValidationError_Returns400(t *testing.T) {
	recorder := &countingRecorder{}
	svc := &mockMedicineService{
		createFn: func(ctx context.Context, ownerID string, in medicine.CreateInput) (*model.MedicineWithStatus, error) {
			return nil, model.NewInvalidMedicineError("nameは必須です")
		},
	}
	h := newTestMedicineHandler(svc, recorder)

	req := httptest.NewRequest(http.MethodPost, "/api/medicines", bytes.NewBufferString(`{}`))
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateMedicine(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeInvalidMedicine {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeInvalidMedicine)
	}
	if errResp["category"] != "validation" {
		t.Errorf("category = %q, want validation", errResp["category"])
	}
	if recorder.created != 0 {
		t.Error("RecordMedicineCreated should not be called on failure")
	}
}

func TestMedicineHandler_CreateMedicine_NoUser_Returns401(t *testing.T) {
	h := newTestMedicineHandler(&mockMedicineService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/medicines", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()

	h.CreateMedicine(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestMedicineHandler_CreateMedicine_InternalError_Returns500WithoutDetail(t *testing.T) {
	svc := &mockMedicineService{
		createFn: func(ctx context.Context, ownerID string, in medicine.CreateInput) (*model.MedicineWithStatus, error) {
			return nil, errors.New("pq: connection refused")
		},
	}
	h := newTestMedicineHandler(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/medicines", bytes.NewBufferString(`{}`))
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.CreateMedicine(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("connection refused")) {
		t.Error("internal error detail must not leak into the response body")
	}
}

// --- GET /api/medicines ---

func TestMedicineHandler_ListMedicines_PassesStatusFilter(t *testing.T) {
	svc := &mockMedicineService{
		listFn: func(ctx context.Context, ownerID, statusFilter string) ([]model.MedicineWithStatus, error) {
			if statusFilter != "expiring_soon" {
				t.Errorf("statusFilter = %q, want expiring_soon", statusFilter)
			}
			return []model.MedicineWithStatus{*sampleMedicine()}, nil
		},
	}
	h := newTestMedicineHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/medicines?status=expiring_soon", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.ListMedicines(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp listMedicinesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Medicines) != 1 || resp.Medicines[0].Name != "Aspirin" {
		t.Errorf("medicines = %+v, unexpected", resp.Medicines)
	}
}

func TestMedicineHandler_ListMedicines_EmptyIsArray(t *testing.T) {
	h := newTestMedicineHandler(&mockMedicineService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/medicines", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.ListMedicines(w, req)

	if got := w.Body.String(); got != "{\"medicines\":[]}\n" {
		t.Errorf("body = %q, want empty array", got)
	}
}

func TestMedicineHandler_ListMedicines_InvalidFilter_Returns400(t *testing.T) {
	svc := &mockMedicineService{
		listFn: func(ctx context.Context, ownerID, statusFilter string) ([]model.MedicineWithStatus, error) {
			return nil, model.NewInvalidStatusFilterError(statusFilter)
		},
	}
	h := newTestMedicineHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/medicines?status=stale", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.ListMedicines(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := parseAPIErrorResponse(t, w)["code"]; got != model.ErrCodeInvalidStatusFilter {
		t.Errorf("code = %q, want %q", got, model.ErrCodeInvalidStatusFilter)
	}
}

// --- GET/DELETE /api/medicines/{id} ---

func TestMedicineHandler_GetMedicine_NotFound_Returns404(t *testing.T) {
	h := newTestMedicineHandler(&mockMedicineService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/medicines/other", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", "other")
	w := httptest.NewRecorder()

	h.GetMedicine(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if got := parseAPIErrorResponse(t, w)["code"]; got != model.ErrCodeMedicineNotFound {
		t.Errorf("code = %q, want %q", got, model.ErrCodeMedicineNotFound)
	}
}

func TestMedicineHandler_GetMedicine_Success(t *testing.T) {
	svc := &mockMedicineService{
		getFn: func(ctx context.Context, ownerID, id string) (*model.MedicineWithStatus, error) {
			if ownerID != "user-123" || id != sampleMedicine().ID {
				t.Errorf("Get(%q, %q), unexpected", ownerID, id)
			}
			return sampleMedicine(), nil
		},
	}
	h := newTestMedicineHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/medicines/x", nil)
	req = withUserID(req, "user-123")
	req = withChiURLParam(req, "id", sampleMedicine().ID)
	w := httptest.NewRecorder()

	h.GetMedicine(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestMedicineHandler_DeleteMedicine(t *testing.T) {
	tests := []struct {
		name       string
		deleteErr  error
		wantStatus int
	}{
		{"削除成功", nil, http.StatusNoContent},
		{"存在しない", model.NewMedicineNotFoundError("x"), http.StatusNotFound},
		{"DBエラー", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockMedicineService{
				deleteFn: func(ctx context.Context, ownerID, id string) error {
					return tt.deleteErr
				},
			}
			h := newTestMedicineHandler(svc, nil)

			req := httptest.NewRequest(http.MethodDelete, "/api/medicines/x", nil)
			req = withUserID(req, "user-123")
			req = withChiURLParam(req, "id", "x")
			w := httptest.NewRecorder()

			h.DeleteMedicine(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

// --- GET /m/{qr} ---

func TestMedicineHandler_GetPublicMedicine_OmitsOwnerAndID(t *testing.T) {
	svc := &mockMedicineService{
		getByQRFn: func(ctx context.Context, qrIdentifier string) (*model.MedicineWithStatus, error) {
			return sampleMedicine(), nil
		},
	}
	h := newTestMedicineHandler(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/m/qr", nil)
	req = withChiURLParam(req, "qr", sampleMedicine().QRIdentifier)
	w := httptest.NewRecorder()

	h.GetPublicMedicine(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, key := range []string{"id", "owner_id", "qr_identifier"} {
		if _, ok := body[key]; ok {
			t.Errorf("public response should not contain %q", key)
		}
	}
	if body["name"] != "Aspirin" || body["status"] != "expiring_soon" {
		t.Errorf("body = %v, unexpected", body)
	}
}

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeMedicineNotFound, http.StatusNotFound},
		{model.ErrCodeInvalidMedicine, http.StatusBadRequest},
		{model.ErrCodeInvalidStatusFilter, http.StatusBadRequest},
		{model.ErrCodeInvalidRequest, http.StatusBadRequest},
		{model.ErrCodeUnauthorized, http.StatusUnauthorized},
		{model.ErrCodeCSRFInvalid, http.StatusForbidden},
		{model.ErrCodeRateLimited, http.StatusTooManyRequests},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapAPIErrorToHTTPStatus(&model.APIError{Code: tt.code}); got != tt.want {
			t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
