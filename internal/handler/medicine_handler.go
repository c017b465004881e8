package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/promed/internal/expiry"
	"github.com/hitoshi/promed/internal/medicine"
	"github.com/hitoshi/promed/internal/middleware"
	"github.com/hitoshi/promed/internal/model"
)

// 登録リクエストボディの上限（1MB）
const maxRequestBodySize = 1 << 20

// MedicineServiceInterface は医薬品ハンドラーが必要とするサービスインターフェース。
type MedicineServiceInterface interface {
	Create(ctx context.Context, ownerID string, in medicine.CreateInput) (*model.MedicineWithStatus, error)
	List(ctx context.Context, ownerID, statusFilter string) ([]model.MedicineWithStatus, error)
	Get(ctx context.Context, ownerID, id string) (*model.MedicineWithStatus, error)
	GetByQR(ctx context.Context, qrIdentifier string) (*model.MedicineWithStatus, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// MedicineCreatedRecorder は医薬品登録件数の記録先。
type MedicineCreatedRecorder interface {
	RecordMedicineCreated()
}

// MedicineHandler は医薬品管理のHTTPハンドラー。
type MedicineHandler struct {
	service  MedicineServiceInterface
	baseURL  string
	recorder MedicineCreatedRecorder
	logger   *slog.Logger
}

// NewMedicineHandler はMedicineHandlerを生成する。
// baseURLはレスポンスのqr_url組み立てに使用する。recorderはnil可。
func NewMedicineHandler(service MedicineServiceInterface, baseURL string, recorder MedicineCreatedRecorder, logger *slog.Logger) *MedicineHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MedicineHandler{
		service:  service,
		baseURL:  baseURL,
		recorder: recorder,
		logger:   logger,
	}
}

// createMedicineRequest は医薬品登録リクエストのボディ。
type createMedicineRequest struct {
	Name            string `json:"name"`
	FactoryName     string `json:"factory_name"`
	Uses            string `json:"uses"`
	ManufactureDate string `json:"manufacture_date"`
	ExpiryDate      string `json:"expiry_date"`
}

// medicineResponse は医薬品情報のAPIレスポンス。
type medicineResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	FactoryName     string `json:"factory_name"`
	Uses            string `json:"uses"`
	ManufactureDate string `json:"manufacture_date"`
	ExpiryDate      string `json:"expiry_date"`
	Status          string `json:"status"`
	DaysRemaining   int    `json:"days_remaining"`
	QRIdentifier    string `json:"qr_identifier"`
	QRURL           string `json:"qr_url"`
}

// publicMedicineResponse はQRコードから開く公開詳細ページのレスポンス。
// 所有者やIDなどの内部情報は含めない。
type publicMedicineResponse struct {
	Name            string `json:"name"`
	FactoryName     string `json:"factory_name"`
	Uses            string `json:"uses"`
	ManufactureDate string `json:"manufacture_date"`
	ExpiryDate      string `json:"expiry_date"`
	Status          string `json:"status"`
	DaysRemaining   int    `json:"days_remaining"`
}

// listMedicinesResponse は医薬品一覧のAPIレスポンス。
type listMedicinesResponse struct {
	Medicines []medicineResponse `json:"medicines"`
}

// CreateMedicine は医薬品を登録する。
// POST /api/medicines
func (h *MedicineHandler) CreateMedicine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	var req createMedicineRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	created, err := h.service.Create(r.Context(), userID, medicine.CreateInput{
		Name:            req.Name,
		FactoryName:     req.FactoryName,
		Uses:            req.Uses,
		ManufactureDate: req.ManufactureDate,
		ExpiryDate:      req.ExpiryDate,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	if h.recorder != nil {
		h.recorder.RecordMedicineCreated()
	}
	h.logger.Info("medicine registered",
		slog.String("user_id", userID),
		slog.String("medicine_id", created.ID),
	)

	writeJSON(w, http.StatusCreated, h.toMedicineResponse(created))
}

// ListMedicines は所有者の医薬品一覧を返す。
// GET /api/medicines?status=valid|expiring_soon|expired
func (h *MedicineHandler) ListMedicines(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	medicines, err := h.service.List(r.Context(), userID, r.URL.Query().Get("status"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := listMedicinesResponse{Medicines: make([]medicineResponse, 0, len(medicines))}
	for i := range medicines {
		resp.Medicines = append(resp.Medicines, h.toMedicineResponse(&medicines[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMedicine は医薬品詳細を返す。
// GET /api/medicines/{id}
func (h *MedicineHandler) GetMedicine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	m, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toMedicineResponse(m))
}

// DeleteMedicine は医薬品を削除する。
// DELETE /api/medicines/{id}
func (h *MedicineHandler) DeleteMedicine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("medicine deleted",
		slog.String("user_id", userID),
		slog.String("medicine_id", id),
	)
	w.WriteHeader(http.StatusNoContent)
}

// GetPublicMedicine はQR識別子から医薬品の公開詳細を返す。認証不要。
// GET /m/{qr}
func (h *MedicineHandler) GetPublicMedicine(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetByQR(r.Context(), chi.URLParam(r, "qr"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, publicMedicineResponse{
		Name:            m.Name,
		FactoryName:     m.FactoryName,
		Uses:            m.Uses,
		ManufactureDate: m.ManufactureDate.Format(medicine.DateLayout),
		ExpiryDate:      m.ExpiryDate.Format(medicine.DateLayout),
		Status:          string(m.Status),
		DaysRemaining:   m.DaysRemaining,
	})
}

// toMedicineResponse はmodel.MedicineWithStatusからAPIレスポンスに変換する。
func (h *MedicineHandler) toMedicineResponse(m *model.MedicineWithStatus) medicineResponse {
	return medicineResponse{
		ID:              m.ID,
		Name:            m.Name,
		FactoryName:     m.FactoryName,
		Uses:            m.Uses,
		ManufactureDate: m.ManufactureDate.Format(medicine.DateLayout),
		ExpiryDate:      m.ExpiryDate.Format(medicine.DateLayout),
		Status:          string(m.Status),
		DaysRemaining:   m.DaysRemaining,
		QRIdentifier:    m.QRIdentifier,
		QRURL:           expiry.DetailURL(h.baseURL, m.QRIdentifier),
	}
}
