package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/credittrack/credittrack/internal/auth"
	"github.com/credittrack/credittrack/internal/handler/dto"
	"github.com/credittrack/credittrack/internal/model"
	"github.com/credittrack/credittrack/internal/service"
)

// CreditHandler handles HTTP requests for credit operations.
type CreditHandler struct {
	svc    *service.CreditService
	logger *slog.Logger
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(svc *service.CreditService, logger *slog.Logger) *CreditHandler {
	return &CreditHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/credits/.
func (h *CreditHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	input, err := service.ParseCreditInput(body, false)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	credit, err := h.svc.CreateCredit(r.Context(), input, auth.UserIDFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToCreditResponse(credit))
}

// List handles GET /api/v1/credits/.
func (h *CreditHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	input := service.ListCreditsInput{
		Filter: model.CreditFilter{
			ClientID:   query.Get("client_id"),
			Commercial: query.Get("commercial"),
		},
		Page:    queryInt(query.Get("page")),
		PerPage: queryInt(query.Get("per_page")),
	}

	page, err := h.svc.ListCredits(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToCreditListResponse(page))
}

// Get handles GET /api/v1/credits/{id}.
func (h *CreditHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := creditID(w, r)
	if !ok {
		return
	}

	credit, err := h.svc.GetCredit(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToCreditResponse(credit))
}

// Update handles PUT /api/v1/credits/{id}. Absent fields are left unchanged.
func (h *CreditHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := creditID(w, r)
	if !ok {
		return
	}

	// Existence is checked before the body, so an unknown id is 404 even with a bad body.
	if _, err := h.svc.GetCredit(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}
	upd, err := service.ParseCreditInput(body, true)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	credit, err := h.svc.UpdateCredit(r.Context(), id, upd)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("credit_updated", "credit_id", id, "user_id", auth.UserIDFromContext(r.Context()))
	writeJSON(w, http.StatusOK, dto.ToCreditResponse(credit))
}

// Delete handles DELETE /api/v1/credits/{id}.
func (h *CreditHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := creditID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteCredit(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Distinct handles GET /api/v1/credits/distinct.
func (h *CreditHandler) Distinct(w http.ResponseWriter, r *http.Request) {
	values, err := h.svc.DistinctValues(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToDistinctResponse(values))
}

// handleServiceError maps service errors to HTTP responses.
func (h *CreditHandler) handleServiceError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, verr.Fields)
	case errors.Is(err, service.ErrCreditNotFound):
		writeError(w, http.StatusNotFound, "CREDIT_NOT_FOUND", "Credit not found")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// creditID parses the {id} route parameter. Non-numeric ids are answered with 404,
// as no such resource can exist.
func creditID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "CREDIT_NOT_FOUND", "Credit not found")
		return 0, false
	}
	return id, true
}

// queryInt parses a query parameter, returning 0 when it is absent or not a number.
func queryInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
