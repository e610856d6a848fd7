// internal/api/handler/desk.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"futures-desk/internal/api/types"
	"futures-desk/internal/domain"
	"futures-desk/internal/service"
	"futures-desk/internal/util" // For custom errors
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 15 * time.Second

// DeskHandler handles HTTP requests for the Futures Desk.
type DeskHandler struct {
	service service.LedgerService
	logger  *slog.Logger
}

// NewDeskHandler creates a new DeskHandler.
func NewDeskHandler(svc service.LedgerService, logger *slog.Logger) *DeskHandler {
	return &DeskHandler{
		service: svc,
		logger:  logger,
	}
}

// Helper function to send JSON responses.
func (h *DeskHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Helper function to send error responses. Ledger errors are surfaced with
// their message; anything unclassified is hidden behind a generic 500.
func (h *DeskHandler) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = err.Error()
	case util.IsError(err, util.ErrInsufficientFunds):
		statusCode = http.StatusPaymentRequired // 402 Payment Required
		message = err.Error()
	case util.IsError(err, util.ErrAlreadyResolved):
		statusCode = http.StatusConflict
		message = err.Error()
	case util.IsError(err, util.ErrStorageUnavailable):
		statusCode = http.StatusServiceUnavailable
		message = err.Error()
	default:
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, types.ErrorResponse{Error: message})
}

// accountKeyParam reads {key}. chi matches on RawPath when the request path
// carries escapes that Path cannot round-trip, and on the decoded Path
// otherwise, so the segment is unescaped only in the first case.
func accountKeyParam(r *http.Request) (domain.AccountKey, error) {
	raw := chi.URLParam(r, "key")
	if r.URL.RawPath != "" {
		var err error
		if raw, err = url.PathUnescape(raw); err != nil {
			return "", util.Invalid("key", "is not a valid path segment")
		}
	}
	return domain.ParseAccountKey(raw)
}

// limitParam reads ?limit=; absent means 0 (the operation's default).
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, util.Invalid("limit", "must be a non-negative integer")
	}
	return limit, nil
}

// GetOrCreateAccount opens an account on first use.
// POST /accounts/{key}
func (h *DeskHandler) GetOrCreateAccount(w http.ResponseWriter, r *http.Request) {
	key, err := accountKeyParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	account, err := h.service.GetOrCreateAccount(r.Context(), key)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, account)
}

// GetAccount returns an existing account.
// GET /accounts/{key}
func (h *DeskHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	key, err := accountKeyParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	account, err := h.service.GetAccount(r.Context(), key)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, account)
}

// ListAccountPredictions lists an analyst's predictions.
// GET /accounts/{key}/predictions?limit=
func (h *DeskHandler) ListAccountPredictions(w http.ResponseWriter, r *http.Request) {
	key, err := accountKeyParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	predictions, err := h.service.ListByAccount(r.Context(), key, limit)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.NewListResponse(predictions, limit))
}

// GetTrackRecord returns an analyst's track record.
// GET /accounts/{key}/record
func (h *DeskHandler) GetTrackRecord(w http.ResponseWriter, r *http.Request) {
	key, err := accountKeyParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	record, err := h.service.TrackRecord(r.Context(), key)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, record)
}

// PlaceWagerRequest represents the request body for placing a wager.
type PlaceWagerRequest struct {
	AccountKey string `json:"account_key"`
	Claim      string `json:"claim"`
	Deadline   string `json:"deadline"`
	Confidence int    `json:"confidence"`
	Wager      int64  `json:"wager"`
}

// PlaceWager escrows a wager on a new claim.
// POST /predictions
func (h *DeskHandler) PlaceWager(w http.ResponseWriter, r *http.Request) {
	var req PlaceWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.Invalid("body", "must be a JSON object"))
		return
	}

	deadline, err := domain.ParseDate(req.Deadline)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	prediction, err := h.service.PlaceWager(r.Context(), domain.PredictionDraft{
		AccountKey: domain.AccountKey(req.AccountKey),
		Claim:      req.Claim,
		Deadline:   deadline,
		Confidence: req.Confidence,
		Wager:      req.Wager,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, prediction)
}

// ListPredictions lists open positions or recent resolutions.
// GET /predictions?status=open|resolved&limit=
func (h *DeskHandler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var predictions []domain.Prediction
	switch status := strings.ToLower(r.URL.Query().Get("status")); status {
	case "", "open":
		predictions, err = h.service.ListOpen(r.Context())
		limit = 0
	case "resolved":
		predictions, err = h.service.ListResolved(r.Context(), limit)
	default:
		err = util.Invalid("status", "must be open or resolved, got %q", status)
	}
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.NewListResponse(predictions, limit))
}

// ResolveRequest represents the request body for resolving a prediction.
type ResolveRequest struct {
	Won *bool `json:"won"`
}

// Resolve settles an open prediction.
// POST /predictions/{id}/resolve
func (h *DeskHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.Invalid("body", "must be a JSON object"))
		return
	}
	if req.Won == nil {
		h.respondWithError(w, util.Invalid("won", "is required"))
		return
	}

	prediction, err := h.service.Resolve(r.Context(), id, *req.Won)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, prediction)
}

// GetSummary returns the ledger totals and the conservation check.
// GET /ledger/summary
func (h *DeskHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.NewSummaryResponse(*summary))
}
