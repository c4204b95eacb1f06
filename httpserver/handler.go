package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/finsig/transaction-approval-backend/approval"
	"github.com/finsig/transaction-approval-backend/interfaces"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// AuditReader exposes recorded audit entries per transaction. The in-memory
// sink implements it; write-only sinks do not.
type AuditReader interface {
	ForTransaction(txID string) []interfaces.AuditEntry
}

// Handler processes HTTP requests for the transaction approval service.
// It delegates all business decisions to the coordinator and only maps
// between JSON and domain errors and status codes.
type Handler struct {
	coordinator  *approval.Coordinator
	transactions interfaces.TransactionStore
	audit        AuditReader
	log          *slog.Logger
}

// NewHandler creates a new HTTP request handler. The audit reader may be nil
// when no readable sink is configured; the audit endpoint then returns 404.
func NewHandler(coordinator *approval.Coordinator, transactions interfaces.TransactionStore, audit AuditReader, log *slog.Logger) *Handler {
	return &Handler{
		coordinator:  coordinator,
		transactions: transactions,
		audit:        audit,
		log:          log,
	}
}

type enrollRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// HandleEnroll starts enrollment for a new participant. The response carries
// the TOTP secret and provisioning URI exactly once; neither is retrievable
// afterwards.
func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if !h.decode(w, r, &req) {
		return
	}

	enrollment, err := h.coordinator.Enroll(r.Context(), req.Username, interfaces.Role(req.Role))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, enrollment)
}

type verifyRequest struct {
	IdentityID string `json:"identity_id"`
	Code       string `json:"code"`
}

// HandleVerifyEnrollment verifies the first authenticator code and activates
// the identity.
func (h *Handler) HandleVerifyEnrollment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	identity, err := h.coordinator.ConfirmEnrollment(r.Context(), req.IdentityID, req.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, identity)
}

type createTransactionRequest struct {
	InitiatorID        string          `json:"initiator_id"`
	Code               string          `json:"code"`
	Amount             decimal.Decimal `json:"amount"`
	Beneficiary        string          `json:"beneficiary"`
	Purpose            string          `json:"purpose"`
	SignerIDs          []string        `json:"signer_ids"`
	RequiredSignatures int             `json:"required_signatures"`
	ExpiresAt          time.Time       `json:"expires_at"`
}

// HandleCreateTransaction proposes a transaction. The response carries the
// signers' secret shares for one-time distribution; they are not persisted
// server side.
func (h *Handler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.coordinator.CreateTransaction(r.Context(), approval.CreateTransactionRequest{
		InitiatorID:        req.InitiatorID,
		Code:               req.Code,
		Amount:             req.Amount,
		Beneficiary:        req.Beneficiary,
		Purpose:            req.Purpose,
		SignerIDs:          req.SignerIDs,
		RequiredSignatures: req.RequiredSignatures,
		ExpiresAt:          req.ExpiresAt,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

type submitSignatureRequest struct {
	SignerID string `json:"signer_id"`
	Code     string `json:"code"`
	Decision string `json:"decision"`
}

// HandleSubmitSignature records a signer's decision for a transaction.
func (h *Handler) HandleSubmitSignature(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "tx_id")

	var req submitSignatureRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.coordinator.Submit(r.Context(), approval.SubmitRequest{
		TransactionID: txID,
		SignerID:      req.SignerID,
		Code:          req.Code,
		Decision:      interfaces.SignatureDecision(req.Decision),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleGetTransaction returns a transaction with its signature records.
func (h *Handler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.transactions.Load(r.Context(), chi.URLParam(r, "tx_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tx)
}

// HandleListPending returns all transactions still awaiting signatures.
func (h *Handler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.transactions.ListPending(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if pending == nil {
		pending = []*interfaces.Transaction{}
	}

	h.writeJSON(w, http.StatusOK, pending)
}

// HandleGetAudit returns the audit trail of a transaction.
func (h *Handler) HandleGetAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		h.writeError(w, interfaces.ErrNotFound)
		return
	}

	txID := chi.URLParam(r, "tx_id")
	if _, err := h.transactions.Load(r.Context(), txID); err != nil {
		h.writeError(w, err)
		return
	}

	entries := h.audit.ForTransaction(txID)
	if entries == nil {
		entries = []interfaces.AuditEntry{}
	}

	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.log.Debug("Failed to decode request body", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

// writeError maps domain errors onto HTTP status codes. Unknown errors are
// logged and reported as an internal error without leaking detail.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, interfaces.ErrValidation), errors.Is(err, interfaces.ErrInvalidThreshold):
		status = http.StatusBadRequest
	case errors.Is(err, interfaces.ErrUnauthorized), errors.Is(err, interfaces.ErrInvalidCode):
		status = http.StatusForbidden
	case errors.Is(err, interfaces.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, interfaces.ErrAlreadyDecided), errors.Is(err, interfaces.ErrTransactionClosed), errors.Is(err, interfaces.ErrVersionConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err)
		h.writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}

	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
