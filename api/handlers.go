/*
handlers.go - HTTP handlers for the shift session engine

PURPOSE:
  Exposes the session lifecycle over REST. Handles HTTP parsing, JSON
  serialization, and error-to-status mapping; all rules live in the
  engine.

ENDPOINTS:
  Registers:
    GET    /api/registers                       List registers
    POST   /api/registers                       Create/update register
    GET    /api/registers/{id}                  Register details
    GET    /api/registers/{id}/availability     Open-for-business check
    GET    /api/registers/{id}/current-session  Current open session
    GET    /api/registers/{id}/sessions         Session history

  Sessions:
    POST   /api/sessions                        Open a session
    GET    /api/sessions/current                Acting cashier's open session
    GET    /api/sessions/{id}                   Session details
    POST   /api/sessions/{id}/cash/add          Add cash to the till
    POST   /api/sessions/{id}/cash/remove       Remove cash from the till
    POST   /api/sessions/{id}/payments          Post a payment
    POST   /api/sessions/{id}/suspend           Suspend
    POST   /api/sessions/{id}/resume            Resume
    POST   /api/sessions/{id}/close             Close and reconcile
    POST   /api/sessions/{id}/flag              Flag for review (elevated)
    GET    /api/sessions/{id}/movements         Cash movement ledger
    GET    /api/sessions/{id}/report            Reconciliation report
    GET    /api/sessions/{id}/audit             Audit trail

ERROR HANDLING:
  Engine error kinds map to statuses:
  - 400 InvalidAmount / malformed input
  - 401 missing/invalid token
  - 403 Unauthorized
  - 404 NotFound
  - 409 SessionAlreadyOpen, InvalidTransition
  - 503 CollaboratorUnavailable (retryable)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mirlondev/magasin-sub002/cache"
	"github.com/mirlondev/magasin-sub002/register"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *register.Service
	Registry *register.Registry
	Ledger   *register.Ledger
	Store    register.Store

	// Payments receives postings made through this API and serves as
	// the engine's payment source when no external system is wired.
	Payments *register.MemoryPayments

	// Reports is optional; nil disables caching.
	Reports *cache.ReportCache
}

func NewHandler(service *register.Service, store register.Store, payments *register.MemoryPayments, reports *cache.ReportCache) *Handler {
	return &Handler{
		Service:  service,
		Registry: register.NewRegistry(store, store),
		Ledger:   register.NewLedger(store),
		Store:    store,
		Payments: payments,
		Reports:  reports,
	}
}

// =============================================================================
// REGISTER HANDLERS
// =============================================================================

func (h *Handler) ListRegisters(w http.ResponseWriter, r *http.Request) {
	registers, err := h.Store.ListRegisters(r.Context(), r.URL.Query().Get("store_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RegisterDTO, 0, len(registers))
	for _, reg := range registers {
		dtos = append(dtos, RegisterDTO{
			ID: string(reg.ID), Number: reg.Number, StoreID: reg.StoreID,
			Active: reg.Active, Location: reg.Location,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateRegister(w http.ResponseWriter, r *http.Request) {
	var req CreateRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Number == "" || req.StoreID == "" {
		writeError(w, http.StatusBadRequest, "number and store_id are required", nil)
		return
	}

	reg := &register.CashRegister{
		ID:       register.RegisterID(req.ID),
		Number:   req.Number,
		StoreID:  req.StoreID,
		Active:   true,
		Location: req.Location,
	}
	if reg.ID == "" {
		reg.ID = register.RegisterID(uuid.NewString())
	}
	if req.Active != nil {
		reg.Active = *req.Active
	}

	if err := h.Store.PutRegister(r.Context(), reg); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RegisterDTO{
		ID: string(reg.ID), Number: reg.Number, StoreID: reg.StoreID,
		Active: reg.Active, Location: reg.Location,
	})
}

func (h *Handler) GetRegister(w http.ResponseWriter, r *http.Request) {
	id := register.RegisterID(chi.URLParam(r, "id"))
	reg, err := h.Store.GetRegister(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RegisterDTO{
		ID: string(reg.ID), Number: reg.Number, StoreID: reg.StoreID,
		Active: reg.Active, Location: reg.Location,
	})
}

func (h *Handler) GetRegisterAvailability(w http.ResponseWriter, r *http.Request) {
	id := register.RegisterID(chi.URLParam(r, "id"))
	available, err := h.Registry.IsRegisterAvailable(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityDTO{RegisterID: string(id), Available: available})
}

func (h *Handler) GetRegisterCurrentSession(w http.ResponseWriter, r *http.Request) {
	id := register.RegisterID(chi.URLParam(r, "id"))
	session, err := h.Registry.OpenSessionForRegister(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "No open session for register", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

func (h *Handler) ListRegisterSessions(w http.ResponseWriter, r *http.Request) {
	id := register.RegisterID(chi.URLParam(r, "id"))
	sessions, err := h.Store.ListSessions(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]SessionDTO, 0, len(sessions))
	for i := range sessions {
		dtos = append(dtos, toSessionDTO(&sessions[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SESSION LIFECYCLE HANDLERS
// =============================================================================

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No actor", nil)
		return
	}

	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	session, err := h.Service.Open(r.Context(), register.RegisterID(req.RegisterID), actor.ID, req.OpeningBalance, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(session))
}

// GetCurrentSession resolves the acting cashier's open session. This is
// the "current shift" lookup the back office lands on.
func (h *Handler) GetCurrentSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No actor", nil)
		return
	}

	session, err := h.Registry.OpenSessionForCashier(r.Context(), actor.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "No open session for cashier", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.Service.Session(r.Context(), sessionParam(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

func (h *Handler) AddCash(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No actor", nil)
		return
	}

	var req CashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	session, err := h.Service.AddCash(r.Context(), sessionParam(r), actor.ID, req.Amount, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

func (h *Handler) RemoveCash(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No actor", nil)
		return
	}

	var req CashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	session, err := h.Service.RemoveCash(r.Context(), sessionParam(r), actor.ID, req.Amount, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

func (h *Handler) PostPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No actor", nil)
		return
	}

	var req PostPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// Method and direction are case-insensitive on the wire.
	payment := register.Payment{
		Method:    register.PaymentMethod(strings.ToLower(req.Method)),
		Direction: register.PaymentDirection(strings.ToLower(req.Direction)),
		Amount:    req.Amount,
	}
	id := sessionParam(r)

	session, err := h.Service.PostPayment(r.Context(), id, actor.ID, payment)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Mirror the posting into the payment source so the close-time
	// breakdown sees it.
	if h.Payments != nil {
		if err := h.Payments.Record(r.Context(), id, payment); err != nil {
			log.Printf("payment record failed for session %s: %v", id, err)
		}
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

func (h *Handler) SuspendSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No actor", nil)
		return
	}

	var req ReasonRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	session, err := h.Service.Suspend(r.Context(), sessionParam(r), actor.ID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

func (h *Handler) ResumeSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No actor", nil)
		return
	}

	session, err := h.Service.Resume(r.Context(), sessionParam(r), actor.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No actor", nil)
		return
	}

	var req CloseSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	_, report, err := h.Service.Close(r.Context(), sessionParam(r), actor.ID, req.CountedBalance, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if h.Reports != nil {
		if err := h.Reports.Set(r.Context(), report); err != nil {
			log.Printf("report cache set failed for session %s: %v", report.SessionID, err)
		}
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) FlagSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No actor", nil)
		return
	}

	var req ReasonRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	session, err := h.Service.FlagForReview(r.Context(), sessionParam(r), actor.ID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

// =============================================================================
// SESSION READ HANDLERS
// =============================================================================

func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.Ledger.Movements(r.Context(), sessionParam(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]MovementDTO, 0, len(movements))
	for _, mv := range movements {
		dtos = append(dtos, toMovementDTO(mv))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := sessionParam(r)

	if h.Reports != nil {
		if report, ok, err := h.Reports.Get(r.Context(), id); err == nil && ok {
			writeJSON(w, http.StatusOK, report)
			return
		}
		// Cache failures fall through to recompute.
	}

	report, err := h.Service.Report(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if h.Reports != nil {
		if err := h.Reports.Set(r.Context(), report); err != nil {
			log.Printf("report cache set failed for session %s: %v", id, err)
		}
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.AuditTrail(r.Context(), sessionParam(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toAuditDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func sessionParam(r *http.Request) register.SessionID {
	return register.SessionID(chi.URLParam(r, "id"))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine error kinds to HTTP statuses. Every
// kind stays inspectable in the response body.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, register.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, register.ErrSessionAlreadyOpen):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "Session already open", Kind: "session_already_open", Details: err.Error()})
	case errors.Is(err, register.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "Invalid transition", Kind: "invalid_transition", Details: err.Error()})
	case errors.Is(err, register.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid amount", Kind: "invalid_amount", Details: err.Error()})
	case errors.Is(err, register.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Not authorized", Kind: "unauthorized", Details: err.Error()})
	case errors.Is(err, register.ErrCollaboratorUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Temporarily unavailable, retry", Kind: "collaborator_unavailable", Details: err.Error()})
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
