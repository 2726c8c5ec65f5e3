/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the API contract, decoupled from the domain types
  so fields can be renamed and versioned without touching the engine.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

Money values travel as two-digit decimal strings ("100.00"), never JSON
numbers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/mirlondev/magasin-sub002/money"
	"github.com/mirlondev/magasin-sub002/register"
)

// =============================================================================
// REGISTERS
// =============================================================================

type RegisterDTO struct {
	ID       string `json:"id"`
	Number   string `json:"number"`
	StoreID  string `json:"store_id"`
	Active   bool   `json:"active"`
	Location string `json:"location,omitempty"`
}

type CreateRegisterRequest struct {
	ID       string `json:"id,omitempty"`
	Number   string `json:"number"`
	StoreID  string `json:"store_id"`
	Active   *bool  `json:"active,omitempty"`
	Location string `json:"location,omitempty"`
}

type AvailabilityDTO struct {
	RegisterID string `json:"register_id"`
	Available  bool   `json:"available"`
}

// =============================================================================
// SESSIONS
// =============================================================================

type SessionDTO struct {
	ID                string  `json:"id"`
	Number            int64   `json:"number"`
	StoreID           string  `json:"store_id"`
	RegisterID        string  `json:"register_id"`
	CashierID         string  `json:"cashier_id"`
	Status            string  `json:"status"`
	OpeningBalance    string  `json:"opening_balance"`
	ActualBalance     string  `json:"actual_balance"`
	ClosingBalance    string  `json:"closing_balance"`
	TotalSales        string  `json:"total_sales"`
	TotalRefunds      string  `json:"total_refunds"`
	NetSales          string  `json:"net_sales"`
	ExpectedBalance   string  `json:"expected_balance"`
	Discrepancy       string  `json:"discrepancy"`
	TotalTransactions int64   `json:"total_transactions"`
	Notes             string  `json:"notes,omitempty"`
	StartTime         string  `json:"start_time"`
	EndTime           *string `json:"end_time,omitempty"`
}

func toSessionDTO(s *register.ShiftSession) SessionDTO {
	dto := SessionDTO{
		ID:                string(s.ID),
		Number:            s.Number,
		StoreID:           s.StoreID,
		RegisterID:        string(s.RegisterID),
		CashierID:         string(s.CashierID),
		Status:            string(s.Status),
		OpeningBalance:    s.OpeningBalance.String(),
		ActualBalance:     s.ActualBalance.String(),
		ClosingBalance:    s.ClosingBalance.String(),
		TotalSales:        s.TotalSales.String(),
		TotalRefunds:      s.TotalRefunds.String(),
		NetSales:          s.NetSales().String(),
		ExpectedBalance:   s.ExpectedBalance().String(),
		Discrepancy:       s.Discrepancy.String(),
		TotalTransactions: s.TotalTransactions,
		Notes:             s.Notes,
		StartTime:         s.StartTime.UTC().Format(time.RFC3339),
	}
	if s.EndTime != nil {
		end := s.EndTime.UTC().Format(time.RFC3339)
		dto.EndTime = &end
	}
	return dto
}

type OpenSessionRequest struct {
	RegisterID     string      `json:"register_id"`
	OpeningBalance money.Money `json:"opening_balance"`
	Notes          string      `json:"notes,omitempty"`
}

type CashRequest struct {
	Amount money.Money `json:"amount"`
	Reason string      `json:"reason,omitempty"`
}

type ReasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

type CloseSessionRequest struct {
	// CountedBalance is the manual cash count; omitted means "close at
	// the ledger-derived balance".
	CountedBalance *money.Money `json:"counted_balance,omitempty"`
	Notes          string       `json:"notes,omitempty"`
}

type PostPaymentRequest struct {
	Method    string      `json:"method"`
	Direction string      `json:"direction"`
	Amount    money.Money `json:"amount"`
}

// =============================================================================
// MOVEMENTS / AUDIT
// =============================================================================

type MovementDTO struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	Amount     string `json:"amount"`
	Kind       string `json:"kind"`
	Reason     string `json:"reason,omitempty"`
	ActorID    string `json:"actor_id"`
	RecordedAt string `json:"recorded_at"`
}

func toMovementDTO(mv register.CashMovement) MovementDTO {
	return MovementDTO{
		ID:         string(mv.ID),
		SessionID:  string(mv.SessionID),
		Amount:     mv.Amount.String(),
		Kind:       string(mv.Kind),
		Reason:     mv.Reason,
		ActorID:    string(mv.ActorID),
		RecordedAt: mv.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
}

type AuditEntryDTO struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	ActorID   string            `json:"actor_id"`
	Action    string            `json:"action"`
	At        string            `json:"at"`
	Details   map[string]string `json:"details,omitempty"`
}

func toAuditDTO(e register.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:        e.ID,
		SessionID: string(e.SessionID),
		ActorID:   string(e.ActorID),
		Action:    string(e.Action),
		At:        e.At.UTC().Format(time.RFC3339Nano),
		Details:   e.Details,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}
