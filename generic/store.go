/*
store.go - Persistence interfaces for the capacity ledger and audit trail

PURPOSE:
  Defines the narrow interfaces the generic engine needs from a database.
  Domain packages compose these into their own, wider store interfaces.

APPEND-ONLY CONTRACT:
  Movements and audit entries are never updated or deleted:
  - AppendMovement(): Single movement write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Every movement carries an idempotency key ("commit:<booking>",
  "release:<shipment>"). A second write with the same key is rejected with
  ErrDuplicateIdempotencyKey, which is how a booking's capacity is debited
  exactly once even if Accept runs twice.

IMPLEMENTATIONS:
  - store/sqlite: SQLite tables capacity_movements / audit_log
  - store/memory: In-memory for tests and demos
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// MOVEMENT STORE - Append-only capacity history
// =============================================================================

type MovementStore interface {
	// AppendMovement persists a movement. Returns ErrDuplicateIdempotencyKey
	// if the key already exists.
	AppendMovement(ctx context.Context, m Movement) error

	// Movements returns all movements of a warehouse, oldest first.
	Movements(ctx context.Context, warehouseID WarehouseID) ([]Movement, error)

	// MovementExists checks if an idempotency key already exists.
	MovementExists(ctx context.Context, idempotencyKey string) (bool, error)
}

// =============================================================================
// AUDIT LOG - Who did which transition when
// =============================================================================

type AuditAction string

const (
	AuditWarehouseCreated  AuditAction = "warehouse_created"
	AuditWarehouseArchived AuditAction = "warehouse_archived"
	AuditBookingCreated    AuditAction = "booking_created"
	AuditBookingAccepted   AuditAction = "booking_accepted"
	AuditBookingRejected   AuditAction = "booking_rejected"
	AuditBookingCancelled  AuditAction = "booking_cancelled"
	AuditBookingExpired    AuditAction = "booking_expired"
	AuditWeighbridgeAdded  AuditAction = "weighbridge_added"
	AuditDepositAdded      AuditAction = "deposit_added"
	AuditGradeAdded        AuditAction = "grade_added"
	AuditLoanApplied       AuditAction = "loan_applied"
	AuditLoanAccepted      AuditAction = "loan_accepted"
	AuditLoanRejected      AuditAction = "loan_rejected"
	AuditLoanDisbursed     AuditAction = "loan_disbursed"
	AuditLoanClosed        AuditAction = "loan_closed"
	AuditShipmentAdded     AuditAction = "shipment_added"
	AuditWithdrawalIssued  AuditAction = "withdrawal_id_issued"
	AuditInvoiceAdded      AuditAction = "invoice_added"
	AuditBillGenerated     AuditAction = "bill_generated"
	AuditInvoicePaid       AuditAction = "invoice_paid"
)

// AuditEntry records who did what when.
type AuditEntry struct {
	ID          string
	Timestamp   time.Time
	ActorID     string // "system" for the expiry sweep
	Action      AuditAction
	WarehouseID WarehouseID
	BookingID   BookingID
	Payload     map[string]any
}

// AuditLog stores audit entries. Also append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	AuditTrail(ctx context.Context, bookingID BookingID) ([]AuditEntry, error)
}
