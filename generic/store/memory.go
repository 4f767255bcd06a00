// Package store provides in-memory implementations of the generic store
// interfaces.
package store

import (
	"context"
	"sync"

	"github.com/warp/warehouse-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements generic.MovementStore and generic.AuditLog.
type Memory struct {
	mu          sync.RWMutex
	movements   map[generic.WarehouseID][]generic.Movement
	idempotency map[string]bool
	audit       map[generic.BookingID][]generic.AuditEntry
}

var (
	_ generic.MovementStore = (*Memory)(nil)
	_ generic.AuditLog      = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		movements:   make(map[generic.WarehouseID][]generic.Movement),
		idempotency: make(map[string]bool),
		audit:       make(map[generic.BookingID][]generic.AuditEntry),
	}
}

// AppendMovement adds a single movement. Append-only.
func (m *Memory) AppendMovement(_ context.Context, mv generic.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mv.IdempotencyKey != "" && m.idempotency[mv.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}

	m.movements[mv.WarehouseID] = append(m.movements[mv.WarehouseID], mv)

	if mv.IdempotencyKey != "" {
		m.idempotency[mv.IdempotencyKey] = true
	}
	return nil
}

// Movements returns a copy of the history of a warehouse, in append order.
func (m *Memory) Movements(_ context.Context, warehouseID generic.WarehouseID) ([]generic.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	moves := m.movements[warehouseID]
	out := make([]generic.Movement, len(moves))
	copy(out, moves)
	return out, nil
}

func (m *Memory) MovementExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, entry generic.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit[entry.BookingID] = append(m.audit[entry.BookingID], entry)
	return nil
}

func (m *Memory) AuditTrail(_ context.Context, bookingID generic.BookingID) ([]generic.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.audit[bookingID]
	out := make([]generic.AuditEntry, len(entries))
	copy(out, entries)
	return out, nil
}
