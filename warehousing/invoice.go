package warehousing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/warehouse-engine/generic"
)

// =============================================================================
// INVOICE / BILL
// =============================================================================

// Invoices and bills are append-only. Both need the goods weighed, deposited
// and graded; a booking carries at most one invoice and any number of bills.

func loadInvoice(ctx context.Context, st Store, id string) (*Invoice, error) {
	inv, err := st.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, generic.NewNotFoundError("invoice", id)
	}
	return inv, nil
}

func requireGraded(b *Booking, to string) error {
	if !b.Flags().Graded {
		return transitionError(b, to,
			fmt.Errorf("%w: weighbridge, deposit and grading must be done first", generic.ErrPreconditionFailed))
	}
	return nil
}

type AddInvoiceCommand struct {
	BookingID generic.BookingID
	Amount    decimal.Decimal // defaults to the booking's total price
}

func (s *Service) AddInvoice(ctx context.Context, actor Identity, cmd AddInvoiceCommand) (*Invoice, error) {
	if cmd.Amount.IsNegative() {
		return nil, generic.NewValidationError("amount", "must not be negative")
	}

	var inv *Invoice
	err := s.Store.WithTx(ctx, func(tx Store) error {
		b, w, err := loadForStaff(ctx, tx, actor, cmd.BookingID)
		if err != nil {
			return err
		}
		if err := requireGraded(b, string(KindInvoice)); err != nil {
			return err
		}
		existing, err := tx.ListInvoices(ctx, b.ID)
		if err != nil {
			return err
		}
		for i := range existing {
			if existing[i].Kind == KindInvoice {
				return fmt.Errorf("invoice for booking %s: %w", b.BookingNo, generic.ErrAlreadyExists)
			}
		}

		invoiceNo, err := s.uniqueID(ctx, s.IDs.InvoiceNo, tx.InvoiceNoExists)
		if err != nil {
			return err
		}
		trackingID, err := s.uniqueID(ctx, s.IDs.TrackingID, tx.TrackingIDExists)
		if err != nil {
			return err
		}

		amount := cmd.Amount
		if amount.IsZero() {
			amount = b.TotalPrice
		}
		now := s.now()
		inv = &Invoice{
			ID:             uuid.NewString(),
			Kind:           KindInvoice,
			InvoiceNo:      invoiceNo,
			TrackingID:     trackingID,
			BookingID:      b.ID,
			WarehouseID:    w.ID,
			Amount:         amount,
			PendingPayment: b.PendingPrice,
			Status:         InvoicePending,
			CreatedBy:      actor.UserID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.SaveInvoice(ctx, inv); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditInvoiceAdded, b, map[string]any{
			"invoice_no": invoiceNo,
			"amount":     amount.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("invoice_no", inv.InvoiceNo).Str("booking_id", string(inv.BookingID)).Msg("invoice added")
	return inv, nil
}

type GenerateBillCommand struct {
	BookingID            generic.BookingID
	PartialPayment       decimal.Decimal
	ServiceCost          decimal.Decimal
	FumigationCost       decimal.Decimal
	ExpiryMonitoringCost decimal.Decimal
}

func (cmd GenerateBillCommand) otherCosts() decimal.Decimal {
	return cmd.ServiceCost.Add(cmd.FumigationCost).Add(cmd.ExpiryMonitoringCost)
}

// GenerateBill records a partial payment. The part of the payment left after
// the service, fumigation and expiry monitoring charges reduces the booking's
// pending price.
func (s *Service) GenerateBill(ctx context.Context, actor Identity, cmd GenerateBillCommand) (*Invoice, error) {
	for name, v := range map[string]decimal.Decimal{
		"partial_payment":               cmd.PartialPayment,
		"service_cost":                  cmd.ServiceCost,
		"fumigation_cost":               cmd.FumigationCost,
		"expiry_date_monitoring_charge": cmd.ExpiryMonitoringCost,
	} {
		if v.IsNegative() {
			return nil, generic.NewValidationError(name, "must not be negative")
		}
	}

	var bill *Invoice
	err := s.Store.WithTx(ctx, func(tx Store) error {
		b, err := loadBooking(ctx, tx, cmd.BookingID)
		if err != nil {
			return err
		}
		w, err := loadWarehouse(ctx, tx, b.WarehouseID)
		if err != nil {
			return err
		}
		if err := authorizeParty(actor, b, w); err != nil {
			return err
		}
		if err := requireGraded(b, string(KindBill)); err != nil {
			return err
		}

		other := cmd.otherCosts()
		if cmd.PartialPayment.GreaterThan(b.TotalPrice) {
			return generic.NewValidationError("partial_payment", "must not exceed the total price")
		}
		if cmd.PartialPayment.LessThan(other) {
			return generic.NewValidationError("partial_payment",
				fmt.Sprintf("must cover the other costs of %s", other.StringFixed(2)))
		}
		pending := b.PendingPrice.Sub(cmd.PartialPayment.Sub(other))
		if pending.IsNegative() {
			return generic.NewValidationError("partial_payment", "exceeds the pending payment")
		}
		pending = generic.Round2(pending)

		now := s.now()
		b.PendingPrice = pending
		b.UpdatedAt = now
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}

		bill = &Invoice{
			ID:                   uuid.NewString(),
			Kind:                 KindBill,
			BookingID:            b.ID,
			WarehouseID:          w.ID,
			Amount:               cmd.PartialPayment,
			PartialPayment:       cmd.PartialPayment,
			ServiceCost:          cmd.ServiceCost,
			FumigationCost:       cmd.FumigationCost,
			ExpiryMonitoringCost: cmd.ExpiryMonitoringCost,
			PendingPayment:       pending,
			Status:               InvoicePending,
			CreatedBy:            actor.UserID,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if pending.IsZero() {
			bill.Status = InvoicePaid
		}
		if err := tx.SaveInvoice(ctx, bill); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditBillGenerated, b, map[string]any{
			"partial_payment": cmd.PartialPayment.String(),
			"pending":         pending.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("booking_id", string(bill.BookingID)).Str("pending", bill.PendingPayment.String()).Msg("bill generated")
	return bill, nil
}

// MarkInvoicePaid settles an invoice and with it the booking's pending price.
func (s *Service) MarkInvoicePaid(ctx context.Context, actor Identity, id string) (*Invoice, error) {
	var inv *Invoice
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		inv, err = loadInvoice(ctx, tx, id)
		if err != nil {
			return err
		}
		b, _, err := loadForStaff(ctx, tx, actor, inv.BookingID)
		if err != nil {
			return err
		}
		if inv.Status == InvoicePaid {
			return fmt.Errorf("invoice %s: %w", id, generic.ErrAlreadyInState)
		}

		now := s.now()
		inv.Status = InvoicePaid
		inv.PendingPayment = decimal.Zero
		inv.UpdatedAt = now
		if err := tx.SaveInvoice(ctx, inv); err != nil {
			return err
		}
		b.PendingPrice = decimal.Zero
		b.UpdatedAt = now
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditInvoicePaid, b, map[string]any{"invoice_id": id})
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// RemindInvoice nudges the customer about an unpaid invoice.
func (s *Service) RemindInvoice(ctx context.Context, actor Identity, id string) (*Invoice, error) {
	inv, err := loadInvoice(ctx, s.Store, id)
	if err != nil {
		return nil, err
	}
	b, _, err := loadForStaff(ctx, s.Store, actor, inv.BookingID)
	if err != nil {
		return nil, err
	}
	if inv.Status == InvoicePaid {
		return nil, fmt.Errorf("invoice %s is paid: %w", id, generic.ErrPreconditionFailed)
	}
	s.notify(ctx, Notification{
		UserID:   b.UserID,
		Message:  fmt.Sprintf("Your invoice for booking %s is due. %s is pending.", b.BookingNo, inv.PendingPayment.StringFixed(2)),
		Type:     NotifyWarning,
		Metadata: map[string]string{"invoice_id": inv.ID, "booking_id": string(b.ID)},
	})
	return inv, nil
}

func (s *Service) ListInvoices(ctx context.Context, actor Identity, bookingID generic.BookingID) ([]Invoice, error) {
	if _, err := s.GetBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return s.Store.ListInvoices(ctx, bookingID)
}
