package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

// =============================================================================
// LOANS
// =============================================================================

const loanColumns = `id, booking_id, warehouse_id, applicant_id, pledge, amount, interest_rate,
	total_amount, loan_type, loan_term, status, terminated, accepted_terms_json, decided_by, rejection_reason,
	disbursement_date, maturity_date, version, created_at, updated_at`

// SaveLoan inserts when l.Version is 0, otherwise updates if the stored
// version still matches.
func (q *queries) SaveLoan(ctx context.Context, l *warehousing.Loan) error {
	var terms sql.NullString
	if l.AcceptedTerms != nil {
		t, err := toJSON(l.AcceptedTerms)
		if err != nil {
			return err
		}
		terms = nullString(t)
	}

	if l.Version == 0 {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO loans (`+loanColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		`,
			l.ID, string(l.BookingID), string(l.WarehouseID), l.ApplicantID, l.Pledge,
			l.Amount.String(), l.InterestRate.String(), l.TotalAmount.String(),
			nullString(l.LoanType), nullString(l.LoanTerm), string(l.Status), l.Terminated, terms,
			nullString(l.DecidedBy), nullString(l.RejectionReason),
			formatDate(l.DisbursementDate), formatDate(l.MaturityDate),
			formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				if strings.Contains(err.Error(), "loans.pledge") {
					return fmt.Errorf("%w: %s already applied to %s", generic.ErrDuplicateApplication, l.Pledge, l.BookingID)
				}
				return fmt.Errorf("loan %s: %w", l.ID, generic.ErrAlreadyExists)
			}
			return fmt.Errorf("failed to insert loan: %w", err)
		}
		l.Version = 1
		return nil
	}

	res, err := q.db.ExecContext(ctx, `
		UPDATE loans SET
			amount = ?, interest_rate = ?, total_amount = ?, loan_type = ?, loan_term = ?,
			status = ?, terminated = ?, accepted_terms_json = ?, decided_by = ?, rejection_reason = ?,
			disbursement_date = ?, maturity_date = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		l.Amount.String(), l.InterestRate.String(), l.TotalAmount.String(),
		nullString(l.LoanType), nullString(l.LoanTerm), string(l.Status), l.Terminated, terms,
		nullString(l.DecidedBy), nullString(l.RejectionReason),
		formatDate(l.DisbursementDate), formatDate(l.MaturityDate), formatTime(l.UpdatedAt),
		l.ID, l.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	if err := rowsAffectedOrConflict(res, "loan", l.ID); err != nil {
		return err
	}
	l.Version++
	return nil
}

func (q *queries) GetLoan(ctx context.Context, id string) (*warehousing.Loan, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+loanColumns+" FROM loans WHERE id = ?", id)
	l, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (q *queries) LoanExists(ctx context.Context, id string) (bool, error) {
	var count int
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM loans WHERE id = ?", id).Scan(&count)
	return count > 0, err
}

func (q *queries) ListLoans(ctx context.Context, filter warehousing.LoanFilter) ([]warehousing.Loan, error) {
	var where []string
	var args []any
	if filter.BookingID != "" {
		where = append(where, "booking_id = ?")
		args = append(args, string(filter.BookingID))
	}
	if filter.Pledge != "" {
		where = append(where, "pledge = ?")
		args = append(args, warehousing.NormalizePledge(filter.Pledge))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	query := "SELECT " + loanColumns + " FROM loans"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var out []warehousing.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func scanLoan(row rowScanner) (*warehousing.Loan, error) {
	var (
		l                      warehousing.Loan
		amount, rate, total    string
		loanType, loanTerm     sql.NullString
		terms                  sql.NullString
		decidedBy, reason      sql.NullString
		disbursement, maturity sql.NullString
		createdAt, updatedAt   string
	)
	err := row.Scan(&l.ID, &l.BookingID, &l.WarehouseID, &l.ApplicantID, &l.Pledge, &amount, &rate,
		&total, &loanType, &loanTerm, &l.Status, &l.Terminated, &terms, &decidedBy, &reason,
		&disbursement, &maturity, &l.Version, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan loan: %w", err)
	}
	l.Amount = parseDecimal(amount)
	l.InterestRate = parseDecimal(rate)
	l.TotalAmount = parseDecimal(total)
	l.LoanType = loanType.String
	l.LoanTerm = loanTerm.String
	if terms.Valid {
		l.AcceptedTerms = &warehousing.LoanTerms{}
		if err := fromJSON(terms, l.AcceptedTerms); err != nil {
			return nil, err
		}
	}
	l.DecidedBy = decidedBy.String
	l.RejectionReason = reason.String
	l.DisbursementDate = parseDate(disbursement)
	l.MaturityDate = parseDate(maturity)
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return &l, nil
}

// =============================================================================
// INVOICES
// =============================================================================

const invoiceColumns = `id, kind, invoice_no, tracking_id, booking_id, warehouse_id, amount,
	partial_payment, service_cost, fumigation_cost, expiry_monitoring_cost, pending_payment,
	status, created_by, created_at, updated_at`

// SaveInvoice upserts. Bills carry no invoice number or tracking id; those
// columns are NULL so the unique indexes ignore them.
func (q *queries) SaveInvoice(ctx context.Context, inv *warehousing.Invoice) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			pending_payment = excluded.pending_payment,
			status = excluded.status,
			updated_at = excluded.updated_at
	`,
		inv.ID, string(inv.Kind), nullString(inv.InvoiceNo), nullString(inv.TrackingID),
		string(inv.BookingID), string(inv.WarehouseID), inv.Amount.String(),
		inv.PartialPayment.String(), inv.ServiceCost.String(), inv.FumigationCost.String(),
		inv.ExpiryMonitoringCost.String(), inv.PendingPayment.String(),
		string(inv.Status), inv.CreatedBy, formatTime(inv.CreatedAt), formatTime(inv.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("invoice %s: %w", inv.InvoiceNo, generic.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to save invoice: %w", err)
	}
	return nil
}

func (q *queries) GetInvoice(ctx context.Context, id string) (*warehousing.Invoice, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE id = ?", id)
	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (q *queries) InvoiceNoExists(ctx context.Context, invoiceNo string) (bool, error) {
	var count int
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM invoices WHERE invoice_no = ?", invoiceNo).Scan(&count)
	return count > 0, err
}

func (q *queries) TrackingIDExists(ctx context.Context, trackingID string) (bool, error) {
	var count int
	err := q.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM invoices WHERE tracking_id = ?", trackingID).Scan(&count)
	return count > 0, err
}

func (q *queries) ListInvoices(ctx context.Context, bookingID generic.BookingID) ([]warehousing.Invoice, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE booking_id = ? ORDER BY created_at, id",
		string(bookingID))
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var out []warehousing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func scanInvoice(row rowScanner) (*warehousing.Invoice, error) {
	var (
		inv                         warehousing.Invoice
		invoiceNo, trackingID       sql.NullString
		amount, partial, service    string
		fumigation, expiry, pending string
		createdAt, updatedAt        string
	)
	err := row.Scan(&inv.ID, &inv.Kind, &invoiceNo, &trackingID, &inv.BookingID, &inv.WarehouseID, &amount,
		&partial, &service, &fumigation, &expiry, &pending,
		&inv.Status, &inv.CreatedBy, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}
	inv.InvoiceNo = invoiceNo.String
	inv.TrackingID = trackingID.String
	inv.Amount = parseDecimal(amount)
	inv.PartialPayment = parseDecimal(partial)
	inv.ServiceCost = parseDecimal(service)
	inv.FumigationCost = parseDecimal(fumigation)
	inv.ExpiryMonitoringCost = parseDecimal(expiry)
	inv.PendingPayment = parseDecimal(pending)
	inv.CreatedAt = parseTime(createdAt)
	inv.UpdatedAt = parseTime(updatedAt)
	return &inv, nil
}
