package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

// =============================================================================
// LOANS
// =============================================================================

func (h *Handler) ApplyForLoan(w http.ResponseWriter, r *http.Request) {
	var req LoanApplicationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	l, err := h.Service.ApplyForLoan(r.Context(), identityFrom(r), warehousing.ApplyForLoanCommand{
		BookingID:    bookingID(r),
		Pledge:       req.Pledge,
		Amount:       dec(req.Amount),
		InterestRate: dec(req.InterestRate),
		LoanType:     req.LoanType,
		LoanTerm:     req.LoanTerm,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanDTO(l))
}

// ListLoans lists the loans of a booking, filtered by ?pledge and ?status.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.Service.ListLoans(r.Context(), identityFrom(r), warehousing.LoanFilter{
		BookingID: bookingID(r),
		Pledge:    q.Get("pledge"),
		Status:    warehousing.LoanStatus(q.Get("status")),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]LoanDTO, len(list))
	for i := range list {
		dtos[i] = toLoanDTO(&list[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) AcceptLoan(w http.ResponseWriter, r *http.Request) {
	var req LoanAcceptRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	l, err := h.Service.AcceptLoan(r.Context(), identityFrom(r), chi.URLParam(r, "id"), warehousing.LoanTerms{
		Amount:         dec(req.Amount),
		InterestRate:   dec(req.InterestRate),
		RepaymentTerms: req.RepaymentTerms,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(l))
}

func (h *Handler) RejectLoan(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	l, err := h.Service.RejectLoan(r.Context(), identityFrom(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(l))
}

func (h *Handler) DisburseLoan(w http.ResponseWriter, r *http.Request) {
	var req DisburseRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	l, err := h.Service.DisburseLoan(r.Context(), identityFrom(r), chi.URLParam(r, "id"), warehousing.DisburseLoanCommand{
		DisbursementDate: date(req.DisbursementDate),
		MaturityDate:     date(req.MaturityDate),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(l))
}

func (h *Handler) CloseLoan(w http.ResponseWriter, r *http.Request) {
	l, err := h.Service.CloseLoan(r.Context(), identityFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(l))
}

// =============================================================================
// INVOICES + BILLS
// =============================================================================

func (h *Handler) AddInvoice(w http.ResponseWriter, r *http.Request) {
	var req InvoiceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	inv, err := h.Service.AddInvoice(r.Context(), identityFrom(r), warehousing.AddInvoiceCommand{
		BookingID: bookingID(r),
		Amount:    dec(req.Amount),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv))
}

func (h *Handler) GenerateBill(w http.ResponseWriter, r *http.Request) {
	var req BillRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	inv, err := h.Service.GenerateBill(r.Context(), identityFrom(r), warehousing.GenerateBillCommand{
		BookingID:            bookingID(r),
		PartialPayment:       dec(req.PartialPayment),
		ServiceCost:          dec(req.ServiceCost),
		FumigationCost:       dec(req.FumigationCost),
		ExpiryMonitoringCost: dec(req.ExpiryMonitoringCost),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv))
}

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListInvoices(r.Context(), identityFrom(r), generic.BookingID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]InvoiceDTO, len(list))
	for i := range list {
		dtos[i] = toInvoiceDTO(&list[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) MarkInvoicePaid(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Service.MarkInvoicePaid(r.Context(), identityFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) RemindInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Service.RemindInvoice(r.Context(), identityFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}
