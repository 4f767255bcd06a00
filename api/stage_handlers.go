package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

// =============================================================================
// WEIGHBRIDGE
// =============================================================================

func (h *Handler) AddWeighbridge(w http.ResponseWriter, r *http.Request) {
	var req WeighbridgeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	wb, err := h.Service.AddWeighbridge(r.Context(), identityFrom(r), warehousing.AddWeighbridgeCommand{
		BookingID:   bookingID(r),
		Date:        date(req.Date),
		Time:        req.Time,
		Gross:       dec(req.Gross),
		Tare:        dec(req.Tare),
		TruckNumber: req.TruckNumber,
		DriverName:  req.DriverName,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWeighbridgeDTO(wb))
}

func (h *Handler) GetWeighbridge(w http.ResponseWriter, r *http.Request) {
	wb, err := h.Service.GetWeighbridge(r.Context(), identityFrom(r), bookingID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeighbridgeDTO(wb))
}

// =============================================================================
// DEPOSIT + GRADING
// =============================================================================

func (h *Handler) AddDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	d, err := h.Service.AddDeposit(r.Context(), identityFrom(r), warehousing.AddDepositCommand{
		BookingID:        bookingID(r),
		DepositDate:      date(req.DepositDate),
		Slot:             req.Slot,
		CommodityType:    warehousing.CommodityType(req.CommodityType),
		RevalidationDate: date(req.RevalidationDate),
		ExpiryDate:       date(req.ExpiryDate),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDepositDTO(d))
}

func (h *Handler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.GetDeposit(r.Context(), identityFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDepositDTO(d))
}

// SearchDeposits filters by ?warehouse_id, ?booking_id and ?grade.
func (h *Handler) SearchDeposits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.Service.SearchDeposits(r.Context(), identityFrom(r), warehousing.DepositFilter{
		WarehouseID: generic.WarehouseID(q.Get("warehouse_id")),
		BookingID:   generic.BookingID(q.Get("booking_id")),
		Grade:       q.Get("grade"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]DepositDTO, len(list))
	for i := range list {
		dtos[i] = toDepositDTO(&list[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) AddGrade(w http.ResponseWriter, r *http.Request) {
	var req GradeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	d, err := h.Service.AddGrade(r.Context(), identityFrom(r), warehousing.AddGradeCommand{
		DepositID:      chi.URLParam(r, "id"),
		GradeDate:      date(req.GradeDate),
		Grade:          req.Grade,
		ForeignMatter:  dec(req.ForeignMatter),
		OtherFoodGrain: dec(req.OtherFoodGrain),
		Other:          dec(req.Other),
		DamagedGrain:   dec(req.DamagedGrain),
		ImmatureGrain:  dec(req.ImmatureGrain),
		WeevilledGrain: dec(req.WeevilledGrain),
		AssignerName:   req.AssignerName,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDepositDTO(d))
}

// =============================================================================
// WITHDRAWAL
// =============================================================================

func (h *Handler) AllocateWithdrawalID(w http.ResponseWriter, r *http.Request) {
	id, err := h.Service.AllocateWithdrawalID(r.Context(), identityFrom(r), bookingID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WithdrawalIDDTO{BookingID: string(bookingID(r)), WithdrawalID: id})
}

func (h *Handler) AddShipping(w http.ResponseWriter, r *http.Request) {
	var req ShipmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	cmd := warehousing.AddShippingCommand{
		BookingID:   bookingID(r),
		WarehouseID: generic.WarehouseID(req.WarehouseID),
		Mode:        warehousing.WithdrawalMode(req.Mode),
		TotalBags:   req.TotalBags,
		TruckNumber: req.TruckNumber,
		DriverName:  req.DriverName,
	}
	for _, l := range req.Lines {
		cmd.Lines = append(cmd.Lines, warehousing.ShipmentLine{ItemName: l.ItemName, Quantity: dec(l.Quantity)})
	}

	sh, err := h.Service.AddShipping(r.Context(), identityFrom(r), cmd)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShipmentDTO(sh))
}

func (h *Handler) ListShipments(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListShipments(r.Context(), identityFrom(r), bookingID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dtos := make([]ShipmentDTO, len(list))
	for i := range list {
		dtos[i] = toShipmentDTO(&list[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}
