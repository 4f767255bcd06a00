/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags, checked by
  decodeAndValidate before a handler builds the domain command. Decimals
  travel as strings ("12.50") and dates as "2006-01-02"; the custom "decimal"
  and "date" rules are registered in validate.go. Business rules (windows,
  capacity, state) stay in the warehousing package.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/warehouse.go: WarehouseJSON, the create-warehouse body
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/warehouse-engine/generic"
	"github.com/warp/warehouse-engine/warehousing"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type ContactDTO struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
	Email  string `json:"email" validate:"omitempty,email"`
}

type ItemRequestDTO struct {
	Commodity string `json:"commodity" validate:"required"`
	Weight    string `json:"weight" validate:"required,decimal"`
	Quantity  string `json:"quantity" validate:"required,decimal"`
}

type CreateBookingRequest struct {
	WarehouseID       string           `json:"warehouse_id" validate:"required"`
	From              string           `json:"from" validate:"required,date"`
	To                string           `json:"to" validate:"required,date"`
	Items             []ItemRequestDTO `json:"items" validate:"required,min=1,dive"`
	RequestedCapacity string           `json:"requested_capacity" validate:"required,decimal"`
	TotalWeight       string           `json:"total_weight" validate:"omitempty,decimal"`
	NoOfBags          int              `json:"no_of_bags" validate:"gte=0"`
	BagSize           string           `json:"bag_size" validate:"omitempty,decimal"`
	ProductName       string           `json:"product_name"`
	Contact           ContactDTO       `json:"contact"`
}

type ReasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type WeighbridgeRequest struct {
	Date        string `json:"date" validate:"required,date"`
	Time        string `json:"time"`
	Gross       string `json:"gross" validate:"required,decimal"`
	Tare        string `json:"tare" validate:"required,decimal"`
	TruckNumber string `json:"truck_number"`
	DriverName  string `json:"driver_name"`
}

type DepositRequest struct {
	DepositDate      string `json:"deposit_date" validate:"required,date"`
	Slot             string `json:"slot"`
	CommodityType    string `json:"commodity_type" validate:"required,oneof=exchangeCommodity non-exchangeCommodity"`
	RevalidationDate string `json:"revalidation_date" validate:"omitempty,date"`
	ExpiryDate       string `json:"expiry_date" validate:"omitempty,date"`
}

type GradeRequest struct {
	GradeDate      string `json:"grade_date" validate:"required,date"`
	Grade          string `json:"grade" validate:"required,oneof=grade-I grade-II grade-III"`
	ForeignMatter  string `json:"foreign_matter" validate:"omitempty,decimal"`
	OtherFoodGrain string `json:"other_food_grain" validate:"omitempty,decimal"`
	Other          string `json:"other" validate:"omitempty,decimal"`
	DamagedGrain   string `json:"damaged_grain" validate:"omitempty,decimal"`
	ImmatureGrain  string `json:"immature_grain" validate:"omitempty,decimal"`
	WeevilledGrain string `json:"weevilled_grain" validate:"omitempty,decimal"`
	AssignerName   string `json:"assigner_name"`
}

type LoanApplicationRequest struct {
	Pledge       string `json:"pledge" validate:"required"`
	Amount       string `json:"amount" validate:"required,decimal"`
	InterestRate string `json:"interest_rate" validate:"required,decimal"`
	LoanType     string `json:"loan_type"`
	LoanTerm     string `json:"loan_term"`
}

// LoanAcceptRequest overrides the applied terms; empty fields keep them.
type LoanAcceptRequest struct {
	Amount         string `json:"amount" validate:"omitempty,decimal"`
	InterestRate   string `json:"interest_rate" validate:"omitempty,decimal"`
	RepaymentTerms string `json:"repayment_terms"`
}

type DisburseRequest struct {
	DisbursementDate string `json:"disbursement_date" validate:"omitempty,date"`
	MaturityDate     string `json:"maturity_date" validate:"omitempty,date"`
}

type ShipmentLineDTO struct {
	ItemName string `json:"item_name" validate:"required"`
	Quantity string `json:"quantity" validate:"required,decimal"`
}

type ShipmentRequest struct {
	WarehouseID string            `json:"warehouse_id" validate:"required"`
	Mode        string            `json:"mode" validate:"required,oneof=partial full"`
	Lines       []ShipmentLineDTO `json:"lines" validate:"omitempty,dive"`
	TotalBags   int               `json:"total_bags" validate:"gte=0"`
	TruckNumber string            `json:"truck_number"`
	DriverName  string            `json:"driver_name"`
}

type InvoiceRequest struct {
	Amount string `json:"amount" validate:"omitempty,decimal"`
}

type BillRequest struct {
	PartialPayment       string `json:"partial_payment" validate:"required,decimal"`
	ServiceCost          string `json:"service_cost" validate:"omitempty,decimal"`
	FumigationCost       string `json:"fumigation_cost" validate:"omitempty,decimal"`
	ExpiryMonitoringCost string `json:"expiry_monitoring_cost" validate:"omitempty,decimal"`
}

type RatingRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type PriceTierDTO struct {
	Weight      decimal.Decimal `json:"weight"`
	PricePerDay decimal.Decimal `json:"price_per_day"`
}

type CommodityDTO struct {
	Name    string         `json:"name"`
	AddedBy string         `json:"added_by,omitempty"`
	Tiers   []PriceTierDTO `json:"tiers"`
}

type WarehouseDTO struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	OwnerID           string          `json:"owner_id"`
	ManagerID         string          `json:"manager_id,omitempty"`
	Address           string          `json:"address,omitempty"`
	Unit              string          `json:"unit"`
	TotalCapacity     decimal.Decimal `json:"total_capacity"`
	FilledCapacity    decimal.Decimal `json:"filled_capacity"`
	RemainingCapacity decimal.Decimal `json:"remaining_capacity"`
	Commodities       []CommodityDTO  `json:"commodities"`
	AvgRating         decimal.Decimal `json:"avg_rating"`
	Ratings           int             `json:"ratings"`
	Active            bool            `json:"active"`
	Archived          bool            `json:"archived"`
	Version           int64           `json:"version"`
	CreatedAt         string          `json:"created_at"`
}

type LineItemDTO struct {
	Commodity   string          `json:"commodity"`
	Weight      decimal.Decimal `json:"weight"`
	PricePerDay decimal.Decimal `json:"price_per_day"`
	Quantity    decimal.Decimal `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
}

type BookingFlagsDTO struct {
	WeighbridgeAdded bool `json:"weighbridge_added"`
	Deposited        bool `json:"deposited"`
	Graded           bool `json:"graded"`
	Withdrawn        bool `json:"withdrawn"`
	ItemInWarehouse  bool `json:"item_in_warehouse"`
}

type GradeDTO struct {
	Grade          string          `json:"grade"`
	ForeignMatter  decimal.Decimal `json:"foreign_matter"`
	OtherFoodGrain decimal.Decimal `json:"other_food_grain"`
	Other          decimal.Decimal `json:"other"`
	DamagedGrain   decimal.Decimal `json:"damaged_grain"`
	ImmatureGrain  decimal.Decimal `json:"immature_grain"`
	WeevilledGrain decimal.Decimal `json:"weevilled_grain"`
	AssignerName   string          `json:"assigner_name,omitempty"`
	GradeDate      string          `json:"grade_date"`
	GradedBy       string          `json:"graded_by"`
}

type BookingDTO struct {
	ID                string          `json:"id"`
	BookingNo         string          `json:"booking_no"`
	UserID            string          `json:"user_id"`
	WarehouseID       string          `json:"warehouse_id"`
	From              string          `json:"from"`
	To                string          `json:"to"`
	Contact           ContactDTO      `json:"contact"`
	ProductName       string          `json:"product_name,omitempty"`
	Unit              string          `json:"unit"`
	RequestedCapacity decimal.Decimal `json:"requested_capacity"`
	Items             []LineItemDTO   `json:"items"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	PendingPrice      decimal.Decimal `json:"pending_price"`
	TotalWeight       decimal.Decimal `json:"total_weight"`
	NoOfBags          int             `json:"no_of_bags"`
	BagSize           decimal.Decimal `json:"bag_size"`
	Status            string          `json:"status"`
	Stage             string          `json:"stage"`
	Flags             BookingFlagsDTO `json:"flags"`
	AcceptedBy        string          `json:"accepted_by,omitempty"`
	RejectedBy        string          `json:"rejected_by,omitempty"`
	Reasons           []string        `json:"reasons,omitempty"`
	DepositID         string          `json:"deposit_id,omitempty"`
	WeighbridgeID     string          `json:"weighbridge_id,omitempty"`
	Grade             *GradeDTO       `json:"grade,omitempty"`
	DepositExpiry     string          `json:"deposit_expiry,omitempty"`
	WithdrawalID      string          `json:"withdrawal_id,omitempty"`
	Outstanding       decimal.Decimal `json:"outstanding_capacity"`
	Version           int64           `json:"version"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

type WeighbridgeDTO struct {
	ID          string          `json:"id"`
	BookingID   string          `json:"booking_id"`
	Date        string          `json:"date"`
	Time        string          `json:"time,omitempty"`
	Gross       decimal.Decimal `json:"gross"`
	Tare        decimal.Decimal `json:"tare"`
	Net         decimal.Decimal `json:"net"`
	Unit        string          `json:"unit"`
	TruckNumber string          `json:"truck_number,omitempty"`
	DriverName  string          `json:"driver_name,omitempty"`
	RecordedBy  string          `json:"recorded_by"`
}

type DepositDTO struct {
	ID               string          `json:"id"`
	BookingID        string          `json:"booking_id"`
	WarehouseID      string          `json:"warehouse_id"`
	DepositDate      string          `json:"deposit_date"`
	Slot             string          `json:"slot,omitempty"`
	CommodityType    string          `json:"commodity_type"`
	RevalidationDate string          `json:"revalidation_date,omitempty"`
	ExpiryDate       string          `json:"expiry_date,omitempty"`
	TotalWeight      decimal.Decimal `json:"total_weight"`
	Unit             string          `json:"unit"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	Status           string          `json:"status"`
	Grade            *GradeDTO       `json:"grade,omitempty"`
}

type LoanFlagsDTO struct {
	Applied    bool `json:"applied"`
	Requested  bool `json:"requested"`
	Approved   bool `json:"approved"`
	Disbursed  bool `json:"disbursed"`
	Active     bool `json:"active"`
	Closed     bool `json:"closed"`
	Rejected   bool `json:"rejected"`
	Terminated bool `json:"terminated"`
}

type LoanDTO struct {
	ID               string          `json:"id"`
	BookingID        string          `json:"booking_id"`
	WarehouseID      string          `json:"warehouse_id"`
	ApplicantID      string          `json:"applicant_id"`
	Pledge           string          `json:"pledge"`
	Amount           decimal.Decimal `json:"amount"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	LoanType         string          `json:"loan_type,omitempty"`
	LoanTerm         string          `json:"loan_term,omitempty"`
	Status           string          `json:"status"`
	Flags            LoanFlagsDTO    `json:"flags"`
	RepaymentTerms   string          `json:"repayment_terms,omitempty"`
	DecidedBy        string          `json:"decided_by,omitempty"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
	DisbursementDate string          `json:"disbursement_date,omitempty"`
	MaturityDate     string          `json:"maturity_date,omitempty"`
	CreatedAt        string          `json:"created_at"`
}

type ShipmentDTO struct {
	ID               string            `json:"id"`
	BookingID        string            `json:"booking_id"`
	WarehouseID      string            `json:"warehouse_id"`
	WithdrawalID     string            `json:"withdrawal_id,omitempty"`
	Mode             string            `json:"mode"`
	Lines            []ShipmentLineDTO `json:"lines"`
	TotalBags        int               `json:"total_bags"`
	TruckNumber      string            `json:"truck_number,omitempty"`
	DriverName       string            `json:"driver_name,omitempty"`
	Status           string            `json:"status"`
	Quantity         decimal.Decimal   `json:"quantity"`
	ReleasedCapacity decimal.Decimal   `json:"released_capacity"`
	Unit             string            `json:"unit"`
	LateFee          decimal.Decimal   `json:"late_fee"`
	ShippedAt        string            `json:"shipped_at"`
}

type InvoiceDTO struct {
	ID                   string          `json:"id"`
	Kind                 string          `json:"kind"`
	InvoiceNo            string          `json:"invoice_no,omitempty"`
	TrackingID           string          `json:"tracking_id,omitempty"`
	BookingID            string          `json:"booking_id"`
	Amount               decimal.Decimal `json:"amount"`
	PartialPayment       decimal.Decimal `json:"partial_payment"`
	ServiceCost          decimal.Decimal `json:"service_cost"`
	FumigationCost       decimal.Decimal `json:"fumigation_cost"`
	ExpiryMonitoringCost decimal.Decimal `json:"expiry_monitoring_cost"`
	PendingPayment       decimal.Decimal `json:"pending_payment"`
	Status               string          `json:"status"`
	CreatedAt            string          `json:"created_at"`
}

type MovementDTO struct {
	ID             string          `json:"id"`
	BookingID      string          `json:"booking_id,omitempty"`
	Type           string          `json:"type"`
	Delta          decimal.Decimal `json:"delta"`
	Unit           string          `json:"unit"`
	Reason         string          `json:"reason,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	EffectiveAt    string          `json:"effective_at"`
	CreatedBy      string          `json:"created_by,omitempty"`
}

// CapacityDTO is the movement history plus a replay check.
type CapacityDTO struct {
	WarehouseID string          `json:"warehouse_id"`
	Consistent  bool            `json:"consistent"`
	Replayed    decimal.Decimal `json:"replayed_filled"`
	Movements   []MovementDTO   `json:"movements"`
}

type AuditEntryDTO struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type WithdrawalIDDTO struct {
	BookingID    string `json:"booking_id"`
	WithdrawalID string `json:"withdrawal_id"`
}

type SweepResultDTO struct {
	Cutoff  string   `json:"cutoff"`
	Checked int      `json:"checked"`
	Expired []string `json:"expired"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	TookMS  int64    `json:"took_ms"`
}

type NotificationDTO struct {
	Message   string            `json:"message"`
	Type      string            `json:"type"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func dateString(tp generic.TimePoint) string {
	if tp.IsZero() {
		return ""
	}
	return tp.String()
}

func timeString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toWarehouseDTO(w *warehousing.Warehouse) WarehouseDTO {
	dto := WarehouseDTO{
		ID:                string(w.ID),
		Name:              w.Name,
		OwnerID:           w.OwnerID,
		ManagerID:         w.ManagerID,
		Address:           w.Address,
		Unit:              string(w.Capacity.Total.Unit),
		TotalCapacity:     w.Capacity.Total.Value,
		FilledCapacity:    w.Capacity.Filled.Value,
		RemainingCapacity: w.Capacity.Remaining().Value,
		Commodities:       make([]CommodityDTO, 0, len(w.Commodities)),
		AvgRating:         w.AvgRating,
		Ratings:           len(w.Ratings),
		Active:            w.Active,
		Archived:          w.Archived,
		Version:           w.Version,
		CreatedAt:         timeString(w.CreatedAt),
	}
	for _, c := range w.Commodities {
		cd := CommodityDTO{Name: c.Name, AddedBy: c.AddedBy, Tiers: make([]PriceTierDTO, 0, len(c.Tiers))}
		for _, t := range c.Tiers {
			cd.Tiers = append(cd.Tiers, PriceTierDTO{Weight: t.Weight, PricePerDay: t.PricePerDay})
		}
		dto.Commodities = append(dto.Commodities, cd)
	}
	return dto
}

func toGradeDTO(g *warehousing.GradeDetails) *GradeDTO {
	if g == nil {
		return nil
	}
	return &GradeDTO{
		Grade:          g.Grade,
		ForeignMatter:  g.ForeignMatter,
		OtherFoodGrain: g.OtherFoodGrain,
		Other:          g.Other,
		DamagedGrain:   g.DamagedGrain,
		ImmatureGrain:  g.ImmatureGrain,
		WeevilledGrain: g.WeevilledGrain,
		AssignerName:   g.AssignerName,
		GradeDate:      dateString(g.GradeDate),
		GradedBy:       g.GradedBy,
	}
}

func toBookingDTO(b *warehousing.Booking) BookingDTO {
	flags := b.Flags()
	dto := BookingDTO{
		ID:                string(b.ID),
		BookingNo:         b.BookingNo,
		UserID:            b.UserID,
		WarehouseID:       string(b.WarehouseID),
		From:              dateString(b.Dates.From),
		To:                dateString(b.Dates.To),
		Contact:           ContactDTO{Name: b.Contact.Name, Mobile: b.Contact.Mobile, Email: b.Contact.Email},
		ProductName:       b.ProductName,
		Unit:              string(b.RequestedCapacity.Unit),
		RequestedCapacity: b.RequestedCapacity.Value,
		Items:             make([]LineItemDTO, 0, len(b.Items)),
		TotalPrice:        b.TotalPrice,
		PendingPrice:      b.PendingPrice,
		TotalWeight:       b.TotalWeight.Value,
		NoOfBags:          b.NoOfBags,
		BagSize:           b.BagSize,
		Status:            string(b.Status),
		Stage:             b.Stage.String(),
		Flags: BookingFlagsDTO{
			WeighbridgeAdded: flags.WeighbridgeAdded,
			Deposited:        flags.Deposited,
			Graded:           flags.Graded,
			Withdrawn:        flags.Withdrawn,
			ItemInWarehouse:  flags.ItemInWarehouse,
		},
		AcceptedBy:    b.AcceptedBy,
		RejectedBy:    b.RejectedBy,
		Reasons:       b.Reasons,
		DepositID:     b.DepositID,
		WeighbridgeID: b.WeighbridgeID,
		Grade:         toGradeDTO(b.Grade),
		DepositExpiry: dateString(b.DepositExpiry),
		WithdrawalID:  b.WithdrawalID,
		Outstanding:   b.Outstanding().Value,
		Version:       b.Version,
		CreatedAt:     timeString(b.CreatedAt),
		UpdatedAt:     timeString(b.UpdatedAt),
	}
	for _, li := range b.Items {
		dto.Items = append(dto.Items, LineItemDTO{
			Commodity:   li.Commodity,
			Weight:      li.Weight,
			PricePerDay: li.PricePerDay,
			Quantity:    li.Quantity,
			Total:       li.Total,
		})
	}
	return dto
}

func toBookingDTOs(bs []warehousing.Booking) []BookingDTO {
	out := make([]BookingDTO, len(bs))
	for i := range bs {
		out[i] = toBookingDTO(&bs[i])
	}
	return out
}

func toWeighbridgeDTO(wb *warehousing.Weighbridge) WeighbridgeDTO {
	return WeighbridgeDTO{
		ID:          wb.ID,
		BookingID:   string(wb.BookingID),
		Date:        dateString(wb.Date),
		Time:        wb.Time,
		Gross:       wb.Gross.Value,
		Tare:        wb.Tare.Value,
		Net:         wb.Net.Value,
		Unit:        string(wb.Net.Unit),
		TruckNumber: wb.TruckNumber,
		DriverName:  wb.DriverName,
		RecordedBy:  wb.RecordedBy,
	}
}

func toDepositDTO(d *warehousing.Deposit) DepositDTO {
	return DepositDTO{
		ID:               d.ID,
		BookingID:        string(d.BookingID),
		WarehouseID:      string(d.WarehouseID),
		DepositDate:      dateString(d.DepositDate),
		Slot:             d.Slot,
		CommodityType:    string(d.CommodityType),
		RevalidationDate: dateString(d.RevalidationDate),
		ExpiryDate:       dateString(d.ExpiryDate),
		TotalWeight:      d.TotalWeight.Value,
		Unit:             string(d.TotalWeight.Unit),
		TotalPrice:       d.TotalPrice,
		Status:           string(d.Status),
		Grade:            toGradeDTO(d.Grade),
	}
}

func toLoanDTO(l *warehousing.Loan) LoanDTO {
	f := l.Flags()
	dto := LoanDTO{
		ID:           l.ID,
		BookingID:    string(l.BookingID),
		WarehouseID:  string(l.WarehouseID),
		ApplicantID:  l.ApplicantID,
		Pledge:       l.Pledge,
		Amount:       l.Amount,
		InterestRate: l.InterestRate,
		TotalAmount:  l.TotalAmount,
		LoanType:     l.LoanType,
		LoanTerm:     l.LoanTerm,
		Status:       string(l.Status),
		Flags: LoanFlagsDTO{
			Applied:    f.Applied,
			Requested:  f.Requested,
			Approved:   f.Approved,
			Disbursed:  f.Disbursed,
			Active:     f.Active,
			Closed:     f.Closed,
			Rejected:   f.Rejected,
			Terminated: f.Terminated,
		},
		DecidedBy:        l.DecidedBy,
		RejectionReason:  l.RejectionReason,
		DisbursementDate: dateString(l.DisbursementDate),
		MaturityDate:     dateString(l.MaturityDate),
		CreatedAt:        timeString(l.CreatedAt),
	}
	if l.AcceptedTerms != nil {
		dto.RepaymentTerms = l.AcceptedTerms.RepaymentTerms
	}
	return dto
}

func toShipmentDTO(sh *warehousing.Shipment) ShipmentDTO {
	dto := ShipmentDTO{
		ID:               sh.ID,
		BookingID:        string(sh.BookingID),
		WarehouseID:      string(sh.WarehouseID),
		WithdrawalID:     sh.WithdrawalID,
		Mode:             string(sh.Mode),
		Lines:            make([]ShipmentLineDTO, 0, len(sh.Lines)),
		TotalBags:        sh.TotalBags,
		TruckNumber:      sh.TruckNumber,
		DriverName:       sh.DriverName,
		Status:           sh.Status,
		Quantity:         sh.Quantity.Value,
		ReleasedCapacity: sh.ReleasedCapacity.Value,
		Unit:             string(sh.Quantity.Unit),
		LateFee:          sh.LateFee,
		ShippedAt:        timeString(sh.ShippedAt),
	}
	for _, l := range sh.Lines {
		dto.Lines = append(dto.Lines, ShipmentLineDTO{ItemName: l.ItemName, Quantity: l.Quantity.String()})
	}
	return dto
}

func toInvoiceDTO(inv *warehousing.Invoice) InvoiceDTO {
	return InvoiceDTO{
		ID:                   inv.ID,
		Kind:                 string(inv.Kind),
		InvoiceNo:            inv.InvoiceNo,
		TrackingID:           inv.TrackingID,
		BookingID:            string(inv.BookingID),
		Amount:               inv.Amount,
		PartialPayment:       inv.PartialPayment,
		ServiceCost:          inv.ServiceCost,
		FumigationCost:       inv.FumigationCost,
		ExpiryMonitoringCost: inv.ExpiryMonitoringCost,
		PendingPayment:       inv.PendingPayment,
		Status:               string(inv.Status),
		CreatedAt:            timeString(inv.CreatedAt),
	}
}

func toMovementDTO(mv generic.Movement) MovementDTO {
	return MovementDTO{
		ID:             string(mv.ID),
		BookingID:      string(mv.BookingID),
		Type:           string(mv.Type),
		Delta:          mv.Delta.Value,
		Unit:           string(mv.Delta.Unit),
		Reason:         mv.Reason,
		IdempotencyKey: mv.IdempotencyKey,
		EffectiveAt:    dateString(mv.EffectiveAt),
		CreatedBy:      mv.CreatedBy,
	}
}

func toSweepResultDTO(r warehousing.SweepResult) SweepResultDTO {
	expired := r.Expired
	if expired == nil {
		expired = []string{}
	}
	return SweepResultDTO{
		Cutoff:  dateString(r.Cutoff),
		Checked: r.Checked,
		Expired: expired,
		Skipped: r.Skipped,
		Failed:  r.Failed,
		TookMS:  r.Took.Milliseconds(),
	}
}
