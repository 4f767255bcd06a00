package warehousing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/warehouse-engine/generic"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
	NotifySuccess NotificationType = "success"
)

type Notification struct {
	UserID    string
	Message   string
	Type      NotificationType
	Metadata  map[string]string
	CreatedAt time.Time
}

// Notifier delivers messages to users. Delivery is fire-and-forget: a failed
// notification is logged and never rolls back the transition that caused it.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Classification is what the external classifier sees in a consignment.
type Classification struct {
	SacksCount int
	Commodity  string
}

// Classifier inspects a booking or withdrawal by id. It has no side effects.
type Classifier interface {
	Classify(ctx context.Context, id string) (Classification, error)
}

// =============================================================================
// CONFIG
// =============================================================================

type Config struct {
	// ExpiryWindowDays is how long after its from-date a booking may still
	// be deposited. The same window bounds the weighbridge date.
	ExpiryWindowDays int

	// LateFee is added to the booking price for each shipment made after the
	// booking's to-date.
	LateFee decimal.Decimal

	// IDAttempts bounds the retry loop of human-readable id generation.
	IDAttempts int
}

func DefaultConfig() Config {
	return Config{
		ExpiryWindowDays: 7,
		LateFee:          decimal.NewFromInt(1000),
		IDAttempts:       generic.DefaultIDAttempts,
	}
}

// shortIDDigits is the random part of booking, invoice and tracking numbers.
const shortIDDigits = 6

// IDSource produces candidates for the human-readable identifiers.
type IDSource struct {
	BookingNo  generic.Candidate
	LoanID     generic.Candidate
	InvoiceNo  generic.Candidate
	TrackingID generic.Candidate
}

// =============================================================================
// SERVICE
// =============================================================================

// Service runs every lifecycle operation. Notifier and Classifier are
// optional.
type Service struct {
	Store      TxStore
	Notifier   Notifier
	Classifier Classifier
	Clock      generic.Clock
	Config     Config
	IDs        IDSource
	Log        zerolog.Logger
}

func NewService(store TxStore, log zerolog.Logger) *Service {
	s := &Service{
		Store:  store,
		Clock:  generic.SystemClock{},
		Config: DefaultConfig(),
		Log:    log.With().Str("component", "warehousing").Logger(),
	}
	// Candidates read s.Clock on every call so a replaced clock applies.
	clock := serviceClock{s}
	s.IDs = IDSource{
		BookingNo:  generic.MonthlyDigits("BK-", clock, shortIDDigits),
		LoanID:     generic.TimestampedID("LN", clock),
		InvoiceNo:  generic.MonthlyDigits("IN-", clock, shortIDDigits),
		TrackingID: generic.MonthlyDigits("TRK-", clock, shortIDDigits),
	}
	return s
}

type serviceClock struct{ s *Service }

func (c serviceClock) Now() time.Time { return c.s.Clock.Now() }

func (s *Service) now() time.Time {
	return s.Clock.Now().UTC()
}

func (s *Service) today() generic.TimePoint {
	return generic.Today(s.Clock)
}

// notify sends n and only logs a failure.
func (s *Service) notify(ctx context.Context, n Notification) {
	if s.Notifier == nil || n.UserID == "" {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if n.Type == "" {
		n.Type = NotifyInfo
	}
	if err := s.Notifier.Notify(ctx, n); err != nil {
		s.Log.Warn().Err(err).Str("user_id", n.UserID).Msg("notification failed")
	}
}

func (s *Service) audit(ctx context.Context, tx Store, actor Identity, action generic.AuditAction, b *Booking, payload map[string]any) error {
	entry := generic.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: s.now(),
		ActorID:   actor.UserID,
		Action:    action,
		Payload:   payload,
	}
	if b != nil {
		entry.BookingID = b.ID
		entry.WarehouseID = b.WarehouseID
	}
	return tx.AppendAudit(ctx, entry)
}

func (s *Service) uniqueID(ctx context.Context, next generic.Candidate, exists generic.ExistsFunc) (string, error) {
	return generic.GenerateUnique(ctx, s.Config.IDAttempts, next, exists)
}

// =============================================================================
// LOADERS
// =============================================================================

func loadWarehouse(ctx context.Context, st Store, id generic.WarehouseID) (*Warehouse, error) {
	w, err := st.GetWarehouse(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, generic.NewNotFoundError("warehouse", string(id))
	}
	return w, nil
}

func loadBooking(ctx context.Context, st Store, id generic.BookingID) (*Booking, error) {
	b, err := st.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, generic.NewNotFoundError("booking", string(id))
	}
	return b, nil
}

// loadForStaff loads a booking and its warehouse and checks that actor is
// staff of that warehouse.
func loadForStaff(ctx context.Context, st Store, actor Identity, id generic.BookingID) (*Booking, *Warehouse, error) {
	b, err := loadBooking(ctx, st, id)
	if err != nil {
		return nil, nil, err
	}
	w, err := loadWarehouse(ctx, st, b.WarehouseID)
	if err != nil {
		return nil, nil, err
	}
	if err := authorizeStaff(actor, w); err != nil {
		return nil, nil, err
	}
	return b, w, nil
}

func transitionError(b *Booking, to string, err error) error {
	return &generic.TransitionError{
		Entity: "booking",
		ID:     b.BookingNo,
		From:   string(b.Status) + "/" + b.Stage.String(),
		To:     to,
		Err:    err,
	}
}

// requireAccepted guards stage operations on the commercial status.
func requireAccepted(b *Booking, to string) error {
	switch b.Status {
	case BookingAccepted:
		return nil
	case BookingExpired:
		return transitionError(b, to, generic.ErrExpired)
	default:
		return transitionError(b, to, generic.ErrPreconditionFailed)
	}
}
