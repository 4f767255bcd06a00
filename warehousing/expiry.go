/*
expiry.go - Background expiry of bookings whose goods never arrived

RULE:
  A pending or accepted booking that is not deposited expires once its
  from-date is more than ExpiryWindowDays in the past:

    from + window < today   ⇔   from < today - window

  Expiring an accepted booking credits its committed capacity back.

IDEMPOTENCE:
  The candidate query excludes expired bookings, and a booking that was
  expired concurrently fails with ErrAlreadyInState, which the sweep counts
  as skipped. Running the sweep twice expires the same set.
*/
package warehousing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/warehouse-engine/generic"
)

type SweepResult struct {
	Cutoff  generic.TimePoint
	Checked int
	Expired []string // booking numbers
	Skipped int
	Failed  int
	Took    time.Duration
}

// ExpireBookings runs one expiry sweep. Per-booking failures are logged and
// counted; the sweep carries on with the next booking.
func (s *Service) ExpireBookings(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	cutoff := s.today().AddDays(-s.Config.ExpiryWindowDays)
	result := SweepResult{Cutoff: cutoff}

	candidates, err := s.Store.ExpiryCandidates(ctx, cutoff.DayKey())
	if err != nil {
		return result, fmt.Errorf("list expiry candidates: %w", err)
	}
	result.Checked = len(candidates)

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		b, err := s.expireBooking(ctx, candidates[i].ID, SystemIdentity)
		switch {
		case err == nil:
			result.Expired = append(result.Expired, b.BookingNo)
		case errors.Is(err, generic.ErrAlreadyInState), errors.Is(err, generic.ErrPreconditionFailed):
			result.Skipped++
		default:
			result.Failed++
			s.Log.Error().Err(err).
				Str("booking_no", candidates[i].BookingNo).
				Msg("failed to expire booking")
		}
	}

	result.Took = time.Since(start)
	s.Log.Info().
		Str("cutoff", cutoff.String()).
		Int("checked", result.Checked).
		Int("expired", len(result.Expired)).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Dur("took", result.Took).
		Msg("expiry sweep finished")
	return result, nil
}

// expireBooking moves one booking to expired and releases what it holds.
func (s *Service) expireBooking(ctx context.Context, id generic.BookingID, actor Identity) (*Booking, error) {
	var b *Booking
	err := s.Store.WithTx(ctx, func(tx Store) error {
		var err error
		b, err = loadBooking(ctx, tx, id)
		if err != nil {
			return err
		}
		switch b.Status {
		case BookingPending, BookingAccepted:
		case BookingExpired:
			return transitionError(b, string(BookingExpired), generic.ErrAlreadyInState)
		default:
			return transitionError(b, string(BookingExpired), generic.ErrPreconditionFailed)
		}
		if b.Flags().Deposited {
			return transitionError(b, string(BookingExpired), generic.ErrPreconditionFailed)
		}
		w, err := loadWarehouse(ctx, tx, b.WarehouseID)
		if err != nil {
			return err
		}

		if err := s.releaseOutstanding(ctx, tx, w, b, "expire", actor); err != nil {
			return err
		}
		b.Status = BookingExpired
		b.UpdatedAt = s.now()
		if err := tx.SaveBooking(ctx, b); err != nil {
			return err
		}
		return s.audit(ctx, tx, actor, generic.AuditBookingExpired, b, map[string]any{
			"from_date": b.Dates.From.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, Notification{
		UserID:   b.UserID,
		Message:  fmt.Sprintf("Your booking %s has expired", b.BookingNo),
		Type:     NotifyWarning,
		Metadata: map[string]string{"booking_id": string(b.ID)},
	})
	return b, nil
}
