package warehousing

import (
	"fmt"

	"github.com/warp/warehouse-engine/generic"
)

// Role checks are coarse allow-lists; the identity itself is trusted.

var (
	customerRoles = []Role{RoleFarmer, RoleTrader, RoleFPO}
	bookerRoles   = append([]Role{RoleOwner, RoleAdmin}, customerRoles...)
	lenderRoles   = []Role{RolePledge, RoleAdmin}
)

func authorize(actor Identity, allowed ...Role) error {
	if actor.UserID == "" {
		return fmt.Errorf("%w: missing user", generic.ErrForbidden)
	}
	for _, r := range allowed {
		if actor.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q may not perform this operation", generic.ErrForbidden, actor.Role)
}

// authorizeStaff admits admins and the warehouse's own owner or manager.
func authorizeStaff(actor Identity, w *Warehouse) error {
	if actor.Role == RoleAdmin && actor.UserID != "" {
		return nil
	}
	if (actor.Role == RoleOwner || actor.Role == RoleManager) && w.IsStaff(actor.UserID) {
		return nil
	}
	return fmt.Errorf("%w: %s is not staff of warehouse %s", generic.ErrForbidden, actor.UserID, w.ID)
}

// authorizeParty admits the booking's customer as well as staff.
func authorizeParty(actor Identity, b *Booking, w *Warehouse) error {
	if actor.UserID != "" && actor.UserID == b.UserID {
		return nil
	}
	return authorizeStaff(actor, w)
}
