package dispatch

import (
	"context"
	"fmt"
)

// SlotDirectory answers slot and warehouse questions from the legacy mapping
// tables. A slot maps to at most one warehouse; the (slot, warehouse) pair
// must exist as a row before anything can be booked against it.
type SlotDirectory interface {
	WarehouseForSlot(ctx context.Context, slotID int64) (int64, bool, error)
	SlotWarehouseExists(ctx context.Context, slotID, warehouseID int64) (bool, error)
	TaxRateFor(ctx context.Context, slotID, warehouseID int64) (int64, bool, error)
}

// PartnerDirectory reports whether a partner can appear on new documents.
// A partner with no active flag set counts as active.
type PartnerDirectory interface {
	IsMissingOrInactive(ctx context.Context, partnerID int64) (bool, error)
}

// ItemDirectory reports item availability and resolves the attribute
// references dispatch lines snapshot at booking time.
type ItemDirectory interface {
	IsMissingOrInactive(ctx context.Context, itemID int64) (bool, error)
	FindAttributes(ctx context.Context, itemIDs []int64) (map[int64]ItemAttributes, error)
}

// ReferenceValidator runs the fixed-order reference checks a booking request
// must pass before any write happens: slot/warehouse pair, then partner,
// then each item, short-circuiting on the first failure.
type ReferenceValidator struct {
	Slots    SlotDirectory
	Partners PartnerDirectory
	Items    ItemDirectory
}

// resolveWarehouse fills in the request's warehouse from the slot mapping
// when the caller did not supply one. Returns the effective warehouse id.
func (v *ReferenceValidator) resolveWarehouse(ctx context.Context, idx int, req *BookingRequest) (int64, string, error) {
	if req.WarehouseID != nil {
		return *req.WarehouseID, "", nil
	}
	whID, found, err := v.Slots.WarehouseForSlot(ctx, req.SlotID)
	if err != nil {
		return 0, "", err
	}
	if !found {
		return 0, fmt.Sprintf("Request[%d]: cannot resolve warehouse for slotId=%d", idx, req.SlotID), nil
	}
	return whID, "", nil
}

// Validate checks one booking request at position idx of its batch. It
// returns the resolved warehouse id and, when a reference check fails, a
// request-scoped message. The message is prefixed with the batch index even
// for single bookings, which always run as index 0.
func (v *ReferenceValidator) Validate(ctx context.Context, idx int, req *BookingRequest) (int64, string, error) {
	whID, msg, err := v.resolveWarehouse(ctx, idx, req)
	if err != nil || msg != "" {
		return 0, msg, err
	}

	exists, err := v.Slots.SlotWarehouseExists(ctx, req.SlotID, whID)
	if err != nil {
		return 0, "", err
	}
	if !exists {
		return 0, fmt.Sprintf("Request[%d]: unknown (slotId, warehouseId)=(%d,%d)", idx, req.SlotID, whID), nil
	}

	missing, err := v.Partners.IsMissingOrInactive(ctx, req.PartnerID)
	if err != nil {
		return 0, "", err
	}
	if missing {
		return 0, fmt.Sprintf("Request[%d]: partner not found or inactive: %d", idx, req.PartnerID), nil
	}

	for _, it := range req.Items {
		missing, err := v.Items.IsMissingOrInactive(ctx, it.ItemID)
		if err != nil {
			return 0, "", err
		}
		if missing {
			return 0, fmt.Sprintf("Request[%d]: item not found or inactive: %d", idx, it.ItemID), nil
		}
	}

	return whID, "", nil
}
