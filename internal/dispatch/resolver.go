package dispatch

import "context"

type taxKey struct {
	SlotID      int64
	WarehouseID int64
}

// AttributeResolver resolves the lookups a booking needs exactly once per
// batch: item attributes are fetched in a single query for all distinct
// item ids, and tax rates are memoized per (slot, warehouse) pair so a bulk
// booking never repeats a lookup it already answered.
type AttributeResolver struct {
	Slots SlotDirectory
	Items ItemDirectory

	taxRates map[taxKey]int64
}

func NewAttributeResolver(slots SlotDirectory, items ItemDirectory) *AttributeResolver {
	return &AttributeResolver{
		Slots:    slots,
		Items:    items,
		taxRates: make(map[taxKey]int64),
	}
}

// ResolveTaxRate returns the tax rate reference for the pair, consulting the
// directory at most once per pair for the resolver's lifetime. The found
// flag distinguishes a pair with no configured rate from a lookup failure.
func (r *AttributeResolver) ResolveTaxRate(ctx context.Context, slotID, warehouseID int64) (int64, bool, error) {
	key := taxKey{SlotID: slotID, WarehouseID: warehouseID}
	if rate, hit := r.taxRates[key]; hit {
		return rate, true, nil
	}
	rate, found, err := r.Slots.TaxRateFor(ctx, slotID, warehouseID)
	if err != nil || !found {
		return 0, false, err
	}
	r.taxRates[key] = rate
	return rate, true, nil
}

// ResolveItemAttributes batch-loads attributes for the given item ids.
// The returned map may lack entries for items with no attribute row; callers
// treat a missing entry the same as missing references.
func (r *AttributeResolver) ResolveItemAttributes(ctx context.Context, itemIDs []int64) (map[int64]ItemAttributes, error) {
	if len(itemIDs) == 0 {
		return map[int64]ItemAttributes{}, nil
	}
	return r.Items.FindAttributes(ctx, itemIDs)
}
