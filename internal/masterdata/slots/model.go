package slots

// SlotMapping binds a booking slot to its warehouse. The legacy schema
// guarantees at most one warehouse per slot.
type SlotMapping struct {
	SlotID      int64  `json:"slot_id"`
	WarehouseID int64  `json:"warehouse_id"`
	Description string `json:"description"`
}
