package dispatch

import "fmt"

// PrepareLines turns booking items into document lines, snapshotting the
// item's name and unit-of-measure references and stamping every line with
// the document's tax rate. Line numbers are assigned sequentially from
// firstNumber in request order. Both attribute references must be present;
// a missing one fails the whole preparation.
func PrepareLines(items []BookingItem, attrs map[int64]ItemAttributes, taxRateRef int64, firstNumber int) ([]DocumentLine, error) {
	lines := make([]DocumentLine, 0, len(items))
	for i, it := range items {
		a, found := attrs[it.ItemID]
		if !found || a.NameRef == nil || a.UOMRef == nil {
			return nil, fmt.Errorf("item attributes missing (nameRef/uomRef) for itemId=%d", it.ItemID)
		}
		lines = append(lines, DocumentLine{
			ItemID:     it.ItemID,
			Quantity:   it.Quantity,
			NameRef:    *a.NameRef,
			UOMRef:     *a.UOMRef,
			TaxRateRef: taxRateRef,
			LineNumber: firstNumber + i,
		})
	}
	return lines, nil
}
