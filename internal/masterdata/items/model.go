package items

// Item represents a sellable article from the legacy item register. The
// name and unit-of-measure references point into legacy lookup tables and
// get snapshotted onto dispatch lines at booking time. Either reference may
// be null for incomplete master data.
type Item struct {
	ID      int64  `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	NameRef *int64 `json:"name_ref,omitempty"`
	UOMRef  *int64 `json:"uom_ref,omitempty"`
	Active  bool   `json:"active"`
}
