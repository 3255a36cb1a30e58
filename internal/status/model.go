package status

// Status is a named order state such as "placed" or "shipped".
// Both Name and Code are unique.
type Status struct {
	ID   uint
	Name string
	Code int16
}
