package spatial

import "fmt"

// GeometryError reports a region whose geometry cannot take part in the
// contiguity computation. The region is never dropped silently.
type GeometryError struct {
	ID     string
	Reason string
}

func (e *GeometryError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid geometry: %s", e.Reason)
	}
	return fmt.Sprintf("invalid geometry for region %q: %s", e.ID, e.Reason)
}

// EmptyInputError is returned when no regions are available at some stage
// of graph construction, reduction or simulation setup.
type EmptyInputError struct {
	Stage   string // "input", "graph", "component", "space"
	Records int
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("no regions available at %s stage (records=%d)", e.Stage, e.Records)
}
