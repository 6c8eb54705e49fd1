package engine

import "fmt"

// NoVacancyError is returned when an unhappy region must move but every
// region is occupied. The run cannot continue.
type NoVacancyError struct {
	RegionID string
	Step     int
	Occupied int
}

func (e *NoVacancyError) Error() string {
	return fmt.Sprintf("step %d: region %q must move but no unoccupied region exists (occupied=%d)",
		e.Step, e.RegionID, e.Occupied)
}
