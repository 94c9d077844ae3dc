package queue

// InFlightCount counts items with a submitted job that has not completed.
// An item counts once even when both stages look in flight.
func InFlightCount(items []*Item) int {
	count := 0
	for _, item := range items {
		if item.Failed {
			continue
		}
		if item.Extraction.InFlight() || item.Basecall.InFlight() {
			count++
		}
	}
	return count
}

// Admit reports whether another submission fits under ceiling. Zero means unlimited.
func Admit(current, ceiling int) bool {
	return ceiling == 0 || current < ceiling
}

// Gate applies a fixed ceiling to a collection of items. It is consulted only
// at submission time.
type Gate struct {
	Ceiling int
}

// TryAdmit reports whether a new job may be submitted for the given items.
func (g Gate) TryAdmit(items []*Item) bool {
	return Admit(InFlightCount(items), g.Ceiling)
}
