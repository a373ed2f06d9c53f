package domain

// WindowHorizon is the number of Hebrew years materialized ahead of (and,
// for old anchors, behind) the reference year.
const WindowHorizon = 10

// SyncWindow is the closed interval of Hebrew years that should have a
// materialized occurrence.
type SyncWindow struct {
	Start int
	End   int
}

// ComputeSyncWindow returns the window for an anchor year given the current
// Hebrew year. Anchors more than WindowHorizon years in the past keep only a
// trailing buffer around now instead of materializing decades of history;
// future anchors get their forward buffer from their own start year.
func ComputeSyncWindow(anchorYear, currentYear int) SyncWindow {
	switch {
	case anchorYear < currentYear-WindowHorizon:
		return SyncWindow{Start: currentYear - WindowHorizon, End: currentYear + WindowHorizon}
	case anchorYear <= currentYear:
		return SyncWindow{Start: anchorYear, End: currentYear + WindowHorizon}
	default:
		return SyncWindow{Start: anchorYear, End: anchorYear + WindowHorizon}
	}
}

// Years expands the window into its individual years, ascending.
func (w SyncWindow) Years() []int {
	years := make([]int, 0, w.Len())
	for y := w.Start; y <= w.End; y++ {
		years = append(years, y)
	}
	return years
}

// Contains reports whether the year falls inside the window.
func (w SyncWindow) Contains(year int) bool {
	return year >= w.Start && year <= w.End
}

// Len returns the number of years in the window.
func (w SyncWindow) Len() int {
	return w.End - w.Start + 1
}
