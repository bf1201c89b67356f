package harvest

// StopCondition reports whether the walk should end before visiting tid.
type StopCondition func(tid int, stats Stats) bool

func Forever() StopCondition {
	return func(int, Stats) bool { return false }
}

// After stops once n tids have been attempted.
func After(n int) StopCondition {
	return func(_ int, stats Stats) bool { return stats.Harvested+stats.Skipped >= n }
}

// Through stops after tid last has been attempted.
func Through(last int) StopCondition {
	return func(tid int, _ Stats) bool { return tid > last }
}

// Any stops as soon as one of conds does.
func Any(conds ...StopCondition) StopCondition {
	return func(tid int, stats Stats) bool {
		for _, c := range conds {
			if c(tid, stats) {
				return true
			}
		}
		return false
	}
}
