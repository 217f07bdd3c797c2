package metrics

// meanOf returns the arithmetic mean of values, or nil when values is empty.
func meanOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	return &mean
}

// ratePct returns hits / total as a percentage, or nil when total is zero.
func ratePct(hits, total int) *float64 {
	if total == 0 {
		return nil
	}
	rate := float64(hits) / float64(total) * 100
	return &rate
}

// winRatePct returns the percentage of values strictly above zero.
func winRatePct(values []float64) *float64 {
	wins := 0
	for _, v := range values {
		if v > 0 {
			wins++
		}
	}
	return ratePct(wins, len(values))
}
