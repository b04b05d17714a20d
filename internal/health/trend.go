package health

// Trend describes how the tick moved between two observations.
type Trend string

const (
	TrendAdvancing Trend = "advancing"
	TrendStalled   Trend = "stalled"
	TrendRegressed Trend = "regressed"
	TrendInvalid   Trend = "invalid"
)

// Progression compares the previous and current tick. prev == 0 means there is
// no previous observation yet.
func Progression(prev, cur uint64) Trend {
	switch {
	case cur == 0:
		return TrendInvalid
	case prev == 0 || cur > prev:
		return TrendAdvancing
	case cur == prev:
		return TrendStalled
	default:
		return TrendRegressed
	}
}

// Quality thresholds used when the upstream only reports epoch tick quality.
var qualityBands = []struct {
	min      float64
	duration float64
}{
	{99, 0.1},
	{98, 0.5},
	{97, 1.0},
	{95, 1.5},
	{90, 2.5},
}

const (
	emptyRatioThreshold = 0.05
	worstQualityDur     = 3.5
)

// EstimateDuration infers a tick duration in seconds from epoch tick quality,
// penalized by the share of empty ticks once it exceeds 5%.
func EstimateDuration(quality float64, ticksInEpoch, emptyTicks int64) float64 {
	d := worstQualityDur
	for _, b := range qualityBands {
		if quality >= b.min {
			d = b.duration
			break
		}
	}
	if ticksInEpoch > 0 {
		ratio := float64(emptyTicks) / float64(ticksInEpoch)
		if ratio > emptyRatioThreshold {
			d += ratio * 2
		}
	}
	return d
}
