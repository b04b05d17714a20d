// Package health turns raw network counters into coarse health labels.
package health

// Label is the overall network health.
type Label string

const (
	LabelHealthy  Label = "healthy"
	LabelNormal   Label = "normal"
	LabelSlow     Label = "slow"
	LabelAbnormal Label = "abnormal"
	// LabelOffline is only produced when no data could be fetched at all.
	LabelOffline Label = "offline"
)

// DurationBand buckets a tick duration in seconds.
type DurationBand string

const (
	BandVeryFast     DurationBand = "very_fast"
	BandVeryQuick    DurationBand = "very_quick"
	BandFast         DurationBand = "fast"
	BandNormal       DurationBand = "normal"
	BandSlightlySlow DurationBand = "slightly_slow"
	BandAbnormal     DurationBand = "abnormal"
	BandNoData       DurationBand = "no_data"
)

// ComponentStatus describes the tick and epoch sub-checks.
type ComponentStatus string

const (
	ComponentNormal   ComponentStatus = "normal"
	ComponentAbnormal ComponentStatus = "abnormal"
	ComponentOffline  ComponentStatus = "offline"
	ComponentNoData   ComponentStatus = "no_data"
)

// Report is the health breakdown served alongside tick data.
type Report struct {
	Overall        Label           `json:"overall"`
	TickStatus     ComponentStatus `json:"tick_status"`
	EpochStatus    ComponentStatus `json:"epoch_status"`
	DurationStatus DurationBand    `json:"duration_status"`
}

// Duration band upper bounds, inclusive, in seconds.
const (
	veryFastMax     = 0.2
	veryQuickMax    = 0.8
	fastMax         = 1.2
	normalMax       = 2.0
	slightlySlowMax = 3.0
)

func ClassifyDuration(seconds float64) DurationBand {
	switch {
	case seconds <= veryFastMax:
		return BandVeryFast
	case seconds <= veryQuickMax:
		return BandVeryQuick
	case seconds <= fastMax:
		return BandFast
	case seconds <= normalMax:
		return BandNormal
	case seconds <= slightlySlowMax:
		return BandSlightlySlow
	default:
		return BandAbnormal
	}
}

// Classify combines tick liveness with the duration band. A zero tick means
// the node is not producing and is abnormal whatever the duration says.
func Classify(tick uint64, seconds float64) Report {
	r := Report{
		EpochStatus:    ComponentNormal,
		DurationStatus: ClassifyDuration(seconds),
	}
	if tick == 0 {
		r.Overall = LabelAbnormal
		r.TickStatus = ComponentOffline
		return r
	}

	r.TickStatus = ComponentNormal
	switch {
	case seconds <= normalMax:
		r.Overall = LabelHealthy
	case seconds <= slightlySlowMax:
		r.Overall = LabelNormal
	default:
		r.Overall = LabelSlow
	}
	return r
}

// Offline is the report used when upstream data is unavailable.
func Offline() Report {
	return Report{
		Overall:        LabelOffline,
		TickStatus:     ComponentNoData,
		EpochStatus:    ComponentNoData,
		DurationStatus: BandNoData,
	}
}

// Serving reports whether the label should count as up for liveness probes.
func (l Label) Serving() bool {
	return l == LabelHealthy || l == LabelNormal || l == LabelSlow
}
