package health

import (
	"fmt"
	"math"
)

// EpochProgress is derived from the latest-stats counters.
type EpochProgress struct {
	Epoch               int64   `json:"epoch"`
	InitialTick         int64   `json:"initialTick"`
	CurrentTick         int64   `json:"currentTick"`
	TicksInEpoch        int64   `json:"ticksInCurrentEpoch"`
	EstimatedTotalTicks int64   `json:"estimatedTotalTicks"`
	ProgressPercent     float64 `json:"progressPercent"`
	RemainingTicks      int64   `json:"remainingTicks"`
	RemainingSeconds    int64   `json:"remainingSeconds"`
	RemainingHuman      string  `json:"remainingHuman"`
}

// secondsPerTick is the nominal tick pace used for remaining-time estimates.
const secondsPerTick = 1

func ComputeEpochProgress(epoch, currentTick, ticksInEpoch int64, quality float64) EpochProgress {
	total := int64(math.Round(float64(ticksInEpoch) * (100 / math.Max(quality, 1))))
	remaining := total - ticksInEpoch
	if remaining < 0 {
		remaining = 0
	}
	secs := remaining * secondsPerTick

	return EpochProgress{
		Epoch:               epoch,
		InitialTick:         currentTick - ticksInEpoch,
		CurrentTick:         currentTick,
		TicksInEpoch:        ticksInEpoch,
		EstimatedTotalTicks: total,
		ProgressPercent:     math.Min(quality, 100),
		RemainingTicks:      remaining,
		RemainingSeconds:    secs,
		RemainingHuman:      FormatRemaining(secs),
	}
}

// FormatRemaining renders seconds as "Hh Mm", "Mm" or "Ss".
func FormatRemaining(secs int64) string {
	switch {
	case secs > 3600:
		return fmt.Sprintf("%dh %dm", secs/3600, (secs%3600)/60)
	case secs > 60:
		return fmt.Sprintf("%dm", secs/60)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
