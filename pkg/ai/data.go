package ai

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stywzn/qdashboard/internal/health"
)

// NetworkData is the live network snapshot injected into prompts and used
// by the fallback answers. Health.Overall may hold a label code or an already
// localized label.
type NetworkData struct {
	Tick             uint64      `json:"tick"`
	Duration         float64     `json:"duration"`
	Epoch            int64       `json:"epoch"`
	Health           HealthState `json:"health"`
	Price            float64     `json:"price"`
	ActiveAddresses  int64       `json:"activeAddresses"`
	MarketCap        int64       `json:"marketCap"`
	EpochTickQuality float64     `json:"epochTickQuality"`
	TicksInEpoch     int64       `json:"ticksInCurrentEpoch"`
	EmptyTicks       int64       `json:"emptyTicksInCurrentEpoch"`
}

type HealthState struct {
	Overall string `json:"overall"`
}

// Available reports whether the snapshot carries real data.
func (d *NetworkData) Available() bool {
	return d != nil && d.Tick > 0
}

func (d *NetworkData) abnormal() bool {
	return d.Health.Overall == string(health.LabelAbnormal) || d.Health.Overall == "異常"
}

func (d *NetworkData) healthText(lang string) string {
	if d.Health.Overall == "" {
		if lang == health.LangEnglish {
			return "unknown"
		}
		return "未知"
	}
	return health.Text(d.Health.Overall, lang)
}

var printer = message.NewPrinter(language.English)

// grouped formats n with thousands separators.
func grouped(n int64) string {
	return printer.Sprintf("%d", n)
}

func seconds(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}
