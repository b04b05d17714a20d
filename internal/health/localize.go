package health

// Language codes accepted by the dashboard. Anything else falls back to
// Traditional Chinese, the dashboard's default.
const (
	LangEnglish = "en"
	LangChinese = "zh-tw"
)

// NormalizeLang maps arbitrary input to a supported language code.
func NormalizeLang(lang string) string {
	if lang == LangEnglish {
		return LangEnglish
	}
	return LangChinese
}

var zhLabels = map[string]string{
	string(LabelHealthy):  "健康",
	string(LabelNormal):   "一般",
	string(LabelSlow):     "緩慢",
	string(LabelAbnormal): "異常",
	string(LabelOffline):  "離線",

	string(BandVeryFast):     "極快",
	string(BandVeryQuick):    "很快",
	string(BandFast):         "快速",
	string(BandSlightlySlow): "稍慢",
	string(BandNoData):       "無數據",

	string(TrendAdvancing): "增長中",
	string(TrendStalled):   "停滯",
	string(TrendRegressed): "倒退",
	string(TrendInvalid):   "錯誤",
}

var enLabels = map[string]string{
	string(BandVeryFast):     "very fast",
	string(BandVeryQuick):    "very quick",
	string(BandSlightlySlow): "slightly slow",
	string(BandNoData):       "no data",
}

// Text returns the display text for an overall label, band or trend code.
func Text(code, lang string) string {
	table := enLabels
	if NormalizeLang(lang) == LangChinese {
		table = zhLabels
	}
	if s, ok := table[code]; ok {
		return s
	}
	return code
}

// componentText differs from Text only for "normal", which reads as 正常
// for sub-checks but 一般 for the overall label.
func componentText(code, lang string) string {
	if code == string(ComponentNormal) && NormalizeLang(lang) == LangChinese {
		return "正常"
	}
	return Text(code, lang)
}

// Localized renders every field of the report for lang.
func (r Report) Localized(lang string) map[string]string {
	return map[string]string{
		"overall":         Text(string(r.Overall), lang),
		"tick_status":     componentText(string(r.TickStatus), lang),
		"epoch_status":    componentText(string(r.EpochStatus), lang),
		"duration_status": componentText(string(r.DurationStatus), lang),
	}
}
