package ai

import (
	"fmt"
	"strings"

	"github.com/stywzn/qdashboard/internal/health"
)

// Fallback texts used when no model answer survives the quality gates.
// They are chosen by the question's keywords and use live data when it is
// available.

var (
	zhStatusWords    = []string{"網路狀況", "網路狀態", "network status", "分析", "analyze"}
	zhHealthWords    = []string{"健康", "health", "評估", "evaluate"}
	zhEpochWords     = []string{"epoch", "進度", "progress", "預測", "predict"}
	zhIndicatorWords = []string{"status", "health", "狀況", "健康"}
	zhDefineWords    = []string{"what", "definition", "是什麼", "什麼是"}

	enStatusWords    = []string{"status", "health", "analysis", "analyze", "network", "performance"}
	enIndicatorWords = []string{"status", "health", "analysis", "network"}
	enDefineWords    = []string{"what", "definition", "about"}
)

// FallbackResponse returns a knowledge-driven answer for query in lang.
func FallbackResponse(query string, data *NetworkData, lang string) string {
	q := strings.ToLower(query)
	if lang == health.LangEnglish {
		return englishFallback(q, data)
	}
	return chineseFallback(q, data)
}

func chineseFallback(q string, data *NetworkData) string {
	if data.Available() {
		d := data.Duration
		tick := grouped(int64(data.Tick))
		switch {
		case containsAny(q, zhStatusWords):
			return fmt.Sprintf(`基於當前網路數據分析：

Tick: %s - 穩定增長，處理週期正常
Duration: %s 秒 - %s
Epoch: %d - 當前階段運行中
健康狀態: %s

總結：網路整體運行%s，所有核心指標都在預期範圍內。`,
				tick, seconds(d), pick(d, "極佳表現，零延遲", "正常範圍，運行順暢", "輕微延遲，需持續觀察"),
				data.Epoch, data.healthText(health.LangChinese), pick(d, "極為順暢", "穩定正常", "有輕微波動"))

		case containsAny(q, zhHealthWords):
			risk := "中等風險"
			advice := "加強監控，觀察趨勢變化"
			if d <= 1 {
				risk, advice = "無風險", "繼續保持當前狀態"
			} else if d <= 2 {
				risk, advice = "低風險", "持續監控，暫無異常"
			}
			return fmt.Sprintf(`網路健康狀況評估報告：

系統穩定性: %s - Duration %s秒表現%s
處理能力: 當前 Tick %s，持續正常增長
風險評估: %s

建議：%s`, pick(d, "優秀", "良好", "普通"), seconds(d), pick(d, "卓越", "穩定", "需關注"), tick, risk, advice)

		case containsAny(q, zhEpochWords) && data.TicksInEpoch > 0:
			p := health.ComputeEpochProgress(data.Epoch, int64(data.Tick), data.TicksInEpoch, data.EpochTickQuality)
			return fmt.Sprintf(`Epoch %d 進度預測分析：

當前進度: %.1f%%
剩餘 Ticks: 約 %s
預估完成時間: %s

趨勢分析：%s
效率評估: %s`, p.Epoch, p.ProgressPercent, grouped(p.RemainingTicks), p.RemainingHuman,
				pick(d, "進度穩定，預計按時完成", "進度正常，預計如期完成", "進度略慢，密切觀察"),
				pick(d, "高效率", "正常效率", "效率偏低"))
		}
	} else if containsAny(q, zhIndicatorWords) {
		return `Qubic 網路健康狀況主要通過以下指標評估：

- Tick: 網路處理週期，應穩定增長
- Duration: 處理時間，低於 3 秒為佳
- Epoch: 網路階段，轉換應順暢
- 活躍地址數: 反映網路採用度

當前網路運行狀況可通過 Qubic 官方工具監控。`
	}

	if containsAny(q, zhDefineWords) {
		return `Qubic 是一個創新的去中心化計算和金融平台，採用基於法定人數的電腦（QBC）系統。主要特色包括：

1. 有用工作量證明（UPoW）- 結合安全性和實用性的共識機制
2. Qubic Units (QUs) - 生態系統的原生代幣
3. 智能合約支援和量子計算抗性
4. 完整的開發工具生態系統

更多詳細信息請參考: https://docs.qubic.org/`
	}
	return `Qubic 是基於法定人數電腦（QBC）系統的去中心化平台，使用有用工作量證明（UPoW）共識機制。

關鍵特色：
- 量子計算抗性
- 智能合約支援
- 高效能計算
- 完整開發生態

詳細信息: https://docs.qubic.org/`
}

func englishFallback(q string, data *NetworkData) string {
	if data.Available() && containsAny(q, enStatusWords) {
		d := data.Duration
		return fmt.Sprintf(`Qubic Network Real-time Analysis

Current metrics:
- Tick: %s (continuously growing)
- Duration: %s seconds (%s)
- Epoch: %d
- Overall health: %s

Status assessment:
%s

Recommendations:
- Continue monitoring duration changes
- Watch tick growth trends
- Observe epoch transition stability

Data sourced from real-time Qubic network status.`,
			grouped(int64(data.Tick)), seconds(d), pick(d, "Excellent", "Normal", "Attention needed"),
			data.Epoch, data.healthText(health.LangEnglish),
			pick(d, "Network running smoothly with excellent processing speed",
				"Network under moderate load, monitoring",
				"High network load, requires close monitoring"))
	}
	if !data.Available() && containsAny(q, enIndicatorWords) {
		return `Qubic network health is evaluated through key indicators:

- Tick: network processing cycles, should grow steadily
- Duration: processing time, optimal under 3 seconds
- Epoch: network phases, transitions should be smooth
- Active addresses: reflects network adoption

Current network status can be monitored through official Qubic tools.`
	}
	if containsAny(q, enDefineWords) {
		return `Qubic is an innovative decentralized computing and financial platform based on the Quorum-based Computer (QBC) system. Key features include:

1. Useful Proof of Work (UPoW) - consensus mechanism combining security and utility
2. Qubic Units (QUs) - native ecosystem token
3. Smart contract support and quantum computing resistance
4. Complete development toolchain ecosystem

For more information, visit: https://docs.qubic.org/`
	}
	return `Qubic is a decentralized platform based on the Quorum-based Computer (QBC) system using Useful Proof of Work (UPoW) consensus.

Key features:
- Quantum computing resistance
- Smart contract support
- Decentralized computing
- Qubic Units (QUs) token economy

Learn more at: https://docs.qubic.org/`
}

// QualityFallback summarizes the network from epoch tick quality alone. It is
// used when the generator fails outright during an analysis.
func QualityFallback(quality float64, lang string) string {
	if lang == health.LangEnglish {
		switch {
		case quality > 90:
			return fmt.Sprintf("Network Status: Excellent (Tick Quality: %.1f%%). The Qubic network is operating at optimal performance with high efficiency and stability.", quality)
		case quality > 80:
			return fmt.Sprintf("Network Status: Good (Tick Quality: %.1f%%). The network is performing well with minor fluctuations within normal range.", quality)
		default:
			return fmt.Sprintf("Network Status: Monitoring (Tick Quality: %.1f%%). Network performance requires attention. Consider monitoring for potential issues.", quality)
		}
	}
	switch {
	case quality > 90:
		return fmt.Sprintf("網路狀態：優秀（Tick 品質：%.1f%%）。Qubic 網路正以最佳性能運行，具有高效率和穩定性。", quality)
	case quality > 80:
		return fmt.Sprintf("網路狀態：良好（Tick 品質：%.1f%%）。網路表現良好，輕微波動在正常範圍內。", quality)
	default:
		return fmt.Sprintf("網路狀態：監控中（Tick 品質：%.1f%%）。網路性能需要關注，建議監控潛在問題。", quality)
	}
}

// UnavailableMessage is returned when the generator cannot be reached and no
// richer fallback applies.
func UnavailableMessage(lang string) string {
	if lang == health.LangEnglish {
		return "The AI analysis service is temporarily unavailable. The distributed inference system is being restored. Please try again in a few moments."
	}
	return "AI 分析服務暫時不可用。分散式推理系統正在恢復中。請稍後再試。"
}

// pick selects by duration: zero, up to 2s, above 2s.
func pick(d float64, zero, normal, slow string) string {
	switch {
	case d == 0:
		return zero
	case d <= 2:
		return normal
	default:
		return slow
	}
}

// OfflineAnalysis is the analysis body served when the engine is not ready
// or the live data could not be fetched.
func OfflineAnalysis(lang string) (analysis, summary string) {
	if lang == health.LangEnglish {
		return "❌ AI analysis temporarily unavailable\n📊 Current network data overview\n⚡ System will continue attempting to reconnect AI engine",
			"AI engine offline, providing basic data overview"
	}
	return "❌ AI 分析暫時不可用\n📊 當前網路數據概覽\n⚡ 系統將繼續嘗試重新連接 AI 引擎",
		"AI 引擎離線，提供基礎數據概覽"
}

// OfflineAnswer restates the live figures when a question cannot reach the
// model.
func OfflineAnswer(data *NetworkData, lang string) string {
	if data == nil {
		data = &NetworkData{}
	}
	if lang == health.LangEnglish {
		return fmt.Sprintf("Based on real Qubic data: Tick %s, %ss, Health %s. (AI engine offline)",
			grouped(int64(data.Tick)), seconds(data.Duration), data.healthText(lang))
	}
	return fmt.Sprintf("基於真實 Qubic 數據：Tick %s，%s 秒，健康狀況 %s。（AI 引擎離線）",
		grouped(int64(data.Tick)), seconds(data.Duration), data.healthText(lang))
}
