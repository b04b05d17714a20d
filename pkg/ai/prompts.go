package ai

import (
	"fmt"

	"github.com/stywzn/qdashboard/internal/health"
)

// AnalysisPrompt builds the network analysis prompt. It already carries the
// analysis context and ends in an answer marker, so it is not enhanced again.
func AnalysisPrompt(data *NetworkData, lang string) string {
	if data == nil {
		data = &NetworkData{}
	}
	ctx := Context("network analysis", data, lang)
	tick := grouped(int64(data.Tick))
	active := grouped(data.ActiveAddresses)

	if lang == health.LangEnglish {
		return fmt.Sprintf(`<think>
I need to assess the current Qubic network data professionally.
Key metrics:
- Tick: %s (processing cycle)
- Duration: %s seconds
- Epoch: %d
- Health: %s
- Active addresses: %s
I should compare these values with normal operation, flag anomalies and give practical monitoring advice.
</think>

You are a professional Qubic network analyst. Answer ONLY in English.

%s

Current metrics:
- Tick: %s
- Duration: %s seconds
- Epoch: %d
- Health: %s
- Price: $%.9f
- Active addresses: %s

Provide: 1. performance assessment based on duration and tick, 2. health analysis, 3. key insights, 4. concrete monitoring recommendations.

Analysis:`, tick, seconds(data.Duration), data.Epoch, data.healthText(lang), active,
			ctx, tick, seconds(data.Duration), data.Epoch, data.healthText(lang), data.Price, active)
	}

	return fmt.Sprintf(`<think>
我需要對當前 Qubic 網路數據進行專業綜合分析。
當前關鍵指標：
- Tick: %s (網路處理週期)
- Duration: %s 秒 (處理時間)
- Epoch: %d (當前階段)
- 健康狀況: %s
- 活躍地址: %s

分析重點：
1. 基於這些具體數值評估網路性能
2. 對比 Qubic 網路的正常運行標準
3. 識別任何異常或優化機會
4. 提供實用的監控建議
</think>

作為專業的 Qubic 區塊鏈網路分析師，基於當前網路數據進行綜合評估：

%s

當前網路指標：
- Tick: %s
- Duration: %s 秒
- Epoch: %d
- 健康狀況: %s
- 價格: $%.9f
- 活躍地址: %s

請提供專業的 Qubic 網路分析，包含：
1. 當前性能評估（基於 Duration 和 Tick 指標）
2. 網路健康狀況分析
3. 關鍵洞察和發現
4. 具體監控建議

專業分析：`, tick, seconds(data.Duration), data.Epoch, data.healthText(lang), active,
		ctx, tick, seconds(data.Duration), data.Epoch, data.healthText(lang), data.Price, active)
}

// QuestionPrompt builds the prompt for a free-form question about the
// network, with the live figures spelled out ahead of the question.
func QuestionPrompt(question string, data *NetworkData, lang string) string {
	if !data.Available() {
		return EnhancePrompt(question, data, lang)
	}
	var q string
	if lang == health.LangEnglish {
		q = fmt.Sprintf("Based on the current Qubic network data (tick %s, duration %s seconds, health %s), answer: %s",
			grouped(int64(data.Tick)), seconds(data.Duration), data.healthText(lang), question)
	} else {
		q = fmt.Sprintf("根據當前 Qubic 網路數據（Tick %s，Duration %s 秒，健康狀況 %s），回答：%s",
			grouped(int64(data.Tick)), seconds(data.Duration), data.healthText(lang), question)
	}
	return EnhancePrompt(q, data, lang)
}
