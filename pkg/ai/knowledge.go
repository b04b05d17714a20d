package ai

import (
	"fmt"
	"strings"

	"github.com/stywzn/qdashboard/internal/health"
)

// Topic selects the background context block injected into a prompt.
type Topic string

const (
	TopicGeneral     Topic = "general"
	TopicTechnology  Topic = "technology"
	TopicDevelopment Topic = "development"
	TopicAnalysis    Topic = "analysis"
)

var topicKeywords = []struct {
	topic Topic
	words []string
}{
	{TopicGeneral, []string{"what", "definition", "是什麼", "什麼是"}},
	{TopicTechnology, []string{"technology", "consensus", "upow", "qbc", "技術", "共識"}},
	{TopicDevelopment, []string{"develop", "api", "cli", "sdk", "開發", "工具"}},
	{TopicAnalysis, []string{"analysis", "health", "status", "分析", "狀況", "健康"}},
}

// ClassifyQuery picks the first topic whose keywords appear in query.
func ClassifyQuery(query string) Topic {
	q := strings.ToLower(query)
	for _, t := range topicKeywords {
		if containsAny(q, t.words) {
			return t.topic
		}
	}
	return TopicGeneral
}

var zhContexts = map[Topic]string{
	TopicGeneral: `Qubic 是一個創新的去中心化計算和金融平台，採用基於法定人數的電腦（QBC）系統。
主要特色：
- 使用有用工作量證明（UPoW）共識機制
- 原生代幣為 Qubic Units (QUs)
- 支援智能合約和量子計算抗性
- 提供完整的開發工具生態系統

關鍵指標：
- Tick: 網路處理週期
- Epoch: 網路時代
- Duration: 處理時間
- 健康狀況基於這些指標評估`,

	TopicTechnology: `Qubic 技術架構：

1. 共識機制：有用工作量證明（UPoW）
   - 結合安全性和實用性
   - 產生有用的計算結果
   - 提供量子抗性

2. QBC 系統（基於法定人數的電腦）
   - Computors 作為計算節點
   - Quorum 法定人數機制
   - 分散式智能合約執行

3. 網路指標
   - Tick 表示處理週期
   - Duration 影響網路效能
   - Epoch 代表網路階段`,

	TopicDevelopment: `Qubic 開發生態系統：

開發工具：
- Qubic Dev Kit: 本地測試環境
- Qubic CLI: 命令行工具
- Qubic RPC: API 介面
- Qubic Node: 完整節點

支援語言庫：
- Java, TypeScript, Go, C#, HTTP

資源：
- 測試網和水龍頭
- 錢包整合指南
- 官方文檔和教程`,

	TopicAnalysis: `Qubic 網路分析指南：

健康指標：
- Tick 數值應穩定增長
- Duration 低於 3 秒為佳
- Epoch 轉換應順暢
- 活躍地址數反映採用度

性能評估：
- Duration = 0-1 秒：優秀
- Duration = 1-2 秒：良好
- Duration = 2-3 秒：一般
- Duration > 3 秒：需要關注

網路狀態：
- 健康：所有指標正常
- 一般：部分指標異常
- 異常：多項指標有問題`,
}

var enContexts = map[Topic]string{
	TopicGeneral: `Qubic is a decentralized computing and finance platform built on a Quorum-based Computer (QBC) system.
Key features:
- Useful Proof of Work (UPoW) consensus
- Native token: Qubic Units (QUs)
- Smart contract support and quantum resistance

Key indicators:
- Tick: network processing cycle
- Epoch: network era
- Duration: processing time
- Health is assessed from these indicators`,

	TopicTechnology: `Qubic architecture:
1. Consensus: Useful Proof of Work (UPoW), combining security with useful computation.
2. QBC (Quorum-based Computer): Computors act as compute nodes, a quorum validates results, smart contracts run distributed.
3. Network indicators: Tick is the processing cycle, Duration drives performance, Epoch marks the network phase.`,

	TopicDevelopment: `Qubic developer ecosystem:
Tools: Qubic Dev Kit (local testnet), Qubic CLI, Qubic RPC, Qubic Node.
Libraries: Java, TypeScript, Go, C#, HTTP.
Resources: testnet faucet, wallet integration guides, official docs.`,

	TopicAnalysis: `Qubic network analysis guide:
Health indicators: tick should grow steadily, duration under 3 seconds is preferred, epoch transitions should be smooth, active addresses reflect adoption.
Performance: 0-1s excellent, 1-2s good, 2-3s fair, above 3s needs attention.
States: healthy (all indicators normal), normal (some indicators off), abnormal (several indicators failing).`,
}

// Context returns the background block for query, with a live network
// status section appended when data is available.
func Context(query string, data *NetworkData, lang string) string {
	topic := ClassifyQuery(query)
	var sb strings.Builder
	if lang == health.LangEnglish {
		sb.WriteString(enContexts[topic])
	} else {
		sb.WriteString(zhContexts[topic])
	}
	if data == nil {
		return sb.String()
	}

	if lang == health.LangEnglish {
		fmt.Fprintf(&sb, "\n\nCurrent network status:\n- Tick: %s\n- Duration: %s seconds\n- Epoch: %d\n- Health: %s\n- Active addresses: %s\n- Price: $%.9f",
			grouped(int64(data.Tick)), seconds(data.Duration), data.Epoch, data.healthText(lang), grouped(data.ActiveAddresses), data.Price)
	} else {
		fmt.Fprintf(&sb, "\n\n當前網路狀態：\n- Tick: %s\n- Duration: %s 秒\n- Epoch: %d\n- 健康狀況: %s\n- 活躍地址: %s\n- 價格: $%.9f",
			grouped(int64(data.Tick)), seconds(data.Duration), data.Epoch, data.healthText(lang), grouped(data.ActiveAddresses), data.Price)
	}
	return sb.String()
}

// EnhancePrompt wraps query with the topic context. Both templates end in
// an answer marker that post-processing splits on.
func EnhancePrompt(query string, data *NetworkData, lang string) string {
	ctx := Context(query, data, lang)
	if lang == health.LangEnglish {
		return fmt.Sprintf("You are a professional Qubic blockchain network analyst. Answer ONLY in English.\n\nQubic Knowledge:\n%s\n\nQuestion: %s\n\nAnalysis:", ctx, query)
	}
	return fmt.Sprintf(`<think>
我需要仔細分析用戶的具體問題："%s"
- 如果問題是關於網路狀況，重點分析當前運行指標
- 如果問題是關於健康評估，重點分析系統穩定性和風險
- 如果問題是關於 Epoch 進度，重點分析進度預測和時間估算
我需要針對具體問題提供專業且有差異化的回答。
</think>

作為專業的 Qubic 區塊鏈分析師，當前網路狀態：
%s
問題：%s
針對此問題的專業分析：`, query, ctx, query)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
