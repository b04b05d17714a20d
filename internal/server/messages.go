package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stywzn/qdashboard/internal/health"
)

type message struct {
	error   string
	message string
}

type messageKey int

const (
	msgInvalidBody messageKey = iota
	msgMissingQuestion
	msgAsyncDisabled
	msgTaskNotFound
	msgStatsUnavailable
	msgHistoryDisabled
	msgInternal
)

var messages = map[string]map[messageKey]message{
	health.LangChinese: {
		msgInvalidBody:      {"請求格式錯誤", "請提供有效的 JSON 內容"},
		msgMissingQuestion:  {"缺少問題", "請在 'question' 欄位中提供要查詢的問題"},
		msgAsyncDisabled:    {"非同步分析未啟用", "需要設定 MySQL 與 RabbitMQ"},
		msgTaskNotFound:     {"任務不存在", "請確認任務 ID 是否正確"},
		msgStatsUnavailable: {"無法獲取統計數據", "上游 RPC 暫時不可用，請稍後重試"},
		msgHistoryDisabled:  {"歷史記錄未啟用", "需要設定 MySQL"},
		msgInternal:         {"處理過程中發生錯誤", "請稍後重試或聯繫技術支援"},
	},
	health.LangEnglish: {
		msgInvalidBody:      {"Invalid request body", "Please provide a valid JSON body"},
		msgMissingQuestion:  {"Missing question", "Please provide a question in the 'question' field"},
		msgAsyncDisabled:    {"Async analysis disabled", "MySQL and RabbitMQ must be configured"},
		msgTaskNotFound:     {"Task not found", "Please check the task ID"},
		msgStatsUnavailable: {"Unable to fetch network statistics", "The upstream RPC is temporarily unavailable, please retry later"},
		msgHistoryDisabled:  {"History disabled", "MySQL must be configured"},
		msgInternal:         {"An error occurred while processing the request", "Please try again later or contact technical support"},
	},
}

// fail writes the localized error body {success:false,error,message,timestamp}.
func fail(c *gin.Context, status int, lang string, key messageKey) {
	m := messages[health.NormalizeLang(lang)][key]
	c.JSON(status, gin.H{
		"success":   false,
		"error":     m.error,
		"message":   m.message,
		"timestamp": time.Now().Unix(),
	})
}

func langOf(c *gin.Context) string {
	lang := c.Query("lang")
	if lang == "" {
		lang = c.Query("language")
	}
	return health.NormalizeLang(lang)
}
