package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/stywzn/qdashboard/internal/health"
	"github.com/stywzn/qdashboard/internal/logger"
	"github.com/stywzn/qdashboard/pkg/cache"
	"github.com/stywzn/qdashboard/pkg/resilience"
)

const (
	defaultMaxTokens  = 200
	analysisMaxTokens = 300
	analysisQuery     = "network status analysis"
	cachePrefix       = "ai:"
)

// Reply sources.
const (
	SourceModel    = "model"
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

type Config struct {
	MaxTokens   int
	Temperature float64
	CacheTTL    time.Duration
	// Breaker tuning; zero values use the breaker defaults.
	FailureThreshold int
	Cooldown         time.Duration
}

// Reply is a post-processed answer.
type Reply struct {
	Text   string `json:"response"`
	Source string `json:"source"`
	Model  string `json:"model,omitempty"`
	Score  *Score `json:"score,omitempty"`
}

// AnalysisResult is the structured output of Analyze.
type AnalysisResult struct {
	Success         bool     `json:"success"`
	Analysis        string   `json:"analysis"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
	Confidence      float64  `json:"confidence"`
	DataQuality     string   `json:"data_quality"`
	Source          string   `json:"source"`
	Model           string   `json:"model,omitempty"`
	Score           *Score   `json:"score,omitempty"`
	Language        string   `json:"language"`
	AnalysisTime    float64  `json:"analysis_time"`
	Timestamp       int64    `json:"timestamp"`
}

// Status describes the engine for the status endpoint.
type Status struct {
	Provider  string `json:"provider"`
	Ready     bool   `json:"ready"`
	Breaker   string `json:"breaker"`
	LastCheck string `json:"last_check"`
}

// Engine runs prompts through the generator and the quality gates.
type Engine struct {
	gen     Generator
	cache   cache.Cache
	breaker *resilience.Breaker
	cfg     Config
	log     logger.Logger
	now     func() time.Time
}

// NewEngine wires an engine. c may be nil to disable response caching.
func NewEngine(gen Generator, c cache.Cache, cfg Config, log logger.Logger) *Engine {
	if gen == nil {
		gen = Unavailable{}
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	e := &Engine{gen: gen, cache: c, cfg: cfg, log: log, now: time.Now}
	e.breaker = resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: 1,
		Cooldown:         cfg.Cooldown,
		OnStateChange: func(from, to resilience.State) {
			log.Warn("ai breaker state changed",
				logger.String("from", from.String()),
				logger.String("to", to.String()),
				logger.String("provider", gen.Name()))
		},
	})
	return e
}

// Ready reports whether a model call would be attempted right now.
func (e *Engine) Ready() bool {
	if _, none := e.gen.(Unavailable); none {
		return false
	}
	return e.breaker.Allow()
}

func (e *Engine) Status() Status {
	return Status{
		Provider:  e.gen.Name(),
		Ready:     e.Ready(),
		Breaker:   e.breaker.State().String(),
		LastCheck: e.now().Format("2006-01-02 15:04:05"),
	}
}

func (e *Engine) Health(ctx context.Context) error {
	return e.gen.Health(ctx)
}

// Analyze produces a structured analysis of data. It never fails: generator
// errors degrade to a fallback analysis.
func (e *Engine) Analyze(ctx context.Context, data *NetworkData, lang string) *AnalysisResult {
	lang = health.NormalizeLang(lang)
	start := e.now()

	reply, err := e.generate(ctx, AnalysisPrompt(data, lang), analysisQuery, data, lang, analysisMaxTokens)
	if err != nil {
		reply = Reply{Source: SourceFallback}
		if data != nil && data.EpochTickQuality > 0 {
			reply.Text = QualityFallback(data.EpochTickQuality, lang)
		} else {
			reply.Text = FallbackResponse(analysisQuery, data, lang)
		}
	}

	return &AnalysisResult{
		Success:         true,
		Analysis:        reply.Text,
		Insights:        ExtractInsights(reply.Text),
		Recommendations: ExtractRecommendations(reply.Text),
		Confidence:      Confidence(data),
		DataQuality:     DataQuality(data),
		Source:          reply.Source,
		Model:           reply.Model,
		Score:           reply.Score,
		Language:        lang,
		AnalysisTime:    e.now().Sub(start).Seconds(),
		Timestamp:       e.now().Unix(),
	}
}

// Answer responds to a free-form question using live data as context.
func (e *Engine) Answer(ctx context.Context, question string, data *NetworkData, lang string) Reply {
	lang = health.NormalizeLang(lang)
	reply, err := e.generate(ctx, QuestionPrompt(question, data, lang), question, data, lang, e.cfg.MaxTokens)
	if err != nil {
		return Reply{Text: FallbackResponse(question, data, lang), Source: SourceFallback}
	}
	return reply
}

// generate returns an error only when the generator itself failed. Answers
// rejected by post-processing come back as fallback replies.
func (e *Engine) generate(ctx context.Context, prompt, query string, data *NetworkData, lang string, maxTokens int) (Reply, error) {
	key := cacheKey(lang, prompt)
	if e.cache != nil {
		var cached Reply
		if ok, err := cache.GetJSON(ctx, e.cache, key, &cached); err != nil {
			e.log.Warn("ai cache read failed", logger.Error(err))
		} else if ok {
			cached.Source = SourceCache
			return cached, nil
		}
	}

	var comp Completion
	err := e.breaker.Execute(func() error {
		var err error
		comp, err = e.gen.Generate(ctx, Request{
			Prompt:      prompt,
			Language:    lang,
			MaxTokens:   maxTokens,
			Temperature: e.cfg.Temperature,
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrGeneratorUnavailable) {
			e.log.Warn("ai generation failed", logger.String("provider", e.gen.Name()), logger.Error(err))
		}
		return Reply{}, err
	}

	fallback := func(reason string) (Reply, error) {
		e.log.Info("ai answer replaced by fallback",
			logger.String("reason", reason),
			logger.String("lang", lang),
			logger.Int("raw_len", len(comp.Text)))
		return Reply{Text: FallbackResponse(query, data, lang), Source: SourceFallback, Model: comp.Model}, nil
	}

	text, ok := ExtractAnswer(comp.Text, prompt)
	if !ok {
		return fallback("too short")
	}
	text = CleanFormat(text)
	if lang == health.LangEnglish && ContainsCJK(text) {
		return fallback("language mismatch")
	}
	score := ScoreResponse(text)
	if score.Accuracy < MinAcceptableScore {
		return fallback("low score")
	}

	reply := Reply{Text: text, Source: SourceModel, Model: comp.Model, Score: &score}
	e.log.Debug("ai answer accepted",
		logger.String("provider", e.gen.Name()),
		logger.Int("score", score.Accuracy),
		logger.Duration("inference_time", comp.InferenceTime))

	if e.cache != nil && e.cfg.CacheTTL > 0 {
		if err := cache.SetJSON(ctx, e.cache, key, reply, e.cfg.CacheTTL); err != nil {
			e.log.Warn("ai cache write failed", logger.Error(err))
		}
	}
	return reply, nil
}

func cacheKey(lang, prompt string) string {
	sum := sha256.Sum256([]byte(lang + "\x00" + prompt))
	return cachePrefix + hex.EncodeToString(sum[:])
}
