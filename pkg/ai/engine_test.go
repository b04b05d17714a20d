package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stywzn/qdashboard/internal/logger"
	"github.com/stywzn/qdashboard/pkg/cache"
)

type fakeGenerator struct {
	text  string
	err   error
	calls int
	last  Request
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(_ context.Context, req Request) (Completion, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return Completion{}, f.err
	}
	return Completion{Text: f.text, Model: "fake-1"}, nil
}

func (f *fakeGenerator) Health(context.Context) error { return f.err }

var liveData = &NetworkData{
	Tick:             31584874,
	Duration:         1,
	Epoch:            175,
	Health:           HealthState{Overall: "healthy"},
	EpochTickQuality: 95,
}

func newTestEngine(gen Generator, c cache.Cache) *Engine {
	return NewEngine(gen, c, Config{MaxTokens: 200, Temperature: 0.6, CacheTTL: time.Minute, FailureThreshold: 2, Cooldown: time.Minute}, logger.NewNop())
}

func TestEngine_AnswerFromModelIsCached(t *testing.T) {
	gen := &fakeGenerator{text: "Analysis: The Qubic network is healthy at tick 31584874, recommend routine monitoring."}
	e := newTestEngine(gen, cache.NewMemory())
	ctx := context.Background()

	reply := e.Answer(ctx, "How is the network?", liveData, "en")
	assert.Equal(t, SourceModel, reply.Source)
	assert.Equal(t, "The Qubic network is healthy at tick 31584874, recommend routine monitoring.", reply.Text)
	require.NotNil(t, reply.Score)
	assert.Equal(t, 200, gen.last.MaxTokens)
	assert.Equal(t, "en", gen.last.Language)

	again := e.Answer(ctx, "How is the network?", liveData, "en")
	assert.Equal(t, SourceCache, again.Source)
	assert.Equal(t, reply.Text, again.Text)
	assert.Equal(t, 1, gen.calls)
}

func TestEngine_EnglishAnswerWithChineseFallsBack(t *testing.T) {
	gen := &fakeGenerator{text: "Analysis: 網路運行穩定 and the tick keeps growing steadily."}
	e := newTestEngine(gen, nil)

	reply := e.Answer(context.Background(), "network status", liveData, "en")
	assert.Equal(t, SourceFallback, reply.Source)
	assert.Equal(t, FallbackResponse("network status", liveData, "en"), reply.Text)
}

func TestEngine_LowScoreFallsBack(t *testing.T) {
	gen := &fakeGenerator{text: "Answer: bitcoin ethereum openai chatgpt"}
	e := newTestEngine(gen, nil)

	reply := e.Answer(context.Background(), "what is qubic", nil, "en")
	assert.Equal(t, SourceFallback, reply.Source)
	assert.Contains(t, reply.Text, "Quorum-based Computer")
}

func TestEngine_GeneratorErrorOpensBreaker(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	e := newTestEngine(gen, nil)
	ctx := context.Background()

	assert.True(t, e.Ready())
	for i := 0; i < 3; i++ {
		reply := e.Answer(ctx, "網路狀況", liveData, "zh-tw")
		assert.Equal(t, SourceFallback, reply.Source)
	}
	assert.Equal(t, 2, gen.calls, "open breaker short-circuits the third call")
	assert.False(t, e.Ready())
	assert.Equal(t, "open", e.Status().Breaker)
}

func TestEngine_AnalyzeFromModel(t *testing.T) {
	gen := &fakeGenerator{text: "專業分析：\n網路正常運行，Tick 31584874 穩定增長。\n建議：\n- 持續監控 Duration\n- 觀察 Epoch 轉換"}
	e := newTestEngine(gen, nil)

	res := e.Analyze(context.Background(), liveData, "zh-tw")
	assert.True(t, res.Success)
	assert.Equal(t, SourceModel, res.Source)
	assert.Equal(t, 300, gen.last.MaxTokens)
	assert.Contains(t, res.Insights, "網路正常運行，Tick 31584874 穩定增長。")
	assert.Equal(t, []string{"- 持續監控 Duration", "- 觀察 Epoch 轉換"}, res.Recommendations)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "good", res.DataQuality)
	assert.Equal(t, "zh-tw", res.Language)
}

func TestEngine_AnalyzeGeneratorFailureUsesQualityFallback(t *testing.T) {
	e := newTestEngine(&fakeGenerator{err: errors.New("timeout")}, nil)

	res := e.Analyze(context.Background(), liveData, "en")
	assert.Equal(t, SourceFallback, res.Source)
	assert.Contains(t, res.Analysis, "Excellent")
	assert.Equal(t, "en", res.Language)
}

func TestEngine_UnavailableBackend(t *testing.T) {
	e := NewEngine(nil, nil, Config{}, logger.NewNop())
	assert.False(t, e.Ready())
	assert.Equal(t, "none", e.Status().Provider)
	assert.ErrorIs(t, e.Health(context.Background()), ErrGeneratorUnavailable)

	res := e.Analyze(context.Background(), nil, "fr")
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, "zh-tw", res.Language)
	assert.Equal(t, "poor", res.DataQuality)
}

func TestOrchestratorClient(t *testing.T) {
	var got inferenceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/inference":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(inferenceResponse{Response: "hello", InferenceTime: 1.5, Model: "deepseek"})
		case "/health":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewOrchestratorClient(srv.URL+"/", time.Second, 1)
	comp, err := c.Generate(context.Background(), Request{Prompt: "p", Language: "en", MaxTokens: 300, Temperature: 0.6})
	require.NoError(t, err)
	assert.Equal(t, "hello", comp.Text)
	assert.Equal(t, "deepseek", comp.Model)
	assert.Equal(t, 1500*time.Millisecond, comp.InferenceTime)
	assert.Equal(t, inferenceRequest{Prompt: "p", Language: "en", MaxLength: 300, Temperature: 0.6}, got)

	assert.NoError(t, c.Health(context.Background()))
}

func TestOrchestratorClient_RetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewOrchestratorClient(srv.URL, time.Second, 2)
	c.retry.InitialDelay = time.Millisecond
	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	var se *statusError
	assert.ErrorAs(t, err, &se)
}
