package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/stywzn/qdashboard/internal/health"
	"github.com/stywzn/qdashboard/internal/logger"
	"github.com/stywzn/qdashboard/internal/model"
	"github.com/stywzn/qdashboard/internal/qubic"
	"github.com/stywzn/qdashboard/internal/repository"
	"github.com/stywzn/qdashboard/pkg/ai"
	"github.com/stywzn/qdashboard/pkg/cache"
	"github.com/stywzn/qdashboard/pkg/mq"
)

type fakeAPI struct {
	tick      uint64
	tickErr   error
	stats     qubic.Stats
	statsErr  error
	status    qubic.Status
	info      *qubic.TickInfo
	tickCalls atomic.Int32
}

func (f *fakeAPI) LatestTick(context.Context) (uint64, error) {
	f.tickCalls.Add(1)
	return f.tick, f.tickErr
}

func (f *fakeAPI) TickInfo(context.Context) (qubic.TickInfo, error) {
	if f.info != nil {
		return *f.info, nil
	}
	return qubic.TickInfo{Tick: f.tick}, f.tickErr
}

func (f *fakeAPI) LatestStats(context.Context) (qubic.Stats, error) {
	return f.stats, f.statsErr
}

func (f *fakeAPI) Status(context.Context) (qubic.Status, error) {
	return f.status, nil
}

func intp(v int64) *qubic.Int {
	n := qubic.Int(v)
	return &n
}

func liveAPI() *fakeAPI {
	return &fakeAPI{
		tick: 31584874,
		stats: qubic.Stats{
			Epoch:                    175,
			CurrentTick:              31584874,
			TicksInCurrentEpoch:      84874,
			EmptyTicksInCurrentEpoch: 100,
			EpochTickQuality:         92.08,
			ActiveAddresses:          500000,
			Price:                    0.000002,
		},
		status: qubic.Status{TimestampMs: intp(2500), PreviousTimestampMs: intp(1000)},
	}
}

func TestProvider_TickData(t *testing.T) {
	api := liveAPI()
	p := NewProvider(api, cache.NewMemory(), time.Minute, logger.NewNop())
	ctx := context.Background()

	got := p.TickData(ctx)
	assert.Equal(t, uint64(31584874), got.Tick)
	assert.Equal(t, int64(1500), got.DurationMs)
	assert.Equal(t, 1.5, got.DurationS)
	assert.Equal(t, int64(2), got.Duration)
	assert.Equal(t, int64(175), got.Epoch)
	assert.Equal(t, health.LabelHealthy, got.Health.Overall)
	assert.Equal(t, health.TrendAdvancing, got.Trend)
	assert.Equal(t, SourceReal, got.DataSource)
	assert.Equal(t, "connected", p.ConnectionStatus())

	again := p.TickData(ctx)
	assert.Equal(t, got, again)
	assert.Equal(t, int32(1), api.tickCalls.Load(), "second read served from cache")
}

func TestProvider_TickDataStatsFailureKeepsTick(t *testing.T) {
	api := liveAPI()
	api.statsErr = errors.New("stats down")
	p := NewProvider(api, nil, 0, logger.NewNop())

	got := p.TickData(context.Background())
	assert.Equal(t, SourceReal, got.DataSource)
	assert.Equal(t, int64(0), got.Epoch)
}

func TestProvider_TickDataFailure(t *testing.T) {
	api := &fakeAPI{tickErr: errors.New("connection refused")}
	p := NewProvider(api, nil, time.Minute, logger.NewNop())

	got := p.TickData(context.Background())
	assert.Equal(t, SourceError, got.DataSource)
	assert.Equal(t, health.LabelOffline, got.Health.Overall)
	assert.Equal(t, uint64(0), got.Tick)
	assert.Contains(t, got.ConnectionStatus, "connection refused")
	assert.NotEmpty(t, got.Error)

	_, ok := p.NetworkData(context.Background())
	assert.False(t, ok)
}

func TestProvider_TickDataFallsBackToLastProcessedTick(t *testing.T) {
	api := liveAPI()
	api.tickErr = errors.New("connection reset by peer")
	api.statsErr = errors.New("stats down")
	require.NoError(t, json.Unmarshal(
		[]byte(`{"lastProcessedTick":{"tickNumber":31584900,"epoch":175},"duration":1}`), &api.status))
	p := NewProvider(api, nil, 0, logger.NewNop())

	got := p.TickData(context.Background())
	assert.Equal(t, SourceReal, got.DataSource)
	assert.Equal(t, uint64(31584900), got.Tick)
	assert.Equal(t, int64(175), got.Epoch)
	assert.Equal(t, "connected", p.ConnectionStatus())
}

func TestProvider_TickDataFallsBackToTickInfo(t *testing.T) {
	api := liveAPI()
	api.tickErr = errors.New("latest-tick: 502")
	api.statsErr = errors.New("stats down")
	api.info = &qubic.TickInfo{Tick: 31584880, Epoch: 175, Duration: 1}
	p := NewProvider(api, nil, 0, logger.NewNop())

	got := p.TickData(context.Background())
	assert.Equal(t, SourceReal, got.DataSource)
	assert.Equal(t, uint64(31584880), got.Tick)
	assert.Equal(t, int64(175), got.Epoch)
}

func TestProvider_EpochFromTickInfoWhenStatsFail(t *testing.T) {
	api := liveAPI()
	api.statsErr = errors.New("stats down")
	api.info = &qubic.TickInfo{Tick: 31584874, Epoch: 175}
	p := NewProvider(api, nil, 0, logger.NewNop())

	got := p.TickData(context.Background())
	assert.Equal(t, uint64(31584874), got.Tick)
	assert.Equal(t, int64(175), got.Epoch)
}

func TestProvider_DurationFromTickQualityWithoutTimestamps(t *testing.T) {
	api := liveAPI()
	api.status = qubic.Status{}
	api.stats.EmptyTicksInCurrentEpoch = 6722
	p := NewProvider(api, nil, 0, logger.NewNop())
	ctx := context.Background()

	// 2.5s band for 92.08% quality plus 2 x 7.9% empty ticks.
	first := p.TickData(ctx)
	assert.Equal(t, int64(2658), first.DurationMs)
	assert.Equal(t, int64(3), first.Duration)
	assert.Equal(t, health.LabelNormal, first.Health.Overall)

	stalled := p.TickData(ctx)
	assert.Equal(t, health.TrendStalled, stalled.Trend)
	assert.Equal(t, int64(2658), stalled.DurationMs)

	api.stats.EpochTickQuality = 0
	api.tick++
	p2 := NewProvider(api, nil, 0, logger.NewNop())
	assert.Equal(t, int64(1000), p2.TickData(ctx).DurationMs, "no quality figure keeps the placeholder")
}

func TestProvider_TrendAcrossFetches(t *testing.T) {
	api := liveAPI()
	p := NewProvider(api, nil, 0, logger.NewNop())
	ctx := context.Background()

	assert.Equal(t, health.TrendAdvancing, p.TickData(ctx).Trend)
	assert.Equal(t, health.TrendStalled, p.TickData(ctx).Trend)
	api.tick--
	assert.Equal(t, health.TrendRegressed, p.TickData(ctx).Trend)
}

func TestProvider_StatsAndEpoch(t *testing.T) {
	p := NewProvider(liveAPI(), nil, 0, logger.NewNop())
	ctx := context.Background()

	s := p.Stats(ctx)
	assert.Equal(t, SourceReal, s.DataSource)
	assert.Equal(t, int64(500000), s.ActiveAddresses)

	ep, ok := p.EpochProgress(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(175), ep.Epoch)
	assert.Equal(t, int64(31500000), ep.InitialTick)

	failing := &fakeAPI{statsErr: errors.New("down")}
	fs := NewProvider(failing, nil, 0, logger.NewNop()).Stats(ctx)
	assert.Equal(t, SourceError, fs.DataSource)
	assert.Zero(t, fs.ActiveAddresses)
}

func TestProvider_NetworkData(t *testing.T) {
	p := NewProvider(liveAPI(), nil, 0, logger.NewNop())

	d, ok := p.NetworkData(context.Background())
	require.True(t, ok)
	assert.Equal(t, uint64(31584874), d.Tick)
	assert.Equal(t, 1.5, d.Duration)
	assert.Equal(t, "healthy", d.Health.Overall)
	assert.Equal(t, 92.08, d.EpochTickQuality)
	assert.Equal(t, int64(84874), d.TicksInEpoch)
}

type fakeRecorder struct {
	ticks []TickData
	stats []NetworkStats
}

func (r *fakeRecorder) RecordTick(t TickData)      { r.ticks = append(r.ticks, t) }
func (r *fakeRecorder) RecordStats(s NetworkStats) { r.stats = append(r.stats, s) }

type fakeStatus struct {
	mu  sync.Mutex
	got map[string]healthpb.HealthCheckResponse_ServingStatus
}

func (f *fakeStatus) SetServingStatus(service string, st healthpb.HealthCheckResponse_ServingStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.got == nil {
		f.got = map[string]healthpb.HealthCheckResponse_ServingStatus{}
	}
	f.got[service] = st
}

type fakeSnapshots struct {
	saved []*model.NetworkSnapshot
}

func (f *fakeSnapshots) SaveSnapshot(_ context.Context, s *model.NetworkSnapshot) error {
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeSnapshots) ListSnapshots(context.Context, int) ([]model.NetworkSnapshot, error) {
	return nil, nil
}

func TestPoller_PollPushesState(t *testing.T) {
	rec := &fakeRecorder{}
	st := &fakeStatus{}
	snaps := &fakeSnapshots{}
	p := NewPoller(NewProvider(liveAPI(), nil, 0, logger.NewNop()), PollerConfig{}, logger.NewNop(),
		WithRecorder(rec), WithStatusSetter(st), WithSnapshots(snaps),
		WithAIHealth(func(context.Context) error { return errors.New("offline") }))
	ctx := context.Background()

	p.pollTick(ctx)
	p.pollStats(ctx)
	p.pollAI(ctx)

	require.Len(t, rec.ticks, 1)
	require.Len(t, rec.stats, 1)
	require.Len(t, snaps.saved, 1)
	assert.Equal(t, "healthy", snaps.saved[0].Health)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st.got[NetworkService])
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st.got[AIService])
}

func TestPoller_OfflineNetworkNotServing(t *testing.T) {
	st := &fakeStatus{}
	snaps := &fakeSnapshots{}
	api := &fakeAPI{tickErr: errors.New("down")}
	p := NewPoller(NewProvider(api, nil, 0, logger.NewNop()), PollerConfig{}, logger.NewNop(),
		WithStatusSetter(st), WithSnapshots(snaps))

	p.pollTick(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st.got[NetworkService])
	assert.Empty(t, snaps.saved)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPoller(NewProvider(liveAPI(), nil, 0, logger.NewNop()), PollerConfig{TickInterval: time.Millisecond}, logger.NewNop())

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

type memTasks struct {
	mu    sync.Mutex
	tasks map[string]*model.AnalysisTask
}

func newMemTasks() *memTasks { return &memTasks{tasks: map[string]*model.AnalysisTask{}} }

func (m *memTasks) CreateTask(_ context.Context, t *model.AnalysisTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTasks) GetTask(_ context.Context, id string) (*model.AnalysisTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTasks) UpdateTask(_ context.Context, id, status, result, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return repository.ErrTaskNotFound
	}
	t.Status, t.Result, t.Error = status, result, errMsg
	return nil
}

// flakyTasks fails the next FINISHED writes with the queued errors and, like
// a database driver, refuses writes on a cancelled context.
type flakyTasks struct {
	*memTasks
	finishErrs []error
}

func (f *flakyTasks) UpdateTask(ctx context.Context, id, status, result, errMsg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if status == model.TaskFinished && len(f.finishErrs) > 0 {
		err := f.finishErrs[0]
		f.finishErrs = f.finishErrs[1:]
		return err
	}
	return f.memTasks.UpdateTask(ctx, id, status, result, errMsg)
}

type deliveryLog struct {
	mu       sync.Mutex
	acked    []uint64
	dropped  []uint64
	requeued []uint64
}

func (d *deliveryLog) Ack(tag uint64, _ bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acked = append(d.acked, tag)
	return nil
}

func (d *deliveryLog) Nack(tag uint64, _ bool, requeue bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if requeue {
		d.requeued = append(d.requeued, tag)
	} else {
		d.dropped = append(d.dropped, tag)
	}
	return nil
}

func (d *deliveryLog) Reject(tag uint64, requeue bool) error { return d.Nack(tag, false, requeue) }

// deliver runs one delivery of body through the worker pool.
func deliver(ctx context.Context, svc *AnalysisService, acks *deliveryLog, tag uint64, body []byte) {
	msgs := make(chan amqp.Delivery, 1)
	msgs <- amqp.Delivery{Acknowledger: acks, DeliveryTag: tag, Body: body}
	close(msgs)
	mq.Serve(ctx, 1, msgs, svc.Process)
}

type fakePublisher struct {
	bodies [][]byte
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}

type fakeAnalyzer struct {
	calls int
	got   *ai.NetworkData
}

func (f *fakeAnalyzer) Analyze(_ context.Context, data *ai.NetworkData, lang string) *ai.AnalysisResult {
	f.calls++
	f.got = data
	return &ai.AnalysisResult{Success: true, Analysis: "all good", Source: ai.SourceModel, Language: lang, Confidence: 1}
}

// cancellingAnalyzer cancels the worker context mid-analysis, as a shutdown
// signal would.
type cancellingAnalyzer struct{ cancel context.CancelFunc }

func (c cancellingAnalyzer) Analyze(_ context.Context, _ *ai.NetworkData, lang string) *ai.AnalysisResult {
	c.cancel()
	return &ai.AnalysisResult{Success: true, Analysis: "done", Language: lang}
}

func TestAnalysisService_SubmitProcessGet(t *testing.T) {
	store := newMemTasks()
	pub := &fakePublisher{}
	an := &fakeAnalyzer{}
	svc := NewAnalysisService(store, pub, an, logger.NewNop())
	ctx := context.Background()

	task, err := svc.Submit(ctx, "en", &ai.NetworkData{Tick: 42, Duration: 1})
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, task.Status)
	require.Len(t, pub.bodies, 1)
	assert.Equal(t, task.ID, string(pub.bodies[0]))

	require.NoError(t, svc.Process(ctx, pub.bodies[0]))
	assert.Equal(t, uint64(42), an.got.Tick)

	view, err := svc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskFinished, view.Status)
	require.NotNil(t, view.Result)
	assert.Equal(t, "all good", view.Result.Analysis)
	assert.Equal(t, "en", view.Result.Language)

	// redelivery of a finished task is a no-op
	require.NoError(t, svc.Process(ctx, pub.bodies[0]))
	assert.Equal(t, 1, an.calls)
}

func TestAnalysisService_PublishFailureMarksFailed(t *testing.T) {
	store := newMemTasks()
	svc := NewAnalysisService(store, &fakePublisher{err: errors.New("channel closed")}, &fakeAnalyzer{}, logger.NewNop())

	_, err := svc.Submit(context.Background(), "zh-tw", &ai.NetworkData{})
	require.Error(t, err)

	require.Len(t, store.tasks, 1)
	for _, task := range store.tasks {
		assert.Equal(t, model.TaskFailed, task.Status)
	}
}

func TestAnalysisService_InvalidInputFails(t *testing.T) {
	store := newMemTasks()
	require.NoError(t, store.CreateTask(context.Background(), &model.AnalysisTask{ID: "x", Status: model.TaskPending, Input: "{not json"}))
	svc := NewAnalysisService(store, &fakePublisher{}, &fakeAnalyzer{}, logger.NewNop())

	assert.Error(t, svc.Process(context.Background(), []byte("x")))
	assert.Equal(t, model.TaskFailed, store.tasks["x"].Status)
}

func TestAnalysisService_TransientResultWriteIsRetried(t *testing.T) {
	store := &flakyTasks{
		memTasks:   newMemTasks(),
		finishErrs: []error{errors.New("update task: read tcp 10.0.0.2:3306: connection reset by peer")},
	}
	pub := &fakePublisher{}
	an := &fakeAnalyzer{}
	svc := NewAnalysisService(store, pub, an, logger.NewNop())
	ctx := context.Background()

	task, err := svc.Submit(ctx, "en", &ai.NetworkData{Tick: 42, Duration: 1})
	require.NoError(t, err)

	acks := &deliveryLog{}
	deliver(ctx, svc, acks, 1, pub.bodies[0])
	assert.Equal(t, []uint64{1}, acks.requeued)
	assert.Empty(t, acks.dropped)
	assert.Equal(t, model.TaskRunning, store.tasks[task.ID].Status)

	// the broker redelivers the requeued message
	deliver(ctx, svc, acks, 2, pub.bodies[0])
	assert.Equal(t, []uint64{2}, acks.acked)
	assert.Equal(t, model.TaskFinished, store.tasks[task.ID].Status)
	assert.Equal(t, 2, an.calls)
}

func TestAnalysisService_PermanentResultWriteMarksFailed(t *testing.T) {
	store := &flakyTasks{
		memTasks:   newMemTasks(),
		finishErrs: []error{errors.New("Error 1406: Data too long for column 'result'")},
	}
	pub := &fakePublisher{}
	svc := NewAnalysisService(store, pub, &fakeAnalyzer{}, logger.NewNop())
	ctx := context.Background()

	task, err := svc.Submit(ctx, "en", &ai.NetworkData{Tick: 42})
	require.NoError(t, err)

	acks := &deliveryLog{}
	deliver(ctx, svc, acks, 1, pub.bodies[0])
	assert.Equal(t, []uint64{1}, acks.dropped)
	assert.Equal(t, model.TaskFailed, store.tasks[task.ID].Status)
	assert.Equal(t, "store result failed", store.tasks[task.ID].Error)
}

func TestAnalysisService_ResultStoredAfterCancel(t *testing.T) {
	store := &flakyTasks{memTasks: newMemTasks()}
	pub := &fakePublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewAnalysisService(store, pub, cancellingAnalyzer{cancel}, logger.NewNop())

	task, err := svc.Submit(context.Background(), "en", &ai.NetworkData{Tick: 42})
	require.NoError(t, err)

	require.NoError(t, svc.Process(ctx, pub.bodies[0]))
	assert.Equal(t, model.TaskFinished, store.tasks[task.ID].Status)
}

func TestAnalysisService_Disabled(t *testing.T) {
	svc := NewAnalysisService(nil, nil, &fakeAnalyzer{}, logger.NewNop())
	assert.False(t, svc.Enabled())

	_, err := svc.Submit(context.Background(), "en", nil)
	assert.ErrorIs(t, err, ErrAsyncDisabled)
	_, err = svc.Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrAsyncDisabled)
}

func TestAnalysisService_GetUnknown(t *testing.T) {
	svc := NewAnalysisService(newMemTasks(), &fakePublisher{}, &fakeAnalyzer{}, logger.NewNop())
	_, err := svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrTaskNotFound)
}

func TestTaskView_JSON(t *testing.T) {
	v := TaskView{ID: "a", Status: model.TaskPending}
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "result")
}
