package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stywzn/qdashboard/internal/health"
	"github.com/stywzn/qdashboard/internal/logger"
	"github.com/stywzn/qdashboard/internal/model"
	"github.com/stywzn/qdashboard/pkg/ai"
	"github.com/stywzn/qdashboard/pkg/resilience"
)

var ErrAsyncDisabled = errors.New("async analysis requires mysql and rabbitmq")

type TaskStore interface {
	CreateTask(ctx context.Context, t *model.AnalysisTask) error
	GetTask(ctx context.Context, id string) (*model.AnalysisTask, error)
	UpdateTask(ctx context.Context, id, status, result, errMsg string) error
}

type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

type Analyzer interface {
	Analyze(ctx context.Context, data *ai.NetworkData, lang string) *ai.AnalysisResult
}

// TaskView is the API representation of a task with its decoded result.
type TaskView struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	Language  string             `json:"language"`
	Error     string             `json:"error,omitempty"`
	Result    *ai.AnalysisResult `json:"result,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// AnalysisService queues analyses for the worker and runs them there.
type AnalysisService struct {
	store    TaskStore
	pub      Publisher
	analyzer Analyzer
	log      logger.Logger
}

// NewAnalysisService accepts a nil store or publisher; Submit then reports
// ErrAsyncDisabled.
func NewAnalysisService(store TaskStore, pub Publisher, analyzer Analyzer, log logger.Logger) *AnalysisService {
	return &AnalysisService{store: store, pub: pub, analyzer: analyzer, log: log}
}

func (s *AnalysisService) Enabled() bool {
	return s.store != nil && s.pub != nil
}

// Submit persists a PENDING task and publishes its ID.
func (s *AnalysisService) Submit(ctx context.Context, lang string, data *ai.NetworkData) (*model.AnalysisTask, error) {
	if !s.Enabled() {
		return nil, ErrAsyncDisabled
	}
	input, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode task input: %w", err)
	}

	task := &model.AnalysisTask{
		ID:       uuid.NewString(),
		Status:   model.TaskPending,
		Language: health.NormalizeLang(lang),
		Input:    string(input),
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	if err := s.pub.Publish(ctx, []byte(task.ID)); err != nil {
		s.log.Error("enqueue analysis task failed", logger.String("task_id", task.ID), logger.Error(err))
		if uerr := s.store.UpdateTask(ctx, task.ID, model.TaskFailed, "", "enqueue failed"); uerr != nil {
			s.log.Error("mark task failed", logger.String("task_id", task.ID), logger.Error(uerr))
		}
		return nil, fmt.Errorf("enqueue task %s: %w", task.ID, err)
	}

	s.log.Info("analysis task submitted", logger.String("task_id", task.ID), logger.String("lang", task.Language))
	return task, nil
}

func (s *AnalysisService) Get(ctx context.Context, id string) (*TaskView, error) {
	if s.store == nil {
		return nil, ErrAsyncDisabled
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &TaskView{
		ID:        t.ID,
		Status:    t.Status,
		Language:  t.Language,
		Error:     t.Error,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.Result != "" {
		var res ai.AnalysisResult
		if err := json.Unmarshal([]byte(t.Result), &res); err != nil {
			return nil, fmt.Errorf("decode result of task %s: %w", id, err)
		}
		view.Result = &res
	}
	return view, nil
}

// Process runs one queued task. It is the worker's message handler: body is
// the task ID. Redelivered tasks that already finished are skipped.
// A transient error storing the result is returned as-is so the delivery is
// requeued; any other failure after RUNNING marks the task FAILED.
func (s *AnalysisService) Process(ctx context.Context, body []byte) error {
	id := string(body)
	log := s.log.With(logger.String("task_id", id))

	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		log.Error("load task failed", logger.Error(err))
		return err
	}
	if t.Done() {
		log.Info("task already done, skipping", logger.String("status", t.Status))
		return nil
	}

	if err := s.store.UpdateTask(ctx, id, model.TaskRunning, "", ""); err != nil {
		return err
	}

	var data ai.NetworkData
	if err := json.Unmarshal([]byte(t.Input), &data); err != nil {
		log.Error("decode task input failed", logger.Error(err))
		return s.fail(ctx, log, id, "invalid input", fmt.Errorf("decode input of task %s: %w", id, err))
	}

	start := time.Now()
	res := s.analyzer.Analyze(ctx, &data, t.Language)
	out, err := json.Marshal(res)
	if err != nil {
		return s.fail(ctx, log, id, "encode result failed", fmt.Errorf("encode result of task %s: %w", id, err))
	}

	// 分析已完成, 结果写入不受关闭信号影响
	if err := s.store.UpdateTask(context.WithoutCancel(ctx), id, model.TaskFinished, string(out), ""); err != nil {
		if resilience.IsTransient(err) {
			log.Warn("store task result failed, will retry", logger.Error(err))
			return err
		}
		log.Error("store task result failed", logger.Error(err))
		return s.fail(ctx, log, id, "store result failed", err)
	}
	log.Info("task finished",
		logger.String("source", res.Source),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

// fail marks a RUNNING task FAILED and returns cause. When the mark itself
// hits a transient error, that error is returned so the task is retried
// instead of left RUNNING.
func (s *AnalysisService) fail(ctx context.Context, log logger.Logger, id, reason string, cause error) error {
	if err := s.store.UpdateTask(context.WithoutCancel(ctx), id, model.TaskFailed, "", reason); err != nil {
		log.Error("mark task failed", logger.String("reason", reason), logger.Error(err))
		if resilience.IsTransient(err) {
			return err
		}
	}
	return cause
}
