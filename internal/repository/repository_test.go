package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stywzn/qdashboard/internal/model"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return New(gdb), mock
}

func TestRepository_CreateTask(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `analysis_tasks`")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateTask(context.Background(), &model.AnalysisTask{ID: "abc", Status: model.TaskPending, Language: "en"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetTask(t *testing.T) {
	repo, mock := newMockRepo(t)
	rows := sqlmock.NewRows([]string{"id", "status", "language", "input", "result", "error", "created_at", "updated_at", "deleted_at"}).
		AddRow("abc", model.TaskFinished, "en", "{}", `{"success":true}`, "", time.Now(), time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `analysis_tasks` WHERE id = ?")).
		WillReturnRows(rows)

	task, err := repo.GetTask(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, model.TaskFinished, task.Status)
	assert.True(t, task.Done())
	assert.Equal(t, `{"success":true}`, task.Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetTaskNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `analysis_tasks`")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRepository_UpdateTask(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `analysis_tasks` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateTask(context.Background(), "abc", model.TaskRunning, "", ""))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `analysis_tasks` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateTask(context.Background(), "gone", model.TaskFailed, "", "boom")
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Snapshots(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `network_snapshots`")).
		WillReturnResult(sqlmock.NewResult(7, 1))

	snap := &model.NetworkSnapshot{Tick: 100, Epoch: 175, DurationMs: 1000, Health: "healthy", Trend: "advancing", DataSource: "live"}
	require.NoError(t, repo.SaveSnapshot(context.Background(), snap))
	assert.Equal(t, uint(7), snap.ID)

	rows := sqlmock.NewRows([]string{"id", "tick", "epoch", "duration_ms", "health", "trend", "data_source", "created_at"}).
		AddRow(8, 101, 175, 900, "healthy", "advancing", "live", time.Now()).
		AddRow(7, 100, 175, 1000, "healthy", "advancing", "live", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `network_snapshots` ORDER BY id desc LIMIT")).
		WillReturnRows(rows)

	got, err := repo.ListSnapshots(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(101), got[0].Tick)
	assert.NoError(t, mock.ExpectationsWereMet())
}
