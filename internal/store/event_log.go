// event_log.go — event_log 表 CRUD (后端事件流审计存档)。
//
// 每条下行事件原样落库, 排障时可按 task_id 重放对账过程。
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stepfun-ai/StepDeepResearch/internal/protocol"
	"github.com/stepfun-ai/StepDeepResearch/pkg/logger"
)

// EventRecord 一条已落库的后端事件。
type EventRecord struct {
	ID        int64           `db:"id" json:"id"`
	TaskID    string          `db:"task_id" json:"taskId"`
	EventID   string          `db:"event_id" json:"eventId"`
	EventType string          `db:"event_type" json:"eventType"`
	AgentName string          `db:"agent_name" json:"agentName"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// EventLogStore event_log 存储。
type EventLogStore struct{ BaseStore }

// NewEventLogStore 创建。
func NewEventLogStore(pool *pgxpool.Pool) *EventLogStore {
	return &EventLogStore{NewBaseStore(pool)}
}

const elCols = "id, task_id, event_id, event_type, agent_name, payload, created_at"

// Insert 写入单条事件。
func (s *EventLogStore) Insert(ctx context.Context, rec *EventRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO event_log (task_id, event_id, event_type, agent_name, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.TaskID, rec.EventID, rec.EventType, rec.AgentName, rec.Payload, rec.CreatedAt)
	return err
}

// ListByTask 按 task_id 查询事件 (到达顺序, 支持游标分页)。
//
//	after=0 → 从头开始; after>0 → id > after
func (s *EventLogStore) ListByTask(ctx context.Context, taskID string, limit int, after int64) ([]EventRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	var sql string
	var args []any
	if after > 0 {
		sql = "SELECT " + elCols + " FROM event_log WHERE task_id=$1 AND id > $2 ORDER BY id LIMIT $3"
		args = []any{taskID, after, limit}
	} else {
		sql = "SELECT " + elCols + " FROM event_log WHERE task_id=$1 ORDER BY id LIMIT $2"
		args = []any{taskID, limit}
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectRows[EventRecord](rows)
}

// List 按可选条件过滤事件 (排障用)。空条件自动跳过。
func (s *EventLogStore) List(ctx context.Context, taskID, eventType string, limit int) ([]EventRecord, error) {
	sql, args := NewQueryBuilder().
		Eq("task_id", taskID).
		Eq("event_type", eventType).
		Build("SELECT "+elCols+" FROM event_log", "id", limit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectRows[EventRecord](rows)
}

// CountByTask 统计某任务的事件总数。
func (s *EventLogStore) CountByTask(ctx context.Context, taskID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM event_log WHERE task_id=$1", taskID).Scan(&count)
	return count, err
}

// DeleteByTask 删除某任务的所有事件。
func (s *EventLogStore) DeleteByTask(ctx context.Context, taskID string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM event_log WHERE task_id=$1", taskID)
	return err
}

// RecordEvent 实现 session.Sink: 序列化后异步无感落库, 失败只记日志,
// 绝不影响对账主路径。
func (s *EventLogStore) RecordEvent(ctx context.Context, taskID string, ev *protocol.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Warn("event_log: marshal event failed", logger.FieldError, err)
		return
	}
	rec := &EventRecord{
		TaskID:    taskID,
		EventID:   ev.EventID,
		EventType: string(ev.Type),
		AgentName: ev.AgentName,
		Payload:   payload,
	}
	if err := s.Insert(ctx, rec); err != nil {
		logger.Warn("event_log: insert failed",
			logger.FieldTaskID, taskID, logger.FieldEventID, ev.EventID, logger.FieldError, err)
	}
}
