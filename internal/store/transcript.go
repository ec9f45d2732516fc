// transcript.go — transcripts 表 (对账后消息序列的版本化快照)。
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Transcript 某任务在某个版本下的完整消息序列快照。
type Transcript struct {
	ID        int64           `db:"id" json:"id"`
	TaskID    string          `db:"task_id" json:"taskId"`
	Version   int64           `db:"version" json:"version"`
	Messages  json.RawMessage `db:"messages" json:"messages"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// TranscriptStore transcripts 存储。
type TranscriptStore struct{ BaseStore }

// NewTranscriptStore 创建。
func NewTranscriptStore(pool *pgxpool.Pool) *TranscriptStore {
	return &TranscriptStore{NewBaseStore(pool)}
}

const trCols = "id, task_id, version, messages, created_at"

// Save 写入一个快照。messages 为 JSON 序列化后的消息序列。
func (s *TranscriptStore) Save(ctx context.Context, taskID string, version int64, messages any) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO transcripts (task_id, version, messages, created_at)
		 VALUES ($1, $2, $3, $4)`,
		taskID, version, raw, time.Now())
	return err
}

// Latest 取某任务的最新快照, 不存在返回 nil。
func (s *TranscriptStore) Latest(ctx context.Context, taskID string) (*Transcript, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+trCols+" FROM transcripts WHERE task_id=$1 ORDER BY id DESC LIMIT 1", taskID)
	if err != nil {
		return nil, err
	}
	return collectOne[Transcript](rows)
}

// ListTasks 返回有快照的任务 ID (最新在前)。
func (s *TranscriptStore) ListTasks(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		"SELECT task_id FROM transcripts GROUP BY task_id ORDER BY MAX(id) DESC LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tasks = append(tasks, id)
	}
	return tasks, rows.Err()
}
