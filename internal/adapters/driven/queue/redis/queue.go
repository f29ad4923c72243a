package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/verag/internal/core/domain"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
)

const (
	taskStream   = "verag:ingest:tasks"
	taskGroup    = "verag:ingest:workers"
	retrySet     = "verag:ingest:retry"
	statsKey     = "verag:ingest:stats"
	taskKeyPfx   = "verag:task:"
	consumerPfx  = "worker-"
	taskTTL      = 24 * time.Hour
	claimTimeout = 5 * time.Minute

	// retryBackoff is multiplied by the attempt count before a nacked task
	// becomes visible again.
	retryBackoff = 5 * time.Second
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue on a Redis Stream with one consumer group.
// Task state lives in a JSON key per task; the stream only carries IDs.
// Nacked tasks wait in a sorted set until their backoff elapses.
type Queue struct {
	client       redis.UniversalClient
	consumerName string
}

// NewQueue creates the consumer group if needed. consumerName should be
// unique per worker process.
func NewQueue(ctx context.Context, client redis.UniversalClient, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = consumerPfx + strconv.FormatInt(time.Now().UnixNano(), 36)
	}

	err := client.XGroupCreateMkStream(ctx, taskStream, taskGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Queue{client: client, consumerName: consumerName}, nil
}

// Enqueue stores the task and appends its ID to the stream
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, taskKeyPfx+task.ID, data, taskTTL)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: taskStream,
		Values: map[string]any{"task_id": task.ID, "type": string(task.Type)},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// DequeueWithTimeout returns the next task, waiting up to timeout seconds.
// A timeout of 0 does not block.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	// Best effort: a failed promotion or claim must not stop new reads
	_ = q.promoteRetries(ctx)

	if task, err := q.claimAbandoned(ctx); err == nil && task != nil {
		return task, nil
	}

	block := time.Duration(-1)
	if timeout > 0 {
		block = time.Duration(timeout) * time.Second
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumerName,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.start(ctx, streams[0].Messages[0])
}

// start loads the task behind a delivered message and marks it processing.
// Messages whose task data is gone are dropped.
func (q *Queue) start(ctx context.Context, msg redis.XMessage) (*domain.Task, error) {
	taskID, _ := msg.Values["task_id"].(string)
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		q.dropMessage(ctx, msg.ID)
		return nil, nil
	}

	task.MarkProcessing()
	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.msgKey(task.ID), msg.ID, taskTTL)
	if err := q.setTask(ctx, pipe, task); err != nil {
		return nil, err
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to start task: %w", err)
	}
	return task, nil
}

// Ack marks the task completed and removes its stream entry
func (q *Queue) Ack(ctx context.Context, taskID string, chunkCount int) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	task.MarkCompleted(chunkCount)

	pipe := q.client.TxPipeline()
	q.finishMessage(ctx, pipe, taskID)
	if err := q.setTask(ctx, pipe, task); err != nil {
		return err
	}
	pipe.HIncrBy(ctx, statsKey, string(domain.TaskStatusCompleted), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack task: %w", err)
	}
	return nil
}

// Nack schedules a retry with linear backoff, or marks the task failed
// once attempts are exhausted.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}

	pipe := q.client.TxPipeline()
	q.finishMessage(ctx, pipe, taskID)

	if task.CanRetry() {
		task.Retry(reason)
		due := time.Now().Add(time.Duration(task.Attempts) * retryBackoff)
		pipe.ZAdd(ctx, retrySet, redis.Z{Score: float64(due.UnixMilli()), Member: task.ID})
	} else {
		task.MarkFailed(reason)
		pipe.HIncrBy(ctx, statsKey, string(domain.TaskStatusFailed), 1)
	}
	if err := q.setTask(ctx, pipe, task); err != nil {
		return err
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID, nil if unknown or expired
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, taskKeyPfx+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// Stats derives pending and processing counts from the stream and group,
// and reads terminal counts from a counter hash.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	length, err := q.client.XLen(ctx, taskStream).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get stream length: %w", err)
	}

	pending, err := q.client.XPending(ctx, taskStream, taskGroup).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get pending entries: %w", err)
	}
	if pending != nil {
		stats.ProcessingCount = pending.Count
	}

	retries, err := q.client.ZCard(ctx, retrySet).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get retry count: %w", err)
	}
	stats.PendingCount = length - stats.ProcessingCount + retries

	counts, err := q.client.HGetAll(ctx, statsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get counters: %w", err)
	}
	stats.CompletedCount, _ = strconv.ParseInt(counts[string(domain.TaskStatusCompleted)], 10, 64)
	stats.FailedCount, _ = strconv.ParseInt(counts[string(domain.TaskStatusFailed)], 10, 64)

	return stats, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close is a no-op; the client is shared.
func (q *Queue) Close() error {
	return nil
}

// promoteRetries moves due retries back onto the stream.
func (q *Queue) promoteRetries(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, retrySet, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}).Result()
	if err != nil || len(due) == 0 {
		return err
	}

	pipe := q.client.TxPipeline()
	for _, id := range due {
		pipe.ZRem(ctx, retrySet, id)
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: taskStream,
			Values: map[string]any{"task_id": id, "type": string(domain.TaskTypeIngestDocument)},
		})
	}
	_, err = pipe.Exec(ctx)
	return err
}

// claimAbandoned takes over one message idle longer than claimTimeout,
// which happens when a worker dies mid-ingestion.
func (q *Queue) claimAbandoned(ctx context.Context) (*domain.Task, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   taskStream,
		Group:    taskGroup,
		Consumer: q.consumerName,
		MinIdle:  claimTimeout,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return q.start(ctx, msgs[0])
}

func (q *Queue) msgKey(taskID string) string {
	return taskKeyPfx + taskID + ":msg"
}

// finishMessage queues ack and delete of the task's current stream entry.
func (q *Queue) finishMessage(ctx context.Context, pipe redis.Pipeliner, taskID string) {
	msgID, err := q.client.Get(ctx, q.msgKey(taskID)).Result()
	if err == nil && msgID != "" {
		pipe.XAck(ctx, taskStream, taskGroup, msgID)
		pipe.XDel(ctx, taskStream, msgID)
	}
	pipe.Del(ctx, q.msgKey(taskID))
}

func (q *Queue) dropMessage(ctx context.Context, msgID string) {
	q.client.XAck(ctx, taskStream, taskGroup, msgID)
	q.client.XDel(ctx, taskStream, msgID)
}

func (q *Queue) setTask(ctx context.Context, pipe redis.Pipeliner, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	pipe.Set(ctx, taskKeyPfx+task.ID, data, taskTTL)
	return nil
}
