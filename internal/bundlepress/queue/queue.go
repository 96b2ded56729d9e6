// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

// Package queue provides the durable fulfillment job queue backed by a redis
// list. Producers push submission jobs, the fulfillment worker blocks on the
// other end. A dequeued job moves atomically onto a processing list and is
// only removed once the worker acknowledges it, so jobs survive both redis
// restarts and worker crashes mid-submission.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/redis/go-redis/v9"
)

// JobsKey is the redis list holding pending fulfillment jobs.
const JobsKey = "bundlepress:fulfillment:jobs"

// ProcessingKey is the redis list holding jobs leased to a worker. A job
// sits here from dequeue until Ack or Requeue; whatever is left over after a
// crash is drained back onto JobsKey by RecoverProcessing.
const ProcessingKey = "bundlepress:fulfillment:processing"

// FulfillmentJob is the unit of work pushed onto the queue for asynchronous
// submission.
type FulfillmentJob struct {
	Request    model.OrderRequest `json:"request"`
	EnqueuedAt time.Time          `json:"enqueued_at"`
	Attempts   int                `json:"attempts,omitempty"`
}

// LeasedJob is a dequeued job together with the raw payload needed to
// acknowledge or requeue it.
type LeasedJob struct {
	FulfillmentJob
	raw string
}

// redisLister is the subset of the redis client the queue needs.
type redisLister interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BLMove(ctx context.Context, source, destination, srcpos, destpos string, timeout time.Duration) *redis.StringCmd
	LMove(ctx context.Context, source, destination, srcpos, destpos string) *redis.StringCmd
	LRem(ctx context.Context, key string, count int64, value interface{}) *redis.IntCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// Queue is a redis-list backed FIFO of fulfillment jobs.
type Queue struct {
	rdb redisLister
}

// NewQueue creates a queue over an established redis client.
func NewQueue(rdb redisLister) *Queue {
	return &Queue{rdb: rdb}
}

// Enqueue pushes a job onto the head of the list.
func (q *Queue) Enqueue(ctx context.Context, job FulfillmentJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal fulfillment job: %w", err)
	}
	if err := q.rdb.LPush(ctx, JobsKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue fulfillment job: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job, moving it onto the
// processing list in the same redis command. It returns (nil, nil) when the
// timeout elapses with no job available. The caller owns the lease and must
// finish with Ack or Requeue.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*LeasedJob, error) {
	raw, err := q.rdb.BLMove(ctx, JobsKey, ProcessingKey, "RIGHT", "LEFT", timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue fulfillment job: %w", err)
	}
	leased := &LeasedJob{raw: raw}
	if err := json.Unmarshal([]byte(raw), &leased.FulfillmentJob); err != nil {
		// A payload that never parses would otherwise sit on the processing
		// list forever.
		q.rdb.LRem(ctx, ProcessingKey, 1, raw)
		return nil, fmt.Errorf("unmarshal fulfillment job: %w", err)
	}
	return leased, nil
}

// Ack removes a finished job from the processing list.
func (q *Queue) Ack(ctx context.Context, job *LeasedJob) error {
	if err := q.rdb.LRem(ctx, ProcessingKey, 1, job.raw).Err(); err != nil {
		return fmt.Errorf("ack fulfillment job: %w", err)
	}
	return nil
}

// Requeue puts a leased job back onto the pending list with its attempt
// counter bumped, then drops the lease. The push happens first so a failure
// between the two commands duplicates the job rather than losing it.
func (q *Queue) Requeue(ctx context.Context, job *LeasedJob) error {
	next := job.FulfillmentJob
	next.Attempts++
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal fulfillment job: %w", err)
	}
	if err := q.rdb.LPush(ctx, JobsKey, payload).Err(); err != nil {
		return fmt.Errorf("requeue fulfillment job: %w", err)
	}
	if err := q.rdb.LRem(ctx, ProcessingKey, 1, job.raw).Err(); err != nil {
		return fmt.Errorf("drop requeued lease: %w", err)
	}
	return nil
}

// RecoverProcessing drains jobs a previous run left on the processing list
// back onto the front of the pending list. Workers call it once at startup,
// before their first dequeue. It returns the number of jobs moved.
func (q *Queue) RecoverProcessing(ctx context.Context) (int, error) {
	// Leases sit newest-first on the processing list, so draining from the
	// left lands the oldest job nearest the consumption end of JobsKey and
	// keeps the original order.
	moved := 0
	for {
		err := q.rdb.LMove(ctx, ProcessingKey, JobsKey, "LEFT", "RIGHT").Err()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return moved, nil
			}
			return moved, fmt.Errorf("recover in-flight fulfillment jobs: %w", err)
		}
		moved++
	}
}

// Depth returns the number of jobs currently waiting.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, JobsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}
