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

package fulfillment

import (
	"context"
	"time"

	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/innovationmech/bundlepress/internal/bundlepress/queue"
	"github.com/innovationmech/bundlepress/pkg/logger"
	"go.uber.org/zap"
)

// popTimeout bounds each blocking dequeue so the worker notices context
// cancellation promptly.
const popTimeout = 5 * time.Second

// requeuePause keeps a gate-rejected job from spinning through the queue
// while the breaker or limiter stays closed.
const requeuePause = time.Second

// JobSource hands out leased submission jobs. Satisfied by *queue.Queue.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.LeasedJob, error)
	Ack(ctx context.Context, job *queue.LeasedJob) error
	Requeue(ctx context.Context, job *queue.LeasedJob) error
	RecoverProcessing(ctx context.Context) (int, error)
}

// Worker drains the fulfillment queue and submits each job through the
// service. One worker runs per process; ordering within the queue is FIFO.
type Worker struct {
	svc  *Service
	jobs JobSource
}

// NewWorker creates a queue worker over an existing service.
func NewWorker(svc *Service, jobs JobSource) *Worker {
	return &Worker{svc: svc, jobs: jobs}
}

// Run processes jobs until the context is cancelled. Jobs abandoned by a
// previous run are drained back onto the queue first. Dequeue errors are
// logged and retried after a short pause rather than stopping the loop.
func (w *Worker) Run(ctx context.Context) {
	logger.GetLogger().Info("fulfillment worker started")
	if moved, err := w.jobs.RecoverProcessing(ctx); err != nil {
		logger.GetLogger().Error("failed to recover in-flight fulfillment jobs", zap.Error(err))
	} else if moved > 0 {
		logger.GetLogger().Info("recovered in-flight fulfillment jobs", zap.Int("count", moved))
	}
	for {
		if ctx.Err() != nil {
			logger.GetLogger().Info("fulfillment worker stopped")
			return
		}

		job, err := w.jobs.Dequeue(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				logger.GetLogger().Info("fulfillment worker stopped")
				return
			}
			logger.GetLogger().Error("failed to dequeue fulfillment job", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, job)
	}
}

// process submits one leased job and settles its lease. Gate rejections go
// back onto the queue untouched; every other failure becomes a failed
// tracking record so the retry scheduler takes over, because replaying a
// job the provider may have seen risks fulfilling it twice.
func (w *Worker) process(ctx context.Context, job *queue.LeasedJob) {
	resp := w.svc.Submit(ctx, job.Request)
	if resp.Success {
		w.ack(ctx, job)
		return
	}

	switch resp.ErrorKind {
	case model.ErrorKindCircuitBreaker, model.ErrorKindRateLimit:
		// The provider was never called.
		logger.GetLogger().Warn("queued order rejected by gate, requeueing",
			zap.String("trace_id", resp.TraceID),
			zap.String("error_kind", string(resp.ErrorKind)),
			zap.Int("attempts", job.Attempts))
		if err := w.jobs.Requeue(ctx, job); err != nil {
			logger.GetLogger().Error("failed to requeue fulfillment job",
				zap.String("trace_id", resp.TraceID),
				zap.Error(err))
		}
		select {
		case <-ctx.Done():
		case <-time.After(requeuePause):
		}
	default:
		logger.GetLogger().Warn("queued order submission failed",
			zap.String("trace_id", resp.TraceID),
			zap.String("error_kind", string(resp.ErrorKind)))
		if err := w.svc.RecordFailure(ctx, job.Request, resp); err != nil {
			// Keep the job alive rather than losing the order.
			logger.GetLogger().Error("failed to record queued submission failure, requeueing",
				zap.String("trace_id", resp.TraceID),
				zap.Error(err))
			if reqErr := w.jobs.Requeue(ctx, job); reqErr != nil {
				logger.GetLogger().Error("failed to requeue fulfillment job",
					zap.String("trace_id", resp.TraceID),
					zap.Error(reqErr))
			}
			return
		}
		w.ack(ctx, job)
	}
}

func (w *Worker) ack(ctx context.Context, job *queue.LeasedJob) {
	if err := w.jobs.Ack(ctx, job); err != nil {
		logger.GetLogger().Error("failed to ack fulfillment job", zap.Error(err))
	}
}
