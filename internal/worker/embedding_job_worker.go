package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"opinion-engine/internal/app"
	"opinion-engine/internal/logger"
	"opinion-engine/internal/model"
	"opinion-engine/internal/platform/rabbitmq"
)

// JobRunner executes one embedding job.
type JobRunner interface {
	RunJob(ctx context.Context, job model.EmbeddingJob) (app.BatchResult, error)
}

// EmbeddingJobWorker consumes embedding jobs and runs them one at a time.
// Successful jobs are acked; undecodable or failed jobs are nacked without
// requeue, since the items stay unflagged and the next request retries them.
type EmbeddingJobWorker struct {
	conn      *amqp.Connection
	runner    JobRunner
	queueName string
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEmbeddingJobWorker(conn *amqp.Connection, runner JobRunner, queueName string, log *zap.Logger) *EmbeddingJobWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmbeddingJobWorker{
		conn:      conn,
		runner:    runner,
		queueName: queueName,
		logger:    log.With(zap.String(logger.FieldComponent, "embedding_job_worker")),
	}
}

func (w *EmbeddingJobWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return errors.Wrap(err, "open worker channel failed")
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return errors.Wrap(err, "set worker qos failed")
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		cancel()
		return errors.Wrap(err, "consume queue failed")
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	w.logger.Info("embedding job worker started", zap.String("queue", w.queueName))
	return nil
}

func (w *EmbeddingJobWorker) handle(ctx context.Context, body []byte) error {
	job, err := rabbitmq.DecodeJob(body)
	if err != nil {
		w.logger.Error("drop undecodable embedding job", zap.Error(err))
		return err
	}

	start := time.Now()
	result, err := w.runner.RunJob(ctx, job)
	if err != nil {
		w.logger.Error("embedding job failed",
			zap.String(logger.FieldJobID, job.ID),
			zap.Int(logger.FieldProcessed, result.Processed),
			zap.Error(err),
		)
		return err
	}

	w.logger.Info("embedding job done",
		zap.String(logger.FieldJobID, job.ID),
		zap.String("status", result.Status),
		zap.Int(logger.FieldProcessed, result.Processed),
		zap.Int(logger.FieldFailed, len(result.Failed)),
		zap.Int64(logger.FieldDurationMS, time.Since(start).Milliseconds()),
	)
	return nil
}

func (w *EmbeddingJobWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
