package rabbitmq

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"opinion-engine/internal/model"
)

type EmbeddingJobPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewEmbeddingJobPublisher(conn *amqp.Connection, queueName string) *EmbeddingJobPublisher {
	return &EmbeddingJobPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *EmbeddingJobPublisher) PublishEmbeddingJob(ctx context.Context, job model.EmbeddingJob) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "open rabbitmq channel failed")
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := EncodeJob(job)
	if err != nil {
		return err
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    job.ID,
			Timestamp:    job.RequestedAt,
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return errors.Wrap(err, "publish embedding job failed")
	}
	return nil
}

func EncodeJob(job model.EmbeddingJob) ([]byte, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, errors.Wrap(err, "marshal embedding job failed")
	}
	return payload, nil
}

// DecodeJob parses a job body and rejects jobs without an owner.
func DecodeJob(body []byte) (model.EmbeddingJob, error) {
	var job model.EmbeddingJob
	if err := json.Unmarshal(body, &job); err != nil {
		return model.EmbeddingJob{}, errors.Wrap(err, "decode embedding job failed")
	}
	if job.OwnerID == "" {
		return model.EmbeddingJob{}, errors.New("embedding job has no owner id")
	}
	switch job.OwnerType {
	case model.OwnerTheme, model.OwnerQuestion:
	default:
		return model.EmbeddingJob{}, errors.Newf("embedding job has unknown owner type %q", job.OwnerType)
	}
	return job, nil
}
