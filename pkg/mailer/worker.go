package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Outcome is what the consumer does with a delivery.
type Outcome int

const (
	Ack Outcome = iota
	Requeue
	Drop
)

// Worker turns queued EmailJob messages into sends.
type Worker struct {
	Sender      Sender
	Logger      *logrus.Logger
	SendTimeout time.Duration
}

func NewWorker(s Sender, logger *logrus.Logger) *Worker {
	return &Worker{Sender: s, Logger: logger, SendTimeout: 15 * time.Second}
}

// Handle processes one message body. Malformed or unrenderable jobs are
// dropped; a failed send is requeued once and dropped on redelivery.
func (w *Worker) Handle(ctx context.Context, body []byte, redelivered bool) Outcome {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		w.Logger.WithError(err).Warn("bad email message")
		return Drop
	}

	c, cancel := context.WithTimeout(ctx, w.SendTimeout)
	defer cancel()
	if err := Deliver(c, w.Sender, job); err != nil {
		entry := w.Logger.WithError(err).WithField("template", job.Template)
		if errors.Is(err, ErrUnrenderable) {
			entry.Warn("render email failed")
			return Drop
		}
		if redelivered {
			entry.Error("send email failed, dropping")
			return Drop
		}
		entry.Warn("send email failed, requeueing")
		return Requeue
	}
	w.Logger.WithField("template", job.Template).Info("email sent")
	return Ack
}

// Run consumes deliveries until ctx is done or the channel closes.
func (w *Worker) Run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			switch w.Handle(ctx, msg.Body, msg.Redelivered) {
			case Ack:
				_ = msg.Ack(false)
			case Requeue:
				_ = msg.Nack(false, true)
			default:
				_ = msg.Nack(false, false)
			}
		}
	}
}
