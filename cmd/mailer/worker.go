package main

import (
	"context"
	"log/slog"
	"time"

	"pettycash/internal/notify"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"
)

// retryHeader counts how many times a decision has been put back after a failed send.
const retryHeader = "x-retry"

// sender is satisfied by *mail.Client.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// acknowledger is satisfied by amqp.Delivery.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type worker struct {
	from   string
	sender sender
	logger *slog.Logger

	// ch republishes retries to queue and parks exhausted messages on failedQueue.
	ch          notify.Channel
	queue       string
	failedQueue string
	maxRetries  int
	backoff     time.Duration
}

// handle mails one decision. Malformed messages are dropped. A failed send is
// republished with an incremented retry count after a linear backoff, and
// parked on the failed queue once maxRetries is reached.
func (w *worker) handle(ctx context.Context, body []byte, headers amqp.Table, ack acknowledger) {
	d, err := notify.DecodeDecision(body)
	if err != nil {
		w.logger.Error("dropping malformed decision", "error", err)
		_ = ack.Nack(false, false)
		return
	}

	msg, err := notify.BuildMessage(w.from, d)
	if err != nil {
		w.logger.Error("failed to build mail", "expense_id", d.ExpenseID, "error", err)
		_ = ack.Nack(false, false)
		return
	}

	sendErr := w.sender.DialAndSendWithContext(ctx, msg)
	if sendErr == nil {
		w.logger.Info("decision mailed", "expense_id", d.ExpenseID, "status", d.Status, "to", d.CreatorEmail)
		_ = ack.Ack(false)
		return
	}

	attempt := retryCount(headers)
	if attempt >= w.maxRetries {
		w.logger.Error("giving up on decision mail", "expense_id", d.ExpenseID, "attempts", attempt+1, "error", sendErr)
		w.park(ctx, body, headers, ack)
		return
	}

	delay := w.backoff * time.Duration(attempt+1)
	w.logger.Warn("failed to send mail, retrying", "expense_id", d.ExpenseID, "attempt", attempt+1, "retry_in", delay, "error", sendErr)
	select {
	case <-ctx.Done():
		// shutting down; leave the message for the next worker
		_ = ack.Nack(false, true)
		return
	case <-time.After(delay):
	}

	if err := w.publish(ctx, w.queue, body, withRetry(headers, attempt+1)); err != nil {
		w.logger.Error("failed to republish decision", "expense_id", d.ExpenseID, "error", err)
		_ = ack.Nack(false, true)
		return
	}
	_ = ack.Ack(false)
}

func (w *worker) park(ctx context.Context, body []byte, headers amqp.Table, ack acknowledger) {
	if err := w.publish(ctx, w.failedQueue, body, headers); err != nil {
		w.logger.Error("failed to park decision, dropping it", "queue", w.failedQueue, "error", err)
		_ = ack.Nack(false, false)
		return
	}
	_ = ack.Ack(false)
}

func (w *worker) publish(ctx context.Context, queue string, body []byte, headers amqp.Table) error {
	return w.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         body,
	})
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

func withRetry(headers amqp.Table, n int) amqp.Table {
	out := amqp.Table{}
	for k, v := range headers {
		out[k] = v
	}
	out[retryHeader] = int32(n)
	return out
}
