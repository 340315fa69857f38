// Command mailer consumes approval decisions from RabbitMQ and emails the expense creator.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"pettycash/internal/config"
	"pettycash/internal/notify"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.RabbitMQ.DSN == "" {
		logger.Error("RABBITMQ_DSN is required for the mailer")
		os.Exit(1)
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Mail.SMTP.Port),
		mail.WithTimeout(cfg.Mail.SMTP.DialTimeout),
	}
	if cfg.Mail.SMTP.Port == 465 {
		opts = append(opts, mail.WithSSL())
	}
	if cfg.Mail.SMTP.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Mail.SMTP.Username),
			mail.WithPassword(cfg.Mail.SMTP.Password),
		)
	}
	client, err := mail.NewClient(cfg.Mail.SMTP.Host, opts...)
	if err != nil {
		logger.Error("failed to create mail client", "error", err)
		os.Exit(1)
	}

	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("failed to open channel", "error", err)
		return
	}
	defer ch.Close()

	failedQueue := cfg.RabbitMQ.Queue + ".failed"
	for _, q := range []string{cfg.RabbitMQ.Queue, failedQueue} {
		if err := notify.DeclareQueue(ch, q); err != nil {
			logger.Error("failed to declare queue", "queue", q, "error", err)
			return
		}
	}
	// one unacknowledged message at a time so a slow SMTP server does not pile up work
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("failed to set prefetch", "error", err)
		return
	}

	msgs, err := ch.Consume(cfg.RabbitMQ.Queue, "", false, false, false, false, nil)
	if err != nil {
		logger.Error("failed to consume queue", "error", err)
		return
	}

	w := &worker{
		from:        cfg.Mail.From,
		sender:      client,
		logger:      logger,
		ch:          ch,
		queue:       cfg.RabbitMQ.Queue,
		failedQueue: failedQueue,
		maxRetries:  cfg.Mail.MaxRetries,
		backoff:     cfg.Mail.RetryBackoff,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Warn("delivery channel closed")
					stop()
					return
				}
				w.handle(ctx, msg.Body, msg.Headers, msg)
			}
		}
	}()

	logger.Info("waiting for decisions", "queue", cfg.RabbitMQ.Queue)
	<-ctx.Done()
	logger.Info("shutting down mailer")
	wg.Wait()
}
