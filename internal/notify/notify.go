// Package notify delivers side-channel email. Sends are fire-and-forget:
// the request that triggered them never waits on delivery, and failures
// are logged, never surfaced to clients.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends a single message synchronously.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers mail through a plain SMTP relay.
type SMTPMailer struct {
	Addr     string
	Username string
	Password string
	From     string
}

func (m *SMTPMailer) Send(_ context.Context, msg Message) error {
	var auth smtp.Auth
	if m.Username != "" {
		host := m.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)

	if err := smtp.SendMail(m.Addr, auth, m.From, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// NopMailer drops mail on the floor; used in development and tests.
type NopMailer struct{}

func (NopMailer) Send(context.Context, Message) error { return nil }

const sendTimeout = 30 * time.Second

// Dispatcher queues messages and delivers them on a background worker so
// HTTP responses never block on the mail relay. A full queue drops the
// message with a log line rather than applying backpressure.
type Dispatcher struct {
	mailer Mailer
	logger *zap.Logger
	queue  chan Message
	done   chan struct{}
	once   sync.Once
}

// NewDispatcher starts the delivery worker.
func NewDispatcher(mailer Mailer, logger *zap.Logger, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.L()
	}
	d := &Dispatcher{
		mailer: mailer,
		logger: logger,
		queue:  make(chan Message, buffer),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue hands off a message without blocking the caller.
func (d *Dispatcher) Enqueue(msg Message) {
	select {
	case d.queue <- msg:
	default:
		d.logger.Warn("notify queue full, dropping message",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
		)
	}
}

// Close stops accepting messages and drains the queue, bounded by ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.once.Do(func() { close(d.queue) })
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := d.mailer.Send(ctx, msg); err != nil {
			d.logger.Warn("mail delivery failed",
				zap.String("to", msg.To),
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
		}
		cancel()
	}
}
