// Package notify delivers notification messages to external destinations.
// Delivery is best effort: callers log failures and move on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/office-portal/pkg/logger"
)

var ErrNoDestination = errors.New("notification has no destination")

// Message is what gets delivered. Formatting beyond subject/body is the
// concern of whoever builds the message.
type Message struct {
	Subject string
	Body    string
}

// Dispatcher sends a message to a destination (an email address for the
// email dispatcher).
type Dispatcher interface {
	Send(ctx context.Context, destination string, msg Message) error
}

// Recipient carries the contact points known for a user.
type Recipient struct {
	Email string
	Phone string
}

// Addresser is implemented by dispatchers that can reach a recipient by
// more than an email address.
type Addresser interface {
	Address(r Recipient) string
}

// Address picks the destination d should use for r. Dispatchers that do not
// implement Addresser are addressed by email. An empty result means r cannot
// be reached through d.
func Address(d Dispatcher, r Recipient) string {
	if a, ok := d.(Addresser); ok {
		return a.Address(r)
	}
	return r.Email
}

// mailSender is satisfied by *gomail.Dialer.
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type EmailDispatcher struct {
	from   string
	sender mailSender
	cb     *gobreaker.CircuitBreaker
}

func NewEmailDispatcher(cfg SMTPConfig) *EmailDispatcher {
	return newEmailDispatcher(cfg.From, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password))
}

func newEmailDispatcher(from string, sender mailSender) *EmailDispatcher {
	return &EmailDispatcher{
		from:   from,
		sender: sender,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "smtp",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (d *EmailDispatcher) Send(ctx context.Context, destination string, msg Message) error {
	if destination == "" {
		return ErrNoDestination
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", destination)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	_, err := d.cb.Execute(func() (interface{}, error) {
		return nil, d.sender.DialAndSend(m)
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogDispatcher writes messages to the log. Used when no SMTP relay is configured.
type LogDispatcher struct {
	logger *logger.Logger
}

func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	return &LogDispatcher{logger: log}
}

// Address prefers email and falls back to the phone number.
func (d *LogDispatcher) Address(r Recipient) string {
	if r.Email != "" {
		return r.Email
	}
	return r.Phone
}

func (d *LogDispatcher) Send(_ context.Context, destination string, msg Message) error {
	if destination == "" {
		return ErrNoDestination
	}
	d.logger.Info("notification", "destination", destination, "subject", msg.Subject)
	return nil
}
