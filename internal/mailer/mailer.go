// internal/mailer/mailer.go
package mailer

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gomail/gomail"

	"github.com/mailblast/mailblast-backend/internal/model"
)

// ErrSessionDead marks a session whose connection is no longer safe to
// write: a timed-out send still owns it. Callers must drop the session and
// dial a fresh one.
var ErrSessionDead = errors.New("smtp session is dead")

// SendCloser is one authenticated SMTP session. The dispatcher opens one per
// batch, sends every message of the batch through it, and closes it.
type SendCloser interface {
	Send(fromName, fromEmail, to, subject, html string) error
	Close() error
}

// Dialer opens SMTP sessions. The password comes from the caller on every
// dial; it is never read from storage.
type Dialer interface {
	Dial(settings *model.SMTPSettings, password string) (SendCloser, error)
}

// SMTPDialer dials a real SMTP server through gomail.
type SMTPDialer struct {
	DialTimeout time.Duration
}

func NewSMTPDialer() *SMTPDialer {
	return &SMTPDialer{DialTimeout: 15 * time.Second}
}

func (d *SMTPDialer) Dial(settings *model.SMTPSettings, password string) (SendCloser, error) {
	gd := gomail.NewDialer(settings.Host, settings.Port, settings.Username, password)
	gd.SSL = settings.UseTLS

	timeout := d.DialTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	// gomail exposes no dial timeout, so bound it here: a stalled connect
	// surfaces as a batch-level transport error, never an indefinite hang.
	type dialResult struct {
		sc  gomail.SendCloser
		err error
	}
	ch := make(chan dialResult, 1)
	go func() {
		sc, err := gd.Dial()
		ch <- dialResult{sc, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return &session{sc: r.sc, timeout: timeout}, nil
	case <-time.After(timeout):
		go func() {
			// reap the late dial so the connection does not leak
			if r := <-ch; r.sc != nil {
				r.sc.Close()
			}
		}()
		return nil, fmt.Errorf("smtp dial to %s:%d timed out after %s", settings.Host, settings.Port, timeout)
	}
}

type session struct {
	sc      gomail.SendCloser
	timeout time.Duration
	dead    bool
}

func (s *session) Send(fromName, fromEmail, to, subject, html string) error {
	if s.dead {
		return ErrSessionDead
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", fromEmail, fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	errc := make(chan error, 1)
	go func() { errc <- gomail.Send(s.sc, m) }()
	select {
	case err := <-errc:
		return err
	case <-time.After(s.timeout):
		// The in-flight write still owns the connection; no further send
		// may touch it.
		s.dead = true
		return fmt.Errorf("smtp send to %s timed out after %s: %w", to, s.timeout, ErrSessionDead)
	}
}

func (s *session) Close() error {
	return s.sc.Close()
}

// TestConnection performs a real short-lived handshake: dial, authenticate,
// send one test message to the given address, close. Replaces any simulated
// "test connection" no-op.
func TestConnection(d Dialer, settings *model.SMTPSettings, password, to string) error {
	sc, err := d.Dial(settings, password)
	if err != nil {
		return err
	}
	defer sc.Close()

	subject := "SMTP connection test"
	body := "<p>This is a test message confirming your SMTP settings work.</p>"
	return sc.Send(settings.FromName, settings.FromEmail, to, subject, body)
}
