package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/jmhodges/clock"
)

// Message is one outgoing email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Dispatcher delivers a composed message.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPDispatcher delivers over an authenticated SMTP session, upgraded with
// STARTTLS when the relay offers it.
type SMTPDispatcher struct {
	Host     string
	Port     int
	Username string
	Password string

	// RequireTLS refuses to authenticate when the relay does not offer
	// STARTTLS. Without it, PLAIN auth over plaintext only works against
	// localhost relays.
	RequireTLS   bool
	HighPriority bool
	Timeout      time.Duration
	TLSConfig    *tls.Config
	Clock        clock.Clock
}

func NewSMTPDispatcher(host string, port int, username, password string) *SMTPDispatcher {
	return &SMTPDispatcher{
		Host:       host,
		Port:       port,
		Username:   username,
		Password:   password,
		RequireTLS: true,
		Timeout:    30 * time.Second,
		Clock:      clock.New(),
	}
}

// Send delivers msg. Errors are always *DispatchError.
func (d *SMTPDispatcher) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(d.Host, fmt.Sprint(d.Port))

	dialer := &net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return classify(stageDial, err)
	}
	if d.Timeout > 0 {
		// socket deadlines are checked against the wall clock, not d.Clock
		_ = conn.SetDeadline(time.Now().Add(d.Timeout))
	}

	c, err := smtp.NewClient(conn, d.Host)
	if err != nil {
		conn.Close()
		return classify(stageGreeting, err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(d.tlsConfig()); err != nil {
			return classify(stageStartTLS, err)
		}
	} else if d.RequireTLS {
		return &DispatchError{Kind: KindProtocol, Stage: stageStartTLS, Err: errNoStartTLS}
	}

	if ok, _ := c.Extension("AUTH"); !ok {
		return classify(stageAuth, errNoAuth)
	}
	if err := c.Auth(smtp.PlainAuth("", d.Username, d.Password, d.Host)); err != nil {
		return classify(stageAuth, err)
	}

	if err := c.Mail(msg.From); err != nil {
		return classify(stageEnvelope, err)
	}
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt); err != nil {
			return classify(stageEnvelope, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return classify(stageData, err)
	}
	if _, err := w.Write(d.format(msg)); err != nil {
		return classify(stageData, err)
	}
	if err := w.Close(); err != nil {
		return classify(stageData, err)
	}

	if err := c.Quit(); err != nil {
		return classify(stageQuit, err)
	}
	return nil
}

func (d *SMTPDispatcher) tlsConfig() *tls.Config {
	if d.TLSConfig != nil {
		return d.TLSConfig
	}
	return &tls.Config{ServerName: d.Host}
}

func (d *SMTPDispatcher) format(msg Message) []byte {
	clk := d.Clock
	if clk == nil {
		clk = clock.New()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", clk.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	if d.HighPriority {
		b.WriteString("X-Priority: 1 (Highest)\r\n")
		b.WriteString("Importance: High\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}
