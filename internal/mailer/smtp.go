package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

const (
	SecurityStartTLS = "starttls"
	SecurityTLS      = "tls"
	SecurityNone     = "none"
)

type SMTPConfig struct {
	Host           string
	Port           int
	Security       string // starttls | tls | none
	Username       string
	Password       string
	ConnectTimeout time.Duration
	TLSConfig      *tls.Config // nil: verify against Host
}

func (c SMTPConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c SMTPConfig) tlsConfig() *tls.Config {
	if c.TLSConfig != nil {
		return c.TLSConfig
	}
	return &tls.Config{MinVersion: tls.VersionTLS12, ServerName: c.Host}
}

// SMTP sends messages through one SMTP account. Each call opens its own
// connection, so an SMTP value is safe for concurrent use.
type SMTP struct {
	cfg     SMTPConfig
	archive Archiver
	log     *zap.Logger
	now     func() time.Time
}

// NewSMTP returns a sender for cfg. archive may be nil.
func NewSMTP(cfg SMTPConfig, archive Archiver, log *zap.Logger) *SMTP {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTP{cfg: cfg, archive: archive, log: log, now: time.Now}
}

func (s *SMTP) dial(ctx context.Context) (*smtp.Client, error) {
	if s.cfg.Host == "" {
		return nil, errors.New("smtp host is not configured")
	}
	d := net.Dialer{Timeout: s.cfg.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.cfg.addr())
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", s.cfg.addr(), err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if s.cfg.Security == SecurityTLS {
		tc := tls.Client(conn, s.cfg.tlsConfig())
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("smtp tls handshake: %w", err)
		}
		conn = tc
	}

	// unblock reads and writes when the caller gives up
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	var c *smtp.Client
	if s.cfg.Security == SecurityStartTLS {
		// runs EHLO and STARTTLS, failing when the server does not offer it
		c, err = smtp.NewClientStartTLS(conn, s.cfg.tlsConfig())
		if err != nil {
			stop()
			_ = conn.Close()
			return nil, fmt.Errorf("smtp starttls: %w", err)
		}
	} else {
		c = smtp.NewClient(conn)
		if err := c.Hello("localhost"); err != nil {
			stop()
			_ = c.Close()
			return nil, fmt.Errorf("smtp hello: %w", err)
		}
	}

	if s.cfg.Password != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)); err != nil {
				stop()
				_ = c.Close()
				return nil, fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	return c, nil
}

// Verify connects and authenticates without sending anything.
func (s *SMTP) Verify(ctx context.Context) error {
	c, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Quit()
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	raw, err := msg.Build(s.now())
	if err != nil {
		return err
	}

	c, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.SendMail(msg.From, []string{msg.To}, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	if err := c.Quit(); err != nil {
		s.log.Debug("smtp quit", zap.Error(err))
	}

	if s.archive != nil {
		if err := s.archive.Archive(ctx, raw); err != nil {
			s.log.Warn("sent-copy archive failed", zap.String("to", msg.To), zap.Error(err))
		}
	}
	return nil
}
