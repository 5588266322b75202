package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Archiver stores a copy of a sent message.
type Archiver interface {
	Archive(ctx context.Context, raw []byte) error
}

type IMAPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Mailbox   string
	TLSConfig *tls.Config
}

// IMAPArchive appends sent messages to a mailbox so they show up in the
// user's mail client. SMTP does not do this on most providers.
type IMAPArchive struct {
	cfg IMAPConfig
	now func() time.Time
}

func NewIMAPArchive(cfg IMAPConfig) *IMAPArchive {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "Sent"
	}
	return &IMAPArchive{cfg: cfg, now: time.Now}
}

// dialAndLogin connects over TLS and logs in.
func dialAndLogin(ctx context.Context, addr, username, password string, tlsCfg *tls.Config) (*imapclient.Client, error) {
	if addr == "" {
		return nil, errors.New("imap addr is required")
	}
	if username == "" || password == "" {
		return nil, errors.New("imap username/password is required")
	}
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: tlsCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}

	// Best-effort close on context cancel.
	context.AfterFunc(ctx, func() { _ = c.Close() })

	if err := c.Login(username, password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

func (a *IMAPArchive) Archive(ctx context.Context, raw []byte) error {
	tlsCfg := a.cfg.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: a.cfg.Host}
	}
	addr := net.JoinHostPort(a.cfg.Host, strconv.Itoa(a.cfg.Port))
	c, err := dialAndLogin(ctx, addr, a.cfg.Username, a.cfg.Password, tlsCfg)
	if err != nil {
		return err
	}
	defer c.Close()

	cmd := c.Append(a.cfg.Mailbox, int64(len(raw)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagSeen},
		Time:  a.now(),
	})
	if _, err := cmd.Write(raw); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("imap append write: %w", err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap append close: %w", err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("imap append %s: %w", a.cfg.Mailbox, err)
	}
	_ = c.Logout().Wait()
	return nil
}
