package httpapi

import (
	"strings"

	"go.uber.org/zap"

	"lcamail-engine/internal/config"
	"lcamail-engine/internal/dispatch"
	"lcamail-engine/internal/mailer"
	"lcamail-engine/internal/secrets"
)

// SMTPSenders opens the user's own SMTP account on the configured host. The
// password comes from the keychain or EMAIL_PASSWORD. With IMAP enabled,
// sent copies are appended to the account's sent mailbox.
func SMTPSenders(log *zap.Logger) SenderFactory {
	return func(cfg config.Config, userEmail string) (dispatch.Sender, error) {
		pw, err := secrets.GetSMTPPassword(cfg, userEmail)
		if err != nil {
			return nil, err
		}
		username := strings.TrimSpace(cfg.SMTP.Username)
		if username == "" {
			username = userEmail
		}

		var archive mailer.Archiver
		if cfg.IMAP.Enabled && strings.TrimSpace(cfg.IMAP.Host) != "" {
			archive = mailer.NewIMAPArchive(mailer.IMAPConfig{
				Host:     cfg.IMAP.Host,
				Port:     cfg.IMAP.Port,
				Username: username,
				Password: pw,
				Mailbox:  cfg.IMAP.Mailbox,
			})
		}

		return mailer.NewSMTP(mailer.SMTPConfig{
			Host:           cfg.SMTP.Host,
			Port:           cfg.SMTP.Port,
			Security:       cfg.SMTP.Security,
			Username:       username,
			Password:       pw,
			ConnectTimeout: cfg.ConnectTimeout(),
		}, archive, log.With(zap.String("sender", userEmail))), nil
	}
}
