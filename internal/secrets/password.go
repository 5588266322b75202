package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"lcamail-engine/internal/config"
)

const (
	// "Service" groups the app's secrets in the OS keychain.
	KeyringService = "lcamail"
)

var ErrNoPassword = errors.New("SMTP password not found (set it in keychain or via EMAIL_PASSWORD)")

// SMTPKeyringAccount names the keychain entry for one sender on cfg's host.
func SMTPKeyringAccount(cfg config.Config, sender string) string {
	return fmt.Sprintf(
		"lcamail:smtp:%s@%s",
		strings.ToLower(strings.TrimSpace(sender)),
		strings.ToLower(strings.TrimSpace(cfg.SMTP.Host)),
	)
}

// GetSMTPPassword looks in the keychain first and then falls back to the
// configured password (EMAIL_PASSWORD).
func GetSMTPPassword(cfg config.Config, sender string) (string, error) {
	if strings.TrimSpace(sender) != "" {
		pw, err := keyring.Get(KeyringService, SMTPKeyringAccount(cfg, sender))
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	if cfg.SMTP.Password != "" {
		return cfg.SMTP.Password, nil
	}
	return "", ErrNoPassword
}

func SetSMTPPassword(cfg config.Config, sender, password string) error {
	if strings.TrimSpace(sender) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, SMTPKeyringAccount(cfg, sender), password)
}

func DeleteSMTPPassword(cfg config.Config, sender string) error {
	if strings.TrimSpace(sender) == "" {
		return errors.New("keyring account name is empty")
	}
	err := keyring.Delete(KeyringService, SMTPKeyringAccount(cfg, sender))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
