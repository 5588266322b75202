package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lcamail-engine/internal/secrets"
)

var smtpSender string

var smtpPasswordCmd = &cobra.Command{
	Use:   "smtp-password",
	Short: "Manage the SMTP password kept in the OS keyring",
}

var smtpPasswordSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the SMTP password for a sender address",
	Long: `Store the SMTP password for --sender in the OS keyring.

The password is read from an interactive prompt, or from the first line of
stdin when stdin is not a terminal. It is never taken from a flag.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.SMTP.Host == "" {
			return errors.New("smtp.host is not configured")
		}
		pw, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Password for %s@%s: ", smtpSender, cfg.SMTP.Host))
		if err != nil {
			return err
		}
		if err := secrets.SetSMTPPassword(cfg, smtpSender, pw); err != nil {
			return fmt.Errorf("save password: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved SMTP password for %s\n", secrets.SMTPKeyringAccount(cfg, smtpSender))
		return nil
	},
}

var smtpPasswordDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored SMTP password for a sender address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := secrets.DeleteSMTPPassword(cfg, smtpSender); err != nil {
			return fmt.Errorf("delete password: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed SMTP password for %s\n", secrets.SMTPKeyringAccount(cfg, smtpSender))
		return nil
	},
}

func init() {
	smtpPasswordCmd.PersistentFlags().StringVar(&smtpSender, "sender", "", "sender email address")
	_ = smtpPasswordCmd.MarkPersistentFlagRequired("sender")
	smtpPasswordCmd.AddCommand(smtpPasswordSetCmd, smtpPasswordDeleteCmd)
	rootCmd.AddCommand(smtpPasswordCmd)
}

func readPassword(in io.Reader, prompt io.Writer, label string) (string, error) {
	var pw string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, label)
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		pw = string(raw)
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		pw = strings.TrimRight(line, "\r\n")
	}
	if pw == "" {
		return "", errors.New("password is required")
	}
	return pw, nil
}
