package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err folds the errors into one error, or nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return fmt.Errorf("config validation failed:\n- %s", strings.Join(v.Errors, "\n- "))
}

// NormalizeAndValidate returns a normalized copy plus any problems found.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Data.CSVPaths = trimList(out.Data.CSVPaths)
	out.App.CORSOrigins = trimList(out.App.CORSOrigins)
	out.SMTP.Host = strings.TrimSpace(out.SMTP.Host)
	out.SMTP.Security = strings.ToLower(strings.TrimSpace(out.SMTP.Security))

	// delimiters must stay untrimmed ("\t"), only dedupe
	var delims []string
	seenDelim := map[string]bool{}
	for _, d := range out.Data.Delimiters {
		if d == "" || seenDelim[d] {
			continue
		}
		seenDelim[d] = true
		delims = append(delims, d)
	}
	out.Data.Delimiters = delims

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if len(out.Data.CSVPaths) == 0 {
		res.addErr("data.csv_paths must list at least one file")
	}
	if len(out.Data.Delimiters) == 0 {
		res.addErr("data.delimiters must list at least one delimiter")
	}
	for _, d := range out.Data.Delimiters {
		if len([]rune(d)) != 1 {
			res.addErr("data.delimiters entry %q must be a single character", d)
		}
	}
	if out.Data.FilterMaxValues <= 0 {
		res.addErr("data.filter_max_values must be > 0")
	}
	if out.Data.SampleEvery < 1 {
		res.addErr("data.sample_every must be >= 1")
	}

	if out.Query.MaxPageSize <= 0 {
		res.addErr("query.max_page_size must be > 0")
	}
	if out.Query.DefaultPageSize <= 0 || out.Query.DefaultPageSize > out.Query.MaxPageSize {
		res.addErr("query.default_page_size must be 1..query.max_page_size")
	}

	// smtp: host may be filled in later via EMAIL_HOST
	if out.SMTP.Host == "" {
		res.addWarn("smtp.host is empty; sending mail will fail until EMAIL_HOST or smtp.host is set.")
	}
	if out.SMTP.Port <= 0 || out.SMTP.Port > 65535 {
		res.addErr("smtp.port must be 1..65535")
	}
	switch out.SMTP.Security {
	case "starttls", "tls", "none":
	default:
		res.addErr("smtp.security must be starttls, tls or none (got %q)", out.SMTP.Security)
	}
	if out.SMTP.ConnectTimeoutSeconds <= 0 {
		res.addErr("smtp.connect_timeout_seconds must be > 0")
	}
	if out.SMTP.SendTimeoutSeconds <= 0 {
		res.addErr("smtp.send_timeout_seconds must be > 0")
	}

	if out.IMAP.Enabled {
		if strings.TrimSpace(out.IMAP.Host) == "" {
			res.addErr("imap.host is required when imap.enabled=true")
		}
		if strings.TrimSpace(out.IMAP.Mailbox) == "" {
			res.addErr("imap.mailbox is required when imap.enabled=true")
		}
	}

	// pacing sanity
	if out.Pacing.MessageDelayMS < 0 || out.Pacing.BatchDelayMS < 0 {
		res.addErr("pacing delays must be >= 0")
	} else if out.Pacing.MessageDelayMS < 1000 {
		res.addWarn("pacing.message_delay_ms is very low (%d) and may cause rate limits.", out.Pacing.MessageDelayMS)
	}
	if out.Pacing.BatchSize < 0 {
		res.addErr("pacing.batch_size must be >= 0")
	}

	if strings.TrimSpace(out.Auth.JWTSecret) == "" {
		res.addErr("auth.jwt_secret is required (or set JWT_SECRET)")
	} else if len(out.Auth.JWTSecret) < 16 {
		res.addWarn("auth.jwt_secret is short; use at least 32 random bytes.")
	}
	if out.Auth.TokenTTLHours <= 0 {
		res.addErr("auth.token_ttl_hours must be > 0")
	}

	if out.Tracking.QueueSize <= 0 {
		res.addErr("tracking.queue_size must be > 0")
	}

	if out.AI.APIKey == "" {
		res.addWarn("ai.api_key is empty; cover letter generation is disabled (set OPENAI_API_KEY).")
	}

	return out, res
}
