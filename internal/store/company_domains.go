package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// GetCompanyDomain returns the mail domain last used for company, or "".
func GetCompanyDomain(ctx context.Context, db *sql.DB, company string) (string, error) {
	company = normalizeCompanyKey(company)
	if company == "" {
		return "", nil
	}

	var domain string
	err := db.QueryRowContext(ctx,
		`SELECT domain FROM company_domains WHERE company = ? LIMIT 1;`,
		company,
	).Scan(&domain)

	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(domain), nil
}

// UpsertCompanyDomain records that company was reached at domain. Free-mail
// domains say nothing about the employer and are skipped.
func UpsertCompanyDomain(ctx context.Context, db *sql.DB, company, domain string) error {
	company = normalizeCompanyKey(company)
	domain = normalizeDomain(domain)

	if company == "" || domain == "" || freeMailDomains[domain] {
		return nil
	}

	_, err := db.ExecContext(ctx, `
INSERT INTO company_domains(company, domain, fetched_at)
VALUES(?,?,?)
ON CONFLICT(company) DO UPDATE SET
  domain = excluded.domain,
  fetched_at = excluded.fetched_at;
`, company, domain, time.Now().UTC().Format(time.RFC3339))

	return err
}

var freeMailDomains = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"outlook.com": true,
	"hotmail.com": true,
	"aol.com":     true,
	"icloud.com":  true,
}

func normalizeCompanyKey(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ToLower(s)
	return s
}
