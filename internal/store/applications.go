package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Application is one tracked send attempt. Rows are insert-only apart from
// the logo key, which is filled in once the favicon is cached.
type Application struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"userId"`
	UserEmail      string          `json:"userEmail"`
	CompanyName    string          `json:"companyName"`
	JobTitle       string          `json:"jobTitle"`
	EmployerDomain string          `json:"employerDomain"`
	RecipientEmail string          `json:"recipientEmail"`
	CaseNumber     string          `json:"caseNumber"`
	EmailSubject   string          `json:"emailSubject"`
	EmailBody      string          `json:"emailBody"`
	Status         string          `json:"status"`
	SentAt         time.Time       `json:"sentAt"`
	LCAData        json.RawMessage `json:"lcaData,omitempty"`
	LogoKey        string          `json:"logoKey,omitempty"`
	CompanyLogoURL string          `json:"companyLogoURL,omitempty"`
}

var ErrInvalidApplication = errors.New("invalid application")

// fixed width so sent_at sorts correctly as text
const sentAtLayout = "2006-01-02T15:04:05.000000Z"

// InsertApplication stores app and remembers the company's mail domain.
func InsertApplication(ctx context.Context, db *sql.DB, app Application) (int64, error) {
	if app.UserID == 0 || strings.TrimSpace(app.RecipientEmail) == "" {
		return 0, ErrInvalidApplication
	}
	if app.Status != StatusSent && app.Status != StatusFailed {
		return 0, ErrInvalidApplication
	}
	if app.SentAt.IsZero() {
		app.SentAt = time.Now().UTC()
	}
	lca := ""
	if len(app.LCAData) > 0 && json.Valid(app.LCAData) {
		lca = string(app.LCAData)
	}

	res, err := db.ExecContext(ctx, `
INSERT INTO applications(
  user_id, user_email, company_name, job_title, employer_domain,
  recipient_email, case_number, email_subject, email_body, status,
  sent_at, lca_data, logo_key)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		app.UserID, app.UserEmail, app.CompanyName, app.JobTitle, app.EmployerDomain,
		app.RecipientEmail, strings.TrimSpace(app.CaseNumber), app.EmailSubject, app.EmailBody, app.Status,
		app.SentAt.UTC().Format(sentAtLayout), lca, app.LogoKey,
	)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()

	if app.Status == StatusSent {
		if err := UpsertCompanyDomain(ctx, db, app.CompanyName, app.EmployerDomain); err != nil {
			return id, err
		}
	}
	return id, nil
}

// ListApplications returns the user's history, newest first.
func ListApplications(ctx context.Context, db *sql.DB, userID int64, limit int) ([]Application, error) {
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}
	rows, err := db.QueryContext(ctx, `
SELECT id, user_id, user_email, company_name, job_title, employer_domain,
       recipient_email, case_number, email_subject, email_body, status,
       sent_at, lca_data, logo_key
FROM applications
WHERE user_id = ?
ORDER BY sent_at DESC, id DESC
LIMIT ?;`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Application{}
	for rows.Next() {
		var a Application
		var sentAt, lca string
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.UserEmail, &a.CompanyName, &a.JobTitle, &a.EmployerDomain,
			&a.RecipientEmail, &a.CaseNumber, &a.EmailSubject, &a.EmailBody, &a.Status,
			&sentAt, &lca, &a.LogoKey,
		); err != nil {
			return nil, err
		}
		a.SentAt, _ = time.Parse(sentAtLayout, sentAt)
		if lca != "" {
			a.LCAData = json.RawMessage(lca)
		}
		if a.LogoKey != "" {
			a.CompanyLogoURL = "/logo/" + a.LogoKey
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// HasApplied reports whether the user has a sent application for caseNumber.
// Failed attempts do not count.
func HasApplied(ctx context.Context, db *sql.DB, userID int64, caseNumber string) (bool, error) {
	caseNumber = strings.TrimSpace(caseNumber)
	if caseNumber == "" {
		return false, nil
	}
	var one int
	err := db.QueryRowContext(ctx, `
SELECT 1 FROM applications
WHERE user_id = ? AND case_number = ? AND status = ?
LIMIT 1;`, userID, caseNumber, StatusSent).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetApplicationLogo attaches a cached logo to an application.
func SetApplicationLogo(ctx context.Context, db *sql.DB, id int64, logoKey string) error {
	res, err := db.ExecContext(ctx, `UPDATE applications SET logo_key = ? WHERE id = ?;`, logoKey, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Tracker adapts the application functions to the dispatcher and the
// tracking forwarder.
type Tracker struct {
	DB *sql.DB
}

func (t Tracker) HasApplied(ctx context.Context, userID int64, caseNumber string) (bool, error) {
	return HasApplied(ctx, t.DB, userID, caseNumber)
}

func (t Tracker) Insert(ctx context.Context, app Application) (int64, error) {
	return InsertApplication(ctx, t.DB, app)
}

func (t Tracker) SetLogo(ctx context.Context, id int64, logoKey string) error {
	return SetApplicationLogo(ctx, t.DB, id, logoKey)
}
