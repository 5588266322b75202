package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const maxLogoBytes = 512 * 1024

var ErrNotImage = errors.New("not an image")

// LogoCache fetches employer favicons once and keeps the bytes in the
// logos table.
type LogoCache struct {
	DB       *sql.DB
	Client   *http.Client
	Endpoint string // favicon service, queried with ?domain=&sz=
}

func NewLogoCache(db *sql.DB) *LogoCache {
	return &LogoCache{
		DB:       db,
		Client:   &http.Client{Timeout: 15 * time.Second},
		Endpoint: "https://www.google.com/s2/favicons",
	}
}

func LogoKeyFromURL(u string) string {
	h := sha256.Sum256([]byte(u))
	return hex.EncodeToString(h[:])
}

func normalizeDomain(domain string) string {
	domain = strings.TrimSpace(strings.ToLower(domain))
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "www.")
	return strings.Trim(domain, "/")
}

func (c *LogoCache) FaviconURLForDomain(domain string) string {
	domain = normalizeDomain(domain)
	if domain == "" {
		return ""
	}
	// sz can be 16/32/64/128
	return c.Endpoint + "?domain=" + url.QueryEscape(domain) + "&sz=64"
}

// CacheFaviconForDomain returns the logo key for domain, fetching it if it
// is not cached yet. A domain without a usable icon yields "".
func (c *LogoCache) CacheFaviconForDomain(ctx context.Context, domain string) (string, error) {
	u := c.FaviconURLForDomain(domain)
	if u == "" {
		return "", nil
	}
	key := LogoKeyFromURL(u)

	// If already cached, skip fetch
	var exists int
	e := c.DB.QueryRowContext(ctx, `SELECT 1 FROM logos WHERE key = ? LIMIT 1;`, key).Scan(&exists)
	if e == nil {
		return key, nil
	}
	if !errors.Is(e, sql.ErrNoRows) {
		return "", e
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("logo fetch %s: %w", domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("logo fetch %s: %s", domain, resp.Status)
	}

	// Limit size (protect DB)
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoBytes+1))
	if err != nil {
		return "", err
	}
	if len(b) == 0 || len(b) > maxLogoBytes {
		return "", nil
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "image/") {
		ct = mimetype.Detect(b).String()
		if !strings.HasPrefix(ct, "image/") {
			return "", ErrNotImage
		}
	}

	_, err = c.DB.ExecContext(ctx, `
INSERT OR REPLACE INTO logos(key, content_type, bytes, fetched_at)
VALUES(?,?,?,?);`,
		key, ct, b, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", err
	}
	return key, nil
}

// GetLogo returns the cached bytes for key, or ErrNotFound.
func GetLogo(ctx context.Context, db *sql.DB, key string) (contentType string, data []byte, err error) {
	err = db.QueryRowContext(ctx,
		`SELECT content_type, bytes FROM logos WHERE key = ? LIMIT 1;`, key,
	).Scan(&contentType, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, ErrNotFound
	}
	return contentType, data, err
}
