package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
)

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Message struct {
	From        string
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

func (m Message) validate() error {
	switch {
	case strings.TrimSpace(m.From) == "":
		return errors.New("mailer: from address is required")
	case strings.TrimSpace(m.To) == "":
		return errors.New("mailer: recipient address is required")
	}
	return nil
}

// Build renders m as a multipart MIME message with an HTML part, a derived
// plain-text alternative and any attachments.
func (m Message) Build(now time.Time) ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	b := enmime.Builder().
		From("", m.From).
		To("", m.To).
		Subject(m.Subject).
		Date(now).
		Header("Message-ID", messageID(m.From)).
		HTML([]byte(m.HTML)).
		Text([]byte(PlainText(m.HTML)))
	for _, a := range m.Attachments {
		b = b.AddAttachment(a.Data, a.ContentType, a.Name)
	}

	part, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build mime: %w", err)
	}
	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode mime: %w", err)
	}
	return buf.Bytes(), nil
}

func messageID(from string) string {
	host := "localhost"
	if i := strings.LastIndexByte(from, '@'); i >= 0 && i < len(from)-1 {
		host = from[i+1:]
	}
	return "<" + uuid.NewString() + "@" + host + ">"
}

var blankLines = regexp.MustCompile(`\n{3,}`)

// PlainText converts an HTML body to readable text: scripts and styles are
// dropped and block elements end a line.
func PlainText(html string) string {
	if !strings.ContainsAny(html, "<>&") {
		return strings.TrimSpace(html)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href != "" && !strings.HasPrefix(href, "mailto:") && strings.TrimSpace(s.Text()) != href {
			s.AppendHtml(" (" + href + ")")
		}
	})

	lines := strings.Split(doc.Text(), "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	out := strings.Join(lines, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
