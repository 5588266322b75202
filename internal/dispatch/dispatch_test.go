package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"lcamail-engine/internal/events"
	"lcamail-engine/internal/mailer"
	"lcamail-engine/internal/store"
	"lcamail-engine/internal/tracking"
)

// fakeClock advances instantly whenever something waits on it.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

type fakeSender struct {
	mu        sync.Mutex
	clock     Clock
	verifyErr error
	failFor   map[string]error
	onSend    func(n int)
	verified  int
	sent      []mailer.Message
	sentAt    []time.Time
}

func (s *fakeSender) Verify(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified++
	return s.verifyErr
}

func (s *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	if s.clock != nil {
		s.sentAt = append(s.sentAt, s.clock.Now())
	}
	n := len(s.sent)
	hook := s.onSend
	err := s.failFor[msg.To]
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return err
}

func (s *fakeSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []string{}
	for _, m := range s.sent {
		out = append(out, m.To)
	}
	return out
}

type fakeSink struct {
	mu   sync.Mutex
	apps []store.Application
	drop bool
}

func (f *fakeSink) Forward(app store.Application) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps = append(f.apps, app)
	return !f.drop
}

func (f *fakeSink) statuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, a := range f.apps {
		out = append(out, a.Status)
	}
	return out
}

type fakeApplied struct {
	cases map[string]bool
	err   error
	calls int
}

func (f *fakeApplied) HasApplied(_ context.Context, _ int64, caseNumber string) (bool, error) {
	f.calls++
	return f.cases[caseNumber], f.err
}

type fakePub struct {
	mu     sync.Mutex
	topics []string
	evts   []events.Event
}

func (p *fakePub) Publish(topic, evt string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var e events.Event
	_ = json.Unmarshal([]byte(evt), &e)
	p.topics = append(p.topics, topic)
	p.evts = append(p.evts, e)
}

var fastPacing = PacingConfig{MessageDelay: 3 * time.Second, BatchSize: 5, BatchDelay: 10 * time.Second}

func newTestDispatcher(t *testing.T, applied AppliedChecker, sink TrackingSink, pub Publisher, clk Clock) *Dispatcher {
	t.Helper()
	if clk == nil {
		clk = newFakeClock()
	}
	return New(Config{Pacing: fastPacing}, applied, sink, pub, zaptest.NewLogger(t), WithClock(clk))
}

func threeRecipients() []Recipient {
	return []Recipient{
		{Email: "a@acme.com", CompanyName: "Acme", JobTitle: "SWE", CaseNumber: "I-1"},
		{Email: "b@beta.io", CompanyName: "Beta", JobTitle: "Data Scientist", CaseNumber: "I-2"},
		{Email: "c@gamma.org", CompanyName: "Gamma", JobTitle: "SRE", CaseNumber: "I-3"},
	}
}

func TestSendBulk_PartialFailure(t *testing.T) {
	sink := &fakeSink{}
	sender := &fakeSender{failFor: map[string]error{"b@beta.io": errors.New("550 mailbox unavailable")}}
	d := newTestDispatcher(t, &fakeApplied{}, sink, nil, nil)

	sum, err := d.SendBulk(context.Background(), sender, Request{
		User:        User{ID: 7, Email: "me@example.com"},
		Recipients:  threeRecipients(),
		Subject:     "Apply to {company}",
		HTMLBody:    "<p>Hi {company}, re {jobTitle}</p>",
		Track:       true,
		Personalize: true,
	})
	if err != nil {
		t.Fatalf("SendBulk: %v", err)
	}

	want := &Summary{
		Total:  3,
		Sent:   2,
		Failed: 1,
		Errors: []SendError{{Recipient: "b@beta.io", Company: "Beta", Error: "550 mailbox unavailable"}},
	}
	if diff := cmp.Diff(want, sum); diff != "" {
		t.Errorf("summary (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"sent", "failed", "sent"}, sink.statuses()); diff != "" {
		t.Errorf("tracking statuses (-want +got):\n%s", diff)
	}
	failed := sink.apps[1]
	if failed.EmployerDomain != "beta.io" || failed.CaseNumber != "I-2" || failed.UserID != 7 {
		t.Errorf("failed event = %+v", failed)
	}
	if failed.EmailSubject != "Apply to Beta" {
		t.Errorf("failed event subject = %q", failed.EmailSubject)
	}
	if sender.verified != 1 {
		t.Errorf("verified %d times, want 1", sender.verified)
	}
}

func TestSendBulk_Personalization(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(t, nil, nil, nil, nil)
	_, err := d.SendBulk(context.Background(), sender, Request{
		User:        User{ID: 1, Email: "me@example.com"},
		Recipients:  []Recipient{{Email: "hr@acme.com", CompanyName: "Acme", JobTitle: "Engineer $1"}},
		Subject:     "Apply to {COMPANY}",
		HTMLBody:    "{Company} / {JOBTITLE} / {jobtitle}",
		Personalize: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	got := sender.sent[0]
	if got.Subject != "Apply to Acme" {
		t.Errorf("subject = %q", got.Subject)
	}
	if got.HTML != "Acme / Engineer $1 / Engineer $1" {
		t.Errorf("body = %q", got.HTML)
	}
	if got.From != "me@example.com" {
		t.Errorf("from = %q", got.From)
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		tmpl, company, title, want string
	}{
		{"Apply to {company}", "Acme", "", "Apply to Acme"},
		{"Apply to {COMPANY}", "Acme", "", "Apply to Acme"},
		{"{jobTitle} at {company}", "Acme", "SWE", "SWE at Acme"},
		{"no placeholders", "Acme", "SWE", "no placeholders"},
		{"{company}{company}", `A\1`, "", `A\1A\1`},
		{"{company} / {jobtitle}", "Co {jobTitle}", "SWE", "Co {jobTitle} / SWE"},
		{"{jobTitle}", "Acme", "$1 {company}", "$1 {company}"},
	}
	for _, tt := range tests {
		if got := Render(tt.tmpl, tt.company, tt.title); got != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}

func TestSendBulk_AlreadyAppliedGuard(t *testing.T) {
	sink := &fakeSink{}
	sender := &fakeSender{}
	applied := &fakeApplied{cases: map[string]bool{"I-2": true}}
	d := newTestDispatcher(t, applied, sink, nil, nil)

	recips := threeRecipients()
	recips = append(recips, Recipient{Email: "dup@acme.com", CompanyName: "Acme", CaseNumber: "I-1"})

	sum, err := d.SendBulk(context.Background(), sender, Request{
		User:       User{ID: 3, Email: "me@example.com"},
		Recipients: recips,
		Subject:    "s",
		HTMLBody:   "b",
		Track:      true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a@acme.com", "c@gamma.org"}, sender.recipients()); diff != "" {
		t.Errorf("transport sends (-want +got):\n%s", diff)
	}
	if sum.Sent != 2 || sum.Failed != 2 {
		t.Errorf("summary = %+v", sum)
	}
	for _, e := range sum.Errors {
		if e.Error != "already applied" {
			t.Errorf("error = %+v", e)
		}
	}
	if diff := cmp.Diff([]string{"sent", "sent"}, sink.statuses()); diff != "" {
		t.Errorf("skipped recipients must not be tracked (-want +got):\n%s", diff)
	}
}

func TestSendBulk_FailedSendFreesCaseForNextContact(t *testing.T) {
	sink := &fakeSink{}
	sender := &fakeSender{failFor: map[string]error{"hr@acme.com": errors.New("550 mailbox unavailable")}}
	d := newTestDispatcher(t, &fakeApplied{}, sink, nil, nil)

	sum, err := d.SendBulk(context.Background(), sender, Request{
		User:       User{ID: 3, Email: "me@example.com"},
		Recipients: []Recipient{
			{Email: "hr@acme.com", CompanyName: "Acme", CaseNumber: "I-1"},
			{Email: "jobs@acme.com", CompanyName: "Acme", CaseNumber: "I-1"},
			{Email: "talent@acme.com", CompanyName: "Acme", CaseNumber: "I-1"},
		},
		Subject:  "s",
		HTMLBody: "b",
		Track:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"hr@acme.com", "jobs@acme.com"}, sender.recipients()); diff != "" {
		t.Errorf("transport sends (-want +got):\n%s", diff)
	}
	if sum.Sent != 1 || sum.Failed != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if !strings.Contains(sum.Errors[0].Error, "550") || sum.Errors[1].Recipient != "talent@acme.com" || sum.Errors[1].Error != "already applied" {
		t.Errorf("errors = %+v", sum.Errors)
	}
	if diff := cmp.Diff([]string{"failed", "sent"}, sink.statuses()); diff != "" {
		t.Errorf("tracking (-want +got):\n%s", diff)
	}
}

// gatedLogos holds favicon lookups until released, keeping tracking busy.
type gatedLogos struct{ gate chan struct{} }

func (g gatedLogos) CacheFaviconForDomain(ctx context.Context, _ string) (string, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
	}
	return "", nil
}

func TestSendOne_GuardDoesNotWaitForTracking(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "track.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	me, err := store.CreateUser(ctx, db.Pool, "me@example.com", "hash")
	if err != nil {
		t.Fatal(err)
	}
	other, err := store.CreateUser(ctx, db.Pool, "other@example.com", "hash")
	if err != nil {
		t.Fatal(err)
	}

	logos := gatedLogos{gate: make(chan struct{})}
	tracker := store.Tracker{DB: db.Pool}
	fwd := tracking.NewForwarder(tracker, logos, 8, zaptest.NewLogger(t))
	d := New(Config{}, tracker, fwd, nil, zaptest.NewLogger(t), WithClock(newFakeClock()))

	sender := &fakeSender{}
	rcpt := Recipient{Email: "hr@acme.com", CompanyName: "Acme", CaseNumber: "I-1"}
	user := User{ID: me.ID, Email: me.Email}
	if err := d.SendOne(ctx, sender, user, rcpt, "s", "b", nil, ""); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := d.SendOne(ctx, sender, user, rcpt, "s", "b", nil, ""); !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("second send err = %v, want ErrAlreadyApplied", err)
	}
	sum, err := d.SendBulk(ctx, sender, Request{User: user, Recipients: []Recipient{rcpt}, Subject: "s", HTMLBody: "b", Track: true})
	if err != nil || sum.Sent != 0 || sum.Failed != 1 {
		t.Fatalf("bulk resend: sum=%+v err=%v", sum, err)
	}
	// the guard is per user
	if err := d.SendOne(ctx, sender, User{ID: other.ID, Email: other.Email}, rcpt, "s", "b", nil, ""); err != nil {
		t.Fatalf("other user: %v", err)
	}
	if n := len(sender.recipients()); n != 2 {
		t.Errorf("transport sends = %d, want 2", n)
	}

	close(logos.gate)
	if err := fwd.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := tracker.HasApplied(ctx, me.ID, "I-1"); !ok {
		t.Error("sent application not persisted")
	}
}

func TestSendBulk_GuardOffForUntrackedSends(t *testing.T) {
	sender := &fakeSender{}
	applied := &fakeApplied{cases: map[string]bool{"I-1": true}}
	sink := &fakeSink{}
	d := newTestDispatcher(t, applied, sink, nil, nil)
	sum, err := d.SendBulk(context.Background(), sender, Request{
		User:       User{ID: 3, Email: "me@example.com"},
		Recipients: threeRecipients(),
		Subject:    "test",
		HTMLBody:   "test",
		Kind:       KindTest,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Sent != 3 || applied.calls != 0 || len(sink.apps) != 0 {
		t.Errorf("sum=%+v applied.calls=%d tracked=%d", sum, applied.calls, len(sink.apps))
	}
}

func TestSendBulk_AppliedCheckErrorDoesNotBlock(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(t, &fakeApplied{err: errors.New("db locked")}, &fakeSink{}, nil, nil)
	sum, err := d.SendBulk(context.Background(), sender, Request{
		User: User{ID: 1, Email: "me@example.com"}, Recipients: threeRecipients(),
		Subject: "s", HTMLBody: "b", Track: true,
	})
	if err != nil || sum.Sent != 3 {
		t.Fatalf("sum=%+v err=%v", sum, err)
	}
}

func TestSendBulk_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"no recipients", Request{Subject: "s", HTMLBody: "b"}, "no recipients"},
		{"empty recipients", Request{Recipients: []Recipient{}, Subject: "s", HTMLBody: "b"}, "no recipients"},
		{"missing address", Request{Recipients: []Recipient{{CompanyName: "Acme"}}, Subject: "s", HTMLBody: "b"}, "Email is required"},
		{"bad address", Request{Recipients: []Recipient{{Email: "not-an-email"}}, Subject: "s", HTMLBody: "b"}, "not a valid email"},
		{"blank subject", Request{Recipients: []Recipient{{Email: "a@b.co"}}, Subject: "   ", HTMLBody: "b"}, "subject is required"},
		{"blank body", Request{Recipients: []Recipient{{Email: "a@b.co"}}, Subject: "s", HTMLBody: " \n"}, "body is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			sink := &fakeSink{}
			d := newTestDispatcher(t, nil, sink, nil, nil)
			sum, err := d.SendBulk(context.Background(), sender, tt.req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want it to mention %q", err, tt.want)
			}
			if sum != nil || sender.verified != 0 || len(sender.sent) != 0 || len(sink.apps) != 0 {
				t.Errorf("validation failure had side effects: sum=%v verified=%d sent=%d", sum, sender.verified, len(sender.sent))
			}
		})
	}
}

func TestSendBulk_TransportUnavailable(t *testing.T) {
	sender := &fakeSender{verifyErr: errors.New("dial tcp: connection refused")}
	sink := &fakeSink{}
	d := newTestDispatcher(t, nil, sink, nil, nil)
	sum, err := d.SendBulk(context.Background(), sender, Request{
		User: User{ID: 1, Email: "me@example.com"}, Recipients: threeRecipients(),
		Subject: "s", HTMLBody: "b", Track: true,
	})
	if !errors.Is(err, ErrTransportUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if sum != nil || len(sender.sent) != 0 || len(sink.apps) != 0 {
		t.Error("no recipient may be processed when the transport is down")
	}
}

func TestSendBulk_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender := &fakeSender{onSend: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	pub := &fakePub{}
	d := newTestDispatcher(t, nil, &fakeSink{}, pub, nil)

	recips := append(threeRecipients(), Recipient{Email: "d@delta.dev"})
	sum, err := d.SendBulk(ctx, sender, Request{
		User: User{ID: 9, Email: "me@example.com"}, Recipients: recips,
		Subject: "s", HTMLBody: "b", Track: true,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if sum == nil || !sum.Cancelled || sum.Sent != 2 || sum.Total != 4 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sender.sent) != 2 {
		t.Errorf("sends after cancel: %d", len(sender.sent))
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	last := pub.evts[len(pub.evts)-1]
	if last.Type != "dispatch_finished" {
		t.Errorf("last event = %q", last.Type)
	}
}

func TestSendBulk_PublishesProgressToUserTopic(t *testing.T) {
	pub := &fakePub{}
	d := newTestDispatcher(t, nil, nil, pub, nil)
	_, err := d.SendBulk(context.Background(), &fakeSender{}, Request{
		User: User{ID: 42, Email: "me@example.com"}, Recipients: threeRecipients(),
		Subject: "s", HTMLBody: "b", RequestID: "req-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	var types []string
	for i, e := range pub.evts {
		if pub.topics[i] != events.UserTopic(42) {
			t.Errorf("topic = %q", pub.topics[i])
		}
		if e.RequestID != "req-1" {
			t.Errorf("request id = %q", e.RequestID)
		}
		types = append(types, e.Type)
	}
	want := []string{"dispatch_started", "dispatch_progress", "dispatch_progress", "dispatch_progress", "dispatch_finished"}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	var p Progress
	if err := json.Unmarshal(pub.evts[3].Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.Index != 2 || p.Sent != 3 || p.Status != "sent" {
		t.Errorf("progress = %+v", p)
	}
}

func TestSendBulk_TrackingDropDoesNotAbort(t *testing.T) {
	sink := &fakeSink{drop: true}
	d := newTestDispatcher(t, nil, sink, nil, nil)
	sum, err := d.SendBulk(context.Background(), &fakeSender{}, Request{
		User: User{ID: 1, Email: "me@example.com"}, Recipients: threeRecipients(),
		Subject: "s", HTMLBody: "b", Track: true,
	})
	if err != nil || sum.Sent != 3 || len(sink.apps) != 3 {
		t.Fatalf("sum=%+v err=%v tracked=%d", sum, err, len(sink.apps))
	}
}

func TestSendBulk_PacingGaps(t *testing.T) {
	clk := newFakeClock()
	sender := &fakeSender{clock: clk}
	d := newTestDispatcher(t, nil, nil, nil, clk)

	var recips []Recipient
	for _, e := range []string{"1@x.io", "2@x.io", "3@x.io", "4@x.io", "5@x.io", "6@x.io", "7@x.io"} {
		recips = append(recips, Recipient{Email: e})
	}
	if _, err := d.SendBulk(context.Background(), sender, Request{
		User: User{ID: 1, Email: "me@example.com"}, Recipients: recips, Subject: "s", HTMLBody: "b",
	}); err != nil {
		t.Fatal(err)
	}

	var gaps []time.Duration
	for i := 1; i < len(sender.sentAt); i++ {
		gaps = append(gaps, sender.sentAt[i].Sub(sender.sentAt[i-1]))
	}
	s := time.Second
	want := []time.Duration{3 * s, 3 * s, 3 * s, 3 * s, 10 * s, 3 * s}
	if diff := cmp.Diff(want, gaps); diff != "" {
		t.Errorf("gaps (-want +got):\n%s", diff)
	}
}

func TestPacer_FirstWaitImmediateAndCancel(t *testing.T) {
	clk := newFakeClock()
	p := NewPacer(fastPacing, clk)
	start := clk.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !clk.Now().Equal(start) {
		t.Errorf("first wait advanced the clock by %v", clk.Now().Sub(start))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if p.Sent() != 1 {
		t.Errorf("Sent() = %d", p.Sent())
	}
}

func TestPacer_ZeroDelayNeverWaits(t *testing.T) {
	clk := newFakeClock()
	p := NewPacer(PacingConfig{}, clk)
	start := clk.Now()
	for i := 0; i < 20; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if !clk.Now().Equal(start) {
		t.Errorf("clock advanced by %v", clk.Now().Sub(start))
	}
}

func TestSendOne(t *testing.T) {
	sink := &fakeSink{}
	applied := &fakeApplied{cases: map[string]bool{"I-9": true}}
	d := newTestDispatcher(t, applied, sink, nil, nil)
	user := User{ID: 5, Email: "me@example.com"}

	err := d.SendOne(context.Background(), &fakeSender{}, user,
		Recipient{Email: "hr@acme.com", CaseNumber: "I-9"}, "s", "b", nil, "")
	if !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("err = %v, want ErrAlreadyApplied", err)
	}

	failing := &fakeSender{failFor: map[string]error{"hr@acme.com": errors.New("timeout")}}
	err = d.SendOne(context.Background(), failing, user,
		Recipient{Email: "hr@acme.com", CompanyName: "Acme", CaseNumber: "I-10"}, "s", "b", nil, "")
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("err = %v, want ErrSendFailed", err)
	}
	// a failed attempt leaves the case open
	if err := d.SendOne(context.Background(), &fakeSender{}, user,
		Recipient{Email: "jobs@acme.com", CompanyName: "Acme", CaseNumber: "I-10"}, "s", "b", nil, ""); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}

	ok := &fakeSender{}
	att := &mailer.Attachment{Name: "cv.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}
	if err := d.SendOne(context.Background(), ok, user,
		Recipient{Email: "hr@acme.com", CompanyName: "Acme", CaseNumber: "I-11"}, "s", "b", att, ""); err != nil {
		t.Fatal(err)
	}
	if len(ok.sent) != 1 || len(ok.sent[0].Attachments) != 1 {
		t.Errorf("sent = %+v", ok.sent)
	}
	if diff := cmp.Diff([]string{"failed", "sent", "sent"}, sink.statuses()); diff != "" {
		t.Errorf("tracking (-want +got):\n%s", diff)
	}
}

func TestEmailDomain(t *testing.T) {
	for in, want := range map[string]string{
		"hr@Acme.com": "acme.com",
		"no-at":       "",
		"a@b@c.io":    "c.io",
	} {
		if got := EmailDomain(in); got != want {
			t.Errorf("EmailDomain(%q) = %q, want %q", in, got, want)
		}
	}
}
