package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lcamail-engine/internal/events"
	"lcamail-engine/internal/mailer"
	"lcamail-engine/internal/metrics"
	"lcamail-engine/internal/store"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrTransportUnavailable = errors.New("mail transport unavailable")
	ErrAlreadyApplied       = errors.New("already applied")
	ErrSendFailed           = errors.New("send failed")
)

const (
	KindBulk   = "bulk"
	KindSingle = "single"
	KindTest   = "test"
)

// Sender is one authenticated mail account.
type Sender interface {
	Verify(ctx context.Context) error
	Send(ctx context.Context, msg mailer.Message) error
}

// AppliedChecker answers whether the user already has a sent application
// for a case.
type AppliedChecker interface {
	HasApplied(ctx context.Context, userID int64, caseNumber string) (bool, error)
}

// TrackingSink accepts tracking events without blocking.
type TrackingSink interface {
	Forward(app store.Application) bool
}

type Publisher interface {
	Publish(topic, evt string)
}

type User struct {
	ID    int64
	Email string
}

type Recipient struct {
	Email       string          `json:"email" validate:"required,email"`
	CompanyName string          `json:"companyName"`
	JobTitle    string          `json:"jobTitle"`
	CaseNumber  string          `json:"caseNumber"`
	LCAData     json.RawMessage `json:"lcaData,omitempty" validate:"-"`
}

type Request struct {
	User       User
	Recipients []Recipient `validate:"required,min=1,dive"`
	Subject    string      `validate:"required"`
	HTMLBody   string      `validate:"required"`
	Attachment *mailer.Attachment

	// Track enables tracking events and the already-applied guard.
	// Personalize fills {company}/{jobTitle} per recipient.
	Track       bool
	Personalize bool
	Kind        string
	RequestID   string
}

type SendError struct {
	Recipient string `json:"recipient"`
	Company   string `json:"company,omitempty"`
	Error     string `json:"error"`
}

type Summary struct {
	Total     int         `json:"total"`
	Sent      int         `json:"sent"`
	Failed    int         `json:"failed"`
	Errors    []SendError `json:"errors"`
	Cancelled bool        `json:"cancelled,omitempty"`
}

type Progress struct {
	DispatchID string `json:"dispatchId"`
	Kind       string `json:"kind"`
	Index      int    `json:"index"`
	Total      int    `json:"total"`
	Recipient  string `json:"recipient"`
	Company    string `json:"company,omitempty"`
	Status     string `json:"status"` // sent | failed | skipped
	Error      string `json:"error,omitempty"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
}

type Config struct {
	Pacing        PacingConfig
	SendTimeout   time.Duration
	VerifyTimeout time.Duration
}

// Dispatcher runs sends for any number of users. Each call owns its own
// pacer; calls share only the tracker.
type Dispatcher struct {
	cfg      Config
	applied  AppliedChecker
	sink     TrackingSink
	pub      Publisher
	clock    Clock
	validate *validator.Validate
	log      *zap.Logger

	// cases sent or being sent per user; the tracker store lags behind
	claimMu sync.Mutex
	claims  map[claimKey]struct{}
}

type claimKey struct {
	userID     int64
	caseNumber string
}

type Option func(*Dispatcher)

func WithClock(c Clock) Option { return func(d *Dispatcher) { d.clock = c } }

// New builds a Dispatcher. applied, sink and pub may be nil.
func New(cfg Config, applied AppliedChecker, sink TrackingSink, pub Publisher, log *zap.Logger, opts ...Option) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		cfg:      cfg,
		applied:  applied,
		sink:     sink,
		pub:      pub,
		clock:    realClock{},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
		claims:   map[claimKey]struct{}{},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Dispatcher) check(req *Request) error {
	req.Subject = strings.TrimSpace(req.Subject)
	for i := range req.Recipients {
		req.Recipients[i].Email = strings.TrimSpace(req.Recipients[i].Email)
		req.Recipients[i].CaseNumber = strings.TrimSpace(req.Recipients[i].CaseNumber)
	}
	body := req.HTMLBody
	req.HTMLBody = strings.TrimSpace(body)
	err := d.validate.Struct(req)
	req.HTMLBody = body
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Request.")
	switch {
	case field == "Recipients" && (fe.Tag() == "required" || fe.Tag() == "min"):
		return "no recipients provided"
	case field == "Subject":
		return "subject is required"
	case field == "HTMLBody":
		return "email body is required"
	case fe.Tag() == "email":
		return fmt.Sprintf("%s: %q is not a valid email address", field, fe.Value())
	case fe.Tag() == "required":
		return field + " is required"
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

func (d *Dispatcher) verify(ctx context.Context, sender Sender) error {
	vctx, cancel := context.WithTimeout(ctx, d.cfg.VerifyTimeout)
	defer cancel()
	if err := sender.Verify(vctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}
	return nil
}

func (d *Dispatcher) alreadyApplied(ctx context.Context, userID int64, caseNumber string) bool {
	if d.applied == nil || caseNumber == "" {
		return false
	}
	ok, err := d.applied.HasApplied(ctx, userID, caseNumber)
	if err != nil {
		// tracker trouble must not block sending
		d.log.Warn("applied check failed", zap.String("case_number", caseNumber), zap.Error(err))
		return false
	}
	return ok
}

// claim reserves caseNumber for one send by userID. It reports false when
// the case was already sent, or is in flight, through this dispatcher.
// A successful send keeps the claim; a failed one must release it.
func (d *Dispatcher) claim(userID int64, caseNumber string) bool {
	if caseNumber == "" {
		return true
	}
	k := claimKey{userID, caseNumber}
	d.claimMu.Lock()
	defer d.claimMu.Unlock()
	if _, ok := d.claims[k]; ok {
		return false
	}
	d.claims[k] = struct{}{}
	return true
}

func (d *Dispatcher) release(userID int64, caseNumber string) {
	if caseNumber == "" {
		return
	}
	d.claimMu.Lock()
	delete(d.claims, claimKey{userID, caseNumber})
	d.claimMu.Unlock()
}

func (d *Dispatcher) message(req Request, to, subject, body string) mailer.Message {
	msg := mailer.Message{From: req.User.Email, To: to, Subject: subject, HTML: body}
	if req.Attachment != nil {
		msg.Attachments = []mailer.Attachment{*req.Attachment}
	}
	return msg
}

func (d *Dispatcher) track(req Request, r Recipient, subject, body, status string) {
	if !req.Track || d.sink == nil {
		return
	}
	snap := r.LCAData
	if len(snap) == 0 {
		snap, _ = json.Marshal(r)
	}
	d.sink.Forward(store.Application{
		UserID:         req.User.ID,
		UserEmail:      req.User.Email,
		CompanyName:    r.CompanyName,
		JobTitle:       r.JobTitle,
		EmployerDomain: EmailDomain(r.Email),
		RecipientEmail: r.Email,
		CaseNumber:     r.CaseNumber,
		EmailSubject:   subject,
		EmailBody:      body,
		Status:         status,
		SentAt:         d.clock.Now().UTC(),
		LCAData:        snap,
	})
}

func (d *Dispatcher) publish(req Request, typ string, data any) {
	if d.pub == nil || req.User.ID == 0 {
		return
	}
	d.pub.Publish(events.UserTopic(req.User.ID), events.MakeEvent(req.RequestID, typ, data))
}

// SendBulk sends one message per recipient, sequentially and paced. It
// returns ErrValidation or ErrTransportUnavailable before touching any
// recipient; otherwise per-recipient failures are reported in the summary
// only. On cancellation the partial summary is returned with ctx's error.
func (d *Dispatcher) SendBulk(ctx context.Context, sender Sender, req Request) (*Summary, error) {
	if req.Kind == "" {
		req.Kind = KindBulk
	}
	if err := d.check(&req); err != nil {
		return nil, err
	}
	if err := d.verify(ctx, sender); err != nil {
		d.log.Warn("transport verification failed", zap.String("user", req.User.Email), zap.Error(err))
		return nil, err
	}

	id := uuid.NewString()
	log := d.log.With(zap.String("dispatch_id", id), zap.String("kind", req.Kind), zap.String("user", req.User.Email))
	total := len(req.Recipients)
	sum := &Summary{Total: total, Errors: []SendError{}}
	pacer := NewPacer(d.cfg.Pacing, d.clock)

	log.Info("dispatch started",
		zap.Int("recipients", total),
		zap.Duration("message_delay", d.cfg.Pacing.MessageDelay),
		zap.Int("batch_size", d.cfg.Pacing.BatchSize),
		zap.Duration("batch_delay", d.cfg.Pacing.BatchDelay),
	)
	d.publish(req, events.TypeDispatchStarted, map[string]any{"dispatchId": id, "kind": req.Kind, "total": total})

	progress := func(i int, r Recipient, status, errMsg string) {
		d.publish(req, events.TypeDispatchProgress, Progress{
			DispatchID: id, Kind: req.Kind, Index: i, Total: total,
			Recipient: r.Email, Company: r.CompanyName,
			Status: status, Error: errMsg,
			Sent: sum.Sent, Failed: sum.Failed,
		})
	}
	fail := func(r Recipient, msg string) {
		sum.Failed++
		sum.Errors = append(sum.Errors, SendError{Recipient: r.Email, Company: r.CompanyName, Error: msg})
	}

	var stopErr error
	for i, r := range req.Recipients {
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}

		guarded := req.Track && r.CaseNumber != ""
		if guarded {
			if !d.claim(req.User.ID, r.CaseNumber) || d.alreadyApplied(ctx, req.User.ID, r.CaseNumber) {
				fail(r, ErrAlreadyApplied.Error())
				metrics.IncrementEmail(req.Kind, "skipped")
				log.Info("skipping already applied", zap.String("case_number", r.CaseNumber), zap.String("to", r.Email))
				progress(i, r, "skipped", ErrAlreadyApplied.Error())
				continue
			}
		}

		if err := pacer.Wait(ctx); err != nil {
			if guarded {
				d.release(req.User.ID, r.CaseNumber)
			}
			stopErr = err
			break
		}

		subject, body := req.Subject, req.HTMLBody
		if req.Personalize {
			subject = Render(subject, r.CompanyName, r.JobTitle)
			body = Render(body, r.CompanyName, r.JobTitle)
		}

		sctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		err := sender.Send(sctx, d.message(req, r.Email, subject, body))
		cancel()

		if err != nil {
			if guarded {
				d.release(req.User.ID, r.CaseNumber)
			}
			fail(r, err.Error())
			metrics.IncrementEmail(req.Kind, "failed")
			log.Warn("send failed", zap.Int("n", i+1), zap.String("to", r.Email), zap.String("company", r.CompanyName), zap.Error(err))
			d.track(req, r, subject, body, store.StatusFailed)
			progress(i, r, store.StatusFailed, err.Error())
			continue
		}

		sum.Sent++
		metrics.IncrementEmail(req.Kind, "sent")
		log.Info("sent", zap.Int("n", i+1), zap.Int("total", total), zap.String("to", r.Email), zap.String("company", r.CompanyName))
		d.track(req, r, subject, body, store.StatusSent)
		progress(i, r, store.StatusSent, "")
	}

	if stopErr != nil {
		sum.Cancelled = true
		log.Warn("dispatch cancelled", zap.Int("sent", sum.Sent), zap.Int("failed", sum.Failed), zap.Error(stopErr))
	} else {
		log.Info("dispatch completed", zap.Int("sent", sum.Sent), zap.Int("failed", sum.Failed))
	}
	d.publish(req, events.TypeDispatchFinished, map[string]any{"dispatchId": id, "summary": sum})
	return sum, stopErr
}

// SendOne sends a single tracked message without pacing. A case the user
// already applied to yields ErrAlreadyApplied and nothing is sent.
func (d *Dispatcher) SendOne(ctx context.Context, sender Sender, user User, r Recipient, subject, htmlBody string, att *mailer.Attachment, requestID string) error {
	req := Request{
		User:       user,
		Recipients: []Recipient{r},
		Subject:    subject,
		HTMLBody:   htmlBody,
		Attachment: att,
		Track:      true,
		Kind:       KindSingle,
		RequestID:  requestID,
	}
	if err := d.check(&req); err != nil {
		return err
	}
	r = req.Recipients[0]
	if !d.claim(user.ID, r.CaseNumber) || d.alreadyApplied(ctx, user.ID, r.CaseNumber) {
		metrics.IncrementEmail(KindSingle, "skipped")
		return ErrAlreadyApplied
	}

	sctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	if err := sender.Send(sctx, d.message(req, r.Email, req.Subject, req.HTMLBody)); err != nil {
		d.release(user.ID, r.CaseNumber)
		metrics.IncrementEmail(KindSingle, "failed")
		d.log.Warn("single send failed", zap.String("user", user.Email), zap.String("to", r.Email), zap.Error(err))
		d.track(req, r, req.Subject, req.HTMLBody, store.StatusFailed)
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	metrics.IncrementEmail(KindSingle, "sent")
	d.log.Info("single send", zap.String("user", user.Email), zap.String("to", r.Email), zap.String("case_number", r.CaseNumber))
	d.track(req, r, req.Subject, req.HTMLBody, store.StatusSent)
	return nil
}

// EmailDomain returns the part after the last @, or "".
func EmailDomain(addr string) string {
	i := strings.LastIndexByte(addr, '@')
	if i < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(addr[i+1:]))
}
