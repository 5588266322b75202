package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"lcamail-engine/internal/dispatch"
	"lcamail-engine/internal/mailer"
)

type SendHandler struct {
	Deps
}

type singleSendReq struct {
	To           string          `json:"to"`
	Subject      string          `json:"subject"`
	HTMLBody     string          `json:"htmlBody"`
	CompanyName  string          `json:"companyName"`
	JobTitle     string          `json:"jobTitle"`
	CaseNumber   string          `json:"caseNumber"`
	LCAData      json.RawMessage `json:"lcaData,omitempty"`
	ResumeBase64 string          `json:"resumeBase64,omitempty"`
	ResumeName   string          `json:"resumeName,omitempty"`
}

type bulkSendReq struct {
	Recipients   []dispatch.Recipient `json:"recipients"`
	Subject      string               `json:"subject"`
	HTMLBody     string               `json:"htmlBody"`
	ResumeBase64 string               `json:"resumeBase64,omitempty"`
	ResumeName   string               `json:"resumeName,omitempty"`
}

type testSendReq struct {
	Recipients       []string `json:"recipients"`
	Subject          string   `json:"subject"`
	HTMLBody         string   `json:"htmlBody"`
	AttachmentBase64 string   `json:"attachmentBase64,omitempty"`
	AttachmentName   string   `json:"attachmentName,omitempty"`
}

type alreadyAppliedResp struct {
	APIError
	AlreadyApplied bool `json:"alreadyApplied"`
}

func (h SendHandler) user(r *http.Request) dispatch.User {
	c := claimsFrom(r.Context())
	return dispatch.User{ID: c.UserID, Email: c.Email}
}

// One sends a single tracked message (no pacing).
func (h SendHandler) One(w http.ResponseWriter, r *http.Request) {
	var req singleSendReq
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	att, err := mailer.DecodeAttachment(req.ResumeBase64, req.ResumeName)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	user := h.user(r)
	sender, err := h.Senders(h.config(), user.Email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	rcpts := []dispatch.Recipient{{
		Email:       req.To,
		CompanyName: req.CompanyName,
		JobTitle:    req.JobTitle,
		CaseNumber:  req.CaseNumber,
		LCAData:     req.LCAData,
	}}
	h.enrich(r, rcpts)
	rcpt := rcpts[0]

	err = h.Dispatcher.SendOne(r.Context(), sender, user, rcpt, req.Subject, req.HTMLBody, att, RequestIDFrom(r.Context()))
	if errors.Is(err, dispatch.ErrAlreadyApplied) {
		WriteJSON(w, http.StatusConflict, alreadyAppliedResp{
			APIError:       newAPIError(r, "already_applied", "You have already applied to this position"),
			AlreadyApplied: true,
		})
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"message": "Email sent and tracked successfully"})
}

// Bulk runs a paced, personalized, tracked dispatch and answers with the
// summary once every recipient has been processed.
func (h SendHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req bulkSendReq
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	att, err := mailer.DecodeAttachment(req.ResumeBase64, req.ResumeName)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.enrich(r, req.Recipients)

	h.dispatch(w, r, dispatch.Request{
		Recipients:  req.Recipients,
		Subject:     req.Subject,
		HTMLBody:    req.HTMLBody,
		Attachment:  att,
		Track:       true,
		Personalize: true,
		Kind:        dispatch.KindBulk,
	}, "Bulk email sending completed")
}

// Test sends the message verbatim to a plain address list. Nothing is
// tracked.
func (h SendHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req testSendReq
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	att, err := mailer.DecodeAttachment(req.AttachmentBase64, req.AttachmentName)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	rcpts := make([]dispatch.Recipient, 0, len(req.Recipients))
	for _, e := range req.Recipients {
		rcpts = append(rcpts, dispatch.Recipient{Email: e})
	}

	h.dispatch(w, r, dispatch.Request{
		Recipients: rcpts,
		Subject:    req.Subject,
		HTMLBody:   req.HTMLBody,
		Attachment: att,
		Kind:       dispatch.KindTest,
	}, "Test email sending completed")
}

func (h SendHandler) dispatch(w http.ResponseWriter, r *http.Request, req dispatch.Request, done string) {
	req.User = h.user(r)
	req.RequestID = RequestIDFrom(r.Context())

	sender, err := h.Senders(h.config(), req.User.Email)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	sum, err := h.Dispatcher.SendBulk(r.Context(), sender, req)
	if sum == nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err != nil {
		// cancelled: report what was done
		h.Log.Warn("dispatch stopped early",
			zap.String("request_id", req.RequestID),
			zap.Int("sent", sum.Sent),
			zap.Int("failed", sum.Failed),
			zap.Error(err),
		)
		done = "Email sending cancelled"
	}
	WriteJSON(w, http.StatusOK, map[string]any{"message": done, "results": sum})
}

// enrich attaches the loaded record as the tracking snapshot for recipients
// the client sent without one.
func (h SendHandler) enrich(r *http.Request, rcpts []dispatch.Recipient) {
	if h.Dataset == nil || !h.Dataset.Loaded() {
		return
	}
	for i := range rcpts {
		cn := strings.TrimSpace(rcpts[i].CaseNumber)
		if len(rcpts[i].LCAData) > 0 || cn == "" {
			continue
		}
		rec, ok, err := h.Dataset.Lookup(r.Context(), cn)
		if err != nil || !ok {
			continue
		}
		if b, err := json.Marshal(rec); err == nil {
			rcpts[i].LCAData = b
		}
	}
}
