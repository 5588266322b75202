package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"lcamail-engine/internal/dispatch"
	"lcamail-engine/internal/store"
)

type ApplicationsHandler struct {
	Deps
}

type trackReq struct {
	CompanyName    string          `json:"companyName"`
	JobTitle       string          `json:"jobTitle"`
	EmployerDomain string          `json:"employerDomain"`
	RecipientEmail string          `json:"recipientEmail"`
	CaseNumber     string          `json:"caseNumber"`
	EmailSubject   string          `json:"emailSubject"`
	EmailBody      string          `json:"emailBody"`
	Status         string          `json:"status"`
	LCAData        json.RawMessage `json:"lcaData,omitempty"`
}

func (h ApplicationsHandler) List(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r.Context())
	apps, err := store.ListApplications(r.Context(), h.DB, c.UserID, queryInt(r, "limit", 0))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"applications": apps,
		"count":        len(apps),
	})
}

// Track records an application the user sent some other way.
func (h ApplicationsHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req trackReq
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	c := claimsFrom(r.Context())
	domain := req.EmployerDomain
	if domain == "" {
		// remembered from an earlier send to the same company
		known, err := store.GetCompanyDomain(r.Context(), h.DB, req.CompanyName)
		if err != nil {
			h.Log.Warn("company domain lookup", zap.String("company", req.CompanyName), zap.Error(err))
		}
		domain = known
	}
	if domain == "" {
		domain = dispatch.EmailDomain(req.RecipientEmail)
	}
	id, err := store.InsertApplication(r.Context(), h.DB, store.Application{
		UserID:         c.UserID,
		UserEmail:      c.Email,
		CompanyName:    req.CompanyName,
		JobTitle:       req.JobTitle,
		EmployerDomain: domain,
		RecipientEmail: req.RecipientEmail,
		CaseNumber:     req.CaseNumber,
		EmailSubject:   req.EmailSubject,
		EmailBody:      req.EmailBody,
		Status:         req.Status,
		SentAt:         time.Now().UTC(),
		LCAData:        req.LCAData,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Application tracked successfully",
		"id":      id,
	})
}
