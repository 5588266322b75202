package httpapi

import (
	"io"
	"net/http"

	"lcamail-engine/internal/coverletter"
	"lcamail-engine/internal/mailer"
)

type CoverLetterHandler struct {
	Deps
}

// Generate takes a multipart form: jobTitle, companyName, jobDescription and
// an optional resume file.
func (h CoverLetterHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if !h.CoverLetter.Configured() {
		h.writeServiceError(w, r, coverletter.ErrNotConfigured)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, mailer.MaxAttachmentBytes+1<<20)
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_form", err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	in := coverletter.Input{
		JobTitle:       r.FormValue("jobTitle"),
		CompanyName:    r.FormValue("companyName"),
		JobDescription: r.FormValue("jobDescription"),
	}
	if f, fh, err := r.FormFile("resume"); err == nil {
		defer f.Close()
		b, err := io.ReadAll(io.LimitReader(f, mailer.MaxAttachmentBytes))
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, "invalid_form", err.Error())
			return
		}
		in.ResumeName = fh.Filename
		in.Resume = b
	}

	letter, err := h.CoverLetter.Generate(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"coverLetter": letter})
}
