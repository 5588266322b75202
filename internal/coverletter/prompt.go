package coverletter

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are an expert career coach and cold email specialist. " +
	"Create compelling, professional cover letters that get responses."

const userPrompt = `Create a professional, compelling cold email/cover letter for the following:

Position: %s
Company: %s
%s
Resume Summary: %s

Guidelines:
- Write in HTML format with proper styling
- Be concise (200-300 words)
- Highlight relevant skills and experience
- Show genuine interest in the company
- Include a strong call-to-action
- Professional but personable tone
- Use proper email etiquette

Format the output as a complete HTML email body with inline CSS styling.`

func buildPrompt(in Input, resume string) string {
	desc := ""
	if d := strings.TrimSpace(in.JobDescription); d != "" {
		desc = "Job Description: " + d + "\n"
	}
	return fmt.Sprintf(userPrompt,
		strings.TrimSpace(in.JobTitle),
		strings.TrimSpace(in.CompanyName),
		desc,
		resume,
	)
}
