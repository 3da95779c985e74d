package services

import (
	"bytes"
	"fmt"
	"html/template"

	"veriboard/internal/models"
)

type codeTemplate struct {
	subject string
	heading string
	intro   string
}

var codeTemplates = map[models.OTPPurpose]codeTemplate{
	models.PurposeRegister: {
		subject: "Verify your VeriBoard email",
		heading: "Confirm your email address",
		intro:   "Use this code to finish creating your VeriBoard account.",
	},
	models.PurposeLogin2FA: {
		subject: "Your VeriBoard sign-in code",
		heading: "Sign-in verification",
		intro:   "Use this code to complete your sign-in.",
	},
	models.PurposeResetPassword: {
		subject: "Reset your VeriBoard password",
		heading: "Password reset requested",
		intro:   "Use this code to reset your password. If you did not request this, ignore this email.",
	},
}

var codeEmailHTML = template.Must(template.New("code").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>{{.Heading}}</h2>
  <p>{{.Intro}}</p>
  <p style="font-size: 28px; letter-spacing: 6px;"><strong>{{.Code}}</strong></p>
  <p>The code expires in {{.TTLMinutes}} minutes and can be used once.</p>
  <p>VeriBoard</p>
</body>
</html>`))

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

func renderCodeEmail(to, code string, purpose models.OTPPurpose, ttlMinutes int) (*Message, error) {
	tpl, ok := codeTemplates[purpose]
	if !ok {
		return nil, fmt.Errorf("no template for purpose %q", purpose)
	}

	var buf bytes.Buffer
	err := codeEmailHTML.Execute(&buf, struct {
		Heading    string
		Intro      string
		Code       string
		TTLMinutes int
	}{tpl.heading, tpl.intro, code, ttlMinutes})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	text := fmt.Sprintf("%s\n\n%s\n\nCode: %s\n\nThe code expires in %d minutes and can be used once.\n",
		tpl.heading, tpl.intro, code, ttlMinutes)

	return &Message{To: to, Subject: tpl.subject, HTML: buf.String(), Text: text}, nil
}
