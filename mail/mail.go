// Package mail renders and dispatches the verification email over SMTP.
package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"gopkg.in/gomail.v2"
)

const defaultSubject = "Your login link"

const defaultTextTemplate = `Hello,

Use the link below to sign in. It can be used once and expires in {{.Minutes}} minutes.

{{.VerifyURL}}

If you did not request this email, you can safely ignore it.
`

const defaultHTMLTemplate = `<p>Hello,</p>
<p>Use the link below to sign in. It can be used once and expires in {{.Minutes}} minutes.</p>
<p><a href="{{.VerifyURL}}">{{.VerifyURL}}</a></p>
<p>If you did not request this email, you can safely ignore it.</p>
`

// Config holds the SMTP transport settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

// linkContext is the template context for the login email.
type linkContext struct {
	VerifyURL  string
	ExpiryDate time.Time
	Minutes    int
}

// Dispatcher implements domain.Notifier over gomail.
type Dispatcher struct {
	dialer  *gomail.Dialer
	from    string
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

func NewDispatcher(cfg Config) *Dispatcher {
	subject := cfg.Subject
	if subject == "" {
		subject = defaultSubject
	}
	return &Dispatcher{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		subject: subject,
		text:    texttemplate.Must(texttemplate.New("text").Parse(defaultTextTemplate)),
		html:    htmltemplate.Must(htmltemplate.New("html").Parse(defaultHTMLTemplate)),
	}
}

// SetTemplates replaces the default bodies. Both templates receive
// {{.VerifyURL}}, {{.ExpiryDate}}, and {{.Minutes}}.
func (d *Dispatcher) SetTemplates(text, html string) error {
	tt, err := texttemplate.New("text").Parse(text)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}
	ht, err := htmltemplate.New("html").Parse(html)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}
	d.text, d.html = tt, ht
	return nil
}

// SendLoginLink renders both bodies and sends the message. The context
// parameter is accepted for interface fit; gomail's dial-and-send has no
// cancellation hook.
func (d *Dispatcher) SendLoginLink(_ context.Context, to, verifyURL string, expiry time.Time) error {
	textBody, htmlBody, err := d.render(verifyURL, expiry)
	if err != nil {
		return err
	}

	return d.Send(to, d.subject, textBody, htmlBody)
}

// Send dispatches a single multipart message.
func (d *Dispatcher) Send(to, subject, textBody, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	if err := d.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send login email: %w", err)
	}
	return nil
}

func (d *Dispatcher) render(verifyURL string, expiry time.Time) (string, string, error) {
	lc := linkContext{
		VerifyURL:  verifyURL,
		ExpiryDate: expiry,
		Minutes:    int(time.Until(expiry).Round(time.Minute) / time.Minute),
	}

	var textBuf, htmlBuf bytes.Buffer
	if err := d.text.Execute(&textBuf, lc); err != nil {
		return "", "", fmt.Errorf("render text body: %w", err)
	}
	if err := d.html.Execute(&htmlBuf, lc); err != nil {
		return "", "", fmt.Errorf("render html body: %w", err)
	}
	return textBuf.String(), htmlBuf.String(), nil
}
