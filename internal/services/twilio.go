package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioAPI is the subset of the Twilio REST API used here.
type TwilioAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
	CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error)
}

// NewTwilioAPI builds a REST client. It returns nil when credentials are missing.
func NewTwilioAPI(accountSID, authToken string) TwilioAPI {
	if accountSID == "" || authToken == "" {
		return nil
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return client.Api
}

// NormalizePhone strips the formatting characters allowed in stored numbers
// so Twilio receives digits with an optional leading +.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TwilioMessenger sends SMS through Twilio.
type TwilioMessenger struct {
	api  TwilioAPI
	from string
}

func NewTwilioMessenger(api TwilioAPI, from string) *TwilioMessenger {
	return &TwilioMessenger{api: api, from: from}
}

func (m *TwilioMessenger) Available(ctx context.Context) bool {
	return m.api != nil && m.from != ""
}

// Send texts every recipient. Failures are collected, so one bad number does
// not stop the remaining sends.
func (m *TwilioMessenger) Send(ctx context.Context, recipients []string, body string) error {
	if !m.Available(ctx) {
		return errors.New("twilio messaging not configured")
	}

	var errs []error
	for _, to := range recipients {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := m.sendOne(NormalizePhone(to), body); err != nil {
			errs = append(errs, fmt.Errorf("failed to send SMS to %s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

func (m *TwilioMessenger) sendOne(to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(m.from)
	params.SetBody(body)

	resp, err := m.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio SMS error: %w", err)
	}

	if resp != nil && resp.ErrorCode != nil {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error code: %d, message: %s", *resp.ErrorCode, msg)
	}

	return nil
}

// DefaultCallScript is spoken when the call is answered.
const DefaultCallScript = "This is an automated emergency call placed by the SafeCall app. The caller may be unable to speak."

// TwilioDialer places outbound voice calls for tel: URIs.
type TwilioDialer struct {
	api    TwilioAPI
	from   string
	script string
}

func NewTwilioDialer(api TwilioAPI, from, script string) *TwilioDialer {
	if script == "" {
		script = DefaultCallScript
	}
	return &TwilioDialer{api: api, from: from, script: script}
}

func parseTelURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme != "tel" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	number := NormalizePhone(u.Opaque)
	if strings.TrimPrefix(number, "+") == "" {
		return "", fmt.Errorf("no number in %q", uri)
	}
	return number, nil
}

func (d *TwilioDialer) CanOpen(ctx context.Context, uri string) (bool, error) {
	if d.api == nil || d.from == "" {
		return false, nil
	}
	if _, err := parseTelURI(uri); err != nil {
		return false, nil
	}
	return true, nil
}

func (d *TwilioDialer) Open(ctx context.Context, uri string) error {
	number, err := parseTelURI(uri)
	if err != nil {
		return err
	}
	if d.api == nil {
		return errors.New("twilio voice not configured")
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(number)
	params.SetFrom(d.from)
	params.SetTwiml(fmt.Sprintf("<Response><Say>%s</Say></Response>", html.EscapeString(d.script)))

	if _, err := d.api.CreateCall(params); err != nil {
		return fmt.Errorf("twilio call error: %w", err)
	}
	return nil
}
