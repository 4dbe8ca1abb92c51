// Package mail provides an email sending capability backed by Mailgun.
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"net/url"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/odaihq/odai-server/pkg/tools"
)

func init() {
	tools.Register(tools.Definition{
		Name:        "send_email",
		Label:       "Sending Email...",
		Description: "Send an email on the user's behalf.",
		Dangerous:   true,
		Timeout:     20 * time.Second,
		Params: map[string]*schema.ParameterInfo{
			"to": {
				Type:     schema.String,
				Desc:     "Recipient email address",
				Required: true,
			},
			"subject": {
				Type:     schema.String,
				Desc:     "Email subject line",
				Required: true,
			},
			"body": {
				Type:     schema.String,
				Desc:     "Plain-text email body",
				Required: true,
			},
		},
	}, send)
}

type sendArgs struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func send(ctx context.Context, raw json.RawMessage) (string, error) {
	var args sendArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", errors.Wrap(err, "parse arguments")
	}
	if _, err := mail.ParseAddress(args.To); err != nil {
		return "", errors.Wrap(err, "invalid recipient address")
	}
	if args.Subject == "" {
		return "", errors.New("subject is required")
	}

	conf := tools.Conf()
	if conf.MailgunKey == "" || conf.MailgunDomain == "" {
		return "", errors.New("mailgun not configured")
	}
	from := conf.MailFrom
	if from == "" {
		from = "odai@" + conf.MailgunDomain
	}

	form := url.Values{}
	form.Set("from", from)
	form.Set("to", args.To)
	form.Set("subject", args.Subject)
	form.Set("text", args.Body)

	endpoint := fmt.Sprintf("https://api.mailgun.net/v3/%s/messages", conf.MailgunDomain)
	if _, err := tools.PostForm(ctx, endpoint, "api", conf.MailgunKey, form); err != nil {
		return "", err
	}
	return fmt.Sprintf("Email sent to %s with subject %q.", args.To, args.Subject), nil
}
