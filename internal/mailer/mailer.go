// Package mailer delivers email copies of in-app mails through Amazon SES.
//
// Only the weekly summary goes out by email, and only to users who opted
// in with "subscribe". The inbox copy is always the source of truth; email
// delivery is best effort.
package mailer

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// Message is one outgoing email. HTML is required; Text is derived from it
// when empty.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Enabled() bool
}

// SendEmailAPI is the slice of the SES v2 client used here.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New returns an SES mailer, or a disabled one when fromEmail is empty so
// local runs need no AWS credentials.
func New(ctx context.Context, region, fromEmail, fromName string, logger *slog.Logger) (Mailer, error) {
	if fromEmail == "" {
		logger.Info("mailer: disabled, SES_FROM_EMAIL not configured")
		return Disabled{logger: logger}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("mailer: loading AWS config: %w", err)
	}

	logger.Info("mailer: SES enabled",
		slog.String("from", fromEmail),
		slog.String("region", region),
	)
	return NewSES(sesv2.NewFromConfig(cfg), fromEmail, fromName, logger), nil
}

// SESMailer sends through SES v2.
type SESMailer struct {
	client SendEmailAPI
	from   string
	logger *slog.Logger
}

func NewSES(client SendEmailAPI, fromEmail, fromName string, logger *slog.Logger) *SESMailer {
	from := fromEmail
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromEmail)
	}
	return &SESMailer{client: client, from: from, logger: logger}
}

func (m *SESMailer) Enabled() bool { return true }

func (m *SESMailer) Send(ctx context.Context, msg Message) error {
	text := msg.Text
	if text == "" {
		text = PlainText(msg.HTML)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(msg.HTML),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(text),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("mailer: sending to %s: %w", msg.To, err)
	}

	m.logger.Info("mailer: email sent",
		slog.String("to", msg.To),
		slog.String("messageID", aws.ToString(out.MessageId)),
	)
	return nil
}

// Disabled drops every message.
type Disabled struct {
	logger *slog.Logger
}

func (Disabled) Enabled() bool { return false }

func (d Disabled) Send(ctx context.Context, msg Message) error {
	if d.logger != nil {
		d.logger.Debug("mailer: skipping send, service disabled", slog.String("to", msg.To))
	}
	return nil
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	blankPattern = regexp.MustCompile(`\n\s*\n+`)
)

// PlainText strips tags from an HTML body for the text/plain part.
func PlainText(body string) string {
	s := strings.ReplaceAll(body, "</p>", "</p>\n")
	s = strings.ReplaceAll(s, "<br>", "\n")
	s = strings.ReplaceAll(s, "</li>", "</li>\n")
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = blankPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
