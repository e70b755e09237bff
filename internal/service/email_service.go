package service

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"challengetracker/internal/models"
)

// sesSender is the part of the SES client the email service uses
type sesSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client     sesSender
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	debug      bool
}

// NewEmailService creates a new email service
func NewEmailService(awsRegion, fromEmail, fromName, appBaseURL string, debug bool) (*EmailService, error) {
	// If fromEmail is empty, create a disabled service
	if fromEmail == "" {
		log.Println("Email service disabled: SES_FROM_EMAIL not configured")
		if debug {
			log.Println("[DEBUG] Email service will skip sending all emails")
		}
		return &EmailService{
			enabled: false,
			debug:   debug,
		}, nil
	}

	if debug {
		log.Printf("[DEBUG] Initializing email service with AWS SES")
		log.Printf("[DEBUG] AWS Region: %s", awsRegion)
		log.Printf("[DEBUG] From Email: %s", fromEmail)
		log.Printf("[DEBUG] From Name: %s", fromName)
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(awsRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Printf("Email service enabled: from=%s, region=%s", fromEmail, awsRegion)
	return newEmailServiceWithClient(sesv2.NewFromConfig(cfg), fromEmail, fromName, appBaseURL, debug), nil
}

func newEmailServiceWithClient(client sesSender, fromEmail, fromName, appBaseURL string, debug bool) *EmailService {
	return &EmailService{
		client:     client,
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		enabled:    true,
		debug:      debug,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendDigestEmail sends the day's history entries to the instructors
func (s *EmailService) SendDigestEmail(ctx context.Context, to []string, day string, entries []models.HistoryEntry) error {
	if !s.enabled {
		log.Printf("Skipping email send (service disabled): digest for %s", day)
		return nil
	}
	if len(to) == 0 {
		return nil
	}

	subject := fmt.Sprintf("Challenge progress for %s", day)
	htmlBody, textBody := renderDigest(day, entries, s.appBaseURL)

	if s.debug {
		log.Printf("[DEBUG] Sending digest: subject=%s, to=%v, entries=%d", subject, to, len(entries))
	}
	return s.sendEmail(ctx, to, subject, htmlBody, textBody)
}

func renderDigest(day string, entries []models.HistoryEntry, appBaseURL string) (string, string) {
	var h, t strings.Builder

	h.WriteString(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		table { border-collapse: collapse; width: 100%; }
		th, td { border: 1px solid #ddd; padding: 6px 10px; text-align: left; }
		th { background-color: #f4c514; }
	</style>
</head>
<body>
`)
	fmt.Fprintf(&h, "<h1>Challenge progress for %s</h1>\n", html.EscapeString(day))
	fmt.Fprintf(&t, "Challenge progress for %s\n\n", day)

	if len(entries) == 0 {
		h.WriteString("<p>No challenges were recorded today.</p>\n")
		t.WriteString("No challenges were recorded today.\n")
	} else {
		h.WriteString("<table>\n<tr><th>Student</th><th>Class</th><th>Theme</th><th>Completed</th><th>%</th></tr>\n")
		for _, e := range entries {
			done := strings.Join(e.Challenges, ", ")
			pct := Percent(len(e.Challenges))
			fmt.Fprintf(&h, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%d%%</td></tr>\n",
				html.EscapeString(e.StudentName), html.EscapeString(e.ClassName),
				html.EscapeString(e.WeekTheme), html.EscapeString(done), pct)
			fmt.Fprintf(&t, "- %s (%s, %s): %s [%d%%]\n", e.StudentName, e.ClassName, e.WeekTheme, done, pct)
		}
		h.WriteString("</table>\n")
	}

	if appBaseURL != "" {
		fmt.Fprintf(&h, `<p><a href="%s">Open the dashboard</a></p>`+"\n", html.EscapeString(appBaseURL))
		fmt.Fprintf(&t, "\nOpen the dashboard: %s\n", appBaseURL)
	}
	h.WriteString("</body>\n</html>\n")
	return h.String(), t.String()
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, to []string, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: to,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		if s.debug {
			log.Printf("[DEBUG] SES SendEmail failed: %v", err)
		}
		return fmt.Errorf("failed to send email to %v: %w", to, err)
	}

	if s.debug && result.MessageId != nil {
		log.Printf("[DEBUG] Message ID: %s", *result.MessageId)
	}

	log.Printf("Email sent successfully: to=%v, subject=%s", to, subject)
	return nil
}
