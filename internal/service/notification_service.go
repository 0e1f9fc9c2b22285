package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"brightsteps/internal/logger"
	"brightsteps/internal/models"
)

// emailSender is the part of the SES client we use
type emailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// NotificationService emails parents via Amazon SES
type NotificationService struct {
	client     emailSender
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	log        *logger.Logger
}

// NewNotificationService creates a notification service. An empty fromEmail
// yields a disabled service that skips every send.
func NewNotificationService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string, log *logger.Logger) (*NotificationService, error) {
	if fromEmail == "" {
		log.Info("Email notifications disabled: SES_FROM_EMAIL not configured")
		return &NotificationService{enabled: false, log: log}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("Email notifications enabled", "from", fromEmail, "region", awsRegion)
	return newNotificationService(sesv2.NewFromConfig(cfg), fromEmail, fromName, appBaseURL, log), nil
}

func newNotificationService(client emailSender, fromEmail, fromName, appBaseURL string, log *logger.Logger) *NotificationService {
	return &NotificationService{
		client:     client,
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		enabled:    true,
		log:        log,
	}
}

// IsEnabled returns whether the notification service is enabled
func (s *NotificationService) IsEnabled() bool {
	return s.enabled
}

// NotifyRewardsUnlocked tells the parent which rewards their child just earned
func (s *NotificationService) NotifyRewardsUnlocked(ctx context.Context, child models.Child, rewards []models.RewardDefinition) error {
	if len(rewards) == 0 {
		return nil
	}
	if !s.enabled {
		s.log.Debug("Skipping reward email (service disabled)", "child_id", child.ID, "rewards", len(rewards))
		return nil
	}
	if child.ParentEmail == "" {
		s.log.Debug("Skipping reward email (no parent email)", "child_id", child.ID)
		return nil
	}

	subject, htmlBody, textBody := s.rewardEmail(child, rewards)
	return s.sendEmail(ctx, child.ParentEmail, subject, htmlBody, textBody)
}

func (s *NotificationService) rewardEmail(child models.Child, rewards []models.RewardDefinition) (subject, htmlBody, textBody string) {
	if len(rewards) == 1 {
		subject = fmt.Sprintf("%s earned a new reward: %s", child.Name, rewards[0].Title)
	} else {
		subject = fmt.Sprintf("%s earned %d new rewards", child.Name, len(rewards))
	}
	progressLink := fmt.Sprintf("%s/children/%d", s.appBaseURL, child.ID)

	var items, lines strings.Builder
	for _, r := range rewards {
		fmt.Fprintf(&items, "\t\t\t\t<li><strong>%s</strong>: %s</li>\n", html.EscapeString(r.Title), html.EscapeString(r.Description))
		fmt.Fprintf(&lines, "- %s: %s\n", r.Title, r.Description)
	}

	htmlBody = fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #f5a623; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.button { display: inline-block; padding: 12px 30px; background-color: #f5a623; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>New Reward Unlocked!</h1>
		</div>
		<div class="content">
			<p>Great news! %s just earned:</p>
			<ul>
%s			</ul>
			<p style="text-align: center;">
				<a href="%s" class="button">See Their Progress</a>
			</p>
		</div>
		<div class="footer">
			<p>This is an automated email from BrightSteps. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, html.EscapeString(child.Name), items.String(), progressLink)

	textBody = fmt.Sprintf(`Great news! %s just earned:

%s
See their progress: %s

---
This is an automated email from BrightSteps. Please do not reply.
`, child.Name, lines.String(), progressLink)

	return subject, htmlBody, textBody
}

// sendEmail sends an email using Amazon SES
func (s *NotificationService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
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
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	messageID := ""
	if result != nil && result.MessageId != nil {
		messageID = *result.MessageId
	}
	s.log.Info("Email sent", "to", toEmail, "subject", subject, "message_id", messageID)
	return nil
}
