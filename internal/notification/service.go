// internal/notification/service.go
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "psychosocial-workers/internal/common/errors"
	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Recorder persists notification rows.
type Recorder interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

type Config struct {
	EmailEnabled bool
	FromEmail    string
	SMSEnabled   bool
	SenderID     string
}

// Request describes one notification keyed by company, trigger event and
// assessment.
type Request struct {
	CompanyID            string
	AssessmentResponseID string
	TriggerEvent         string
	RiskLevel            models.RiskLevel
	Categories           []string
	ActionPlanID         string
	PlanTitle            string
	RecipientEmails      []string
	RecipientPhones      []string
}

type Result struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
	EmailsSent     int    `json:"emailsSent"`
	SMSSent        int    `json:"smsSent"`
}

// Service sends email through SES to every recipient and SMS through SNS for
// critico assessments, then records the outcome.
type Service struct {
	config    Config
	recorder  Recorder
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
	now       func() time.Time
}

func NewService(cfg Config, recorder Recorder, sesClient SESService, snsClient SNSService, log logger.Logger) *Service {
	return &Service{
		config:    cfg,
		recorder:  recorder,
		sesClient: sesClient,
		snsClient: snsClient,
		logger:    log.WithFields(map[string]interface{}{"component": "notification"}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Notify never panics on delivery problems; it returns a NotificationFailure
// the caller is expected to log and move past.
func (s *Service) Notify(ctx context.Context, req Request) (*Result, error) {
	tmpl, ok := templates[req.TriggerEvent]
	if !ok {
		return nil, apperrors.NewNotificationError("template", fmt.Errorf("unknown trigger event: %s", req.TriggerEvent))
	}

	data := map[string]interface{}{
		"assessmentResponseId": req.AssessmentResponseID,
		"riskLevel":            levelLabel(req.RiskLevel),
		"categories":           joinCategories(req.Categories),
		"planTitle":            req.PlanTitle,
	}
	subject := renderTemplate(tmpl.subject, data)
	body := renderTemplate(tmpl.body, data)

	emails := s.emailRecipients(req)
	phones := s.smsRecipients(req)

	n := &models.Notification{
		ID:                   uuid.New().String(),
		CompanyID:            req.CompanyID,
		AssessmentResponseID: req.AssessmentResponseID,
		TriggerEvent:         req.TriggerEvent,
		Channels:             []string{},
		Recipients:           []string{},
		Payload: map[string]interface{}{
			"subject":      subject,
			"body":         body,
			"riskLevel":    req.RiskLevel,
			"categories":   req.Categories,
			"actionPlanId": req.ActionPlanID,
		},
		CreatedAt: s.now(),
	}

	result := &Result{NotificationID: n.ID}
	var sendErrs []error

	if len(emails) > 0 {
		n.Channels = append(n.Channels, ChannelEmail)
		for _, to := range emails {
			n.Recipients = append(n.Recipients, to)
			if err := s.sendEmail(ctx, to, subject, body); err != nil {
				s.logger.Error("email send failed", map[string]interface{}{
					"error": err,
					"email": to,
				})
				sendErrs = append(sendErrs, apperrors.NewNotificationError(ChannelEmail, err))
				continue
			}
			result.EmailsSent++
		}
	}

	if len(phones) > 0 {
		n.Channels = append(n.Channels, ChannelSMS)
		for _, to := range phones {
			n.Recipients = append(n.Recipients, to)
			if err := s.sendSMS(ctx, to, body); err != nil {
				s.logger.Error("SMS send failed", map[string]interface{}{
					"error": err,
					"phone": to,
				})
				sendErrs = append(sendErrs, apperrors.NewNotificationError(ChannelSMS, err))
				continue
			}
			result.SMSSent++
		}
	}

	switch {
	case len(n.Channels) == 0:
		n.Status = models.NotificationDisabled
	case result.EmailsSent+result.SMSSent > 0:
		n.Status = models.NotificationSent
		sentAt := s.now()
		n.SentAt = &sentAt
	default:
		n.Status = models.NotificationFailed
	}
	result.Status = n.Status

	if err := s.recorder.CreateNotification(ctx, n); err != nil {
		sendErrs = append(sendErrs, apperrors.NewNotificationError("store", err))
	}

	s.logger.Info("notification processed", map[string]interface{}{
		"notificationId":       n.ID,
		"assessmentResponseId": req.AssessmentResponseID,
		"triggerEvent":         req.TriggerEvent,
		"status":               n.Status,
		"emailsSent":           result.EmailsSent,
		"smsSent":              result.SMSSent,
	})

	if len(sendErrs) > 0 {
		return result, errors.Join(sendErrs...)
	}
	return result, nil
}

func (s *Service) emailRecipients(req Request) []string {
	if !s.config.EmailEnabled || s.sesClient == nil {
		return nil
	}
	return nonEmpty(req.RecipientEmails)
}

// SMS only goes out for critico.
func (s *Service) smsRecipients(req Request) []string {
	if !s.config.SMSEnabled || s.snsClient == nil || req.RiskLevel != models.RiskCritical {
		return nil
	}
	return nonEmpty(req.RecipientPhones)
}

func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := s.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(s.config.FromEmail),
	})
	return err
}

func (s *Service) sendSMS(ctx context.Context, to, message string) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	}
	if s.config.SenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.config.SenderID),
			},
		}
	}
	_, err := s.snsClient.Publish(ctx, input)
	return err
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
