package notification

import (
	"context"
	"errors"
	"testing"

	apperrors "psychosocial-workers/internal/common/errors"
	"psychosocial-workers/internal/common/logger"
	"psychosocial-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

type recorder struct {
	rows []*models.Notification
	err  error
}

func (r *recorder) CreateNotification(ctx context.Context, n *models.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, n)
	return nil
}

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() Config {
	return Config{
		EmailEnabled: true,
		FromEmail:    "noreply@empresa.com.br",
		SMSEnabled:   true,
	}
}

func createTestRequest(level models.RiskLevel) Request {
	return Request{
		CompanyID:            "company-001",
		AssessmentResponseID: "assessment-001",
		TriggerEvent:         models.TriggerActionPlanGenerated,
		RiskLevel:            level,
		Categories:           []string{"Organização do trabalho"},
		ActionPlanID:         "plan-001",
		PlanTitle:            "Plano de ação: Organização do trabalho",
		RecipientEmails:      []string{"rh@empresa.com.br", "sesmt@empresa.com.br"},
		RecipientPhones:      []string{"+5511999990000"},
	}
}

func okSES(count *int) *MockSESService {
	return &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			*count++
			return &ses.SendEmailOutput{}, nil
		},
	}
}

func okSNS(count *int) *MockSNSService {
	return &MockSNSService{
		PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			*count++
			return &sns.PublishOutput{}, nil
		},
	}
}

// ==========================
// Tests
// ==========================

func TestNotify_CriticalSendsEmailAndSMS(t *testing.T) {
	var emails, sms int
	rec := &recorder{}
	svc := NewService(createTestConfig(), rec, okSES(&emails), okSNS(&sms), logger.NewTestLogger(t))

	result, err := svc.Notify(context.Background(), createTestRequest(models.RiskCritical))
	require.NoError(t, err)

	assert.Equal(t, models.NotificationSent, result.Status)
	assert.Equal(t, 2, result.EmailsSent)
	assert.Equal(t, 1, result.SMSSent)
	assert.Equal(t, 2, emails)
	assert.Equal(t, 1, sms)

	require.Len(t, rec.rows, 1)
	row := rec.rows[0]
	assert.Equal(t, result.NotificationID, row.ID)
	assert.Equal(t, []string{ChannelEmail, ChannelSMS}, row.Channels)
	assert.NotNil(t, row.SentAt)
	assert.Contains(t, row.Payload["subject"], "Plano de ação gerado")
}

func TestNotify_HighSkipsSMS(t *testing.T) {
	var emails, sms int
	rec := &recorder{}
	svc := NewService(createTestConfig(), rec, okSES(&emails), okSNS(&sms), logger.NewTestLogger(t))

	result, err := svc.Notify(context.Background(), createTestRequest(models.RiskHigh))
	require.NoError(t, err)

	assert.Equal(t, models.NotificationSent, result.Status)
	assert.Equal(t, 0, sms)
	assert.Equal(t, []string{ChannelEmail}, rec.rows[0].Channels)
}

func TestNotify_DisabledChannels(t *testing.T) {
	rec := &recorder{}
	svc := NewService(Config{}, rec, nil, nil, logger.NewTestLogger(t))

	result, err := svc.Notify(context.Background(), createTestRequest(models.RiskCritical))
	require.NoError(t, err)

	assert.Equal(t, models.NotificationDisabled, result.Status)
	require.Len(t, rec.rows, 1)
	assert.Nil(t, rec.rows[0].SentAt)
}

func TestNotify_DeliveryFailure(t *testing.T) {
	rec := &recorder{}
	sesClient := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	svc := NewService(Config{EmailEnabled: true}, rec, sesClient, nil, logger.NewTestLogger(t))

	result, err := svc.Notify(context.Background(), createTestRequest(models.RiskHigh))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotificationFailed, apperrors.CodeOf(err))
	assert.False(t, apperrors.IsRetryable(err))

	assert.Equal(t, models.NotificationFailed, result.Status)
	require.Len(t, rec.rows, 1)
	assert.Equal(t, models.NotificationFailed, rec.rows[0].Status)
}

func TestNotify_PartialFailureStillSent(t *testing.T) {
	calls := 0
	sesClient := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("bounce")
			}
			return &ses.SendEmailOutput{}, nil
		},
	}
	svc := NewService(Config{EmailEnabled: true}, &recorder{}, sesClient, nil, logger.NewTestLogger(t))

	result, err := svc.Notify(context.Background(), createTestRequest(models.RiskHigh))
	assert.Error(t, err)
	assert.Equal(t, models.NotificationSent, result.Status)
	assert.Equal(t, 1, result.EmailsSent)
}

func TestNotify_UnknownTrigger(t *testing.T) {
	svc := NewService(createTestConfig(), &recorder{}, nil, nil, logger.NewTestLogger(t))

	req := createTestRequest(models.RiskHigh)
	req.TriggerEvent = "unknown"
	_, err := svc.Notify(context.Background(), req)
	assert.Equal(t, apperrors.ErrCodeNotificationFailed, apperrors.CodeOf(err))
}

func TestRenderTemplate(t *testing.T) {
	out := renderTemplate("Olá {{name}}, {{missing}}fim", map[string]interface{}{"name": "RH"})
	assert.Equal(t, "Olá RH, fim", out)
}
