package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{FromEmail: "test@example.com"}, nil)
	assert.Nil(t, sender)
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "test@example.com"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, defaultFromName, sender.from.Name)
	assert.Equal(t, "test@example.com", sender.from.Address)
}

func TestBuildSendGridMailTagsAppointment(t *testing.T) {
	id := uuid.New()
	m := buildSendGridMail(mail.NewEmail("Clinic", "citas@clinic.test"), EmailMessage{
		Kind:          KindCancelled,
		AppointmentID: id,
		To:            "ana@example.com",
		ToName:        "Ana Mora",
		Subject:       "Appointment cancelled",
		Body:          "text",
	})

	assert.Equal(t, "Appointment cancelled", m.Subject)
	assert.Equal(t, []string{"appointment_cancelled"}, m.Categories)
	require.Len(t, m.Personalizations, 1)
	require.Len(t, m.Personalizations[0].To, 1)
	assert.Equal(t, "ana@example.com", m.Personalizations[0].To[0].Address)
	assert.Equal(t, id.String(), m.Personalizations[0].CustomArgs["appointment_id"])
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}

func TestMaskAddress(t *testing.T) {
	assert.Equal(t, "a***@example.com", maskAddress("ana@example.com"))
	assert.Equal(t, "***", maskAddress("not-an-address"))
	assert.Equal(t, "***", maskAddress("@example.com"))
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	err := sender.Send(context.Background(), EmailMessage{To: "a@example.com", Subject: "s", Body: "b"})
	assert.Error(t, err)
}

func TestStubEmailSender_Send(t *testing.T) {
	sender := NewStubEmailSender(nil)
	assert.NoError(t, sender.Send(context.Background(), EmailMessage{To: "a@example.com"}))
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	api := &fakeSES{}
	sender := newSESSender(api, SESConfig{FromEmail: "citas@clinic.test"}, nil)

	id := uuid.New()
	err := sender.Send(context.Background(), EmailMessage{
		Kind: KindScheduled, AppointmentID: id, To: "ana@example.com", Subject: "Hello", Body: "text",
	})
	require.NoError(t, err)

	require.NotNil(t, api.input)
	assert.Equal(t, "IPS Medical Integral <citas@clinic.test>", aws.ToString(api.input.FromEmailAddress))
	assert.Equal(t, []string{"ana@example.com"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "text", aws.ToString(api.input.Content.Simple.Body.Text.Data))
	assert.Nil(t, api.input.Content.Simple.Body.Html)
	assert.Equal(t, []types.MessageTag{
		{Name: aws.String("kind"), Value: aws.String("appointment_scheduled")},
		{Name: aws.String("appointment_id"), Value: aws.String(id.String())},
	}, api.input.EmailTags)
}

func TestSESSender_SendError(t *testing.T) {
	sender := newSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{}, nil)
	err := sender.Send(context.Background(), EmailMessage{To: "ana@example.com"})
	assert.ErrorContains(t, err, "throttled")
}

func TestNewSESSender_NilClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
}

func TestNewEmailSender(t *testing.T) {
	ctx := context.Background()

	s, err := NewEmailSender(ctx, config.Config{EmailProvider: "stub"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &StubEmailSender{}, s)

	s, err = NewEmailSender(ctx, config.Config{EmailProvider: "sendgrid", SendGridAPIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SendGridSender{}, s)

	_, err = NewEmailSender(ctx, config.Config{EmailProvider: "sendgrid"}, nil)
	assert.Error(t, err)

	_, err = NewEmailSender(ctx, config.Config{EmailProvider: "pigeon"}, nil)
	assert.Error(t, err)
}
