package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog"

	appConfig "github.com/kendall-kelly/eventflow-api/config"
)

// EmailSender delivers a templated email. It reports whether the provider
// accepted the message; it never returns an error.
type EmailSender interface {
	Send(ctx context.Context, template, recipient string, data map[string]interface{}) bool
}

// SESEmailSender sends templated emails through Amazon SES.
type SESEmailSender struct {
	client *sesv2.Client
	from   string
	log    zerolog.Logger
}

// NewSESEmailSender builds an SES client from the application config.
func NewSESEmailSender(ctx context.Context, cfg *appConfig.Config, log zerolog.Logger) (*SESEmailSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SESEmailSender{
		client: sesv2.NewFromConfig(awsCfg),
		from:   cfg.EmailFrom,
		log:    log,
	}, nil
}

// Send renders template server-side with data as the template variables.
func (s *SESEmailSender) Send(ctx context.Context, template, recipient string, data map[string]interface{}) bool {
	payload, err := json.Marshal(data)
	if err != nil {
		s.log.Warn().Err(err).Str("template", template).Msg("email: failed to encode template data")
		return false
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{recipient}},
		Content: &types.EmailContent{
			Template: &types.Template{
				TemplateName: aws.String(template),
				TemplateData: aws.String(string(payload)),
			},
		},
	})
	if err != nil {
		s.log.Warn().Err(err).
			Str("template", template).
			Str("recipient", recipient).
			Msg("email: SES send failed")
		return false
	}

	s.log.Debug().Str("template", template).Str("message_id", aws.ToString(out.MessageId)).Msg("email: sent")
	return true
}

// LogEmailSender only logs outgoing emails. Used in development.
type LogEmailSender struct {
	log zerolog.Logger
}

func NewLogEmailSender(log zerolog.Logger) *LogEmailSender {
	return &LogEmailSender{log: log}
}

func (s *LogEmailSender) Send(_ context.Context, template, recipient string, data map[string]interface{}) bool {
	s.log.Info().
		Str("template", template).
		Str("recipient", recipient).
		Interface("data", data).
		Msg("email: would send")
	return true
}
