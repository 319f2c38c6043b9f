package ses

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/mailfan/massmail/internal/core"
)

// Transport implements the core.Transport interface for Amazon SES. The
// SES client is HTTP-backed and safe for concurrent use, so Connect hands
// every worker a lightweight handle on the same client.
type Transport struct {
	client *ses.Client
	config core.Settings
}

// New creates a new Amazon SES transport.
func New(settings core.Settings) (core.Transport, error) {
	region := settings.Get("region")
	if region == "" {
		return nil, core.NewValidationError("region", "AWS region is required")
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, core.NewTransportError("aws_ses", "config", "failed to load AWS config: "+err.Error())
	}

	// Override with explicit credentials if provided
	if accessKey := settings.Get("access_key"); accessKey != "" {
		secretKey := settings.Get("secret_key")
		if secretKey == "" {
			return nil, core.NewValidationError("secret_key", "secret key is required when access key is provided")
		}

		cfg.Credentials = aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     accessKey,
				SecretAccessKey: secretKey,
				SessionToken:    settings.Get("session_token"),
			}, nil
		})
	}

	return &Transport{
		client: ses.NewFromConfig(cfg),
		config: settings,
	}, nil
}

// Connect returns a sending handle on the shared client. There is no
// per-worker session to establish for an HTTP API.
func (t *Transport) Connect(ctx context.Context) (core.Conn, error) {
	return &Conn{client: t.client, config: t.config}, nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "aws_ses"
}

// Conn sends envelopes through the SES SendEmail API.
type Conn struct {
	client *ses.Client
	config core.Settings
}

// Send submits one envelope.
func (c *Conn) Send(ctx context.Context, env *core.Envelope) error {
	input := &ses.SendEmailInput{
		Source: aws.String(env.From),
		Destination: &types.Destination{
			ToAddresses: []string{env.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(env.Subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(env.Body),
				},
			},
		},
	}

	if env.ReplyTo != "" {
		input.ReplyToAddresses = []string{env.ReplyTo}
	}

	if configSet := c.config.Get("configuration_set"); configSet != "" {
		input.ConfigurationSetName = aws.String(configSet)
	}

	if _, err := c.client.SendEmail(ctx, input); err != nil {
		return core.NewTransportError("aws_ses", "send", "failed to send email: "+err.Error())
	}

	return nil
}

// Close is a no-op; the underlying client is shared and stateless.
func (c *Conn) Close() error {
	return nil
}
