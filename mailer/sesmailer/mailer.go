// Package sesmailer delivers signin emails through Amazon SES.
package sesmailer

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	goerrors "github.com/goliatone/go-errors"

	"github.com/prunklabs/go-emailauth"
)

// Mailer sends HTML email from a fixed, SES-verified sender address.
type Mailer struct {
	client *ses.Client
	sender string
}

var _ emailauth.Mailer = (*Mailer)(nil)

func New(client *ses.Client, sender string) *Mailer {
	return &Mailer{
		client: client,
		sender: sender,
	}
}

// NewFromEnv builds a client from the ambient AWS configuration.
func NewFromEnv(ctx context.Context, sender string) (*Mailer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(os.Getenv("AWS_REGION")),
	)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load AWS configuration")
	}

	return New(ses.NewFromConfig(cfg), sender), nil
}

func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(m.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
			},
		},
	})

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send email").
			WithMetadata(map[string]any{
				"to": to,
			})
	}

	return nil
}
