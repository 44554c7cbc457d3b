// internal/common/aws/clients.go
package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"psychosocial-workers/internal/common/config"
)

// Clients holds the notification channels. A channel that is disabled in
// config stays nil.
type Clients struct {
	SES *ses.Client
	SNS *sns.Client
}

// NewClients loads the shared AWS config once and builds only the clients
// whose channel is enabled.
func NewClients(ctx context.Context, cfg config.NotificationConfig) (*Clients, error) {
	out := &Clients{}
	if !cfg.Email.Enabled && !cfg.SMS.Enabled {
		return out, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	endpoint := cfg.AWS.Endpoint
	if cfg.Email.Enabled {
		out.SES = ses.NewFromConfig(awsCfg, func(o *ses.Options) {
			if endpoint != "" {
				o.BaseEndpoint = sdkaws.String(endpoint)
			}
		})
	}
	if cfg.SMS.Enabled {
		out.SNS = sns.NewFromConfig(awsCfg, func(o *sns.Options) {
			if endpoint != "" {
				o.BaseEndpoint = sdkaws.String(endpoint)
			}
		})
	}
	return out, nil
}
