package pub

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const (
	SNSTopicEnvKey    = "SNS_TOPIC_ARN"
	SNSEndpointEnvKey = "SNS_ENDPOINT"
)

type snsPub struct{ cli *sns.Client }

func NewSNS(c *sns.Client) *snsPub { return &snsPub{cli: c} }

// PublishRaw publishes payload as a JSON message.
func (s *snsPub) PublishRaw(ctx context.Context, arn string, payload []byte) error {
	_, err := s.cli.Publish(ctx, &sns.PublishInput{
		TopicArn: &arn,
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]snsTypes.MessageAttributeValue{
			"content-type": {DataType: aws.String("String"), StringValue: aws.String("application/json")},
		},
	})
	return err
}

// SNSClientFromEnv builds an SNS client. SNS_ENDPOINT points it at a local emulator with
// static credentials.
func SNSClientFromEnv(ctx context.Context) (*sns.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := os.Getenv(SNSEndpointEnvKey)
	return sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint == "" {
			return
		}
		o.BaseEndpoint = aws.String(endpoint)
		if o.Region == "" {
			o.Region = "us-east-1"
		}
		o.Credentials = credentials.NewStaticCredentialsProvider("x", "x", "")
	}), nil
}
