package orchestration

import (
	"log"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
	env "github.com/imposting/publish-core/configuration"
)

var sns_svc = sns.New(env.GetAwsSession())

// SnsNotifier fans operator alerts out to the configured SNS topic.
// Alert delivery is best effort; a failed publish is logged and dropped
// so it can never change a publish outcome.
type SnsNotifier struct{}

func (SnsNotifier) Notify(channel string, message string) {
	topicArn := env.GetEnvConfigs().SNSAlertTopicArn
	if topicArn == "" {
		log.Printf("alert topic not configured, dropping %s alert: %s", channel, message)
		return
	}
	_, err := sns_svc.Publish(&sns.PublishInput{
		TopicArn: aws.String(topicArn),
		Subject:  aws.String(channel),
		Message:  aws.String(message),
	})
	if err != nil {
		log.Printf("error publishing %s alert to sns: %s", channel, err)
	}
}
