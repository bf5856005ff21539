package dal

import (
	"github.com/aws/aws-sdk-go/service/dynamodb"
	aws_configuration "github.com/imposting/publish-core/configuration"
)

var svc = dynamodb.New(aws_configuration.GetAwsSession())
