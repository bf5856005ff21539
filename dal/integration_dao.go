package dal

import (
	"log"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	dynamo_configuration "github.com/imposting/publish-core/configuration/dynamo"
	tables "github.com/imposting/publish-core/dal/tables/v1"
)

func CreateIntegration(item tables.Integration) error {
	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		log.Printf("got error marshalling integration item: %s", err)
		return err
	}

	input := &dynamodb.PutItemInput{
		Item:      av,
		TableName: aws.String(dynamo_configuration.TABLE_INTEGRATIONS),
	}
	_, err = svc.PutItem(input)
	if err != nil {
		log.Printf("got error calling PutItem integration item: %s", err)
		return err
	}

	return err
}

// GetIntegration returns the stored credential for (account, platform).
// A zero-value AccountID on the result means none exists.
func GetIntegration(accountId string, platform tables.ChannelName) (tables.Integration, error) {
	result, err := svc.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(dynamo_configuration.TABLE_INTEGRATIONS),
		Key: map[string]*dynamodb.AttributeValue{
			"AccountID": {
				S: aws.String(accountId),
			},
			"Platform": {
				S: aws.String(string(platform)),
			},
		},
	})

	resultItem := tables.Integration{}
	if err != nil {
		log.Printf("got error calling GetItem integration item: %s", err)
		return resultItem, err
	}

	err = dynamodbattribute.UnmarshalMap(result.Item, &resultItem)
	if err != nil {
		log.Printf("error unmarshalling integration item: %s", err)
		return resultItem, err
	}

	return resultItem, err
}

func DeleteIntegration(accountId string, platform tables.ChannelName) error {
	_, err := svc.DeleteItem(&dynamodb.DeleteItemInput{
		TableName: aws.String(dynamo_configuration.TABLE_INTEGRATIONS),
		Key: map[string]*dynamodb.AttributeValue{
			"AccountID": {
				S: aws.String(accountId),
			},
			"Platform": {
				S: aws.String(string(platform)),
			},
		},
	})
	return err
}
