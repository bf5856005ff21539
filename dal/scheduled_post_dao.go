package dal

import (
	"log"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	dynamo_configuration "github.com/imposting/publish-core/configuration/dynamo"
	tables "github.com/imposting/publish-core/dal/tables/v1"
)

func CreateScheduledPost(item tables.ScheduledPost) error {
	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		log.Printf("correlationID: %s got error marshalling scheduled post item: %s", item.PostID, err)
		return err
	}

	input := &dynamodb.PutItemInput{
		Item:      av,
		TableName: aws.String(dynamo_configuration.TABLE_SCHEDULED_POSTS),
	}
	_, err = svc.PutItem(input)
	if err != nil {
		log.Printf("correlationID: %s got error calling PutItem scheduled post: %s", item.PostID, err)
		return err
	}

	return err
}

// SaveScheduledPost overwrites the full attempt row. Callers serialize
// writes per row; the orchestrator is the single writer during a pass.
func SaveScheduledPost(item tables.ScheduledPost) error {
	return CreateScheduledPost(item)
}

func GetScheduledPost(postId string) (tables.ScheduledPost, error) {
	result, err := svc.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(dynamo_configuration.TABLE_SCHEDULED_POSTS),
		Key: map[string]*dynamodb.AttributeValue{
			"PostID": {
				S: aws.String(postId),
			},
		},
	})

	resultItem := tables.ScheduledPost{}
	if err != nil {
		log.Printf("correlationID: %s got error calling GetItem scheduled post: %s", postId, err)
		return resultItem, err
	}

	err = dynamodbattribute.UnmarshalMap(result.Item, &resultItem)
	if err != nil {
		log.Printf("correlationID: %s error unmarshalling scheduled post item: %s", postId, err)
		return resultItem, err
	}

	return resultItem, err
}

func DeleteScheduledPost(postId string) error {
	_, err := svc.DeleteItem(&dynamodb.DeleteItemInput{
		TableName: aws.String(dynamo_configuration.TABLE_SCHEDULED_POSTS),
		Key: map[string]*dynamodb.AttributeValue{
			"PostID": {
				S: aws.String(postId),
			},
		},
	})
	return err
}

// QueryDuePosts returns attempt rows whose scheduled instant has passed.
// Rows with no enabled platform are already closed out and filtered
// client-side after unmarshalling.
func QueryDuePosts(nowEpochMilli int64) ([]tables.ScheduledPost, error) {
	result := []tables.ScheduledPost{}
	input := &dynamodb.ScanInput{
		TableName:        aws.String(dynamo_configuration.TABLE_SCHEDULED_POSTS),
		FilterExpression: aws.String("ScheduledAtEpochMilli <= :now"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":now": {
				N: aws.String(strconv.FormatInt(nowEpochMilli, 10)),
			},
		},
	}

	err := svc.ScanPages(input, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, av := range page.Items {
			item := tables.ScheduledPost{}
			err := dynamodbattribute.UnmarshalMap(av, &item)
			if err != nil {
				log.Printf("error unmarshalling scheduled post during due-scan: %s", err)
				continue
			}
			if len(item.EnabledChannels()) == 0 {
				continue
			}
			result = append(result, item)
		}
		return true
	})
	if err != nil {
		log.Printf("got error scanning due scheduled posts: %s", err)
		return result, err
	}

	return result, nil
}
