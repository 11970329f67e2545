package ddb

import (
	"captchaguard/internal/ports"
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// RateLimiter keeps one counter item per scope and fixed window. Items carry a ttl
// attribute so table TTL can expire them.
type RateLimiter struct {
	table string
	cli   *dynamodb.Client
	now   func() time.Time
}

func NewRateLimiter(ctx context.Context, table string, cli *dynamodb.Client) (*RateLimiter, error) {
	if err := createTableIfNotExists(ctx, cli, table); err != nil {
		return nil, err
	}
	return &RateLimiter{table: table, cli: cli, now: time.Now}, nil
}

func (r *RateLimiter) Acquire(ctx context.Context, scope string, ratePerWindow int, window time.Duration) (bool, error) {
	if ratePerWindow <= 0 {
		return false, nil
	}
	now := r.now()
	bucket := ports.WindowBucket(now, window)
	ttl := now.Add(2*window + time.Minute).Unix()

	// ADD count 1 and set ttl if absent, on condition count < capacity.
	_, err := r.cli.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &r.table,
		Key:              key(pkRate(scope), skRateWin(window, bucket)),
		UpdateExpression: awsString("SET #ttl = if_not_exists(#ttl, :ttl) ADD #count :one"),
		ExpressionAttributeNames: map[string]string{
			"#count": "count",
			"#ttl":   "ttl",
		},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":one": &ddbTypes.AttributeValueMemberN{Value: "1"},
			":ttl": &ddbTypes.AttributeValueMemberN{Value: itoa(ttl)},
			":cap": &ddbTypes.AttributeValueMemberN{Value: itoa(int64(ratePerWindow))},
		},
		ConditionExpression: awsString("attribute_not_exists(#count) OR #count < :cap"),
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errorAs(err, &cc) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
