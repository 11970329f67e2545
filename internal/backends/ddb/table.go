package ddb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"
)

const (
	SSite     = "SITE"
	SRate     = "RATE"
	SWin      = "WIN"
	SSettings = "SETTINGS"
)

func pkSite(id string) string    { return fmt.Sprintf("%s#%s", SSite, id) }
func skSettings() string         { return SSettings }
func pkRate(scope string) string { return fmt.Sprintf("%s#%s", SRate, scope) }

// skRateWin carries the window length so limits with different windows never share a bucket.
func skRateWin(window time.Duration, bucket int64) string {
	return fmt.Sprintf("%s#%d#%d", SWin, int64(window/time.Second), bucket)
}

func parseSiteID(pk string) (string, error) {
	id, ok := strings.CutPrefix(pk, SSite+"#")
	if !ok {
		return "", fmt.Errorf("unexpected partition key %q", pk)
	}
	return id, nil
}

// createTableIfNotExists creates the single PK/SK table shared by settings and rate windows.
// An existing table is not an error.
func createTableIfNotExists(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &table,
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: awsString("PK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
			{AttributeName: awsString("SK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: awsString("PK"), KeyType: ddbTypes.KeyTypeHash},
			{AttributeName: awsString("SK"), KeyType: ddbTypes.KeyTypeRange},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var re *ddbTypes.ResourceInUseException
	if err != nil && !errors.As(err, &re) {
		log.WithError(err).WithField("table", table).Error("Failed to create table")
		return err
	}
	return nil
}

func key(pk, sk string) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		"PK": &ddbTypes.AttributeValueMemberS{Value: pk},
		"SK": &ddbTypes.AttributeValueMemberS{Value: sk},
	}
}

func itoa(i int64) string                { return strconv.FormatInt(i, 10) }
func awsString(s string) *string         { return &s }
func awsBool(b bool) *bool               { return &b }
func errorAs(err error, target any) bool { return errors.As(err, target) }
