package ddb

import (
	"captchaguard/internal/types"
	"context"
	"slices"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// SettingsStore keeps one item per site: PK=SITE#<id>, SK=SETTINGS.
type SettingsStore struct {
	table string
	cli   *dynamodb.Client
}

type settingsItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	types.Settings
}

func NewSettingsStore(ctx context.Context, table string, cli *dynamodb.Client) (*SettingsStore, error) {
	if err := createTableIfNotExists(ctx, cli, table); err != nil {
		return nil, err
	}
	return &SettingsStore{table: table, cli: cli}, nil
}

func (s *SettingsStore) GetSettings(ctx context.Context, siteID string) (types.Settings, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		Key:            key(pkSite(siteID), skSettings()),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return types.Settings{}, err
	}
	if out.Item == nil {
		return types.Settings{}, types.ErrNotFound
	}
	var item settingsItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return types.Settings{}, err
	}
	return item.Settings, nil
}

// PutSettings replaces the whole item in one PutItem call.
func (s *SettingsStore) PutSettings(ctx context.Context, siteID string, settings types.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(settingsItem{
		PK:       pkSite(siteID),
		SK:       skSettings(),
		Settings: settings,
	})
	if err != nil {
		return err
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      item,
	})
	return err
}

func (s *SettingsStore) DeleteSettings(ctx context.Context, siteID string) error {
	_, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.table,
		Key:       key(pkSite(siteID), skSettings()),
	})
	return err
}

// ListSites scans for settings items and only projects the partition key.
func (s *SettingsStore) ListSites(ctx context.Context) ([]string, error) {
	p := dynamodb.NewScanPaginator(s.cli, &dynamodb.ScanInput{
		TableName:            &s.table,
		FilterExpression:     awsString("SK = :sk"),
		ProjectionExpression: awsString("PK"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":sk": &ddbTypes.AttributeValueMemberS{Value: skSettings()},
		},
	})
	var sites []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			var pk struct {
				PK string `dynamodbav:"PK"`
			}
			if err := attributevalue.UnmarshalMap(item, &pk); err != nil {
				return nil, err
			}
			id, err := parseSiteID(pk.PK)
			if err != nil {
				return nil, err
			}
			sites = append(sites, id)
		}
	}
	slices.Sort(sites)
	return sites, nil
}
