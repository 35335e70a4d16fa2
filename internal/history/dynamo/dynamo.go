// Package dynamo provides a DynamoDB-backed history.Store. Each session
// entry is one item under a shared partition key, with a numeric expiresAt
// attribute so the table's TTL setting reclaims idle conversations.
package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/apresai/sprintkit/internal/history"
)

// DefaultTTL is written into expiresAt for each entry.
const DefaultTTL = 10 * time.Minute

// entryItem is the DynamoDB record for one session entry.
type entryItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Role      string `dynamodbav:"role"`
	Text      string `dynamodbav:"text"`
	At        string `dynamodbav:"at"`
	ExpiresAt int64  `dynamodbav:"expiresAt"`
}

// Store implements history.Store over a DynamoDB table.
type Store struct {
	client    *dynamodb.Client
	tableName string
	ttl       time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the idle expiry period written to expiresAt.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// NewStore creates a DynamoDB history store. The table needs a string PK /
// SK key schema and TTL enabled on the expiresAt attribute.
func NewStore(client *dynamodb.Client, tableName string, opts ...Option) *Store {
	s := &Store{client: client, tableName: tableName, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open implements history.Store. Existing entries are counted so appends
// resume at the right sequence number after a process restart.
func (s *Store) Open(ctx context.Context, sessionID string) (history.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("dynamo: empty session ID")
	}

	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "SESSION#" + sessionID},
			":sk": &types.AttributeValueMemberS{Value: "ENTRY#"},
		},
		Select: types.SelectCount,
	})
	if err != nil {
		return nil, fmt.Errorf("count session entries: %w", err)
	}

	return &session{store: s, id: sessionID, nextSeq: int(result.Count)}, nil
}

type session struct {
	store   *Store
	id      string
	nextSeq int
	closed  bool
}

func (se *session) ID() string { return se.id }

func (se *session) Append(ctx context.Context, e history.Entry) error {
	if se.closed {
		return fmt.Errorf("dynamo: session %s is closed", se.id)
	}
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	item := entryItem{
		PK:        "SESSION#" + se.id,
		SK:        fmt.Sprintf("ENTRY#%08d", se.nextSeq),
		Role:      e.Role,
		Text:      e.Text,
		At:        at.Format(time.RFC3339Nano),
		ExpiresAt: time.Now().Add(se.store.ttl).Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal entry item: %w", err)
	}

	_, err = se.store.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &se.store.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("put entry item: %w", err)
	}

	se.nextSeq++
	return nil
}

func (se *session) Entries(ctx context.Context) ([]history.Entry, error) {
	if se.closed {
		return nil, fmt.Errorf("dynamo: session %s is closed", se.id)
	}

	result, err := se.store.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &se.store.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "SESSION#" + se.id},
			":sk": &types.AttributeValueMemberS{Value: "ENTRY#"},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query session entries: %w", err)
	}

	var items []entryItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshal session entries: %w", err)
	}

	entries := make([]history.Entry, 0, len(items))
	for _, item := range items {
		at, _ := time.Parse(time.RFC3339Nano, item.At)
		entries = append(entries, history.Entry{Role: item.Role, Text: item.Text, At: at})
	}
	return entries, nil
}

func (se *session) Close(context.Context) error {
	se.closed = true
	return nil
}
