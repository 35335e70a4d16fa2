package mcpserver

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"
)

// JobStatus represents the state of a sprint run.
type JobStatus string

const (
	JobStatusSubmitted    JobStatus = "submitted"
	JobStatusPersonas     JobStatus = "personas"
	JobStatusInterviewing JobStatus = "interviewing"
	JobStatusSynthesizing JobStatus = "synthesizing"
	JobStatusComplete     JobStatus = "complete"
	JobStatusFailed       JobStatus = "failed"
)

// SprintItem is the DynamoDB record for a sprint run.
type SprintItem struct {
	PK              string  `dynamodbav:"PK"`
	SK              string  `dynamodbav:"SK"`
	GSI1PK          string  `dynamodbav:"GSI1PK"`
	GSI1SK          string  `dynamodbav:"GSI1SK"`
	SprintID        string  `dynamodbav:"sprintId"`
	Goal            string  `dynamodbav:"goal"`
	Owner           string  `dynamodbav:"owner"`
	Status          string  `dynamodbav:"status"`
	ProgressPercent float64 `dynamodbav:"progressPercent,omitempty"`
	StageMessage    string  `dynamodbav:"stageMessage,omitempty"`
	ErrorMessage    string  `dynamodbav:"errorMessage,omitempty"`
	Provider        string  `dynamodbav:"provider,omitempty"`
	Model           string  `dynamodbav:"model,omitempty"`
	ExpertCount     int     `dynamodbav:"expertCount,omitempty"`
	CycleCount      int     `dynamodbav:"cycleCount,omitempty"`
	QuestionCount   int     `dynamodbav:"questionCount,omitempty"`
	ReportJSON      string  `dynamodbav:"reportJson,omitempty"`
	ReportKey       string  `dynamodbav:"reportKey,omitempty"`
	ReportURL       string  `dynamodbav:"reportUrl,omitempty"`
	CreatedAt       string  `dynamodbav:"createdAt"`
}

// Store handles DynamoDB operations for sprint jobs.
type Store struct {
	client    *dynamodb.Client
	tableName string
}

// NewStore creates a DynamoDB store.
func NewStore(client *dynamodb.Client, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// NewSprintID generates a ULID for a new sprint.
func NewSprintID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

// CreateJob inserts a new sprint job with status=submitted.
func (s *Store) CreateJob(ctx context.Context, id, owner, goal, provider, model string, experts, cycles int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	item := SprintItem{
		PK:          "SPRINT#" + id,
		SK:          "METADATA",
		GSI1PK:      "SPRINTS",
		GSI1SK:      now + "#" + id,
		SprintID:    id,
		Goal:        goal,
		Owner:       owner,
		Status:      string(JobStatusSubmitted),
		Provider:    provider,
		Model:       model,
		ExpertCount: experts,
		CycleCount:  cycles,
		CreatedAt:   now,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal job item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("put job item: %w", err)
	}
	return nil
}

// UpdateProgress updates the job's status, progress percent, and stage message.
func (s *Store) UpdateProgress(ctx context.Context, id string, status JobStatus, percent float64, message string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "SPRINT#" + id},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression: aws.String("SET #status = :status, progressPercent = :pct, stageMessage = :msg"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":pct":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%.2f", percent)},
			":msg":    &types.AttributeValueMemberS{Value: message},
		},
	})
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// CompleteJob marks the job as complete with final counts and report location.
func (s *Store) CompleteJob(ctx context.Context, id string, experts, questions int, reportJSON, reportKey, reportURL string) error {
	updateExpr := "SET #status = :status, progressPercent = :pct, stageMessage = :msg, expertCount = :ec, questionCount = :qc, reportJson = :rj"
	exprValues := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(JobStatusComplete)},
		":pct":    &types.AttributeValueMemberN{Value: "1.00"},
		":msg":    &types.AttributeValueMemberS{Value: "Complete"},
		":ec":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", experts)},
		":qc":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", questions)},
		":rj":     &types.AttributeValueMemberS{Value: reportJSON},
	}

	if reportKey != "" {
		updateExpr += ", reportKey = :rkey"
		exprValues[":rkey"] = &types.AttributeValueMemberS{Value: reportKey}
	}
	if reportURL != "" {
		updateExpr += ", reportUrl = :rurl"
		exprValues[":rurl"] = &types.AttributeValueMemberS{Value: reportURL}
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "SPRINT#" + id},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression: aws.String(updateExpr),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: exprValues,
	})
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob marks the job as failed with an error message.
func (s *Store) FailJob(ctx context.Context, id, errMsg string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "SPRINT#" + id},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		UpdateExpression: aws.String("SET #status = :status, errorMessage = :err, stageMessage = :msg"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(JobStatusFailed)},
			":err":    &types.AttributeValueMemberS{Value: errMsg},
			":msg":    &types.AttributeValueMemberS{Value: "Failed: " + errMsg},
		},
	})
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// GetSprint retrieves a single sprint by ID.
func (s *Store) GetSprint(ctx context.Context, id string) (*SprintItem, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "SPRINT#" + id},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get sprint: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item SprintItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal sprint: %w", err)
	}
	return &item, nil
}

// ListSprints returns sprints ordered by creation time (newest first) via GSI1.
func (s *Store) ListSprints(ctx context.Context, limit int, cursor string) ([]SprintItem, string, error) {
	if limit <= 0 {
		limit = 20
	}

	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "SPRINTS"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	if cursor != "" {
		// cursor is the full GSI1SK value ({timestamp}#{id})
		// Extract the sprint ID from the cursor to reconstruct PK
		parts := strings.SplitN(cursor, "#", 2)
		if len(parts) != 2 {
			return nil, "", fmt.Errorf("invalid cursor format")
		}
		sprintID := parts[1]
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			"PK":     &types.AttributeValueMemberS{Value: "SPRINT#" + sprintID},
			"SK":     &types.AttributeValueMemberS{Value: "METADATA"},
			"GSI1PK": &types.AttributeValueMemberS{Value: "SPRINTS"},
			"GSI1SK": &types.AttributeValueMemberS{Value: cursor},
		}
	}

	result, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("list sprints: %w", err)
	}

	var items []SprintItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, "", fmt.Errorf("unmarshal sprint list: %w", err)
	}

	var nextCursor string
	if result.LastEvaluatedKey != nil {
		if gsi1sk, ok := result.LastEvaluatedKey["GSI1SK"].(*types.AttributeValueMemberS); ok {
			nextCursor = gsi1sk.Value
		}
	}

	return items, nextCursor, nil
}
