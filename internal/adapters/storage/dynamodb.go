package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

const (
	pkSession = "SESSION#"
	pkFlag    = "FLAG#"

	entitySession = "session"
	entityFlag    = "flag"
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStorage.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStorage implements ports.Storage on a single DynamoDB table keyed by
// PK, with a GSI on (status, createdAt) for the poller's queries.
type DynamoStorage struct {
	api         dynamodbAPI
	tableName   string
	statusIndex string
	now         func() time.Time
}

// NewDynamoStorage creates a DynamoStorage over an existing table.
func NewDynamoStorage(api dynamodbAPI, tableName, statusIndex string) (*DynamoStorage, error) {
	if api == nil {
		return nil, errors.New("storage.NewDynamoStorage: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("storage.NewDynamoStorage: table name must not be empty")
	}
	if strings.TrimSpace(statusIndex) == "" {
		return nil, errors.New("storage.NewDynamoStorage: status index must not be empty")
	}
	return &DynamoStorage{api: api, tableName: tableName, statusIndex: statusIndex, now: time.Now}, nil
}

// GetSession reads the session with a consistent read.
func (d *DynamoStorage) GetSession(ctx context.Context, id string) (domain.Session, error) {
	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            pkKey(pkSession + id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("storage.GetSession: %s: %w", id, err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Session{}, fmt.Errorf("storage.GetSession: %s: %w", id, domain.ErrNotFound)
	}
	sess, err := itemToSession(out.Item)
	if err != nil {
		return domain.Session{}, fmt.Errorf("storage.GetSession: %s: %w", id, err)
	}
	return sess, nil
}

// SaveSession writes the whole item conditioned on the version read.
func (d *DynamoStorage) SaveSession(ctx context.Context, sess *domain.Session) error {
	now := d.now().UTC()
	next := *sess
	next.Version = sess.Version + 1
	next.UpdatedAt = now
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}

	item, err := sessionItem(next)
	if err != nil {
		return fmt.Errorf("storage.SaveSession: %w", err)
	}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	}
	if sess.Version == 0 {
		in.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		in.ConditionExpression = aws.String("version = :v")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":v": numAttr(sess.Version),
		}
	}

	if _, err := d.api.PutItem(ctx, in); err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("storage.SaveSession: %s at version %d: %w", sess.ID, sess.Version, domain.ErrVersionConflict)
		}
		return fmt.Errorf("storage.SaveSession: %s: %w", sess.ID, err)
	}

	sess.Version = next.Version
	sess.CreatedAt = next.CreatedAt
	sess.UpdatedAt = next.UpdatedAt
	return nil
}

// QuerySessions reads the status index; an empty status scans every session.
func (d *DynamoStorage) QuerySessions(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error) {
	var items []map[string]types.AttributeValue

	if status == "" {
		var startKey map[string]types.AttributeValue
		for {
			out, err := d.api.Scan(ctx, &dynamodb.ScanInput{
				TableName:        aws.String(d.tableName),
				FilterExpression: aws.String("entity = :e"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":e": &types.AttributeValueMemberS{Value: entitySession},
				},
				ExclusiveStartKey: startKey,
			})
			if err != nil {
				return nil, fmt.Errorf("storage.QuerySessions: scan: %w", err)
			}
			items = append(items, out.Items...)
			if len(out.LastEvaluatedKey) == 0 {
				break
			}
			startKey = out.LastEvaluatedKey
		}
	} else {
		var startKey map[string]types.AttributeValue
		for {
			out, err := d.api.Query(ctx, &dynamodb.QueryInput{
				TableName:              aws.String(d.tableName),
				IndexName:              aws.String(d.statusIndex),
				KeyConditionExpression: aws.String("#s = :s"),
				ExpressionAttributeNames: map[string]string{
					"#s": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":s": &types.AttributeValueMemberS{Value: string(status)},
				},
				ScanIndexForward:  aws.Bool(true),
				ExclusiveStartKey: startKey,
			})
			if err != nil {
				return nil, fmt.Errorf("storage.QuerySessions: query %s: %w", status, err)
			}
			items = append(items, out.Items...)
			if len(out.LastEvaluatedKey) == 0 {
				break
			}
			startKey = out.LastEvaluatedKey
		}
	}

	sessions := make([]domain.Session, 0, len(items))
	for _, item := range items {
		sess, err := itemToSession(item)
		if err != nil {
			return nil, fmt.Errorf("storage.QuerySessions: unmarshal: %w", err)
		}
		sessions = append(sessions, sess)
	}
	sortByCreation(sessions)
	return sessions, nil
}

// DeleteSession removes the item, failing with ErrNotFound when absent.
func (d *DynamoStorage) DeleteSession(ctx context.Context, id string) error {
	_, err := d.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(d.tableName),
		Key:                 pkKey(pkSession + id),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("storage.DeleteSession: %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("storage.DeleteSession: %s: %w", id, err)
	}
	return nil
}

// GetPollFlag reads the flag with a consistent read.
func (d *DynamoStorage) GetPollFlag(ctx context.Context, id string) (domain.PollFlag, error) {
	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            pkKey(pkFlag + id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.PollFlag{}, fmt.Errorf("storage.GetPollFlag: %s: %w", id, err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.PollFlag{}, fmt.Errorf("storage.GetPollFlag: %s: %w", id, domain.ErrNotFound)
	}
	return itemToFlag(out.Item)
}

// AcquirePollFlag takes the lease with one conditional put.
func (d *DynamoStorage) AcquirePollFlag(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	now := d.now().UTC()
	_, err := d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item: flagItem(domain.PollFlag{
			ID:         id,
			Running:    true,
			Owner:      owner,
			LeaseUntil: now.Add(ttl),
			UpdatedAt:  now,
		}),
		ConditionExpression: aws.String("attribute_not_exists(PK) OR running = :false OR leaseUntil < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":now":   numAttr(now.UnixMilli()),
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("storage.AcquirePollFlag: %s: %w", id, err)
	}
	return true, nil
}

// ReleasePollFlag clears the flag only while owner still holds it.
func (d *DynamoStorage) ReleasePollFlag(ctx context.Context, id, owner string) error {
	_, err := d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                flagItem(domain.PollFlag{ID: id, UpdatedAt: d.now().UTC()}),
		ConditionExpression: aws.String("#o = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#o": "owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil // otro poller ya tomó el lease
		}
		return fmt.Errorf("storage.ReleasePollFlag: %s: %w", id, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no connection to release.
func (d *DynamoStorage) Close() error { return nil }

// --- item mapping ---

func pkKey(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
	}
}

func numAttr(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func sessionItem(s domain.Session) (map[string]types.AttributeValue, error) {
	images, err := encodeImages(s.Images)
	if err != nil {
		return nil, err
	}
	item := map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: pkSession + s.ID},
		"entity":         &types.AttributeValueMemberS{Value: entitySession},
		"id":             &types.AttributeValueMemberS{Value: s.ID},
		"status":         &types.AttributeValueMemberS{Value: string(s.Status)},
		"images":         &types.AttributeValueMemberS{Value: images},
		"impressionText": &types.AttributeValueMemberS{Value: s.ImpressionText},
		"version":        numAttr(s.Version),
		"createdAt":      &types.AttributeValueMemberS{Value: formatTime(s.CreatedAt)},
		"updatedAt":      &types.AttributeValueMemberS{Value: formatTime(s.UpdatedAt)},
	}
	if s.ChosenImageIdx != nil {
		item["chosenImageIdx"] = numAttr(int64(*s.ChosenImageIdx))
	}
	if s.TargetImageIdx != nil {
		item["targetImageIdx"] = numAttr(int64(*s.TargetImageIdx))
	}
	phase, err := domain.MarshalPhase(s.Phase)
	if err != nil {
		return nil, err
	}
	if len(phase) > 0 {
		item["phase"] = &types.AttributeValueMemberS{Value: string(phase)}
	}
	return item, nil
}

func itemToSession(item map[string]types.AttributeValue) (domain.Session, error) {
	var s domain.Session
	var err error

	if s.ID, err = strAttr(item, "id"); err != nil {
		return s, err
	}
	status, err := strAttr(item, "status")
	if err != nil {
		return s, err
	}
	s.Status = domain.SessionStatus(status)

	images, err := strAttr(item, "images")
	if err != nil {
		return s, err
	}
	if s.Images, err = decodeImages(images); err != nil {
		return s, err
	}
	s.ImpressionText, _ = strAttr(item, "impressionText") // allow empty

	if s.Version, err = int64Attr(item, "version"); err != nil {
		return s, err
	}
	if s.ChosenImageIdx, err = optIntAttr(item, "chosenImageIdx"); err != nil {
		return s, err
	}
	if s.TargetImageIdx, err = optIntAttr(item, "targetImageIdx"); err != nil {
		return s, err
	}
	if raw, ok := item["phase"].(*types.AttributeValueMemberS); ok {
		if s.Phase, err = domain.UnmarshalPhase([]byte(raw.Value)); err != nil {
			return s, err
		}
	}
	createdAt, _ := strAttr(item, "createdAt")
	updatedAt, _ := strAttr(item, "updatedAt")
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return s, nil
}

func flagItem(f domain.PollFlag) map[string]types.AttributeValue {
	var lease int64
	if !f.LeaseUntil.IsZero() {
		lease = f.LeaseUntil.UnixMilli()
	}
	return map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: pkFlag + f.ID},
		"entity":     &types.AttributeValueMemberS{Value: entityFlag},
		"id":         &types.AttributeValueMemberS{Value: f.ID},
		"running":    &types.AttributeValueMemberBOOL{Value: f.Running},
		"owner":      &types.AttributeValueMemberS{Value: f.Owner},
		"leaseUntil": numAttr(lease),
		"updatedAt":  &types.AttributeValueMemberS{Value: formatTime(f.UpdatedAt)},
	}
}

func itemToFlag(item map[string]types.AttributeValue) (domain.PollFlag, error) {
	var f domain.PollFlag
	var err error
	if f.ID, err = strAttr(item, "id"); err != nil {
		return f, err
	}
	if b, ok := item["running"].(*types.AttributeValueMemberBOOL); ok {
		f.Running = b.Value
	}
	f.Owner, _ = strAttr(item, "owner")
	lease, err := int64Attr(item, "leaseUntil")
	if err != nil {
		return f, err
	}
	if lease > 0 {
		f.LeaseUntil = time.UnixMilli(lease).UTC()
	}
	updatedAt, _ := strAttr(item, "updatedAt")
	f.UpdatedAt = parseTime(updatedAt)
	return f, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func optIntAttr(item map[string]types.AttributeValue, key string) (*int, error) {
	if _, ok := item[key]; !ok {
		return nil, nil
	}
	n, err := int64Attr(item, key)
	if err != nil {
		return nil, err
	}
	i := int(n)
	return &i, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
