// Package dynamostore implements the user store on DynamoDB. Users live in a
// single table keyed by userId, with a global secondary index over email for
// signin-link requests. The email auth state is a nested attribute on the
// user item, rewritten with conditional updates so concurrent issuance or
// verification cannot double-apply.
package dynamostore

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	goerrors "github.com/goliatone/go-errors"

	"github.com/prunklabs/go-emailauth"
)

const (
	DefaultTable      = "PrunkUsers"
	DefaultEmailIndex = "email-index"
)

// Store talks to one DynamoDB table. It satisfies emailauth.UserStore and
// emailauth.LastLoginTracker.
type Store struct {
	client     *dynamodb.Client
	table      string
	emailIndex string
}

var (
	_ emailauth.UserStore        = (*Store)(nil)
	_ emailauth.LastLoginTracker = (*Store)(nil)
)

type Option func(*Store)

func WithTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.table = table
		}
	}
}

func WithEmailIndex(index string) Option {
	return func(s *Store) {
		if index != "" {
			s.emailIndex = index
		}
	}
}

func New(client *dynamodb.Client, opts ...Option) *Store {
	s := &Store{
		client:     client,
		table:      DefaultTable,
		emailIndex: DefaultEmailIndex,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NewFromEnv builds a client from the ambient AWS configuration, honoring
// AWS_REGION and USERS_TABLE.
func NewFromEnv(ctx context.Context, opts ...Option) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(os.Getenv("AWS_REGION")),
	)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load AWS configuration")
	}

	if table := os.Getenv("USERS_TABLE"); table != "" {
		opts = append([]Option{WithTable(table)}, opts...)
	}

	return New(dynamodb.NewFromConfig(cfg), opts...), nil
}

func (s *Store) GetByID(ctx context.Context, userID string) (*emailauth.User, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read user")
	}

	if len(result.Item) == 0 {
		return nil, notFound("user_id", userID)
	}

	return unmarshalUser(result.Item)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*emailauth.User, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(s.emailIndex),
		KeyConditionExpression: aws.String("email = :email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: email},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query user by email")
	}

	if len(result.Items) == 0 {
		return nil, notFound("email", email)
	}

	return unmarshalUser(result.Items[0])
}

func (s *Store) GetStatus(ctx context.Context, userID string) (emailauth.UserStatus, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Status, nil
}

// UpdateEmailAuth rewrites the emailAuth attribute conditionally on the state
// read at the start of the operation. DynamoDB reports a lost race as a
// ConditionalCheckFailedException, which also fires when the item is missing,
// so a failed condition triggers one follow-up read to tell the two apart.
func (s *Store) UpdateEmailAuth(ctx context.Context, userID string, prior, next *emailauth.EmailAuth) error {
	nextAttr, err := attributevalue.Marshal(next)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode email auth state")
	}

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: userID},
		},
		UpdateExpression: aws.String("SET emailAuth = :next, updatedAt = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":next": nextAttr,
			":now":  &types.AttributeValueMemberN{Value: millisNow()},
		},
	}

	if prior == nil {
		input.ConditionExpression = aws.String(
			"attribute_exists(userId) AND attribute_not_exists(emailAuth)",
		)
	} else {
		input.ConditionExpression = aws.String(
			"attribute_exists(userId)" +
				" AND emailAuth.#tok = :priorToken" +
				" AND emailAuth.sentAt = :priorSentAt" +
				" AND emailAuth.completed = :priorCompleted",
		)
		input.ExpressionAttributeNames = map[string]string{
			"#tok": "token",
		}
		input.ExpressionAttributeValues[":priorToken"] = &types.AttributeValueMemberS{Value: prior.TokenHash}
		input.ExpressionAttributeValues[":priorSentAt"] = &types.AttributeValueMemberN{Value: formatMillis(prior.SentAt)}
		input.ExpressionAttributeValues[":priorCompleted"] = &types.AttributeValueMemberBOOL{Value: prior.Completed}
	}

	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			if _, getErr := s.GetByID(ctx, userID); getErr != nil {
				return getErr
			}
			return emailauth.ErrEmailAuthConflict
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update email auth state")
	}

	return nil
}

// TrackLastLogin stamps the most recent successful verification.
func (s *Store) TrackLastLogin(ctx context.Context, userID string, at int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: userID},
		},
		ConditionExpression: aws.String("attribute_exists(userId)"),
		UpdateExpression:    aws.String("SET lastLoginAt = :at, updatedAt = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at":  &types.AttributeValueMemberN{Value: formatMillis(at)},
			":now": &types.AttributeValueMemberN{Value: millisNow()},
		},
	})

	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return notFound("user_id", userID)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track last login")
	}

	return nil
}

func unmarshalUser(item map[string]types.AttributeValue) (*emailauth.User, error) {
	user := &emailauth.User{}
	if err := attributevalue.UnmarshalMap(item, user); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode user item")
	}
	user.EnsureStatus()
	return user, nil
}

func notFound(key, value string) error {
	return goerrors.New("user not found", goerrors.CategoryNotFound).
		WithTextCode(emailauth.TextCodeUserNotFound).
		WithCode(goerrors.CodeNotFound).
		WithMetadata(map[string]any{
			key: value,
		})
}

func millisNow() string {
	return formatMillis(time.Now().UnixMilli())
}

func formatMillis(ms int64) string {
	return strconv.FormatInt(ms, 10)
}
