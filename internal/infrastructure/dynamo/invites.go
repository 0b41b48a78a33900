package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-bookstore-admin/internal/domain"
)

// InviteRepo stores invitations keyed by email. PutItem on the email key
// gives the upsert semantics: re-inviting replaces the row wholesale, so
// the previous token stops resolving the moment the new invite lands.
type InviteRepo struct {
	client    API
	tableName string
}

func NewInviteRepo(client API, tableName string) *InviteRepo {
	return &InviteRepo{client: client, tableName: tableName}
}

func (r *InviteRepo) Upsert(ctx context.Context, inv *domain.Invite) error {
	item, err := attributevalue.MarshalMap(inv)
	if err != nil {
		return fmt.Errorf("marshal invite: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *InviteRepo) GetByEmail(ctx context.Context, email string) (*domain.Invite, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("invite not found: %w", domain.ErrNotFound)
	}
	var inv domain.Invite
	if err := attributevalue.UnmarshalMap(out.Item, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindValidByToken resolves a token to its invite only while the invite is
// unused and unexpired. Superseded tokens no longer exist in the table and
// fall through to not-found.
func (r *InviteRepo) FindValidByToken(ctx context.Context, token string) (*domain.Invite, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("token-index"),
		KeyConditionExpression: aws.String("#t = :v"),
		ExpressionAttributeNames: map[string]string{
			"#t": "token",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: token},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("invite not found: %w", domain.ErrNotFound)
	}
	var inv domain.Invite
	if err := attributevalue.UnmarshalMap(out.Items[0], &inv); err != nil {
		return nil, err
	}
	if !inv.Redeemable(time.Now()) {
		return nil, fmt.Errorf("invite expired or used: %w", domain.ErrNotFound)
	}
	return &inv, nil
}

// MarkUsed consumes the invite during sign-up.
func (r *InviteRepo) MarkUsed(ctx context.Context, email string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	expr, names, values, err := buildUpdateExpr(map[string]interface{}{
		"used":    true,
		"used_at": now,
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("email", email),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}

func (r *InviteRepo) List(ctx context.Context) ([]domain.Invite, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		return nil, err
	}
	var invites []domain.Invite
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &invites); err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *InviteRepo) Delete(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("email", email),
	})
	return err
}
