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

// unusedPtrAttr is the marker-row attribute pointing at the one unused
// passcode for the key.
const unusedPtrAttr = "unused_id"

// supersedeAttempts bounds the optimistic-lock retry loop. Each retry means
// another writer committed for the same key in the meantime.
const supersedeAttempts = 3

// OtpRepo provides typed DynamoDB operations for the otps table.
// PK: otp_id. A marker row per (email, intent), keyed "key#email#intent",
// carries unused_id, the primary key of the one unused passcode for that
// pair. All writers swap the pointer under a condition on the value they
// read, so concurrent senders serialize; the marker has none of the data
// attributes, which keeps it out of the cleanup scans.
type OtpRepo struct {
	client    API
	tableName string
}

func NewOtpRepo(client API, tableName string) *OtpRepo {
	return &OtpRepo{client: client, tableName: tableName}
}

// CreateAndInvalidateOld inserts o and marks the prior unused passcode for
// the same (email, intent) as used, in one transaction gated on the marker
// pointer. A writer that lost the race gets a ConditionalCheckFailed
// cancellation, re-reads and supersedes the winner's row instead, so after
// any interleaving exactly one unused row exists for the key.
func (r *OtpRepo) CreateAndInvalidateOld(ctx context.Context, o *domain.OneTimePasscode) error {
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	marker := markerID(o.Email, o.Intent)

	for attempt := 0; attempt < supersedeAttempts; attempt++ {
		seen, err := readMarker(ctx, r.client, r.tableName, "otp_id", marker, unusedPtrAttr)
		if err != nil {
			return err
		}

		items := []types.TransactWriteItem{
			markerSwap(r.tableName, "otp_id", marker, unusedPtrAttr, seen, o.OtpID),
		}
		if seen != "" {
			prior, err := r.getByID(ctx, seen)
			if err != nil {
				return err
			}
			// Already used or swept rows need no invalidation.
			if prior != nil && !prior.Used {
				items = append(items, types.TransactWriteItem{
					Update: &types.Update{
						TableName:                aws.String(r.tableName),
						Key:                      strKey("otp_id", seen),
						UpdateExpression:         aws.String("SET #u = :t"),
						ConditionExpression:      aws.String("attribute_exists(otp_id)"),
						ExpressionAttributeNames: map[string]string{"#u": "used"},
						ExpressionAttributeValues: map[string]types.AttributeValue{
							":t": &types.AttributeValueMemberBOOL{Value: true},
						},
					},
				})
			}
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(r.tableName),
				Item:      item,
			},
		})

		_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items,
		})
		if err == nil {
			return nil
		}
		if !isConditionalCancel(err) {
			return err
		}
	}
	return fmt.Errorf("too many concurrent otp writes for %s: %w", o.Email, domain.ErrConflict)
}

// GetActive returns the unused, unexpired passcode for (email, intent).
func (r *OtpRepo) GetActive(ctx context.Context, email, intent string) (*domain.OneTimePasscode, error) {
	ptr, err := readMarker(ctx, r.client, r.tableName, "otp_id", markerID(email, intent), unusedPtrAttr)
	if err != nil {
		return nil, err
	}
	if ptr == "" {
		return nil, fmt.Errorf("no active otp: %w", domain.ErrNotFound)
	}
	o, err := r.getByID(ctx, ptr)
	if err != nil {
		return nil, err
	}
	if o == nil || !o.Active(time.Now()) {
		return nil, fmt.Errorf("no active otp: %w", domain.ErrNotFound)
	}
	return o, nil
}

// MarkUsed consumes a passcode after successful verification.
func (r *OtpRepo) MarkUsed(ctx context.Context, otpID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey("otp_id", otpID),
		UpdateExpression:         aws.String("SET #u = :t"),
		ExpressionAttributeNames: map[string]string{"#u": "used"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	return err
}

// DeleteExpired removes every passcode whose expiry has passed.
func (r *OtpRepo) DeleteExpired(ctx context.Context) (int, error) {
	return deleteByScan(ctx, r.client, r.tableName, "otp_id",
		"expires_at <= :now", nil,
		map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
		})
}

// DeleteUsedOlderThan removes consumed passcodes past the retention window.
func (r *OtpRepo) DeleteUsedOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age).Unix()
	return deleteByScan(ctx, r.client, r.tableName, "otp_id",
		"#u = :t AND created_at < :cutoff", map[string]string{"#u": "used"},
		map[string]types.AttributeValue{
			":t":      &types.AttributeValueMemberBOOL{Value: true},
			":cutoff": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", cutoff)},
		})
}

func (r *OtpRepo) getByID(ctx context.Context, otpID string) (*domain.OneTimePasscode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("otp_id", otpID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	var o domain.OneTimePasscode
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
