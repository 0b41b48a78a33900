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

// currentPtrAttr is the marker-row attribute pointing at the one session
// for the key.
const currentPtrAttr = "current_id"

// AuthSessionRepo stores verified-intent sessions.
// PK: session_id. As in OtpRepo, a "key#email#intent" marker row points at
// the current session for the pair and serializes concurrent writers.
type AuthSessionRepo struct {
	client    API
	tableName string
}

func NewAuthSessionRepo(client API, tableName string) *AuthSessionRepo {
	return &AuthSessionRepo{client: client, tableName: tableName}
}

// CreateAndReplace inserts s and deletes the prior session for the same
// (email, intent) in one transaction gated on the marker pointer, keeping
// at most one record per key under any interleaving. Losing writers retry
// against the winner's pointer.
func (r *AuthSessionRepo) CreateAndReplace(ctx context.Context, s *domain.AuthSession) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal auth session: %w", err)
	}
	marker := markerID(s.Email, s.Intent)

	for attempt := 0; attempt < supersedeAttempts; attempt++ {
		seen, err := readMarker(ctx, r.client, r.tableName, "session_id", marker, currentPtrAttr)
		if err != nil {
			return err
		}

		items := []types.TransactWriteItem{
			markerSwap(r.tableName, "session_id", marker, currentPtrAttr, seen, s.SessionID),
		}
		if seen != "" {
			// Deleting an already-consumed row is a harmless no-op.
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName: aws.String(r.tableName),
					Key:       strKey("session_id", seen),
				},
			})
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
	return fmt.Errorf("too many concurrent session writes for %s: %w", s.Email, domain.ErrConflict)
}

// GetActive returns the session if it exists and has not expired.
func (r *AuthSessionRepo) GetActive(ctx context.Context, sessionID string) (*domain.AuthSession, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("session_id", sessionID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("auth session not found: %w", domain.ErrNotFound)
	}
	var s domain.AuthSession
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	if !s.Active(time.Now()) {
		return nil, fmt.Errorf("auth session expired: %w", domain.ErrNotFound)
	}
	return &s, nil
}

// Delete removes a session once the intent it proved has completed.
func (r *AuthSessionRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("session_id", sessionID),
	})
	return err
}

// DeleteExpired removes every session whose expiry has passed.
func (r *AuthSessionRepo) DeleteExpired(ctx context.Context) (int, error) {
	return deleteByScan(ctx, r.client, r.tableName, "session_id",
		"expires_at <= :now", nil,
		map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
		})
}

// DeleteOlderThan removes sessions past the retention window regardless of
// expiry state.
func (r *AuthSessionRepo) DeleteOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age).Unix()
	return deleteByScan(ctx, r.client, r.tableName, "session_id",
		"created_at < :cutoff", nil,
		map[string]types.AttributeValue{
			":cutoff": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", cutoff)},
		})
}
