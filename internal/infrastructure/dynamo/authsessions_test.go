package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-bookstore-admin/internal/domain"
)

const sessionMarker = "key#a@b.com#register"

func testAuthSession(id string) *domain.AuthSession {
	now := time.Now().UTC()
	return &domain.AuthSession{
		SessionID: id,
		Email:     "a@b.com",
		Intent:    domain.IntentRegister,
		ExpiresAt: now.Add(15 * time.Minute).Unix(),
		CreatedAt: now,
	}
}

func sessionOut(t *testing.T, s *domain.AuthSession) *dynamodb.GetItemOutput {
	t.Helper()
	item, err := attributevalue.MarshalMap(s)
	require.NoError(t, err)
	return &dynamodb.GetItemOutput{Item: item}
}

// --- CreateAndReplace ---

func TestAuthSessionCreateAndReplace_First(t *testing.T) {
	m := &mockAPI{}
	repo := NewAuthSessionRepo(m, "auth_sessions")

	m.On("GetItem", mock.Anything, getItemForKey("session_id", sessionMarker)).
		Return(markerOut(currentPtrAttr, ""), nil).Once()

	var captured *dynamodb.TransactWriteItemsInput
	m.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*dynamodb.TransactWriteItemsInput)
		}).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	err := repo.CreateAndReplace(context.Background(), testAuthSession("as-1"))
	require.NoError(t, err)

	require.Len(t, captured.TransactItems, 2)
	swap := captured.TransactItems[0].Update
	require.NotNil(t, swap)
	assert.Equal(t, "as-1", swap.ExpressionAttributeValues[":next"].(*types.AttributeValueMemberS).Value)
	require.NotNil(t, captured.TransactItems[1].Put)
	m.AssertExpectations(t)
}

func TestAuthSessionCreateAndReplace_ReplacesPrior(t *testing.T) {
	m := &mockAPI{}
	repo := NewAuthSessionRepo(m, "auth_sessions")

	m.On("GetItem", mock.Anything, getItemForKey("session_id", sessionMarker)).
		Return(markerOut(currentPtrAttr, "as-1"), nil).Once()

	var captured *dynamodb.TransactWriteItemsInput
	m.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*dynamodb.TransactWriteItemsInput)
		}).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	err := repo.CreateAndReplace(context.Background(), testAuthSession("as-2"))
	require.NoError(t, err)

	// Marker swap, prior deleted, new row put: one transaction.
	require.Len(t, captured.TransactItems, 3)
	assert.Equal(t, "as-1", captured.TransactItems[0].Update.ExpressionAttributeValues[":seen"].(*types.AttributeValueMemberS).Value)

	del := captured.TransactItems[1].Delete
	require.NotNil(t, del)
	assert.Equal(t, "as-1", del.Key["session_id"].(*types.AttributeValueMemberS).Value)

	put := captured.TransactItems[2].Put
	require.NotNil(t, put)
	assert.Equal(t, "as-2", put.Item["session_id"].(*types.AttributeValueMemberS).Value)
	m.AssertExpectations(t)
}

func TestAuthSessionCreateAndReplace_RetriesAfterLosingRace(t *testing.T) {
	m := &mockAPI{}
	repo := NewAuthSessionRepo(m, "auth_sessions")

	m.On("GetItem", mock.Anything, getItemForKey("session_id", sessionMarker)).
		Return(markerOut(currentPtrAttr, ""), nil).Once()
	m.On("TransactWriteItems", mock.Anything, mock.Anything).
		Return(nil, raceCancel()).Once()

	m.On("GetItem", mock.Anything, getItemForKey("session_id", sessionMarker)).
		Return(markerOut(currentPtrAttr, "winner"), nil).Once()

	var captured *dynamodb.TransactWriteItemsInput
	m.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*dynamodb.TransactWriteItemsInput)
		}).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	err := repo.CreateAndReplace(context.Background(), testAuthSession("as-2"))
	require.NoError(t, err)

	// The retry deletes the winner's row, leaving exactly one session.
	require.Len(t, captured.TransactItems, 3)
	assert.Equal(t, "winner", captured.TransactItems[1].Delete.Key["session_id"].(*types.AttributeValueMemberS).Value)
	m.AssertExpectations(t)
}

func TestAuthSessionCreateAndReplace_GivesUpAfterRepeatedRaces(t *testing.T) {
	m := &mockAPI{}
	repo := NewAuthSessionRepo(m, "auth_sessions")

	m.On("GetItem", mock.Anything, getItemForKey("session_id", sessionMarker)).
		Return(markerOut(currentPtrAttr, ""), nil)
	m.On("TransactWriteItems", mock.Anything, mock.Anything).
		Return(nil, raceCancel())

	err := repo.CreateAndReplace(context.Background(), testAuthSession("as-2"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	m.AssertNumberOfCalls(t, "TransactWriteItems", supersedeAttempts)
}

// --- GetActive ---

func TestAuthSessionGetActive_Expired(t *testing.T) {
	m := &mockAPI{}
	repo := NewAuthSessionRepo(m, "auth_sessions")

	s := testAuthSession("as-1")
	s.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	m.On("GetItem", mock.Anything, getItemForKey("session_id", "as-1")).
		Return(sessionOut(t, s), nil).Once()

	_, err := repo.GetActive(context.Background(), "as-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAuthSessionGetActive_HappyPath(t *testing.T) {
	m := &mockAPI{}
	repo := NewAuthSessionRepo(m, "auth_sessions")

	m.On("GetItem", mock.Anything, getItemForKey("session_id", "as-1")).
		Return(sessionOut(t, testAuthSession("as-1")), nil).Once()

	s, err := repo.GetActive(context.Background(), "as-1")
	require.NoError(t, err)
	assert.Equal(t, "as-1", s.SessionID)
	assert.Equal(t, domain.IntentRegister, s.Intent)
}
