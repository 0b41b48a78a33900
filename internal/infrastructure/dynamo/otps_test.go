package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-bookstore-admin/internal/domain"
)

// --- mock DynamoDB client ---

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.GetItemOutput), args.Error(1)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.UpdateItemOutput), args.Error(1)
}

func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.DeleteItemOutput), args.Error(1)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.QueryOutput), args.Error(1)
}

func (m *mockAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.ScanOutput), args.Error(1)
}

func (m *mockAPI) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.BatchWriteItemOutput), args.Error(1)
}

func (m *mockAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.TransactWriteItemsOutput), args.Error(1)
}

// --- helpers ---

// getItemForKey matches a GetItem call by its primary key value.
func getItemForKey(attr, value string) interface{} {
	return mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		k, ok := in.Key[attr].(*types.AttributeValueMemberS)
		return ok && k.Value == value
	})
}

// markerOut builds a GetItem response for a marker row; ptr "" means the
// marker does not exist.
func markerOut(ptrAttr, ptr string) *dynamodb.GetItemOutput {
	if ptr == "" {
		return &dynamodb.GetItemOutput{}
	}
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		ptrAttr: &types.AttributeValueMemberS{Value: ptr},
	}}
}

func otpOut(t *testing.T, o *domain.OneTimePasscode) *dynamodb.GetItemOutput {
	t.Helper()
	item, err := attributevalue.MarshalMap(o)
	require.NoError(t, err)
	return &dynamodb.GetItemOutput{Item: item}
}

func testOtp(id string) *domain.OneTimePasscode {
	now := time.Now().UTC()
	return &domain.OneTimePasscode{
		OtpID:     id,
		Email:     "a@b.com",
		Intent:    domain.IntentLogin,
		CodeHash:  "hash",
		Used:      false,
		ExpiresAt: now.Add(10 * time.Minute).Unix(),
		CreatedAt: now,
	}
}

// raceCancel is the error DynamoDB returns when the marker condition fails
// because another writer committed first.
func raceCancel() error {
	return &types.TransactionCanceledException{
		Message: aws.String("Transaction cancelled"),
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
			{Code: aws.String("None")},
		},
	}
}

const otpMarker = "key#a@b.com#login"

// --- CreateAndInvalidateOld ---

func TestOtpCreateAndInvalidateOld_FirstCode(t *testing.T) {
	m := &mockAPI{}
	repo := NewOtpRepo(m, "otps")

	m.On("GetItem", mock.Anything, getItemForKey("otp_id", otpMarker)).
		Return(markerOut(unusedPtrAttr, ""), nil).Once()

	var captured *dynamodb.TransactWriteItemsInput
	m.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*dynamodb.TransactWriteItemsInput)
		}).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	err := repo.CreateAndInvalidateOld(context.Background(), testOtp("otp-1"))
	require.NoError(t, err)

	// No prior to invalidate: marker swap plus the new row.
	require.Len(t, captured.TransactItems, 2)
	swap := captured.TransactItems[0].Update
	require.NotNil(t, swap)
	assert.Contains(t, *swap.ConditionExpression, "attribute_not_exists")
	assert.Equal(t, "otp-1", captured.TransactItems[0].Update.ExpressionAttributeValues[":next"].(*types.AttributeValueMemberS).Value)
	require.NotNil(t, captured.TransactItems[1].Put)
	m.AssertExpectations(t)
}

func TestOtpCreateAndInvalidateOld_SupersedesPrior(t *testing.T) {
	m := &mockAPI{}
	repo := NewOtpRepo(m, "otps")

	m.On("GetItem", mock.Anything, getItemForKey("otp_id", otpMarker)).
		Return(markerOut(unusedPtrAttr, "otp-1"), nil).Once()
	m.On("GetItem", mock.Anything, getItemForKey("otp_id", "otp-1")).
		Return(otpOut(t, testOtp("otp-1")), nil).Once()

	var captured *dynamodb.TransactWriteItemsInput
	m.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*dynamodb.TransactWriteItemsInput)
		}).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	err := repo.CreateAndInvalidateOld(context.Background(), testOtp("otp-2"))
	require.NoError(t, err)

	// Marker swap, prior marked used, new row put: one transaction.
	require.Len(t, captured.TransactItems, 3)

	swap := captured.TransactItems[0].Update
	assert.Equal(t, "otp-1", swap.ExpressionAttributeValues[":seen"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "otp-2", swap.ExpressionAttributeValues[":next"].(*types.AttributeValueMemberS).Value)

	invalidate := captured.TransactItems[1].Update
	require.NotNil(t, invalidate)
	assert.Equal(t, "otp-1", invalidate.Key["otp_id"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "SET #u = :t", *invalidate.UpdateExpression)
	assert.True(t, invalidate.ExpressionAttributeValues[":t"].(*types.AttributeValueMemberBOOL).Value)

	put := captured.TransactItems[2].Put
	require.NotNil(t, put)
	assert.Equal(t, "otp-2", put.Item["otp_id"].(*types.AttributeValueMemberS).Value)
	assert.False(t, put.Item["used"].(*types.AttributeValueMemberBOOL).Value)
	m.AssertExpectations(t)
}

func TestOtpCreateAndInvalidateOld_PriorAlreadyUsed(t *testing.T) {
	m := &mockAPI{}
	repo := NewOtpRepo(m, "otps")

	used := testOtp("otp-1")
	used.Used = true
	m.On("GetItem", mock.Anything, getItemForKey("otp_id", otpMarker)).
		Return(markerOut(unusedPtrAttr, "otp-1"), nil).Once()
	m.On("GetItem", mock.Anything, getItemForKey("otp_id", "otp-1")).
		Return(otpOut(t, used), nil).Once()

	var captured *dynamodb.TransactWriteItemsInput
	m.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*dynamodb.TransactWriteItemsInput)
		}).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	err := repo.CreateAndInvalidateOld(context.Background(), testOtp("otp-2"))
	require.NoError(t, err)

	// The consumed prior needs no invalidation.
	require.Len(t, captured.TransactItems, 2)
	require.NotNil(t, captured.TransactItems[1].Put)
}

func TestOtpCreateAndInvalidateOld_RetriesAfterLosingRace(t *testing.T) {
	m := &mockAPI{}
	repo := NewOtpRepo(m, "otps")

	// First pass observes no marker; the commit fails because a concurrent
	// writer created one. The retry sees the winner's row and supersedes it.
	m.On("GetItem", mock.Anything, getItemForKey("otp_id", otpMarker)).
		Return(markerOut(unusedPtrAttr, ""), nil).Once()
	m.On("TransactWriteItems", mock.Anything, mock.Anything).
		Return(nil, raceCancel()).Once()

	m.On("GetItem", mock.Anything, getItemForKey("otp_id", otpMarker)).
		Return(markerOut(unusedPtrAttr, "winner"), nil).Once()
	m.On("GetItem", mock.Anything, getItemForKey("otp_id", "winner")).
		Return(otpOut(t, testOtp("winner")), nil).Once()

	var captured *dynamodb.TransactWriteItemsInput
	m.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*dynamodb.TransactWriteItemsInput)
		}).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	err := repo.CreateAndInvalidateOld(context.Background(), testOtp("otp-2"))
	require.NoError(t, err)

	// The committed transaction marks the winner's row used, so exactly one
	// unused row remains for the key.
	require.Len(t, captured.TransactItems, 3)
	assert.Equal(t, "winner", captured.TransactItems[1].Update.Key["otp_id"].(*types.AttributeValueMemberS).Value)
	m.AssertExpectations(t)
}

func TestOtpCreateAndInvalidateOld_GivesUpAfterRepeatedRaces(t *testing.T) {
	m := &mockAPI{}
	repo := NewOtpRepo(m, "otps")

	m.On("GetItem", mock.Anything, getItemForKey("otp_id", otpMarker)).
		Return(markerOut(unusedPtrAttr, ""), nil)
	m.On("TransactWriteItems", mock.Anything, mock.Anything).
		Return(nil, raceCancel())

	err := repo.CreateAndInvalidateOld(context.Background(), testOtp("otp-2"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	m.AssertNumberOfCalls(t, "TransactWriteItems", supersedeAttempts)
}

func TestOtpCreateAndInvalidateOld_PropagatesOtherErrors(t *testing.T) {
	m := &mockAPI{}
	repo := NewOtpRepo(m, "otps")

	m.On("GetItem", mock.Anything, getItemForKey("otp_id", otpMarker)).
		Return(markerOut(unusedPtrAttr, ""), nil).Once()
	m.On("TransactWriteItems", mock.Anything, mock.Anything).
		Return(nil, errors.New("throttled")).Once()

	err := repo.CreateAndInvalidateOld(context.Background(), testOtp("otp-2"))
	require.Error(t, err)
	m.AssertNumberOfCalls(t, "TransactWriteItems", 1)
}

// --- GetActive ---

func TestOtpGetActive_NoMarker(t *testing.T) {
	m := &mockAPI{}
	repo := NewOtpRepo(m, "otps")

	m.On("GetItem", mock.Anything, getItemForKey("otp_id", otpMarker)).
		Return(markerOut(unusedPtrAttr, ""), nil).Once()

	_, err := repo.GetActive(context.Background(), "a@b.com", domain.IntentLogin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestOtpGetActive_UsedRow(t *testing.T) {
	m := &mockAPI{}
	repo := NewOtpRepo(m, "otps")

	used := testOtp("otp-1")
	used.Used = true
	m.On("GetItem", mock.Anything, getItemForKey("otp_id", otpMarker)).
		Return(markerOut(unusedPtrAttr, "otp-1"), nil).Once()
	m.On("GetItem", mock.Anything, getItemForKey("otp_id", "otp-1")).
		Return(otpOut(t, used), nil).Once()

	_, err := repo.GetActive(context.Background(), "a@b.com", domain.IntentLogin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestOtpGetActive_SweptRow(t *testing.T) {
	m := &mockAPI{}
	repo := NewOtpRepo(m, "otps")

	// Marker points at a row the cleanup job already deleted.
	m.On("GetItem", mock.Anything, getItemForKey("otp_id", otpMarker)).
		Return(markerOut(unusedPtrAttr, "otp-1"), nil).Once()
	m.On("GetItem", mock.Anything, getItemForKey("otp_id", "otp-1")).
		Return(&dynamodb.GetItemOutput{}, nil).Once()

	_, err := repo.GetActive(context.Background(), "a@b.com", domain.IntentLogin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestOtpGetActive_HappyPath(t *testing.T) {
	m := &mockAPI{}
	repo := NewOtpRepo(m, "otps")

	m.On("GetItem", mock.Anything, getItemForKey("otp_id", otpMarker)).
		Return(markerOut(unusedPtrAttr, "otp-1"), nil).Once()
	m.On("GetItem", mock.Anything, getItemForKey("otp_id", "otp-1")).
		Return(otpOut(t, testOtp("otp-1")), nil).Once()

	o, err := repo.GetActive(context.Background(), "a@b.com", domain.IntentLogin)
	require.NoError(t, err)
	assert.Equal(t, "otp-1", o.OtpID)
	assert.False(t, o.Used)
}
