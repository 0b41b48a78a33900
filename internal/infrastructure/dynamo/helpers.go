package dynamo

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// buildUpdateExpr converts a map of field->value into a DynamoDB SET
// expression. Keys are sorted so the expression is deterministic.
func buildUpdateExpr(updates map[string]interface{}) (expr string, names map[string]string, values map[string]types.AttributeValue, err error) {
	if len(updates) == 0 {
		return "", nil, nil, fmt.Errorf("no fields to update")
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names = make(map[string]string)
	values = make(map[string]types.AttributeValue)
	expr = "SET "
	for i, k := range keys {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		names[nameKey] = k
		av, mErr := attributevalue.Marshal(updates[k])
		if mErr != nil {
			return "", nil, nil, fmt.Errorf("marshal field %s: %w", k, mErr)
		}
		values[valueKey] = av
		if i > 0 {
			expr += ", "
		}
		expr += fmt.Sprintf("%s = %s", nameKey, valueKey)
	}
	return expr, names, values, nil
}

// deleteByScan deletes every item matching filterExpr. Used by the cleanup
// jobs, which run out of band, so a full scan is acceptable. Returns the
// number of items deleted.
func deleteByScan(
	ctx context.Context,
	client API,
	tableName, keyAttr, filterExpr string,
	names map[string]string,
	values map[string]types.AttributeValue,
) (int, error) {
	exprNames := map[string]string{"#pk": keyAttr}
	for k, v := range names {
		exprNames[k] = v
	}

	deleted := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(tableName),
			FilterExpression:          aws.String(filterExpr),
			ExpressionAttributeNames:  exprNames,
			ExpressionAttributeValues: values,
			ProjectionExpression:      aws.String("#pk"),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return deleted, fmt.Errorf("scan %s: %w", tableName, err)
		}

		// BatchWriteItem accepts at most 25 requests per call.
		for i := 0; i < len(out.Items); i += 25 {
			end := i + 25
			if end > len(out.Items) {
				end = len(out.Items)
			}
			var reqs []types.WriteRequest
			for _, item := range out.Items[i:end] {
				reqs = append(reqs, types.WriteRequest{
					DeleteRequest: &types.DeleteRequest{
						Key: map[string]types.AttributeValue{keyAttr: item[keyAttr]},
					},
				})
			}
			_, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{tableName: reqs},
			})
			if err != nil {
				return deleted, fmt.Errorf("batch delete %s: %w", tableName, err)
			}
			deleted += end - i
		}

		if out.LastEvaluatedKey == nil {
			return deleted, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// markerID builds the primary key of the per-(email, intent) marker row
// that serializes concurrent writers for a key.
func markerID(email, intent string) string {
	return "key#" + email + "#" + intent
}

// readMarker returns the marker row's pointer attribute, "" when the marker
// does not exist yet. The read is strongly consistent; the pointer is the
// optimistic-lock token for the next write.
func readMarker(ctx context.Context, client API, tableName, pkAttr, id, ptrAttr string) (string, error) {
	out, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(tableName),
		Key:            strKey(pkAttr, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	if out.Item == nil {
		return "", nil
	}
	ptr, ok := out.Item[ptrAttr].(*types.AttributeValueMemberS)
	if !ok {
		return "", nil
	}
	return ptr.Value, nil
}

// markerSwap returns a transact item that moves the marker's pointer from
// seen to next. It fails the whole transaction when another writer committed
// after seen was read.
func markerSwap(tableName, pkAttr, id, ptrAttr, seen, next string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:                aws.String(tableName),
			Key:                      strKey(pkAttr, id),
			UpdateExpression:         aws.String("SET #p = :next"),
			ConditionExpression:      aws.String("attribute_not_exists(#p) OR #p = :seen"),
			ExpressionAttributeNames: map[string]string{"#p": ptrAttr},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":next": &types.AttributeValueMemberS{Value: next},
				":seen": &types.AttributeValueMemberS{Value: seen},
			},
		},
	}
}

// isConditionalCancel reports whether err is a transaction cancelled by a
// failed condition, meaning a concurrent writer committed first.
func isConditionalCancel(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	for _, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

func encodeCursor(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func decodeCursor(cursor string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
