package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

const (
	idAttr      = "id"
	versionAttr = "_version"
)

// DynamoStore implements Store on DynamoDB. Every document lives in the
// table named after its collection, keyed by the "id" partition key, and
// carries a numeric "_version" attribute used for optimistic concurrency:
// RunTransaction records the version of every document it reads and commits
// through TransactWriteItems with condition checks on those versions,
// retrying the whole closure when a concurrent writer got there first.
type DynamoStore struct {
	Client      *dynamodb.Client
	TablePrefix string
}

// NewDynamoDBClient initializes the DynamoDB client from the ambient AWS
// configuration.
func NewDynamoDBClient(ctx context.Context) *dynamodb.Client {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(os.Getenv("AWS_REGION")))
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	return dynamodb.NewFromConfig(cfg)
}

func (ds *DynamoStore) tableName(collection string) string {
	if collection == "" {
		return ds.TablePrefix
	}
	return ds.TablePrefix + strings.ToUpper(collection[:1]) + collection[1:]
}

// Get retrieves a document by id.
func (ds *DynamoStore) Get(ctx context.Context, collection, id string) (Document, error) {
	table := ds.tableName(collection)
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &table,
		Key:       keyFor(id),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item from table '%s': %w", table, err)
	}
	if output.Item == nil {
		return nil, ErrNotFound
	}
	doc, _ := itemToDocument(output.Item)
	return doc, nil
}

// Set writes a document. A non-merge Set replaces the item wholesale and is
// meant for fresh documents; merge folds the given fields into the existing
// item.
func (ds *DynamoStore) Set(ctx context.Context, collection, id string, doc Document, merge bool) error {
	table := ds.tableName(collection)

	if !merge {
		_, err := ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: &table,
			Item:      documentToItem(id, doc, 1),
		})
		if err != nil {
			return fmt.Errorf("failed to put item in table '%s': %w", table, err)
		}
		return nil
	}

	expr, names, values := buildUpdateExpression(doc, true)
	_, err := ds.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &table,
		Key:                       keyFor(id),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("failed to merge item in table '%s': %w", table, err)
	}
	return nil
}

// Update mutates fields of an existing document; ErrNotFound if absent.
func (ds *DynamoStore) Update(ctx context.Context, collection, id string, fields Document) error {
	table := ds.tableName(collection)

	expr, names, values := buildUpdateExpression(fields, true)
	names["#id"] = idAttr

	_, err := ds.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &table,
		Key:                       keyFor(id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update item in table '%s': %w", table, err)
	}
	return nil
}

// Delete removes a document; absent documents are a no-op.
func (ds *DynamoStore) Delete(ctx context.Context, collection, id string) error {
	table := ds.tableName(collection)
	_, err := ds.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &table,
		Key:       keyFor(id),
	})
	if err != nil {
		return fmt.Errorf("failed to delete item from table '%s': %w", table, err)
	}
	return nil
}

// filterOperator maps a Filter.Op to its DynamoDB expression operator.
func filterOperator(op string) (string, bool) {
	switch op {
	case "==":
		return "=", true
	case "<=", ">=":
		return op, true
	default:
		return "", false
	}
}

// Query scans the collection with a filter expression built from filters.
func (ds *DynamoStore) Query(ctx context.Context, collection string, filters []Filter, limit int) ([]KeyedDocument, error) {
	table := ds.tableName(collection)

	input := &dynamodb.ScanInput{TableName: &table}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}
	if len(filters) > 0 {
		var exprs []string
		names := map[string]string{}
		values := map[string]types.AttributeValue{}
		for i, f := range filters {
			op, ok := filterOperator(f.Op)
			if !ok {
				return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
			}
			nameKey := fmt.Sprintf("#f%d", i)
			valueKey := fmt.Sprintf(":v%d", i)
			names[nameKey] = f.Field
			values[valueKey] = toAttributeValue(f.Value)
			exprs = append(exprs, fmt.Sprintf("%s %s %s", nameKey, op, valueKey))
		}
		input.FilterExpression = aws.String(strings.Join(exprs, " AND "))
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	output, err := ds.Client.Scan(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to scan table '%s': %w", table, err)
	}

	var out []KeyedDocument
	for _, item := range output.Items {
		doc, _ := itemToDocument(item)
		id, _ := item[idAttr].(*types.AttributeValueMemberS)
		if id == nil {
			continue
		}
		out = append(out, KeyedDocument{ID: id.Value, Doc: doc})
	}
	return out, nil
}

// AtomicIncrement adds delta to a numeric field with an ADD expression,
// creating the item or field as needed.
func (ds *DynamoStore) AtomicIncrement(ctx context.Context, collection, id, field string, delta int) error {
	table := ds.tableName(collection)
	_, err := ds.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &table,
		Key:              keyFor(id),
		UpdateExpression: aws.String("ADD #f :d, #ver :one"),
		ExpressionAttributeNames: map[string]string{
			"#f":   field,
			"#ver": versionAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d":   &types.AttributeValueMemberN{Value: strconv.Itoa(delta)},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to increment %s.%s: %w", table, field, err)
	}
	return nil
}

// RunTransaction executes fn against a buffered view and commits through
// TransactWriteItems, retrying on transaction cancellation.
func (ds *DynamoStore) RunTransaction(ctx context.Context, fn func(tx Txn) error) error {
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &dynTxn{store: ds, ctx: ctx, reads: make(map[string]dynRead)}
		if err := fn(tx); err != nil {
			return err
		}
		if tx.readErr != nil {
			return tx.readErr
		}

		retry, err := ds.commitTxn(ctx, tx)
		if err != nil {
			return err
		}
		if !retry {
			return nil
		}
		log.Printf("store: transaction conflict, retrying (attempt %d)", attempt+1)
	}
	return ErrConflict
}

type dynRead struct {
	collection string
	id         string
	found      bool
	version    int64
	doc        Document
}

type dynTxn struct {
	store   *DynamoStore
	ctx     context.Context
	reads   map[string]dynRead
	ops     []txnOp
	readErr error
}

// Get performs a strongly consistent read and records the observed version.
func (tx *dynTxn) Get(collection, id string) (Document, error) {
	key := txnKey(collection, id)

	read, seen := tx.reads[key]
	if !seen {
		table := tx.store.tableName(collection)
		output, err := tx.store.Client.GetItem(tx.ctx, &dynamodb.GetItemInput{
			TableName:      &table,
			Key:            keyFor(id),
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			tx.readErr = fmt.Errorf("failed to read '%s/%s' in transaction: %w", collection, id, err)
			return nil, tx.readErr
		}
		read = dynRead{collection: collection, id: id}
		if output.Item != nil {
			read.doc, read.version = itemToDocument(output.Item)
			read.found = true
		}
		tx.reads[key] = read
	}

	var base Document
	if read.found {
		base = copyDocument(read.doc)
	}

	for _, op := range tx.ops {
		if op.collection != collection || op.id != id {
			continue
		}
		switch op.kind {
		case opSet:
			base = applyFields(Document{}, op.fields)
		case opUpdate:
			if base != nil {
				base = applyFields(base, op.fields)
			}
		case opDelete:
			base = nil
		}
	}

	if base == nil {
		return nil, ErrNotFound
	}
	return base, nil
}

func (tx *dynTxn) Set(collection, id string, doc Document) {
	tx.ops = append(tx.ops, txnOp{kind: opSet, collection: collection, id: id, fields: copyDocument(doc)})
}

func (tx *dynTxn) Update(collection, id string, fields Document) {
	tx.ops = append(tx.ops, txnOp{kind: opUpdate, collection: collection, id: id, fields: copyDocument(fields)})
}

func (tx *dynTxn) Delete(collection, id string) {
	tx.ops = append(tx.ops, txnOp{kind: opDelete, collection: collection, id: id})
}

// commitTxn builds one TransactWriteItems call: a write per touched key plus
// a ConditionCheck per key that was read but not written. retry=true means
// the transaction was cancelled by a conflicting writer.
func (ds *DynamoStore) commitTxn(ctx context.Context, tx *dynTxn) (retry bool, err error) {
	final := consolidateOps(tx.ops)

	var items []types.TransactWriteItem
	written := make(map[string]bool, len(final))

	for _, op := range final {
		key := txnKey(op.collection, op.id)
		written[key] = true
		table := ds.tableName(op.collection)
		read, wasRead := tx.reads[key]

		switch op.kind {
		case opSet:
			version := int64(1)
			if wasRead && read.found {
				version = read.version + 1
			}
			put := &types.Put{
				TableName: &table,
				Item:      documentToItem(op.id, op.fields, version),
			}
			if wasRead {
				put.ConditionExpression, put.ExpressionAttributeNames, put.ExpressionAttributeValues = versionCondition(read)
			}
			items = append(items, types.TransactWriteItem{Put: put})

		case opUpdate:
			expr, names, values := buildUpdateExpression(op.fields, true)
			update := &types.Update{
				TableName:                 &table,
				Key:                       keyFor(op.id),
				UpdateExpression:          aws.String(expr),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			}
			if wasRead && read.found {
				update.ConditionExpression = aws.String("#ver = :curver")
				values[":curver"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(read.version, 10)}
			} else {
				names["#id"] = idAttr
				update.ConditionExpression = aws.String("attribute_exists(#id)")
			}
			items = append(items, types.TransactWriteItem{Update: update})

		case opDelete:
			del := &types.Delete{
				TableName: &table,
				Key:       keyFor(op.id),
			}
			if wasRead {
				del.ConditionExpression, del.ExpressionAttributeNames, del.ExpressionAttributeValues = versionCondition(read)
			}
			items = append(items, types.TransactWriteItem{Delete: del})
		}
	}

	for key, read := range tx.reads {
		if written[key] {
			continue
		}
		table := ds.tableName(read.collection)
		check := &types.ConditionCheck{
			TableName: &table,
			Key:       keyFor(read.id),
		}
		check.ConditionExpression, check.ExpressionAttributeNames, check.ExpressionAttributeValues = versionCondition(read)
		items = append(items, types.TransactWriteItem{ConditionCheck: check})
	}

	if len(items) == 0 {
		return false, nil
	}

	_, err = ds.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems:      items,
		ClientRequestToken: aws.String(uuid.NewString()),
	})
	if err != nil {
		var cancelled *types.TransactionCanceledException
		if errors.As(err, &cancelled) {
			for _, reason := range cancelled.CancellationReasons {
				if reason.Code != nil && (*reason.Code == "ConditionalCheckFailed" || *reason.Code == "TransactionConflict") {
					return true, nil
				}
			}
		}
		return false, fmt.Errorf("transaction commit failed: %w", err)
	}
	return false, nil
}

// consolidateOps collapses multiple buffered writes to the same key into the
// single action DynamoDB allows per transaction item.
func consolidateOps(ops []txnOp) []txnOp {
	index := make(map[string]int)
	var out []txnOp
	for _, op := range ops {
		key := txnKey(op.collection, op.id)
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, op)
			continue
		}
		prev := out[i]
		switch {
		case op.kind == opSet || op.kind == opDelete:
			out[i] = op
		case prev.kind == opDelete:
			// update after delete degenerates to a set of the fields
			out[i] = txnOp{kind: opSet, collection: op.collection, id: op.id, fields: op.fields}
		default:
			out[i].fields = applyFields(prev.fields, op.fields)
		}
	}
	return out
}

func versionCondition(read dynRead) (*string, map[string]string, map[string]types.AttributeValue) {
	if !read.found {
		return aws.String("attribute_not_exists(#id)"), map[string]string{"#id": idAttr}, nil
	}
	return aws.String("#ver = :ver"),
		map[string]string{"#ver": versionAttr},
		map[string]types.AttributeValue{
			":ver": &types.AttributeValueMemberN{Value: strconv.FormatInt(read.version, 10)},
		}
}

func keyFor(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		idAttr: &types.AttributeValueMemberS{Value: id},
	}
}

// buildUpdateExpression turns a fields document into SET/REMOVE clauses.
// Nil values become REMOVE; withVersion appends a version bump.
func buildUpdateExpression(fields Document, withVersion bool) (string, map[string]string, map[string]types.AttributeValue) {
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var sets, removes []string

	i := 0
	for field, value := range fields {
		nameKey := fmt.Sprintf("#a%d", i)
		names[nameKey] = field
		if value == nil {
			removes = append(removes, nameKey)
		} else {
			valueKey := fmt.Sprintf(":a%d", i)
			values[valueKey] = toAttributeValue(value)
			sets = append(sets, fmt.Sprintf("%s = %s", nameKey, valueKey))
		}
		i++
	}

	if withVersion {
		names["#ver"] = versionAttr
		values[":verzero"] = &types.AttributeValueMemberN{Value: "0"}
		values[":verone"] = &types.AttributeValueMemberN{Value: "1"}
		sets = append(sets, "#ver = if_not_exists(#ver, :verzero) + :verone")
	}

	var parts []string
	if len(sets) > 0 {
		parts = append(parts, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		parts = append(parts, "REMOVE "+strings.Join(removes, ", "))
	}
	return strings.Join(parts, " "), names, values
}

// documentToItem marshals a document plus its id and version attributes.
func documentToItem(id string, doc Document, version int64) map[string]types.AttributeValue {
	item := make(map[string]types.AttributeValue, len(doc)+2)
	for field, value := range doc {
		if value == nil {
			continue
		}
		item[field] = toAttributeValue(value)
	}
	item[idAttr] = &types.AttributeValueMemberS{Value: id}
	item[versionAttr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)}
	return item
}

// itemToDocument unmarshals an item, stripping the id and version attributes.
func itemToDocument(item map[string]types.AttributeValue) (Document, int64) {
	doc := make(Document, len(item))
	var version int64
	for field, attr := range item {
		switch field {
		case idAttr:
			continue
		case versionAttr:
			if n, ok := attr.(*types.AttributeValueMemberN); ok {
				version, _ = strconv.ParseInt(n.Value, 10, 64)
			}
			continue
		}
		doc[field] = fromAttributeValue(attr)
	}
	return doc, version
}

// toAttributeValue converts a document value to its DynamoDB representation.
// Timestamps are stored as epoch milliseconds so range filters order them
// correctly.
func toAttributeValue(v interface{}) types.AttributeValue {
	switch t := v.(type) {
	case string:
		return &types.AttributeValueMemberS{Value: t}
	case bool:
		return &types.AttributeValueMemberBOOL{Value: t}
	case int:
		return &types.AttributeValueMemberN{Value: strconv.Itoa(t)}
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(t, 10)}
	case float64:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(t, 'g', -1, 64)}
	case time.Time:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)}
	case []string:
		list := make([]types.AttributeValue, len(t))
		for i, s := range t {
			list[i] = &types.AttributeValueMemberS{Value: s}
		}
		return &types.AttributeValueMemberL{Value: list}
	case []interface{}:
		list := make([]types.AttributeValue, len(t))
		for i, item := range t {
			list[i] = toAttributeValue(item)
		}
		return &types.AttributeValueMemberL{Value: list}
	case map[string]interface{}:
		m := make(map[string]types.AttributeValue, len(t))
		for k, item := range t {
			if item == nil {
				continue
			}
			m[k] = toAttributeValue(item)
		}
		return &types.AttributeValueMemberM{Value: m}
	default:
		return &types.AttributeValueMemberNULL{Value: true}
	}
}

func fromAttributeValue(attr types.AttributeValue) interface{} {
	switch t := attr.(type) {
	case *types.AttributeValueMemberS:
		return t.Value
	case *types.AttributeValueMemberBOOL:
		return t.Value
	case *types.AttributeValueMemberN:
		if n, err := strconv.ParseInt(t.Value, 10, 64); err == nil {
			return n
		}
		f, _ := strconv.ParseFloat(t.Value, 64)
		if f == math.Trunc(f) {
			return int64(f)
		}
		return f
	case *types.AttributeValueMemberL:
		list := make([]interface{}, len(t.Value))
		for i, item := range t.Value {
			list[i] = fromAttributeValue(item)
		}
		return list
	case *types.AttributeValueMemberM:
		m := make(map[string]interface{}, len(t.Value))
		for k, item := range t.Value {
			m[k] = fromAttributeValue(item)
		}
		return m
	default:
		return nil
	}
}
