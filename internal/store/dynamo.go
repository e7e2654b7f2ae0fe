package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"thea/api/internal/docpath"
)

// Dynamo implements Store on DynamoDB, the production layout: one table per
// logical collection, partition+sort key per aggregate, one secondary index
// per table for non-key lookups.
type Dynamo struct {
	client *dynamodb.Client
}

type DynamoConfig struct {
	Region   string
	Endpoint string // optional, for DynamoDB Local
}

func NewDynamo(ctx context.Context, cfg DynamoConfig) (*Dynamo, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Endpoint != "" {
		// DynamoDB Local accepts any static credentials.
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Dynamo{client: client}, nil
}

func NewDynamoWithClient(client *dynamodb.Client) *Dynamo {
	return &Dynamo{client: client}
}

func (d *Dynamo) Get(ctx context.Context, table string, key Key, paths []string) (Document, error) {
	input := &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            marshalKey(key),
		ConsistentRead: aws.Bool(true),
	}
	if len(paths) > 0 {
		projection, names := projectionExpression(paths)
		input.ProjectionExpression = aws.String(projection)
		input.ExpressionAttributeNames = names
	}

	out, err := d.client.GetItem(ctx, input)
	if err != nil {
		return nil, mapDynamoError("get", table, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("get %s %v: %w", table, key, ErrNotFound)
	}
	var doc Document
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal %s item: %w", table, err)
	}
	return doc, nil
}

func (d *Dynamo) Put(ctx context.Context, table string, key Key, doc Document) error {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("marshal %s item: %w", table, err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return mapDynamoError("put", table, err)
	}
	return nil
}

func (d *Dynamo) Update(ctx context.Context, table string, key Key, set map[string]any, remove []string) error {
	if len(set) == 0 && len(remove) == 0 {
		return fmt.Errorf("update %s %v: empty expression: %w", table, key, ErrValidation)
	}

	names := map[string]string{}
	values := map[string]ddbtypes.AttributeValue{}
	var clauses []string

	if len(set) > 0 {
		assignments := make([]string, 0, len(set))
		i := 0
		for _, path := range sortedPaths(set) {
			value, err := attributevalue.Marshal(set[path])
			if err != nil {
				return fmt.Errorf("marshal value at %s: %w", path, err)
			}
			placeholder := fmt.Sprintf(":v%d", i)
			values[placeholder] = value
			assignments = append(assignments, fmt.Sprintf("%s = %s", namedPath(path, fmt.Sprintf("s%d", i), names), placeholder))
			i++
		}
		clauses = append(clauses, "SET "+strings.Join(assignments, ", "))
	}
	if len(remove) > 0 {
		targets := make([]string, 0, len(remove))
		for i, path := range remove {
			targets = append(targets, namedPath(path, fmt.Sprintf("r%d", i), names))
		}
		clauses = append(clauses, "REMOVE "+strings.Join(targets, ", "))
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(table),
		Key:                      marshalKey(key),
		UpdateExpression:         aws.String(strings.Join(clauses, " ")),
		ExpressionAttributeNames: names,
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}

	if _, err := d.client.UpdateItem(ctx, input); err != nil {
		return mapDynamoError("update", table, err)
	}
	return nil
}

func (d *Dynamo) Query(ctx context.Context, table, index, value string, paths []string) ([]Document, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(table),
		IndexName:              aws.String(index),
		KeyConditionExpression: aws.String("#idx = :idxval"),
		ExpressionAttributeNames: map[string]string{
			"#idx": index,
		},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":idxval": &ddbtypes.AttributeValueMemberS{Value: value},
		},
	}
	if len(paths) > 0 {
		projection, names := projectionExpression(paths)
		input.ProjectionExpression = aws.String(projection)
		for placeholder, name := range names {
			input.ExpressionAttributeNames[placeholder] = name
		}
	}

	var docs []Document
	paginator := dynamodb.NewQueryPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapDynamoError("query", table, err)
		}
		for _, item := range page.Items {
			var doc Document
			if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
				return nil, fmt.Errorf("unmarshal %s item: %w", table, err)
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func marshalKey(key Key) map[string]ddbtypes.AttributeValue {
	out := make(map[string]ddbtypes.AttributeValue, len(key))
	for name, value := range key {
		out[name] = &ddbtypes.AttributeValueMemberS{Value: value}
	}
	return out
}

// namedPath rewrites a dotted path with attribute-name placeholders, since
// segment values (generated IDs) and reserved words can't appear literally in
// an expression.
func namedPath(path, tag string, names map[string]string) string {
	segments := docpath.Split(path)
	placeholders := make([]string, len(segments))
	for i, segment := range segments {
		placeholder := fmt.Sprintf("#%s_%d", tag, i)
		names[placeholder] = segment
		placeholders[i] = placeholder
	}
	return strings.Join(placeholders, ".")
}

func projectionExpression(paths []string) (string, map[string]string) {
	names := map[string]string{}
	parts := make([]string, 0, len(paths))
	for i, path := range paths {
		parts = append(parts, namedPath(path, fmt.Sprintf("p%d", i), names))
	}
	return strings.Join(parts, ", "), names
}

func sortedPaths(set map[string]any) []string {
	paths := make([]string, 0, len(set))
	for path := range set {
		paths = append(paths, path)
	}
	// Deterministic expression text keeps logs and retries comparable.
	sort.Strings(paths)
	return paths
}

// mapDynamoError folds SDK failures into the closed error set callers switch
// on. Anything unrecognized stays a store failure.
func mapDynamoError(op, table string, err error) error {
	var notFound *ddbtypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%s %s: %w", op, table, ErrNotFound)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ValidationException", "ConditionalCheckFailedException":
			return fmt.Errorf("%s %s: %s: %w", op, table, apiErr.ErrorMessage(), ErrValidation)
		}
	}
	return fmt.Errorf("%s %s: %w", op, table, err)
}
