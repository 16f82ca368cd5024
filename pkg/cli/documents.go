package cli

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nimburion/docrepo/pkg/repository/document"
)

// parseFilter decodes an Extended JSON object. An empty string yields a nil filter.
func parseFilter(s string) (document.Filter, error) {
	if s == "" {
		return nil, nil
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON([]byte(s), false, &m); err != nil {
		return nil, fmt.Errorf("invalid filter document: %w", err)
	}
	return document.Filter(m), nil
}

// parsePipeline decodes an Extended JSON array of stages.
func parsePipeline(s string) (mongo.Pipeline, error) {
	var wrapper struct {
		Stages []bson.D `bson:"stages"`
	}
	if err := bson.UnmarshalExtJSON([]byte(`{"stages":`+s+`}`), false, &wrapper); err != nil {
		return nil, fmt.Errorf("invalid pipeline: %w", err)
	}
	if wrapper.Stages == nil {
		return mongo.Pipeline{}, nil
	}
	return mongo.Pipeline(wrapper.Stages), nil
}

// parseDocuments decodes an Extended JSON array of documents for insertion.
func parseDocuments(data []byte) ([]interface{}, error) {
	var wrapper struct {
		Docs []bson.D `bson:"docs"`
	}
	if err := bson.UnmarshalExtJSON([]byte(`{"docs":`+string(data)+`}`), false, &wrapper); err != nil {
		return nil, fmt.Errorf("invalid documents: %w", err)
	}
	docs := make([]interface{}, len(wrapper.Docs))
	for i, d := range wrapper.Docs {
		docs[i] = d
	}
	return docs, nil
}

// queryParams turns command-line flags into a raw parameter bag.
func queryParams(filter string, skip, limit int64, order []string) map[string]interface{} {
	raw := map[string]interface{}{}
	if filter != "" {
		raw[document.ParamFilter] = filter
	}
	if skip != 0 {
		raw[document.ParamSkip] = skip
	}
	if limit != 0 {
		raw[document.ParamLimit] = limit
	}
	switch len(order) {
	case 0:
	case 1:
		raw[document.ParamOrder] = order[0]
	default:
		raw[document.ParamOrder] = append([]string(nil), order...)
	}
	return raw
}

// extJSON renders a document as relaxed Extended JSON.
func extJSON(doc bson.M) (json.RawMessage, error) {
	if doc == nil {
		doc = bson.M{}
	}
	out, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return json.RawMessage(out), nil
}

func extJSONList(docs []bson.M) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		raw, err := extJSON(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

// pageOutput is the printable form of a page.
type pageOutput struct {
	Data  []json.RawMessage `json:"data"`
	Total int64             `json:"total"`
}

func newPageOutput(page document.Page[bson.M]) (pageOutput, error) {
	data, err := extJSONList(page.Data)
	if err != nil {
		return pageOutput{}, err
	}
	return pageOutput{Data: data, Total: page.Total}, nil
}
