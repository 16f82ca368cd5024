package document

import (
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestNewMongoDBExecutor_RequiresAdapter(t *testing.T) {
	if _, err := NewMongoDBExecutor(nil); err == nil {
		t.Fatal("expected error for nil adapter")
	}
}

func TestWithPaging(t *testing.T) {
	base := mongo.Pipeline{{{Key: "$match", Value: bson.M{"a": 1}}}}

	got := withPaging(base, bson.D{{Key: "name", Value: -1}}, 5, 10)
	want := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"a": 1}}},
		{{Key: "$sort", Value: bson.D{{Key: "name", Value: -1}}}},
		{{Key: "$skip", Value: int64(5)}},
		{{Key: "$limit", Value: int64(10)}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("withPaging = %v, want %v", got, want)
	}
	if len(base) != 1 {
		t.Fatal("withPaging must not modify its input")
	}
	if got := withPaging(base, nil, 0, 0); len(got) != 1 {
		t.Fatalf("zero paging must add no stages, got %v", got)
	}
}

func TestGroupCount(t *testing.T) {
	tests := []struct {
		name    string
		groups  []bson.M
		want    int64
		wantErr bool
	}{
		{name: "no groups", groups: nil, want: 0},
		{name: "int32", groups: []bson.M{{"count": int32(7)}}, want: 7},
		{name: "int64", groups: []bson.M{{"count": int64(8)}}, want: 8},
		{name: "double", groups: []bson.M{{"count": float64(9)}}, want: 9},
		{name: "unexpected", groups: []bson.M{{"count": "9"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := groupCount(tt.groups)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Fatalf("groupCount() = %d, %v", got, err)
			}
		})
	}

	stage := countStage()
	if stage[0].Key != "$group" {
		t.Fatalf("countStage = %v", stage)
	}
}

func TestToBSON(t *testing.T) {
	if got := toBSON(nil); got == nil || len(got) != 0 {
		t.Fatalf("toBSON(nil) = %#v, want empty document", got)
	}
	if got := toBSON(Filter{"a": 1}); got["a"] != 1 {
		t.Fatalf("toBSON() = %v", got)
	}
	if firstPositive(0, -1, 3, 4) != 3 || firstPositive() != 0 {
		t.Fatal("firstPositive returned the wrong value")
	}
}
