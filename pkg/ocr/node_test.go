package ocr

import (
	"reflect"
	"sort"
	"testing"

	"github.com/goccy/go-json"
)

func TestFlattenNested(t *testing.T) {
	n := Sequence{
		Mapping{{Key: "text", Value: Scalar("012345")}},
		Sequence{Sequence{Scalar("a"), Mapping{{Key: "deep", Value: Sequence{Scalar("b")}}}}},
		Scalar("c"),
	}
	got := Flatten(n)
	want := []string{"012345", "a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if out := Flatten(nil); len(out) != 0 {
		t.Fatalf("nil node flattened to %v", out)
	}
}

func TestFromJSONKeepsOnlyStrings(t *testing.T) {
	var doc any
	raw := `[[[[1,2],[3,4]],["00123",0.98]],{"rec_texts":["A1B2","x"],"score":0.5,"ok":true,"none":null}]`
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatal(err)
	}
	got := Flatten(FromJSON(doc))
	sort.Strings(got)
	want := []string{"00123", "A1B2", "x"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
