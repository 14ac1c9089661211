package oset

import (
	"reflect"
	"testing"
)

func TestStandardAndUnion(t *testing.T) {
	e := Union(Standard(), Literal("-w", "-40"))
	got, err := e.Eval([]string{"-g"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"-g", "-w", "-40"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDiff(t *testing.T) {
	e := Diff(Literal("a", "b", "c"), Literal("b"))
	got, err := e.Eval(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDedupFirstOccurrence(t *testing.T) {
	e := Union(Literal("a", "b"), Literal("b", "c"))
	got, err := e.Eval(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFromFileLifting(t *testing.T) {
	e := FromFile("flags.txt")
	if got := e.ReferencedFiles(); len(got) != 1 || got[0] != "flags.txt" {
		t.Fatalf("ReferencedFiles() = %v", got)
	}
	got, err := e.Eval(nil, func(path string) (string, error) {
		return "-a  -b\n-c", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"-a", "-b", "-c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
