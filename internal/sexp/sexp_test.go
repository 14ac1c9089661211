package sexp

import (
	"reflect"
	"testing"
)

func TestRoundTripStringList(t *testing.T) {
	v := StringList([]string{"alpha", "beta", "gamma"})
	data := Format(v)
	got, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	ss, err := got.Strings()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"alpha", "beta", "gamma"}; !reflect.DeepEqual(ss, want) {
		t.Fatalf("got %v, want %v", ss, want)
	}
}

func TestRoundTripEmptyList(t *testing.T) {
	v := StringList(nil)
	data := Format(v)
	got, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	ss, err := got.Strings()
	if err != nil {
		t.Fatal(err)
	}
	if len(ss) != 0 {
		t.Fatalf("got %v, want empty", ss)
	}
}

func TestQuotingOfSpecialAtoms(t *testing.T) {
	v := StringList([]string{"has space", "plain"})
	data := Format(v)
	got, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	ss, err := got.Strings()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"has space", "plain"}; !reflect.DeepEqual(ss, want) {
		t.Fatalf("got %v, want %v", ss, want)
	}
}
