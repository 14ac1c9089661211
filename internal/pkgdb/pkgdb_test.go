package pkgdb

import (
	"reflect"
	"testing"

	"github.com/rdavison/dune/internal/stanza"
)

func testDB() *DB {
	db := New()
	db.Register(Entry{Pkg: stanza.Package{Name: "base"}})
	db.Register(Entry{Pkg: stanza.Package{Name: "stdio"}, Deps: []string{"base"}})
	db.Register(Entry{Pkg: stanza.Package{Name: "lwt"}, Deps: []string{"stdio"}, PpxRuntimeDeps: []string{"base"}})
	return db
}

func TestClosureFirstOccurrenceOrder(t *testing.T) {
	db := testDB()
	got, err := db.Closure([]string{"lwt", "stdio"})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, p := range got {
		names = append(names, p.Name)
	}
	if want := []string{"lwt", "stdio", "base"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("got %v, want %v", names, want)
	}
}

func TestClosureNotFound(t *testing.T) {
	db := testDB()
	if _, err := db.Closure([]string{"missing"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestClosedPpxRuntimeDepsOf(t *testing.T) {
	db := testDB()
	got, err := db.ClosedPpxRuntimeDepsOf([]string{"lwt"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "lwt" || got[1].Name != "base" {
		t.Fatalf("got %v", got)
	}
}

func TestFindLatestPicksHighestSemver(t *testing.T) {
	db := New()
	db.Register(Entry{Pkg: stanza.Package{Name: "core.v1", RootName: "core", Version: "v1.0.0"}})
	db.Register(Entry{Pkg: stanza.Package{Name: "core.v2", RootName: "core", Version: "v2.3.0"}})
	got, err := db.FindLatest("core")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "core.v2" {
		t.Fatalf("got %q, want core.v2", got.Name)
	}
}

func TestFindLatestNotFound(t *testing.T) {
	db := testDB()
	if _, err := db.FindLatest("nonexistent"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRootPackageName(t *testing.T) {
	if got := RootPackageName("lwt.unix"); got != "lwt" {
		t.Fatalf("got %q", got)
	}
	if got := RootPackageName("lwt"); got != "lwt" {
		t.Fatalf("got %q", got)
	}
}
