package models

import "testing"

func TestIDSetValueEquality(t *testing.T) {
	set := NewIDSet(3, 1, 3)
	if set.Len() != 2 {
		t.Fatalf("expected duplicates to collapse, got %d members", set.Len())
	}

	if set.Add(1) {
		t.Fatal("expected adding an existing id to report false")
	}
	if !set.Add(2) {
		t.Fatal("expected adding a new id to report true")
	}

	got := set.Slice()
	want := []int64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("unexpected members: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected sorted members %v got %v", want, got)
		}
	}
}

func TestIDSetRemove(t *testing.T) {
	set := NewIDSet(7)
	if !set.Remove(7) {
		t.Fatal("expected removal of member to report true")
	}
	if set.Remove(7) {
		t.Fatal("expected second removal to report false")
	}
	if set.Has(7) {
		t.Fatal("expected id to be gone")
	}
}

func TestIDSetNilSafeReads(t *testing.T) {
	var set IDSet
	if set.Has(1) {
		t.Fatal("nil set should not contain anything")
	}
	if got := set.Slice(); len(got) != 0 {
		t.Fatalf("expected empty slice got %v", got)
	}
}

func TestNewUserInitialisesSets(t *testing.T) {
	user := NewUser("neo", "hash", "key")
	if user.FavoriteActors == nil || user.WatchedMovies == nil {
		t.Fatal("expected sets to be initialised")
	}
	user.FavoriteActors.Add(6384)
	if !user.FavoriteActors.Has(6384) {
		t.Fatal("expected actor to be added")
	}
}
