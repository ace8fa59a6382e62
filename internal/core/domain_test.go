package core

import (
	"testing"
	"time"
)

func TestContainerKey(t *testing.T) {
	if Ungrouped.IsGroup() {
		t.Fatalf("ungrouped sentinel must not be a group key")
	}
	k := GroupKey(7)
	if !k.IsGroup() {
		t.Fatalf("expected group key")
	}
	id, ok := k.GroupID()
	if !ok || id != 7 {
		t.Fatalf("expected group id 7, got %d ok=%v", id, ok)
	}
	if k == Ungrouped {
		t.Fatalf("group key must not equal the ungrouped sentinel")
	}
	// A group with id 0 still differs from the sentinel.
	if GroupKey(0) == Ungrouped {
		t.Fatalf("group key 0 collides with ungrouped sentinel")
	}
	if Ungrouped.String() != "ungrouped" {
		t.Fatalf("unexpected sentinel string %q", Ungrouped.String())
	}
}

func TestGroupValidate(t *testing.T) {
	cases := []struct {
		g  Group
		ok bool
	}{
		{Group{ID: 1, Name: "Casa", DisplayOrder: 0}, true},
		{Group{ID: 1, Name: "  ", DisplayOrder: 0}, false},
		{Group{ID: 1, Name: "Casa", DisplayOrder: -1}, false},
	}
	for i, tc := range cases {
		err := tc.g.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestItemValidate(t *testing.T) {
	good := Item{ID: 1, Name: "Supermercato", Container: GroupKey(2)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Item{ID: 1, Name: ""}).Validate(); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestReceiptValidate(t *testing.T) {
	good := Receipt{
		Date:        NewDate(2026, 8, 1),
		Description: "ok",
		Amount:      Money{Cents: 100},
		TypeID:      1,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Receipt{
		{Date: Date{Time: time.Time{}}, Description: "a", Amount: Money{Cents: 1}, TypeID: 1},
		{Date: NewDate(2026, 8, 1), Description: "", Amount: Money{Cents: 1}, TypeID: 1},
		{Date: NewDate(2026, 8, 1), Description: "a", Amount: Money{Cents: 0}, TypeID: 1},
		{Date: NewDate(2026, 8, 1), Description: "a", Amount: Money{Cents: 1}, TypeID: 0},
	}
	for i, r := range bads {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
