package persist

import (
	"testing"
	"time"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	state := &State{Entries: []StateEntry{
		{
			Host:      "example.com",
			Family:    "v4",
			Addrs:     []string{"1.2.3.4", "5.6.7.8"},
			FetchedAt: time.Unix(1000, 0).UTC(),
			ExpiresAt: time.Unix(1300, 0).UTC(),
		},
	}}

	blob, err := Marshal(state)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := Unmarshal(blob)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(got.Entries))
	}
	if got.Entries[0].Host != "example.com" || len(got.Entries[0].Addrs) != 2 {
		t.Errorf("entry mismatch: %+v", got.Entries[0])
	}
}

func TestUnmarshalEmptyBlob(t *testing.T) {
	state, err := Unmarshal(nil)
	if err != nil {
		t.Fatalf("Unmarshal(nil): %v", err)
	}
	if len(state.Entries) != 0 {
		t.Errorf("expected empty state, got %+v", state)
	}
}
