package archive

import (
	"context"
	"os"
	"testing"

	"github.com/voxform/voxform/pkg/core/types"
)

// Integration test; requires a reachable Postgres.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("VOXFORM_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("VOXFORM_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	record := types.NewRecord([]types.Field{
		{Name: "fullName", Label: "Full Name"},
		{Name: "copay", Label: "Copay"},
	})
	record.Apply(types.FieldUpdate{"fullName": "Jane Doe", "copay": "$20"})
	transcript := types.NewTranscript("Hello!")
	transcript.Append(types.RoleUser, "Patient is Jane Doe, copay $20")

	id, err := store.Save(ctx, "intake", record, transcript)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Mode != "intake" {
		t.Errorf("mode = %q", got.Mode)
	}
	if got.Record["fullName"] != "Jane Doe" || got.Record["copay"] != "$20" {
		t.Errorf("record = %v", got.Record)
	}
	if len(got.Transcript) != 2 || got.Transcript[1].Role != types.RoleUser {
		t.Errorf("transcript = %+v", got.Transcript)
	}

	list, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, e := range list {
		if e.ID == id {
			found = true
		}
	}
	if !found {
		t.Error("saved encounter missing from List")
	}
}
