package execution

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "actions.db"), filepath.Join(dir, "actions.lock"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreSaveAndGet(t *testing.T) {
	store := openTestStore(t)

	action := NewAction("act_test1", "withdraw", "mainnet")
	action.Sender = "0xabc"
	action.RequestedAmount = 5000
	action.Record(Attempt{Status: AttemptStatusRejected, Amount: 5000, Error: "withdraw limit exceeded"})
	if err := store.Save(action); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get("act_test1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.IntentType != "withdraw" || got.Sender != "0xabc" || got.RequestedAmount != 5000 {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if len(got.Attempts) != 1 || got.Attempts[0].Seq != 1 {
		t.Fatalf("attempts not preserved: %+v", got.Attempts)
	}
}

func TestStoreUpsert(t *testing.T) {
	store := openTestStore(t)

	action := NewAction("act_up", "borrow", "mainnet")
	if err := store.Save(action); err != nil {
		t.Fatalf("initial save failed: %v", err)
	}
	action.Status = ActionStatusCompleted
	action.ExecutedAmount = 777
	action.Touch()
	if err := store.Save(action); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := store.Get("act_up")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != ActionStatusCompleted || got.ExecutedAmount != 777 {
		t.Fatalf("upsert did not replace payload: %+v", got)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Get("act_nope"); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}

func TestStoreSaveRequiresID(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(Action{}); err == nil {
		t.Fatalf("expected error for missing action id")
	}
}

func TestStoreListFiltersByStatus(t *testing.T) {
	store := openTestStore(t)

	done := NewAction("act_done", "withdraw", "mainnet")
	done.Status = ActionStatusCompleted
	failed := NewAction("act_fail", "borrow", "mainnet")
	failed.Status = ActionStatusFailed
	for _, a := range []Action{done, failed} {
		if err := store.Save(a); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	all, err := store.List("", 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(all))
	}

	completed, err := store.List(string(ActionStatusCompleted), 10)
	if err != nil {
		t.Fatalf("List with status failed: %v", err)
	}
	if len(completed) != 1 || completed[0].ActionID != "act_done" {
		t.Fatalf("status filter wrong: %+v", completed)
	}
}
