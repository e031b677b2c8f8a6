package pipeline

import (
	"testing"
)

func TestStoreCreateAndGet(t *testing.T) {
	store := NewStore(t.TempDir())

	bs, err := store.Create("b1", "owner/repo", 5)
	if err != nil {
		t.Fatal(err)
	}
	if bs.Status != "pending" || bs.ArtifactCount != 5 {
		t.Errorf("created = %+v", bs)
	}

	got, err := store.Get("b1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "b1" || got.RepoRef != "owner/repo" {
		t.Errorf("got = %+v", got)
	}
}

func TestStoreCreateDuplicate(t *testing.T) {
	store := NewStore(t.TempDir())

	if _, err := store.Create("b1", "owner/repo", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create("b1", "owner/repo", 1); err == nil {
		t.Fatal("duplicate create succeeded")
	}
}

func TestStoreUpdate(t *testing.T) {
	store := NewStore(t.TempDir())

	if _, err := store.Create("b1", "owner/repo", 2); err != nil {
		t.Fatal(err)
	}
	err := store.Update("b1", func(bs *BatchState) {
		bs.Status = "running"
		bs.Accepted = 1
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := store.Get("b1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "running" || got.Accepted != 1 {
		t.Errorf("got = %+v", got)
	}
	if got.UpdatedAt < got.CreatedAt {
		t.Errorf("updated_at %s before created_at %s", got.UpdatedAt, got.CreatedAt)
	}
}

func TestStoreListFiltersAndSorts(t *testing.T) {
	store := NewStore(t.TempDir())

	for _, id := range []string{"b1", "b2", "b3"} {
		if _, err := store.Create(id, "owner/repo", 1); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Update("b2", func(bs *BatchState) { bs.Status = "completed" }); err != nil {
		t.Fatal(err)
	}

	all, err := store.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d batches, want 3", len(all))
	}

	completed, err := store.List("completed")
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 1 || completed[0].ID != "b2" {
		t.Errorf("completed = %+v", completed)
	}
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(t.TempDir())

	if _, err := store.Create("b1", "owner/repo", 1); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("b1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get("b1"); err == nil {
		t.Fatal("deleted batch still readable")
	}
	if err := store.Delete("b1"); err == nil {
		t.Fatal("second delete succeeded")
	}
}

func TestStoreResultRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	if _, err := store.Create("b1", "owner/repo", 1); err != nil {
		t.Fatal(err)
	}
	result := &BatchResult{
		BatchID: "b1",
		RepoRef: "owner/repo",
		Accepted: []ArtifactOutcome{
			{ArtifactID: "a.js", Path: "a.js", Status: StatusAccepted, AttemptCount: 2},
		},
		Publish: PublishResult{Status: PublishSuccess, Reference: "https://example.com/pr/1"},
	}
	if err := store.SaveResult("b1", result); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetResult("b1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Publish.Reference != result.Publish.Reference || len(got.Accepted) != 1 {
		t.Errorf("got = %+v", got)
	}
	if got.Accepted[0].AttemptCount != 2 {
		t.Errorf("attempt count lost: %+v", got.Accepted[0])
	}

	if err := store.SaveResult("missing", result); err == nil {
		t.Fatal("save result for missing batch succeeded")
	}
	if _, err := store.GetResult("missing"); err == nil {
		t.Fatal("get result for missing batch succeeded")
	}
}
