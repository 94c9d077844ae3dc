package queue_test

import (
	"testing"

	"github.com/alexiswl/poreduck/internal/queue"
)

func inFlightItem(name string, stage queue.StageName) *queue.Item {
	item := queue.NewItem(name)
	_ = item.Extraction.MarkSubmitted(1)
	if stage == queue.StageBasecall {
		_ = item.Extraction.MarkComplete()
		_ = item.SubmitBasecall(2)
	}
	return item
}

func TestInFlightCount(t *testing.T) {
	idle := queue.NewItem("idle")
	done := inFlightItem("done", queue.StageBasecall)
	_ = done.Basecall.MarkComplete()
	failed := inFlightItem("failed", queue.StageExtraction)
	failed.MarkFailed("retries exhausted")

	items := []*queue.Item{
		idle,
		inFlightItem("extracting", queue.StageExtraction),
		inFlightItem("basecalling", queue.StageBasecall),
		done,
		failed,
	}
	if got := queue.InFlightCount(items); got != 2 {
		t.Fatalf("expected 2 in flight, got %d", got)
	}
}

func TestAdmit(t *testing.T) {
	cases := []struct {
		current, ceiling int
		want             bool
	}{
		{0, 0, true},
		{50, 0, true},
		{0, 1, true},
		{1, 1, false},
		{2, 3, true},
		{4, 3, false},
	}
	for _, tc := range cases {
		if got := queue.Admit(tc.current, tc.ceiling); got != tc.want {
			t.Fatalf("Admit(%d, %d) = %v, want %v", tc.current, tc.ceiling, got, tc.want)
		}
	}
}

func TestGateNeverExceedsCeiling(t *testing.T) {
	gate := queue.Gate{Ceiling: 2}
	var items []*queue.Item
	for i := 0; i < 5; i++ {
		item := queue.NewItem(string(rune('a' + i)))
		items = append(items, item)
		if gate.TryAdmit(items) {
			_ = item.Extraction.MarkSubmitted(queue.JobID(i + 1))
		}
		if got := queue.InFlightCount(items); got > gate.Ceiling {
			t.Fatalf("in flight %d exceeds ceiling %d", got, gate.Ceiling)
		}
	}
	if got := queue.InFlightCount(items); got != 2 {
		t.Fatalf("expected ceiling to be reached, got %d", got)
	}
}

func TestItemsCollection(t *testing.T) {
	items, err := queue.NewItems(queue.NewItem("b"), queue.NewItem("a"))
	if err != nil {
		t.Fatalf("NewItems: %v", err)
	}
	if err := items.Add(queue.NewItem("a")); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
	if items.Done() || items.JobsDone() {
		t.Fatal("expected unfinished items")
	}
	snapshot := items.Snapshot()
	if snapshot[0].Name != "a" {
		t.Fatalf("expected snapshot sorted by name, got %s", snapshot[0].Name)
	}
	snapshot[0].FolderRemoved = true
	if got, _ := items.Get("a"); got.FolderRemoved {
		t.Fatal("snapshot must not alias tracked items")
	}
	for _, item := range items.All() {
		item.MarkFailed("x")
	}
	if !items.Done() || !items.JobsDone() {
		t.Fatal("expected failed items to count as finished")
	}
	if items.PhaseCounts()[queue.PhaseFailed] != 2 {
		t.Fatalf("unexpected phase counts %v", items.PhaseCounts())
	}
}
