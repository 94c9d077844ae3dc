package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alexiswl/poreduck/internal/logging"
	"github.com/alexiswl/poreduck/internal/queue"
)

func TestRecorderObserveItems(t *testing.T) {
	recorder := New()
	fresh := queue.NewItem("a")
	running := queue.NewItem("b")
	if err := running.Extraction.MarkSubmitted(7); err != nil {
		t.Fatalf("submit: %v", err)
	}
	recorder.ObserveItems([]*queue.Item{fresh, running})

	if got := testutil.ToFloat64(recorder.inFlight); got != 1 {
		t.Fatalf("in flight = %v, want 1", got)
	}
	if got := testutil.ToFloat64(recorder.items.WithLabelValues(string(queue.PhaseNew))); got != 1 {
		t.Fatalf("new items = %v, want 1", got)
	}
	if got := testutil.ToFloat64(recorder.items.WithLabelValues(string(queue.PhaseExtractSubmitted))); got != 1 {
		t.Fatalf("extract submitted items = %v, want 1", got)
	}

	recorder.Submitted(queue.StageExtraction)
	recorder.Failed(queue.StageBasecall)
	recorder.PassCompleted()
	if got := testutil.ToFloat64(recorder.submissions.WithLabelValues("extraction")); got != 1 {
		t.Fatalf("submissions = %v", got)
	}
	if got := testutil.ToFloat64(recorder.failures.WithLabelValues("basecall")); got != 1 {
		t.Fatalf("failures = %v", got)
	}
	if got := testutil.ToFloat64(recorder.passes); got != 1 {
		t.Fatalf("passes = %v", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var recorder *Recorder
	recorder.ObserveItems(nil)
	recorder.Submitted(queue.StageExtraction)
	recorder.Failed(queue.StageExtraction)
	recorder.PassCompleted()
	recorder.ObserveCommand("qsub", 1)
	if recorder.Registry() != nil {
		t.Fatal("nil recorder returned a registry")
	}
}

func TestRouterServesMetricsAndHealth(t *testing.T) {
	recorder := New()
	recorder.ObserveCommand("qacct", 0.2)
	server := httptest.NewServer(Router(recorder))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `poreduck_scheduler_command_seconds_count{command="qacct"} 1`) {
		t.Fatalf("metrics output missing histogram:\n%s", body)
	}

	resp, err = http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}
}

func TestServerRunStopsOnCancel(t *testing.T) {
	server, err := NewServer("127.0.0.1:0", New(), logging.NewNop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	resp, err := http.Get("http://" + server.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
