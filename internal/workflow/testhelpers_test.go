package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alexiswl/poreduck/internal/artifacts"
	"github.com/alexiswl/poreduck/internal/config"
	"github.com/alexiswl/poreduck/internal/discovery"
	"github.com/alexiswl/poreduck/internal/logging"
	"github.com/alexiswl/poreduck/internal/queue"
	"github.com/alexiswl/poreduck/internal/sentinel"
	"github.com/alexiswl/poreduck/internal/state"
	"github.com/alexiswl/poreduck/internal/testsupport"
	"github.com/alexiswl/poreduck/internal/workflow"
)

type stubSignals struct {
	mu           sync.Mutex
	transferring bool
	acquired     int
	released     int
	acquireErr   error
}

func (s *stubSignals) Transferring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transferring
}

func (s *stubSignals) setTransferring(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transferring = v
}

func (s *stubSignals) Acquire() (sentinel.Releaser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	s.acquired++
	return releaseFunc(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.released++
		return nil
	}), nil
}

type releaseFunc func() error

func (f releaseFunc) Release() error { return f() }

type stubArtifacts struct {
	removed    []string
	moved      []string
	archived   []string
	merges     int
	removeErr  error
	moveErr    error
	archiveErr error
}

func (a *stubArtifacts) RemoveExtracted(paths queue.Paths) error {
	a.removed = append(a.removed, paths.Name)
	return a.removeErr
}

func (a *stubArtifacts) MoveFastq(paths queue.Paths) (artifacts.MoveResult, error) {
	if a.moveErr != nil {
		return artifacts.MoveResult{}, a.moveErr
	}
	a.moved = append(a.moved, paths.Name)
	return artifacts.MoveResult{Files: 1, Summary: true}, nil
}

func (a *stubArtifacts) ArchiveOutput(paths queue.Paths) error {
	if a.archiveErr != nil {
		return a.archiveErr
	}
	a.archived = append(a.archived, paths.Name)
	return nil
}

func (a *stubArtifacts) Merge() (artifacts.MergeResult, error) {
	a.merges++
	return artifacts.MergeResult{}, nil
}

// stubClock never sleeps. onWait runs before each wait returns.
type stubClock struct {
	waits  []time.Duration
	onWait func(n int) error
}

func (c *stubClock) Now() time.Time { return time.Unix(0, 0) }

func (c *stubClock) Wait(ctx context.Context, d time.Duration) error {
	c.waits = append(c.waits, d)
	if c.onWait != nil {
		if err := c.onWait(len(c.waits)); err != nil {
			return err
		}
	}
	return ctx.Err()
}

type harness struct {
	t         *testing.T
	cfg       *config.Config
	sched     *testsupport.FakeScheduler
	store     state.Store
	signals   *stubSignals
	artifacts *stubArtifacts
	clock     *stubClock
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	return &harness{
		t:         t,
		cfg:       cfg,
		sched:     testsupport.NewFakeScheduler(),
		store:     testsupport.MustOpenStore(t, cfg),
		signals:   &stubSignals{},
		artifacts: &stubArtifacts{},
		clock:     &stubClock{},
	}
}

func (h *harness) orchestrator(mutate ...func(*workflow.Settings)) *workflow.Orchestrator {
	h.t.Helper()
	settings, err := workflow.SettingsFromConfig(h.cfg)
	if err != nil {
		h.t.Fatalf("settings: %v", err)
	}
	for _, fn := range mutate {
		fn(&settings)
	}
	o, err := workflow.New(settings, workflow.Deps{
		Scheduler: h.sched,
		Store:     h.store,
		Scanner: discovery.Scanner{
			ReadsDir:  h.cfg.Paths.ReadsDir,
			OutputDir: h.cfg.OutputDir(),
			Pattern:   h.cfg.Basecall.ArchivePattern,
		},
		Signals:   h.signals,
		Artifacts: h.artifacts,
		Logger:    logging.NewNop(),
		Clock:     h.clock,
	})
	if err != nil {
		h.t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

func (h *harness) seed(items ...*queue.Item) {
	h.t.Helper()
	if err := h.store.Save(context.Background(), items); err != nil {
		h.t.Fatalf("seed store: %v", err)
	}
}

func (h *harness) archive(names ...string) {
	h.t.Helper()
	for _, name := range names {
		testsupport.WriteArchive(h.t, h.cfg, name)
	}
}

func (h *harness) persisted() map[string]*queue.Item {
	h.t.Helper()
	items, err := h.store.Load(context.Background())
	if err != nil {
		h.t.Fatalf("load store: %v", err)
	}
	out := make(map[string]*queue.Item, len(items))
	for _, item := range items {
		out[item.Name] = item
	}
	return out
}

func itemByName(t *testing.T, o *workflow.Orchestrator, name string) *queue.Item {
	t.Helper()
	for _, item := range o.Items() {
		if item.Name == name {
			return item
		}
	}
	t.Fatalf("item %s not tracked", name)
	return nil
}

func runPass(t *testing.T, o *workflow.Orchestrator) workflow.PassResult {
	t.Helper()
	result, err := o.RunPass(context.Background())
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	for _, item := range o.Items() {
		if err := item.Validate(); err != nil {
			t.Fatalf("invariant broken after pass: %v", err)
		}
	}
	return result
}

// extracted returns an item whose extraction job id finished.
func extracted(t *testing.T, name string, id queue.JobID) *queue.Item {
	t.Helper()
	item := queue.NewItem(name)
	if err := item.Extraction.MarkSubmitted(id); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := item.Extraction.MarkComplete(); err != nil {
		t.Fatalf("complete: %v", err)
	}
	return item
}

var errStop = errors.New("stop")
