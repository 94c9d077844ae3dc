package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexiswl/poreduck/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCreatableDirectory(t *testing.T) {
	base := t.TempDir()

	result := CheckCreatableDirectory("missing", filepath.Join(base, "a", "b"))
	if !result.Passed || !strings.Contains(result.Detail, "will be created") {
		t.Fatalf("expected creatable pass, got %#v", result)
	}

	result = CheckCreatableDirectory("existing", base)
	if !result.Passed || !strings.Contains(result.Detail, "read/write ok") {
		t.Fatalf("expected existing pass, got %#v", result)
	}

	if result := CheckCreatableDirectory("empty", ""); result.Passed {
		t.Fatal("expected failure for unconfigured path")
	}

	file := filepath.Join(base, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckCreatableDirectory("file", file); result.Passed {
		t.Fatal("expected failure when a file occupies the path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()

	result := CheckFreeSpace("space", filepath.Join(dir, "not", "yet"), 1)
	if !result.Passed || !strings.Contains(result.Detail, dir) {
		t.Fatalf("expected pass against existing ancestor, got %#v", result)
	}

	result = CheckFreeSpace("space", dir, ^uint64(0))
	if result.Passed || !result.Advisory || !strings.Contains(result.Detail, "need") {
		t.Fatalf("expected advisory failure for impossible minimum, got %#v", result)
	}
	if failed := Failed([]Result{result}); len(failed) != 0 {
		t.Fatalf("advisory result should not block, got %#v", failed)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_DerivedDirectories(t *testing.T) {
	parent := t.TempDir()
	reads := filepath.Join(parent, "reads")
	if err := os.Mkdir(reads, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Paths.ReadsDir = reads

	results := RunAll(&cfg)
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d", len(results))
	}
	for _, r := range results[:6] {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_MissingReadsDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.ReadsDir = filepath.Join(t.TempDir(), "reads")

	failed := Failed(RunAll(&cfg))
	if len(failed) == 0 || failed[0].Name != "Reads directory" {
		t.Fatalf("expected reads directory failure, got %#v", failed)
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler.Type = config.SchedulerSlurm
	cfg.Basecall.Kit = config.OneDSquaredKit

	statuses := CheckSystemDeps(&cfg)
	if len(statuses) != 5 {
		t.Fatalf("expected 5 statuses, got %d", len(statuses))
	}
	if statuses[0].Command != "sbatch" || statuses[1].Command != "sacct" {
		t.Fatalf("unexpected scheduler commands %#v", statuses[:2])
	}
	if statuses[4].Command != config.OneDSquaredBasecallerBinary {
		t.Fatalf("unexpected basecaller command %q", statuses[4].Command)
	}
}
