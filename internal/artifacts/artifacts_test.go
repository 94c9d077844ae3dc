package artifacts

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/pgzip"

	"github.com/alexiswl/poreduck/internal/queue"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func testLayout(t *testing.T, oneDSquared bool) queue.Layout {
	t.Helper()
	root := t.TempDir()
	return queue.Layout{
		ReadsDir:      filepath.Join(root, "reads"),
		OutputDir:     filepath.Join(root, "albacore"),
		FastqDir:      filepath.Join(root, "fastq"),
		SubmissionDir: filepath.Join(root, "qsub_log"),
		OneDSquared:   oneDSquared,
	}
}

func TestRemoveExtracted(t *testing.T) {
	layout := testLayout(t, false)
	paths := layout.PathsFor("run_0")
	writeFile(t, filepath.Join(paths.ExtractPath, "reads.fast5"), "x")

	if err := RemoveExtracted(paths); !errors.Is(err, ErrMissingArchive) {
		t.Fatalf("expected ErrMissingArchive, got %v", err)
	}
	if _, err := os.Stat(paths.ExtractPath); err != nil {
		t.Fatalf("folder removed without archive: %v", err)
	}

	writeFile(t, paths.ArchivePath, "archive")
	if err := RemoveExtracted(paths); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(paths.ExtractPath); !os.IsNotExist(err) {
		t.Fatalf("folder still present: %v", err)
	}
	if err := RemoveExtracted(paths); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestMoveFastqUnbarcoded(t *testing.T) {
	layout := testLayout(t, false)
	paths := layout.PathsFor("run_0")
	writeFile(t, filepath.Join(paths.WorkspacePath, "pass", "fastq_runid_a_0.fastq"), "A\n")
	writeFile(t, filepath.Join(paths.WorkspacePath, "pass", "fastq_runid_a_1.fastq"), "B\n")
	writeFile(t, filepath.Join(paths.WorkspacePath, "pass", "ignore.txt"), "")
	writeFile(t, paths.SummaryPath, "filename\tread_id\nf\tr1\n")
	writeFile(t, filepath.Join(layout.FastqDir, "run_0.0.fastq"), "existing\n")

	result, err := MoveFastq(paths, layout.FastqDir, false)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if result.Files != 2 || !result.Summary {
		t.Fatalf("unexpected result %+v", result)
	}
	if readFile(t, filepath.Join(layout.FastqDir, "run_0.0.fastq")) != "existing\n" {
		t.Fatal("existing fastq overwritten")
	}
	if readFile(t, filepath.Join(layout.FastqDir, "run_0.1.fastq")) != "A\n" {
		t.Fatal("first file not placed at index 1")
	}
	if readFile(t, filepath.Join(layout.FastqDir, "run_0.2.fastq")) != "B\n" {
		t.Fatal("second file not placed at index 2")
	}
	if _, err := os.Stat(filepath.Join(layout.FastqDir, "run_0"+SummarySuffix)); err != nil {
		t.Fatalf("summary not copied: %v", err)
	}

	again, err := MoveFastq(paths, layout.FastqDir, false)
	if err != nil {
		t.Fatalf("repeat move: %v", err)
	}
	if again.Files != 0 {
		t.Fatalf("repeat move relocated %d files", again.Files)
	}
}

func TestMoveFastqBarcodedAndOneDSquared(t *testing.T) {
	layout := testLayout(t, false)
	paths := layout.PathsFor("run_1")
	writeFile(t, filepath.Join(paths.WorkspacePath, "pass", "barcode01", "x.fastq"), "b1\n")
	writeFile(t, filepath.Join(paths.WorkspacePath, "pass", "unclassified", "y.fastq"), "u\n")
	if _, err := MoveFastq(paths, layout.FastqDir, true); err != nil {
		t.Fatalf("move barcoded: %v", err)
	}
	for _, name := range []string{"run_1.barcode01.0.fastq", "run_1.unclassified.0.fastq"} {
		if _, err := os.Stat(filepath.Join(layout.FastqDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	sq := testLayout(t, true)
	sqPaths := sq.PathsFor("run_2")
	writeFile(t, filepath.Join(sqPaths.WorkspacePath, "pass", "a.fastq"), "1d\n")
	writeFile(t, filepath.Join(sqPaths.OneDSquaredPath, "pass", "b.fastq"), "1dsq\n")
	if _, err := MoveFastq(sqPaths, sq.FastqDir, false); err != nil {
		t.Fatalf("move 1d2: %v", err)
	}
	if readFile(t, filepath.Join(sq.FastqDir, "run_2.1d.0.fastq")) != "1d\n" {
		t.Fatal("1d reads misplaced")
	}
	if readFile(t, filepath.Join(sq.FastqDir, "run_2.1dsq.0.fastq")) != "1dsq\n" {
		t.Fatal("1dsq reads misplaced")
	}
}

func TestArchiveOutput(t *testing.T) {
	layout := testLayout(t, false)
	paths := layout.PathsFor("run_0")
	writeFile(t, filepath.Join(paths.OutputPath, "sequencing_summary.txt"), "summary")
	writeFile(t, filepath.Join(paths.WorkspacePath, "fail", "x.fastq"), "fail")

	if err := ArchiveOutput(paths); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := os.Stat(paths.OutputPath); !os.IsNotExist(err) {
		t.Fatalf("output folder not removed: %v", err)
	}

	file, err := os.Open(paths.OutputArchivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer file.Close()
	gz, err := pgzip.NewReader(file)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	var names []string
	contents := map[string]string{}
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar next: %v", err)
		}
		names = append(names, header.Name)
		if header.Typeflag == tar.TypeReg {
			data, err := io.ReadAll(tr)
			if err != nil {
				t.Fatalf("read entry: %v", err)
			}
			contents[header.Name] = string(data)
		}
	}
	sort.Strings(names)
	if contents["run_0/sequencing_summary.txt"] != "summary" {
		t.Fatalf("summary missing from archive: %v", names)
	}
	if contents["run_0/workspace/fail/x.fastq"] != "fail" {
		t.Fatalf("workspace file missing from archive: %v", names)
	}

	if err := ArchiveOutput(paths); err != nil {
		t.Fatalf("repeat archive: %v", err)
	}
}

func TestArchiveOutputMissingFolder(t *testing.T) {
	paths := testLayout(t, false).PathsFor("absent")
	if err := os.MkdirAll(filepath.Dir(paths.OutputArchivePath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := ArchiveOutput(paths); err == nil {
		t.Fatal("expected error when neither folder nor archive exists")
	}
}

func TestMergeFastq(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.0.fastq"), "A\n")
	writeFile(t, filepath.Join(dir, "b.0.fastq"), "B\n")
	writeFile(t, filepath.Join(dir, "a"+SummarySuffix), "h\n1\n")
	writeFile(t, filepath.Join(dir, "b"+SummarySuffix), "h\n2\n")
	writeFile(t, filepath.Join(dir, MergedFastq), "stale\n")

	result, err := MergeFastq(dir, false)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.Inputs != 2 || len(result.Outputs) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := readFile(t, filepath.Join(dir, MergedFastq)); got != "A\nB\n" {
		t.Fatalf("merged fastq %q", got)
	}
	if got := readFile(t, filepath.Join(dir, MergedSummary)); got != "h\n1\n2\n" {
		t.Fatalf("merged summary %q", got)
	}
}

func TestMergeFastqBarcoded(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.barcode01.0.fastq"), "1a\n")
	writeFile(t, filepath.Join(dir, "b.barcode01.0.fastq"), "1b\n")
	writeFile(t, filepath.Join(dir, "a.unclassified.0.fastq"), "u\n")
	writeFile(t, filepath.Join(dir, "a.0.fastq"), "ignored\n")

	if _, err := MergeFastq(dir, true); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got := readFile(t, filepath.Join(dir, "barcode01."+MergedFastq)); got != "1a\n1b\n" {
		t.Fatalf("barcode01 merge %q", got)
	}
	if got := readFile(t, filepath.Join(dir, "unclassified."+MergedFastq)); got != "u\n" {
		t.Fatalf("unclassified merge %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, MergedFastq)); !os.IsNotExist(err) {
		t.Fatalf("unexpected unbarcoded merge: %v", err)
	}
}
