package queue

import (
	"path/filepath"
	"strings"
)

// ArchiveSuffixes are the supported input archive suffixes, longest first.
var ArchiveSuffixes = []string{".tar.gz", ".tgz", ".tar"}

// ArchiveSuffix returns the supported archive suffix a discovery pattern ends
// with. Every archive matched by the pattern then carries that suffix.
func ArchiveSuffix(pattern string) (string, bool) {
	for _, suffix := range ArchiveSuffixes {
		if strings.HasSuffix(pattern, suffix) {
			return suffix, true
		}
	}
	return "", false
}

// Compressed reports whether archives with this suffix are gzipped.
func Compressed(suffix string) bool {
	return suffix != ".tar"
}

// Layout holds the directories every item path is derived from.
type Layout struct {
	ReadsDir string
	// ArchiveSuffix is the suffix of the input archives; ".tar.gz" when empty.
	ArchiveSuffix string
	OutputDir     string
	FastqDir      string
	SubmissionDir string
	OneDSquared   bool
}

// Paths are the filesystem locations belonging to one item.
type Paths struct {
	Name              string
	ArchivePath       string
	ExtractPath       string
	OutputPath        string
	WorkspacePath     string
	OneDSquaredPath   string
	SummaryPath       string
	ArchiveSuffix     string
	OutputArchivePath string
	FastqPath         string
	ExtractionScript  string
	ExtractionStdout  string
	ExtractionStderr  string
	BasecallScript    string
	BasecallStdout    string
	BasecallStderr    string
}

// PathsFor derives every path for the named item.
func (l Layout) PathsFor(name string) Paths {
	output := filepath.Join(l.OutputDir, name)
	workspace := filepath.Join(output, "workspace")
	summary := filepath.Join(output, "sequencing_summary.txt")
	var oneDSquared string
	if l.OneDSquared {
		workspace = filepath.Join(output, "1dsq_analysis", "workspace")
		oneDSquared = filepath.Join(output, "1dsq_analysis", "1dsq_analysis", "workspace")
	}
	suffix := l.ArchiveSuffix
	if suffix == "" {
		suffix = ".tar.gz"
	}
	submission := func(suffix string) string {
		return filepath.Join(l.SubmissionDir, name+suffix)
	}
	return Paths{
		Name:              name,
		ArchivePath:       filepath.Join(l.ReadsDir, name+suffix),
		ArchiveSuffix:     suffix,
		ExtractPath:       filepath.Join(l.ReadsDir, name),
		OutputPath:        output,
		WorkspacePath:     workspace,
		OneDSquaredPath:   oneDSquared,
		SummaryPath:       summary,
		OutputArchivePath: OutputArchivePath(l.OutputDir, name),
		FastqPath:         filepath.Join(l.FastqDir, name+".fastq"),
		ExtractionScript:  submission(".extract.batch.sh"),
		ExtractionStdout:  submission(".extract.o.log"),
		ExtractionStderr:  submission(".extract.e.log"),
		BasecallScript:    submission(".albacore.batch.sh"),
		BasecallStdout:    submission(".albacore.o.log"),
		BasecallStderr:    submission(".albacore.e.log"),
	}
}

// OutputArchivePath is the re-compressed basecaller output for an item. Its
// presence marks a batch delivered by an earlier run.
func OutputArchivePath(outputDir, name string) string {
	return filepath.Join(outputDir, name+".albacore.tar.gz")
}
