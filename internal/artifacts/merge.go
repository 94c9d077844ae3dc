package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alexiswl/poreduck/internal/fileutil"
)

// Merged output names.
const (
	MergedFastq   = "all.fastq"
	MergedSummary = "sequencing_summary.all.txt"
)

// MergeResult lists the aggregate files written by MergeFastq.
type MergeResult struct {
	Outputs []string
	Inputs  int
}

// MergeFastq concatenates the per-item fastq files in fastqDir. Without
// barcoding everything goes to all.fastq; with barcoding each barcode gets
// <barcode>.all.fastq. Sequencing summaries are merged into one file that
// keeps only the first header. Existing aggregate files are replaced.
func MergeFastq(fastqDir string, barcoding bool) (MergeResult, error) {
	var result MergeResult
	entries, err := os.ReadDir(fastqDir)
	if err != nil {
		return result, fmt.Errorf("read fastq directory: %w", err)
	}

	targets := make(map[string][]string)
	var summaries []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() {
			continue
		}
		if strings.HasSuffix(name, SummarySuffix) && name != MergedSummary {
			summaries = append(summaries, filepath.Join(fastqDir, name))
			continue
		}
		if !strings.HasSuffix(name, ".fastq") || isMergedFastq(name) {
			continue
		}
		target := MergedFastq
		if barcoding {
			barcode, ok := barcodeOf(name)
			if !ok {
				continue
			}
			target = barcode + "." + MergedFastq
		}
		targets[target] = append(targets[target], filepath.Join(fastqDir, name))
	}

	targetNames := make([]string, 0, len(targets))
	for target := range targets {
		targetNames = append(targetNames, target)
	}
	sort.Strings(targetNames)
	for _, target := range targetNames {
		inputs := targets[target]
		sort.Strings(inputs)
		dst := filepath.Join(fastqDir, target)
		if err := concatenate(dst, inputs, false); err != nil {
			return result, err
		}
		result.Outputs = append(result.Outputs, dst)
		result.Inputs += len(inputs)
	}

	if len(summaries) > 0 {
		sort.Strings(summaries)
		dst := filepath.Join(fastqDir, MergedSummary)
		if err := concatenate(dst, summaries, true); err != nil {
			return result, err
		}
		result.Outputs = append(result.Outputs, dst)
	}
	return result, nil
}

func concatenate(dst string, inputs []string, singleHeader bool) error {
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replace %s: %w", dst, err)
	}
	for i, input := range inputs {
		if _, err := fileutil.AppendFile(dst, input, singleHeader && i > 0); err != nil {
			return fmt.Errorf("append %s to %s: %w", input, dst, err)
		}
	}
	return nil
}

func isMergedFastq(name string) bool {
	return name == MergedFastq || strings.HasSuffix(name, "."+MergedFastq)
}

// barcodeOf extracts the barcode from <name>.<barcode>.<index>.fastq.
func barcodeOf(fileName string) (string, bool) {
	parts := strings.Split(fileName, ".")
	if len(parts) < 4 {
		return "", false
	}
	barcode := parts[len(parts)-3]
	if strings.HasPrefix(barcode, "barcode") || barcode == "unclassified" {
		return barcode, true
	}
	return "", false
}
