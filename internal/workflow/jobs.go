package workflow

import (
	"strconv"
	"strings"

	"github.com/alexiswl/poreduck/internal/config"
	"github.com/alexiswl/poreduck/internal/queue"
	"github.com/alexiswl/poreduck/internal/scheduler"
)

// extractionRequest unpacks the archive into the reads directory.
func (o *Orchestrator) extractionRequest(paths queue.Paths) scheduler.JobRequest {
	return scheduler.JobRequest{
		Name:       paths.Name + ".extract",
		Command:    ExtractionCommand(paths),
		WorkDir:    o.settings.Layout.ReadsDir,
		Cores:      o.settings.ExtractionCores,
		MemoryGB:   o.settings.ExtractionMemoryGB,
		Host:       o.settings.Host,
		ScriptPath: paths.ExtractionScript,
		StdoutPath: paths.ExtractionStdout,
		StderrPath: paths.ExtractionStderr,
		Template:   o.settings.ExtractionTemplate,
	}
}

// ExtractionCommand unpacks an archive, decompressing gzipped ones with pigz.
func ExtractionCommand(paths queue.Paths) string {
	if !queue.Compressed(paths.ArchiveSuffix) {
		return "tar -xf " + shellQuote(paths.ArchivePath)
	}
	return "pigz -dc " + shellQuote(paths.ArchivePath) + " | tar -xf -"
}

// basecallRequest runs the basecaller over the extracted reads.
func (o *Orchestrator) basecallRequest(paths queue.Paths) scheduler.JobRequest {
	return scheduler.JobRequest{
		Name:       paths.Name + ".albacore",
		Command:    BasecallCommand(paths, o.settings.Kit, o.settings.Flowcell, o.settings.Threads, o.settings.Barcoding),
		WorkDir:    o.settings.Layout.ReadsDir,
		Cores:      o.settings.Threads,
		MemoryGB:   o.settings.BasecallMemoryGB,
		Host:       o.settings.Host,
		ScriptPath: paths.BasecallScript,
		StdoutPath: paths.BasecallStdout,
		StderrPath: paths.BasecallStderr,
		Template:   o.settings.BasecallTemplate,
	}
}

// BasecallCommand builds the basecaller invocation for one item.
func BasecallCommand(paths queue.Paths, kit, flowcell string, threads int, barcoding bool) string {
	binary := config.BasecallerBinary
	if kit == config.OneDSquaredKit {
		binary = config.OneDSquaredBasecallerBinary
	}
	parts := []string{
		binary,
		"--input", shellQuote(paths.ExtractPath),
		"--worker_threads", strconv.Itoa(threads),
		"--save_path", shellQuote(paths.OutputPath),
		"--flowcell", shellQuote(flowcell),
		"--kit", shellQuote(kit),
	}
	if barcoding {
		parts = append(parts, "--barcoding")
	}
	return strings.Join(parts, " ")
}

func shellQuote(value string) string {
	if value != "" && strings.IndexFunc(value, needsQuoting) < 0 {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

func needsQuoting(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./:=+,@", r)
}
