package scheduler

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/alexiswl/poreduck/internal/queue"
)

// SGE drives Sun/Univa/Son of Grid Engine through qsub and qacct.
type SGE struct {
	base
}

var (
	sgeVerboseID = regexp.MustCompile(`Your job(?:-array)? (\d+)`)
	sgeUsageLine = regexp.MustCompile(`(?m)^usage\s+\d*:`)
)

func (s *SGE) Kind() Kind { return KindSGE }

func (s *SGE) Submit(ctx context.Context, req JobRequest) (queue.JobID, error) {
	args := []string{"-terse", "-N", req.Name, "-o", req.StdoutPath, "-e", req.StderrPath}
	if req.WorkDir != "" {
		args = append(args, "-wd", req.WorkDir)
	}
	if req.Cores > 1 {
		args = append(args, "-pe", "smp", strconv.Itoa(req.Cores))
	}
	if req.MemoryGB > 0 {
		args = append(args, "-l", "mem_free="+strconv.Itoa(req.MemoryGB)+"G")
	}
	if req.Host != "" {
		args = append(args, "-l", "hostname="+req.Host)
	}
	return s.submit(ctx, req, "qsub", args, parseSGEJobID)
}

// parseSGEJobID reads `qsub -terse` output ("123" or "123.1-10:1") and falls
// back to the verbose "Your job 123 (...) has been submitted" form.
func parseSGEJobID(out string) (queue.JobID, bool) {
	if m := sgeVerboseID.FindStringSubmatch(out); m != nil {
		return parseDigits(m[1])
	}
	line := firstLine(out)
	if idx := strings.IndexByte(line, '.'); idx >= 0 {
		line = line[:idx]
	}
	return parseDigits(line)
}

// HasCommenced consults qacct first; jobs still running have no accounting
// record yet, so qstat is asked whether the job is using resources.
func (s *SGE) HasCommenced(ctx context.Context, id queue.JobID) (bool, error) {
	record, _, err := s.accounting(ctx, id)
	if err != nil {
		return false, err
	}
	if record.known() {
		return record.started(), nil
	}
	_, running, err := s.live(ctx, id)
	return running, err
}

func (s *SGE) HasCompleted(ctx context.Context, id queue.JobID, checkFailure bool) (bool, error) {
	record, raw, err := s.accounting(ctx, id)
	if err != nil {
		return false, err
	}
	if !record.ended() {
		return false, nil
	}
	if checkFailure && record.failed() {
		return true, &JobFailedError{JobID: id, Output: raw}
	}
	return true, nil
}

// HasFailed treats a job unknown to both qacct and qstat as failed. A job
// still pending or running has not failed.
func (s *SGE) HasFailed(ctx context.Context, id queue.JobID) (bool, error) {
	record, _, err := s.accounting(ctx, id)
	if err != nil {
		return false, err
	}
	if record.known() {
		return record.failed(), nil
	}
	exists, _, err := s.live(ctx, id)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// live asks qstat about a job that has not finished.
func (s *SGE) live(ctx context.Context, id queue.JobID) (exists, running bool, err error) {
	out, err := s.query(ctx, "qstat", "-j", id.String())
	if err != nil {
		return false, false, err
	}
	if !strings.Contains(out, "job_number") {
		return false, false, nil
	}
	return true, sgeUsageLine.MatchString(out), nil
}

func (s *SGE) accounting(ctx context.Context, id queue.JobID) (qacctRecord, string, error) {
	out, err := s.query(ctx, "qacct", "-j", id.String())
	if err != nil {
		return qacctRecord{}, "", err
	}
	return parseQacct(out), out, nil
}

// qacctRecord collects the qacct fields of every task of a job.
type qacctRecord struct {
	fields map[string][]string
}

func parseQacct(out string) qacctRecord {
	record := qacctRecord{fields: map[string][]string{}}
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 || strings.HasPrefix(parts[0], "=") {
			continue
		}
		key := parts[0]
		record.fields[key] = append(record.fields[key], strings.Join(parts[1:], " "))
	}
	return record
}

func (r qacctRecord) known() bool {
	return len(r.fields["jobnumber"]) > 0 || len(r.fields["exit_status"]) > 0 || len(r.fields["start_time"]) > 0
}

func unsetTime(value string) bool {
	value = strings.TrimSpace(value)
	return value == "" || value == "-/-"
}

func (r qacctRecord) started() bool {
	for _, value := range r.fields["start_time"] {
		if !unsetTime(value) {
			return true
		}
	}
	return false
}

func (r qacctRecord) ended() bool {
	values := r.fields["end_time"]
	if len(values) == 0 {
		return false
	}
	for _, value := range values {
		if unsetTime(value) {
			return false
		}
	}
	return true
}

// failed sums exit_status over all tasks and also honours the failed field.
// A job without accounting data counts as failed.
func (r qacctRecord) failed() bool {
	if !r.known() {
		return true
	}
	sum := 0
	for _, value := range r.fields["exit_status"] {
		n, err := strconv.Atoi(strings.Fields(value)[0])
		if err != nil {
			return true
		}
		sum += n
	}
	if sum > 0 {
		return true
	}
	for _, value := range r.fields["failed"] {
		if code := strings.Fields(value)[0]; code != "0" {
			return true
		}
	}
	return false
}
