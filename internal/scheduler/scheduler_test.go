package scheduler_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alexiswl/poreduck/internal/queue"
	"github.com/alexiswl/poreduck/internal/scheduler"
)

const qacctSuccess = `==============================================================
qname        all.q
hostname     node07
jobname      batch_1.extract
jobnumber    122079
qsub_time    Mon Feb  5 10:00:00 2018
start_time   Mon Feb  5 10:00:05 2018
end_time     Mon Feb  5 10:05:05 2018
failed       0
exit_status  0
`

const qacctFailed = `==============================================================
jobnumber    122080
start_time   Mon Feb  5 10:00:05 2018
end_time     Mon Feb  5 10:01:00 2018
failed       0
exit_status  137
`

const qacctHostFailure = `==============================================================
jobnumber    122081
start_time   -/-
end_time     -/-
failed       1    : assumedly before job
exit_status  0
`

const qstatRunning = `==============================================================
job_number:                 122082
job_name:                   batch_2.albacore
usage    1:                 cpu=00:10:00, mem=1.2 GBs, io=0.1
`

const qstatPending = `==============================================================
job_number:                 122083
job_name:                   batch_3.albacore
`

func newClient(t *testing.T, kind string, exec scheduler.Executor) scheduler.Client {
	t.Helper()
	client, err := scheduler.New(kind, exec)
	if err != nil {
		t.Fatalf("scheduler.New(%s): %v", kind, err)
	}
	return client
}

func jobRequest(t *testing.T) scheduler.JobRequest {
	dir := t.TempDir()
	return scheduler.JobRequest{
		Name:       "batch_1.extract",
		Command:    "pigz -dc batch_1.tar.gz | tar -xf -",
		WorkDir:    dir,
		Cores:      4,
		MemoryGB:   12,
		ScriptPath: filepath.Join(dir, "batch_1.extract.batch.sh"),
		StdoutPath: filepath.Join(dir, "batch_1.extract.o.log"),
		StderrPath: filepath.Join(dir, "batch_1.extract.e.log"),
	}
}

func TestSubmitParsesJobIDs(t *testing.T) {
	cases := []struct {
		kind   string
		binary string
		reply  string
		want   queue.JobID
	}{
		{"sge", "qsub", "122079\n", 122079},
		{"sge", "qsub", "122079.1-10:1\n", 122079},
		{"sge", "qsub", `Your job 122079 ("STDIN") has been submitted`, 122079},
		{"torque", "qsub", "4455.pbs-server.example.org\n", 4455},
		{"slurm", "sbatch", "9001\n", 9001},
		{"slurm", "sbatch", "9001;cluster-a\n", 9001},
		{"slurm", "sbatch", "Submitted batch job 9001\n", 9001},
	}
	for _, tc := range cases {
		t.Run(tc.kind+"/"+tc.reply, func(t *testing.T) {
			exec := newScriptedExecutor().reply(tc.binary, tc.reply, 0)
			id, err := newClient(t, tc.kind, exec).Submit(context.Background(), jobRequest(t))
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if id != tc.want {
				t.Fatalf("got job id %d, want %d", id, tc.want)
			}
		})
	}
}

func TestSubmitWithoutJobIDIsSubmissionFailure(t *testing.T) {
	for _, kind := range []string{"sge", "torque", "slurm"} {
		binary := "qsub"
		if kind == "slurm" {
			binary = "sbatch"
		}
		exec := newScriptedExecutor().reply(binary, "qsub: Unauthorized Request", 0)
		_, err := newClient(t, kind, exec).Submit(context.Background(), jobRequest(t))
		if !errors.Is(err, scheduler.ErrSubmissionFailed) {
			t.Fatalf("%s: expected ErrSubmissionFailed, got %v", kind, err)
		}
		if !strings.Contains(err.Error(), "Unauthorized Request") {
			t.Fatalf("%s: expected raw output in error, got %v", kind, err)
		}
	}

	exec := newScriptedExecutor().reply("sbatch", "", 1)
	if _, err := newClient(t, "slurm", exec).Submit(context.Background(), jobRequest(t)); !errors.Is(err, scheduler.ErrSubmissionFailed) {
		t.Fatalf("expected non-zero exit to fail submission, got %v", err)
	}
}

func TestSubmitWritesScriptAndResourceFlags(t *testing.T) {
	req := jobRequest(t)
	req.Host = "node07"

	exec := newScriptedExecutor().reply("sbatch", "77\n", 0)
	if _, err := newClient(t, "slurm", exec).Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	args := exec.lastArgs("sbatch")
	for _, want := range []string{"--parsable", "--cpus-per-task 4", "--mem 12G", "--nodelist node07", req.ScriptPath} {
		if !strings.Contains(args, want) {
			t.Fatalf("sbatch args %q missing %q", args, want)
		}
	}

	script, err := os.ReadFile(req.ScriptPath)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	if !strings.Contains(string(script), req.Command) || !strings.Contains(string(script), req.WorkDir) {
		t.Fatalf("script missing command or workdir:\n%s", script)
	}

	exec = newScriptedExecutor().reply("qsub", "12\n", 0)
	if _, err := newClient(t, "sge", exec).Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if args := exec.lastArgs("qsub"); !strings.Contains(args, "-l hostname=node07") || !strings.Contains(args, "-pe smp 4") {
		t.Fatalf("unexpected qsub args %q", args)
	}
}

func TestSGEStatus(t *testing.T) {
	ctx := context.Background()

	exec := newScriptedExecutor().reply("qacct", qacctSuccess, 0)
	client := newClient(t, "sge", exec)
	assertBool(t, "commenced", mustBool(client.HasCommenced(ctx, 122079)), true)
	assertBool(t, "completed", mustBool(client.HasCompleted(ctx, 122079, true)), true)
	assertBool(t, "failed", mustBool(client.HasFailed(ctx, 122079)), false)

	exec = newScriptedExecutor().reply("qacct", qacctFailed, 0)
	client = newClient(t, "sge", exec)
	done, err := client.HasCompleted(ctx, 122080, true)
	var jobErr *scheduler.JobFailedError
	if !done || !errors.As(err, &jobErr) || jobErr.JobID != 122080 {
		t.Fatalf("expected JobFailedError, got done=%v err=%v", done, err)
	}
	if !strings.Contains(jobErr.Error(), "exit_status") {
		t.Fatalf("expected raw qacct output in error, got %v", jobErr)
	}
	assertBool(t, "completed without check", mustBool(client.HasCompleted(ctx, 122080, false)), true)

	exec = newScriptedExecutor().reply("qacct", qacctHostFailure, 0)
	client = newClient(t, "sge", exec)
	assertBool(t, "host failure commenced", mustBool(client.HasCommenced(ctx, 122081)), false)
	assertBool(t, "host failure failed", mustBool(client.HasFailed(ctx, 122081)), true)

	exec = newScriptedExecutor().reply("qacct", "", 1).reply("qstat", qstatRunning, 0)
	client = newClient(t, "sge", exec)
	assertBool(t, "running commenced", mustBool(client.HasCommenced(ctx, 122082)), true)
	assertBool(t, "running completed", mustBool(client.HasCompleted(ctx, 122082, true)), false)
	assertBool(t, "running failed", mustBool(client.HasFailed(ctx, 122082)), false)

	exec = newScriptedExecutor().reply("qacct", "", 1).reply("qstat", qstatPending, 0)
	client = newClient(t, "sge", exec)
	assertBool(t, "pending commenced", mustBool(client.HasCommenced(ctx, 122083)), false)

	exec = newScriptedExecutor().reply("qacct", "", 1).reply("qstat", "", 1)
	client = newClient(t, "sge", exec)
	assertBool(t, "unknown failed", mustBool(client.HasFailed(ctx, 5)), true)
}

func TestTorqueStatus(t *testing.T) {
	ctx := context.Background()
	queued := "02/05/2018 10:00:00  S    enqueuing into batch, state 1 hop 1\n02/05/2018 10:00:00  S    Job Queued at request of alexis@host\n"
	running := queued + "02/05/2018 10:00:05  S    Job Run at request of root@host\n"
	exited := running + "02/05/2018 10:05:00  S    Exit_status=0 resources_used.cput=00:04:00\n"
	crashed := running + "02/05/2018 10:05:00  S    Exit_status=271 resources_used.cput=00:04:00\n"

	cases := []struct {
		name                         string
		out                          string
		commenced, completed, failed bool
	}{
		{"queued", queued, false, false, false},
		{"running", running, true, false, false},
		{"exited", exited, true, true, false},
		{"crashed", crashed, true, true, true},
		{"unknown", "", false, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newClient(t, "torque", newScriptedExecutor().reply("tracejob", tc.out, 0))
			assertBool(t, "commenced", mustBool(client.HasCommenced(ctx, 4455)), tc.commenced)
			assertBool(t, "completed", mustBool(client.HasCompleted(ctx, 4455, false)), tc.completed)
			assertBool(t, "failed", mustBool(client.HasFailed(ctx, 4455)), tc.failed)
		})
	}
}

func TestSlurmStatus(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name                         string
		out                          string
		commenced, completed, failed bool
	}{
		{"pending", "9001|PENDING|0:0\n", false, false, false},
		{"running", "9001|RUNNING|0:0\n", true, false, false},
		{"completed", "9001|COMPLETED|0:0\n", true, true, false},
		{"failed", "9001|FAILED|1:0\n", true, true, true},
		{"cancelled", "9001|CANCELLED by 1000|0:15\n", true, true, true},
		{"timeout", "9001|TIMEOUT|0:0\n", true, true, true},
		{"other job only", "9002|COMPLETED|0:0\n", false, false, true},
		{"unknown", "", false, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newClient(t, "slurm", newScriptedExecutor().reply("sacct", tc.out, 0))
			assertBool(t, "commenced", mustBool(client.HasCommenced(ctx, 9001)), tc.commenced)
			assertBool(t, "completed", mustBool(client.HasCompleted(ctx, 9001, false)), tc.completed)
			assertBool(t, "failed", mustBool(client.HasFailed(ctx, 9001)), tc.failed)
		})
	}

	client := newClient(t, "slurm", newScriptedExecutor().reply("sacct", "9001|FAILED|1:0\n", 0))
	if _, err := client.HasCompleted(ctx, 9001, true); !errors.Is(err, scheduler.ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
}

func TestStatusQueryErrorsPropagate(t *testing.T) {
	exec := newScriptedExecutor()
	exec.errs["sacct"] = scheduler.ErrCommandTimeout
	client := newClient(t, "slurm", exec)
	if _, err := client.HasFailed(context.Background(), 1); !errors.Is(err, scheduler.ErrCommandTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	if _, err := scheduler.New("pbspro", newScriptedExecutor()); err == nil {
		t.Fatal("expected error for unknown scheduler")
	}
}

func mustBool(value bool, err error) bool {
	if err != nil {
		panic(err)
	}
	return value
}

func assertBool(t *testing.T, what string, got, want bool) {
	t.Helper()
	if got != want {
		t.Fatalf("%s: got %v want %v", what, got, want)
	}
}
