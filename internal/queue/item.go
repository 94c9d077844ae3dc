package queue

import (
	"fmt"
	"strings"
)

// Phase is the derived lifecycle position of an item.
type Phase string

const (
	PhaseNew               Phase = "NEW"
	PhaseExtractSubmitted  Phase = "EXTRACT_SUBMITTED"
	PhaseExtractRunning    Phase = "EXTRACT_RUNNING"
	PhaseExtractDone       Phase = "EXTRACT_DONE"
	PhaseBasecallSubmitted Phase = "BASECALL_SUBMITTED"
	PhaseBasecallRunning   Phase = "BASECALL_RUNNING"
	PhaseBasecallDone      Phase = "BASECALL_DONE"
	PhaseCleanedUp         Phase = "CLEANED_UP"
	PhaseFailed            Phase = "FAILED"
)

var allPhases = []Phase{
	PhaseNew,
	PhaseExtractSubmitted,
	PhaseExtractRunning,
	PhaseExtractDone,
	PhaseBasecallSubmitted,
	PhaseBasecallRunning,
	PhaseBasecallDone,
	PhaseCleanedUp,
	PhaseFailed,
}

// AllPhases returns the ordered list of phases.
func AllPhases() []Phase {
	return append([]Phase(nil), allPhases...)
}

// Item is one archive moving through the pipeline.
type Item struct {
	Name           string
	Extraction     Stage
	Basecall       Stage
	FolderRemoved  bool
	FastqMoved     bool
	OutputArchived bool
	Failed         bool
	FailureReason  string
}

// NewItem returns an item that has not been attempted.
func NewItem(name string) *Item {
	return &Item{
		Name:       strings.TrimSpace(name),
		Extraction: NewStage(),
		Basecall:   NewStage(),
	}
}

// Stage returns the named stage.
func (i *Item) Stage(name StageName) *Stage {
	if name == StageBasecall {
		return &i.Basecall
	}
	return &i.Extraction
}

// SubmitBasecall records a basecall submission once extraction has finished.
func (i *Item) SubmitBasecall(id JobID) error {
	if !i.Extraction.Complete {
		return fmt.Errorf("%w: %s basecall submitted before extraction completed", ErrInvalidTransition, i.Name)
	}
	return i.Basecall.MarkSubmitted(id)
}

// ResetStage applies the failure-reset to a stage. Resetting extraction also
// resets basecall because basecalling depends on the extracted reads.
func (i *Item) ResetStage(name StageName) {
	if name == StageExtraction {
		i.Extraction.Reset()
		i.Basecall.Reset()
		return
	}
	i.Basecall.Reset()
}

func (i *Item) requireBasecallComplete(step string) error {
	if !i.Basecall.Complete {
		return fmt.Errorf("%w: %s %s before basecall completed", ErrInvalidTransition, i.Name, step)
	}
	return nil
}

// MarkFolderRemoved records removal of the extracted reads folder.
func (i *Item) MarkFolderRemoved() error {
	if err := i.requireBasecallComplete("folder removed"); err != nil {
		return err
	}
	i.FolderRemoved = true
	return nil
}

// MarkFastqMoved records relocation of basecalled fastq files.
func (i *Item) MarkFastqMoved() error {
	if err := i.requireBasecallComplete("fastq moved"); err != nil {
		return err
	}
	i.FastqMoved = true
	return nil
}

// MarkOutputArchived records re-compression of the basecaller output.
func (i *Item) MarkOutputArchived() error {
	if err := i.requireBasecallComplete("output archived"); err != nil {
		return err
	}
	i.OutputArchived = true
	return nil
}

// MarkFailed takes the item out of the pipeline after retries are exhausted.
func (i *Item) MarkFailed(reason string) {
	i.Failed = true
	i.FailureReason = strings.TrimSpace(reason)
}

// CleanedUp reports whether every post-basecall step has run.
func (i *Item) CleanedUp() bool {
	return i.Basecall.Complete && i.FolderRemoved && i.FastqMoved && i.OutputArchived
}

// JobsDone reports whether no scheduler job is outstanding for the item.
func (i *Item) JobsDone() bool {
	return i.Failed || i.Basecall.Complete
}

// Settled reports whether the driver has nothing left to do for the item.
func (i *Item) Settled() bool {
	return i.Failed || i.CleanedUp()
}

// Phase derives the lifecycle position from the stage flags.
func (i *Item) Phase() Phase {
	switch {
	case i.Failed:
		return PhaseFailed
	case i.CleanedUp():
		return PhaseCleanedUp
	case i.Basecall.Complete:
		return PhaseBasecallDone
	case i.Basecall.Commenced:
		return PhaseBasecallRunning
	case i.Basecall.Submitted:
		return PhaseBasecallSubmitted
	case i.Extraction.Complete:
		return PhaseExtractDone
	case i.Extraction.Commenced:
		return PhaseExtractRunning
	case i.Extraction.Submitted:
		return PhaseExtractSubmitted
	default:
		return PhaseNew
	}
}

// Validate checks the cross-stage invariants of a loaded or mutated item.
func (i *Item) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("%w: item without a name", ErrInvalidTransition)
	}
	if !i.Extraction.Consistent() {
		return fmt.Errorf("%w: %s extraction flags %+v", ErrInvalidTransition, i.Name, i.Extraction)
	}
	if !i.Basecall.Consistent() {
		return fmt.Errorf("%w: %s basecall flags %+v", ErrInvalidTransition, i.Name, i.Basecall)
	}
	if i.Basecall.Submitted && !i.Extraction.Complete {
		return fmt.Errorf("%w: %s basecall submitted before extraction completed", ErrInvalidTransition, i.Name)
	}
	if (i.FolderRemoved || i.FastqMoved || i.OutputArchived) && !i.Basecall.Complete {
		return fmt.Errorf("%w: %s cleanup recorded before basecall completed", ErrInvalidTransition, i.Name)
	}
	return nil
}

// Clone returns an independent copy of the item.
func (i *Item) Clone() *Item {
	cp := *i
	return &cp
}
