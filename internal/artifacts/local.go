package artifacts

import "github.com/alexiswl/poreduck/internal/queue"

// Local runs the artifact steps against the local filesystem.
type Local struct {
	FastqDir  string
	Barcoding bool
}

func (l Local) RemoveExtracted(paths queue.Paths) error { return RemoveExtracted(paths) }

func (l Local) MoveFastq(paths queue.Paths) (MoveResult, error) {
	return MoveFastq(paths, l.FastqDir, l.Barcoding)
}

func (l Local) ArchiveOutput(paths queue.Paths) error { return ArchiveOutput(paths) }

func (l Local) Merge() (MergeResult, error) { return MergeFastq(l.FastqDir, l.Barcoding) }
