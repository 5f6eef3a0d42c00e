package models

import (
	"fmt"
	"time"
)

// Stage is the step a pending pipeline operation is currently in.
type Stage string

const (
	StageValidating Stage = "validating"
	StageUploading  Stage = "uploading"
	StageWatermark  Stage = "watermarking"
	StageVerify     Stage = "verifying"
	StageDone       Stage = "done"
)

// Outcome is how a pending operation settled.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// PendingOperation is one in-flight, deduplicated unit of pipeline work.
type PendingOperation struct {
	ID          string
	Key         string
	Name        string
	FileID      string
	SubmittedAt time.Time
	Stage       Stage
	Progress    float64
	Outcome     Outcome
}

// DedupKey identifies "the same file" for upload deduplication: equal name,
// size and modification time (millisecond precision).
func DedupKey(name string, size int64, modTime time.Time) string {
	return fmt.Sprintf("%s|%d|%d", name, size, modTime.UnixMilli())
}

// ProcessKey is the dedup key for re-processing an existing file.
func ProcessKey(fileID string) string {
	return "process:" + fileID
}
