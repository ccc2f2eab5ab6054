package model

import "time"

// Stage is a step of a collection run.
type Stage string

const (
	StageStart     Stage = "start"
	StageEnumerate Stage = "enumerate"
	StageBuild     Stage = "build"
	StageUpload    Stage = "upload"
	StageCleanup   Stage = "cleanup"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// Terminal reports whether no further transition follows s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Run represents a single collector execution.
type Run struct {
	// Unique ID for this run (UUID)
	ID string `json:"id"`
	// Timestamp when the run started
	Timestamp time.Time `json:"timestamp"`
	// Command-line arguments (including command name), with the upload target redacted
	Args []string `json:"args,omitempty"`
	// Host the artifacts were collected from
	Host *Host `json:"host,omitempty"`
	// Last stage the run reached
	Stage Stage `json:"stage"`
	// Stage in which the run failed, empty on success
	FailedStage Stage `json:"failed_stage,omitempty"`
	// Exit code of the run
	ExitCode int `json:"exit_code"`
	// Duration of the run
	Duration time.Duration `json:"duration"`
	// Candidate paths the run was given
	Candidates []string `json:"candidates,omitempty"`
	// Archive produced by the run
	Archive *Archive `json:"archive,omitempty"`
	// Per-path outcomes
	Summary Summary `json:"summary"`
	// Error message of a failed run
	Error string `json:"error,omitempty"`
}

// Host contains information about the collection environment
type Host struct {
	Hostname string `json:"hostname,omitempty"`
	// Operating system of the host
	OS string `json:"os,omitempty"`
	// CPU architecture of the host
	Arch string `json:"arch,omitempty"`
}

// Archive describes the temporary archive of a run.
type Archive struct {
	// Local path of the archive; removed during cleanup
	Path string `json:"path"`
	// Size in bytes after the archive was closed
	Size int64 `json:"size"`
	// Number of collected files
	Entries int `json:"entries"`
	// Whether the local file was removed
	Removed bool `json:"removed"`
}
