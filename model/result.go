package model

import (
	"fmt"
)

// Outcome classifies what happened to a single filesystem path.
type Outcome uint8

const (
	// OutcomeFound means the path was a regular file and was archived.
	OutcomeFound Outcome = iota
	// OutcomeMissing means the path did not exist.
	OutcomeMissing
	// OutcomeUnreadable means the path exists but could not be read.
	OutcomeUnreadable
	// OutcomeSkipped means the path is neither a regular file nor a directory.
	OutcomeSkipped
)

var outcomeNames = map[Outcome]string{
	OutcomeFound:      "found",
	OutcomeMissing:    "missing",
	OutcomeUnreadable: "unreadable",
	OutcomeSkipped:    "skipped",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for k, v := range outcomeNames {
		if v == string(text) {
			*o = k
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// PathResult records the decision taken for one filesystem path.
type PathResult struct {
	// Absolute path on the host
	Path string `json:"path"`
	// Candidate path this result was reached from
	Root string `json:"root"`
	Outcome Outcome `json:"outcome"`
	// Why the path was not archived
	Reason string `json:"reason,omitempty"`

	// Entry name inside the archive, set for found files
	Entry    string `json:"entry,omitempty"`
	Size     int64  `json:"size,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
}

// Summary aggregates the per-path results of a build in traversal order.
type Summary struct {
	Results []PathResult `json:"results"`
}

func (s *Summary) Add(r PathResult) {
	s.Results = append(s.Results, r)
}

// Entries returns the archive entry names of all found files.
func (s Summary) Entries() []string {
	var entries []string
	for _, r := range s.Results {
		if r.Outcome == OutcomeFound {
			entries = append(entries, r.Entry)
		}
	}
	return entries
}

// Count returns the number of results with the given outcome.
func (s Summary) Count(o Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// Bytes returns the uncompressed size of all archived files.
func (s Summary) Bytes() int64 {
	var total int64
	for _, r := range s.Results {
		if r.Outcome == OutcomeFound {
			total += r.Size
		}
	}
	return total
}
