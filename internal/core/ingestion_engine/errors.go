package ingestion_engine

import "fmt"

// PipelineError carries the context needed to diagnose a failed ingestion
// without re-running it.
type PipelineError struct {
	Phase      string
	DocumentID string
	Page       int
	Err        error
}

func (e *PipelineError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("document %s: %s phase, page %d: %v", e.DocumentID, e.Phase, e.Page, e.Err)
	}
	return fmt.Sprintf("document %s: %s phase: %v", e.DocumentID, e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
