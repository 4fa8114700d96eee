package constants

// RunPhase is the canonical phase for a batch run.
type RunPhase string

// Stable values (stored verbatim in the property store audit trail).
const (
	RunPhaseIdle      RunPhase = "IDLE"      // no run in progress
	RunPhaseActive    RunPhase = "ACTIVE"    // batches in flight
	RunPhaseCompleted RunPhase = "COMPLETED" // terminal: nothing left pending
	RunPhaseFailed    RunPhase = "FAILED"    // terminal: retry limit exceeded
)

// Property-store keys for the durable run state.
const (
	KeyProcessingActive = "processing_active"
	KeyCurrentBatch     = "current_batch"
	KeyFilesProcessed   = "files_processed"
	KeyFailedAttempts   = "failed_attempts"
	KeyStartTime        = "start_time"
	KeyRunID            = "run_id"
)
