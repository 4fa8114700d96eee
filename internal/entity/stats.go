package entity

// BatchStats aggregates the per-batch counters surfaced to the user.
type BatchStats struct {
	Found            int // documents enumerated by the source
	AlreadyProcessed int // skipped via the processed index
	NewlyProcessed   int // marked processed this batch
	Created          int // artifacts actually created
	Existing         int // artifacts skipped via the cache
	Errors           int // per-item extraction/storage failures
}

// Add folds another stats value into s.
func (s *BatchStats) Add(o BatchStats) {
	s.Found += o.Found
	s.AlreadyProcessed += o.AlreadyProcessed
	s.NewlyProcessed += o.NewlyProcessed
	s.Created += o.Created
	s.Existing += o.Existing
	s.Errors += o.Errors
}
