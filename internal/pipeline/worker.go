package pipeline

import (
	"context"
	"log/slog"
)

// Worker processes a single document job.
type Worker struct {
	runner Runner
	locks  *collectionLocks
	log    *slog.Logger
}

func NewWorker(runner Runner, locks *collectionLocks, log *slog.Logger) *Worker {
	if locks == nil {
		locks = newCollectionLocks()
	}
	return &Worker{runner: runner, locks: locks, log: log}
}

// Process runs the extraction pipeline for a job, holding the collection
// lock for the whole run.
func (w *Worker) Process(ctx context.Context, job *Job) {
	data := job.FileData()
	collection := job.Snapshot().CollectionID
	if collection == "" {
		collection = ContentHashHex(data)
		job.mu.Lock()
		job.CollectionID = collection
		job.mu.Unlock()
	}
	log := w.log.With("job_id", job.ID, "collection", collection)

	unlock := w.locks.Lock(collection)
	defer unlock()

	res, err := w.runner.Run(ctx, Request{
		Data:           data,
		Filename:       job.Filename,
		CollectionID:   collection,
		AlreadyIndexed: job.AlreadyIndexed,
		Years:          job.Years,
		OnStage: func(s Stage) {
			job.SetStatus(JobStatus(s), string(s))
		},
	})
	if err != nil {
		log.Error("extraction failed", "error", err)
		job.mu.Lock()
		phase := job.Phase
		job.mu.Unlock()
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, phase)
		return
	}

	job.Complete(res)
	log.Info("job complete", "rows", len(res.Rows), "parse_status", res.Parse.Status)
}
