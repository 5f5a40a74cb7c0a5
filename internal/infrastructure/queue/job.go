package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	app "ortho-mapper/internal/application"
)

// RunJob is the queued form of a run request.
type RunJob struct {
	ID        string    `json:"id"`
	InputDir  string    `json:"input_dir"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Request converts the job back into a run request keeping its ID.
func (j RunJob) Request() app.RunRequest {
	return app.RunRequest{ID: j.ID, InputDir: j.InputDir, Label: j.Label}
}

func encodeJob(job RunJob) ([]byte, error) {
	return json.Marshal(job)
}

func decodeJob(data []byte) (RunJob, error) {
	var job RunJob
	if err := json.Unmarshal(data, &job); err != nil {
		return RunJob{}, fmt.Errorf("failed to decode job: %w", err)
	}
	if job.ID == "" {
		return RunJob{}, errors.New("job has no id")
	}
	if job.InputDir == "" {
		return RunJob{}, fmt.Errorf("job %s has no input_dir", job.ID)
	}
	return job, nil
}
