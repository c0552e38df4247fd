// Package job defines the document tool job model.
package job

import "time"

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions occur.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Job is one tool invocation. Jobs are never deleted individually; the
// collection may only be cleared wholesale.
type Job struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	ToolName   string    `json:"toolName"`
	Status     Status    `json:"status"`
	Progress   int       `json:"progress"`
	CreatedAt  time.Time `json:"createdAt"`
	ResultURL  string    `json:"resultUrl,omitempty"`
	ResultText string    `json:"resultText,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// GetID implements storage.Record.
func (j Job) GetID() string { return j.ID }

// OwnerID implements storage.Record.
func (j Job) OwnerID() string { return j.UserID }

// Patch carries a partial job update.
type Patch struct {
	Status     *Status `json:"status,omitempty"`
	Progress   *int    `json:"progress,omitempty"`
	ResultURL  *string `json:"resultUrl,omitempty"`
	ResultText *string `json:"resultText,omitempty"`
	Error      *string `json:"error,omitempty"`
}

// Fields returns the patch as column/value pairs for the storage layer.
func (p Patch) Fields() map[string]any {
	fields := make(map[string]any)
	if p.Status != nil {
		fields["status"] = *p.Status
	}
	if p.Progress != nil {
		fields["progress"] = *p.Progress
	}
	if p.ResultURL != nil {
		fields["resultUrl"] = *p.ResultURL
	}
	if p.ResultText != nil {
		fields["resultText"] = *p.ResultText
	}
	if p.Error != nil {
		fields["error"] = *p.Error
	}
	return fields
}

// Apply merges the patch into a copy of j and returns it.
func (p Patch) Apply(j Job) Job {
	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.Progress != nil {
		j.Progress = *p.Progress
	}
	if p.ResultURL != nil {
		j.ResultURL = *p.ResultURL
	}
	if p.ResultText != nil {
		j.ResultText = *p.ResultText
	}
	if p.Error != nil {
		j.Error = *p.Error
	}
	return j
}
