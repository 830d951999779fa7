package models

import "time"

// JobStatus is the lifecycle state of an audio job.
type JobStatus string

const (
	JobStatusUploaded              JobStatus = "uploaded"
	JobStatusProcessingAudio       JobStatus = "processing_audio"
	JobStatusTranscribing          JobStatus = "transcribing"
	JobStatusTranscriptionComplete JobStatus = "transcription_complete"
	JobStatusSummarizing           JobStatus = "summarizing"
	JobStatusCompleted             JobStatus = "completed"
	JobStatusError                 JobStatus = "error"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// HasTranscript reports whether results.transcript is readable in state s.
func (s JobStatus) HasTranscript() bool {
	switch s {
	case JobStatusTranscriptionComplete, JobStatusSummarizing, JobStatusCompleted:
		return true
	}
	return false
}

// SummaryMethod selects how a transcript is summarized.
type SummaryMethod string

const (
	SummaryMethodExternal SummaryMethod = "external"
	SummaryMethodLocal    SummaryMethod = "local"
)

// SummaryStatus tracks the summary half of a job's results.
type SummaryStatus string

const (
	SummaryStatusPending  SummaryStatus = "pending"
	SummaryStatusComplete SummaryStatus = "complete"
)

// Utterance is one speaker-attributed segment of a transcript.
type Utterance struct {
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Transcript string   `json:"transcript"`
	Speaker    string   `json:"speaker,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// JobResults holds everything produced by the pipeline for a job.
type JobResults struct {
	Transcript    string        `json:"transcript"`
	Utterances    []Utterance   `json:"utterances"`
	ShortSummary  string        `json:"short_summary"`
	KeyPoints     []string      `json:"key_points"`
	ActionItems   []string      `json:"action_items"`
	SummaryStatus SummaryStatus `json:"summary_status"`
}

// Job is an in-flight unit of work: one uploaded audio file moving through
// conversion, transcription and summarization.
type Job struct {
	ID               string        `json:"id"`
	Status           JobStatus     `json:"status"`
	OriginalFilename string        `json:"original_filename"`
	SourceFilePath   string        `json:"-"`
	ModelSelector    string        `json:"model"`
	SummaryMethod    SummaryMethod `json:"summary_method"`
	OwnerID          string        `json:"owner_id,omitempty"`
	ProjectID        *string       `json:"project_id,omitempty"`
	Error            string        `json:"error,omitempty"`
	Results          *JobResults   `json:"results,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Clone returns a deep copy of j that shares no slices or pointers with it.
func (j Job) Clone() Job {
	out := j
	if j.ProjectID != nil {
		p := *j.ProjectID
		out.ProjectID = &p
	}
	if j.Results != nil {
		r := *j.Results
		r.Utterances = cloneUtterances(j.Results.Utterances)
		r.KeyPoints = cloneStrings(j.Results.KeyPoints)
		r.ActionItems = cloneStrings(j.Results.ActionItems)
		out.Results = &r
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneUtterances(in []Utterance) []Utterance {
	if in == nil {
		return nil
	}
	out := make([]Utterance, len(in))
	for i, u := range in {
		out[i] = u
		if u.Confidence != nil {
			c := *u.Confidence
			out[i].Confidence = &c
		}
	}
	return out
}
