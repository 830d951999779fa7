package models

import "time"

// PersistedTranscription is the durable record of a completed job, keyed by
// the job id. Title, original filename, audio path, transcript text and
// owner are fixed at first insert; the summary fields and utterances are
// refreshed on every later upsert.
type PersistedTranscription struct {
	ID               string      `db:"id"                json:"id"`
	Title            string      `db:"title"             json:"title"`
	OriginalFilename string      `db:"original_filename" json:"original_filename"`
	AudioPath        string      `db:"audio_path"        json:"audio_path"`
	TranscriptText   string      `db:"transcript_text"   json:"transcript_text"`
	ShortSummary     string      `db:"short_summary"     json:"short_summary"`
	KeyPoints        []string    `db:"key_points"        json:"key_points"`
	ActionItems      []string    `db:"action_items"      json:"action_items"`
	Utterances       []Utterance `db:"utterances"        json:"utterances"`
	OwnerID          string      `db:"owner_id"          json:"owner_id"`
	ProjectID        *string     `db:"project_id"        json:"project_id,omitempty"`
	CreatedAt        time.Time   `db:"created_at"        json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"        json:"updated_at"`
}

// TranscriptionFilter scopes a history listing to one owner.
type TranscriptionFilter struct {
	OwnerID string
	Page    int
	Limit   int
}
