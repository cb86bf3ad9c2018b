package domain

import (
	"io"
	"time"
)

// Event is a named point in time attached to a log entry.
type Event struct {
	Name    string    `json:"name"`
	Instant time.Time `json:"instant"`
}

// Attachment describes a stored binary. The payload itself lives in the blob store.
type Attachment struct {
	ID                      string `json:"id"`
	Filename                string `json:"filename"`
	FileMetadataDescription string `json:"fileMetadataDescription"`
}

// AttachmentUpload pairs attachment metadata with its content on the write path.
type AttachmentUpload struct {
	Attachment Attachment
	Content    io.Reader
}

// LogDraft is a log entry as submitted by a client, before it has an identity.
type LogDraft struct {
	Owner       string       `json:"owner"`
	Source      string       `json:"source"`
	Description string       `json:"description"`
	Level       string       `json:"level"`
	Events      []Event      `json:"events,omitempty"`
	Logbooks    []Logbook    `json:"logbooks"`
	Tags        []Tag        `json:"tags"`
	Properties  []Property   `json:"properties"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Log is a stored log entry. Values are produced by NewLog and never modified afterwards;
// ID and CreatedDate are assigned exactly once, server side.
type Log struct {
	ID          int64        `json:"id"`
	Owner       string       `json:"owner"`
	Source      string       `json:"source"`
	Description string       `json:"description"`
	Level       string       `json:"level"`
	State       State        `json:"state"`
	CreatedDate time.Time    `json:"createdDate"`
	ModifyDate  *time.Time   `json:"modifyDate,omitempty"`
	Events      []Event      `json:"events"`
	Logbooks    []Logbook    `json:"logbooks"`
	Tags        []Tag        `json:"tags"`
	Properties  []Property   `json:"properties"`
	Attachments []Attachment `json:"attachments"`
}

// NewLog builds the canonical entry for a draft. Collections are copied so the
// result shares no storage with the draft.
func NewLog(id int64, created time.Time, draft LogDraft, attachments []Attachment) Log {
	modified := created
	log := Log{
		ID:          id,
		Owner:       draft.Owner,
		Source:      draft.Source,
		Description: draft.Description,
		Level:       draft.Level,
		State:       StateActive,
		CreatedDate: created,
		ModifyDate:  &modified,
		Events:      make([]Event, len(draft.Events)),
		Logbooks:    make([]Logbook, 0, len(draft.Logbooks)),
		Tags:        make([]Tag, 0, len(draft.Tags)),
		Properties:  make([]Property, 0, len(draft.Properties)),
		Attachments: make([]Attachment, len(attachments)),
	}
	copy(log.Events, draft.Events)
	copy(log.Attachments, attachments)

	seenLogbooks := map[string]bool{}
	for _, l := range draft.Logbooks {
		if seenLogbooks[l.Name] {
			continue
		}
		seenLogbooks[l.Name] = true
		l.State = l.State.Normalize()
		log.Logbooks = append(log.Logbooks, l)
	}
	seenTags := map[string]bool{}
	for _, t := range draft.Tags {
		if seenTags[t.Name] {
			continue
		}
		seenTags[t.Name] = true
		t.State = t.State.Normalize()
		log.Tags = append(log.Tags, t)
	}
	seenProperties := map[string]bool{}
	for _, p := range draft.Properties {
		if seenProperties[p.Name] {
			continue
		}
		seenProperties[p.Name] = true
		log.Properties = append(log.Properties, p.Clone().Normalize())
	}
	return log
}

// SearchResult is one page of matching log entries.
type SearchResult struct {
	HitCount int64 `json:"hitCount"`
	Logs     []Log `json:"logs"`
}

// LogCreatedEvent is the signal payload announcing a new log entry.
type LogCreatedEvent struct {
	ID          int64     `json:"id"`
	Owner       string    `json:"owner"`
	Logbooks    []string  `json:"logbooks"`
	CreatedDate time.Time `json:"createdDate"`
}
