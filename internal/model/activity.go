package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Note is a CRM note associated with a deal.
type Note struct {
	ID         string     `json:"id"`
	Properties Properties `json:"properties"`
}

// Body returns the note body.
func (n Note) Body() string {
	return n.Properties[PropNoteBody]
}

// AttachmentIDs splits hs_attachment_ids, which the CRM stores
// semicolon-separated.
func (n Note) AttachmentIDs() []string {
	raw := n.Properties[PropAttachmentIDs]
	if raw == "" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(raw, ";") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Engagement is a legacy engagements-API record. Only the header is typed;
// the remaining sections are passed through untouched.
type Engagement struct {
	Engagement   EngagementHeader `json:"engagement"`
	Associations json.RawMessage  `json:"associations,omitempty"`
	Metadata     json.RawMessage  `json:"metadata,omitempty"`
}

// EngagementHeader identifies an engagement and its type (EMAIL, CALL, ...).
type EngagementHeader struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// StageTransition is one entry of a deal's stage history.
type StageTransition struct {
	StageID   string    `json:"stage_id"`
	StageName string    `json:"stage_name"`
	Timestamp time.Time `json:"timestamp"`
}
