package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Deal property names the pipeline reads or writes.
const (
	PropDealName      = "dealname"
	PropOwner         = "hubspot_owner_id"
	PropTeamMember    = "team_member_1"
	PropFund          = "fund"
	PropKeywords      = "keywords"
	PropDealStage     = "dealstage"
	PropNoteBody      = "hs_note_body"
	PropAttachmentIDs = "hs_attachment_ids"

	detailsSuffix = "_details"
)

// DefaultDealProperties is the property set requested for every deal.
var DefaultDealProperties = []string{
	PropDealName,
	"priority",
	"referral_type",
	"pipeline",
	"broad_category_updated",
	"subcategory",
	PropFund,
	PropOwner,
	PropTeamMember,
	"createdate",
	PropKeywords,
}

// Properties is a CRM property bag. Null values decode to "" and
// non-string scalars keep their JSON text.
type Properties map[string]string

// UnmarshalJSON implements json.Unmarshaler.
func (p *Properties) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Properties, len(raw))
	for k, v := range raw {
		out[k] = rawString(v)
	}
	*p = out
	return nil
}

func rawString(v json.RawMessage) string {
	s := strings.TrimSpace(string(v))
	if s == "null" || s == "" {
		return ""
	}
	var str string
	if err := json.Unmarshal(v, &str); err == nil {
		return str
	}
	return s
}

// Deal is a CRM deal plus everything the enrichment stages attach to it.
type Deal struct {
	ID         string
	Properties Properties
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Archived   bool

	Notes        []Note
	Attachments  []string
	Engagements  []Engagement
	StageHistory []StageTransition

	// OwnerDetails is keyed by the owner-reference property name
	// (hubspot_owner_id, team_member_1).
	OwnerDetails map[string]*Owner

	// Parsed holds the decoded classification output, if any.
	Parsed map[string]any

	// EnrichmentError is set when the per-deal enrichment task failed.
	EnrichmentError string
}

// Name returns the dealname property.
func (d *Deal) Name() string {
	return d.Property(PropDealName)
}

// Property returns a property value or "".
func (d *Deal) Property(name string) string {
	if d.Properties == nil {
		return ""
	}
	return d.Properties[name]
}

// EnsureEnrichment makes Notes, Attachments and Engagements non-nil.
func (d *Deal) EnsureEnrichment() {
	if d.Notes == nil {
		d.Notes = []Note{}
	}
	if d.Attachments == nil {
		d.Attachments = []string{}
	}
	if d.Engagements == nil {
		d.Engagements = []Engagement{}
	}
}

// SetOwnerDetails attaches owner details under the given reference property.
func (d *Deal) SetOwnerDetails(property string, o *Owner) {
	if d.OwnerDetails == nil {
		d.OwnerDetails = make(map[string]*Owner)
	}
	d.OwnerDetails[property] = o
}

// Owner returns the details attached for property, or nil.
func (d *Deal) Owner(property string) *Owner {
	if d.OwnerDetails == nil {
		return nil
	}
	return d.OwnerDetails[property]
}

// Recommendation returns parsed.recommendation, if present.
func (d *Deal) Recommendation() (any, bool) {
	if d.Parsed == nil {
		return nil, false
	}
	v, ok := d.Parsed["recommendation"]
	return v, ok && v != nil
}

// MarshalJSON emits the CRM object shape with enrichment keys alongside,
// owner details flattened as "<property>_details".
func (d Deal) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":         d.ID,
		"properties": d.Properties,
		"archived":   d.Archived,
	}
	if !d.CreatedAt.IsZero() {
		out["createdAt"] = d.CreatedAt.Format(time.RFC3339Nano)
	}
	if !d.UpdatedAt.IsZero() {
		out["updatedAt"] = d.UpdatedAt.Format(time.RFC3339Nano)
	}
	if d.Notes != nil {
		out["notes"] = d.Notes
	}
	if d.Attachments != nil {
		out["attachments"] = d.Attachments
	}
	if d.Engagements != nil {
		out["engagements"] = d.Engagements
	}
	if d.StageHistory != nil {
		out["deal_stage_history"] = d.StageHistory
	}
	for prop, o := range d.OwnerDetails {
		out[prop+detailsSuffix] = o
	}
	if d.Parsed != nil {
		out["parsed"] = d.Parsed
	}
	if d.EnrichmentError != "" {
		out["enrichment_error"] = d.EnrichmentError
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both the raw CRM object and the enriched form
// produced by MarshalJSON.
func (d *Deal) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Deal
	for key, v := range raw {
		var err error
		switch key {
		case "id":
			out.ID = rawString(v)
		case "properties":
			err = json.Unmarshal(v, &out.Properties)
		case "createdAt":
			out.CreatedAt, err = parseTime(v)
		case "updatedAt":
			out.UpdatedAt, err = parseTime(v)
		case "archived":
			err = json.Unmarshal(v, &out.Archived)
		case "notes":
			err = json.Unmarshal(v, &out.Notes)
		case "attachments":
			err = json.Unmarshal(v, &out.Attachments)
		case "engagements":
			err = json.Unmarshal(v, &out.Engagements)
		case "deal_stage_history":
			err = json.Unmarshal(v, &out.StageHistory)
		case "parsed":
			err = json.Unmarshal(v, &out.Parsed)
		case "enrichment_error":
			out.EnrichmentError = rawString(v)
		default:
			if prop, ok := strings.CutSuffix(key, detailsSuffix); ok {
				var o Owner
				if err = json.Unmarshal(v, &o); err == nil {
					out.SetOwnerDetails(prop, &o)
				}
			}
		}
		if err != nil {
			return err
		}
	}
	*d = out
	return nil
}

func parseTime(v json.RawMessage) (time.Time, error) {
	s := rawString(v)
	if s == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
