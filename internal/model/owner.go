package model

import (
	"encoding/json"
	"strings"
)

// Owner is a CRM user referenced by a deal's owner properties. The zero
// value is the "empty details" attached when a lookup fails.
type Owner struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
}

// FullName joins first and last name.
func (o *Owner) FullName() string {
	if o == nil {
		return ""
	}
	return strings.TrimSpace(o.FirstName + " " + o.LastName)
}

// IsEmpty reports whether no details were resolved.
func (o *Owner) IsEmpty() bool {
	return o == nil || *o == Owner{}
}

// UnmarshalJSON accepts the legacy owners shape ("ownerId", numeric) as well
// as the v3 shape ("id", string).
func (o *Owner) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        json.RawMessage `json:"id"`
		OwnerID   json.RawMessage `json:"ownerId"`
		FirstName string          `json:"firstName"`
		LastName  string          `json:"lastName"`
		Email     string          `json:"email"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.ID = rawString(raw.ID)
	if o.ID == "" {
		o.ID = rawString(raw.OwnerID)
	}
	o.FirstName = raw.FirstName
	o.LastName = raw.LastName
	o.Email = raw.Email
	return nil
}
