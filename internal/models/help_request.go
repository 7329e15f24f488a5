package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// HelpRequestStatus captures lifecycle states for help requests.
type HelpRequestStatus string

const (
	HelpRequestStatusPending   HelpRequestStatus = "pending"
	HelpRequestStatusAccepted  HelpRequestStatus = "accepted"
	HelpRequestStatusCompleted HelpRequestStatus = "completed"
	HelpRequestStatusCancelled HelpRequestStatus = "cancelled"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s HelpRequestStatus) Valid() bool {
	switch s {
	case HelpRequestStatusPending, HelpRequestStatusAccepted, HelpRequestStatusCompleted, HelpRequestStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no guarded transition leaves the status.
func (s HelpRequestStatus) Terminal() bool {
	return s == HelpRequestStatusCompleted || s == HelpRequestStatusCancelled
}

// HelpRequest tracks one person's request for assistance.
type HelpRequest struct {
	ID                string            `db:"id" json:"id"`
	RequesterID       string            `db:"requester_id" json:"requester_id"`
	Location          *Location         `db:"location" json:"location"`
	Status            HelpRequestStatus `db:"status" json:"status"`
	AssignedVolunteer *string           `db:"assigned_volunteer" json:"assigned_volunteer"`
	DeclinedBy        VolunteerSet      `db:"declined_by" json:"declined_by"`
	CancelReason      *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	AcceptedAt        *time.Time        `db:"accepted_at" json:"accepted_at,omitempty"`
	CompletedAt       *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt       *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	Version           int64             `db:"version" json:"-"`
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (r *HelpRequest) Clone() *HelpRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.Location != nil {
		loc := *r.Location
		c.Location = &loc
	}
	c.AssignedVolunteer = cloneString(r.AssignedVolunteer)
	c.CancelReason = cloneString(r.CancelReason)
	c.AcceptedAt = cloneTime(r.AcceptedAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	c.CancelledAt = cloneTime(r.CancelledAt)
	c.DeclinedBy = append(VolunteerSet{}, r.DeclinedBy...)
	return &c
}

// HelpRequestFilter constrains listing queries.
type HelpRequestFilter struct {
	Status      []HelpRequestStatus
	RequesterID string
	VolunteerID string
}

// VolunteerSet is an ordered set of volunteer ids persisted as a JSON array.
type VolunteerSet []string

// Contains reports whether id is in the set.
func (s VolunteerSet) Contains(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Add appends id when absent and reports whether the set changed.
func (s *VolunteerSet) Add(id string) bool {
	if s.Contains(id) {
		return false
	}
	*s = append(*s, id)
	return true
}

// ContainsAll reports whether every id is present. An empty ids slice is vacuously contained.
func (s VolunteerSet) ContainsAll(ids []string) bool {
	for _, id := range ids {
		if !s.Contains(id) {
			return false
		}
	}
	return true
}

// MarshalJSON renders nil sets as an empty array.
func (s VolunteerSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// Value implements driver.Valuer.
func (s VolunteerSet) Value() (driver.Value, error) {
	payload, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

// Scan implements sql.Scanner.
func (s *VolunteerSet) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("scan volunteer set: %w", err)
	}
	if len(raw) == 0 {
		*s = VolunteerSet{}
		return nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("scan volunteer set: %w", err)
	}
	*s = VolunteerSet(ids)
	return nil
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
