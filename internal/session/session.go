// Package session stores in-flight edit dialogue state. One state exists
// per report+operator pair while the operator is walking through fields;
// the durable report row always holds the committed values.
package session

import (
	"context"
	"errors"
	"time"

	"closeout.app/engine/internal/model"
)

// ErrNotFound is returned when no edit session exists for the pair.
var ErrNotFound = errors.New("edit session not found")

type Phase string

const (
	// PhaseFilling walks the unset fields in fill order.
	PhaseFilling Phase = "filling"
	// PhaseEditing targets one explicitly chosen field and returns to the
	// preview as soon as it is committed.
	PhaseEditing Phase = "editing"
)

// State is a tagged snapshot of where the dialogue stands. A session
// exists only while a field prompt is outstanding; reaching the preview
// ends it, and the report row carries the reviewed/terminal state.
type State struct {
	ReportID    int64             `json:"report_id"`
	OperatorID  string            `json:"operator_id"`
	Phase       Phase             `json:"phase"`
	TargetField model.ReportField `json:"target_field,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Store persists dialogue state between webhook-driven operator actions.
type Store interface {
	Get(ctx context.Context, reportID int64, operatorID string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, reportID int64, operatorID string) error
}
