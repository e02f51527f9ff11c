package returns

import (
	"context"

	"returnbox_back_end/internal/models"
)

type ChangeKind string

const (
	ChangeSubmitted       ChangeKind = "submitted"
	ChangeDecided         ChangeKind = "decided"
	ChangeNotes           ChangeKind = "notes"
	ChangePickupScheduled ChangeKind = "pickup_scheduled"
	ChangeCompleted       ChangeKind = "completed"
)

// Change est publié après chaque mutation réussie, jamais avant
type Change struct {
	Kind    ChangeKind           `json:"kind"`
	Return  models.ReturnRequest `json:"return"`
	Pickup  *models.Pickup       `json:"pickup,omitempty"`
	ActorID string               `json:"actor_id,omitempty"`
}

// Listener reçoit les changements (cache, recherche, notifications, métriques).
// Une erreur côté listener ne remet jamais en cause la mutation déjà faite.
type Listener interface {
	ReturnChanged(ctx context.Context, ch Change)
}

// ListenerFunc adapte une fonction en Listener
type ListenerFunc func(ctx context.Context, ch Change)

func (f ListenerFunc) ReturnChanged(ctx context.Context, ch Change) { f(ctx, ch) }
