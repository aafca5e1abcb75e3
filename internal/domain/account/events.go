package account

import (
	"github.com/campus-portal/portal-core/internal/domain/shared"
)

// RoleAssignedEvent is published once both writes of a role assignment landed.
type RoleAssignedEvent struct {
	shared.BaseEvent
	AssignedBy string   `json:"assigned_by"`
	Role       Role     `json:"role"`
	Claims     ClaimSet `json:"claims"`
}

// NewRoleAssignedEvent creates a RoleAssignedEvent for target.
func NewRoleAssignedEvent(target, assignedBy string, role Role, claims ClaimSet) RoleAssignedEvent {
	return RoleAssignedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventRoleAssigned, target),
		AssignedBy: assignedBy,
		Role:       role,
		Claims:     claims,
	}
}

// Payload implements shared.Event.
func (e RoleAssignedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"target_uid":  e.AggregateID(),
		"assigned_by": e.AssignedBy,
		"role":        string(e.Role),
		"branch":      e.Claims.Branch,
	}
}
