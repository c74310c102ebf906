// Package auth models the caller identity the engine authorizes against.
package auth

import (
	"errors"
	"fmt"
	"strings"
)

const (
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

// Actor is the authenticated caller. Identity is established outside the engine.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// ForbiddenError indicates the actor may not perform an action.
type ForbiddenError struct {
	Action string
	Reason string
}

func (e ForbiddenError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s not permitted", e.Action)
	}
	return fmt.Sprintf("%s not permitted: %s", e.Action, e.Reason)
}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	return role == RoleCreator || role == RoleAdmin
}

// NormalizeRole lowercases a role and defaults empty to creator.
func NormalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return RoleCreator
	}
	return role
}

// Validate checks that the actor is identified with a known role.
func (a Actor) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("actor_id required")
	}
	if !ValidRole(a.Role) {
		return fmt.Errorf("unknown role %q", a.Role)
	}
	return nil
}

// RequireAdmin fails unless the actor is an admin.
func RequireAdmin(a Actor, action string) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if !a.IsAdmin() {
		return ForbiddenError{Action: action, Reason: "admin role required"}
	}
	return nil
}

// RequireCreator fails unless the actor is a creator acting for ownerID.
func RequireCreator(a Actor, ownerID, action string) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Role != RoleCreator {
		return ForbiddenError{Action: action, Reason: "creator role required"}
	}
	if ownerID != "" && a.ID != ownerID {
		return ForbiddenError{Action: action, Reason: "application belongs to another creator"}
	}
	return nil
}

// RequireOwnerOrAdmin allows admins and the owning creator.
func RequireOwnerOrAdmin(a Actor, ownerID, action string) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.IsAdmin() || a.ID == ownerID {
		return nil
	}
	return ForbiddenError{Action: action, Reason: "application belongs to another creator"}
}
