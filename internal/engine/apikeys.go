package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"campaignline/internal/domain"
	"campaignline/internal/engine/auth"
	"campaignline/internal/events"
	"campaignline/internal/repo"
)

// CreateAPIKey issues a key for actorID with the given role. The raw key is returned
// once; only its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, issuer auth.Actor, actorID, role, name string) (domain.APIKey, string, error) {
	if err := auth.RequireAdmin(issuer, "create api key"); err != nil {
		return domain.APIKey{}, "", err
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.APIKey{}, "", required("actor_id")
	}
	role = auth.NormalizeRole(role)
	if !auth.ValidRole(role) {
		return domain.APIKey{}, "", invalid("role", "must be creator or admin")
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("generate key: %w", err)
	}
	raw := "cl_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        newID(),
		ActorID:   actorID,
		Role:      role,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(raw),
		CreatedAt: e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return key, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return key, "", err
	}
	if err := e.events().Append(ctx, tx, events.APIKeyCreated, "", "api_key", key.ID, issuer.ID, events.EventPayload{
		"actor_id": key.ActorID,
		"role":     key.Role,
	}); err != nil {
		return key, "", err
	}
	if err := tx.Commit(); err != nil {
		return key, "", err
	}
	return key, raw, nil
}

func (e Engine) DeleteAPIKey(ctx context.Context, issuer auth.Actor, id string) error {
	if err := auth.RequireAdmin(issuer, "delete api key"); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteAPIKey(ctx, tx, id); err != nil {
		return err
	}
	if err := e.events().Append(ctx, tx, events.APIKeyDeleted, "", "api_key", id, issuer.ID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ListAPIKeys returns stored keys, optionally for one actor. Hashes are included
// but never the raw key.
func (e Engine) ListAPIKeys(ctx context.Context, actor auth.Actor, actorID string) ([]domain.APIKey, error) {
	if err := auth.RequireAdmin(actor, "list api keys"); err != nil {
		return nil, err
	}
	return e.Repo.ListAPIKeys(ctx, strings.TrimSpace(actorID))
}
