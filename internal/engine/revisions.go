package engine

import (
	"context"
	"strings"

	"campaignline/internal/domain"
	"campaignline/internal/engine/auth"
	"campaignline/internal/translate"
)

// ListRevisions returns the revision ledger oldest first. When lang is set and a
// translator is configured, entries without a stored translation get one attached to
// the response only. Translation failures fall back to the original comment.
func (e Engine) ListRevisions(ctx context.Context, actor auth.Actor, id, lang string) ([]domain.RevisionRequest, error) {
	app, err := e.Repo.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwnerOrAdmin(actor, app.UserID, "list revisions"); err != nil {
		return nil, err
	}
	entries, err := e.Repo.ListRevisionRequests(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(lang) == "" || e.Translator == nil {
		return entries, nil
	}
	target, err := translate.ParseTag(lang)
	if err != nil {
		return nil, invalid("lang", "is not a valid language tag")
	}
	source, err := translate.ParseTag(e.Config.Translation.SourceLanguage)
	if err != nil || translate.SameLanguage(source, target) {
		return entries, nil
	}
	for i := range entries {
		if entries[i].CommentTranslated != "" {
			continue
		}
		out, err := e.Translator.Translate(ctx, entries[i].Comment, source, target)
		if err != nil {
			e.logger().Warn("revision comment translation failed",
				"event", "revision_translation_failed",
				"module", logModule,
				"layer", "engine",
				"application_id", id,
				"revision_id", entries[i].ID,
				"lang", target.String(),
				"error", err.Error(),
			)
			continue
		}
		entries[i].CommentTranslated = out
	}
	return entries, nil
}
