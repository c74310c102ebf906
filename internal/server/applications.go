package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"campaignline/internal/domain"
	"campaignline/internal/engine"
	"campaignline/internal/engine/auth"
	"campaignline/internal/lifecycle"
	"campaignline/internal/repo"
	"campaignline/internal/translate"
)

type applicationPath struct {
	ID string `path:"id"`
}

type slotPath struct {
	ID   string `path:"id"`
	Slot int    `path:"slot" minimum:"0" maximum:"4" doc:"0 for a standard campaign, 1-4 for challenge weeks"`
}

type applicationBody struct {
	Body domain.Application `json:"body"`
}

var applicationErrors = []int{
	http.StatusBadRequest,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
}

func registerApplications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "apply",
		Method:        http.MethodPost,
		Path:          "/campaigns/{campaign_id}/applications",
		Summary:       "Apply to a campaign",
		DefaultStatus: http.StatusCreated,
		Errors:        applicationErrors,
	}, func(ctx context.Context, input *struct {
		CampaignID string       `path:"campaign_id"`
		Body       ApplyRequest `json:"body" required:"false"`
	}) (*applicationBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := e.Apply(ctx, actor, input.CampaignID, input.Body.MainChannel)
		if err != nil {
			return nil, handleError(err)
		}
		return &applicationBody{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-campaign-applications",
		Method:      http.MethodGet,
		Path:        "/campaigns/{campaign_id}/applications",
		Summary:     "List applications of a campaign",
		Description: "Admins see every application; creators only their own.",
	}, func(ctx context.Context, input *struct {
		CampaignID string `path:"campaign_id"`
		Status     string `query:"status"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body applicationList `json:"body"`
	}, error) {
		return listApplications(ctx, e, repo.ApplicationFilters{
			CampaignID: input.CampaignID,
			Status:     input.Status,
			Limit:      normalizeLimit(input.Limit),
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-applications",
		Method:      http.MethodGet,
		Path:        "/me/applications",
		Summary:     "List my applications",
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body applicationList `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return listApplications(ctx, e, repo.ApplicationFilters{
			UserID: actor.ID,
			Status: input.Status,
			Limit:  normalizeLimit(input.Limit),
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-application",
		Method:      http.MethodGet,
		Path:        "/applications/{id}",
		Summary:     "Get application",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *applicationPath) (*applicationBody, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		app, err := e.GetApplication(ctx, actor, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &applicationBody{Body: app}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-application",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/approve",
		Summary:     "Select a creator",
		Errors:      applicationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                    `path:"id"`
		Body ApproveApplicationRequest `json:"body" required:"false"`
	}) (*applicationBody, error) {
		return applicationAction(ctx, func(actor auth.Actor) (domain.Application, error) {
			return e.ApproveApplication(ctx, actor, input.ID, input.Body.Slots)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-application",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/reject",
		Summary:     "Reject a pending application",
		Errors:      applicationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body ReasonRequest `json:"body" required:"false"`
	}) (*applicationBody, error) {
		return applicationAction(ctx, func(actor auth.Actor) (domain.Application, error) {
			return e.RejectApplication(ctx, actor, input.ID, input.Body.Reason)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-application",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/cancel",
		Summary:     "Cancel a selected application",
		Errors:      applicationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body ReasonRequest `json:"body" required:"false"`
	}) (*applicationBody, error) {
		return applicationAction(ctx, func(actor auth.Actor) (domain.Application, error) {
			return e.CancelApplication(ctx, actor, input.ID, input.Body.Reason)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-deadline",
		Method:      http.MethodPut,
		Path:        "/applications/{id}/deadlines/{key}",
		Summary:     "Override a deadline for one application",
		Description: "An empty value removes the override and restores the campaign default.",
		Errors:      applicationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Key  string          `path:"key" example:"week1_deadline"`
		Body DeadlineRequest `json:"body"`
	}) (*applicationBody, error) {
		return applicationAction(ctx, func(actor auth.Actor) (domain.Application, error) {
			return e.SetCustomDeadline(ctx, actor, input.ID, input.Key, input.Body.Value)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "application-progress",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/progress",
		Summary:     "Progress view",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *applicationPath) (*struct {
		Body lifecycle.Progress `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.Progress(ctx, actor, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body lifecycle.Progress `json:"body"`
		}{Body: p}, nil
	})
}

func listApplications(ctx context.Context, e engine.Engine, f repo.ApplicationFilters) (*struct {
	Body applicationList `json:"body"`
}, error) {
	actor, authErr := actorFromContext(ctx)
	if authErr != nil {
		return nil, authErr
	}
	items, err := e.ListApplications(ctx, actor, f)
	if err != nil {
		return nil, handleError(err)
	}
	return &struct {
		Body applicationList `json:"body"`
	}{Body: applicationList{Items: nonNilSlice(items)}}, nil
}

func applicationAction(ctx context.Context, fn func(actor auth.Actor) (domain.Application, error)) (*applicationBody, error) {
	actor, authErr := actorFromContext(ctx)
	if authErr != nil {
		return nil, authErr
	}
	app, err := fn(actor)
	if err != nil {
		return nil, handleError(err)
	}
	return &applicationBody{Body: app}, nil
}

func registerSlots(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "start-filming",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/slots/{slot}/film",
		Summary:     "Mark filming started",
		Errors:      applicationErrors,
	}, func(ctx context.Context, input *slotPath) (*applicationBody, error) {
		return applicationAction(ctx, func(actor auth.Actor) (domain.Application, error) {
			return e.StartFilming(ctx, actor, input.ID, input.Slot)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-video",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/slots/{slot}/approve",
		Summary:     "Approve the submitted video",
		Errors:      applicationErrors,
	}, func(ctx context.Context, input *slotPath) (*applicationBody, error) {
		return applicationAction(ctx, func(actor auth.Actor) (domain.Application, error) {
			return e.ApproveVideo(ctx, actor, input.ID, input.Slot)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-revision",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/slots/{slot}/revise",
		Summary:     "Request a revision of the submitted video",
		Errors:      applicationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Slot int                    `path:"slot" minimum:"0" maximum:"4"`
		Body RevisionCommentRequest `json:"body"`
	}) (*applicationBody, error) {
		return applicationAction(ctx, func(actor auth.Actor) (domain.Application, error) {
			return e.RequestRevision(ctx, actor, input.ID, input.Slot, input.Body.Comment, input.Body.CommentTranslated)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "finalize-slot",
		Method:      http.MethodPost,
		Path:        "/applications/{id}/slots/{slot}/finalize",
		Summary:     "Confirm the post and close the slot",
		Errors:      applicationErrors,
	}, func(ctx context.Context, input *slotPath) (*applicationBody, error) {
		return applicationAction(ctx, func(actor auth.Actor) (domain.Application, error) {
			return e.Finalize(ctx, actor, input.ID, input.Slot)
		})
	})
}

func registerRevisions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-revisions",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/revisions",
		Summary:     "Revision requests, oldest first",
		Description: "lang (or Accept-Language) attaches a translation to entries that lack one.",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID             string `path:"id"`
		Lang           string `query:"lang" example:"en"`
		AcceptLanguage string `header:"Accept-Language"`
	}) (*struct {
		Body []domain.RevisionRequest `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		lang := strings.TrimSpace(input.Lang)
		if lang == "" {
			if tag, ok := translate.FromAcceptLanguage(input.AcceptLanguage); ok {
				lang = tag.String()
			}
		}
		items, err := e.ListRevisions(ctx, actor, input.ID, lang)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.RevisionRequest `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-submissions",
		Method:      http.MethodGet,
		Path:        "/applications/{id}/submissions",
		Summary:     "Video version history",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Slot  int    `query:"slot" default:"-1" doc:"-1 lists every slot"`
		Track string `query:"track" doc:"video or clean_video; empty lists both"`
	}) (*struct {
		Body []domain.VideoSubmission `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var slot *int
		if input.Slot >= 0 {
			slot = &input.Slot
		}
		items, err := e.ListSubmissions(ctx, actor, input.ID, slot, input.Track)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.VideoSubmission `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})
}
