package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"campaignline/internal/domain"
	"campaignline/internal/engine"
)

type campaignPath struct {
	CampaignID string `path:"campaign_id"`
}

func registerCampaigns(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-campaign",
		Method:        http.MethodPost,
		Path:          "/campaigns",
		Summary:       "Create campaign",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateCampaignRequest `json:"body"`
	}) (*struct {
		Body domain.Campaign `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateCampaign(ctx, actor, engine.CampaignCreateOptions{
			ID:                 input.Body.ID,
			Title:              input.Body.Title,
			Type:               domain.CampaignType(input.Body.Type),
			RewardAmount:       input.Body.RewardAmount,
			RequiresCleanVideo: input.Body.RequiresCleanVideo,
			RequiresAdCode:     input.Body.RequiresAdCode,
			TargetPlatforms:    input.Body.TargetPlatforms,
			Slots:              campaignSlots(input.Body.Slots),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Campaign `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-campaigns",
		Method:      http.MethodGet,
		Path:        "/campaigns",
		Summary:     "List campaigns",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Campaign `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListCampaigns(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Campaign `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-campaign",
		Method:      http.MethodGet,
		Path:        "/campaigns/{campaign_id}",
		Summary:     "Get campaign",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *campaignPath) (*struct {
		Body domain.Campaign `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		c, err := e.GetCampaign(ctx, input.CampaignID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Campaign `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-campaign",
		Method:      http.MethodPatch,
		Path:        "/campaigns/{campaign_id}",
		Summary:     "Update campaign",
		Description: "Deadlines, guides, platforms and rules may change. The campaign type may not.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		CampaignID string                `path:"campaign_id"`
		Body       UpdateCampaignRequest `json:"body"`
	}) (*struct {
		Body domain.Campaign `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.CampaignUpdateOptions{
			ID:                 input.CampaignID,
			Title:              input.Body.Title,
			RewardAmount:       input.Body.RewardAmount,
			RequiresCleanVideo: input.Body.RequiresCleanVideo,
			RequiresAdCode:     input.Body.RequiresAdCode,
			TargetPlatforms:    input.Body.TargetPlatforms,
			Slots:              campaignSlots(input.Body.Slots),
		}
		if input.Body.Type != nil {
			t := domain.CampaignType(*input.Body.Type)
			opts.Type = &t
		}
		c, err := e.UpdateCampaign(ctx, actor, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Campaign `json:"body"`
		}{Body: c}, nil
	})
}
