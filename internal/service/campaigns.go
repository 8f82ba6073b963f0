package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/whatsdrip/dashboard/internal/apiclient"
	apperrors "github.com/whatsdrip/dashboard/internal/errors"
	"github.com/whatsdrip/dashboard/internal/model"
	"github.com/whatsdrip/dashboard/internal/notify"
	"github.com/whatsdrip/dashboard/internal/util"
)

var campaignStatuses = []string{
	string(model.CampaignStatusActive),
	string(model.CampaignStatusPaused),
	string(model.CampaignStatusDraft),
	string(model.CampaignStatusCompleted),
}

func campaignPath(id string, suffix ...string) string {
	parts := append([]string{pathCampaigns, url.PathEscape(id)}, suffix...)
	return strings.Join(parts, "/")
}

func (f *Facade) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	var resp model.CampaignListResponse
	if err := f.call(ctx, "list campaigns", http.MethodGet, pathCampaigns, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Campaigns, nil
}

func (f *Facade) CreateCampaign(ctx context.Context, params model.CreateCampaignParams) (*model.Campaign, error) {
	if util.IsBlank(params.Name) {
		return nil, apperrors.ValidationError("Campaign name is required")
	}
	if params.Status == "" {
		params.Status = model.CampaignStatusActive
	}
	if !util.IsValidEnum(string(params.Status), campaignStatuses) {
		return nil, apperrors.InvalidInput("status", "must be one of active, paused, draft, completed")
	}

	now := f.nowMillis()
	campaign := model.Campaign{
		ID:           util.NewID("campaign"),
		Name:         strings.TrimSpace(params.Name),
		Description:  params.Description,
		Status:       params.Status,
		StartDate:    params.StartDate,
		EndDate:      params.EndDate,
		DayTemplates: map[int]string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx = apiclient.WithIdempotencyKey(ctx, util.NewIdempotencyKey())

	var resp model.CampaignResponse
	if err := f.call(ctx, "create campaign", http.MethodPost, pathCampaigns, campaign, &resp); err != nil {
		return nil, err
	}

	created := resp.Campaign
	if created.ID == "" {
		created = campaign
	}
	f.notifier.Notify(ctx, notify.LevelSuccess, "Campaign created successfully!")
	return &created, nil
}

func (f *Facade) UpdateCampaign(ctx context.Context, id string, params model.UpdateCampaignParams) (*model.SuccessResponse, error) {
	if util.IsBlank(id) {
		return nil, apperrors.MissingRequired("campaignId")
	}
	if params.Name != nil && strings.TrimSpace(*params.Name) == "" {
		return nil, apperrors.ValidationError("Campaign name is required")
	}
	if params.Status != nil && !util.IsValidEnum(string(*params.Status), campaignStatuses) {
		return nil, apperrors.InvalidInput("status", "must be one of active, paused, draft, completed")
	}
	params.UpdatedAt = f.nowMillis()

	var resp model.SuccessResponse
	if err := f.call(ctx, "update campaign", http.MethodPut, campaignPath(id), params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *Facade) DeleteCampaign(ctx context.Context, id string) (*model.SuccessResponse, error) {
	if util.IsBlank(id) {
		return nil, apperrors.MissingRequired("campaignId")
	}

	var resp model.SuccessResponse
	if err := f.call(ctx, "delete campaign", http.MethodDelete, campaignPath(id), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Success {
		f.notifier.Notify(ctx, notify.LevelSuccess, "Campaign deleted successfully!")
	}
	return &resp, nil
}

// AssignTemplateToDay goes through the backend's assign endpoint, the only
// write path for day assignments.
func (f *Facade) AssignTemplateToDay(ctx context.Context, campaignID string, day int, templateID string) (*model.SuccessResponse, error) {
	if util.IsBlank(campaignID) {
		return nil, apperrors.MissingRequired("campaignId")
	}
	if day < 1 {
		return nil, apperrors.InvalidInput("day", "must be 1 or greater")
	}
	if util.IsBlank(templateID) {
		return nil, apperrors.MissingRequired("templateId")
	}

	var resp model.SuccessResponse
	if err := f.call(ctx, "assign template", http.MethodPost, campaignPath(campaignID, "assign-template"),
		model.AssignTemplateParams{Day: day, TemplateID: templateID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *Facade) RemoveTemplateFromDay(ctx context.Context, campaignID string, day int) (*model.SuccessResponse, error) {
	if util.IsBlank(campaignID) {
		return nil, apperrors.MissingRequired("campaignId")
	}
	if day < 1 {
		return nil, apperrors.InvalidInput("day", "must be 1 or greater")
	}

	var resp model.SuccessResponse
	if err := f.call(ctx, "remove template", http.MethodDelete,
		campaignPath(campaignID, "remove-template", strconv.Itoa(day)), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *Facade) GetCampaignAnalytics(ctx context.Context, campaignID string) (json.RawMessage, error) {
	if util.IsBlank(campaignID) {
		return nil, apperrors.MissingRequired("campaignId")
	}

	var report json.RawMessage
	if err := f.call(ctx, "campaign analytics", http.MethodGet, campaignPath(campaignID, "analytics"), nil, &report); err != nil {
		return nil, err
	}
	return report, nil
}

func (f *Facade) StartUserJourney(ctx context.Context, campaignID string, params model.StartJourneyParams) (*model.SuccessResponse, error) {
	if util.IsBlank(campaignID) {
		return nil, apperrors.MissingRequired("campaignId")
	}
	if util.IsBlank(params.ContactID) {
		return nil, apperrors.MissingRequired("contactId")
	}
	if util.IsBlank(params.Phone) {
		return nil, apperrors.MissingRequired("phone")
	}

	var resp model.SuccessResponse
	if err := f.call(ctx, "start journey", http.MethodPost, campaignPath(campaignID, "start-journey"), params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *Facade) GetCampaignJourneys(ctx context.Context, campaignID string) (json.RawMessage, error) {
	if util.IsBlank(campaignID) {
		return nil, apperrors.MissingRequired("campaignId")
	}

	var journeys json.RawMessage
	if err := f.call(ctx, "campaign journeys", http.MethodGet, campaignPath(campaignID, "journeys"), nil, &journeys); err != nil {
		return nil, err
	}
	return journeys, nil
}

func (f *Facade) BulkCampaignOperation(ctx context.Context, action model.BulkAction, ids []string, data map[string]any) (json.RawMessage, error) {
	if action == "" {
		return nil, apperrors.MissingRequired("action")
	}
	if len(ids) == 0 {
		return nil, apperrors.MissingRequired("campaignIds")
	}
	if data == nil {
		data = map[string]any{}
	}

	var result json.RawMessage
	if err := f.call(ctx, "bulk campaign operation", http.MethodPost, pathCampaigns+"/bulk",
		model.BulkCampaignParams{Action: action, CampaignIDs: ids, Data: data}, &result); err != nil {
		return nil, err
	}
	return result, nil
}
