package model

type Campaign struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Status       CampaignStatus `json:"status"`
	StartDate    string         `json:"startDate,omitempty"`
	EndDate      string         `json:"endDate,omitempty"`
	DayTemplates map[int]string `json:"dayTemplates"`
	CreatedAt    int64          `json:"createdAt,omitempty"`
	UpdatedAt    int64          `json:"updatedAt,omitempty"`
}

// TemplateIDForDay returns the template assigned to day, treating an empty
// entry as unassigned.
func (c *Campaign) TemplateIDForDay(day int) (string, bool) {
	id, ok := c.DayTemplates[day]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

type CreateCampaignParams struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      CampaignStatus `json:"status"`
	StartDate   string         `json:"startDate,omitempty"`
	EndDate     string         `json:"endDate,omitempty"`
}

type CampaignListResponse struct {
	Success   bool       `json:"success"`
	Campaigns []Campaign `json:"campaigns"`
}

type CampaignResponse struct {
	Success  bool     `json:"success"`
	Campaign Campaign `json:"campaign"`
}

type AssignTemplateParams struct {
	Day        int    `json:"day"`
	TemplateID string `json:"templateId"`
}

type StartJourneyParams struct {
	ContactID   string `json:"contactId"`
	ContactName string `json:"contactName"`
	Phone       string `json:"phone"`
}

type BulkTemplateParams struct {
	Action      BulkAction     `json:"action"`
	TemplateIDs []string       `json:"templateIds"`
	Data        map[string]any `json:"data"`
}

type BulkCampaignParams struct {
	Action      BulkAction     `json:"action"`
	CampaignIDs []string       `json:"campaignIds"`
	Data        map[string]any `json:"data"`
}

// UpdateCampaignParams is a partial update; nil fields are left unchanged.
// Day assignments are not updatable here, only through assign/remove.
type UpdateCampaignParams struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Status      *CampaignStatus `json:"status,omitempty"`
	StartDate   *string         `json:"startDate,omitempty"`
	EndDate     *string         `json:"endDate,omitempty"`
	UpdatedAt   int64           `json:"updatedAt,omitempty"`
}
