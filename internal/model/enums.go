package model

import "strings"

type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusCompleted CampaignStatus = "completed"
)

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypePDF   MediaType = "pdf"
)

// MediaTypeFromContentType maps an upload's MIME type onto the accepted
// attachment kinds. ok is false for anything else.
func MediaTypeFromContentType(contentType string) (MediaType, bool) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return MediaTypeImage, true
	case strings.HasPrefix(contentType, "video/"):
		return MediaTypeVideo, true
	case contentType == "application/pdf":
		return MediaTypePDF, true
	default:
		return "", false
	}
}

type BulkAction string

const (
	BulkActionActivate   BulkAction = "activate"
	BulkActionDeactivate BulkAction = "deactivate"
	BulkActionDelete     BulkAction = "delete"
	BulkActionPause      BulkAction = "pause"
	BulkActionResume     BulkAction = "resume"
)

type ExportType string

const (
	ExportTypeContacts  ExportType = "contacts"
	ExportTypeMessages  ExportType = "messages"
	ExportTypeCampaigns ExportType = "campaigns"
)
