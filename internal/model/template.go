package model

// Template is a drip message. Timestamps are Unix milliseconds, as the
// backend stores them.
type Template struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Day        int             `json:"day"`
	DelayHours int             `json:"delayHours"`
	IsActive   bool            `json:"isActive"`
	Content    TemplateContent `json:"content"`
	CreatedAt  int64           `json:"createdAt,omitempty"`
	UpdatedAt  int64           `json:"updatedAt,omitempty"`
}

type TemplateContent struct {
	Message string          `json:"message"`
	Media   []TemplateMedia `json:"media"`
}

type TemplateMedia struct {
	ID       string    `json:"id"`
	Type     MediaType `json:"type"`
	URL      string    `json:"url,omitempty"`
	FileName string    `json:"fileName,omitempty"`
	Size     int64     `json:"size,omitempty"`
}

type CreateTemplateParams struct {
	Name       string `json:"name"`
	Day        int    `json:"day"`
	DelayHours int    `json:"delayHours"`
	IsActive   bool   `json:"isActive"`
	Message    string `json:"message"`
}

// MediaUpload is one file destined for a template's media slot.
type MediaUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

type TemplateListResponse struct {
	Success   bool       `json:"success"`
	Templates []Template `json:"templates"`
}

type TemplateResponse struct {
	Success  bool     `json:"success"`
	Template Template `json:"template"`
}

type TestSendParams struct {
	TestPhoneNumber string `json:"testPhoneNumber"`
}

// UpdateTemplateParams is a partial update; nil fields are left unchanged.
type UpdateTemplateParams struct {
	Name       *string          `json:"name,omitempty"`
	Day        *int             `json:"day,omitempty"`
	DelayHours *int             `json:"delayHours,omitempty"`
	IsActive   *bool            `json:"isActive,omitempty"`
	Message    *string          `json:"message,omitempty"`
	Content    *TemplateContent `json:"content,omitempty"`
	UpdatedAt  int64            `json:"updatedAt,omitempty"`
}

type MediaUploadResponse struct {
	Success bool            `json:"success"`
	Media   []TemplateMedia `json:"media"`
}
