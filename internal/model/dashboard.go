package model

type Contact struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	CurrentDay        int    `json:"currentDay"`
	MessagesSent      int    `json:"messagesSent"`
	MessagesReceived  int    `json:"messagesReceived"`
	FlowCompleted     bool   `json:"flowCompleted"`
	LastInteractionAt int64  `json:"lastInteraction,omitempty"`
}

type DashboardStats struct {
	TotalContacts       int `json:"totalContacts"`
	NewContactsToday    int `json:"newContactsToday"`
	ActiveConversations int `json:"activeConversations"`
	CompletedFlows      int `json:"completedFlows"`
	MessagesSentToday   int `json:"messagesSentToday"`
}

// DashboardData is refetched wholesale; there is no incremental update path.
type DashboardData struct {
	Success  bool           `json:"success"`
	Contacts []Contact      `json:"contacts"`
	Stats    DashboardStats `json:"stats"`
}

type WorkingHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type Settings struct {
	BotEnabled      bool         `json:"botEnabled"`
	MessageDelay    int          `json:"messageDelay"`
	LanguageTimeout int          `json:"languageTimeout"`
	DemoTimeout     int          `json:"demoTimeout"`
	AutoReply       bool         `json:"autoReply"`
	WorkingHours    WorkingHours `json:"workingHours"`
}

// SuccessResponse is the envelope most backend mutations answer with.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ExportFile is a downloaded spreadsheet.
type ExportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

type SettingsResponse struct {
	Success  bool     `json:"success"`
	Settings Settings `json:"settings"`
}
