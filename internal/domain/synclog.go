package domain

// Direction of a synchronization attempt relative to this service.
type Direction string

const (
	DirectionInbound  Direction = "Inbound"
	DirectionOutbound Direction = "Outbound"
)

// LogStatus is the lifecycle state of a sync log entry. Received and
// Attempting are pending; Success and Error are terminal.
type LogStatus string

const (
	LogReceived   LogStatus = "Received"
	LogAttempting LogStatus = "Attempting"
	LogSuccess    LogStatus = "Success"
	LogError      LogStatus = "Error"
)

// Terminal reports whether s is a final status.
func (s LogStatus) Terminal() bool {
	return s == LogSuccess || s == LogError
}

// SyncLogEntry is the audit record of one synchronization attempt.
type SyncLogEntry struct {
	ID              string     `json:"id"`
	Direction       Direction  `json:"direction"`
	Status          LogStatus  `json:"status"`
	EntityType      EntityType `json:"entityType,omitempty"`
	EntityID        string     `json:"entityId,omitempty"`
	RemoteID        string     `json:"remoteId,omitempty"`
	Endpoint        string     `json:"endpoint,omitempty"`
	Method          string     `json:"method,omitempty"`
	RequestPayload  string     `json:"requestPayload,omitempty"`
	ResponsePayload string     `json:"responsePayload,omitempty"`
	ErrorType       string     `json:"errorType,omitempty"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	RetryScheduled  bool       `json:"retryScheduled"`
	RetryCount      int        `json:"retryCount"`
	CreatedAt       string     `json:"createdAt"`
	ResolvedAt      string     `json:"resolvedAt,omitempty"`
}

// LogResolution carries the terminal outcome written to a pending entry.
type LogResolution struct {
	Status          LogStatus
	EntityType      EntityType
	EntityID        string
	ResponsePayload string
	ErrorType       string
	ErrorMessage    string
}

// LogFilter narrows a sync log listing. Zero fields match everything.
type LogFilter struct {
	Direction  Direction
	Status     LogStatus
	EntityType EntityType
	EntityID   string
	RemoteID   string
	Limit      int
	Before     string
}

// LogPage is one page of sync log entries, newest first.
type LogPage struct {
	Results []*SyncLogEntry
	After   string
	HasMore bool
}
