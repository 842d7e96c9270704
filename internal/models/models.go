package models

// Permissions are the named capabilities an API key can carry. A key with a
// nil Permissions pointer is never authorized for any scoped route.
type Permissions struct {
	Read   bool `json:"read"`
	List   bool `json:"list"`
	Add    bool `json:"add"`
	Delete bool `json:"delete"`
}

type APIKey struct {
	Key         string       `json:"key"`
	Note        string       `json:"note"`
	Permissions *Permissions `json:"permissions,omitempty"`
	CreatedAt   string       `json:"createdAt"`
	ExpiryDate  string       `json:"expiryDate,omitempty"` // RFC3339, empty = never expires
	CreatedBy   string       `json:"createdBy,omitempty"`
}

type LogError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type LogRequest struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	Query     string `json:"query,omitempty"`
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
}

// LogEntry is immutable once written. The ID doubles as the KV key and embeds
// the write timestamp so retention sweeps can filter without fetching bodies.
type LogEntry struct {
	ID            string                 `json:"id"`
	Timestamp     int64                  `json:"timestamp"` // unix milliseconds
	OperationType string                 `json:"operationType"`
	Operator      string                 `json:"operator"`
	Level         string                 `json:"level"`
	Status        string                 `json:"status"`
	Message       string                 `json:"message"`
	Details       map[string]interface{} `json:"details,omitempty"`
	Error         *LogError              `json:"error,omitempty"`
	Request       LogRequest             `json:"request"`
	FormattedTime string                 `json:"formattedTime"`
}
