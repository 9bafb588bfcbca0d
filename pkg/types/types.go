package types

// Identity is the durable credential record of a user: email, display name
// and the root path of the user's storage. Two identities with the same
// email are the same user; the other fields are informational. Identity is
// immutable after construction and safe to use as a map key.
type Identity struct {
	Email       string `json:"userEmail"`
	DisplayName string `json:"userName"`
	RootPath    string `json:"userFolderPath"`
}

// EmptyIdentity is the "not found" sentinel returned by lookups.
var EmptyIdentity = Identity{}

// Key returns the comparison key for the identity.
func (i Identity) Key() string {
	return i.Email
}

// IsEmpty reports whether the identity is the "not found" sentinel.
func (i Identity) IsEmpty() bool {
	return i.Email == "" && i.DisplayName == "" && i.RootPath == ""
}

// Same reports whether two identities denote the same user.
func (i Identity) Same(other Identity) bool {
	return i.Email == other.Email
}

// LogLevel classifies messages handed to a StatusSink.
type LogLevel string

const (
	LogInfo    LogLevel = "INFO"
	LogError   LogLevel = "ERROR"
	LogSuccess LogLevel = "SUCCESS"
)

// StatusSink is the presentation collaborator. The core writes every state
// transition, persistence result and error to it and never reads back.
// Implementations must be safe for concurrent use.
type StatusSink interface {
	SetStatus(text string)
	AddLog(level LogLevel, text string)
}

// NopSink discards everything. Useful as a default and in tests.
type NopSink struct{}

func (NopSink) SetStatus(string)        {}
func (NopSink) AddLog(LogLevel, string) {}
