package notify

import "sharehub/pkg/types"

// Purpose selects the notification template.
type Purpose string

const (
	// PurposeWelcome greets a user authenticating for the first time.
	PurposeWelcome Purpose = "welcome"
	// PurposePendingFiles tells an offline user which files await them.
	PurposePendingFiles Purpose = "pending-files"
)

// Notifier is the outbound notification collaborator. Notify is
// fire-and-forget: it must not block the caller and failures surface only
// through the status/log sink.
type Notifier interface {
	Notify(user types.Identity, purpose Purpose, files ...string)
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) Notify(types.Identity, Purpose, ...string) {}
