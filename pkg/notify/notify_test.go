package notify

import (
	"testing"

	"sharehub/pkg/types"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var alice = types.Identity{Email: "alice@example.com", DisplayName: "Alice", RootPath: "/home/alice"}

func TestComposeMessageWelcome(t *testing.T) {
	subject, body := composeMessage(alice, PurposeWelcome, nil)

	assert.Equal(t, "Welcome to the file sharing service", subject)
	assert.Contains(t, body, "Alice")
}

func TestComposeMessagePendingFiles(t *testing.T) {
	subject, body := composeMessage(alice, PurposePendingFiles, []string{"notes.txt", "photo.png"})

	assert.Equal(t, "New files are waiting for you", subject)
	assert.Contains(t, body, "Alice")
	assert.Contains(t, body, "notes.txt")
	assert.Contains(t, body, "photo.png")
}

func TestMailerCloseIdempotent(t *testing.T) {
	m := NewMailer("smtp.example.com", 587, "", "", "noreply@example.com", types.NopSink{}, zap.NewNop())

	m.Close()
	m.Close()

	// Notifications after close are silently discarded.
	m.Notify(alice, PurposeWelcome)
}

func TestNopNotifier(t *testing.T) {
	var n Notifier = Nop{}
	n.Notify(alice, PurposePendingFiles, "notes.txt")
}
