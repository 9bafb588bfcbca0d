package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"sharehub/pkg/types"
)

// Version is the wire schema version carried in every envelope.
const Version = 1

// MaxFrameSize bounds a single frame. Pushing a file larger than this is
// rejected before it reaches the socket.
const MaxFrameSize = 64 << 20 // 64MB

// ErrMalformed marks a frame that was read off the wire but could not be
// decoded. The connection is still usable afterwards.
var ErrMalformed = errors.New("malformed message")

// ErrFrameTooLarge is returned for frames exceeding MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Kind tags the payload union of an envelope.
type Kind string

const (
	KindAuthRequest      Kind = "auth_request"
	KindAuthResponse     Kind = "auth_response"
	KindFilePush         Kind = "file_push"
	KindFileListSync     Kind = "file_list_sync"
	KindNotificationPush Kind = "notification_push"
	KindLogout           Kind = "logout"
)

// ServiceKind is the duty a client declares for a connection when
// authenticating.
type ServiceKind string

const (
	// ServiceFileTransfer is a single-shot request/response connection used
	// to push one file.
	ServiceFileTransfer ServiceKind = "file-transfer"
	// ServiceNotificationWatch is a long-lived connection the server pushes
	// files and notifications down.
	ServiceNotificationWatch ServiceKind = "notification-watch"
	// ServiceAuthorizationOnly authenticates and immediately ends.
	ServiceAuthorizationOnly ServiceKind = "authorization-only"
)

// Valid reports whether the service kind is one the server accepts.
func (s ServiceKind) Valid() bool {
	switch s {
	case ServiceFileTransfer, ServiceNotificationWatch, ServiceAuthorizationOnly:
		return true
	}
	return false
}

// Envelope is the self-describing framed record exchanged on the wire:
// a version, a kind tag and the kind-specific payload.
type Envelope struct {
	V       int             `json:"v"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthRequest opens every connection: the credential triple plus the
// declared service kind.
type AuthRequest struct {
	Credential types.Identity `json:"credential"`
	Service    ServiceKind    `json:"service"`
}

// AuthResponse carries the issued session token, or the reason the
// authorization was refused.
type AuthResponse struct {
	Token string `json:"token,omitempty"`
	Error string `json:"error,omitempty"`
}

// FilePush transfers one file's content together with its name and owner.
type FilePush struct {
	FileName string         `json:"fileName"`
	Data     []byte         `json:"data"`
	Owner    types.Identity `json:"owner"`
}

// FileListSync is the client's report of the filenames it already holds.
type FileListSync struct {
	Files []string `json:"files"`
}

// NotificationPush tells a watching client which filenames are newly
// available for it.
type NotificationPush struct {
	Files []string `json:"files"`
}

// Logout asks the server to end the session cleanly.
type Logout struct{}

// Encode wraps a payload into a versioned envelope.
func Encode(kind Kind, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	return &Envelope{V: Version, Kind: kind, Payload: raw}, nil
}

// Decode unmarshals the envelope payload into v, checking the schema
// version first.
func (e *Envelope) Decode(v any) error {
	if e.V != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrMalformed, e.V)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: bad %s payload: %v", ErrMalformed, e.Kind, err)
	}
	return nil
}

// Write frames the envelope as a 4-byte big-endian length followed by its
// JSON encoding.
func Write(w io.Writer, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	if _, err := w.Write(length); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Read reads one framed envelope. Transport failures (EOF, closed socket)
// come back untouched and are terminal for the connection; a frame that
// arrives but does not decode returns an error wrapping ErrMalformed and
// leaves the stream positioned at the next frame.
func Read(r io.Reader) (*Envelope, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf)
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("%w: missing kind", ErrMalformed)
	}
	return &env, nil
}
