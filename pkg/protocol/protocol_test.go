package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"sharehub/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	alice := types.Identity{Email: "alice@example.com", DisplayName: "Alice", RootPath: "/home/alice"}

	tests := []struct {
		name    string
		kind    Kind
		payload any
		decoded any
	}{
		{
			name:    "auth request",
			kind:    KindAuthRequest,
			payload: AuthRequest{Credential: alice, Service: ServiceFileTransfer},
			decoded: &AuthRequest{},
		},
		{
			name:    "auth response",
			kind:    KindAuthResponse,
			payload: AuthResponse{Token: "a1B2c3D4e5F6g7H8"},
			decoded: &AuthResponse{},
		},
		{
			name:    "file push",
			kind:    KindFilePush,
			payload: FilePush{FileName: "notes.txt", Data: []byte("hello"), Owner: alice},
			decoded: &FilePush{},
		},
		{
			name:    "file list sync",
			kind:    KindFileListSync,
			payload: FileListSync{Files: []string{"a.txt", "b.txt"}},
			decoded: &FileListSync{},
		},
		{
			name:    "notification push",
			kind:    KindNotificationPush,
			payload: NotificationPush{Files: []string{"a.txt"}},
			decoded: &NotificationPush{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Encode(tt.kind, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, Version, env.V)

			var buf bytes.Buffer
			require.NoError(t, Write(&buf, env))

			got, err := Read(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			require.NoError(t, got.Decode(tt.decoded))
		})
	}
}

func TestReadMultipleFramesStayAligned(t *testing.T) {
	var buf bytes.Buffer
	for _, name := range []string{"first.txt", "second.txt"} {
		env, err := Encode(KindFilePush, FilePush{FileName: name})
		require.NoError(t, err)
		require.NoError(t, Write(&buf, env))
	}

	for _, want := range []string{"first.txt", "second.txt"} {
		env, err := Read(&buf)
		require.NoError(t, err)
		var push FilePush
		require.NoError(t, env.Decode(&push))
		assert.Equal(t, want, push.FileName)
	}
}

func TestReadMalformedFrame(t *testing.T) {
	payload := []byte("this is not json")
	var buf bytes.Buffer
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(payload)))
	buf.Write(length)
	buf.Write(payload)

	_, err := Read(&buf)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReadMissingKind(t *testing.T) {
	payload := []byte(`{"v":1}`)
	var buf bytes.Buffer
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(payload)))
	buf.Write(length)
	buf.Write(payload)

	_, err := Read(&buf)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReadOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, MaxFrameSize+1)
	buf.Write(length)

	_, err := Read(&buf)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadTruncatedFrame(t *testing.T) {
	env, err := Encode(KindLogout, Logout{})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, env))

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-2])
	_, err = Read(truncated)
	require.Error(t, err)
	// A short read is a transport failure, not a malformed frame.
	assert.NotErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadEOF(t *testing.T) {
	_, err := Read(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeVersionMismatch(t *testing.T) {
	env := &Envelope{V: 99, Kind: KindAuthRequest, Payload: []byte(`{}`)}
	var req AuthRequest
	assert.ErrorIs(t, env.Decode(&req), ErrMalformed)
}

func TestServiceKindValid(t *testing.T) {
	assert.True(t, ServiceFileTransfer.Valid())
	assert.True(t, ServiceNotificationWatch.Valid())
	assert.True(t, ServiceAuthorizationOnly.Valid())
	assert.False(t, ServiceKind("").Valid())
	assert.False(t, ServiceKind("backdoor").Valid())
}
