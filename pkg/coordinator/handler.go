package coordinator

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"sharehub/pkg/protocol"
	"sharehub/pkg/types"

	"go.uber.org/zap"
)

type connState int32

const (
	stateConnecting connState = iota
	stateAuthenticating
	stateActive
	stateClosing
	stateClosed
)

const (
	sendQueueSize = 64
	drainTimeout  = 10 * time.Second
)

// ConnectionHandler owns exactly one client socket: a read loop decoding
// one framed message at a time, and a single send worker so outbound
// writes never interleave. The first inbound message must be an
// authorization request; afterwards the handler reads a single request for
// the request/response service kinds and keeps reading for the
// notification-watch kind.
type ConnectionHandler struct {
	coord  *Coordinator
	conn   net.Conn
	logger *zap.Logger

	state   atomic.Int32
	stopped atomic.Bool

	mu      sync.Mutex
	token   string
	user    types.Identity
	service protocol.ServiceKind

	sendMu     sync.Mutex
	sendClosed bool
	sendCh     chan *protocol.Envelope
	sendDone   chan struct{}

	closeOnce sync.Once
}

func newConnectionHandler(coord *Coordinator, conn net.Conn) *ConnectionHandler {
	h := &ConnectionHandler{
		coord:    coord,
		conn:     conn,
		logger:   coord.logger.With(zap.String("remote", conn.RemoteAddr().String())),
		sendCh:   make(chan *protocol.Envelope, sendQueueSize),
		sendDone: make(chan struct{}),
	}
	h.state.Store(int32(stateConnecting))
	return h
}

// run drives the connection to completion. The send worker starts before
// the first read so the peer's handshake reader is never left waiting on
// an idle writer.
func (h *ConnectionHandler) run() {
	go h.sendLoop()
	h.state.Store(int32(stateAuthenticating))
	h.readLoop()
	h.close()
}

func (h *ConnectionHandler) readLoop() {
	for !h.stopped.Load() {
		env, err := protocol.Read(h.conn)
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				// Bad frame contents, stream still aligned: log and keep going.
				h.coord.reportProtocolError(h, err)
				continue
			}
			if !h.stopped.Load() && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				h.logger.Debug("connection read failed", zap.Error(err))
			}
			return
		}
		if !h.dispatch(env) {
			return
		}
	}
}

// dispatch handles one inbound envelope and reports whether the read loop
// should continue.
func (h *ConnectionHandler) dispatch(env *protocol.Envelope) bool {
	switch connState(h.state.Load()) {
	case stateAuthenticating:
		return h.dispatchAuth(env)
	case stateActive:
		return h.dispatchActive(env)
	default:
		return false
	}
}

func (h *ConnectionHandler) dispatchAuth(env *protocol.Envelope) bool {
	if env.Kind != protocol.KindAuthRequest {
		h.coord.reportProtocolError(h, fmt.Errorf("expected %s, got %s", protocol.KindAuthRequest, env.Kind))
		return true
	}
	var req protocol.AuthRequest
	if err := env.Decode(&req); err != nil {
		h.coord.reportProtocolError(h, err)
		return true
	}
	token, err := h.coord.authenticate(h, req)
	if err != nil {
		h.send(protocol.KindAuthResponse, protocol.AuthResponse{Error: err.Error()})
		return false
	}
	h.send(protocol.KindAuthResponse, protocol.AuthResponse{Token: token})
	h.state.Store(int32(stateActive))
	// The authorization exchange is the whole conversation for this kind.
	return req.Service != protocol.ServiceAuthorizationOnly
}

func (h *ConnectionHandler) dispatchActive(env *protocol.Envelope) bool {
	switch env.Kind {
	case protocol.KindFilePush:
		var push protocol.FilePush
		if err := env.Decode(&push); err != nil {
			h.coord.reportProtocolError(h, err)
			return true
		}
		h.coord.handleUpload(h, push)
	case protocol.KindFileListSync:
		var sync protocol.FileListSync
		if err := env.Decode(&sync); err != nil {
			h.coord.reportProtocolError(h, err)
			return true
		}
		h.coord.handleFileListSync(h, sync)
	case protocol.KindLogout:
		return false
	default:
		h.coord.reportProtocolError(h, fmt.Errorf("unexpected %s in active state", env.Kind))
		return true
	}
	return h.serviceKind() == protocol.ServiceNotificationWatch
}

// send encodes and enqueues one outbound message. A full queue drops the
// message; there is no redelivery guarantee.
func (h *ConnectionHandler) send(kind protocol.Kind, payload any) {
	env, err := protocol.Encode(kind, payload)
	if err != nil {
		h.logger.Error("failed to encode outbound message", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	if h.sendClosed {
		return
	}
	select {
	case h.sendCh <- env:
	default:
		h.logger.Warn("send queue full, message dropped", zap.String("kind", string(kind)))
	}
}

func (h *ConnectionHandler) sendLoop() {
	defer close(h.sendDone)
	for env := range h.sendCh {
		if err := protocol.Write(h.conn, env); err != nil {
			h.coord.reportSendError(h, env.Kind, err)
		}
	}
}

// close tears the connection down: stop the read loop, drain the send
// worker with a bounded wait, then force the socket shut and release the
// session.
func (h *ConnectionHandler) close() {
	h.closeOnce.Do(func() {
		h.state.Store(int32(stateClosing))
		h.stopped.Store(true)

		h.sendMu.Lock()
		h.sendClosed = true
		close(h.sendCh)
		h.sendMu.Unlock()

		select {
		case <-h.sendDone:
		case <-time.After(drainTimeout):
			h.logger.Warn("send worker drain timed out, forcing close")
		}
		h.conn.Close()
		h.coord.cleanupSession(h)
		h.state.Store(int32(stateClosed))
	})
}

func (h *ConnectionHandler) setSession(user types.Identity, token string, service protocol.ServiceKind) {
	h.mu.Lock()
	h.user = user
	h.token = token
	h.service = service
	h.mu.Unlock()
}

func (h *ConnectionHandler) session() (types.Identity, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.user, h.token
}

func (h *ConnectionHandler) serviceKind() protocol.ServiceKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.service
}
