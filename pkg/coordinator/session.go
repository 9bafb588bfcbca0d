package coordinator

import (
	"fmt"
	"math/rand"
	"sync"
)

// maxGenerateAttempts bounds the collision-retry loop. With 62^16 possible
// tokens the cap is never reached in practice, but an unbounded loop would
// spin forever if the live set somehow saturated.
const maxGenerateAttempts = 1 << 16

// sessionRegistry issues and tracks the session tokens that correlate a
// connection with an authenticated identity. The type is unexported so only
// the coordinator can mint tokens; that is the capability boundary, not a
// runtime check on the caller.
type sessionRegistry struct {
	length int

	mu   sync.Mutex
	live map[string]struct{}
}

func newSessionRegistry(length int) *sessionRegistry {
	return &sessionRegistry{
		length: length,
		live:   make(map[string]struct{}),
	}
}

// generate mints a fresh token: each character is drawn from digits,
// lowercase or uppercase with uniform category selection, regenerating
// until the candidate does not collide with a live token.
func (r *sessionRegistry) generate() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		candidate := r.randomToken()
		if _, taken := r.live[candidate]; taken {
			continue
		}
		r.live[candidate] = struct{}{}
		return candidate, nil
	}
	return "", fmt.Errorf("failed to generate a unique session token after %d attempts", maxGenerateAttempts)
}

func (r *sessionRegistry) randomToken() string {
	buf := make([]byte, r.length)
	for i := range buf {
		switch rand.Intn(3) {
		case 0:
			buf[i] = byte('0' + rand.Intn(10))
		case 1:
			buf[i] = byte('a' + rand.Intn(26))
		default:
			buf[i] = byte('A' + rand.Intn(26))
		}
	}
	return string(buf)
}

// release removes a token from the live set. Releasing an unknown token is
// a no-op; a released value may legally be issued again later.
func (r *sessionRegistry) release(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, token)
}

// contains reports whether the token is currently live.
func (r *sessionRegistry) contains(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live[token]
	return ok
}

func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
