package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"sharehub/pkg/types"

	"go.uber.org/zap"
)

// ClientStatus pairs an identity with its online flag.
type ClientStatus struct {
	User   types.Identity
	Online bool
}

// PresenceRegistry tracks which identities currently hold an active
// connection. The server's own identity is always present and online, and
// is excluded from the active/inactive client queries. Persistence is a
// bare JSON array of identities; online flags are never persisted and every
// identity loads as offline.
type PresenceRegistry struct {
	server   types.Identity
	filePath string
	logger   *zap.Logger

	mu       sync.Mutex
	clients  map[string]ClientStatus
	onChange func([]ClientStatus)
}

// NewPresenceRegistry creates a registry seeded with the server identity.
func NewPresenceRegistry(server types.Identity, filePath string, logger *zap.Logger) *PresenceRegistry {
	r := &PresenceRegistry{
		server:   server,
		filePath: filePath,
		logger:   logger,
		clients:  make(map[string]ClientStatus),
	}
	r.clients[server.Key()] = ClientStatus{User: server, Online: true}
	return r
}

// SetOnChange installs the hook invoked after every mutation with a
// snapshot of all client statuses. The hook runs outside the registry lock.
func (r *PresenceRegistry) SetOnChange(fn func([]ClientStatus)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// SetStatus upserts the identity with the given online flag.
func (r *PresenceRegistry) SetStatus(user types.Identity, online bool) {
	r.mu.Lock()
	r.clients[user.Key()] = ClientStatus{User: user, Online: online}
	hook := r.onChange
	snapshot := r.allLocked()
	r.mu.Unlock()
	if hook != nil {
		hook(snapshot)
	}
}

// Contains reports whether the identity is known to the registry.
func (r *PresenceRegistry) Contains(user types.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[user.Key()]
	return ok
}

// IsOnline reports whether the identity currently has an active connection.
func (r *PresenceRegistry) IsOnline(user types.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.clients[user.Key()]
	return ok && status.Online
}

// ActiveClients returns all online identities, excluding the server.
func (r *PresenceRegistry) ActiveClients() []types.Identity {
	return r.filter(true)
}

// InactiveClients returns all offline identities, excluding the server.
func (r *PresenceRegistry) InactiveClients() []types.Identity {
	return r.filter(false)
}

func (r *PresenceRegistry) filter(online bool) []types.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Identity
	for key, status := range r.clients {
		if key == r.server.Key() {
			continue
		}
		if status.Online == online {
			out = append(out, status.User)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// FindByName returns the identity with the given display name, or
// EmptyIdentity when no client matches. It never fails.
func (r *PresenceRegistry) FindByName(name string) types.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, status := range r.clients {
		if status.User.DisplayName == name {
			return status.User
		}
	}
	return types.EmptyIdentity
}

// All returns a snapshot of every client status including the server.
func (r *PresenceRegistry) All() []ClientStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allLocked()
}

func (r *PresenceRegistry) allLocked() []ClientStatus {
	out := make([]ClientStatus, 0, len(r.clients))
	for _, status := range r.clients {
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.Key() < out[j].User.Key() })
	return out
}

// Snapshot returns every known identity, sorted by key, for serialization.
func (r *PresenceRegistry) Snapshot() []types.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Identity, 0, len(r.clients))
	for _, status := range r.clients {
		out = append(out, status.User)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Load replaces the contents with the given identities, all offline. The
// server identity is re-seeded online regardless of the input.
func (r *PresenceRegistry) Load(users []types.Identity) {
	r.mu.Lock()
	r.clients = make(map[string]ClientStatus, len(users)+1)
	for _, user := range users {
		if user.IsEmpty() {
			continue
		}
		r.clients[user.Key()] = ClientStatus{User: user, Online: false}
	}
	r.clients[r.server.Key()] = ClientStatus{User: r.server, Online: true}
	hook := r.onChange
	snapshot := r.allLocked()
	r.mu.Unlock()
	if hook != nil {
		hook(snapshot)
	}
}

// Save writes the identity list to the clients file.
func (r *PresenceRegistry) Save() error {
	snapshot := r.Snapshot()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode client list: %w", err)
	}
	if err := os.WriteFile(r.filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", r.filePath, err)
	}
	r.logger.Debug("client list saved", zap.Int("clients", len(snapshot)))
	return nil
}

// LoadFromDisk reads the clients file. An absent or empty file loads as an
// empty registry holding only the server identity.
func (r *PresenceRegistry) LoadFromDisk() error {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			r.Load(nil)
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", r.filePath, err)
	}
	if len(data) == 0 {
		r.Load(nil)
		return nil
	}
	var users []types.Identity
	if err := json.Unmarshal(data, &users); err != nil {
		return fmt.Errorf("failed to parse %s: %w", r.filePath, err)
	}
	r.Load(users)
	r.logger.Debug("client list loaded", zap.Int("clients", len(users)))
	return nil
}
