package coordinator

import (
	"fmt"
	"path/filepath"
	"sort"

	"sharehub/pkg/notify"
	"sharehub/pkg/protocol"
	"sharehub/pkg/store"
	"sharehub/pkg/types"
	"sharehub/pkg/utils"

	"go.uber.org/zap"
)

// ShareFile grants the target ownership of an already-stored file. When the
// target is online and has not received the file this session, it is pushed
// immediately over the target's notification connection; otherwise the
// pending-file sweep surfaces it later.
func (c *Coordinator) ShareFile(target types.Identity, filename string) error {
	if target.IsEmpty() {
		return fmt.Errorf("cannot share %s with an empty identity", filename)
	}
	holder := c.storeFor(filename)
	if holder == nil {
		return fmt.Errorf("file %s is not registered in any category", filename)
	}
	if !holder.AddOwner(filename, target) {
		return fmt.Errorf("failed to add %s as owner of %s", target.DisplayName, filename)
	}

	if c.presence.IsOnline(target) && !c.cache.has(target, filename) && c.pushFileTo(target, filename) {
		c.cache.add(target, filename)
	}

	c.sink.AddLog(types.LogSuccess,
		fmt.Sprintf("Shared %s with %s", filename, target.DisplayName))
	c.logger.Info("file shared",
		zap.String("file", filename),
		zap.String("target", target.DisplayName))
	return nil
}

// CompareClientAndServerFileList returns the filenames the server believes
// the user owns that are absent from the client's reported list. It has no
// side effects and is stable for identical inputs.
func (c *Coordinator) CompareClientAndServerFileList(user types.Identity, clientFiles []string) []string {
	held := make(map[string]struct{}, len(clientFiles))
	for _, name := range clientFiles {
		held[name] = struct{}{}
	}
	var missing []string
	for _, name := range c.ListFilesForUser(user) {
		if _, ok := held[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// ListFilesForUser returns every filename the user owns across all
// categories, sorted.
func (c *Coordinator) ListFilesForUser(user types.Identity) []string {
	var names []string
	for _, s := range c.stores {
		names = append(names, s.FilenamesFor(user)...)
	}
	sort.Strings(names)
	return names
}

// FindUserByName resolves a display name to an identity, returning the
// empty identity when nothing matches.
func (c *Coordinator) FindUserByName(name string) types.Identity {
	return c.presence.FindByName(name)
}

// RemoveOwner revokes the user's ownership of the file in whichever
// category holds it.
func (c *Coordinator) RemoveOwner(filename string, user types.Identity) bool {
	if holder := c.storeFor(filename); holder != nil {
		return holder.RemoveOwner(filename, user)
	}
	return false
}

// storeFor finds the single category store holding the filename. Filenames
// are globally unique across categories, so the first hit is the only one.
func (c *Coordinator) storeFor(filename string) *store.OwnershipStore {
	for _, s := range c.stores {
		if s.Exists(filename) {
			return s
		}
	}
	return nil
}

// uploaderOf returns the identity that first registered the filename, the
// one a pushed file is attributed to on the wire.
func (c *Coordinator) uploaderOf(filename string) types.Identity {
	if holder := c.storeFor(filename); holder != nil {
		if owners := holder.Owners(filename); len(owners) > 0 {
			return owners[0]
		}
	}
	return types.EmptyIdentity
}

// handleUpload persists a pushed file into its category directory and
// registers the session's user as an owner. The category is fixed at first
// upload and reused afterwards.
func (c *Coordinator) handleUpload(h *ConnectionHandler, push protocol.FilePush) {
	user, _ := h.session()
	name := filepath.Base(push.FileName)
	if name == "" || name == "." || name == string(filepath.Separator) {
		c.reportProtocolError(h, fmt.Errorf("file push with invalid name %q", push.FileName))
		return
	}

	category, ok := c.layout.FindFile(name)
	if !ok {
		category = c.layout.CategoryFor(name)
	}
	if err := c.layout.WriteFile(category, name, push.Data); err != nil {
		c.sink.SetStatus("Can't save file")
		c.sink.AddLog(types.LogError, fmt.Sprintf("Can't save %s: %v", name, err))
		c.logger.Error("failed to store upload", zap.String("file", name), zap.Error(err))
		return
	}

	holder := c.storeFor(name)
	if holder == nil {
		for _, s := range c.stores {
			if s.Category() == category {
				holder = s
				break
			}
		}
	}
	if holder != nil {
		holder.Register(name, user)
	}
	c.cache.add(user, name)

	c.sink.AddLog(types.LogSuccess, fmt.Sprintf("Received %s (%s) from %s",
		name, utils.FormatSize(int64(len(push.Data))), user.DisplayName))
	c.logger.Info("file uploaded",
		zap.String("file", name),
		zap.String("category", category),
		zap.String("user", user.DisplayName))
}

// handleFileListSync answers a client's report of the filenames it already
// holds: the missing delta is announced, then each missing file is pushed
// down the same connection.
func (c *Coordinator) handleFileListSync(h *ConnectionHandler, sync protocol.FileListSync) {
	user, _ := h.session()
	missing := c.CompareClientAndServerFileList(user, sync.Files)
	if len(missing) == 0 {
		return
	}
	h.send(protocol.KindNotificationPush, protocol.NotificationPush{Files: missing})
	for _, name := range missing {
		data, _, err := c.layout.ReadFile(name)
		if err != nil {
			// Not marked delivered: the pending sweep picks it up later.
			c.sink.AddLog(types.LogError, fmt.Sprintf("Can't read %s for sync: %v", name, err))
			c.logger.Error("failed to read file for sync", zap.String("file", name), zap.Error(err))
			continue
		}
		h.send(protocol.KindFilePush, protocol.FilePush{FileName: name, Data: data, Owner: c.uploaderOf(name)})
		c.cache.add(user, name)
	}
	c.sink.AddLog(types.LogInfo,
		fmt.Sprintf("Synced %d missing file(s) to %s", len(missing), user.DisplayName))
}

// pushFileTo delivers a stored file to the identity's notification-watch
// connections. It reports whether the push was enqueued to at least one
// connection; callers record the file as delivered only then.
func (c *Coordinator) pushFileTo(target types.Identity, filename string) bool {
	data, _, err := c.layout.ReadFile(filename)
	if err != nil {
		c.sink.AddLog(types.LogError, fmt.Sprintf("Can't read %s for push: %v", filename, err))
		c.logger.Error("failed to read file for push", zap.String("file", filename), zap.Error(err))
		return false
	}
	watchers := c.watchersFor(target)
	if len(watchers) == 0 {
		c.logger.Debug("no notification connection for online user",
			zap.String("user", target.DisplayName))
		return false
	}
	owner := c.uploaderOf(filename)
	for _, h := range watchers {
		h.send(protocol.KindFilePush, protocol.FilePush{FileName: filename, Data: data, Owner: owner})
	}
	return true
}

// sweepPendingFiles finds inactive identities whose ownership has grown
// past what was delivered to them and notifies each one once.
func (c *Coordinator) sweepPendingFiles() {
	for _, user := range c.presence.InactiveClients() {
		cached, ok := c.cache.entry(user)
		if !ok {
			continue
		}
		pending := c.CompareClientAndServerFileList(user, cached)
		if len(pending) == 0 {
			continue
		}
		c.notifier.Notify(user, notify.PurposePendingFiles, pending...)
		c.sink.AddLog(types.LogInfo,
			fmt.Sprintf("Notified %s about %d pending file(s)", user.DisplayName, len(pending)))
		c.logger.Info("pending files notification",
			zap.String("user", user.DisplayName),
			zap.Int("files", len(pending)))
	}
}

// dumpPresence persists the client list. Failures are logged and skipped.
func (c *Coordinator) dumpPresence() {
	if err := c.presence.Save(); err != nil {
		c.sink.SetStatus("Can't save file")
		c.sink.AddLog(types.LogError, fmt.Sprintf("Can't save client list: %v", err))
		c.logger.Error("failed to save client list", zap.Error(err))
		return
	}
	c.sink.SetStatus("File is saved successfully")
	c.sink.AddLog(types.LogSuccess, "Saved client list")
}

// dumpOwnership persists every category's ownership map.
func (c *Coordinator) dumpOwnership() {
	for _, s := range c.stores {
		if err := s.Save(); err != nil {
			c.sink.SetStatus("Can't save file")
			c.sink.AddLog(types.LogError,
				fmt.Sprintf("Can't save ownership map for %s: %v", s.Category(), err))
			c.logger.Error("failed to save ownership map",
				zap.String("category", s.Category()), zap.Error(err))
			continue
		}
		c.sink.SetStatus("File is saved successfully")
		c.sink.AddLog(types.LogSuccess, "Saved ownership map for "+s.Category())
	}
}
