package entities

// GuildConfig is the persisted per-guild configuration snapshot.
type GuildConfig struct {
	GuildID      string   `json:"guildId"`
	Lang         string   `json:"lang"`
	Prefix       string   `json:"prefix"`
	OwnerID      string   `json:"ownerId"`
	Admins       []string `json:"admins"`
	TalkChannel  string   `json:"talkChannel"`
	WatchedRooms []string `json:"watchedRooms"`
}

// NewGuildConfig seeds a default config for a freshly joined guild. The owner
// is the sole admin and the guild's system channel is the talk channel.
func NewGuildConfig(guildID, ownerID, lang, prefix, systemChannelID string) *GuildConfig {
	return &GuildConfig{
		GuildID:      guildID,
		Lang:         lang,
		Prefix:       prefix,
		OwnerID:      ownerID,
		Admins:       []string{ownerID},
		TalkChannel:  systemChannelID,
		WatchedRooms: []string{},
	}
}

// IsAdmin reports whether the user id is in the admin set.
func (c *GuildConfig) IsAdmin(userID string) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// AddAdmin adds a user id to the admin set. Adding an existing admin is a
// no-op so the set never holds duplicates.
func (c *GuildConfig) AddAdmin(userID string) {
	if c.IsAdmin(userID) {
		return
	}
	c.Admins = append(c.Admins, userID)
}

// RemoveAdmin removes a user id from the admin set. The owner is refused
// regardless of whether their id was ever explicitly added.
func (c *GuildConfig) RemoveAdmin(userID string) error {
	if userID == c.OwnerID {
		return ErrOwnerDemotion
	}
	for i, id := range c.Admins {
		if id == userID {
			c.Admins = append(c.Admins[:i], c.Admins[i+1:]...)
			return nil
		}
	}
	return ErrNotAdmin
}

// IsWatchingRoom reports whether the room is in the watched set.
func (c *GuildConfig) IsWatchingRoom(room string) bool {
	for _, r := range c.WatchedRooms {
		if r == room {
			return true
		}
	}
	return false
}

// AddWatchedRoom adds a room to the watched set and reports whether it was
// newly added. Duplicates are never stored.
func (c *GuildConfig) AddWatchedRoom(room string) bool {
	if c.IsWatchingRoom(room) {
		return false
	}
	c.WatchedRooms = append(c.WatchedRooms, room)
	return true
}

// RemoveWatchedRoom removes a room from the watched set and reports whether
// it was present.
func (c *GuildConfig) RemoveWatchedRoom(room string) bool {
	for i, r := range c.WatchedRooms {
		if r == room {
			c.WatchedRooms = append(c.WatchedRooms[:i], c.WatchedRooms[i+1:]...)
			return true
		}
	}
	return false
}
