package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"cybot/domain/entities"
	"cybot/domain/interfaces"
	"cybot/lang"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	mentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)
	channelPattern = regexp.MustCompile(`^<#(\d+)>$`)
)

// SessionConfig carries the identity a new session is bound to and the
// defaults used when no config snapshot is persisted yet.
type SessionConfig struct {
	GuildID         string
	OwnerID         string
	SystemChannelID string
	DefaultLang     string
	DefaultPrefix   string
}

// Deps are the collaborators shared by all sessions.
type Deps struct {
	Gateway Gateway
	Store   interfaces.ConfigStore
	Langs   *lang.Set
	Jokes   interfaces.JokeFetcher

	// NewWatcher builds the room watcher for one session. onLost is invoked
	// when a watched room's connection dies unrecoverably.
	NewWatcher func(onLost func(room string, err error)) interfaces.RoomWatcher
}

// Session manages one guild: its config, admin list, talk channel, and the
// rooms it watches. Command actions and watch callbacks both mutate the
// config, so every mutation goes through the session mutex.
type Session struct {
	guildID string
	gateway Gateway
	store   interfaces.ConfigStore
	langs   *lang.Set
	rooms   interfaces.RoomWatcher

	mu  sync.Mutex
	cfg *entities.GuildConfig

	// toggleMu serializes watch toggles end to end so two concurrent
	// announce commands cannot both observe the same pre-toggle state.
	// Held across the network dial, so it must never nest inside mu.
	toggleMu sync.Mutex
}

// NewSession loads or seeds the guild's config and re-establishes every
// persisted room watch before returning, so watches survive restarts.
func NewSession(ctx context.Context, sc SessionConfig, deps Deps) *Session {
	s := &Session{
		guildID: sc.GuildID,
		gateway: deps.Gateway,
		store:   deps.Store,
		langs:   deps.Langs,
	}
	s.rooms = deps.NewWatcher(s.handleWatchLost)

	cfg, err := deps.Store.Load(ctx, sc.GuildID)
	switch {
	case err == nil:
	case errors.Is(err, entities.ErrNotFound):
		cfg = entities.NewGuildConfig(sc.GuildID, sc.OwnerID, sc.DefaultLang, sc.DefaultPrefix, sc.SystemChannelID)
		if err := deps.Store.Save(ctx, cfg); err != nil {
			log.Errorf("Failed to persist seeded config for guild %s: %v", sc.GuildID, err)
		}
	case errors.Is(err, entities.ErrCorrupt):
		log.Errorf("Config for guild %s is corrupt, reseeding defaults: %v", sc.GuildID, err)
		cfg = entities.NewGuildConfig(sc.GuildID, sc.OwnerID, sc.DefaultLang, sc.DefaultPrefix, sc.SystemChannelID)
		if err := deps.Store.Save(ctx, cfg); err != nil {
			log.Errorf("Failed to persist reseeded config for guild %s: %v", sc.GuildID, err)
		}
	default:
		log.Errorf("Failed to load config for guild %s, using defaults: %v", sc.GuildID, err)
		cfg = entities.NewGuildConfig(sc.GuildID, sc.OwnerID, sc.DefaultLang, sc.DefaultPrefix, sc.SystemChannelID)
	}

	if cfg.OwnerID == "" {
		cfg.OwnerID = sc.OwnerID
	}
	cfg.Lang = deps.Langs.Resolve(cfg.Lang)
	if cfg.Prefix == "" {
		cfg.Prefix = sc.DefaultPrefix
	}
	s.cfg = cfg

	s.resubscribe(ctx)
	return s
}

// resubscribe re-establishes watches for every persisted room. Failures are
// logged but the room stays persisted so the next restart can retry.
func (s *Session) resubscribe(ctx context.Context) {
	s.mu.Lock()
	rooms := append([]string(nil), s.cfg.WatchedRooms...)
	s.mu.Unlock()
	if len(rooms) == 0 {
		return
	}

	var g errgroup.Group
	for _, room := range rooms {
		room := room
		g.Go(func() error {
			if err := s.rooms.Watch(ctx, room, s.announceChange); err != nil {
				return fmt.Errorf("guild %s: failed to resubscribe room %s: %w", s.guildID, room, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warnf("Room resubscription incomplete: %v", err)
	}
}

// GuildID returns the guild this session is bound to.
func (s *Session) GuildID() string {
	return s.guildID
}

// IsCommandCandidate reports whether the message originates in this
// session's guild and starts with its prefix. Messages from other guilds and
// direct messages are never candidates.
func (s *Session) IsCommandCandidate(msg Message) bool {
	if msg.GuildID == "" || msg.GuildID != s.guildID {
		return false
	}
	return strings.HasPrefix(msg.Content, s.Prefix())
}

// Prefix returns the session's command prefix.
func (s *Session) Prefix() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Prefix
}

// Pack returns the language pack for the session's configured language.
func (s *Session) Pack() *lang.Pack {
	s.mu.Lock()
	code := s.cfg.Lang
	s.mu.Unlock()
	return s.langs.Pack(code)
}

// TalkChannel returns the channel that receives announce notifications.
func (s *Session) TalkChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.TalkChannel
}

// IsAdmin reports whether the user is in the admin set.
func (s *Session) IsAdmin(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.IsAdmin(userID)
}

// SetPrefix changes the command prefix and persists the config.
func (s *Session) SetPrefix(ctx context.Context, prefix string) error {
	if strings.TrimSpace(prefix) == "" {
		return fmt.Errorf("prefix cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Prefix = prefix
	s.persistLocked(ctx)
	return nil
}

// ToggleAdmin adds the user to the admin set, or removes them when already
// present. Removing the guild owner is always refused.
func (s *Session) ToggleAdmin(ctx context.Context, userID string) (added bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.IsAdmin(userID) {
		if err := s.cfg.RemoveAdmin(userID); err != nil {
			return false, err
		}
		s.persistLocked(ctx)
		return false, nil
	}
	s.cfg.AddAdmin(userID)
	s.persistLocked(ctx)
	return true, nil
}

// SetAdmin adds a user to the admin set and persists the config.
func (s *Session) SetAdmin(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.AddAdmin(userID)
	s.persistLocked(ctx)
}

// UnsetAdmin removes a user from the admin set. The owner is refused with
// entities.ErrOwnerDemotion; a user who is not an admin yields
// entities.ErrNotAdmin.
func (s *Session) UnsetAdmin(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cfg.RemoveAdmin(userID); err != nil {
		return err
	}
	s.persistLocked(ctx)
	return nil
}

// SetTalkChannel points announce notifications at a channel, which must
// exist in the bound guild.
func (s *Session) SetTalkChannel(ctx context.Context, channelID string) error {
	if !s.gateway.ChannelInGuild(s.guildID, channelID) {
		return fmt.Errorf("channel %s: %w", channelID, entities.ErrUnknownChannel)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.TalkChannel = channelID
	s.persistLocked(ctx)
	return nil
}

// ValidateMention extracts a user id from a mention token and confirms the
// user is a member of the bound guild.
func (s *Session) ValidateMention(text string) (string, error) {
	m := mentionPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", fmt.Errorf("%q: %w", text, entities.ErrInvalidMention)
	}
	userID := m[1]
	if !s.gateway.MemberInGuild(s.guildID, userID) {
		return "", fmt.Errorf("user %s not in guild %s: %w", userID, s.guildID, entities.ErrInvalidMention)
	}
	return userID, nil
}

// ValidateChannel extracts a channel id from a channel mention token and
// confirms the channel belongs to the bound guild.
func (s *Session) ValidateChannel(text string) (string, error) {
	m := channelPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", fmt.Errorf("%q: %w", text, entities.ErrInvalidMention)
	}
	channelID := m[1]
	if !s.gateway.ChannelInGuild(s.guildID, channelID) {
		return "", fmt.Errorf("channel %s: %w", channelID, entities.ErrUnknownChannel)
	}
	return channelID, nil
}

// RoomInfo fetches a one-shot snapshot of a room.
func (s *Session) RoomInfo(ctx context.Context, room string) (*entities.RoomInfo, error) {
	return s.rooms.Info(ctx, room)
}

// ToggleRoomWatch subscribes to a room, or unsubscribes when it is already
// watched. Reports whether the room is watched afterwards. Toggles are
// serialized per session so concurrent calls for the same room resolve to
// one subscribe and one unsubscribe, never two of either.
func (s *Session) ToggleRoomWatch(ctx context.Context, room string) (watching bool, err error) {
	s.toggleMu.Lock()
	defer s.toggleMu.Unlock()

	s.mu.Lock()
	already := s.cfg.IsWatchingRoom(room)
	s.mu.Unlock()
	if already {
		return false, s.UnwatchRoom(ctx, room)
	}
	return true, s.WatchRoom(ctx, room)
}

// WatchRoom establishes a watch on the room and persists it.
func (s *Session) WatchRoom(ctx context.Context, room string) error {
	if err := s.rooms.Watch(ctx, room, s.announceChange); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.AddWatchedRoom(room) {
		s.persistLocked(ctx)
	}
	return nil
}

// UnwatchRoom removes a watch on the room and persists the removal.
func (s *Session) UnwatchRoom(ctx context.Context, room string) error {
	s.rooms.Unwatch(room)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.RemoveWatchedRoom(room) {
		s.persistLocked(ctx)
	}
	return nil
}

// WatchedRooms returns a copy of the persisted watched-room set.
func (s *Session) WatchedRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cfg.WatchedRooms...)
}

// Send posts text to a channel through the gateway, logging failures.
func (s *Session) Send(channelID, text string) {
	if channelID == "" {
		return
	}
	if err := s.gateway.SendMessage(channelID, text); err != nil {
		log.Errorf("Guild %s: %v", s.guildID, err)
	}
}

// Close releases all live room watches.
func (s *Session) Close() {
	s.rooms.Close()
}

// announceChange formats a media-change notification and posts it to the
// talk channel.
func (s *Session) announceChange(info *entities.RoomInfo) {
	s.mu.Lock()
	talk := s.cfg.TalkChannel
	code := s.cfg.Lang
	s.mu.Unlock()

	pack := s.langs.Pack(code)
	var text string
	if info.HasMediaURL() {
		text = pack.Format("announce_url", info.Room, info.MediaTitle, info.MediaURL)
	} else {
		text = pack.Format("announce", info.Room, info.MediaTitle)
	}
	s.Send(talk, text)
}

// handleWatchLost drops a room whose watch connection died unrecoverably and
// tells the talk channel about it.
func (s *Session) handleWatchLost(room string, err error) {
	ctx := context.Background()
	s.mu.Lock()
	removed := s.cfg.RemoveWatchedRoom(room)
	if removed {
		s.persistLocked(ctx)
	}
	talk := s.cfg.TalkChannel
	code := s.cfg.Lang
	s.mu.Unlock()
	if !removed {
		return
	}
	log.Warnf("Guild %s: dropped watch on room %s: %v", s.guildID, room, err)
	s.Send(talk, s.langs.Pack(code).Format("watch_lost", room))
}

// persistLocked saves the config snapshot. Saves are fire-and-forget from
// the caller's perspective; failures are logged. Callers hold s.mu.
func (s *Session) persistLocked(ctx context.Context) {
	if err := s.store.Save(ctx, s.cfg); err != nil {
		log.Errorf("Failed to persist config for guild %s: %v", s.guildID, err)
	}
}
