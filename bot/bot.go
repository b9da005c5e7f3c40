package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cybot/domain/interfaces"
	"cybot/lang"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Version is reported by the info command.
const Version = "2.0.0"

// Config holds bot configuration
type Config struct {
	Token         string
	ClientID      string
	DefaultLang   string
	DefaultPrefix string
}

// Bot owns the Discord connection, one session per guild, and the command
// router. Sessions are created lazily on the first guildCreate event for a
// guild and kept for the life of the process.
type Bot struct {
	config     Config
	discord    *discordgo.Session
	router     *Router
	deps       Deps
	supervisor *gatewaySupervisor

	mu       sync.Mutex
	sessions map[string]*Session
	builds   map[string]*sessionBuild

	initOnce  sync.Once
	startedAt time.Time
	stopStats func()
}

// New creates the bot and registers its event handlers. The gateway
// connection is not opened until Start.
func New(config Config, store interfaces.ConfigStore, langs *lang.Set, jokes interfaces.JokeFetcher,
	newWatcher func(onLost func(room string, err error)) interfaces.RoomWatcher) (*Bot, error) {

	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	// Reconnects are driven by the gateway supervisor instead.
	dg.ShouldReconnectOnError = false
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	bot := &Bot{
		config:   config,
		discord:  dg,
		sessions: make(map[string]*Session),
		builds:   make(map[string]*sessionBuild),
	}
	bot.deps = Deps{
		Gateway:    NewDiscordGateway(dg),
		Store:      store,
		Langs:      langs,
		Jokes:      jokes,
		NewWatcher: newWatcher,
	}

	router, err := NewRouter(langs, jokes, bot, Version)
	if err != nil {
		return nil, fmt.Errorf("error building command router: %w", err)
	}
	bot.router = router
	bot.supervisor = newGatewaySupervisor(dg.Open, reconnectInterval)

	dg.AddHandler(bot.handleReady)
	dg.AddHandler(bot.handleGuildCreate)
	dg.AddHandler(bot.handleGuildDelete)
	dg.AddHandler(bot.handleMessageCreate)
	dg.AddHandler(bot.handleConnect)
	dg.AddHandler(bot.handleDisconnect)

	return bot, nil
}

// Start opens the gateway connection and launches the stats worker.
func (b *Bot) Start() error {
	log.Info(b.deps.Langs.Default().Format("boot"))
	if err := b.discord.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}
	b.startedAt = time.Now()
	b.stopStats = startStatsWorker(b, statsInterval)
	return nil
}

// Close shuts down the reconnect loop, workers, sessions, and the gateway
// connection, in that order.
func (b *Bot) Close() {
	b.supervisor.Shutdown()
	if b.stopStats != nil {
		b.stopStats()
	}

	b.mu.Lock()
	sessions := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}

	if err := b.discord.Close(); err != nil {
		log.Errorf("Error closing discord session: %v", err)
	}
}

// Snapshot implements StatsProvider by aggregating over all live sessions
// and the gateway state.
func (b *Bot) Snapshot() StatsSnapshot {
	b.mu.Lock()
	snap := StatsSnapshot{
		Guilds: len(b.sessions),
		Uptime: time.Since(b.startedAt),
	}
	sessions := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	for _, s := range sessions {
		snap.WatchedRooms += len(s.WatchedRooms())
	}

	// Gateway state is mutated concurrently by the event goroutine.
	b.discord.State.RLock()
	for _, g := range b.discord.State.Guilds {
		snap.Members += g.MemberCount
	}
	b.discord.State.RUnlock()
	return snap
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	b.initOnce.Do(func() {
		pack := b.deps.Langs.Default()
		log.Info(pack.Format("ready"))
		if b.config.ClientID != "" {
			invite := fmt.Sprintf("https://discord.com/oauth2/authorize?client_id=%s&scope=bot", b.config.ClientID)
			log.Info(pack.Format("oauth", invite))
		}
		if err := s.UpdateGameStatus(0, b.config.DefaultPrefix+"help"); err != nil {
			log.Warnf("Failed to set presence: %v", err)
		}

		unavailable := 0
		for _, g := range r.Guilds {
			if g.Unavailable {
				unavailable++
				continue
			}
			b.ensureSession(g)
		}
		log.Infof("Serving %d guilds (%d unavailable)", len(r.Guilds), unavailable)
	})
}

// handleGuildCreate fires for every guild on (re)connect and whenever the
// bot joins a new one. Unavailable guilds are skipped; they fire again when
// they come back.
func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Unavailable {
		return
	}
	b.ensureSession(g.Guild)
}

// sessionBuild tracks an in-flight session construction so concurrent
// events for the same guild wait on one build instead of starting another.
type sessionBuild struct {
	done    chan struct{}
	session *Session
}

// ensureSession returns the session for a guild, constructing it on first
// sight. Construction resubscribes persisted room watches over the network,
// so it runs outside the bot mutex; a build marker under the mutex keeps it
// exactly once per guild and lets concurrent callers wait for the result.
func (b *Bot) ensureSession(guild *discordgo.Guild) *Session {
	b.mu.Lock()
	if s, ok := b.sessions[guild.ID]; ok {
		b.mu.Unlock()
		return s
	}
	if build, ok := b.builds[guild.ID]; ok {
		b.mu.Unlock()
		<-build.done
		return build.session
	}
	build := &sessionBuild{done: make(chan struct{})}
	b.builds[guild.ID] = build
	b.mu.Unlock()

	sess := NewSession(context.Background(), SessionConfig{
		GuildID:         guild.ID,
		OwnerID:         guild.OwnerID,
		SystemChannelID: guild.SystemChannelID,
		DefaultLang:     b.config.DefaultLang,
		DefaultPrefix:   b.config.DefaultPrefix,
	}, b.deps)

	b.mu.Lock()
	b.sessions[guild.ID] = sess
	delete(b.builds, guild.ID)
	b.mu.Unlock()

	build.session = sess
	close(build.done)
	log.Info(b.deps.Langs.Default().Format("join", guild.Name, guild.ID))
	return sess
}

// handleGuildDelete tears down the session when the bot is removed from a
// guild. Outages fire guildDelete with the unavailable flag set; those keep
// their session so watches survive the blip.
func (b *Bot) handleGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Unavailable {
		return
	}
	b.mu.Lock()
	sess := b.sessions[g.ID]
	delete(b.sessions, g.ID)
	b.mu.Unlock()
	if sess == nil {
		return
	}
	sess.Close()
	log.Infof("Left guild %s", g.ID)
}

func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	msg := Message{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		Content:   m.Content,
	}

	b.mu.Lock()
	sess := b.sessions[m.GuildID]
	b.mu.Unlock()
	if sess == nil || !sess.IsCommandCandidate(msg) {
		return
	}

	b.deps.Gateway.Typing(m.ChannelID)
	line := strings.TrimPrefix(msg.Content, sess.Prefix())
	b.router.Dispatch(context.Background(), &Context{Session: sess, Message: msg}, line)
}

func (b *Bot) handleConnect(s *discordgo.Session, _ *discordgo.Connect) {
	b.supervisor.HandleConnect()
}

func (b *Bot) handleDisconnect(s *discordgo.Session, _ *discordgo.Disconnect) {
	b.supervisor.HandleDisconnect()
}
