package bot

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cybot/domain/entities"
	"cybot/domain/interfaces"
	"cybot/domain/testhelpers"
	"cybot/lang"
)

type sentMessage struct {
	channelID string
	text      string
}

// fakeGateway records outbound traffic and answers membership checks from
// fixed maps.
type fakeGateway struct {
	mu       sync.Mutex
	sent     []sentMessage
	typed    []string
	channels map[string]string // channelID -> guildID
	members  map[string]string // userID -> guildID
	sendErr  error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		channels: make(map[string]string),
		members:  make(map[string]string),
	}
}

func (g *fakeGateway) SendMessage(channelID, content string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return g.sendErr
	}
	g.sent = append(g.sent, sentMessage{channelID: channelID, text: content})
	return nil
}

func (g *fakeGateway) Typing(channelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.typed = append(g.typed, channelID)
}

func (g *fakeGateway) ChannelInGuild(guildID, channelID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.channels[channelID] == guildID
}

func (g *fakeGateway) MemberInGuild(guildID, userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.members[userID] == guildID
}

func (g *fakeGateway) sentMessages() []sentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentMessage(nil), g.sent...)
}

func testLangs(t *testing.T) *lang.Set {
	t.Helper()
	langs, err := lang.Load("../langpacks", "en-US")
	require.NoError(t, err)
	return langs
}

type sessionFixture struct {
	session *Session
	gateway *fakeGateway
	store   *testhelpers.MockConfigStore
	watcher *testhelpers.MockRoomWatcher
	langs   *lang.Set
}

// newSessionFixture builds a session for guild g1 owned by owner-1. When cfg
// is nil the store reports no snapshot and the session seeds defaults.
func newSessionFixture(t *testing.T, cfg *entities.GuildConfig) *sessionFixture {
	t.Helper()

	gw := newFakeGateway()
	store := new(testhelpers.MockConfigStore)
	watcher := new(testhelpers.MockRoomWatcher)
	langs := testLangs(t)

	if cfg == nil {
		store.On("Load", mock.Anything, "g1").Return(nil, entities.ErrNotFound)
	} else {
		store.On("Load", mock.Anything, "g1").Return(cfg, nil)
		for _, room := range cfg.WatchedRooms {
			watcher.On("Watch", mock.Anything, room, mock.Anything).Return(nil)
		}
	}
	store.On("Save", mock.Anything, mock.Anything).Return(nil)

	deps := Deps{
		Gateway: gw,
		Store:   store,
		Langs:   langs,
		NewWatcher: func(onLost func(room string, err error)) interfaces.RoomWatcher {
			return watcher
		},
	}
	sc := SessionConfig{
		GuildID:         "g1",
		OwnerID:         "owner-1",
		SystemChannelID: "chan-sys",
		DefaultLang:     "en-US",
		DefaultPrefix:   "!cy",
	}
	return &sessionFixture{
		session: NewSession(context.Background(), sc, deps),
		gateway: gw,
		store:   store,
		watcher: watcher,
		langs:   langs,
	}
}

func TestNewSession_SeedsDefaultsWhenMissing(t *testing.T) {
	f := newSessionFixture(t, nil)

	assert.Equal(t, "!cy", f.session.Prefix())
	assert.Equal(t, "chan-sys", f.session.TalkChannel())
	assert.True(t, f.session.IsAdmin("owner-1"))
	assert.Empty(t, f.session.WatchedRooms())
	f.store.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(cfg *entities.GuildConfig) bool {
		return cfg.GuildID == "g1" && cfg.OwnerID == "owner-1"
	}))
}

func TestNewSession_ResubscribesPersistedRooms(t *testing.T) {
	cfg := entities.NewGuildConfig("g1", "owner-1", "en-US", "!cy", "chan-sys")
	cfg.AddWatchedRoom("lounge")
	cfg.AddWatchedRoom("movies")

	f := newSessionFixture(t, cfg)

	f.watcher.AssertCalled(t, "Watch", mock.Anything, "lounge", mock.Anything)
	f.watcher.AssertCalled(t, "Watch", mock.Anything, "movies", mock.Anything)
	assert.ElementsMatch(t, []string{"lounge", "movies"}, f.session.WatchedRooms())
}

func TestSession_IsCommandCandidate(t *testing.T) {
	f := newSessionFixture(t, nil)

	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"prefixed message in guild", Message{GuildID: "g1", Content: "!cyhelp"}, true},
		{"prefix alone", Message{GuildID: "g1", Content: "!cy"}, true},
		{"no prefix", Message{GuildID: "g1", Content: "hello"}, false},
		{"other guild", Message{GuildID: "g2", Content: "!cyhelp"}, false},
		{"direct message", Message{GuildID: "", Content: "!cyhelp"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.session.IsCommandCandidate(tt.msg))
		})
	}
}

func TestSession_SetPrefix(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.session.SetPrefix(ctx, "$"))
	assert.Equal(t, "$", f.session.Prefix())

	assert.Error(t, f.session.SetPrefix(ctx, "  "))
	assert.Equal(t, "$", f.session.Prefix())
}

func TestSession_ToggleAdmin(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()

	added, err := f.session.ToggleAdmin(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, f.session.IsAdmin("user-2"))

	added, err = f.session.ToggleAdmin(ctx, "user-2")
	require.NoError(t, err)
	assert.False(t, added)
	assert.False(t, f.session.IsAdmin("user-2"))
}

func TestSession_OwnerCannotBeDemoted(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()

	_, err := f.session.ToggleAdmin(ctx, "owner-1")
	assert.ErrorIs(t, err, entities.ErrOwnerDemotion)
	assert.True(t, f.session.IsAdmin("owner-1"))

	assert.ErrorIs(t, f.session.UnsetAdmin(ctx, "owner-1"), entities.ErrOwnerDemotion)
	assert.True(t, f.session.IsAdmin("owner-1"))
}

func TestSession_SetTalkChannel(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()
	f.gateway.channels["chan-2"] = "g1"

	require.NoError(t, f.session.SetTalkChannel(ctx, "chan-2"))
	assert.Equal(t, "chan-2", f.session.TalkChannel())

	assert.ErrorIs(t, f.session.SetTalkChannel(ctx, "chan-elsewhere"), entities.ErrUnknownChannel)
	assert.Equal(t, "chan-2", f.session.TalkChannel())
}

func TestSession_ValidateMention(t *testing.T) {
	f := newSessionFixture(t, nil)
	f.gateway.members["1234"] = "g1"

	id, err := f.session.ValidateMention("<@1234>")
	require.NoError(t, err)
	assert.Equal(t, "1234", id)

	id, err = f.session.ValidateMention("<@!1234>")
	require.NoError(t, err)
	assert.Equal(t, "1234", id)

	_, err = f.session.ValidateMention("not a mention")
	assert.ErrorIs(t, err, entities.ErrInvalidMention)

	_, err = f.session.ValidateMention("<@9999>")
	assert.ErrorIs(t, err, entities.ErrInvalidMention)
}

func TestSession_ValidateChannel(t *testing.T) {
	f := newSessionFixture(t, nil)
	f.gateway.channels["555"] = "g1"

	id, err := f.session.ValidateChannel("<#555>")
	require.NoError(t, err)
	assert.Equal(t, "555", id)

	_, err = f.session.ValidateChannel("<#777>")
	assert.ErrorIs(t, err, entities.ErrUnknownChannel)

	_, err = f.session.ValidateChannel("555")
	assert.ErrorIs(t, err, entities.ErrInvalidMention)
}

func TestSession_ToggleRoomWatch(t *testing.T) {
	f := newSessionFixture(t, nil)
	ctx := context.Background()
	f.watcher.On("Watch", mock.Anything, "lounge", mock.Anything).Return(nil)
	f.watcher.On("Unwatch", "lounge").Return()

	watching, err := f.session.ToggleRoomWatch(ctx, "lounge")
	require.NoError(t, err)
	assert.True(t, watching)
	assert.Equal(t, []string{"lounge"}, f.session.WatchedRooms())

	watching, err = f.session.ToggleRoomWatch(ctx, "lounge")
	require.NoError(t, err)
	assert.False(t, watching)
	assert.Empty(t, f.session.WatchedRooms())
	f.watcher.AssertCalled(t, "Unwatch", "lounge")
}

func TestSession_ConcurrentTogglesResolveToOneSubscribe(t *testing.T) {
	f := newSessionFixture(t, nil)
	f.watcher.On("Watch", mock.Anything, "lounge", mock.Anything).Return(nil)
	f.watcher.On("Unwatch", "lounge").Return()

	results := make(chan bool, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			watching, err := f.session.ToggleRoomWatch(context.Background(), "lounge")
			assert.NoError(t, err)
			results <- watching
		}()
	}
	wg.Wait()
	close(results)

	var on, off int
	for watching := range results {
		if watching {
			on++
		} else {
			off++
		}
	}
	assert.Equal(t, 1, on)
	assert.Equal(t, 1, off)
	assert.Empty(t, f.session.WatchedRooms())
}

func TestSession_WatchRoomErrorDoesNotPersist(t *testing.T) {
	f := newSessionFixture(t, nil)
	f.watcher.On("Watch", mock.Anything, "down", mock.Anything).Return(entities.ErrConnect)

	_, err := f.session.ToggleRoomWatch(context.Background(), "down")
	assert.ErrorIs(t, err, entities.ErrConnect)
	assert.Empty(t, f.session.WatchedRooms())
}

func TestSession_HandleWatchLost(t *testing.T) {
	cfg := entities.NewGuildConfig("g1", "owner-1", "en-US", "!cy", "chan-sys")
	cfg.AddWatchedRoom("lounge")
	f := newSessionFixture(t, cfg)

	f.session.handleWatchLost("lounge", entities.ErrConnect)

	assert.Empty(t, f.session.WatchedRooms())
	sent := f.gateway.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "chan-sys", sent[0].channelID)
	assert.Equal(t, f.langs.Default().Format("watch_lost", "lounge"), sent[0].text)

	// A second loss report for the same room is a no-op.
	f.session.handleWatchLost("lounge", entities.ErrConnect)
	assert.Len(t, f.gateway.sentMessages(), 1)
}

func TestSession_AnnounceChange(t *testing.T) {
	f := newSessionFixture(t, nil)

	f.session.announceChange(&entities.RoomInfo{
		Room:       "lounge",
		MediaTitle: "Some Video",
		MediaType:  "yt",
		MediaURL:   "https://www.youtube.com/watch?v=abc",
	})

	sent := f.gateway.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "chan-sys", sent[0].channelID)
	assert.Equal(t,
		f.langs.Default().Format("announce_url", "lounge", "Some Video", "https://www.youtube.com/watch?v=abc"),
		sent[0].text)
}
