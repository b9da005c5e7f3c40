package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Message is the platform-independent view of an inbound chat message.
// GuildID is empty for direct messages.
type Message struct {
	GuildID   string
	ChannelID string
	AuthorID  string
	Content   string
}

// Gateway is the outbound surface of the chat platform that sessions use.
// It is injected so session and command logic can be tested without a live
// connection.
type Gateway interface {
	// SendMessage posts text to a channel.
	SendMessage(channelID, content string) error

	// Typing fires a typing indicator in a channel. Best effort.
	Typing(channelID string)

	// ChannelInGuild reports whether the channel belongs to the guild.
	ChannelInGuild(guildID, channelID string) bool

	// MemberInGuild reports whether the user is a member of the guild.
	MemberInGuild(guildID, userID string) bool
}

// discordGateway adapts a discordgo session to the Gateway interface.
type discordGateway struct {
	session *discordgo.Session
}

// NewDiscordGateway wraps a discordgo session.
func NewDiscordGateway(session *discordgo.Session) Gateway {
	return &discordGateway{session: session}
}

func (g *discordGateway) SendMessage(channelID, content string) error {
	if _, err := g.session.ChannelMessageSend(channelID, content); err != nil {
		return fmt.Errorf("failed to send message to channel %s: %w", channelID, err)
	}
	return nil
}

func (g *discordGateway) Typing(channelID string) {
	// Purely cosmetic; a failure here is not worth surfacing.
	g.session.ChannelTyping(channelID)
}

func (g *discordGateway) ChannelInGuild(guildID, channelID string) bool {
	ch, err := g.session.State.Channel(channelID)
	if err != nil {
		ch, err = g.session.Channel(channelID)
		if err != nil {
			return false
		}
	}
	return ch.GuildID == guildID
}

func (g *discordGateway) MemberInGuild(guildID, userID string) bool {
	if _, err := g.session.State.Member(guildID, userID); err == nil {
		return true
	}
	_, err := g.session.GuildMember(guildID, userID)
	return err == nil
}
