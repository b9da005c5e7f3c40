package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cybot/domain/entities"
	"cybot/lang"

	log "github.com/sirupsen/logrus"
)

func (r *Router) cmdHelp(ctx context.Context, c *Context, arg string) {
	pack := c.Session.Pack()
	c.Reply(pack.Format("help", c.Session.Prefix(), r.helpListing(pack)))
}

func (r *Router) cmdInfo(ctx context.Context, c *Context, arg string) {
	snap := r.stats.Snapshot()
	uptime := snap.Uptime.Round(time.Second).String()
	c.Reply(c.Session.Pack().Format("info", r.version, snap.Guilds, snap.Members, uptime))
}

func (r *Router) cmdBooyah(ctx context.Context, c *Context, arg string) {
	c.Reply(c.Session.Pack().Format("booyah"))
}

func (r *Router) cmdChuck(ctx context.Context, c *Context, arg string) {
	joke, err := r.jokes.Random(ctx)
	if err != nil {
		log.Warnf("Failed to fetch joke: %v", err)
		c.Reply(c.Session.Pack().Format("chuck_err"))
		return
	}
	c.Reply(joke)
}

func (r *Router) cmdCytube(ctx context.Context, c *Context, arg string) {
	pack := c.Session.Pack()
	info, err := c.Session.RoomInfo(ctx, arg)
	if err != nil {
		c.Reply(roomErrorText(pack, err))
		return
	}
	if info.HasMediaURL() {
		c.Reply(pack.Format("room_info_url", info.Room, info.MediaTitle, info.MediaType, info.UserCount, info.MediaURL))
		return
	}
	c.Reply(pack.Format("room_info", info.Room, info.MediaTitle, info.MediaType, info.UserCount))
}

func (r *Router) cmdAnnounce(ctx context.Context, c *Context, arg string) {
	pack := c.Session.Pack()
	watching, err := c.Session.ToggleRoomWatch(ctx, arg)
	if err != nil {
		c.Reply(roomErrorText(pack, err))
		return
	}
	if watching {
		c.Reply(pack.Format("watch_on", arg))
	} else {
		c.Reply(pack.Format("watch_off", arg))
	}
}

func (r *Router) cmdAdmin(ctx context.Context, c *Context, arg string) {
	pack := c.Session.Pack()
	userID, err := c.Session.ValidateMention(arg)
	if err != nil {
		c.Reply(pack.Format("invalid_mention"))
		return
	}
	added, err := c.Session.ToggleAdmin(ctx, userID)
	if err != nil {
		if errors.Is(err, entities.ErrOwnerDemotion) {
			c.Reply(pack.Format("owner_demote"))
			return
		}
		log.Errorf("Guild %s: admin toggle for %s failed: %v", c.Session.GuildID(), userID, err)
		return
	}
	mention := fmt.Sprintf("<@%s>", userID)
	if added {
		c.Reply(pack.Format("admin_on", mention))
	} else {
		c.Reply(pack.Format("admin_off", mention))
	}
}

func (r *Router) cmdPrefix(ctx context.Context, c *Context, arg string) {
	pack := c.Session.Pack()
	if err := c.Session.SetPrefix(ctx, arg); err != nil {
		cmd := pack.Command("prefix")
		c.Reply(pack.Format("usage", c.Session.Prefix(), cmd.Name, cmd.Usage))
		return
	}
	c.Reply(pack.Format("prefix_set", arg))
}

func (r *Router) cmdChannel(ctx context.Context, c *Context, arg string) {
	pack := c.Session.Pack()

	channelID := c.Message.ChannelID
	if arg != "" {
		id, err := c.Session.ValidateChannel(arg)
		if err != nil {
			if errors.Is(err, entities.ErrUnknownChannel) {
				c.Reply(pack.Format("unknown_channel"))
			} else {
				c.Reply(pack.Format("invalid_mention"))
			}
			return
		}
		channelID = id
	}

	if err := c.Session.SetTalkChannel(ctx, channelID); err != nil {
		c.Reply(pack.Format("unknown_channel"))
		return
	}
	c.Reply(pack.Format("channel_set", channelID))
}

// roomErrorText maps a room query failure to its localized reply.
func roomErrorText(pack *lang.Pack, err error) string {
	if errors.Is(err, entities.ErrTimeout) {
		return pack.Format("timeout")
	}
	return pack.Format("connect_err")
}
