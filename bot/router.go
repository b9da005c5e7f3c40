package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cybot/domain/interfaces"
	"cybot/lang"
)

// Context carries what a command action needs: the originating session and
// the raw message.
type Context struct {
	Session *Session
	Message Message
}

// Reply posts text back to the channel the command came from.
func (c *Context) Reply(text string) {
	c.Session.Send(c.Message.ChannelID, text)
}

// StatsSnapshot is a point-in-time aggregate over all sessions.
type StatsSnapshot struct {
	Guilds       int
	Members      int
	WatchedRooms int
	Uptime       time.Duration
}

// StatsProvider supplies the aggregates behind the info command and the
// stats worker.
type StatsProvider interface {
	Snapshot() StatsSnapshot
}

type action func(ctx context.Context, c *Context, arg string)

// commandSpec is the language-independent shape of one command.
type commandSpec struct {
	key       string
	adminOnly bool
	needsArg  bool
}

// commandSpecs fixes the command surface and its listing order.
var commandSpecs = []commandSpec{
	{key: "help"},
	{key: "info"},
	{key: "booyah"},
	{key: "chuck"},
	{key: "cytube", needsArg: true},
	{key: "announce", adminOnly: true, needsArg: true},
	{key: "admin", adminOnly: true, needsArg: true},
	{key: "prefix", adminOnly: true, needsArg: true},
	{key: "channel", adminOnly: true},
}

// helpAlias resolves to help in every language.
const helpAlias = "?"

type commandEntry struct {
	spec      commandSpec
	localized lang.Command
	run       action
}

// Router holds one immutable command table per language, built once at
// startup. A command resolves by its localized canonical name, by the fixed
// help alias, or by the default language's spelling so users can always fall
// back to the default-language verb. The router is stateless per call and
// safe for concurrent dispatch across sessions.
type Router struct {
	langs   *lang.Set
	jokes   interfaces.JokeFetcher
	stats   StatsProvider
	version string
	tables  map[string]map[string]*commandEntry
}

// NewRouter builds the per-language command tables. Any alias ambiguity is a
// configuration error and fails the build.
func NewRouter(langs *lang.Set, jokes interfaces.JokeFetcher, stats StatsProvider, version string) (*Router, error) {
	r := &Router{
		langs:   langs,
		jokes:   jokes,
		stats:   stats,
		version: version,
		tables:  make(map[string]map[string]*commandEntry),
	}
	actions := map[string]action{
		"help":     r.cmdHelp,
		"info":     r.cmdInfo,
		"booyah":   r.cmdBooyah,
		"chuck":    r.cmdChuck,
		"cytube":   r.cmdCytube,
		"announce": r.cmdAnnounce,
		"admin":    r.cmdAdmin,
		"prefix":   r.cmdPrefix,
		"channel":  r.cmdChannel,
	}

	defaultPack := langs.Default()
	for _, code := range langs.Codes() {
		pack := langs.Pack(code)
		table := make(map[string]*commandEntry)
		for _, spec := range commandSpecs {
			entry := &commandEntry{
				spec:      spec,
				localized: pack.Command(spec.key),
				run:       actions[spec.key],
			}
			aliases := []string{entry.localized.Name}
			if spec.key == "help" {
				aliases = append(aliases, helpAlias)
			}
			if fallback := defaultPack.Command(spec.key).Name; fallback != entry.localized.Name {
				aliases = append(aliases, fallback)
			}
			for _, alias := range aliases {
				token := strings.ToLower(alias)
				if other, ok := table[token]; ok {
					return nil, fmt.Errorf("language %s: command token %q bound to both %s and %s",
						code, token, other.spec.key, spec.key)
				}
				table[token] = entry
			}
		}
		r.tables[code] = table
	}
	return r, nil
}

// Dispatch parses a command line (prefix already stripped) against the
// session's language table and invokes the matched action. Unknown commands
// and missing arguments resolve to localized usage text, never an error.
func (r *Router) Dispatch(ctx context.Context, c *Context, line string) {
	pack := c.Session.Pack()
	prefix := c.Session.Prefix()

	fields := strings.Fields(line)
	if len(fields) == 0 {
		c.Reply(pack.Format("unknown_command", prefix))
		return
	}

	table := r.tables[pack.Code]
	entry, ok := table[strings.ToLower(fields[0])]
	if !ok {
		c.Reply(pack.Format("unknown_command", prefix))
		return
	}

	if entry.spec.adminOnly && !c.Session.IsAdmin(c.Message.AuthorID) {
		c.Reply(pack.Format("denied", entry.localized.Name))
		return
	}

	arg := strings.TrimSpace(strings.Join(fields[1:], " "))
	if entry.spec.needsArg && arg == "" {
		c.Reply(pack.Format("usage", prefix, entry.localized.Name, entry.localized.Usage))
		return
	}

	entry.run(ctx, c, arg)
}

// helpListing renders one line per command in spec order.
func (r *Router) helpListing(pack *lang.Pack) string {
	var b strings.Builder
	for i, spec := range commandSpecs {
		cmd := pack.Command(spec.key)
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(cmd.Name)
		if cmd.Usage != "" {
			b.WriteString(" ")
			b.WriteString(cmd.Usage)
		}
		b.WriteString(" — ")
		b.WriteString(cmd.Desc)
	}
	return b.String()
}
