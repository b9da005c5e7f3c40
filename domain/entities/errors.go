package entities

import "errors"

// Error taxonomy shared across the runtime. Transport failures are recovered
// at the supervisor boundary; the rest surface to users as localized messages.
var (
	// ErrNotFound indicates no persisted config exists for a guild.
	ErrNotFound = errors.New("guild config not found")

	// ErrCorrupt indicates persisted config exists but could not be decoded.
	ErrCorrupt = errors.New("guild config corrupt")

	// ErrConnect indicates a room or gateway transport connection failed.
	ErrConnect = errors.New("connect failed")

	// ErrTimeout indicates a bounded external call exceeded its deadline.
	ErrTimeout = errors.New("timed out")

	// ErrOwnerDemotion indicates an attempt to remove the guild owner's
	// admin status, which is always refused.
	ErrOwnerDemotion = errors.New("guild owner cannot be demoted")

	// ErrNotAdmin indicates the target user is not in the admin set.
	ErrNotAdmin = errors.New("user is not an admin")

	// ErrUnknownChannel indicates a channel id that does not belong to the
	// bound guild.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrInvalidMention indicates a token that is not a valid platform
	// mention or references an entity outside the bound guild.
	ErrInvalidMention = errors.New("invalid mention")
)
