package entities

// RoomInfo is a point-in-time snapshot of an external media room.
type RoomInfo struct {
	Room       string
	MediaTitle string
	MediaType  string
	UserCount  int
	MediaURL   string // empty when the media type has no canonical URL
}

// HasMediaURL reports whether a canonical URL could be derived for the
// current media.
func (r *RoomInfo) HasMediaURL() bool {
	return r.MediaURL != ""
}
