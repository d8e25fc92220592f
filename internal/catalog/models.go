package catalog

import (
	"time"

	"harmonium/internal/audiotypes"
)

// Artist is a deduplicated album artist. SortName is the normalized
// form (case-folded, trimmed, diacritics stripped) and is unique.
type Artist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SortName string `json:"-"`
}

// Album groups tracks by (artist, normalized title) regardless of
// directory layout.
type Album struct {
	ID        string `json:"id"`
	ArtistID  string `json:"artistId"`
	Title     string `json:"title"`
	SortTitle string `json:"-"`
	Year      int    `json:"year,omitempty"`
	CoverRef  string `json:"coverRef,omitempty"`
}

// Track is one indexed audio file. Path is relative to the music root
// and unique; a track always belongs to exactly one album.
type Track struct {
	ID         string           `json:"id"`
	AlbumID    string           `json:"albumId"`
	ArtistID   string           `json:"artistId"`
	Path       string           `json:"path"`
	Title      string           `json:"title"`
	SortTitle  string           `json:"-"`
	TrackNo    int              `json:"trackNo,omitempty"`
	DiscNo     int              `json:"discNo,omitempty"`
	DurationMS int64            `json:"durationMs"`
	Codec      audiotypes.Codec `json:"codec"`
	SampleRate int              `json:"sampleRate,omitempty"`
	Channels   int              `json:"channels,omitempty"`
	Bitrate    int              `json:"bitrate,omitempty"`
	FileSize   int64            `json:"fileSize"`
	HasCover   bool             `json:"hasCover"`
	Genres     []string         `json:"genres,omitempty"`
}

// Fingerprint is the last observed state of one file path. It is
// recorded even when tag extraction failed, so broken files are not
// re-parsed every pass. TagError is empty for healthy files.
type Fingerprint struct {
	Path        string
	Size        int64
	MTimeNS     int64
	ContentHash string
	TagError    string
}

// Equal reports whether two fingerprints describe the same file state.
// Content hashes are only compared when both sides carry one.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if f.Size != other.Size || f.MTimeNS != other.MTimeNS {
		return false
	}
	if f.ContentHash != "" && other.ContentHash != "" {
		return f.ContentHash == other.ContentHash
	}
	return true
}

// Playlist is a user-authored track grouping. Playlists are never
// touched by the scanner; references to removed tracks are dropped by
// the catalog's cascade rules.
type Playlist struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TrackIDs  []string  `json:"trackIds"`
	CreatedAt time.Time `json:"createdAt"`
}

// Phase is the indexing state machine phase.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseScanning Phase = "scanning"
	PhaseError    Phase = "error"
)

// Status is the singleton indexing status record.
type Status struct {
	Phase       Phase     `json:"phase"`
	StartedAt   time.Time `json:"startedAt,omitempty"`
	CompletedAt time.Time `json:"lastCompletedAt,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
	Added       int       `json:"added"`
	Updated     int       `json:"updated"`
	Removed     int       `json:"removed"`
	Warning     string    `json:"warning,omitempty"`
}

// Stats are aggregate catalog counts.
type Stats struct {
	Artists   int `json:"artists"`
	Albums    int `json:"albums"`
	Tracks    int `json:"tracks"`
	Playlists int `json:"playlists"`
	Likes     int `json:"likes"`
}

// Cover reference kinds. An album's CoverRef is either
// "embedded:<track_id>" (image inside the track's tags) or
// "file:<relpath>" (folder image next to the audio files).
const (
	CoverRefEmbeddedPrefix = "embedded:"
	CoverRefFilePrefix     = "file:"
)
