package scanner

import (
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"

	"harmonium/internal/audiotypes"
)

// TagInfo is everything extracted from one audio file's metadata.
type TagInfo struct {
	Artist      string
	AlbumArtist string
	Album       string
	Title       string
	TrackNo     int
	DiscNo      int
	Year        int
	Genres      []string
	DurationMS  int64
	SampleRate  int
	Channels    int
	Bitrate     int
	HasCover    bool
}

// TagReader extracts metadata from an audio file on disk. Implemented
// by FileTagReader for real files and stubbed in tests.
type TagReader interface {
	ReadTags(absPath string) (TagInfo, error)
}

// FileTagReader reads metadata with the tag library and probes the
// container header for audio properties the tag layer does not expose.
type FileTagReader struct{}

func (FileTagReader) ReadTags(absPath string) (TagInfo, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return TagInfo{}, err
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return TagInfo{}, fmt.Errorf("tag read: %w", err)
	}

	info := TagInfo{
		Artist:      strings.TrimSpace(meta.Artist()),
		AlbumArtist: strings.TrimSpace(meta.AlbumArtist()),
		Album:       strings.TrimSpace(meta.Album()),
		Title:       strings.TrimSpace(meta.Title()),
		Year:        meta.Year(),
		HasCover:    meta.Picture() != nil,
	}
	info.TrackNo, _ = meta.Track()
	info.DiscNo, _ = meta.Disc()
	if genre := strings.TrimSpace(meta.Genre()); genre != "" {
		for _, g := range strings.Split(genre, ";") {
			if g = strings.TrimSpace(g); g != "" {
				info.Genres = append(info.Genres, g)
			}
		}
	}

	stat, err := f.Stat()
	if err != nil {
		return info, err
	}
	props := probeProperties(f, audiotypes.CodecForPath(absPath), stat.Size())
	info.DurationMS = props.DurationMS
	info.SampleRate = props.SampleRate
	info.Channels = props.Channels
	info.Bitrate = props.Bitrate

	return info, nil
}
