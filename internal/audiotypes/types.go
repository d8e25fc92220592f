package audiotypes

import (
	"path/filepath"
	"strings"
)

// Codec is the container/codec hint stored per track and handed to the
// streaming layer. It is derived from the file extension, not from
// sniffing the container.
type Codec string

const (
	CodecMP3     Codec = "mp3"
	CodecFLAC    Codec = "flac"
	CodecOGG     Codec = "ogg"
	CodecOpus    Codec = "opus"
	CodecAAC     Codec = "m4a"
	CodecWAV     Codec = "wav"
	CodecUnknown Codec = ""
)

var codecByExt = map[string]Codec{
	".mp3":  CodecMP3,
	".flac": CodecFLAC,
	".ogg":  CodecOGG,
	".oga":  CodecOGG,
	".opus": CodecOpus,
	".m4a":  CodecAAC,
	".aac":  CodecAAC,
	".wav":  CodecWAV,
}

var mimeByCodec = map[Codec]string{
	CodecMP3:  "audio/mpeg",
	CodecFLAC: "audio/flac",
	CodecOGG:  "audio/ogg",
	CodecOpus: "audio/opus",
	CodecAAC:  "audio/mp4",
	CodecWAV:  "audio/wav",
}

// coverNames are the folder-image fallbacks checked when a track has no
// embedded cover, in priority order.
var coverNames = []string{
	"cover.jpg", "cover.jpeg", "cover.png",
	"folder.jpg", "folder.jpeg", "folder.png",
	"front.jpg", "front.png",
	"album.jpg", "album.png",
}

// CodecForPath returns the codec hint for a file path, or CodecUnknown
// if the extension is not a recognized audio format.
func CodecForPath(path string) Codec {
	ext := strings.ToLower(filepath.Ext(path))
	return codecByExt[ext]
}

// IsAudioFile reports whether path has a recognized audio extension.
func IsAudioFile(path string) bool {
	return CodecForPath(path) != CodecUnknown
}

// MimeType returns the MIME type for a codec hint, or
// "application/octet-stream" for unknown codecs.
func (c Codec) MimeType() string {
	if mime, ok := mimeByCodec[c]; ok {
		return mime
	}
	return "application/octet-stream"
}

// CoverNames returns the recognized folder-image file names in priority
// order. Callers must not mutate the returned slice.
func CoverNames() []string {
	return coverNames
}

// IsCoverImage reports whether name is a recognized folder cover image.
func IsCoverImage(name string) bool {
	lower := strings.ToLower(name)
	for _, candidate := range coverNames {
		if lower == candidate {
			return true
		}
	}
	return false
}
