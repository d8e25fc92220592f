package scanner

import (
	"encoding/binary"
	"io"

	"harmonium/internal/audiotypes"
)

// audioProperties are the decode-level facts probed from the container
// header. The tag layer does not expose these, so each format gets a
// small dedicated probe with a bitrate-estimate fallback.
type audioProperties struct {
	DurationMS int64
	SampleRate int
	Channels   int
	Bitrate    int // kbps
}

func probeProperties(r io.ReadSeeker, codec audiotypes.Codec, fileSize int64) audioProperties {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return estimate(codec, fileSize)
	}

	switch codec {
	case audiotypes.CodecFLAC:
		return probeFLAC(r, fileSize)
	case audiotypes.CodecMP3:
		return probeMP3(r, fileSize)
	case audiotypes.CodecOGG, audiotypes.CodecOpus:
		return probeOGG(r, fileSize)
	case audiotypes.CodecWAV:
		return probeWAV(r, fileSize)
	default:
		return estimate(codec, fileSize)
	}
}

// estimate derives duration from the file size and a typical bitrate
// for the format. Used when the header probe fails.
func estimate(codec audiotypes.Codec, fileSize int64) audioProperties {
	bitrate := 128
	switch codec {
	case audiotypes.CodecFLAC:
		bitrate = 1000
	case audiotypes.CodecAAC:
		bitrate = 256
	case audiotypes.CodecOGG, audiotypes.CodecOpus:
		bitrate = 192
	case audiotypes.CodecWAV:
		bitrate = 1411
	}
	return audioProperties{
		DurationMS: fileSize * 8 / int64(bitrate),
		SampleRate: 44100,
		Channels:   2,
		Bitrate:    bitrate,
	}
}

func probeFLAC(r io.ReadSeeker, fileSize int64) audioProperties {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil || string(header) != "fLaC" {
		return estimate(audiotypes.CodecFLAC, fileSize)
	}

	for {
		blockHeader := make([]byte, 4)
		if _, err := io.ReadFull(r, blockHeader); err != nil {
			break
		}
		blockType := blockHeader[0] & 0x7F
		blockSize := int(blockHeader[1])<<16 | int(blockHeader[2])<<8 | int(blockHeader[3])

		if blockType == 0 { // STREAMINFO
			info := make([]byte, blockSize)
			if _, err := io.ReadFull(r, info); err != nil || blockSize < 18 {
				break
			}
			sampleRate := int(info[10])<<12 | int(info[11])<<4 | int(info[12])>>4
			channels := int(info[12]>>1)&0x07 + 1
			totalSamples := int64(info[13]&0x0F)<<32 | int64(info[14])<<24 |
				int64(info[15])<<16 | int64(info[16])<<8 | int64(info[17])

			if sampleRate > 0 && totalSamples > 0 {
				durationMS := totalSamples * 1000 / int64(sampleRate)
				return audioProperties{
					DurationMS: durationMS,
					SampleRate: sampleRate,
					Channels:   channels,
					Bitrate:    kbps(fileSize, durationMS),
				}
			}
			break
		}

		if _, err := r.Seek(int64(blockSize), io.SeekCurrent); err != nil {
			break
		}
		if blockHeader[0]&0x80 != 0 { // last metadata block
			break
		}
	}
	return estimate(audiotypes.CodecFLAC, fileSize)
}

// MPEG 1 / MPEG 2 Layer III bitrate tables, kbps.
var (
	mp3BitratesV1 = []int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
	mp3BitratesV2 = []int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}
)

func mp3SampleRate(version, index byte) int {
	rates := map[byte][]int{
		3: {44100, 48000, 32000}, // MPEG 1
		2: {22050, 24000, 16000}, // MPEG 2
		0: {11025, 12000, 8000},  // MPEG 2.5
	}
	if r, ok := rates[version]; ok && index < 3 {
		return r[index]
	}
	return 0
}

func probeMP3(r io.ReadSeeker, fileSize int64) audioProperties {
	// Scan the first 64KB for a frame sync; ID3v2 padding can push the
	// first frame well past the start of the file.
	buf := make([]byte, 65536)
	n, _ := io.ReadFull(r, buf)
	if n < 4 {
		return estimate(audiotypes.CodecMP3, fileSize)
	}

	for i := 0; i+4 <= n; i++ {
		if buf[i] != 0xFF || buf[i+1]&0xE0 != 0xE0 {
			continue
		}
		version := (buf[i+1] >> 3) & 0x03
		layer := (buf[i+1] >> 1) & 0x03
		if layer != 1 { // Layer III only
			continue
		}
		bitrateIndex := (buf[i+2] >> 4) & 0x0F
		sampleRateIndex := (buf[i+2] >> 2) & 0x03

		var bitrate int
		if version == 3 {
			bitrate = mp3BitratesV1[bitrateIndex]
		} else {
			bitrate = mp3BitratesV2[bitrateIndex]
		}
		sampleRate := mp3SampleRate(version, sampleRateIndex)
		if bitrate == 0 || sampleRate == 0 {
			continue
		}

		channels := 2
		if (buf[i+3]>>6)&0x03 == 3 { // mono channel mode
			channels = 1
		}

		return audioProperties{
			DurationMS: fileSize * 8 / int64(bitrate),
			SampleRate: sampleRate,
			Channels:   channels,
			Bitrate:    bitrate,
		}
	}
	return estimate(audiotypes.CodecMP3, fileSize)
}

func probeOGG(r io.ReadSeeker, fileSize int64) audioProperties {
	header := make([]byte, 27)
	if _, err := io.ReadFull(r, header); err != nil || string(header[0:4]) != "OggS" {
		return estimate(audiotypes.CodecOGG, fileSize)
	}

	// The last page's granule position is the total sample count. Scan
	// the last 64KB backwards for it.
	off := int64(0)
	if fileSize > 65536 {
		off = fileSize - 65536
	}
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return estimate(audiotypes.CodecOGG, fileSize)
	}
	buf := make([]byte, 65536)
	n, _ := io.ReadFull(r, buf)

	var lastGranule int64
	for i := n - 27; i >= 0; i-- {
		if string(buf[i:i+4]) == "OggS" {
			lastGranule = int64(binary.LittleEndian.Uint64(buf[i+6 : i+14]))
			break
		}
	}

	if lastGranule > 0 {
		sampleRate := 48000
		durationMS := lastGranule * 1000 / int64(sampleRate)
		if durationMS > 0 {
			return audioProperties{
				DurationMS: durationMS,
				SampleRate: sampleRate,
				Channels:   2,
				Bitrate:    kbps(fileSize, durationMS),
			}
		}
	}
	return estimate(audiotypes.CodecOGG, fileSize)
}

func probeWAV(r io.ReadSeeker, fileSize int64) audioProperties {
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil ||
		string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return estimate(audiotypes.CodecWAV, fileSize)
	}

	for {
		chunk := make([]byte, 8)
		if _, err := io.ReadFull(r, chunk); err != nil {
			break
		}
		chunkSize := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		if string(chunk[0:4]) == "fmt " {
			fmtData := make([]byte, 16)
			if _, err := io.ReadFull(r, fmtData); err != nil {
				break
			}
			channels := int(binary.LittleEndian.Uint16(fmtData[2:4]))
			sampleRate := int(binary.LittleEndian.Uint32(fmtData[4:8]))
			byteRate := int64(binary.LittleEndian.Uint32(fmtData[8:12]))

			if byteRate > 0 && sampleRate > 0 {
				durationMS := fileSize * 1000 / byteRate
				return audioProperties{
					DurationMS: durationMS,
					SampleRate: sampleRate,
					Channels:   channels,
					Bitrate:    int(byteRate * 8 / 1000),
				}
			}
			break
		}

		if _, err := r.Seek(chunkSize, io.SeekCurrent); err != nil {
			break
		}
	}
	return estimate(audiotypes.CodecWAV, fileSize)
}

func kbps(fileSize, durationMS int64) int {
	if durationMS <= 0 {
		return 0
	}
	return int(fileSize * 8 / durationMS)
}
