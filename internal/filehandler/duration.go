package filehandler

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/rs/zerolog/log"
	"github.com/tcolgate/mp3"
)

// ProbeAudioDuration returns the duration of an audio file in seconds, or
// nil when it cannot be determined. The container is identified from its
// leading bytes first, with the file extension as a fallback; unsupported
// containers and corrupt data yield nil, never an error.
func ProbeAudioDuration(data []byte, fileName string) (seconds *float64) {
	// The format parsers are not hardened against corrupt input.
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Str("file", fileName).Interface("panic", r).Msg("Audio duration probe panicked")
			seconds = nil
		}
	}()

	switch {
	case bytes.HasPrefix(data, []byte("fLaC")):
		return flacDuration(data)
	case isWAVE(data):
		return wavDuration(data)
	case looksLikeMP3(data):
		return mp3Duration(data)
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".mp3":
		return mp3Duration(data)
	case ".wav":
		return wavDuration(data)
	case ".flac":
		return flacDuration(data)
	}

	log.Debug().Str("file", fileName).Msg("Could not determine audio duration")
	return nil
}

func isWAVE(data []byte) bool {
	return len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

func looksLikeMP3(data []byte) bool {
	if bytes.HasPrefix(data, []byte("ID3")) {
		return true
	}
	// Bare MPEG audio frame sync: 11 set bits.
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

func mp3Duration(data []byte) *float64 {
	decoder := mp3.NewDecoder(bytes.NewReader(data))
	var (
		frame   mp3.Frame
		skipped int
		total   float64
	)
	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			break
		}
		total += frame.Duration().Seconds()
	}
	if total <= 0 {
		return nil
	}
	return &total
}

func wavDuration(data []byte) *float64 {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	duration, err := decoder.Duration()
	if err != nil || duration <= 0 {
		return nil
	}
	seconds := duration.Seconds()
	return &seconds
}

func flacDuration(data []byte) *float64 {
	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil || stream.Info == nil || stream.Info.SampleRate == 0 {
		return nil
	}
	seconds := float64(stream.Info.NSamples) / float64(stream.Info.SampleRate)
	return &seconds
}
