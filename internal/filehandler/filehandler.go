// Package filehandler provides media file classification and structural
// validation: true MIME type detection from byte signatures, declared-type
// checks, and size/duration ceilings. Pure functions, no I/O beyond
// inspecting the buffers handed in.
package filehandler

import "bytes"

// Kind is the coarse media category of an upload, derived from its
// declared content type.
type Kind string

const (
	KindImage   Kind = "image"
	KindAudio   Kind = "audio"
	KindUnknown Kind = "unknown"
)

// SupportedImageTypes is the accepted set of canonical image MIME types.
var SupportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/tiff": true,
	"image/webp": true,
}

// SupportedAudioTypes is the accepted set of declared audio MIME types.
var SupportedAudioTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/flac":  true,
	"audio/ogg":   true,
	"audio/mp4":   true,
	"audio/x-m4a": true,
}

var (
	jpegMagic    = []byte{0xFF, 0xD8, 0xFF}
	pngMagic     = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	tiffLEMagic  = []byte{'I', 'I', 0x2A, 0x00}
	tiffBEMagic  = []byte{'M', 'M', 0x00, 0x2A}
	riffMagic    = []byte("RIFF")
	webpFourCC   = []byte("WEBP")
	webpFourCCAt = 8
)

// DetectImageMIME detects the image MIME type from the leading bytes of a
// file. WebP needs the RIFF prefix plus the WEBP marker at byte offset 8,
// which keeps RIFF-prefixed non-WebP payloads (e.g. WAVE audio) out.
// Returns "" when no signature matches.
func DetectImageMIME(header []byte) string {
	switch {
	case bytes.HasPrefix(header, jpegMagic):
		return "image/jpeg"
	case bytes.HasPrefix(header, pngMagic):
		return "image/png"
	case bytes.HasPrefix(header, tiffLEMagic), bytes.HasPrefix(header, tiffBEMagic):
		return "image/tiff"
	case bytes.HasPrefix(header, riffMagic):
		if len(header) >= webpFourCCAt+len(webpFourCC) && bytes.Equal(header[webpFourCCAt:webpFourCCAt+len(webpFourCC)], webpFourCC) {
			return "image/webp"
		}
	}
	return ""
}

// Classify maps a declared content type to a media kind. Used at the batch
// fan-out stage, where classification looks only at the declared type;
// byte-level sniffing happens downstream in per-kind validation.
func Classify(contentType string) Kind {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	switch {
	case SupportedImageTypes[contentType]:
		return KindImage
	case SupportedAudioTypes[contentType]:
		return KindAudio
	default:
		return KindUnknown
	}
}
