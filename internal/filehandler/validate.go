package filehandler

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// MaxImageSizeBytes is the upload ceiling for images. Exactly at the
	// limit passes.
	MaxImageSizeBytes = 10 * 1024 * 1024

	// MaxAudioDuration is the ceiling for audio files whose duration can
	// be determined.
	MaxAudioDuration = 15 * time.Minute
)

func supportedList(types map[string]bool) string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// ValidateImageType validates an image upload against its declared content
// type and leading bytes, returning the canonical MIME type. Detection is
// authoritative: the detected type is returned, not the declared one.
func ValidateImageType(declared string, header []byte) (string, error) {
	if declared != "" && !SupportedImageTypes[declared] {
		return "", fmt.Errorf("unsupported file type %s, supported formats: %s", declared, supportedList(SupportedImageTypes))
	}

	detected := DetectImageMIME(header)
	if detected == "" {
		return "", fmt.Errorf("file is not recognizable as a supported image format")
	}
	if !SupportedImageTypes[detected] {
		return "", fmt.Errorf("unsupported file type %s, supported formats: %s", detected, supportedList(SupportedImageTypes))
	}
	return detected, nil
}

// ValidateImageSize enforces the image size ceiling.
func ValidateImageSize(sizeBytes int) error {
	if sizeBytes > MaxImageSizeBytes {
		return fmt.Errorf("file is too large (%d bytes), maximum: %d MB", sizeBytes, MaxImageSizeBytes/(1024*1024))
	}
	return nil
}

// ValidateAudioUpload validates an audio upload and returns its MIME type
// plus the probed duration in seconds. The duration probe is best-effort:
// formats that cannot be parsed yield a nil duration and are accepted,
// since rejecting them would turn every exotic-but-valid container into an
// error. A known duration above the ceiling fails.
func ValidateAudioUpload(declared string, data []byte, fileName string) (string, *float64, error) {
	mime := declared
	if mime == "" {
		mime = "application/octet-stream"
	}
	if !SupportedAudioTypes[mime] {
		return "", nil, fmt.Errorf("unsupported audio file type %s, supported formats: %s", mime, supportedList(SupportedAudioTypes))
	}

	duration := ProbeAudioDuration(data, fileName)
	if duration != nil && *duration > MaxAudioDuration.Seconds() {
		return "", nil, fmt.Errorf("audio file is too long (%.0fs), maximum: %d minutes", *duration, int(MaxAudioDuration.Minutes()))
	}
	return mime, duration, nil
}
