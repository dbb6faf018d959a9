package filehandler

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// makeWAV builds a canonical PCM WAV file of the given duration at
// 8kHz/16-bit/mono.
func makeWAV(seconds int) []byte {
	const (
		sampleRate = 8000
		blockAlign = 2
	)
	dataSize := seconds * sampleRate * blockAlign

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

func TestProbeAudioDurationWAV(t *testing.T) {
	data := makeWAV(2)

	got := ProbeAudioDuration(data, "tone.wav")
	if got == nil {
		t.Fatal("ProbeAudioDuration returned nil for a valid WAV")
	}
	if math.Abs(*got-2.0) > 0.01 {
		t.Errorf("duration = %v, want ~2.0s", *got)
	}
}

func TestProbeAudioDurationWAVSniffedWithoutExtension(t *testing.T) {
	data := makeWAV(1)

	// No usable extension: content sniffing alone must identify the container.
	got := ProbeAudioDuration(data, "upload")
	if got == nil {
		t.Fatal("ProbeAudioDuration should sniff WAVE content without extension help")
	}
}

func TestProbeAudioDurationUnparseable(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		fileName string
	}{
		{"garbage bytes", []byte("definitely not audio data"), "clip.bin"},
		{"flac magic with corrupt body", []byte("fLaC\x00\x00\x00"), "clip.flac"},
		{"mp3 extension with garbage", []byte("garbage without framesync"), "clip.mp3"},
		{"empty", nil, "clip.wav"},
		{"riff without wave marker", []byte("RIFF\x10\x00\x00\x00JUNK"), "clip.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProbeAudioDuration(tt.data, tt.fileName); got != nil {
				t.Errorf("ProbeAudioDuration() = %v, want nil", *got)
			}
		})
	}
}

func TestValidateAudioUploadRejectsOverlongFile(t *testing.T) {
	// 16 minutes of WAV is over the 15 minute ceiling.
	data := makeWAV(16 * 60)

	_, _, err := ValidateAudioUpload("audio/wav", data, "long.wav")
	if err == nil {
		t.Fatal("16 minute file should be rejected")
	}
}

func TestValidateAudioUploadAcceptsFileAtDurationLimit(t *testing.T) {
	data := makeWAV(15 * 60)

	_, duration, err := ValidateAudioUpload("audio/wav", data, "edge.wav")
	if err != nil {
		t.Fatalf("15 minute file should pass, got %v", err)
	}
	if duration == nil || math.Abs(*duration-900) > 0.5 {
		t.Errorf("duration = %v, want ~900s", duration)
	}
}
