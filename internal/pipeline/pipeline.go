// Package pipeline runs the validate-then-analyze sequence for a single
// in-memory file. Both orchestration paths (batch and webhook) share it so
// that a file behaves identically regardless of how it arrived.
package pipeline

import (
	"context"
	"time"

	"github.com/medienwerk/metadata-api/internal/analysis"
	"github.com/medienwerk/metadata-api/internal/exifdata"
	"github.com/medienwerk/metadata-api/internal/filehandler"
	"github.com/medienwerk/metadata-api/internal/models"
)

// headerBytes is how much of the file the magic-byte sniffer sees.
const headerBytes = 32

// AnalyzeImage validates an image payload, extracts EXIF data, and runs it
// through the analysis service. Validation failures come back as classified
// VALIDATION_ERROR values; analysis errors keep their own codes.
func AnalyzeImage(ctx context.Context, svc analysis.Service, data []byte, fileName, declaredType string) (*models.ImageMetadata, error) {
	start := time.Now()

	header := data
	if len(header) > headerBytes {
		header = header[:headerBytes]
	}
	mimeType, err := filehandler.ValidateImageType(declaredType, header)
	if err != nil {
		return nil, analysis.NewError(analysis.CodeValidationError, err.Error())
	}
	if err := filehandler.ValidateImageSize(len(data)); err != nil {
		return nil, analysis.NewError(analysis.CodeValidationError, err.Error())
	}

	exif := exifdata.Extract(data)

	result, err := svc.AnalyzeImage(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}

	return &models.ImageMetadata{
		FileName:         fileName,
		FileSize:         len(data),
		MimeType:         mimeType,
		Description:      result.Description,
		Keywords:         result.Keywords,
		Caption:          result.Caption,
		Exif:             exif,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// AnalyzeAudio validates an audio payload and runs it through the analysis
// service.
func AnalyzeAudio(ctx context.Context, svc analysis.Service, data []byte, fileName, declaredType string) (*models.AudioMetadata, error) {
	start := time.Now()

	mimeType, duration, err := filehandler.ValidateAudioUpload(declaredType, data, fileName)
	if err != nil {
		return nil, analysis.NewError(analysis.CodeValidationError, err.Error())
	}

	result, err := svc.AnalyzeAudio(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}

	return &models.AudioMetadata{
		FileName:         fileName,
		FileSize:         len(data),
		MimeType:         mimeType,
		Description:      result.Description,
		Keywords:         result.Keywords,
		Summary:          result.Summary,
		DurationSeconds:  duration,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}
