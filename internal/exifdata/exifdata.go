// Package exifdata extracts EXIF metadata from image bytes into a flat map
// suitable for direct inclusion in a response payload. Extraction is a
// best-effort, stateless transform: anything that cannot be read is simply
// absent from the map.
package exifdata

import (
	"bytes"
	"image"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// Extract returns a flat tag-name to value map for the given image bytes.
// Dimensions come from the registered image decoders; camera, timestamp,
// and GPS data from the EXIF block. An unreadable image yields an empty map.
func Extract(data []byte) map[string]any {
	result := make(map[string]any)

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		result["width"] = cfg.Width
		result["height"] = cfg.Height
	}

	meta, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Msg("No EXIF metadata decoded")
		return result
	}

	if cameraMake := strings.TrimSpace(meta.Make); cameraMake != "" {
		result["Make"] = cameraMake
	}
	if cameraModel := strings.TrimSpace(meta.Model); cameraModel != "" {
		result["Model"] = cameraModel
	}

	// Timestamp fallback chain: DateTimeOriginal > CreateDate > ModifyDate.
	if ts := meta.DateTimeOriginal(); !ts.IsZero() {
		result["DateTimeOriginal"] = ts.Format(time.RFC3339)
	} else if ts := meta.CreateDate(); !ts.IsZero() {
		result["CreateDate"] = ts.Format(time.RFC3339)
	} else if ts := meta.ModifyDate(); !ts.IsZero() {
		result["ModifyDate"] = ts.Format(time.RFC3339)
	}

	gps := meta.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		result["gps_latitude"] = gps.Latitude()
		result["gps_longitude"] = gps.Longitude()
	}

	return result
}
