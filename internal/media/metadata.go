// Package media extracts capture metadata from photos and prepares them for
// publishing (orientation, resize, JPEG re-encode within a byte budget).
package media

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// HeaderSize is how much of a file ExtractHeader needs: EXIF sits near the
// start of JPEG/HEIC/TIFF files, well inside 128 KB.
const HeaderSize = 128 * 1024

// DateLayout is how capture dates are rendered ("15 February 2026").
const DateLayout = "2 January 2006"

// geocodeTimeout bounds the reverse-geocode call made during extraction.
const geocodeTimeout = 8 * time.Second

// Geocoder resolves coordinates to a place name. "" means no name.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// Metadata is what extraction found. Zero values mean "not found".
type Metadata struct {
	Date         string  `json:"date,omitempty"`
	HasGPS       bool    `json:"has_gps"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
	LocationName string  `json:"location_name,omitempty"`

	CameraMake  string `json:"camera_make,omitempty"`
	CameraModel string `json:"camera_model,omitempty"`
	Orientation int    `json:"orientation,omitempty"`
}

// Extractor reads EXIF and optionally resolves a place name.
type Extractor struct {
	geocoder Geocoder
}

// NewExtractor creates an Extractor. geocoder may be nil, in which case no
// location names are produced.
func NewExtractor(geocoder Geocoder) *Extractor {
	return &Extractor{geocoder: geocoder}
}

// Extract reads capture date, GPS, and place name from full image bytes.
// It never fails: anything that goes wrong is logged and the corresponding
// fields are left empty.
func (e *Extractor) Extract(ctx context.Context, data []byte) Metadata {
	meta, err := readEXIF(data)
	if err != nil {
		log.Warn().Err(err).Int("bytes", len(data)).Msg("EXIF extraction failed")
		return Metadata{}
	}

	if meta.HasGPS && e.geocoder != nil {
		gctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
		name, err := e.geocoder.ReverseGeocode(gctx, meta.Latitude, meta.Longitude)
		cancel()
		if err != nil {
			log.Warn().Err(err).Float64("lat", meta.Latitude).Float64("lng", meta.Longitude).Msg("Reverse geocode failed")
		} else {
			meta.LocationName = name
		}
	}

	log.Debug().
		Str("date", meta.Date).
		Bool("hasGps", meta.HasGPS).
		Str("location", meta.LocationName).
		Msg("Photo metadata extracted")
	return meta
}

// ExtractHeader is Extract for a truncated file (the first HeaderSize bytes).
func (e *Extractor) ExtractHeader(ctx context.Context, header []byte) Metadata {
	if len(header) > HeaderSize {
		header = header[:HeaderSize]
	}
	return e.Extract(ctx, header)
}

// readEXIF decodes the EXIF block. Date priority is capture time, then
// digitized time, then file-modified time; the library reports a zero time
// for a tag that is absent or does not parse, so those fall through.
func readEXIF(data []byte) (meta Metadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("EXIF decoder panic: %v", r)
		}
	}()

	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, fmt.Errorf("decode EXIF: %w", err)
	}

	for _, t := range []time.Time{exifData.DateTimeOriginal(), exifData.CreateDate(), exifData.ModifyDate()} {
		if !t.IsZero() {
			meta.Date = t.Format(DateLayout)
			break
		}
	}

	lat, lng := exifData.GPS.Latitude(), exifData.GPS.Longitude()
	if validCoordinates(lat, lng) {
		meta.HasGPS = true
		meta.Latitude = lat
		meta.Longitude = lng
	}

	meta.CameraMake = strings.TrimSpace(exifData.Make)
	meta.CameraModel = strings.TrimSpace(exifData.Model)
	meta.Orientation = int(exifData.Orientation)
	return meta, nil
}

// validCoordinates rejects the 0,0 the decoder reports for a missing GPS
// block and anything out of range.
func validCoordinates(lat, lng float64) bool {
	if lat == 0 && lng == 0 {
		return false
	}
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
