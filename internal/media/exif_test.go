package media

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// exifEntry is one IFD entry. Values longer than four bytes are written
// after the IFD and referenced by offset.
type exifEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte
}

const (
	exifASCII    = 2
	exifLong     = 4
	exifRational = 5
)

func asciiEntry(tag uint16, s string) exifEntry {
	return exifEntry{tag: tag, typ: exifASCII, count: uint32(len(s) + 1), value: append([]byte(s), 0)}
}

func longEntry(tag uint16, v uint32) exifEntry {
	return exifEntry{tag: tag, typ: exifLong, count: 1, value: binary.BigEndian.AppendUint32(nil, v)}
}

// dmsEntry writes degrees, minutes, and seconds as three rationals; seconds
// keep two decimals.
func dmsEntry(tag uint16, deg, min uint32, sec float64) exifEntry {
	var v []byte
	for _, r := range [][2]uint32{{deg, 1}, {min, 1}, {uint32(math.Round(sec * 100)), 100}} {
		v = binary.BigEndian.AppendUint32(v, r[0])
		v = binary.BigEndian.AppendUint32(v, r[1])
	}
	return exifEntry{tag: tag, typ: exifRational, count: 3, value: v}
}

func ifdLen(entries []exifEntry) uint32 {
	n := uint32(6 + 12*len(entries))
	for _, e := range entries {
		if len(e.value) > 4 {
			n += uint32(len(e.value))
		}
	}
	return n
}

// appendIFD writes entries as an IFD starting at start (relative to the
// TIFF header) followed by its out-of-line values.
func appendIFD(out []byte, start uint32, entries []exifEntry) []byte {
	be := binary.BigEndian
	out = be.AppendUint16(out, uint16(len(entries)))
	dataOff := start + uint32(6+12*len(entries))
	var data []byte
	for _, e := range entries {
		out = be.AppendUint16(out, e.tag)
		out = be.AppendUint16(out, e.typ)
		out = be.AppendUint32(out, e.count)
		if len(e.value) > 4 {
			out = be.AppendUint32(out, dataOff+uint32(len(data)))
			data = append(data, e.value...)
			continue
		}
		var inline [4]byte
		copy(inline[:], e.value)
		out = append(out, inline[:]...)
	}
	out = be.AppendUint32(out, 0)
	return append(out, data...)
}

type gpsFix struct {
	latRef     string
	latD, latM uint32
	latS       float64
	lngRef     string
	lngD, lngM uint32
	lngS       float64
}

// exifJPEG returns a small JPEG carrying an EXIF block with the given date
// tags (empty strings are omitted) and optional GPS position.
func exifJPEG(t *testing.T, original, digitized, modified string, gps *gpsFix) []byte {
	t.Helper()

	var ifd0, exifIFD, gpsIFD []exifEntry
	if original != "" {
		exifIFD = append(exifIFD, asciiEntry(0x9003, original))
	}
	if digitized != "" {
		exifIFD = append(exifIFD, asciiEntry(0x9004, digitized))
	}
	if gps != nil {
		gpsIFD = []exifEntry{
			asciiEntry(0x0001, gps.latRef),
			dmsEntry(0x0002, gps.latD, gps.latM, gps.latS),
			asciiEntry(0x0003, gps.lngRef),
			dmsEntry(0x0004, gps.lngD, gps.lngM, gps.lngS),
		}
	}

	// Pointer values are filled in once the IFD sizes are known.
	if modified != "" {
		ifd0 = append(ifd0, asciiEntry(0x0132, modified))
	}
	exifPtr, gpsPtr := -1, -1
	if len(exifIFD) > 0 {
		exifPtr = len(ifd0)
		ifd0 = append(ifd0, longEntry(0x8769, 0))
	}
	if len(gpsIFD) > 0 {
		gpsPtr = len(ifd0)
		ifd0 = append(ifd0, longEntry(0x8825, 0))
	}

	const ifd0Start = 8
	exifStart := ifd0Start + ifdLen(ifd0)
	gpsStart := exifStart
	if len(exifIFD) > 0 {
		gpsStart += ifdLen(exifIFD)
	}
	if exifPtr >= 0 {
		ifd0[exifPtr] = longEntry(0x8769, exifStart)
	}
	if gpsPtr >= 0 {
		ifd0[gpsPtr] = longEntry(0x8825, gpsStart)
	}

	tiff := []byte{'M', 'M', 0, 42}
	tiff = binary.BigEndian.AppendUint32(tiff, ifd0Start)
	tiff = appendIFD(tiff, ifd0Start, ifd0)
	if len(exifIFD) > 0 {
		tiff = appendIFD(tiff, exifStart, exifIFD)
	}
	if len(gpsIFD) > 0 {
		tiff = appendIFD(tiff, gpsStart, gpsIFD)
	}

	app1 := []byte{0xFF, 0xE1}
	app1 = binary.BigEndian.AppendUint16(app1, uint16(2+6+len(tiff)))
	app1 = append(app1, "Exif\x00\x00"...)
	app1 = append(app1, tiff...)

	img := testJPEG(t, 16, 16)
	out := append([]byte{}, img[:2]...)
	out = append(out, app1...)
	return append(out, img[2:]...)
}

func TestExtractEXIF(t *testing.T) {
	newYork := &gpsFix{latRef: "N", latD: 40, latM: 26, latS: 46, lngRef: "W", lngD: 73, lngM: 59, lngS: 0}
	sydney := &gpsFix{latRef: "S", latD: 33, latM: 52, latS: 4, lngRef: "E", lngD: 151, lngM: 12, lngS: 36}

	tests := []struct {
		name        string
		original    string
		digitized   string
		modified    string
		gps         *gpsFix
		geoErr      error
		wantDate    string
		wantGPS     bool
		wantLat     float64
		wantLng     float64
		wantName    string
		wantGeocode int
	}{
		{
			name:     "original wins over digitized and modified",
			original: "2024:03:05 10:00:00", digitized: "2023:01:02 08:00:00", modified: "2022:07:09 12:00:00",
			wantDate: "5 March 2024",
		},
		{
			name:      "digitized when original missing",
			digitized: "2023:01:02 08:00:00", modified: "2022:07:09 12:00:00",
			wantDate: "2 January 2023",
		},
		{
			name:     "modified used last",
			modified: "2022:07:09 12:00:00",
			wantDate: "9 July 2022",
		},
		{
			name:     "unparseable original falls through",
			original: "garbage-not-a-date", digitized: "2023:01:02 08:00:00",
			wantDate: "2 January 2023",
		},
		{
			name:     "north west coordinates are geocoded",
			original: "2024:03:05 10:00:00", gps: newYork,
			wantDate: "5 March 2024", wantGPS: true, wantLat: 40.4461, wantLng: -73.9833,
			wantName: "Resolved Place", wantGeocode: 1,
		},
		{
			name:    "south east coordinates",
			gps:     sydney,
			wantGPS: true, wantLat: -33.8678, wantLng: 151.21,
			wantName: "Resolved Place", wantGeocode: 1,
		},
		{
			name:     "geocoder failure keeps date and GPS",
			original: "2024:03:05 10:00:00", gps: newYork, geoErr: errors.New("nominatim down"),
			wantDate: "5 March 2024", wantGPS: true, wantLat: 40.4461, wantLng: -73.9833,
			wantGeocode: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geo := &fakeGeocoder{name: "Resolved Place", err: tt.geoErr}
			e := NewExtractor(geo)

			meta := e.Extract(context.Background(), exifJPEG(t, tt.original, tt.digitized, tt.modified, tt.gps))
			if meta.Date != tt.wantDate {
				t.Errorf("Date = %q, want %q", meta.Date, tt.wantDate)
			}
			if meta.HasGPS != tt.wantGPS {
				t.Fatalf("HasGPS = %v, want %v", meta.HasGPS, tt.wantGPS)
			}
			if tt.wantGPS && (math.Abs(meta.Latitude-tt.wantLat) > 1e-4 || math.Abs(meta.Longitude-tt.wantLng) > 1e-4) {
				t.Errorf("coords = %v, %v; want %v, %v", meta.Latitude, meta.Longitude, tt.wantLat, tt.wantLng)
			}
			if meta.LocationName != tt.wantName {
				t.Errorf("LocationName = %q, want %q", meta.LocationName, tt.wantName)
			}
			if geo.calls != tt.wantGeocode {
				t.Errorf("geocoder called %d times, want %d", geo.calls, tt.wantGeocode)
			}
		})
	}
}

func TestExtractHeaderReadsEXIF(t *testing.T) {
	data := exifJPEG(t, "2024:03:05 10:00:00", "", "", nil)
	meta := NewExtractor(nil).ExtractHeader(context.Background(), data)
	if meta.Date != "5 March 2024" || meta.HasGPS {
		t.Errorf("ExtractHeader() = %+v", meta)
	}
}
