// Package media validates inline photo payloads before they enter the archive.
package media

// jpegSOI is the JPEG start-of-image marker.
var jpegSOI = []byte{0xFF, 0xD8, 0xFF}

// IsJPEG reports whether data starts with the JPEG start-of-image marker.
// Only JPEG photos are archived inline; other formats are dropped.
func IsJPEG(data []byte) bool {
	if len(data) < len(jpegSOI) {
		return false
	}
	for i, b := range jpegSOI {
		if data[i] != b {
			return false
		}
	}
	return true
}
