package platform

import (
	"fmt"
	"os/exec"
)

// OptionalBinaries lists external tools the app can use when present.
// Downloading works without them; only the mux step needs one.
var OptionalBinaries = map[string]string{
	"ffmpeg": "FFmpeg",
}

// LookupMuxer resolves the muxer binary to an absolute path.
func LookupMuxer(binary string) (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("muxer binary '%s' not found in PATH: %w", binary, err)
	}
	return path, nil
}

// ValidateDependencies reports which optional tools are missing. The
// configured muxer is checked in addition to the well-known ones.
func ValidateDependencies(muxer string) []string {
	var missing []string

	bins := map[string]string{muxer: "muxer"}
	for bin, name := range OptionalBinaries {
		bins[bin] = name
	}

	for bin, name := range bins {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, fmt.Sprintf("%s (%s) not found, muxing will be disabled", bin, name))
		}
	}
	return missing
}
