package mux

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var badChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// sanitizeFileName strips characters most filesystems reject.
func sanitizeFileName(name string) string {
	return strings.TrimSpace(badChars.ReplaceAllString(name, ""))
}

// OutputPath builds <dir>/<owner>/<title> - <id>.mp4, creating the owner
// directory and removing any file already at the destination.
func OutputPath(dir, owner, title, id string) (string, error) {
	owner = sanitizeFileName(owner)
	title = sanitizeFileName(title)
	id = sanitizeFileName(id)

	var name string
	switch {
	case title != "" && id != "":
		name = fmt.Sprintf("%s - %s.mp4", title, id)
	case title != "":
		name = title + ".mp4"
	case id != "":
		name = id + ".mp4"
	default:
		return "", errors.New("output needs a title or an id")
	}

	outDir := filepath.Join(dir, owner)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	dest := filepath.Join(outDir, name)
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to remove existing output: %w", err)
	}
	return dest, nil
}
