// Package retention keeps the generated-image directory bounded.
//
// A Sweeper scans a single directory of image files and evicts files older
// than a retention duration and/or the oldest files beyond a count cap. Each
// call rescans the directory; nothing is cached between calls. Per-file
// failures (stat or delete) are logged or aggregated and never abort a sweep.
// Only a failure to read the directory itself is returned as an error, and a
// directory that does not exist is treated as empty.
//
// A Scheduler runs sweeps on a fixed interval with at most one schedule per
// directory.
package retention

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ImageExtensions lists the file extensions a sweep considers, lower-case.
var ImageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// IsImageFile reports whether name has a recognised image extension.
func IsImageFile(name string) bool {
	_, ok := MIMEType(name)
	return ok
}

// MIMEType returns the content type for an image file name.
func MIMEType(name string) (string, bool) {
	mime, ok := ImageExtensions[strings.ToLower(filepath.Ext(name))]
	return mime, ok
}

// FileRecord describes one image file at scan time.
type FileRecord struct {
	Name       string        `json:"name"`
	Path       string        `json:"path"`
	Size       int64         `json:"size"`
	CreatedAt  time.Time     `json:"createdAt"`
	ModifiedAt time.Time     `json:"modifiedAt"`
	Age        time.Duration `json:"-"`
}

// MarshalJSON renders Age as a rounded duration string.
func (r FileRecord) MarshalJSON() ([]byte, error) {
	type alias FileRecord
	return json.Marshal(struct {
		alias
		Age string `json:"age"`
	}{alias(r), r.Age.Round(time.Second).String()})
}

// DirectoryError reports a failure to access the image directory itself.
type DirectoryError struct {
	Op  string
	Dir string
	Err error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("%s image directory %s: %v", e.Op, e.Dir, e.Err)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// Sweeper scans and cleans image directories.
type Sweeper struct {
	now    func() time.Time
	remove func(path string) error
}

// NewSweeper returns a Sweeper using the wall clock and os.Remove.
func NewSweeper() *Sweeper {
	return &Sweeper{
		now:    time.Now,
		remove: os.Remove,
	}
}

// Scan lists the image files directly inside dir. Entries that cannot be
// stat'ed are logged and skipped. A missing directory is returned as a
// *DirectoryError wrapping fs.ErrNotExist; Cleanup and Stats treat that case
// as empty.
func (s *Sweeper) Scan(ctx context.Context, dir string) ([]FileRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &DirectoryError{Op: "read", Dir: dir, Err: err}
	}

	now := s.now()
	records := make([]FileRecord, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to stat image file, skipping")
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		records = append(records, FileRecord{
			Name:       entry.Name(),
			Path:       path,
			Size:       info.Size(),
			CreatedAt:  createdAt(info),
			ModifiedAt: info.ModTime(),
			Age:        now.Sub(info.ModTime()),
		})
	}

	log.Debug().
		Str("dir", dir).
		Int("entries", len(entries)).
		Int("images", len(records)).
		Msg("Scanned image directory")

	return records, nil
}

// scanExisting is Scan with a missing directory reported as (nil, false, nil).
func (s *Sweeper) scanExisting(ctx context.Context, dir string) ([]FileRecord, bool, error) {
	records, err := s.Scan(ctx, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return records, true, nil
}
