package retention

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/dalle-mcp-server/internal/metrics"
)

// Default policy values.
const (
	DefaultRetention = 7 * 24 * time.Hour
	DefaultInterval  = 24 * time.Hour
)

// Policy selects which files a cleanup evicts. A zero Retention disables the
// age rule; a zero MaxFiles disables the count cap.
type Policy struct {
	Retention time.Duration `json:"retention"`
	MaxFiles  int           `json:"maxFiles,omitempty"`
	DryRun    bool          `json:"dryRun"`
}

// FileError is a per-file deletion failure.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Result summarizes one cleanup run. Success is false iff Errors is non-empty.
type Result struct {
	FilesScanned    int         `json:"filesScanned"`
	FilesDeleted    int         `json:"filesDeleted"`
	SpaceFreedBytes int64       `json:"spaceFreedBytes"`
	Errors          []FileError `json:"errors"`
	Success         bool        `json:"success"`
	DryRun          bool        `json:"dryRun"`
	Deleted         []string    `json:"deleted"`
	DurationMs      int64       `json:"durationMs"`
}

func newResult(dryRun bool) *Result {
	return &Result{
		Errors:  []FileError{},
		Deleted: []string{},
		Success: true,
		DryRun:  dryRun,
	}
}

// Cleanup evicts files from dir according to policy. In dry-run mode the
// same files are selected and counted but nothing is removed. Per-file
// deletion failures, including files that vanished since the scan, are
// collected in Result.Errors. The returned error is non-nil only when the
// directory itself cannot be read.
func (s *Sweeper) Cleanup(ctx context.Context, dir string, policy Policy) (*Result, error) {
	start := time.Now()
	result := newResult(policy.DryRun)

	records, exists, err := s.scanExisting(ctx, dir)
	if err != nil {
		return nil, err
	}
	if !exists {
		log.Debug().Str("dir", dir).Msg("Image directory does not exist, nothing to clean")
		return result, nil
	}
	result.FilesScanned = len(records)

	sortOldestFirst(records)
	for _, f := range selectForDeletion(records, policy) {
		if !policy.DryRun {
			if err := s.remove(f.Path); err != nil {
				log.Warn().Err(err).Str("file", f.Name).Msg("Failed to delete image file")
				result.Errors = append(result.Errors, FileError{File: f.Name, Error: err.Error()})
				continue
			}
		}
		result.FilesDeleted++
		result.SpaceFreedBytes += f.Size
		result.Deleted = append(result.Deleted, f.Name)

		log.Debug().
			Str("file", f.Name).
			Int64("bytes", f.Size).
			Dur("age", f.Age).
			Bool("dry_run", policy.DryRun).
			Msg("Evicted image file")
	}

	result.Success = len(result.Errors) == 0
	result.DurationMs = time.Since(start).Milliseconds()

	log.Info().
		Str("dir", dir).
		Int("scanned", result.FilesScanned).
		Int("deleted", result.FilesDeleted).
		Int64("freed_bytes", result.SpaceFreedBytes).
		Int("errors", len(result.Errors)).
		Bool("dry_run", policy.DryRun).
		Msg("Image cleanup complete")

	metrics.New(metrics.Namespace).
		Dimension("DryRun", strconv.FormatBool(policy.DryRun)).
		Count("CleanupRuns").
		Metric("CleanupFilesDeleted", float64(result.FilesDeleted), metrics.UnitCount).
		Metric("CleanupBytesFreed", float64(result.SpaceFreedBytes), metrics.UnitBytes).
		Metric("CleanupErrors", float64(len(result.Errors)), metrics.UnitCount).
		Metric("CleanupLatencyMs", float64(result.DurationMs), metrics.UnitMilliseconds).
		Property("dir", dir).
		Flush()

	return result, nil
}

// sortOldestFirst orders by modification time, then name for a stable tie-break.
func sortOldestFirst(records []FileRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].ModifiedAt.Equal(records[j].ModifiedAt) {
			return records[i].ModifiedAt.Before(records[j].ModifiedAt)
		}
		return records[i].Name < records[j].Name
	})
}

// selectForDeletion returns, oldest first, the union of files past the
// retention age and the oldest unmarked files needed to bring the survivor
// count down to MaxFiles. records must already be sorted oldest first.
func selectForDeletion(records []FileRecord, policy Policy) []FileRecord {
	marked := make([]bool, len(records))
	survivors := len(records)

	if policy.Retention > 0 {
		for i, f := range records {
			if f.Age > policy.Retention {
				marked[i] = true
				survivors--
			}
		}
	}

	if policy.MaxFiles > 0 {
		for i := range records {
			if survivors <= policy.MaxFiles {
				break
			}
			if !marked[i] {
				marked[i] = true
				survivors--
			}
		}
	}

	selected := make([]FileRecord, 0, len(records)-survivors)
	for i, f := range records {
		if marked[i] {
			selected = append(selected, f)
		}
	}
	return selected
}
