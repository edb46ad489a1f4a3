package retention

import (
	"context"
	"encoding/json"
	"time"
)

// Stats describes the current contents of an image directory. OldestFile and
// NewestFile are nil when the directory is empty or missing.
type Stats struct {
	Count       int           `json:"count"`
	TotalSize   int64         `json:"totalSize"`
	OldestFile  *FileRecord   `json:"oldestFile"`
	NewestFile  *FileRecord   `json:"newestFile"`
	AverageAge  time.Duration `json:"-"`
	AverageSize int64         `json:"averageSize"`
}

// MarshalJSON renders AverageAge both as a duration string and in seconds.
func (s Stats) MarshalJSON() ([]byte, error) {
	type alias Stats
	return json.Marshal(struct {
		alias
		AverageAge        string  `json:"averageAge"`
		AverageAgeSeconds float64 `json:"averageAgeSeconds"`
	}{alias(s), s.AverageAge.Round(time.Second).String(), s.AverageAge.Seconds()})
}

// Stats scans dir without modifying it.
func (s *Sweeper) Stats(ctx context.Context, dir string) (*Stats, error) {
	records, _, err := s.scanExisting(ctx, dir)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Count: len(records)}
	if len(records) == 0 {
		return stats, nil
	}

	sortOldestFirst(records)

	var totalAge time.Duration
	for _, r := range records {
		stats.TotalSize += r.Size
		totalAge += r.Age
	}

	oldest := records[0]
	newest := records[len(records)-1]
	stats.OldestFile = &oldest
	stats.NewestFile = &newest
	stats.AverageAge = totalAge / time.Duration(len(records))
	stats.AverageSize = stats.TotalSize / int64(len(records))

	return stats, nil
}
