//go:build !darwin

package retention

import (
	"io/fs"
	"time"
)

// createdAt falls back to the modification time where the platform does not
// expose a birth time through os.Stat.
func createdAt(info fs.FileInfo) time.Time {
	return info.ModTime()
}
