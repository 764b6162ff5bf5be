// Package runlock serializes pipeline passes with an exclusive lock file so
// overlapping cron invocations fail fast instead of double-processing.
package runlock

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrHeld is returned when another pass holds the lock.
var ErrHeld = eris.New("runlock: already held")

// Lock is a held run lock.
type Lock struct {
	path string
}

// Acquire takes the lock at path. A lock file older than staleAfter is
// treated as a leftover from a crashed pass and broken; staleAfter <= 0
// disables breaking.
func Acquire(path string, staleAfter time.Duration) (*Lock, error) {
	if err := create(path); err == nil {
		return &Lock{path: path}, nil
	} else if !os.IsExist(err) {
		return nil, eris.Wrapf(err, "runlock: create %s", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Holder released between our create and stat; try once more.
			if err := create(path); err == nil {
				return &Lock{path: path}, nil
			}
		}
		return nil, eris.Wrapf(ErrHeld, "%s", path)
	}

	if staleAfter > 0 && time.Since(info.ModTime()) > staleAfter {
		zap.L().Warn("breaking stale run lock",
			zap.String("path", path),
			zap.Time("mtime", info.ModTime()))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, eris.Wrapf(err, "runlock: break stale %s", path)
		}
		if err := create(path); err == nil {
			return &Lock{path: path}, nil
		}
	}

	return nil, eris.Wrapf(ErrHeld, "%s", path)
}

// Release removes the lock file. Safe to call once per acquired lock.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "runlock: release %s", l.path)
	}
	return nil
}

func create(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	fmt.Fprintf(f, "pid=%d started=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	return f.Close()
}
