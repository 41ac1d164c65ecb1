package cmd

import (
	"github.com/dukex/approvion/pkg/lock"
)

// NewLocker returns a cross-process Redis locker when a Redis URL is
// configured, otherwise the in-process keyed mutex. Single-instance
// deployments need no external coordination.
func NewLocker(redisURL string) lock.Locker {
	if redisURL == "" {
		return lock.NewKeyedMutex()
	}

	locker, err := lock.NewRedisLocker(redisURL)
	if err != nil {
		panic(err)
	}

	return locker
}
