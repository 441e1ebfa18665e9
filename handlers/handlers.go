package handlers

import (
	"errors"
	"os"
	"strings"

	"malu-taxi-api/config"
	"malu-taxi-api/gateway"
	"malu-taxi-api/logger"
	"malu-taxi-api/social"
	"malu-taxi-api/verification"

	"gorm.io/gorm"
)

// Collaborators wired in from main (and swapped for fakes in tests).
var (
	Cfg      config.Config
	Gateway  gateway.Messenger
	Verifier *verification.Coordinator
	Social   *social.Graph

	log = logger.New("handlers")
)

// Setup injects the collaborators the handlers depend on.
func Setup(cfg config.Config, gw gateway.Messenger, co *verification.Coordinator, gr *social.Graph) {
	Cfg = cfg
	Gateway = gw
	Verifier = co
	Social = gr
}

// isDuplicate reports whether an insert lost to a unique index. The
// pre-insert existence checks only cover the sequential case; two
// concurrent requests can both pass them and the loser ends up here.
func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// cleanupFiles removes already-saved uploads on a rejected request.
// Failures are logged, never surfaced to the caller.
func cleanupFiles(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warning("failed to remove uploaded file",
				logger.String("path", p), logger.Error(err))
		}
	}
}
