package cache

import (
	"strconv"
	"time"

	"sjsage522/dealbridge/logger"
)

const launchKeyPrefix = "dealbridge:launch:"

// LaunchGuard suppresses repeated CPQ launches for the same deal within a block window
type LaunchGuard struct {
	svc   CacheService
	block time.Duration
	log   *logger.Logger
}

// NewLaunchGuard creates a guard; a nil service lets every launch through
func NewLaunchGuard(svc CacheService, block time.Duration) *LaunchGuard {
	return &LaunchGuard{svc: svc, block: block, log: logger.ForCache()}
}

// Allow reports whether a launch for dealID may proceed and, if so, starts its block window.
// Cache failures are logged and the launch is allowed.
func (g *LaunchGuard) Allow(dealID string) bool {
	if g == nil || g.svc == nil || g.block <= 0 || dealID == "" {
		return true
	}

	key := launchKeyPrefix + dealID
	if _, err := g.svc.Get(key); err == nil {
		g.log.Info().Str("deal_id", dealID).Dur("block", g.block).Msg("Launch suppressed, deal opened recently")
		return false
	}

	stamp := []byte(strconv.FormatInt(time.Now().Unix(), 10))
	if err := g.svc.Set(key, stamp, g.block); err != nil {
		g.log.Warn().Err(err).Str("deal_id", dealID).Msg("Failed to record launch")
	}
	return true
}
