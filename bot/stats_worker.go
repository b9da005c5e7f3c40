package bot

import (
	"time"

	log "github.com/sirupsen/logrus"
)

const statsInterval = 15 * time.Minute

// startStatsWorker starts a background worker that periodically logs a stats
// snapshot. Returns a cleanup function to stop the worker gracefully.
func startStatsWorker(stats StatsProvider, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	stopChan := make(chan struct{})

	go func() {
		log.Info("Stats worker started")
		for {
			select {
			case <-stopChan:
				log.Info("Stats worker shutting down...")
				return
			case <-ticker.C:
				snap := stats.Snapshot()
				log.WithFields(log.Fields{
					"guilds":        snap.Guilds,
					"members":       snap.Members,
					"watched_rooms": snap.WatchedRooms,
					"uptime":        snap.Uptime.Round(time.Second).String(),
				}).Info("Stats snapshot")
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(stopChan)
	}
}
