package store

import (
	"context"

	"github.com/robfig/cron/v3"
)

// StartPolling schedules a recurring checkForUpdatesAndNotify for appName
// at cronSpec (a robfig/cron/v3 expression with seconds, e.g.
// "*/30 * * * * *"). Idempotent per app; calling it again for an app
// already polling is a no-op.
func (s *Store) StartPolling(appName string, cronSpec string) error {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()

	if _, exists := s.pollIDs[appName]; exists {
		return nil
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithSeconds())
		s.cron.Start()
	}

	id, err := s.cron.AddFunc(cronSpec, func() {
		e := s.entry(appName)
		if e.rootSubs.len() == 0 && e.subAppSubs.len() == 0 && e.rawSubs.len() == 0 {
			return
		}
		s.checkForUpdatesAndNotify(context.Background(), appName)
	})
	if err != nil {
		return err
	}
	s.pollIDs[appName] = id
	return nil
}

// StopPolling cancels appName's recurring poll, if any.
func (s *Store) StopPolling(appName string) {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()

	id, ok := s.pollIDs[appName]
	if !ok {
		return
	}
	if s.cron != nil {
		s.cron.Remove(id)
	}
	delete(s.pollIDs, appName)
}

// Close stops the background scheduler, if one was ever started. Safe to
// call on a Store that never polled.
func (s *Store) Close() {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.cron != nil {
		s.cron.Stop()
	}
}
