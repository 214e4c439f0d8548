package notifier

import (
	"time"
)

// pollTick is the granularity of the poll loop.  The loop wakes every tick
// and decides whether a full check is due, which keeps "check now" responsive
// without a busy wait.
const pollTick = time.Second

// pollLoop periodically checks the mailbox until signaled to stop.  It is the
// only writer of lastCheck and never touches orchestrator-owned state; results
// travel over the event channel.
func pollLoop(app *App) {
	lastCheck := app.settings.LastCheckTime
	interval := int64(app.settings.CheckInterval)

	for {
		select {
		case <-app.quitPollHandler:
			return
		default:
			now := time.Now().Unix()
			if app.forceCheck.Swap(false) || now-lastCheck >= interval {
				app.pollOnce()
				lastCheck = now
				app.persistLastCheckTime(now)
			}
			time.Sleep(pollTick)
		}
	}
}

// runPollLoop starts the poll loop in a separate goroutine.
func runPollLoop(app *App) {
	go pollLoop(app)
}

// pollOnce performs one mailbox check and reports the outcome to the
// orchestrator.  A (nil, nil) result from the source is a no-op poll and
// produces no event at all.
func (app *App) pollOnce() {
	records, aerr := app.checkEmails()
	if aerr != nil {
		app.logger.Warnf("mail check failed: %+v", aerr.Internal)
		app.events <- pollFailed{err: aerr}
		return
	}
	if records == nil {
		app.logger.Debugw("mail check produced nothing usable, skipping")
		return
	}

	app.logger.Infow("mail check complete",
		"unread", len(records))
	app.events <- pollArrived{records: records}
}

// checkEmails validates credentials and fetches the unread mail batch.
func (app *App) checkEmails() ([]EmailRecord, *AppError) {
	if app.settings.Username == "" || app.password == "" {
		return nil, AppErr(KindConfigIncomplete,
			"Configuration incomplete. Please configure your Gmail account.")
	}
	return app.source.fetchUnread(app.settings.Username, app.password)
}

// persistLastCheckTime saves the settings with the new check time.  Best
// effort; a failed save only costs an extra early poll after restart.
func (app *App) persistLastCheckTime(now int64) {
	app.settingsMu.Lock()
	defer app.settingsMu.Unlock()

	app.settings.LastCheckTime = now
	if err := SaveSettings(app.settings); err != nil {
		app.logger.Warnf("failed to persist last check time: %+v", err)
	}
}

// CheckNow asks the poll loop to run a check on its next tick.
func (app *App) CheckNow() {
	app.forceCheck.Store(true)
}
