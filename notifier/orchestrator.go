package notifier

import "time"

// Events consumed by the orchestrator goroutine.  All mutation of canonical
// state (allEmails, notified set, snooze, error flag) happens while handling
// these, on that single goroutine; every other component works on copies.
type event interface{}

type pollArrived struct {
	records []EmailRecord
}

type pollFailed struct {
	err *AppError
}

type markReadAction struct {
	id string
}

type deleteAction struct {
	ids []string
}

type deleteThreadAction struct {
	id string
}

type toggleSnoozeAction struct {
	reply chan bool
}

type snoozeTriggerAction struct{}

type deleteFailed struct {
	err *AppError
}

// orchestratorLoop processes events in arrival order until signaled to stop.
func orchestratorLoop(app *App) {
	for {
		select {
		case ev := <-app.events:
			app.handleEvent(ev)
		case <-app.quitOrchestratorHandler:
			return
		}
	}
}

// runOrchestratorLoop starts the orchestrator loop in a separate goroutine.
func runOrchestratorLoop(app *App) {
	go orchestratorLoop(app)
}

func (app *App) handleEvent(ev event) {
	switch ev := ev.(type) {
	case pollArrived:
		app.reconcile(ev.records)
	case pollFailed:
		app.handleFailure(ev.err)
	case markReadAction:
		app.handleMarkRead(ev.id)
	case deleteAction:
		app.handleDelete(ev.ids)
	case deleteThreadAction:
		app.handleDelete(threadMemberIDs(app.allEmails, ev.id))
	case toggleSnoozeAction:
		ev.reply <- app.snooze.toggle()
		app.publishView()
	case snoozeTriggerAction:
		app.snooze.snoozeFromTrigger()
		app.publishView()
	case deleteFailed:
		app.logger.Warnf("background delete failed: %+v", ev.err.Internal)
		app.handleFailure(ev.err)
	}
}

// reconcile is the per-poll-result pipeline: dedup, prune the notified set,
// publish the derived view, then notify for whatever is genuinely new.
func (app *App) reconcile(records []EmailRecord) {
	app.isError = false
	app.lastError = ""

	app.allEmails = dedupEmails(records)
	app.notified = app.notified.prune(app.allEmails)
	app.publishView()

	newEmails := filterUnnotified(app.allEmails, app.notified)
	if len(newEmails) == 0 {
		return
	}

	// While snoozed, new mail is withheld AND stays un-notified, so the
	// first poll after the snooze expires notifies for the whole backlog
	// under the usual cap.  No separate flush exists.
	if app.snooze.isSnoozed() {
		return
	}

	app.scheduler.schedule(newEmails)
	app.notified.markNotified(emailIDs(newEmails))
}

// handleFailure flips the error badge and surfaces the message as one
// immediate, unstaggered notification.  Canonical email state is untouched.
func (app *App) handleFailure(aerr *AppError) {
	app.isError = true
	app.lastError = aerr.Message
	app.publishView()

	app.transport.Notify(NotificationRequest{
		Title: "Gmail Notifier Error",
		Body:  aerr.Message,
	})
}

// handleMarkRead drops the message locally right away and schedules a forced
// re-poll so the server view catches up; there is no synchronous wait.
func (app *App) handleMarkRead(id string) {
	app.allEmails = removeEmailsByID(app.allEmails, []string{id})
	app.publishView()

	delay := time.Duration(app.settings.RecheckDelay) * time.Second
	time.AfterFunc(delay, app.CheckNow)
}

// handleDelete removes the messages locally first (optimistic), then hands
// the IDs to the mail source in the background.  A failure there surfaces as
// a one-shot error notification; the local removal is never rolled back and
// the next poll reconciles any divergence.
func (app *App) handleDelete(ids []string) {
	if len(ids) == 0 {
		return
	}

	app.allEmails = removeEmailsByID(app.allEmails, ids)
	app.publishView()

	username := app.settings.Username
	password := app.password
	go func(ids []string) {
		if aerr := app.source.deleteMessages(username, password, ids); aerr != nil {
			app.events <- deleteFailed{err: &AppError{
				Kind:     KindTransport,
				Message:  "Failed to delete emails: " + aerr.Message,
				Internal: aerr.Internal,
			}}
		}
	}(ids)
}

// publishView atomically replaces the externally readable view with a fresh
// copy derived from canonical state.
func (app *App) publishView() {
	view := View{
		Threads:     groupByThread(app.allEmails),
		UnreadCount: len(app.allEmails),
		Snoozed:     app.snooze.isSnoozed(),
		LastError:   app.lastError,
	}
	view.Badge = deriveBadge(view.UnreadCount > 0, view.Snoozed, app.isError)
	if view.Snoozed {
		view.SnoozeRemaining = int64(app.snooze.remaining() / time.Second)
	}

	app.viewMu.Lock()
	app.view = view
	app.viewMu.Unlock()
}
