// Package notifier implements a Gmail new-mail notification daemon: a
// background IMAP poll worker, a single state-owning reconciliation loop,
// staggered desktop notifications, and a localhost HTTP control API.
package notifier

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	simplejson "github.com/bitly/go-simplejson"
	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const jsonParseErrorMessage = `{"errors":[{"message":"failed to encode response body"}]}`

// App represents the daemon state: configuration, collaborators, and the
// canonical email state.  allEmails, notified, snooze, isError and lastError
// belong to the orchestrator goroutine alone; everything else reads the
// published View.
type App struct {
	settings *Settings
	logger   *zap.SugaredLogger
	password string

	source    mailSource
	transport notificationSink
	scheduler notificationScheduler

	events     chan event
	forceCheck atomic.Bool

	quitPollHandler         chan bool
	quitOrchestratorHandler chan bool

	// orchestrator-owned canonical state
	allEmails []EmailRecord
	notified  notifiedSet
	snooze    *snoozeManager
	isError   bool
	lastError string

	settingsMu sync.Mutex
	viewMu     sync.RWMutex
	view       View
}

// View is the externally readable projection of canonical state.  Always a
// copy; handlers never see live orchestrator state.
type View struct {
	Threads         []ThreadGroup `json:"threads"`
	Badge           BadgeState    `json:"badge"`
	UnreadCount     int           `json:"unread_count"`
	Snoozed         bool          `json:"snoozed"`
	SnoozeRemaining int64         `json:"snooze_remaining_seconds,omitempty"`
	LastError       string        `json:"last_error,omitempty"`
}

// ErrorResponse represents the JSON structure for error responses.
type ErrorResponse struct {
	Errors []Error `json:"errors"`
}

// Error represents an error item in a response.
type Error struct {
	Message string `json:"message"`
}

// RunServer enters the daemon loop.  Only returns when something bad happens.
func RunServer(settings *Settings) (err error) {
	app := newApp(settings)
	defer func() {
		err = appendError(err, app.Fini())
	}()

	server := newServer(app)
	return errors.WithStack(server.ListenAndServe())
}

// createLogger creates and returns a new development logger.
func createLogger() (*zap.SugaredLogger, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return logger.Sugar(), nil
}

// newApp creates a new App instance with the given settings.
func newApp(settings *Settings) *App {
	logger, err := createLogger()
	if err != nil {
		log.Panicf("cannot initialize logger: %+v", err)
	}

	if _, err := EnsureConfigDir(); err != nil {
		log.Panicf("cannot create settings directory: %+v", err)
	}

	password, err := LoadPassword(settings.Username)
	if err != nil {
		logger.Warnf("cannot read password from keyring: %+v", err)
	}

	app := &App{
		settings:                settings,
		logger:                  logger,
		password:                password,
		source:                  newGmailSource(logger, settings.GmailURL),
		events:                  make(chan event, 16),
		quitPollHandler:         make(chan bool, 1),
		quitOrchestratorHandler: make(chan bool, 1),
		notified:                newNotifiedSet(),
		snooze:                  newSnoozeManager(),
		view:                    View{Threads: []ThreadGroup{}},
	}

	transport := newDesktopNotifier(logger, settings.GmailURL,
		func(link string) { openInBrowser(logger, link) },
		func() { app.events <- snoozeTriggerAction{} })
	app.transport = transport
	app.scheduler = newTimerScheduler(transport)

	// Check as soon as the poll loop starts.
	app.forceCheck.Store(true)

	return app
}

// Fini stops the background loops.  In-flight background work is left to run
// to completion or fail silently.
func (app *App) Fini() error {
	app.quitPollHandler <- true
	app.quitOrchestratorHandler <- true
	return nil
}

// newServer creates and configures the control HTTP server.
func newServer(app *App) *http.Server {
	host := app.settings.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := app.settings.Port
	if port == 0 {
		port = DefaultSettings().Port
	}

	runOrchestratorLoop(app)
	runPollLoop(app)

	router := newRouter(app)

	app.logger.Infow("starting control server",
		"host", host,
		"port", port)

	return &http.Server{
		Handler:      router,
		Addr:         fmt.Sprintf("%s:%d", host, port),
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}
}

// newRouter creates and configures the HTTP router with all control endpoints.
func newRouter(app *App) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/", app.hHello).Methods("GET")
	router.HandleFunc("/v1/status", app.hStatus).Methods("GET")
	router.HandleFunc("/v1/emails", app.hEmails).Methods("GET")
	router.HandleFunc("/v1/check", app.hCheckNow).Methods("POST")
	router.HandleFunc("/v1/read/{id}", app.hMarkRead).Methods("POST")
	router.HandleFunc("/v1/delete", app.hDelete).Methods("POST")
	router.HandleFunc("/v1/threads/{id}", app.hDeleteThread).Methods("DELETE")
	router.HandleFunc("/v1/snooze", app.hToggleSnooze).Methods("POST")
	return router
}

// CurrentView returns a copy of the published view.
func (app *App) CurrentView() View {
	app.viewMu.RLock()
	defer app.viewMu.RUnlock()

	view := app.view
	view.Threads = make([]ThreadGroup, len(app.view.Threads))
	copy(view.Threads, app.view.Threads)
	return view
}

// returnJSON writes a JSON response to the HTTP response writer.
func returnJSON(w http.ResponseWriter, val any) {
	js, err := json.Marshal(val)
	if err != nil {
		http.Error(w, jsonParseErrorMessage, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(js)
	if err != nil {
		http.Error(w, jsonParseErrorMessage, http.StatusInternalServerError)
		return
	}
}

// returnErr writes an error response to the HTTP response writer.
func returnErr(app *App, w http.ResponseWriter, code int, message string) {
	app.logger.Errorf("control api error: %d %s", code, message)

	res := ErrorResponse{
		Errors: []Error{{
			Message: message,
		}},
	}
	bodybytes, err := json.Marshal(res)
	if err != nil {
		app.logger.Errorf("%+v", errors.WithStack(err))
		http.Error(w, jsonParseErrorMessage, http.StatusInternalServerError)
		return
	}
	http.Error(w, string(bodybytes), code)
}

func (app *App) hHello(w http.ResponseWriter, r *http.Request) {
	returnJSON(w, map[string]string{"app": "gmail-notifier", "version": "1"})
}

func (app *App) hStatus(w http.ResponseWriter, r *http.Request) {
	view := app.CurrentView()
	view.Threads = nil
	returnJSON(w, view)
}

func (app *App) hEmails(w http.ResponseWriter, r *http.Request) {
	returnJSON(w, app.CurrentView())
}

func (app *App) hCheckNow(w http.ResponseWriter, r *http.Request) {
	app.CheckNow()
	w.WriteHeader(http.StatusAccepted)
}

func (app *App) hMarkRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		returnErr(app, w, http.StatusBadRequest, "missing email id")
		return
	}

	app.logger.Infow("got mark-read request",
		"id", id)
	app.events <- markReadAction{id: id}
	w.WriteHeader(http.StatusAccepted)
}

func (app *App) hDelete(w http.ResponseWriter, r *http.Request) {
	js, err := simplejson.NewFromReader(r.Body)
	if err != nil {
		returnErr(app, w, http.StatusBadRequest, "failed to parse request body to json")
		return
	}

	ids, err := js.Get("ids").StringArray()
	if err != nil || len(ids) == 0 {
		returnErr(app, w, http.StatusBadRequest, "ids must be a non-empty string array")
		return
	}

	app.logger.Infow("got delete request",
		"ids", ids)
	app.events <- deleteAction{ids: ids}
	w.WriteHeader(http.StatusAccepted)
}

func (app *App) hDeleteThread(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		returnErr(app, w, http.StatusBadRequest, "missing email id")
		return
	}

	app.logger.Infow("got thread delete request",
		"id", id)
	app.events <- deleteThreadAction{id: id}
	w.WriteHeader(http.StatusAccepted)
}

func (app *App) hToggleSnooze(w http.ResponseWriter, r *http.Request) {
	reply := make(chan bool, 1)
	app.events <- toggleSnoozeAction{reply: reply}
	returnJSON(w, map[string]bool{"snoozed": <-reply})
}
