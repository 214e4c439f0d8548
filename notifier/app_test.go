package notifier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startControlAPI runs the orchestrator loop behind an httptest server so the
// handlers exercise the same event path production uses.
func startControlAPI(t *testing.T) (*httptest.Server, *App, *fakeSource, *recordingScheduler) {
	t.Helper()

	app, source, scheduler, _, _ := newTestApp(t)
	runOrchestratorLoop(app)
	t.Cleanup(func() { app.quitOrchestratorHandler <- true })

	server := httptest.NewServer(newRouter(app))
	t.Cleanup(server.Close)
	return server, app, source, scheduler
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()

	resp, err := http.Get(url) //nolint:gosec // local test server
	require.Nil(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Nil(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHello(t *testing.T) {
	server, _, _, _ := startControlAPI(t)

	var body map[string]string
	getJSON(t, server.URL+"/", &body)
	require.Equal(t, "gmail-notifier", body["app"])
}

func TestStatusOmitsThreads(t *testing.T) {
	server, app, _, _ := startControlAPI(t)

	app.events <- pollArrived{records: []EmailRecord{rec("a", "t1", 300)}}
	require.Eventually(t, func() bool {
		return app.CurrentView().UnreadCount == 1
	}, time.Second, 5*time.Millisecond)

	var status struct {
		Threads     []ThreadGroup `json:"threads"`
		Badge       string        `json:"badge"`
		UnreadCount int           `json:"unread_count"`
	}
	getJSON(t, server.URL+"/v1/status", &status)
	require.Nil(t, status.Threads)
	require.Equal(t, "unread", status.Badge)
	require.Equal(t, 1, status.UnreadCount)
}

func TestEmailsListsThreads(t *testing.T) {
	server, app, _, _ := startControlAPI(t)

	app.events <- pollArrived{records: []EmailRecord{
		rec("a", "t1", 300),
		rec("b", "t1", 200),
	}}
	require.Eventually(t, func() bool {
		return app.CurrentView().UnreadCount == 2
	}, time.Second, 5*time.Millisecond)

	var view struct {
		Threads     []ThreadGroup `json:"threads"`
		UnreadCount int           `json:"unread_count"`
	}
	getJSON(t, server.URL+"/v1/emails", &view)
	require.Equal(t, 2, view.UnreadCount)
	require.Len(t, view.Threads, 1)
	require.Equal(t, "a", view.Threads[0].ID)
	require.Equal(t, 2, view.Threads[0].MemberCount)
}

func TestCheckNowEndpoint(t *testing.T) {
	server, app, _, _ := startControlAPI(t)

	resp, err := http.Post(server.URL+"/v1/check", "application/json", nil)
	require.Nil(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.True(t, app.forceCheck.Load())
}

func TestMarkReadEndpoint(t *testing.T) {
	server, app, _, _ := startControlAPI(t)
	app.settings.RecheckDelay = 0

	app.events <- pollArrived{records: []EmailRecord{rec("a", "t1", 300)}}
	require.Eventually(t, func() bool {
		return app.CurrentView().UnreadCount == 1
	}, time.Second, 5*time.Millisecond)

	resp, err := http.Post(server.URL+"/v1/read/a", "application/json", nil)
	require.Nil(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return app.CurrentView().UnreadCount == 0
	}, time.Second, 5*time.Millisecond)
}

func TestDeleteEndpoint(t *testing.T) {
	server, app, source, _ := startControlAPI(t)

	app.events <- pollArrived{records: []EmailRecord{
		rec("a", "t1", 300),
		rec("b", "t2", 200),
	}}
	require.Eventually(t, func() bool {
		return app.CurrentView().UnreadCount == 2
	}, time.Second, 5*time.Millisecond)

	resp, err := http.Post(server.URL+"/v1/delete", "application/json",
		strings.NewReader(`{"ids":["a"]}`))
	require.Nil(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return app.CurrentView().UnreadCount == 1
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(source.deletedBatches()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDeleteEndpointRejectsBadBody(t *testing.T) {
	server, _, _, _ := startControlAPI(t)

	for _, body := range []string{"not json", `{"ids":[]}`, `{"ids":"a"}`, `{}`} {
		resp, err := http.Post(server.URL+"/v1/delete", "application/json",
			strings.NewReader(body))
		require.Nil(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestDeleteThreadEndpoint(t *testing.T) {
	server, app, source, _ := startControlAPI(t)

	app.events <- pollArrived{records: []EmailRecord{
		rec("a", "t1", 300),
		rec("b", "t1", 200),
		rec("c", "t2", 100),
	}}
	require.Eventually(t, func() bool {
		return app.CurrentView().UnreadCount == 3
	}, time.Second, 5*time.Millisecond)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/v1/threads/a", nil)
	require.Nil(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.Nil(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return app.CurrentView().UnreadCount == 1
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		batches := source.deletedBatches()
		return len(batches) == 1 && len(batches[0]) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestSnoozeEndpointToggles(t *testing.T) {
	server, _, _, _ := startControlAPI(t)

	var body map[string]bool
	resp, err := http.Post(server.URL+"/v1/snooze", "application/json", nil)
	require.Nil(t, err)
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.True(t, body["snoozed"])

	resp, err = http.Post(server.URL+"/v1/snooze", "application/json", nil)
	require.Nil(t, err)
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.False(t, body["snoozed"])
}

func TestMethodsAreEnforced(t *testing.T) {
	server, _, _, _ := startControlAPI(t)

	resp, err := http.Get(server.URL + "/v1/check")
	require.Nil(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
