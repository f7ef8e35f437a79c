package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrosense/internal/aggregator"
	"agrosense/internal/api"
	"agrosense/internal/dashboard"
	"agrosense/internal/database"
	"agrosense/internal/irrigation"
	"agrosense/internal/notes"
	"agrosense/internal/prefs"
	"agrosense/internal/profiles"
	"agrosense/internal/realtime"
	"agrosense/internal/threshold"
)

type harness struct {
	store  *realtime.MemoryStore
	router *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithArchive(t, nil)
}

func newHarnessWithArchive(t *testing.T, archive api.DailyAverager) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := realtime.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "DHARA/M1/Slave(A)", map[string]any{
		"1700000000": map[string]any{"temperature": 25, "humidity": 70},
		"1700003600": map[string]any{"temperature": 35, "humidity": 72, "pump": true},
	}))

	kv := prefs.NewMemoryStore()
	profileStore := profiles.NewStore(kv, nil)
	session := dashboard.NewSession(
		store,
		aggregator.NewAggregator(nil),
		threshold.NewEvaluator(nil),
		nil,
		profileStore,
		irrigation.NewBridge(store, "DHARA", ""),
		dashboard.Config{Root: "DHARA", DevicePrefix: "Slave("},
	)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go session.Run(ctx)
	require.Eventually(t, func() bool { return !session.View().Loading }, 2*time.Second, 5*time.Millisecond)

	server := api.NewServer(session, profileStore, notes.NewStore(kv), kv, archive, api.Options{
		ExportPrefix: "AgroSense",
		Location:     time.UTC,
	})
	return &harness{store: store, router: server.Router()}
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestViewAndSelection(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/view", "")
	require.Equal(t, http.StatusOK, w.Code)
	view := decode(t, w)
	assert.Equal(t, "M1", view["selectedMaster"])
	assert.Equal(t, "overview", view["activeView"])

	w = h.do(http.MethodPut, "/api/selection/view", `{"id":"Slave(A)"}`)
	require.Equal(t, http.StatusOK, w.Code)
	device := decode(t, w)["device"].(map[string]any)
	assert.Equal(t, "A", device["label"])

	w = h.do(http.MethodPut, "/api/selection/view", `{"id":"Slave(Q)"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodPut, "/api/selection/master", `{"id":"M9"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodPut, "/api/selection/master", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIrrigationToggle(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/irrigation/toggle", "")
	assert.Equal(t, http.StatusConflict, w.Code, "no device view")

	require.Equal(t, http.StatusOK, h.do(http.MethodPut, "/api/selection/view", `{"id":"Slave(A)"}`).Code)
	w = h.do(http.MethodPost, "/api/irrigation/toggle", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	snap, err := h.store.Get(context.Background(), "DHARA/M1/Slave(A)/Control/Irrigation")
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.Value)
}

func TestProfileLifecycle(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/profiles", `{"name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/profiles", `{"name":"Chili","temperature":{"min":20,"max":30}}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	id := created["id"].(string)
	assert.NotEmpty(t, id)

	w = h.do(http.MethodGet, "/api/profiles/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Chili", decode(t, w)["name"])

	w = h.do(http.MethodPut, "/api/profiles/selected", `{"id":"`+id+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodDelete, "/api/profiles/"+id, "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "delete needs a confirmation token")

	w = h.do(http.MethodPost, "/api/profiles/"+id+"/delete-request", "")
	require.Equal(t, http.StatusOK, w.Code)
	token := decode(t, w)["token"].(string)

	w = h.do(http.MethodDelete, "/api/profiles/"+id+"?confirm="+token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", decode(t, w)["selected"], "deleting the active profile clears the selection")

	w = h.do(http.MethodGet, "/api/profiles/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodGet, "/api/profiles", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["profiles"], 1)
}

func TestNotes(t *testing.T) {
	h := newHarness(t)
	base := "/api/devices/Slave(A)/notes"

	w := h.do(http.MethodPost, base, `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, base, `{"content":"Fertilizer applied"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	w = h.do(http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Fertilizer applied", list[0]["content"])

	assert.Equal(t, http.StatusOK, h.do(http.MethodDelete, base+"/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, base+"/"+id, "").Code)
}

func TestExportCSV(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/devices/Slave(A)/export.csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "AgroSense-Slave(A)-")
	assert.True(t, strings.HasPrefix(w.Body.String(), "timestamp,humidity,temperature"))

	w = h.do(http.MethodGet, "/api/devices/Slave(Z)/export.xlsx", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistory(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/devices/Slave(A)/history?from=2023-11-14&to=2023-11-14", "")
	require.Equal(t, http.StatusOK, w.Code)
	days := decode(t, w)["days"].([]any)
	require.Len(t, days, 1)
	day := days[0].(map[string]any)
	assert.Len(t, day["sessions"], 2)
	assert.Equal(t, true, day["hasIrrigation"])

	w = h.do(http.MethodGet, "/api/devices/Slave(A)/history?from=2023-11-14&to=2023-11-14&irrigation=no", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["days"])

	w = h.do(http.MethodGet, "/api/devices/Slave(A)/history?from=2023-11-14&to=2023-11-14&q=november+14", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["days"], 1)

	w = h.do(http.MethodGet, "/api/devices/Slave(A)/history?from=2023-11-14&to=2023-11-14&q=december", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["days"])

	w = h.do(http.MethodGet, "/api/devices/Slave(A)/history?irrigation=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/devices/Slave(A)/history?from=2023-11-15&to=2023-11-14", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/devices/Slave(A)/archive", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPreferences(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/preferences", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "en", decode(t, w)["language"])

	w = h.do(http.MethodPut, "/api/preferences", `{"language":"","darkMode":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPut, "/api/preferences", `{"language":"hi","darkMode":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, "hi", got["language"])
	assert.Equal(t, true, got["darkMode"])
}

func TestWebsocketStreamsViews(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var first map[string]any
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "M1", first["selectedMaster"])

	require.NoError(t, h.store.Set(context.Background(), "DHARA/M1/Slave(B)/1700007200", map[string]any{"humidity": 50}))

	var next map[string]any
	require.NoError(t, conn.ReadJSON(&next))
	assert.Greater(t, next["version"].(float64), first["version"].(float64))
}

type fakeAverager struct {
	master, device string
}

func (f *fakeAverager) DailyAverages(_ context.Context, masterID, deviceID string, _, _ time.Time) ([]database.DailyAverage, error) {
	f.master, f.device = masterID, deviceID
	return []database.DailyAverage{{SensorKey: "temperature", Avg: 24.5, Samples: 12}}, nil
}

func TestArchiveIsScopedToMaster(t *testing.T) {
	archive := &fakeAverager{}
	h := newHarnessWithArchive(t, archive)

	w := h.do(http.MethodGet, "/api/devices/Slave(A)/archive?from=2023-11-14&to=2023-11-14", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "M1", archive.master, "defaults to the selected master")
	assert.Equal(t, "Slave(A)", archive.device)
	assert.Len(t, decode(t, w)["days"], 1)

	w = h.do(http.MethodGet, "/api/devices/Slave(A)/archive?master=M2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "M2", archive.master)
}
