package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"transitwatch/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hubServer exposes hub over a test WebSocket endpoint
func hubServer(t *testing.T, hub *FeedHub) *httptest.Server {
	var seq atomic.Int64
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		id := fmt.Sprintf("conn-%d", seq.Add(1))
		hub.Register(id, conn)
		defer hub.Unregister(id)

		if err := hub.SendSnapshot(r.Context(), id); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) FeedMessage {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg FeedMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestFeedHub_LocalBroadcast(t *testing.T) {
	store := newFakeReports()
	hub := NewFeedHub(store, nil)
	srv := hubServer(t, hub)

	conn := dialHub(t, srv)
	first := readSnapshot(t, conn)
	assert.Equal(t, "snapshot", first.Type)
	assert.NotNil(t, first.Reports)
	assert.Empty(t, first.Reports)

	svc := NewReportService(store, hub, nil)
	report, err := svc.CreateReport(context.Background(), "u1", models.NewReport{LineID: "line-1", Type: models.ReportNoBus})
	require.NoError(t, err)

	next := readSnapshot(t, conn)
	require.Len(t, next.Reports, 1)
	assert.Equal(t, report.ID, next.Reports[0].ID)

	require.NoError(t, svc.DeleteReport(context.Background(), "u1", report.ID))
	last := readSnapshot(t, conn)
	assert.Empty(t, last.Reports)
}

func TestFeedHub_SnapshotOrder(t *testing.T) {
	store := newFakeReports()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	store.reports["a"] = models.Report{ID: "a", CreatedAt: base}
	store.reports["b"] = models.Report{ID: "b", CreatedAt: base.Add(time.Minute)}

	hub := NewFeedHub(store, nil)
	conn := dialHub(t, hubServer(t, hub))

	msg := readSnapshot(t, conn)
	require.Len(t, msg.Reports, 2)
	assert.Equal(t, "b", msg.Reports[0].ID)
	assert.Equal(t, "a", msg.Reports[1].ID)
}

func TestFeedHub_RedisFanOut(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := newFakeReports()
	// two instances sharing one store and one redis
	hubA := NewFeedHub(store, client)
	hubB := NewFeedHub(store, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hubA.Run(ctx)
	go hubB.Run(ctx)

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(ReportsChannel)[ReportsChannel] == 2
	}, 2*time.Second, 10*time.Millisecond)

	connA := dialHub(t, hubServer(t, hubA))
	connB := dialHub(t, hubServer(t, hubB))
	readSnapshot(t, connA)
	readSnapshot(t, connB)

	// the write lands on instance A only
	svc := NewReportService(store, hubA, nil)
	report, err := svc.CreateReport(ctx, "u1", models.NewReport{Type: models.ReportOther})
	require.NoError(t, err)

	for _, conn := range []*websocket.Conn{connA, connB} {
		msg := readSnapshot(t, conn)
		require.Len(t, msg.Reports, 1)
		assert.Equal(t, report.ID, msg.Reports[0].ID)
	}
}

func TestFeedHub_DropsBrokenSubscribers(t *testing.T) {
	hub := NewFeedHub(newFakeReports(), nil)
	srv := hubServer(t, hub)

	conn := dialHub(t, srv)
	readSnapshot(t, conn)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)

	assert.NoError(t, hub.Broadcast(context.Background()))
}

func TestFeedHub_LoaderFailure(t *testing.T) {
	store := newFakeReports()
	store.listErr = assert.AnError
	hub := NewFeedHub(store, nil)

	assert.Error(t, hub.Broadcast(context.Background()))
	assert.Error(t, hub.SendSnapshot(context.Background(), "missing"))
}

// gatedLoader reads the collection on entry and, while armed, holds the
// result until released
type gatedLoader struct {
	*fakeReports
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedLoader) ListRecent(ctx context.Context) ([]models.Report, error) {
	reports, err := g.fakeReports.ListRecent(ctx)
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return reports, err
}

func TestFeedHub_SlowLoadDoesNotOvertakeNewerSnapshot(t *testing.T) {
	loader := &gatedLoader{
		fakeReports: newFakeReports(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	hub := NewFeedHub(loader, nil)
	conn := dialHub(t, hubServer(t, hub))
	require.Empty(t, readSnapshot(t, conn).Reports)

	loader.armed.Store(true)
	firstDone := make(chan error, 1)
	go func() { firstDone <- hub.PublishReportsChanged(context.Background()) }()
	<-loader.entered

	require.NoError(t, loader.Create(context.Background(), &models.Report{ID: "new", CreatedAt: time.Now()}))
	secondDone := make(chan error, 1)
	go func() { secondDone <- hub.PublishReportsChanged(context.Background()) }()

	// give the second change a chance to run ahead of the stalled one
	time.Sleep(50 * time.Millisecond)
	close(loader.release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)

	readSnapshot(t, conn)
	last := readSnapshot(t, conn)
	require.Len(t, last.Reports, 1)
	assert.Equal(t, "new", last.Reports[0].ID)
}
