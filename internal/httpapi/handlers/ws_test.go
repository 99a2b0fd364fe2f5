package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arenahq/bot-arena/internal/broadcast"
	"github.com/arenahq/bot-arena/internal/database"
)

func TestWSConnectSendsCurrentArenaStateOnConnect(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrateAll(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	arenaState := database.NewArenaStateRepository(db)

	hub := broadcast.NewHub(arenaState)
	go hub.Run()
	hub.Publish(`{"bots":[],"market":{}}`)
	// give the hub goroutine a moment to persist the published blob before a
	// client connects and expects to read it back immediately.
	time.Sleep(20 * time.Millisecond)

	engine := gin.New()
	h := NewWSHandler(hub)
	h.RegisterRoutes(engine.Group(""))
	srv := httptest.NewServer(engine)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(msg), "bots") {
		t.Fatalf("expected the current arena state blob, got %q", msg)
	}
}

func TestWSConnectReceivesSubsequentBroadcasts(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrateAll(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	arenaState := database.NewArenaStateRepository(db)

	hub := broadcast.NewHub(arenaState)
	go hub.Run()

	engine := gin.New()
	h := NewWSHandler(hub)
	h.RegisterRoutes(engine.Group(""))
	srv := httptest.NewServer(engine)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(`{"tick":1}`)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(msg), "tick") {
		t.Fatalf("expected the freshly published tick, got %q", msg)
	}
}
