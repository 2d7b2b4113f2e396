// A shared test server setup utility, which simplifies all API tests.

package testutil

import (
	"bytes"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andrevros/imovelsync/internal/api"
	"github.com/andrevros/imovelsync/internal/auth"
	"github.com/andrevros/imovelsync/internal/config"
	"github.com/andrevros/imovelsync/internal/core"
	"github.com/andrevros/imovelsync/internal/objectstore"
	"github.com/andrevros/imovelsync/internal/store"
	"github.com/andrevros/imovelsync/internal/websocket"
)

// SetupTestApp builds a core.App backed by an in-memory database and
// object store.
func SetupTestApp(t *testing.T) *core.App {
	t.Helper()
	db := SetupTestDB(t)

	hub := websocket.NewHub()
	go hub.Run()

	return core.NewWithComponents(&config.Config{}, db, hub, objectstore.NewMemStore())
}

// SetupTestServer initializes a full core.App and api.Server for
// integration testing.
func SetupTestServer(t *testing.T) (*api.Server, *sql.DB) {
	t.Helper()
	app := SetupTestApp(t)
	return api.NewServer(app), app.DB()
}

// SetupTestServerWithConfig is SetupTestServer with an explicit config,
// for tests that exercise configurable server behavior.
func SetupTestServerWithConfig(t *testing.T, cfg *config.Config) (*api.Server, *sql.DB) {
	t.Helper()
	db := SetupTestDB(t)

	hub := websocket.NewHub()
	go hub.Run()

	app := core.NewWithComponents(cfg, db, hub, objectstore.NewMemStore())
	return api.NewServer(app), db
}

// GetAuthCookie creates the user (if needed) and logs it in through the
// real login endpoint, returning the session cookie.
func GetAuthCookie(t *testing.T, server *api.Server, username, password, role string) *http.Cookie {
	t.Helper()

	st := server.Store()
	if _, err := st.GetUserByUsername(username); err != nil {
		hash, err := auth.HashPassword(password)
		if err != nil {
			t.Fatalf("Failed to hash password: %v", err)
		}
		if _, err := st.CreateUser(username, hash, role); err != nil {
			t.Fatalf("Failed to create user: %v", err)
		}
	}

	payload := `{"username":"` + username + `", "password":"` + password + `"}`
	req, _ := http.NewRequest("POST", "/api/users/login", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Login failed for %s: %d %s", username, rr.Code, rr.Body.String())
	}
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == "session_token" {
			return cookie
		}
	}
	t.Fatal("session_token cookie not found in login response")
	return nil
}

// InsertTestEntry seeds one catalog entry and returns it.
func InsertTestEntry(t *testing.T, st *store.Store, externalID int64, payload string, photoCount int) int64 {
	t.Helper()
	entry, err := st.InsertEntry(externalID, payload, photoCount)
	if err != nil {
		t.Fatalf("Failed to insert catalog entry: %v", err)
	}
	return entry.ID
}
