package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andrevros/imovelsync/internal/catalog"
	"github.com/andrevros/imovelsync/internal/models"
	"github.com/andrevros/imovelsync/internal/testutil"
)

func TestCatalogHandlers(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	router := server.Router()
	cookie := testutil.GetAuthCookie(t, server, "ana", "password", "reviewer")

	payload := `{"_sourceId":482,"slug":"casa-no-centro-482","titulo":"Casa no Centro"}`
	entryID := testutil.InsertTestEntry(t, server.Store(), 482, payload, 5)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body != "" {
			req, _ = http.NewRequest(method, path, bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")
		} else {
			req, _ = http.NewRequest(method, path, nil)
			// net/http servers never deliver a nil Body; match that here.
			req.Body = http.NoBody
		}
		req.AddCookie(cookie)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	t.Run("List Entries", func(t *testing.T) {
		rr := do("GET", "/api/catalog?status=pending", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Entries []*models.CatalogEntry `json:"entries"`
			Total   int                    `json:"total"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response: %v", err)
		}
		if resp.Total != 1 || len(resp.Entries) != 1 {
			t.Errorf("expected 1 pending entry, got %+v", resp)
		}
	})

	t.Run("List With Unknown Status", func(t *testing.T) {
		rr := do("GET", "/api/catalog?status=bogus", "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("Get Entry Includes Property", func(t *testing.T) {
		rr := do("GET", fmt.Sprintf("/api/catalog/%d", entryID), "")
		if rr.Code != http.StatusOK {
			t.Fatalf("unexpected status %d", rr.Code)
		}
		var resp struct {
			Entry    *models.CatalogEntry `json:"entry"`
			Property *models.Property     `json:"property"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response: %v", err)
		}
		if resp.Property == nil || resp.Property.Slug != "casa-no-centro-482" {
			t.Errorf("property payload wrong: %+v", resp.Property)
		}
	})

	t.Run("Review Flow", func(t *testing.T) {
		rr := do("POST", fmt.Sprintf("/api/catalog/%d/review", entryID), "")
		if rr.Code != http.StatusOK {
			t.Fatalf("start review failed: %d %s", rr.Code, rr.Body.String())
		}

		// Approving twice: second attempt hits a stale transition.
		rr = do("POST", fmt.Sprintf("/api/catalog/%d/approve", entryID), "")
		if rr.Code != http.StatusOK {
			t.Fatalf("approve failed: %d %s", rr.Code, rr.Body.String())
		}
		rr = do("POST", fmt.Sprintf("/api/catalog/%d/approve", entryID), "")
		if rr.Code != http.StatusConflict {
			t.Errorf("second approve must conflict, got %d", rr.Code)
		}

		entry, _ := server.Store().GetEntry(entryID)
		if entry.Status != catalog.StatusApproved || entry.ReviewedBy != "ana" {
			t.Errorf("entry state wrong after approval: %+v", entry)
		}
	})

	t.Run("Reject Requires Notes", func(t *testing.T) {
		id := testutil.InsertTestEntry(t, server.Store(), 500, "{}", 0)
		do("POST", fmt.Sprintf("/api/catalog/%d/review", id), "")

		rr := do("POST", fmt.Sprintf("/api/catalog/%d/reject", id), "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("reject without notes must be 400, got %d", rr.Code)
		}

		rr = do("POST", fmt.Sprintf("/api/catalog/%d/reject", id), `{"notes":"fotos erradas"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("reject with notes failed: %d %s", rr.Code, rr.Body.String())
		}
		entry, _ := server.Store().GetEntry(id)
		if entry.Status != catalog.StatusRejected || entry.Notes != "fotos erradas" {
			t.Errorf("entry state wrong after rejection: %+v", entry)
		}
	})

	t.Run("Archive", func(t *testing.T) {
		id := testutil.InsertTestEntry(t, server.Store(), 501, "{}", 0)
		rr := do("POST", fmt.Sprintf("/api/catalog/%d/archive", id), "")
		if rr.Code != http.StatusOK {
			t.Fatalf("archive failed: %d", rr.Code)
		}
		rr = do("POST", fmt.Sprintf("/api/catalog/%d/archive", id), "")
		if rr.Code != http.StatusConflict {
			t.Errorf("double archive must conflict, got %d", rr.Code)
		}
	})

	t.Run("Entry Not Found", func(t *testing.T) {
		rr := do("GET", "/api/catalog/99999", "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		rr := do("GET", "/api/catalog/stats", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("stats failed: %d", rr.Code)
		}
		var stats map[string]int
		if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
			t.Fatalf("bad response: %v", err)
		}
		if stats[catalog.StatusApproved] != 1 {
			t.Errorf("expected 1 approved entry in stats, got %+v", stats)
		}
	})

	t.Run("Unauthenticated Access Denied", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/api/catalog", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rr.Code)
		}
	})
}

func TestEntryTasksEndpoint(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	router := server.Router()
	cookie := testutil.GetAuthCookie(t, server, "ana", "password", "reviewer")

	id := testutil.InsertTestEntry(t, server.Store(), 600, "{}", 0)
	task, _ := server.Store().CreateTask(id)
	server.Store().FailTask(task.ID, "content repository timeout")

	req, _ := http.NewRequest("GET", fmt.Sprintf("/api/catalog/%d/tasks", id), nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	var tasks []*models.MigrationTask
	if err := json.Unmarshal(rr.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Error != "content repository timeout" {
		t.Errorf("task list wrong: %+v", tasks)
	}
}
