package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/usecase"
	"github.com/gin-gonic/gin"
)

type memActivityStore struct {
	activities []*model.UserActivity
}

func (m *memActivityStore) InsertActivity(_ context.Context, activity *model.UserActivity) error {
	copied := *activity
	m.activities = append(m.activities, &copied)
	return nil
}

func (m *memActivityStore) GetUserActivities(_ context.Context, userID string, limit, skip int64) ([]*model.UserActivity, error) {
	var matched []*model.UserActivity
	for _, activity := range m.activities {
		if activity.UserID == userID {
			matched = append(matched, activity)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if skip >= int64(len(matched)) {
		return nil, nil
	}
	matched = matched[skip:]
	if int64(len(matched)) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *memActivityStore) GetActivityStats(_ context.Context, userID string, since time.Time) ([]*model.ActivityStats, error) {
	byType := make(map[model.ActivityType]*model.ActivityStats)
	for _, activity := range m.activities {
		if activity.UserID != userID || activity.Timestamp.Before(since) {
			continue
		}
		stats, ok := byType[activity.ActivityType]
		if !ok {
			stats = &model.ActivityStats{ActivityType: activity.ActivityType}
			byType[activity.ActivityType] = stats
		}
		stats.Count++
		if activity.Timestamp.After(stats.LastActivity) {
			stats.LastActivity = activity.Timestamp
		}
	}
	var result []*model.ActivityStats
	for _, stats := range byType {
		result = append(result, stats)
	}
	return result, nil
}

func newActivityRouter(store *memActivityStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := &usecase.ActivityService{Store: store}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", "user-1")
		c.Next()
	})
	router.POST("/api/activity", func(c *gin.Context) {
		LogActivityHandler(c, svc)
	})
	router.GET("/api/activity", func(c *gin.Context) {
		GetUserActivitiesHandler(c, svc)
	})
	router.GET("/api/activity/stats", func(c *gin.Context) {
		GetActivityStatsHandler(c, svc)
	})
	return router
}

func TestLogActivityHandler(t *testing.T) {
	router := newActivityRouter(&memActivityStore{})

	body, _ := json.Marshal(map[string]interface{}{
		"activity_type": "file_upload",
		"description":   "Uploaded design doc",
		"metadata":      map[string]interface{}{"file": "design.pdf"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/activity", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp struct {
		Data struct {
			ActivityID   string `json:"activity_id"`
			ActivityType string `json:"activity_type"`
			Description  string `json:"description"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Data.ActivityID == "" {
		t.Error("no activity id in response")
	}
	if resp.Data.ActivityType != "file_upload" {
		t.Errorf("activity type = %q", resp.Data.ActivityType)
	}
}

func TestLogActivityHandlerInvalidType(t *testing.T) {
	store := &memActivityStore{}
	router := newActivityRouter(store)

	body, _ := json.Marshal(map[string]interface{}{
		"activity_type": "teleported",
		"description":   "not a real activity",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/activity", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(store.activities) != 0 {
		t.Errorf("rejected activity was stored: %d records", len(store.activities))
	}
}

func TestGetUserActivitiesHandler(t *testing.T) {
	store := &memActivityStore{}
	router := newActivityRouter(store)
	svc := &usecase.ActivityService{Store: store}

	for _, entry := range []usecase.ActivityEntry{
		{Type: model.ActivityLogin, Description: "User logged in"},
		{Type: model.ActivityFileUpload, Description: "Uploaded a file"},
	} {
		if _, err := svc.LogActivity(context.Background(), "user-1", entry); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/activity?limit=1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Activities []struct {
				ActivityType string `json:"activity_type"`
			} `json:"activities"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(resp.Data.Activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(resp.Data.Activities))
	}
	// Newest first: the file upload was logged after the login.
	if resp.Data.Activities[0].ActivityType != "file_upload" {
		t.Errorf("most recent activity = %q, want file_upload", resp.Data.Activities[0].ActivityType)
	}
}

func TestGetActivityStatsHandler(t *testing.T) {
	store := &memActivityStore{}
	router := newActivityRouter(store)
	svc := &usecase.ActivityService{Store: store}

	for _, entry := range []usecase.ActivityEntry{
		{Type: model.ActivityLogin, Description: "one"},
		{Type: model.ActivityLogin, Description: "two"},
		{Type: model.ActivityLogout, Description: "bye"},
	} {
		if _, err := svc.LogActivity(context.Background(), "user-1", entry); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/activity/stats?days=7", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Stats []struct {
				ActivityType string `json:"activity_type"`
				Count        int64  `json:"count"`
			} `json:"stats"`
			Days int `json:"days"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Data.Days != 7 {
		t.Errorf("days = %d, want 7", resp.Data.Days)
	}
	counts := map[string]int64{}
	for _, row := range resp.Data.Stats {
		counts[row.ActivityType] = row.Count
	}
	if counts["login"] != 2 || counts["logout"] != 1 {
		t.Errorf("unexpected stats: %+v", counts)
	}
}
