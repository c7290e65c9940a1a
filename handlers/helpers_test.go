package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CrowderSoup/scheduler/database"
	"github.com/CrowderSoup/scheduler/services"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "scheduler.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return Deps{
		Users: database.NewUserService(db),
		Tasks: database.NewTaskService(db),
		Notes: database.NewNoteService(db),
		Auth:  services.NewAuthService("test-secret", time.Hour),
	}
}

func seedUser(t *testing.T, deps Deps, id string) {
	t.Helper()
	_, err := deps.Users.Create(context.Background(), database.UserInput{
		UserID:   id,
		UserName: id + " name",
		Password: "secret",
	})
	require.NoError(t, err)
}

// do sends body (a string is sent verbatim, anything else as JSON) and
// returns the recorded response.
func do(t *testing.T, h http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func today() database.Date {
	return database.NewDate(time.Now())
}
