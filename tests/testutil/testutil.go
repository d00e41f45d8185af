package testutil

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kendall-kelly/eventflow-api/models"
)

// RequireTestEnvironment pins GO_ENV to "test" for the test and fails
// immediately when another environment was selected explicitly.
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	switch env := os.Getenv("GO_ENV"); env {
	case "":
		t.Setenv("GO_ENV", "test")
	case "test":
	default:
		t.Fatalf("SAFETY CHECK FAILED: tests must not run with GO_ENV=%q. Set GO_ENV=test or leave it unset.", env)
	}
}

// NewTestDB opens an in-memory SQLite database with every model migrated.
// The single connection keeps all statements on the same memory database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...), "failed to migrate test database")
	return db
}

// Response is the JSON envelope returned by every endpoint.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// DoJSON sends an authenticated request with an optional JSON body and
// returns the recorder.
func DoJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-token")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// Decode parses the envelope and, when out is non-nil, its data payload.
func Decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) Response {
	t.Helper()

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "invalid JSON body: %s", w.Body.String())
	if out != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, out), "invalid data payload: %s", string(resp.Data))
	}
	return resp
}

// ExpectStatus asserts the status code and decodes the envelope into out.
func ExpectStatus(t *testing.T, w *httptest.ResponseRecorder, status int, out interface{}) Response {
	t.Helper()
	require.Equal(t, status, w.Code, "unexpected status, body: %s", w.Body.String())
	return Decode(t, w, out)
}

// ErrorCode returns the error code of a failed response.
func ErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := Decode(t, w, nil)
	require.NotNil(t, resp.Error, "expected an error response, body: %s", w.Body.String())
	return resp.Error.Code
}
