package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCreatedIncludesID(t *testing.T) {
	c, w := newContext()
	Created(c, "Student created successfully", "New student has been added", gin.H{"name": "Asha"}, 7)

	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["status"])
	assert.Equal(t, float64(7), body["id"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotContains(t, body, "totalStudents")
}

func TestListIncludesTotal(t *testing.T) {
	c, w := newContext()
	List(c, "Students fetched successfully", "", []string{"a", "b"}, 2)

	body := decode(t, w)
	assert.Equal(t, float64(2), body["totalStudents"])
	assert.NotContains(t, body, "description")
	assert.NotContains(t, body, "id")
}

func TestErrorHidesInternalDetailsByDefault(t *testing.T) {
	c, w := newContext()
	Error(c, appErrors.WrapInternal(errors.New("dial tcp: connection refused"), "Error fetching students", "Something went wrong"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["status"])
	assert.Equal(t, "Error fetching students", body["message"])
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestErrorExposesInternalDetailsWhenEnabled(t *testing.T) {
	c, w := newContext()
	c.Set(exposeDetailsKey, true)
	Error(c, appErrors.WrapInternal(errors.New("dial tcp: connection refused"), "Error fetching students", ""))

	body := decode(t, w)
	assert.Equal(t, "dial tcp: connection refused", body["message"])
	assert.Equal(t, "Error fetching students", body["description"])
}

func TestErrorNotFound(t *testing.T) {
	c, w := newContext()
	Error(c, appErrors.Describe(appErrors.ErrNotFound, "Student not found", "No student found with the provided ID"))

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Student not found", body["message"])
	assert.Equal(t, "No student found with the provided ID", body["description"])
}
