package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/student-records-api/internal/models"
	"github.com/noah-isme/student-records-api/internal/service"
	"github.com/noah-isme/student-records-api/pkg/response"
)

type memoryStudentRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.Student
	err    error
}

func (m *memoryStudentRepo) List(ctx context.Context) ([]models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []models.Student{}
	for id := int64(1); id <= m.nextID; id++ {
		if st, ok := m.rows[id]; ok && !st.Deleted() {
			out = append(out, st)
		}
	}
	return out, nil
}

func (m *memoryStudentRepo) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.rows[id]
	if !ok || st.Deleted() {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (m *memoryStudentRepo) Create(ctx context.Context, student *models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	student.ID = m.nextID
	m.rows[student.ID] = *student
	return nil
}

func (m *memoryStudentRepo) Update(ctx context.Context, id int64, fields models.StudentFields) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.rows[id]
	if !ok || st.Deleted() {
		return 0, nil
	}
	st.Name, st.RolNo, st.Fees, st.Class, st.Medium = fields.Name, fields.RolNo, fields.Fees, fields.Class, fields.Medium
	m.rows[id] = st
	return 1, nil
}

func (m *memoryStudentRepo) Patch(ctx context.Context, id int64, fields map[string]interface{}) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.rows[id]
	if !ok || st.Deleted() {
		return 0, nil
	}
	if v, ok := fields[models.StudentFees]; ok {
		st.Fees = v.(int)
	}
	if v, ok := fields[models.StudentName]; ok {
		st.Name = v.(string)
	}
	m.rows[id] = st
	return 1, nil
}

func (m *memoryStudentRepo) SoftDelete(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.rows[id]
	if !ok || st.Deleted() {
		return 0, nil
	}
	now := time.Now()
	st.DeletedAt = &now
	m.rows[id] = st
	return 1, nil
}

func (m *memoryStudentRepo) HardDelete(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return 0, nil
	}
	delete(m.rows, id)
	return 1, nil
}

func newStudentRouter(repo *memoryStudentRepo, expose bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	students := service.NewStudentService(repo, nil, nil, zap.NewNop())
	exports := service.NewExportService(repo, zap.NewNop(), nil, nil)
	h := NewStudentHandler(students, exports)

	r := gin.New()
	r.Use(response.ExposeDetails(expose))
	g := r.Group("/api/v1/students")
	g.GET("/all", h.List)
	g.POST("/new", h.Create)
	g.GET("/export", h.Export)
	g.GET("/:id/student", h.Get)
	g.PATCH("/patch/:id", h.Patch)
	g.PUT("/update/:id", h.Update)
	g.DELETE("/soft-delete/:id", h.SoftDelete)
	g.DELETE("/hard-delete/:id", h.HardDelete)
	return r
}

func perform(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var payload map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	}
	return w, payload
}

func TestStudentHandlerAshaScenario(t *testing.T) {
	r := newStudentRouter(&memoryStudentRepo{rows: map[int64]models.Student{}}, false)

	w, body := perform(t, r, http.MethodPost, "/api/v1/students/new", `{"name":"Asha","rol_no":12,"fees":5000,"class":7,"medium":"English"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["status"])
	assert.Equal(t, "Student created successfully", body["message"])
	assert.Equal(t, "Asha", body["data"].(map[string]interface{})["name"])
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w, body = perform(t, r, http.MethodGet, "/api/v1/students/1/student", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Asha", body["data"].(map[string]interface{})["name"])

	w, body = perform(t, r, http.MethodGet, "/api/v1/students/all", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["totalStudents"])

	w, body = perform(t, r, http.MethodDelete, "/api/v1/students/soft-delete/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["id"])
	assert.NotEmpty(t, data["deletedAt"])

	w, body = perform(t, r, http.MethodGet, "/api/v1/students/all", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No students found", body["message"])

	w, _ = perform(t, r, http.MethodDelete, "/api/v1/students/hard-delete/1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w, body = perform(t, r, http.MethodGet, "/api/v1/students/1/student", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["status"])
	assert.Equal(t, "No student found with the provided ID", body["description"])
}

func TestStudentHandlerCreateValidation(t *testing.T) {
	r := newStudentRouter(&memoryStudentRepo{rows: map[int64]models.Student{}}, false)

	w, body := perform(t, r, http.MethodPost, "/api/v1/students/new", `{"name":"Asha"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "All fields are required", body["message"])

	w, body = perform(t, r, http.MethodPost, "/api/v1/students/new", `{"name":"Asha","rol_no":"twelve","fees":1,"class":1,"medium":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", body["message"])
}

func TestStudentHandlerPatch(t *testing.T) {
	repo := &memoryStudentRepo{rows: map[int64]models.Student{}}
	r := newStudentRouter(repo, false)
	perform(t, r, http.MethodPost, "/api/v1/students/new", `{"name":"Asha","rol_no":12,"fees":5000,"class":7,"medium":"English"}`)

	w, body := perform(t, r, http.MethodPatch, "/api/v1/students/patch/1", `{"fees":6000}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"fees": float64(6000)}, body["data"])
	assert.Equal(t, 6000, repo.rows[1].Fees)

	w, body = perform(t, r, http.MethodPatch, "/api/v1/students/patch/1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No data provided for update", body["message"])

	w, body = perform(t, r, http.MethodPatch, "/api/v1/students/patch/1", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No data provided for update", body["message"])

	w, _ = perform(t, r, http.MethodPatch, "/api/v1/students/patch/1", `{"id":9}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = perform(t, r, http.MethodPatch, "/api/v1/students/patch/77", `{"name":"Ravi"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Student not found or already deleted", body["message"])
}

func TestStudentHandlerUpdateSoftDeleted(t *testing.T) {
	r := newStudentRouter(&memoryStudentRepo{rows: map[int64]models.Student{}}, false)
	perform(t, r, http.MethodPost, "/api/v1/students/new", `{"name":"Asha","rol_no":12,"fees":5000,"class":7,"medium":"English"}`)
	perform(t, r, http.MethodDelete, "/api/v1/students/soft-delete/1", "")

	w, body := perform(t, r, http.MethodPut, "/api/v1/students/update/1", `{"name":"Asha","rol_no":12,"fees":5500,"class":7,"medium":"English"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Student not found or already deleted", body["message"])
}

func TestStudentHandlerInvalidID(t *testing.T) {
	r := newStudentRouter(&memoryStudentRepo{rows: map[int64]models.Student{}}, false)

	w, body := perform(t, r, http.MethodGet, "/api/v1/students/abc/student", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid student ID", body["message"])
}

func TestStudentHandlerInternalErrorDetail(t *testing.T) {
	repo := &memoryStudentRepo{rows: map[int64]models.Student{}, err: errors.New("dial tcp: connection refused")}

	w, body := perform(t, newStudentRouter(repo, false), http.MethodGet, "/api/v1/students/all", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error fetching students", body["message"])
	assert.NotContains(t, w.Body.String(), "connection refused")

	w, body = perform(t, newStudentRouter(repo, true), http.MethodGet, "/api/v1/students/all", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error fetching students", body["description"])
	assert.Contains(t, body["message"], "connection refused")
}

func TestStudentHandlerExport(t *testing.T) {
	r := newStudentRouter(&memoryStudentRepo{rows: map[int64]models.Student{}}, false)
	perform(t, r, http.MethodPost, "/api/v1/students/new", `{"name":"Asha","rol_no":12,"fees":5000,"class":7,"medium":"English"}`)

	w, _ := perform(t, r, http.MethodGet, "/api/v1/students/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	assert.Contains(t, w.Body.String(), "1,Asha,12,7,English,5000")

	w, body := perform(t, r, http.MethodGet, "/api/v1/students/export?format=doc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unsupported export format", body["message"])
}
