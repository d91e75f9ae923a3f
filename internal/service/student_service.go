package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/student-records-api/internal/models"
	"github.com/noah-isme/student-records-api/internal/repository"
	appErrors "github.com/noah-isme/student-records-api/pkg/errors"
)

const (
	studentCacheAll     = "students:all"
	studentCachePattern = "students:*"
)

func studentCacheKey(id int64) string {
	return "students:" + strconv.FormatInt(id, 10)
}

type studentRepository interface {
	List(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, id int64, fields models.StudentFields) (int64, error)
	Patch(ctx context.Context, id int64, fields map[string]interface{}) (int64, error)
	SoftDelete(ctx context.Context, id int64) (int64, error)
	HardDelete(ctx context.Context, id int64) (int64, error)
}

// CreateStudentRequest holds payload for creating students. Zero values count as missing.
type CreateStudentRequest struct {
	Name   string `json:"name" validate:"required"`
	RolNo  int    `json:"rol_no" validate:"required"`
	Fees   int    `json:"fees" validate:"required"`
	Class  int    `json:"class" validate:"required"`
	Medium string `json:"medium" validate:"required"`
}

// UpdateStudentRequest holds payload for replacing every writable field.
type UpdateStudentRequest struct {
	Name   string `json:"name" validate:"required"`
	RolNo  int    `json:"rol_no" validate:"required"`
	Fees   int    `json:"fees" validate:"required"`
	Class  int    `json:"class" validate:"required"`
	Medium string `json:"medium" validate:"required"`
}

func (r UpdateStudentRequest) fields() models.StudentFields {
	return models.StudentFields{Name: r.Name, RolNo: r.RolNo, Fees: r.Fees, Class: r.Class, Medium: r.Medium}
}

// UpdatedStudent is returned after a full update.
type UpdatedStudent struct {
	ID int64 `json:"id"`
	models.StudentFields
}

// DeletedStudent is returned after a delete. DeletedAt is only set for soft deletes.
type DeletedStudent struct {
	ID        int64      `json:"id"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time

	// writes counts committed mutations. A cache fill is dropped when a
	// write lands between the storage read and the fill.
	writes atomic.Uint64
}

// NewStudentService constructs the student service. cache may be nil.
func NewStudentService(repo studentRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// ParseStudentID converts a path parameter into a positive student id.
func ParseStudentID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, appErrors.Describe(appErrors.ErrValidation, "Student ID is required", "Provide the student ID in the path")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Describe(appErrors.ErrValidation, "Invalid student ID", "Student ID must be a positive integer")
	}
	return id, nil
}

func notFound(message string) error {
	return appErrors.Describe(appErrors.ErrNotFound, message, "No student found with the provided ID")
}

func (s *StudentService) internal(err error, description string, fields ...zap.Field) error {
	s.logger.Error(description, append(fields, zap.Error(err))...)
	return appErrors.WrapInternal(err, description, "")
}

// fill caches value read at generation gen. The entry is dropped again when a
// write committed after the read, including one racing with the Set itself.
func (s *StudentService) fill(ctx context.Context, key string, gen uint64, value interface{}) {
	if !s.cache.Enabled() || s.writes.Load() != gen {
		return
	}
	s.cache.Set(ctx, key, value, 0)
	if s.writes.Load() != gen {
		s.cache.Invalidate(ctx, key)
	}
}

// invalidate must run after the write has committed.
func (s *StudentService) invalidate(ctx context.Context) {
	s.writes.Add(1)
	s.cache.Invalidate(ctx, studentCachePattern)
}

// List returns every student that has not been soft deleted.
func (s *StudentService) List(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if !s.cache.Get(ctx, studentCacheAll, &students) {
		gen := s.writes.Load()
		var err error
		students, err = s.repo.List(ctx)
		if err != nil {
			return nil, s.internal(err, "Error fetching students")
		}
		if len(students) > 0 {
			s.fill(ctx, studentCacheAll, gen, students)
		}
	}
	if len(students) == 0 {
		return nil, appErrors.Describe(appErrors.ErrNotFound, "No students found", "There are no students in the database")
	}
	return students, nil
}

// Get returns a live student by id.
func (s *StudentService) Get(ctx context.Context, rawID string) (*models.Student, error) {
	id, err := ParseStudentID(rawID)
	if err != nil {
		return nil, err
	}
	var cached models.Student
	if s.cache.Get(ctx, studentCacheKey(id), &cached) {
		return &cached, nil
	}
	gen := s.writes.Load()
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Student not found")
		}
		return nil, s.internal(err, "Error fetching student", zap.Int64("student_id", id))
	}
	s.fill(ctx, studentCacheKey(id), gen, student)
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "All fields are required")
	}
	student := &models.Student{
		Name:   req.Name,
		RolNo:  req.RolNo,
		Fees:   req.Fees,
		Class:  req.Class,
		Medium: req.Medium,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrNotInserted) {
			s.logger.Error("student insert affected no rows")
			return nil, appErrors.Describe(appErrors.ErrInternal, "Failed to create student", "There was an issue creating the student record")
		}
		return nil, s.internal(err, "Error creating student")
	}
	s.invalidate(ctx)
	return student, nil
}

// Update replaces every writable field of a live student.
func (s *StudentService) Update(ctx context.Context, rawID string, req UpdateStudentRequest) (*UpdatedStudent, error) {
	id, err := ParseStudentID(rawID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "All fields are required")
	}
	affected, err := s.repo.Update(ctx, id, req.fields())
	if err != nil {
		return nil, s.internal(err, "Error updating student", zap.Int64("student_id", id))
	}
	if affected == 0 {
		return nil, notFound("Student not found or already deleted")
	}
	s.invalidate(ctx)
	return &UpdatedStudent{ID: id, StudentFields: req.fields()}, nil
}

// Patch updates only the supplied fields of a live student and returns the
// applied values.
func (s *StudentService) Patch(ctx context.Context, rawID string, body map[string]json.RawMessage) (map[string]interface{}, error) {
	id, err := ParseStudentID(rawID)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, appErrors.Describe(appErrors.ErrValidation, "No data provided for update", "Provide at least one field to update")
	}
	fields, err := s.decodePatch(body)
	if err != nil {
		return nil, err
	}
	affected, err := s.repo.Patch(ctx, id, fields)
	if err != nil {
		return nil, s.internal(err, "Error patching student", zap.Int64("student_id", id))
	}
	if affected == 0 {
		return nil, notFound("Student not found or already deleted")
	}
	s.invalidate(ctx)
	return fields, nil
}

func (s *StudentService) decodePatch(body map[string]json.RawMessage) (map[string]interface{}, error) {
	keys := make([]string, 0, len(body))
	for key := range body {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make(map[string]interface{}, len(body))
	for _, key := range keys {
		if !models.IsStudentWritableColumn(key) {
			return nil, appErrors.Describe(appErrors.ErrValidation, "Unknown field", fmt.Sprintf("Field %q cannot be updated", key))
		}
		var value interface{}
		switch key {
		case models.StudentName, models.StudentMedium:
			var text string
			if err := json.Unmarshal(body[key], &text); err != nil {
				return nil, invalidField(key, "a string", err)
			}
			value = text
		default:
			var number int
			if err := json.Unmarshal(body[key], &number); err != nil {
				return nil, invalidField(key, "an integer", err)
			}
			value = number
		}
		if err := s.validator.Var(value, "required"); err != nil {
			return nil, invalidField(key, "non-empty", err)
		}
		fields[key] = value
	}
	return fields, nil
}

func invalidField(key, want string, err error) error {
	appErr := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Invalid field value")
	appErr.Description = fmt.Sprintf("Field %q must be %s", key, want)
	return appErr
}

// SoftDelete marks a live student as deleted.
func (s *StudentService) SoftDelete(ctx context.Context, rawID string) (*DeletedStudent, error) {
	id, err := ParseStudentID(rawID)
	if err != nil {
		return nil, err
	}
	affected, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return nil, s.internal(err, "Error soft deleting student", zap.Int64("student_id", id))
	}
	if affected == 0 {
		return nil, notFound("Student not found or already deleted")
	}
	s.invalidate(ctx)
	deletedAt := s.now().UTC()
	return &DeletedStudent{ID: id, DeletedAt: &deletedAt}, nil
}

// HardDelete physically removes a student, soft deleted or not.
func (s *StudentService) HardDelete(ctx context.Context, rawID string) (*DeletedStudent, error) {
	id, err := ParseStudentID(rawID)
	if err != nil {
		return nil, err
	}
	affected, err := s.repo.HardDelete(ctx, id)
	if err != nil {
		return nil, s.internal(err, "Error hard deleting student", zap.Int64("student_id", id))
	}
	if affected == 0 {
		return nil, notFound("Student not found")
	}
	s.invalidate(ctx)
	return &DeletedStudent{ID: id}, nil
}
