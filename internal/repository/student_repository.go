package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/student-records-api/internal/models"
	"github.com/noah-isme/student-records-api/pkg/database"
)

const studentsTable = "students"

var (
	// ErrEmptyPatch is returned when a partial update carries no fields.
	ErrEmptyPatch = errors.New("no fields to update")
	// ErrUnknownColumn is returned when a partial update names a column outside the allow-list.
	ErrUnknownColumn = errors.New("unknown student column")
	// ErrNotInserted is returned when an insert reports no affected rows.
	ErrNotInserted = errors.New("student was not inserted")
)

// QueryObserver receives the duration of every statement.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// StudentRepository manages persistence for student records. Every method
// borrows the shared pool for exactly one statement.
type StudentRepository struct {
	pool     *database.Manager
	dialect  database.Dialect
	observer QueryObserver

	table   string
	columns string
}

// NewStudentRepository constructs a StudentRepository. observer may be nil.
func NewStudentRepository(pool *database.Manager, observer QueryObserver) *StudentRepository {
	d := pool.Dialect()
	cols := []string{"id", "name", "rol_no", "fees", "class", "medium", "createdAt", "updatedAt", "deletedAt"}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.Quote(c)
	}
	return &StudentRepository{
		pool:     pool,
		dialect:  d,
		observer: observer,
		table:    d.Quote(studentsTable),
		columns:  strings.Join(quoted, ", "),
	}
}

func (r *StudentRepository) observe(label string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveDBQuery(label, time.Since(start))
	}
}

func (r *StudentRepository) notDeleted() string {
	return r.dialect.Quote("deletedAt") + " IS NULL"
}

// List returns every student that has not been soft deleted.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	db, release, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer release()
	defer r.observe("students.list", time.Now())

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s", r.columns, r.table, r.notDeleted(), r.dialect.Quote("id"))
	students := []models.Student{}
	if err := db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student that has not been soft deleted. It returns an
// error wrapping sql.ErrNoRows when no such student exists.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	db, release, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("find student: %w", err)
	}
	defer release()
	defer r.observe("students.find", time.Now())

	query := r.dialect.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND %s", r.columns, r.table, r.dialect.Quote("id"), r.notDeleted()))
	var student models.Student
	if err := db.GetContext(ctx, &student, query, id); err != nil {
		return nil, fmt.Errorf("find student %d: %w", id, err)
	}
	return &student, nil
}

// Exists reports whether a row with the id is physically present, including
// soft-deleted rows.
func (r *StudentRepository) Exists(ctx context.Context, id int64) (bool, error) {
	db, release, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("check student: %w", err)
	}
	defer release()
	defer r.observe("students.exists", time.Now())

	query := r.dialect.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", r.table, r.dialect.Quote("id")))
	var count int
	if err := db.GetContext(ctx, &count, query, id); err != nil {
		return false, fmt.Errorf("check student %d: %w", id, err)
	}
	return count > 0, nil
}

// Create inserts a new student and stores the generated id on it.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	db, release, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	defer release()
	defer r.observe("students.create", time.Now())

	cols := append([]string{}, models.StudentWritableColumns...)
	cols = append(cols, "createdAt", "updatedAt")
	for i, c := range cols {
		cols[i] = r.dialect.Quote(c)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)", r.table, strings.Join(cols, ", "))
	args := []interface{}{student.Name, student.RolNo, student.Fees, student.Class, student.Medium}

	if r.dialect.InsertReturnsID() {
		query = r.dialect.Rebind(query + " RETURNING " + r.dialect.Quote("id"))
		if err := db.QueryRowxContext(ctx, query, args...).Scan(&student.ID); err != nil {
			return fmt.Errorf("create student: %w", err)
		}
		return nil
	}

	res, err := db.ExecContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	if affected == 0 {
		return ErrNotInserted
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	student.ID = id
	return nil
}

// Update overwrites every writable field of a live student and returns the
// number of affected rows.
func (r *StudentRepository) Update(ctx context.Context, id int64, fields models.StudentFields) (int64, error) {
	return r.Patch(ctx, id, map[string]interface{}{
		models.StudentName:   fields.Name,
		models.StudentRolNo:  fields.RolNo,
		models.StudentFees:   fields.Fees,
		models.StudentClass:  fields.Class,
		models.StudentMedium: fields.Medium,
	})
}

// Patch updates only the supplied columns of a live student. Column names are
// checked against the writable allow-list; values are always bound.
func (r *StudentRepository) Patch(ctx context.Context, id int64, fields map[string]interface{}) (int64, error) {
	if len(fields) == 0 {
		return 0, ErrEmptyPatch
	}
	columns := make([]string, 0, len(fields))
	for column := range fields {
		if !models.IsStudentWritableColumn(column) {
			return 0, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	assignments := make([]string, 0, len(columns)+1)
	args := make([]interface{}, 0, len(columns)+1)
	for _, column := range columns {
		assignments = append(assignments, r.dialect.Quote(column)+" = ?")
		args = append(args, fields[column])
	}
	assignments = append(assignments, r.dialect.Quote("updatedAt")+" = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ? AND %s", r.table, strings.Join(assignments, ", "), r.dialect.Quote("id"), r.notDeleted())
	return r.exec(ctx, "students.update", query, args...)
}

// SoftDelete stamps deletedAt on a live student.
func (r *StudentRepository) SoftDelete(ctx context.Context, id int64) (int64, error) {
	query := fmt.Sprintf("UPDATE %s SET %s = CURRENT_TIMESTAMP WHERE %s = ? AND %s", r.table, r.dialect.Quote("deletedAt"), r.dialect.Quote("id"), r.notDeleted())
	return r.exec(ctx, "students.soft_delete", query, id)
}

// HardDelete physically removes the row regardless of its soft-delete state.
func (r *StudentRepository) HardDelete(ctx context.Context, id int64) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", r.table, r.dialect.Quote("id"))
	return r.exec(ctx, "students.hard_delete", query, id)
}

func (r *StudentRepository) exec(ctx context.Context, label, query string, args ...interface{}) (int64, error) {
	db, release, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", label, err)
	}
	defer release()
	defer r.observe(label, time.Now())

	res, err := db.ExecContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", label, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", label, err)
	}
	return affected, nil
}
