package models

import "time"

// Student columns that callers may write. The list doubles as the allow-list
// for partial updates, so it is the only source of column names that ever
// reaches an UPDATE statement.
const (
	StudentName   = "name"
	StudentRolNo  = "rol_no"
	StudentFees   = "fees"
	StudentClass  = "class"
	StudentMedium = "medium"
)

// StudentWritableColumns lists writable columns in statement order.
var StudentWritableColumns = []string{StudentName, StudentRolNo, StudentFees, StudentClass, StudentMedium}

// IsStudentWritableColumn reports whether column belongs to the writable allow-list.
func IsStudentWritableColumn(column string) bool {
	for _, c := range StudentWritableColumns {
		if c == column {
			return true
		}
	}
	return false
}

// Student is a row of the students table. DeletedAt is non-nil once the
// record has been soft deleted.
type Student struct {
	ID        int64      `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	RolNo     int        `db:"rol_no" json:"rol_no"`
	Fees      int        `db:"fees" json:"fees"`
	Class     int        `db:"class" json:"class"`
	Medium    string     `db:"medium" json:"medium"`
	CreatedAt time.Time  `db:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `db:"updatedAt" json:"updatedAt"`
	DeletedAt *time.Time `db:"deletedAt" json:"deletedAt"`
}

// StudentFields is the writable part of a student as submitted by clients.
type StudentFields struct {
	Name   string `json:"name"`
	RolNo  int    `json:"rol_no"`
	Fees   int    `json:"fees"`
	Class  int    `json:"class"`
	Medium string `json:"medium"`
}

// Fields returns the writable part of the student.
func (s Student) Fields() StudentFields {
	return StudentFields{Name: s.Name, RolNo: s.RolNo, Fees: s.Fees, Class: s.Class, Medium: s.Medium}
}

// Deleted reports whether the student has been soft deleted.
func (s Student) Deleted() bool {
	return s.DeletedAt != nil
}
