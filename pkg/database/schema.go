package database

import (
	"context"
	"fmt"

	"github.com/noah-isme/student-records-api/pkg/config"
)

const mysqlStudentsDDL = "CREATE TABLE IF NOT EXISTS `students` (" +
	"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
	"`name` VARCHAR(255) NOT NULL," +
	"`rol_no` INT NOT NULL," +
	"`fees` INT NOT NULL," +
	"`class` INT NOT NULL," +
	"`medium` VARCHAR(255) NOT NULL," +
	"`createdAt` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP," +
	"`updatedAt` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP," +
	"`deletedAt` DATETIME NULL DEFAULT NULL)"

const postgresStudentsDDL = `CREATE TABLE IF NOT EXISTS "students" (
	"id" SERIAL PRIMARY KEY,
	"name" VARCHAR(255) NOT NULL,
	"rol_no" INTEGER NOT NULL,
	"fees" INTEGER NOT NULL,
	"class" INTEGER NOT NULL,
	"medium" VARCHAR(255) NOT NULL,
	"createdAt" TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"updatedAt" TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"deletedAt" TIMESTAMPTZ NULL
)`

// EnsureStudentSchema creates the students table when it does not exist yet.
// It is meant for local bootstrap and seeding, not for schema evolution.
func (m *Manager) EnsureStudentSchema(ctx context.Context) error {
	db, release, err := m.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("ensure students schema: %w", err)
	}
	defer release()

	ddl := mysqlStudentsDDL
	if m.dialect.Name() == config.DriverPostgres {
		ddl = postgresStudentsDDL
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure students schema: %w", err)
	}
	return nil
}
