package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-records-api/internal/models"
	"github.com/noah-isme/student-records-api/internal/repository"
	"github.com/noah-isme/student-records-api/pkg/config"
	"github.com/noah-isme/student-records-api/pkg/database"
	"github.com/noah-isme/student-records-api/pkg/logger"
)

var sampleStudents = []models.Student{
	{Name: "Asha Verma", RolNo: 1, Fees: 5000, Class: 7, Medium: "English"},
	{Name: "Ravi Kumar", RolNo: 2, Fees: 4800, Class: 7, Medium: "Hindi"},
	{Name: "Meera Nair", RolNo: 3, Fees: 5200, Class: 8, Medium: "English"},
	{Name: "Arjun Singh", RolNo: 4, Fees: 4500, Class: 6, Medium: "Hindi"},
	{Name: "Fatima Khan", RolNo: 5, Fees: 5100, Class: 8, Medium: "Urdu"},
}

func main() {
	var (
		ensureSchema bool
		limit        int
		timeout      time.Duration
	)

	flag.BoolVar(&ensureSchema, "ensure-schema", false, "Create the students table when it is missing")
	flag.IntVar(&limit, "limit", len(sampleStudents), "Number of sample students to insert")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout for the seed run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool := database.NewManager(cfg.Database, logr)
	if _, err := pool.Connect(ctx); err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close() //nolint:errcheck

	if !pool.TestConnection(ctx) {
		logr.Fatal("database test query failed")
	}

	if ensureSchema {
		if err := pool.EnsureStudentSchema(ctx); err != nil {
			logr.Fatal("failed to ensure schema", zap.Error(err))
		}
		logr.Info("students table ready", zap.String("driver", pool.Dialect().Name()))
	}

	if limit < 0 || limit > len(sampleStudents) {
		limit = len(sampleStudents)
	}

	repo := repository.NewStudentRepository(pool, nil)
	inserted := 0
	for _, sample := range sampleStudents[:limit] {
		student := sample
		if err := repo.Create(ctx, &student); err != nil {
			logr.Fatal("failed to insert student", zap.String("name", student.Name), zap.Error(err))
		}
		ok, err := repo.Exists(ctx, student.ID)
		if err != nil || !ok {
			logr.Fatal("inserted student not found", zap.Int64("id", student.ID), zap.Error(err))
		}
		inserted++
		logr.Info("student created", zap.Int64("id", student.ID), zap.String("name", student.Name))
	}

	logr.Info("seed completed", zap.Int("inserted", inserted))
}
