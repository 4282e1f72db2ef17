//go:build integration

package postgres

import (
	"context"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	testDB *sqlx.DB
	logger *slog.Logger
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:17"),
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("could not start postgres container: %s", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Fatalf("could not stop postgres container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("failed to get connection string: %s", err)
	}

	testDB, err = sqlx.Connect("postgres", connStr)
	if err != nil {
		log.Fatalf("failed to connect to test postgres: %s", err)
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(b), "../../../")
	migrationsPath := filepath.Join(projectRoot, "migrations")

	sourceURL := "file://" + filepath.ToSlash(migrationsPath)

	migrator, err := migrate.New(sourceURL, connStr)
	if err != nil {
		log.Fatalf("failed to create migrator with url '%s': %s", sourceURL, err)
	}

	if err = migrator.Up(); err != nil {
		log.Fatalf("failed to run migrations: %s", err)
	}

	code := m.Run()

	os.Exit(code)
}

func truncateTables(t *testing.T, db *sqlx.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE TABLE
		notifications, strike_reports, strikes, work_hours,
		project_members, applications, projects, companies, students, users
		RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

func seedUser(t *testing.T, role string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := testDB.Exec(
		`INSERT INTO users (id, email, role, is_active, is_verified) VALUES ($1, $2, $3, TRUE, TRUE)`,
		id, id+"@example.com", role,
	)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	return id
}

func seedStudent(t *testing.T) string {
	t.Helper()

	userID := seedUser(t, "student")
	id := uuid.NewString()
	_, err := testDB.Exec(
		`INSERT INTO students (id, user_id) VALUES ($1, $2)`,
		id, userID,
	)
	if err != nil {
		t.Fatalf("failed to seed student: %v", err)
	}

	return id
}

func seedCompany(t *testing.T) string {
	t.Helper()

	userID := seedUser(t, "company")
	id := uuid.NewString()
	_, err := testDB.Exec(
		`INSERT INTO companies (id, user_id, name) VALUES ($1, $2, 'Test Company')`,
		id, userID,
	)
	if err != nil {
		t.Fatalf("failed to seed company: %v", err)
	}

	return id
}

func seedProject(t *testing.T, companyID, status string, trl, apiLevel, maxStudents, currentStudents int) string {
	t.Helper()

	id := uuid.NewString()
	_, err := testDB.Exec(
		`INSERT INTO projects
			(id, company_id, title, required_hours, max_students, current_students, trl, api_level, status, published_at)
		 VALUES ($1, $2, 'Test Project', 25, $3, $4, $5, $6, $7, now())`,
		id, companyID, maxStudents, currentStudents, trl, apiLevel, status,
	)
	if err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}

	return id
}
