package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/helios-labs/walletgate/core"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists users and teams. It implements both ports.UserStore
// and ports.TeamStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY NOT NULL CHECK(id <> ''),
		subdomain TEXT NOT NULL UNIQUE CHECK(subdomain <> ''),
		name TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY NOT NULL CHECK(id <> ''),
		team_id TEXT NOT NULL REFERENCES teams(id),
		email TEXT NOT NULL CHECK(email <> ''),
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		service TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(team_id, email)
	);`

	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// FindByEmail returns the user with the given email within a team, or nil
// when no such user exists.
func (s *SQLiteStore) FindByEmail(ctx context.Context, teamID, email string) (*core.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, team_id, email, name, role, service, created_at
		FROM users
		WHERE team_id = ? AND email = ?`, teamID, email)

	return scanUser(row)
}

// FindOrCreate inserts the user, falling back to a fetch when the
// (team_id, email) uniqueness constraint fires. Two concurrent first logins
// for the same address therefore converge on a single row.
func (s *SQLiteStore) FindOrCreate(ctx context.Context, user *core.User) (*core.User, bool, error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, team_id, email, name, role, service, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.TeamID, user.Email, user.Name, user.Role, user.Service, user.CreatedAt)
	if err == nil {
		return user, true, nil
	}

	if !isUniqueViolation(err) {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	existing, err := s.FindByEmail(ctx, user.TeamID, user.Email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch user after duplicate insert: %w", err)
	}
	if existing == nil {
		return nil, false, fmt.Errorf("user vanished after duplicate insert: %w", sql.ErrNoRows)
	}

	return existing, false, nil
}

// FindBySubdomain resolves a team by its subdomain.
func (s *SQLiteStore) FindBySubdomain(ctx context.Context, subdomain string) (*core.Team, error) {
	var team core.Team
	err := s.db.QueryRowContext(ctx, `
		SELECT id, subdomain, name
		FROM teams
		WHERE subdomain = ?`, subdomain).Scan(&team.ID, &team.Subdomain, &team.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to resolve team: %w", err)
	}

	return &team, nil
}

// EnsureTeam inserts a team if its subdomain is not taken yet and returns
// the stored row either way. Used at startup to seed the default team.
func (s *SQLiteStore) EnsureTeam(ctx context.Context, team *core.Team) (*core.Team, error) {
	if team.ID == "" {
		team.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teams (id, subdomain, name)
		VALUES (?, ?, ?)`, team.ID, team.Subdomain, team.Name)
	if err == nil {
		return team, nil
	}
	if !isUniqueViolation(err) {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	return s.FindBySubdomain(ctx, team.Subdomain)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanUser(row *sql.Row) (*core.User, error) {
	var user core.User
	err := row.Scan(&user.ID, &user.TeamID, &user.Email, &user.Name, &user.Role, &user.Service, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}
