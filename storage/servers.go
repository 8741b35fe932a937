package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// RegisteredServer is an MCP server entry in the registry. Servers added at
// runtime survive restarts; config-file servers are merged in at startup and
// not written here.
type RegisteredServer struct {
	ID        string
	Command   string
	Args      []string
	Env       map[string]string
	Enabled   bool
	AddedAt   time.Time
	UpdatedAt time.Time
}

// ServerRegistry persists MCP server definitions in sqlite.
type ServerRegistry struct {
	db *sql.DB
}

func NewServerRegistry(dataDir string) (*ServerRegistry, error) {
	dbPath := filepath.Join(dataDir, "servers.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	registry := &ServerRegistry{db: db}
	if err := registry.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return registry, nil
}

func (r *ServerRegistry) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS servers (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		args TEXT NOT NULL,
		env TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		added_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Save inserts or replaces a server entry. Args and env are stored as JSON.
func (r *ServerRegistry) Save(server RegisteredServer) error {
	args, err := json.Marshal(server.Args)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}
	env, err := json.Marshal(server.Env)
	if err != nil {
		return fmt.Errorf("failed to marshal env: %w", err)
	}

	if server.AddedAt.IsZero() {
		server.AddedAt = time.Now()
	}
	server.UpdatedAt = time.Now()

	query := `
	INSERT OR REPLACE INTO servers (id, command, args, env, enabled, added_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		server.ID,
		server.Command,
		string(args),
		string(env),
		server.Enabled,
		server.AddedAt,
		server.UpdatedAt,
	)
	return err
}

// Load returns a server by id, or nil when not registered.
func (r *ServerRegistry) Load(id string) (*RegisteredServer, error) {
	query := `
	SELECT id, command, args, env, enabled, added_at, updated_at
	FROM servers
	WHERE id = ?
	`
	row := r.db.QueryRow(query, id)

	server, err := scanServer(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return server, nil
}

// List returns all registered servers, oldest first.
func (r *ServerRegistry) List() ([]RegisteredServer, error) {
	query := `
	SELECT id, command, args, env, enabled, added_at, updated_at
	FROM servers
	ORDER BY added_at ASC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []RegisteredServer
	for rows.Next() {
		server, err := scanServer(rows.Scan)
		if err != nil {
			continue
		}
		servers = append(servers, *server)
	}
	return servers, rows.Err()
}

// Delete removes a server entry.
func (r *ServerRegistry) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM servers WHERE id = ?`, id)
	return err
}

// SetEnabled flips a server on or off without removing it.
func (r *ServerRegistry) SetEnabled(id string, enabled bool) error {
	result, err := r.db.Exec(
		`UPDATE servers SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update server: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("server %s not found in registry", id)
	}
	return nil
}

func (r *ServerRegistry) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func scanServer(scan func(dest ...any) error) (*RegisteredServer, error) {
	var server RegisteredServer
	var args, env string

	err := scan(
		&server.ID,
		&server.Command,
		&args,
		&env,
		&server.Enabled,
		&server.AddedAt,
		&server.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(args), &server.Args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	if err := json.Unmarshal([]byte(env), &server.Env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env: %w", err)
	}
	return &server, nil
}
