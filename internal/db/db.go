// internal/db/db.go
package db

import (
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/KofiRusu/Neon-v2.2-sub005/internal/config"
)

// Open connects to Postgres and verifies the connection.
func Open(cfg config.Database) (*sql.DB, error) {
	conn, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnLifetime)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
