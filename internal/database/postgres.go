package database

import (
	"database/sql"
)

type PgDeskChatRepository struct {
	conn *sql.DB
}

func NewPgDeskChatRepository(dsn string) (*PgDeskChatRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgDeskChatRepository{conn: db}, nil
}

func (db *PgDeskChatRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgDeskChatRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
