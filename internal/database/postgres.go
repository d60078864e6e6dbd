package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var DB *pgxpool.Pool

func ConnectDB(dbUrl string, maxConns, minConns int32) error {
	config, err := buildPoolConfig(dbUrl, maxConns, minConns)
	if err != nil {
		return err
	}

	DB, err = pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := DB.Ping(context.Background()); err != nil {
		return fmt.Errorf("unable to ping database: %v", err)
	}

	log.Printf("Connected to the Postgres message store (pool %d-%d)", minConns, maxConns)
	return nil
}

func buildPoolConfig(dbUrl string, maxConns, minConns int32) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(dbUrl)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %v", err)
	}

	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	if minConns > 0 {
		config.MinConns = minConns
	}
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	return config, nil
}

func CloseDB() {
	if DB != nil {
		DB.Close()
	}
}
