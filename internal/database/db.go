package database

import (
	"context"
	"database/sql"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Options describes a MySQL connection.
type Options struct {
	User, Pass       string
	Host, Port, Name string
	// LockWaitTimeout bounds how long a statement waits for a row lock
	// before failing with error 1205.  Zero keeps the server default.
	LockWaitTimeout int
}

// DSN renders the driver connection string.  clientFoundRows makes
// UPDATE report matched rows, and multiStatements lets a migration file
// run as a single Exec.
func (o Options) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Pass
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(o.Host, o.Port)
	cfg.DBName = o.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	cfg.MultiStatements = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	if o.LockWaitTimeout > 0 {
		cfg.Params["innodb_lock_wait_timeout"] = strconv.Itoa(o.LockWaitTimeout)
	}
	return cfg.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(o Options) (*sql.DB, error) {
	db, err := sql.Open("mysql", o.DSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
