package provisioner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/kingG4e/web-control-panel/interfaces"
)

// MySQL identifiers cannot be bound as query parameters, so they are
// validated against this conservative shape before interpolation.
var sqlIdentRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,63}$`)

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Database provisions the customer MySQL database and its dedicated
// account on the shared database server.
type Database struct {
	db  sqlExecer
	log *slog.Logger
}

// NewDatabase builds the database provisioner against an administrative
// DSN. The connection is established lazily on first use.
func NewDatabase(dsn string, log *slog.Logger) (*Database, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database server connection: %w", err)
	}
	return &Database{db: db, log: log}, nil
}

func (p *Database) Kind() interfaces.StepKind        { return interfaces.StepDatabase }
func (p *Database) Policy() interfaces.FailurePolicy { return interfaces.PolicyFatal }

// Provision creates the database and its account. Every statement is an
// IF NOT EXISTS or an overwrite, so a retried run lands in the same
// state. The password is refreshed each run; a signup retry after a
// password fix must win over whatever a half-finished run left behind.
func (p *Database) Provision(ctx context.Context, req *interfaces.ProvisionRequest) (string, error) {
	sel := req.Database
	if sel == nil {
		return "", &interfaces.ValidationError{Field: "database", Reason: "no database requested"}
	}
	if err := validateSQLIdent("database.name", sel.Name); err != nil {
		return "", err
	}
	if err := validateSQLIdent("database.username", sel.Username); err != nil {
		return "", err
	}
	if sel.Password == "" {
		return "", &interfaces.ValidationError{Field: "database.password", Reason: "decrypted password required"}
	}

	statements := []struct {
		query string
		args  []interface{}
	}{
		{query: fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4", sel.Name)},
		{query: fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY ?", sel.Username), args: []interface{}{sel.Password}},
		{query: fmt.Sprintf("ALTER USER '%s'@'%%' IDENTIFIED BY ?", sel.Username), args: []interface{}{sel.Password}},
		{query: fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'%%'", sel.Name, sel.Username)},
		{query: "FLUSH PRIVILEGES"},
	}
	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			return "", &interfaces.ExternalToolError{Tool: "mysql", Err: err}
		}
	}

	return fmt.Sprintf("database %s with account %s ready", sel.Name, sel.Username), nil
}

// Deprovision drops the database and its account. Both statements
// tolerate absence.
func (p *Database) Deprovision(ctx context.Context, req *interfaces.ProvisionRequest) (string, error) {
	sel := req.Database
	if sel == nil {
		return "", &interfaces.ValidationError{Field: "database", Reason: "no database requested"}
	}
	if err := validateSQLIdent("database.name", sel.Name); err != nil {
		return "", err
	}
	if err := validateSQLIdent("database.username", sel.Username); err != nil {
		return "", err
	}

	for _, query := range []string{
		fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", sel.Name),
		fmt.Sprintf("DROP USER IF EXISTS '%s'@'%%'", sel.Username),
		"FLUSH PRIVILEGES",
	} {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return "", &interfaces.ExternalToolError{Tool: "mysql", Err: err}
		}
	}

	return fmt.Sprintf("database %s and account %s dropped", sel.Name, sel.Username), nil
}

func validateSQLIdent(field, value string) error {
	if !sqlIdentRegex.MatchString(value) {
		return &interfaces.ValidationError{Field: field, Reason: "invalid identifier"}
	}
	return nil
}
