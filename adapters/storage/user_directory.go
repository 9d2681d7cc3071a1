package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/layer-3/herald/core"
	"github.com/layer-3/herald/ports"
)

const pgUniqueViolation = "23505"

// UserDirectory is the Postgres implementation of ports.UserDirectory.
type UserDirectory struct {
	db *PostgresDB
}

// NewUserDirectory creates a new user directory backed by db.
func NewUserDirectory(db *PostgresDB) ports.UserDirectory {
	return &UserDirectory{db: db}
}

// EnsureUser looks the address up and creates a minimal record when
// absent. A concurrent creation racing the insert is treated as success:
// the record exists either way.
func (d *UserDirectory) EnsureUser(ctx context.Context, address string) (core.User, error) {
	user, err := d.getByAddress(ctx, address)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, core.NewFault(core.FaultUpstream, "failed to look up user", err)
	}

	user = core.User{Address: address, CreatedAt: time.Now().UTC()}

	_, err = d.db.Pool().Exec(ctx,
		`INSERT INTO users (address, created_at) VALUES ($1, $2)`,
		user.Address, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			// Lost the race; the record exists now.
			user, err = d.getByAddress(ctx, address)
			if err != nil {
				return core.User{}, core.NewFault(core.FaultUpstream, "failed to re-read user", err)
			}
			return user, nil
		}
		return core.User{}, core.NewFault(core.FaultUpstream, "failed to create user", err)
	}

	return user, nil
}

func (d *UserDirectory) getByAddress(ctx context.Context, address string) (core.User, error) {
	var user core.User
	err := d.db.Pool().QueryRow(ctx,
		`SELECT address, created_at FROM users WHERE address = $1`,
		address,
	).Scan(&user.Address, &user.CreatedAt)
	if err != nil {
		return core.User{}, err
	}
	return user, nil
}
