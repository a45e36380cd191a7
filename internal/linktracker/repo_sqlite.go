package linktracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/linktracker/internal/errx"
	"github.com/sundayezeilo/linktracker/internal/idgen"
)

// sqliteRepo implements Repository on database/sql for single-node
// deployments. Timestamps are stored as RFC 3339 text.
type sqliteRepo struct {
	db  *sql.DB
	ids idgen.Generator
}

// NewSQLiteRepository creates a Repository backed by SQLite.
func NewSQLiteRepository(db *sql.DB, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}
	if config.IDGenerator == nil {
		config.IDGenerator = idgen.NewV7(idgen.WithRetries(1))
	}

	return &sqliteRepo{db: db, ids: config.IDGenerator}
}

const sqliteLinkColumns = "id, masked_link, target, valid, password, expiration, visited, created_at, updated_at"

// sqliteRowScanner covers *sql.Row and *sql.Rows.
type sqliteRowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLink(row sqliteRowScanner) (Link, error) {
	var (
		link                 Link
		id                   string
		createdAt, updatedAt string
	)

	err := row.Scan(&id, &link.MaskedLink, &link.Target, &link.Valid,
		&link.Password, &link.Expiration, &link.Visited, &createdAt, &updatedAt)
	if err != nil {
		return Link{}, err
	}

	if link.ID, err = uuid.Parse(id); err != nil {
		return Link{}, fmt.Errorf("malformed id %q: %w", id, err)
	}
	if link.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Link{}, fmt.Errorf("malformed created_at %q: %w", createdAt, err)
	}
	if link.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Link{}, fmt.Errorf("malformed updated_at %q: %w", updatedAt, err)
	}

	return link, nil
}

func mapSQLiteError(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	// modernc.org/sqlite reports constraint violations by message only.
	case strings.Contains(err.Error(), "UNIQUE constraint failed: links.masked_link"):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (r *sqliteRepo) Create(ctx context.Context, link Link) (Link, error) {
	const op = "linktracker.repo.Create"

	if link.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := `INSERT INTO links (` + sqliteLinkColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + sqliteLinkColumns

	created, err := scanSQLiteLink(r.db.QueryRowContext(ctx, query,
		link.ID.String(), link.MaskedLink, link.Target, link.Valid,
		link.Password, link.Expiration, link.Visited, now, now))
	if err != nil {
		return Link{}, mapSQLiteError(op, err)
	}
	return created, nil
}

func (r *sqliteRepo) FindOneByField(ctx context.Context, field, value string) (Link, error) {
	const op = "linktracker.repo.FindOneByField"

	if !queryableColumns[field] {
		return Link{}, errx.E(op, errx.Invalid, fmt.Errorf("field %q is not queryable", field))
	}

	// field is whitelisted above; only the value is user input.
	query := `SELECT ` + sqliteLinkColumns + ` FROM links WHERE ` + field + ` = ? LIMIT 1`

	link, err := scanSQLiteLink(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		return Link{}, mapSQLiteError(op, err)
	}
	return link, nil
}

func (r *sqliteRepo) UpdateByID(ctx context.Context, id uuid.UUID, upd LinkUpdate) (Link, error) {
	const op = "linktracker.repo.UpdateByID"

	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)

	if upd.Valid != nil {
		sets = append(sets, "valid = ?")
		args = append(args, *upd.Valid)
	}
	if upd.Target != nil {
		sets = append(sets, "target = ?")
		args = append(args, *upd.Target)
	}
	if upd.Password != nil {
		sets = append(sets, "password = ?")
		args = append(args, *upd.Password)
	}
	if upd.Expiration != nil {
		sets = append(sets, "expiration = ?")
		args = append(args, *upd.Expiration)
	}

	if len(sets) == 0 {
		return r.FindOneByField(ctx, FieldID, id.String())
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano), id.String())

	query := `UPDATE links SET ` + strings.Join(sets, ", ") + ` WHERE id = ?
		RETURNING ` + sqliteLinkColumns

	link, err := scanSQLiteLink(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return Link{}, mapSQLiteError(op, err)
	}
	return link, nil
}

func (r *sqliteRepo) FindAll(ctx context.Context) ([]Link, error) {
	const op = "linktracker.repo.FindAll"

	rows, err := r.db.QueryContext(ctx, `SELECT `+sqliteLinkColumns+` FROM links`)
	if err != nil {
		return nil, mapSQLiteError(op, err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		link, err := scanSQLiteLink(rows)
		if err != nil {
			return nil, mapSQLiteError(op, err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(op, err)
	}

	return links, nil
}

func (r *sqliteRepo) IncrementVisited(ctx context.Context, id uuid.UUID) (Link, error) {
	const op = "linktracker.repo.IncrementVisited"

	query := `UPDATE links SET visited = visited + 1, updated_at = ? WHERE id = ?
		RETURNING ` + sqliteLinkColumns

	now := time.Now().UTC().Format(time.RFC3339Nano)

	link, err := scanSQLiteLink(r.db.QueryRowContext(ctx, query, now, id.String()))
	if err != nil {
		return Link{}, mapSQLiteError(op, err)
	}
	return link, nil
}
