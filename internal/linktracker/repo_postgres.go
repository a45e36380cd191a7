package linktracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sundayezeilo/linktracker/internal/errx"
	"github.com/sundayezeilo/linktracker/internal/idgen"
)

// linkColumns is the full column list, in scan order.
var linkColumns = []string{
	"id", "masked_link", "target", "valid", "password",
	"expiration", "visited", "created_at", "updated_at",
}

// queryableColumns whitelists FindOneByField inputs. Anything else is a
// programming error surfaced as Invalid.
var queryableColumns = map[string]bool{
	FieldID:         true,
	FieldMaskedLink: true,
	FieldTarget:     true,
}

// pgxQuerier is the subset of *pgxpool.Pool the repository needs.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type postgresRepo struct {
	db  pgxQuerier
	ids idgen.Generator
	sb  sq.StatementBuilderType
}

// RepositoryConfig holds configuration for the repository.
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewPostgresRepository creates a Repository backed by Postgres.
func NewPostgresRepository(db pgxQuerier, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}

	// Default: UUID v7 (good for DB locality).
	if config.IDGenerator == nil {
		config.IDGenerator = idgen.NewV7(idgen.WithRetries(1))
	}

	return &postgresRepo{
		db:  db,
		ids: config.IDGenerator,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func mustTime(ts pgtype.Timestamptz, field string) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("%s unexpectedly NULL", field)
	}
	return ts.Time, nil
}

// scanLink scans one row in linkColumns order into a domain Link.
func scanLink(row pgx.Row) (Link, error) {
	var (
		id                   pgtype.UUID
		link                 Link
		createdAt, updatedAt pgtype.Timestamptz
	)

	err := row.Scan(&id, &link.MaskedLink, &link.Target, &link.Valid,
		&link.Password, &link.Expiration, &link.Visited, &createdAt, &updatedAt)
	if err != nil {
		return Link{}, err
	}

	if !id.Valid {
		return Link{}, errors.New("id unexpectedly NULL")
	}
	link.ID = uuid.UUID(id.Bytes)

	if link.CreatedAt, err = mustTime(createdAt, "created_at"); err != nil {
		return Link{}, err
	}
	if link.UpdatedAt, err = mustTime(updatedAt, "updated_at"); err != nil {
		return Link{}, err
	}

	return link, nil
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isMaskedLinkUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (r *postgresRepo) Create(ctx context.Context, link Link) (Link, error) {
	const op = "linktracker.repo.Create"

	if link.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}

	query, args, err := r.sb.
		Insert("links").
		Columns("id", "masked_link", "target", "valid", "password", "expiration", "visited").
		Values(pgUUID(link.ID), link.MaskedLink, link.Target, link.Valid, link.Password, link.Expiration, link.Visited).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}

	created, err := scanLink(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return created, nil
}

func (r *postgresRepo) FindOneByField(ctx context.Context, field, value string) (Link, error) {
	const op = "linktracker.repo.FindOneByField"

	if !queryableColumns[field] {
		return Link{}, errx.E(op, errx.Invalid, fmt.Errorf("field %q is not queryable", field))
	}

	// The id column is uuid-typed; a text parameter would not compare.
	var arg any = value
	if field == FieldID {
		id, err := uuid.Parse(value)
		if err != nil {
			return Link{}, errx.E(op, errx.Invalid, fmt.Errorf("invalid id %q: %w", value, err))
		}
		arg = pgUUID(id)
	}

	query, args, err := r.sb.
		Select(linkColumns...).
		From("links").
		Where(sq.Eq{field: arg}).
		Limit(1).
		ToSql()
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}

	link, err := scanLink(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *postgresRepo) UpdateByID(ctx context.Context, id uuid.UUID, upd LinkUpdate) (Link, error) {
	const op = "linktracker.repo.UpdateByID"

	builder := r.sb.Update("links")
	changed := false

	if upd.Valid != nil {
		builder = builder.Set("valid", *upd.Valid)
		changed = true
	}
	if upd.Target != nil {
		builder = builder.Set("target", *upd.Target)
		changed = true
	}
	if upd.Password != nil {
		builder = builder.Set("password", *upd.Password)
		changed = true
	}
	if upd.Expiration != nil {
		builder = builder.Set("expiration", *upd.Expiration)
		changed = true
	}

	if !changed {
		return r.FindOneByField(ctx, FieldID, id.String())
	}

	query, args, err := builder.
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": pgUUID(id)}).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}

	link, err := scanLink(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *postgresRepo) FindAll(ctx context.Context) ([]Link, error) {
	const op = "linktracker.repo.FindAll"

	query, _, err := r.sb.Select(linkColumns...).From("links").ToSql()
	if err != nil {
		return nil, errx.E(op, errx.Internal, err)
	}

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, mapRepoError(op, err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, mapRepoError(op, err)
	}

	return links, nil
}

func (r *postgresRepo) IncrementVisited(ctx context.Context, id uuid.UUID) (Link, error) {
	const op = "linktracker.repo.IncrementVisited"

	query, args, err := r.sb.
		Update("links").
		Set("visited", sq.Expr("visited + 1")).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": pgUUID(id)}).
		Suffix("RETURNING " + columnList()).
		ToSql()
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}

	link, err := scanLink(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func columnList() string {
	list := linkColumns[0]
	for _, col := range linkColumns[1:] {
		list += ", " + col
	}
	return list
}
