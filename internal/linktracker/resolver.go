package linktracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sundayezeilo/linktracker/internal/errx"
)

// Resolver owns link resolution: the valid-checked lookup and the redirect
// state machine, including the visit-count increment.
type Resolver interface {
	// Lookup finds a record by its masked link. It fails NotFound when no
	// record exists or the record has been invalidated. Expiration is NOT
	// checked here: an expired link still "exists", it just can't be used.
	Lookup(ctx context.Context, maskedLink string) (Link, error)

	// Redirect resolves a masked link to its target, enforcing in order:
	// existence/validity, expiration, password. On success the visit counter
	// is incremented and the pre-increment record's target is returned.
	Redirect(ctx context.Context, maskedLink, password string) (string, error)
}

type resolver struct {
	repo Repository
}

// NewResolver creates a Resolver backed by the given repository.
func NewResolver(repo Repository) Resolver {
	return &resolver{repo: repo}
}

func (r *resolver) Lookup(ctx context.Context, maskedLink string) (Link, error) {
	const op = "linktracker.resolver.Lookup"

	if maskedLink == "" {
		return Link{}, errx.E(op, errx.Invalid, errors.New("masked link cannot be empty"))
	}

	link, err := r.repo.FindOneByField(ctx, FieldMaskedLink, maskedLink)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	if !link.Valid {
		return Link{}, errx.E(op, errx.NotFound, fmt.Errorf("link %s is no longer valid", maskedLink))
	}

	return link, nil
}

func (r *resolver) Redirect(ctx context.Context, maskedLink, password string) (string, error) {
	const op = "linktracker.resolver.Redirect"

	link, err := r.Lookup(ctx, maskedLink)
	if err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}

	// The check order is fixed: validity, then expiration, then password.
	// An expired link answers not-found even with a wrong password, so a
	// caller can't probe dead links for password protection.
	if link.ExpiredAt(time.Now()) {
		return "", errx.E(op, errx.NotFound, fmt.Errorf("link %s has expired", maskedLink))
	}

	if link.Password != "" && password != link.Password {
		return "", errx.E(op, errx.Unauthorized, errors.New("you are not authorised to access this link"))
	}

	if _, err := r.repo.IncrementVisited(ctx, link.ID); err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}

	return link.Target, nil
}
