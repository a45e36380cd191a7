package linktracker

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/sundayezeilo/linktracker/internal/errx"
	"github.com/sundayezeilo/linktracker/tokengen"
)

const (
	DefaultTokenLength     = tokengen.DefaultLength
	MaxURLLength           = 2048
	DefaultTokenMaxRetries = 3

	maskedPathPrefix = "/l/"
)

// CreateLinkRequest represents the parameters for creating a new masked link.
type CreateLinkRequest struct {
	HostBase   string // scheme://host the masked link is built on
	Target     string
	Valid      *bool  // nil defaults to true
	Password   string // optional
	Expiration string // optional, YYYY-MM-DD
}

// Service owns the link lifecycle: creation, listing, invalidation, and
// stats retrieval.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	ListAll(ctx context.Context) ([]Link, error)
	Invalidate(ctx context.Context, maskedLink string) (Link, error)
	StatsFor(ctx context.Context, maskedLink string) (int64, error)
}

// service implements the Service interface.
type service struct {
	repo            Repository
	resolver        Resolver
	tokenGenerator  tokengen.Generator
	tokenLength     int
	tokenMaxRetries int
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	TokenGenerator  tokengen.Generator
	TokenLength     int
	TokenMaxRetries int // attempts when generating a unique token (default: 3)
}

// NewService creates a new service instance.
func NewService(repo Repository, resolver Resolver, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	tokenGen := config.TokenGenerator
	if tokenGen == nil {
		tokenGen = tokengen.NewLowercase()
	}

	tokenLength := config.TokenLength
	if tokenLength <= 0 {
		tokenLength = DefaultTokenLength
	}

	retries := config.TokenMaxRetries
	if retries <= 0 {
		retries = DefaultTokenMaxRetries
	}

	return &service{
		repo:            repo,
		resolver:        resolver,
		tokenGenerator:  tokenGen,
		tokenLength:     tokenLength,
		tokenMaxRetries: retries,
	}
}

// Create generates a masked link for the target and persists the record.
// The token has no uniqueness guarantee of its own; the store's unique
// constraint on masked_link plus retry-on-conflict covers collisions.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	const op = "linktracker.service.Create"

	if req.HostBase == "" {
		return Link{}, errx.E(op, errx.Invalid, errors.New("host base cannot be empty"))
	}
	if err := validateTarget(req.Target); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}
	if err := validateExpiration(req.Expiration); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	valid := true
	if req.Valid != nil {
		valid = *req.Valid
	}

	hostBase := strings.TrimSuffix(req.HostBase, "/")

	for range s.tokenMaxRetries {
		token, err := s.tokenGenerator.Generate(s.tokenLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}

		created, err := s.repo.Create(ctx, Link{
			MaskedLink: hostBase + maskedPathPrefix + token,
			Target:     req.Target,
			Valid:      valid,
			Password:   req.Password,
			Expiration: req.Expiration,
		})
		if err == nil {
			return created, nil
		}

		// Retry on token collision, fail on anything else.
		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
	}

	return Link{}, errx.E(op, errx.Unavailable,
		errors.New("could not generate unique masked link after retries"))
}

// ListAll returns every record. Order is not guaranteed and each call
// re-queries the store.
func (s *service) ListAll(ctx context.Context) ([]Link, error) {
	const op = "linktracker.service.ListAll"

	links, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return links, nil
}

// Invalidate marks the record as invalid. The transition is one-way and
// idempotent: invalidating an already-invalid or expired link succeeds,
// since validity is independent of expiration. The valid-checked lookup is
// deliberately bypassed here.
func (s *service) Invalidate(ctx context.Context, maskedLink string) (Link, error) {
	const op = "linktracker.service.Invalidate"

	if maskedLink == "" {
		return Link{}, errx.E(op, errx.Invalid, errors.New("masked link cannot be empty"))
	}

	link, err := s.repo.FindOneByField(ctx, FieldMaskedLink, maskedLink)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	invalid := false
	updated, err := s.repo.UpdateByID(ctx, link.ID, LinkUpdate{Valid: &invalid})
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return updated, nil
}

// StatsFor returns the visit count for a masked link. It reuses the
// resolver's valid-checked lookup, so stats disappear together with the
// link once it is invalidated.
func (s *service) StatsFor(ctx context.Context, maskedLink string) (int64, error) {
	const op = "linktracker.service.StatsFor"

	link, err := s.resolver.Lookup(ctx, maskedLink)
	if err != nil {
		return 0, errx.E(op, errx.KindOf(err), err)
	}
	return link.Visited, nil
}

func validateTarget(rawURL string) error {
	if rawURL == "" {
		return errors.New("target cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return errors.New("target too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid target url format")
	}
	if parsedURL.Scheme == "" {
		return errors.New("target must include scheme (http or https)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("target scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("target must include host")
	}
	return nil
}

func validateExpiration(expiration string) error {
	if expiration == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, expiration); err != nil {
		return errors.New("the date must be in YYYY-MM-DD format")
	}
	return nil
}
