package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/linkgate/internal/app/model"
	"github.com/sifan077/linkgate/internal/app/repository"
	infraPrometheus "github.com/sifan077/linkgate/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	// RecentClicksLimit caps the clicks reported by Stats.
	RecentClicksLimit = 50
	// maxSlugAttempts bounds retries when a generated slug collides.
	maxSlugAttempts = 5
)

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error)
	Resolve(ctx context.Context, slug string, visit Visit) (*Resolution, error)
	Unlock(ctx context.Context, slug, password string) (*Resolution, error)
	PatchLink(ctx context.Context, slug string, input PatchLinkInput) (string, error)
	Stats(ctx context.Context, slug string) (*LinkStats, error)
	GetLink(ctx context.Context, slug string) (*model.Link, error)
}

// LinkServiceDeps groups the collaborators of the link service. Cache, Clicks
// and Index are optional.
type LinkServiceDeps struct {
	Store  repository.LinkStore
	Cache  repository.LinkCache
	Slugs  SlugGenerator
	Hasher PasswordHasher
	Clicks ClickDispatcher
	Index  *SlugIndex
	Logger *zap.Logger
	Now    func() time.Time
}

type linkService struct {
	store  repository.LinkStore
	cache  repository.LinkCache
	slugs  SlugGenerator
	hasher PasswordHasher
	clicks ClickDispatcher
	index  *SlugIndex
	logger *zap.Logger
	now    func() time.Time
}

// NewLinkService returns a service implementation backed by the given store.
func NewLinkService(deps LinkServiceDeps) LinkService {
	s := &linkService{
		store:  deps.Store,
		cache:  deps.Cache,
		slugs:  deps.Slugs,
		hasher: deps.Hasher,
		clicks: deps.Clicks,
		index:  deps.Index,
		logger: deps.Logger,
		now:    deps.Now,
	}
	if s.slugs == nil {
		s.slugs = RandomSlugGenerator{}
	}
	if s.hasher == nil {
		s.hasher = NewBcryptHasher(DefaultBcryptCost)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	Target     string     `json:"target" validate:"required,url,max=2048"`
	CustomSlug string     `json:"customSlug" validate:"omitempty,alphanum,min=4,max=64"`
	ExpiresAt  *time.Time `json:"expiresAt"`
	Password   string     `json:"password" validate:"omitempty,min=4,max=128"`
}

// PatchLinkInput captures the admin-editable fields. Nil fields are left as
// they are; ClearExpiresAt removes any expiry.
type PatchLinkInput struct {
	IsActive       *bool
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	RotateSlug     bool
}

// Visit describes the client behind a redirect.
type Visit struct {
	IP        string
	UserAgent string
	Referer   string
}

// Resolution is what a caller needs to issue a redirect.
type Resolution struct {
	Slug   string
	Target string
}

// LinkStats is the read-only view of a link and its latest clicks.
type LinkStats struct {
	Slug         string
	Target       string
	IsActive     bool
	ExpiresAt    *time.Time
	TotalClicks  int64
	RecentClicks []model.Click
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	if input.CustomSlug != "" {
		taken, err := s.slugTaken(ctx, input.CustomSlug)
		if err != nil {
			return nil, fmt.Errorf("check slug: %w", err)
		}
		if taken {
			return nil, ErrSlugTaken
		}
	}

	link := &model.Link{
		ID:       uuid.NewString(),
		Target:   input.Target,
		IsActive: true,
	}
	if input.ExpiresAt != nil {
		expires := input.ExpiresAt.UTC()
		link.ExpiresAt = &expires
	}
	if input.Password != "" {
		digest, err := s.hasher.Hash(input.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		link.PasswordDigest = &digest
	}

	if input.CustomSlug != "" {
		link.Slug = input.CustomSlug
		if err := s.store.InsertLink(ctx, link); err != nil {
			if errors.Is(err, repository.ErrSlugExists) {
				return nil, ErrSlugTaken
			}
			return nil, fmt.Errorf("create link: %w", err)
		}
	} else if err := s.insertWithGeneratedSlug(ctx, link); err != nil {
		return nil, err
	}

	if s.index != nil {
		s.index.Add(link.Slug)
	}
	s.logger.Debug("link created", zap.String("slug", link.Slug), zap.Bool("gated", link.Gated()))
	return link, nil
}

func (s *linkService) insertWithGeneratedSlug(ctx context.Context, link *model.Link) error {
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		slug, err := s.slugs.Generate(GeneratedSlugLength)
		if err != nil {
			return fmt.Errorf("generate slug: %w", err)
		}
		link.Slug = slug

		err = s.store.InsertLink(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrSlugExists) {
			return fmt.Errorf("create link: %w", err)
		}
		s.logger.Warn("generated slug collided, retrying",
			zap.String("slug", slug),
			zap.Int("attempt", attempt),
		)
	}
	return fmt.Errorf("create link: no free slug after %d attempts", maxSlugAttempts)
}

// slugTaken is an early answer for custom slugs. The store's unique
// constraint remains the authority at insert time.
func (s *linkService) slugTaken(ctx context.Context, slug string) (bool, error) {
	if s.index != nil && !s.index.MaybeTaken(slug) {
		return false, nil
	}
	_, err := s.store.FindLinkBySlug(ctx, slug)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrLinkNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *linkService) Resolve(ctx context.Context, slug string, visit Visit) (*Resolution, error) {
	link, err := s.lookup(ctx, slug)
	if err != nil {
		return nil, err
	}

	switch link.State(s.now()) {
	case model.StateInactive:
		return nil, ErrNotFound
	case model.StateExpired:
		return nil, ErrExpired
	case model.StatePasswordGated:
		return nil, ErrPasswordRequired
	}

	s.dispatchClick(link, visit)
	return &Resolution{Slug: link.Slug, Target: link.Target}, nil
}

// dispatchClick hands the click to background accounting. Failures are
// logged and counted only.
func (s *linkService) dispatchClick(link *model.Link, visit Visit) {
	if s.clicks == nil {
		return
	}

	event := model.ClickEvent{
		ID:        uuid.NewString(),
		LinkID:    link.ID,
		Slug:      link.Slug,
		IP:        visit.IP,
		UserAgent: visit.UserAgent,
		Referer:   visit.Referer,
		Timestamp: s.now().UTC(),
	}
	if err := s.clicks.Dispatch(event); err != nil {
		infraPrometheus.ClicksLost.WithLabelValues("dispatch").Inc()
		s.logger.Warn("click dispatch failed",
			zap.String("slug", link.Slug),
			zap.String("link_id", link.ID),
			zap.Error(err),
		)
	}
}

func (s *linkService) Unlock(ctx context.Context, slug, password string) (*Resolution, error) {
	link, err := s.lookup(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !link.IsActive {
		return nil, ErrNotFound
	}
	if !link.Gated() {
		return nil, ErrNotGated
	}
	if password == "" || !s.hasher.Verify(password, *link.PasswordDigest) {
		return nil, ErrInvalidPassword
	}
	return &Resolution{Slug: link.Slug, Target: link.Target}, nil
}

func (s *linkService) PatchLink(ctx context.Context, slug string, input PatchLinkInput) (string, error) {
	link, err := s.store.FindLinkBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load link: %w", err)
	}

	update := repository.LinkUpdate{
		IsActive:       input.IsActive,
		ClearExpiresAt: input.ClearExpiresAt,
	}
	if input.ExpiresAt != nil && !input.ClearExpiresAt {
		expires := input.ExpiresAt.UTC()
		update.ExpiresAt = &expires
	}

	var updated *model.Link
	if input.RotateSlug {
		updated, err = s.rotate(ctx, link, update)
	} else {
		updated, err = s.store.UpdateLink(ctx, link.ID, update)
	}
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("update link: %w", err)
	}

	s.invalidate(ctx, link.Slug, updated.Slug)
	if s.index != nil {
		s.index.Add(updated.Slug)
	}
	if updated.Slug != link.Slug {
		s.logger.Info("slug rotated", zap.String("from", link.Slug), zap.String("to", updated.Slug))
	}
	return updated.Slug, nil
}

// rotate applies update together with a fresh slug, drawing again when the
// slug collides. Each attempt is a single store update, so a failed attempt
// leaves the link as it was.
func (s *linkService) rotate(ctx context.Context, link *model.Link, update repository.LinkUpdate) (*model.Link, error) {
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		slug, err := s.slugs.Generate(GeneratedSlugLength)
		if err != nil {
			return nil, fmt.Errorf("generate slug: %w", err)
		}
		if slug == link.Slug {
			continue
		}
		update.Slug = &slug

		updated, err := s.store.UpdateLink(ctx, link.ID, update)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, repository.ErrSlugExists) {
			return nil, err
		}
		s.logger.Warn("rotated slug collided, retrying",
			zap.String("slug", slug),
			zap.Int("attempt", attempt),
		)
	}
	return nil, fmt.Errorf("no free slug after %d attempts", maxSlugAttempts)
}

func (s *linkService) Stats(ctx context.Context, slug string) (*LinkStats, error) {
	link, err := s.GetLink(ctx, slug)
	if err != nil {
		return nil, err
	}

	clicks, err := s.store.ListRecentClicks(ctx, link.ID, RecentClicksLimit)
	if err != nil {
		return nil, fmt.Errorf("list clicks: %w", err)
	}
	if clicks == nil {
		clicks = []model.Click{}
	}

	return &LinkStats{
		Slug:         link.Slug,
		Target:       link.Target,
		IsActive:     link.IsActive,
		ExpiresAt:    link.ExpiresAt,
		TotalClicks:  link.TotalClicks,
		RecentClicks: clicks,
	}, nil
}

// GetLink loads a link regardless of its state; only absence is an error.
func (s *linkService) GetLink(ctx context.Context, slug string) (*model.Link, error) {
	link, err := s.store.FindLinkBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

// lookup serves the redirect and unlock paths, reading through the cache when
// one is configured. Cache failures fall back to the store.
func (s *linkService) lookup(ctx context.Context, slug string) (*model.Link, error) {
	if s.cache != nil {
		link, err := s.cache.Get(ctx, slug)
		if err != nil {
			s.logger.Warn("link cache read failed", zap.String("slug", slug), zap.Error(err))
		} else if link != nil {
			return link, nil
		}
	}

	link, err := s.GetLink(ctx, slug)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, link); err != nil {
			s.logger.Warn("link cache write failed", zap.String("slug", slug), zap.Error(err))
		}
	}
	return link, nil
}

func (s *linkService) invalidate(ctx context.Context, slugs ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, slugs...); err != nil {
		s.logger.Warn("link cache invalidation failed", zap.Strings("slugs", slugs), zap.Error(err))
	}
}
