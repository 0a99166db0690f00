package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sifan077/linkgate/internal/app/model"
	"github.com/sifan077/linkgate/internal/app/repository"
)

// Store is an in-process LinkStore used for local runs and tests. The slug
// index plays the role of the database unique constraint.
//
// mu guards the link and slug indexes only. Each link carries its own lock for
// its row and clicks, so traffic on different slugs never contends.
type Store struct {
	mu    sync.RWMutex
	links map[string]*entry // by id
	slugs map[string]string // slug -> id
	seen  sync.Map          // click ids
}

type entry struct {
	mu     sync.Mutex
	link   model.Link
	clicks []model.Click
}

var _ repository.LinkStore = (*Store)(nil)

func New() *Store {
	return &Store{
		links: make(map[string]*entry),
		slugs: make(map[string]string),
	}
}

func (s *Store) byID(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.links[id]
	return e, ok
}

func (s *Store) FindLinkBySlug(_ context.Context, slug string) (*model.Link, error) {
	s.mu.RLock()
	e, ok := s.links[s.slugs[slug]]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrLinkNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// A rotation may have moved the link off this slug in between.
	if e.link.Slug != slug {
		return nil, repository.ErrLinkNotFound
	}
	link := e.link
	return &link, nil
}

func (s *Store) InsertLink(_ context.Context, link *model.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.slugs[link.Slug]; exists {
		return repository.ErrSlugExists
	}
	s.links[link.ID] = &entry{link: *link}
	s.slugs[link.Slug] = link.ID
	return nil
}

func (s *Store) UpdateLink(_ context.Context, id string, update repository.LinkUpdate) (*model.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.links[id]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	current := &e.link

	// Validate before mutating so a failed update leaves the link untouched.
	if update.Slug != nil && *update.Slug != current.Slug {
		if _, taken := s.slugs[*update.Slug]; taken {
			return nil, repository.ErrSlugExists
		}
	}

	if update.Slug != nil && *update.Slug != current.Slug {
		delete(s.slugs, current.Slug)
		s.slugs[*update.Slug] = id
		current.Slug = *update.Slug
	}
	if update.IsActive != nil {
		current.IsActive = *update.IsActive
	}
	if update.ClearExpiresAt {
		current.ExpiresAt = nil
	} else if update.ExpiresAt != nil {
		expires := *update.ExpiresAt
		current.ExpiresAt = &expires
	}

	link := *current
	return &link, nil
}

func (s *Store) InsertClickAndIncrement(_ context.Context, linkID string, click *model.Click) error {
	e, ok := s.byID(linkID)
	if !ok {
		return repository.ErrLinkNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := s.seen.LoadOrStore(click.ID, struct{}{}); dup {
		return repository.ErrClickExists
	}
	click.LinkID = linkID
	e.clicks = append(e.clicks, *click)
	e.link.TotalClicks++
	return nil
}

func (s *Store) ListRecentClicks(_ context.Context, linkID string, limit int) ([]model.Click, error) {
	if limit <= 0 {
		limit = 50
	}
	e, ok := s.byID(linkID)
	if !ok {
		return []model.Click{}, nil
	}

	e.mu.Lock()
	result := make([]model.Click, len(e.clicks))
	copy(result, e.clicks)
	e.mu.Unlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].At.After(result[j].At)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ClickCount returns the number of stored clicks for a link.
func (s *Store) ClickCount(linkID string) int {
	e, ok := s.byID(linkID)
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clicks)
}
