package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/geocoder89/visionhub/internal/domain/project"
)

type projectEntry struct {
	project.Project
	seq uint64
}

type ProjectsRepo struct {
	mu    sync.RWMutex
	items map[string]projectEntry
	seq   uint64
}

func NewProjectsRepo() *ProjectsRepo {
	return &ProjectsRepo{
		items: make(map[string]projectEntry),
	}
}

func (r *ProjectsRepo) Create(_ context.Context, ownerID string, req project.CreateProjectRequest) (project.Project, error) {
	p := project.NewFromCreateRequest(ownerID, req)

	r.mu.Lock()
	r.seq++
	r.items[p.ID] = projectEntry{Project: p, seq: r.seq}
	r.mu.Unlock()

	return p, nil
}

func (r *ProjectsRepo) List(_ context.Context, filter project.ListProjectsFilter) ([]project.Project, error) {
	r.mu.RLock()
	matched := make([]projectEntry, 0)
	for _, e := range r.items {
		if e.Matches(filter) {
			matched = append(matched, e)
		}
	}
	r.mu.RUnlock()

	// newest first; insertion order settles equal timestamps
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})

	out := make([]project.Project, 0, len(matched))
	for _, e := range matched {
		out = append(out, e.Project)
	}
	return out, nil
}

func (r *ProjectsRepo) GetByID(_ context.Context, id string) (project.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[id]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	return e.Project, nil
}

func (r *ProjectsRepo) Archive(_ context.Context, id, callerID string) (project.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	if e.OwnerID != callerID {
		return project.Project{}, project.ErrNotAuthorized
	}

	if !e.Archived {
		e.Archived = true
		e.UpdatedAt = nowUTC()
		r.items[id] = e
	}
	return e.Project, nil
}

func (r *ProjectsRepo) IncrementViews(_ context.Context, id string) (project.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}

	e.ViewCount++
	r.items[id] = e
	return e.Project, nil
}
