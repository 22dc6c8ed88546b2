package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/visionhub/internal/domain/project"
	"github.com/geocoder89/visionhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type ProjectsStore interface {
	Create(ctx context.Context, ownerID string, req project.CreateProjectRequest) (project.Project, error)
	List(ctx context.Context, filter project.ListProjectsFilter) ([]project.Project, error)
	GetByID(ctx context.Context, id string) (project.Project, error)
	Archive(ctx context.Context, id, callerID string) (project.Project, error)
	IncrementViews(ctx context.Context, id string) (project.Project, error)
}

type ProjectsHandler struct {
	repo ProjectsStore
}

func NewProjectsHandler(repo ProjectsStore) *ProjectsHandler {
	return &ProjectsHandler{repo: repo}
}

type listProjectsQuery struct {
	Type string `form:"type" json:"type" binding:"omitempty,max=32,alphanum,lowercase"`
}

func (h *ProjectsHandler) ListProjects(ctx *gin.Context) {
	caller, ok := middlewares.CurrentUser(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Authentication required")
		return
	}

	var q listProjectsQuery
	if !BindQuery(ctx, &q) {
		return
	}

	// the owner always comes from the resolved identity
	filter := project.ListProjectsFilter{OwnerID: caller.ExternalID}
	if q.Type != "" {
		filter.Type = &q.Type
	}

	c, cancel := storeCtx(ctx)
	defer cancel()

	items, err := h.repo.List(c, filter)
	if err != nil {
		RespondInternal(ctx, "Could not list projects")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *ProjectsHandler) CreateProject(ctx *gin.Context) {
	caller, ok := middlewares.CurrentUser(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Authentication required")
		return
	}

	var req project.CreateProjectRequest
	if !BindJSON(ctx, &req) {
		return
	}

	c, cancel := storeCtx(ctx)
	defer cancel()

	p, err := h.repo.Create(c, caller.ExternalID, req)
	if err != nil {
		RespondInternal(ctx, "Could not create project")
		return
	}

	ctx.JSON(http.StatusCreated, p)
}

func (h *ProjectsHandler) GetProject(ctx *gin.Context) {
	caller, ok := middlewares.CurrentUser(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Authentication required")
		return
	}

	c, cancel := storeCtx(ctx)
	defer cancel()

	p, err := h.repo.GetByID(c, ctx.Param("id"))
	if err != nil {
		respondProjectError(ctx, err, "Could not fetch project")
		return
	}

	if !p.OwnedBy(caller.ExternalID) {
		RespondForbidden(ctx, "Not authorized for this project")
		return
	}

	ctx.JSON(http.StatusOK, p)
}

func (h *ProjectsHandler) ArchiveProject(ctx *gin.Context) {
	caller, ok := middlewares.CurrentUser(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Authentication required")
		return
	}

	c, cancel := storeCtx(ctx)
	defer cancel()

	p, err := h.repo.Archive(c, ctx.Param("id"), caller.ExternalID)
	if err != nil {
		respondProjectError(ctx, err, "Could not archive project")
		return
	}

	ctx.JSON(http.StatusOK, p)
}

// IncrementViews is open to every authenticated caller; the counter is public.
func (h *ProjectsHandler) IncrementViews(ctx *gin.Context) {
	if _, ok := middlewares.CurrentUser(ctx); !ok {
		RespondUnauthorized(ctx, "Authentication required")
		return
	}

	c, cancel := storeCtx(ctx)
	defer cancel()

	p, err := h.repo.IncrementViews(c, ctx.Param("id"))
	if err != nil {
		respondProjectError(ctx, err, "Could not record view")
		return
	}

	ctx.JSON(http.StatusOK, p)
}

func respondProjectError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, project.ErrNotFound):
		RespondNotFound(ctx, "Project not found")
	case errors.Is(err, project.ErrNotAuthorized):
		RespondForbidden(ctx, "Not authorized for this project")
	default:
		RespondInternal(ctx, fallback)
	}
}
