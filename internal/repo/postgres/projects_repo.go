package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/visionhub/internal/domain/project"
	"github.com/geocoder89/visionhub/internal/observability"
	"github.com/geocoder89/visionhub/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const projectColumns = `id, title, description, icon, type, view_count, owner_id, archived, created_at, updated_at`

type ProjectsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewProjectsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ProjectsRepo {
	return &ProjectsRepo{pool: pool, prom: prom}
}

func (r *ProjectsRepo) Create(ctx context.Context, ownerID string, req project.CreateProjectRequest) (project.Project, error) {
	p := project.NewFromCreateRequest(ownerID, req)

	err := r.prom.ObserveDB("projects.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO projects (id, title, description, icon, type, view_count, owner_id, archived, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			p.ID, p.Title, p.Description, p.Icon, p.Type, p.ViewCount, p.OwnerID, p.Archived, p.CreatedAt, p.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return project.Project{}, err
	}

	return p, nil
}

func (r *ProjectsRepo) List(ctx context.Context, filter project.ListProjectsFilter) ([]project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE owner_id = $1 AND archived = FALSE`
	args := []any{filter.OwnerID}

	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}

	// newest first, id breaks ties so the order is stable
	query += " ORDER BY created_at DESC, id DESC"

	output := make([]project.Project, 0)

	err := r.prom.ObserveDB("projects.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p project.Project
			if err := scanProject(rows, &p); err != nil {
				return err
			}
			output = append(output, p)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return output, nil
}

func (r *ProjectsRepo) GetByID(ctx context.Context, id string) (project.Project, error) {
	if !utils.IsUUID(id) {
		return project.Project{}, project.ErrNotFound
	}

	var p project.Project
	err := r.prom.ObserveDB("projects.get_by_id", func() error {
		return scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id), &p)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}
		return project.Project{}, err
	}

	return p, nil
}

// Archive flags the project as archived if callerID owns it. The owner check
// and the update share one transaction with the row locked, so a concurrent
// archive cannot interleave.
func (r *ProjectsRepo) Archive(ctx context.Context, id, callerID string) (p project.Project, err error) {
	if !utils.IsUUID(id) {
		err = project.ErrNotFound
		return
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var ownerID string
	err = r.prom.ObserveDB("projects.archive.lock", func() error {
		return tx.QueryRow(ctx, `SELECT owner_id FROM projects WHERE id = $1 FOR UPDATE`, id).Scan(&ownerID)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = project.ErrNotFound
		}
		return
	}

	if ownerID != callerID {
		err = project.ErrNotAuthorized
		return
	}

	err = r.prom.ObserveDB("projects.archive.update", func() error {
		return scanProject(tx.QueryRow(ctx, `
			UPDATE projects
			SET archived = TRUE,
			    updated_at = CASE WHEN archived THEN updated_at ELSE NOW() END
			WHERE id = $1
			RETURNING `+projectColumns, id), &p)
	})

	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

// IncrementViews bumps the counter in a single statement so concurrent
// increments never lose updates.
func (r *ProjectsRepo) IncrementViews(ctx context.Context, id string) (project.Project, error) {
	if !utils.IsUUID(id) {
		return project.Project{}, project.ErrNotFound
	}

	var p project.Project
	err := r.prom.ObserveDB("projects.increment_views", func() error {
		return scanProject(r.pool.QueryRow(ctx, `
			UPDATE projects
			SET view_count = view_count + 1
			WHERE id = $1
			RETURNING `+projectColumns, id), &p)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}
		return project.Project{}, err
	}

	return p, nil
}

func scanProject(row pgx.Row, p *project.Project) error {
	return row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Icon,
		&p.Type,
		&p.ViewCount,
		&p.OwnerID,
		&p.Archived,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}
