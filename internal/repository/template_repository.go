package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"wacampaign/internal/models"
)

type templateRepository struct {
	db *sql.DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sql.DB) TemplateRepository {
	return &templateRepository{db: db}
}

// Create creates a new template
func (r *templateRepository) Create(ctx context.Context, template *models.Template) error {
	components, err := json.Marshal(template.Components)
	if err != nil {
		return fmt.Errorf("failed to encode template components: %w", err)
	}

	query := `
		INSERT INTO templates (name, category, language, components)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err = r.db.QueryRowContext(
		ctx,
		query,
		template.Name,
		template.Category,
		template.Language,
		string(components),
	).Scan(&template.ID, &template.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	return nil
}

// GetByID retrieves a template by ID
func (r *templateRepository) GetByID(ctx context.Context, id int) (*models.Template, error) {
	query := `
		SELECT id, name, category, language, components, created_at
		FROM templates
		WHERE id = $1
	`

	template, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return template, nil
}

// List retrieves templates with pagination
func (r *templateRepository) List(ctx context.Context, limit, offset int) ([]*models.Template, error) {
	query := `
		SELECT id, name, category, language, components, created_at
		FROM templates
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := []*models.Template{}
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, template)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate templates: %w", err)
	}

	return templates, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	template := &models.Template{}
	var components []byte

	err := row.Scan(
		&template.ID,
		&template.Name,
		&template.Category,
		&template.Language,
		&components,
		&template.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeComponents(components, &template.Components); err != nil {
		return nil, err
	}

	return template, nil
}

func decodeComponents(raw []byte, dst *[]models.TemplateComponent) error {
	if len(raw) == 0 {
		*dst = []models.TemplateComponent{}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode template components: %w", err)
	}
	return nil
}
