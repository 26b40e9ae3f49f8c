package episode

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const templateColumns = "id, name, description, content_style, prompt_template, template_data, is_active, created_at, updated_at"

// SaveTemplate inserts or replaces a content template by name.
func (s *Store) SaveTemplate(ctx context.Context, tpl *ContentTemplate) error {
	if tpl == nil {
		return errors.New("template is nil")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO content_templates (name, description, content_style, prompt_template, template_data, is_active, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET
            description = excluded.description,
            content_style = excluded.content_style,
            prompt_template = excluded.prompt_template,
            template_data = excluded.template_data,
            is_active = excluded.is_active,
            updated_at = excluded.updated_at`,
		tpl.Name,
		nullableString(tpl.Description),
		string(tpl.ContentStyle),
		tpl.PromptTemplate,
		encodeTemplateSections(tpl.Sections),
		boolToInt(tpl.IsActive),
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil && tpl.ID == 0 {
		tpl.ID = id
	}
	tpl.UpdatedAt = now
	return nil
}

// TemplateByName fetches a content template, or nil when absent.
func (s *Store) TemplateByName(ctx context.Context, name string) (*ContentTemplate, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+templateColumns+` FROM content_templates WHERE name = ?`,
		name,
	)
	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return tpl, nil
}

// TemplateForStyle returns the most recently updated active template for a
// style, or nil when none is stored. Retired templates never match.
func (s *Store) TemplateForStyle(ctx context.Context, style ContentStyle) (*ContentTemplate, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+templateColumns+` FROM content_templates
         WHERE content_style = ? AND is_active = 1 ORDER BY updated_at DESC LIMIT 1`,
		string(style),
	)
	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template for style: %w", err)
	}
	return tpl, nil
}

// ListTemplates returns all stored content templates ordered by name.
func (s *Store) ListTemplates(ctx context.Context) ([]*ContentTemplate, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+templateColumns+` FROM content_templates ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []*ContentTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// RemoveTemplate deletes a content template by name.
func (s *Store) RemoveTemplate(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content_templates WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanTemplate(scanner interface{ Scan(dest ...any) error }) (*ContentTemplate, error) {
	var (
		id           int64
		name         string
		description  sql.NullString
		styleStr     string
		prompt       string
		templateData sql.NullString
		isActive     sql.NullInt64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(&id, &name, &description, &styleStr, &prompt, &templateData, &isActive, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	tpl := &ContentTemplate{
		ID:             id,
		Name:           name,
		Description:    description.String,
		ContentStyle:   ContentStyle(styleStr),
		PromptTemplate: prompt,
		Sections:       decodeTemplateSections(templateData.String),
		IsActive:       isActive.Int64 != 0,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		tpl.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		tpl.UpdatedAt = updated
	}
	return tpl, nil
}

func encodeTemplateSections(sections []TemplateSection) any {
	if len(sections) == 0 {
		return nil
	}
	payload, err := json.Marshal(sections)
	if err != nil {
		return nil
	}
	return string(payload)
}

func decodeTemplateSections(raw string) []TemplateSection {
	if raw == "" {
		return nil
	}
	var sections []TemplateSection
	if err := json.Unmarshal([]byte(raw), &sections); err != nil {
		return nil
	}
	return sections
}
