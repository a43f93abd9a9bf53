package artifacts

import (
	"context"
	"time"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/models"
	"github.com/fieldtrace/signalstudio/internal/sandbox"
)

// CreateScript validates and persists a new block-based analysis script
// owned by ownerID, following the same mint-then-rewrite pattern as
// CreateLayout so the artifact's id matches its backing file.
func (s *Service) CreateScript(ctx context.Context, ownerID, name, description string, body models.ScriptBody) (*models.Script, error) {
	if err := ValidateScript(name, description, body); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	script := &models.Script{
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		Body:        body,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	stored, err := s.store.SaveJSON(ctx, ownerID, models.CategoryAnalyses, name+".json", script, description)
	if err != nil {
		return nil, err
	}
	script.ID = stored.ID
	if _, err := s.store.UpdateJSON(ctx, stored.ID, ownerID, script); err != nil {
		return nil, err
	}
	return script, nil
}

// GetScript reads a script by id; ownerID == "" is only satisfied by a
// process-global default.
func (s *Service) GetScript(ctx context.Context, id, ownerID string) (*models.Script, error) {
	var script models.Script
	if err := s.store.ReadJSON(ctx, id, ownerID, &script); err != nil {
		return nil, err
	}
	return &script, nil
}

// ListScripts lists every script visible to ownerID, optionally including
// process-global defaults.
func (s *Service) ListScripts(ctx context.Context, ownerID string, includeDefault bool) ([]*models.Script, error) {
	files, err := s.store.List(ctx, ownerID, models.CategoryAnalyses, includeDefault)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Script, 0, len(files))
	for _, f := range files {
		// Generated reports share the analyses category; they are not
		// scripts and are listed through their own endpoint family.
		if kind, _ := f.Metadata["artifact"].(string); kind == "report" {
			continue
		}
		var script models.Script
		if err := s.store.ReadJSON(ctx, f.ID, f.OwnerID, &script); err != nil {
			return nil, err
		}
		out = append(out, &script)
	}
	return out, nil
}

// UpdateScript replaces a script's name/description/body and bumps its
// version; only the owner may write.
func (s *Service) UpdateScript(ctx context.Context, id, ownerID, name, description string, body models.ScriptBody) (*models.Script, error) {
	if err := ValidateScript(name, description, body); err != nil {
		return nil, err
	}
	existing, err := s.GetScript(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != ownerID {
		return nil, apperr.Forbidden("only the owner may modify this script")
	}
	existing.Name = name
	existing.Description = description
	existing.Body = body
	existing.Version++
	existing.UpdatedAt = time.Now().UTC()
	if _, err := s.store.UpdateJSON(ctx, id, ownerID, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteScript removes a script owned by ownerID (defaults are immutable,
// enforced by the underlying store).
func (s *Service) DeleteScript(ctx context.Context, id, ownerID string) error {
	return s.store.Delete(ctx, id, ownerID)
}

// RenderScript turns a script's blocks into generated source text via the
// block code generator, re-validating any custom-code block's safety as part
// of rendering.
func (s *Service) RenderScript(ctx context.Context, id, ownerID string) (string, error) {
	script, err := s.GetScript(ctx, id, ownerID)
	if err != nil {
		return "", err
	}
	return sandbox.RenderBlocks(script.Body)
}
