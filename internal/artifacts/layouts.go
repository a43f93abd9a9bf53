package artifacts

import (
	"context"
	"time"

	"github.com/fieldtrace/signalstudio/internal/apperr"
	"github.com/fieldtrace/signalstudio/internal/models"
)

// CreateLayout validates and persists a new layout owned by ownerID. The
// underlying file id is minted by the store itself, so the artifact is
// saved once to obtain it and once more with that id baked into the body.
func (s *Service) CreateLayout(ctx context.Context, ownerID, name, description string, body models.LayoutBody) (*models.Layout, error) {
	if err := ValidateLayout(name, description, body); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	layout := &models.Layout{
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		Body:        body,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	stored, err := s.store.SaveJSON(ctx, ownerID, models.CategoryLayouts, name+".json", layout, description)
	if err != nil {
		return nil, err
	}
	layout.ID = stored.ID
	if _, err := s.store.UpdateJSON(ctx, stored.ID, ownerID, layout); err != nil {
		return nil, err
	}
	return layout, nil
}

// GetLayout reads a layout by id; ownerID == "" is only satisfied by a
// process-global default ("reads from default storage are
// permitted to anyone").
func (s *Service) GetLayout(ctx context.Context, id, ownerID string) (*models.Layout, error) {
	var layout models.Layout
	if err := s.store.ReadJSON(ctx, id, ownerID, &layout); err != nil {
		return nil, err
	}
	return &layout, nil
}

// ListLayouts lists every layout visible to ownerID, optionally including
// process-global defaults.
func (s *Service) ListLayouts(ctx context.Context, ownerID string, includeDefault bool) ([]*models.Layout, error) {
	files, err := s.store.List(ctx, ownerID, models.CategoryLayouts, includeDefault)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Layout, 0, len(files))
	for _, f := range files {
		var layout models.Layout
		if err := s.store.ReadJSON(ctx, f.ID, f.OwnerID, &layout); err != nil {
			return nil, err
		}
		out = append(out, &layout)
	}
	return out, nil
}

// UpdateLayout replaces a layout's name/description/body and bumps its
// version; only the owner may write ("writes require
// ownership").
func (s *Service) UpdateLayout(ctx context.Context, id, ownerID, name, description string, body models.LayoutBody) (*models.Layout, error) {
	if err := ValidateLayout(name, description, body); err != nil {
		return nil, err
	}
	existing, err := s.GetLayout(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != ownerID {
		return nil, apperr.Forbidden("only the owner may modify this layout")
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

// DeleteLayout removes a layout owned by ownerID (defaults are immutable,
// enforced by the underlying store).
func (s *Service) DeleteLayout(ctx context.Context, id, ownerID string) error {
	return s.store.Delete(ctx, id, ownerID)
}
