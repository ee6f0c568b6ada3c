package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/welldanyogia/webrana-inbox-backend/internal/models"
	"gorm.io/gorm"
)

// TeamRepository defines the interface for team data access
type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id uint) (*models.Team, error)
	GetByDomain(ctx context.Context, domain string) (*models.Team, error)
	List(ctx context.Context, activeOnly bool) ([]models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	Delete(ctx context.Context, id uint) error
}

type teamRepository struct {
	db *gorm.DB
}

// NewTeamRepository creates a new TeamRepository instance
func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &teamRepository{db: db}
}

// Create stores a team. The domain is lower-cased before insert.
func (r *teamRepository) Create(ctx context.Context, team *models.Team) error {
	team.Domain = strings.ToLower(strings.TrimSpace(team.Domain))
	active := team.IsActive
	if err := r.db.WithContext(ctx).Create(team).Error; err != nil {
		return wrapCreateError("team domain", team.Domain, err)
	}
	// a false IsActive is a zero value, so the column default won
	if !active {
		if err := r.db.WithContext(ctx).Model(team).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate team: %w", err)
		}
		team.IsActive = false
	}
	return nil
}

// GetByID retrieves a team by its ID
func (r *teamRepository) GetByID(ctx context.Context, id uint) (*models.Team, error) {
	var team models.Team
	result := r.db.WithContext(ctx).First(&team, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get team by ID: %w", result.Error)
	}
	return &team, nil
}

// GetByDomain retrieves the team owning a receiving domain (case-insensitive)
func (r *teamRepository) GetByDomain(ctx context.Context, domain string) (*models.Team, error) {
	var team models.Team
	result := r.db.WithContext(ctx).Where("domain = ?", strings.ToLower(domain)).First(&team)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get team by domain: %w", result.Error)
	}
	return &team, nil
}

// List retrieves all teams, optionally only active ones
func (r *teamRepository) List(ctx context.Context, activeOnly bool) ([]models.Team, error) {
	var teams []models.Team
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Order("domain ASC").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

// Update saves changes to an existing team
func (r *teamRepository) Update(ctx context.Context, team *models.Team) error {
	team.Domain = strings.ToLower(strings.TrimSpace(team.Domain))
	result := r.db.WithContext(ctx).Save(team)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("team domain '%s' already exists: %w", team.Domain, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to update team: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a team (cascade deletes threads, messages, attachments)
func (r *teamRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Team{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete team: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
