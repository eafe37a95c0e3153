package repository

import (
	"context"

	"taskhub/internal/models"

	"gorm.io/gorm"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, p *models.Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProjectRepository) AddMember(ctx context.Context, projectID, userID uint) error {
	return r.db.WithContext(ctx).Create(&models.ProjectMember{ProjectID: projectID, UserID: userID}).Error
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uint) (*models.Project, error) {
	var p models.Project
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, "project")
	}
	return &p, nil
}

// IsMember reports whether the user owns the project or has a membership row.
func (r *ProjectRepository) IsMember(ctx context.Context, projectID, userID uint) (bool, error) {
	var owners int64
	err := r.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ? AND owner_id = ?", projectID, userID).Count(&owners).Error
	if err != nil {
		return false, err
	}
	if owners > 0 {
		return true, nil
	}
	var members int64
	err = r.db.WithContext(ctx).Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).Count(&members).Error
	return members > 0, err
}

// MemberIDs lists users with a membership row. The owner is included only if
// they also have one.
func (r *ProjectRepository) MemberIDs(ctx context.Context, projectID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ProjectMember{}).
		Where("project_id = ?", projectID).Order("user_id").Pluck("user_id", &ids).Error
	return ids, err
}
