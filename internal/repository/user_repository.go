package repository

import (
	"context"

	"tuteck_exam_backend/internal/model"
	"tuteck_exam_backend/internal/util"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := r.DB.WithContext(ctx).Preload("Role").First(&u, id).Error; err != nil {
		return nil, notFound(err, util.ErrUserNotFound)
	}
	return &u, nil
}

// ListHierarchy reads the parent/role forest straight from the tables.
// It never goes through any authorization check.
func (r *UserRepository) ListHierarchy(ctx context.Context) ([]model.HierarchyNode, error) {
	var nodes []model.HierarchyNode
	err := r.DB.WithContext(ctx).Table("users").
		Select("users.id AS id, users.parent_id AS parent_id, roles.level AS role_level").
		Joins("JOIN roles ON roles.id = users.role_id").
		Where("users.deleted_at IS NULL").
		Scan(&nodes).Error
	return nodes, err
}
