package repository

import (
	"context"

	"github.com/ryoozeen/RCS/pkg/models"

	"gorm.io/gorm"
)

// OperatorRepository is the read side of the operator accounts, used by the
// admin API. Enrollment goes through the relay's credential store.
type OperatorRepository interface {
	List(ctx context.Context, limit, offset int) ([]models.Operator, int64, error)
	FindByLoginID(ctx context.Context, loginID string) (*models.Operator, error)
}

// operatorRepository is the GORM implementation of OperatorRepository.
type operatorRepository struct {
	db *gorm.DB
}

func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &operatorRepository{db: db}
}

func (r *operatorRepository) List(ctx context.Context, limit, offset int) ([]models.Operator, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Operator{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var operators []models.Operator
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&operators).Error
	if err != nil {
		return nil, 0, err
	}
	return operators, total, nil
}

func (r *operatorRepository) FindByLoginID(ctx context.Context, loginID string) (*models.Operator, error) {
	var operator models.Operator
	// return nil rather than a zero-value operator when nothing matches
	if err := r.db.WithContext(ctx).Where("login_id = ?", loginID).First(&operator).Error; err != nil {
		return nil, err
	}
	return &operator, nil
}
