package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/questfall/walletgate/core"
)

type deviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *deviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) Create(ctx context.Context, device *core.Device) error {
	return r.db.WithContext(ctx).Create(device).Error
}

func (r *deviceRepository) Update(ctx context.Context, device *core.Device) error {
	return r.db.WithContext(ctx).Save(device).Error
}

func (r *deviceRepository) GetByDeviceIDAndUser(ctx context.Context, deviceID string, userID uuid.UUID) (*core.Device, error) {
	var device core.Device
	err := r.db.WithContext(ctx).
		First(&device, "device_id = ? AND user_id = ?", deviceID, userID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

func (r *deviceRepository) ListByDeviceID(ctx context.Context, deviceID string) ([]core.Device, error) {
	var devices []core.Device
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Find(&devices).Error
	return devices, err
}

func (r *deviceRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]core.Device, error) {
	var devices []core.Device
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&devices).Error
	return devices, err
}

func (r *deviceRepository) ResetForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&core.Device{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"is_active":        false,
			"wallet_addresses": datatypes.JSONSlice[string]{},
		}).Error
}
