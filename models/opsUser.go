package models

import (
	"context"
	"time"

	"github.com/cedarpos/pos_backend/config"
	"github.com/cedarpos/pos_backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// OpsUser is a back-office operator. Ops endpoints authenticate with a JWT
// minted from these credentials; there is no self-service signup surface.
type OpsUser struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name      string    `gorm:"size:100" json:"name"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      string    `gorm:"size:20;not null;default:'ops'" json:"role"`
	IsActive  *bool     `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (user OpsUser) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[OpsUser](user.Username)
}

// CreateOpsUser hashes the password and stores the operator. Username is
// globally unique; ops users are not tenant rows.
func CreateOpsUser(ctx context.Context, username string, name string, password string, role string) (*OpsUser, error) {
	if username == "" || password == "" {
		return nil, utils.NewValidationError("username and password are required")
	}
	if role == "" {
		role = "ops"
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := OpsUser{
		Username: username,
		Name:     name,
		Password: string(hashed),
		Role:     role,
		IsActive: utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyOpsLogin checks credentials and returns the operator on success.
func VerifyOpsLogin(ctx context.Context, username string, password string) (*OpsUser, error) {
	db := config.GetDB()

	cached, err := utils.RetrieveRedis[OpsUser](username)
	if err != nil {
		return nil, err
	}
	user := OpsUser{}
	if cached != nil {
		user = *cached
	} else {
		err = db.WithContext(ctx).Model(&OpsUser{}).Where("username = ?", username).Take(&user).Error
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewUnauthorizedError("invalid username or password")
		}
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedis[OpsUser](&user, username); err != nil {
			config.LogError(config.GetLogger(), "models", "VerifyOpsLogin", "cache store failed", username, err)
		}
	}

	err = utils.ComparePassword(user.Password, password)
	if err == bcrypt.ErrMismatchedHashAndPassword {
		return nil, utils.NewUnauthorizedError("invalid username or password")
	}
	if err != nil {
		return nil, err
	}
	if user.IsActive == nil || !*user.IsActive {
		return nil, utils.NewUnauthorizedError("user is disabled")
	}
	return &user, nil
}
