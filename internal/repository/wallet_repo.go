package repository

import (
	"errors"

	"tutorly/internal/models"

	"gorm.io/gorm"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByUserID(userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, notFound(err, "wallet for user", userID)
	}
	return &w, nil
}

func (r *WalletRepository) GetOrCreate(userID uint, currency string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.Where("user_id = ?", userID).First(&w).Error
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w = models.Wallet{UserID: userID, Currency: currency}
	if err := r.db.Create(&w).Error; err != nil {
		if !IsDuplicate(err) {
			return nil, err
		}
		// Lost a creation race; the other row is as good as ours.
		if err := r.db.Where("user_id = ?", userID).First(&w).Error; err != nil {
			return nil, err
		}
	}
	return &w, nil
}

// GetForUpdate returns the wallet locked for the rest of the transaction, creating it if needed.
func (r *WalletRepository) GetForUpdate(userID uint, currency string) (*models.Wallet, error) {
	if _, err := r.GetOrCreate(userID, currency); err != nil {
		return nil, err
	}
	var w models.Wallet
	if err := forUpdate(r.db).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, notFound(err, "wallet for user", userID)
	}
	return &w, nil
}

// SaveBalances writes the balance columns of a wallet locked by GetForUpdate.
func (r *WalletRepository) SaveBalances(w *models.Wallet) error {
	return r.db.Model(w).Updates(map[string]interface{}{
		"balance_cents":  w.BalanceCents,
		"reserved_cents": w.ReservedCents,
	}).Error
}
