package services

import (
	"context"

	"gorm.io/gorm"
)

// TransactionManager runs fn inside one database transaction; any returned error
// rolls back every write fn made.
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTxManager struct {
	db *gorm.DB
}

// NewTransactionManager wraps db's transaction support.
func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &gormTxManager{db: db}
}

func (m *gormTxManager) WithinTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}
