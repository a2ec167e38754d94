package web

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DatabaseCartStore persists carts using GORM. It shares the identity store's
// database handle rather than opening its own connection.
type DatabaseCartStore struct {
	db *gorm.DB
}

type cartItemRecord struct {
	UserID    string  `gorm:"column:user_id;primaryKey"`
	ProductID string  `gorm:"column:product_id;primaryKey"`
	Title     string  `gorm:"column:title;not null"`
	Price     float64 `gorm:"column:price;not null"`
	Quantity  int     `gorm:"column:quantity;not null"`
}

func (cartItemRecord) TableName() string {
	return "cart_items"
}

// NewDatabaseCartStore constructs a GORM-backed store over an open handle.
func NewDatabaseCartStore(ctx context.Context, db *gorm.DB) (*DatabaseCartStore, error) {
	if db == nil {
		return nil, fmt.Errorf("cart.database.open: nil database handle")
	}
	if migrateErr := db.WithContext(ctx).AutoMigrate(&cartItemRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("cart.database.migrate: %w", migrateErr)
	}
	return &DatabaseCartStore{db: db}, nil
}

func (store *DatabaseCartStore) Items(ctx context.Context, userID string) ([]CartItem, error) {
	var records []cartItemRecord
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("product_id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("cart.database.items: %w", err)
	}
	items := make([]CartItem, 0, len(records))
	for _, record := range records {
		items = append(items, CartItem{
			ProductID: record.ProductID,
			Title:     record.Title,
			Price:     record.Price,
			Quantity:  record.Quantity,
		})
	}
	return items, nil
}

func (store *DatabaseCartStore) Add(ctx context.Context, userID string, item CartItem) error {
	if item.ProductID == "" {
		return fmt.Errorf("cart.database.add: empty product id")
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	record := cartItemRecord{
		UserID:    userID,
		ProductID: item.ProductID,
		Title:     item.Title,
		Price:     item.Price,
		Quantity:  item.Quantity,
	}
	err := store.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity": gorm.Expr("cart_items.quantity + ?", item.Quantity),
			"title":    item.Title,
			"price":    item.Price,
		}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("cart.database.add: %w", err)
	}
	return nil
}

func (store *DatabaseCartStore) Remove(ctx context.Context, userID string, productID string) error {
	query := store.db.WithContext(ctx).Where("user_id = ?", userID)
	if productID != "" {
		query = query.Where("product_id = ?", productID)
	}
	if err := query.Delete(&cartItemRecord{}).Error; err != nil {
		return fmt.Errorf("cart.database.remove: %w", err)
	}
	return nil
}

func (store *DatabaseCartStore) SetQuantity(ctx context.Context, userID string, productID string, quantity int) error {
	if quantity <= 0 {
		result := store.db.WithContext(ctx).
			Where("user_id = ? AND product_id = ?", userID, productID).
			Delete(&cartItemRecord{})
		if result.Error != nil {
			return fmt.Errorf("cart.database.set_quantity: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("cart.database.set_quantity: %w", ErrCartItemNotFound)
		}
		return nil
	}

	result := store.db.WithContext(ctx).Model(&cartItemRecord{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Update("quantity", quantity)
	if result.Error != nil {
		return fmt.Errorf("cart.database.set_quantity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var record cartItemRecord
		findErr := store.db.WithContext(ctx).
			Where("user_id = ? AND product_id = ?", userID, productID).
			Take(&record).Error
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("cart.database.set_quantity: %w", ErrCartItemNotFound)
		}
		if findErr != nil {
			return fmt.Errorf("cart.database.set_quantity: %w", findErr)
		}
	}
	return nil
}
