// Package postgres provides a PostgreSQL-backed catalog.Store built on gorm.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ggoodman/drinks-catalog-go/catalog"
)

// DrinkModel is the row layout of the drinks table.
type DrinkModel struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	Title  string `gorm:"uniqueIndex;not null"`
	Recipe []byte `gorm:"type:jsonb;not null"`
}

func (DrinkModel) TableName() string { return "drinks" }

func toModel(d catalog.Drink) (DrinkModel, error) {
	recipe, err := json.Marshal(d.Recipe)
	if err != nil {
		return DrinkModel{}, fmt.Errorf("marshal recipe: %w", err)
	}
	return DrinkModel{ID: d.ID, Title: d.Title, Recipe: recipe}, nil
}

func (m DrinkModel) toDrink() (catalog.Drink, error) {
	var recipe catalog.Recipe
	if err := json.Unmarshal(m.Recipe, &recipe); err != nil {
		return catalog.Drink{}, fmt.Errorf("unmarshal recipe of drink %d: %w", m.ID, err)
	}
	return catalog.Drink{ID: m.ID, Title: m.Title, Recipe: recipe}, nil
}

// Store implements catalog.Store on PostgreSQL.
type Store struct {
	db *gorm.DB
}

var _ catalog.Store = (*Store)(nil)

// Open connects to dsn and migrates the drinks table.
func Open(ctx context.Context, dsn string) (*Store, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(ctx, gdb)
}

// New wraps an existing connection and migrates the drinks table. The
// connection should be opened with TranslateError so unique violations
// surface as catalog.ErrConflict.
func New(ctx context.Context, db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("gorm db is required")
	}
	if err := db.WithContext(ctx).AutoMigrate(&DrinkModel{}); err != nil {
		return nil, fmt.Errorf("migrate drinks: %w", err)
	}
	return &Store{db: db}, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return catalog.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return catalog.ErrConflict
	default:
		return err
	}
}

func (s *Store) List(ctx context.Context) ([]catalog.Drink, error) {
	var models []DrinkModel
	if err := s.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list drinks: %w", err)
	}
	out := make([]catalog.Drink, 0, len(models))
	for _, m := range models {
		d, err := m.toDrink()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id int64) (catalog.Drink, error) {
	var m DrinkModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return catalog.Drink{}, translate(err)
	}
	return m.toDrink()
}

func (s *Store) Create(ctx context.Context, d catalog.Drink) (catalog.Drink, error) {
	if err := d.Validate(); err != nil {
		return catalog.Drink{}, err
	}
	d.ID = 0
	m, err := toModel(d)
	if err != nil {
		return catalog.Drink{}, err
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return catalog.Drink{}, translate(err)
	}
	return m.toDrink()
}

func (s *Store) Update(ctx context.Context, id int64, u catalog.Update) (catalog.Drink, error) {
	var out catalog.Drink
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m DrinkModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		cur, err := m.toDrink()
		if err != nil {
			return err
		}
		next, err := u.Apply(cur)
		if err != nil {
			return err
		}
		nm, err := toModel(next)
		if err != nil {
			return err
		}
		if err := tx.Model(&DrinkModel{ID: id}).Updates(map[string]any{"title": nm.Title, "recipe": nm.Recipe}).Error; err != nil {
			return translate(err)
		}
		out = next
		return nil
	})
	if err != nil {
		return catalog.Drink{}, err
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&DrinkModel{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
