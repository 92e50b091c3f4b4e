package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// getByField is a generic helper that fetches a single record by a field match.
// Returns notFoundErr when no record matches.
func getByField[T any](ctx context.Context, db *gorm.DB, field string, value any, notFoundErr error) (*T, error) {
	var record T
	err := db.WithContext(ctx).Where(field+" = ?", value).First(&record).Error
	if err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &record, nil
}

// listAll is a generic helper that fetches all records of a model,
// optionally ordered.
func listAll[T any](ctx context.Context, db *gorm.DB, order string) ([]*T, error) {
	var records []*T
	query := db.WithContext(ctx)
	if order != "" {
		query = query.Order(order)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// listByField is a generic helper that fetches all records matching a field,
// optionally ordered.
func listByField[T any](ctx context.Context, db *gorm.DB, field string, value any, order string) ([]*T, error) {
	var records []*T
	query := db.WithContext(ctx).Where(field+" = ?", value)
	if order != "" {
		query = query.Order(order)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// createRecord inserts a record, translating unique constraint violations
// into duplicateErr.
func createRecord[T any](ctx context.Context, db *gorm.DB, record *T, duplicateErr error) error {
	if err := db.WithContext(ctx).Create(record).Error; err != nil {
		if isUniqueConstraintError(err) {
			return duplicateErr
		}
		return err
	}
	return nil
}

// upsertIgnore inserts a record and silently ignores conflicts on the
// primary key or unique index. Used for idempotent junction rows such as
// role assignments and reactions.
func upsertIgnore[T any](ctx context.Context, db *gorm.DB, record *T) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record).Error
}

// deleteByField removes all records matching a field. Deleting zero rows is
// not an error; callers that need existence checks should fetch first.
func deleteByField[T any](ctx context.Context, db *gorm.DB, field string, value any) error {
	var model T
	return db.WithContext(ctx).Where(field+" = ?", value).Delete(&model).Error
}

// deleteWhere removes all records matching an arbitrary condition and
// reports how many rows were removed.
func deleteWhere[T any](ctx context.Context, db *gorm.DB, query string, args ...any) (int64, error) {
	var model T
	result := db.WithContext(ctx).Where(query, args...).Delete(&model)
	return result.RowsAffected, result.Error
}
