package repository

import "gorm.io/gorm"

// pick runs on the caller's transaction when one is given.
func pick(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
