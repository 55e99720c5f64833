package models

import "gorm.io/gorm"

// CacheEntry is a key-value row backing the Postgres store
type CacheEntry struct {
	gorm.Model
	Key   string `gorm:"size:255;uniqueIndex;not null"`
	Value string `gorm:"type:text;not null"`
}
