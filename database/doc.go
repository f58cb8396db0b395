// Package database wraps a GORM SQLite connection with retrying connect,
// connection pooling, transactions, health checks and logging through
// the logger package.
//
//	db, err := database.Open(ctx, database.Config{Enabled: true, DSN: "records.db"}, log)
//	defer db.Close()
//
//	err = db.WithTransaction(ctx, func(tx *gorm.DB) error {
//	    return tx.Create(&row).Error
//	})
//
// Errors are translated to AppErrors with FromDatabase.
package database
