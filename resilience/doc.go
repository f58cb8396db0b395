// Package resilience retries failing operations with exponential backoff.
//
//	db, err := resilience.Retry(ctx, resilience.RetryConfig{
//	    MaxAttempts: 5,
//	    OnRetry: func(attempt int, err error, wait time.Duration) {
//	        log.Warn("connect failed", logger.Fields("attempt", attempt))
//	    },
//	}, func(ctx context.Context) (*gorm.DB, error) {
//	    return gorm.Open(dialector, cfg)
//	})
//
// An *errors.AppError is retried only when it is marked Retryable. Context
// cancellation is never retried.
package resilience
