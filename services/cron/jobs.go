package cron

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sahilchouksey/learnhub-api/model"
)

// PendingPurchaseTTL is how long a pending purchase may sit before the sweep
// marks it failed. Checkout sessions expire at the provider well before this.
const PendingPurchaseTTL = 24 * time.Hour

// ExpireStalePurchases marks pending purchases older than PendingPurchaseTTL
// as failed. Runs hourly. A late verified webhook still completes a swept
// row, so sweeping early never loses a real payment.
func (m *CronManager) ExpireStalePurchases() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "expire_stale_purchases"

	expired, err := m.purchases.ExpireStalePending(ctx, PendingPurchaseTTL)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to expire stale purchases: %w", err))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Expired %d stale pending purchases", expired))
}

// HealEnrollments grants enrollments for completed purchases that are missing
// them. Runs every 30 minutes; normally a no-op.
func (m *CronManager) HealEnrollments() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "heal_enrollments"

	healed, err := m.purchases.HealEnrollments(ctx)
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to heal enrollments: %w", err))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Healed %d missing enrollments", healed))
}

// CleanupOldData removes old data to keep the database clean
// Runs daily at 2 AM
func (m *CronManager) CleanupOldData() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	jobName := "cleanup_old_data"

	totalCleaned := 0

	// 1. Clean up expired JWT tokens from blacklist
	cleanedTokens, err := m.blacklist.CleanupExpiredTokens(ctx)
	if err != nil {
		log.Printf("[CRON] Failed to clean token blacklist: %v", err)
	} else {
		log.Printf("[CRON] Cleaned %d expired tokens", cleanedTokens)
		totalCleaned += int(cleanedTokens)
	}

	// 2. Clean up old cron job logs (keep only last 90 days)
	cutoffLogs := time.Now().Add(-90 * 24 * time.Hour)
	result := m.db.WithContext(ctx).Where("started_at < ?", cutoffLogs).Delete(&model.CronJobLog{})
	if result.Error != nil {
		log.Printf("[CRON] Failed to clean cron logs: %v", result.Error)
	} else {
		log.Printf("[CRON] Cleaned %d old cron logs", result.RowsAffected)
		totalCleaned += int(result.RowsAffected)
	}

	// 3. Clean up old gateway event logs (keep only last 180 days). The
	// ledger rows themselves are never deleted.
	cutoffEvents := time.Now().Add(-180 * 24 * time.Hour)
	result = m.db.WithContext(ctx).Where("received_at < ?", cutoffEvents).Delete(&model.PaymentGatewayEvent{})
	if result.Error != nil {
		log.Printf("[CRON] Failed to clean gateway events: %v", result.Error)
	} else {
		log.Printf("[CRON] Cleaned %d old gateway events", result.RowsAffected)
		totalCleaned += int(result.RowsAffected)
	}

	m.logJobComplete(jobName, fmt.Sprintf("Cleaned up %d total records", totalCleaned))
}
