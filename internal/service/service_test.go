package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"adgrid/internal/client"
	"adgrid/internal/events"
	"adgrid/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test_webhook_secret"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := client.InitDBClient("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db        *gorm.DB
	tracker   PurchaseTracker
	payments  PaymentService
	ads       AdService
	publisher *recordingPublisher
	purchases repository.PurchaseRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	purchaseRepo := repository.NewPurchaseRepository(db)
	tracker := NewPurchaseTracker(db, purchaseRepo)
	pub := &recordingPublisher{}

	return &fixture{
		db:        db,
		tracker:   tracker,
		payments:  NewPaymentService(testSecret, testSecret, tracker, repository.NewWebhookEventRepository(db), pub),
		ads:       NewAdService(repository.NewAdRepository(db), tracker, pub),
		publisher: pub,
		purchases: purchaseRepo,
	}
}

func intPtr(i int) *int { return &i }

func (f *fixture) pending(t *testing.T, orderID, userID string, box int) {
	t.Helper()
	require.NoError(t, f.tracker.MarkPending(context.Background(), userID, box, orderID))
}

// beforeUpdate runs fn once, inside the statement's transaction, just before
// the next UPDATE issued through db.
func beforeUpdate(t *testing.T, db *gorm.DB, name string, fn func(tx *gorm.DB) error) *bool {
	t.Helper()

	fired := false
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register(name, func(tx *gorm.DB) {
		if fired {
			return
		}
		fired = true
		if err := fn(tx.Session(&gorm.Session{NewDB: true})); err != nil {
			tx.AddError(err)
		}
	}))
	return &fired
}

func failUpdates(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:fail_update", func(tx *gorm.DB) {
		tx.AddError(errors.New("disk I/O error"))
	}))
}
