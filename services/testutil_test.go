package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"publishing-api/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newTestDB opens a private in-memory SQLite database with the schema applied.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// stepClock returns a fresh instant one second later on every call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type pageOpt func(*models.Page)

func withStatus(status models.PageStatus) pageOpt {
	return func(p *models.Page) { p.Status = status }
}

func withScheduledFor(at time.Time) pageOpt {
	return func(p *models.Page) { p.ScheduledFor = &at }
}

func withUnpublishAt(at time.Time) pageOpt {
	return func(p *models.Page) { p.UnpublishAt = &at }
}

func createPage(t *testing.T, db *gorm.DB, title string, opts ...pageOpt) *models.Page {
	t.Helper()
	author := "author-1"
	page := &models.Page{
		Title:     title,
		Slug:      uuid.NewString(),
		CreatedBy: &author,
		UpdatedBy: &author,
	}
	for _, opt := range opts {
		opt(page)
	}
	require.NoError(t, db.Create(page).Error)
	return page
}

func reloadPage(t *testing.T, db *gorm.DB, id string) *models.Page {
	t.Helper()
	var page models.Page
	require.NoError(t, db.Where("id = ?", id).Take(&page).Error)
	return &page
}

func reloadWorkflow(t *testing.T, db *gorm.DB, pageID string) *models.PublishingWorkflow {
	t.Helper()
	wf, err := NewGormPublishingStore(db).GetWorkflow(context.Background(), pageID)
	require.NoError(t, err)
	return wf
}

func newTestService(db *gorm.DB, opts ...PublishingOption) *PublishingService {
	clock := newStepClock()
	return NewPublishingService(NewGormPublishingStore(db), append([]PublishingOption{WithClock(clock.Now)}, opts...)...)
}

var errInjected = errors.New("injected failure")

// failingPublishStore fails PublishPage, including inside transactions, so
// the workflow write that precedes it has to be rolled back.
type failingPublishStore struct {
	PublishingStore
}

func (f *failingPublishStore) PublishPage(ctx context.Context, pageID, actorID string, at time.Time) (*models.Page, error) {
	return nil, errInjected
}

func (f *failingPublishStore) Transaction(ctx context.Context, fn func(tx PublishingStore) error) error {
	return f.PublishingStore.Transaction(ctx, func(tx PublishingStore) error {
		return fn(&failingPublishStore{PublishingStore: tx})
	})
}

// recordingNotifier captures approval notifications.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *recordingNotifier) NotifyApprovalRequested(ctx context.Context, wf *models.PublishingWorkflow, page *models.Page) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, page.ID)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}
