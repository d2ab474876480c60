package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/config"
	"github.com/javajoker/dlms-backend/internal/events"
	"github.com/javajoker/dlms-backend/internal/metrics"
	"github.com/javajoker/dlms-backend/internal/testutil"
)

type recordingEmitter struct {
	mu  sync.Mutex
	got []events.Notification
}

func (r *recordingEmitter) Emit(_ context.Context, n events.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recordingEmitter) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	titles := make([]string, len(r.got))
	for i, n := range r.got {
		titles[i] = n.Title
	}
	return titles
}

type testEnv struct {
	db         *gorm.DB
	emitter    *recordingEmitter
	dispatcher *events.Dispatcher
	metrics    *metrics.Metrics
	cfg        *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	emitter := &recordingEmitter{}
	dispatcher := events.NewDispatcher(emitter, NewActivityService(db))
	t.Cleanup(dispatcher.Wait)

	return &testEnv{
		db:         db,
		emitter:    emitter,
		dispatcher: dispatcher,
		metrics:    metrics.New(prometheus.NewRegistry()),
		cfg:        testConfig(),
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Payment: config.PaymentConfig{
			DefaultCurrency: "ETB",
			LicenseFee:      1500,
		},
		Exam: config.ExamConfig{
			TheoryQuestionCount: 4,
			WindowOpensBefore:   120 * time.Minute,
			WindowClosesAfter:   240 * time.Minute,
			Timezone:            "UTC",
		},
		License: config.LicenseConfig{
			NumberPrefix:  "ETH",
			ValidityYears: 5,
			DefaultClass:  "B",
		},
	}
}

func (e *testEnv) scheduler() *ExamScheduler {
	return NewExamScheduler(e.db, NewExaminerAssigner(e.metrics), e.dispatcher, e.metrics, time.UTC)
}

func (e *testEnv) licenses() *LicenseService {
	return NewLicenseService(e.db, e.cfg.License, e.dispatcher, e.metrics)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
