package factory

import (
	"time"

	"github.com/mcoot/avalon/internal/dependencies/mocks"
	"github.com/mcoot/avalon/internal/metrics"
	"github.com/mcoot/avalon/internal/storage/memory"
	"github.com/mcoot/avalon/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	logger := testutil.NopLogger()
	store := memory.New(logger)
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, mockClock, mockRandom, metrics.New(), logger)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

// QueueDeal makes the next StartGame keep roles in the listed order and pick leaderIdx
func (t *TestApp) QueueDeal(playerCount, leaderIdx int) {
	for i := playerCount - 1; i > 0; i-- {
		t.MockRandom.QueueIntn(i)
	}
	t.MockRandom.QueueIntn(leaderIdx)
}
