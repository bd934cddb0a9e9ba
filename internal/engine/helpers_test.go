package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/ethiobingo/bingo-engine/internal/wallet"
)

// recordedEvent is one broadcast captured by the recorder.
type recordedEvent struct {
	Scope   string // "room", "room-except" or "user"
	Target  string // room id or user id
	Except  string // excluded user for room-except
	Event   string
	Payload any
}

// recorder implements Broadcaster and captures everything the engine
// publishes, in order.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) ToRoom(roomID string, event string, payload any) {
	r.append(recordedEvent{Scope: "room", Target: roomID, Event: event, Payload: payload})
}

func (r *recorder) ToRoomExcept(roomID string, exceptUserID string, event string, payload any) {
	r.append(recordedEvent{Scope: "room-except", Target: roomID, Except: exceptUserID, Event: event, Payload: payload})
}

func (r *recorder) ToUser(userID string, event string, payload any) {
	r.append(recordedEvent{Scope: "user", Target: userID, Event: event, Payload: payload})
}

func (r *recorder) append(e recordedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// ofType returns all captured events of one type, in publish order.
func (r *recorder) ofType(event string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// payoutCall records one dispatched payout.
type payoutCall struct {
	UserID    string
	Amount    int
	Reference string
}

// fakePayouts counts payout dispatches and can be forced to fail.
type fakePayouts struct {
	mu    sync.Mutex
	calls []payoutCall
	err   error
}

func (f *fakePayouts) Payout(_ context.Context, userID string, amount int, reference string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, payoutCall{UserID: userID, Amount: amount, Reference: reference})
	return "txn-test", nil
}

func (f *fakePayouts) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// gatedAccounts wraps a MemoryWallet and parks Deduct calls for one user
// until released, so tests can hold a confirmation inside the wallet call.
type gatedAccounts struct {
	inner     *wallet.MemoryWallet
	blockUser string
	entered   chan string
	release   chan struct{}
}

func (g *gatedAccounts) Balance(ctx context.Context, userID string) (int, error) {
	return g.inner.Balance(ctx, userID)
}

func (g *gatedAccounts) Deduct(ctx context.Context, userID string, amount int) error {
	if userID == g.blockUser {
		g.entered <- userID
		<-g.release
	}
	return g.inner.Deduct(ctx, userID, amount)
}

// testManager builds a manager around a mock clock, a recorder broadcaster,
// an in-memory accounts wallet and a counting payouts fake.
func testManager(t *testing.T, cfg Config) (*Manager, *quartz.Mock, *recorder, *wallet.MemoryWallet, *fakePayouts) {
	t.Helper()

	accounts := wallet.NewMemoryWallet()
	m, mock, rec, payouts := testManagerWithAccounts(t, cfg, accounts)
	return m, mock, rec, accounts, payouts
}

// testManagerWithAccounts is testManager with a caller-supplied accounts
// implementation.
func testManagerWithAccounts(t *testing.T, cfg Config, accounts wallet.Accounts) (*Manager, *quartz.Mock, *recorder, *fakePayouts) {
	t.Helper()

	mock := quartz.NewMock(t)
	rec := &recorder{}
	payouts := &fakePayouts{}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}

	m := NewManager(testLogger(), mock, accounts, payouts, rec, cfg)
	t.Cleanup(m.Stop)
	return m, mock, rec, payouts
}

// startCountdownRoom creates a room for the stake with its countdown ticker
// registered on the mock clock, so subsequent Advance calls land on it.
func startCountdownRoom(t *testing.T, m *Manager, mock *quartz.Mock, stake int) *Room {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	trap := mock.Trap().TickerFunc("countdown")
	defer trap.Close()

	room, err := m.GetOrCreateRoom(stake)
	require.NoError(t, err)
	trap.MustWait(ctx).MustRelease(ctx)
	return room
}

func strPtr(s string) *string { return &s }

// reachDrawing runs a room's countdown to zero and synchronises with its draw
// ticker registration, so subsequent draw-interval advances land on it.
func reachDrawing(t *testing.T, m *Manager, mock *quartz.Mock, room *Room) {
	t.Helper()

	advanceIntervals(t, mock, time.Second, m.cfg.CountdownSeconds-1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	trap := mock.Trap().TickerFunc("draw")
	defer trap.Close()
	advance(t, mock, time.Second)
	trap.MustWait(ctx).MustRelease(ctx)
}

// advance moves the mock clock and waits for all fired callbacks to finish.
func advance(t *testing.T, mock *quartz.Mock, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mock.Advance(d).MustWait(ctx)
}

// advanceIntervals advances the clock one interval at a time so every ticker
// fire completes before the next one is due.
func advanceIntervals(t *testing.T, mock *quartz.Mock, d time.Duration, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		advance(t, mock, d)
	}
}
