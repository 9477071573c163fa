package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"campuspush/internal/types"
)

type fakeDirectory struct {
	mu      sync.Mutex
	members map[string][]types.RecipientID
	err     error
	calls   int
}

func (f *fakeDirectory) MembersOf(_ context.Context, campus string) ([]types.RecipientID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.members[campus], nil
}

type fakeTokens struct {
	mu        sync.Mutex
	byUser    map[types.RecipientID][]types.PushEndpoint
	err       error
	calls     int
	lastQuery []types.RecipientID
}

func newFakeTokens(endpoints ...types.PushEndpoint) *fakeTokens {
	f := &fakeTokens{byUser: map[types.RecipientID][]types.PushEndpoint{}}
	for _, ep := range endpoints {
		f.byUser[ep.Recipient] = append(f.byUser[ep.Recipient], ep)
	}
	return f
}

// EndpointsFor mirrors "user_id = ANY($1)": duplicates in ids do not
// duplicate rows.
func (f *fakeTokens) EndpointsFor(_ context.Context, ids []types.RecipientID) ([]types.PushEndpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastQuery = ids
	if f.err != nil {
		return nil, f.err
	}
	seen := map[types.RecipientID]bool{}
	var out []types.PushEndpoint
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, f.byUser[id]...)
	}
	return out, nil
}

type fakeLogStore struct {
	mu      sync.Mutex
	batches [][]types.NotificationLogEntry
	err     error
	delay   time.Duration
	ctxErrs []error
}

func (f *fakeLogStore) InsertBatch(ctx context.Context, entries []types.NotificationLogEntry) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, entries)
	return nil
}

func (f *fakeLogStore) entries() []types.NotificationLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []types.NotificationLogEntry
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

// fakeGateway answers per token. Tokens listed in fail return an error;
// tokens in panics panic.
type fakeGateway struct {
	mu     sync.Mutex
	fail   map[string]error
	panics map[string]bool
	delay  time.Duration
	sent   []string
	msgs   []types.PushMessage

	inFlight    int
	maxInFlight int
}

func (f *fakeGateway) Send(ctx context.Context, msg types.PushMessage, ep types.PushEndpoint) (json.RawMessage, error) {
	f.mu.Lock()
	f.sent = append(f.sent, ep.Token)
	f.msgs = append(f.msgs, msg)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panics[ep.Token] {
		panic("gateway exploded")
	}
	if err := f.fail[ep.Token]; err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return json.RawMessage(`{"success":1,"token":"` + ep.Token + `"}`), nil
}

func (f *fakeGateway) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type recordingMetrics struct {
	mu         sync.Mutex
	successes  int
	failures   int
	latencies  int
	logWrites  int
	logErrors  int
	logEntries int
}

func (m *recordingMetrics) RecordDispatch(_ context.Context, _ types.AudienceMode, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.successes++
	} else {
		m.failures++
	}
}

func (m *recordingMetrics) RecordDispatchLatency(context.Context, types.AudienceMode, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *recordingMetrics) RecordLogWrite(_ context.Context, entries int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logWrites++
	m.logEntries += entries
	if err != nil {
		m.logErrors++
	}
}

func ep(user, token string) types.PushEndpoint {
	return types.PushEndpoint{Recipient: types.RecipientID(user), Token: token, Platform: "android"}
}

// guardedGateway adds a batch guard to fakeGateway. While open is set every
// batch is rejected; otherwise the batch runs and its error is recorded.
type guardedGateway struct {
	*fakeGateway
	open    bool
	results []error
}

func (g *guardedGateway) Guard(fn func() error) error {
	if g.open {
		return types.NewAppError(types.ErrCodeUpstreamGateway, "circuit breaker is open; push gateway unavailable", nil)
	}
	err := fn()
	g.results = append(g.results, err)
	return err
}
