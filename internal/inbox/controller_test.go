package inbox

import (
	"context"
	"errors"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/nhle/tempmail/internal/mailapi"
	"github.com/nhle/tempmail/internal/model"
)

// apiCall is a pending request to fakeAPI. The test answers it on reply.
type apiCall struct {
	kind  string
	token string
	id    string
	reply chan apiResult
}

type apiResult struct {
	session *model.Session
	msgs    []model.MessageSummary
	detail  *model.MessageDetail
	err     error
}

// fakeAPI blocks every request until the test replies, so responses can be
// delivered in any order.
type fakeAPI struct {
	calls       chan *apiCall
	inflight    int32
	maxInflight int32
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(chan *apiCall, 16)}
}

func (f *fakeAPI) roundTrip(kind, token, id string) apiResult {
	c := &apiCall{kind: kind, token: token, id: id, reply: make(chan apiResult, 1)}
	f.calls <- c
	return <-c.reply
}

func (f *fakeAPI) CreateSession(ctx context.Context) (*model.Session, error) {
	r := f.roundTrip("create", "", "")
	return r.session, r.err
}

func (f *fakeAPI) ListMessages(ctx context.Context, token string) ([]model.MessageSummary, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		max := atomic.LoadInt32(&f.maxInflight)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxInflight, max, n) {
			break
		}
	}
	r := f.roundTrip("list", token, "")
	return r.msgs, r.err
}

func (f *fakeAPI) GetMessage(ctx context.Context, token, id string) (*model.MessageDetail, error) {
	r := f.roundTrip("detail", token, id)
	return r.detail, r.err
}

func (f *fakeAPI) expect(t *testing.T, kind string) *apiCall {
	t.Helper()
	select {
	case c := <-f.calls:
		if c.kind != kind {
			t.Fatalf("expected %s call, got %s", kind, c.kind)
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s call", kind)
	}
	return nil
}

func (f *fakeAPI) expectNone(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected %s call (token %q)", c.kind, c.token)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeTimer struct {
	interval time.Duration
	fn       func()

	mu      gosync.Mutex
	stopped bool
}

func (t *fakeTimer) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fire runs the callback in the background, as a real tick would.
func (t *fakeTimer) fire() <-chan error {
	return async(func() error {
		if !t.isStopped() {
			t.fn()
		}
		return nil
	})
}

type fakeScheduler struct {
	mu     gosync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) Every(interval time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{interval: interval, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) active() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.isStopped() {
			out = append(out, t)
		}
	}
	return out
}

func (s *fakeScheduler) armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func async(fn func() error) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- fn() }()
	return ch
}

func wait(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for operation")
	}
	return nil
}

func newTestController(t *testing.T) (*Controller, *fakeAPI, *fakeScheduler) {
	t.Helper()
	api := newFakeAPI()
	sched := &fakeScheduler{}
	logger, _ := logtest.NewNullLogger()
	ctrl := New(api, Options{
		PollInterval: 7 * time.Second,
		Scheduler:    sched,
		Logger:       logger,
	})
	t.Cleanup(ctrl.Close)
	return ctrl, api, sched
}

// establish creates a session with the given token and returns its timer.
func establish(t *testing.T, ctrl *Controller, api *fakeAPI, sched *fakeScheduler, token string) *fakeTimer {
	t.Helper()
	done := async(func() error { return ctrl.CreateSession(context.Background()) })
	api.expect(t, "create").reply <- apiResult{
		session: &model.Session{Address: token + "@x.test", Token: token},
	}
	if err := wait(t, done); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	active := sched.active()
	if len(active) != 1 {
		t.Fatalf("expected 1 active timer, got %d", len(active))
	}
	return active[0]
}

func TestScenario_CreatePollOpenMessage(t *testing.T) {
	ctrl, api, sched := newTestController(t)

	done := async(func() error { return ctrl.CreateSession(context.Background()) })
	call := api.expect(t, "create")
	if st := ctrl.Snapshot(); !st.SessionLoading || st.HasSession() {
		t.Fatalf("expected loading without session, got %+v", st)
	}
	call.reply <- apiResult{session: &model.Session{Address: "abc@x.test", Token: "t1"}}
	if err := wait(t, done); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	st := ctrl.Snapshot()
	if st.SessionLoading || st.Session == nil || st.Session.Address != "abc@x.test" {
		t.Fatalf("unexpected state after create: %+v", st)
	}
	timers := sched.active()
	if len(timers) != 1 {
		t.Fatalf("expected 1 armed timer, got %d", len(timers))
	}
	if timers[0].interval != 7*time.Second {
		t.Errorf("expected 7s interval, got %v", timers[0].interval)
	}

	// Immediate poll on establishment: empty inbox.
	tick := timers[0].fire()
	poll := api.expect(t, "list")
	if poll.token != "t1" {
		t.Fatalf("expected poll with t1, got %q", poll.token)
	}
	poll.reply <- apiResult{msgs: []model.MessageSummary{}}
	wait(t, tick)
	st = ctrl.Snapshot()
	if st.Summaries == nil || len(st.Summaries) != 0 || st.Polling {
		t.Fatalf("expected empty inbox, got %+v", st)
	}

	// Next tick delivers one message.
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	summary := model.MessageSummary{
		ID:        "m1",
		From:      model.Sender{Address: "a@b.com", Name: "A"},
		Subject:   "Hi",
		CreatedAt: created,
	}
	tick = timers[0].fire()
	api.expect(t, "list").reply <- apiResult{msgs: []model.MessageSummary{summary}}
	wait(t, tick)
	st = ctrl.Snapshot()
	if len(st.Summaries) != 1 || st.Summaries[0] != summary {
		t.Fatalf("expected one row, got %+v", st.Summaries)
	}

	// Open it.
	done = async(func() error { return ctrl.FetchDetail(context.Background(), "m1") })
	call = api.expect(t, "detail")
	if call.id != "m1" || call.token != "t1" {
		t.Fatalf("unexpected detail call %+v", call)
	}
	st = ctrl.Snapshot()
	if !st.DetailOpen || !st.DetailLoading || st.SelectedDetail != nil {
		t.Fatalf("expected open loading panel, got %+v", st)
	}
	call.reply <- apiResult{detail: &model.MessageDetail{
		MessageSummary: summary,
		Text:           "hello",
		HTML:           []string{"<p>hello</p>"},
	}}
	if err := wait(t, done); err != nil {
		t.Fatalf("FetchDetail: %v", err)
	}
	st = ctrl.Snapshot()
	if st.DetailLoading || st.SelectedDetail == nil || st.SelectedDetail.Text != "hello" {
		t.Fatalf("expected loaded detail, got %+v", st)
	}
	if !st.DetailOpen {
		t.Fatal("detail panel should remain open")
	}
}

func TestCreateSession_OnlyLatestApplies(t *testing.T) {
	ctrl, api, sched := newTestController(t)

	first := async(func() error { return ctrl.CreateSession(context.Background()) })
	firstCall := api.expect(t, "create")
	second := async(func() error { return ctrl.CreateSession(context.Background()) })
	secondCall := api.expect(t, "create")

	secondCall.reply <- apiResult{session: &model.Session{Address: "two@x.test", Token: "t2"}}
	if err := wait(t, second); err != nil {
		t.Fatalf("second CreateSession: %v", err)
	}

	// The superseded response lands late and must be ignored.
	firstCall.reply <- apiResult{session: &model.Session{Address: "one@x.test", Token: "t1"}}
	if err := wait(t, first); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}

	st := ctrl.Snapshot()
	if st.Session == nil || st.Session.Token != "t2" {
		t.Fatalf("expected t2 session, got %+v", st.Session)
	}
	if n := len(sched.active()); n != 1 {
		t.Fatalf("expected 1 active timer, got %d", n)
	}
	if n := sched.armed(); n != 1 {
		t.Fatalf("superseded response must not arm a timer, armed %d", n)
	}
}

func TestCreateSession_FailureArmsNoTimer(t *testing.T) {
	ctrl, api, sched := newTestController(t)

	done := async(func() error { return ctrl.CreateSession(context.Background()) })
	api.expect(t, "create").reply <- apiResult{err: errors.New("dial tcp: connection refused")}

	err := wait(t, done)
	if !model.IsCategory(err, model.ErrSessionCreationFailed) {
		t.Fatalf("expected session creation failure, got %v", err)
	}

	st := ctrl.Snapshot()
	if st.HasSession() || st.SessionLoading {
		t.Fatalf("expected no session and not loading, got %+v", st)
	}
	if st.LastError == nil || st.LastError.Category != model.ErrSessionCreationFailed {
		t.Fatalf("expected SessionCreationFailed, got %+v", st.LastError)
	}
	if st.LastError.Key != model.KeyErrorCreateSession {
		t.Errorf("unexpected dictionary key %q", st.LastError.Key)
	}
	if sched.armed() != 0 {
		t.Fatalf("expected no timer, armed %d", sched.armed())
	}
	api.expectNone(t)
}

func TestCreateSession_ReplacingClearsInboxAndTimer(t *testing.T) {
	ctrl, api, sched := newTestController(t)

	timer := establish(t, ctrl, api, sched, "t1")
	tick := timer.fire()
	api.expect(t, "list").reply <- apiResult{msgs: []model.MessageSummary{{ID: "m1"}}}
	wait(t, tick)

	done := async(func() error { return ctrl.CreateSession(context.Background()) })
	call := api.expect(t, "create")
	st := ctrl.Snapshot()
	if st.HasSession() || len(st.Summaries) != 0 {
		t.Fatalf("expected cleared state while creating, got %+v", st)
	}
	if !timer.isStopped() {
		t.Fatal("old timer must be disarmed when a new session is requested")
	}
	call.reply <- apiResult{session: &model.Session{Address: "b@x.test", Token: "t2"}}
	if err := wait(t, done); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if n := len(sched.active()); n != 1 {
		t.Fatalf("expected 1 active timer, got %d", n)
	}
}

func TestTimer_OnePerSessionAfterRepeatedReplacement(t *testing.T) {
	ctrl, api, sched := newTestController(t)

	for _, tok := range []string{"t1", "t2", "t3", "t4"} {
		establish(t, ctrl, api, sched, tok)
	}
	active := sched.active()
	if len(active) != 1 {
		t.Fatalf("expected 1 active timer, got %d", len(active))
	}
	if sched.armed() != 4 {
		t.Fatalf("expected 4 timers armed over time, got %d", sched.armed())
	}

	tick := active[0].fire()
	if call := api.expect(t, "list"); call.token != "t4" {
		t.Fatalf("active timer polls with %q, want t4", call.token)
	} else {
		call.reply <- apiResult{}
	}
	wait(t, tick)
}

func TestPollOnce_DropsWhileInFlight(t *testing.T) {
	ctrl, api, sched := newTestController(t)
	establish(t, ctrl, api, sched, "t1")

	first := async(func() error { return ctrl.PollOnce(context.Background(), "t1") })
	call := api.expect(t, "list")

	if !ctrl.Snapshot().Polling {
		t.Fatal("expected polling flag while in flight")
	}
	for i := 0; i < 3; i++ {
		if err := ctrl.PollOnce(context.Background(), "t1"); !errors.Is(err, ErrPollInFlight) {
			t.Fatalf("expected ErrPollInFlight, got %v", err)
		}
	}
	if err := ctrl.Refresh(context.Background()); !errors.Is(err, ErrPollInFlight) {
		t.Fatalf("expected ErrPollInFlight from Refresh, got %v", err)
	}
	api.expectNone(t)

	call.reply <- apiResult{msgs: []model.MessageSummary{{ID: "m1"}}}
	if err := wait(t, first); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if n := atomic.LoadInt32(&api.maxInflight); n != 1 {
		t.Fatalf("expected at most 1 concurrent poll, saw %d", n)
	}

	// Guard is released after completion.
	second := async(func() error { return ctrl.PollOnce(context.Background(), "t1") })
	api.expect(t, "list").reply <- apiResult{}
	if err := wait(t, second); err != nil {
		t.Fatalf("second PollOnce: %v", err)
	}
}

func TestPollOnce_RejectsStaleToken(t *testing.T) {
	ctrl, api, sched := newTestController(t)

	if err := ctrl.PollOnce(context.Background(), "t1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	establish(t, ctrl, api, sched, "t1")
	if err := ctrl.PollOnce(context.Background(), "old"); !errors.Is(err, ErrStaleToken) {
		t.Fatalf("expected ErrStaleToken, got %v", err)
	}
	api.expectNone(t)
}

func TestPollOnce_UnauthorizedExpiresSession(t *testing.T) {
	ctrl, api, sched := newTestController(t)
	timer := establish(t, ctrl, api, sched, "t1")

	tick := timer.fire()
	api.expect(t, "list").reply <- apiResult{msgs: []model.MessageSummary{{ID: "m1"}}}
	wait(t, tick)

	done := async(func() error { return ctrl.PollOnce(context.Background(), "t1") })
	api.expect(t, "list").reply <- apiResult{err: &mailapi.AuthError{Method: "GET", Path: "/api/emails"}}
	err := wait(t, done)
	if !model.IsCategory(err, model.ErrSessionExpired) {
		t.Fatalf("expected SessionExpired, got %v", err)
	}

	st := ctrl.Snapshot()
	if st.HasSession() || st.Summaries != nil || st.Polling {
		t.Fatalf("expected cleared session state, got %+v", st)
	}
	if st.LastError == nil || st.LastError.Category != model.ErrSessionExpired {
		t.Fatalf("expected SessionExpired error, got %+v", st.LastError)
	}
	if !timer.isStopped() || len(sched.active()) != 0 {
		t.Fatal("expected poll timer disarmed")
	}

	// Neither the stale timer nor a direct call may reuse the token.
	wait(t, timer.fire())
	if err := ctrl.PollOnce(context.Background(), "t1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	api.expectNone(t)

	// Polling resumes only after a new session.
	next := establish(t, ctrl, api, sched, "t2")
	tick = next.fire()
	if call := api.expect(t, "list"); call.token != "t2" {
		t.Fatalf("expected poll with t2, got %q", call.token)
	} else {
		call.reply <- apiResult{}
	}
	wait(t, tick)
	if st := ctrl.Snapshot(); st.LastError != nil {
		t.Fatalf("expected error cleared by new session, got %+v", st.LastError)
	}
}

func TestPollOnce_TransientFailureKeepsInbox(t *testing.T) {
	api := newFakeAPI()
	sched := &fakeScheduler{}
	logger, hook := logtest.NewNullLogger()
	ctrl := New(api, Options{Scheduler: sched, Logger: logger})
	t.Cleanup(ctrl.Close)

	timer := establish(t, ctrl, api, sched, "t1")
	tick := timer.fire()
	api.expect(t, "list").reply <- apiResult{msgs: []model.MessageSummary{{ID: "m1"}, {ID: "m2"}}}
	wait(t, tick)

	done := async(func() error { return ctrl.PollOnce(context.Background(), "t1") })
	api.expect(t, "list").reply <- apiResult{err: &mailapi.StatusError{StatusCode: 503}}
	if err := wait(t, done); !model.IsCategory(err, model.ErrPollTransient) {
		t.Fatalf("expected transient failure, got %v", err)
	}

	st := ctrl.Snapshot()
	if !st.HasSession() || len(st.Summaries) != 2 {
		t.Fatalf("expected session and inbox retained, got %+v", st)
	}
	if st.LastError == nil || st.LastError.Category != model.ErrPollTransient {
		t.Fatalf("expected transient error, got %+v", st.LastError)
	}
	if timer.isStopped() {
		t.Fatal("timer must keep running after a transient failure")
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected warn log entry, got %+v", entry)
	}
	if entry.Data["server_error"] != true {
		t.Fatalf("expected 503 to be logged as a server error, got %+v", entry.Data)
	}

	// Recovers on the next tick.
	tick = timer.fire()
	api.expect(t, "list").reply <- apiResult{msgs: []model.MessageSummary{{ID: "m3"}}}
	wait(t, tick)
	st = ctrl.Snapshot()
	if st.LastError != nil || len(st.Summaries) != 1 || st.Summaries[0].ID != "m3" {
		t.Fatalf("expected recovered inbox, got %+v", st)
	}
}

func TestPollOnce_ResponseAfterReplacementIgnored(t *testing.T) {
	ctrl, api, sched := newTestController(t)
	establish(t, ctrl, api, sched, "t1")

	stale := async(func() error { return ctrl.PollOnce(context.Background(), "t1") })
	staleCall := api.expect(t, "list")

	timer := establish(t, ctrl, api, sched, "t2")
	if ctrl.Snapshot().Polling {
		t.Fatal("new session must not inherit the old in-flight poll")
	}

	staleCall.reply <- apiResult{msgs: []model.MessageSummary{{ID: "old"}}}
	if err := wait(t, stale); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if st := ctrl.Snapshot(); len(st.Summaries) != 0 {
		t.Fatalf("stale summaries applied: %+v", st.Summaries)
	}

	tick := timer.fire()
	api.expect(t, "list").reply <- apiResult{msgs: []model.MessageSummary{{ID: "new"}}}
	wait(t, tick)
	if st := ctrl.Snapshot(); len(st.Summaries) != 1 || st.Summaries[0].ID != "new" {
		t.Fatalf("expected new inbox, got %+v", st.Summaries)
	}
}

func TestPollOnce_DoesNotTouchSelectedDetail(t *testing.T) {
	ctrl, api, sched := newTestController(t)
	establish(t, ctrl, api, sched, "t1")

	done := async(func() error { return ctrl.FetchDetail(context.Background(), "m1") })
	api.expect(t, "detail").reply <- apiResult{detail: &model.MessageDetail{
		MessageSummary: model.MessageSummary{ID: "m1"},
	}}
	wait(t, done)

	done = async(func() error { return ctrl.Refresh(context.Background()) })
	api.expect(t, "list").reply <- apiResult{msgs: []model.MessageSummary{}}
	wait(t, done)

	st := ctrl.Snapshot()
	if st.SelectedDetail == nil || st.SelectedDetail.ID != "m1" || !st.DetailOpen {
		t.Fatalf("poll changed the detail panel: %+v", st)
	}
}

func TestFetchDetail_NoSessionIsNoop(t *testing.T) {
	ctrl, api, _ := newTestController(t)

	if err := ctrl.FetchDetail(context.Background(), "m1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if st := ctrl.Snapshot(); st.DetailOpen || st.DetailLoading {
		t.Fatalf("expected closed panel, got %+v", st)
	}
	api.expectNone(t)
}

func TestFetchDetail_CloseBeforeResponse(t *testing.T) {
	ctrl, api, sched := newTestController(t)
	establish(t, ctrl, api, sched, "t1")

	done := async(func() error { return ctrl.FetchDetail(context.Background(), "m1") })
	call := api.expect(t, "detail")
	ctrl.CloseDetail()

	call.reply <- apiResult{detail: &model.MessageDetail{MessageSummary: model.MessageSummary{ID: "m1"}}}
	if err := wait(t, done); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}

	st := ctrl.Snapshot()
	if st.SelectedDetail != nil || st.DetailOpen || st.DetailLoading {
		t.Fatalf("late detail applied after close: %+v", st)
	}
}

func TestFetchDetail_ReopenDiscardsEarlierResponse(t *testing.T) {
	ctrl, api, sched := newTestController(t)
	establish(t, ctrl, api, sched, "t1")

	first := async(func() error { return ctrl.FetchDetail(context.Background(), "m1") })
	firstCall := api.expect(t, "detail")
	second := async(func() error { return ctrl.FetchDetail(context.Background(), "m2") })
	secondCall := api.expect(t, "detail")

	secondCall.reply <- apiResult{detail: &model.MessageDetail{MessageSummary: model.MessageSummary{ID: "m2"}}}
	wait(t, second)
	firstCall.reply <- apiResult{detail: &model.MessageDetail{MessageSummary: model.MessageSummary{ID: "m1"}}}
	if err := wait(t, first); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}

	if st := ctrl.Snapshot(); st.SelectedDetail == nil || st.SelectedDetail.ID != "m2" {
		t.Fatalf("expected m2 shown, got %+v", st.SelectedDetail)
	}
}

func TestFetchDetail_FailureScopedToPanel(t *testing.T) {
	ctrl, api, sched := newTestController(t)
	establish(t, ctrl, api, sched, "t1")

	done := async(func() error { return ctrl.FetchDetail(context.Background(), "m1") })
	api.expect(t, "detail").reply <- apiResult{err: &mailapi.StatusError{StatusCode: 404}}
	if err := wait(t, done); !model.IsCategory(err, model.ErrDetailLoadFailed) {
		t.Fatalf("expected DetailLoadFailed, got %v", err)
	}

	st := ctrl.Snapshot()
	if st.LastError != nil {
		t.Fatalf("detail failure leaked into LastError: %+v", st.LastError)
	}
	if st.DetailError == nil || st.DetailError.Category != model.ErrDetailLoadFailed {
		t.Fatalf("expected detail error, got %+v", st.DetailError)
	}
	if !st.DetailOpen || st.DetailLoading || st.SelectedDetail != nil {
		t.Fatalf("unexpected panel state %+v", st)
	}
	if !st.HasSession() {
		t.Fatal("detail failure must not end the session")
	}

	ctrl.CloseDetail()
	if st := ctrl.Snapshot(); st.DetailError != nil {
		t.Fatalf("expected detail error cleared on close, got %+v", st.DetailError)
	}
}

func TestFetchDetail_UnauthorizedExpiresSession(t *testing.T) {
	ctrl, api, sched := newTestController(t)
	timer := establish(t, ctrl, api, sched, "t1")

	done := async(func() error { return ctrl.FetchDetail(context.Background(), "m1") })
	api.expect(t, "detail").reply <- apiResult{err: &mailapi.AuthError{}}
	if err := wait(t, done); !model.IsCategory(err, model.ErrSessionExpired) {
		t.Fatalf("expected SessionExpired, got %v", err)
	}

	st := ctrl.Snapshot()
	if st.HasSession() || st.DetailOpen || st.DetailError != nil {
		t.Fatalf("expected session and panel cleared, got %+v", st)
	}
	if !timer.isStopped() {
		t.Fatal("expected timer disarmed")
	}
}

func TestPollAndDetailRunConcurrently(t *testing.T) {
	ctrl, api, sched := newTestController(t)
	establish(t, ctrl, api, sched, "t1")

	poll := async(func() error { return ctrl.Refresh(context.Background()) })
	pollCall := api.expect(t, "list")
	detail := async(func() error { return ctrl.FetchDetail(context.Background(), "m1") })
	detailCall := api.expect(t, "detail")

	st := ctrl.Snapshot()
	if !st.Polling || !st.DetailLoading {
		t.Fatalf("expected both in flight, got %+v", st)
	}

	detailCall.reply <- apiResult{detail: &model.MessageDetail{MessageSummary: model.MessageSummary{ID: "m1"}}}
	if err := wait(t, detail); err != nil {
		t.Fatalf("FetchDetail: %v", err)
	}
	pollCall.reply <- apiResult{msgs: []model.MessageSummary{{ID: "m1"}, {ID: "m2"}}}
	if err := wait(t, poll); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	st = ctrl.Snapshot()
	if len(st.Summaries) != 2 || st.SelectedDetail == nil || st.SelectedDetail.ID != "m1" {
		t.Fatalf("state slices corrupted: %+v", st)
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	ctrl, api, sched := newTestController(t)
	establish(t, ctrl, api, sched, "t1")

	done := async(func() error { return ctrl.Refresh(context.Background()) })
	api.expect(t, "list").reply <- apiResult{msgs: []model.MessageSummary{{ID: "m1"}}}
	wait(t, done)

	snap := ctrl.Snapshot()
	snap.Summaries[0].ID = "changed"
	snap.Session.Token = "changed"

	st := ctrl.Snapshot()
	if st.Summaries[0].ID != "m1" || st.Session.Token != "t1" {
		t.Fatalf("snapshot mutation leaked into controller: %+v", st)
	}
}

func TestChangesNotifiesObservers(t *testing.T) {
	ctrl, api, sched := newTestController(t)

	// Drain anything pending.
	select {
	case <-ctrl.Changes():
	default:
	}

	establish(t, ctrl, api, sched, "t1")
	select {
	case <-ctrl.Changes():
	case <-time.After(time.Second):
		t.Fatal("expected change notification")
	}
}

func TestClose_RejectsOperations(t *testing.T) {
	ctrl, api, sched := newTestController(t)
	timer := establish(t, ctrl, api, sched, "t1")

	ctrl.Close()
	if !timer.isStopped() {
		t.Fatal("expected timer disarmed on close")
	}
	if err := ctrl.CreateSession(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	api.expectNone(t)
}
