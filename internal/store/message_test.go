package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/murmurchat/murmur/internal/bus"
	"github.com/murmurchat/murmur/internal/transport"
	"go.uber.org/zap"
)

// mockTransport returns scripted responses and can block fetches to
// exercise interleavings.
type mockTransport struct {
	mu sync.Mutex

	fetchPages map[int][]transport.Message
	pagination transport.Pagination
	fetchErr   error
	fetchGate  chan struct{} // when set, FetchMessages blocks until it closes

	sendResp *transport.Message
	sendErr  error
	sends    int

	deleteErr error
	deletes   [][]string
}

func (m *mockTransport) FetchMessages(_ context.Context, chatID string, page, limit int) ([]transport.Message, transport.Pagination, error) {
	m.mu.Lock()
	gate := m.fetchGate
	msgs := m.fetchPages[page]
	pg := m.pagination
	err := m.fetchErr
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, transport.Pagination{}, err
	}
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	pg.CurrentPage = page
	return msgs, pg, nil
}

func (m *mockTransport) SendMessage(_ context.Context, chatID, content, kind string, media *transport.MediaFile) (*transport.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends++
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	if m.sendResp != nil {
		return m.sendResp, nil
	}
	return &transport.Message{
		ID:        "srv-1",
		ChatID:    chatID,
		Content:   content,
		Type:      kind,
		CreatedAt: time.Now(),
	}, nil
}

func (m *mockTransport) DeleteMessages(_ context.Context, chatID string, messageIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletes = append(m.deletes, messageIDs)
	return nil
}

func wireMsg(id string, age time.Duration) transport.Message {
	return transport.Message{
		ID:        id,
		ChatID:    "c1",
		Content:   "body-" + id,
		Type:      "text",
		CreatedAt: time.Now().Add(-age),
	}
}

func newTestStore(t *testing.T, mock *mockTransport) (*Store, *bus.Bus) {
	t.Helper()
	b := bus.New()
	logger, _ := zap.NewDevelopment()
	return NewStore(mock, b, logger), b
}

func TestLoadPageReplacesAndSorts(t *testing.T) {
	mock := &mockTransport{
		fetchPages: map[int][]transport.Message{
			1: {wireMsg("m3", time.Minute), wireMsg("m2", 2*time.Minute), wireMsg("m1", 3*time.Minute)},
		},
		pagination: transport.Pagination{TotalPages: 1, PageSize: 50, TotalMessages: 3},
	}
	s, _ := newTestStore(t, mock)

	if err := s.LoadPage(context.Background(), "c1", 1, 50); err != nil {
		t.Fatal(err)
	}

	msgs := s.Messages("c1")
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.After(msgs[i-1].CreatedAt) {
			t.Errorf("messages not descending at %d", i)
		}
	}
	if pg, ok := s.Pagination("c1"); !ok || pg.TotalMessages != 3 {
		t.Errorf("pagination = %+v, ok=%v", pg, ok)
	}
}

func TestLoadPageRespectsLimit(t *testing.T) {
	var page1 []transport.Message
	for i := 0; i < 10; i++ {
		page1 = append(page1, wireMsg(fmt.Sprintf("m%d", i), time.Duration(i)*time.Minute))
	}
	mock := &mockTransport{fetchPages: map[int][]transport.Message{1: page1}}
	s, _ := newTestStore(t, mock)

	if err := s.LoadPage(context.Background(), "c1", 1, 4); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Messages("c1")); got > 4 {
		t.Errorf("got %d messages, want <= 4", got)
	}
}

func TestLoadPageMergesOlderPages(t *testing.T) {
	mock := &mockTransport{
		fetchPages: map[int][]transport.Message{
			1: {wireMsg("m4", time.Minute), wireMsg("m3", 2*time.Minute)},
			2: {wireMsg("m3", 2*time.Minute), wireMsg("m2", 3*time.Minute), wireMsg("m1", 4*time.Minute)},
		},
	}
	s, _ := newTestStore(t, mock)

	if err := s.LoadPage(context.Background(), "c1", 1, 50); err != nil {
		t.Fatal(err)
	}
	if err := s.LoadPage(context.Background(), "c1", 2, 50); err != nil {
		t.Fatal(err)
	}

	msgs := s.Messages("c1")
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4 (m3 deduplicated)", len(msgs))
	}
	if msgs[0].ID != "m4" || msgs[3].ID != "m1" {
		t.Errorf("order = %v", idsOf(msgs))
	}
}

func TestLoadFailurePreservesState(t *testing.T) {
	mock := &mockTransport{
		fetchPages: map[int][]transport.Message{1: {wireMsg("m1", time.Minute)}},
	}
	s, _ := newTestStore(t, mock)
	if err := s.LoadPage(context.Background(), "c1", 1, 50); err != nil {
		t.Fatal(err)
	}

	mock.mu.Lock()
	mock.fetchErr = &transport.Error{Message: "boom"}
	mock.mu.Unlock()

	if err := s.LoadPage(context.Background(), "c1", 1, 50); err == nil {
		t.Fatal("expected load error")
	}
	if got := len(s.Messages("c1")); got != 1 {
		t.Errorf("state clobbered on failure: %d messages", got)
	}
	if s.LastError("c1") == "" {
		t.Error("error flag not set")
	}
	if s.LastError("c2") != "" {
		t.Error("error flag leaked to unrelated conversation")
	}
}

func TestStaleLoadDiscarded(t *testing.T) {
	gate := make(chan struct{})
	mock := &mockTransport{
		fetchPages: map[int][]transport.Message{1: {wireMsg("stale", time.Hour)}},
		fetchGate:  gate,
	}
	s, _ := newTestStore(t, mock)

	// First load blocks on the gate.
	firstDone := make(chan error, 1)
	go func() { firstDone <- s.LoadPage(context.Background(), "c1", 1, 50) }()
	time.Sleep(50 * time.Millisecond)

	// Second load completes first with fresher data.
	mock.mu.Lock()
	mock.fetchGate = nil
	mock.fetchPages = map[int][]transport.Message{1: {wireMsg("fresh", time.Minute)}}
	mock.mu.Unlock()
	if err := s.LoadPage(context.Background(), "c1", 1, 50); err != nil {
		t.Fatal(err)
	}

	// Release the stale response; it must not clobber the fresh one.
	close(gate)
	if err := <-firstDone; err != nil {
		t.Fatal(err)
	}

	msgs := s.Messages("c1")
	if len(msgs) != 1 || msgs[0].ID != "fresh" {
		t.Errorf("visible = %v, want [fresh]", idsOf(msgs))
	}
}

func TestSendRoundTrip(t *testing.T) {
	mock := &mockTransport{
		sendResp: &transport.Message{ID: "srv-42", ChatID: "c1", Content: "hello", Type: "text", CreatedAt: time.Now()},
	}
	s, b := newTestStore(t, mock)
	ch, unsub := b.Subscribe("message.sent", 10)
	defer unsub()

	msg, err := s.Send(context.Background(), "c1", "hello", KindText, nil, Sender{ID: "u1", Username: "ana"})
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "srv-42" || msg.Status != StatusConfirmed {
		t.Errorf("reconciled = %+v", msg)
	}

	msgs := s.Messages("c1")
	if len(msgs) != 1 {
		t.Fatalf("got %d entries, want exactly 1 (provisional absent)", len(msgs))
	}
	if msgs[0].ID != "srv-42" || msgs[0].Content != "hello" {
		t.Errorf("head = %+v", msgs[0])
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message.sent event")
	}
}

func TestSendFailureFlagsProvisional(t *testing.T) {
	mock := &mockTransport{sendErr: &transport.Error{Message: "no response from server"}}
	s, b := newTestStore(t, mock)
	ch, unsub := b.Subscribe("message.send_failed", 10)
	defer unsub()

	_, err := s.Send(context.Background(), "c1", "hello", KindText, nil, Sender{ID: "u1"})
	if err == nil {
		t.Fatal("expected send error")
	}

	msgs := s.Messages("c1")
	if len(msgs) != 1 {
		t.Fatalf("got %d entries, want 1 flagged entry", len(msgs))
	}
	if msgs[0].Status != StatusFailed {
		t.Errorf("status = %q, want failed (never indistinguishable from confirmed)", msgs[0].Status)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message.send_failed event")
	}
}

func TestSendIncrementsTotal(t *testing.T) {
	mock := &mockTransport{
		fetchPages: map[int][]transport.Message{1: {wireMsg("m1", time.Minute)}},
		pagination: transport.Pagination{TotalMessages: 1},
	}
	s, _ := newTestStore(t, mock)
	if err := s.LoadPage(context.Background(), "c1", 1, 50); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Send(context.Background(), "c1", "hi", KindText, nil, Sender{ID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if pg, _ := s.Pagination("c1"); pg.TotalMessages != 2 {
		t.Errorf("TotalMessages = %d, want 2", pg.TotalMessages)
	}
}

func TestDeleteConfirmedAndIdempotent(t *testing.T) {
	mock := &mockTransport{
		fetchPages: map[int][]transport.Message{
			1: {wireMsg("m3", time.Minute), wireMsg("m2", 2*time.Minute), wireMsg("m1", 3*time.Minute)},
		},
		pagination: transport.Pagination{TotalMessages: 3},
	}
	s, _ := newTestStore(t, mock)
	if err := s.LoadPage(context.Background(), "c1", 1, 50); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(context.Background(), "c1", []string{"m1", "m2"}); err != nil {
		t.Fatal(err)
	}
	if got := idsOf(s.Messages("c1")); len(got) != 1 || got[0] != "m3" {
		t.Errorf("visible = %v, want [m3]", got)
	}
	pg, _ := s.Pagination("c1")
	if pg.TotalMessages != 1 {
		t.Errorf("TotalMessages = %d, want 1", pg.TotalMessages)
	}

	// Deleting the same set again must not corrupt the counter.
	if err := s.Delete(context.Background(), "c1", []string{"m1", "m2"}); err != nil {
		t.Fatal(err)
	}
	pg, _ = s.Pagination("c1")
	if pg.TotalMessages != 1 {
		t.Errorf("TotalMessages after repeat delete = %d, want 1", pg.TotalMessages)
	}
}

func TestDeleteFailureRollsBackTombstones(t *testing.T) {
	mock := &mockTransport{
		fetchPages: map[int][]transport.Message{1: {wireMsg("m1", time.Minute)}},
		deleteErr:  &transport.Error{Message: "boom"},
	}
	s, _ := newTestStore(t, mock)
	if err := s.LoadPage(context.Background(), "c1", 1, 50); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(context.Background(), "c1", []string{"m1"}); err == nil {
		t.Fatal("expected delete error")
	}
	// The entry stays visible, and a later load may still return it.
	if got := len(s.Messages("c1")); got != 1 {
		t.Errorf("visible = %d, want 1 (delete not confirmed)", got)
	}
	mock.mu.Lock()
	mock.deleteErr = nil
	mock.mu.Unlock()
	if err := s.LoadPage(context.Background(), "c1", 1, 50); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Messages("c1")); got != 1 {
		t.Errorf("visible after reload = %d, want 1", got)
	}
}

func TestDeleteTombstonesSurviveOverlappingLoad(t *testing.T) {
	gate := make(chan struct{})
	mock := &mockTransport{
		fetchPages: map[int][]transport.Message{
			1: {wireMsg("m2", time.Minute), wireMsg("m1", 2*time.Minute)},
		},
		fetchGate: gate,
	}
	s, _ := newTestStore(t, mock)

	// A load is in flight while a delete confirms.
	loadDone := make(chan error, 1)
	go func() { loadDone <- s.LoadPage(context.Background(), "c1", 1, 50) }()
	time.Sleep(50 * time.Millisecond)

	if err := s.Delete(context.Background(), "c1", []string{"m1"}); err != nil {
		t.Fatal(err)
	}

	close(gate)
	if err := <-loadDone; err != nil {
		t.Fatal(err)
	}

	for _, m := range s.Messages("c1") {
		if m.ID == "m1" {
			t.Error("deleted message resurrected by overlapping load")
		}
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	mock := &mockTransport{
		fetchPages: map[int][]transport.Message{1: {wireMsg("m1", time.Minute)}},
	}
	s, _ := newTestStore(t, mock)
	if err := s.LoadPage(context.Background(), "c1", 1, 50); err != nil {
		t.Fatal(err)
	}

	s.MarkRead("c1", "m1", "u9")
	s.MarkRead("c1", "m1", "u9")

	msgs := s.Messages("c1")
	if got := len(msgs[0].ReadBy); got != 1 {
		t.Errorf("readBy grew to %d, want 1", got)
	}
}

func TestResetDropsEverything(t *testing.T) {
	mock := &mockTransport{
		fetchPages: map[int][]transport.Message{1: {wireMsg("m1", time.Minute)}},
	}
	s, _ := newTestStore(t, mock)
	if err := s.LoadPage(context.Background(), "c1", 1, 50); err != nil {
		t.Fatal(err)
	}

	s.Reset()
	if got := len(s.Messages("c1")); got != 0 {
		t.Errorf("messages after reset = %d, want 0", got)
	}
	if _, ok := s.Pagination("c1"); ok {
		t.Error("pagination survived reset")
	}
}

func idsOf(msgs []Message) []string {
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}
