package chathub

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/logging"
	"complaintdesk/backend/internal/metrics"
	"complaintdesk/backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateClosed State = iota
	StateJoining
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateJoining:
		return "joining"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// LogPolicy decides what happens to the message log on Close.
type LogPolicy int

const (
	// DiscardLog empties the log when the session closes.
	DiscardLog LogPolicy = iota
	// RetainLog keeps the log readable after Close and across a reopen of
	// the same complaint.
	RetainLog
)

// EventKind tells what an Event reports.
type EventKind int

const (
	EventMessageAppended EventKind = iota + 1
	EventStateChanged
	EventConnectionLost
)

// Event is pushed on Session.Events.
type Event struct {
	Kind    EventKind
	State   State
	Message models.ChatMessage
	Err     error
}

var errClosedWhileJoining = errors.New("session closed while joining")

// Session is the live conversation of one complaint. It is safe for
// concurrent use.
type Session struct {
	dialer      Dialer
	log         *zap.Logger
	metrics     *metrics.Metrics
	joinTimeout time.Duration
	policy      LogPolicy
	now         func() time.Time

	events chan Event

	mu          sync.Mutex
	state       State
	complaintID models.ComplaintID
	conn        Conn
	// epoch changes on every open and close; late callbacks carrying an old
	// epoch are ignored.
	epoch    uint64
	messages []models.ChatMessage
	// sent holds nonces of local messages whose echo has not been seen.
	sent map[string]struct{}
	err  error
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// WithMetrics records chat activity on m.
func WithMetrics(m *metrics.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithJoinTimeout bounds how long Open waits for the room.
func WithJoinTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.joinTimeout = d }
}

// WithLogPolicy sets what Close does with the log.
func WithLogPolicy(p LogPolicy) SessionOption {
	return func(s *Session) { s.policy = p }
}

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession creates a closed session that will join rooms through d.
func NewSession(d Dialer, opts ...SessionOption) *Session {
	s := &Session{
		dialer:      d,
		joinTimeout: config.DefaultChatJoinTimeout,
		now:         time.Now,
		events:      make(chan Event, config.ChatEventBuffer),
		sent:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrNop(s.log)
	return s
}

// Events delivers appends, state changes and connection loss. Events are
// dropped when nobody keeps up with the buffer.
func (s *Session) Events() <-chan Event { return s.events }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ComplaintID returns the complaint of the current or last room.
func (s *Session) ComplaintID() models.ComplaintID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complaintID
}

// Messages returns a copy of the log.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatMessage(nil), s.messages...)
}

// Err returns the ConnectionLost error of the last drop, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Open joins the room of id. It fails with InvalidState unless the session
// is closed, and with a Connection error when the room cannot be joined
// within the join timeout.
func (s *Session) Open(ctx context.Context, id models.ComplaintID) error {
	const op = "chathub.Open"

	if strings.TrimSpace(string(id)) == "" {
		return apperr.Validation(op, "complaint id is required")
	}

	s.mu.Lock()
	if s.state != StateClosed {
		state := s.state
		s.mu.Unlock()
		return apperr.InvalidState(op, "session is "+state.String())
	}
	if s.policy == DiscardLog || s.complaintID != id {
		s.messages = nil
	}
	s.complaintID = id
	s.sent = make(map[string]struct{})
	s.err = nil
	s.epoch++
	epoch := s.epoch
	s.setStateLocked(StateJoining)
	s.mu.Unlock()

	log := s.log.With(zap.String("complaint_id", string(id)))
	log.Debug("joining chat room")

	conn, err := s.dial(ctx, id)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		s.observeSession("aborted")
		return apperr.Connection(op, errClosedWhileJoining)
	}
	if err != nil {
		s.epoch++
		s.setStateLocked(StateClosed)
		s.mu.Unlock()
		log.Warn("failed to join chat room", zap.Error(err))
		s.observeSession("failed")
		return apperr.Connection(op, err)
	}
	s.conn = conn
	s.setStateLocked(StateOpen)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ChatOpenSession.Inc()
	}
	s.observeSession("opened")
	log.Info("chat room joined")

	go s.pump(epoch, conn)
	return nil
}

// dial runs the dialer under the join timeout. A dialer that ignores its
// context still cannot hold Open past the timeout.
func (s *Session) dial(ctx context.Context, id models.ComplaintID) (Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, s.joinTimeout)
	defer cancel()

	type result struct {
		conn Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := s.dialer.Dial(dctx, id)
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		if r.err == nil && r.conn == nil {
			return nil, errors.New("dialer returned no connection")
		}
		return r.conn, r.err
	case <-dctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, dctx.Err()
	}
}

// Send appends a user message to the log and queues it for the room.
// Blank text is rejected without touching the log or the transport.
func (s *Session) Send(text string) (models.ChatMessage, error) {
	const op = "chathub.Send"

	if strings.TrimSpace(text) == "" {
		return models.ChatMessage{}, apperr.Validation(op, "message text is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return models.ChatMessage{}, apperr.InvalidState(op, "session is "+s.state.String())
	}

	msg := models.ChatMessage{
		ComplaintID: s.complaintID,
		Sender:      models.SenderUser,
		Text:        text,
		Timestamp:   s.now(),
		Nonce:       uuid.NewString(),
	}
	if err := s.conn.Send(msg); err != nil {
		s.log.Warn("failed to queue chat message", zap.String("complaint_id", string(s.complaintID)), zap.Error(err))
		return models.ChatMessage{}, apperr.Connection(op, err)
	}

	s.messages = append(s.messages, msg)
	s.sent[msg.Nonce] = struct{}{}
	s.emitLocked(Event{Kind: EventMessageAppended, State: s.state, Message: msg})
	if s.metrics != nil {
		s.metrics.ChatMessages.WithLabelValues("outbound").Inc()
	}
	return msg, nil
}

// Close leaves the room. Closing a closed session does nothing.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	wasOpen := s.state == StateOpen
	conn := s.conn
	s.conn = nil
	s.epoch++
	if s.policy == DiscardLog {
		s.messages = nil
	}
	s.sent = make(map[string]struct{})
	s.setStateLocked(StateClosed)
	id := s.complaintID
	s.mu.Unlock()

	if wasOpen && s.metrics != nil {
		s.metrics.ChatOpenSession.Dec()
	}
	s.observeSession("closed")
	s.log.Info("chat room left", zap.String("complaint_id", string(id)))

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// pump moves inbound messages into the log until the conn ends.
func (s *Session) pump(epoch uint64, conn Conn) {
	for msg := range conn.Incoming() {
		s.receive(epoch, msg)
	}
	s.lost(epoch, conn)
}

func (s *Session) receive(epoch uint64, msg models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch || s.state != StateOpen {
		return
	}
	if msg.ComplaintID != "" && msg.ComplaintID != s.complaintID {
		return
	}
	if msg.Nonce != "" {
		if _, mine := s.sent[msg.Nonce]; mine {
			delete(s.sent, msg.Nonce)
			if s.metrics != nil {
				s.metrics.ChatDuplicates.Inc()
			}
			return
		}
	}
	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	msg.ComplaintID = s.complaintID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	s.messages = append(s.messages, msg)
	s.emitLocked(Event{Kind: EventMessageAppended, State: s.state, Message: msg})
	if s.metrics != nil {
		s.metrics.ChatMessages.WithLabelValues("inbound").Inc()
	}
}

// lost moves an open session to Closed after its conn ended on its own.
func (s *Session) lost(epoch uint64, conn Conn) {
	const op = "chathub.Session"

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	cause := conn.Err()
	if cause == nil {
		cause = errRemoteClosed
	}
	s.err = apperr.ConnectionLost(op, cause)
	s.conn = nil
	s.epoch++
	s.sent = make(map[string]struct{})
	s.setStateLocked(StateClosed)
	s.emitLocked(Event{Kind: EventConnectionLost, State: StateClosed, Err: s.err})
	id := s.complaintID
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ChatOpenSession.Dec()
	}
	s.observeSession("lost")
	s.log.Warn("chat connection lost", zap.String("complaint_id", string(id)), zap.Error(cause))
	conn.Close()
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	s.emitLocked(Event{Kind: EventStateChanged, State: state})
}

func (s *Session) emitLocked(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Debug("chat event dropped", zap.Int("kind", int(ev.Kind)))
	}
}

func (s *Session) observeSession(outcome string) {
	if s.metrics != nil {
		s.metrics.ChatSessions.WithLabelValues(outcome).Inc()
	}
}
