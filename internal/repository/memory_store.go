package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dilemma_webapp/internal/domain"
)

// хранилище в памяти, используется когда DATABASE_URL не задан и в тестах.
// Транзакции выполняются под общим мьютексом, поэтому сериализуемы
type MemoryStore struct {
	mu sync.RWMutex

	sessions    map[string]*domain.Session  // без раундов
	rounds      map[string][]*domain.Round  // sessionID -> раунды по номеру
	roundIndex  map[string]string           // roundID -> sessionID
	playerIndex map[string]string           // playerID -> sessionID
	waiting     map[string]struct{}         // сессии в статусе Waiting
	audit       []*domain.AuditLog
	auditSeq    int64
}

// создает пустое хранилище в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*domain.Session),
		rounds:      make(map[string][]*domain.Round),
		roundIndex:  make(map[string]string),
		playerIndex: make(map[string]string),
		waiting:     make(map[string]struct{}),
	}
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	// отмена до коммита ничего не оставляет
	if err = ctx.Err(); err != nil {
		return err
	}
	return nil
}

func (m *MemoryStore) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadSession(id)
}

func (m *MemoryStore) GetRound(ctx context.Context, sessionID string, number int) (*domain.Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadRound(sessionID, number)
}

func (m *MemoryStore) FindPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadPlayer(playerID)
}

func (m *MemoryStore) ListAudit(ctx context.Context, sessionID string, limit int) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.AuditLog
	// самые новые первыми, как и в postgres
	for i := len(m.audit) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		l := m.audit[i]
		if sessionID != "" && l.SessionID != sessionID {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) Close() {}

func (m *MemoryStore) loadSession(id string) (*domain.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := s.Clone()
	for _, r := range m.rounds[id] {
		cp.Rounds = append(cp.Rounds, r.Clone())
	}
	return cp, nil
}

func (m *MemoryStore) loadRound(sessionID string, number int) (*domain.Round, error) {
	for _, r := range m.rounds[sessionID] {
		if r.Number == number {
			return r.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) loadPlayer(playerID string) (*domain.Player, error) {
	sessionID, ok := m.playerIndex[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	p := m.sessions[sessionID].PlayerByID(playerID)
	if p == nil {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) findRound(roundID string) *domain.Round {
	sessionID, ok := m.roundIndex[roundID]
	if !ok {
		return nil
	}
	for _, r := range m.rounds[sessionID] {
		if r.ID == roundID {
			return r
		}
	}
	return nil
}

// транзакция поверх MemoryStore: пишет сразу, откат через журнал отмены
type memTx struct {
	store *MemoryStore
	undo  []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	return t.store.loadSession(id)
}

func (t *memTx) FindWaitingSession(ctx context.Context) (*domain.Session, error) {
	var oldest *domain.Session
	for id := range t.store.waiting {
		s := t.store.sessions[id]
		if oldest == nil || s.CreatedAt.Before(oldest.CreatedAt) {
			oldest = s
		}
	}
	if oldest == nil {
		return nil, ErrNotFound
	}
	return t.store.loadSession(oldest.ID)
}

func (t *memTx) FindPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	return t.store.loadPlayer(playerID)
}

func (t *memTx) GetRound(ctx context.Context, sessionID string, number int) (*domain.Round, error) {
	return t.store.loadRound(sessionID, number)
}

func (t *memTx) CreateSession(ctx context.Context, s *domain.Session) error {
	m := t.store
	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("%w: session %s already exists", ErrConflict, s.ID)
	}
	for _, p := range s.Players {
		if _, exists := m.playerIndex[p.ID]; exists {
			return fmt.Errorf("%w: player %s already exists", ErrConflict, p.ID)
		}
	}

	s.Version = 1
	stored := s.Clone()
	stored.Rounds = nil
	m.sessions[s.ID] = stored
	for _, p := range s.Players {
		m.playerIndex[p.ID] = s.ID
	}
	if s.Status == domain.SessionWaiting {
		m.waiting[s.ID] = struct{}{}
	}

	t.undo = append(t.undo, func() {
		delete(m.sessions, s.ID)
		delete(m.waiting, s.ID)
		for _, p := range stored.Players {
			delete(m.playerIndex, p.ID)
		}
	})
	return nil
}

func (t *memTx) UpdateSession(ctx context.Context, s *domain.Session) error {
	m := t.store
	cur, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != s.Version {
		return fmt.Errorf("%w: session %s version %d, have %d", ErrConflict, s.ID, cur.Version, s.Version)
	}

	var added []string
	for _, p := range s.Players {
		owner, exists := m.playerIndex[p.ID]
		if exists && owner != s.ID {
			return fmt.Errorf("%w: player %s belongs to another session", ErrConflict, p.ID)
		}
		if !exists {
			added = append(added, p.ID)
		}
	}

	next := s.Clone()
	next.Rounds = nil
	next.Version = cur.Version + 1
	m.sessions[s.ID] = next
	for _, id := range added {
		m.playerIndex[id] = s.ID
	}
	_, wasWaiting := m.waiting[s.ID]
	if next.Status == domain.SessionWaiting {
		m.waiting[s.ID] = struct{}{}
	} else {
		delete(m.waiting, s.ID)
	}
	prevVersion := s.Version
	s.Version = next.Version

	t.undo = append(t.undo, func() {
		m.sessions[s.ID] = cur
		for _, id := range added {
			delete(m.playerIndex, id)
		}
		if wasWaiting {
			m.waiting[s.ID] = struct{}{}
		} else {
			delete(m.waiting, s.ID)
		}
		s.Version = prevVersion
	})
	return nil
}

func (t *memTx) CreateRound(ctx context.Context, r *domain.Round) error {
	m := t.store
	if _, ok := m.sessions[r.SessionID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.rounds[r.SessionID] {
		if existing.Number == r.Number {
			return fmt.Errorf("%w: round %d already exists", ErrConflict, r.Number)
		}
	}

	prev := m.rounds[r.SessionID]
	next := make([]*domain.Round, 0, len(prev)+1)
	next = append(next, prev...)
	next = append(next, r.Clone())
	sort.Slice(next, func(i, j int) bool { return next[i].Number < next[j].Number })
	m.rounds[r.SessionID] = next
	m.roundIndex[r.ID] = r.SessionID

	t.undo = append(t.undo, func() {
		m.rounds[r.SessionID] = prev
		delete(m.roundIndex, r.ID)
	})
	return nil
}

func (t *memTx) CompleteRound(ctx context.Context, r *domain.Round) error {
	stored := t.store.findRound(r.ID)
	if stored == nil {
		return ErrNotFound
	}
	if stored.Status != domain.RoundInProgress {
		return fmt.Errorf("%w: round %d already completed", ErrConflict, stored.Number)
	}

	prevStatus, prevCompleted := stored.Status, stored.CompletedAt
	stored.Status = domain.RoundCompleted
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		stored.CompletedAt = &at
	} else {
		now := time.Now().UTC()
		stored.CompletedAt = &now
	}

	t.undo = append(t.undo, func() {
		stored.Status = prevStatus
		stored.CompletedAt = prevCompleted
	})
	return nil
}

func (t *memTx) RecordChoice(ctx context.Context, c *domain.ChoiceRecord) error {
	stored := t.store.findRound(c.RoundID)
	if stored == nil {
		return ErrNotFound
	}
	if stored.ChoiceBy(c.PlayerID) != nil {
		return ErrDuplicateChoice
	}

	prev := stored.Choices
	cp := *c
	next := make([]*domain.ChoiceRecord, 0, len(prev)+1)
	next = append(next, prev...)
	stored.Choices = append(next, &cp)

	t.undo = append(t.undo, func() {
		stored.Choices = prev
	})
	return nil
}

func (t *memTx) AppendAudit(ctx context.Context, l *domain.AuditLog) error {
	m := t.store
	m.auditSeq++
	cp := *l
	cp.ID = m.auditSeq
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.audit = append(m.audit, &cp)
	l.ID = cp.ID

	t.undo = append(t.undo, func() {
		m.audit = m.audit[:len(m.audit)-1]
	})
	return nil
}
