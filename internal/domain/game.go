package domain

import "time"

// Статус игровой сессии
type SessionStatus string

const (
	SessionWaiting   SessionStatus = "Waiting"
	SessionActive    SessionStatus = "Active"
	SessionCompleted SessionStatus = "Completed"
)

// Статус раунда
type RoundStatus string

const (
	RoundInProgress RoundStatus = "InProgress"
	RoundCompleted  RoundStatus = "Completed"
)

// Выбор игрока в раунде
type Choice string

const (
	ChoiceCooperate Choice = "Cooperate"
	ChoiceDefect    Choice = "Defect"
)

// Слоты игроков: порядок фиксирован и определяет порядок подсчета очков
const (
	SlotFirst  = 1
	SlotSecond = 2
)

// Игровая сессия на двух игроков
type Session struct {
	ID           string        `db:"id" json:"id"`
	Status       SessionStatus `db:"status" json:"status"`
	CurrentRound int           `db:"current_round" json:"current_round"`
	MaxRounds    int           `db:"max_rounds" json:"max_rounds"`
	Version      int64         `db:"version" json:"-"` // токен оптимистичной блокировки
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	CompletedAt  *time.Time    `db:"completed_at" json:"completed_at,omitempty"`

	Players []*Player `json:"players"` // отсортированы по слоту
	Rounds  []*Round  `json:"rounds"`  // отсортированы по номеру
}

// Игрок внутри сессии. Сессия владеет игроком, у игрока только обратная ссылка
type Player struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Name      string    `db:"name" json:"name"`
	Slot      int       `db:"slot" json:"slot"`
	Score     int       `db:"score" json:"score"`
	JoinedAt  time.Time `db:"joined_at" json:"joined_at"`
}

// Один обмен выборами
type Round struct {
	ID          string          `db:"id" json:"id"`
	SessionID   string          `db:"session_id" json:"session_id"`
	Number      int             `db:"number" json:"number"`
	Status      RoundStatus     `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	Choices     []*ChoiceRecord `json:"choices"`
}

// Неизменяемая запись выбора игрока
type ChoiceRecord struct {
	ID        string    `db:"id" json:"id"`
	RoundID   string    `db:"round_id" json:"round_id"`
	PlayerID  string    `db:"player_id" json:"player_id"`
	Choice    Choice    `db:"choice" json:"choice"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PlayerByID возвращает игрока сессии или nil
func (s *Session) PlayerByID(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PlayerInSlot возвращает игрока в слоте 1 или 2
func (s *Session) PlayerInSlot(slot int) *Player {
	for _, p := range s.Players {
		if p.Slot == slot {
			return p
		}
	}
	return nil
}

// RoundByNumber возвращает раунд по номеру или nil
func (s *Session) RoundByNumber(n int) *Round {
	for _, r := range s.Rounds {
		if r.Number == n {
			return r
		}
	}
	return nil
}

// IsFull - заняты оба слота
func (s *Session) IsFull() bool {
	return len(s.Players) >= 2
}

// Clone делает глубокую копию, хранилище в памяти не должно отдавать свои указатели
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	cp.Players = make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		pc := *p
		cp.Players = append(cp.Players, &pc)
	}
	cp.Rounds = make([]*Round, 0, len(s.Rounds))
	for _, r := range s.Rounds {
		cp.Rounds = append(cp.Rounds, r.Clone())
	}
	return &cp
}

// ChoiceBy возвращает выбор игрока в раунде или nil
func (r *Round) ChoiceBy(playerID string) *ChoiceRecord {
	for _, c := range r.Choices {
		if c.PlayerID == playerID {
			return c
		}
	}
	return nil
}

// Clone делает глубокую копию раунда вместе с выборами
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	cp := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	cp.Choices = make([]*ChoiceRecord, 0, len(r.Choices))
	for _, c := range r.Choices {
		cc := *c
		cp.Choices = append(cp.Choices, &cc)
	}
	return &cp
}

// Результат одного игрока в завершенном раунде
type PlayerOutcome struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Choice     Choice `json:"choice"`
	Delta      int    `json:"delta"`
	Score      int    `json:"score"` // накопленный счет после раунда
}

// Итог завершенного раунда, игроки в порядке слотов
type Outcome struct {
	RoundNumber int              `json:"roundNumber"`
	Players     [2]PlayerOutcome `json:"players"`
}
