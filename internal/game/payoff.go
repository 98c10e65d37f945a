package game

import (
	"strings"

	"dilemma_webapp/internal/domain"
)

// Очки за раунд в порядке (слот 1, слот 2)
const (
	RewardMutualCooperation = 3
	PunishmentMutualDefect  = 1
	TemptationToDefect      = 5
	SuckerPayoff            = 0
)

// Resolve возвращает очки обоих игроков. Аргументы всегда в порядке слотов,
// иначе очки уйдут не тому игроку
func Resolve(first, second domain.Choice) (int, int) {
	switch {
	case first == domain.ChoiceCooperate && second == domain.ChoiceCooperate:
		return RewardMutualCooperation, RewardMutualCooperation
	case first == domain.ChoiceDefect && second == domain.ChoiceDefect:
		return PunishmentMutualDefect, PunishmentMutualDefect
	case first == domain.ChoiceCooperate && second == domain.ChoiceDefect:
		return SuckerPayoff, TemptationToDefect
	default:
		// Defect/Cooperate
		return TemptationToDefect, SuckerPayoff
	}
}

// ParseChoice разбирает токен без учета регистра
func ParseChoice(token string) (domain.Choice, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "cooperate":
		return domain.ChoiceCooperate, nil
	case "defect":
		return domain.ChoiceDefect, nil
	}
	return "", domain.ErrInvalidChoice
}
