package types

import (
	"fmt"
	"strings"

	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/programs/computebudget"
)

// PriorityLevel - именованный профиль priority fee.
type PriorityLevel string

const (
	PriorityNone    PriorityLevel = "none"
	PriorityLow     PriorityLevel = "low"
	PriorityMedium  PriorityLevel = "medium"
	PriorityHigh    PriorityLevel = "high"
	PriorityExtreme PriorityLevel = "extreme"
)

// priorityFees - цена compute unit в micro-lamports для каждого профиля.
var priorityFees = map[PriorityLevel]uint64{
	PriorityLow:     1_000,
	PriorityMedium:  5_000,
	PriorityHigh:    10_000,
	PriorityExtreme: 50_000,
}

func ParsePriorityLevel(s string) (PriorityLevel, error) {
	level := PriorityLevel(strings.ToLower(strings.TrimSpace(s)))
	if level == "" || level == PriorityNone {
		return PriorityNone, nil
	}
	if _, ok := priorityFees[level]; !ok {
		return PriorityNone, fmt.Errorf("unknown priority level: %s", s)
	}
	return level, nil
}

// Apply возвращает base с ценой compute unit профиля. Лимит не меняется;
// для none цена остается той, что задана в конфигурации.
func (l PriorityLevel) Apply(base computebudget.Config) computebudget.Config {
	if fee, ok := priorityFees[l]; ok {
		base.UnitPrice = fee
	}
	return base
}
