// Package kinetics maps a fermentation plan to a fresh-yeast percentage.
//
// Each method has its own strategy built on a Q10 of 2: yeast activity
// doubles per 10°C (8°C for same-day) above the method's reference
// temperature. Percentages are fresh-yeast mass relative to flour.
package kinetics

import (
	"fmt"
	"math"

	"doughline/internal/bakers"
	"doughline/internal/domain"
)

// Strategy computes an unclamped yeast percentage; Min and Max bound the result.
type Strategy struct {
	Method  domain.Method
	Min     float64
	Max     float64
	Percent func(hours int, roomC, fridgeC float64) float64
}

// YeastPercentage evaluates the strategy and clamps to its bounds.
func (s Strategy) YeastPercentage(hours int, roomC, fridgeC float64) float64 {
	return bakers.Clamp(s.Percent(hours, roomC, fridgeC), s.Min, s.Max)
}

// Registry dispatches by fermentation method.
type Registry map[domain.Method]Strategy

// DefaultRegistry returns the four built-in strategies.
func DefaultRegistry() Registry {
	r := Registry{}
	r.Register(RoomTemperature())
	r.Register(Cold())
	r.Register(Mixed())
	r.Register(SameDay())
	return r
}

func (r Registry) Register(s Strategy) {
	r[s.Method] = s
}

func (r Registry) Lookup(m domain.Method) (Strategy, error) {
	s, ok := r[m]
	if !ok || s.Percent == nil {
		return Strategy{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedMethod, m)
	}
	return s, nil
}

// YeastPercentage resolves the strategy for method and evaluates it.
func (r Registry) YeastPercentage(hours int, roomC, fridgeC float64, method domain.Method) (float64, error) {
	s, err := r.Lookup(method)
	if err != nil {
		return 0, err
	}
	return s.YeastPercentage(hours, roomC, fridgeC), nil
}

const (
	q10 = 2.0

	roomBasePct    = 0.5
	roomBaseHours  = 6.0
	roomOptimumC   = 27.0
	roomMinPct     = 0.05
	roomMaxPct     = 3.0
	coldBasePct    = 0.15
	coldBaseHours  = 24.0
	coldRefC       = 22.0
	coldMaxLeadIn  = 4
	coldLeadInDiv  = 4
	coldRestHours  = 2
	coldLongFactor = 0.7
	coldXLFactor   = 0.8
	coldMinPct     = 0.02
	coldMaxPct     = 0.5
	mixedBasePct   = 0.25
	mixedBaseHours = 8.0
	mixedRefC      = 24.0
	mixedRoomShare = 0.3
	mixedColdShare = 0.7
	mixedMinPct    = 0.05
	mixedMaxPct    = 1.0
	sameBasePct    = 1.5
	sameBaseHours  = 3.0
	sameOptimumC   = 27.0
	sameTempStep   = 8.0
	sameShortBoost = 1.5
	sameMinPct     = 0.5
	sameMaxPct     = 3.0

	longFermentationHours     = 48
	veryLongFermentationHours = 72
	minEquivalentHours        = 1.0
)

// ColdActivity is the fraction of room-temperature yeast activity left in a fridge at fridgeC.
func ColdActivity(fridgeC float64) float64 {
	return 0.05 + fridgeC*0.025
}

func tempFactor(roomC, refC, step float64) float64 {
	return math.Pow(q10, (roomC-refC)/step)
}

func RoomTemperature() Strategy {
	return Strategy{
		Method: domain.MethodRoomTemperature,
		Min:    roomMinPct,
		Max:    roomMaxPct,
		Percent: func(hours int, roomC, _ float64) float64 {
			h := math.Max(1, float64(hours))
			return roomBasePct * (roomBaseHours / h) / tempFactor(roomC, roomOptimumC, 10)
		},
	}
}

// ColdSplit divides a cold fermentation into room lead-in, fridge and post-fridge rest hours.
func ColdSplit(hours int) (room, cold, rest int) {
	room = min(coldMaxLeadIn, hours/coldLeadInDiv)
	cold = max(0, hours-room-coldRestHours)
	return room, cold, coldRestHours
}

func Cold() Strategy {
	return Strategy{
		Method: domain.MethodCold,
		Min:    coldMinPct,
		Max:    coldMaxPct,
		Percent: func(hours int, roomC, fridgeC float64) float64 {
			room, cold, rest := ColdSplit(hours)
			equiv := float64(room) + float64(cold)*ColdActivity(fridgeC) + float64(rest)
			equiv = math.Max(minEquivalentHours, equiv)
			pct := coldBasePct * (coldBaseHours / equiv) * math.Sqrt(tempFactor(roomC, coldRefC, 10))
			if hours > longFermentationHours {
				pct *= coldLongFactor
			}
			if hours > veryLongFermentationHours {
				pct *= coldXLFactor
			}
			return pct
		},
	}
}

// MixedSplit divides a mixed fermentation 30/70 between room and fridge hours.
func MixedSplit(hours int) (room, cold int) {
	return int(float64(hours) * mixedRoomShare), int(float64(hours) * mixedColdShare)
}

func Mixed() Strategy {
	return Strategy{
		Method: domain.MethodMixed,
		Min:    mixedMinPct,
		Max:    mixedMaxPct,
		Percent: func(hours int, roomC, fridgeC float64) float64 {
			room, cold := MixedSplit(hours)
			equiv := math.Max(minEquivalentHours, float64(room)+float64(cold)*ColdActivity(fridgeC))
			return mixedBasePct * (mixedBaseHours / equiv) / tempFactor(roomC, mixedRefC, 10)
		},
	}
}

func SameDay() Strategy {
	return Strategy{
		Method: domain.MethodSameDay,
		Min:    sameMinPct,
		Max:    sameMaxPct,
		Percent: func(hours int, roomC, _ float64) float64 {
			h := math.Max(1, float64(hours))
			pct := sameBasePct * (sameBaseHours / h) / tempFactor(roomC, sameOptimumC, sameTempStep)
			if hours < 2 {
				pct *= sameShortBoost
			}
			return pct
		},
	}
}
