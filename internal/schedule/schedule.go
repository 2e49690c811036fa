// Package schedule walks backward from a bake time to produce the timed
// preparation steps of a formulation.
package schedule

import (
	"fmt"
	"time"

	"doughline/internal/domain"
)

const (
	shapeMinutes        = 15
	coldRestMinutes     = 120
	mixedRestMinutes    = 90
	defaultRestMinutes  = 30
	removeFridgeMinutes = 5
	ballMinutes         = 15
	divideMinutes       = 5
	kneadMinutes        = 15
	mixMinutes          = 10
	foldMinutes         = 5
	maxFolds            = 4
	foldHydrationPct    = 70.0
	coldRoomHours       = 4
	coldBulkHours       = 2
)

// MinGap separates consecutive steps.
const MinGap = time.Minute

type builder struct {
	cursor time.Time
	steps  []domain.ScheduleStep
}

// before prepends a step that ends where the cursor stands.
func (b *builder) before(kind domain.StepKind, title string, minutes int, temp *float64) {
	b.cursor = b.cursor.Add(-time.Duration(minutes) * time.Minute)
	b.steps = append([]domain.ScheduleStep{{
		Kind:            kind,
		Title:           title,
		ScheduledTime:   b.cursor,
		DurationMinutes: minutes,
		TemperatureC:    temp,
	}}, b.steps...)
}

func temp(v float64) *float64 { return &v }

// ColdHours is the time spent in the fridge for a method.
func ColdHours(method domain.Method, hours int) int {
	switch method {
	case domain.MethodCold:
		return max(0, hours-coldRoomHours)
	case domain.MethodMixed:
		return int(float64(hours) * 0.7)
	}
	return 0
}

// BulkHours is the room temperature bulk fermentation for a method.
func BulkHours(method domain.Method, hours int) int {
	switch method {
	case domain.MethodRoomTemperature:
		return max(2, hours-2)
	case domain.MethodCold:
		return coldBulkHours
	case domain.MethodMixed:
		return int(float64(hours) * 0.3)
	case domain.MethodSameDay:
		return max(1, hours-1)
	}
	return 0
}

func finalRestMinutes(method domain.Method) int {
	switch method {
	case domain.MethodCold:
		return coldRestMinutes
	case domain.MethodMixed:
		return mixedRestMinutes
	}
	return defaultRestMinutes
}

// Generate builds the steps for res ending with the bake step at bake.
// An empty method falls back to the method the formulation was computed with.
func Generate(res domain.FormulationResult, method domain.Method, bake time.Time) ([]domain.ScheduleStep, error) {
	if method == "" {
		method = res.Method
	}
	switch method {
	case domain.MethodRoomTemperature, domain.MethodCold, domain.MethodMixed, domain.MethodSameDay:
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedMethod, method)
	}
	if bake.IsZero() {
		return nil, fmt.Errorf("%w: bake time is required", domain.ErrInvalidBakeTime)
	}
	style, ok := domain.LookupStyle(res.Style)
	if !ok {
		return nil, domain.ValidationError{Field: "style", Value: res.Style, Msg: "unknown style"}
	}
	hours := res.FermentationHours
	bake = bake.Truncate(time.Minute)

	b := &builder{cursor: bake}
	b.steps = []domain.ScheduleStep{{
		Kind:            domain.StepBake,
		Title:           fmt.Sprintf("Bake at %.0f°C", style.OvenTempC),
		ScheduledTime:   bake,
		DurationMinutes: max(1, style.BakeSeconds/60),
		TemperatureC:    temp(style.OvenTempC),
	}}
	b.before(domain.StepShape, "Shape the bases", shapeMinutes, nil)
	b.before(domain.StepFinalProof, "Final rest at room temperature", finalRestMinutes(method), temp(res.RoomTempC))

	if method == domain.MethodCold || method == domain.MethodMixed {
		b.before(domain.StepRemoveFridge, "Take the dough out of the fridge", removeFridgeMinutes, nil)
		cold := ColdHours(method, hours)
		b.before(domain.StepColdProof, fmt.Sprintf("Cold proof for %dh", cold), cold*60, temp(res.FridgeTempC))
	}

	b.before(domain.StepBall, fmt.Sprintf("Ball %d pieces", res.NumberOfUnits), ballMinutes, nil)
	b.before(domain.StepDivide, fmt.Sprintf("Divide into %.0fg pieces", res.BallWeightGrams), divideMinutes, nil)

	if bulk := BulkHours(method, hours); bulk > 0 {
		end := b.cursor
		b.before(domain.StepBulkFerment, fmt.Sprintf("Bulk ferment for %dh", bulk), bulk*60, temp(res.RoomTempC))
		if res.Percentages.Water >= foldHydrationPct {
			insertFolds(b, end, bulk)
		}
	}

	b.before(domain.StepKnead, "Knead until smooth", kneadMinutes, nil)
	b.before(domain.StepMixDough, "Mix the dough", mixMinutes, nil)

	if p := res.Preferment; p != nil {
		b.before(domain.StepMixPreferment, fmt.Sprintf("Mix the %s and rest %dh", p.Type, p.Hours), p.Hours*60, temp(res.RoomTempC))
	}

	steps := b.steps
	enforceOrder(steps)
	for i := range steps {
		steps[i].StepNumber = i + 1
	}
	return steps, nil
}

// insertFolds places folds evenly inside the bulk step, which b.steps[0] holds.
func insertFolds(b *builder, end time.Time, bulkHours int) {
	folds := min(maxFolds, bulkHours)
	interval := time.Duration(bulkHours*60/(folds+1)) * time.Minute
	start := b.steps[0].ScheduledTime
	folded := make([]domain.ScheduleStep, 0, folds)
	for i := 1; i <= folds; i++ {
		at := start.Add(interval * time.Duration(i))
		if !at.Before(end) {
			break
		}
		folded = append(folded, domain.ScheduleStep{
			Kind:            domain.StepFold,
			Title:           fmt.Sprintf("Fold %d of %d", i, folds),
			ScheduledTime:   at,
			DurationMinutes: foldMinutes,
		})
	}
	rest := append(folded, b.steps[1:]...)
	b.steps = append(b.steps[:1], rest...)
}

// enforceOrder pulls earlier steps back so every step starts at least MinGap
// after the previous one. The last step keeps its time.
func enforceOrder(steps []domain.ScheduleStep) {
	for i := len(steps) - 2; i >= 0; i-- {
		limit := steps[i+1].ScheduledTime.Add(-MinGap)
		if steps[i].ScheduledTime.After(limit) {
			steps[i].ScheduledTime = limit
		}
	}
}

// CheckOrder verifies numbering from 1 without gaps and strictly increasing times.
func CheckOrder(steps []domain.ScheduleStep) error {
	if len(steps) == 0 {
		return domain.ValidationError{Field: "steps", Msg: "at least one step is required"}
	}
	for i, s := range steps {
		if s.StepNumber != i+1 {
			return domain.ValidationError{Field: "steps.step_number", Value: s.StepNumber, Msg: fmt.Sprintf("expected %d", i+1)}
		}
		if s.DurationMinutes < 0 {
			return domain.ValidationError{Field: "steps.duration_minutes", Value: s.DurationMinutes, Msg: "must not be negative"}
		}
		if i > 0 && s.ScheduledTime.Sub(steps[i-1].ScheduledTime) < MinGap {
			return domain.ValidationError{Field: "steps.scheduled_time", Value: s.ScheduledTime, Msg: "must be at least a minute after the previous step"}
		}
	}
	return nil
}
