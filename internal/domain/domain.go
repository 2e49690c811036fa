package domain

import "time"

type Style string

const (
	StyleNeapolitan      Style = "neapolitan"
	StyleNewYork         Style = "new-york"
	StyleRoman           Style = "roman"
	StyleDetroit         Style = "detroit"
	StyleChicagoDeepDish Style = "chicago-deep-dish"
	StyleSicilian        Style = "sicilian"
	StyleFocaccia        Style = "focaccia"
	StylePizzaBianca     Style = "pizza-bianca"
	StyleGrandma         Style = "grandma"
	StylePan             Style = "pan"
	StyleThinCrust       Style = "thin-crust"
	StyleTavern          Style = "tavern"
	StylePinsaRomana     Style = "pinsa-romana"
	StyleCustom          Style = "custom"
)

type Method string

const (
	MethodRoomTemperature Method = "room-temperature"
	MethodCold            Method = "cold"
	MethodMixed           Method = "mixed"
	MethodSameDay         Method = "same-day"
)

type YeastKind string

const (
	YeastFresh      YeastKind = "fresh"
	YeastInstantDry YeastKind = "instant-dry"
	YeastActiveDry  YeastKind = "active-dry"
	YeastSourdough  YeastKind = "sourdough"
)

type MixerType string

const (
	MixerHand      MixerType = "hand"
	MixerStandHome MixerType = "stand-home"
	MixerStandPro  MixerType = "stand-pro"
	MixerSpiral    MixerType = "spiral"
	MixerFork      MixerType = "fork"
)

type PrefermentType string

const (
	PrefermentPoolish      PrefermentType = "poolish"
	PrefermentBiga         PrefermentType = "biga"
	PrefermentLievitoMadre PrefermentType = "lievito-madre"
)

type StepKind string

const (
	StepMixPreferment   StepKind = "mix-preferment"
	StepMixDough        StepKind = "mix-dough"
	StepAutolyse        StepKind = "autolyse"
	StepAddSalt         StepKind = "add-salt"
	StepKnead           StepKind = "knead"
	StepBulkFerment     StepKind = "bulk-ferment"
	StepFold            StepKind = "fold"
	StepDivide          StepKind = "divide"
	StepBall            StepKind = "ball"
	StepColdProof       StepKind = "cold-proof"
	StepRoomProof       StepKind = "room-proof"
	StepRemoveFridge    StepKind = "remove-from-fridge"
	StepFinalProof      StepKind = "final-proof"
	StepShape           StepKind = "shape"
	StepBake            StepKind = "bake"
)

type StepStatus string

const (
	StepPending        StepStatus = "pending"
	StepInProgress     StepStatus = "in-progress"
	StepCompleted      StepStatus = "completed"
	StepCompletedEarly StepStatus = "completed-early"
	StepCompletedLate  StepStatus = "completed-late"
	StepSkipped        StepStatus = "skipped"
)

// Done reports whether the step no longer takes part in the live timeline.
func (s StepStatus) Done() bool {
	switch s {
	case StepCompleted, StepCompletedEarly, StepCompletedLate, StepSkipped:
		return true
	}
	return false
}

type ScheduleStatus string

const (
	SchedulePlanning   ScheduleStatus = "planning"
	ScheduleInProgress ScheduleStatus = "in-progress"
	SchedulePaused     ScheduleStatus = "paused"
	ScheduleCompleted  ScheduleStatus = "completed"
	ScheduleCancelled  ScheduleStatus = "cancelled"
)

// Terminal reports whether no further mutation is accepted.
func (s ScheduleStatus) Terminal() bool {
	return s == ScheduleCompleted || s == ScheduleCancelled
}

type Extra struct {
	Name string  `json:"name"`
	Pct  float64 `json:"pct"`
}

// FlourPortion is one flour of a blend, as a share of the total flour.
type FlourPortion struct {
	Name       string   `json:"name"`
	Pct        float64  `json:"pct"`
	StrengthW  *float64 `json:"strength_w,omitempty"`
	ProteinPct *float64 `json:"protein_pct,omitempty"`
}

type FlourPortionMass struct {
	Name  string  `json:"name"`
	Pct   float64 `json:"pct"`
	Grams float64 `json:"grams"`
}

type PrefermentRequest struct {
	Type  PrefermentType `json:"type" enum:"poolish,biga,lievito-madre"`
	Pct   *float64       `json:"pct,omitempty"`
	Hours *int           `json:"hours,omitempty"`
}

type FormulationRequest struct {
	Style                  Style              `json:"style,omitempty"`
	BallWeightGrams        float64            `json:"ball_weight_grams,omitempty"`
	NumberOfUnits          int                `json:"number_of_units,omitempty"`
	HydrationPct           float64            `json:"hydration_pct,omitempty"`
	SaltPct                float64            `json:"salt_pct,omitempty"`
	OilPct                 float64            `json:"oil_pct,omitempty"`
	SugarPct               float64            `json:"sugar_pct,omitempty"`
	YeastKind              YeastKind          `json:"yeast_kind,omitempty" enum:"fresh,instant-dry,active-dry,sourdough"`
	Method                 Method             `json:"method,omitempty" enum:"room-temperature,cold,mixed,same-day"`
	TotalFermentationHours int                `json:"total_fermentation_hours,omitempty"`
	RoomTempC              float64            `json:"room_temp_c,omitempty"`
	FridgeTempC            float64            `json:"fridge_temp_c,omitempty"`
	MixerType              MixerType          `json:"mixer_type,omitempty"`
	FlourTempC             *float64           `json:"flour_temp_c,omitempty"`
	PrefermentTempC        *float64           `json:"preferment_temp_c,omitempty"`
	TargetDoughTempC       *float64           `json:"target_dough_temp_c,omitempty"`
	FlourStrengthW         *float64           `json:"flour_strength_w,omitempty"`
	FlourProteinPct        *float64           `json:"flour_protein_pct,omitempty"`
	FlourBlend             []FlourPortion     `json:"flour_blend,omitempty"`
	YeastPctOverride       *float64           `json:"yeast_pct_override,omitempty"`
	WaterHardness          *float64           `json:"water_hardness,omitempty"`
	WaterPh                *float64           `json:"water_ph,omitempty"`
	AltitudeMeters         *float64           `json:"altitude_meters,omitempty"`
	HumidityPct            *float64           `json:"humidity_pct,omitempty"`
	WeatherTempC           *float64           `json:"weather_temp_c,omitempty"`
	WeatherHumidityPct     *float64           `json:"weather_humidity_pct,omitempty"`
	Preferment             *PrefermentRequest `json:"preferment,omitempty"`
	StarterGrams           *float64           `json:"starter_grams,omitempty"`
	Extras                 []Extra            `json:"extras,omitempty"`
}

type ExtraMass struct {
	Name  string  `json:"name"`
	Grams float64 `json:"grams"`
	Pct   float64 `json:"pct"`
}

type Ingredients struct {
	Flour  float64     `json:"flour"`
	Water  float64     `json:"water"`
	Salt   float64     `json:"salt"`
	Yeast  float64     `json:"yeast"`
	Oil    float64     `json:"oil"`
	Sugar  float64     `json:"sugar"`
	Extras []ExtraMass `json:"extras"`
}

// Sum returns the total of every ingredient mass.
func (i Ingredients) Sum() float64 {
	total := i.Flour + i.Water + i.Salt + i.Yeast + i.Oil + i.Sugar
	for _, e := range i.Extras {
		total += e.Grams
	}
	return total
}

type BakersPercentages struct {
	Flour float64 `json:"flour"`
	Water float64 `json:"water"`
	Salt  float64 `json:"salt"`
	Yeast float64 `json:"yeast"`
	Oil   float64 `json:"oil"`
	Sugar float64 `json:"sugar"`
}

type PrefermentSplit struct {
	Type       PrefermentType `json:"type"`
	Pct        float64        `json:"pct"`
	FlourGrams float64        `json:"flour_grams"`
	WaterGrams float64        `json:"water_grams"`
	YeastGrams float64        `json:"yeast_grams"`
	Hours      int            `json:"hours"`
}

type MainDough struct {
	FlourGrams float64 `json:"flour_grams"`
	WaterGrams float64 `json:"water_grams"`
	SaltGrams  float64 `json:"salt_grams"`
	YeastGrams float64 `json:"yeast_grams"`
	OilGrams   float64 `json:"oil_grams"`
	SugarGrams float64 `json:"sugar_grams"`
}

type DDTResult struct {
	TargetDoughTempC float64  `json:"target_dough_temp_c"`
	TargetWaterTempC float64  `json:"target_water_temp_c"`
	FrictionFactor   float64  `json:"friction_factor"`
	FrictionC        float64  `json:"friction_c"`
	FormulaTrace     string   `json:"formula_trace"`
	Warnings         []string `json:"warnings,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
}

type EnvironmentAdjustments struct {
	HydrationDeltaPct         float64  `json:"hydration_delta_pct"`
	YeastCorrectionPct        float64  `json:"yeast_correction_pct"`
	FermentationCorrectionPct float64  `json:"fermentation_correction_pct"`
	CorrectedFermentationHrs  float64  `json:"corrected_fermentation_hours"`
	PressureHPa               float64  `json:"pressure_hpa"`
	Recommendations           []string `json:"recommendations,omitempty"`
}

type FlourAnalysis struct {
	StrengthW          *float64 `json:"strength_w,omitempty"`
	ProteinPct         *float64 `json:"protein_pct,omitempty"`
	SuggestedMinHydPct *float64 `json:"suggested_min_hydration_pct,omitempty"`
	SuggestedMaxHydPct *float64 `json:"suggested_max_hydration_pct,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
	Recommendations    []string `json:"recommendations,omitempty"`
}

type WaterAnalysis struct {
	Hardness             *float64 `json:"hardness,omitempty"`
	Ph                   *float64 `json:"ph,omitempty"`
	FermentationModifier float64  `json:"fermentation_modifier"`
	Effects              []string `json:"effects,omitempty"`
	Recommendations      []string `json:"recommendations,omitempty"`
}

type FormulationResult struct {
	Style             Style                  `json:"style"`
	Method            Method                 `json:"method"`
	YeastKind         YeastKind              `json:"yeast_kind"`
	NumberOfUnits     int                    `json:"number_of_units"`
	BallWeightGrams   float64                `json:"ball_weight_grams"`
	FermentationHours int                    `json:"fermentation_hours"`
	RoomTempC         float64                `json:"room_temp_c"`
	FridgeTempC       float64                `json:"fridge_temp_c"`
	TotalDoughGrams   float64                `json:"total_dough_grams"`
	Ingredients       Ingredients            `json:"ingredients"`
	FlourBlend        []FlourPortionMass     `json:"flour_blend,omitempty"`
	Percentages       BakersPercentages      `json:"percentages"`
	FreshYeastPct     float64                `json:"fresh_yeast_pct"`
	YeastAdjustments  []string               `json:"yeast_adjustments,omitempty"`
	Preferment        *PrefermentSplit       `json:"preferment,omitempty"`
	MainDough         *MainDough             `json:"main_dough,omitempty"`
	DDT               *DDTResult             `json:"ddt,omitempty"`
	Environment       EnvironmentAdjustments `json:"environment"`
	Flour             *FlourAnalysis         `json:"flour,omitempty"`
	Water             *WaterAnalysis         `json:"water,omitempty"`
	Warnings          []string               `json:"warnings,omitempty"`
	Tips              []string               `json:"tips,omitempty"`
}

type ScheduleStep struct {
	StepNumber      int       `json:"step_number"`
	Kind            StepKind  `json:"kind"`
	Title           string    `json:"title"`
	ScheduledTime   time.Time `json:"scheduled_time" format:"date-time"`
	DurationMinutes int       `json:"duration_minutes"`
	TemperatureC    *float64  `json:"temperature_c,omitempty"`
}

type RuntimeStep struct {
	ScheduleStep
	Status           StepStatus `json:"status" enum:"pending,in-progress,completed,completed-early,completed-late,skipped"`
	ActualTime       *time.Time `json:"actual_time,omitempty" format:"date-time"`
	NotificationSent bool       `json:"notification_sent"`
}

type NotificationSettings struct {
	Enabled             bool   `json:"enabled"`
	PhoneRef            string `json:"phone_ref,omitempty"`
	ReminderLeadMinutes int    `json:"reminder_lead_minutes"`
}

type ActiveSchedule struct {
	ID               string               `json:"id"`
	OwnerRef         string               `json:"owner_ref"`
	FormulationRef   string               `json:"formulation_ref,omitempty"`
	Style            Style                `json:"style,omitempty"`
	Method           Method               `json:"method,omitempty"`
	Status           ScheduleStatus       `json:"status" enum:"planning,in-progress,paused,completed,cancelled"`
	TargetBakeTime   time.Time            `json:"target_bake_time" format:"date-time"`
	AdjustedBakeTime *time.Time           `json:"adjusted_bake_time,omitempty" format:"date-time"`
	Steps            []RuntimeStep        `json:"steps"`
	Notifications    NotificationSettings `json:"notifications"`
	CreatedAt        time.Time            `json:"created_at" format:"date-time"`
	StartedAt        *time.Time           `json:"started_at,omitempty" format:"date-time"`
	PausedAt         *time.Time           `json:"paused_at,omitempty" format:"date-time"`
	CompletedAt      *time.Time           `json:"completed_at,omitempty" format:"date-time"`
	CancelledAt      *time.Time           `json:"cancelled_at,omitempty" format:"date-time"`
	UpdatedAt        time.Time            `json:"updated_at" format:"date-time"`
	Version          int64                `json:"version"`
}

// BakeTime returns the adjusted bake time when set, otherwise the target.
func (s ActiveSchedule) BakeTime() time.Time {
	if s.AdjustedBakeTime != nil {
		return *s.AdjustedBakeTime
	}
	return s.TargetBakeTime
}

type FormulationRecord struct {
	ID        string             `json:"id"`
	OwnerRef  string             `json:"owner_ref"`
	Request   FormulationRequest `json:"request"`
	Result    FormulationResult  `json:"result"`
	CreatedAt string             `json:"created_at" format:"date-time"`
}

type NotificationAttempt struct {
	ID         int64  `json:"id"`
	ScheduleID string `json:"schedule_id"`
	StepNumber int    `json:"step_number"`
	TS         string `json:"ts" format:"date-time"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

type APIKey struct {
	ID        string `json:"id"`
	OwnerRef  string `json:"owner_ref"`
	Name      string `json:"name"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OwnerRef   string `json:"owner_ref,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload"`
}
