package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"doughline/internal/app"
	"doughline/internal/bakers"
	"doughline/internal/domain"
	"doughline/internal/engine"
	"doughline/internal/recipefile"
)

type calcFlags struct {
	file       string
	save       bool
	unit       string
	style      string
	units      int
	ballWeight float64
	hydration  float64
	salt       float64
	oil        float64
	sugar      float64
	yeast      string
	method     string
	hours      int
	roomTemp   float64
	fridgeTemp float64
	mixer      string
	prefType   string
	prefPct    float64
	prefHours  int
}

// optional float flags map straight onto pointer fields of the request.
var optionalFloatFlags = []struct {
	name  string
	usage string
	field func(*domain.FormulationRequest) **float64
}{
	{"flour-temp", "flour temperature in °C", func(r *domain.FormulationRequest) **float64 { return &r.FlourTempC }},
	{"preferment-temp", "preferment temperature in °C", func(r *domain.FormulationRequest) **float64 { return &r.PrefermentTempC }},
	{"target-dough-temp", "desired dough temperature in °C", func(r *domain.FormulationRequest) **float64 { return &r.TargetDoughTempC }},
	{"flour-w", "flour strength W", func(r *domain.FormulationRequest) **float64 { return &r.FlourStrengthW }},
	{"protein", "flour protein %", func(r *domain.FormulationRequest) **float64 { return &r.FlourProteinPct }},
	{"water-hardness", "water hardness in ppm", func(r *domain.FormulationRequest) **float64 { return &r.WaterHardness }},
	{"water-ph", "water pH", func(r *domain.FormulationRequest) **float64 { return &r.WaterPh }},
	{"altitude", "altitude in meters", func(r *domain.FormulationRequest) **float64 { return &r.AltitudeMeters }},
	{"humidity", "relative humidity %", func(r *domain.FormulationRequest) **float64 { return &r.HumidityPct }},
	{"starter", "sourdough starter grams", func(r *domain.FormulationRequest) **float64 { return &r.StarterGrams }},
	{"yeast-pct", "fresh yeast % of flour, skips the fermentation model", func(r *domain.FormulationRequest) **float64 { return &r.YeastPctOverride }},
}

func calcCmd() *cobra.Command {
	var f calcFlags
	var extras, flours []string
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute a dough formulation",
		Long: `Compute ingredient masses from baker's percentages. Unset values come from the style table
and the workspace defaults; --file reads a .yml, .toml or .json request and flags override it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, owner string) error {
				req, err := buildRequest(cmd, f, extras, flours, e)
				if err != nil {
					return err
				}
				rec, err := e.ComputeFormulation(ctx, owner, req, f.save)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rec)
				}
				return printFormulation(rec, f.unit)
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.file, "file", "", "request file (.yml, .yaml, .toml, .json)")
	fl.BoolVar(&f.save, "save", false, "store the formulation")
	fl.StringVar(&f.unit, "unit", "g", "display unit: g, oz or lb")
	fl.StringVar(&f.style, "style", "", "dough style")
	fl.IntVar(&f.units, "units", 0, "number of balls or pans")
	fl.Float64Var(&f.ballWeight, "ball-weight", 0, "weight of one ball in grams")
	fl.Float64Var(&f.hydration, "hydration", 0, "hydration %")
	fl.Float64Var(&f.salt, "salt", 0, "salt %")
	fl.Float64Var(&f.oil, "oil", 0, "oil %")
	fl.Float64Var(&f.sugar, "sugar", 0, "sugar %")
	fl.StringVar(&f.yeast, "yeast", "", "yeast kind: fresh, instant-dry, active-dry, sourdough")
	fl.StringVar(&f.method, "method", "", "fermentation method: room-temperature, cold, mixed, same-day")
	fl.IntVar(&f.hours, "hours", 0, "total fermentation hours")
	fl.Float64Var(&f.roomTemp, "room-temp", 0, "room temperature in °C")
	fl.Float64Var(&f.fridgeTemp, "fridge-temp", 0, "fridge temperature in °C")
	fl.StringVar(&f.mixer, "mixer", "", "mixer: hand, stand-home, stand-pro, spiral, fork")
	fl.StringVar(&f.prefType, "preferment", "", "preferment: poolish, biga, lievito-madre")
	fl.Float64Var(&f.prefPct, "preferment-pct", 0, "share of flour in the preferment")
	fl.IntVar(&f.prefHours, "preferment-hours", 0, "preferment fermentation hours")
	fl.StringArrayVar(&extras, "extra", nil, "extra ingredient as name=pct (repeatable)")
	fl.StringArrayVar(&flours, "flour", nil, "blend portion as name=pct[:W[:protein]] (repeatable)")
	for _, of := range optionalFloatFlags {
		fl.Float64(of.name, 0, of.usage)
	}
	return cmd
}

func buildRequest(cmd *cobra.Command, f calcFlags, extras, flours []string, e engine.Engine) (domain.FormulationRequest, error) {
	fl := cmd.Flags()
	base := func(style domain.Style) domain.FormulationRequest {
		if style == "" {
			style = domain.Style(f.style)
		}
		return app.RequestDefaults(e.Config, style)
	}
	var req domain.FormulationRequest
	if f.file != "" {
		var err error
		if req, err = recipefile.Load(f.file, base); err != nil {
			return req, err
		}
	} else {
		req = base("")
	}
	if fl.Changed("style") {
		req.Style = domain.Style(f.style)
	}
	if fl.Changed("units") {
		req.NumberOfUnits = f.units
	}
	if fl.Changed("ball-weight") {
		req.BallWeightGrams = f.ballWeight
	}
	if fl.Changed("hydration") {
		req.HydrationPct = f.hydration
	}
	if fl.Changed("salt") {
		req.SaltPct = f.salt
	}
	if fl.Changed("oil") {
		req.OilPct = f.oil
	}
	if fl.Changed("sugar") {
		req.SugarPct = f.sugar
	}
	if fl.Changed("yeast") {
		req.YeastKind = domain.YeastKind(f.yeast)
	}
	if fl.Changed("method") {
		req.Method = domain.Method(f.method)
	}
	if fl.Changed("hours") {
		req.TotalFermentationHours = f.hours
	}
	if fl.Changed("room-temp") {
		req.RoomTempC = f.roomTemp
	}
	if fl.Changed("fridge-temp") {
		req.FridgeTempC = f.fridgeTemp
	}
	if fl.Changed("mixer") {
		req.MixerType = domain.MixerType(f.mixer)
	}
	for _, of := range optionalFloatFlags {
		if !fl.Changed(of.name) {
			continue
		}
		v, err := fl.GetFloat64(of.name)
		if err != nil {
			return req, err
		}
		*of.field(&req) = &v
	}
	if fl.Changed("preferment") {
		p := &domain.PrefermentRequest{Type: domain.PrefermentType(f.prefType)}
		if fl.Changed("preferment-pct") {
			p.Pct = &f.prefPct
		}
		if fl.Changed("preferment-hours") {
			p.Hours = &f.prefHours
		}
		req.Preferment = p
	}
	for _, raw := range extras {
		name, pct, ok := strings.Cut(raw, "=")
		if !ok {
			return req, fmt.Errorf("--extra %q: want name=pct", raw)
		}
		var v float64
		if _, err := fmt.Sscanf(pct, "%g", &v); err != nil {
			return req, fmt.Errorf("--extra %q: %w", raw, err)
		}
		req.Extras = append(req.Extras, domain.Extra{Name: strings.TrimSpace(name), Pct: v})
	}
	for _, raw := range flours {
		p, err := parseFlourPortion(raw)
		if err != nil {
			return req, err
		}
		req.FlourBlend = append(req.FlourBlend, p)
	}
	return req, nil
}

func parseFlourPortion(raw string) (domain.FlourPortion, error) {
	name, rest, ok := strings.Cut(raw, "=")
	if !ok {
		return domain.FlourPortion{}, fmt.Errorf("--flour %q: want name=pct[:W[:protein]]", raw)
	}
	parts := strings.Split(rest, ":")
	if len(parts) > 3 {
		return domain.FlourPortion{}, fmt.Errorf("--flour %q: too many fields", raw)
	}
	vals := make([]float64, len(parts))
	for i, part := range parts {
		if _, err := fmt.Sscanf(part, "%g", &vals[i]); err != nil {
			return domain.FlourPortion{}, fmt.Errorf("--flour %q: %w", raw, err)
		}
	}
	p := domain.FlourPortion{Name: strings.TrimSpace(name), Pct: vals[0]}
	if len(vals) > 1 {
		p.StrengthW = &vals[1]
	}
	if len(vals) > 2 {
		p.ProteinPct = &vals[2]
	}
	return p, nil
}

func massIn(grams float64, unit string) string {
	switch unit {
	case "oz":
		return fmt.Sprintf("%.2f oz", bakers.ToOunces(grams))
	case "lb":
		return fmt.Sprintf("%.3f lb", bakers.ToPounds(grams))
	default:
		return fmt.Sprintf("%.1f g", grams)
	}
}

func printFormulation(rec domain.FormulationRecord, unit string) error {
	res := rec.Result
	if rec.ID != "" {
		fmt.Printf("Formulation %s\n", rec.ID)
	}
	fmt.Printf("%s, %d x %s, %s, %dh\n", res.Style, res.NumberOfUnits, massIn(res.BallWeightGrams, unit), res.Method, res.FermentationHours)

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Ingredient", "Mass", "Baker's %"})
	ing, pct := res.Ingredients, res.Percentages
	tw.AppendRow(table.Row{"flour", massIn(ing.Flour, unit), fmt.Sprintf("%.1f", pct.Flour)})
	for _, fp := range res.FlourBlend {
		tw.AppendRow(table.Row{"  " + fp.Name, massIn(fp.Grams, unit), fmt.Sprintf("(%.0f%% of flour)", fp.Pct)})
	}
	tw.AppendRow(table.Row{"water", massIn(ing.Water, unit), fmt.Sprintf("%.1f", pct.Water)})
	tw.AppendRow(table.Row{"salt", massIn(ing.Salt, unit), fmt.Sprintf("%.2f", pct.Salt)})
	tw.AppendRow(table.Row{string(res.YeastKind) + " yeast", massIn(ing.Yeast, unit), fmt.Sprintf("%.3f", pct.Yeast)})
	if ing.Oil > 0 {
		tw.AppendRow(table.Row{"oil", massIn(ing.Oil, unit), fmt.Sprintf("%.1f", pct.Oil)})
	}
	if ing.Sugar > 0 {
		tw.AppendRow(table.Row{"sugar", massIn(ing.Sugar, unit), fmt.Sprintf("%.1f", pct.Sugar)})
	}
	for _, x := range ing.Extras {
		tw.AppendRow(table.Row{x.Name, massIn(x.Grams, unit), fmt.Sprintf("%.1f", x.Pct)})
	}
	tw.AppendFooter(table.Row{"total", massIn(ing.Sum(), unit), ""})
	tw.Render()

	if p := res.Preferment; p != nil && res.MainDough != nil {
		m := res.MainDough
		pt := table.NewWriter()
		pt.SetOutputMirror(os.Stdout)
		pt.SetTitle(fmt.Sprintf("%s (%.0f%% of flour, %dh)", p.Type, p.Pct, p.Hours))
		pt.AppendHeader(table.Row{"", "Preferment", "Main dough"})
		pt.AppendRow(table.Row{"flour", massIn(p.FlourGrams, unit), massIn(m.FlourGrams, unit)})
		pt.AppendRow(table.Row{"water", massIn(p.WaterGrams, unit), massIn(m.WaterGrams, unit)})
		pt.AppendRow(table.Row{"yeast", massIn(p.YeastGrams, unit), massIn(m.YeastGrams, unit)})
		pt.AppendRow(table.Row{"salt", "", massIn(m.SaltGrams, unit)})
		pt.Render()
	}
	if d := res.DDT; d != nil {
		fmt.Printf("Water temperature: %.1f °C for a %.1f °C dough (%s)\n", d.TargetWaterTempC, d.TargetDoughTempC, d.FormulaTrace)
		printLines("", d.Warnings)
	}
	printLines("Yeast adjustments", res.YeastAdjustments)
	printLines("Environment", res.Environment.Recommendations)
	printLines("Warnings", res.Warnings)
	printLines("Tips", res.Tips)
	return nil
}

func printLines(title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	if title != "" {
		fmt.Println(title + ":")
	}
	for _, l := range lines {
		fmt.Println("  - " + l)
	}
}

func stylesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List dough styles and their defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			styles := domain.Styles()
			if viper.GetBool("json") {
				return printJSON(styles)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Style", "Name", "Hydration", "Ball", "Hours", "Oven", "Bake"})
			for _, s := range styles {
				tw.AppendRow(table.Row{
					s.Style, s.DisplayName,
					fmt.Sprintf("%.0f%% (%.0f-%.0f)", s.DefaultHydrationPct, s.MinHydrationPct, s.MaxHydrationPct),
					fmt.Sprintf("%.0f g", s.DefaultBallWeightGrams),
					s.DefaultFermentationHours,
					fmt.Sprintf("%s %.0f °C", s.Oven, s.OvenTempC),
					fmt.Sprintf("%ds", s.BakeSeconds),
				})
			}
			tw.Render()
			return nil
		},
	}
}

func formulationCmd() *cobra.Command {
	f := &cobra.Command{Use: "formulation", Short: "Stored formulations"}
	f.AddCommand(formulationListCmd())
	f.AddCommand(formulationShowCmd())
	return f
}

func formulationListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored formulations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, owner string) error {
				items, err := e.ListFormulations(ctx, owner, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Style", "Units", "Hydration", "Method", "Hours", "Created"})
				for _, r := range items {
					tw.AppendRow(table.Row{
						r.ID, r.Result.Style, r.Result.NumberOfUnits,
						fmt.Sprintf("%.1f%%", r.Result.Percentages.Water),
						r.Result.Method, r.Result.FermentationHours, r.CreatedAt,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func formulationShowCmd() *cobra.Command {
	var unit string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored formulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, owner string) error {
				rec, err := e.GetFormulation(ctx, owner, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rec)
				}
				return printFormulation(rec, unit)
			})
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "g", "display unit: g, oz or lb")
	return cmd
}
