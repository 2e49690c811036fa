package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"doughline/internal/domain"
	"doughline/internal/engine"
	"doughline/internal/tracker"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04"}

// parseTime reads RFC3339 or a local wall-clock time.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range timeLayouts[1:] {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use RFC3339 or \"2006-01-02 15:04\")", s)
}

func scheduleCmd() *cobra.Command {
	s := &cobra.Command{
		Use:   "schedule",
		Short: "Preparation schedules",
		Long:  "A schedule is a formulation laid out backward from the bake time. Start it, then complete or skip steps as you go.",
	}
	s.AddCommand(scheduleCreateCmd())
	s.AddCommand(scheduleListCmd())
	s.AddCommand(scheduleShowCmd())
	s.AddCommand(simpleCommand("start", "Start the schedule", tracker.CmdStart))
	s.AddCommand(simpleCommand("pause", "Pause the schedule", tracker.CmdPause))
	s.AddCommand(simpleCommand("resume", "Resume a paused schedule", tracker.CmdResume))
	s.AddCommand(simpleCommand("cancel", "Cancel the schedule", tracker.CmdCancel))
	s.AddCommand(stepCommand("complete", "Mark a step completed", tracker.CmdCompleteStep))
	s.AddCommand(stepCommand("skip", "Skip a step", tracker.CmdSkipStep))
	s.AddCommand(scheduleRescheduleCmd())
	s.AddCommand(scheduleNotifyCmd())
	s.AddCommand(scheduleDueCmd())
	return s
}

func scheduleCreateCmd() *cobra.Command {
	var formulationID, bake, method, phone string
	var lead int
	var notifyOn bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generate a schedule from a stored formulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			bakeAt, err := parseTime(bake)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, owner string) error {
				opts := engine.ScheduleCreateOptions{
					OwnerID:       owner,
					FormulationID: formulationID,
					Method:        domain.Method(method),
					BakeTime:      bakeAt,
					ActorID:       owner,
				}
				if notifyOn {
					if !cmd.Flags().Changed("lead") {
						lead = e.Config.Defaults.ReminderLeadMinutes
					}
					opts.Notifications = &domain.NotificationSettings{Enabled: true, PhoneRef: phone, ReminderLeadMinutes: lead}
				}
				s, err := e.CreateSchedule(ctx, opts)
				if err != nil {
					return err
				}
				return printSchedule(e, s)
			})
		},
	}
	cmd.Flags().StringVar(&formulationID, "formulation", "", "formulation id")
	cmd.Flags().StringVar(&bake, "bake", "", "target bake time")
	cmd.Flags().StringVar(&method, "method", "", "override the formulation's fermentation method")
	cmd.Flags().BoolVar(&notifyOn, "notify", false, "enable step reminders")
	cmd.Flags().StringVar(&phone, "phone", "", "reminder phone reference")
	cmd.Flags().IntVar(&lead, "lead", 0, "minutes before a step to send its reminder")
	_ = cmd.MarkFlagRequired("formulation")
	_ = cmd.MarkFlagRequired("bake")
	return cmd
}

func scheduleListCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, owner string) error {
				items, err := e.ListSchedules(ctx, owner, domain.ScheduleStatus(status), limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Style", "Status", "Bake", "Done", "Version"})
				for _, s := range items {
					tw.AppendRow(table.Row{
						s.ID, s.Style, s.Status, s.BakeTime().Local().Format("Mon Jan 2 15:04"),
						fmt.Sprintf("%d%%", tracker.CompletionPercentage(s)), s.Version,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func scheduleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a schedule and its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, owner string) error {
				s, err := e.GetSchedule(ctx, owner, args[0])
				if err != nil {
					return err
				}
				return printSchedule(e, s)
			})
		},
	}
}

func simpleCommand(use, short string, kind tracker.CommandKind) *cobra.Command {
	var version int64
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transition(cmd.Context(), args[0], version, tracker.Command{Kind: kind})
		},
	}
	cmd.Flags().Int64Var(&version, "expected-version", 0, "fail unless the schedule is at this version")
	return cmd
}

func stepCommand(use, short string, kind tracker.CommandKind) *cobra.Command {
	var version int64
	var status string
	cmd := &cobra.Command{
		Use:   use + " <id> <step>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			step, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("step must be a number: %w", err)
			}
			return transition(cmd.Context(), args[0], version, tracker.Command{Kind: kind, Step: step, Status: domain.StepStatus(status)})
		},
	}
	cmd.Flags().Int64Var(&version, "expected-version", 0, "fail unless the schedule is at this version")
	if kind == tracker.CmdCompleteStep {
		cmd.Flags().StringVar(&status, "status", "", "override the timing: completed, completed-early, completed-late")
	}
	return cmd
}

func scheduleRescheduleCmd() *cobra.Command {
	var to string
	var by int
	var version int64
	cmd := &cobra.Command{
		Use:   "reschedule <id>",
		Short: "Move the bake time; remaining steps keep their offsets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case cmd.Flags().Changed("to") && cmd.Flags().Changed("by"):
				return fmt.Errorf("use either --to or --by")
			case cmd.Flags().Changed("to"):
				bake, err := parseTime(to)
				if err != nil {
					return err
				}
				return transition(cmd.Context(), args[0], version, tracker.Command{Kind: tracker.CmdRescheduleTo, BakeTime: bake})
			case cmd.Flags().Changed("by"):
				return transition(cmd.Context(), args[0], version, tracker.Command{Kind: tracker.CmdRescheduleBy, Minutes: by})
			}
			return fmt.Errorf("--to or --by is required")
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "new bake time")
	cmd.Flags().IntVar(&by, "by", 0, "shift in minutes, negative for earlier")
	cmd.Flags().Int64Var(&version, "expected-version", 0, "fail unless the schedule is at this version")
	return cmd
}

func scheduleNotifyCmd() *cobra.Command {
	var phone string
	var lead int
	var off bool
	cmd := &cobra.Command{
		Use:   "notify <id>",
		Short: "Enable or disable step reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if off {
				return transition(cmd.Context(), args[0], 0, tracker.Command{Kind: tracker.CmdDisableNotifications})
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, owner string) error {
				if !cmd.Flags().Changed("lead") {
					lead = e.Config.Defaults.ReminderLeadMinutes
				}
				return applyCommand(ctx, e, owner, args[0], 0, tracker.Command{Kind: tracker.CmdEnableNotifications, Phone: phone, LeadMinutes: lead})
			})
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "reminder phone reference")
	cmd.Flags().IntVar(&lead, "lead", 0, "minutes before a step to send its reminder")
	cmd.Flags().BoolVar(&off, "off", false, "disable reminders")
	return cmd
}

func scheduleDueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "due <id>",
		Short: "Steps whose reminder is due now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, owner string) error {
				due, err := e.ScheduleDue(ctx, owner, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(due)
				}
				for _, st := range due {
					fmt.Println(tracker.ReminderText(st, time.Local))
				}
				return nil
			})
		},
	}
}

func transition(ctx context.Context, id string, version int64, cmd tracker.Command) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine, owner string) error {
		return applyCommand(ctx, e, owner, id, version, cmd)
	})
}

func applyCommand(ctx context.Context, e engine.Engine, owner, id string, version int64, cmd tracker.Command) error {
	s, err := e.Transition(ctx, engine.TransitionOptions{
		ID:              id,
		OwnerID:         owner,
		ExpectedVersion: version,
		Command:         cmd,
		ActorID:         owner,
	})
	if err != nil {
		return err
	}
	return printSchedule(e, s)
}

func printSchedule(e engine.Engine, s domain.ActiveSchedule) error {
	progress := e.Progress(s)
	if viper.GetBool("json") {
		return printJSON(map[string]any{"schedule": s, "progress": progress})
	}
	fmt.Printf("Schedule %s (%s, version %d)\n", s.ID, s.Status, s.Version)
	fmt.Printf("Bake at %s, %d%% done", s.BakeTime().Local().Format("Mon Jan 2 15:04"), progress.CompletionPct)
	if progress.MinutesToNextStep != nil {
		fmt.Printf(", next step in %d min", *progress.MinutesToNextStep)
	}
	fmt.Println()
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"#", "Time", "Step", "Minutes", "Status", "Done at"})
	for _, st := range s.Steps {
		doneAt := ""
		if st.ActualTime != nil {
			doneAt = st.ActualTime.Local().Format("15:04")
		}
		title := st.Title
		if st.TemperatureC != nil {
			title = fmt.Sprintf("%s (%.0f °C)", title, *st.TemperatureC)
		}
		tw.AppendRow(table.Row{st.StepNumber, st.ScheduledTime.Local().Format("Mon 15:04"), title, st.DurationMinutes, st.Status, doneAt})
	}
	tw.Render()
	return nil
}

func printEvents(items []domain.Event) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	for _, evt := range items {
		fmt.Printf("%s  %-28s %s/%s  %s  %s\n", evt.TS, evt.Type, evt.EntityKind, evt.EntityID, evt.ActorID, evt.Payload)
	}
	return nil
}
