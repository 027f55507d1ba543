package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"spycats/internal/app"
	"spycats/internal/domain"
	"spycats/internal/engine"
)

func catCmd() *cobra.Command {
	cat := &cobra.Command{
		Use:     "cat",
		Aliases: []string{"spy-cat"},
		Short:   "Manage spy cats",
	}
	cat.AddCommand(catCreateCmd())
	cat.AddCommand(catListCmd())
	cat.AddCommand(catAvailableCmd())
	cat.AddCommand(catGetCmd())
	cat.AddCommand(catSalaryCmd())
	cat.AddCommand(catDeleteCmd())
	return cat
}

func catCreateCmd() *cobra.Command {
	var opts engine.CatCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Recruit a spy cat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngineApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.CreateCat(ctx, opts)
				if err != nil {
					return err
				}
				return printCats(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "cat name")
	cmd.Flags().IntVar(&opts.YearsOfExperience, "experience", 0, "years of experience")
	cmd.Flags().StringVar(&opts.Breed, "breed", "", "breed name known to the breed registry")
	cmd.Flags().Float64Var(&opts.Salary, "salary", 0, "salary")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("breed")
	return cmd
}

func catListCmd() *cobra.Command {
	var skip, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List spy cats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngineApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				cats, err := a.Engine.ListCats(ctx, skip, limit)
				if err != nil {
					return err
				}
				return printCats(cats...)
			})
		},
	}
	cmd.Flags().IntVar(&skip, "skip", engine.DefaultSkip, "records to skip")
	cmd.Flags().IntVar(&limit, "limit", engine.DefaultLimit, "maximum records")
	return cmd
}

func catAvailableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "List cats without an incomplete mission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngineApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				cats, err := a.Engine.ListAvailableCats(ctx)
				if err != nil {
					return err
				}
				return printCats(cats...)
			})
		},
	}
}

func catGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a spy cat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngineApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.GetCat(ctx, id)
				if err != nil {
					return err
				}
				return printCats(c)
			})
		},
	}
}

func catSalaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "salary <id> <amount>",
		Short: "Update a spy cat's salary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			salary, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid salary %q", args[1])
			}
			return withEngineApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.UpdateCatSalary(ctx, id, salary)
				if err != nil {
					return err
				}
				return printCats(c)
			})
		},
	}
}

func catDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a spy cat; its missions become unassigned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngineApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				ok, err := a.Engine.DeleteCat(ctx, id)
				if err != nil {
					return err
				}
				return printDeleted("spy cat", id, ok)
			})
		},
	}
}

func missionCmd() *cobra.Command {
	m := &cobra.Command{
		Use:   "mission",
		Short: "Manage missions",
		Long:  "A mission holds one to three targets and at most one spy cat. It completes once every target is complete.",
	}
	m.AddCommand(missionCreateCmd())
	m.AddCommand(missionListCmd())
	m.AddCommand(missionGetCmd())
	m.AddCommand(missionAssignCmd())
	m.AddCommand(missionDeleteCmd())
	return m
}

func missionCreateCmd() *cobra.Command {
	var specs []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a mission with its targets",
		Example: `  spycats mission create --target "Goldfinger:UK" --target "Blofeld:CH:last seen skiing"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := make([]domain.NewTarget, 0, len(specs))
			for _, s := range specs {
				t, err := parseTarget(s)
				if err != nil {
					return err
				}
				targets = append(targets, t)
			}
			return withEngineApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				m, err := a.Engine.CreateMission(ctx, targets)
				if err != nil {
					return err
				}
				return printMissions(m)
			})
		},
	}
	cmd.Flags().StringArrayVar(&specs, "target", nil, "target as name:country[:notes] (repeatable)")
	return cmd
}

func missionListCmd() *cobra.Command {
	var skip, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List missions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngineApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				missions, err := a.Engine.ListMissions(ctx, skip, limit)
				if err != nil {
					return err
				}
				return printMissions(missions...)
			})
		},
	}
	cmd.Flags().IntVar(&skip, "skip", engine.DefaultSkip, "records to skip")
	cmd.Flags().IntVar(&limit, "limit", engine.DefaultLimit, "maximum records")
	return cmd
}

func missionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a mission with its targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngineApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				m, err := a.Engine.GetMission(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(m)
				}
				if err := printMissions(m); err != nil {
					return err
				}
				return printTargets(m.Complete, m.Targets...)
			})
		},
	}
}

func missionAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <mission-id> <cat-id>",
		Short: "Assign a spy cat to a mission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			missionID, err := parseID(args[0])
			if err != nil {
				return err
			}
			catID, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withEngineApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				m, err := a.Engine.AssignCat(ctx, missionID, catID)
				if err != nil {
					return err
				}
				return printMissions(m)
			})
		},
	}
}

func missionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an unassigned mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngineApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				ok, err := a.Engine.DeleteMission(ctx, id)
				if err != nil {
					return err
				}
				return printDeleted("mission", id, ok)
			})
		},
	}
}

func targetCmd() *cobra.Command {
	t := &cobra.Command{Use: "target", Short: "Inspect and update mission targets"}
	t.AddCommand(targetGetCmd())
	t.AddCommand(targetUpdateCmd())
	return t
}

func targetGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngineApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.GetTarget(ctx, id)
				if err != nil {
					return err
				}
				return printTargets(false, t)
			})
		},
	}
}

func targetUpdateCmd() *cobra.Command {
	var notes string
	var complete bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update target notes or mark it complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			opts := engine.TargetUpdateOptions{ID: id}
			if cmd.Flags().Changed("notes") {
				opts.Notes = &notes
			}
			if cmd.Flags().Changed("complete") {
				opts.Complete = &complete
			}
			return withEngineApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.UpdateTarget(ctx, opts)
				if err != nil {
					return err
				}
				return printTargets(false, t)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "replace the target notes")
	cmd.Flags().BoolVar(&complete, "complete", false, "set the completion flag")
	return cmd
}

func breedCmd() *cobra.Command {
	b := &cobra.Command{Use: "breed", Short: "Query the breed registry"}
	b.AddCommand(&cobra.Command{
		Use:   "check <name>",
		Short: "Check whether a breed name is recognized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngineApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				ok, err := a.Breeds.Check(ctx, args[0])
				if viper.GetBool("json") {
					out := map[string]any{"breed": args[0], "valid": ok}
					if err != nil {
						out["error"] = err.Error()
					}
					return printJSON(out)
				}
				if err != nil {
					return err
				}
				if ok {
					fmt.Println(color.GreenString("valid"), args[0])
				} else {
					fmt.Println(color.RedString("unknown"), args[0])
				}
				return nil
			})
		},
	})
	return b
}

// --- output ---

func printCats(cats ...domain.Cat) error {
	if viper.GetBool("json") {
		if len(cats) == 1 {
			return printJSON(cats[0])
		}
		return printJSON(cats)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Breed", "Experience", "Salary"})
	for _, c := range cats {
		tw.AppendRow(table.Row{c.ID, c.Name, c.Breed, c.YearsOfExperience, fmt.Sprintf("%.2f", c.Salary)})
	}
	tw.Render()
	return nil
}

func printMissions(missions ...domain.Mission) error {
	if viper.GetBool("json") {
		if len(missions) == 1 {
			return printJSON(missions[0])
		}
		return printJSON(missions)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Cat", "Targets", "Status"})
	for _, m := range missions {
		cat := "-"
		if m.Cat != nil {
			cat = fmt.Sprintf("%s (#%d)", m.Cat.Name, m.Cat.ID)
		} else if m.CatID != nil {
			cat = fmt.Sprintf("#%d", *m.CatID)
		}
		done := 0
		for _, t := range m.Targets {
			if t.Complete {
				done++
			}
		}
		tw.AppendRow(table.Row{m.ID, cat, fmt.Sprintf("%d/%d", done, len(m.Targets)), status(m.Complete)})
	}
	tw.Render()
	return nil
}

func printTargets(missionComplete bool, targets ...domain.Target) error {
	if viper.GetBool("json") {
		if len(targets) == 1 {
			return printJSON(targets[0])
		}
		return printJSON(targets)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Mission", "Name", "Country", "Notes", "Status"})
	for _, t := range targets {
		st := status(t.Complete)
		if !t.Complete && t.Locked(missionComplete) {
			st = color.YellowString("locked")
		}
		tw.AppendRow(table.Row{t.ID, t.MissionID, t.Name, t.Country, t.Notes, st})
	}
	tw.Render()
	return nil
}

func printDeleted(kind string, id int64, ok bool) error {
	if viper.GetBool("json") {
		return printJSON(map[string]any{"id": id, "deleted": ok})
	}
	if !ok {
		return fmt.Errorf("%s %d was not deleted", kind, id)
	}
	fmt.Printf("%s %d deleted\n", kind, id)
	return nil
}

func status(complete bool) string {
	if complete {
		return color.GreenString("complete")
	}
	return color.CyanString("active")
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// parseTarget reads name:country[:notes]; notes may contain further colons.
func parseTarget(s string) (domain.NewTarget, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return domain.NewTarget{}, fmt.Errorf("invalid target %q, want name:country[:notes]", s)
	}
	t := domain.NewTarget{Name: strings.TrimSpace(parts[0]), Country: strings.TrimSpace(parts[1])}
	if len(parts) == 3 {
		t.Notes = parts[2]
	}
	return t, nil
}
