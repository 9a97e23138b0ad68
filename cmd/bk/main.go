package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"belkon/internal/app"
	"belkon/internal/config"
	"belkon/internal/db"
	"belkon/internal/domain"
	"belkon/internal/engine"
	"belkon/internal/export"
	"belkon/internal/migrate"
	"belkon/internal/repo"
	"belkon/internal/rollup"
	"belkon/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "bk",
	Short: "Belkon CLI",
	Long: `Belkon administers municipal internal-control compliance plans.
Organizations hold module licenses; each licensed org maintains action plans
whose actions hang off the shared KİKS taxonomy (components, standards,
conditions). The report commands roll actions up into the grouped compliance
view with delay tracking and Turkish-collated ordering, exportable to XLSX
and PDF.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("BELKON")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("org", "", "organization id (overrides single-org default)")
	rootCmd.PersistentFlags().String("plan", "", "plan id (overrides active plan)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("org", rootCmd.PersistentFlags().Lookup("org"))
	_ = viper.BindPFlag("plan", rootCmd.PersistentFlags().Lookup("plan"))
}

func registerCommands() {
	rootCmd.AddCommand(orgCmd())
	rootCmd.AddCommand(licenseCmd())
	rootCmd.AddCommand(moduleCmd())
	rootCmd.AddCommand(departmentCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(conditionCmd())
	rootCmd.AddCommand(situationCmd())
	rootCmd.AddCommand(actionCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func orgCmd() *cobra.Command {
	org := &cobra.Command{Use: "org", Short: "Manage organizations"}
	org.AddCommand(orgCreateCmd())
	org.AddCommand(orgListCmd())
	org.AddCommand(orgShowCmd())
	org.AddCommand(orgUpdateCmd())
	org.AddCommand(orgDeleteCmd())
	return org
}

func orgCreateCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.CreateOrg(ctx, engine.OrgCreateOptions{
					ID: id, Name: name, ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "organization id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "organization name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func orgListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListOrgs(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func orgShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the working organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				o, err := app.ResolveOrg(ctx, viper.GetString("org"), r)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
}

func orgUpdateCmd() *cobra.Command {
	var name, status string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), e.Repo)
				if err != nil {
					return err
				}
				o, err := e.UpdateOrg(ctx, org.ID, name, status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&status, "status", "", "status (active, suspended)")
	return cmd
}

func orgDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteOrg(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func moduleCmd() *cobra.Command {
	mod := &cobra.Command{Use: "module", Short: "Module catalog"}
	mod.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListModules(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	return mod
}

func licenseCmd() *cobra.Command {
	lic := &cobra.Command{Use: "license", Short: "Manage module licenses"}
	lic.AddCommand(licenseGrantCmd())
	lic.AddCommand(licenseRevokeCmd())
	lic.AddCommand(licenseListCmd())
	return lic
}

func licenseGrantCmd() *cobra.Command {
	var moduleID, expires string
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant a module license",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), e.Repo)
				if err != nil {
					return err
				}
				l, err := e.GrantLicense(ctx, engine.LicenseGrantOptions{
					OrgID:     org.ID,
					ModuleID:  moduleID,
					ExpiresAt: expires,
					ActorID:   viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&moduleID, "module", engine.ModuleInternalControl, "module id")
	cmd.Flags().StringVar(&expires, "expires", "", "expiry date (YYYY-MM-DD, empty for perpetual)")
	return cmd
}

func licenseRevokeCmd() *cobra.Command {
	var moduleID string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a module license",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), e.Repo)
				if err != nil {
					return err
				}
				return e.RevokeLicense(ctx, org.ID, moduleID, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&moduleID, "module", engine.ModuleInternalControl, "module id")
	return cmd
}

func licenseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List organization licenses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), r)
				if err != nil {
					return err
				}
				items, err := r.ListLicenses(ctx, org.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func departmentCmd() *cobra.Command {
	dep := &cobra.Command{Use: "department", Short: "Manage departments"}
	dep.AddCommand(departmentCreateCmd())
	dep.AddCommand(departmentListCmd())
	dep.AddCommand(departmentRenameCmd())
	dep.AddCommand(departmentDeleteCmd())
	return dep
}

func departmentCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create department",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), e.Repo)
				if err != nil {
					return err
				}
				d, err := e.CreateDepartment(ctx, org.ID, name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "department name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func departmentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), r)
				if err != nil {
					return err
				}
				items, err := r.ListDepartments(ctx, org.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func departmentRenameCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "rename <id>",
		Short: "Rename department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), e.Repo)
				if err != nil {
					return err
				}
				return e.RenameDepartment(ctx, org.ID, args[0], name, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func departmentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), e.Repo)
				if err != nil {
					return err
				}
				return e.DeleteDepartment(ctx, org.ID, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func planCmd() *cobra.Command {
	plan := &cobra.Command{Use: "plan", Short: "Manage action plans"}
	plan.AddCommand(planCreateCmd())
	plan.AddCommand(planListCmd())
	plan.AddCommand(planActivateCmd())
	return plan
}

func planCreateCmd() *cobra.Command {
	var name string
	var year int
	var activate bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create action plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), e.Repo)
				if err != nil {
					return err
				}
				p, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
					OrgID:    org.ID,
					Name:     name,
					Year:     year,
					Activate: activate,
					ActorID:  viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "plan name")
	cmd.Flags().IntVar(&year, "year", 0, "plan year")
	cmd.Flags().BoolVar(&activate, "activate", false, "activate on create")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func planListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List action plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), r)
				if err != nil {
					return err
				}
				items, err := r.ListPlans(ctx, org.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func planActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Activate action plan (deactivates any other)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), e.Repo)
				if err != nil {
					return err
				}
				return e.ActivatePlan(ctx, org.ID, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func conditionCmd() *cobra.Command {
	cond := &cobra.Command{Use: "condition", Short: "Manage taxonomy conditions"}
	cond.AddCommand(conditionCreateCmd())
	cond.AddCommand(conditionListCmd())
	return cond
}

func conditionCreateCmd() *cobra.Command {
	var standardID, code, description string
	var assurance bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create condition under a standard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateCondition(ctx, engine.ConditionCreateOptions{
					StandardID:          standardID,
					Code:                code,
					Description:         description,
					ReasonableAssurance: assurance,
					ActorID:             viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&standardID, "standard", "", "standard id")
	cmd.Flags().StringVar(&code, "code", "", "condition code, e.g. KOS 1.1")
	cmd.Flags().StringVar(&description, "description", "", "condition description")
	cmd.Flags().BoolVar(&assurance, "reasonable-assurance", false, "mark condition as already providing reasonable assurance")
	_ = cmd.MarkFlagRequired("standard")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func conditionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List taxonomy conditions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListConditions(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func situationCmd() *cobra.Command {
	var conditionID, narrative string
	cmd := &cobra.Command{
		Use:   "situation",
		Short: "Set the current-situation narrative for a condition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tenant, err := resolveTenant(ctx, e.Repo)
				if err != nil {
					return err
				}
				s, err := e.UpsertSituation(ctx, tenant.Org.ID, tenant.Plan.ID, conditionID, narrative, tenant.ActorID)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&conditionID, "condition", "", "condition id")
	cmd.Flags().StringVar(&narrative, "narrative", "", "current situation text")
	_ = cmd.MarkFlagRequired("condition")
	_ = cmd.MarkFlagRequired("narrative")
	return cmd
}

func actionCmd() *cobra.Command {
	act := &cobra.Command{Use: "action", Short: "Manage plan actions"}
	act.AddCommand(actionCreateCmd())
	act.AddCommand(actionUpdateCmd())
	act.AddCommand(actionListCmd())
	act.AddCommand(actionDeleteCmd())
	return act
}

func actionFlags(cmd *cobra.Command, opts *engine.ActionOptions) {
	cmd.Flags().StringVar(&opts.ConditionID, "condition", "", "condition id")
	cmd.Flags().StringVar(&opts.Code, "code", "", "action code, e.g. KOS 1.1.1")
	cmd.Flags().StringVar(&opts.Title, "title", "", "action title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "action description")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (not_started, in_progress, completed, cancelled, ongoing)")
	cmd.Flags().IntVar(&opts.Progress, "progress", 0, "completion percentage 0-100")
	cmd.Flags().StringVar(&opts.StartDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.TargetDate, "target", "", "target date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.CompletedAt, "completed-at", "", "completion date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.Continuous, "continuous", false, "continuously monitored action")
	cmd.Flags().BoolVar(&opts.AllResponsible, "all-responsible", false, "all departments responsible")
	cmd.Flags().BoolVar(&opts.AllCollaborating, "all-collaborating", false, "all departments collaborating")
	cmd.Flags().StringSliceVar(&opts.ResponsibleIDs, "responsible", nil, "responsible department ids")
	cmd.Flags().StringSliceVar(&opts.CollaboratingIDs, "collaborating", nil, "collaborating department ids")
	cmd.Flags().StringSliceVar(&opts.ResponsibleUnits, "responsible-unit", nil, "special responsible unit tags")
	cmd.Flags().StringSliceVar(&opts.CollaboratingUnits, "collaborating-unit", nil, "special collaborating unit tags")
}

func actionCreateCmd() *cobra.Command {
	var opts engine.ActionOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create action",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tenant, err := resolveTenant(ctx, e.Repo)
				if err != nil {
					return err
				}
				opts.OrgID = tenant.Org.ID
				opts.PlanID = tenant.Plan.ID
				opts.ActorID = tenant.ActorID
				a, err := e.CreateAction(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	actionFlags(cmd, &opts)
	_ = cmd.MarkFlagRequired("condition")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func actionUpdateCmd() *cobra.Command {
	var opts engine.ActionOptions
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update action (fields are replaced wholesale)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), e.Repo)
				if err != nil {
					return err
				}
				opts.OrgID = org.ID
				opts.ActorID = viper.GetString("actor-id")
				a, err := e.UpdateAction(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	actionFlags(cmd, &opts)
	return cmd
}

func actionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List plan actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				tenant, err := resolveTenant(ctx, r)
				if err != nil {
					return err
				}
				items, err := r.ListActions(ctx, tenant.Plan.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Code", "Title", "Status", "Progress", "Target"})
				for _, a := range items {
					target := ""
					if a.TargetDate != nil {
						target = *a.TargetDate
					}
					tw.AppendRow(table.Row{a.ID, a.Code, a.Title, a.Status, a.Progress, target})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func actionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), e.Repo)
				if err != nil {
					return err
				}
				return e.DeleteAction(ctx, org.ID, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Rollup reports"}
	rep.AddCommand(reportShowCmd())
	rep.AddCommand(reportStatsCmd())
	rep.AddCommand(reportExportCmd())
	return rep
}

func reportFilterFlags(cmd *cobra.Command, f *rollup.Filters, sortKey, direction *string) {
	cmd.Flags().StringVar(&f.ComponentID, "component", "", "filter by component id")
	cmd.Flags().StringVar(&f.StandardID, "standard", "", "filter by standard id")
	cmd.Flags().StringVar(&f.ResponsibleID, "responsible", "", "filter by responsible department id")
	cmd.Flags().StringVar(&f.CollaboratingID, "collaborating", "", "filter by collaborating department id")
	cmd.Flags().StringVar(&f.Search, "search", "", "case-insensitive text search")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter (includes delayed, continuous)")
	cmd.Flags().StringVar(sortKey, "sort", "", "sort key (delay, code, standard, target_date, progress)")
	cmd.Flags().StringVar(direction, "direction", "", "sort direction (asc, desc)")
}

func reportOptions(tenant app.Tenant, f rollup.Filters, sortKey, direction string) engine.ReportOptions {
	s := rollup.DefaultSort()
	if sortKey != "" {
		s.Key = rollup.SortKey(sortKey)
	}
	if direction != "" {
		s.Direction = rollup.Direction(direction)
	}
	return engine.ReportOptions{
		OrgID:   tenant.Org.ID,
		PlanID:  tenant.Plan.ID,
		Filters: f,
		Sort:    s,
	}
}

func reportShowCmd() *cobra.Command {
	var filters rollup.Filters
	var sortKey, direction string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the grouped compliance rollup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tenant, err := resolveTenant(ctx, e.Repo)
				if err != nil {
					return err
				}
				rep, err := e.Report(ctx, reportOptions(tenant, filters, sortKey, direction))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				renderReport(rep)
				return nil
			})
		},
	}
	reportFilterFlags(cmd, &filters, &sortKey, &direction)
	return cmd
}

func renderReport(rep engine.Report) {
	fmt.Printf("Plan: %s (%d)\n", rep.Plan.Name, rep.Plan.Year)
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Code", "Title", "Status", "Progress", "Target", "Delay"})
	for _, comp := range rep.Tree.Components {
		tw.AppendRow(table.Row{comp.Code, comp.Name, "", "", "", ""})
		for _, std := range comp.Standards {
			tw.AppendRow(table.Row{"  " + std.Code, std.Name, "", "", "", ""})
			for _, cond := range std.Conditions {
				tw.AppendRow(table.Row{"  " + cond.Code, cond.Description, "", "", "", ""})
				for _, row := range cond.Rows {
					target := ""
					if row.TargetDate != nil {
						target = *row.TargetDate
					}
					delay := ""
					if row.DelayDays > 0 {
						delay = fmt.Sprintf("%d gün", row.DelayDays)
					}
					status := row.Status
					if row.Kind == rollup.RowNoAction {
						status = ""
					}
					tw.AppendRow(table.Row{"    " + row.Code, row.Title, status, row.Progress, target, delay})
				}
			}
		}
	}
	tw.Render()
	s := rep.Stats
	fmt.Printf("Actions: %d total, %d completed, %d in progress, %d not started, %d delayed, %d continuous\n",
		s.Total, s.Completed, s.InProgress, s.NotStarted, s.Delayed, s.Continuous)
}

func reportStatsCmd() *cobra.Command {
	var filters rollup.Filters
	var sortKey, direction string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show rollup statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tenant, err := resolveTenant(ctx, e.Repo)
				if err != nil {
					return err
				}
				rep, err := e.Report(ctx, reportOptions(tenant, filters, sortKey, direction))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"global": rep.Stats, "components": rep.Components})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Component", "Standards", "Conditions", "Actions", "Not Started", "In Progress", "Delayed", "Continuous"})
				for _, cs := range rep.Components {
					tw.AppendRow(table.Row{cs.ComponentCode, cs.Standards, cs.Conditions, cs.Actions,
						cs.NotStarted, cs.InProgress, cs.Delayed, cs.Continuous})
				}
				tw.Render()
				return nil
			})
		},
	}
	reportFilterFlags(cmd, &filters, &sortKey, &direction)
	return cmd
}

func reportExportCmd() *cobra.Command {
	var filters rollup.Filters
	var sortKey, direction, format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the rollup to XLSX or PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tenant, err := resolveTenant(ctx, e.Repo)
				if err != nil {
					return err
				}
				rep, err := e.Report(ctx, reportOptions(tenant, filters, sortKey, direction))
				if err != nil {
					return err
				}
				if out == "" {
					out = fmt.Sprintf("eylem-plani-%d.%s", rep.Plan.Year, format)
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				matrix := export.Build(rep.Tree)
				switch format {
				case "xlsx":
					err = export.WriteXLSX(f, matrix)
				case "pdf":
					err = export.WritePDF(f, matrix, rep.Plan.Name)
				default:
					return fmt.Errorf("unknown format %q (use xlsx or pdf)", format)
				}
				if err != nil {
					return err
				}
				fmt.Println("wrote", out)
				return nil
			})
		},
	}
	reportFilterFlags(cmd, &filters, &sortKey, &direction)
	cmd.Flags().StringVar(&format, "format", "xlsx", "export format (xlsx, pdf)")
	cmd.Flags().StringVar(&out, "out", "", "output file (defaults to eylem-plani-<year>.<ext>)")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Audit event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var after int64
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show audit events for the working organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), r)
				if err != nil {
					return err
				}
				events, err := r.ListEvents(ctx, org.ID, after, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().Int64Var(&after, "after", 0, "only events with id greater than this")
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyDeleteCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (raw key is printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if actor == "" {
					actor = viper.GetString("actor-id")
				}
				raw := uuid.NewString()
				now := time.Now().UTC().Format(time.RFC3339)
				tx, err := r.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := r.EnsureActor(ctx, tx, actor, actor, now); err != nil {
					return err
				}
				key := domain.APIKey{
					ID:        uuid.NewString(),
					ActorID:   actor,
					Name:      name,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedAt: now,
				}
				if err := r.InsertAPIKey(ctx, tx, key); err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				fmt.Printf("id: %s\nkey: %s\n", key.ID, raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor the key authenticates as (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "filter by actor id")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
}

func adminCmd() *cobra.Command {
	adm := &cobra.Command{Use: "admin", Short: "Actor and role administration"}
	adm.AddCommand(adminSuperCmd())
	adm.AddCommand(adminRoleCmd())
	return adm
}

func adminSuperCmd() *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "super <actor-id>",
		Short: "Grant or revoke the super-admin flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				now := time.Now().UTC().Format(time.RFC3339)
				tx, err := r.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := r.EnsureActor(ctx, tx, args[0], args[0], now); err != nil {
					return err
				}
				if err := r.SetSuperAdmin(ctx, tx, args[0], !revoke); err != nil {
					return err
				}
				return tx.Commit()
			})
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "remove the flag instead")
	return cmd
}

func adminRoleCmd() *cobra.Command {
	var actor, role string
	var revoke bool
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Assign or revoke an org role (admin, editor, viewer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				org, err := app.ResolveOrg(ctx, viper.GetString("org"), r)
				if err != nil {
					return err
				}
				now := time.Now().UTC().Format(time.RFC3339)
				tx, err := r.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := r.EnsureActor(ctx, tx, actor, actor, now); err != nil {
					return err
				}
				if revoke {
					if err := r.RevokeOrgRole(ctx, tx, actor, org.ID); err != nil {
						return err
					}
				} else {
					if role == "" {
						return fmt.Errorf("--role required")
					}
					if err := r.AssignOrgRole(ctx, tx, actor, org.ID, role); err != nil {
						return err
					}
				}
				return tx.Commit()
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "role (admin, editor, viewer)")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "revoke instead of assign")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configImportCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default belkon.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}
			return printJSON(cfg)
		},
	}
}

func configImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Validate and install a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.FromFile(file); err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			path := config.Path(viper.GetString("workspace"))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Println("imported config to", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "config file to import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}
			secret := os.Getenv("BELKON_JWT_SECRET")
			if secret == "" {
				secret = cfg.Auth.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("BELKON_JWT_SECRET or auth.jwt_secret is required for bearer auth")
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()
			e := engine.New(conn, cfg)
			if err := e.SyncModuleCatalog(cmd.Context()); err != nil {
				return fmt.Errorf("sync module catalog: %w", err)
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret, Logger: logger},
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Belkon API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func resolveTenant(ctx context.Context, r repo.Repo) (app.Tenant, error) {
	return app.ResolveOrgAndPlan(ctx, viper.GetString("org"), viper.GetString("plan"), viper.GetString("actor-id"), r)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return fn(ctx, engine.New(conn, cfg))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
