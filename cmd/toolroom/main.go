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

	"toolroom/internal/app"
	"toolroom/internal/config"
	"toolroom/internal/db"
	"toolroom/internal/domain"
	"toolroom/internal/engine"
	"toolroom/internal/repo"
	"toolroom/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "toolroom",
	Short: "Toolroom CLI",
	Long: `Toolroom tracks workshop equipment through its lending and calibration lifecycle.
- Workspace: the .toolroom directory holding the database; config lives in toolroom.yml or in the DB.
- Items: equipment units; statuses go available -> requested -> on_loan/in_calibration -> available (retired is the exit).
- Requests: a user asks to borrow or calibrate an item; an approver decides. At most one open request per item.
- Rentals: approval of a borrow request starts a rental; late returns accrue a per-day fine.
- Calibrations: approval of a calibration request schedules one; completion can attach a certificate document.
- History & events: every transition is recorded, view with 'toolroom log tail'.`,
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
	viper.SetEnvPrefix("TOOLROOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("workshop", "", "workshop id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("workshop", rootCmd.PersistentFlags().Lookup("workshop"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(categoryCmd())
	rootCmd.AddCommand(itemCmd())
	rootCmd.AddCommand(requestCmd())
	rootCmd.AddCommand(rentalCmd())
	rootCmd.AddCommand(calibrationCmd())
	rootCmd.AddCommand(documentCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var workshopID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfgPath := config.Path(workspace)
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("%s already exists", cfgPath)
			}
			if workshopID == "" {
				workshopID = "default"
			}
			if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault(workshopID)), 0o644); err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fmt.Printf("Initialized workshop %q in %s\n", e.Config.Workshop.ID, workspace)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&workshopID, "id", "", "workshop id")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show workshop status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				counts, err := e.Repo.CountItemsByStatus(ctx)
				if err != nil {
					return err
				}
				overdue, err := e.Repo.ListLateActiveRentals(ctx, time.Now().UTC().Format(time.RFC3339))
				if err != nil {
					return err
				}
				out := map[string]any{
					"workshop_id":   e.Config.Workshop.ID,
					"item_counts":   counts,
					"overdue_count": len(overdue),
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Workshop: %s\n", e.Config.Workshop.ID)
				fmt.Println("Items:")
				for status, c := range counts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				fmt.Printf("Overdue rentals (unswept): %d\n", len(overdue))
				return nil
			})
		},
	}
	return cmd
}

func categoryCmd() *cobra.Command {
	cat := &cobra.Command{Use: "category", Short: "Manage categories"}
	cat.AddCommand(categoryAddCmd())
	cat.AddCommand(categoryListCmd())
	return cat
}

func categoryAddCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateCategory(ctx, id, name)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "category id (optional)")
	cmd.Flags().StringVar(&name, "name", "", "category name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func categoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListCategories(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func itemCmd() *cobra.Command {
	item := &cobra.Command{
		Use:   "item",
		Short: "Manage equipment items",
		Long:  "Items are equipment units. They start available, get locked by a request, move on loan or into calibration, and come back available. Retiring is permanent and only allowed while available.",
	}
	item.AddCommand(itemAddCmd())
	item.AddCommand(itemListCmd())
	item.AddCommand(itemShowCmd())
	item.AddCommand(itemRetireCmd())
	item.AddCommand(itemHistoryCmd())
	item.AddCommand(itemEligibleCmd())
	return item
}

func itemAddCmd() *cobra.Command {
	var opts engine.CreateItemOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an item",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.CreateItem(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "item id (optional)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "item name")
	cmd.Flags().StringVar(&opts.CategoryID, "category", "", "category id")
	cmd.Flags().StringVar(&opts.Specification, "spec", "", "specification")
	cmd.Flags().StringVar(&opts.SerialNumber, "serial", "", "serial number")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func itemListCmd() *cobra.Command {
	var f repo.ItemFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListItems(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Category", "Status", "Serial"})
				for _, it := range items {
					serial := ""
					if it.SerialNumber != nil {
						serial = *it.SerialNumber
					}
					tw.AppendRow(table.Row{it.ID, it.Name, it.CategoryID, it.Status, serial})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.CategoryID, "category", "", "category filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func itemShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				it, err := r.GetItem(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	return cmd
}

func itemRetireCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retire <id>",
		Short: "Retire an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				it, err := e.RetireItem(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(it)
			})
		},
	}
	return cmd
}

func itemHistoryCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show item history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				rows, err := r.ListHistory(ctx, repo.HistoryFilters{ItemID: args[0], Limit: n})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Date", "Activity", "By", "Request", "Description"})
				for _, h := range rows {
					reqID := ""
					if h.RequestID != nil {
						reqID = *h.RequestID
					}
					desc := ""
					if h.Description != nil {
						desc = *h.Description
					}
					tw.AppendRow(table.Row{h.Date, h.Activity, h.PerformedBy, reqID, desc})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 50, "max rows")
	return cmd
}

func itemEligibleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eligible <id>",
		Short: "Check whether an item can accept a new request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.CheckEligible(ctx, args[0]); err != nil {
					if engine.CodeOf(err) == engine.CodeItemUnavailable {
						fmt.Printf("not eligible: %s\n", err)
						return nil
					}
					return err
				}
				fmt.Println("eligible")
				return nil
			})
		},
	}
	return cmd
}

func requestCmd() *cobra.Command {
	req := &cobra.Command{
		Use:   "request",
		Short: "Manage borrow and calibration requests",
		Long:  "A request asks for an item, either to borrow it or to calibrate it. Submitting locks the item; an approver then approves (spawning a rental or a calibration) or rejects (freeing the item).",
	}
	req.AddCommand(requestSubmitCmd())
	req.AddCommand(requestListCmd())
	req.AddCommand(requestShowCmd())
	req.AddCommand(requestApproveCmd())
	req.AddCommand(requestRejectCmd())
	return req
}

func requestSubmitCmd() *cobra.Command {
	var itemID, reqType, reason, userID string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a request",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domain.ParseRequestType(reqType)
			if err != nil {
				return err
			}
			if userID == "" {
				userID = viper.GetString("actor-id")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rq, err := e.SubmitRequest(ctx, engine.SubmitRequestOptions{
					UserID: userID,
					ItemID: itemID,
					Type:   t,
					Reason: reason,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(rq)
			})
		},
	}
	cmd.Flags().StringVar(&itemID, "item", "", "item id")
	cmd.Flags().StringVar(&reqType, "type", "borrow", "request type (borrow, calibration)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason")
	cmd.Flags().StringVar(&userID, "user", "", "requesting user (defaults to --actor-id)")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func requestListCmd() *cobra.Command {
	var f repo.RequestFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				rows, err := r.ListRequests(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Item", "User", "Type", "Status", "Requested"})
				for _, rq := range rows {
					tw.AppendRow(table.Row{rq.ID, rq.ItemID, rq.UserID, rq.Type, rq.Status, rq.RequestDate})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ItemID, "item", "", "item filter")
	cmd.Flags().StringVar(&f.UserID, "user", "", "user filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Type, "type", "", "type filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func requestShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				rq, err := r.GetRequest(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(rq)
			})
		},
	}
	return cmd
}

func requestApproveCmd() *cobra.Command {
	var endDate, calDate string
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rq, err := e.DecideRequest(ctx, engine.DecideRequestOptions{
					RequestID:       args[0],
					ApproverID:      viper.GetString("actor-id"),
					Approve:         true,
					EndDate:         endDate,
					CalibrationDate: calDate,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(rq)
			})
		},
	}
	cmd.Flags().StringVar(&endDate, "end-date", "", "rental end date, RFC3339 (borrow only)")
	cmd.Flags().StringVar(&calDate, "date", "", "scheduled date, RFC3339 (calibration only)")
	return cmd
}

func requestRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rq, err := e.DecideRequest(ctx, engine.DecideRequestOptions{
					RequestID:  args[0],
					ApproverID: viper.GetString("actor-id"),
					Approve:    false,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(rq)
			})
		},
	}
	return cmd
}

func rentalCmd() *cobra.Command {
	rental := &cobra.Command{Use: "rental", Short: "Manage rentals"}
	rental.AddCommand(rentalListCmd())
	rental.AddCommand(rentalReturnCmd())
	rental.AddCommand(rentalSweepCmd())
	return rental
}

func rentalListCmd() *cobra.Command {
	var f repo.RentalFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rentals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				rows, err := r.ListRentals(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Request", "Start", "End", "Status", "Fine"})
				for _, rn := range rows {
					fine := ""
					if rn.FineCents != nil {
						fine = fmt.Sprintf("%d", *rn.FineCents)
					}
					tw.AppendRow(table.Row{rn.ID, rn.RequestID, rn.StartDate, rn.EndDate, rn.Status, fine})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func rentalReturnCmd() *cobra.Command {
	var returnDate string
	cmd := &cobra.Command{
		Use:   "return <id>",
		Short: "Return a rented item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rn, err := e.ReturnRental(ctx, engine.ReturnRentalOptions{
					RentalID:    args[0],
					ReturnDate:  returnDate,
					PerformedBy: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				if !viper.GetBool("json") && rn.FineCents != nil && *rn.FineCents > 0 {
					fmt.Printf("late return: fine %d cents\n", *rn.FineCents)
				}
				return printJSONOrTable(rn)
			})
		},
	}
	cmd.Flags().StringVar(&returnDate, "date", "", "return date, RFC3339 (defaults to now)")
	return cmd
}

func rentalSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark late active rentals overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.SweepOverdue(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				fmt.Printf("marked %d rental(s) overdue\n", n)
				return nil
			})
		},
	}
	return cmd
}

func calibrationCmd() *cobra.Command {
	cal := &cobra.Command{Use: "calibration", Short: "Manage calibrations"}
	cal.AddCommand(calibrationListCmd())
	cal.AddCommand(calibrationCompleteCmd())
	return cal
}

func calibrationListCmd() *cobra.Command {
	var f repo.CalibrationFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List calibrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				rows, err := r.ListCalibrations(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Request", "Date", "Status", "Result"})
				for _, c := range rows {
					result := ""
					if c.Result != nil {
						result = *c.Result
					}
					tw.AppendRow(table.Row{c.ID, c.RequestID, c.CalibrationDate, c.Status, result})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func calibrationCompleteCmd() *cobra.Command {
	var result, certURL string
	var failed bool
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete a scheduled calibration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CompleteCalibration(ctx, engine.CompleteCalibrationOptions{
					CalibrationID:  args[0],
					Result:         result,
					Failed:         failed,
					CertificateURL: certURL,
					PerformedBy:    viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&result, "result", "", "measurement result")
	cmd.Flags().BoolVar(&failed, "failed", false, "record the calibration as failed")
	cmd.Flags().StringVar(&certURL, "certificate", "", "certificate URL (must reference an uploaded document)")
	_ = cmd.MarkFlagRequired("result")
	return cmd
}

func documentCmd() *cobra.Command {
	doc := &cobra.Command{Use: "document", Short: "Manage document references"}
	doc.AddCommand(documentAddCmd())
	doc.AddCommand(documentListCmd())
	return doc
}

func documentAddCmd() *cobra.Command {
	var kind, fileURL string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a document reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.AddDocument(ctx, engine.AddDocumentOptions{
					Kind:       kind,
					FileURL:    fileURL,
					UploadedBy: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "certificate", "document kind")
	cmd.Flags().StringVar(&fileURL, "url", "", "file URL")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func documentListCmd() *cobra.Command {
	var kind string
	var n int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				rows, err := r.ListDocuments(ctx, kind, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(rows)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "kind filter")
	cmd.Flags().IntVar(&n, "limit", 0, "max rows")
	return cmd
}

func logCmd() *cobra.Command {
	logc := &cobra.Command{Use: "log", Short: "Event log"}
	logc.AddCommand(logTailCmd())
	return logc
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(cmd.Context(), n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
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
	var name, actor string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				plaintext := uuid.New().String() + uuid.New().String()
				key := domain.APIKey{
					ID:        uuid.New().String(),
					ActorID:   actor,
					Name:      name,
					KeyHash:   repo.HashAPIKey(plaintext),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				fmt.Printf("API key created for %s (shown once):\n%s\n", actor, plaintext)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name")
	cmd.Flags().StringVar(&actor, "actor", "", "actor id (defaults to --actor-id)")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				for i := range keys {
					keys[i].KeyHash = ""
				}
				return printJSONOrTable(keys)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor filter")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, e, err := app.Open(cmd.Context(), workspace, viper.GetString("workshop"))
			if err != nil {
				return err
			}
			defer conn.Close()
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("TOOLROOM_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("TOOLROOM_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
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
			fmt.Printf("Serving Toolroom API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
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

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, e, err := app.Open(ctx, workspace, viper.GetString("workshop"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, e, err := app.Open(ctx, workspace, viper.GetString("workshop"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e.Repo)
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
