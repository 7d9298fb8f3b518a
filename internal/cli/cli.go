package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/njprem/Catalog_Backup_BackEnd/internal/domain"
	"github.com/njprem/Catalog_Backup_BackEnd/internal/service"
)

type Analysis interface {
	Step(ctx context.Context, stage domain.Stage) (domain.Report, error)
	IsReady(ctx context.Context) (bool, error)
	Items(ctx context.Context, statuses ...domain.ItemStatus) ([]domain.ImportItem, error)
	Errors(ctx context.Context) ([]domain.ErrorEntry, error)
}

type Export interface {
	Check(ctx context.Context) (domain.ExportStatus, error)
	Open() (*service.Artifact, error)
}

type Upload interface {
	Upload(ctx context.Context, filename, contentType string, contents []byte) (domain.StagedImport, error)
	Check() domain.StagedImport
	Cleanup(ctx context.Context) error
}

type Apply interface {
	ApplyAction(ctx context.Context, itemID int64, index int) (domain.ApplyResult, error)
	ApplyGroup(ctx context.Context, group domain.ActionGroup) (domain.ApplyResult, error)
}

// App holds what the commands work on. Load runs before any command and
// fills the services in.
type App struct {
	Analysis       Analysis
	Export         Export
	Upload         Upload
	Apply          Apply
	StepsPerSecond float64
	Actor          string

	Load func(ctx context.Context, app *App) error
	out  io.Writer
}

var errAnalysisFailed = errors.New("analysis failed")

func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Back up, analyse and restore the product catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.out = cmd.OutOrStdout()
			if app.Load == nil {
				return nil
			}
			return app.Load(cmd.Context(), app)
		},
	}
	root.AddCommand(
		newExportCmd(app),
		newDownloadCmd(app),
		newUploadCmd(app),
		newStatusCmd(app),
		newCleanupUploadCmd(app),
		newAnalyseCmd(app),
		newItemsCmd(app),
		newErrorsCmd(app),
		newApplyCmd(app),
	)
	return root
}

func newExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Create the catalog export when it is outdated",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := app.Export.Check(cmd.Context())
			if err != nil {
				return err
			}
			return app.print(status)
		},
	}
}

func newDownloadCmd(app *App) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Copy the cached export to a local file",
		RunE: func(cmd *cobra.Command, args []string) error {
			artifact, err := app.Export.Open()
			if err != nil {
				return err
			}
			defer artifact.File.Close()
			if dest == "" {
				dest = artifact.Name
			}
			out, err := os.Create(dest)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, artifact.File); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
			fmt.Fprintf(app.out, "wrote %s\n", dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dest, "output", "o", "", "Destination file (default: the export file name)")
	return cmd
}

func newUploadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE",
		Short: "Stage a product-list document (xml or zip) for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			staged, err := app.Upload.Upload(cmd.Context(), filepath.Base(args[0]), "", data)
			if err != nil {
				return err
			}
			return app.print(staged)
		},
	}
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Describe the staged document and whether its analysis is complete",
		RunE: func(cmd *cobra.Command, args []string) error {
			ready, err := app.Analysis.IsReady(cmd.Context())
			if err != nil {
				return err
			}
			return app.print(map[string]any{
				"upload": app.Upload.Check(),
				"ready":  ready,
			})
		},
	}
}

func newCleanupUploadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-upload",
		Short: "Remove the staged document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Upload.Cleanup(cmd.Context())
		},
	}
}

func newAnalyseCmd(app *App) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "analyse",
		Short: "Run the analysis of the staged document to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, ok := domain.ParseStage(from)
			if !ok {
				return fmt.Errorf("unknown step %q", from)
			}
			return app.runAnalysis(cmd.Context(), stage)
		},
	}
	cmd.Flags().StringVar(&from, "from", string(domain.StageInit), "Step to start from")
	return cmd
}

// runAnalysis follows next_step, paced so that a long run does not monopolise
// the catalog database.
func (app *App) runAnalysis(ctx context.Context, stage domain.Stage) error {
	limiter := app.limiter()
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		report, err := app.Analysis.Step(ctx, stage)
		if err != nil {
			return err
		}
		progress := ""
		if report.Progress != nil {
			progress = fmt.Sprintf("%5.1f%% ", *report.Progress)
		}
		fmt.Fprintf(app.out, "%s[%s] %s\n", progress, stage, report.Message)
		if report.Code == domain.MessageAnalysisError {
			return fmt.Errorf("%w at %s: %s", errAnalysisFailed, stage, report.Message)
		}
		if report.Done() {
			return nil
		}
		stage = report.NextStep
	}
}

func newItemsCmd(app *App) *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List work items and their actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter []domain.ItemStatus
			for _, raw := range statuses {
				status, ok := domain.ParseItemStatus(strings.TrimSpace(raw))
				if !ok {
					return fmt.Errorf("unknown item status %q", raw)
				}
				filter = append(filter, status)
			}
			items, err := app.Analysis.Items(cmd.Context(), filter...)
			if err != nil {
				return err
			}
			return app.print(items)
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only items in these statuses")
	return cmd
}

func newErrorsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "errors",
		Short: "List problems found by the analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.Analysis.Errors(cmd.Context())
			if err != nil {
				return err
			}
			return app.print(entries)
		},
	}
}

func newApplyCmd(app *App) *cobra.Command {
	var (
		itemID int64
		index  int
		group  string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply analysed actions to the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := service.ContextWithActor(cmd.Context(), app.Actor)
			if group == "" {
				if itemID <= 0 {
					return errors.New("either --item or --group is required")
				}
				result, err := app.Apply.ApplyAction(ctx, itemID, index)
				if err != nil {
					return err
				}
				return app.print(result)
			}

			g, ok := domain.ParseActionGroup(group)
			if !ok {
				return fmt.Errorf("unknown action group %q", group)
			}
			limiter := app.limiter()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
				result, err := app.Apply.ApplyGroup(ctx, g)
				if errors.Is(err, service.ErrNoPendingAction) && all {
					return nil
				}
				if err != nil {
					return err
				}
				if err := app.print(result); err != nil {
					return err
				}
				if !all || result.Remaining == 0 {
					return nil
				}
			}
		},
	}
	cmd.Flags().Int64Var(&itemID, "item", 0, "Work item id")
	cmd.Flags().IntVar(&index, "index", 0, "Action index within the item")
	cmd.Flags().StringVar(&group, "group", "", "Apply the next pending action of this group (price or text)")
	cmd.Flags().BoolVar(&all, "all", false, "With --group, keep applying until nothing is pending")
	cmd.MarkFlagsMutuallyExclusive("item", "group")
	return cmd
}

func (app *App) limiter() *rate.Limiter {
	limit := rate.Inf
	if app.StepsPerSecond > 0 {
		limit = rate.Limit(app.StepsPerSecond)
	}
	return rate.NewLimiter(limit, 1)
}

func (app *App) print(v any) error {
	enc := json.NewEncoder(app.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
