package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"fundcast/adapters/csvtable"
	"fundcast/adapters/excel"
	"fundcast/adapters/postgres"
	"fundcast/adapters/rng"
	"fundcast/app"
	"fundcast/domain/campaign"
	"fundcast/domain/model"
	"fundcast/internal"
	"fundcast/internal/api"
	"fundcast/internal/config"
	"fundcast/internal/fitting"
	"fundcast/internal/predict"
	"fundcast/internal/testkit"
)

func main() {
	// Best-effort .env load; the environment itself wins.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "fundcast",
		Short: "Crowdfunding outcome forecasting: fit and query the survival model",
	}

	rootCmd.AddCommand(
		newFitCmd(),
		newSurvivalCmd(),
		newQuantileCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newFitCmd() *cobra.Command {
	var inputPath string
	var synthetic bool

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit the two-stage model and persist the flat model table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := internal.NewDefaultLogger()

			var dataset campaign.Dataset
			switch {
			case synthetic:
				dataset = testkit.NewCampaignGenerator(testkit.DefaultCampaignConfig()).Generate()
			case inputPath != "":
				dataset, err = csvtable.ReadDataset(inputPath)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("either --input or --synthetic is required")
			}

			sampler := fitting.DefaultSamplerSettings()
			sampler.Chains = cfg.Sampler.Chains
			sampler.Iterations = cfg.Sampler.Iterations
			sampler.WarmUp = cfg.Sampler.WarmUp
			partitionCfg := campaign.DefaultPartitionConfig()
			partitionCfg.SubsampleCap = cfg.Sampler.SubsampleCap

			service := app.NewFitService(logger, rng.NewSeededAdapter(), sampler, partitionCfg)
			result, err := service.Fit(cmd.Context(), app.FitRequest{
				Dataset:  dataset,
				BaseSeed: cfg.Sampler.BaseSeed,
			})
			if err != nil {
				return err
			}

			store := csvtable.NewModelRepository(cfg.Paths.ModelTable, posteriorPath(cfg.Paths.ModelTable))
			if err := store.SaveModel(cmd.Context(), result.Model); err != nil {
				return err
			}
			if err := store.SavePosteriors(cmd.Context(), result.Posteriors); err != nil {
				return err
			}

			if cfg.Database.URL != "" {
				if err := saveToPostgres(cmd.Context(), cfg.Database.URL, result); err != nil {
					return err
				}
			}
			if cfg.Paths.ReportFile != "" {
				if err := excel.NewReportWriter(cfg.Paths.ReportFile).Write(result); err != nil {
					return err
				}
				logger.Info("fit report written to %s", cfg.Paths.ReportFile)
			}

			return printJSON(result.Manifest)
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "normalized campaign-record CSV")
	cmd.Flags().BoolVar(&synthetic, "synthetic", false, "fit against generated demo data")
	return cmd
}

func newSurvivalCmd() *cobra.Command {
	var target, goal float64
	var platformTag string

	cmd := &cobra.Command{
		Use:   "survival",
		Short: "P(raised >= target) for a campaign goal and platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(cmd.Context())
			if err != nil {
				return err
			}
			probability, err := predict.Survival(target, goal, campaign.Platform(platformTag), m)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"target": target, "goal": goal, "platform": platformTag,
				"probability": probability,
			})
		},
	}

	cmd.Flags().Float64Var(&target, "target", 0, "target amount in USD")
	cmd.Flags().Float64Var(&goal, "goal", 0, "campaign goal in USD")
	cmd.Flags().StringVar(&platformTag, "platform", "", "kickstarter or indiegogo")
	return cmd
}

func newQuantileCmd() *cobra.Command {
	var p, goal float64
	var platformTag, outcomeTag string

	cmd := &cobra.Command{
		Use:   "quantile",
		Short: "Raised amount at the p-th percentile of one outcome branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(cmd.Context())
			if err != nil {
				return err
			}
			raised, err := predict.Quantile(p, goal, campaign.Platform(platformTag), campaign.Outcome(outcomeTag), m)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"p": p, "goal": goal, "platform": platformTag, "outcome": outcomeTag,
				"raised_usd": raised,
			})
		},
	}

	cmd.Flags().Float64Var(&p, "p", 0.5, "percentile in [0,1)")
	cmd.Flags().Float64Var(&goal, "goal", 0, "campaign goal in USD")
	cmd.Flags().StringVar(&platformTag, "platform", "", "kickstarter or indiegogo")
	cmd.Flags().StringVar(&outcomeTag, "outcome", "met", "met or under")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve survival queries over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			m, err := loadModel(cmd.Context())
			if err != nil {
				return err
			}
			server, err := api.NewServer(m, internal.NewDefaultLogger())
			if err != nil {
				return err
			}
			return server.ListenAndServe(cfg.Server.Port)
		},
	}
}

// loadModel prefers postgres when configured, falling back to the CSV flat
// table. Both give bit-identical query results.
func loadModel(ctx context.Context) (model.FittedModel, error) {
	cfg, err := config.Load()
	if err != nil {
		return model.FittedModel{}, err
	}
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			return model.FittedModel{}, err
		}
		defer db.Close()
		return postgres.NewModelRepository(db).LoadModel(ctx)
	}
	store := csvtable.NewModelRepository(cfg.Paths.ModelTable, posteriorPath(cfg.Paths.ModelTable))
	return store.LoadModel(ctx)
}

func saveToPostgres(ctx context.Context, url string, result *app.FitResult) error {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}
	repo := postgres.NewModelRepository(db)
	if err := repo.SaveModel(ctx, result.Model); err != nil {
		return err
	}
	return repo.SavePosteriors(ctx, result.Posteriors)
}

func posteriorPath(modelPath string) string {
	return modelPath + ".posteriors.csv"
}

func printJSON(payload interface{}) error {
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
