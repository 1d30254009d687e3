// Package main implements pulsectl, a development convenience CLI over the
// coordination core's pipeline API. The control surface itself (HTTP API,
// auth, multi-tenant routing) is out of scope per the specification; this
// tool exists only so the pipeline can be driven and inspected by hand.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"marketpulse/config"
	"marketpulse/store"
)

var version = "0.1.0"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "pulsectl",
		Short:   "MarketPulse coordination-core development CLI",
		Long:    `pulsectl drives the collection / AI study / report compilation pipeline directly, for local development and operational inspection.`,
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config overlay path")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadSystem() (*system, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return buildSystem(cfg)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runCmd() *cobra.Command {
	var segment, product, audience, objective, session string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all three pipeline stages for a new or existing session",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := loadSystem()
			if err != nil {
				return err
			}
			brief := store.Brief{Segment: segment, Product: product, Audience: audience, Objective: objective}
			result, err := sys.pipeline.RunFull(context.Background(), brief, session)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&segment, "segment", "", "market segment")
	cmd.Flags().StringVar(&product, "product", "", "product under analysis")
	cmd.Flags().StringVar(&audience, "audience", "", "target audience")
	cmd.Flags().StringVar(&objective, "objective", "", "analysis objective")
	cmd.Flags().StringVar(&session, "session", "", "resume an existing session id instead of creating one")
	return cmd
}

func stageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Run a single pipeline stage",
	}
	cmd.AddCommand(stage1Cmd())
	cmd.AddCommand(stage2Cmd())
	cmd.AddCommand(stage3Cmd())
	return cmd
}

func stage1Cmd() *cobra.Command {
	var segment, product, audience, objective, session string
	cmd := &cobra.Command{
		Use:   "1",
		Short: "Run stage 1 (collection) only",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := loadSystem()
			if err != nil {
				return err
			}
			brief := store.Brief{Segment: segment, Product: product, Audience: audience, Objective: objective}
			corpus, err := sys.pipeline.RunStage1(context.Background(), brief, session)
			if err != nil {
				return err
			}
			return printJSON(corpus)
		},
	}
	cmd.Flags().StringVar(&segment, "segment", "", "market segment")
	cmd.Flags().StringVar(&product, "product", "", "product under analysis")
	cmd.Flags().StringVar(&audience, "audience", "", "target audience")
	cmd.Flags().StringVar(&objective, "objective", "", "analysis objective")
	cmd.Flags().StringVar(&session, "session", "", "session id to create or resume")
	return cmd
}

func stage2Cmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "2",
		Short: "Run stage 2 (AI study) against an existing session's stage-1 output",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := loadSystem()
			if err != nil {
				return err
			}
			artifact, err := sys.pipeline.RunStage2(context.Background(), session)
			if err != nil {
				return err
			}
			return printJSON(artifact)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session id (required)")
	cmd.MarkFlagRequired("session")
	return cmd
}

func stage3Cmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "3",
		Short: "Run stage 3 (report compilation) against an existing session",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := loadSystem()
			if err != nil {
				return err
			}
			result, err := sys.pipeline.RunStage3(session)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, result.ReportPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session id (required)")
	cmd.MarkFlagRequired("session")
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print the Health Aggregator's composed verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := loadSystem()
			if err != nil {
				return err
			}
			return printJSON(sys.aggregator.Check())
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print cumulative pipeline execution statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := loadSystem()
			if err != nil {
				return err
			}
			return printJSON(sys.pipeline.Stats())
		},
	}
}

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List known sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := loadSystem()
			if err != nil {
				return err
			}
			sessions, err := sys.store.ListSessions()
			if err != nil {
				return err
			}
			return printJSON(sessions)
		},
	}
}

// serveCmd runs pulsectl as a long-lived process: it exposes the Health
// Aggregator's Prometheus gauges on /metrics and its verdict on /healthz, and
// schedules the Artifact Store's age-based cleanup sweep on an hourly cron
// schedule rather than a bare time.Ticker, so the cleanup cadence can be
// expressed and changed the same way an operator would read a crontab. The
// Progress Fabric is not swept here.
func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose health and metrics endpoints and run scheduled cleanup",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := loadSystem()
			if err != nil {
				return err
			}

			c := cron.New()
			maxAge := time.Duration(sys.cfg.SessionMaxAgeDays) * 24 * time.Hour
			if _, err := c.AddFunc("@hourly", func() {
				if n, err := sys.store.Cleanup(maxAge); err == nil && n > 0 {
					fmt.Fprintf(os.Stdout, "cleanup: removed %d expired artifact files\n", n)
				}
			}); err != nil {
				return fmt.Errorf("schedule cleanup job: %w", err)
			}
			c.Start()
			defer c.Stop()

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				rep := sys.aggregator.Check()
				w.Header().Set("Content-Type", "application/json")
				if rep.Status == "unhealthy" {
					w.WriteHeader(http.StatusServiceUnavailable)
				}
				json.NewEncoder(w).Encode(rep)
			})

			fmt.Fprintf(os.Stdout, "pulsectl serving on %s (/metrics, /healthz)\n", addr)
			return http.ListenAndServe(addr, mux)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9090", "listen address for /metrics and /healthz")
	return cmd
}
