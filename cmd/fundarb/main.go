package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fundarb/internal/application/usecase/monitor"
	"fundarb/internal/infrastructure/config"
	"fundarb/internal/infrastructure/logger"
	"fundarb/internal/infrastructure/svc"
	"fundarb/internal/interfaces/httpapi"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "fundarb",
		Short:         "Cross-exchange funding rate arbitrage scanner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.toml", "path to config.toml")

	rootCmd.AddCommand(serveCmd(), scanCmd(), topCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap 加载配置、初始化日志与 ServiceContext
func bootstrap(ctx context.Context) (*svc.ServiceContext, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgFile, err)
	}
	logger.Setup(cfg.App.LogLevel)

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("config", cfgFile).
		Strs("exchanges", cfg.GetEnabledExchanges()).
		Int("symbols", len(cfg.Symbols.List)).
		Dur("interval", cfg.App.Interval).
		Msg("fundarb started")
	return sc, nil
}

// serveCmd 周期采集 + 机会计算，可选 HTTP API
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion/discovery loop and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sc, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer sc.Close()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return monitor.NewService(sc.BuildMonitorServiceDeps()).Run(gctx)
			})
			if sc.Config.HTTP.Enabled {
				deps := httpapi.Deps{Query: sc.Query, Coordinator: sc.Coordinator}
				if len(sc.Venues()) > 0 {
					deps.Venues = sc.Venues()
				}
				api := httpapi.NewServer(deps)
				g.Go(func() error {
					return api.ListenAndServe(gctx, sc.Config.HTTP.Addr)
				})
			}

			err = g.Wait()
			if ctx.Err() != nil {
				log.Info().Msg("shutdown complete")
				return nil
			}
			return err
		},
	}
}

// scanCmd 执行一轮采集与计算后退出
func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run a single ingestion and discovery cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sc, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer sc.Close()

			res, err := monitor.NewService(sc.BuildMonitorServiceDeps()).RunOnce(ctx)
			if err != nil {
				return err
			}
			if failed := res.Failed(); len(failed) > 0 {
				return fmt.Errorf("exchanges failed: %v", failed)
			}
			return nil
		},
	}
}

// topCmd 打印已存储的前 N 个机会，不访问交易所
func topCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print the current top opportunities from storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer sc.Close()

			if n <= 0 {
				n = sc.Config.App.TopN
			}
			opps, err := sc.Query.Top(cmd.Context(), n)
			if err != nil {
				return err
			}
			f := monitor.NewFormatter()
			for _, o := range opps {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", o.Key, f.RenderOpportunity(o))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "number", "n", 0, "number of opportunities (default app.top_n)")
	return cmd
}
