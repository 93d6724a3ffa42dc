package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/options-analyzer/internal/analyzer"
	"github.com/contactkeval/options-analyzer/internal/config"
	"github.com/contactkeval/options-analyzer/internal/logger"
	"github.com/contactkeval/options-analyzer/internal/multiplier"
	"github.com/contactkeval/options-analyzer/internal/report"
	"github.com/contactkeval/options-analyzer/internal/server"
	"github.com/contactkeval/options-analyzer/internal/strategy"
)

func main() {
	configPath := flag.String("config", filepath.Join("strategies", "iron_condor.json"), "path to JSON config")
	envFile := flag.String("env", ".env", "optional env file")
	rest := flag.Bool("rest", false, "run as REST server")
	port := flag.String("port", ":8080", "REST server listen address")
	listPresets := flag.Bool("presets", false, "list preset strategies and exit")
	flag.Parse()

	if *listPresets {
		printPresets()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := multiplier.NewRegistry()

	if *rest {
		if err := serve(ctx, reg, *port, *envFile); err != nil {
			log.Fatalf("server exited with error: %v", err)
		}
		return
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	a, err := analyzer.NewAnalyzer(cfg, reg)
	if err != nil {
		log.Fatalf("analyzer: %v", err)
	}

	start := time.Now()
	res, err := a.Run(ctx, start)
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	if err := report.WriteAll(res, cfg.ReportDir); err != nil {
		logger.Warnf("event=report_failed dir=%s err=%v", cfg.ReportDir, err)
	}
	printSummary(res)
	logger.Infof("event=done took=%s report_dir=%s", time.Since(start), cfg.ReportDir)
}

func serve(ctx context.Context, reg *multiplier.Registry, addr, envFile string) error {
	if err := loadEnvOverrides(reg, envFile); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(reg).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("event=server_start addr=%s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Infof("event=server_shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// loadEnvOverrides applies OPTIONS_VERBOSITY and OPTIONS_MULTIPLIERS in REST
// mode, where no config file is read.
func loadEnvOverrides(reg *multiplier.Registry, envFile string) error {
	if err := config.LoadEnvFiles(envFile); err != nil {
		return err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	logger.SetVerbosity(cfg.Verbosity)
	if cfg.MultiplierOverrides != "" {
		return reg.ParseOverrides(cfg.MultiplierOverrides)
	}
	return nil
}

func printPresets() {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tNAME\tMAX PROFIT\tMAX LOSS\tBREAK-EVENS")
	for _, p := range strategy.Presets() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", p.Type, p.Name, p.MaxProfit, p.MaxLoss, p.BreakEvenCount)
	}
	w.Flush()
}

func bound(v *float64) string {
	if v == nil {
		return "unlimited"
	}
	return fmt.Sprintf("%.2f", *v)
}

func printSummary(res *analyzer.Result) {
	st, ev := res.Strategy, res.Evaluation

	fmt.Printf("%s on %s @ %.2f (multiplier %g, rate %.2f%%)\n",
		st.Name, res.Underlying, res.Spot, res.Multiplier, res.Rate*100)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POSITION\tTYPE\tSTRIKE\tQTY\tEXPIRY\tPREMIUM\tIV")
	for _, l := range st.Legs {
		exp := "-"
		if !l.Expiration.IsZero() {
			exp = l.Expiration.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%g\t%s\t%.4f\t%.2f%%\n",
			l.Position, l.Type, l.Strike, l.Qty, exp, l.Premium, l.IV*100)
	}
	w.Flush()

	g := ev.Greeks
	fmt.Printf("\ndelta %.4f  gamma %.4f  theta %.4f  vega %.4f  rho %.4f\n", g.Delta, g.Gamma, g.Theta, g.Vega, g.Rho)
	fmt.Printf("P&L %.2f (%.2f%%) at spot %.2f\n", ev.PnL.TotalPnL, ev.PnL.TotalPnLPercent, ev.Scenario.Spot)
	fmt.Printf("max profit %s  max loss %s  break-evens %v\n", bound(ev.PnL.MaxProfit), bound(ev.PnL.MaxLoss), ev.PnL.BreakEvens)
}
