package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/wnt/lbscout/internal/models"
	"github.com/wnt/lbscout/internal/reconcile"
	"github.com/wnt/lbscout/internal/services"
	"github.com/wnt/lbscout/internal/worker"
)

func main() {
	root := &cobra.Command{
		Use:          "lbscout",
		Short:        "Discover and track Saros DLMM liquidity positions",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("env-file", ".env", "path to .env file")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the pool directory for a wallet's positions",
		RunE:  runScan,
	}
	scanCmd.Flags().String("wallet", "", "wallet address (required)")
	scanCmd.Flags().String("mode", string(models.ScanWithLiquidity), "pools to scan (withLiquidity, withoutLiquidity, full)")
	scanCmd.Flags().Bool("full", false, "scan every pool and replace the cached positions")
	scanCmd.Flags().Bool("refresh-pools", false, "rebuild the pool directory before scanning")
	_ = scanCmd.MarkFlagRequired("wallet")
	root.AddCommand(scanCmd)

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "Show the cached pool directory",
		RunE:  runPools,
	}
	poolsCmd.Flags().Bool("refresh", false, "rebuild the directory from chain")
	root.AddCommand(poolsCmd)

	positionsCmd := &cobra.Command{
		Use:   "positions",
		Short: "List a wallet's cached positions",
		RunE:  runPositions,
	}
	positionsCmd.Flags().String("wallet", "", "wallet address (required)")
	positionsCmd.Flags().String("filter", string(services.FilterAll), "status filter (all, active, inactive, empty)")
	positionsCmd.Flags().String("search", "", "match pair symbol or pool address")
	positionsCmd.Flags().String("sort", string(services.SortDesc), "liquidity order (desc, asc)")
	_ = positionsCmd.MarkFlagRequired("wallet")
	root.AddCommand(positionsCmd)

	forgetCmd := &cobra.Command{
		Use:   "forget",
		Short: "Remove a burned position from the cache",
		RunE:  runForget,
	}
	forgetCmd.Flags().String("wallet", "", "wallet address (required)")
	forgetCmd.Flags().String("mint", "", "position mint (required)")
	forgetCmd.Flags().String("tx", "", "burn transaction signature")
	forgetCmd.Flags().Bool("force", false, "remove even if the cached position still holds liquidity")
	_ = forgetCmd.MarkFlagRequired("wallet")
	_ = forgetCmd.MarkFlagRequired("mint")
	root.AddCommand(forgetCmd)

	recordPoolCmd := &cobra.Command{
		Use:   "record-pool",
		Short: "Record a pool created by a wallet",
		RunE:  runRecordPool,
	}
	recordPoolCmd.Flags().String("wallet", "", "wallet address (required)")
	recordPoolCmd.Flags().String("pool", "", "pool address (required)")
	recordPoolCmd.Flags().String("tx", "", "creation transaction signature")
	_ = recordPoolCmd.MarkFlagRequired("wallet")
	_ = recordPoolCmd.MarkFlagRequired("pool")
	root.AddCommand(recordPoolCmd)

	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show a wallet's portfolio overview",
		RunE:  runDashboard,
	}
	dashboardCmd.Flags().String("wallet", "", "wallet address (required)")
	_ = dashboardCmd.MarkFlagRequired("wallet")
	root.AddCommand(dashboardCmd)

	root.AddCommand(&cobra.Command{
		Use:   "activity",
		Short: "Show recent activity",
		RunE:  runActivity,
	})

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Rescan wallets periodically until interrupted",
		RunE:  runWatch,
	}
	watchCmd.Flags().StringSlice("wallet", nil, "wallet addresses (comma-separated, required)")
	watchCmd.Flags().Duration("interval", 5*time.Minute, "time between scans")
	watchCmd.Flags().String("mode", string(models.ScanWithLiquidity), "pools to scan (withLiquidity, withoutLiquidity, full)")
	watchCmd.Flags().Bool("refresh-pools", false, "rebuild the pool directory before the first scan")
	_ = watchCmd.MarkFlagRequired("wallet")
	root.AddCommand(watchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup wires the application and a context cancelled on SIGINT or SIGTERM.
// readsCache marks commands that depend on state left by an earlier run.
func setup(cmd *cobra.Command, readsCache bool) (*app, context.Context, func(), error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	a, err := newApp(envFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if readsCache {
		if err := a.requirePersistentCache(cmd.Name()); err != nil {
			a.Close()
			return nil, nil, nil, err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	cleanup := func() {
		stop()
		a.Close()
	}
	return a, ctx, cleanup, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func progressPrinter(w io.Writer) func(models.Progress) {
	return func(p models.Progress) {
		if p.ETA > 0 {
			fmt.Fprintf(w, "%s (about %s left)\n", p.Message, p.ETA.Round(time.Second))
			return
		}
		fmt.Fprintln(w, p.Message)
	}
}

func runScan(cmd *cobra.Command, _ []string) error {
	wallet, _ := cmd.Flags().GetString("wallet")
	modeName, _ := cmd.Flags().GetString("mode")
	full, _ := cmd.Flags().GetBool("full")
	refreshPools, _ := cmd.Flags().GetBool("refresh-pools")

	mode, err := models.ParseScanMode(modeName)
	if err != nil {
		return err
	}

	a, ctx, cleanup, err := setup(cmd, !refreshPools)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := a.manager.Run(ctx, worker.Request{
		Wallet:       wallet,
		Mode:         mode,
		Full:         full,
		RefreshPools: refreshPools,
		OnProgress:   progressPrinter(cmd.ErrOrStderr()),
	})
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), struct {
		ScanID       string                    `json:"scanId"`
		Mode         models.ScanMode           `json:"mode"`
		Outcome      models.ScanOutcome        `json:"outcome"`
		PoolsScanned int                       `json:"poolsScanned"`
		FailedPools  []string                  `json:"failedPools"`
		Found        services.PositionSummary  `json:"found"`
		Positions    []models.EnrichedPosition `json:"positions"`
		Duration     string                    `json:"duration"`
	}{
		ScanID:       result.ScanID,
		Mode:         result.Mode,
		Outcome:      result.Outcome(),
		PoolsScanned: result.PoolsScanned,
		FailedPools:  result.FailedPools,
		Found:        services.SummarizePositions(result.EnrichedPositions),
		Positions:    result.EnrichedPositions,
		Duration:     result.Duration.Round(time.Millisecond).String(),
	})
}

func runPools(cmd *cobra.Command, _ []string) error {
	refresh, _ := cmd.Flags().GetBool("refresh")

	a, ctx, cleanup, err := setup(cmd, !refresh)
	if err != nil {
		return err
	}
	defer cleanup()

	var pools []models.PoolSummary
	if refresh {
		pools, err = a.directory.Refresh(ctx, progressPrinter(cmd.ErrOrStderr()))
	} else {
		pools, err = a.directory.Load(ctx)
	}
	if err != nil {
		return err
	}
	if pools == nil {
		return errors.New("no pool directory cached, run with --refresh first")
	}
	return printJSON(cmd.OutOrStdout(), pools)
}

func runPositions(cmd *cobra.Command, _ []string) error {
	wallet, _ := cmd.Flags().GetString("wallet")
	filterName, _ := cmd.Flags().GetString("filter")
	search, _ := cmd.Flags().GetString("search")
	sortName, _ := cmd.Flags().GetString("sort")

	filter, err := services.ParsePositionFilter(filterName)
	if err != nil {
		return err
	}
	order, err := services.ParseSortOrder(sortName)
	if err != nil {
		return err
	}

	a, ctx, cleanup, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	cached, err := a.cache.List(ctx, wallet)
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), struct {
		Summary   services.PositionSummary  `json:"summary"`
		Positions []models.EnrichedPosition `json:"positions"`
	}{
		Summary:   services.SummarizePositions(cached),
		Positions: services.QueryPositions(cached, services.PositionQuery{Filter: filter, Search: search, Sort: order}),
	})
}

func runForget(cmd *cobra.Command, _ []string) error {
	wallet, _ := cmd.Flags().GetString("wallet")
	mint, _ := cmd.Flags().GetString("mint")
	tx, _ := cmd.Flags().GetString("tx")
	force, _ := cmd.Flags().GetBool("force")

	a, ctx, cleanup, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	cached, err := a.cache.Load(ctx, wallet)
	if err != nil {
		return err
	}
	if p, ok := cached[mint]; ok && !p.Position.IsEmpty() && !force {
		return fmt.Errorf("position %s still holds liquidity; remove it first or pass --force", mint)
	}

	removed, err := a.cache.Remove(ctx, wallet, mint)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("position %s is not cached for %s", mint, wallet)
	}
	if err := a.activity.Add(ctx, models.ActivityBurnPosition, "Burned position "+mint, tx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", mint, reconcile.PositionsKey(wallet))
	return nil
}

func runRecordPool(cmd *cobra.Command, _ []string) error {
	wallet, _ := cmd.Flags().GetString("wallet")
	pool, _ := cmd.Flags().GetString("pool")
	tx, _ := cmd.Flags().GetString("tx")

	a, ctx, cleanup, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := a.userPools.Add(ctx, wallet, pool); err != nil {
		return err
	}
	return a.activity.Add(ctx, models.ActivityCreatePool, "Created pool "+pool, tx)
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	wallet, _ := cmd.Flags().GetString("wallet")

	a, ctx, cleanup, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	data, err := a.dashboard.Build(ctx, wallet)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), data)
}

func runActivity(cmd *cobra.Command, _ []string) error {
	a, ctx, cleanup, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := a.activity.List(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), entries)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	wallets, _ := cmd.Flags().GetStringSlice("wallet")
	interval, _ := cmd.Flags().GetDuration("interval")
	modeName, _ := cmd.Flags().GetString("mode")
	refreshPools, _ := cmd.Flags().GetBool("refresh-pools")

	mode, err := models.ParseScanMode(modeName)
	if err != nil {
		return err
	}

	a, ctx, cleanup, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := a.manager.EnsureDirectory(ctx, refreshPools, progressPrinter(cmd.ErrOrStderr())); err != nil {
		return err
	}
	if err := a.manager.StartWatch(wallets, interval, mode); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info().Interface("stats", a.manager.GetStats()).Msg("Shutting down watch")
	return nil
}
