package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/raine/resale-appraiser/internal/api"
	"github.com/raine/resale-appraiser/internal/llm"
	"github.com/raine/resale-appraiser/internal/market"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func analyzeCmd() *cobra.Command {
	var ocrText, ocrFile string

	cmd := &cobra.Command{
		Use:   "analyze <image>...",
		Short: "Appraise an item from its photos",
		Long: `Identify the item in the given photos, fetch comparable sales and print the
appraisal as JSON. Without --ocr-text or --ocr-file the photos are run through OCR first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ocrFile != "" {
				data, err := os.ReadFile(ocrFile)
				if err != nil {
					return fmt.Errorf("failed to read ocr file: %w", err)
				}
				ocrText = string(data)
			}

			images := make([][]byte, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read image: %w", err)
				}
				images = append(images, data)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var result *llm.ExpertAnalysisResult
			if ocrText != "" {
				result, err = a.analyzer.Analyze(ctx, images, ocrText)
			} else {
				result, err = a.analyzer.AnalyzeImages(ctx, images)
			}
			if err != nil {
				return err
			}

			log.Info().
				Str("tier", string(result.Tier)).
				Str("model", result.Model).
				Int("attempts", result.Attempts).
				Float64("costUSD", result.Usage.CostUSD).
				Msg("analysis complete")
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&ocrText, "ocr-text", "", "text already recognized from the photos")
	cmd.Flags().StringVar(&ocrFile, "ocr-file", "", "file containing text recognized from the photos")
	cmd.MarkFlagsMutuallyExclusive("ocr-text", "ocr-file")
	return cmd
}

func compsCmd() *cobra.Command {
	var category, condition string

	cmd := &cobra.Command{
		Use:   "comps <query>",
		Short: "Look up comparable sales for a search query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.market.FetchSoldListings(ctx, args[0], category, condition)
			if err != nil {
				return err
			}
			return printComps(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "category name, e.g. sneakers (mapped to a marketplace category id)")
	cmd.Flags().StringVar(&condition, "condition", "", "condition filter, e.g. new or used")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the appraisal HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Addr = addr
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.store != nil {
				n, err := a.store.PruneMarketSnapshots(time.Now().Add(-cfg.Market.CacheTTL))
				if err != nil {
					log.Warn().Err(err).Msg("failed to prune market snapshots")
				} else if n > 0 {
					log.Info().Int64("removed", n).Msg("pruned stale market snapshots")
				}
			}

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           api.NewServer(a.analyzer, a.market, a.metrics).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info().Str("addr", cfg.Addr).Msg("listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				log.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil {
				return err
			}
			log.Info().Msg("shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printComps(w io.Writer, r *market.Result) error {
	fmt.Fprintf(w, "source: %s (%d listings)\n", r.Source, len(r.SoldListings))
	if r.IsEstimate && r.HasListings() {
		fmt.Fprintln(w, "prices are from active listings, not completed sales")
	}
	if tiers, ok := r.Tiers(); ok {
		fmt.Fprintf(w, "quick sell: $%s  market: $%s  premium: $%s\n",
			tiers.QuickSell.StringFixed(2), tiers.Market.StringFixed(2), tiers.Premium.StringFixed(2))
	}
	for _, l := range r.SoldListings {
		fmt.Fprintf(w, "  $%s  %s\n", l.Price.StringFixed(2), l.Title)
	}
	return nil
}
