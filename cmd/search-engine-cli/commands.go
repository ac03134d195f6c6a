package main

import (
	"fmt"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/shoplens-ai/search-engine/internal/catalog"
	"github.com/shoplens-ai/search-engine/internal/recommend"
	"github.com/shoplens-ai/search-engine/internal/retrieval"
	"github.com/shoplens-ai/search-engine/internal/storage"
)

// newQueryCmd creates the query subcommand.
func newQueryCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Search the product catalog",
		Long: `Query runs the full search pipeline: filter extraction, hybrid
retrieval, relevance reranking, price-intent ordering, and offer
cross-referencing.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()

			s, err := buildStack(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			stop := ui.Spinner("Loading catalog")
			err = s.loadCatalog(ctx, false)
			stop()
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			session := retrieval.Session{ID: sessionID}

			stop = ui.Spinner("Searching")
			resp, _, err := s.service.Search(ctx, session, query)
			stop()
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(resp)
			}

			printSearchResponse(resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id for conversational state")
	return cmd
}

func printSearchResponse(resp retrieval.Response) {
	if len(resp.Products) == 0 {
		ui.Warning("No matching items for %q", resp.Query)
		return
	}

	ui.Heading("Results for %q", resp.Query)
	if resp.PriceIntent != retrieval.IntentNeutral {
		ui.Info("Sorted by price (%s)", resp.PriceIntent)
	}

	for i, p := range resp.Products {
		line := fmt.Sprintf("%d. %s", i+1, p.Title)
		if p.Weight != "" {
			line += fmt.Sprintf(" (%s)", p.Weight)
		}
		if p.Price != nil {
			line += fmt.Sprintf(" - $%.2f", *p.Price)
		}
		if p.Rating != nil {
			line += fmt.Sprintf("  ★%.1f", *p.Rating)
		}
		fmt.Println(line)
	}

	if len(resp.Offers) > 0 {
		ui.Heading("Offers")
		for _, offer := range resp.Offers {
			line := fmt.Sprintf("• %s", offer.Name)
			if offer.Price != nil {
				line += fmt.Sprintf(" - $%.2f", *offer.Price)
			}
			fmt.Println(line)
			for _, bundled := range offer.Products {
				fmt.Printf("    includes %s\n", bundled.Title)
			}
		}
	}

	if resp.SuggestOffers {
		ui.Info("Tip: ask about current offers to see available bundles")
	}
}

// newRecommendCmd creates the recommend subcommand.
func newRecommendCmd() *cobra.Command {
	var (
		topK   int
		anchor string
		alpha  float64
	)

	cmd := &cobra.Command{
		Use:   "recommend <user-id>",
		Short: "Recommend products for a user",
		Long: `Recommend suggests products from the ratings of similar users.
With --anchor it blends in content similarity to the anchor product.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()

			s, err := buildStack(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			stop := ui.Spinner("Loading catalog")
			err = s.loadCatalog(ctx, false)
			stop()
			if err != nil {
				return err
			}

			stop = ui.Spinner("Building recommendation model")
			err = s.engine.Build(ctx)
			stop()
			if err != nil {
				ui.Warning("Model build failed: %v", err)
			}

			var recs []recommend.Recommendation
			if anchor != "" {
				recs = s.engine.Hybrid(args[0], anchor, topK, alpha)
			} else {
				recs = s.engine.RecommendForUser(args[0], topK)
			}

			if outputJSON {
				return printJSON(recs)
			}

			printRecommendations(args[0], recs)
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top", 0, "number of recommendations (default from config)")
	cmd.Flags().StringVar(&anchor, "anchor", "", "anchor product id for hybrid recommendations")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "collaborative weight for hybrid mode (default from config)")
	return cmd
}

// newSimilarCmd creates the similar subcommand.
func newSimilarCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "similar <product-id>",
		Short: "Find products with similar rating patterns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()

			s, err := buildStack(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			stop := ui.Spinner("Loading catalog")
			err = s.loadCatalog(ctx, false)
			stop()
			if err != nil {
				return err
			}

			stop = ui.Spinner("Building recommendation model")
			err = s.engine.Build(ctx)
			stop()
			if err != nil {
				ui.Warning("Model build failed: %v", err)
			}

			recs := s.engine.SimilarItems(args[0], topK)

			if outputJSON {
				return printJSON(recs)
			}

			printRecommendations(args[0], recs)
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top", 0, "number of results (default from config)")
	return cmd
}

func printRecommendations(subject string, recs []recommend.Recommendation) {
	if len(recs) == 0 {
		ui.Warning("No recommendations available for %s", subject)
		return
	}

	ui.Heading("Recommendations for %s", subject)
	for i, rec := range recs {
		title := rec.Product.Title
		if title == "" {
			title = rec.ProductID
		}
		fmt.Printf("%d. %s (score %.2f)\n", i+1, title, rec.Score)
	}
}

// newOffersCmd creates the offers subcommand.
func newOffersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offers [product-id]",
		Short: "List offers, optionally filtered to one product",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()

			s, err := buildStack(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			var offers []*storage.Offer
			if len(args) == 1 {
				offers, err = s.offerRepo.FindOffersContaining(ctx, args[0])
			} else {
				offers, err = s.offerRepo.List(ctx)
			}
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(offers)
			}

			if len(offers) == 0 {
				ui.Warning("No offers found")
				return nil
			}

			ui.Heading("Offers")
			for _, offer := range offers {
				line := fmt.Sprintf("• %s", offer.Name)
				if offer.Price != nil {
					line += fmt.Sprintf(" - $%.2f", *offer.Price)
				}
				fmt.Println(line)
				if offer.Description != "" {
					fmt.Printf("    %s\n", offer.Description)
				}
				if len(offer.ProductIDs) > 0 {
					fmt.Printf("    bundles: %s\n", strings.Join(offer.ProductIDs, ", "))
				}
			}
			return nil
		},
	}
}

// newIngestCmd creates the ingest subcommand.
func newIngestCmd() *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a product snapshot into the catalog",
		Long: `Ingest loads a CSV product snapshot, embeds product passages, and
upserts them into the catalog in chunks. Re-running within the
staleness window is a no-op unless --force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext()
			defer cancel()

			s, err := buildStack(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			snapshotPath := path
			if snapshotPath == "" {
				snapshotPath = cfg.Ingestion.ProductsCSV
			}
			if snapshotPath == "" {
				return fmt.Errorf("no snapshot path given (use --path or set PRODUCTS_CSV)")
			}

			var bar *progressbar.ProgressBar
			lastDone := 0
			progress := func(done, total int) {
				if bar == nil {
					bar = ui.ProgressBar(total, "Ingesting products")
				}
				if bar != nil {
					_ = bar.Add(done - lastDone)
				}
				lastDone = done
			}

			n, err := s.ingestor.Run(ctx, catalog.CSVSnapshot{Path: snapshotPath}, force, progress)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(map[string]interface{}{"ingested": n, "skipped": n == 0})
			}

			if n == 0 {
				ui.Info("Catalog is fresh, nothing ingested (use --force to override)")
			} else {
				ui.Success("Ingested %d products", n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "snapshot CSV path (default from config)")
	cmd.Flags().BoolVar(&force, "force", false, "ingest even when the catalog is fresh")
	return cmd
}
