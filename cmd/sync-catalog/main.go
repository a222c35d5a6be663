// sync-catalog copies expansions and their Illustration Rare / Special Illustration
// Rare cards from the Pokémon TCG API into the template rows of the database.
//
// Usage: sync-catalog [-db=<path>] [-expansion=<slug>] [-series=<list>] [-dry-run]
//
// Settings not given as flags come from the environment (.env is honored), the
// same as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/codyseavey/ir-tracker/internal/config"
	"github.com/codyseavey/ir-tracker/internal/database"
	"github.com/codyseavey/ir-tracker/internal/models"
	"github.com/codyseavey/ir-tracker/internal/services"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup always happens
func run(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}

	fs := flag.NewFlagSet("sync-catalog", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "Path to SQLite database")
	expansion := fs.String("expansion", "", "Sync only this expansion slug (e.g. sv3pt5)")
	series := fs.String("series", strings.Join(cfg.Catalog.Series, ","), "Comma-separated series to sync")
	dryRun := fs.Bool("dry-run", false, "Fetch from the catalog and report counts without writing")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := services.NewPokemonTCGService(cfg.Catalog.BaseURL, cfg.Catalog.APIKey, services.UpstreamOptions{
		Timeout:    cfg.Upstream.Timeout,
		Retries:    cfg.Upstream.Retries,
		RatePerSec: cfg.Upstream.RatePerSec,
	})

	seriesList := splitList(*series)

	if *dryRun {
		if err := preview(ctx, catalog, *expansion, seriesList); err != nil {
			log.Printf("Dry run failed: %v", err)
			return 1
		}
		return 0
	}

	db, err := database.Open(*dbPath, cfg.DBDebug)
	if err != nil {
		log.Printf("Failed to initialize database: %v", err)
		return 1
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}()

	catalogSvc := services.NewCatalogService(db, catalog)
	statsSvc := services.NewStatsService(db, catalog, catalogSvc, cfg.Upstream.FanOutLimit)
	syncSvc := services.NewCatalogSyncService(catalog, catalogSvc, statsSvc, seriesList, cfg.Upstream.FanOutLimit)

	var result *services.SyncResult
	if *expansion != "" {
		result, err = syncSvc.SyncExpansion(ctx, *expansion)
	} else {
		result, err = syncSvc.SyncAll(ctx)
	}
	if err != nil {
		log.Printf("Sync failed: %v", err)
		return 1
	}

	fmt.Printf("Synced %d expansions, %d cards in %v\n", result.ExpansionsSynced, result.CardsUpserted, result.Duration)
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	if len(result.Errors) > 0 {
		return 1
	}
	return 0
}

func preview(ctx context.Context, catalog services.CardCatalog, slug string, series []string) error {
	var expansions []models.Expansion
	if slug != "" {
		exp, err := catalog.GetSet(ctx, services.ExpansionSlug(slug))
		if err != nil {
			return err
		}
		if exp == nil {
			return fmt.Errorf("expansion %s not found", slug)
		}
		expansions = append(expansions, *exp)
	} else {
		var err error
		if expansions, err = catalog.GetSets(ctx, series...); err != nil {
			return err
		}
	}

	total := 0
	for _, exp := range expansions {
		cards, err := catalog.GetSetCards(ctx, exp.ID, models.TrackedRarities()...)
		if err != nil {
			return err
		}
		ir, sir := 0, 0
		for _, c := range cards {
			switch c.Type {
			case models.CardTypeIllustrationRare:
				ir++
			case models.CardTypeSpecialIllustrationRare:
				sir++
			}
		}
		total += ir + sir
		fmt.Printf("%-10s %-32s IR %3d  SIR %3d\n", exp.Slug, exp.Name, ir, sir)
	}
	fmt.Printf("\n%d expansions, %d cards (nothing written)\n", len(expansions), total)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
