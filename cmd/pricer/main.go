// Pricer CLI - one-shot pricing for a single detected product.
//
// Usage:
//   pricer price --title "Vital Proteins Collagen Peptides 20 oz" --brand "Vital Proteins"
//   pricer price --title "..." --output json
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"snaplist/internal/app"
	"snaplist/internal/config"
	"snaplist/internal/pricing"
	papi "snaplist/pkg/api"
	"snaplist/pkg/platform"
)

var version = "dev"

// Exit codes for automation.
const (
	exitOK           = 0
	exitManualReview = 2
	exitBadInput     = 10
	exitEngineError  = 11
)

func main() {
	_ = godotenv.Load()

	cliApp := &cli.App{
		Name:    "pricer",
		Usage:   "Price a photographed product for listing",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to YAML config file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Commands: []*cli.Command{
			priceCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitEngineError)
	}
}

func priceCommand() *cli.Command {
	return &cli.Command{
		Name:  "price",
		Usage: "Produce a listing price recommendation",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "Product title", Required: true},
			&cli.StringFlag{Name: "brand", Usage: "Brand name"},
			&cli.StringFlag{Name: "upc", Usage: "UPC code"},
			&cli.StringFlag{Name: "brand-url", Usage: "Brand site URL hint"},
			&cli.IntFlag{Name: "qty", Value: 1, Usage: "Photographed lot quantity"},
			&cli.IntFlag{Name: "discount", Value: -1, Usage: "Discount percent override"},
			&cli.StringFlag{Name: "output", Value: "text", Usage: "Output format: text, json"},
		},
		Action: runPrice,
	}
}

func runPrice(c *cli.Context) error {
	if c.Int("qty") < 1 {
		fmt.Fprintln(os.Stderr, "qty must be at least 1")
		os.Exit(exitBadInput)
	}

	cfg, err := config.Load(c.String("config"))
	log := platform.NewLogger(c.String("log-level"))
	if err != nil {
		log.Error().Err(err).Msg("configuration failed")
		os.Exit(exitBadInput)
	}

	ctx := context.Background()
	engine, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("engine wiring failed")
		os.Exit(exitEngineError)
	}
	defer engine.Close()

	query := pricing.Query{
		Title:         c.String("title"),
		Brand:         c.String("brand"),
		UPC:           c.String("upc"),
		BrandSiteHint: c.String("brand-url"),
		Quantity:      c.Int("qty"),
	}
	settings := pricing.DefaultSettings()
	if d := c.Int("discount"); d >= 0 {
		settings.DiscountPercent = d
	}

	decision, err := engine.Pricer.Price(ctx, query, settings)
	if err != nil {
		log.Error().Err(err).Msg("pricing failed")
		os.Exit(exitEngineError)
	}

	switch c.String("output") {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(papi.FromDecision(decision)); err != nil {
			os.Exit(exitEngineError)
		}
	default:
		printText(decision)
	}

	if decision.NeedsManualReview {
		os.Exit(exitManualReview)
	}
	if !decision.OK {
		os.Exit(exitEngineError)
	}
	return nil
}

func printText(d pricing.PriceDecision) {
	if !d.OK {
		fmt.Printf("NO PRICE (%s)", d.Reason)
		if d.NeedsManualReview {
			fmt.Print(" - needs manual review")
		}
		fmt.Println()
		return
	}
	fmt.Printf("Recommended listing price: $%.2f\n", float64(d.RecommendedListingPriceCents)/100)
	if d.Allocation != nil {
		fmt.Printf("  item $%.2f + shipping $%.2f = delivered $%.2f (%s)\n",
			float64(d.Allocation.ItemPriceCents)/100,
			float64(d.Allocation.ShippingChargeCents)/100,
			float64(d.Allocation.TargetDeliveredTotalCents)/100,
			d.Allocation.EffectiveShippingMode)
		for _, w := range d.Allocation.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}
	if d.Chosen != nil {
		fmt.Printf("  signal: %s $%.2f (%s)\n", d.Chosen.Source, float64(d.Chosen.PriceCents)/100, d.Chosen.Notes)
	}
	fmt.Printf("  candidates: %d  confidence: %.2f  cached: %v\n", len(d.Candidates), d.Confidence, d.FromCache)
}
