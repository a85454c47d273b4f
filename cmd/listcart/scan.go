package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/gut-puncture/list-to-cart/config"
	"github.com/gut-puncture/list-to-cart/internal/app"
	"github.com/gut-puncture/list-to-cart/internal/domain"
	"github.com/gut-puncture/list-to-cart/internal/infrastructure/broadcast"
	"github.com/gut-puncture/list-to-cart/internal/pkg/logger"
)

func runScan(c *cli.Context) error {
	baseURL := c.String("base-url")
	if baseURL == "" {
		return errors.New("--base-url (or LISTCART_REMOTE_BASE_URL) is required")
	}

	image, err := os.ReadFile(c.String("image"))
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if len(image) == 0 {
		return fmt.Errorf("image %s is empty", c.String("image"))
	}

	log, err := logger.New(c.String("log-level"), "console")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	cfg := scanConfig(c, baseURL)
	core, err := app.NewCore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer core.Close()

	engine := core.Engine
	notes := engine.Notifications().Subscribe()
	defer notes.Unsubscribe()

	engine.SubmitImage(ctx, image)
	if err := waitFor(ctx, engine.Wait); err != nil {
		return fmt.Errorf("processing did not finish: %w", err)
	}

	snap := engine.Snapshot()
	if snap.Groceries.Phase.Kind == domain.PhaseKindError {
		return errors.New(snap.LastError)
	}

	if c.Bool("add-defaults") {
		for _, item := range snap.Groceries.Items {
			if _, err := engine.AddBestMatchToCart(item.Name, 1); err != nil {
				log.Warn("no product added", "item", item.Name, "error", err)
			}
		}
		snap = engine.Snapshot()
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return printSummary(c.App.Writer, snap, drain(notes))
}

// drain returns the notifications already delivered to sub without blocking
func drain(sub *broadcast.Subscription[domain.Notification]) []domain.Notification {
	var out []domain.Notification
	for {
		select {
		case n, ok := <-sub.C():
			if !ok {
				return out
			}
			if n.Message != "" {
				out = append(out, n)
			}
		default:
			return out
		}
	}
}

// scanConfig builds the configuration for a one-shot run. Recommendations are
// not cached across runs.
func scanConfig(c *cli.Context, baseURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: "cli"},
		Remote: config.RemoteConfig{
			BaseURL: baseURL,
			Timeout: c.Duration("timeout"),
		},
		Cache: config.CacheConfig{Type: config.CacheNone},
		Fanout: config.FanoutConfig{
			MaxConcurrency: c.Int("concurrency"),
			FetchTimeout:   c.Duration("timeout"),
			MinSimilarity:  c.Float64("min-similarity"),
		},
		Broadcast: config.BroadcastConfig{NotificationBuffer: 64},
	}
}

// waitFor runs wait in the background and returns when it finishes or ctx ends
func waitFor(ctx context.Context, wait func()) error {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func printSummary(w io.Writer, snap domain.AggregateState, notes []domain.Notification) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ITEM\tQTY\tBEST MATCH\tSCORE\tOPTIONS")
	for _, item := range snap.Groceries.Items {
		qty := formatQuantity(item)
		recs, ok := snap.Recommendations[item.Name]
		switch {
		case !ok:
			fmt.Fprintf(tw, "%s\t%s\t(failed)\t-\t-\n", item.Name, qty)
		case len(recs) == 0:
			fmt.Fprintf(tw, "%s\t%s\t(none)\t-\t0\n", item.Name, qty)
		default:
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%d\n", item.Name, qty, recs[0].ProductName, recs[0].SimilarityScore, len(recs))
		}
	}

	if len(snap.Cart.Items) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "CART\tSIZE\tQTY")
		for _, line := range snap.Cart.Items {
			fmt.Fprintf(tw, "%s\t%s %s\t%d\n", line.Product.ProductName, line.Sku.Quantity, line.Sku.Unit, line.Quantity)
		}
		fmt.Fprintf(tw, "TOTAL\t\t%d\n", snap.Cart.Count)
	}

	if len(notes) > 0 {
		fmt.Fprintln(tw)
		for _, n := range notes {
			fmt.Fprintf(tw, "[%s]\t%s\n", n.Kind, n.Message)
		}
	}

	return tw.Flush()
}

func formatQuantity(item domain.GroceryItem) string {
	if item.Quantity == 0 {
		return item.Unit
	}
	if item.Unit == "" {
		return fmt.Sprintf("%g", item.Quantity)
	}
	return fmt.Sprintf("%g %s", item.Quantity, item.Unit)
}
