package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/reverse-auction/internal/client"
	"github.com/vyrodovalexey/reverse-auction/internal/model"
)

// Environment fallbacks for the persistent flags.
const (
	envServer   = "AUCTION_SERVER"
	envAPIKey   = "AUCTION_API_KEY" //nolint:gosec // env var name, not a credential
	envUser     = "AUCTION_USER"
	envPassword = "AUCTION_PASSWORD" //nolint:gosec // env var name, not a credential

	defaultServer = "http://localhost:8080"
)

// cli holds the persistent flag values shared by all subcommands.
type cli struct {
	out        io.Writer
	server     string
	apiKey     string
	user       string
	password   string
	jsonOutput bool
	timeout    time.Duration
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:   "auctionctl",
		Short: "auctionctl talks to a reverse-auction server",
		Long: `auctionctl starts auctions, places bids and reads results on a
reverse-auction server. The lowest bid at or above an item's starting
price wins; ties go to the earliest bidder.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&c.server, "server", envOr(envServer, defaultServer), "Auction server base URL")
	flags.StringVar(&c.apiKey, "api-key", os.Getenv(envAPIKey), "Auctioneer API key")
	flags.StringVar(&c.user, "user", os.Getenv(envUser), "Auctioneer user for HTTP Basic auth")
	flags.StringVar(&c.password, "password", os.Getenv(envPassword), "Auctioneer password for HTTP Basic auth")
	flags.BoolVar(&c.jsonOutput, "json", false, "Output command results in JSON format")
	flags.DurationVar(&c.timeout, "timeout", client.DefaultTimeout, "Request timeout")

	root.AddCommand(
		c.newStartCmd(),
		c.newBidCmd(),
		c.newBidsCmd(),
		c.newItemsCmd(),
		c.newResolveCmd(),
		c.newResultsCmd(),
	)

	return root
}

func (c *cli) client() *client.Client {
	opts := []client.Option{client.WithTimeout(c.timeout)}
	if c.apiKey != "" {
		opts = append(opts, client.WithAPIKey(c.apiKey))
	}
	if c.user != "" {
		opts = append(opts, client.WithBasicAuth(c.user, c.password))
	}
	return client.New(c.server, opts...)
}

func (c *cli) newStartCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "start [name=price ...]",
		Short: "Start a new auction, discarding all previous bids",
		Example: `  auctionctl start car=100 phone=10
  auctionctl start --file catalog.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prices, err := buildCatalog(file, args)
			if err != nil {
				return err
			}

			items, err := c.client().StartAuction(cmd.Context(), prices)
			if err != nil {
				return err
			}

			return c.print(items, func() {
				fmt.Fprintf(c.out, "Auction started with %d items\n", len(items))
				c.printItems(items)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML catalog file")

	return cmd
}

func (c *cli) newBidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bid <user> <item> <amount>",
		Short: "Place a bid on an item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("amount %q is not a number", args[2])
			}

			confirmation, err := c.client().PlaceBid(cmd.Context(), args[0], args[1], amount)
			if err != nil {
				return err
			}

			return c.print(confirmation, func() {
				fmt.Fprintf(c.out, "Bid accepted: %s offers %s for %s\n", args[0], formatAmount(amount), args[1])
			})
		},
	}
}

func (c *cli) newBidsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bids <user>",
		Short: "Show the last bid of a user on every item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bids, err := c.client().UserBids(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return c.print(bids, func() {
				w := newTable(c.out)
				fmt.Fprintln(w, "ITEM\tBID")
				for _, item := range sortedKeys(bids) {
					fmt.Fprintf(w, "%s\t%s\n", item, formatAmount(bids[item]))
				}
				_ = w.Flush()
			})
		},
	}
}

func (c *cli) newItemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "List items with their running lowest bids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := c.client().Items(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(items, func() { c.printItems(items) })
		},
	}
}

func (c *cli) newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the auction and print the winners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runResults(cmd.Context(), c.client().Resolve)
		},
	}
}

func (c *cli) newResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "Print the last resolved results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runResults(cmd.Context(), c.client().Results)
		},
	}
}

func (c *cli) runResults(ctx context.Context, fetch func(context.Context) (map[string]model.Result, error)) error {
	results, err := fetch(ctx)
	if err != nil {
		return err
	}

	return c.print(results, func() {
		if len(results) == 0 {
			fmt.Fprintln(c.out, "No item has a winning bid")
			return
		}
		w := newTable(c.out)
		fmt.Fprintln(w, "ITEM\tWINNER\tBID")
		for _, item := range sortedKeys(results) {
			r := results[item]
			fmt.Fprintf(w, "%s\t%s\t%s\n", item, r.LowestBidder, formatAmount(r.LowestBid))
		}
		_ = w.Flush()
	})
}

// print writes data as JSON when --json is set, otherwise calls textFn.
func (c *cli) print(data any, textFn func()) error {
	if c.jsonOutput {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	textFn()
	return nil
}

func (c *cli) printItems(items map[string]model.Item) {
	w := newTable(c.out)
	fmt.Fprintln(w, "ITEM\tSTARTING\tLOWEST\tBIDDER")
	for _, name := range sortedKeys(items) {
		item := items[name]
		lowest, bidder := "-", "-"
		if bid, ok := item.LowestBid.Get(); ok {
			lowest, bidder = formatAmount(bid.Amount), bid.Bidder
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, formatAmount(item.StartingBid), lowest, bidder)
	}
	_ = w.Flush()
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
