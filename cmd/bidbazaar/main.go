package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bidbazaar/internal/apiclient"
	"bidbazaar/internal/auth"
	"bidbazaar/internal/biddingerrors"
	"bidbazaar/internal/config"
	"bidbazaar/internal/increment"
	"bidbazaar/internal/lifecycle"
	"bidbazaar/internal/listingview"
	"bidbazaar/internal/models"
	"bidbazaar/internal/notifications"
	"bidbazaar/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(2)
	}

	utils.SetOutput(os.Stderr)
	if err := utils.SetLevel(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, os.Args[1:], os.Stdout, os.Stderr))
}

// cli carries the per-invocation state shared by commands
type cli struct {
	cfg     *config.Config
	session *auth.Store
	client  *apiclient.Client
	out     io.Writer
	errOut  io.Writer
}

func run(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bidbazaar", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		apiURL    = fs.String("api", cfg.Client.APIBaseURL, "API base URL")
		tokenFile = fs.String("token-file", cfg.Client.TokenFile, "Where the bearer token is kept")
	)
	fs.Usage = func() { showUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() == 0 {
		showUsage(stderr, fs)
		return 1
	}

	session := auth.NewStore()
	if err := session.LoadTokenFile(*tokenFile); err != nil {
		fmt.Fprintf(stderr, "Warning: ignoring stored token: %v\n", err)
	}
	cfg.Client.TokenFile = *tokenFile

	c := &cli{
		cfg:     cfg,
		session: session,
		client:  apiclient.New(*apiURL, cfg.Client.RequestTimeout.Duration, session),
		out:     stdout,
		errOut:  stderr,
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	var err error
	switch cmd {
	case "login":
		err = c.login(ctx, rest)
	case "logout":
		err = c.logout()
	case "amounts":
		err = c.amounts(ctx, rest)
	case "bid":
		err = c.bid(ctx, rest)
	case "watch":
		err = c.watch(ctx, rest)
	default:
		showUsage(stderr, fs)
		fmt.Fprintf(stderr, "\nError: unknown command %q\n", cmd)
		return 1
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", describe(err))
		return 2
	}
	return 0
}

func showUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: bidbazaar [flags] <command> [args]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  login <user> <password>   log in and store the bearer token")
	fmt.Fprintln(w, "  logout                    forget the stored token")
	fmt.Fprintln(w, "  amounts <listing-id>      print the valid bid amounts")
	fmt.Fprintln(w, "  bid <listing-id> <amount> validate and place a bid")
	fmt.Fprintln(w, "  watch <listing-id>        follow status and price until the auction ends")
	fmt.Fprintln(w, "\nFlags:")
	fs.PrintDefaults()
}

// describe turns an error into the text shown to the user
func describe(err error) string {
	var apiErr *biddingerrors.APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	var rejection *biddingerrors.RejectionError
	if errors.As(err, &rejection) {
		return rejection.Error()
	}
	return err.Error()
}

func (c *cli) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: login <user> <password>")
	}

	res, err := c.client.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if err := c.session.Login(res.Token); err != nil {
		return err
	}
	if err := c.session.SaveTokenFile(c.cfg.Client.TokenFile); err != nil {
		return err
	}

	user := c.session.Snapshot().User
	fmt.Fprintf(c.out, "Logged in as %s (%s)\n", user.Name, user.Role)
	return nil
}

func (c *cli) logout() error {
	c.session.Logout()
	if err := c.session.SaveTokenFile(c.cfg.Client.TokenFile); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Logged out")
	return nil
}

func (c *cli) amounts(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: amounts <listing-id>")
	}

	listing, err := c.client.GetListing(ctx, args[0])
	if err != nil {
		return err
	}
	table, err := increment.Table(listing.StartingPrice, listing.CurrentPrice)
	if err != nil {
		return err
	}
	next, err := increment.NextValidBid(listing.StartingPrice, listing.CurrentPrice)
	if err != nil {
		return err
	}

	parts := make([]string, len(table))
	for i, amount := range table {
		parts[i] = amount.String()
	}
	fmt.Fprintf(c.out, "%s: current %s, next valid bid %s\n", listing.Title, listing.CurrentPrice, next)
	fmt.Fprintf(c.out, "Valid amounts: %s\n", strings.Join(parts, ", "))
	return nil
}

func (c *cli) bid(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: bid <listing-id> <amount>")
	}

	store := notifications.NewStore(0)
	view, err := listingview.Open(ctx, c.client, c.session, args[0],
		listingview.WithIntervals(c.cfg.Client.ActiveInterval.Duration, c.cfg.Client.IdleInterval.Duration),
		listingview.WithNotifications(store))
	if err != nil {
		return err
	}
	defer view.Close()

	bid, err := view.Bidding().Submit(ctx, args[1])
	if err != nil {
		return err
	}

	listing := view.Tracker().Listing()
	fmt.Fprintf(c.out, "Bid %s placed on %s; current price %s\n", bid.Amount, listing.Title, listing.CurrentPrice)
	for _, n := range store.List() {
		fmt.Fprintf(c.out, "[%s] %s\n", n.Kind, n.Message)
	}
	store.MarkAllRead()
	return nil
}

func (c *cli) watch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: watch <listing-id>")
	}

	updates := make(chan lifecycle.Update, 16)
	store := notifications.NewStore(0)
	view, err := listingview.Open(ctx, c.client, c.session, args[0],
		listingview.WithIntervals(c.cfg.Client.ActiveInterval.Duration, c.cfg.Client.IdleInterval.Duration),
		listingview.WithNotifications(store),
		listingview.WithObserver(func(u lifecycle.Update) {
			select {
			case updates <- u:
			default:
			}
		}))
	if err != nil {
		return err
	}
	defer view.Close()

	var (
		lastStatus models.EffectiveStatus
		lastPrice  string
	)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out, "Stopped watching")
			return nil
		case <-view.Done():
			return nil
		case u := <-updates:
			price := u.Listing.CurrentPrice.String()
			if u.Status != lastStatus || price != lastPrice {
				fmt.Fprintf(c.out, "%s: %s, current price %s, ends %s\n",
					u.Listing.Title, u.Status, price, u.Listing.EndTime.Local().Format("15:04:05"))
				lastStatus, lastPrice = u.Status, price
			}
			if u.Status.Terminal() {
				for _, n := range store.List() {
					fmt.Fprintf(c.out, "[%s] %s\n", n.Kind, n.Message)
				}
				if u.Listing.HasWinner() {
					fmt.Fprintf(c.out, "Winner: %s\n", *u.Listing.Winner)
				}
				return nil
			}
		}
	}
}
