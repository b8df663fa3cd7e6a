package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	supersetclient "github.com/GregMSThompson/insight-portal/internal/client/superset"
	"github.com/GregMSThompson/insight-portal/internal/crypto"
	"github.com/GregMSThompson/insight-portal/internal/embed"
	"github.com/GregMSThompson/insight-portal/internal/replica"
	"github.com/GregMSThompson/insight-portal/internal/seed"
	"github.com/GregMSThompson/insight-portal/internal/services"
	"github.com/GregMSThompson/insight-portal/internal/store"
	"github.com/GregMSThompson/insight-portal/pkg/logger"
)

type cli struct {
	LogLevel string `default:"warn" help:"Log level for diagnostics on stderr."`

	HashPassword hashPasswordCmd `cmd:"" name:"hash-password" help:"Print the bcrypt hash of a password."`
	Parse        parseCmd        `cmd:"" help:"Parse a Superset URL or iframe snippet into an embed target."`
	Filter       filterCmd       `cmd:"" help:"Inject a date range filter into a Superset URL."`
	Seed         seedCmd         `cmd:"" help:"Write seed users and dashboards into a data directory."`
	Watch        watchCmd        `cmd:"" help:"Render an embed and keep refreshing it."`
}

type hashPasswordCmd struct {
	Password string `arg:"" help:"Plain text password."`
	Cost     int    `default:"0" help:"bcrypt cost (0 uses the default)."`
}

func (cmd *hashPasswordCmd) Run(_ context.Context, out io.Writer) error {
	hash, err := crypto.NewPasswordHasher(cmd.Cost).Hash(cmd.Password)
	if err != nil {
		return fmt.Errorf("portalctl: hash password: %w", err)
	}
	fmt.Fprintln(out, hash)
	return nil
}

type parseCmd struct {
	Input string `arg:"" help:"Superset URL or iframe snippet."`
}

func (cmd *parseCmd) Run(_ context.Context, out io.Writer) error {
	return writeJSON(out, embed.Parse(cmd.Input))
}

type filterCmd struct {
	URL    string `arg:"" help:"Superset explore or dashboard URL."`
	From   string `required:"" help:"Start date (YYYY-MM-DD)."`
	To     string `required:"" help:"End date (YYYY-MM-DD)."`
	Column string `default:"date" help:"Temporal column the filter targets."`
}

func (cmd *filterCmd) Run(_ context.Context, out io.Writer) error {
	r, err := embed.ParseDateRange(cmd.From, cmd.To)
	if err != nil {
		return fmt.Errorf("portalctl: %w", err)
	}
	filtered, err := embed.NewFilterInjector(cmd.Column).Apply(cmd.URL, r)
	if err != nil {
		return fmt.Errorf("portalctl: apply filter: %w", err)
	}
	fmt.Fprintln(out, filtered)
	return nil
}

type seedCmd struct {
	DataDir string `default:"./data" type:"path" help:"Directory holding the JSON data files."`
	File    string `type:"existingfile" help:"Seed YAML file (defaults to the bundled demo data)."`
}

func (cmd *seedCmd) Run(ctx context.Context, out io.Writer) error {
	data, err := cmd.load()
	if err != nil {
		return err
	}
	files, err := store.NewFileStore(cmd.DataDir)
	if err != nil {
		return fmt.Errorf("portalctl: open data dir: %w", err)
	}

	hasher := crypto.NewPasswordHasher(0)
	created, err := services.NewUserService(files.Users(), hasher).EnsureSeeded(ctx, data.Users)
	if err != nil {
		return fmt.Errorf("portalctl: seed users: %w", err)
	}
	dashboards := services.NewDashboardService(files.Dashboards(), replica.Nop{}, services.NewTileValidator(), hasher)
	// existing member password hashes are carried over by id
	if _, err := dashboards.Hydrate(ctx, nil, nil); err != nil {
		return fmt.Errorf("portalctl: load dashboards: %w", err)
	}
	synced, err := dashboards.Sync(ctx, data.Dashboards)
	if err != nil {
		return fmt.Errorf("portalctl: seed dashboards: %w", err)
	}

	fmt.Fprintf(out, "seeded %d users and %d dashboards into %s\n", created, len(synced), files.Dir())
	return nil
}

func (cmd *seedCmd) load() (*seed.Data, error) {
	if cmd.File == "" {
		return seed.Demo()
	}
	return seed.Read(cmd.File)
}

type watchCmd struct {
	Input       string        `arg:"" help:"Superset URL or iframe snippet."`
	From        string        `help:"Start date (YYYY-MM-DD)."`
	To          string        `help:"End date (YYYY-MM-DD)."`
	Column      string        `default:"date" help:"Temporal column for the date filter."`
	Interval    time.Duration `default:"4m" help:"Refresh interval."`
	SupersetURL string        `env:"SUPERSET_URL" help:"Superset base URL used for guest tokens."`
	Username    string        `env:"SUPERSET_USERNAME" default:"admin" help:"Superset service account."`
	Password    string        `env:"SUPERSET_PASSWORD" help:"Superset service account password."`
}

func (cmd *watchCmd) Run(ctx context.Context, out io.Writer) error {
	req := embed.Request{Target: embed.Parse(cmd.Input)}
	if cmd.From != "" || cmd.To != "" {
		r, err := embed.ParseDateRange(cmd.From, cmd.To)
		if err != nil {
			return fmt.Errorf("portalctl: %w", err)
		}
		req.Range = r
		req.FilterEnabled = true
	}

	tokens := services.NewGuestTokenService(nil)
	if cmd.SupersetURL != "" {
		tokens = services.NewGuestTokenService(supersetclient.NewAdapter(supersetclient.Config{
			BaseURL:  cmd.SupersetURL,
			Username: cmd.Username,
			Password: cmd.Password,
		}))
	}
	renderer := embed.NewRenderer(services.NewTokenManager(tokens), embed.NewFilterInjector(cmd.Column))

	view := embed.NewView(renderer, req, func(f embed.Frame) {
		_ = writeJSON(out, f)
	})
	defer view.Close()

	if _, err := view.Load(ctx); err != nil {
		return fmt.Errorf("portalctl: load embed: %w", err)
	}
	view.StartAutoRefresh(ctx, cmd.Interval)
	<-ctx.Done()
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	var c cli
	parser := kong.Must(&c,
		kong.Description("Operator utility for the insight portal."),
		kong.UsageOnError(),
	)
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	log := logger.New(c.LogLevel, func(level slog.Level) slog.Handler {
		return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	})
	ctx, stop := signal.NotifyContext(logger.ToContext(context.Background(), log), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.BindTo(os.Stdout, (*io.Writer)(nil))
	kctx.FatalIfErrorf(kctx.Run())
}
