package cli

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/NissesSenap/tweet-pipeline/internal/config"
	"github.com/NissesSenap/tweet-pipeline/internal/logging"
)

// Version is set at build time with -ldflags "-X ...cli.Version=..."
var Version = "dev"

// CLI is the main CLI structure with embedded context
type CLI struct {
	ctx    context.Context // Store context for commands to use
	stdout io.Writer
	stdin  io.Reader

	Publish  PublishCmd  `cmd:"publish" help:"Publish JSON-lines tweet files to the Pub/Sub topic"`
	Process  ProcessCmd  `cmd:"process" help:"Stream tweets from the subscription into BigQuery"`
	Flatten  FlattenCmd  `cmd:"flatten" help:"Print the leaves of JSON documents, one JSON value per line"`
	Stats    StatsCmd    `cmd:"stats" help:"Show rows streamed per table"`
	Rejected RejectedCmd `cmd:"rejected" help:"Show rows BigQuery rejected"`
	Config   ConfigCmd   `cmd:"config" help:"Show or save the effective configuration"`
	Version  VersionCmd  `cmd:"version" help:"Show version"`
}

// Context returns the CLI's context for use by commands.
// This allows commands to access the context without directly accessing
// the unexported ctx field.
func (c *CLI) Context() context.Context {
	return c.ctx
}

// Stdout is where commands write their output.
func (c *CLI) Stdout() io.Writer {
	return c.stdout
}

// Stdin is read by commands given "-" or no file.
func (c *CLI) Stdin() io.Reader {
	return c.stdin
}

// setup loads the configuration and builds the logger from it.
func (c *CLI) setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// ExecuteWithContext executes the CLI with a context that can be cancelled
func ExecuteWithContext(ctx context.Context) error {
	cli := &CLI{ctx: ctx, stdout: os.Stdout, stdin: os.Stdin}
	kongCtx := kong.Parse(cli,
		kong.Name("tweet-pipeline"),
		kong.Description("Publish tweets to Pub/Sub and stream them into BigQuery."),
		kong.UsageOnError(),
	)

	// Bind CLI instance so commands can access the context
	return kongCtx.Run(cli)
}

// Execute executes the CLI with a background context (for backwards compatibility)
func Execute() error {
	return ExecuteWithContext(context.Background())
}

// run parses args without exiting the process on errors.
func run(ctx context.Context, args []string, stdout io.Writer, stdin io.Reader) error {
	cli := &CLI{ctx: ctx, stdout: stdout, stdin: stdin}
	parser, err := kong.New(cli,
		kong.Name("tweet-pipeline"),
		kong.Writers(stdout, stdout),
		kong.Exit(func(int) {}),
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kongCtx.Run(cli)
}
