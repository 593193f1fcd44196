package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/internal/pipeline"
	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/feed"
	"github.com/ajitpratap0/onix/pkg/header"
	"github.com/ajitpratap0/onix/pkg/logger"
	"github.com/ajitpratap0/onix/pkg/registry"
	"github.com/ajitpratap0/onix/pkg/source"

	// Register field plugins and sinks
	_ "github.com/ajitpratap0/onix/pkg/fields"
	_ "github.com/ajitpratap0/onix/pkg/sinks/avro"
	_ "github.com/ajitpratap0/onix/pkg/sinks/jsonl"
	_ "github.com/ajitpratap0/onix/pkg/sinks/kafka"
	_ "github.com/ajitpratap0/onix/pkg/sinks/log"
	_ "github.com/ajitpratap0/onix/pkg/sinks/mongodb"
	_ "github.com/ajitpratap0/onix/pkg/sinks/mysql"
	_ "github.com/ajitpratap0/onix/pkg/sinks/postgres"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "onix",
		Short: "onix - streaming ONIX product feed extractor",
		Long: `onix reads an ONIX for Books feed, cuts it into Header and Product
sections while streaming, extracts product fields with plugins and imports
every product record into the configured sinks.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "onix v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "plugins",
		Short: "List field plugins and sink types",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Field plugins:")
			for _, name := range registry.ListFields() {
				fmt.Fprintf(out, "  - %s\n", name)
			}
			fmt.Fprintln(out, "\nSink types:")
			for _, name := range registry.ListSinks() {
				fmt.Fprintf(out, "  - %s\n", name)
			}
		},
	})

	root.AddCommand(newInspectCmd(), newRunCmd())
	return root
}

// inspection is the output of the inspect command.
type inspection struct {
	URI          string         `json:"uri"`
	Charset      string         `json:"charset"`
	Compression  string         `json:"compression"`
	Bytes        int            `json:"bytes"`
	HeaderSpan   *feed.Span     `json:"header_span,omitempty"`
	Header       *header.Header `json:"header,omitempty"`
	Products     int            `json:"products"`
	ProductSpans []feed.Span    `json:"product_spans"`
}

func newInspectCmd() *cobra.Command {
	var src config.SourceConfig
	var logLevel string

	cmd := &cobra.Command{
		Use:   "inspect <feed>",
		Short: "Print the Header and Product spans of a feed",
		Long: `Parse a feed without field plugins or sinks and print its Header
and Product byte spans as JSON.

Example:
  onix inspect s3://publisher-drops/2024/daily.xml.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.Config{Level: logLevel, Encoding: "console"}); err != nil {
				return err
			}
			src.URI = args[0]
			return inspect(cmd, src)
		},
	}
	cmd.Flags().StringVar(&src.Compression, "compression", "", "Compression of the feed (default: from the file extension)")
	cmd.Flags().StringVar(&src.Charset, "charset", "", "Charset of the feed (default: from the XML declaration)")
	cmd.Flags().StringVar(&src.Region, "region", "", "AWS region for s3:// feeds")
	cmd.Flags().StringVar(&src.Endpoint, "endpoint", "", "S3 compatible endpoint")
	cmd.Flags().StringVar(&src.CredentialsFile, "credentials-file", "", "GCP credentials file for gs:// feeds")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	return cmd
}

func inspect(cmd *cobra.Command, src config.SourceConfig) error {
	ctx := cmd.Context()
	log := logger.Get()

	f, err := source.Open(ctx, src, source.WithLogger(log))
	if err != nil {
		return err
	}
	defer f.Close()

	headers := header.NewConsumer(nil, log)
	parser := feed.NewParser(feed.WithLogger(log))
	parser.Attach(headers)
	if err := parser.Parse(ctx, f.Bytes()); err != nil {
		return err
	}

	out := inspection{
		URI:          src.URI,
		Charset:      f.Charset,
		Compression:  string(f.Compression),
		Bytes:        len(f.Bytes()),
		Products:     parser.ProductCount(),
		ProductSpans: parser.ProductSpans(),
	}
	if span, ok := parser.HeaderSpan(); ok {
		out.HeaderSpan = &span
	}
	if h, ok := headers.Header(); ok {
		out.Header = &h
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

func newRunCmd() *cobra.Command {
	var configFile, sourceURI, logLevel string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract a feed into the configured sinks",
		Long: `Run an extraction described by a YAML configuration file.
Values can reference environment variables as ${VAR} and can be overridden
with ONIX_* variables.

Example:
  onix run --config onix.yaml --source feeds/daily.xml.gz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, configFile, sourceURI, logLevel, timeout)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the YAML configuration file (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVarP(&sourceURI, "source", "s", "", "Feed URI, overrides source.uri")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level, overrides observability.log_level")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the run after this duration (0 disables)")
	return cmd
}

func run(cmd *cobra.Command, configFile, sourceURI, logLevel string, timeout time.Duration) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if sourceURI != "" {
		cfg.Source.URI = sourceURI
	}
	if logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Encoding:    cfg.Observability.LogEncoding,
		Development: cfg.Observability.Development,
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get().With(zap.String("component", "onix-cli"))

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	runner, err := pipeline.NewRunner(cfg, pipeline.WithLogger(log))
	if err != nil {
		return err
	}
	summary, runErr := runner.Run(ctx)
	if summary != nil {
		b, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
	}
	return runErr
}
