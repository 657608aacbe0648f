// madar-fm is the command-line file manager for the Madar dashboard API.
//
// It browses folders, unlocks password-protected folders, and creates, moves, deletes,
// uploads, downloads and shares items. One-shot commands run against a fresh session; the
// shell command keeps one session for the process lifetime, so folder passwords entered in
// the shell are remembered until it exits.
//
// Sub-commands:
//
//	madar-fm ls [folderID]             List a folder (root by default)
//	madar-fm crumbs <folderID>         Show the path of a folder
//	madar-fm mkdir [flags] <name>      Create a folder
//	madar-fm rm -in <folderID> <id>... Delete files and folders
//	madar-fm mv -in <folderID> -to <targetID> <id>...
//	madar-fm upload -in <folderID> <path>...
//	madar-fm download -in <folderID> <fileID>
//	madar-fm shares <file|folder> <id> [grant|revoke ...]
//	madar-fm shell                     Interactive session
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/browse"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/capability"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/config"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/download"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/filemanager"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/logging"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/metrics"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/notify"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/client"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/retry"
)

// app is what every command runs against.
type app struct {
	session *filemanager.Session
	out     string
	in      *bufio.Reader
	tty     bool
}

func main() {
	configPath := flag.String("config", "", "Config file (default: $XDG_CONFIG_HOME/madar/config.yaml)")
	output := flag.String("o", "table", "Output format: table, grid, json, yaml")
	token := flag.String("token", "", "Access token (overrides api.token and MADAR_API_TOKEN)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	if args[0] == "help" {
		printUsage()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *token != "" {
		cfg.API.Token = *token
	}

	if err := logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.Output,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	switch *output {
	case "table", "grid", "json", "yaml":
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format: %s\n", *output)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stopMetrics := serveMetrics(cfg.Metrics.Addr)
	defer stopMetrics()

	a, err := newApp(ctx, cfg, *output, args[0] == "shell")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "ls", "list":
		err = a.cmdList(ctx, cmdArgs)
	case "crumbs":
		err = a.cmdCrumbs(ctx, cmdArgs)
	case "mkdir":
		err = a.cmdMkdir(ctx, cmdArgs)
	case "rm", "delete":
		err = a.cmdRemove(ctx, cmdArgs)
	case "mv", "move":
		err = a.cmdMove(ctx, cmdArgs)
	case "upload":
		err = a.cmdUpload(ctx, cmdArgs)
	case "download", "get":
		err = a.cmdDownload(ctx, cmdArgs)
	case "shares":
		err = a.cmdShares(ctx, cmdArgs)
	case "shell":
		err = a.runShell(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(os.Stderr, "Usage: madar-fm %s\n", ue)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Madar file manager

Usage: madar-fm [flags] <command> [args]

Flags:
  -config <path>     Config file (default: $XDG_CONFIG_HOME/madar/config.yaml)
  -o <format>        Output format: table, grid, json, yaml (default: table)
  -token <token>     Access token

Commands:
  ls [folderID]                         List a folder (root by default)
  crumbs <folderID>                     Show the path of a folder
  mkdir [-in id] [-note text] [-protected] <name>
                                        Create a folder; -protected prompts for its password
  rm -in <folderID> <id>...             Delete files and folders of a folder
  mv -in <folderID> -to <targetID> <id>...
                                        Move files and folders
  upload [-in folderID] <path>...       Upload local files
  download -in <folderID> <fileID>      Save a file through the configured sink
  shares <file|folder> <id>             List grants
  shares <file|folder> <id> grant <user|role> <principalID> <read|write|admin>
  shares <file|folder> <id> revoke <user|role> <principalID>
  shell                                 Interactive session
  help                                  Show this help message

Environment:
  MADAR_API_BASE_URL, MADAR_API_TOKEN, MADAR_QUERY_PAGE_SIZE, MADAR_LOGGING_LEVEL, ...

Examples:
  madar-fm ls
  madar-fm -o yaml ls 64f1c0
  madar-fm mkdir -protected "Board minutes"
  madar-fm mv -in 64f1c0 -to 64f1d2 a1b2 c3d4
  madar-fm shares file a1b2 grant user u-17 read`)
}

// newApp wires the client, policy, download sink and session from the configuration.
func newApp(ctx context.Context, cfg *config.Config, output string, interactive bool) (*app, error) {
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.Query.RetryAttempts

	c := client.New(client.Config{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.Timeout,
		Token:       cfg.API.Token,
		RetryConfig: retryCfg,
	})

	var policy capability.Policy = capability.AllowAll{}
	if cfg.API.Token != "" {
		p, err := capability.FromToken(cfg.API.Token)
		if err != nil {
			// Opaque tokens carry no claims; the backend still enforces permissions.
			logging.Warn("token has no readable claims, showing every action", logging.Err(err))
		} else {
			policy = p
		}
	}

	sink, err := newSink(ctx, cfg.Download)
	if err != nil {
		return nil, err
	}

	var notifier notify.Notifier = toastPrinter{}
	if interactive {
		b := notify.NewBroadcaster()
		go printToasts(b.Subscribe())
		notifier = b
	}

	session := filemanager.New(c, filemanager.Options{
		Policy:   policy,
		Notifier: notifier,
		Sink:     sink,
		Browse: browse.Config{
			PageSize:   cfg.Query.PageSize,
			StaleTime:  cfg.Query.StaleTime,
			MaxEntries: cfg.Query.MaxEntries,
		},
		PrecheckPasswords: cfg.Session.PrecheckPasswords,
	})

	logging.Debug("session ready",
		logging.String("base_url", cfg.API.BaseURL),
		logging.String("sink", sink.Name()),
		logging.Int("page_size", cfg.Query.PageSize),
	)
	return &app{
		session: session,
		out:     output,
		in:      bufio.NewReader(os.Stdin),
		tty:     term.IsTerminal(int(os.Stdin.Fd())),
	}, nil
}

func newSink(ctx context.Context, cfg config.DownloadConfig) (download.Sink, error) {
	if cfg.Sink != "s3" {
		return download.LocalSink{Dir: cfg.Dir}, nil
	}
	sink, err := download.NewS3Sink(ctx, download.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Prefix:    cfg.S3.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 download sink: %w", err)
	}
	return sink, nil
}

// serveMetrics starts the Prometheus endpoint when addr is set and returns its stop function.
func serveMetrics(addr string) func() {
	if addr == "" {
		return func() {}
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Info("metrics server listening", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", logging.Err(err))
		}
	}()
	return func() { srv.Close() }
}
