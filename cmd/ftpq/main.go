// ftpq is a small FTP client driven by the github.com/seqio/ftp session
// engine: list, download, upload and delete files on plain FTP servers,
// with named server profiles in ~/.ftpq.yaml.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/panjf2000/ants/v2"
	"github.com/urfave/cli/v2"

	"github.com/seqio/ftp"
)

// version is set via ldflags at build time: -ldflags "-X main.version=x.y.z"
var version = "dev"

var (
	okf   = color.New(color.FgGreen).FprintfFunc()
	errf  = color.New(color.FgRed).FprintfFunc()
	dimln = color.New(color.Faint).FprintlnFunc()
)

func main() {
	app := &cli.App{
		Name:    "ftpq",
		Usage:   "minimal FTP client: ls, get, put, rm, mget",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"P"},
				Usage:   "named server profile from ~/.ftpq.yaml",
			},
			&cli.StringFlag{
				Name:    "host",
				Aliases: []string{"H"},
				Usage:   "server hostname or IP",
			},
			&cli.IntFlag{
				Name:  "port",
				Value: 21,
				Usage: "control connection port",
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Value:   "anonymous",
				Usage:   "login user",
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "login password",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Value: 20000,
				Usage: "connect/reply/transfer timeout in milliseconds",
			},
			&cli.BoolFlag{
				Name:  "active",
				Usage: "use active (PORT) data channels instead of passive",
			},
			&cli.BoolFlag{
				Name:  "ascii",
				Usage: "transfer in ASCII mode (TYPE A) instead of binary",
			},
			&cli.Int64Flag{
				Name:  "throttle",
				Usage: "cap transfer speed in bytes per second (0 = unlimited)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log FTP commands and replies to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "list a remote directory",
				ArgsUsage: "[path]",
				Action:    cmdList,
			},
			{
				Name:      "get",
				Usage:     "download a remote file",
				ArgsUsage: "<remote> [local]",
				Action:    cmdGet,
			},
			{
				Name:      "put",
				Usage:     "upload a local file",
				ArgsUsage: "<local> [remote]",
				Action:    cmdPut,
			},
			{
				Name:      "rm",
				Usage:     "delete remote files",
				ArgsUsage: "<remote>...",
				Action:    cmdRemove,
			},
			{
				Name:      "mget",
				Usage:     "download several remote files in parallel, one session each",
				ArgsUsage: "<remote>...",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "jobs",
						Aliases: []string{"j"},
						Value:   4,
						Usage:   "number of parallel sessions",
					},
				},
				Action: cmdMultiGet,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		errf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveConfig merges the selected profile (if any) under the command-line
// flags: a flag set explicitly always wins.
func resolveConfig(c *cli.Context) (ftp.Config, error) {
	cfg := ftp.Config{
		Host:       c.String("host"),
		Port:       c.Int("port"),
		User:       c.String("user"),
		Password:   c.String("password"),
		Timeout:    time.Duration(c.Int("timeout")) * time.Millisecond,
		ActiveMode: c.Bool("active"),
		ASCII:      c.Bool("ascii"),
	}

	if name := c.String("profile"); name != "" {
		profs, err := loadProfiles(profilesPath())
		if err != nil {
			return ftp.Config{}, err
		}
		prof, err := profs.lookup(name)
		if err != nil {
			return ftp.Config{}, err
		}
		cfg = mergeProfile(cfg, prof, c)
	}

	if cfg.Host == "" {
		return ftp.Config{}, fmt.Errorf("no host given; use --host or --profile")
	}

	return cfg, nil
}

// mergeProfile fills config fields from the profile unless the matching flag
// was set on the command line.
func mergeProfile(cfg ftp.Config, prof Profile, c *cli.Context) ftp.Config {
	if !c.IsSet("host") {
		cfg.Host = prof.Host
	}
	if !c.IsSet("port") {
		cfg.Port = prof.Port
	}
	if !c.IsSet("user") && prof.User != "" {
		cfg.User = prof.User
	}
	if !c.IsSet("password") {
		cfg.Password = prof.Password
	}
	if !c.IsSet("active") {
		cfg.ActiveMode = prof.Active
	}
	if !c.IsSet("ascii") {
		cfg.ASCII = prof.ASCII
	}
	return cfg
}

func sessionOptions(c *cli.Context) []ftp.Option {
	var opts []ftp.Option
	if c.Bool("verbose") {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		opts = append(opts, ftp.WithLogger(logger))
	}
	if bps := c.Int64("throttle"); bps > 0 {
		opts = append(opts, ftp.WithThrottle(bps))
	}
	return opts
}

// dial opens a logged-in session for one command invocation.
func dial(c *cli.Context) (*ftp.Session, context.Context, context.CancelFunc, error) {
	cfg, err := resolveConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)

	sess, err := ftp.Dial(ctx, cfg, sessionOptions(c)...)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}

	return sess, ctx, cancel, nil
}

func cmdList(c *cli.Context) error {
	sess, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer sess.Disconnect()

	lines, err := sess.List(ctx, c.Args().First())
	if err != nil {
		return err
	}

	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

func cmdGet(c *cli.Context) error {
	remote := c.Args().First()
	if remote == "" {
		return fmt.Errorf("usage: ftpq get <remote> [local]")
	}
	local := c.Args().Get(1)
	if local == "" {
		local = path.Base(remote)
	}

	sess, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer sess.Disconnect()

	progress := func(n int64) {
		fmt.Fprintf(os.Stderr, "\r%s: %d bytes", remote, n)
	}
	err = fetchFile(ctx, sess, remote, local, progress)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	okf(os.Stdout, "downloaded %s -> %s\n", remote, local)
	return nil
}

// fetchFile streams one remote file to a local path, cleaning up the partial
// file on failure. progress, if non-nil, receives the running byte total.
func fetchFile(ctx context.Context, sess *ftp.Session, remote, local string, progress func(int64)) error {
	stream, err := sess.DownloadStream(ctx, remote)
	if err != nil {
		return err
	}

	f, err := os.Create(local)
	if err != nil {
		_ = stream.Close()
		return err
	}

	dst := &ftp.ProgressWriter{Writer: f, Callback: progress}
	_, copyErr := io.Copy(dst, stream)
	finishErr := stream.Close()
	closeErr := f.Close()

	if copyErr != nil || finishErr != nil {
		_ = os.Remove(local)
		if copyErr != nil {
			return copyErr
		}
		return finishErr
	}
	return closeErr
}

func cmdPut(c *cli.Context) error {
	local := c.Args().First()
	if local == "" {
		return fmt.Errorf("usage: ftpq put <local> [remote]")
	}
	remote := c.Args().Get(1)
	if remote == "" {
		remote = path.Base(local)
	}

	sess, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer sess.Disconnect()

	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := sess.Upload(ctx, remote, f); err != nil {
		return err
	}

	okf(os.Stdout, "uploaded %s -> %s\n", local, remote)
	return nil
}

func cmdRemove(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("usage: ftpq rm <remote>...")
	}

	sess, ctx, cancel, err := dial(c)
	if err != nil {
		return err
	}
	defer cancel()
	defer sess.Disconnect()

	for _, remote := range c.Args().Slice() {
		if err := sess.Delete(ctx, remote); err != nil {
			return err
		}
		okf(os.Stdout, "deleted %s\n", remote)
	}
	return nil
}

// cmdMultiGet downloads each named file over its own session, fanned out
// through a bounded goroutine pool. One session per worker keeps the
// half-duplex control channel contract intact.
func cmdMultiGet(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("usage: ftpq mget <remote>...")
	}

	cfg, err := resolveConfig(c)
	if err != nil {
		return err
	}
	opts := sessionOptions(c)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pool, err := ants.NewPool(c.Int("jobs"))
	if err != nil {
		return err
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, remote := range c.Args().Slice() {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()

			if err := fetchOne(ctx, cfg, opts, remote); err != nil {
				errf(os.Stderr, "%s: %v\n", remote, err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			okf(os.Stdout, "downloaded %s\n", remote)
		}); err != nil {
			wg.Done()
			log.Printf("failed to submit %s: %v", remote, err)
		}
	}

	wg.Wait()
	if firstErr != nil {
		return fmt.Errorf("some downloads failed")
	}
	dimln(os.Stdout, "all downloads complete")
	return nil
}

func fetchOne(ctx context.Context, cfg ftp.Config, opts []ftp.Option, remote string) error {
	sess, err := ftp.Dial(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer sess.Disconnect()

	// No per-file progress output: parallel downloads would interleave it.
	return fetchFile(ctx, sess, remote, path.Base(remote), nil)
}
