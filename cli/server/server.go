/*
Package server implements the dispute server command and node database
manipulation commands.
*/
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"github.com/veritas-l2/hextrie/cli/flags"
	"github.com/veritas-l2/hextrie/cli/options"
	"github.com/veritas-l2/hextrie/pkg/config"
	gio "github.com/veritas-l2/hextrie/pkg/io"
	"github.com/veritas-l2/hextrie/pkg/services/dispute"
	"github.com/veritas-l2/hextrie/pkg/services/metrics"
	"github.com/veritas-l2/hextrie/pkg/storage"
	"github.com/veritas-l2/hextrie/pkg/trie"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// storeVersion is the expected node database layout version.
const storeVersion = "0.1.0"

// NewCommands returns 'server' and 'db' commands.
func NewCommands() []cli.Command {
	cfgFlags := []cli.Flag{options.Config, options.ConfigFile, options.Debug}

	var cfgOutFlags = make([]cli.Flag, len(cfgFlags))
	copy(cfgOutFlags, cfgFlags)
	cfgOutFlags = append(cfgOutFlags,
		cli.StringFlag{
			Name:  "out, o",
			Usage: "file to write the node dump to",
		},
		flags.Uint256Flag{
			Name:  "root, r",
			Usage: "dump only nodes reachable from the given root hash",
		},
	)
	var cfgInFlags = make([]cli.Flag, len(cfgFlags))
	copy(cfgInFlags, cfgFlags)
	cfgInFlags = append(cfgInFlags,
		cli.StringFlag{
			Name:  "in, i",
			Usage: "file with the node dump to restore",
		},
	)
	return []cli.Command{
		{
			Name:      "server",
			Usage:     "start the dispute verification server",
			UsageText: "hextrie server [--config-path path] [-d]",
			Description: `Watches the configured spool directory for claim files and files each
   claim by verdict. SIGHUP makes the server reread the configuration file
   and apply the new logging level.`,
			Action: startServer,
			Flags:  cfgFlags,
		},
		{
			Name:  "db",
			Usage: "manipulate the node database",
			Subcommands: []cli.Command{
				{
					Name:      "dump",
					Usage:     "dump trie nodes to a file",
					UsageText: "hextrie db dump --out file [--root hash] [--config-path path]",
					Action:    dumpDB,
					Flags:     cfgOutFlags,
				},
				{
					Name:      "restore",
					Usage:     "restore trie nodes from a file",
					UsageText: "hextrie db restore --in file [--config-path path]",
					Action:    restoreDB,
					Flags:     cfgInFlags,
				},
			},
		},
	}
}

// newGraceContext returns a context cancelled by SIGINT or SIGTERM.
func newGraceContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()
	return ctx
}

// checkStoreVersion verifies the database layout version, initializing it
// on first use.
func checkStoreVersion(ps storage.Store) error {
	key := storage.SYSVersion.Bytes()
	version, err := ps.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return ps.Put(key, []byte(storeVersion))
	}
	if err != nil {
		return err
	}
	if string(version) != storeVersion {
		return fmt.Errorf("storage version mismatch (have %s, expected %s)", version, storeVersion)
	}
	return nil
}

// initServices creates the dispute module and metric services over the
// given store.
func initServices(cfg config.Config, log *zap.Logger, ps storage.Store) (*dispute.Module, *metrics.Service, *metrics.Service, error) {
	module, err := dispute.NewModule(cfg.ApplicationConfiguration.Dispute, log, ps)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("can't create dispute service: %w", err)
	}
	prometheus := metrics.NewPrometheusService(cfg.ApplicationConfiguration.Prometheus, log)
	pprof := metrics.NewPprofService(cfg.ApplicationConfiguration.Pprof, log)
	return module, prometheus, pprof, nil
}

func startServer(ctx *cli.Context) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, logLevel, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	grace, cancel := context.WithCancel(newGraceContext())
	defer cancel()

	ps, err := storage.NewStore(cfg.ApplicationConfiguration.DBConfiguration)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't open node database: %w", err), 1)
	}
	defer ps.Close()
	if err := checkStoreVersion(ps); err != nil {
		return cli.NewExitError(fmt.Errorf("can't init node database: %w", err), 1)
	}

	module, prometheus, pprof, err := initServices(cfg, log, ps)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	log.Info("starting dispute server", zap.String("version", config.Version))
	if err := module.Start(); err != nil {
		return cli.NewExitError(fmt.Errorf("can't start dispute service: %w", err), 1)
	}
	if err := prometheus.Start(); err != nil {
		return cli.NewExitError(fmt.Errorf("can't start Prometheus service: %w", err), 1)
	}
	if err := pprof.Start(); err != nil {
		return cli.NewExitError(fmt.Errorf("can't start Pprof service: %w", err), 1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sighup)

Main:
	for {
		select {
		case sig := <-sigCh:
			log.Info("signal received", zap.Stringer("name", sig))
			cfgnew, err := options.GetConfigFromContext(ctx)
			if err != nil {
				log.Warn("can't reread the config file, signal ignored", zap.Error(err))
				break // Continue working.
			}
			switch sig {
			case sighup:
				if cfgnew.ApplicationConfiguration.LogLevel != cfg.ApplicationConfiguration.LogLevel &&
					!ctx.Bool("debug") {
					newLevel, err := zapcore.ParseLevel(cfgnew.ApplicationConfiguration.LogLevel)
					if err != nil {
						log.Warn("wrong LogLevel in the new configuration, signal ignored", zap.Error(err))
						break // Continue working.
					}
					logLevel.SetLevel(newLevel)
					log.Warn("using new logging level", zap.Stringer("level", newLevel))
				}
			}
			cfg = cfgnew
		case <-grace.Done():
			signal.Stop(sigCh)
			break Main
		}
	}

	module.Shutdown()
	if err := prometheus.ShutDown(); err != nil {
		log.Error("can't shut down Prometheus service", zap.Error(err))
	}
	if err := pprof.ShutDown(); err != nil {
		log.Error("can't shut down Pprof service", zap.Error(err))
	}
	_ = log.Sync()
	return nil
}

func dumpDB(ctx *cli.Context) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	out := ctx.String("out")
	if len(out) == 0 {
		return cli.NewExitError("no output file specified", 1)
	}
	ps, err := storage.NewStore(cfg.ApplicationConfiguration.DBConfiguration)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't open node database: %w", err), 1)
	}
	defer ps.Close()

	var nodes []trie.Node
	if root := flags.Uint256FromContext(ctx, "root"); root.IsSet {
		ns := trie.NewNodeStoreSized(ps, cfg.ApplicationConfiguration.NodeCacheSize)
		err = ns.Walk(root.Uint256(), func(n trie.Node) error {
			nodes = append(nodes, n)
			return nil
		})
	} else {
		err = collectStoredNodes(ps, &nodes)
	}
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't collect nodes: %w", err), 1)
	}

	f, err := os.Create(out)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't create output file: %w", err), 1)
	}
	defer f.Close()
	if err := trie.SaveNodes(gio.NewBinWriterFromIO(f), nodes); err != nil {
		return cli.NewExitError(fmt.Errorf("can't write dump: %w", err), 1)
	}
	fmt.Fprintf(ctx.App.Writer, "dumped %d nodes to %s\n", len(nodes), out)
	return nil
}

// collectStoredNodes decodes every trie node of the store, in key order.
func collectStoredNodes(ps storage.Store, nodes *[]trie.Node) error {
	var err error
	ps.Seek(storage.DataTrie.Bytes(), func(k, v []byte) {
		if err != nil {
			return
		}
		var no trie.NodeObject
		r := gio.NewBinReaderFromBuf(v)
		no.DecodeBinary(r)
		if r.Err != nil {
			err = fmt.Errorf("can't decode node %x: %w", k, r.Err)
			return
		}
		*nodes = append(*nodes, no.Node)
	})
	return err
}

func restoreDB(ctx *cli.Context) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	in := ctx.String("in")
	if len(in) == 0 {
		return cli.NewExitError("no input file specified", 1)
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't read dump: %w", err), 1)
	}
	nodes, err := trie.LoadNodes(gio.NewBinReaderFromBuf(data))
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't decode dump: %w", err), 1)
	}

	ps, err := storage.NewStore(cfg.ApplicationConfiguration.DBConfiguration)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("can't open node database: %w", err), 1)
	}
	defer ps.Close()
	if err := checkStoreVersion(ps); err != nil {
		return cli.NewExitError(fmt.Errorf("can't init node database: %w", err), 1)
	}

	ns := trie.NewNodeStoreSized(ps, cfg.ApplicationConfiguration.NodeCacheSize)
	for _, n := range nodes {
		if err := ns.Put(n); err != nil {
			return cli.NewExitError(fmt.Errorf("can't restore node: %w", err), 1)
		}
	}
	fmt.Fprintf(ctx.App.Writer, "restored %d nodes from %s\n", len(nodes), in)
	return nil
}
