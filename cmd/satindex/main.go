// Command satindex is the core-facing CLI surface of §6: index, find,
// list and status, wrapping the engine/coordinator/query packages. The
// CLI itself is the thin external collaborator the spec calls out as
// out of scope for the core; everything it does is delegate to those
// packages.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/satindex/satindex/chaincfg"
	"github.com/satindex/satindex/chaincfg/chainhash"
	"github.com/satindex/satindex/chainstore"
	"github.com/satindex/satindex/config"
	"github.com/satindex/satindex/coordinator"
	"github.com/satindex/satindex/core"
	"github.com/satindex/satindex/db/pebblestore"
	"github.com/satindex/satindex/log"
	"github.com/satindex/satindex/metrics"
	"github.com/satindex/satindex/node"
	"github.com/satindex/satindex/query"
)

// exitCode mirrors §6: 0 success, 1 usage, 2 unrecoverable store or node
// error.
const (
	exitOK      = 0
	exitUsage   = 1
	exitRuntime = 2
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "satindex",
		Short:         "Base-unit ordinal assignment and index engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to ordinals.yml (default: search executable dir, then .)")

	root.AddCommand(indexCmd(), findCmd(), listCmd(), statusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "satindex:", err)
		if _, ok := err.(usageError); ok {
			os.Exit(exitUsage)
		}
		os.Exit(exitRuntime)
	}
}

// usageError marks a cobra RunE error as a usage problem (exit 1) rather
// than a runtime failure (exit 2).
type usageError struct{ error }

func loadConfig() (*config.Config, chaincfg.Params, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, chaincfg.Params{}, err
	}
	params, ok := chaincfg.ParamsForName(cfg.Chain)
	if !ok {
		return nil, chaincfg.Params{}, usageError{fmt.Errorf("unknown chain %q", cfg.Chain)}
	}
	return cfg, params, nil
}

func dialNode(cfg *config.Config) (*node.RPCClient, error) {
	if cfg.Node.CookiePath != "" {
		return node.DialWithCookie(cfg.Node.RPCHost, cfg.Node.CookiePath)
	}
	return node.Dial(cfg.Node.RPCHost, cfg.Node.RPCUser, cfg.Node.RPCPass)
}

func openStore(cfg *config.Config) (*pebblestore.Store, error) {
	dir := cfg.DataDir
	if !filepath.IsAbs(dir) {
		if exe, err := os.Executable(); err == nil {
			dir = filepath.Join(filepath.Dir(exe), dir)
		}
	}
	store, err := pebblestore.Open(dir)
	if err != nil {
		return nil, err
	}
	if err := chainstore.CheckSchema(store); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Run the index coordinator loop until cancelled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, params, err := loadConfig()
			if err != nil {
				return err
			}
			if err := log.InitRotator(filepath.Join(cfg.LogDir, "satindex.log")); err != nil {
				return err
			}
			defer log.Close()
			log.SetLevels(cfg.LogLevel)

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			src, err := dialNode(cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			ccfg := coordinator.DefaultConfig()
			ccfg.BatchSize = cfg.Coordinator.BatchSize
			ccfg.PollInterval = cfg.Coordinator.PollInterval
			ccfg.UndoHorizon = cfg.Coordinator.UndoHorizon
			ccfg.RetryBaseDelay = cfg.Coordinator.RetryBaseDelay
			ccfg.RetryMaxDelay = cfg.Coordinator.RetryMaxDelay
			ccfg.RetryBudget = cfg.Coordinator.RetryBudget

			cd := coordinator.New(store, src, params, ccfg)
			cd.OnBatchApplied(func(height uint32, outputsIndexed, destroyedTotal uint64) {
				metrics.IndexedHeight.Set(float64(height))
				metrics.OutputsIndexed.Set(float64(outputsIndexed))
				metrics.DestroyedTotal.Set(float64(destroyedTotal))
				log.CORD.Debugf("applied height %d", height)
			})
			cd.OnTipObserved(func(tip uint32) {
				metrics.NodeTipHeight.Set(float64(tip))
			})
			cd.OnBatchDuration(func(d time.Duration) {
				metrics.BatchDuration.Observe(d.Seconds())
			})
			cd.OnReorg(func(depth uint32) {
				metrics.ReorgDepth.Observe(float64(depth))
				log.CORD.Warnf("reorg disconnected %d blocks", depth)
			})

			if cfg.Metrics.Enable {
				go func() {
					if err := metrics.Serve(cfg.Metrics.Listen); err != nil {
						log.CORD.Errorf("metrics server: %v", err)
					}
				}()
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.CORD.Infof("starting index coordinator for chain %s", params.Name)
			err = cd.Run(ctx)
			if err == context.Canceled || err == context.DeadlineExceeded {
				log.CORD.Infof("index coordinator stopped: %v", err)
				return nil
			}
			return err
		},
	}
}

func findCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <serial>",
		Short: "Print the satpoint currently holding <serial>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var serial uint64
			if _, err := fmt.Sscanf(args[0], "%d", &serial); err != nil {
				return usageError{fmt.Errorf("invalid serial %q", args[0])}
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			r := query.New(store, nil)
			sp, found, err := r.SatpointOf(serial)
			if err != nil {
				return err
			}
			if !found {
				fmt.Println("not found")
				return nil
			}
			fmt.Printf("%s:%d\n", sp.Outpoint, sp.Offset)
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <txid>:<index>",
		Short: "Print the ranges held by <outpoint>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := parseOutpoint(args[0])
			if err != nil {
				return usageError{err}
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			r := query.New(store, nil)
			ranges, ok, err := r.OutputRanges(op)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("not found")
				return nil
			}
			for _, rg := range ranges {
				fmt.Println(rg)
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print indexed height and node tip",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			src, err := dialNode(cfg)
			if err != nil {
				return err
			}
			defer src.Close()

			r := query.New(store, src)
			st, err := r.Status()
			if err != nil {
				return err
			}
			if st.IndexedHeightKnown {
				fmt.Printf("indexed_height: %d\n", st.IndexedHeight)
			} else {
				fmt.Println("indexed_height: none")
			}
			fmt.Printf("chain_tip_height_from_node: %d\n", st.ChainTipFromNode)
			return nil
		},
	}
}

func parseOutpoint(s string) (core.OutPoint, error) {
	i := len(s) - 1
	for i >= 0 && s[i] != ':' {
		i--
	}
	if i <= 0 {
		return core.OutPoint{}, fmt.Errorf("malformed outpoint %q, want <txid>:<index>", s)
	}
	hash, err := chainhash.NewHashFromStr(s[:i])
	if err != nil {
		return core.OutPoint{}, fmt.Errorf("malformed txid in %q: %w", s, err)
	}
	var index uint32
	if _, err := fmt.Sscanf(s[i+1:], "%d", &index); err != nil {
		return core.OutPoint{}, fmt.Errorf("malformed output index in %q: %w", s, err)
	}
	return core.OutPoint{Hash: *hash, Index: index}, nil
}
