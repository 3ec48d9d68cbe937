package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goomario/arweave/pkg/chunkstore"
	"github.com/goomario/arweave/pkg/config"
	"github.com/goomario/arweave/pkg/diskpool"
	"github.com/goomario/arweave/pkg/log"
	"github.com/goomario/arweave/pkg/peertransport"
	"github.com/goomario/arweave/pkg/proof"
	"github.com/goomario/arweave/pkg/statepersist"
	"github.com/goomario/arweave/pkg/syncengine"
)

const defaultDataChunkSize = 256 * 1024

func (c *command) initStartCmd() error {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the weave-syncd node",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			return c.runStart(cmd)
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return c.config.BindPFlags(cmd.Flags())
		},
	}

	cmd.Flags().String(optionNameDataDir, filepath.Join(c.homeDir, ".weave-syncd"), "data directory")
	cmd.Flags().String(optionNameListenAddr, ":1984", "HTTP peer-transport listen address")
	cmd.Flags().StringSlice(optionNamePeers, nil, "static peer base URLs to sync from, can be repeated")
	cmd.Flags().Uint64(optionNameStoreBlocksBehindCurrent, 50, "consensus-layer confirmation depth (TRACK_CONFIRMATIONS = 2x this)")
	cmd.Flags().String(optionNameVerbosity, "info", "log verbosity: none, error, warning, info, debug, all")

	c.root.AddCommand(cmd)
	return nil
}

func (c *command) runStart(cmd *cobra.Command) error {
	verbosity, err := log.ParseVerbosityLevel(c.config.GetString(optionNameVerbosity))
	if err != nil {
		return err
	}
	logger := log.New(cmd.OutOrStdout(), verbosity)

	dataDir := c.config.GetString(optionNameDataDir)
	idx, blobsStore, statePersistStore, closers, err := openStores(dataDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}()

	blobs := chunkstore.New(blobsStore)
	validator := proof.New(notImplementedMerkle{}, defaultDataChunkSize)
	persist := statepersist.New(statePersistStore)

	storeBlocksBehindCurrent := c.config.GetUint64(optionNameStoreBlocksBehindCurrent)
	cfg := config.Default(storeBlocksBehindCurrent)

	updater := &deferredUpdater{}
	dataRootIndexView := syncengine.NewDataRootIndexView(idx.DataRootIndex)
	diskPool := diskpool.New(idx.DiskPoolChunksIndex, idx.DiskPoolDataRoots, blobs, dataRootIndexView, validator, updater, cfg, logger)

	transportClient := peertransport.NewClient(30 * time.Second)
	discovery := newStaticDiscovery(c.config.GetStringSlice(optionNamePeers))

	engine := syncengine.New(idx, blobs, validator, transportClient, discovery, diskPool, persist, cfg, logger, rand.Float64, nil)
	updater.engine = engine

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Run(ctx)

	listenAddr := c.config.GetString(optionNameListenAddr)
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("peer transport listener: %w", err)
	}
	server := &http.Server{Handler: peertransport.NewServer(engine)}

	go func() {
		cmd.Println("peer transport address:", listener.Addr())
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error(err, "weave-syncd: peer transport server stopped")
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	sig := <-interrupt
	cmd.Println("received signal:", sig)

	done := make(chan struct{})
	go func() {
		defer close(done)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, "weave-syncd: peer transport server shutdown")
		}
		if err := engine.Close(); err != nil {
			logger.Error(err, "weave-syncd: engine shutdown")
		}
	}()

	select {
	case sig := <-interrupt:
		cmd.Println("received signal:", sig)
	case <-done:
	}
	return nil
}
