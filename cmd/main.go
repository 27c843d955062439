package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nft-escrow-market/api"
	"nft-escrow-market/chain"
	"nft-escrow-market/config"
	"nft-escrow-market/core"
	"nft-escrow-market/core/market"
	"nft-escrow-market/core/model"
	"nft-escrow-market/core/registry"
	"nft-escrow-market/core/sim"
	"nft-escrow-market/core/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.Fatalf("marketplace stopped: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	b := sim.NewBackend()
	deployer := cfg.DeployerAddress()
	nft := registry.Deploy(b, deployer, cfg.CollectionName, cfg.Symbol)
	m := market.Deploy(b, deployer, cfg.FeePolicy())
	logrus.WithFields(logrus.Fields{
		"market":      m.Address().Hex(),
		"collection":  nft.Address().Hex(),
		"fee_account": m.FeeAccount().Hex(),
		"fee_percent": m.FeePercent(),
	}).Info("marketplace deployed")

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	var src core.BlockSource = b
	indexed := m.Address()
	if cfg.Remote() {
		bc, err := chain.NewBlockchainClient(ctx, cfg.ChainURL)
		if err != nil {
			return err
		}
		defer bc.Close()
		src = bc
		indexed = common.HexToAddress(cfg.RemoteMarket)
		describeRemoteMarket(ctx, indexed, bc)
	}

	idx, err := core.NewIndexer(ctx, indexed, st, cfg.StartBlock)
	if err != nil {
		return err
	}

	srv := api.NewServer(api.Options{
		Backend:     b,
		Market:      market.NewSession(b, m),
		Collections: []*registry.NFT{nft},
		Indexer:     idx,
		Faucet:      cfg.Faucet,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return startChainFetcher(gctx, idx, src, cfg.PollInterval)
	})
	g.Go(func() error {
		logrus.Infof("listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logrus.Info("marketplace shut down")
	return nil
}

func openStore(cfg config.Config) (store.Store, error) {
	if cfg.DatabaseDSN == "" {
		return store.NewMemory(), nil
	}
	return store.OpenPostgres(cfg.DatabaseDSN)
}

func describeRemoteMarket(ctx context.Context, market common.Address, bc *chain.BlockchainClient) {
	summary, err := chain.DescribeMarket(ctx, market, bc.Caller())
	if err != nil {
		logrus.Warnf("remote market %s: %v", market.Hex(), err)
		return
	}
	logrus.Infof("remote market has %d items, fee %d%%", summary.ItemCount, summary.FeePercent)
	if item := summary.Latest; item != nil {
		logrus.WithFields(logrus.Fields{
			"item":   item.ItemId,
			"price":  model.FormatEther(item.Price),
			"sold":   item.Sold,
			"holder": summary.Holder.Hex(),
		}).Info("latest remote listing")
	}
}

// startChainFetcher keeps the indexer caught up with src until ctx is done.
func startChainFetcher(ctx context.Context, idx *core.Indexer, src core.BlockSource, interval time.Duration) error {
	for {
		applied, err := idx.Sync(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logrus.Errorf("HandleNewBlock after %d err: %v", idx.LatestBlockNumber(), err)
		} else if applied > 0 {
			logrus.Infof("indexed %d blocks, latest %d", applied, idx.LatestBlockNumber())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
