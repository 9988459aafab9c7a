package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/kyuho-lee/tokendex/params"
	"github.com/kyuho-lee/tokendex/pkg/api"
	"github.com/kyuho-lee/tokendex/pkg/crypto"
	"github.com/kyuho-lee/tokendex/pkg/engine"
	"github.com/kyuho-lee/tokendex/pkg/token"
	"github.com/kyuho-lee/tokendex/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "data/dexd.log"
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	if !common.IsHexAddress(cfg.Exchange.Owner) {
		sugar.Fatalw("invalid_owner_address", "value", cfg.Exchange.Owner)
	}
	if !common.IsHexAddress(cfg.Exchange.Exchange) {
		sugar.Fatalw("invalid_exchange_address", "value", cfg.Exchange.Exchange)
	}
	if !common.IsHexAddress(cfg.Exchange.FeeCollector) {
		sugar.Fatalw("invalid_fee_collector", "value", cfg.Exchange.FeeCollector)
	}
	exchangeAddr := common.HexToAddress(cfg.Exchange.Exchange)

	// ---- Settlement ledger ----
	var ledger token.Ledger
	switch cfg.Token.Backend {
	case "bank":
		ledger = token.NewBank(exchangeAddr)
		sugar.Info("token_backend_bank")
	case "erc20":
		client, err := ethclient.Dial(cfg.Token.RPCURL)
		if err != nil {
			sugar.Fatalw("rpc_dial_failed", "url", cfg.Token.RPCURL, "err", err)
		}
		signer, err := crypto.FromPrivateKeyHex(cfg.Token.SignerKey)
		if err != nil {
			sugar.Fatalw("signer_key_invalid", "err", err)
		}
		opts, err := bind.NewKeyedTransactorWithChainID(signer.PrivateKey(), big.NewInt(cfg.Token.ChainID))
		if err != nil {
			sugar.Fatalw("transactor_init_failed", "err", err)
		}
		ledger, err = token.NewERC20Ledger(client, opts)
		if err != nil {
			sugar.Fatalw("erc20_ledger_init_failed", "err", err)
		}
		sugar.Infow("token_backend_erc20",
			"rpc", cfg.Token.RPCURL,
			"transactor", signer.Address().Hex(),
			"chain_id", cfg.Token.ChainID)
	default:
		sugar.Fatalw("unknown_token_backend", "backend", cfg.Token.Backend)
	}

	// ---- Storage ----
	store, err := engine.OpenStore(cfg.Storage.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Storage.DBPath, "err", err)
	}
	defer store.Close()

	// ---- Engine + API ----
	engCfg := engine.Config{
		Owner:          common.HexToAddress(cfg.Exchange.Owner),
		Exchange:       exchangeAddr,
		FeeCollector:   common.HexToAddress(cfg.Exchange.FeeCollector),
		FeeRateBps:     cfg.Exchange.FeeRateBps,
		TradingEnabled: cfg.Exchange.TradingEnabled,
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithStore(store),
	}
	if cfg.Exchange.RouteFees {
		opts = append(opts, engine.WithFeePolicy(engine.CollectorTransfer{}))
		sugar.Info("fee_routing_enabled")
	}

	// The hub must exist before the engine so it can be the event sink.
	// Persisted state is replayed silently; only new events broadcast.
	var srv *api.Server
	eng, err := engine.New(engCfg, ledger, append(opts, engine.WithSink(engine.SinkFunc(func(ev engine.Event) {
		if srv != nil {
			srv.Hub().Publish(ev)
		}
	})))...)
	if err != nil {
		sugar.Fatalw("engine_init_failed", "err", err)
	}
	srv = api.NewServer(eng, logger)

	sugar.Infow("dexd_starting",
		"listen", cfg.Server.ListenAddr,
		"db", cfg.Storage.DBPath,
		"owner", cfg.Exchange.Owner,
		"fee_bps", cfg.Exchange.FeeRateBps,
		"trading_enabled", cfg.Exchange.TradingEnabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(cfg.Server.ListenAddr, cfg.Server.AllowedOrigins); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("dexd_shutdown")
}
