package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Server struct {
	ListenAddr     string
	AllowedOrigins []string
}

type Storage struct {
	DBPath string
}

type Exchange struct {
	Owner          string
	Exchange       string // spender account token allowances must be granted to
	FeeCollector   string
	FeeRateBps     int64
	TradingEnabled bool
	// RouteFees transfers each fee buyer -> collector at settlement time
	// instead of only accruing it.
	RouteFees bool
}

type Token struct {
	// Backend selects the settlement ledger: "bank" (in-process) or
	// "erc20" (on-chain via JSON-RPC).
	Backend   string
	RPCURL    string
	SignerKey string // hex private key for the erc20 backend's transactor
	ChainID   int64
}

type Config struct {
	Server   Server
	Storage  Storage
	Exchange Exchange
	Token    Token
	LogFile  string
}

func Default() Config {
	return Config{
		Server: Server{
			ListenAddr:     ":8080",
			AllowedOrigins: []string{"*"},
		},
		Storage: Storage{
			DBPath: "data/tokendex",
		},
		Exchange: Exchange{
			FeeRateBps:     0,
			TradingEnabled: true,
			RouteFees:      false,
		},
		Token: Token{
			Backend: "bank",
			ChainID: 1,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Server.ListenAddr = getEnv("LISTEN_ADDR", cfg.Server.ListenAddr)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	cfg.Storage.DBPath = getEnv("DB_PATH", cfg.Storage.DBPath)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)

	cfg.Exchange.Owner = getEnv("OWNER_ADDRESS", cfg.Exchange.Owner)
	cfg.Exchange.Exchange = getEnv("EXCHANGE_ADDRESS", cfg.Exchange.Exchange)
	cfg.Exchange.FeeCollector = getEnv("FEE_COLLECTOR", cfg.Exchange.FeeCollector)
	if bps := os.Getenv("FEE_RATE_BPS"); bps != "" {
		if v, err := strconv.ParseInt(bps, 10, 64); err == nil {
			cfg.Exchange.FeeRateBps = v
		}
	}
	if enabled := os.Getenv("TRADING_ENABLED"); enabled != "" {
		cfg.Exchange.TradingEnabled = enabled == "true"
	}
	if route := os.Getenv("ROUTE_FEES"); route != "" {
		cfg.Exchange.RouteFees = route == "true"
	}

	cfg.Token.Backend = getEnv("TOKEN_BACKEND", cfg.Token.Backend)
	cfg.Token.RPCURL = getEnv("TOKEN_RPC_URL", cfg.Token.RPCURL)
	cfg.Token.SignerKey = getEnv("TOKEN_SIGNER_KEY", cfg.Token.SignerKey)
	if chain := os.Getenv("TOKEN_CHAIN_ID"); chain != "" {
		if v, err := strconv.ParseInt(chain, 10, 64); err == nil {
			cfg.Token.ChainID = v
		}
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
