// Package api exposes the exchange engine over REST plus a WebSocket event
// stream. Mutating endpoints are signed: the request carries a signature
// over a canonical digest and the recovered address is the caller the
// engine sees.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/kyuho-lee/tokendex/pkg/crypto"
	"github.com/kyuho-lee/tokendex/pkg/engine"
)

// Server handles REST and WebSocket connections for one engine.
type Server struct {
	eng    *engine.Engine
	router *mux.Router
	hub    *Hub
	log    *zap.Logger
}

// NewServer creates the server and its event hub. Wire the hub into the
// engine with engine.WithSink(srv.Hub()).
func NewServer(eng *engine.Engine, log *zap.Logger) *Server {
	s := &Server{
		eng:    eng,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()
	return s
}

// Hub returns the WebSocket event hub, usable as the engine's EventSink.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the routed handler without CORS, for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Trading
	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	// Queries
	api.HandleFunc("/orders/active", s.handleActiveOrders).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/trades/{id:[0-9]+}", s.handleGetTrade).Methods("GET")
	api.HandleFunc("/accounts/{address}/orders", s.handleUserOrders).Methods("GET")
	api.HandleFunc("/accounts/{address}/trades", s.handleUserTrades).Methods("GET")
	api.HandleFunc("/whitelist", s.handleWhitelist).Methods("GET")
	api.HandleFunc("/config", s.handleConfig).Methods("GET")

	// Admin (owner-signed; the engine enforces ownership)
	api.HandleFunc("/admin/whitelist", s.handleAdminWhitelist).Methods("POST")
	api.HandleFunc("/admin/whitelist/remove", s.handleAdminRemoveWhitelist).Methods("POST")
	api.HandleFunc("/admin/trading", s.handleAdminTrading).Methods("POST")
	api.HandleFunc("/admin/fee-rate", s.handleAdminFeeRate).Methods("POST")
	api.HandleFunc("/admin/fee-collector", s.handleAdminFeeCollector).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves HTTP with CORS until the listener fails.
func (s *Server) Start(addr string, origins []string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	s.log.Info("api_listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// Trading handlers
// ==============================

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if !common.IsHexAddress(req.Asset) {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid asset address")
		return
	}
	asset := common.HexToAddress(req.Asset)

	digest := crypto.OrderDigest(asset, req.Amount, req.Price, req.IsBuy, req.Nonce)
	maker, ok := s.recoverCaller(w, digest, req.Signature)
	if !ok {
		return
	}

	side := engine.Sell
	if req.IsBuy {
		side = engine.Buy
	}
	id, err := s.eng.CreateOrder(r.Context(), maker, asset, req.Amount, req.Price, side)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, CreateOrderResponse{OrderID: id})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	digest := crypto.CancelDigest(req.OrderID, req.Nonce)
	caller, ok := s.recoverCaller(w, digest, req.Signature)
	if !ok {
		return
	}

	if err := s.eng.CancelOrder(r.Context(), caller, req.OrderID); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"cancelled": true})
}

// ==============================
// Query handlers
// ==============================

func (s *Server) handleActiveOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !common.IsHexAddress(q.Get("asset")) {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid asset address")
		return
	}
	asset := common.HexToAddress(q.Get("asset"))

	side := engine.Sell
	if q.Get("side") == "buy" {
		side = engine.Buy
	}
	start, _ := strconv.Atoi(q.Get("start"))
	count, err := strconv.Atoi(q.Get("count"))
	if err != nil || count <= 0 {
		count = 100
	}

	orders := s.eng.ActiveOrders(asset, side, start, count)
	if orders == nil {
		orders = []engine.Order{}
	}
	respondJSON(w, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	ord, ok := s.eng.Order(id)
	if !ok {
		respondError(w, http.StatusNotFound, "order_not_found", "order does not exist")
		return
	}
	respondJSON(w, ord)
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	trade, ok := s.eng.Trade(id)
	if !ok {
		respondError(w, http.StatusNotFound, "trade_not_found", "trade does not exist")
		return
	}
	respondJSON(w, trade)
}

func (s *Server) handleUserOrders(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	resp := UserOrdersResponse{Address: addr.Hex(), Buys: []uint64{}, Sells: []uint64{}}
	side := r.URL.Query().Get("side")
	if side != "sell" {
		resp.Buys = emptyIfNil(s.eng.UserBuyOrders(addr))
	}
	if side != "buy" {
		resp.Sells = emptyIfNil(s.eng.UserSellOrders(addr))
	}
	respondJSON(w, resp)
}

func (s *Server) handleUserTrades(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	respondJSON(w, UserTradesResponse{
		Address: addr.Hex(),
		Trades:  emptyIfNil(s.eng.UserTrades(addr)),
	})
}

func (s *Server) handleWhitelist(w http.ResponseWriter, _ *http.Request) {
	assets := s.eng.Whitelist()
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.Hex()
	}
	respondJSON(w, out)
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, s.eng.Admin())
}

// ==============================
// Admin handlers
// ==============================

func (s *Server) handleAdminWhitelist(w http.ResponseWriter, r *http.Request) {
	var req WhitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !common.IsHexAddress(req.Asset) {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid request")
		return
	}
	asset := common.HexToAddress(req.Asset)

	caller, ok := s.recoverCaller(w, crypto.AdminDigest("whitelist", asset.Hex(), req.Nonce), req.Signature)
	if !ok {
		return
	}
	if err := s.eng.WhitelistToken(caller, asset); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"whitelisted": true})
}

func (s *Server) handleAdminRemoveWhitelist(w http.ResponseWriter, r *http.Request) {
	var req WhitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !common.IsHexAddress(req.Asset) {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid request")
		return
	}
	asset := common.HexToAddress(req.Asset)

	caller, ok := s.recoverCaller(w, crypto.AdminDigest("remove_whitelist", asset.Hex(), req.Nonce), req.Signature)
	if !ok {
		return
	}
	if err := s.eng.RemoveFromWhitelist(caller, asset); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"removed": true})
}

func (s *Server) handleAdminTrading(w http.ResponseWriter, r *http.Request) {
	var req TradingStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid request")
		return
	}
	caller, ok := s.recoverCaller(w, crypto.AdminDigest("trading", strconv.FormatBool(req.Enabled), req.Nonce), req.Signature)
	if !ok {
		return
	}
	if err := s.eng.SetTradingEnabled(caller, req.Enabled); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) handleAdminFeeRate(w http.ResponseWriter, r *http.Request) {
	var req FeeRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid request")
		return
	}
	caller, ok := s.recoverCaller(w, crypto.AdminDigest("fee_rate", strconv.FormatInt(req.Bps, 10), req.Nonce), req.Signature)
	if !ok {
		return
	}
	if err := s.eng.SetFeeRate(caller, req.Bps); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]int64{"feeRateBps": req.Bps})
}

func (s *Server) handleAdminFeeCollector(w http.ResponseWriter, r *http.Request) {
	var req FeeCollectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !common.IsHexAddress(req.Collector) {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid request")
		return
	}
	collector := common.HexToAddress(req.Collector)

	caller, ok := s.recoverCaller(w, crypto.AdminDigest("fee_collector", collector.Hex(), req.Nonce), req.Signature)
	if !ok {
		return
	}
	if err := s.eng.SetFeeCollector(caller, collector); err != nil {
		s.respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"feeCollector": collector.Hex()})
}

// ==============================
// WebSocket and health
// ==============================

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws_upgrade_failed", zap.Error(err))
		return
	}
	client := &Client{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, 64),
		remote: r.RemoteAddr,
		subs:   make(map[string]bool),
	}
	s.hub.register <- client
	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

// recoverCaller decodes the hex signature and recovers the signing address.
// On failure it writes the error response and returns ok=false.
func (s *Server) recoverCaller(w http.ResponseWriter, digest []byte, sigHex string) (common.Address, bool) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil || len(sig) != 65 {
		respondError(w, http.StatusUnauthorized, "invalid_signature", "signature must be 65 hex bytes")
		return common.Address{}, false
	}
	caller, err := crypto.RecoverAddress(digest, sig)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_signature", "signature recovery failed")
		return common.Address{}, false
	}
	return caller, true
}

func (s *Server) pathAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := mux.Vars(r)["address"]
	if !common.IsHexAddress(raw) {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid address")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// respondEngineError maps the engine's error taxonomy onto HTTP so clients
// can react to the specific condition.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, engine.ErrInvalidAmount):
		status, code = http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, engine.ErrInvalidPrice):
		status, code = http.StatusBadRequest, "invalid_price"
	case errors.Is(err, engine.ErrTradingDisabled):
		status, code = http.StatusConflict, "trading_disabled"
	case errors.Is(err, engine.ErrAssetNotWhitelisted):
		status, code = http.StatusConflict, "asset_not_whitelisted"
	case errors.Is(err, engine.ErrNotOwner):
		status, code = http.StatusForbidden, "not_owner"
	case errors.Is(err, engine.ErrNotOrderMaker):
		status, code = http.StatusForbidden, "not_order_maker"
	case errors.Is(err, engine.ErrOrderNotFound):
		status, code = http.StatusNotFound, "order_not_found"
	case errors.Is(err, engine.ErrOrderNotActive):
		status, code = http.StatusConflict, "order_not_active"
	case errors.Is(err, engine.ErrAlreadyWhitelisted):
		status, code = http.StatusConflict, "already_whitelisted"
	case errors.Is(err, engine.ErrNotWhitelisted):
		status, code = http.StatusConflict, "not_whitelisted"
	case errors.Is(err, engine.ErrFeeTooHigh):
		status, code = http.StatusBadRequest, "fee_too_high"
	case errors.Is(err, engine.ErrInvalidFeeCollector):
		status, code = http.StatusBadRequest, "invalid_fee_collector"
	case errors.Is(err, engine.ErrInsufficientBalance):
		status, code = http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, engine.ErrInsufficientAllowance):
		status, code = http.StatusUnprocessableEntity, "insufficient_allowance"
	case errors.Is(err, engine.ErrTransferFailed):
		status, code = http.StatusBadGateway, "transfer_failed"
	case errors.Is(err, engine.ErrReentrantCall):
		status, code = http.StatusServiceUnavailable, "busy"
	}
	respondError(w, status, code, err.Error())
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Code: code})
}

func emptyIfNil(ids []uint64) []uint64 {
	if ids == nil {
		return []uint64{}
	}
	return ids
}
