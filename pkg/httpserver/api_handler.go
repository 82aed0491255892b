package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/clearway/settle/internal/ledger"
	"github.com/clearway/settle/internal/pool"
	"github.com/clearway/settle/internal/settlement"
	"github.com/clearway/settle/internal/splitconfig"
	"github.com/clearway/settle/pkg/cache"
	"github.com/clearway/settle/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// APIHandler serves read-only engine state over HTTP. Hot lookups go
// through a short-TTL cache so API polling does not contend with the
// settlement path for locks.
type APIHandler struct {
	book       *ledger.Book
	registry   *splitconfig.Registry
	settlement *settlement.Ledger
	pools      *pool.Manager
	cache      cache.Cache
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewAPIHandler creates a handler over the engine's read surfaces.
func NewAPIHandler(cfg *Config) *APIHandler {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &APIHandler{
		book:       cfg.Book,
		registry:   cfg.Registry,
		settlement: cfg.Settlement,
		pools:      cfg.Pools,
		cache:      cfg.Cache,
		cacheTTL:   ttl,
		logger:     cfg.Logger,
	}
}

// OrderResponse is the order lifecycle view.
type OrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// SplitConfigResponse is the per-order split record view.
type SplitConfigResponse struct {
	OrderID         string `json:"order_id"`
	MerchantAccount string `json:"merchant_account"`
	MerchantAmount  int64  `json:"merchant_amount"`
	ReferrerAccount string `json:"referrer_account,omitempty"`
	ReferralFee     int64  `json:"referral_fee"`
	ExecutorAccount string `json:"executor_account,omitempty"`
	ExecutionFee    int64  `json:"execution_fee"`
	PlatformFee     int64  `json:"platform_fee"`
	OffRampFee      int64  `json:"off_ramp_fee"`
	Total           int64  `json:"total"`
	Token           string `json:"token"`
	Disputed        bool   `json:"disputed"`
	ScannedSource   bool   `json:"scanned_source"`
	RequiresProof   bool   `json:"requires_proof"`
	ProofVerified   bool   `json:"proof_verified"`
}

// MilestoneResponse is the milestone view inside a pool.
type MilestoneResponse struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Amount       int64                 `json:"amount"`
	Status       string                `json:"status"`
	Deadline     time.Time             `json:"deadline"`
	ProofLink    string                `json:"proof_link,omitempty"`
	RejectReason string                `json:"reject_reason,omitempty"`
	Participants []ParticipantResponse `json:"participants"`
	Gates        []GateResponse        `json:"gates,omitempty"`
}

// ParticipantResponse is one revenue-share member.
type ParticipantResponse struct {
	Account  string `json:"account"`
	ShareBPS int64  `json:"share_bps"`
}

// GateResponse is one quality gate's state.
type GateResponse struct {
	Index    int    `json:"index"`
	Label    string `json:"label"`
	Passed   bool   `json:"passed"`
	PassedBy string `json:"passed_by,omitempty"`
}

// PoolResponse is the pool view.
type PoolResponse struct {
	ID          string              `json:"id"`
	Owner       string              `json:"owner"`
	Name        string              `json:"name"`
	TotalBudget int64               `json:"total_budget"`
	Funded      int64               `json:"funded"`
	Status      string              `json:"status"`
	Token       string              `json:"token"`
	StartDate   time.Time           `json:"start_date"`
	EndDate     time.Time           `json:"end_date"`
	Milestones  []MilestoneResponse `json:"milestones"`
}

// BalanceResponse is one (account, token) balance.
type BalanceResponse struct {
	Account string `json:"account"`
	Token   string `json:"token"`
	Amount  int64  `json:"amount"`
}

// ErrorResponse is the JSON error envelope. Code carries the engine
// reason code when the failure came from the engine.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HandleOrder handles GET /api/orders/{orderID}.
func (h *APIHandler) HandleOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	key := "order:" + orderID
	if cached, found := h.cached(key); found {
		h.writeJSON(w, http.StatusOK, cached)
		return
	}

	order, err := h.settlement.GetOrder(orderID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	resp := OrderResponse{OrderID: order.OrderID, Status: string(order.Status)}
	h.store(key, resp)
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleSplitConfig handles GET /api/orders/{orderID}/config.
func (h *APIHandler) HandleSplitConfig(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	cfg, err := h.registry.Get(orderID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, SplitConfigResponse{
		OrderID:         cfg.OrderID,
		MerchantAccount: string(cfg.MerchantAccount),
		MerchantAmount:  int64(cfg.MerchantAmount),
		ReferrerAccount: string(cfg.ReferrerAccount),
		ReferralFee:     int64(cfg.ReferralFee),
		ExecutorAccount: string(cfg.ExecutorAccount),
		ExecutionFee:    int64(cfg.ExecutionFee),
		PlatformFee:     int64(cfg.PlatformFee),
		OffRampFee:      int64(cfg.OffRampFee),
		Total:           int64(cfg.Total()),
		Token:           string(cfg.Token),
		Disputed:        cfg.Disputed,
		ScannedSource:   cfg.ScannedSource,
		RequiresProof:   cfg.RequiresProof,
		ProofVerified:   cfg.ProofVerified,
	})
}

// HandlePool handles GET /api/pools/{poolID}.
func (h *APIHandler) HandlePool(w http.ResponseWriter, r *http.Request) {
	poolID := chi.URLParam(r, "poolID")

	key := "pool:" + poolID
	if cached, found := h.cached(key); found {
		h.writeJSON(w, http.StatusOK, cached)
		return
	}

	p, err := h.pools.GetPool(poolID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	resp := poolResponse(p)
	h.store(key, resp)
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleMilestone handles GET /api/pools/{poolID}/milestones/{milestoneID}.
func (h *APIHandler) HandleMilestone(w http.ResponseWriter, r *http.Request) {
	poolID := chi.URLParam(r, "poolID")
	milestoneID := chi.URLParam(r, "milestoneID")

	ms, err := h.pools.GetMilestone(poolID, milestoneID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, milestoneResponse(ms))
}

// HandleBalance handles GET /api/balance?account=<id>&token=<token>.
func (h *APIHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	token := r.URL.Query().Get("token")
	if account == "" || token == "" {
		h.writeError(w, "missing required query parameters: account, token", http.StatusBadRequest)
		return
	}

	amount := h.book.Balance(types.AccountID(account), types.Token(token))
	h.writeJSON(w, http.StatusOK, BalanceResponse{
		Account: account,
		Token:   token,
		Amount:  int64(amount),
	})
}

// HandlePending handles GET /api/pending?account=<id>&token=<token>,
// returning the commission recorded but not yet distributed.
func (h *APIHandler) HandlePending(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	token := r.URL.Query().Get("token")
	if account == "" || token == "" {
		h.writeError(w, "missing required query parameters: account, token", http.StatusBadRequest)
		return
	}

	amount := h.settlement.PendingBalance(types.AccountID(account), types.Token(token))
	h.writeJSON(w, http.StatusOK, BalanceResponse{
		Account: account,
		Token:   token,
		Amount:  int64(amount),
	})
}

func poolResponse(p *pool.Pool) PoolResponse {
	milestones := make([]MilestoneResponse, 0, len(p.Milestones))
	for _, ms := range p.Milestones {
		milestones = append(milestones, milestoneResponse(ms))
	}
	return PoolResponse{
		ID:          p.ID,
		Owner:       string(p.Owner),
		Name:        p.Name,
		TotalBudget: int64(p.TotalBudget),
		Funded:      int64(p.Funded),
		Status:      string(p.Status),
		Token:       string(p.Token),
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Milestones:  milestones,
	}
}

func milestoneResponse(ms *pool.Milestone) MilestoneResponse {
	participants := make([]ParticipantResponse, 0, len(ms.Participants))
	for _, p := range ms.Participants {
		participants = append(participants, ParticipantResponse{
			Account:  string(p.Account),
			ShareBPS: int64(p.ShareBPS),
		})
	}
	gates := make([]GateResponse, 0, len(ms.Gates))
	for _, g := range ms.Gates {
		gates = append(gates, GateResponse{
			Index:    g.Index,
			Label:    g.Label,
			Passed:   g.Passed,
			PassedBy: string(g.PassedBy),
		})
	}
	return MilestoneResponse{
		ID:           ms.ID,
		Title:        ms.Title,
		Amount:       int64(ms.Amount),
		Status:       string(ms.Status),
		Deadline:     ms.Deadline,
		ProofLink:    ms.ProofLink,
		RejectReason: ms.RejectReason,
		Participants: participants,
		Gates:        gates,
	}
}

func (h *APIHandler) cached(key string) (any, bool) {
	if h.cache == nil {
		return nil, false
	}
	return h.cache.Get(key)
}

func (h *APIHandler) store(key string, value any) {
	if h.cache == nil {
		return
	}
	h.cache.Set(key, value, h.cacheTTL)
}

// writeEngineError maps engine reason codes onto HTTP status codes.
func (h *APIHandler) writeEngineError(w http.ResponseWriter, err error) {
	var engineErr *types.EngineError
	if !errors.As(err, &engineErr) {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusBadRequest
	switch engineErr.Code {
	case types.ErrConfigNotFound, types.ErrPoolNotFound, types.ErrMilestoneNotFound, types.ErrOrderNotReady:
		status = http.StatusNotFound
	case types.ErrNotAuthorized:
		status = http.StatusForbidden
	case types.ErrSystemPaused:
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encodeErr := json.NewEncoder(w).Encode(ErrorResponse{Error: engineErr.Message, Code: engineErr.Code})
	if encodeErr != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(encodeErr))
	}
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(value)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	err := json.NewEncoder(w).Encode(ErrorResponse{Error: message})
	if err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
