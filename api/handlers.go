package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/parkledger"
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/instruction"
	"github.com/xraph/parkledger/receipt"
)

// maxListLimit caps page sizes on list endpoints.
const maxListLimit = 500

type createTenantRequest struct {
	Admin address.Address `json:"admin"`
	Name  string          `json:"name"`
}

type openEntryRequest struct {
	User  address.Address `json:"user"`
	Plate string          `json:"plate"`
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type exitRequest struct {
	FeeRecipient address.Address `json:"fee_recipient"`
}

type balanceResponse struct {
	Address address.Address `json:"address"`
	Balance uint64          `json:"balance"`
}

// healthz reports store connectivity.
// GET /healthz
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ──────────────────────────────────────────────────
// Tenants
// ──────────────────────────────────────────────────

// POST /tenants
func (s *Server) createTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if !s.decode(w, r, &req) {
		return
	}
	t, err := s.ledger.CreateTenant(r.Context(), req.Admin, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GET /tenants/{admin}
func (s *Server) lookupTenant(w http.ResponseWriter, r *http.Request) {
	admin, ok := pathAddress(w, r, "admin")
	if !ok {
		return
	}
	t, err := s.ledger.LookupTenant(r.Context(), admin)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ──────────────────────────────────────────────────
// Entries
// ──────────────────────────────────────────────────

// POST /tenants/{tenant}/entries
func (s *Server) openEntry(w http.ResponseWriter, r *http.Request) {
	tenantAddr, ok := pathAddress(w, r, "tenant")
	if !ok {
		return
	}
	var req openEntryRequest
	if !s.decode(w, r, &req) {
		return
	}
	e, err := s.ledger.OpenEntry(r.Context(), tenantAddr, req.User, req.Plate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// GET /tenants/{tenant}/entries?limit=&offset=
func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	tenantAddr, ok := pathAddress(w, r, "tenant")
	if !ok {
		return
	}
	limit, offset, ok := paging(w, r)
	if !ok {
		return
	}
	entries, err := s.ledger.ListEntries(r.Context(), tenantAddr, parkledger.ListOpts{Limit: limit, Offset: offset})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /tenants/{tenant}/entries/{user}
func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	tenantAddr, user, ok := entryPath(w, r)
	if !ok {
		return
	}
	e, err := s.ledger.GetEntry(r.Context(), tenantAddr, user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// POST /tenants/{tenant}/entries/{user}/deposit
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	tenantAddr, user, ok := entryPath(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	e, err := s.ledger.Deposit(r.Context(), tenantAddr, user, req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// POST /tenants/{tenant}/entries/{user}/withdraw
func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	tenantAddr, user, ok := entryPath(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	e, err := s.ledger.Withdraw(r.Context(), tenantAddr, user, req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// POST /tenants/{tenant}/entries/{user}/sessions/start
func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	tenantAddr, user, ok := entryPath(w, r)
	if !ok {
		return
	}
	e, err := s.ledger.StartSession(r.Context(), tenantAddr, user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// POST /tenants/{tenant}/entries/{user}/sessions/exit
func (s *Server) exitSession(w http.ResponseWriter, r *http.Request) {
	tenantAddr, user, ok := entryPath(w, r)
	if !ok {
		return
	}
	var req exitRequest
	if !s.decode(w, r, &req) {
		return
	}
	st, err := s.ledger.ExitSession(r.Context(), tenantAddr, user, req.FeeRecipient)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GET /tenants/{tenant}/entries/{user}/receipts?op=&limit=&offset=
func (s *Server) listReceipts(w http.ResponseWriter, r *http.Request) {
	tenantAddr, user, ok := entryPath(w, r)
	if !ok {
		return
	}
	limit, offset, ok := paging(w, r)
	if !ok {
		return
	}
	e, err := s.ledger.GetEntry(r.Context(), tenantAddr, user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rs, err := s.ledger.ListReceipts(r.Context(), e.Address, receipt.ListOpts{
		Op:     receipt.Op(r.URL.Query().Get("op")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// ──────────────────────────────────────────────────
// Instructions and accounts
// ──────────────────────────────────────────────────

// POST /instructions
func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	var ix instruction.Instruction
	if !s.decode(w, r, &ix) {
		return
	}
	res, err := s.ledger.Execute(r.Context(), ix)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /accounts/{address}
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	a, err := s.ledger.Account(r.Context(), addr)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// POST /accounts/{address}/credit
func (s *Server) credit(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	balance, err := s.ledger.Credit(r.Context(), addr, req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: addr, Balance: balance})
}

// ──────────────────────────────────────────────────
// Request helpers
// ──────────────────────────────────────────────────

func pathAddress(w http.ResponseWriter, r *http.Request, param string) (address.Address, bool) {
	a, err := address.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidAddress", param+": "+err.Error())
		return address.Address{}, false
	}
	return a, true
}

func entryPath(w http.ResponseWriter, r *http.Request) (address.Address, address.Address, bool) {
	tenantAddr, ok := pathAddress(w, r, "tenant")
	if !ok {
		return address.Address{}, address.Address{}, false
	}
	user, ok := pathAddress(w, r, "user")
	if !ok {
		return address.Address{}, address.Address{}, false
	}
	return tenantAddr, user, true
}

func paging(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	var err error
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "InvalidQuery", "limit must be a non-negative integer")
			return 0, 0, false
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "InvalidQuery", "offset must be a non-negative integer")
			return 0, 0, false
		}
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, offset, true
}

// fail writes err with the status its kind maps to.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := parkledger.Code(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", code,
			"error", err,
		)
	}

	msg := err.Error()
	var opErr *parkledger.OperationError
	if errors.As(err, &opErr) && code == "Internal" {
		msg = opErr.Op + ": internal error"
	}
	writeError(w, status, code, msg)
}
