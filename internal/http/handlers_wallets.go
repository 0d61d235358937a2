package http

import (
	"net/http"

	"hamyon/internal/core"
	"hamyon/internal/services"
)

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.ledger.ListWallets(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newWalletViews(wallets)).Write(w)
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	balance, err := p.Balance("balance")
	if err != nil {
		writeError(w, r, err)
		return
	}
	wallet, err := s.ledger.CreateWallet(r.Context(), userID(r), services.WalletInput{
		Name:     p.Get("name"),
		Type:     core.WalletType(p.Get("type")),
		Currency: core.Currency(p.Get("currency")),
		Balance:  balance,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(newWalletView(wallet)).Write(w)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	wallet, err := s.ledger.GetWallet(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newWalletView(wallet)).Write(w)
}

// handleUpdateWallet keeps fields the body does not mention. A balance
// edit is booked as a correction.
func (s *Server) handleUpdateWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	current, err := s.ledger.GetWallet(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	balance, err := p.Balance("balance")
	if err != nil {
		writeError(w, r, err)
		return
	}

	in := services.WalletInput{
		Name:     current.Name,
		Type:     current.Type,
		Currency: current.Currency,
		Balance:  balance,
	}
	if p.Has("name") {
		in.Name = p.Get("name")
	}
	if p.Has("type") {
		in.Type = core.WalletType(p.Get("type"))
	}
	if p.Has("currency") {
		in.Currency = core.Currency(p.Get("currency"))
	}

	wallet, err := s.ledger.UpdateWallet(r.Context(), userID(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newWalletView(wallet)).Write(w)
}

func (s *Server) handleDeleteWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteWallet(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWalletTransactions lists one wallet's transactions with the same
// filters as /transactions.
func (s *Server) handleWalletTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.listTransactions(w, r, id)
}
