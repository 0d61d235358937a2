package http

import (
	"net/http"

	"hamyon/internal/core"
	"hamyon/internal/services"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	walletID, err := queryID(r.URL.Query(), "wallet")
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.listTransactions(w, r, walletID)
}

// listTransactions serves a filtered page: ?category=, ?type=, ?period= or
// ?from=/?to=, ?page=, ?page_size=.
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request, walletID int64) {
	q := r.URL.Query()
	categoryID, err := queryID(q, "category")
	if err != nil {
		writeError(w, r, err)
		return
	}
	from, to, err := ParseRange(q, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	page := ParsePageParams(q)

	items, total, err := s.ledger.ListTransactions(r.Context(), userID(r), core.TransactionFilter{
		WalletID:   walletID,
		CategoryID: categoryID,
		Type:       core.EntryType(q.Get("type")),
		From:       from,
		To:         to,
		Page:       page.Page,
		Limit:      page.PageSize,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newTransactionViews(items)).Page(page.Page, page.PageSize, total).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	in, err := transactionInput(p, services.TransactionInput{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.CreateTransaction(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(newTransactionView(t)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.GetTransaction(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newTransactionView(t)).Write(w)
}

// handleUpdateTransaction keeps fields the body does not mention.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	current, err := s.ledger.GetTransaction(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	base := services.TransactionInput{
		WalletID:    current.WalletID,
		Type:        current.Type,
		Amount:      current.Amount,
		Description: current.Description,
	}
	if current.CategoryID != nil {
		base.CategoryID = *current.CategoryID
	}
	in, err := transactionInput(p, base)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.UpdateTransaction(r.Context(), userID(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newTransactionView(t)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transactionInput overlays the fields present in the body on base. A new
// category name takes precedence over a category id.
func transactionInput(p *RequestBodyParser, base services.TransactionInput) (services.TransactionInput, error) {
	in := base
	if p.Has("wallet_id") {
		id, err := p.ID("wallet_id")
		if err != nil {
			return in, err
		}
		in.WalletID = id
	}
	if p.Has("type") {
		in.Type = core.EntryType(p.Get("type"))
	}
	if p.Has("amount") || base.Amount.Cents == 0 {
		amount, err := p.Amount("amount")
		if err != nil {
			return in, err
		}
		in.Amount = amount
	}
	if p.Has("description") {
		in.Description = p.Get("description")
	}
	if p.Has("category_id") {
		id, err := p.ID("category_id")
		if err != nil {
			return in, err
		}
		in.CategoryID = id
	}
	in.NewCategoryName = p.Get("new_category_name")
	return in, nil
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	walletID, err := queryID(q, "wallet")
	if err != nil {
		writeError(w, r, err)
		return
	}
	page := ParsePageParams(q)
	items, total, err := s.ledger.ListTransfers(r.Context(), userID(r), walletID, page.Page, page.PageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]transferView, 0, len(items))
	for _, t := range items {
		out = append(out, newTransferView(t))
	}
	NewJSONResponse().Data(out).Page(page.Page, page.PageSize, total).Write(w)
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	from, err := p.ID("from_wallet_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := p.ID("to_wallet_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := p.Amount("amount")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.CreateTransfer(r.Context(), userID(r), services.TransferInput{
		FromWalletID: from,
		ToWalletID:   to,
		Amount:       amount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(newTransferView(t)).Write(w)
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.GetTransfer(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(newTransferView(t)).Write(w)
}

func (s *Server) handleDeleteTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteTransfer(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
