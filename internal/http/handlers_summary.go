package http

import (
	"net/http"

	"dotproduct/internal/core"
)

type categorySummaryResponse struct {
	CategorySummary []core.CategoryTotal `json:"category_summary"`
}

type budgetStatusResponse struct {
	BudgetStatus []core.BudgetStatus `json:"budget_status"`
}

func (s *Server) handleFinancialSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.finance.FinancialSummary(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(summary).Write(w)
}

func (s *Server) handleCategorySummary(w http.ResponseWriter, r *http.Request) {
	groups, err := s.finance.CategorySummary(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(categorySummaryResponse{CategorySummary: nonNil(groups)}).Write(w)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.finance.BudgetStatus(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(budgetStatusResponse{BudgetStatus: nonNil(statuses)}).Write(w)
}
