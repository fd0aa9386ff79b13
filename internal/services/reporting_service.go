package services

import (
	"context"
	"time"

	"round-lottery/internal/models"
	"round-lottery/internal/repository"

	"github.com/shopspring/decimal"
)

// AccountPnL is a player's result over all of their bets
type AccountPnL struct {
	AccountID     uint            `json:"account_id"`
	Bets          int64           `json:"bets"`
	TotalBet      int64           `json:"total_bet"`
	TotalWinnings int64           `json:"total_winnings"`
	NetPnl        int64           `json:"net_pnl"`
	WinRate       decimal.Decimal `json:"win_rate"`
}

// Reconciliation compares a balance with its ledger
type Reconciliation struct {
	AccountID uint  `json:"account_id"`
	Balance   int64 `json:"balance"`
	Credits   int64 `json:"credits"`
	Debits    int64 `json:"debits"`
	Expected  int64 `json:"expected"`
	Balanced  bool  `json:"balanced"`
}

// AgentReport is the house result on an agent's players and the commission it earns
type AgentReport struct {
	AgentID        uint            `json:"agent_id"`
	Username       string          `json:"username"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	TotalBet       int64           `json:"total_bet"`
	TotalWinnings  int64           `json:"total_winnings"`
	PlatformProfit int64           `json:"platform_profit"`
	CommissionDue  int64           `json:"commission_due"`
	CommissionPaid int64           `json:"commission_paid"`
}

type ReportingService struct {
	repo *repository.Repository
}

func NewReportingService(repo *repository.Repository) *ReportingService {
	return &ReportingService{repo: repo}
}

// CalculatePnL sums an account's stakes and winnings
func (s *ReportingService) CalculatePnL(ctx context.Context, accountID uint) (*AccountPnL, error) {
	totals, err := s.repo.SumBets(ctx, accountID)
	if err != nil {
		return nil, err
	}

	winRate := decimal.Zero
	if totals.Count > 0 {
		winRate = decimal.NewFromInt(totals.Won).Div(decimal.NewFromInt(totals.Count)).Round(4)
	}

	return &AccountPnL{
		AccountID:     accountID,
		Bets:          totals.Count,
		TotalBet:      totals.Staked,
		TotalWinnings: totals.Winnings,
		NetPnl:        totals.Winnings - totals.Staked,
		WinRate:       winRate,
	}, nil
}

// Reconcile checks that balance equals settled credits minus settled debits
func (s *ReportingService) Reconcile(ctx context.Context, accountID uint) (*Reconciliation, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	credits, debits, err := s.repo.LedgerTotals(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &Reconciliation{
		AccountID: accountID,
		Balance:   account.Balance,
		Credits:   credits,
		Debits:    debits,
		Expected:  credits - debits,
		Balanced:  account.Balance == credits-debits,
	}, nil
}

// AgentReports computes the commission position of every agent
func (s *ReportingService) AgentReports(ctx context.Context) ([]AgentReport, error) {
	agents, err := s.repo.ListAgents(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]AgentReport, 0, len(agents))
	for _, agent := range agents {
		report, err := s.agentReport(ctx, &agent)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

// AgentReport computes the commission position of one agent
func (s *ReportingService) AgentReport(ctx context.Context, agentID uint) (*AgentReport, error) {
	agent, err := s.repo.GetAccount(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent.Role != models.RoleAgent {
		return nil, ErrInvalidState
	}
	return s.agentReport(ctx, agent)
}

func (s *ReportingService) agentReport(ctx context.Context, agent *models.Account) (*AgentReport, error) {
	totals, err := s.repo.SumAgentBets(ctx, agent.ID)
	if err != nil {
		return nil, err
	}
	paid, err := s.repo.SumCompleted(ctx, agent.ID, models.TransactionCommission)
	if err != nil {
		return nil, err
	}

	profit := totals.Staked - totals.Winnings
	var due int64
	if profit > 0 {
		earned := decimal.NewFromInt(profit).Mul(agent.CommissionRate).Div(decimal.NewFromInt(100)).Floor().IntPart()
		if earned > paid {
			due = earned - paid
		}
	}

	return &AgentReport{
		AgentID:        agent.ID,
		Username:       agent.Username,
		CommissionRate: agent.CommissionRate,
		TotalBet:       totals.Staked,
		TotalWinnings:  totals.Winnings,
		PlatformProfit: profit,
		CommissionDue:  due,
		CommissionPaid: paid,
	}, nil
}

// PlatformStats aggregates the UTC day containing date
func (s *ReportingService) PlatformStats(ctx context.Context, date time.Time) (*repository.PlatformTotals, error) {
	from := startOfDay(date)
	return s.repo.GetPlatformTotals(ctx, from, from.AddDate(0, 0, 1))
}
