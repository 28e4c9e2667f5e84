package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Numeric handles Polymarket numbers that may arrive as strings or numbers.
type Numeric float64

func (n *Numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || strings.EqualFold(string(data), "null") {
		*n = 0
		return nil
	}

	// Handle quoted numbers.
	if data[0] == '"' && data[len(data)-1] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = Numeric(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Numeric(f)
	return nil
}

func (n Numeric) Float64() float64 {
	return float64(n)
}

// DataTrade represents a trade from the data API.
type DataTrade struct {
	ProxyWallet     string  `json:"proxyWallet"`
	Side            string  `json:"side"`
	Asset           string  `json:"asset"`
	ConditionID     string  `json:"conditionId"`
	Size            Numeric `json:"size"`
	Price           Numeric `json:"price"`
	Timestamp       int64   `json:"timestamp"`
	Title           string  `json:"title"`
	Slug            string  `json:"slug"`
	EventSlug       string  `json:"eventSlug"`
	Outcome         string  `json:"outcome"`
	Name            string  `json:"name"`
	Pseudonym       string  `json:"pseudonym"`
	ProfileImage    string  `json:"profileImage"`
	TransactionHash string  `json:"transactionHash"`
}

// OpenPosition represents an open position (current holdings) for a user.
type OpenPosition struct {
	ProxyWallet  string  `json:"proxyWallet"`
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	Size         Numeric `json:"size"`
	AvgPrice     Numeric `json:"avgPrice"`
	CurPrice     Numeric `json:"curPrice"`
	InitialValue Numeric `json:"initialValue"`
	CurrentValue Numeric `json:"currentValue"`
	CashPNL      Numeric `json:"cashPnl"`
	PercentPNL   Numeric `json:"percentPnl"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	EventSlug    string  `json:"eventSlug"`
	Outcome      string  `json:"outcome"`
}

// ClosedPosition represents a realized position for a user.
type ClosedPosition struct {
	ProxyWallet  string  `json:"proxyWallet"`
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	Size         Numeric `json:"size"`
	AvgPrice     Numeric `json:"avgPrice"`
	CurPrice     Numeric `json:"curPrice"`
	InitialValue Numeric `json:"initialValue"`
	CurrentValue Numeric `json:"currentValue"`
	CashPNL      Numeric `json:"cashPnl"`
	PercentPNL   Numeric `json:"percentPnl"`
	RealizedPNL  Numeric `json:"realizedPnl"`
	Timestamp    int64   `json:"timestamp"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	Outcome      string  `json:"outcome"`
}

// PortfolioValue is the response shape of the /value endpoint.
type PortfolioValue struct {
	User  string  `json:"user"`
	Value Numeric `json:"value"`
}

// LeaderboardEntry represents one row of the ranked leaderboard.
type LeaderboardEntry struct {
	ProxyWallet  string  `json:"proxyWallet"`
	UserName     string  `json:"userName"`
	ProfileImage string  `json:"profileImage"`
	Rank         Numeric `json:"rank"`
	PNL          Numeric `json:"pnl"`
	Vol          Numeric `json:"vol"`
}

// GammaMarket represents a market returned by the gamma API.
type GammaMarket struct {
	ID          string  `json:"id"`
	Question    string  `json:"question"`
	ConditionID string  `json:"conditionId"`
	Slug        string  `json:"slug"`
	Category    string  `json:"category"`
	Volume      Numeric `json:"volumeNum"`
	Volume24Hr  Numeric `json:"volume24hr"`
	Liquidity   Numeric `json:"liquidityNum"`
	Active      bool    `json:"active"`
	Closed      bool    `json:"closed"`
}

// MarketHolder is one entry of a market's top-trader listing.
type MarketHolder struct {
	ProxyWallet  string  `json:"proxyWallet"`
	UserName     string  `json:"userName"`
	ProfileImage string  `json:"profileImage"`
	PNL          Numeric `json:"pnl"`
	Vol          Numeric `json:"vol"`
	Amount       Numeric `json:"amount"`
}

// TimePeriod selects the leaderboard aggregation window.
type TimePeriod string

const (
	PeriodAll   TimePeriod = "ALL"
	PeriodMonth TimePeriod = "MONTH"
	PeriodWeek  TimePeriod = "WEEK"
	PeriodDay   TimePeriod = "DAY"
)

// LeaderboardCategory selects the leaderboard market category.
type LeaderboardCategory string

const (
	CategoryOverall  LeaderboardCategory = "OVERALL"
	CategoryPolitics LeaderboardCategory = "POLITICS"
	CategorySports   LeaderboardCategory = "SPORTS"
	CategoryCrypto   LeaderboardCategory = "CRYPTO"
	CategoryCulture  LeaderboardCategory = "CULTURE"
	CategoryFinance  LeaderboardCategory = "FINANCE"
)
