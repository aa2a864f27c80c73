package seed

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"
)

// Statement is one synthetic row of the account_statement table.
type Statement struct {
	Account     int64
	Date        time.Time
	Description string
	Type        string
	Channel     string
	Debit       float64
	Credit      float64
	Balance     float64
}

// Pairs renders the statement as column~value pairs for an insert mutation.
// A zero debit or credit is written as 0.00 so no pair is blank.
func (s Statement) Pairs() []string {
	return []string{
		"STATEMENT_FOR_ACC~" + strconv.FormatInt(s.Account, 10),
		"TRANSACTION_DATE~" + s.Date.Format("2006-01-02"),
		"DESCRIPTION~" + s.Description,
		"TRANSACTION_TYPE~" + s.Type,
		"CHANNEL~" + s.Channel,
		"DEBIT~" + money(s.Debit),
		"CREDIT~" + money(s.Credit),
		"BALANCE~" + money(s.Balance),
	}
}

type movement struct {
	description string
	kind        string
	channels    []string
	min, max    float64
	credit      bool
}

var movements = []movement{
	{"Salary credit", "TRANSFER", []string{"NEFT", "RTGS"}, 2500, 6000, true},
	{"Grocery store", "PURCHASE", []string{"POS", "UPI"}, 8, 160, false},
	{"Coffee shop", "PURCHASE", []string{"POS", "UPI"}, 2, 12, false},
	{"Electricity bill", "BILL_PAYMENT", []string{"NETBANKING", "UPI"}, 40, 180, false},
	{"Mobile recharge", "BILL_PAYMENT", []string{"UPI"}, 5, 30, false},
	{"Rent payment", "TRANSFER", []string{"NEFT", "IMPS"}, 800, 1600, false},
	{"ATM withdrawal", "WITHDRAWAL", []string{"ATM"}, 20, 400, false},
	{"Interest credit", "INTEREST", []string{"SYSTEM"}, 1, 25, true},
	{"Refund", "REVERSAL", []string{"POS", "UPI"}, 5, 120, true},
}

type Generator struct {
	rnd      *rand.Rand
	accounts []int64
	balances map[int64]float64
	next     map[int64]time.Time
}

func NewGenerator(seed int64, accounts int, start time.Time, openingBalance float64) *Generator {
	g := &Generator{
		rnd:      rand.New(rand.NewSource(seed)),
		balances: map[int64]float64{},
		next:     map[int64]time.Time{},
	}
	for i := 0; i < accounts; i++ {
		account := 1000000000 + g.rnd.Int63n(8999999999)
		g.accounts = append(g.accounts, account)
		g.balances[account] = round2(openingBalance)
		g.next[account] = start
	}
	return g
}

func (g *Generator) Accounts() []int64 {
	return append([]int64(nil), g.accounts...)
}

// Next returns the next statement for account. Dates advance by zero to
// three days per row and the running balance never goes negative: a debit
// larger than the balance is halved, or replaced by a salary credit once the
// account is empty.
func (g *Generator) Next(account int64) (Statement, error) {
	balance, ok := g.balances[account]
	if !ok {
		return Statement{}, fmt.Errorf("unknown account %d", account)
	}
	date := g.next[account]
	g.next[account] = date.AddDate(0, 0, g.rnd.Intn(4))

	m := movements[g.rnd.Intn(len(movements))]
	amount := round2(m.min + g.rnd.Float64()*(m.max-m.min))
	if !m.credit && amount > balance {
		amount = round2(balance / 2)
		if amount <= 0 {
			m = movements[0]
			amount = round2(m.min + g.rnd.Float64()*(m.max-m.min))
		}
	}
	statement := Statement{
		Account:     account,
		Date:        date,
		Description: m.description,
		Type:        m.kind,
		Channel:     m.channels[g.rnd.Intn(len(m.channels))],
	}
	if m.credit {
		statement.Credit = amount
		balance += amount
	} else {
		statement.Debit = amount
		balance -= amount
	}
	statement.Balance = round2(balance)
	g.balances[account] = statement.Balance
	return statement, nil
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func money(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}
