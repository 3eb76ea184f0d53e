// internal/audit/audit.go

// Package audit scans the stored collections and reports entities that break
// the circulation invariants.
package audit

import (
	"context"
	"fmt"
	"sort"

	"loandesk/internal/catalog"
	"loandesk/internal/circulation"
	"loandesk/internal/membership"
)

// Source lists every entity of each collection.
type Source interface {
	ListItems(ctx context.Context) ([]catalog.Item, error)
	ListMembers(ctx context.Context) ([]membership.Member, error)
	ListLoans(ctx context.Context) ([]circulation.Loan, error)
}

type Rule string

const (
	RuleAvailableWhileOnLoan Rule = "available_while_on_loan"
	RuleUnavailableNoLoan    Rule = "unavailable_without_loan"
	RuleDoubleLoan           Rule = "multiple_active_loans"
	RuleCounterDrift         Rule = "counter_drift"
	RuleOverLimit            Rule = "over_limit"
	RuleDanglingItem         Rule = "loan_item_missing"
	RuleDanglingMember       Rule = "loan_member_missing"
)

type Violation struct {
	Rule   Rule   `json:"rule"`
	Key    string `json:"key"`
	Detail string `json:"detail"`
}

type Report struct {
	Items       int         `json:"items"`
	Members     int         `json:"members"`
	Loans       int         `json:"loans"`
	ActiveLoans int         `json:"active_loans"`
	Violations  []Violation `json:"violations"`
}

func (r Report) Consistent() bool { return len(r.Violations) == 0 }

// Checker audits a local source.
type Checker struct {
	Source         Source
	MaxActiveLoans int
}

func (c Checker) Audit(ctx context.Context) (Report, error) {
	return Check(ctx, c.Source, c.MaxActiveLoans)
}

// Check reads the three collections and compares them. maxActiveLoans <= 0
// skips the limit rule.
func Check(ctx context.Context, src Source, maxActiveLoans int) (Report, error) {
	items, err := src.ListItems(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list items: %w", err)
	}
	members, err := src.ListMembers(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list members: %w", err)
	}
	loans, err := src.ListLoans(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list loans: %w", err)
	}

	report := Report{
		Items:      len(items),
		Members:    len(members),
		Loans:      len(loans),
		Violations: []Violation{},
	}

	itemByISBN := make(map[string]catalog.Item, len(items))
	for _, item := range items {
		itemByISBN[item.ISBN] = item
	}
	memberByID := make(map[string]membership.Member, len(members))
	for _, member := range members {
		memberByID[member.ID] = member
	}

	activeByItem := make(map[string]int)
	activeByMember := make(map[string]int)
	for _, loan := range loans {
		if !loan.IsActive() {
			continue
		}
		report.ActiveLoans++
		activeByItem[loan.ItemISBN]++
		activeByMember[loan.MemberID]++

		if _, ok := itemByISBN[loan.ItemISBN]; !ok {
			report.add(RuleDanglingItem, loan.ID, "active loan references unknown item %s", loan.ItemISBN)
		}
		if _, ok := memberByID[loan.MemberID]; !ok {
			report.add(RuleDanglingMember, loan.ID, "active loan references unknown member %s", loan.MemberID)
		}
	}

	for _, item := range items {
		n := activeByItem[item.ISBN]
		switch {
		case n > 1:
			report.add(RuleDoubleLoan, item.ISBN, "%d active loans", n)
		case item.Available && n == 1:
			report.add(RuleAvailableWhileOnLoan, item.ISBN, "flagged available with an active loan")
		case !item.Available && n == 0:
			report.add(RuleUnavailableNoLoan, item.ISBN, "flagged unavailable with no active loan")
		}
	}

	for _, member := range members {
		n := activeByMember[member.ID]
		if member.ActiveLoans != n {
			report.add(RuleCounterDrift, member.ID, "counter %d, active loans %d", member.ActiveLoans, n)
		}
		if maxActiveLoans > 0 && n > maxActiveLoans {
			report.add(RuleOverLimit, member.ID, "%d active loans, limit %d", n, maxActiveLoans)
		}
	}

	sort.SliceStable(report.Violations, func(i, j int) bool {
		a, b := report.Violations[i], report.Violations[j]
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Key < b.Key
	})
	return report, nil
}

func (r *Report) add(rule Rule, key, format string, args ...interface{}) {
	r.Violations = append(r.Violations, Violation{Rule: rule, Key: key, Detail: fmt.Sprintf(format, args...)})
}
