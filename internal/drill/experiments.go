// internal/drill/experiments.go
package drill

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"loandesk/internal/catalog"
	"loandesk/internal/circulation"
	"loandesk/internal/membership"
)

// DefaultPoolSize fits inside the default member registration rate limit.
const DefaultPoolSize = 3

// ErrNoMembers is returned by experiments run on a desk without a member pool.
var ErrNoMembers = errors.New("drill desk has no members")

// Desk is the set of services the experiments drive. Members is the pool of
// borrowers every experiment shares; each experiment leaves them with no
// active loans.
type Desk struct {
	Catalog     catalog.Service
	Membership  membership.Service
	Circulation circulation.Service
	Members     []string
}

// RegisterPool registers n drill members once, so the experiments never hit
// the registration rate limit however much load they apply.
func RegisterPool(ctx context.Context, members membership.Service, n int) ([]string, error) {
	prefix := runPrefix()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		m, err := members.RegisterMember(ctx, fmt.Sprintf("%s-member-%d", prefix, i), "Drill member")
		if err != nil {
			return nil, fmt.Errorf("failed to register drill member: %w", err)
		}
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (d Desk) member(i int) string {
	return d.Members[i%len(d.Members)]
}

// Standard returns the built-in experiments.
func Standard(d Desk, concurrency int) []Experiment {
	return []Experiment{
		ConcurrentIssueRace(d, concurrency),
		ConcurrentReturnRace(d, concurrency),
		LoanChurn(d, concurrency, 20),
	}
}

// ConcurrentIssueRace has pool members fire many simultaneous requests for the
// same item. The winning loan is returned afterwards.
func ConcurrentIssueRace(d Desk, concurrency int) Experiment {
	return Experiment{
		Name:       "concurrent-issue-race",
		Hypothesis: "Exactly one of many simultaneous requests for the same item is granted",
		Method: []Action{{
			Name: "issue-same-item",
			Execute: func(ctx context.Context, obs *Observations) error {
				if len(d.Members) == 0 {
					return ErrNoMembers
				}
				item, err := d.Catalog.AddItem(ctx, runPrefix()+"-item", "Drill copy")
				if err != nil {
					return err
				}

				requesters := make([]string, concurrency)
				for i := range requesters {
					requesters[i] = d.member(i)
				}
				var mu sync.Mutex
				var won []string
				fanOut(requesters, func(memberID string) {
					loan, err := d.Circulation.Issue(ctx, item.ISBN, memberID)
					obs.Add("attempts", 1)
					switch {
					case err == nil:
						obs.Add("issued", 1)
						mu.Lock()
						won = append(won, loan.ID)
						mu.Unlock()
					case errors.Is(err, circulation.ErrItemUnavailable):
						obs.Add("rejected_unavailable", 1)
					default:
						obs.Add("unexpected_errors", 1)
					}
				})
				obs.Add("unexpected_errors", 0)

				for _, loanID := range won {
					if _, err := d.Circulation.Return(ctx, loanID); err != nil {
						return fmt.Errorf("failed to return winning loan: %w", err)
					}
				}
				return nil
			},
		}},
		Validation: []Assertion{
			{Metric: "issued", Threshold: Threshold{"==", 1}, Message: "one request wins the item"},
			{Metric: "unexpected_errors", Threshold: Threshold{"==", 0}, Message: "losers are told the item is unavailable"},
		},
	}
}

// ConcurrentReturnRace returns the same loan from many goroutines at once.
func ConcurrentReturnRace(d Desk, concurrency int) Experiment {
	return Experiment{
		Name:       "concurrent-return-race",
		Hypothesis: "A loan returned many times at once is closed exactly once",
		Method: []Action{{
			Name: "return-same-loan",
			Execute: func(ctx context.Context, obs *Observations) error {
				if len(d.Members) == 0 {
					return ErrNoMembers
				}
				item, err := d.Catalog.AddItem(ctx, runPrefix()+"-item", "Drill copy")
				if err != nil {
					return err
				}
				loan, err := d.Circulation.Issue(ctx, item.ISBN, d.member(0))
				if err != nil {
					return fmt.Errorf("failed to issue drill loan: %w", err)
				}

				attempts := make([]string, concurrency)
				for i := range attempts {
					attempts[i] = loan.ID
				}
				fanOut(attempts, func(loanID string) {
					_, err := d.Circulation.Return(ctx, loanID)
					switch {
					case err == nil:
						obs.Add("returned", 1)
					case errors.Is(err, circulation.ErrLoanAlreadyReturned):
						obs.Add("rejected_returned", 1)
					default:
						obs.Add("unexpected_errors", 1)
					}
				})
				obs.Add("unexpected_errors", 0)
				return nil
			},
		}},
		Validation: []Assertion{
			{Metric: "returned", Threshold: Threshold{"==", 1}, Message: "one return closes the loan"},
			{Metric: "unexpected_errors", Threshold: Threshold{"==", 0}, Message: "repeat returns are told the loan is closed"},
		},
	}
}

// LoanChurn has workers issue and return random items for random pool
// members. Rule rejections are expected; anything else is not.
func LoanChurn(d Desk, workers, rounds int) Experiment {
	return Experiment{
		Name:       "loan-churn",
		Hypothesis: "Mixed concurrent issues and returns leave flags and counters in step with the loans",
		Method: []Action{{
			Name: "random-issue-return",
			Execute: func(ctx context.Context, obs *Observations) error {
				if len(d.Members) == 0 {
					return ErrNoMembers
				}
				prefix := runPrefix()
				isbns := make([]string, workers)
				for i := range isbns {
					item, err := d.Catalog.AddItem(ctx, fmt.Sprintf("%s-item-%d", prefix, i), "Drill copy")
					if err != nil {
						return err
					}
					isbns[i] = item.ISBN
				}

				var mu sync.Mutex
				var open []string
				ids := make([]string, workers)
				for i := range ids {
					ids[i] = fmt.Sprint(i)
				}
				fanOut(ids, func(worker string) {
					n, _ := strconv.Atoi(worker)
					rng := rand.New(rand.NewSource(int64(n) + 1))
					for r := 0; r < rounds; r++ {
						mu.Lock()
						var loanID string
						if len(open) > 0 && rng.Intn(2) == 0 {
							i := rng.Intn(len(open))
							loanID = open[i]
							open = append(open[:i], open[i+1:]...)
						}
						mu.Unlock()

						if loanID != "" {
							if _, err := d.Circulation.Return(ctx, loanID); err != nil {
								obs.Add("unexpected_errors", 1)
								continue
							}
							obs.Add("returned", 1)
							continue
						}

						isbn := isbns[rng.Intn(len(isbns))]
						memberID := d.member(rng.Intn(len(d.Members)))
						loan, err := d.Circulation.Issue(ctx, isbn, memberID)
						switch {
						case err == nil:
							obs.Add("issued", 1)
							mu.Lock()
							open = append(open, loan.ID)
							mu.Unlock()
						case errors.Is(err, circulation.ErrItemUnavailable),
							errors.Is(err, circulation.ErrLoanLimitReached),
							errors.Is(err, circulation.ErrMemberHasOverdueLoan):
							obs.Add("rejected", 1)
						default:
							obs.Add("unexpected_errors", 1)
						}
					}
				})
				obs.Add("unexpected_errors", 0)

				for _, loanID := range open {
					if _, err := d.Circulation.Return(ctx, loanID); err != nil {
						obs.Add("unexpected_errors", 1)
					}
				}
				return nil
			},
		}},
		Validation: []Assertion{
			{Metric: "unexpected_errors", Threshold: Threshold{"==", 0}, Message: "only rule rejections occur"},
		},
	}
}

func runPrefix() string {
	return "drill-" + uuid.NewString()[:8]
}

// fanOut calls fn for every input on its own goroutine and waits for all.
func fanOut(inputs []string, fn func(string)) {
	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, in := range inputs {
		wg.Add(1)
		go func(in string) {
			defer wg.Done()
			<-start
			fn(in)
		}(in)
	}
	close(start)
	wg.Wait()
}
