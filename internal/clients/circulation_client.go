// internal/clients/circulation_client.go
package clients

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"loandesk/internal/audit"
	"loandesk/internal/circulation"
	"loandesk/internal/httpx"
)

type CirculationClient struct {
	base
}

var _ circulation.Service = (*CirculationClient)(nil)

func NewCirculationClient(baseURL string, hc *http.Client) *CirculationClient {
	return &CirculationClient{base: newBase(baseURL, hc)}
}

var knownCirculationErrors = []*circulation.Error{
	circulation.ErrItemNotFound,
	circulation.ErrMemberNotFound,
	circulation.ErrLoanNotFound,
	circulation.ErrItemUnavailable,
	circulation.ErrItemAlreadyOnLoan,
	circulation.ErrLoanLimitReached,
	circulation.ErrMemberHasOverdueLoan,
	circulation.ErrLoanAlreadyReturned,
	circulation.ErrLoanItemMissing,
	circulation.ErrLoanMemberMissing,
}

// circulationErrors rebuilds the *circulation.Error the server reported, so
// errors.Is against the sentinels behaves as it does in process.
func circulationErrors(status int, body httpx.ErrorResponse) error {
	for _, known := range knownCirculationErrors {
		if known.Kind.String() != body.Kind {
			continue
		}
		if body.Error == known.Reason {
			return &circulation.Error{Kind: known.Kind, Reason: known.Reason}
		}
		if key, ok := strings.CutPrefix(body.Error, known.Reason+": "); ok {
			return &circulation.Error{Kind: known.Kind, Reason: known.Reason, Key: key}
		}
	}
	return nil
}

func (c *CirculationClient) Issue(ctx context.Context, isbn, memberID string) (*circulation.Loan, error) {
	req := struct {
		ISBN     string `json:"isbn"`
		MemberID string `json:"member_id"`
	}{isbn, memberID}

	var loan circulation.Loan
	if err := c.do(ctx, http.MethodPost, "/loans", req, &loan, http.StatusCreated, circulationErrors); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (c *CirculationClient) Return(ctx context.Context, loanID string) (*circulation.Receipt, error) {
	var receipt circulation.Receipt
	path := "/loans/" + url.PathEscape(loanID) + "/return"
	if err := c.do(ctx, http.MethodPost, path, nil, &receipt, http.StatusOK, circulationErrors); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *CirculationClient) GetLoan(ctx context.Context, loanID string) (*circulation.Loan, error) {
	var loan circulation.Loan
	if err := c.do(ctx, http.MethodGet, "/loans/"+url.PathEscape(loanID), nil, &loan, http.StatusOK, circulationErrors); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (c *CirculationClient) ActiveLoans(ctx context.Context, memberID string) ([]circulation.LoanStatus, error) {
	var statuses []circulation.LoanStatus
	path := "/members/" + url.PathEscape(memberID) + "/loans"
	if err := c.do(ctx, http.MethodGet, path, nil, &statuses, http.StatusOK, circulationErrors); err != nil {
		return nil, err
	}
	return statuses, nil
}

// Audit fetches the server's consistency report.
func (c *CirculationClient) Audit(ctx context.Context) (audit.Report, error) {
	var report audit.Report
	err := c.do(ctx, http.MethodGet, "/audit", nil, &report, http.StatusOK, func(int, httpx.ErrorResponse) error { return nil })
	return report, err
}
