package vivialconnect

import (
	"context"
	"time"
)

// AccountKind is the account resource. Accounts live at /accounts/{id}.json.
var AccountKind = &Kind{
	Name:     "Account",
	Singular: "account",
	Plural:   "accounts",
	Unscoped: true,
}

// TransactionKind is a billing transaction of the account.
var TransactionKind = &Kind{
	Name:     "Transaction",
	Singular: "transaction",
	Plural:   "transactions",
	Opaque:   []string{"data", "balances"},
}

// Account is a primary account or a sub-account.
type Account struct {
	*Resource
}

// CompanyName returns the display name of the account.
func (a *Account) CompanyName() string { return a.GetString("company_name") }

// ParentAccountID returns the parent account id; empty for primary accounts.
func (a *Account) ParentAccountID() string { return a.GetString("account_id") }

// Transaction is one billing transaction.
type Transaction struct {
	*Resource
}

// TransactionType returns the transaction type, e.g. sms_local_out.
func (t *Transaction) TransactionType() string { return t.GetString("transaction_type") }

// PostTime returns when the transaction was issued.
func (t *Transaction) PostTime() (time.Time, bool) { return t.GetTime("post_time") }

// Data returns the transaction metadata, whose keys vary by transaction type.
func (t *Transaction) Data() map[string]any {
	data, _ := t.GetMap("data")
	return data
}

// NewAccount creates an unsaved account.
func (c *Client) NewAccount(attrs map[string]any) (*Account, error) {
	r, err := c.New(AccountKind, attrs)
	if err != nil {
		return nil, err
	}
	return &Account{r}, nil
}

// GetAccount returns an account by ID.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	if accountID == "" {
		return nil, ErrEmptyAccountID
	}
	r, err := c.Find(ctx, AccountKind, accountID, nil)
	if err != nil {
		return nil, err
	}
	return &Account{r}, nil
}

// ListAccounts returns the accounts visible to the credentials.
func (c *Client) ListAccounts(ctx context.Context, query Query) ([]*Account, error) {
	rs, err := c.FindAll(ctx, AccountKind, query)
	if err != nil {
		return nil, err
	}
	return wrapAll(rs, func(r *Resource) *Account { return &Account{r} }), nil
}

// CreateAccount creates a sub-account.
func (c *Client) CreateAccount(ctx context.Context, attrs map[string]any) (*Account, error) {
	r, err := c.Create(ctx, AccountKind, attrs)
	if err != nil {
		return nil, err
	}
	return &Account{r}, nil
}

// CountAccounts returns the number of accounts.
func (c *Client) CountAccounts(ctx context.Context, query Query) (int, error) {
	return c.Count(ctx, AccountKind, query)
}

// BillingStatus returns the free trial / billing status of an account. An
// empty accountID means the client's account.
func (c *Client) BillingStatus(ctx context.Context, accountID string) (map[string]any, error) {
	if accountID == "" {
		accountID = c.accountID
	}
	if accountID == "" {
		return nil, ErrEmptyAccountID
	}
	data, err := c.get(ctx, "/accounts/"+accountID+"/status"+pathExt, nil)
	if err != nil {
		return nil, err
	}
	m, _ := data.(map[string]any)
	return m, nil
}

// ListTransactionsOptions filters ListTransactions.
type ListTransactionsOptions struct {
	// Types restricts the listing to transaction types (include_types[]).
	Types []string

	// Start and End bound post_time. When both are zero the last year is used.
	Start time.Time
	End   time.Time

	Page  int
	Limit int

	// Extra holds any additional query parameters.
	Extra Query
}

func (o *ListTransactionsOptions) query(now time.Time) Query {
	q := Query{}
	if o == nil {
		o = &ListTransactionsOptions{}
	}
	for k, v := range o.Extra {
		q[k] = v
	}
	if len(o.Types) > 0 {
		q["include_types"] = o.Types
	}
	start, end := o.Start, o.End
	if start.IsZero() && end.IsZero() {
		end = now.UTC()
		start = end.AddDate(-1, 0, 0)
	}
	if !start.IsZero() {
		q["start_time"] = start
	}
	if !end.IsZero() {
		q["end_time"] = end
	}
	if o.Page > 0 {
		q["page"] = o.Page
	}
	if o.Limit > 0 {
		q["limit"] = o.Limit
	}
	return q
}

// ListTransactions returns billing transactions, by default for the last
// year.
func (c *Client) ListTransactions(ctx context.Context, opts *ListTransactionsOptions) ([]*Transaction, error) {
	rs, err := c.FindAll(ctx, TransactionKind, opts.query(c.now()))
	if err != nil {
		return nil, err
	}
	return wrapAll(rs, func(r *Resource) *Transaction { return &Transaction{r} }), nil
}

// GetTransaction returns a transaction by ID.
func (c *Client) GetTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	if transactionID == "" {
		return nil, ErrEmptyID
	}
	r, err := c.Find(ctx, TransactionKind, transactionID, nil)
	if err != nil {
		return nil, err
	}
	return &Transaction{r}, nil
}

func wrapAll[T any](rs []*Resource, wrap func(*Resource) T) []T {
	out := make([]T, 0, len(rs))
	for _, r := range rs {
		out = append(out, wrap(r))
	}
	return out
}
