package vivialconnect

import (
	"context"
	"iter"
	"time"
)

// API defines the Vivial Connect operations of Client, enabling mocking for
// tests.
type API interface {
	// ============================================================================
	// Generic Resource Operations
	// ============================================================================

	New(kind *Kind, attrs map[string]any) (*Resource, error)
	NewSubordinate(kind *Kind, parent Entity, attrs map[string]any) (*Resource, error)
	Find(ctx context.Context, kind *Kind, id string, query Query) (*Resource, error)
	FindAll(ctx context.Context, kind *Kind, query Query) ([]*Resource, error)
	FindFirst(ctx context.Context, kind *Kind, query Query) (*Resource, error)
	Create(ctx context.Context, kind *Kind, attrs map[string]any) (*Resource, error)
	Count(ctx context.Context, kind *Kind, query Query) (int, error)
	Get(ctx context.Context, path string, query Query) (any, error)
	Post(ctx context.Context, path string, payload any) (any, error)

	// ============================================================================
	// Account Operations
	// ============================================================================

	NewAccount(attrs map[string]any) (*Account, error)
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	ListAccounts(ctx context.Context, query Query) ([]*Account, error)
	CreateAccount(ctx context.Context, attrs map[string]any) (*Account, error)
	CountAccounts(ctx context.Context, query Query) (int, error)
	BillingStatus(ctx context.Context, accountID string) (map[string]any, error)
	ListTransactions(ctx context.Context, opts *ListTransactionsOptions) ([]*Transaction, error)
	GetTransaction(ctx context.Context, transactionID string) (*Transaction, error)

	// ============================================================================
	// Message Operations
	// ============================================================================

	NewMessage(attrs map[string]any) (*Message, error)
	GetMessage(ctx context.Context, messageID string) (*Message, error)
	ListMessages(ctx context.Context, opts *ListMessagesOptions) ([]*Message, error)
	CountMessages(ctx context.Context, query Query) (int, error)
	BulkMessages(ctx context.Context, bulkID string) ([]*Message, error)
	Bulks(ctx context.Context) ([]Bulk, error)
	Messages(ctx context.Context, opts *ListMessagesOptions) iter.Seq2[*Message, error]

	// ============================================================================
	// Number Operations
	// ============================================================================

	NewNumber(attrs map[string]any) (*Number, error)
	GetNumber(ctx context.Context, numberID string) (*Number, error)
	ListNumbers(ctx context.Context, query Query) ([]*Number, error)
	CountNumbers(ctx context.Context, query Query) (int, error)
	AvailableNumbers(ctx context.Context, opts *AvailableNumbersOptions) ([]*Number, error)
	TaggedNumbers(ctx context.Context, opts *TaggedNumbersOptions) ([]*Number, error)
	LookupNumber(ctx context.Context, phoneNumber string) (*NumberInfo, error)
	Numbers(ctx context.Context, query Query) iter.Seq2[*Number, error]

	// ============================================================================
	// Connector Operations
	// ============================================================================

	NewConnector(attrs map[string]any) (*Connector, error)
	GetConnector(ctx context.Context, connectorID string) (*Connector, error)
	ListConnectors(ctx context.Context, query Query) ([]*Connector, error)
	CreateConnector(ctx context.Context, attrs map[string]any) (*Connector, error)
	CountConnectors(ctx context.Context, query Query) (int, error)

	// ============================================================================
	// User Operations
	// ============================================================================

	GetUser(ctx context.Context, userID string) (*User, error)
	ListUsers(ctx context.Context, query Query) ([]*User, error)
	CountUsers(ctx context.Context, query Query) (int, error)

	// ============================================================================
	// Log Operations
	// ============================================================================

	ListLogs(ctx context.Context, opts *ListLogsOptions) (string, []*Log, error)
	AggregatedLogs(ctx context.Context, start, end time.Time, aggregator string, extra Query) (map[string]any, error)
	Logs(ctx context.Context, opts *ListLogsOptions) iter.Seq2[*Log, error]

	// ============================================================================
	// Configuration Operations
	// ============================================================================

	NewConfiguration(attrs map[string]any) (*Configuration, error)
	GetConfiguration(ctx context.Context, configurationID string) (*Configuration, error)
	ListConfigurations(ctx context.Context, query Query) ([]*Configuration, error)
	CreateConfiguration(ctx context.Context, attrs map[string]any) (*Configuration, error)
	CountConfigurations(ctx context.Context, query Query) (int, error)

	// ============================================================================
	// Rate Limiting
	// ============================================================================

	RateLimitInfo() *RateLimitInfo
	RemainingRequests() int
	ShouldThrottle(threshold int) bool
}

// Ensure Client implements API.
var _ API = (*Client)(nil)
