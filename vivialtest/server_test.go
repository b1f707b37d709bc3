package vivialtest

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vivialconnect "github.com/tj-smith47/vivialconnect-go"
)

func TestUnsignedRequestRejected(t *testing.T) {
	s := NewServer(t)

	resp, err := http.Get(s.BaseURL() + "/accounts/" + s.AccountID + "/messages.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWrongSecretRejected(t *testing.T) {
	s := NewServer(t)
	c := vivialconnect.NewClient(s.APIKey, "not-the-secret", s.AccountID,
		vivialconnect.WithBaseURL(s.BaseURL()))

	_, err := c.CountMessages(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, vivialconnect.IsUnauthorized(err))
	assert.Contains(t, err.Error(), "signature mismatch")
}

func TestSignedQueryAccepted(t *testing.T) {
	s := NewServer(t)
	c := s.Client()

	_, err := c.ListMessages(context.Background(), &vivialconnect.ListMessagesOptions{
		Page:  1,
		Limit: 10,
		Extra: vivialconnect.Query{"to[]": "+1555", "note": "a/b c"},
	})
	require.NoError(t, err)
}

func TestMessageLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewServer(t)
	c := s.Client()

	msg, err := c.NewMessage(map[string]any{
		"from_number": "+13025550199",
		"to_number":   "+13025550100",
		"body":        "hello",
	})
	require.NoError(t, err)
	require.True(t, msg.IsNew())
	require.NoError(t, msg.Send(ctx))

	assert.False(t, msg.IsNew())
	assert.Equal(t, "accepted", msg.Status())
	assert.Equal(t, "outbound-api", msg.Direction())

	req, ok := s.LastRequest()
	require.True(t, ok)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, APIPrefix+"/accounts/10001/messages.json", req.Path)
	assert.Contains(t, req.JSON(), "message")

	got, err := c.GetMessage(ctx, msg.IDString())
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Body())
	assert.True(t, got.Equal(msg))

	n, err := c.CountMessages(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, got.Set("body", "edited"))
	require.NoError(t, got.Save(ctx))
	req, _ = s.LastRequest()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "edited", s.Rows("messages")[0]["body"])

	require.NoError(t, got.Destroy(ctx))
	_, err = c.GetMessage(ctx, msg.IDString())
	require.Error(t, err)
	assert.True(t, vivialconnect.IsNotFound(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestMessageValidation(t *testing.T) {
	s := NewServer(t)
	c := s.Client()

	msg, err := c.NewMessage(map[string]any{"body": "no recipient"})
	require.NoError(t, err)
	err = msg.Send(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, vivialconnect.ErrBadRequest)
	assert.Empty(t, s.Rows("messages"))
}

func TestAttachments(t *testing.T) {
	ctx := context.Background()
	s := NewServer(t)
	c := s.Client()

	ids := s.Seed("messages", map[string]any{"body": "with media", "num_media": 2})
	key := "messages/" + strconv.Itoa(ids[0]) + "/attachments"
	s.Seed(key,
		map[string]any{"content_type": "image/png", "file_name": "a.png", "size": 10},
		map[string]any{"content_type": "image/gif", "file_name": "b.gif", "size": 20},
	)

	msg, err := c.GetMessage(ctx, strconv.Itoa(ids[0]))
	require.NoError(t, err)

	attachments, err := msg.Attachments(ctx, nil)
	require.NoError(t, err)
	require.Len(t, attachments, 2)
	for _, a := range attachments {
		assert.Same(t, msg.Resource, a.Parent())
	}
	assert.Equal(t, "a.png", attachments[0].FileName())
	assert.Equal(t, 20, attachments[1].Size())

	path, err := attachments[1].ElementPath()
	require.NoError(t, err)
	assert.Equal(t, "/accounts/10001/messages/"+msg.IDString()+"/attachments/"+attachments[1].IDString()+".json", path)

	n, err := msg.AttachmentsCount(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	one, err := msg.Attachment(ctx, attachments[0].IDString(), nil)
	require.NoError(t, err)
	assert.Equal(t, "image/png", one.ContentType())
	assert.Same(t, msg.Resource, one.Parent())

	_, err = msg.Attachment(ctx, "999999", nil)
	assert.True(t, vivialconnect.IsNotFound(err))
}

func TestMessagesIterator(t *testing.T) {
	s := NewServer(t)
	c := s.Client()

	for i := range 120 {
		s.Seed("messages", map[string]any{"body": "m" + strconv.Itoa(i)})
	}

	var bodies []string
	for msg, err := range c.Messages(context.Background(), nil) {
		require.NoError(t, err)
		bodies = append(bodies, msg.Body())
	}
	assert.Len(t, bodies, 120)
	assert.Equal(t, "m0", bodies[0])
	assert.Equal(t, "m119", bodies[119])
	assert.Len(t, s.Requests(), 3)
}

func TestBulk(t *testing.T) {
	ctx := context.Background()
	s := NewServer(t)
	c := s.Client()

	msg, err := c.NewMessage(map[string]any{
		"from_number": "+13025550199",
		"to_numbers":  []string{"+13025550101", "+13025550102", "+13025550103"},
		"body":        "bulk hello",
	})
	require.NoError(t, err)

	bulkID, err := msg.SendBulk(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, bulkID)

	bulks, err := c.Bulks(ctx)
	require.NoError(t, err)
	require.Len(t, bulks, 1)
	assert.Equal(t, bulkID, bulks[0].BulkID)
	assert.Equal(t, 3, bulks[0].TotalMessages)
	assert.Equal(t, 3, bulks[0].Processed)
	assert.False(t, bulks[0].DateCreated.IsZero())

	messages, err := c.BulkMessages(ctx, bulkID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "+13025550102", messages[1].ToNumber())

	_, err = c.BulkMessages(ctx, "unknown")
	assert.True(t, vivialconnect.IsNotFound(err))
}

func TestNumbers(t *testing.T) {
	ctx := context.Background()
	s := NewServer(t)
	c := s.Client()

	available, err := c.AvailableNumbers(ctx, &vivialconnect.AvailableNumbersOptions{AreaCode: "415", Limit: 2})
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, "+14155550100", available[0].PhoneNumber())
	assert.True(t, available[0].Capabilities()["sms"])

	req, _ := s.LastRequest()
	assert.Equal(t, APIPrefix+"/accounts/10001/numbers/available/US/local.json", req.Path)

	number := available[0]
	require.NoError(t, number.Buy(ctx))
	assert.False(t, number.IsNew())

	require.NoError(t, number.Set("tags", map[string]any{"team": "ops", "env": "prod"}))
	require.NoError(t, number.Save(ctx))

	s.Seed("numbers", map[string]any{"phone_number": "+13025550111", "tags": map[string]any{"team": "sales"}})

	tagged, err := c.TaggedNumbers(ctx, &vivialconnect.TaggedNumbersOptions{Contains: map[string]string{"team": "ops"}})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, number.IDString(), tagged[0].IDString())

	tagged, err = c.TaggedNumbers(ctx, &vivialconnect.TaggedNumbersOptions{NotContains: map[string]string{"team": "ops"}})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "+13025550111", tagged[0].PhoneNumber())

	removed, err := number.RemoveTag(ctx, "env")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, map[string]string{"team": "ops"}, number.Tags())

	_, err = number.RemoveTag(ctx, "env")
	assert.ErrorIs(t, err, vivialconnect.ErrTagNotFound)

	n, err := c.CountNumbers(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	info, err := c.LookupNumber(ctx, "+13025550100")
	require.NoError(t, err)
	assert.Equal(t, "mobile", info.DeviceType())
	assert.Equal(t, "Fake Wireless", info.Carrier()["name"])
}

func TestConnectorPhoneNumbers(t *testing.T) {
	ctx := context.Background()
	s := NewServer(t)
	c := s.Client()

	conn, err := c.NewConnector(map[string]any{"name": "support"})
	require.NoError(t, err)
	require.NoError(t, conn.AddPhoneNumber("+13025550100", nil))
	require.NoError(t, conn.AddCallback("text", "incoming", "https://example.test/cb", "POST"))
	require.NoError(t, conn.Save(ctx))

	assert.False(t, conn.IsNew())
	require.Equal(t, 1, conn.PhoneNumbers().Len())
	assert.Same(t, conn.Resource, conn.PhoneNumbers().At(0).Parent())
	require.Equal(t, 1, conn.Callbacks().Len())

	got, err := c.GetConnector(ctx, conn.IDString())
	require.NoError(t, err)
	assert.Equal(t, "support", got.Name())
	require.Equal(t, 1, got.PhoneNumbers().Len())
	assert.Equal(t, "+13025550100", got.PhoneNumbers().At(0).GetString("phone_number"))

	// A number owned by one connector cannot be moved to another.
	err = conn.PhoneNumbers().Append(got.PhoneNumbers().At(0))
	assert.ErrorIs(t, err, vivialconnect.ErrOwnership)
}

func TestUserCredentials(t *testing.T) {
	ctx := context.Background()
	s := NewServer(t)
	c := s.Client()

	ids := s.Seed("users", map[string]any{"username": "ada", "email": "ada@example.test", "roles": []any{"admin"}})
	user, err := c.GetUser(ctx, strconv.Itoa(ids[0]))
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username())

	cred, err := user.CreateCredential(ctx, "ci")
	require.NoError(t, err)
	assert.Equal(t, "ci", cred.Name())
	assert.Equal(t, "key-"+cred.IDString(), cred.APIKey())
	assert.Same(t, user.Resource, cred.Parent())

	req, _ := s.LastRequest()
	assert.Equal(t, APIPrefix+"/accounts/10001/users/"+user.IDString()+"/profile/credentials.json", req.Path)
	body := req.JSON()
	require.Contains(t, body, "user")
	assert.Contains(t, body["user"], "credential")

	creds, err := user.Credentials(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Same(t, user.Resource, creds[0].Parent())

	one, err := user.Credential(ctx, cred.IDString())
	require.NoError(t, err)
	assert.Equal(t, cred.APISecret(), one.APISecret())

	n, err := user.CountCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLogs(t *testing.T) {
	ctx := context.Background()
	s := NewServer(t)
	c := s.Client()

	for i := range 5 {
		s.SeedLogs(map[string]any{"log_type": "message.queued", "item_id": strconv.Itoa(i)})
	}
	s.SeedLogs(map[string]any{"log_type": "number.purchased", "item_id": "9"})

	end := time.Now()
	opts := &vivialconnect.ListLogsOptions{Start: end.Add(-time.Hour), End: end, LogType: "message.queued", Limit: 2}

	var items []string
	for l, err := range c.Logs(ctx, opts) {
		require.NoError(t, err)
		items = append(items, l.ItemID())
	}
	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, items)
	assert.Len(t, s.Requests(), 3)

	agg, err := c.AggregatedLogs(ctx, end.Add(-time.Hour), end, vivialconnect.AggregateHours, nil)
	require.NoError(t, err)
	assert.Equal(t, "hours", agg["aggregator_type"])
	assert.Len(t, agg["log_items"], 2)
}

func TestAccount(t *testing.T) {
	ctx := context.Background()
	s := NewServer(t)
	c := s.Client()

	acct, err := c.GetAccount(ctx, s.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "Vivial Test", acct.CompanyName())

	req, _ := s.LastRequest()
	assert.Equal(t, APIPrefix+"/accounts/10001.json", req.Path)

	status, err := c.BillingStatus(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "active", status["status"])

	_, err = c.BillingStatus(ctx, "42")
	assert.True(t, vivialconnect.IsForbidden(err))
}

func TestFaultInjection(t *testing.T) {
	s := NewServer(t)
	c := s.Client()

	s.SetFault(http.MethodGet, "/accounts/10001/messages/count.json", Fault{
		Status: http.StatusTooManyRequests,
		Body:   map[string]any{"message": "slow down"},
		Header: http.Header{"Retry-After": []string{"7"}},
	})

	_, err := c.CountMessages(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, vivialconnect.IsRateLimited(err))

	var reqErr *vivialconnect.RequestorError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 7*time.Second, reqErr.RetryAfter)
	assert.Equal(t, "slow down", reqErr.Message)

	s.ClearFaults()
	n, err := c.CountMessages(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRateLimitHeaders(t *testing.T) {
	s := NewServer(t)
	var seen []vivialconnect.RateLimitInfo
	c := s.Client(vivialconnect.WithRateLimitCallback(func(info vivialconnect.RateLimitInfo) {
		seen = append(seen, info)
	}))

	reset := time.Unix(time.Now().Add(time.Hour).Unix(), 0)
	s.SetRateLimit(&vivialconnect.RateLimitInfo{Limit: 100, Remaining: 3, Reset: reset})

	_, err := c.CountMessages(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, 3, c.RemainingRequests())
	assert.True(t, c.ShouldThrottle(5))
	assert.True(t, c.RateLimitInfo().Reset.Equal(reset))
}

func TestEmptyResponseOnDelete(t *testing.T) {
	ctx := context.Background()
	s := NewServer(t)
	c := s.Client()

	ids := s.Seed("configurations", map[string]any{"name": "default"})
	cfg, err := c.GetConfiguration(ctx, strconv.Itoa(ids[0]))
	require.NoError(t, err)
	require.NoError(t, cfg.Destroy(ctx))
	assert.Empty(t, s.Rows("configurations"))
}
