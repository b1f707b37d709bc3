package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-openapi/inflect"
	vivialconnect "github.com/tj-smith47/vivialconnect-go"
	"github.com/tj-smith47/vivialconnect-go/config"
)

// readLine prompts and reads one line from stdin.
func readLine(e *env, prompt string) (string, error) {
	if e.in == nil {
		e.in = bufio.NewReader(e.stdin)
	}
	fmt.Fprint(e.stderr, prompt)
	line, err := e.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runConfigure(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "configure")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := e.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	f, err := config.Load(path)
	if err != nil {
		return err
	}

	name := e.profile
	if name == "" {
		name = config.DefaultProfile
	}
	current, _ := f.Profile(name)

	key, err := readLine(e, fmt.Sprintf("API key [%s]: ", current.APIKey))
	if err != nil {
		return err
	}
	secret, err := readSecret(e, "API secret: ")
	if err != nil {
		return err
	}
	account, err := readLine(e, fmt.Sprintf("Account ID [%s]: ", current.AccountID))
	if err != nil {
		return err
	}

	if key != "" {
		current.APIKey = key
	}
	if secret != "" {
		current.APISecret = secret
	}
	if account != "" {
		current.AccountID = account
	}
	if e.baseURL != "" {
		current.BaseURL = e.baseURL
	}
	if err := current.Validate(); err != nil {
		return err
	}

	f.Set(name, current)
	if f.Default == "" {
		f.Default = name
	}
	if err := config.Save(path, f); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "saved profile %q to %s\n", name, path)
	return nil
}

func runSend(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "send")
	from := fs.String("from", "", "sender number in E.164 format")
	to := fs.StringSlice("to", nil, "recipient number; repeat for a bulk send")
	body := fs.String("body", "", "message text")
	media := fs.StringSlice("media", nil, "media URL to attach; may be repeated")
	callback := fs.String("status-callback", "", "status callback URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(*to) == 0 {
		return errors.New("--to is required")
	}

	c, err := e.client()
	if err != nil {
		return err
	}
	attrs := map[string]any{"body": *body}
	if *from != "" {
		attrs["from_number"] = *from
	}
	if len(*media) > 0 {
		attrs["media_urls"] = *media
	}
	if *callback != "" {
		attrs["status_text_url"] = *callback
	}

	if len(*to) > 1 {
		attrs["to_numbers"] = *to
		msg, err := c.NewMessage(attrs)
		if err != nil {
			return err
		}
		bulkID, err := msg.SendBulk(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "bulk %s queued for %d recipients\n", bulkID, len(*to))
		return nil
	}

	attrs["to_number"] = (*to)[0]
	msg, err := c.NewMessage(attrs)
	if err != nil {
		return err
	}
	if err := msg.Send(ctx); err != nil {
		return err
	}
	e.show(msg, fmt.Sprintf("message %s %s", msg.IDString(), msg.Status()))
	return nil
}

func runMessages(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "messages")
	page := fs.Int("page", 1, "page number")
	limit := fs.Int("limit", 20, "page size")
	all := fs.Bool("all", false, "follow every page")
	order := fs.String("order", "", `sort order, e.g. "id desc"`)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := e.client()
	if err != nil {
		return err
	}
	opts := &vivialconnect.ListMessagesOptions{Page: *page, Limit: *limit, Order: *order}

	printMessage := func(m *vivialconnect.Message) {
		e.show(m, fmt.Sprintf("%s\t%s\t%s -> %s\t%s", m.IDString(), m.Status(), m.FromNumber(), m.ToNumber(), m.Body()))
	}
	if *all {
		for m, err := range c.Messages(ctx, opts) {
			if err != nil {
				return err
			}
			printMessage(m)
		}
		return nil
	}

	messages, err := c.ListMessages(ctx, opts)
	if err != nil {
		return err
	}
	for _, m := range messages {
		printMessage(m)
	}
	return nil
}

func printNumber(e *env, n *vivialconnect.Number) {
	e.show(n, fmt.Sprintf("%s\t%s\t%s", n.IDString(), n.PhoneNumber(), n.PhoneNumberType()))
}

func runNumbers(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "numbers")
	tags := fs.StringToString("tag", nil, "only numbers carrying tag key=value")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := e.client()
	if err != nil {
		return err
	}
	if len(*tags) > 0 {
		numbers, err := c.TaggedNumbers(ctx, &vivialconnect.TaggedNumbersOptions{Contains: *tags})
		if err != nil {
			return err
		}
		for _, n := range numbers {
			printNumber(e, n)
		}
		return nil
	}
	for n, err := range c.Numbers(ctx, nil) {
		if err != nil {
			return err
		}
		printNumber(e, n)
	}
	return nil
}

func availableFlags(e *env, name string, args []string) (*vivialconnect.AvailableNumbersOptions, []string, error) {
	fs := newFlagSet(e, name)
	opts := &vivialconnect.AvailableNumbersOptions{}
	fs.StringVar(&opts.CountryCode, "country", "US", "country code")
	fs.StringVar(&opts.NumberType, "type", vivialconnect.NumberTypeLocal, "local or tollfree")
	fs.StringVar(&opts.AreaCode, "area-code", "", "area code")
	fs.StringVar(&opts.InRegion, "region", "", "two letter region")
	fs.StringVar(&opts.InPostal, "postal", "", "postal code")
	fs.StringVar(&opts.Contains, "contains", "", "digits the number must contain")
	fs.IntVar(&opts.Limit, "limit", 10, "maximum results")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, fs.Args(), nil
}

func runAvailable(ctx context.Context, e *env, args []string) error {
	opts, _, err := availableFlags(e, "available", args)
	if err != nil {
		return err
	}
	c, err := e.client()
	if err != nil {
		return err
	}
	numbers, err := c.AvailableNumbers(ctx, opts)
	if err != nil {
		return err
	}
	for _, n := range numbers {
		e.show(n, fmt.Sprintf("%s\t%s", n.PhoneNumber(), n.PhoneNumberType()))
	}
	return nil
}

func runBuy(ctx context.Context, e *env, args []string) error {
	opts, rest, err := availableFlags(e, "buy", args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errors.New("usage: vivial buy [flags] <phone-number>")
	}
	c, err := e.client()
	if err != nil {
		return err
	}
	n, err := c.NewNumber(map[string]any{
		"phone_number":      rest[0],
		"phone_number_type": strings.ToLower(opts.NumberType),
	})
	if err != nil {
		return err
	}
	if err := n.Buy(ctx); err != nil {
		return err
	}
	printNumber(e, n)
	return nil
}

func runCount(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "count")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: vivial count <kind>, e.g. messages or numbers")
	}

	c, err := e.client()
	if err != nil {
		return err
	}
	kind, ok := c.Registry().Lookup(fs.Arg(0))
	if !ok {
		kind, ok = c.Registry().Lookup(inflect.Singularize(fs.Arg(0)))
	}
	if !ok {
		return fmt.Errorf("unknown resource kind %q", fs.Arg(0))
	}
	n, err := c.Count(ctx, kind, nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, n)
	return nil
}

func runLookup(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "lookup")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: vivial lookup <phone-number>")
	}
	c, err := e.client()
	if err != nil {
		return err
	}
	info, err := c.LookupNumber(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	carrier := info.Carrier()
	e.show(info, fmt.Sprintf("%s\t%s\t%v", fs.Arg(0), info.DeviceType(), carrier["name"]))
	return nil
}

func runLogs(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "logs")
	since := fs.Duration("since", 24*time.Hour, "how far back to list")
	logType := fs.String("type", "", "log type, e.g. message.queued")
	itemID := fs.String("item", "", "only logs about this item id")
	aggregate := fs.String("aggregate", "", "bucket counts by minutes, hours, days, months or years")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := e.client()
	if err != nil {
		return err
	}
	end := time.Now()
	start := end.Add(-*since)

	if *aggregate != "" {
		counts, err := c.AggregatedLogs(ctx, start, end, *aggregate, nil)
		if err != nil {
			return err
		}
		if !e.dumpValue(counts) {
			printMap(e.stdout, counts)
		}
		return nil
	}

	opts := &vivialconnect.ListLogsOptions{Start: start, End: end, LogType: *logType, ItemID: *itemID}
	for l, err := range c.Logs(ctx, opts) {
		if err != nil {
			return err
		}
		created, _ := l.GetTime("date_created")
		e.show(l, fmt.Sprintf("%s\t%s\t%s", created.Format(time.RFC3339), l.LogType(), l.ItemID()))
	}
	return nil
}

func runStatus(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := e.client()
	if err != nil {
		return err
	}
	status, err := c.BillingStatus(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if !e.dumpValue(status) {
		printMap(e.stdout, status)
	}
	return nil
}
