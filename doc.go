// Package vivialconnect provides a Go client library for the Vivial Connect
// SMS API.
//
// Every request is signed with HMAC-SHA256 over a canonical form of the
// request, and every API object is mapped to a *Resource: an ordered bag of
// attributes plus the declared subordinate fields of its Kind.
//
// # Authentication
//
// Create a client with an API key, secret and account id:
//
//	client := vivialconnect.NewClient("api-key", "api-secret", "12345")
//
// Credentials can also be loaded from a YAML or JSONC profile file with the
// config package.
//
// # Basic Usage
//
// Send a message:
//
//	msg, err := client.NewMessage(map[string]any{
//	    "from_number": "+15555550199",
//	    "to_number":   "+15555550100",
//	    "body":        "Hello from Go",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := msg.Send(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(msg.IDString(), msg.Status())
//
// List messages:
//
//	for msg, err := range client.Messages(ctx, nil) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(msg.IDString(), msg.Body())
//	}
//
// Buy a number:
//
//	numbers, err := client.AvailableNumbers(ctx, &vivialconnect.AvailableNumbersOptions{AreaCode: "302"})
//	if err == nil && len(numbers) > 0 {
//	    err = numbers[0].Buy(ctx)
//	}
//
// # Resources
//
// Typed wrappers (Message, Number, Connector, ...) embed *Resource, so any
// attribute is reachable with Get/Set and the typed getters:
//
//	msg.Set("body", "updated")
//	price, _ := msg.GetFloat("price")
//
// Subordinate resources (message attachments, connector numbers and
// callbacks, user credentials) belong to exactly one parent. Adding one to a
// different parent fails with ErrOwnership.
//
// # Error Handling
//
// Check for specific error types:
//
//	msg, err := client.GetMessage(ctx, id)
//	if err != nil {
//	    if vivialconnect.IsNotFound(err) {
//	        // Message doesn't exist
//	    } else if vivialconnect.IsRateLimited(err) {
//	        // Too many requests; the client never retries
//	    }
//	}
//
// For more information, see https://www.vivialconnect.net/docs/
package vivialconnect
