// Package plclient creates clients for the Paperledge Ledger API.
//
// # Overview
//
// plclient is the construction layer: it validates configuration,
// normalizes endpoints, selects the authentication grant, and wires the
// transport with rate limiting and retries. The resulting client is the
// papi.Client interface; all resource operations live in the papi
// package.
//
//	cli, err := plclient.NewWithToken("https://api.paperledge.example", token)
//	if err != nil {
//	  return err
//	}
//
//	invoice, err := cli.Invoices().Get(ctx, invoiceID, nil)
//
// # Authentication
//
// Three grant families are supported, picked by precedence: a static
// access token, the authorization-code grant, and the username/password
// grant. The password grant renews with its refresh token and falls back
// to re-authenticating with the password when the refresh token is
// rejected; the authorization-code grant cannot fall back because codes
// are single use.
//
// Tokens are renewed before they expire, and concurrent requests share a
// single renewal: many goroutines hitting an expired token trigger one
// exchange, not a stampede. Set Config.CredentialStore to share the
// credential across processes, for example a papi.NATSKVStore backed by
// a NATS KV bucket.
//
// # Resilience
//
// Every request passes a client-side token-bucket rate limiter (10
// requests per 10 seconds by default, FIFO under contention) and a retry
// policy: transport failures and rate limits always retry, server errors
// retry only for methods that are safe to replay. Both are tunable
// through Config.RateLimit and Config.Retry.
package plclient
