// Package papi provides types, interfaces, and helpers for working with
// the Paperledge Ledger API.
//
// # Overview
//
// The papi package defines the typed resource envelope (ResourceObject,
// ResourceEnvelope, ListEnvelope), the error taxonomy, query and
// pagination helpers, and the interfaces for resource-oriented clients
// (InvoicesClient, ContactsClient, JobsClient). A concrete implementation
// is provided by the plclient package, which wires configuration,
// transport, authentication, rate limiting, and retries. Most consumers
// should import plclient to construct a client and then interact with the
// interfaces exposed here.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/paperledge/papi/pkg/papi"
//	  "github.com/paperledge/papi/pkg/plclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := plclient.New(&papi.Config{
//	    APIEndpoint: "https://api.paperledge.example",
//	    Username:    "user",
//	    Password:    "pass",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  invoices, err := cli.Invoices().List(ctx, papi.NewQueryParams().WithPerPage(25))
//	  if err != nil { log.Fatal(err) }
//	  _ = invoices
//	}
//
// # Queries and pagination
//
// QueryParams expresses the bracketed list conventions (filter[key],
// page[number], page[size], include, sort); page sizes beyond the server
// ceiling of 25 are clamped client-side. PageIterator and FetchAllPages
// walk multi-page results.
//
// # Errors
//
// Non-2xx responses become typed errors (AuthError, ForbiddenError,
// NotFoundError, ValidationError, RateLimitError, APIError), each
// preserving the status, the structured problem list, and the server's
// request id. Transport failures surface as NetworkError or its
// TimeoutError subtype. Helpers such as IsNotFound and IsRateLimit make
// it easy to branch on common cases.
//
// # Asynchronous jobs
//
// Operations such as invoice rendering return a Job tracked server-side.
// JobsClient polls a job to a terminal state, failing with JobError or
// JobTimeoutError, or reports the outcome non-fatally via
// WaitForCompletion.
package papi
