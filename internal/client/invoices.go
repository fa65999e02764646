package client

import (
	"context"
	"fmt"

	"github.com/paperledge/papi/pkg/papi"
)

// InvoicesClient implements papi.InvoicesClient.
type InvoicesClient struct {
	client *Client
}

// Create implements papi.InvoicesClient.
func (c *InvoicesClient) Create(ctx context.Context, req *papi.InvoiceCreateRequest) (*papi.ResourceEnvelope, error) {
	body, err := req.Envelope()
	if err != nil {
		return nil, err
	}

	return c.client.postEnvelope(ctx, "/v2/invoices", body)
}

// Get implements papi.InvoicesClient.
func (c *InvoicesClient) Get(ctx context.Context, invoiceID string, params *papi.QueryParams) (*papi.ResourceEnvelope, error) {
	return c.client.getEnvelope(ctx, "/v2/invoices/"+invoiceID, params)
}

// List implements papi.InvoicesClient.
func (c *InvoicesClient) List(ctx context.Context, params *papi.QueryParams) (*papi.ListEnvelope, error) {
	return c.client.ListWithPath(ctx, "/v2/invoices", params)
}

// Update implements papi.InvoicesClient.
func (c *InvoicesClient) Update(ctx context.Context, invoiceID string, attrs *papi.InvoiceAttributes) (*papi.ResourceEnvelope, error) {
	obj, err := papi.NewResource(papi.TypeInvoice, attrs)
	if err != nil {
		return nil, err
	}

	obj.ID = invoiceID

	return c.client.patchEnvelope(ctx, "/v2/invoices/"+invoiceID, &papi.ResourceEnvelope{Data: obj})
}

// Delete implements papi.InvoicesClient.
func (c *InvoicesClient) Delete(ctx context.Context, invoiceID string) error {
	return c.client.delete(ctx, "/v2/invoices/"+invoiceID)
}

// Archive implements papi.Archivable.
func (c *InvoicesClient) Archive(ctx context.Context, invoiceID string) (*papi.ResourceEnvelope, error) {
	return c.client.postEnvelope(ctx, "/v2/invoices/"+invoiceID+"/archive", nil)
}

// Cancel implements papi.Cancellable.
func (c *InvoicesClient) Cancel(ctx context.Context, invoiceID string) (*papi.ResourceEnvelope, error) {
	return c.client.postEnvelope(ctx, "/v2/invoices/"+invoiceID+"/cancel", nil)
}

// MarkPaid implements papi.Payable.
func (c *InvoicesClient) MarkPaid(ctx context.Context, invoiceID string) (*papi.ResourceEnvelope, error) {
	return c.client.postEnvelope(ctx, "/v2/invoices/"+invoiceID+"/mark_paid", nil)
}

// Render implements papi.InvoicesClient: the server answers with a job
// resource tracking the asynchronous render.
func (c *InvoicesClient) Render(ctx context.Context, invoiceID string) (*papi.Job, error) {
	envelope, err := c.client.postEnvelope(ctx, "/v2/invoices/"+invoiceID+"/render", nil)
	if err != nil {
		return nil, err
	}

	return jobFromResource(&envelope.Data)
}

// FindRenderedDocument implements papi.InvoicesClient. The render job
// reports only success, not the document it produced, so the invoice's
// documents are re-listed newest first and the top entry returned. This
// is a workaround for an API limitation, not a deliberate design.
func (c *InvoicesClient) FindRenderedDocument(ctx context.Context, invoiceID string) (*papi.ResourceEnvelope, error) {
	params := papi.NewQueryParams().WithPage(1).WithSort("-created_at")

	list, err := c.client.ListWithPath(ctx, "/v2/invoices/"+invoiceID+"/documents", params)
	if err != nil {
		return nil, err
	}

	if len(list.Data) == 0 {
		return nil, fmt.Errorf("%w: invoice %s", papi.ErrDocumentNotReady, invoiceID)
	}

	return &papi.ResourceEnvelope{Data: list.Data[0], Included: list.Included}, nil
}
