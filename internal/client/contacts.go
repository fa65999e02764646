package client

import (
	"context"

	"github.com/paperledge/papi/pkg/papi"
)

// ContactsClient implements papi.ContactsClient.
type ContactsClient struct {
	client *Client
}

// Create implements papi.ContactsClient.
func (c *ContactsClient) Create(ctx context.Context, attrs *papi.ContactAttributes) (*papi.ResourceEnvelope, error) {
	obj, err := papi.NewResource(papi.TypeContact, attrs)
	if err != nil {
		return nil, err
	}

	return c.client.postEnvelope(ctx, "/v2/contacts", &papi.ResourceEnvelope{Data: obj})
}

// Get implements papi.ContactsClient.
func (c *ContactsClient) Get(ctx context.Context, contactID string, params *papi.QueryParams) (*papi.ResourceEnvelope, error) {
	return c.client.getEnvelope(ctx, "/v2/contacts/"+contactID, params)
}

// List implements papi.ContactsClient.
func (c *ContactsClient) List(ctx context.Context, params *papi.QueryParams) (*papi.ListEnvelope, error) {
	return c.client.ListWithPath(ctx, "/v2/contacts", params)
}

// Delete implements papi.ContactsClient.
func (c *ContactsClient) Delete(ctx context.Context, contactID string) error {
	return c.client.delete(ctx, "/v2/contacts/"+contactID)
}
