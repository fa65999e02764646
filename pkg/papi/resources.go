package papi

import "context"

// Resource type names on the wire.
const (
	TypeInvoice  = "invoice"
	TypeContact  = "contact"
	TypeDocument = "document"
	TypeJob      = "job"
)

// Invoice states.
const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusOpen      = "open"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusArchived  = "archived"
	InvoiceStatusCancelled = "cancelled"
)

// InvoiceAttributes are the attributes of an invoice resource.
type InvoiceAttributes struct {
	Number     string `json:"number,omitempty"      yaml:"number,omitempty"`
	Status     string `json:"status,omitempty"      yaml:"status,omitempty"`
	Currency   string `json:"currency,omitempty"    yaml:"currency,omitempty"`
	TotalCents int64  `json:"total_cents,omitempty" yaml:"total_cents,omitempty"`
	IssuedOn   string `json:"issued_on,omitempty"   yaml:"issued_on,omitempty"`
	DueOn      string `json:"due_on,omitempty"      yaml:"due_on,omitempty"`
	Note       string `json:"note,omitempty"        yaml:"note,omitempty"`
}

// ContactAttributes are the attributes of a contact resource.
type ContactAttributes struct {
	Name  string `json:"name"             yaml:"name"`
	Email string `json:"email,omitempty"  yaml:"email,omitempty"`
	VATID string `json:"vat_id,omitempty" yaml:"vat_id,omitempty"`
}

// DocumentAttributes are the attributes of a rendered document resource.
type DocumentAttributes struct {
	ContentType string `json:"content_type"     yaml:"content_type"`
	URL         string `json:"url"              yaml:"url"`
	InvoiceID   string `json:"invoice_id"       yaml:"invoice_id"`
	JobID       string `json:"job_id,omitempty" yaml:"job_id,omitempty"`
}

// InvoiceCreateRequest carries the attributes and related contact for a
// new invoice.
type InvoiceCreateRequest struct {
	Attributes InvoiceAttributes
	ContactID  string
}

// Envelope builds the request body for the create call, wiring the
// contact relationship when present.
func (r *InvoiceCreateRequest) Envelope() (*ResourceEnvelope, error) {
	obj, err := NewResource(TypeInvoice, r.Attributes)
	if err != nil {
		return nil, err
	}

	if r.ContactID != "" {
		obj.Relationships = map[string]Relationship{
			"contact": {Data: &ResourceIdentifier{ID: r.ContactID, Type: TypeContact}},
		}
	}

	return &ResourceEnvelope{Data: obj}, nil
}

// Capability interfaces, implemented per concrete resource client rather
// than as structural mixins.

// Archivable resources can be moved to the archived state.
type Archivable interface {
	Archive(ctx context.Context, id string) (*ResourceEnvelope, error)
}

// Cancellable resources can be cancelled.
type Cancellable interface {
	Cancel(ctx context.Context, id string) (*ResourceEnvelope, error)
}

// Payable resources can be marked as paid.
type Payable interface {
	MarkPaid(ctx context.Context, id string) (*ResourceEnvelope, error)
}

// InvoicesClient manages invoice resources.
type InvoicesClient interface {
	Archivable
	Cancellable
	Payable

	Create(ctx context.Context, req *InvoiceCreateRequest) (*ResourceEnvelope, error)
	Get(ctx context.Context, invoiceID string, params *QueryParams) (*ResourceEnvelope, error)
	List(ctx context.Context, params *QueryParams) (*ListEnvelope, error)
	Update(ctx context.Context, invoiceID string, attrs *InvoiceAttributes) (*ResourceEnvelope, error)
	Delete(ctx context.Context, invoiceID string) error

	// Render submits an asynchronous document render and returns the
	// tracking job.
	Render(ctx context.Context, invoiceID string) (*Job, error)
	// FindRenderedDocument recovers the document created by a render job.
	// The render response carries only a job id, so the first page of the
	// invoice's documents is re-listed; this is a workaround for an API
	// limitation, not a deliberate design.
	FindRenderedDocument(ctx context.Context, invoiceID string) (*ResourceEnvelope, error)
}

// ContactsClient manages contact resources.
type ContactsClient interface {
	Create(ctx context.Context, attrs *ContactAttributes) (*ResourceEnvelope, error)
	Get(ctx context.Context, contactID string, params *QueryParams) (*ResourceEnvelope, error)
	List(ctx context.Context, params *QueryParams) (*ListEnvelope, error)
	Delete(ctx context.Context, contactID string) error
}
