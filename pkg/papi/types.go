package papi

import (
	"encoding/json"
	"fmt"
)

// ResourceIdentifier names a resource by id and type without attributes.
type ResourceIdentifier struct {
	ID   string `json:"id"   yaml:"id"`
	Type string `json:"type" yaml:"type"`
}

// Relationship represents a to-one relationship.
type Relationship struct {
	Data *ResourceIdentifier `json:"data,omitempty" yaml:"data,omitempty"`
}

// ToManyRelationship represents a to-many relationship.
type ToManyRelationship struct {
	Data []ResourceIdentifier `json:"data" yaml:"data"`
}

// ResourceObject is one entity in the typed resource envelope convention:
// id, type, a raw attributes document, and named relationships.
type ResourceObject struct {
	ID            string                  `json:"id,omitempty"            yaml:"id,omitempty"`
	Type          string                  `json:"type"                    yaml:"type"`
	Attributes    json.RawMessage         `json:"attributes,omitempty"    yaml:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`
}

// Identifier returns the object's id/type pair.
func (o *ResourceObject) Identifier() ResourceIdentifier {
	return ResourceIdentifier{ID: o.ID, Type: o.Type}
}

// ResourceEnvelope is a single-resource body, optionally with sideloaded
// related resources.
type ResourceEnvelope struct {
	Data     ResourceObject   `json:"data"               yaml:"data"`
	Included []ResourceObject `json:"included,omitempty" yaml:"included,omitempty"`
}

// ListMeta carries pagination metadata for list responses.
type ListMeta struct {
	CurrentPage int `json:"current_page" yaml:"current_page"`
	TotalPages  int `json:"total_pages"  yaml:"total_pages"`
	TotalCount  int `json:"total_count"  yaml:"total_count"`
}

// ListEnvelope is a paginated list body.
type ListEnvelope struct {
	Data     []ResourceObject `json:"data"               yaml:"data"`
	Meta     ListMeta         `json:"meta"               yaml:"meta"`
	Included []ResourceObject `json:"included,omitempty" yaml:"included,omitempty"`
}

// GetRelated resolves the named relationship of the envelope's primary
// resource to the full sideloaded resource, not merely its identifier.
func (e *ResourceEnvelope) GetRelated(name string) (*ResourceObject, error) {
	rel, ok := e.Data.Relationships[name]
	if !ok || rel.Data == nil {
		return nil, fmt.Errorf("%w: %q", ErrRelationshipNotFound, name)
	}

	related := ResolveIncluded(e.Included, *rel.Data)
	if related == nil {
		return nil, fmt.Errorf("%w: %s %q", ErrNotIncluded, rel.Data.Type, rel.Data.ID)
	}

	return related, nil
}

// ResolveIncluded finds the full resource matching an identifier in a
// sideloaded set, or nil when absent.
func ResolveIncluded(included []ResourceObject, ident ResourceIdentifier) *ResourceObject {
	for i := range included {
		if included[i].ID == ident.ID && included[i].Type == ident.Type {
			return &included[i]
		}
	}

	return nil
}

// NewResource builds a resource object of the given type from a typed
// attributes value.
func NewResource(resourceType string, attributes any) (ResourceObject, error) {
	raw, err := EncodeAttributes(attributes)
	if err != nil {
		return ResourceObject{}, err
	}

	return ResourceObject{Type: resourceType, Attributes: raw}, nil
}

// EncodeAttributes marshals a typed attributes value into the raw form
// carried by a ResourceObject.
func EncodeAttributes(attributes any) (json.RawMessage, error) {
	raw, err := json.Marshal(attributes)
	if err != nil {
		return nil, fmt.Errorf("encoding attributes: %w", err)
	}

	return raw, nil
}

// DecodeResource unmarshals a resource object's attributes into T.
func DecodeResource[T any](obj ResourceObject) (T, error) {
	var out T

	if len(obj.Attributes) == 0 {
		return out, nil
	}

	if err := json.Unmarshal(obj.Attributes, &out); err != nil {
		return out, fmt.Errorf("decoding %s attributes: %w", obj.Type, err)
	}

	return out, nil
}
