package layout

import (
	"encoding/json"
	"fmt"
)

const (
	kindRegistered   = "registered"
	kindUnregistered = "unregistered"
)

// ProductRef is either Registered or Unregistered. Switch on the concrete
// type; there are no other implementations.
type ProductRef interface {
	DisplayName() string
	isProductRef()
}

// Registered references a catalog product
type Registered struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
}

// Unregistered is a placeholder with no product identity. It never
// contributes to the expected counts of a compliance scan.
type Unregistered struct {
	Name string `json:"name"`
}

func (r Registered) DisplayName() string   { return r.Name }
func (u Unregistered) DisplayName() string { return u.Name }

func (Registered) isProductRef()   {}
func (Unregistered) isProductRef() {}

// MarshalJSON writes the tagged form so a bare reference can be dropped into a layout
func (r Registered) MarshalJSON() ([]byte, error) { return marshalProductRef(r) }

// MarshalJSON writes the tagged form so a bare reference can be dropped into a layout
func (u Unregistered) MarshalJSON() ([]byte, error) { return marshalProductRef(u) }

type productRefJSON struct {
	Kind      string `json:"kind"`
	ProductID string `json:"productId,omitempty"`
	Name      string `json:"name"`
}

func marshalProductRef(ref ProductRef) ([]byte, error) {
	switch v := ref.(type) {
	case Registered:
		return json.Marshal(productRefJSON{Kind: kindRegistered, ProductID: v.ProductID, Name: v.Name})
	case Unregistered:
		return json.Marshal(productRefJSON{Kind: kindUnregistered, Name: v.Name})
	case nil:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unknown product reference %T", ref)
	}
}

func unmarshalProductRef(data []byte) (ProductRef, error) {
	var raw productRefJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	switch raw.Kind {
	case kindRegistered:
		if raw.ProductID == "" {
			return nil, fmt.Errorf("registered product %q without productId", raw.Name)
		}
		return Registered{ProductID: raw.ProductID, Name: raw.Name}, nil
	case kindUnregistered:
		return Unregistered{Name: raw.Name}, nil
	case "":
		if raw.ProductID != "" {
			return Registered{ProductID: raw.ProductID, Name: raw.Name}, nil
		}
		return Unregistered{Name: raw.Name}, nil
	default:
		return nil, fmt.Errorf("unknown product kind %q", raw.Kind)
	}
}
