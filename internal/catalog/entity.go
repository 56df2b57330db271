package catalog

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Kind names an entity collection of the upstream catalog.
type Kind string

const (
	KindPerson Kind = "person"
	KindMovie  Kind = "movie"
)

// Entity is one upstream JSON object. The raw payload is passed through to
// clients untouched; only the id is interpreted.
type Entity struct {
	ID  int64
	Raw json.RawMessage
}

// MarshalJSON writes the upstream object back out unchanged.
func (e Entity) MarshalJSON() ([]byte, error) {
	if len(e.Raw) == 0 {
		return []byte("null"), nil
	}
	return e.Raw, nil
}

// UnmarshalJSON keeps a copy of the object and extracts its numeric id.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var head struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("decode catalog entity: %w", err)
	}
	e.ID = head.ID
	e.Raw = append(e.Raw[:0], data...)
	return nil
}
