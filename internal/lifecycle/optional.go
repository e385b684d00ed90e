package lifecycle

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// OptionalID is a reference that may be unresolved. The zero value is unset.
// Callers read it through Get so the unresolved case is always handled.
type OptionalID struct {
	value string
	set   bool
}

func SomeID(id string) OptionalID {
	if id == "" {
		return OptionalID{}
	}
	return OptionalID{value: id, set: true}
}

func NoID() OptionalID { return OptionalID{} }

func (o OptionalID) Get() (string, bool) { return o.value, o.set }

func (o OptionalID) IsSet() bool { return o.set }

func (o OptionalID) String() string {
	if !o.set {
		return "<unset>"
	}
	return o.value
}

func (o OptionalID) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *OptionalID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = OptionalID{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*o = SomeID(s)
	return nil
}

// Value stores unset references as SQL NULL.
func (o OptionalID) Value() (driver.Value, error) {
	if !o.set {
		return nil, nil
	}
	return o.value, nil
}

func (o *OptionalID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*o = OptionalID{}
	case string:
		*o = SomeID(v)
	case []byte:
		*o = SomeID(string(v))
	default:
		return fmt.Errorf("lifecycle: cannot scan %T into OptionalID", src)
	}
	return nil
}
