package kg

import "fmt"

// Fact is a subject-predicate-object edge in the graph.
type Fact struct {
	Subject   KGID    `json:"subject"`
	Predicate KGID    `json:"predicate"`
	Object    KGValue `json:"object"`
}

// Validate checks that the fact is storable: subject and predicate must
// name a node and the object must be a well-formed value.
func (f Fact) Validate() error {
	if !f.Subject.Valid() {
		return fmt.Errorf("kg: fact has empty subject")
	}
	if !f.Predicate.Valid() {
		return fmt.Errorf("kg: fact has empty predicate")
	}
	return f.Object.Validate()
}

// Equal compares facts by canonical identity.
func (f Fact) Equal(other Fact) bool {
	return f.Subject.Equal(other.Subject) &&
		f.Predicate.Equal(other.Predicate) &&
		Equal(f.Object, other.Object)
}

func (f Fact) String() string {
	return fmt.Sprintf("%s %s %s", f.Subject, f.Predicate, f.Object)
}

// EncodeFact serializes a fact.
func EncodeFact(f Fact) ([]byte, error) {
	obj, err := Encode(f.Object)
	if err != nil {
		return nil, err
	}
	buf := appendID(nil, f.Subject)
	buf = appendID(buf, f.Predicate)
	return append(buf, obj...), nil
}

// DecodeFact deserializes a fact produced by EncodeFact.
func DecodeFact(data []byte) (Fact, error) {
	subject, rest, err := decodeID(data)
	if err != nil {
		return Fact{}, err
	}
	predicate, rest, err := decodeID(rest)
	if err != nil {
		return Fact{}, err
	}
	object, rest, err := decodeValue(rest)
	if err != nil {
		return Fact{}, err
	}
	if len(rest) != 0 {
		return Fact{}, fmt.Errorf("kg: %d trailing bytes after fact", len(rest))
	}
	return Fact{Subject: subject, Predicate: predicate, Object: object}, nil
}
