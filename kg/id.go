package kg

import (
	"fmt"
	"strings"
)

// KGID identifies a graph node. The qName is the canonical key (e.g.
// "rdf:type"); the beamId is an internal numeric accelerant assigned by the
// store and may be zero when the caller has never resolved the node.
type KGID struct {
	QName  string `json:"qName,omitempty"`
	BeamID uint64 `json:"beamId,omitempty"`
}

// NewKGID creates an identifier from a qName.
func NewKGID(qName string) KGID {
	return KGID{QName: qName}
}

// Valid reports whether the identifier names anything at all.
func (id KGID) Valid() bool {
	return id.QName != "" || id.BeamID != 0
}

// Equal compares identifiers by canonical qName. The beamId is only
// consulted when neither side carries a qName, since two independently
// obtained KGIDs may disagree on beamId for the same node.
func (id KGID) Equal(other KGID) bool {
	if id.QName != "" || other.QName != "" {
		return id.QName == other.QName
	}
	return id.BeamID == other.BeamID
}

// Compare orders identifiers by qName.
func (id KGID) Compare(other KGID) int {
	return strings.Compare(id.QName, other.QName)
}

// String returns the angle-bracketed qName, or "#<beamId>" if only the
// numeric id is known.
func (id KGID) String() string {
	if id.QName != "" {
		return "<" + id.QName + ">"
	}
	if id.BeamID != 0 {
		return fmt.Sprintf("#%d", id.BeamID)
	}
	return "<>"
}
