package storage

import (
	"crypto/sha1"

	"github.com/wbrown/janus-kgstore/kg"
)

// IndexType represents the three key orderings facts are written under.
type IndexType byte

const (
	SPO IndexType = 0x01 // Subject-Predicate-Object
	POS IndexType = 0x02 // Predicate-Object-Subject
	OSP IndexType = 0x03 // Object-Subject-Predicate
)

// Meta keys live under their own tag so fact scans never see them.
const metaTag byte = 0x7f

var (
	metaTailKey = []byte{metaTag, 't'}
	metaWipeKey = []byte{metaTag, 'w'}
)

// component is a 20-byte hash of one triple position. Subjects and
// predicates hash their canonical qName; objects hash their canonical
// value bytes, so beamId differences never split identities.
type component [20]byte

func hashID(id kg.KGID) component {
	return sha1.Sum([]byte(id.QName))
}

func hashObject(v kg.KGValue) component {
	return sha1.Sum(kg.CanonicalBytes(v))
}

// factKey builds the full key for a fact under one ordering.
func factKey(index IndexType, f *kg.Fact) []byte {
	s := hashID(f.Subject)
	p := hashID(f.Predicate)
	o := hashObject(f.Object)

	key := make([]byte, 0, 1+3*len(s))
	key = append(key, byte(index))
	switch index {
	case SPO:
		key = append(key, s[:]...)
		key = append(key, p[:]...)
		key = append(key, o[:]...)
	case POS:
		key = append(key, p[:]...)
		key = append(key, o[:]...)
		key = append(key, s[:]...)
	case OSP:
		key = append(key, o[:]...)
		key = append(key, s[:]...)
		key = append(key, p[:]...)
	}
	return key
}

// scanPrefix builds the longest usable key prefix for a pattern under the
// given ordering. Components must be bound left to right.
func scanPrefix(index IndexType, components ...*component) []byte {
	prefix := []byte{byte(index)}
	for _, c := range components {
		if c == nil {
			break
		}
		prefix = append(prefix, c[:]...)
	}
	return prefix
}
