package api

/*
	This file is the serializable vocabulary of the shelf:
	how keys are addressed in the backing tree, and what a commit returns.
*/

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

/*
	A KeyID is the content address of a key in the backing tree:
	the lowercase hex SHA-512 digest of the key's bytes.

	KeyIDs are one-way; recovering a key from a KeyID requires the
	key's index record (see IndexMark).
*/
type KeyID string

// Length in characters of every KeyID (a hex SHA-512 digest).
const KeyIDLen = sha512.Size * 2

/*
	IndexMark is appended to a KeyID to address the key's index record,
	the entry whose content is the plaintext key.

	Value entries never carry the mark, so enumerating marked entries
	enumerates exactly the live keys.
*/
const IndexMark = ".key"

func HashKey(key string) KeyID {
	sum := sha512.Sum512([]byte(key))
	return KeyID(hex.EncodeToString(sum[:]))
}

// Path of the value entry for this key.
func (id KeyID) ValuePath() string {
	return string(id)
}

// Path of the index record entry for this key.
func (id KeyID) IndexPath() string {
	return string(id) + IndexMark
}

/*
	Returns the KeyID addressed by an index record path,
	and false if the path is not an index record.
*/
func KeyIDFromIndexPath(pth string) (KeyID, bool) {
	if !strings.HasSuffix(pth, IndexMark) {
		return "", false
	}
	id := strings.TrimSuffix(pth, IndexMark)
	if len(id) != KeyIDLen || id != strings.ToLower(id) {
		return "", false
	}
	if _, err := hex.DecodeString(id); err != nil {
		return "", false
	}
	return KeyID(id), true
}

/*
	Describes a commit recorded in the shelf's history.

	Paths lists the entries the commit was restricted to;
	it is empty when the commit captured every outstanding change.
*/
type CommitResult struct {
	Hash    string   `refmt:"hash"`
	Message string   `refmt:"message"`
	Paths   []string `refmt:"paths,omitempty"`
}
