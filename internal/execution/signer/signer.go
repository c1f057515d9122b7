package signer

// Signer produces the sender address and serialized signatures for
// transaction digests.
type Signer interface {
	Address() string
	Sign(digest []byte) (string, error)
}
