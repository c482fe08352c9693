package chat

// DeriveKey builds the canonical conversation key for a pair of users.
// The two IDs are sorted lexicographically and joined, so the key is
// independent of who is sender and who is receiver:
//
//	DeriveKey(a, b) == DeriveKey(b, a)
//
// A user has no conversation with themselves; that pair is rejected.
func DeriveKey(a, b string) (string, error) {
	if a == b {
		return "", ErrInvalidPair
	}
	if a > b {
		a, b = b, a
	}
	return a + "_" + b, nil
}
