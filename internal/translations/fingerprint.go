package translations

import (
	"encoding/hex"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"

	cerrors "github.com/EvanderIV/theology/core/errors"
)

// fingerprintLen is the number of hex characters kept from the digest.
const fingerprintLen = 16

// Fingerprint returns a short BLAKE3 digest of data.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// FingerprintFile hashes a file without reading it into memory.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", cerrors.NewIO("open", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", cerrors.NewIO("read", path, err)
	}
	return sumHex(h), nil
}

func sumHex(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))[:fingerprintLen]
}
