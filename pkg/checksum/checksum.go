package checksum

import (
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
)

// File returns the hex encoded xxh3-128 digest of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Reader(f)
}

func Reader(r io.Reader) (string, error) {
	h := xxh3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	sum := h.Sum128().Bytes()
	return fmt.Sprintf("%x", sum[:]), nil
}

func Bytes(b []byte) string {
	sum := xxh3.Hash128(b).Bytes()
	return fmt.Sprintf("%x", sum[:])
}
