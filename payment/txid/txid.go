// generate human-readable transaction identifiers for payment records,
// eg. DON-12345678-AB3F9C

package txid

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const suffixLen = 6

// MaxAttempts bounds the regenerate-and-retry loop callers run when an
// identifier collides with an existing record.
const MaxAttempts = 5

var ErrGenerationExhausted = errors.New("txid: generation attempts exhausted")

type Generator struct {
	Prefix string
}

func New(prefix string) *Generator {
	return &Generator{Prefix: prefix}
}

// Generate returns a new identifier: prefix, the low-order 8 digits of the
// current unix timestamp, and 6 random base36 characters. Uniqueness is not
// guaranteed here; the record store checks its unique index and the caller
// retries up to MaxAttempts.
func (g *Generator) Generate() string {
	ts := time.Now().Unix() % 100000000

	buf := make([]byte, suffixLen)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = base36[int(b)%len(base36)]
	}

	return fmt.Sprintf("%s-%08d-%s", g.Prefix, ts, string(buf))
}
