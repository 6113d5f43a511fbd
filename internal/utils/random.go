package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// RandomIntInRange returns a uniformly distributed integer in [min, max].
func RandomIntInRange(min, max int64) int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		panic(err)
	}
	return min + n.Int64()
}

// SixDigitCode returns a code in the inclusive range 100000-999999.
func SixDigitCode() string {
	return fmt.Sprintf("%06d", RandomIntInRange(100000, 999999))
}
