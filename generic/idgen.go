package generic

import (
	"context"
	"fmt"
	"math/rand"
)

// DefaultIDAttempts bounds how many candidates are tried before giving up.
const DefaultIDAttempts = 20

// Candidate produces a fresh identifier candidate.
type Candidate func() string

// ExistsFunc reports whether an identifier is already taken.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// GenerateUnique draws candidates until one is free, at most attempts times.
// The store's uniqueness constraint stays the final arbiter; this only keeps
// collisions with the human-readable short ids rare.
func GenerateUnique(ctx context.Context, attempts int, next Candidate, exists ExistsFunc) (string, error) {
	if attempts <= 0 {
		attempts = DefaultIDAttempts
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		id := next()
		taken, err := exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrIDSpaceExhausted, attempts)
}

// PrefixedDigits yields ids like "BK-0421".
func PrefixedDigits(prefix string, digits int) Candidate {
	limit := pow10(digits)
	return func() string {
		return fmt.Sprintf("%s%0*d", prefix, digits, rand.Intn(limit))
	}
}

// MonthlyDigits yields ids like "BK-2603-004211": the year and month of the
// clock, then random digits. Each month starts with a fresh space of
// 10^digits ids.
func MonthlyDigits(prefix string, clock Clock, digits int) Candidate {
	limit := pow10(digits)
	return func() string {
		month := clock.Now().UTC().Format("0601")
		return fmt.Sprintf("%s%s-%0*d", prefix, month, digits, rand.Intn(limit))
	}
}

func pow10(n int) int {
	v := 1
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

// TimestampedID yields ids like "LN-1718000000000-4821".
func TimestampedID(prefix string, clock Clock) Candidate {
	return func() string {
		return fmt.Sprintf("%s-%d-%04d", prefix, clock.Now().UnixMilli(), rand.Intn(10000))
	}
}

// SequenceID is a deterministic Candidate for tests.
func SequenceID(ids ...string) Candidate {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}
