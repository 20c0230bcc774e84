package split

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/stellarlinkco/health-corpus/internal/record"
)

// ErrNoData indicates that no source contributed any records; a build cannot
// proceed past this point.
var ErrNoData = errors.New("split: no data available")

// Shuffle returns a copy of records permuted by a seeded Fisher-Yates shuffle.
// The permutation is fully determined by seed and len(records).
func Shuffle(records []record.Record, seed int64) []record.Record {
	out := make([]record.Record, len(records))
	copy(out, records)

	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Split shuffles one source set and cuts it at floor(len*ratio): the first
// part becomes train, the remainder test. An empty set yields two empty
// halves.
func Split(set *record.SourceSet, ratio float64, seed int64) (*record.Split, error) {
	if set == nil {
		return nil, errors.New("split: nil source set")
	}
	if ratio <= 0 || ratio >= 1 {
		return nil, fmt.Errorf("split: train ratio must be between 0 and 1 exclusive (got %v)", ratio)
	}

	shuffled := Shuffle(set.Records, seed)
	cut := int(float64(len(shuffled)) * ratio)

	return &record.Split{
		Train: shuffled[:cut:cut],
		Test:  shuffled[cut:],
	}, nil
}

// Combine concatenates all per-source train halves (in the given source
// order) into one sequence, likewise all test halves, then reshuffles each
// combined half exactly once with the same seed. Membership is unchanged;
// only order moves.
func Combine(splits []*record.Split, seed int64) (*record.Corpus, error) {
	var train, test []record.Record
	for _, s := range splits {
		if s == nil {
			continue
		}
		train = append(train, s.Train...)
		test = append(test, s.Test...)
	}
	if len(train)+len(test) == 0 {
		return nil, ErrNoData
	}

	return &record.Corpus{
		Train: Shuffle(train, seed),
		Test:  Shuffle(test, seed),
	}, nil
}
