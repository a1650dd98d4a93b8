package ranker

import (
	"math"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/errors"
)

// WeightFunc weighs a term with frequency tf in a document of docLen terms,
// where df of the n documents in the collection contain the term.
type WeightFunc func(tf, df, n, docLen int) (float64, error)

// Built-in weights. Logarithms are base 10.
var weights = map[string]WeightFunc{
	"tf":             checked(func(tf, df, n, docLen int) (float64, error) { return float64(tf), nil }),
	"logtf":          checked(func(tf, df, n, docLen int) (float64, error) { return logTF(tf) }),
	"idf":            checked(func(tf, df, n, docLen int) (float64, error) { return idf(df, n) }),
	"tf-df":          checked(tfDF),
	"tf-idf":         checked(product(rawTF, idf, nil)),
	"logtf-idf":      checked(product(logTF, idf, nil)),
	"tf-idf-norm":    checked(product(rawTF, idf, inverseLen)),
	"logtf-idf-norm": checked(product(logTF, idf, inverseLen)),
}

// ByName returns a built-in weight function.
func ByName(name string) (WeightFunc, error) {
	fn, ok := weights[name]
	if !ok {
		return nil, apperrors.InvalidWeightf("unknown weight function %q", name)
	}
	return fn, nil
}

func Names() []string {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func rawTF(tf int) (float64, error) {
	return float64(tf), nil
}

func logTF(tf int) (float64, error) {
	if tf <= 0 {
		return 0, apperrors.InvalidWeightf("log of term frequency %d", tf)
	}
	return 1 + math.Log10(float64(tf)), nil
}

func idf(df, n int) (float64, error) {
	if df <= 0 || n <= 0 {
		return 0, apperrors.InvalidWeightf("idf with df=%d over %d documents", df, n)
	}
	return math.Log10(float64(n) / float64(df)), nil
}

func tfDF(tf, df, n, docLen int) (float64, error) {
	if df <= 0 {
		return 0, apperrors.InvalidWeightf("document frequency %d", df)
	}
	return float64(tf) / float64(df), nil
}

func inverseLen(docLen int) (float64, error) {
	if docLen <= 0 {
		return 0, apperrors.InvalidWeightf("document length %d", docLen)
	}
	return 1 / float64(docLen), nil
}

func product(ptf func(int) (float64, error), pdf func(df, n int) (float64, error), norm func(int) (float64, error)) WeightFunc {
	return func(tf, df, n, docLen int) (float64, error) {
		a, err := ptf(tf)
		if err != nil {
			return 0, err
		}
		b, err := pdf(df, n)
		if err != nil {
			return 0, err
		}
		w := a * b
		if norm != nil {
			c, err := norm(docLen)
			if err != nil {
				return 0, err
			}
			w *= c
		}
		return w, nil
	}
}

// checked rejects results that are not finite.
func checked(fn WeightFunc) WeightFunc {
	return func(tf, df, n, docLen int) (float64, error) {
		w, err := fn(tf, df, n, docLen)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return 0, apperrors.InvalidWeightf("weight is %v for tf=%d df=%d n=%d len=%d", w, tf, df, n, docLen)
		}
		return w, nil
	}
}
