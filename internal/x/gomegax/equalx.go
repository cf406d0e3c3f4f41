package gomegax

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/onsi/gomega/format"
	"github.com/onsi/gomega/types"
)

// DefaultOptions are the comparison options used by EqualX() when none are
// given.
//
// Times are compared by their Equal() method, so a row read back from a
// database in a different location still matches.
var DefaultOptions = cmp.Options{
	cmpopts.EquateEmpty(),
}

// EqualX returns a matcher that compares values structurally using go-cmp,
// and reports the difference when they do not match.
//
// If options are given they are used in place of DefaultOptions.
func EqualX(expected any, options ...cmp.Option) types.GomegaMatcher {
	m := &cmpMatcher{
		expected: expected,
		options:  DefaultOptions,
	}

	if len(options) != 0 {
		m.options = options
	}

	return m
}

type cmpMatcher struct {
	expected any
	options  cmp.Options
}

func (m *cmpMatcher) Match(actual any) (bool, error) {
	return cmp.Equal(actual, m.expected, m.options), nil
}

func (m *cmpMatcher) FailureMessage(actual any) string {
	if a, ok := actual.(string); ok {
		if e, ok := m.expected.(string); ok {
			return format.MessageWithDiff(a, "to equal", e)
		}
	}

	return m.message(actual, "to equal")
}

func (m *cmpMatcher) NegatedFailureMessage(actual any) string {
	return m.message(actual, "not to equal")
}

func (m *cmpMatcher) message(actual any, relation string) string {
	diff := cmp.Diff(m.expected, actual, m.options)

	return format.Message(actual, relation, m.expected) +
		"\n\nDiff (-expected +actual):\n" +
		format.IndentString(diff, 1)
}
