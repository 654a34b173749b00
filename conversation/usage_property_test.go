package conversation_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agentrun/core/conversation"
)

func genOptionalInt() gopter.Gen {
	return gen.PtrOf(gen.IntRange(0, 10000))
}

func genUsage() gopter.Gen {
	return gopter.CombineGens(genOptionalInt(), genOptionalInt()).Map(func(vals []any) conversation.Usage {
		return conversation.Usage{
			PromptTokens:     vals[0].(*int),
			CompletionTokens: vals[1].(*int),
		}
	})
}

// TestUsage_SumIsComponentwiseProperty verifies invariant 5: usage monoid.
// Summing any sequence of per-call Usages equals the componentwise sum of
// the values each field actually carried, and a field stays nil only when
// every contribution to it was nil.
func TestUsage_SumIsComponentwiseProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("Sum matches componentwise totals and absorbs to nil only when every contribution is nil", prop.ForAll(
		func(usages []conversation.Usage) bool {
			total := conversation.Sum(usages...)

			wantPrompt, anyPrompt := 0, false
			wantCompletion, anyCompletion := 0, false
			for _, u := range usages {
				if u.PromptTokens != nil {
					wantPrompt += *u.PromptTokens
					anyPrompt = true
				}
				if u.CompletionTokens != nil {
					wantCompletion += *u.CompletionTokens
					anyCompletion = true
				}
			}

			if anyPrompt {
				if total.PromptTokens == nil || *total.PromptTokens != wantPrompt {
					return false
				}
			} else if total.PromptTokens != nil {
				return false
			}

			if anyCompletion {
				if total.CompletionTokens == nil || *total.CompletionTokens != wantCompletion {
					return false
				}
			} else if total.CompletionTokens != nil {
				return false
			}

			return true
		},
		gen.SliceOfN(6, genUsage()),
	))

	properties.Property("Sum is associative: folding in any grouping yields the same total", prop.ForAll(
		func(a, b, c conversation.Usage) bool {
			left := a.Add(b).Add(c)
			right := a.Add(b.Add(c))
			return usageEqual(left, right)
		},
		genUsage(), genUsage(), genUsage(),
	))

	properties.TestingRun(t)
}

func usageEqual(a, b conversation.Usage) bool {
	return intPtrEqual(a.PromptTokens, b.PromptTokens) && intPtrEqual(a.CompletionTokens, b.CompletionTokens)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
