package app

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"math-quiz-service/internal/domain"
)

const (
	choiceCount = 4
	// offsets are drawn from [offsetLow, offsetHigh] before any widening
	offsetLow  = -5
	offsetHigh = 4
	// consecutive duplicate draws tolerated before the offset span doubles
	maxRejections = 10
)

// Generator builds multiplication questions. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator returns a Generator seeded with the current time.
func NewGenerator() *Generator {
	return NewGeneratorWithSeed(time.Now().UnixNano())
}

// NewGeneratorWithSeed is used by tests for reproducible questions.
func NewGeneratorWithSeed(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate draws a question for the bracket.
func (g *Generator) Generate(bracket domain.AgeBracket) domain.Question {
	g.mu.Lock()
	defer g.mu.Unlock()

	limit := bracket.OperandMax()
	a := g.rnd.Intn(limit) + 1
	b := g.rnd.Intn(limit) + 1
	return g.questionFor(a, b)
}

func (g *Generator) questionFor(a, b int) domain.Question {
	answer := a * b
	choices := append([]int{answer}, g.distractors(answer)...)
	g.rnd.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})
	return domain.Question{
		Prompt:        fmt.Sprintf("%d × %d = ?", a, b),
		CorrectAnswer: answer,
		Choices:       choices,
	}
}

// distractors returns choiceCount-1 distinct values >= 1 that differ from answer.
// Offsets are clamped at 1, so small answers collide often; after maxRejections
// misses in a row the span doubles, which always leaves enough candidates.
func (g *Generator) distractors(answer int) []int {
	seen := map[int]struct{}{answer: {}}
	out := make([]int, 0, choiceCount-1)
	low, high := offsetLow, offsetHigh
	misses := 0
	for len(out) < choiceCount-1 {
		offset := low + g.rnd.Intn(high-low+1)
		candidate := answer + offset
		if candidate < 1 {
			candidate = 1
		}
		if _, dup := seen[candidate]; dup {
			misses++
			if misses >= maxRejections {
				low, high = low*2, high*2+1
				misses = 0
			}
			continue
		}
		misses = 0
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out
}
