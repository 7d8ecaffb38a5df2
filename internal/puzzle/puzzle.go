// Package puzzle parses the pipe-delimited puzzle payloads stored on
// puzzle clues and checks submitted answers against them.
//
// Payload formats:
//
//	PUZZLE_TEXT_RIDDLE  "<riddle>|<answer>"
//	PUZZLE_MATH_SIMPLE  "<a>|<ADD|SUBTRACT|MULTIPLY>|<b>|<answer>"
//
// The stored answer is authoritative. A math payload whose answer does not
// match its operands is not detected here.
package puzzle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/playperu/questhunt/internal/quest"
)

var ErrNotPuzzle = errors.New("clue type has no puzzle")

type Puzzle struct {
	Type   quest.ClueType
	Prompt string
	Answer string
}

var operatorSymbols = map[string]string{
	"ADD":      "+",
	"SUBTRACT": "-",
	"MULTIPLY": "*",
}

// Parse splits data according to t. A payload with the wrong number of
// fields yields quest.ErrMalformedPuzzleData.
func Parse(t quest.ClueType, data string) (Puzzle, error) {
	parts := strings.Split(data, "|")

	switch t {
	case quest.ClueTypeTextRiddle:
		if len(parts) != 2 {
			return Puzzle{}, fmt.Errorf("%w: riddle wants 2 fields, got %d", quest.ErrMalformedPuzzleData, len(parts))
		}
		riddle, answer := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if riddle == "" || answer == "" {
			return Puzzle{}, fmt.Errorf("%w: riddle has empty field", quest.ErrMalformedPuzzleData)
		}
		return Puzzle{Type: t, Prompt: riddle, Answer: answer}, nil

	case quest.ClueTypeMathSimple:
		if len(parts) != 4 {
			return Puzzle{}, fmt.Errorf("%w: math puzzle wants 4 fields, got %d", quest.ErrMalformedPuzzleData, len(parts))
		}
		a, op, b, answer := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]), strings.TrimSpace(parts[3])
		symbol, ok := operatorSymbols[strings.ToUpper(op)]
		if !ok {
			return Puzzle{}, fmt.Errorf("%w: unknown operator %q", quest.ErrMalformedPuzzleData, op)
		}
		if a == "" || b == "" || answer == "" {
			return Puzzle{}, fmt.Errorf("%w: math puzzle has empty field", quest.ErrMalformedPuzzleData)
		}
		return Puzzle{
			Type:   t,
			Prompt: fmt.Sprintf("Solve: %s %s %s", a, symbol, b),
			Answer: answer,
		}, nil
	}

	return Puzzle{}, fmt.Errorf("%w: %s", ErrNotPuzzle, t)
}

// Check compares a submitted answer with the stored one, ignoring case and
// surrounding whitespace.
func (p Puzzle) Check(submitted string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), p.Answer)
}

// CheckAnswer parses data and checks submitted against it.
func CheckAnswer(t quest.ClueType, data, submitted string) (bool, error) {
	p, err := Parse(t, data)
	if err != nil {
		return false, err
	}
	return p.Check(submitted), nil
}
