package aligner

import "fmt"

// Op is the closed set of word-level alignment operations.
type Op int

const (
	// OpMatch pairs identical tokens.
	OpMatch Op = iota
	// OpSub pairs differing tokens occupying the same position.
	OpSub
	// OpIns marks a transcript token with no book counterpart.
	OpIns
	// OpDel marks a book token missing from the transcript.
	OpDel
)

// String returns the wire name of the operation.
func (op Op) String() string {
	switch op {
	case OpMatch:
		return "match"
	case OpSub:
		return "sub"
	case OpIns:
		return "ins"
	case OpDel:
		return "del"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// MarshalText serializes the operation by its wire name.
func (op Op) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// UnmarshalText parses a wire name back into the operation, so index
// artifacts written by the pipeline can be read back by downstream tools.
func (op *Op) UnmarshalText(text []byte) error {
	switch string(text) {
	case "match":
		*op = OpMatch
	case "sub":
		*op = OpSub
	case "ins":
		*op = OpIns
	case "del":
		*op = OpDel
	default:
		return fmt.Errorf("unknown alignment op %q", text)
	}
	return nil
}

// WordAlign is one word-level alignment record in filtered coordinate space.
// Exactly one of BookIdx/ASRIdx is nil for OpIns/OpDel; both are set for
// OpMatch/OpSub. Construct records only through Match, Sub, Ins and Del so
// the nil-ness rule holds by construction.
type WordAlign struct {
	BookIdx *int    `json:"bookIdx"`
	ASRIdx  *int    `json:"asrIdx"`
	Op      Op      `json:"op"`
	Reason  string  `json:"reason"`
	Score   float64 `json:"score"`
}

// Match builds an OpMatch record pairing book and transcript positions.
func Match(bookIdx, asrIdx int, reason string, score float64) WordAlign {
	return WordAlign{BookIdx: &bookIdx, ASRIdx: &asrIdx, Op: OpMatch, Reason: reason, Score: score}
}

// Sub builds an OpSub record pairing book and transcript positions.
func Sub(bookIdx, asrIdx int, reason string, score float64) WordAlign {
	return WordAlign{BookIdx: &bookIdx, ASRIdx: &asrIdx, Op: OpSub, Reason: reason, Score: score}
}

// Ins builds an OpIns record for a transcript-only token.
func Ins(asrIdx int, reason string) WordAlign {
	return WordAlign{ASRIdx: &asrIdx, Op: OpIns}.withReason(reason)
}

// Del builds an OpDel record for a book-only token.
func Del(bookIdx int, reason string) WordAlign {
	return WordAlign{BookIdx: &bookIdx, Op: OpDel}.withReason(reason)
}

func (w WordAlign) withReason(reason string) WordAlign {
	w.Reason = reason
	return w
}

// Validate checks the per-operation index presence rule. It guards artifact
// boundaries against hand-built records that bypassed the constructors.
func (w WordAlign) Validate() error {
	switch w.Op {
	case OpMatch, OpSub:
		if w.BookIdx == nil || w.ASRIdx == nil {
			return fmt.Errorf("%s record requires both indices", w.Op)
		}
	case OpIns:
		if w.BookIdx != nil || w.ASRIdx == nil {
			return fmt.Errorf("ins record requires only an asr index")
		}
	case OpDel:
		if w.BookIdx == nil || w.ASRIdx != nil {
			return fmt.Errorf("del record requires only a book index")
		}
	default:
		return fmt.Errorf("unknown op %d", int(w.Op))
	}
	if w.Score < 0 || w.Score > 1 {
		return fmt.Errorf("score %f outside [0,1]", w.Score)
	}
	return nil
}
