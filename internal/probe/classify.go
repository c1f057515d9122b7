package probe

import "strings"

// Classification buckets a failed simulation or submission. ResourceLimit
// means "try smaller"; FeeShortfall and Other are hard stops. Conflating
// them would cause infinite fruitless shrinking.
type Classification int

const (
	ClassAccepted Classification = iota
	ClassResourceLimit
	ClassFeeShortfall
	ClassOther
)

func (c Classification) String() string {
	switch c {
	case ClassAccepted:
		return "accepted"
	case ClassResourceLimit:
		return "resource_limit"
	case ClassFeeShortfall:
		return "fee_shortfall"
	default:
		return "other_failure"
	}
}

// Default pattern sets cover the protocol's current abort vocabulary. They
// are configuration, not fixed logic: porting to another protocol means
// swapping the lists, not the classifier.
var (
	DefaultLimitPatterns = []string{
		"insufficient",
		"exceed",
		"not enough",
		"too much",
		"unhealthy",
		"borrow limit",
		"withdraw limit",
	}
	DefaultFeePatterns = []string{
		"gas budget",
		"gas balance",
		"insufficient gas",
		"unable to pay",
		"gasbalancetoolow",
	}
)

// Classifier pattern-matches rejection messages against configured substring
// sets. Fee patterns are checked first: a submission that trips both a fee
// and a limit pattern is a fee problem, and shrinking the principal cannot
// fix it.
type Classifier struct {
	limitPatterns []string
	feePatterns   []string
}

func NewClassifier(limitPatterns, feePatterns []string) *Classifier {
	if len(limitPatterns) == 0 {
		limitPatterns = DefaultLimitPatterns
	}
	if len(feePatterns) == 0 {
		feePatterns = DefaultFeePatterns
	}
	return &Classifier{
		limitPatterns: lowercase(limitPatterns),
		feePatterns:   lowercase(feePatterns),
	}
}

func (c *Classifier) Classify(errorMessage string) Classification {
	msg := strings.ToLower(strings.TrimSpace(errorMessage))
	if msg == "" {
		return ClassAccepted
	}
	for _, p := range c.feePatterns {
		if strings.Contains(msg, p) {
			return ClassFeeShortfall
		}
	}
	for _, p := range c.limitPatterns {
		if strings.Contains(msg, p) {
			return ClassResourceLimit
		}
	}
	return ClassOther
}

func lowercase(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
