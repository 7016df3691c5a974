// Package classify decides whether a notification represents a genuine
// credit and extracts its transaction identifier.
package classify

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/zenorc/zenorc/internal/model"
)

// Policy is the complete rule table for accepting a notification. Both
// strict and lenient matching behaviors are expressed through configuration
// rather than separate code paths.
type Policy struct {
	// Markers are the currency/amount strings at least one of which must
	// appear in the subject or body, e.g. "₹5" or "Rs 5".
	Markers []string
	// CreditWords and DebitWords drive the credit/debit heuristic.
	CreditWords []string
	DebitWords  []string
	// CaseSensitive controls marker and word matching.
	CaseSensitive bool
	// RequireCreditLanguage rejects messages without positive-credit wording.
	RequireCreditLanguage bool
	// RejectIfDebitLanguage rejects messages containing debit wording, even
	// alongside credit wording; ambiguity is resolved toward rejection.
	RejectIfDebitLanguage bool
}

// DefaultPolicy returns the strict policy: credit wording required, any
// debit wording disqualifies.
func DefaultPolicy(markers []string) Policy {
	return Policy{
		Markers:               markers,
		CreditWords:           []string{"credited", "credit", "received"},
		DebitWords:            []string{"debited", "debit", "reversed", "deducted"},
		RequireCreditLanguage: true,
		RejectIfDebitLanguage: true,
	}
}

// referencePatterns are tried in order, most specific first. The first
// submatch of the first pattern that matches the body wins.
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)UPI\s*Ref(?:erence)?\s*(?:No\.?|ID)?[:\s]*(\d{6,})`),
	regexp.MustCompile(`(?i)Reference\s*No\.?[:\s]*(\d+)`),
	regexp.MustCompile(`(?i)Txn\s*(?:ID|No)\.?[:\s]*([A-Za-z0-9]{6,})`),
}

// Classifier applies a Policy to notifications. It is pure: no I/O, no
// stored state beyond the policy and a clock used only for fallback ids.
type Classifier struct {
	now    func() time.Time
	policy Policy
}

// New returns a classifier for the given policy.
func New(policy Policy) *Classifier {
	return &Classifier{policy: policy, now: time.Now}
}

// Result is the outcome of classifying one notification.
type Result struct {
	TxnID    string
	Accepted bool
	// SynthesizedID is set when no reference pattern matched and the id was
	// generated from the wall clock. Such ids are not stable across
	// re-deliveries of the same message, which defeats dedup for messages
	// lacking a parsable reference.
	SynthesizedID bool
}

// Classify decides whether n is a genuine credit under the policy and, if
// so, extracts its transaction identifier.
func (c *Classifier) Classify(n model.Notification) Result {
	text := n.Subject + "\n" + n.Body
	if !c.policy.CaseSensitive {
		text = strings.ToLower(text)
	}

	if !c.containsAny(text, c.policy.Markers) {
		return Result{}
	}
	if c.policy.RequireCreditLanguage && !c.containsAny(text, c.policy.CreditWords) {
		return Result{}
	}
	if c.policy.RejectIfDebitLanguage && c.containsAny(text, c.policy.DebitWords) {
		// Credit and debit wording in the same message is ambiguous; a
		// false negative is preferred over mis-crediting.
		return Result{}
	}

	id, synthesized := c.extractReference(n.Body)
	return Result{Accepted: true, TxnID: id, SynthesizedID: synthesized}
}

func (c *Classifier) containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if !c.policy.CaseSensitive {
			needle = strings.ToLower(needle)
		}
		if needle != "" && strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func (c *Classifier) extractReference(body string) (id string, synthesized bool) {
	for _, pattern := range referencePatterns {
		if m := pattern.FindStringSubmatch(body); m != nil {
			return m[1], false
		}
	}
	return fmt.Sprintf("TXN%d", c.now().Unix()), true
}
