// Package intent classifies inbound customer messages into lifecycle intents.
//
// Classification is deterministic and priority-ordered. Each matcher is scoped
// narrowly so catalog vocabulary cannot collide with lifecycle phrasing: the
// word "pickup" as a fulfillment choice never matches pickup_confirmation, and
// purchase-intent words like "want" or "buy" never match payment_attestation.
package intent

import (
	"regexp"
	"strings"

	"halobot/pkg/config"
	"halobot/pkg/logx"
	"halobot/pkg/proto"
)

// ItemResolver resolves a free-text mention to a catalog item.
// Satisfied by *catalog.Catalog.
type ItemResolver interface {
	FindMention(text string) (*config.CatalogItem, error)
}

// Classifier is a priority-ordered deterministic intent matcher.
// Check order is fixed: rating, payment attestation, pickup confirmation,
// order intent, none. The first matcher that fires wins.
type Classifier struct {
	resolver ItemResolver
	logger   *logx.Logger
}

// NewClassifier creates a classifier backed by the given catalog resolver.
func NewClassifier(resolver ItemResolver) *Classifier {
	return &Classifier{
		resolver: resolver,
		logger:   logx.NewLogger("intent"),
	}
}

var (
	// Explicit order references like ORD-0042.
	orderRefRe = regexp.MustCompile(`(?i)\b(ORD-\d{4})\b`)

	// Rating shapes: "5 stars", "1 star", "rate you 4".
	ratingDigitRe = regexp.MustCompile(`\b([1-5])\s*(?:star|stars)\b`)
	// A bare digit message ("5") counts as a rating reply.
	bareDigitRe = regexp.MustCompile(`^\s*([1-5])\s*$`)

	// Self-reported payment claims. Past-tense and completion phrasing only;
	// purchase verbs like "want"/"buy" must never fire this matcher.
	paymentRe = regexp.MustCompile(`(?i)\b(` +
		`i(?:'ve| have)? (?:just )?paid|` +
		`(?:just )?made (?:the )?(?:payment|transfer)|` +
		`sent (?:the |you the )?(?:money|payment|cash)|` +
		`(?:i(?:'ve| have)? )?transferred(?: the money| it)?|` +
		`payment (?:done|sent|made|completed)|` +
		`done with (?:the )?payment` +
		`)\b`)

	// Receipt-of-goods confirmations. Scoped to completion-of-receipt phrase
	// shapes ("picked it up", "collected my order"), never the bare word
	// "pickup" a customer uses when choosing fulfillment.
	pickupRe = regexp.MustCompile(`(?i)\b(` +
		`picked (?:it|them|everything)? ?up|` +
		`i(?:'ve| have)? picked|` +
		`collected (?:it|them|my order|the order)|` +
		`i(?:'ve| have)? collected|` +
		`received (?:it|them|my order|the order|the delivery)|` +
		`got (?:my order|the order|the delivery)` +
		`)\b`)

	// Purchase verbs that open the order-intent path. "want" and "need" are
	// transactional only when paired with a resolvable catalog item.
	purchaseVerbRe = regexp.MustCompile(`(?i)\b(order|buy|purchase|want|need|get|how much|price|cost)\b`)
)

var ratingWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
}

// Classify returns exactly one intent label for the message plus any
// extracted slots (star rating, explicit order number, catalog item).
func (c *Classifier) Classify(text string) proto.Classification {
	result := proto.Classification{Label: proto.IntentNone}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return result
	}
	lower := strings.ToLower(trimmed)

	if ref := orderRefRe.FindString(trimmed); ref != "" {
		result.OrderNumber = strings.ToUpper(ref)
	}

	if rating, ok := extractRating(lower); ok {
		result.Label = proto.IntentRatingFeedback
		result.Rating = rating
		c.logger.DebugDomain("intent", "classified rating_feedback (%d) from %q", rating, trimmed)
		return result
	}

	if paymentRe.MatchString(lower) {
		result.Label = proto.IntentPaymentAttestation
		c.logger.DebugDomain("intent", "classified payment_attestation from %q", trimmed)
		return result
	}

	if pickupRe.MatchString(lower) {
		result.Label = proto.IntentPickupConfirmation
		c.logger.DebugDomain("intent", "classified pickup_confirmation from %q", trimmed)
		return result
	}

	if purchaseVerbRe.MatchString(lower) && c.resolver != nil {
		if item, err := c.resolver.FindMention(trimmed); err == nil {
			result.Label = proto.IntentOrder
			result.ItemName = item.Name
			c.logger.DebugDomain("intent", "classified order_intent (%s) from %q", item.Name, trimmed)
			return result
		}
	}

	c.logger.DebugDomain("intent", "no intent matched for %q", trimmed)
	return result
}

// extractRating pulls a 1-5 star rating out of rating-shaped messages.
func extractRating(lower string) (int, bool) {
	if m := bareDigitRe.FindStringSubmatch(lower); m != nil {
		return int(m[1][0] - '0'), true
	}
	if m := ratingDigitRe.FindStringSubmatch(lower); m != nil {
		return int(m[1][0] - '0'), true
	}
	for word, value := range ratingWords {
		if strings.Contains(lower, word+" star") {
			return value, true
		}
	}
	return 0, false
}
