package proto

// IntentLabel is the closed set of deterministic classifications for an
// inbound message. Checks run in a fixed priority order; the first conclusive
// match wins and the rest are never consulted.
type IntentLabel string

const (
	// IntentRatingFeedback is a 1-5 star rating or star-word phrase.
	IntentRatingFeedback IntentLabel = "rating_feedback"

	// IntentPaymentAttestation is an explicit "I have paid" claim. Broader
	// purchase words ("want", "buy") must never trigger this label.
	IntentPaymentAttestation IntentLabel = "payment_attestation"

	// IntentPickupConfirmation is a completion-of-receipt claim ("picked it
	// up", "got my order"), distinct from choosing pickup as fulfillment.
	IntentPickupConfirmation IntentLabel = "pickup_confirmation"

	// IntentOrder is a purchase verb plus a resolvable catalog item.
	IntentOrder IntentLabel = "order_intent"

	// IntentNone hands the message to the free-form reply path.
	IntentNone IntentLabel = "none"
)

// Classification is the classifier's verdict plus any extracted slots.
type Classification struct {
	Label IntentLabel

	// Rating is the extracted star value, 1-5, when Label is
	// IntentRatingFeedback.
	Rating int

	// OrderNumber is an explicit ORD-NNNN reference if the message named
	// one, used to disambiguate between multiple open orders.
	OrderNumber string

	// ItemName is the catalog item the purchase verb attached to, when
	// Label is IntentOrder.
	ItemName string
}

// Direction of a logged message relative to the business.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Channel identifies the transport an inbound message arrived on.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
	ChannelWeb      Channel = "web"
)

// Lang is a language code supported by detection and canned replies.
type Lang string

const (
	LangEnglish Lang = "en"
	LangYoruba  Lang = "yo"
	LangHausa   Lang = "ha"
	LangIgbo    Lang = "ig"
)
