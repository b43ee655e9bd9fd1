// Package engine is the per-message decision point. Every inbound customer
// message flows through Process exactly once: dedup, contact resolution,
// deterministic intent classification, and only then the LLM for anything the
// classifier could not claim.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"halobot/pkg/catalog"
	"halobot/pkg/composer"
	"halobot/pkg/config"
	"halobot/pkg/conversation"
	"halobot/pkg/intent"
	"halobot/pkg/logx"
	"halobot/pkg/loyalty"
	"halobot/pkg/metrics"
	"halobot/pkg/notify"
	"halobot/pkg/orders"
	"halobot/pkg/persistence"
	"halobot/pkg/proto"
	"halobot/pkg/utils"
)

// InboundMessage is one customer message as received from a transport webhook.
type InboundMessage struct {
	Phone          string
	Text           string
	Channel        proto.Channel
	TransportMsgID string
}

// Engine orchestrates message handling across the store, classifier,
// order lifecycle, and composer.
type Engine struct {
	store      *persistence.Store
	builder    *conversation.Builder
	classifier *intent.Classifier
	catalog    *catalog.Catalog
	composer   *composer.Composer
	orders     *orders.Service
	dispatcher *notify.Dispatcher
	loyalty    *loyalty.Service
	cfg        config.Config
	logger     *logx.Logger

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// New wires the engine from its collaborators.
func New(
	store *persistence.Store,
	builder *conversation.Builder,
	classifier *intent.Classifier,
	cat *catalog.Catalog,
	comp *composer.Composer,
	orderSvc *orders.Service,
	dispatcher *notify.Dispatcher,
	loyaltySvc *loyalty.Service,
	cfg config.Config,
) *Engine {
	return &Engine{
		store:      store,
		builder:    builder,
		classifier: classifier,
		catalog:    cat,
		composer:   comp,
		orders:     orderSvc,
		dispatcher: dispatcher,
		loyalty:    loyaltySvc,
		cfg:        cfg,
		logger:     logx.NewLogger("engine"),
		locks:      make(map[int64]*sync.Mutex),
	}
}

// Process handles one inbound message end to end. Processing a message twice
// (webhook redelivery) is a no-op thanks to the transport message id dedup.
func (e *Engine) Process(ctx context.Context, msg InboundMessage) error {
	phone, err := utils.NormalizePhone(msg.Phone)
	if err != nil {
		metrics.Default().IncMessageProcessed(string(msg.Channel), "rejected")
		return fmt.Errorf("invalid sender phone %q: %w", msg.Phone, err)
	}

	if msg.TransportMsgID != "" {
		seen, err := e.store.HasSeenTransportMsgID(msg.TransportMsgID)
		if err != nil {
			return fmt.Errorf("dedup check failed: %w", err)
		}
		if seen {
			e.logger.Debug("skipping duplicate message %s", msg.TransportMsgID)
			metrics.Default().IncMessageProcessed(string(msg.Channel), "duplicate")
			return nil
		}
	}

	contact, created, err := e.store.ResolveOrCreateContact(e.cfg.Business.ID, phone)
	if err != nil {
		return fmt.Errorf("failed to resolve contact: %w", err)
	}

	// Serialize per contact so two rapid-fire messages can't race the same
	// order through a transition.
	lock := e.contactLock(contact.ID)
	lock.Lock()
	defer lock.Unlock()

	convo, err := e.builder.Build(contact, msg.Text, msg.Channel)
	if err != nil {
		return fmt.Errorf("failed to build conversation context: %w", err)
	}

	// The unique transport id index catches redeliveries that slipped past
	// the read check above.
	err = e.store.AppendMessage(&persistence.MessageLog{
		ContactID:      contact.ID,
		Direction:      proto.DirectionIn,
		Channel:        msg.Channel,
		Content:        msg.Text,
		TransportMsgID: msg.TransportMsgID,
		Status:         "received",
	})
	if errors.Is(err, persistence.ErrDuplicateMessage) {
		metrics.Default().IncMessageProcessed(string(msg.Channel), "duplicate")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to log inbound message: %w", err)
	}

	if created {
		e.welcome(ctx, contact, msg.Channel)
	}
	e.updateLanguage(contact, msg.Text)
	e.updateConsent(contact, msg.Text)

	cls := e.classifier.Classify(msg.Text)
	metrics.Default().IncIntentClassified(string(cls.Label))

	var reply string
	switch cls.Label {
	case proto.IntentRatingFeedback:
		reply = e.handleRating(ctx, convo, cls)
	case proto.IntentPaymentAttestation:
		reply, err = e.handleAttestation(ctx, convo, cls)
	case proto.IntentPickupConfirmation:
		reply, err = e.handlePickup(ctx, convo, cls)
	case proto.IntentOrder:
		reply, err = e.handleOrderIntent(ctx, convo, cls)
	default:
		reply = e.handleFreeForm(ctx, convo)
	}
	if err != nil {
		metrics.Default().IncMessageProcessed(string(msg.Channel), "error")
		return err
	}

	if reply != "" {
		e.dispatcher.Notify(ctx, contact, msg.Channel, reply)
	}
	metrics.Default().IncMessageProcessed(string(msg.Channel), "handled")
	return nil
}

// handleRating stores the star rating against the contact's latest completed
// order and thanks them. Low ratings also alert the owner.
func (e *Engine) handleRating(ctx context.Context, convo *conversation.Context, cls proto.Classification) string {
	var orderID int64
	order, err := e.store.LatestCompletedOrder(convo.Contact.ID)
	switch {
	case err == nil:
		orderID = order.ID
	case !errors.Is(err, persistence.ErrNotFound):
		e.logger.Error("failed to look up completed order for rating: %v", err)
	}

	fb := &persistence.Feedback{
		ContactID: convo.Contact.ID,
		OrderID:   orderID,
		Rating:    cls.Rating,
		Comment:   convo.Text,
	}
	if err := e.store.SaveFeedback(fb); err != nil {
		e.logger.Error("failed to save feedback from contact %d: %v", convo.Contact.ID, err)
		return ""
	}

	e.logger.Info("⭐ Contact %d rated %d stars", convo.Contact.ID, cls.Rating)
	if fb.Flagged {
		e.dispatcher.NotifyOwner(ctx, e.cfg.Business.OwnerPhone, convo.Channel,
			fmt.Sprintf("⚠️ %s left a %d-star rating: %q", convo.Contact.Phone, cls.Rating, convo.Text))
	}
	return composer.RatingThanks(cls.Rating)
}

// handleAttestation moves the customer's pending_payment order to
// awaiting_confirmation. The lifecycle state is the only authority here: a
// payment claim against an order in any other state gets a clarification,
// never a transition.
func (e *Engine) handleAttestation(ctx context.Context, convo *conversation.Context, cls proto.Classification) (string, error) {
	order, clarification := e.targetOrder(convo, cls.OrderNumber, proto.StatusPendingPayment)
	if clarification != "" {
		return clarification, nil
	}
	if order.Status != proto.StatusPendingPayment {
		return composer.GuardClarification(order), nil
	}

	err := e.orders.Transition(ctx, order, proto.StatusAwaitingConfirmation)
	if errors.Is(err, persistence.ErrGuardFailed) {
		return e.clarifyAfterRace(order), nil
	}
	if err != nil {
		return "", err
	}
	return "", nil // the transition sent its own notification
}

// handlePickup completes a ready_for_pickup order on the customer's word that
// they collected it.
func (e *Engine) handlePickup(ctx context.Context, convo *conversation.Context, cls proto.Classification) (string, error) {
	order, clarification := e.targetOrder(convo, cls.OrderNumber, proto.StatusReadyForPickup)
	if clarification != "" {
		return clarification, nil
	}
	if order.Status != proto.StatusReadyForPickup {
		return composer.GuardClarification(order), nil
	}

	err := e.orders.Transition(ctx, order, proto.StatusCompleted)
	if errors.Is(err, persistence.ErrGuardFailed) {
		return e.clarifyAfterRace(order), nil
	}
	if err != nil {
		return "", err
	}
	return "", nil
}

// handleOrderIntent extracts order fields, resolves the catalog item, and
// either creates the order or asks for the one missing field.
func (e *Engine) handleOrderIntent(ctx context.Context, convo *conversation.Context, cls proto.Classification) (string, error) {
	sign := e.cfg.Business.CurrencySign

	draft := e.composer.ExtractDraft(ctx, convo)
	if draft == nil {
		draft = &composer.OrderDraft{}
	}
	if draft.ItemName == "" {
		draft.ItemName = cls.ItemName
	}

	if draft.ItemName == "" {
		return composer.FollowUpQuestion("item") + "\n" + e.catalog.ListText(sign), nil
	}

	item, err := e.catalog.Resolve(draft.ItemName)
	switch {
	case errors.Is(err, catalog.ErrItemUnavailable):
		return fmt.Sprintf("Sorry, %s is not available right now. Here's what we have:\n%s",
			item.Name, e.catalog.ListText(sign)), nil
	case err != nil:
		return fmt.Sprintf("We couldn't find %q on our menu. Here's what we have:\n%s",
			draft.ItemName, e.catalog.ListText(sign)), nil
	}

	// The extractor reports an unstated quantity as zero; one is the obvious
	// reading once the item is known.
	if draft.Quantity <= 0 {
		draft.Quantity = 1
	}

	if missing := draft.MissingField(); missing != "" {
		return composer.FollowUpQuestion(missing), nil
	}

	fulfillment, err := proto.ParseFulfillment(draft.Fulfillment)
	if err != nil {
		return composer.FollowUpQuestion("fulfillment"), nil
	}

	_, err = e.orders.Create(ctx, orders.CreateParams{
		Contact:         convo.Contact,
		Item:            item,
		Quantity:        draft.Quantity,
		Fulfillment:     fulfillment,
		DeliveryAddress: draft.DeliveryAddress,
		Channel:         convo.Channel,
	})
	if err != nil {
		return "", err
	}
	return "", nil // Create sent the payment instructions
}

func (e *Engine) handleFreeForm(ctx context.Context, convo *conversation.Context) string {
	return e.composer.Reply(ctx, convo, e.builder.Transcript(convo))
}

// targetOrder picks the open order a lifecycle claim refers to. An explicit
// ORD-NNNN reference wins; otherwise only orders already in the claim's
// expected state are candidates, and several of those mean the customer must
// choose. Never guess. Returns either an order or a clarification, never
// neither.
func (e *Engine) targetOrder(convo *conversation.Context, ref string, want proto.OrderStatus) (*persistence.Order, string) {
	if ref != "" {
		if order := convo.OrderByNumber(ref); order != nil {
			return order, ""
		}
		return nil, fmt.Sprintf("We couldn't find an open order %s. Could you check the order number?", ref)
	}

	candidates := convo.OrdersInStatus(want)
	switch len(candidates) {
	case 1:
		return candidates[0], ""
	case 0:
		// A lone open order in the wrong state gets its state explained by
		// the caller rather than a generic no-order reply.
		if len(convo.OpenOrders) == 1 {
			return convo.OpenOrders[0], ""
		}
		return nil, composer.NoClaimableOrder(want)
	default:
		return nil, composer.DisambiguationList(candidates, &e.cfg.Business)
	}
}

// clarifyAfterRace re-reads the order after a lost compare-and-swap and
// explains its actual state.
func (e *Engine) clarifyAfterRace(order *persistence.Order) string {
	fresh, err := e.store.GetOrder(order.ID)
	if err != nil {
		return composer.GuardClarification(order)
	}
	return composer.GuardClarification(fresh)
}

// welcome greets a first-time contact and credits the signup bonus.
func (e *Engine) welcome(ctx context.Context, contact *persistence.Contact, channel proto.Channel) {
	if _, err := e.loyalty.AwardWelcomeBonus(contact.ID); err != nil {
		e.logger.Error("welcome bonus failed for contact %d: %v", contact.ID, err)
	}

	greeting := intent.Translate("welcome", contact.Language) + "\n\n" + e.catalog.ListText(e.cfg.Business.CurrencySign)
	e.dispatcher.Notify(ctx, contact, channel, greeting)
}

// updateLanguage switches the contact's language when a message carries clear
// indicators of a supported local language.
func (e *Engine) updateLanguage(contact *persistence.Contact, text string) {
	detected := intent.DetectLanguage(text)
	if detected == proto.LangEnglish || detected == contact.Language {
		return
	}
	if err := e.store.UpdateContactLanguage(contact.ID, detected); err != nil {
		e.logger.Error("failed to update language for contact %d: %v", contact.ID, err)
		return
	}
	contact.Language = detected
	e.logger.Info("💬 Contact %d language set to %s", contact.ID, detected)
}

// updateConsent records an explicit opt-in. Only an unambiguous yes flips the
// flag; weak or ambiguous signals leave it untouched.
func (e *Engine) updateConsent(contact *persistence.Contact, text string) {
	if contact.OptIn {
		return
	}

	optIn, confidence, label := intent.InferConsent(text)
	if !optIn || intent.ShouldAskClarification(confidence) {
		return
	}
	if err := e.store.UpdateContactConsent(contact.ID, true); err != nil {
		e.logger.Error("failed to record consent for contact %d: %v", contact.ID, err)
		return
	}
	contact.OptIn = true
	e.logger.Info("Contact %d opted in (%s)", contact.ID, label)
}

func (e *Engine) contactLock(id int64) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()

	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}
