package processor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
)

// SimulatedClient is an in-memory processor used in development and tests.
// Behavior is steered through functional options; the default is a
// processor that approves everything.
type SimulatedClient struct {
	mu      sync.Mutex
	intents map[string]*Intent
	methods map[string]*PaymentMethod

	declineCode   string
	requireAction bool
	unavailable   bool
}

// SimulatedOption configures a SimulatedClient.
type SimulatedOption func(*SimulatedClient)

// WithDeclineCode makes every confirmation fail with the given decline code.
func WithDeclineCode(code string) SimulatedOption {
	return func(s *SimulatedClient) { s.declineCode = code }
}

// WithRequiresAction makes off-session confirmations come back as
// requires_action instead of succeeding.
func WithRequiresAction() SimulatedOption {
	return func(s *SimulatedClient) { s.requireAction = true }
}

// WithUnavailable makes every call fail as if the processor were down.
func WithUnavailable() SimulatedOption {
	return func(s *SimulatedClient) { s.unavailable = true }
}

// WithPaymentMethod seeds a stored method the simulator will return from
// RetrievePaymentMethod.
func WithPaymentMethod(m PaymentMethod) SimulatedOption {
	return func(s *SimulatedClient) { s.methods[m.Ref] = &m }
}

// NewSimulatedClient creates a simulator
func NewSimulatedClient(opts ...SimulatedOption) *SimulatedClient {
	s := &SimulatedClient{
		intents: make(map[string]*Intent),
		methods: make(map[string]*PaymentMethod),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func simRef(prefix string) string {
	b := make([]byte, 12)
	rand.Read(b)
	return prefix + "_" + hex.EncodeToString(b)
}

func (s *SimulatedClient) checkUp() error {
	if s.unavailable {
		return errors.NewDomainError("processor_down", "simulated processor unavailable", errors.ErrProcessorUnavailable)
	}
	return nil
}

func (s *SimulatedClient) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUp(); err != nil {
		return "", err
	}
	return simRef("cus"), nil
}

func (s *SimulatedClient) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUp(); err != nil {
		return nil, err
	}

	ref := simRef("pi")
	intent := &Intent{
		Ref:          ref,
		ClientSecret: ref + "_secret_" + simRef("k"),
		Status:       IntentRequiresPaymentMethod,
		AmountCents:  params.AmountCents,
		MethodRef:    params.MethodRef,
		Metadata:     params.Metadata,
	}
	s.intents[ref] = intent
	out := *intent
	return &out, nil
}

func (s *SimulatedClient) ConfirmOffSession(ctx context.Context, intentRef string) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUp(); err != nil {
		return nil, err
	}

	intent, ok := s.intents[intentRef]
	if !ok {
		return nil, errors.NewDomainError("unknown_intent", fmt.Sprintf("no intent %s", intentRef), errors.ErrPaymentNotFound)
	}

	switch {
	case s.declineCode != "":
		intent.Status = IntentRequiresPaymentMethod
		intent.DeclineCode = s.declineCode
		out := *intent
		return &out, errors.MapDeclineCode(s.declineCode)
	case s.requireAction:
		intent.Status = IntentRequiresAction
	default:
		intent.Status = IntentSucceeded
	}
	out := *intent
	return &out, nil
}

func (s *SimulatedClient) RetrieveIntent(ctx context.Context, intentRef string) (*Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUp(); err != nil {
		return nil, err
	}

	intent, ok := s.intents[intentRef]
	if !ok {
		return nil, errors.NewDomainError("unknown_intent", fmt.Sprintf("no intent %s", intentRef), errors.ErrPaymentNotFound)
	}
	out := *intent
	return &out, nil
}

func (s *SimulatedClient) RetrievePaymentMethod(ctx context.Context, methodRef string) (*PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUp(); err != nil {
		return nil, err
	}

	if m, ok := s.methods[methodRef]; ok {
		out := *m
		return &out, nil
	}
	// unseeded refs resolve to a stable generic card
	return &PaymentMethod{
		Ref:         methodRef,
		Brand:       "visa",
		Last4:       "4242",
		ExpMonth:    12,
		ExpYear:     2030,
		Fingerprint: "fp_" + methodRef,
	}, nil
}

// MarkSucceeded flips a stored intent to succeeded. Lets tests drive the
// webhook path for an on-session confirmation that happened "in the
// browser".
func (s *SimulatedClient) MarkSucceeded(intentRef string) {
	s.setStatus(intentRef, IntentSucceeded)
}

// MarkProcessing flips a stored intent to processing.
func (s *SimulatedClient) MarkProcessing(intentRef string) {
	s.setStatus(intentRef, IntentProcessing)
}

func (s *SimulatedClient) setStatus(intentRef string, status IntentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if intent, ok := s.intents[intentRef]; ok {
		intent.Status = status
	}
}
