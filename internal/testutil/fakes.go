package testutil

import (
	"context"
	"sync"

	"sales-offers-billing/internal/events"
	"sales-offers-billing/pkg/gateway"
)

// FakeProvider is a scripted gateway.Provider.
type FakeProvider struct {
	mu sync.Mutex

	InitiateResult *gateway.InitiateResult
	InitiateErr    error
	VerifyOutcome  gateway.Outcome
	ChargeOutcome  gateway.Outcome
	// OnCharge runs after a charge is recorded, before its outcome is returned.
	OnCharge func(req gateway.ChargeRequest)

	Initiated []gateway.InitiateRequest
	Verified  []string
	Charged   []gateway.ChargeRequest
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		InitiateResult: &gateway.InitiateResult{RedirectURL: "https://checkout.example.com/pay", AccessCode: "access_123"},
		VerifyOutcome:  gateway.Outcome{Kind: gateway.StillPending},
		ChargeOutcome:  gateway.Outcome{Kind: gateway.Succeeded},
	}
}

func (f *FakeProvider) Name() string { return "fake" }

func (f *FakeProvider) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Initiated = append(f.Initiated, req)
	if f.InitiateErr != nil {
		return nil, f.InitiateErr
	}
	return f.InitiateResult, nil
}

func (f *FakeProvider) Verify(ctx context.Context, reference string) gateway.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Verified = append(f.Verified, reference)
	return f.VerifyOutcome
}

func (f *FakeProvider) ChargeStoredToken(ctx context.Context, req gateway.ChargeRequest) gateway.Outcome {
	f.mu.Lock()
	f.Charged = append(f.Charged, req)
	outcome, hook := f.ChargeOutcome, f.OnCharge
	f.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	return outcome
}

func (f *FakeProvider) ChargeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Charged)
}

// RecordingPublisher captures entitlement events in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []events.EntitlementEvent
}

func (p *RecordingPublisher) Publish(ctx context.Context, evt events.EntitlementEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, evt)
}

// OfType returns the recorded events with the given type.
func (p *RecordingPublisher) OfType(eventType string) []events.EntitlementEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.EntitlementEvent
	for _, e := range p.Events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
