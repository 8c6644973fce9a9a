package ledger

import (
	"context"
	"sync"
)

// ProfileStore persists behavioral profiles. The ledger only ever talks
// to this interface; the in-memory implementation is the default and a
// SQLite-backed one serves deployments that need the record to survive
// the process.
type ProfileStore interface {
	// Get returns the profile for an agent, or nil when none exists yet.
	Get(ctx context.Context, agentID string) (*BehavioralProfile, error)
	// Save upserts a profile.
	Save(ctx context.Context, profile *BehavioralProfile) error
	// List returns every stored profile.
	List(ctx context.Context) ([]*BehavioralProfile, error)
}

// MemoryStore implements ProfileStore in memory. Thread-safe: every
// profile crossing the boundary is deep-copied, so a caller mutating a
// returned profile (or the profile it just saved) can never write into
// a slice another reader is walking.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*BehavioralProfile
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*BehavioralProfile)}
}

func (s *MemoryStore) Get(ctx context.Context, agentID string) (*BehavioralProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[agentID]
	if !ok {
		return nil, nil // not found is not an error
	}
	return cloneProfile(p), nil
}

func (s *MemoryStore) Save(ctx context.Context, profile *BehavioralProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.AgentID] = cloneProfile(profile)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*BehavioralProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*BehavioralProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, cloneProfile(p))
	}
	return out, nil
}

// cloneProfile deep-copies a profile, including the slice and map
// fields that a shallow struct copy would leave shared.
func cloneProfile(p *BehavioralProfile) *BehavioralProfile {
	out := *p
	if p.RiskFactors != nil {
		out.RiskFactors = append([]string(nil), p.RiskFactors...)
	}
	if p.BehaviorSignatures != nil {
		out.BehaviorSignatures = make([]BehaviorSignature, len(p.BehaviorSignatures))
		copy(out.BehaviorSignatures, p.BehaviorSignatures)
		for i := range out.BehaviorSignatures {
			if ops := p.BehaviorSignatures[i].Operations; ops != nil {
				out.BehaviorSignatures[i].Operations = append([]string(nil), ops...)
			}
		}
	}
	if p.VerificationHistory != nil {
		out.VerificationHistory = make([]VerificationEvent, len(p.VerificationHistory))
		copy(out.VerificationHistory, p.VerificationHistory)
		for i := range out.VerificationHistory {
			if d := p.VerificationHistory[i].Details; d != nil {
				details := make(map[string]any, len(d))
				for k, v := range d {
					details[k] = v
				}
				out.VerificationHistory[i].Details = details
			}
		}
	}
	return &out
}
