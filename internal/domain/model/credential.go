package model

import "strings"

// Credential is one API key with per-model usage counters and exhaustion flags.
type Credential struct {
	Key       string          `json:"key"`
	Usage     map[string]int  `json:"usage"`
	Exhausted map[string]bool `json:"exhausted"`
	// LastResetDate is YYYY-MM-DD in the quota time zone.
	LastResetDate string `json:"last_reset_date"`
}

func NewCredential(key string) Credential {
	return Credential{
		Key:       strings.TrimSpace(key),
		Usage:     map[string]int{},
		Exhausted: map[string]bool{},
	}
}

func (c Credential) IsExhausted(model string) bool { return c.Exhausted[model] }

func (c Credential) UsageFor(model string) int { return c.Usage[model] }

// Masked hides all but the edges of the key for display.
func (c Credential) Masked() string {
	if len(c.Key) <= 8 {
		return "***"
	}
	return c.Key[:4] + "..." + c.Key[len(c.Key)-4:]
}

// CredentialPool is the persisted form of the whole key pool.
type CredentialPool struct {
	Keys []Credential `json:"keys"`
	// LastResetDate is YYYY-MM-DD in the quota time zone.
	LastResetDate string `json:"last_reset_date"`
}

func (p *CredentialPool) Index(key string) int {
	for i := range p.Keys {
		if p.Keys[i].Key == key {
			return i
		}
	}
	return -1
}

// Normalize makes sure every credential carries non-nil maps.
func (p *CredentialPool) Normalize() {
	for i := range p.Keys {
		if p.Keys[i].Usage == nil {
			p.Keys[i].Usage = map[string]int{}
		}
		if p.Keys[i].Exhausted == nil {
			p.Keys[i].Exhausted = map[string]bool{}
		}
	}
}
