package routing

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"transfer-router/internal/common/logging"
)

// Weights are the five scoring component percentages. They must sum to 100.
type Weights struct {
	Cost        int `json:"cost"`
	Reliability int `json:"reliability"`
	Speed       int `json:"speed"`
	Stock       int `json:"stock"`
	Operator    int `json:"operator"`
}

// Sum returns the total of all five weights
func (w Weights) Sum() int {
	return w.Cost + w.Reliability + w.Speed + w.Stock + w.Operator
}

// DefaultWeights returns the production default 30/30/15/15/10
func DefaultWeights() Weights {
	return Weights{Cost: 30, Reliability: 30, Speed: 15, Stock: 15, Operator: 10}
}

// CorridorPreference nudges a corridor toward or away from specific gateways
type CorridorPreference struct {
	PreferredGateway string `json:"preferred_gateway,omitempty"`
	AvoidGateway     string `json:"avoid_gateway,omitempty"`
	Bonus            int    `json:"bonus"`
	Penalty          int    `json:"penalty"`
}

// TemporaryRule is a time-bounded score adjustment. Zero-valued filter fields
// are wildcards. Expired rules remain stored, evaluated as inactive, until
// explicitly deleted.
type TemporaryRule struct {
	ID            string    `json:"id"`
	Gateway       string    `json:"gateway,omitempty"`
	SourceCountry string    `json:"source_country,omitempty"`
	DestCountry   string    `json:"dest_country,omitempty"`
	MinAmount     int64     `json:"min_amount,omitempty"`
	MaxAmount     int64     `json:"max_amount,omitempty"`
	ScoreDelta    int       `json:"score_delta"`
	ForceGateway  bool      `json:"force_gateway"`
	StartsAt      time.Time `json:"starts_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ActiveAt reports whether the rule applies at the given instant
func (r *TemporaryRule) ActiveAt(now time.Time) bool {
	if !r.StartsAt.IsZero() && now.Before(r.StartsAt) {
		return false
	}
	return now.Before(r.ExpiresAt)
}

// Matches reports whether the rule's filters accept the candidate
func (r *TemporaryRule) Matches(gateway, source, dest string, amount int64) bool {
	if r.Gateway != "" && r.Gateway != gateway {
		return false
	}
	if r.SourceCountry != "" && r.SourceCountry != source {
		return false
	}
	if r.DestCountry != "" && r.DestCountry != dest {
		return false
	}
	if r.MinAmount > 0 && amount < r.MinAmount {
		return false
	}
	if r.MaxAmount > 0 && amount > r.MaxAmount {
		return false
	}
	return true
}

// TimeBasedRule is a recurring time-of-day adjustment for one gateway
type TimeBasedRule struct {
	ID         string         `json:"id"`
	Gateway    string         `json:"gateway"`
	Days       []time.Weekday `json:"days"`
	StartHour  int            `json:"start_hour"`
	EndHour    int            `json:"end_hour"`
	Adjustment int            `json:"adjustment"`
}

// ActiveAt reports whether the rule applies at the given instant.
// Windows wrapping midnight (e.g. 22-6) are supported.
func (r *TimeBasedRule) ActiveAt(gateway string, now time.Time) bool {
	if r.Gateway != "" && r.Gateway != gateway {
		return false
	}

	if len(r.Days) > 0 {
		dayMatch := false
		for _, d := range r.Days {
			if now.Weekday() == d {
				dayMatch = true
				break
			}
		}
		if !dayMatch {
			return false
		}
	}

	hour := now.Hour()
	if r.StartHour <= r.EndHour {
		return hour >= r.StartHour && hour < r.EndHour
	}
	return hour >= r.StartHour || hour < r.EndHour
}

// DynamicConfig is the mutable runtime routing policy: scoring weights,
// thresholds, blacklist, corridor preferences and adjustment rules. It is
// in-memory only and resets on restart, trading durability for hot-reload
// simplicity. Reads vastly outnumber writes; everything sits behind one
// RWMutex with writers being last-writer-wins per key.
type DynamicConfig struct {
	mu sync.RWMutex

	weights           Weights
	minScoreThreshold int
	splitThreshold    int64

	blacklist     map[string]struct{}
	corridorPrefs map[string]CorridorPreference
	tempRules     map[string]*TemporaryRule
	timeRules     map[string]*TimeBasedRule

	logger logging.Logger
}

// NewDynamicConfig creates the runtime policy store with defaults
func NewDynamicConfig(logger logging.Logger) *DynamicConfig {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &DynamicConfig{
		weights:           DefaultWeights(),
		minScoreThreshold: 30,
		splitThreshold:    5_000_000,
		blacklist:         make(map[string]struct{}),
		corridorPrefs:     make(map[string]CorridorPreference),
		tempRules:         make(map[string]*TemporaryRule),
		timeRules:         make(map[string]*TimeBasedRule),
		logger:            logger.WithFields(logging.String("component", "dynamic-config")),
	}
}

// Weights returns the current scoring weights
func (c *DynamicConfig) Weights() Weights {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.weights
}

// SetWeights replaces the scoring weights. Tuples not summing to 100 are rejected.
func (c *DynamicConfig) SetWeights(w Weights) error {
	if w.Cost < 0 || w.Reliability < 0 || w.Speed < 0 || w.Stock < 0 || w.Operator < 0 {
		return ErrInvalidWeights
	}
	if w.Sum() != 100 {
		return ErrInvalidWeights
	}

	c.mu.Lock()
	c.weights = w
	c.mu.Unlock()

	c.logger.Info("scoring weights updated",
		logging.Int("cost", w.Cost),
		logging.Int("reliability", w.Reliability),
		logging.Int("speed", w.Speed),
		logging.Int("stock", w.Stock),
		logging.Int("operator", w.Operator),
	)
	return nil
}

// MinScoreThreshold returns the minimum qualifying route score
func (c *DynamicConfig) MinScoreThreshold() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.minScoreThreshold
}

// SetMinScoreThreshold updates the minimum qualifying route score
func (c *DynamicConfig) SetMinScoreThreshold(threshold int) error {
	if threshold < 0 || threshold > 100 {
		return ErrInvalidRule
	}
	c.mu.Lock()
	c.minScoreThreshold = threshold
	c.mu.Unlock()
	return nil
}

// SplitThreshold returns the amount above which split planning applies
func (c *DynamicConfig) SplitThreshold() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.splitThreshold
}

// SetSplitThreshold updates the split planning threshold
func (c *DynamicConfig) SetSplitThreshold(threshold int64) error {
	if threshold <= 0 {
		return ErrInvalidRule
	}
	c.mu.Lock()
	c.splitThreshold = threshold
	c.mu.Unlock()
	return nil
}

// Blacklist adds a gateway to the blacklist
func (c *DynamicConfig) Blacklist(gateway string) {
	c.mu.Lock()
	c.blacklist[gateway] = struct{}{}
	c.mu.Unlock()
	c.logger.Warn("gateway blacklisted", logging.String("gateway", gateway))
}

// Unblacklist removes a gateway from the blacklist
func (c *DynamicConfig) Unblacklist(gateway string) {
	c.mu.Lock()
	delete(c.blacklist, gateway)
	c.mu.Unlock()
	c.logger.Info("gateway removed from blacklist", logging.String("gateway", gateway))
}

// IsBlacklisted reports whether a gateway is blacklisted
func (c *DynamicConfig) IsBlacklisted(gateway string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, blacklisted := c.blacklist[gateway]
	return blacklisted
}

// Blacklisted returns the blacklisted gateway names in stable order
func (c *DynamicConfig) Blacklisted() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.blacklist))
	for name := range c.blacklist {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetCorridorPreference sets the preference entry for a corridor
func (c *DynamicConfig) SetCorridorPreference(source, dest string, pref CorridorPreference) {
	c.mu.Lock()
	c.corridorPrefs[CorridorKey(source, dest)] = pref
	c.mu.Unlock()
}

// DeleteCorridorPreference removes the preference entry for a corridor
func (c *DynamicConfig) DeleteCorridorPreference(source, dest string) {
	c.mu.Lock()
	delete(c.corridorPrefs, CorridorKey(source, dest))
	c.mu.Unlock()
}

// CorridorPreferences returns a copy of all corridor preference entries
func (c *DynamicConfig) CorridorPreferences() map[string]CorridorPreference {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]CorridorPreference, len(c.corridorPrefs))
	for k, v := range c.corridorPrefs {
		result[k] = v
	}
	return result
}

// AddTemporaryRule stores a time-bounded rule and returns its generated ID
func (c *DynamicConfig) AddTemporaryRule(rule TemporaryRule) (string, error) {
	if rule.ExpiresAt.IsZero() {
		return "", ErrInvalidRule
	}

	rule.ID = uuid.NewString()
	c.mu.Lock()
	c.tempRules[rule.ID] = &rule
	c.mu.Unlock()

	c.logger.Info("temporary rule added",
		logging.String("rule_id", rule.ID),
		logging.String("gateway", rule.Gateway),
		logging.Int("score_delta", rule.ScoreDelta),
	)
	return rule.ID, nil
}

// DeleteTemporaryRule removes a stored rule, expired or not
func (c *DynamicConfig) DeleteTemporaryRule(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tempRules[id]; !exists {
		return ErrRuleNotFound
	}
	delete(c.tempRules, id)
	return nil
}

// TemporaryRules returns all stored temporary rules, including expired ones,
// sorted by ID for stable output.
func (c *DynamicConfig) TemporaryRules() []TemporaryRule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rules := make([]TemporaryRule, 0, len(c.tempRules))
	for _, r := range c.tempRules {
		rules = append(rules, *r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// AddTimeBasedRule stores a recurring time-of-day rule and returns its ID
func (c *DynamicConfig) AddTimeBasedRule(rule TimeBasedRule) (string, error) {
	if rule.StartHour < 0 || rule.StartHour > 23 || rule.EndHour < 0 || rule.EndHour > 24 {
		return "", ErrInvalidRule
	}

	rule.ID = uuid.NewString()
	c.mu.Lock()
	c.timeRules[rule.ID] = &rule
	c.mu.Unlock()
	return rule.ID, nil
}

// DeleteTimeBasedRule removes a recurring rule
func (c *DynamicConfig) DeleteTimeBasedRule(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.timeRules[id]; !exists {
		return ErrRuleNotFound
	}
	delete(c.timeRules, id)
	return nil
}

// TimeBasedRules returns all stored time-based rules sorted by ID
func (c *DynamicConfig) TimeBasedRules() []TimeBasedRule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rules := make([]TimeBasedRule, 0, len(c.timeRules))
	for _, r := range c.timeRules {
		rules = append(rules, *r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// ApplyRules runs the fixed-order adjustment pipeline over a base score:
// blacklist zeroes and stops, corridor preference applies its bonus or
// penalty, every active matching temporary rule accumulates, then at most one
// active time-based rule adjusts. The result is clamped to [0, 100].
func (c *DynamicConfig) ApplyRules(base int, gateway, source, dest string, amount int64, now time.Time) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, blacklisted := c.blacklist[gateway]; blacklisted {
		return 0
	}

	score := base

	if pref, ok := c.corridorPrefs[CorridorKey(source, dest)]; ok {
		if pref.PreferredGateway == gateway {
			score += pref.Bonus
		}
		if pref.AvoidGateway == gateway {
			score -= pref.Penalty
		}
	}

	// Cumulative across every active matching temporary rule. A force rule
	// pins the gateway to the top of the ranking.
	forced := false
	ids := make([]string, 0, len(c.tempRules))
	for id := range c.tempRules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rule := c.tempRules[id]
		if !rule.ActiveAt(now) || !rule.Matches(gateway, source, dest, amount) {
			continue
		}
		score += rule.ScoreDelta
		if rule.ForceGateway {
			forced = true
		}
	}

	// At most one time-based rule applies; stable ID order decides.
	timeIDs := make([]string, 0, len(c.timeRules))
	for id := range c.timeRules {
		timeIDs = append(timeIDs, id)
	}
	sort.Strings(timeIDs)
	for _, id := range timeIDs {
		rule := c.timeRules[id]
		if rule.ActiveAt(gateway, now) {
			score += rule.Adjustment
			break
		}
	}

	if forced {
		return 100
	}
	return clampScore(score)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Snapshot is a copy of the whole runtime policy for the admin surface
type Snapshot struct {
	Weights           Weights                       `json:"weights"`
	MinScoreThreshold int                           `json:"min_score_threshold"`
	SplitThreshold    int64                         `json:"split_threshold"`
	Blacklist         []string                      `json:"blacklist"`
	CorridorPrefs     map[string]CorridorPreference `json:"corridor_preferences"`
	TemporaryRules    []TemporaryRule               `json:"temporary_rules"`
	TimeBasedRules    []TimeBasedRule               `json:"time_based_rules"`
}

// Snapshot returns a copy of the current policy
func (c *DynamicConfig) Snapshot() Snapshot {
	return Snapshot{
		Weights:           c.Weights(),
		MinScoreThreshold: c.MinScoreThreshold(),
		SplitThreshold:    c.SplitThreshold(),
		Blacklist:         c.Blacklisted(),
		CorridorPrefs:     c.CorridorPreferences(),
		TemporaryRules:    c.TemporaryRules(),
		TimeBasedRules:    c.TimeBasedRules(),
	}
}
