package metrics

import (
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"curiochain/core/types"
	"curiochain/native/registry"
	"curiochain/native/rewards"
	"curiochain/native/router"
)

// RewardsMetrics bundles collectors covering the reward pipeline: routed
// deposits, claim payouts, epoch sweeps, and the dust retained by pool
// truncation. Pool and treasury identifiers are collapsed to their kind so
// label cardinality stays bounded.
type RewardsMetrics struct {
	depositsRouted  *prometheus.CounterVec
	dustRetained    *prometheus.CounterVec
	claimsPaid      *prometheus.CounterVec
	claimValue      *prometheus.CounterVec
	epochsSettled   *prometheus.CounterVec
	sweepValue      *prometheus.CounterVec
	treasuryBalance *prometheus.GaugeVec
	creatorRevenue  *prometheus.CounterVec
	unitsMinted     *prometheus.CounterVec
}

var (
	rewardsOnce     sync.Once
	rewardsRegistry *RewardsMetrics
)

func Rewards() *RewardsMetrics {
	rewardsOnce.Do(func() {
		rewardsRegistry = &RewardsMetrics{
			depositsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "curio_rewards_deposits_lamports_total",
				Help: "Total lamports deposited into reward pools by pool kind.",
			}, []string{"pool"}),
			dustRetained: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "curio_rewards_dust_lamports_total",
				Help: "Cumulative truncation remainder retained in pool balances by pool kind.",
			}, []string{"pool"}),
			claimsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "curio_rewards_claims_total",
				Help: "Count of successful claims by scope.",
			}, []string{"scope"}),
			claimValue: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "curio_rewards_claimed_lamports_total",
				Help: "Total lamports paid out by claims by scope.",
			}, []string{"scope"}),
			epochsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "curio_rewards_epochs_settled_total",
				Help: "Count of treasury epoch sweeps by treasury kind.",
			}, []string{"treasury"}),
			sweepValue: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "curio_rewards_swept_lamports_total",
				Help: "Total lamports drained from treasuries by epoch sweeps.",
			}, []string{"treasury"}),
			treasuryBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "curio_rewards_treasury_balance_lamports",
				Help: "Last observed streaming treasury balance by treasury kind.",
			}, []string{"treasury"}),
			creatorRevenue: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "curio_router_creator_paid_lamports_total",
				Help: "Total lamports paid directly to creators by settlement source.",
			}, []string{"source"}),
			unitsMinted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "curio_registry_units_minted_total",
				Help: "Count of minted units by rarity tier.",
			}, []string{"rarity"}),
		}
		prometheus.MustRegister(
			rewardsRegistry.depositsRouted,
			rewardsRegistry.dustRetained,
			rewardsRegistry.claimsPaid,
			rewardsRegistry.claimValue,
			rewardsRegistry.epochsSettled,
			rewardsRegistry.sweepValue,
			rewardsRegistry.treasuryBalance,
			rewardsRegistry.creatorRevenue,
			rewardsRegistry.unitsMinted,
		)
	})
	return rewardsRegistry
}

// RecordEvent updates the collectors for a committed node event. Events the
// registry does not track are ignored.
func (m *RewardsMetrics) RecordEvent(evt *types.Event) {
	if m == nil || evt == nil {
		return
	}
	switch evt.Type {
	case rewards.EventTypePoolDeposit:
		kind := poolKind(evt.Attributes["pool"])
		m.depositsRouted.WithLabelValues(kind).Add(attrValue(evt, "amount"))
		if dust := attrValue(evt, "dust"); dust > 0 {
			m.dustRetained.WithLabelValues(kind).Add(dust)
		}
	case rewards.EventTypeClaimPaid:
		scope := labelOr(evt.Attributes["scope"], "unknown")
		m.claimsPaid.WithLabelValues(scope).Inc()
		m.claimValue.WithLabelValues(scope).Add(attrValue(evt, "amount"))
	case rewards.EventTypeTreasuryCredited:
		m.treasuryBalance.WithLabelValues(treasuryKind(evt.Attributes["treasury"])).Set(attrValue(evt, "balance"))
	case rewards.EventTypeEpochSettled:
		kind := treasuryKind(evt.Attributes["treasury"])
		m.epochsSettled.WithLabelValues(kind).Inc()
		swept := attrValue(evt, "swept")
		m.sweepValue.WithLabelValues(kind).Add(swept)
		m.treasuryBalance.WithLabelValues(kind).Sub(swept)
	case registry.EventTypeUnitMinted:
		m.unitsMinted.WithLabelValues(labelOr(evt.Attributes["rarity"], "unknown")).Inc()
	case router.EventTypeMintSettled:
		m.creatorRevenue.WithLabelValues("mint").Add(attrValue(evt, "creatorPaid"))
	case router.EventTypeBundleSettled:
		m.creatorRevenue.WithLabelValues("bundle").Add(attrValue(evt, "creatorPaid"))
	case router.EventTypeRentalSettled:
		m.creatorRevenue.WithLabelValues("rental").Add(attrValue(evt, "creatorPaid"))
	}
}

func attrValue(evt *types.Event, key string) float64 {
	raw, ok := evt.Attributes[key]
	if !ok {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func poolKind(poolID string) string {
	poolID = strings.TrimSpace(poolID)
	switch {
	case poolID == "":
		return "unknown"
	case strings.HasPrefix(poolID, "content/"):
		return "content"
	case strings.HasPrefix(poolID, "bundle/"):
		return "bundle"
	case strings.HasPrefix(poolID, "patron/"):
		return "patron"
	default:
		return poolID
	}
}

func treasuryKind(treasuryID string) string {
	treasuryID = strings.TrimSpace(treasuryID)
	switch {
	case treasuryID == "":
		return "unknown"
	case strings.HasPrefix(treasuryID, "patron/"):
		return "patron"
	default:
		return treasuryID
	}
}

func labelOr(value, fallback string) string {
	if value = strings.TrimSpace(value); value == "" {
		return fallback
	}
	return value
}
