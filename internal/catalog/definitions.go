package catalog

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Default returns the built-in alert catalog. The table is constructed once
// at startup and never mutated afterwards.
//
// Reset semantics are deliberately per-definition: bar and cooldown alerts
// are edge-triggered (re-arm only after the value leaves the qualifying
// range), while message and cash alerts reset unconditionally so a
// qualifying value fires again on every cycle once the cooldown allows it.
func Default() *Registry {
	return NewRegistry(
		barFull("energy_full", "energy", "Energy full", "⚡", 30*time.Minute),
		barFull("nerve_full", "nerve", "Nerve full", "😤", 30*time.Minute),
		barFull("happy_full", "happy", "Happy full", "😊", time.Hour),
		cooldownOver("drug_ready", "drug", "Drug cooldown over", "💊", 10*time.Minute),
		cooldownOver("booster_ready", "booster", "Booster cooldown over", "🍺", 10*time.Minute),
		cooldownOver("medical_ready", "medical", "Medical cooldown over", "🩹", 10*time.Minute),

		// Compound: every bar at maximum in the same observation.
		Definition{
			Key:      "fully_rested",
			Group:    GroupBars,
			Cadence:  CadenceFast,
			Cooldown: time.Hour,
			Severity: SeverityInfo,
			Title:    "Fully rested",
			Emoji:    "🛌",
			Condition: func(prev, curr Payload, cfg Config) bool {
				return barAtMax(curr, "energy") && barAtMax(curr, "nerve") && barAtMax(curr, "happy")
			},
			Reset: func(prev, curr Payload) bool {
				return !barAtMax(curr, "energy") || !barAtMax(curr, "nerve") || !barAtMax(curr, "happy")
			},
			Message: func(curr, prev Payload, cfg Config) []string {
				return []string{
					"Energy, nerve and happy are all at maximum.",
					fmt.Sprintf("Energy %.0f/%.0f, nerve %.0f/%.0f, happy %.0f/%.0f.",
						curr.Num("energy.current"), curr.Num("energy.maximum"),
						curr.Num("nerve.current"), curr.Num("nerve.maximum"),
						curr.Num("happy.current"), curr.Num("happy.maximum")),
				}
			},
		},

		// Compound: the last running cooldown just expired.
		Definition{
			Key:      "cooldowns_clear",
			Group:    GroupCooldowns,
			Cadence:  CadenceFast,
			Cooldown: 30 * time.Minute,
			Severity: SeverityInfo,
			Title:    "All cooldowns clear",
			Emoji:    "✅",
			Condition: func(prev, curr Payload, cfg Config) bool {
				prevTotal := prev.Num("cooldowns.drug") + prev.Num("cooldowns.booster") + prev.Num("cooldowns.medical")
				currTotal := curr.Num("cooldowns.drug") + curr.Num("cooldowns.booster") + curr.Num("cooldowns.medical")
				return curr.Has("cooldowns") && prevTotal > 0 && currTotal == 0
			},
			Reset: func(prev, curr Payload) bool {
				return curr.Num("cooldowns.drug")+curr.Num("cooldowns.booster")+curr.Num("cooldowns.medical") > 0
			},
			Message: func(curr, prev Payload, cfg Config) []string {
				return []string{"Drug, booster and medical cooldowns are all at zero."}
			},
		},

		Definition{
			Key:      "travel_landed",
			Group:    GroupTravel,
			Cadence:  CadenceFast,
			Cooldown: 5 * time.Minute,
			Severity: SeverityInfo,
			Title:    "Landed",
			Emoji:    "🛬",
			Condition: func(prev, curr Payload, cfg Config) bool {
				return prev.Num("travel.time_left") > 0 && curr.Has("travel") && curr.Num("travel.time_left") == 0
			},
			Reset: func(prev, curr Payload) bool {
				return curr.Num("travel.time_left") > 0
			},
			Message: func(curr, prev Payload, cfg Config) []string {
				dest := curr.Str("travel.destination")
				if dest == "" {
					dest = prev.Str("travel.destination")
				}
				return []string{fmt.Sprintf("You have landed in %s.", dest)}
			},
		},

		Definition{
			Key:      "hospital_admitted",
			Group:    GroupStatus,
			Cadence:  CadenceSlow,
			Cooldown: 10 * time.Minute,
			Severity: SeverityWarning,
			Title:    "In hospital",
			Emoji:    "🏥",
			Condition: func(prev, curr Payload, cfg Config) bool {
				return curr.Str("status.state") == "Hospital"
			},
			Reset: func(prev, curr Payload) bool {
				return curr.Has("status") && curr.Str("status.state") != "Hospital"
			},
			Message: func(curr, prev Payload, cfg Config) []string {
				lines := []string{"You have been admitted to hospital."}
				if until := curr.Num("status.until"); until > 0 {
					lines = append(lines, fmt.Sprintf("Release at %s.",
						time.Unix(int64(until), 0).UTC().Format(time.RFC3339)))
				}
				return lines
			},
		},

		Definition{
			Key:      "jailed",
			Group:    GroupStatus,
			Cadence:  CadenceSlow,
			Cooldown: 10 * time.Minute,
			Severity: SeverityWarning,
			Title:    "In jail",
			Emoji:    "🚔",
			Condition: func(prev, curr Payload, cfg Config) bool {
				return curr.Str("status.state") == "Jail"
			},
			Reset: func(prev, curr Payload) bool {
				return curr.Has("status") && curr.Str("status.state") != "Jail"
			},
			Message: func(curr, prev Payload, cfg Config) []string {
				return []string{"You have been thrown in jail."}
			},
		},

		Definition{
			Key:      "new_message",
			Group:    GroupStatus,
			Cadence:  CadenceSlow,
			Cooldown: 15 * time.Minute,
			Severity: SeverityInfo,
			Title:    "New message",
			Emoji:    "✉️",
			Condition: func(prev, curr Payload, cfg Config) bool {
				return curr.Num("unread_messages") > prev.Num("unread_messages")
			},
			// Level-triggered: every further increase may fire again once the
			// cooldown allows it.
			Reset: func(prev, curr Payload) bool {
				return true
			},
			Message: func(curr, prev Payload, cfg Config) []string {
				return []string{fmt.Sprintf("You have %.0f unread messages.", curr.Num("unread_messages"))}
			},
		},

		Definition{
			Key:      "cash_threshold",
			Group:    GroupMoney,
			Cadence:  CadenceMedium,
			Cooldown: time.Hour,
			Severity: SeverityWarning,
			Title:    "Cash on hand",
			Emoji:    "💰",
			Condition: func(prev, curr Payload, cfg Config) bool {
				if cfg.CashThreshold.LessThanOrEqual(decimal.Zero) {
					return false
				}
				cash := decimal.NewFromFloat(curr.Num("money_onhand"))
				return cash.GreaterThanOrEqual(cfg.CashThreshold)
			},
			// Level-triggered by policy.
			Reset: func(prev, curr Payload) bool {
				return true
			},
			Message: func(curr, prev Payload, cfg Config) []string {
				cash := decimal.NewFromFloat(curr.Num("money_onhand"))
				return []string{
					fmt.Sprintf("You are carrying $%s in cash (threshold $%s).",
						cash.StringFixed(0), cfg.CashThreshold.StringFixed(0)),
					"Consider banking it before someone mugs you.",
				}
			},
		},
	)
}

func barFull(key, bar, title, emoji string, cooldown time.Duration) Definition {
	return Definition{
		Key:      key,
		Group:    GroupBars,
		Cadence:  CadenceFast,
		Cooldown: cooldown,
		Severity: SeverityInfo,
		Title:    title,
		Emoji:    emoji,
		Condition: func(prev, curr Payload, cfg Config) bool {
			return barAtMax(curr, bar)
		},
		Reset: func(prev, curr Payload) bool {
			return curr.Has(bar) && !barAtMax(curr, bar)
		},
		Message: func(curr, prev Payload, cfg Config) []string {
			return []string{fmt.Sprintf("%s is at %.0f/%.0f.",
				title, curr.Num(bar+".current"), curr.Num(bar+".maximum"))}
		},
	}
}

func cooldownOver(key, cd, title, emoji string, cooldown time.Duration) Definition {
	path := "cooldowns." + cd
	return Definition{
		Key:      key,
		Group:    GroupCooldowns,
		Cadence:  CadenceFast,
		Cooldown: cooldown,
		Severity: SeverityInfo,
		Title:    title,
		Emoji:    emoji,
		Condition: func(prev, curr Payload, cfg Config) bool {
			return prev.Num(path) > 0 && curr.Has("cooldowns") && curr.Num(path) == 0
		},
		Reset: func(prev, curr Payload) bool {
			return curr.Num(path) > 0
		},
		Message: func(curr, prev Payload, cfg Config) []string {
			return []string{fmt.Sprintf("%s. You can take another %s now.", title, cd)}
		},
	}
}

func barAtMax(p Payload, bar string) bool {
	max := p.Num(bar + ".maximum")
	return max > 0 && p.Num(bar+".current") >= max
}
