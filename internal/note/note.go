// Package note encodes billing and plan metadata as a structured public note.
//
// Dashboards carry per-server billing information in a free-text note field.
// The bridge smuggles two typed records through that field as JSON and merges
// freshly derived values from the node roster with whatever an operator has
// already stored there, so hand-edited notes are never clobbered.
package note

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"komari-bridge/internal/billing"
	"komari-bridge/internal/client/komari"
)

// noExpiry is the endDate sentinel for plans whose expiry is implausibly far
// in the future (treated as "never expires").
const noExpiry = "0000-00-00T23:59:59+08:00"

// BillingData is the billing record carried in a structured note.
type BillingData struct {
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	AutoRenewal string `json:"autoRenewal"` // "0" or "1"
	Cycle       string `json:"cycle"`
	Amount      string `json:"amount"`
}

// PlanData is the plan record carried in a structured note.
type PlanData struct {
	Bandwidth    string `json:"bandwidth"`
	TrafficVol   string `json:"trafficVol"`
	TrafficType  string `json:"trafficType"`
	IPv4         string `json:"IPv4"`
	IPv6         string `json:"IPv6"`
	NetworkRoute string `json:"networkRoute"`
	Extra        string `json:"extra"`
}

// Data is a decoded structured note. BillingDataMod is nil when the server
// carries no expiry information.
type Data struct {
	BillingDataMod *BillingData `json:"billingDataMod"`
	PlanDataMod    *PlanData    `json:"planDataMod"`
}

// Parse decodes a structured note. It returns nil when the note is empty, is
// not valid JSON, or contains neither sub-record. Parse never fails outward;
// malformed input simply means "no structured data".
func Parse(publicNote string) *Data {
	if publicNote == "" {
		return nil
	}

	var data Data
	if err := json.Unmarshal([]byte(publicNote), &data); err != nil {
		return nil
	}
	if data.BillingDataMod == nil && data.PlanDataMod == nil {
		return nil
	}
	return &data
}

// BuildFromNode derives a structured note from a directory node and merges it
// with an existing note. Existing non-empty fields always win over derived
// ones; empty fields are backfilled from the node. On any internal failure
// the existing note is returned unchanged.
func BuildFromNode(node *komari.Node, existingNote string) string {
	return build(node, existingNote, time.Now())
}

func build(node *komari.Node, existingNote string, now time.Time) string {
	if node == nil {
		return existingNote
	}

	existing := Parse(existingNote)

	cycle := billing.CycleLabel(node.BillingCycle)
	autoRenewal := "0"
	if node.AutoRenewal {
		autoRenewal = "1"
	}
	amount := deriveAmount(node.Price, node.Currency)

	// An expiry more than 100 years out means "never expires".
	endDate := node.ExpiredAt
	if expiry, err := billing.ParseDate(node.ExpiredAt); err == nil {
		if expiry.Sub(now) > 100*365*24*time.Hour {
			endDate = noExpiry
		}
	}

	startDate := deriveStartDate(node)

	// Traffic fields are only written for metered plans.
	var trafficVol, trafficType string
	if node.TrafficLimit > 0 {
		trafficVol = FormatBytes(node.TrafficLimit)
		trafficType = node.TrafficLimitType
	}

	// Free-text extra comes from the public remark, or failing that from the
	// tag list; an already-structured note keeps whatever extra it has.
	var extra string
	if existing == nil {
		if node.PublicRemark != "" {
			extra = node.PublicRemark
		} else if node.Tags != "" {
			extra = SanitizeTags(node.Tags)
		}
	}

	var existingBilling BillingData
	var existingPlan PlanData
	if existing != nil {
		if existing.BillingDataMod != nil {
			existingBilling = *existing.BillingDataMod
		}
		if existing.PlanDataMod != nil {
			existingPlan = *existing.PlanDataMod
		}
	}

	merged := Data{
		PlanDataMod: &PlanData{
			Bandwidth:    existingPlan.Bandwidth,
			TrafficVol:   pick(existingPlan.TrafficVol, trafficVol),
			TrafficType:  pick(existingPlan.TrafficType, trafficType),
			IPv4:         pick(existingPlan.IPv4, flag(node.IPv4)),
			IPv6:         pick(existingPlan.IPv6, flag(node.IPv6)),
			NetworkRoute: existingPlan.NetworkRoute,
			Extra:        pick(existingPlan.Extra, extra),
		},
	}
	if endDate != "" {
		merged.BillingDataMod = &BillingData{
			StartDate:   pick(existingBilling.StartDate, startDate),
			EndDate:     pick(existingBilling.EndDate, endDate),
			AutoRenewal: pick(existingBilling.AutoRenewal, autoRenewal),
			Cycle:       pick(existingBilling.Cycle, cycle),
			Amount:      pick(existingBilling.Amount, amount),
		}
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return existingNote
	}
	return string(out)
}

// deriveAmount formats a price as "{currency}{price}". Zero means no price
// information and -1 is the unmetered sentinel; both yield an empty amount.
func deriveAmount(price float64, currency string) string {
	if price == 0 || price == -1 {
		return ""
	}
	return currency + strconv.FormatFloat(price, 'f', -1, 64)
}

// deriveStartDate prefers the node's creation date, falling back to the
// expiry date minus one billing cycle. A resulting year before year 2 marks
// a placeholder date and is treated as unset.
func deriveStartDate(node *komari.Node) string {
	candidate := node.CreatedAt
	if candidate == "" && node.ExpiredAt != "" && node.BillingCycle != 0 {
		if expiry, err := billing.ParseDate(node.ExpiredAt); err == nil {
			candidate = expiry.AddDate(0, 0, -node.BillingCycle).Format(time.RFC3339)
		}
	}
	if candidate == "" {
		return ""
	}
	if start, err := billing.ParseDate(candidate); err == nil && start.Year() < 2 {
		return ""
	}
	return candidate
}

func pick(existing, derived string) string {
	if existing != "" {
		return existing
	}
	return derived
}

func flag(f komari.Flag) string {
	if f {
		return "1"
	}
	return ""
}

// tagColorPattern matches the color markup tokens Komari allows in tags,
// e.g. "<Blue>" or "< ruby >", case-insensitively.
var tagColorPattern = regexp.MustCompile(`(?i)<\s*(?:Gray|Gold|Bronze|Brown|Yellow|Amber|Orange|Tomato|Red|Ruby|Crimson|Pink|Plum|Purple|Violet|Iris|Indigo|Blue|Cyan|Teal|Jade|Green|Grass|Lime|Mint|Sky)\s*>`)

// SanitizeTags strips color markup from a ";"-separated tag list and joins
// the remaining tags with spaces.
func SanitizeTags(tags string) string {
	parts := strings.Split(tags, ";")
	cleaned := parts[:0]
	for _, part := range parts {
		part = strings.TrimSpace(tagColorPattern.ReplaceAllString(part, ""))
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	return strings.Join(cleaned, " ")
}

// byteUnits are the humanized size suffixes, in 1024 steps.
var byteUnits = []string{"Bytes", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders a byte count in its largest whole unit with at most two
// decimal places, e.g. 1610612736 -> "1.5 GB".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}

	value := float64(n)
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}

	s := strconv.FormatFloat(value, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s + " " + byteUnits[unit]
}
