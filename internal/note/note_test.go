package note

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"komari-bridge/internal/client/komari"
)

var testNow = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func TestParse_Empty(t *testing.T) {
	assert.Nil(t, Parse(""))
}

func TestParse_InvalidJSON(t *testing.T) {
	assert.Nil(t, Parse("just a human note"))
	assert.Nil(t, Parse("{broken"))
}

func TestParse_NoSubRecords(t *testing.T) {
	assert.Nil(t, Parse(`{"other":"stuff"}`))
	assert.Nil(t, Parse(`{"billingDataMod":null,"planDataMod":null}`))
}

func TestParse_BillingOnly(t *testing.T) {
	data := Parse(`{"billingDataMod":{"endDate":"2025-07-01T00:00:00Z","amount":"$5"}}`)
	require.NotNil(t, data)
	require.NotNil(t, data.BillingDataMod)
	assert.Nil(t, data.PlanDataMod)
	assert.Equal(t, "2025-07-01T00:00:00Z", data.BillingDataMod.EndDate)
	assert.Equal(t, "$5", data.BillingDataMod.Amount)
	// Missing fields default to empty strings.
	assert.Equal(t, "", data.BillingDataMod.StartDate)
	assert.Equal(t, "", data.BillingDataMod.Cycle)
}

func TestParse_RoundTripIdempotent(t *testing.T) {
	notes := []string{
		`{"billingDataMod":{"startDate":"2025-01-01","endDate":"2025-07-01","autoRenewal":"1","cycle":"month","amount":"$5"},"planDataMod":{"bandwidth":"1Gbps","trafficVol":"1 TB","trafficType":"both","IPv4":"1","IPv6":"","networkRoute":"4837","extra":"promo"}}`,
		`{"planDataMod":{"bandwidth":"100Mbps"}}`,
		`{"billingDataMod":{"endDate":"0000-00-00T23:59:59+08:00"}}`,
	}
	for _, original := range notes {
		first := Parse(original)
		require.NotNil(t, first, original)

		encoded, err := json.Marshal(first)
		require.NoError(t, err)

		second := Parse(string(encoded))
		assert.Equal(t, first, second, original)
	}
}

func TestBuildFromNode_DerivesAllFields(t *testing.T) {
	node := &komari.Node{
		UUID:             "u-1",
		BillingCycle:     30,
		AutoRenewal:      true,
		Price:            5,
		Currency:         "$",
		CreatedAt:        "2025-01-01T00:00:00Z",
		ExpiredAt:        "2025-07-01T00:00:00Z",
		TrafficLimit:     1099511627776, // 1 TB
		TrafficLimitType: "sum",
		IPv4:             true,
		IPv6:             false,
		Tags:             "<Blue>NAT;IPv6 only",
	}

	data := Parse(build(node, "", testNow))
	require.NotNil(t, data)
	require.NotNil(t, data.BillingDataMod)
	require.NotNil(t, data.PlanDataMod)

	assert.Equal(t, "2025-01-01T00:00:00Z", data.BillingDataMod.StartDate)
	assert.Equal(t, "2025-07-01T00:00:00Z", data.BillingDataMod.EndDate)
	assert.Equal(t, "1", data.BillingDataMod.AutoRenewal)
	assert.Equal(t, "month", data.BillingDataMod.Cycle)
	assert.Equal(t, "$5", data.BillingDataMod.Amount)

	assert.Equal(t, "1 TB", data.PlanDataMod.TrafficVol)
	assert.Equal(t, "sum", data.PlanDataMod.TrafficType)
	assert.Equal(t, "1", data.PlanDataMod.IPv4)
	assert.Equal(t, "", data.PlanDataMod.IPv6)
	assert.Equal(t, "NAT IPv6 only", data.PlanDataMod.Extra)
}

func TestBuildFromNode_PreservesExistingFields(t *testing.T) {
	node := &komari.Node{
		Price:        10,
		Currency:     "$",
		BillingCycle: 30,
		ExpiredAt:    "2025-07-01T00:00:00Z",
	}
	existing := `{"billingDataMod":{"amount":"5"}}`

	data := Parse(build(node, existing, testNow))
	require.NotNil(t, data)
	require.NotNil(t, data.BillingDataMod)

	// Stored values win over freshly derived ones.
	assert.Equal(t, "5", data.BillingDataMod.Amount)
	// Empty stored fields are backfilled from the node.
	assert.Equal(t, "2025-07-01T00:00:00Z", data.BillingDataMod.EndDate)
	assert.Equal(t, "month", data.BillingDataMod.Cycle)
}

func TestBuildFromNode_FarFutureExpiryBecomesSentinel(t *testing.T) {
	node := &komari.Node{ExpiredAt: "2200-01-01T00:00:00Z", BillingCycle: 30}

	data := Parse(build(node, "", testNow))
	require.NotNil(t, data)
	require.NotNil(t, data.BillingDataMod)
	assert.Equal(t, "0000-00-00T23:59:59+08:00", data.BillingDataMod.EndDate)
}

func TestBuildFromNode_StartDateBackComputed(t *testing.T) {
	node := &komari.Node{ExpiredAt: "2025-07-01T00:00:00Z", BillingCycle: 30}

	data := Parse(build(node, "", testNow))
	require.NotNil(t, data)
	require.NotNil(t, data.BillingDataMod)
	assert.Equal(t, "2025-06-01T00:00:00Z", data.BillingDataMod.StartDate)
}

func TestBuildFromNode_PlaceholderStartDateUnset(t *testing.T) {
	node := &komari.Node{
		CreatedAt: "0001-01-01T00:00:00Z",
		ExpiredAt: "2025-07-01T00:00:00Z",
	}

	data := Parse(build(node, "", testNow))
	require.NotNil(t, data)
	require.NotNil(t, data.BillingDataMod)
	assert.Equal(t, "", data.BillingDataMod.StartDate)
}

func TestBuildFromNode_NoExpiryMeansNilBilling(t *testing.T) {
	node := &komari.Node{UUID: "u-1", TrafficLimit: 1024}

	raw := build(node, "", testNow)
	data := Parse(raw)
	require.NotNil(t, data)
	assert.Nil(t, data.BillingDataMod)
	require.NotNil(t, data.PlanDataMod)
	assert.Equal(t, "1 KB", data.PlanDataMod.TrafficVol)

	// The wire form spells out the null so consumers see an explicit
	// "no billing data" marker.
	assert.Contains(t, raw, `"billingDataMod":null`)
}

func TestBuildFromNode_ZeroTrafficWritesNoTrafficFields(t *testing.T) {
	node := &komari.Node{ExpiredAt: "2025-07-01T00:00:00Z", TrafficLimitType: "max"}

	data := Parse(build(node, "", testNow))
	require.NotNil(t, data)
	require.NotNil(t, data.PlanDataMod)
	assert.Equal(t, "", data.PlanDataMod.TrafficVol)
	assert.Equal(t, "", data.PlanDataMod.TrafficType)
}

func TestBuildFromNode_RemarkPreferredOverTags(t *testing.T) {
	node := &komari.Node{
		PublicRemark: "operator remark",
		Tags:         "<Red>tagged",
	}

	data := Parse(build(node, "", testNow))
	require.NotNil(t, data)
	assert.Equal(t, "operator remark", data.PlanDataMod.Extra)
}

func TestBuildFromNode_ExistingNoteSuppressesTagExtra(t *testing.T) {
	node := &komari.Node{Tags: "<Red>tagged"}
	existing := `{"planDataMod":{"bandwidth":"1Gbps"}}`

	data := Parse(build(node, existing, testNow))
	require.NotNil(t, data)
	assert.Equal(t, "1Gbps", data.PlanDataMod.Bandwidth)
	// Tag-derived text never overwrites a structured note.
	assert.Equal(t, "", data.PlanDataMod.Extra)
}

func TestBuildFromNode_UnmeteredPriceSentinel(t *testing.T) {
	node := &komari.Node{Price: -1, Currency: "$", ExpiredAt: "2025-07-01T00:00:00Z"}

	data := Parse(build(node, "", testNow))
	require.NotNil(t, data)
	require.NotNil(t, data.BillingDataMod)
	assert.Equal(t, "", data.BillingDataMod.Amount)
}

func TestBuildFromNode_NilNodeFailSafe(t *testing.T) {
	existing := `{"planDataMod":{"bandwidth":"1Gbps"}}`
	assert.Equal(t, existing, BuildFromNode(nil, existing))
}

func TestSanitizeTags(t *testing.T) {
	tests := []struct {
		tags string
		want string
	}{
		{"<Blue>NAT;<Red>Promo", "NAT Promo"},
		{"< green >eco;plain", "eco plain"},
		{"a;;b; ;c", "a b c"},
		{"<Magenta>keep", "<Magenta>keep"}, // unknown colors are not markup
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeTags(tt.tags); got != tt.want {
			t.Errorf("SanitizeTags(%q) = %q, want %q", tt.tags, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 Bytes"},
		{512, "512 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1073741824, "1 GB"},
		{1610612736, "1.5 GB"},
		{1099511627776, "1 TB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
