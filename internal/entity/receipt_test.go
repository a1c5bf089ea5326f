package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineItemSum(t *testing.T) {
	price := func(v int64) *int64 { return &v }

	t.Run("all priced", func(t *testing.T) {
		d := StructuredReceiptData{LineItems: []LineItemCandidate{
			{TotalPrice: price(300)},
			{TotalPrice: price(700)},
		}}
		sum, counted := d.LineItemSum()
		assert.Equal(t, int64(1000), sum)
		assert.Equal(t, 2, counted)
	})

	t.Run("missing prices skipped", func(t *testing.T) {
		d := StructuredReceiptData{LineItems: []LineItemCandidate{
			{TotalPrice: price(300)},
			{Description: "unpriced"},
		}}
		sum, counted := d.LineItemSum()
		assert.Equal(t, int64(300), sum)
		assert.Equal(t, 1, counted)
	})

	t.Run("no items", func(t *testing.T) {
		var d StructuredReceiptData
		sum, counted := d.LineItemSum()
		assert.Zero(t, sum)
		assert.Zero(t, counted)
	})
}

// Raw OCR text must never survive serialization; anything marshaled may end
// up in a log line or a database column.
func TestLineItemRawTextNeverSerialized(t *testing.T) {
	total := int64(1250)
	now := time.Now().UTC()
	d := StructuredReceiptData{
		Vendor: &VendorInfo{Name: "Corner Grocery", Confidence: 0.9},
		TxDate: &now,
		Total:  &total,
		LineItems: []LineItemCandidate{
			{Description: "Coffee", TotalPrice: &total, RawText: "COFFEE BNS .5KG 12.50 CARD ****1234"},
		},
	}

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "CARD ****1234")
	assert.NotContains(t, string(out), "RawText")
	assert.NotContains(t, string(out), "raw_text")
	assert.Contains(t, string(out), "Coffee")
}
