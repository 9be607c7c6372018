package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vouchsafe/pkg/domain-errors"
)

func TestVoucherFromRecordDefaults(t *testing.T) {
	// The store omits false checkboxes and empty links entirely.
	voucher, err := VoucherFromRecord(Record{
		ID: "rec1",
		Fields: map[string]any{
			FieldReference: float64(12),
			FieldAmount:    float64(0),
		},
	})
	require.NoError(t, err)
	assert.False(t, voucher.Redeemed)
	assert.Empty(t, voucher.RedeemedBy)
	assert.Equal(t, int64(12), voucher.Reference)
}

func TestVoucherFromRecordRejectsMalformedRows(t *testing.T) {
	cases := map[string]Record{
		"missing reference": {ID: "rec1", Fields: map[string]any{FieldAmount: 1.0}},
		"missing amount":    {ID: "rec1", Fields: map[string]any{FieldReference: 1.0}},
		"string reference":  {ID: "rec1", Fields: map[string]any{FieldReference: "7", FieldAmount: 1.0}},
		"no row id":         {Fields: map[string]any{FieldReference: 1.0, FieldAmount: 1.0}},
		"bad redeemed": {ID: "rec1", Fields: map[string]any{
			FieldReference: 1.0, FieldAmount: 1.0, FieldRedeemed: "yes",
		}},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := VoucherFromRecord(rec)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}

func TestContractorFromRecordRequiresNameAndPhone(t *testing.T) {
	_, err := ContractorFromRecord(Record{ID: "rec1", Fields: map[string]any{FieldName: "Ada"}})
	require.Error(t, err)

	contractor, err := ContractorFromRecord(Record{
		ID:     "rec1",
		Fields: map[string]any{FieldName: "Ada", FieldPhone: "0700"},
	})
	require.NoError(t, err)
	assert.Equal(t, "0700", contractor.Phone)
}

func TestFilterFormulas(t *testing.T) {
	assert.Equal(t, "{Phone}='0700'", FilterByPhone("0700"))
	assert.Equal(t, "{Phone}='O\\'Brien'", FilterByPhone("O'Brien"))
	assert.Equal(t, "{Reference}=42", FilterByReference(42))
}
