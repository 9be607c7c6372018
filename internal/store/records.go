package store

import (
	"fmt"
	"strings"

	dErrors "vouchsafe/pkg/domain-errors"
)

// Table and field names as they exist in the record store. The store has no
// enforced schema, so these constants plus the typed decoders below are the
// only schema this system has.
const (
	TableContractors = "Contractors"
	TableCodes       = "Codes"

	FieldName       = "Name"
	FieldPhone      = "Phone"
	FieldReference  = "Reference"
	FieldAmount     = "Amount"
	FieldRedeemed   = "Redeemed"
	FieldRedeemedBy = "RedeemedBy"
)

// Contractor is a registered redeemer, identified by phone number.
type Contractor struct {
	ID    string
	Name  string
	Phone string
}

// Voucher is a single-use value code. Reference is the store-assigned
// autonumber embedded in redemption URLs; ID is the store's opaque row id
// used for updates.
type Voucher struct {
	ID         string
	Reference  int64
	Amount     float64
	Redeemed   bool
	RedeemedBy string
}

// ContractorFromRecord decodes a contractor row, failing fast on missing or
// malformed fields instead of letting zero values flow into services.
func ContractorFromRecord(rec Record) (Contractor, error) {
	name, err := stringField(rec, FieldName)
	if err != nil {
		return Contractor{}, err
	}
	phone, err := stringField(rec, FieldPhone)
	if err != nil {
		return Contractor{}, err
	}
	if rec.ID == "" {
		return Contractor{}, dErrors.New(dErrors.CodeInvariantViolation, "contractor row has no id")
	}
	return Contractor{ID: rec.ID, Name: name, Phone: phone}, nil
}

// VoucherFromRecord decodes a voucher row. Redeemed and RedeemedBy may be
// absent (the store omits false checkboxes and empty links); Reference and
// Amount are required.
func VoucherFromRecord(rec Record) (Voucher, error) {
	if rec.ID == "" {
		return Voucher{}, dErrors.New(dErrors.CodeInvariantViolation, "voucher row has no id")
	}
	reference, err := numberField(rec, FieldReference)
	if err != nil {
		return Voucher{}, err
	}
	amount, err := numberField(rec, FieldAmount)
	if err != nil {
		return Voucher{}, err
	}

	v := Voucher{
		ID:        rec.ID,
		Reference: int64(reference),
		Amount:    amount,
	}
	if raw, ok := rec.Fields[FieldRedeemed]; ok {
		redeemed, ok := raw.(bool)
		if !ok {
			return Voucher{}, dErrors.Newf(dErrors.CodeInvariantViolation, "voucher field %s is not a bool", FieldRedeemed)
		}
		v.Redeemed = redeemed
	}
	if raw, ok := rec.Fields[FieldRedeemedBy]; ok {
		// Linked records come back as a list of row ids.
		links, ok := raw.([]any)
		if !ok {
			return Voucher{}, dErrors.Newf(dErrors.CodeInvariantViolation, "voucher field %s is not a link list", FieldRedeemedBy)
		}
		if len(links) > 0 {
			id, ok := links[0].(string)
			if !ok {
				return Voucher{}, dErrors.Newf(dErrors.CodeInvariantViolation, "voucher field %s holds a non-string id", FieldRedeemedBy)
			}
			v.RedeemedBy = id
		}
	}
	return v, nil
}

// FilterByPhone builds the formula matching an exact phone number.
func FilterByPhone(phone string) string {
	return fmt.Sprintf("{%s}='%s'", FieldPhone, escapeFormulaString(phone))
}

// FilterByReference builds the formula matching a numeric reference.
func FilterByReference(reference int64) string {
	return fmt.Sprintf("{%s}=%d", FieldReference, reference)
}

func escapeFormulaString(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}

func stringField(rec Record, field string) (string, error) {
	raw, ok := rec.Fields[field]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInvariantViolation, "row %s is missing field %s", rec.ID, field)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", dErrors.Newf(dErrors.CodeInvariantViolation, "row %s field %s is not a usable string", rec.ID, field)
	}
	return s, nil
}

func numberField(rec Record, field string) (float64, error) {
	raw, ok := rec.Fields[field]
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeInvariantViolation, "row %s is missing field %s", rec.ID, field)
	}
	// JSON numbers decode as float64.
	n, ok := raw.(float64)
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeInvariantViolation, "row %s field %s is not a number", rec.ID, field)
	}
	return n, nil
}
