package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// Missing marks a field the extractor could not resolve.
	Missing = "—"
	// UnknownVendor is the vendor fallback when no name can be found.
	UnknownVendor = "Unknown"
)

// Invoice is the normalized record kept in the store and exported to the spreadsheet.
type Invoice struct {
	Vendor string `json:"vendor"`
	Date   string `json:"date"`
	Total  string `json:"total"`
	VAT    string `json:"vat"`
}

// EmptyInvoice returns a record with every field set to the missing sentinel.
func EmptyInvoice(vendor string) Invoice {
	return Invoice{Vendor: vendor, Date: Missing, Total: Missing, VAT: Missing}
}

// FlexString decodes a JSON string or number into text. Model output is not
// consistent about quoting amounts and quantities.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flex string: expected string or number, got %s", string(data))
	}
	*s = FlexString(n.String())
	return nil
}

func (s FlexString) String() string {
	return string(s)
}

// LineItem is one billed line. Amount is only set by table extraction.
type LineItem struct {
	Description FlexString `json:"description"`
	Quantity    FlexString `json:"quantity"`
	UnitPrice   FlexString `json:"unit_price"`
	Amount      FlexString `json:"amount,omitempty"`
}

// ExtendedInvoice is the richer record produced by the AI extraction path.
type ExtendedInvoice struct {
	VendorName      FlexString `json:"vendor_name"`
	VendorCVR       FlexString `json:"vendor_cvr"`
	InvoiceNumber   FlexString `json:"invoice_number"`
	IssueDate       FlexString `json:"issue_date"`
	DueDate         FlexString `json:"due_date"`
	LineItems       []LineItem `json:"line_items"`
	Subtotal        FlexString `json:"subtotal"`
	VATAmount       FlexString `json:"vat_amount"`
	Total           FlexString `json:"total"`
	Currency        FlexString `json:"currency"`
	IBAN            FlexString `json:"iban"`
	BeneficiaryName FlexString `json:"beneficiary_name"`
	BankName        FlexString `json:"bank_name"`
	SwiftBIC        FlexString `json:"swift_bic"`
}

// Normalize trims every scalar and replaces blanks with the missing sentinel.
func (e *ExtendedInvoice) Normalize() {
	for _, f := range []*FlexString{
		&e.VendorName, &e.VendorCVR, &e.InvoiceNumber, &e.IssueDate, &e.DueDate,
		&e.Subtotal, &e.VATAmount, &e.Total, &e.Currency, &e.IBAN,
		&e.BeneficiaryName, &e.BankName, &e.SwiftBIC,
	} {
		*f = orMissing(*f)
	}
	if e.LineItems == nil {
		e.LineItems = []LineItem{}
	}
	for i := range e.LineItems {
		item := &e.LineItems[i]
		item.Description = orMissing(item.Description)
		item.Quantity = orMissing(item.Quantity)
		item.UnitPrice = orMissing(item.UnitPrice)
	}
}

// Summary projects the extended record onto the four stored columns.
func (e ExtendedInvoice) Summary() Invoice {
	return Invoice{
		Vendor: string(orMissing(e.VendorName)),
		Date:   string(orMissing(e.IssueDate)),
		Total:  string(orMissing(e.Total)),
		VAT:    string(orMissing(e.VATAmount)),
	}
}

func orMissing(s FlexString) FlexString {
	v := strings.TrimSpace(string(s))
	if v == "" {
		return Missing
	}
	return FlexString(v)
}
