package model

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type ExtractionMethod string

const (
	MethodTemplate ExtractionMethod = "template"
	MethodGeneric  ExtractionMethod = "generic"
	MethodTable    ExtractionMethod = "table"
	MethodAI       ExtractionMethod = "ai"
)

type LegitimacyStatus string

const (
	StatusSafe        LegitimacyStatus = "Safe"
	StatusNeedsReview LegitimacyStatus = "Needs Review"
	StatusHighRisk    LegitimacyStatus = "High Risk"
)

// PaymentNotSpecified is the payment method when the text names none.
const PaymentNotSpecified = "Not specified"

type SenderIdentity struct {
	CompanyName    string `json:"company_name"`
	RegistrationID string `json:"registration_id"`
	Address        string `json:"address"`
	Country        string `json:"country"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Website        string `json:"website"`
}

type InvoiceDetails struct {
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"`
	DueDate       string `json:"due_date"`
	PaymentTerms  string `json:"payment_terms"`
	PurchaseOrder string `json:"purchase_order"`
	CustomerRef   string `json:"customer_ref"`
}

// Amounts keeps values as written; MathValid reports whether
// subtotal, VAT, discount and shipping reconcile with the total.
type Amounts struct {
	Subtotal  string `json:"subtotal"`
	VATAmount string `json:"vat_amount"`
	VATRate   string `json:"vat_rate"`
	Total     string `json:"total"`
	Currency  string `json:"currency"`
	Discount  string `json:"discount"`
	Shipping  string `json:"shipping"`
	MathValid bool   `json:"math_valid"`
	MathNote  string `json:"math_note"`
}

type PaymentDestination struct {
	Method               string `json:"method"`
	BeneficiaryName      string `json:"beneficiary_name"`
	IBANOrAccount        string `json:"iban_or_account"`
	IBANValid            bool   `json:"iban_valid"`
	BankName             string `json:"bank_name"`
	BankCountry          string `json:"bank_country"`
	SwiftBIC             string `json:"swift_bic"`
	RoutingNumber        string `json:"routing_number"`
	ConsistentWithSender bool   `json:"consistent_with_sender"`
	ConsistencyNote      string `json:"consistency_note"`
}

type Legitimacy struct {
	Score            int              `json:"score"`
	Status           LegitimacyStatus `json:"status"`
	DataQualityScore int              `json:"data_quality_score"`
	Issues           []string         `json:"issues"`
	Warnings         []string         `json:"warnings"`
	FieldsFound      int              `json:"fields_found"`
	FieldsTotal      int              `json:"fields_total"`
}

type FieldMeta struct {
	Confidence Confidence       `json:"confidence"`
	Method     ExtractionMethod `json:"method"`
}

// ExtractionMeta says how each field was found, for manual review.
type ExtractionMeta struct {
	TemplateID   string               `json:"template_id,omitempty"`
	TemplateName string               `json:"template_name,omitempty"`
	Fields       map[string]FieldMeta `json:"fields"`
	Normalized   bool                 `json:"normalized"`
}

// Extraction is the detailed analysis of one document. It is returned to the
// caller only; the store keeps its Row projection.
type Extraction struct {
	Filename   string             `json:"filename"`
	Sender     SenderIdentity     `json:"sender"`
	Details    InvoiceDetails     `json:"details"`
	Amounts    Amounts            `json:"amounts"`
	Payment    PaymentDestination `json:"payment"`
	Legitimacy Legitimacy         `json:"legitimacy"`
	Summary    string             `json:"summary"`
	LineItems  []LineItem         `json:"line_items"`
	Meta       *ExtractionMeta    `json:"meta,omitempty"`
}

// Row projects the analysis onto the four stored columns.
func (e Extraction) Row() Invoice {
	return Invoice{
		Vendor: e.Sender.CompanyName,
		Date:   e.Details.InvoiceDate,
		Total:  e.Amounts.Total,
		VAT:    e.Amounts.VATAmount,
	}
}
