package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/Hizashii/money/model"
)

// Field keys used by vendor template overrides and extraction metadata.
const (
	fieldCompanyName     = "company_name"
	fieldRegistrationID  = "registration_id"
	fieldInvoiceNumber   = "invoice_number"
	fieldInvoiceDate     = "invoice_date"
	fieldDueDate         = "due_date"
	fieldTotal           = "total"
	fieldSubtotal        = "subtotal"
	fieldVATAmount       = "vat_amount"
	fieldIBANOrAccount   = "iban_or_account"
	fieldBeneficiaryName = "beneficiary_name"
	fieldLineItems       = "line_items"
)

const (
	maxCompanyLen     = 80
	maxBankNameLen    = 50
	maxBeneficiaryLen = 80
	shortDocumentLen  = 200
	fieldsScored      = 15
)

// validatedRule matches re and passes the first capture group through check,
// which may clean the value or reject it.
func validatedRule(name string, re *regexp.Regexp, check func(string) (string, bool)) Rule {
	return Rule{
		Name: name,
		Match: func(text string) (string, bool) {
			m := re.FindStringSubmatch(text)
			if m == nil {
				return "", false
			}
			return check(m[1])
		},
	}
}

// labelRule reports value when re matches anywhere in the text.
func labelRule(name string, re *regexp.Regexp, value string) Rule {
	return Rule{
		Name: name,
		Match: func(text string) (string, bool) {
			return value, re.MatchString(text)
		},
	}
}

// ---- sender identity ----

const companySuffixes = `Ltd|Limited|LLC|Inc|Incorporated|Corp|Corporation|Co|Company|PLC|LP|LLP|` +
	`GmbH|AG|KG|OHG|UG|e\.?V\.?|eG|SA|SARL|SAS|EURL|SNC|SL|SRL|SpA|Srl|` +
	`A/S|ApS|AS|AB|Oy|Oyj|BV|NV|VOF|CV|Pty|Pvt|Pte`

var (
	companySuffixRe      = regexp.MustCompile(`(?i)\b(?:` + companySuffixes + `)\b\.?`)
	companyNameLabelRe   = regexp.MustCompile(`(?i)(?:Company\s*name|Business\s*name|Trading\s*as|T/A)\s*[:\s]*\n?\s*([^\n]{3,80})`)
	companySenderLabelRe = regexp.MustCompile(`(?i)\b(?:From|Bill\s*from|Invoice\s*from|Vendor|Seller|Issued\s*by|Supplier)\b\s*[:\s]*\n?\s*([^\n]{3,80})`)
	companyHeadingSkipRe = regexp.MustCompile(`(?i)^(?:invoice|date|total|amount|tax|vat|payment|to:|from:)`)
	allDigitsRe          = regexp.MustCompile(`^\d+$`)
	trailingPunctRe      = regexp.MustCompile(`[,;:]+$`)
)

func cleanCompanyName(name string) string {
	name = trailingPunctRe.ReplaceAllString(strings.TrimSpace(name), "")
	name = strings.TrimSpace(spaceRunRe.ReplaceAllString(name, " "))
	return truncateRunes(name, maxCompanyLen)
}

func companyLabel(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if utf8.RuneCountInString(v) < 3 || allDigitsRe.MatchString(v) {
		return "", false
	}
	return cleanCompanyName(v), true
}

func documentLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); utf8.RuneCountInString(l) > 2 {
			lines = append(lines, l)
		}
	}
	return lines
}

// CompanyRules resolve the sender's legal name.
var CompanyRules = []Rule{
	validatedRule("company_name_label", companyNameLabelRe, companyLabel),
	validatedRule("sender_label", companySenderLabelRe, companyLabel),
	{
		Name: "legal_suffix",
		Match: func(text string) (string, bool) {
			lines := documentLines(text)
			for _, l := range lines[:min(15, len(lines))] {
				if !companySuffixRe.MatchString(l) {
					continue
				}
				if name := cleanCompanyName(l); utf8.RuneCountInString(name) >= 3 {
					return name, true
				}
			}
			return "", false
		},
	},
	{
		Name: "heading",
		Match: func(text string) (string, bool) {
			lines := documentLines(text)
			for _, l := range lines[:min(5, len(lines))] {
				if utf8.RuneCountInString(l) > 60 || l[0] < 'A' || l[0] > 'Z' || companyHeadingSkipRe.MatchString(l) {
					continue
				}
				return cleanCompanyName(l), true
			}
			return "", false
		},
	},
}

func taxID(v string) (string, bool) {
	id := strings.Join(strings.Fields(v), "")
	if n := len(id); n < 6 || n > 20 {
		return "", false
	}
	return id, true
}

// RegistrationIDRules resolve the sender's VAT or company registration number.
var RegistrationIDRules = []Rule{
	validatedRule("eu_vat", regexp.MustCompile(`(?i)\b((?:AT|BE|BG|CY|CZ|DE|DK|EE|EL|ES|FI|FR|GB|HR|HU|IE|IT|LT|LU|LV|MT|NL|PL|PT|RO|SE|SI|SK)[A-Z0-9]{8,12})\b`), taxID),
	validatedRule("vat_label", regexp.MustCompile(`(?i)\b(?:VAT|TVA|MwSt|BTW|IVA|USt|MOMS)\s*(?:no\.?|number|ID|Nr\.?|#)?\s*[:\s]*([A-Z]{0,2}[0-9A-Z\- \t]{6,20})`), taxID),
	validatedRule("registration_label", regexp.MustCompile(`(?i)\b(?:CVR|Org\.?\s*nr?\.?|Company\s*(?:reg\.?|registration)\s*(?:no\.?|number)?|Registration|ABN|ACN|EIN|TIN)\b\s*[:\s#]*([0-9A-Z\- \t]{6,20})`), taxID),
	validatedRule("tax_id_label", regexp.MustCompile(`(?i)\b(?:Tax\s*ID|Tax\s*number|Steuernummer|NIF|CIF|SIRET|SIREN)\s*[:\s]*([0-9A-Z\- \t/]{6,20})`), taxID),
	validatedRule("bare_vat", regexp.MustCompile(`\b([A-Z]{2}[0-9]{8,10})\b`), taxID),
}

func emailMatch(text string) (string, bool) {
	m := emailRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

var emailRe = regexp.MustCompile(`\b([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})\b`)

func phoneNumber(v string) (string, bool) {
	v = strings.TrimSpace(v)
	digits := 0
	for _, r := range v {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return v, digits >= 8
}

// PhoneRules prefer a labeled number over a bare international one.
var PhoneRules = []Rule{
	validatedRule("label", regexp.MustCompile(`(?i)\b(?:Tel\.?|Phone|Ph\.?|Mob(?:ile)?|Fax)\s*[:\s]*([+\d \t\-().]{8,20})`), phoneNumber),
	validatedRule("international", regexp.MustCompile(`(\+\d{1,3}[ \-]?\d{2,4}[ \-]?\d{3,4}[ \-]?\d{3,4})\b`), phoneNumber),
	validatedRule("area_code", regexp.MustCompile(`(\(\d{2,4}\)[ \t]*\d{3,4}[ \-]?\d{3,4})\b`), phoneNumber),
}

var websiteRe = regexp.MustCompile(`(?i)\b((?:https?://)?(?:www\.)?[a-z0-9][a-z0-9\-]*\.[a-z]{2,}(?:/[^\s]*)?)\b`)

// websiteMatch skips both halves of an e-mail address.
func websiteMatch(text string) (string, bool) {
	for _, loc := range websiteRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		if (start > 0 && text[start-1] == '@') || (end < len(text) && text[end] == '@') {
			continue
		}
		return strings.ToLower(text[start:end]), true
	}
	return "", false
}

func addressValue(v string) (string, bool) {
	var parts []string
	for _, l := range strings.Split(v, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	addr := strings.Join(parts, ", ")
	if n := utf8.RuneCountInString(addr); n < 10 || n > 150 {
		return "", false
	}
	return addr, true
}

// AddressRules resolve the sender's postal address.
var AddressRules = []Rule{
	validatedRule("label", regexp.MustCompile(`(?i)\b(?:Address|Registered\s*(?:office|address)|Business\s*address|Street)\s*[:\s]*\n?\s*([^\n]+(?:\n[^\n]+){0,3})`), addressValue),
	validatedRule("street", regexp.MustCompile(`(?i)(\d+[A-Za-z]?[ \t]+[A-Za-z \t]+(?:Street|St\.?|Avenue|Ave\.?|Road|Rd\.?|Boulevard|Blvd\.?|Lane|Ln\.?|Drive|Dr\.?|Way|Place|Pl\.?|Court|Ct\.?)[^\n]*(?:\n[^\n]{5,50})?)`), addressValue),
	validatedRule("postcode", regexp.MustCompile(`(?i)([A-Za-z][A-Za-z \t]+[ \t]+\d+[A-Za-z]?[, \t]+\d{4,5}[ \t]+[A-Za-z \t]+)`), addressValue),
}

var countryCodes = map[string]string{
	"DK": "Denmark", "DE": "Germany", "GB": "United Kingdom", "UK": "United Kingdom",
	"FR": "France", "NL": "Netherlands", "BE": "Belgium", "AT": "Austria",
	"CH": "Switzerland", "IT": "Italy", "ES": "Spain", "PT": "Portugal",
	"SE": "Sweden", "NO": "Norway", "FI": "Finland", "PL": "Poland",
	"CZ": "Czech Republic", "HU": "Hungary", "IE": "Ireland", "US": "USA",
	"CA": "Canada", "AU": "Australia", "NZ": "New Zealand", "JP": "Japan",
	"CN": "China", "IN": "India", "BR": "Brazil", "MX": "Mexico",
}

// countryNames are searched in order, so English names beat local ones.
var countryNames = []struct{ key, country string }{
	{"DENMARK", "Denmark"}, {"GERMANY", "Germany"}, {"DEUTSCHLAND", "Germany"},
	{"FRANCE", "France"}, {"NETHERLANDS", "Netherlands"}, {"HOLLAND", "Netherlands"},
	{"BELGIUM", "Belgium"}, {"AUSTRIA", "Austria"}, {"ÖSTERREICH", "Austria"},
	{"SWITZERLAND", "Switzerland"}, {"SCHWEIZ", "Switzerland"}, {"SUISSE", "Switzerland"},
	{"ITALY", "Italy"}, {"ITALIA", "Italy"}, {"SPAIN", "Spain"}, {"ESPAÑA", "Spain"},
	{"PORTUGAL", "Portugal"}, {"SWEDEN", "Sweden"}, {"SVERIGE", "Sweden"},
	{"NORWAY", "Norway"}, {"NORGE", "Norway"}, {"FINLAND", "Finland"}, {"SUOMI", "Finland"},
	{"POLAND", "Poland"}, {"POLSKA", "Poland"}, {"IRELAND", "Ireland"},
	{"UNITED STATES", "USA"}, {"UNITED KINGDOM", "United Kingdom"},
}

var countryLabelRe = regexp.MustCompile(`(?i)\b(?:Country|Land|Pays|País)\s*[:\s]*([A-Za-z ]+)`)

// countryRules resolve a country, trusting the IBAN prefix first.
func countryRules(ibanCode string) []Rule {
	return []Rule{
		{
			Name: "iban_prefix",
			Match: func(string) (string, bool) {
				c, ok := countryCodes[strings.ToUpper(ibanCode)]
				return c, ok
			},
		},
		{
			Name: "label",
			Match: func(text string) (string, bool) {
				m := countryLabelRe.FindStringSubmatch(text)
				if m == nil {
					return "", false
				}
				v := strings.TrimSpace(m[1])
				if c, ok := countryCodes[strings.ToUpper(v)]; ok {
					return c, true
				}
				for _, n := range countryNames {
					if strings.ToUpper(v) == n.key {
						return n.country, true
					}
				}
				return v, len(v) >= 2 && len(v) <= 30
			},
		},
		{
			Name: "name",
			Match: func(text string) (string, bool) {
				upper := strings.ToUpper(text)
				for _, n := range countryNames {
					if strings.Contains(upper, n.key) {
						return n.country, true
					}
				}
				return "", false
			},
		},
	}
}

// ---- invoice details ----

func invoiceNumber(v string) (string, bool) {
	v = strings.TrimSpace(v)
	n := utf8.RuneCountInString(v)
	return v, n >= 3 && n <= 30
}

// InvoiceNumberRules resolve the document number.
var InvoiceNumberRules = []Rule{
	validatedRule("invoice_label", regexp.MustCompile(`(?i)(?:Invoice\s*(?:no\.?|number|#|ID)|Faktura(?:nummer)?|Rechnung(?:snummer)?|Facture\s*n[°o]?)\s*[:\s#]*([A-Z0-9][A-Z0-9\-/.]{2,25})`), invoiceNumber),
	validatedRule("reference_label", regexp.MustCompile(`(?i)\b(?:Inv\b\.?\s*(?:no\.?|#)?|Reference|Ref\b\.?\s*(?:no\.?|#)?)\s*[:\s#]*([A-Z0-9][A-Z0-9\-/.]{2,25})`), invoiceNumber),
	validatedRule("document_label", regexp.MustCompile(`(?i)\b(?:Document\s*(?:no\.?|number|#)|Doc\b\.?\s*(?:no\.?|#)?)\s*[:\s#]*([A-Z0-9][A-Z0-9\-/.]{2,25})`), invoiceNumber),
	validatedRule("inv_prefix", regexp.MustCompile(`(?i)\b(INV[\-/]?\d{3,10})\b`), invoiceNumber),
	validatedRule("year_sequence", regexp.MustCompile(`\b(\d{4}[\-/]\d{3,6})\b`), invoiceNumber),
}

const monthNames = `Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?`

// dateTokenRes recognise a date inside a labeled value.
var dateTokenRes = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}`),
	regexp.MustCompile(`\d{1,2}\s+[A-Za-z]+\s+\d{2,4}`),
	regexp.MustCompile(`[A-Za-z]+\s+\d{1,2}[,\s]+\d{2,4}`),
}

// dateToken returns the first date-shaped token in v.
func dateToken(v string) (string, bool) {
	v = trailingPunctRe.ReplaceAllString(strings.TrimSpace(v), "")
	for _, re := range dateTokenRes {
		if tok := re.FindString(v); tok != "" {
			return truncateRunes(tok, 25), true
		}
	}
	return "", false
}

func labeledDateRule(name, labels string) Rule {
	return validatedRule(name, regexp.MustCompile(`(?i)\b(?:`+labels+`)\s*[:\s]*([^\n]{6,25})`), dateToken)
}

// InvoiceDateRules resolve the issue date: a labeled date, then any date.
var InvoiceDateRules = []Rule{
	labeledDateRule("label", `Invoice\s*date|Date\s*of\s*invoice|Issue\s*date|Dated|Fakturadato|Rechnungsdatum|Date\s*de\s*facture|Date`),
	patternRule("iso", regexp.MustCompile(`\b(\d{4}[-/]\d{1,2}[-/]\d{1,2})\b`)),
	patternRule("slashed", regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{2,4})\b`)),
	patternRule("dotted", regexp.MustCompile(`\b(\d{1,2}[.\-]\d{1,2}[.\-]\d{2,4})\b`)),
	patternRule("day_month", regexp.MustCompile(`(?i)\b(\d{1,2}\s+(?:`+monthNames+`)[,\s]+\d{2,4})\b`)),
	patternRule("month_day", regexp.MustCompile(`(?i)\b((?:`+monthNames+`)\s+\d{1,2}[,\s]+\d{2,4})\b`)),
}

// DueDateRules only accept a labeled date; an unlabeled date is the issue date.
var DueDateRules = []Rule{
	labeledDateRule("label", `Due\s*date|Payment\s*due|Pay\s*by|Due`),
}

var PaymentTermsRules = []Rule{
	patternRule("label", regexp.MustCompile(`(?i)\b(?:Payment\s*terms?|Terms|Betalingsvilkår|Zahlungsbedingungen)\s*[:\s]*([^\n]{3,40})`)),
	patternRule("phrase", regexp.MustCompile(`(?i)\b(Net\s*\d+|Due\s*(?:on|upon)\s*receipt|\d+\s*days?(?:\s*net)?)\b`)),
}

var PurchaseOrderRules = []Rule{
	patternRule("label", regexp.MustCompile(`(?i)\b(?:P\.?O\b\.?|Purchase\s*order|Order)\s*(?:no\.?|number|#)?\s*[:\s]*([A-Z0-9\-]{3,20})`)),
}

var CustomerRefRules = []Rule{
	patternRule("label", regexp.MustCompile(`(?i)\b(?:Customer\s*(?:reference|ref\.?)|Your\s*ref\.?|Client\s*(?:no\.?|number))\s*[:\s]*([A-Z0-9\-]{3,20})`)),
}

// ---- amounts ----

var (
	amountNoiseRe     = regexp.MustCompile(`[€$£¥₹A-Za-z\s]`)
	commaDecimalRe    = regexp.MustCompile(`\d,\d{2}$`)
	dotDecimalRe      = regexp.MustCompile(`\d\.\d{2}$`)
	currencySymbolsRe = regexp.MustCompile(`[€$£¥]`)
)

// parseLooseAmount reads US (1,234.56) and European (1.234,56) amounts.
// Anything unreadable is zero.
func parseLooseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" || s == model.Missing || s == "-" {
		return decimal.Zero
	}
	cleaned := amountNoiseRe.ReplaceAllString(s, "")
	if commaDecimalRe.MatchString(cleaned) && !dotDecimalRe.MatchString(cleaned) {
		cleaned = strings.Replace(strings.ReplaceAll(cleaned, ".", ""), ",", ".", 1)
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func positiveAmount(v string) (string, bool) {
	v = strings.TrimSpace(currencySymbolsRe.ReplaceAllString(v, ""))
	return v, parseLooseAmount(v).IsPositive()
}

// amountRule takes the first labeled amount that is positive and not a
// percentage, so "VAT 25%" is left to the rate rules.
func amountRule(name string, re *regexp.Regexp) Rule {
	return Rule{
		Name: name,
		Match: func(text string) (string, bool) {
			for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
				if strings.HasPrefix(strings.TrimLeft(text[loc[1]:], " \t"), "%") {
					continue
				}
				if v, ok := positiveAmount(text[loc[2]:loc[3]]); ok {
					return v, true
				}
			}
			return "", false
		},
	}
}

// amountRules builds the labeled-amount chain for one set of labels: an
// amount carrying a currency marker first, then a bare number.
func amountRules(labels ...string) []Rule {
	l := strings.Join(labels, "|")
	return []Rule{
		amountRule("with_currency", regexp.MustCompile(`(?i)\b(?:`+l+`)\s*[:\s]*([€$£¥]\s*[\d.,]+|[\d.,]+\s*[€$£¥]|[\d.,]+\s*(?:EUR|USD|GBP|DKK))`)),
		amountRule("bare", regexp.MustCompile(`(?i)\b(?:`+l+`)\s*[:\s]*(\d[\d.,]{1,15})`)),
	}
}

var (
	SubtotalRules  = amountRules(`Subtotal`, `Sub\s*total`, `Net\s*(?:amount)?`, `Amount\s*before\s*(?:tax|VAT)`, `Netto`)
	VATAmountRules = amountRules(`VAT`, `Tax`, `GST`, `TVA`, `MwSt`, `Moms`, `BTW`, `IVA`)
	FullTotalRules = amountRules(`Total`, `Amount\s*due`, `Grand\s*total`, `Total\s*due`, `Balance\s*due`, `Gesamt`, `Totaal`)
	DiscountRules  = amountRules(`Discount`, `Rabatt`, `Korting`, `Remise`)
	ShippingRules  = amountRules(`Shipping`, `Freight`, `Delivery`, `Versand`, `Verzendkosten`)
)

func percent(v string) (string, bool) {
	return strings.Replace(v, ",", ".", 1) + "%", true
}

var VATRateRules = []Rule{
	validatedRule("rate_first", regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*%\s*(?:VAT|tax|TVA|MwSt|Moms)`), percent),
	validatedRule("label_first", regexp.MustCompile(`(?i)\b(?:VAT|Tax|TVA|MwSt|Moms)\s*[@:]\s*(\d+(?:[.,]\d+)?)\s*%`), percent),
	validatedRule("parenthesised", regexp.MustCompile(`(?i)\b(?:VAT|Tax)\s*\((\d+(?:[.,]\d+)?)\s*%\)`), percent),
}

// ---- payment destination ----

var (
	ibanLabelRe    = regexp.MustCompile(`(?i)\bIBAN\s*[:\s]*([A-Z]{2}[ \t]*\d{2}[ \tA-Z0-9]{10,30})`)
	ibanBareRe     = regexp.MustCompile(`\b([A-Z]{2}\d{2} ?(?:[A-Z0-9]{4} ?){2,7}[A-Z0-9]{1,4})\b`)
	accountLabelRe = regexp.MustCompile(`(?i)\b(?:Account\s*(?:no\.?|number)|Bank\s*account|Konto(?:nummer)?)\s*[:\s]*([A-Z0-9\- \t]{6,25})`)
)

// extractIBAN returns an IBAN and its validity, or a plain account number
// which is never valid.
func extractIBAN(text string) (string, bool) {
	for _, re := range []*regexp.Regexp{ibanLabelRe, ibanBareRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		iban := strings.ToUpper(strings.Join(strings.Fields(m[1]), ""))
		if n := len(iban); n >= 15 && n <= 34 {
			return iban, ValidateIBAN(iban)
		}
	}
	if m := accountLabelRe.FindStringSubmatch(text); m != nil {
		if acct := strings.Join(strings.Fields(m[1]), ""); acct != "" {
			return acct, false
		}
	}
	return model.Missing, false
}

func bic(v string) (string, bool) {
	v = strings.ToUpper(v)
	return v, len(v) >= 8 && len(v) <= 11
}

var SwiftBICRules = []Rule{
	validatedRule("label", regexp.MustCompile(`(?i)\b(?:SWIFT|BIC)\s*[:\s]*([A-Z]{6}[A-Z0-9]{2,5})\b`), bic),
	validatedRule("bare", regexp.MustCompile(`\b([A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?)\b`), bic),
}

var BankNameRules = []Rule{
	validatedRule("label", regexp.MustCompile(`(?i)\b(?:Bank\s*name|Bank|Banque|Kreditinstitut)\s*[:\s]*([A-Za-z][A-Za-z0-9 \t&.,\-']{3,50})`),
		func(v string) (string, bool) { return truncateRunes(strings.TrimSpace(v), maxBankNameLen), true }),
}

var BeneficiaryRules = []Rule{
	validatedRule("label", regexp.MustCompile(`(?i)\b(?:Beneficiary|Pay\s*to|Account\s*(?:holder|name)|Name\s*on\s*account|Payable\s*to|Kontoinhaber|Begunstigde)\s*[:\s]*([A-Za-z][A-Za-z0-9 \t&.,\-'()]{2,80})`),
		func(v string) (string, bool) { return truncateRunes(strings.TrimSpace(v), maxBeneficiaryLen), true }),
}

var RoutingNumberRules = []Rule{
	patternRule("label", regexp.MustCompile(`(?i)\b(?:Routing\s*(?:no\.?|number)|ABA|Sort\s*code)\s*[:\s]*(\d{6,9})`)),
}

// PaymentMethodRules name how the invoice expects to be paid.
var PaymentMethodRules = []Rule{
	labelRule("bank_transfer", regexp.MustCompile(`(?i)\b(?:bank\s*transfer|wire\s*transfer|IBAN|SWIFT|BIC|direct\s*deposit|EFT)\b`), "Bank transfer"),
	labelRule("card", regexp.MustCompile(`(?i)\b(?:credit\s*card|debit\s*card|visa|mastercard|amex|payment\s*card)\b`), "Card"),
	labelRule("paypal", regexp.MustCompile(`(?i)\bpaypal\b`), "PayPal"),
	labelRule("check", regexp.MustCompile(`(?i)\b(?:check|cheque)\b`), "Check"),
	labelRule("cash", regexp.MustCompile(`(?i)\b(?:cash|kontant)\b`), "Cash"),
}

var companySuffixWordRe = regexp.MustCompile(`(?i)\b(?:` + companySuffixes + `)\b`)

func comparableName(name string) string {
	name = strings.ToLower(name)
	name = strings.NewReplacer(".", " ", ",", " ", "-", " ", "'", " ", "(", " ", ")", " ").Replace(name)
	name = companySuffixWordRe.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(name), " ")
}

// namesMatch compares a payee with the sender, ignoring legal suffixes and
// punctuation. Unknown names are given the benefit of the doubt.
func namesMatch(a, b string) bool {
	for _, n := range []string{a, b} {
		if n == model.Missing || n == model.UnknownVendor {
			return true
		}
	}
	n1, n2 := comparableName(a), comparableName(b)
	if n1 == n2 || strings.Contains(n1, n2) || strings.Contains(n2, n1) {
		return true
	}

	words := func(s string) []string {
		var out []string
		for _, w := range strings.Fields(s) {
			if len(w) >= 3 {
				out = append(out, w)
			}
		}
		return out
	}
	w1, w2 := words(n1), words(n2)
	shared := 0
	for _, w := range w1 {
		for _, o := range w2 {
			if w == o {
				shared++
				break
			}
		}
	}
	return shared >= 2 || (shared >= 1 && (len(w1) <= 2 || len(w2) <= 2))
}

// ---- pipeline ----

// ExtractFull runs every field rule over the text and scores the result.
// Like ExtractInvoice it never fails; unresolved fields carry model.Missing.
func ExtractFull(text, filename string) model.Extraction {
	return extractFull(text, filename, nil)
}

func extractFull(text, filename string, tmpl *VendorTemplate) model.Extraction {
	ex := model.Extraction{Filename: filename, LineItems: []model.LineItem{}}

	iban, ibanValid := extractIBAN(text)
	ibanCode := ""
	if iban != model.Missing && len(iban) >= 2 {
		ibanCode = iban[:2]
	}
	country := applyRules(countryRules(ibanCode), text, model.Missing)

	ex.Sender = model.SenderIdentity{
		CompanyName:    applyRules(tmpl.rules(fieldCompanyName, CompanyRules), text, model.UnknownVendor),
		RegistrationID: applyRules(tmpl.rules(fieldRegistrationID, RegistrationIDRules), text, model.Missing),
		Address:        applyRules(AddressRules, text, model.Missing),
		Country:        country,
		Email:          applyRules([]Rule{{Name: "email", Match: emailMatch}}, text, model.Missing),
		Phone:          applyRules(PhoneRules, text, model.Missing),
		Website:        applyRules([]Rule{{Name: "website", Match: websiteMatch}}, text, model.Missing),
	}

	ex.Details = model.InvoiceDetails{
		InvoiceNumber: applyRules(tmpl.rules(fieldInvoiceNumber, InvoiceNumberRules), text, model.Missing),
		InvoiceDate:   applyRules(InvoiceDateRules, text, model.Missing),
		DueDate:       applyRules(DueDateRules, text, model.Missing),
		PaymentTerms:  applyRules(PaymentTermsRules, text, model.Missing),
		PurchaseOrder: applyRules(PurchaseOrderRules, text, model.Missing),
		CustomerRef:   applyRules(CustomerRefRules, text, model.Missing),
	}

	ex.Amounts = model.Amounts{
		Subtotal:  applyRules(SubtotalRules, text, model.Missing),
		VATAmount: applyRules(VATAmountRules, text, model.Missing),
		VATRate:   applyRules(VATRateRules, text, model.Missing),
		Total:     applyRules(FullTotalRules, text, model.Missing),
		Currency:  DetectCurrency(text),
		Discount:  applyRules(DiscountRules, text, model.Missing),
		Shipping:  applyRules(ShippingRules, text, model.Missing),
	}
	ex.Amounts.MathValid, ex.Amounts.MathNote = checkMath(ex.Amounts)

	beneficiary := applyRules(BeneficiaryRules, text, model.Missing)
	consistent := namesMatch(beneficiary, ex.Sender.CompanyName)
	note := "Payment recipient matches sender identity."
	if !consistent {
		note = "Beneficiary name does not match the invoice sender; verify before paying."
	}
	ex.Payment = model.PaymentDestination{
		Method:               applyRules(PaymentMethodRules, text, model.PaymentNotSpecified),
		BeneficiaryName:      beneficiary,
		IBANOrAccount:        iban,
		IBANValid:            ibanValid,
		BankName:             applyRules(BankNameRules, text, model.Missing),
		BankCountry:          country,
		SwiftBIC:             applyRules(SwiftBICRules, text, model.Missing),
		RoutingNumber:        applyRules(RoutingNumberRules, text, model.Missing),
		ConsistentWithSender: consistent,
		ConsistencyNote:      note,
	}

	ex.Legitimacy = assess(ex, utf8.RuneCountInString(text))
	ex.Summary = summarize(ex)
	return ex
}

// checkMath reconciles total against subtotal + VAT - discount + shipping,
// within 0.1% of the total or 0.05, whichever is larger.
func checkMath(a model.Amounts) (bool, string) {
	sub := parseLooseAmount(a.Subtotal)
	vat := parseLooseAmount(a.VATAmount)
	total := parseLooseAmount(a.Total)
	expected := sub.Add(vat).Sub(parseLooseAmount(a.Discount)).Add(parseLooseAmount(a.Shipping))

	tolerance := decimal.Max(decimal.NewFromFloat(0.05), total.Mul(decimal.NewFromFloat(0.001)))
	within := func(d decimal.Decimal) bool { return total.Sub(d).Abs().LessThanOrEqual(tolerance) }

	valid := !total.IsPositive() ||
		within(expected) ||
		(!sub.IsPositive() && !vat.IsPositive()) ||
		within(sub.Add(vat))

	switch {
	case !valid && total.IsPositive() && (sub.IsPositive() || vat.IsPositive()):
		return false, fmt.Sprintf("Expected: %s + %s = %s, but total is %s",
			sub.StringFixed(2), vat.StringFixed(2), expected.StringFixed(2), total.StringFixed(2))
	case valid && total.IsPositive() && sub.IsPositive():
		return true, "Subtotal + VAT = Total"
	}
	return valid, ""
}

// assess scores how trustworthy and how complete an extraction is.
// Issues cost 15 points each and warnings 5; three issues or a score below
// 50 is High Risk, any issue or a score below 75 needs review.
func assess(ex model.Extraction, textLen int) model.Legitimacy {
	sub := parseLooseAmount(ex.Amounts.Subtotal)
	vat := parseLooseAmount(ex.Amounts.VATAmount)
	total := parseLooseAmount(ex.Amounts.Total)
	iban := ex.Payment.IBANOrAccount
	badIBAN := iban != model.Missing && !ex.Payment.IBANValid && len(iban) >= 15
	payeeMismatch := !ex.Payment.ConsistentWithSender && ex.Payment.BeneficiaryName != model.Missing

	issues := []string{}
	if ex.Details.InvoiceNumber == model.Missing {
		issues = append(issues, "Missing invoice number")
	}
	if ex.Sender.RegistrationID == model.Missing {
		issues = append(issues, "Missing company VAT/registration ID")
	}
	if !ex.Amounts.MathValid && total.IsPositive() && sub.IsPositive() {
		issues = append(issues, "Invoice math doesn't add up")
	}
	if payeeMismatch {
		issues = append(issues, "Payment beneficiary doesn't match sender")
	}
	if badIBAN {
		issues = append(issues, "IBAN checksum validation failed")
	}
	if ex.Amounts.Total == model.Missing || !total.IsPositive() {
		issues = append(issues, "Missing or invalid total amount")
	}
	if ex.Details.InvoiceDate == model.Missing {
		issues = append(issues, "Missing invoice date")
	}

	warnings := []string{}
	if vat.IsPositive() && total.IsPositive() && vat.Div(total).GreaterThan(decimal.NewFromFloat(0.35)) {
		warnings = append(warnings, fmt.Sprintf("VAT is %s%% of total (unusually high)", vat.Div(total).Mul(decimal.NewFromInt(100)).StringFixed(0)))
	}
	if !vat.IsPositive() && total.GreaterThan(decimal.NewFromInt(100)) {
		warnings = append(warnings, "No VAT/tax found on invoice")
	}
	if textLen < shortDocumentLen {
		warnings = append(warnings, "Very short document, may be incomplete")
	}
	if ex.Details.DueDate == model.Missing && total.IsPositive() {
		warnings = append(warnings, "No due date specified")
	}
	if ex.Sender.Address == model.Missing {
		warnings = append(warnings, "No company address found")
	}
	if ex.Sender.Email == model.Missing && ex.Sender.Phone == model.Missing && ex.Sender.Website == model.Missing {
		warnings = append(warnings, "No contact information found")
	}

	found := 0
	for _, ok := range []bool{
		ex.Sender.CompanyName != model.UnknownVendor,
		ex.Sender.RegistrationID != model.Missing,
		ex.Sender.Address != model.Missing,
		ex.Sender.Country != model.Missing,
		ex.Details.InvoiceNumber != model.Missing,
		ex.Details.InvoiceDate != model.Missing,
		ex.Details.DueDate != model.Missing,
		total.IsPositive(),
		sub.IsPositive(),
		vat.IsPositive(),
		iban != model.Missing,
		ex.Payment.BeneficiaryName != model.Missing,
		ex.Sender.Email != model.Missing,
		ex.Sender.Phone != model.Missing,
		ex.Payment.Method != model.PaymentNotSpecified,
	} {
		if ok {
			found++
		}
	}

	score := 100 - 15*len(issues) - 5*len(warnings)
	if !ex.Amounts.MathValid && total.IsPositive() {
		score -= 10
	}
	if payeeMismatch {
		score -= 15
	}
	if badIBAN {
		score -= 10
	}
	score = max(0, min(100, score))

	status := model.StatusSafe
	switch {
	case score < 50 || len(issues) >= 3:
		status = model.StatusHighRisk
	case score < 75 || len(issues) >= 1:
		status = model.StatusNeedsReview
	}

	return model.Legitimacy{
		Score:            score,
		Status:           status,
		DataQualityScore: percentOf(found, fieldsScored),
		Issues:           issues,
		Warnings:         warnings,
		FieldsFound:      found,
		FieldsTotal:      fieldsScored,
	}
}

func percentOf(n, of int) int {
	return (n*100 + of/2) / of
}

func summarize(ex model.Extraction) string {
	amount := "unknown amount"
	if ex.Amounts.Total != model.Missing {
		amount = ex.Amounts.Currency + ex.Amounts.Total
	}
	l := ex.Legitimacy
	var reason string
	switch {
	case len(l.Issues) > 0:
		reason = strings.Join(l.Issues[:min(2, len(l.Issues))], "; ")
	case len(l.Warnings) > 0:
		reason = strings.Join(l.Warnings[:min(2, len(l.Warnings))], "; ")
	default:
		reason = fmt.Sprintf("all key fields extracted (%d/%d) and math checks out", l.FieldsFound, l.FieldsTotal)
	}
	return fmt.Sprintf("Invoice from %s for %s is marked %s: %s.", ex.Sender.CompanyName, amount, l.Status, reason)
}

// AnalyzeInvoice is the layered pipeline over raw decoder output: it
// normalizes the text, picks a vendor template, runs ExtractFull with the
// template's overrides, reads line items from the raw table layout and
// records per-field confidence.
func AnalyzeInvoice(raw, filename string) model.Extraction {
	text := NormalizeText(raw)
	if text == "" {
		text = raw
	}
	tmpl := DetectVendorTemplate(text)

	ex := extractFull(text, filename, tmpl)
	ex.LineItems = ExtractLineItems(raw)

	method, matched := model.MethodGeneric, tmpl != nil
	meta := &model.ExtractionMeta{
		Fields:     map[string]model.FieldMeta{},
		Normalized: text != raw,
	}
	if matched {
		method = model.MethodTemplate
		meta.TemplateID, meta.TemplateName = tmpl.ID, tmpl.Name
	}
	for field, v := range fieldValues(ex) {
		meta.Fields[field] = model.FieldMeta{Confidence: confidenceFor(v, matched), Method: method}
	}
	tableConfidence := model.ConfidenceLow
	if len(ex.LineItems) > 0 {
		tableConfidence = model.ConfidenceHigh
	}
	meta.Fields[fieldLineItems] = model.FieldMeta{Confidence: tableConfidence, Method: model.MethodTable}
	ex.Meta = meta
	return ex
}

func fieldValues(ex model.Extraction) map[string]string {
	return map[string]string{
		fieldCompanyName:     ex.Sender.CompanyName,
		fieldRegistrationID:  ex.Sender.RegistrationID,
		fieldInvoiceNumber:   ex.Details.InvoiceNumber,
		fieldInvoiceDate:     ex.Details.InvoiceDate,
		fieldDueDate:         ex.Details.DueDate,
		fieldTotal:           ex.Amounts.Total,
		fieldSubtotal:        ex.Amounts.Subtotal,
		fieldVATAmount:       ex.Amounts.VATAmount,
		fieldIBANOrAccount:   ex.Payment.IBANOrAccount,
		fieldBeneficiaryName: ex.Payment.BeneficiaryName,
	}
}

func resolved(v string) bool {
	return v != "" && v != model.Missing && v != model.UnknownVendor
}

func confidenceFor(v string, templateMatched bool) model.Confidence {
	switch {
	case !resolved(v):
		return model.ConfidenceLow
	case templateMatched:
		return model.ConfidenceHigh
	}
	return model.ConfidenceMedium
}

// FromAI maps a model-extracted record onto the detailed structure. The
// model reports no provenance, so scoring is limited to field coverage.
func FromAI(inv *model.ExtendedInvoice, filename string) model.Extraction {
	val := func(s model.FlexString) string {
		if v := strings.TrimSpace(string(s)); v != "" {
			return v
		}
		return model.Missing
	}

	currency := val(inv.Currency)
	if currency == model.Missing {
		currency = DefaultCurrency
	}
	vendor := val(inv.VendorName)
	if vendor == model.Missing {
		vendor = model.UnknownVendor
	}
	iban := val(inv.IBAN)
	method := model.PaymentNotSpecified
	if iban != model.Missing {
		method = "Bank transfer"
	}

	ex := model.Extraction{
		Filename: filename,
		Sender: model.SenderIdentity{
			CompanyName:    vendor,
			RegistrationID: val(inv.VendorCVR),
			Address:        model.Missing,
			Country:        model.Missing,
			Email:          model.Missing,
			Phone:          model.Missing,
			Website:        model.Missing,
		},
		Details: model.InvoiceDetails{
			InvoiceNumber: val(inv.InvoiceNumber),
			InvoiceDate:   val(inv.IssueDate),
			DueDate:       val(inv.DueDate),
			PaymentTerms:  model.Missing,
			PurchaseOrder: model.Missing,
			CustomerRef:   model.Missing,
		},
		Amounts: model.Amounts{
			Subtotal:  val(inv.Subtotal),
			VATAmount: val(inv.VATAmount),
			VATRate:   model.Missing,
			Total:     val(inv.Total),
			Currency:  currency,
			Discount:  model.Missing,
			Shipping:  model.Missing,
			MathValid: true,
		},
		Payment: model.PaymentDestination{
			Method:               method,
			BeneficiaryName:      val(inv.BeneficiaryName),
			IBANOrAccount:        iban,
			IBANValid:            iban != model.Missing && ValidateIBAN(iban),
			BankName:             val(inv.BankName),
			BankCountry:          model.Missing,
			SwiftBIC:             val(inv.SwiftBIC),
			RoutingNumber:        model.Missing,
			ConsistentWithSender: true,
		},
		LineItems: []model.LineItem{},
	}

	for i, item := range inv.LineItems {
		if val(item.Description) == model.Missing {
			item.Description = model.FlexString(fmt.Sprintf("Item %d", i+1))
		}
		ex.LineItems = append(ex.LineItems, item)
	}

	const aiFieldsScored = 10
	found := 0
	for _, ok := range []bool{
		vendor != model.UnknownVendor,
		ex.Details.InvoiceNumber != model.Missing,
		ex.Details.InvoiceDate != model.Missing,
		ex.Amounts.Total != model.Missing,
		iban != model.Missing,
	} {
		if ok {
			found++
		}
	}
	ex.Legitimacy = model.Legitimacy{
		Score:            85,
		Status:           model.StatusSafe,
		DataQualityScore: percentOf(found, aiFieldsScored),
		Issues:           []string{},
		Warnings:         []string{},
		FieldsFound:      found,
		FieldsTotal:      aiFieldsScored,
	}

	meta := &model.ExtractionMeta{Fields: map[string]model.FieldMeta{}}
	for field, v := range fieldValues(ex) {
		c := model.ConfidenceLow
		if resolved(v) {
			c = model.ConfidenceMedium
		}
		meta.Fields[field] = model.FieldMeta{Confidence: c, Method: model.MethodAI}
	}
	ex.Meta = meta

	ex.Summary = fmt.Sprintf("Invoice from %s for %s%s (AI-extracted).", vendor, currency, ex.Amounts.Total)
	return ex
}
