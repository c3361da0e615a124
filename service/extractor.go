package service

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/Hizashii/money/model"
)

const maxVendorLen = 60

// Rule is one matcher in a field's fallback chain. Match reports the raw
// value it found; callers trim it and treat an empty result as no match.
type Rule struct {
	Name  string
	Match func(text string) (string, bool)
}

// patternRule matches re and returns its first capture group.
func patternRule(name string, re *regexp.Regexp) Rule {
	return Rule{
		Name: name,
		Match: func(text string) (string, bool) {
			m := re.FindStringSubmatch(text)
			if m == nil {
				return "", false
			}
			return m[1], true
		},
	}
}

var (
	vendorLabeledRe    = regexp.MustCompile(`(?im)(?:From|Bill to|Invoice from|Vendor)\s*[:\s]*\n?\s*([A-Za-z0-9\s&.,\-]+?)(?:\n|$)`)
	vendorStandaloneRe = regexp.MustCompile(`(?im)^[ \t]*([A-Z][A-Za-z0-9 \t&.,\-]{2,39})[ \t]*$`)

	dateLabeledRe = regexp.MustCompile(`(?i)(?:Date|Invoice date)\s*[:\s]*(\d{1,4}[-/]\d{1,2}[-/]\d{1,4})`)
	dateNumericRe = regexp.MustCompile(`(\d{1,4}[-/]\d{1,2}[-/]\d{1,4})`)
	dateMonthRe   = regexp.MustCompile(`(?i)(\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{2,4})`)

	totalLabeledRe  = regexp.MustCompile(`(?i)(?:Total|Amount due|Grand total)\s*[:\s]*[\$€£]?\s*(\d[\d,]*(?:\.\d+)?)`)
	totalSymbolRe   = regexp.MustCompile(`(?im)[\$€£]\s*([\d,]+\.\d{2})[ \t]*(?:USD|EUR|GBP)?[ \t]*$`)
	totalCurrencyRe = regexp.MustCompile(`(?i)([\d,]+\.\d{2})\s*(?:USD|EUR|GBP)`)

	vatAmountRe  = regexp.MustCompile(`(?i)(?:VAT|Tax|GST)\s*[:\s]*[\$€£]?\s*(\d[\d,]*(?:\.\d+)?)(\s*%)?`)
	vatPercentRe = regexp.MustCompile(`(?i)(?:VAT|Tax|GST)\s*[:\s]*(\d+(?:\.\d+)?\s*%)`)
)

// VendorRules resolve the issuing party, most specific first.
var VendorRules = []Rule{
	{
		Name: "labeled",
		Match: func(text string) (string, bool) {
			m := vendorLabeledRe.FindStringSubmatch(text)
			if m == nil {
				return "", false
			}
			return truncateRunes(strings.TrimSpace(m[1]), maxVendorLen), true
		},
	},
	patternRule("standalone_line", vendorStandaloneRe),
	{Name: "first_line", Match: firstLine},
}

// DateRules resolve the invoice date as written in the document.
var DateRules = []Rule{
	patternRule("labeled", dateLabeledRe),
	patternRule("numeric", dateNumericRe),
	patternRule("month_name", dateMonthRe),
}

// TotalRules resolve the amount payable.
var TotalRules = []Rule{
	patternRule("labeled", totalLabeledRe),
	patternRule("currency_symbol", totalSymbolRe),
	patternRule("currency_code", totalCurrencyRe),
}

// VATRules prefer a tax amount over a tax rate.
var VATRules = []Rule{
	{
		Name: "labeled_amount",
		Match: func(text string) (string, bool) {
			for _, m := range vatAmountRe.FindAllStringSubmatch(text, -1) {
				if m[2] == "" {
					return m[1], true
				}
			}
			return "", false
		},
	},
	patternRule("labeled_percent", vatPercentRe),
}

// ExtractInvoice maps free invoice text onto the four stored fields. It never
// fails: unresolved fields carry model.Missing and an unresolved vendor falls
// back to model.UnknownVendor.
func ExtractInvoice(text, filenameHint string) model.Invoice {
	if strings.TrimSpace(text) == "" {
		vendor := strings.TrimSpace(filenameHint)
		if vendor == "" {
			vendor = model.UnknownVendor
		}
		return model.EmptyInvoice(vendor)
	}

	return model.Invoice{
		Vendor: applyRules(VendorRules, text, model.UnknownVendor),
		Date:   applyRules(DateRules, text, model.Missing),
		Total:  applyRules(TotalRules, text, model.Missing),
		VAT:    applyRules(VATRules, text, model.Missing),
	}
}

// applyRules returns the first non-blank match, or fallback.
func applyRules(rules []Rule, text, fallback string) string {
	for _, r := range rules {
		v, ok := r.Match(text)
		if !ok {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return fallback
}

func firstLine(text string) (string, bool) {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	line = strings.TrimSpace(line)
	if len([]rune(line)) <= 2 {
		return "", false
	}
	for _, r := range line {
		if !unicode.IsPrint(r) {
			return "", false
		}
	}
	return truncateRunes(line, maxVendorLen), true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
