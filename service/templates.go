package service

import (
	"regexp"
	"strings"
)

// VendorTemplate recognises a family of invoices by keywords and may carry
// stricter field rules that run before the generic ones.
type VendorTemplate struct {
	ID       string
	Name     string
	Keywords []string
	Fields   map[string]Rule
}

// VendorTemplates are scored in order; the most keyword hits wins and ties
// go to the earlier template.
var VendorTemplates = []VendorTemplate{
	{
		ID:       "generic-dk",
		Name:     "Generic (DK/CVR style)",
		Keywords: []string{"CVR", "Moms", "Danmark", "DK-"},
		Fields: map[string]Rule{
			fieldInvoiceNumber: patternRule("dk_invoice_number",
				regexp.MustCompile(`(?i)(?:Faktura\s*nr\.?|Fakturanummer|Invoice\s*no\.?)\s*[:#]?\s*([A-Z0-9\-]+)`)),
			fieldRegistrationID: patternRule("dk_cvr",
				regexp.MustCompile(`(?i)\bCVR(?:-?nr\.?)?\s*[:#]?\s*(\d{8})\b`)),
		},
	},
	{
		ID:       "generic-de",
		Name:     "Generic (DE/GmbH style)",
		Keywords: []string{"GmbH", "MwSt", "Steuernummer", "DE"},
		Fields: map[string]Rule{
			fieldRegistrationID: patternRule("de_ust_id",
				regexp.MustCompile(`(?i)USt-?IdNr\.?\s*[:#]?\s*(DE\d{9})\b`)),
		},
	},
	{
		ID:       "generic-uk",
		Name:     "Generic (UK/VAT style)",
		Keywords: []string{"VAT", "Limited", "Ltd", "GB"},
	},
	{
		ID:       "generic",
		Name:     "Generic",
		Keywords: []string{"invoice", "total", "amount"},
	},
}

// DetectVendorTemplate returns nil when no template keyword occurs.
func DetectVendorTemplate(text string) *VendorTemplate {
	lower := strings.ToLower(text)
	var best *VendorTemplate
	bestScore := 0
	for i := range VendorTemplates {
		t := &VendorTemplates[i]
		score := 0
		for _, k := range t.Keywords {
			if strings.Contains(lower, strings.ToLower(k)) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = t, score
		}
	}
	return best
}

// rules prepends the template's rule for field, if any, to the generic chain.
func (t *VendorTemplate) rules(field string, generic []Rule) []Rule {
	if t == nil {
		return generic
	}
	r, ok := t.Fields[field]
	if !ok {
		return generic
	}
	return append([]Rule{r}, generic...)
}
