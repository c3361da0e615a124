package service

import "regexp"

// DefaultCurrency is reported when no currency marker is found.
const DefaultCurrency = "$"

func currencyRule(name, pattern, symbol string) Rule {
	re := regexp.MustCompile(pattern)
	return Rule{
		Name: name,
		Match: func(text string) (string, bool) {
			return symbol, re.MatchString(text)
		},
	}
}

// CurrencyRules map the first currency marker found to a display symbol or
// code. Earlier rules win, so euro and pound markers beat a stray dollar sign.
var CurrencyRules = []Rule{
	currencyRule("eur", `(?i)€|\bEUR\b|\beuros?\b`, "€"),
	currencyRule("gbp", `(?i)£|\bGBP\b|\bpounds? sterling\b`, "£"),
	currencyRule("usd", `(?i)\$|\bUSD\b|\bUS\s*dollars?\b|\bdollars?\b`, "$"),
	currencyRule("dkk", `(?i)\bkr\b\.?|\bDKK\b|\bdanish\s*krone`, "DKK"),
	currencyRule("sek", `(?i)\bSEK\b|\bswedish\s*kron`, "SEK"),
	currencyRule("nok", `(?i)\bNOK\b|\bnorwegian\s*kron`, "NOK"),
	currencyRule("chf", `(?i)\bCHF\b|\bswiss\s*franc`, "CHF"),
	currencyRule("jpy", `(?i)¥|\bJPY\b|\byen\b`, "¥"),
	currencyRule("cny", `(?i)\bCNY\b|\bRMB\b|\byuan\b|\brenminbi\b`, "¥"),
	currencyRule("aud", `(?i)\bAUD\b|\baustralian\s*dollar`, "A$"),
	currencyRule("cad", `(?i)\bCAD\b|\bcanadian\s*dollar`, "C$"),
	currencyRule("pln", `(?i)\bPLN\b|złoty|zł`, "PLN"),
	currencyRule("czk", `(?i)\bCZK\b|\bczech\s*kron`, "CZK"),
	currencyRule("huf", `(?i)\bHUF\b|\bforint`, "HUF"),
	currencyRule("inr", `(?i)₹|\bINR\b|\brupees?\b`, "₹"),
}

// DetectCurrency labels the document's currency. It does not convert or
// normalize amounts.
func DetectCurrency(text string) string {
	return applyRules(CurrencyRules, text, DefaultCurrency)
}
