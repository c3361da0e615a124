package service

import (
	"regexp"
	"strings"

	"github.com/Hizashii/money/model"
)

var (
	columnGapRe  = regexp.MustCompile(`[ ]{2,}|\t`)
	hasNumeralRe = regexp.MustCompile(`[\d.,]`)
	quantityRe   = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
)

const maxDescriptionLen = 200

// ExtractLineItems looks for the longest run of consecutive lines with the
// same number of columns (split on tabs or two or more spaces) and reads it
// as a table: description first, then quantity, unit price and amount.
// It needs the raw text; normalization collapses the column gaps.
func ExtractLineItems(text string) []model.LineItem {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		var cols []string
		for _, c := range columnGapRe.Split(strings.TrimSpace(line), -1) {
			if c = strings.TrimSpace(c); c != "" {
				cols = append(cols, c)
			}
		}
		if len(cols) >= 2 {
			rows = append(rows, cols)
		}
	}

	bestStart, bestLen := 0, 0
	for i := 0; i < len(rows); {
		j := i
		for j < len(rows) && len(rows[j]) == len(rows[i]) {
			j++
		}
		if j-i >= 2 && j-i > bestLen {
			bestStart, bestLen = i, j-i
		}
		i = j
	}

	items := []model.LineItem{}
	if bestLen < 2 {
		return items
	}
	for _, row := range rows[bestStart : bestStart+bestLen] {
		n := len(row)
		amount := row[n-1]
		if !hasNumeralRe.MatchString(amount) {
			continue
		}
		prev := row[n-2]
		var prev2 string
		if n >= 3 {
			prev2 = row[n-3]
		}

		item := model.LineItem{
			Description: model.FlexString(truncateRunes(strings.Join(row[:max(1, n-3)], " "), maxDescriptionLen)),
			Amount:      model.FlexString(amount),
		}
		if quantityRe.MatchString(prev2) {
			item.Quantity = model.FlexString(prev2)
		}
		if hasNumeralRe.MatchString(prev) {
			item.UnitPrice = model.FlexString(prev)
		}
		items = append(items, item)
	}
	return items
}
