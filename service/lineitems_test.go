package service

import (
	"reflect"
	"testing"

	"github.com/Hizashii/money/model"
)

func TestExtractLineItems(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []model.LineItem
	}{
		{
			name: "space aligned table",
			text: "Acme Corp\n" +
				"Description          Qty    Unit price    Amount\n" +
				"Website design       1      1,200.00      1,200.00\n" +
				"Hosting (12 months)  12     10.00         120.00\n" +
				"\n" +
				"Total                                     1,320.00\n",
			expected: []model.LineItem{
				{Description: "Website design", Quantity: "1", UnitPrice: "1,200.00", Amount: "1,200.00"},
				{Description: "Hosting (12 months)", Quantity: "12", UnitPrice: "10.00", Amount: "120.00"},
			},
		},
		{
			name: "tab separated",
			text: "Widget\t2\t5.00\t10.00\nGadget\t1\t7.50\t7.50",
			expected: []model.LineItem{
				{Description: "Widget", Quantity: "2", UnitPrice: "5.00", Amount: "10.00"},
				{Description: "Gadget", Quantity: "1", UnitPrice: "7.50", Amount: "7.50"},
			},
		},
		{
			name: "wide description columns are joined",
			text: "Consulting  March  3  100.00  300.00\nTravel  Oslo  1  80.00  80.00",
			expected: []model.LineItem{
				{Description: "Consulting March", Quantity: "3", UnitPrice: "100.00", Amount: "300.00"},
				{Description: "Travel Oslo", Quantity: "1", UnitPrice: "80.00", Amount: "80.00"},
			},
		},
		{
			name: "quantity must be numeric",
			text: "Support  monthly  49.00  49.00\nLicence  yearly  99.00  99.00",
			expected: []model.LineItem{
				{Description: "Support", UnitPrice: "49.00", Amount: "49.00"},
				{Description: "Licence", UnitPrice: "99.00", Amount: "99.00"},
			},
		},
		{
			name:     "single row is not a table",
			text:     "Widget  2  5.00  10.00\nThank you",
			expected: []model.LineItem{},
		},
		{
			name:     "no columns",
			text:     "Invoice 42\nTotal 12.00",
			expected: []model.LineItem{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractLineItems(tt.text)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}
