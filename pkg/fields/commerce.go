package fields

import (
	"github.com/ajitpratap0/onix/pkg/xmltree"
)

// Price is one price of one supply detail.
type Price struct {
	// Type is the ONIX price type code (01 RRP excluding tax, 02 RRP including tax, ...)
	Type      string  `json:"type,omitempty"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency,omitempty"`
	Territory string  `json:"territory,omitempty"`
	Supplier  string  `json:"supplier,omitempty"`
}

// PricesPlugin extracts prices across all supply details. An unparseable
// PriceAmount fails the record.
type PricesPlugin struct{}

// Parse implements record.FieldPlugin.
func (PricesPlugin) Parse(n *xmltree.Node) (any, error) {
	var out []Price
	for _, sd := range findAll(n, "SupplyDetail", "ProductSupply/SupplyDetail") {
		supplier := sd.FirstText("SupplierName", "Supplier/SupplierName")
		for _, p := range sd.FindAll("Price") {
			raw := p.ChildText("PriceAmount")
			if raw == "" {
				continue
			}
			amount, err := parseFloat(Prices, "price amount", raw)
			if err != nil {
				return nil, err
			}
			out = append(out, Price{
				Type:      p.FirstText("PriceTypeCode", "PriceType"),
				Amount:    amount,
				Currency:  p.ChildText("CurrencyCode"),
				Territory: p.FirstText("CountryCode", "Territory/CountriesIncluded", "Territory/RegionsIncluded"),
				Supplier:  supplier,
			})
		}
	}
	return out, nil
}
