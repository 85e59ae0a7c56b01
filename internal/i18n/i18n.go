// Package i18n holds the Norwegian and English labels used by the report and
// the storefront widget.
package i18n

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"golang.org/x/text/number"

	"github.com/prisvakt/compliance-service/internal/compliance"
)

// Message keys
const (
	KeyCompliant      = "compliant"
	KeyNonCompliant   = "non_compliant"
	KeyOnSale         = "on_sale"
	KeyNotOnSale      = "not_on_sale"
	KeyLowestPrice    = "lowest_price_days"
	KeySaleSince      = "sale_since"
	KeyProduct        = "product"
	KeyVariant        = "variant"
	KeyPrice          = "price"
	KeyReferencePrice = "reference_price"
	KeyIssues         = "issues"
	KeyLastChecked    = "last_checked"
	KeyRule           = "rule"
	KeySeverity       = "severity"
	KeyMessage        = "message"
)

var supported = []language.Tag{language.Norwegian, language.English}

var matcher = language.NewMatcher(supported)

var cat = func() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(key, nb, en string) {
		b.SetString(language.Norwegian, key, nb)
		b.SetString(language.English, key, en)
	}

	set(KeyCompliant, "I samsvar", "Compliant")
	set(KeyNonCompliant, "Ikke i samsvar", "Non-compliant")
	set(KeyOnSale, "På salg", "On sale")
	set(KeyNotOnSale, "Ordinær pris", "Regular price")
	set(KeyLowestPrice, "Laveste pris siste %d dager", "Lowest price in the last %d days")
	set(KeySaleSince, "Salg siden", "On sale since")
	set(KeyProduct, "Produkt", "Product")
	set(KeyVariant, "Variant", "Variant")
	set(KeyPrice, "Pris", "Price")
	set(KeyReferencePrice, "Førpris", "Reference price")
	set(KeyIssues, "Avvik", "Issues")
	set(KeyLastChecked, "Sist sjekket", "Last checked")
	set(KeyRule, "Regel", "Rule")
	set(KeySeverity, "Alvorlighet", "Severity")
	set(KeyMessage, "Melding", "Message")

	set(string(compliance.RuleReferencePrice), "Førpris", "Reference price")
	set(string(compliance.RuleSaleDuration), "Salgsvarighet", "Sale duration")
	set(string(compliance.RuleSaleFrequency), "Salgshyppighet", "Sale frequency")
	set(string(compliance.SeverityViolation), "Brudd", "Violation")
	set(string(compliance.SeverityWarning), "Advarsel", "Warning")
	return b
}()

// Localizer translates labels and formats prices for one language
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a localizer for the best supported match of the given
// Accept-Language style preferences. Norwegian is used when nothing matches.
func New(preferences ...string) *Localizer {
	tag := language.Norwegian
	if len(preferences) > 0 {
		var tags []language.Tag
		for _, p := range preferences {
			parsed, _, err := language.ParseAcceptLanguage(p)
			if err == nil {
				tags = append(tags, parsed...)
			}
		}
		if len(tags) > 0 {
			_, idx, conf := matcher.Match(tags...)
			if conf != language.No {
				tag = supported[idx]
			}
		}
	}
	return &Localizer{tag: tag, printer: message.NewPrinter(tag, message.Catalog(cat))}
}

// Language returns the selected language tag
func (l *Localizer) Language() language.Tag {
	return l.tag
}

// T returns the label of key
func (l *Localizer) T(key string) string {
	return l.printer.Sprintf(key)
}

// Price formats an amount with two decimals and the local separators, e.g.
// "1 299,00 kr" in Norwegian
func (l *Localizer) Price(d decimal.Decimal) string {
	amount := l.printer.Sprint(number.Decimal(d.Round(2).InexactFloat64(), number.Scale(2)))
	if l.tag == language.English {
		return "NOK " + amount
	}
	return amount + " kr"
}

// LowestPrice labels the lowest price over a lookback of days
func (l *Localizer) LowestPrice(days int) string {
	return l.printer.Sprintf(KeyLowestPrice, days)
}

// Verdict returns the label for a compliance verdict
func (l *Localizer) Verdict(compliant bool) string {
	if compliant {
		return l.T(KeyCompliant)
	}
	return l.T(KeyNonCompliant)
}
