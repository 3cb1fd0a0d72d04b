package enums

import "fmt"

type TemplateKind string

const (
	TemplateKindInvoice TemplateKind = "invoice"
	TemplateKindOffer   TemplateKind = "offer"
)

func (k TemplateKind) String() string { return string(k) }

func (k TemplateKind) IsValid() bool {
	switch k {
	case TemplateKindInvoice, TemplateKindOffer:
		return true
	}
	return false
}

func ParseTemplateKind(s string) (TemplateKind, error) {
	k := TemplateKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid template kind: %q", s)
	}
	return k, nil
}
