package common

import (
	"encoding/json"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/dpereira/closings-tracker/constants"
)

// Anchors is the labeled-field anchor set the extractor searches for.
// Every label is matched case-insensitively against the document text.
type Anchors struct {
	OrgMarker    string                     `yaml:"org_marker" json:"org_marker"`
	BranchMarker string                     `yaml:"branch_marker" json:"branch_marker"`
	DateLabel    string                     `yaml:"date_label" json:"date_label"`
	Fields       map[constants.Field]string `yaml:"fields" json:"fields"`
	Withdrawal   WithdrawalAnchor           `yaml:"withdrawal" json:"withdrawal"`
}

// WithdrawalAnchor configures the proximity search for cash withdrawal:
// the first amount-shaped token within Window lines after the label wins.
type WithdrawalAnchor struct {
	Label  string `yaml:"label" json:"label"`
	Window int    `yaml:"window" json:"window"`
}

// DefaultAnchors returns the built-in anchor set for the stock closure
// report layout.
func DefaultAnchors() Anchors {
	return Anchors{
		OrgMarker:    "LTDA",
		BranchMarker: "Filial:",
		DateLabel:    "Data fechamento",
		Fields: map[constants.Field]string{
			constants.FieldOpeningCash:     "Fundo de caixa",
			constants.FieldTotalSales:      "Total vendas",
			constants.FieldCashSales:       "Vendas em dinheiro",
			constants.FieldCardSales:       "Cartão",
			constants.FieldDigitalPayments: "PIX",
			constants.FieldClosingCash:     "Saldo final",
		},
		Withdrawal: WithdrawalAnchor{Label: "Sangria", Window: 2},
	}
}

const anchorsSchema = `{
  "type": "object",
  "properties": {
    "org_marker":    {"type": "string", "minLength": 1},
    "branch_marker": {"type": "string", "minLength": 1},
    "date_label":    {"type": "string", "minLength": 1},
    "fields": {
      "type": "object",
      "additionalProperties": {"type": "string", "minLength": 1}
    },
    "withdrawal": {
      "type": "object",
      "properties": {
        "label":  {"type": "string", "minLength": 1},
        "window": {"type": "integer", "minimum": 1, "maximum": 10}
      },
      "required": ["label"]
    }
  },
  "required": ["date_label", "fields"]
}`

// LoadAnchors reads a YAML anchor file, validates it against the anchor
// schema and returns the result. An empty path returns the defaults.
func LoadAnchors(path string) (Anchors, error) {
	if path == "" {
		return DefaultAnchors(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Anchors{}, WrapError(err, "read anchors file")
	}

	var a Anchors
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return Anchors{}, WrapError(err, "parse anchors file")
	}
	if a.Withdrawal.Window == 0 {
		a.Withdrawal.Window = 2
	}

	if err := validateAnchors(&a); err != nil {
		return Anchors{}, err
	}
	return a, nil
}

// validateAnchors round-trips the decoded anchors through JSON so the
// schema validator sees json.Unmarshal-shaped values.
func validateAnchors(a *Anchors) error {
	schema, err := jsonschema.CompileString("anchors.json", anchorsSchema)
	if err != nil {
		return WrapError(err, "compile anchors schema")
	}

	buf, err := json.Marshal(a)
	if err != nil {
		return WrapError(err, "marshal anchors")
	}
	var v interface{}
	if err := json.Unmarshal(buf, &v); err != nil {
		return WrapError(err, "unmarshal anchors")
	}

	if err := schema.Validate(v); err != nil {
		return NewAppError("CONFIG_ERROR", "anchors file failed validation", err)
	}
	return nil
}
