package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Normalization of free-form interview phrasing into plain values. The model
// is instructed to send canonical values, but everything that reaches the
// score computation is re-normalized here so the invariants hold regardless.

const (
	EmploymentFormal     = "formal"
	EmploymentAutonomous = "autonomo"
	EmploymentUnemployed = "desempregado"
)

var employmentSynonyms = map[string]string{
	"formal":      EmploymentFormal,
	"clt":         EmploymentFormal,
	"carteira":    EmploymentFormal,
	"registrado":  EmploymentFormal,
	"registrada":  EmploymentFormal,
	"assalariado": EmploymentFormal,
	"autonomo":    EmploymentAutonomous,
	"autônomo":    EmploymentAutonomous,
	"autonoma":    EmploymentAutonomous,
	"autônoma":    EmploymentAutonomous,
	"freelance":   EmploymentAutonomous,
	"freelancer":  EmploymentAutonomous,
	"mei":         EmploymentAutonomous,
}

// NormalizeEmployment maps informal employment descriptions onto the three
// canonical values, defaulting to desempregado for anything unrecognized.
func NormalizeEmployment(raw string) string {
	token := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := employmentSynonyms[token]; ok {
		return canonical
	}
	for synonym, canonical := range employmentSynonyms {
		if strings.Contains(token, synonym) {
			return canonical
		}
	}
	return EmploymentUnemployed
}

// NormalizeDependents clamps the dependent count to 0..3; "3 ou mais" and
// anything above count as 3, unparseable input as 0.
func NormalizeDependents(raw any) int {
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		n = int(f)
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		s = strings.TrimSuffix(s, "+")
		if i := strings.IndexAny(s, " "); i > 0 {
			s = s[:i]
		}
		parsed, err := strconv.Atoi(s)
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}

	if n < 0 {
		return 0
	}
	if n > 3 {
		return 3
	}
	return n
}

// ParseBoolish accepts booleans and the customer phrasings for yes/no.
func ParseBoolish(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		switch s {
		case "true", "sim", "tenho", "possuo", "yes", "s":
			return true, nil
		case "false", "nao", "não", "nenhuma", "nenhum", "sem", "no", "n":
			return false, nil
		}
		return false, fmt.Errorf("unrecognized boolean %q", v)
	default:
		return false, fmt.Errorf("unsupported boolean type %T", raw)
	}
}

// ParseAmount turns a model-supplied value into a plain currency amount,
// handling informal magnitude phrasing ("5 mil", "3.5k", "1,5 milhão") and
// Brazilian decimal commas.
func ParseAmount(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return parseAmountString(v)
	default:
		return 0, fmt.Errorf("unsupported amount type %T", raw)
	}
}

func parseAmountString(raw string) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "r$")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	multiplier := 1.0
	switch {
	case containsAny(s, "milhão", "milhao", "milhões", "milhoes"):
		multiplier = 1_000_000
		s = stripWords(s, "milhão", "milhao", "milhões", "milhoes")
	case strings.Contains(s, "mil"):
		multiplier = 1_000
		s = stripWords(s, "mil")
	case strings.HasSuffix(s, "k"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "k")
	}

	s = strings.TrimSpace(s)
	if s == "" {
		// Bare magnitude word ("mil") means one unit of it.
		return multiplier, nil
	}

	s = normalizeDecimal(s)
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	return value * multiplier, nil
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func stripWords(s string, words ...string) string {
	for _, w := range words {
		s = strings.ReplaceAll(s, w, "")
	}
	return s
}

// normalizeDecimal converts Brazilian formatting: "1.200,50" -> "1200.50",
// "1200,50" -> "1200.50".
func normalizeDecimal(s string) string {
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}
	return s
}

// Score weights, fixed by the credit policy.
const incomeWeight = 30

var employmentWeights = map[string]float64{
	EmploymentFormal:     300,
	EmploymentAutonomous: 200,
	EmploymentUnemployed: 0,
}

var dependentsWeights = [4]float64{100, 80, 60, 30}

// ComputeScore recalculates the credit score from the five interview fields
// and clamps the result to the 0..1000 domain range for any finite input.
func ComputeScore(monthlyIncome float64, employment string, fixedExpenses float64, dependents int, hasDebt bool) int {
	debtWeight := 100.0
	if hasDebt {
		debtWeight = -100
	}

	if dependents < 0 {
		dependents = 0
	}
	if dependents > 3 {
		dependents = 3
	}

	score := (monthlyIncome/(fixedExpenses+1))*incomeWeight +
		employmentWeights[NormalizeEmployment(employment)] +
		dependentsWeights[dependents] +
		debtWeight

	if math.IsNaN(score) {
		return 0
	}
	rounded := math.Round(score)
	if rounded < 0 || math.IsInf(rounded, -1) {
		return 0
	}
	if rounded > 1000 || math.IsInf(rounded, 1) {
		return 1000
	}
	return int(rounded)
}
