// Package sizing implements the trade sizing core: the text grammar parser,
// the normalizer converting parsed expressions into share/weight deltas, lot
// rounding policy and the batch revalidation layer. Everything here is a pure
// function of its inputs: no I/O, no hidden state, errors returned as values.
package sizing

import (
	"errors"
	"strings"

	"github.com/KotFed0t/trade_lab_bot/internal/model"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyInput        = errors.New("empty sizing input")
	ErrMalformedInput    = errors.New("malformed sizing input")
	ErrBenchmarkRequired = errors.New("benchmark required for active weight sizing")
)

type ParseResult struct {
	IsValid   bool
	Framework model.Framework
	Value     decimal.Decimal
	Err       error
}

// Parse matches raw against the sizing grammar:
//
//	6       -> weight_target      +0.5   -> weight_delta
//	#1200   -> shares_target      #+100  -> shares_delta
//	@t0.5   -> active_target      @d+0.5 -> active_delta
//
// Active frameworks additionally require a configured benchmark; that check is
// input-context validation, not syntax, and runs after the grammar match.
func Parse(raw string, hasBenchmark bool) ParseResult {
	s := strings.TrimSpace(raw)
	if s == "" {
		return parseFailure(ErrEmptyInput)
	}

	var (
		framework model.Framework
		body      string
	)

	switch {
	case strings.HasPrefix(s, "@t"):
		framework = model.ActiveTarget
		body = s[2:]
	case strings.HasPrefix(s, "@d"):
		framework = model.ActiveDelta
		body = s[2:]
		if !hasSign(body) {
			return parseFailure(ErrMalformedInput)
		}
	case strings.HasPrefix(s, "#"):
		body = s[1:]
		if hasSign(body) {
			framework = model.SharesDelta
		} else {
			framework = model.SharesTarget
		}
	case hasSign(s):
		framework = model.WeightDelta
		body = s
	default:
		framework = model.WeightTarget
		body = s
	}

	value, ok := parseNumber(body)
	if !ok {
		return parseFailure(ErrMalformedInput)
	}

	if framework.IsActive() && !hasBenchmark {
		return parseFailure(ErrBenchmarkRequired)
	}

	return ParseResult{IsValid: true, Framework: framework, Value: value}
}

// ToSpec canonicalizes a successful parse plus the original raw text into a
// persistable spec. The raw text is kept verbatim so it re-parses identically.
func ToSpec(res ParseResult, raw string) (model.SizingSpec, error) {
	if !res.IsValid {
		return model.SizingSpec{}, res.Err
	}
	return model.SizingSpec{
		Framework: res.Framework,
		Value:     res.Value,
		RawText:   raw,
	}, nil
}

func parseFailure(err error) ParseResult {
	return ParseResult{Err: err}
}

func hasSign(s string) bool {
	return strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-")
}

// parseNumber accepts an optionally signed decimal literal: digits with at
// most one dot. Exponents and other forms decimal.NewFromString would take are
// out of grammar.
func parseNumber(s string) (decimal.Decimal, bool) {
	body := strings.TrimPrefix(strings.TrimPrefix(s, "+"), "-")
	if body == "" {
		return decimal.Decimal{}, false
	}

	digits, dots := 0, 0
	for _, r := range body {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return decimal.Decimal{}, false
		}
	}
	if digits == 0 || dots > 1 {
		return decimal.Decimal{}, false
	}

	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return value, true
}
