package intents

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/paygate-backend/pkg/config"
	"github.com/angelmondragon/paygate-backend/pkg/enums"
)

// Validation issue kinds, surfaced verbatim in error details.
const (
	IssueMissingField   = "missing_field"
	IssueInvalidAmount  = "invalid_amount"
	IssueInvalidCurrency = "invalid_currency"
	IssueInvalidToken   = "invalid_token"
	IssueInvalidKey     = "invalid_idempotency_key"
)

// ValidationIssue describes one rejected field. Message never echoes token
// contents.
type ValidationIssue struct {
	Field   string `json:"field"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RequestValidator applies the intake policy: field presence, amount bounds,
// currency allow-list, token shape, idempotency key shape. Validation runs
// before any reservation or storage work.
type RequestValidator struct {
	validate    *validator.Validate
	maxAmount   int64
	currencies  map[enums.Currency]struct{}
	minTokenLen int
	maxTokenLen int
	maxKeyLen   int
}

func NewRequestValidator(cfg config.GatewayConfig) (*RequestValidator, error) {
	currencies := make(map[enums.Currency]struct{}, len(cfg.Currencies))
	for _, raw := range cfg.Currencies {
		currency, err := enums.ParseCurrency(raw)
		if err != nil {
			return nil, fmt.Errorf("configured currency allow-list: %w", err)
		}
		currencies[currency] = struct{}{}
	}
	return &RequestValidator{
		validate:    validator.New(),
		maxAmount:   cfg.MaxAmountMinorUnits,
		currencies:  currencies,
		minTokenLen: cfg.MinTokenLen,
		maxTokenLen: cfg.MaxTokenLen,
		maxKeyLen:   cfg.MaxIdempotencyKeyLen,
	}, nil
}

// Validate returns every issue found, not just the first one.
func (v *RequestValidator) Validate(req ProcessPaymentRequest) []ValidationIssue {
	var issues []ValidationIssue

	if err := v.validate.Struct(req); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				issues = append(issues, presenceIssue(fe))
			}
		}
	}

	if req.AmountMinorUnits > v.maxAmount {
		issues = append(issues, ValidationIssue{
			Field:   "amount_minor_units",
			Kind:    IssueInvalidAmount,
			Message: fmt.Sprintf("amount exceeds the configured maximum of %d", v.maxAmount),
		})
	}

	if req.Currency != "" {
		currency, err := enums.ParseCurrency(req.Currency)
		if err != nil {
			issues = append(issues, ValidationIssue{
				Field:   "currency",
				Kind:    IssueInvalidCurrency,
				Message: "currency is not a recognized ISO 4217 code",
			})
		} else if _, allowed := v.currencies[currency]; !allowed {
			issues = append(issues, ValidationIssue{
				Field:   "currency",
				Kind:    IssueInvalidCurrency,
				Message: fmt.Sprintf("currency %s is not accepted by this deployment", currency),
			})
		}
	}

	if req.PaymentToken != "" {
		issues = append(issues, v.tokenIssues(req.PaymentToken)...)
	}

	if req.IdempotencyKey != "" && len(req.IdempotencyKey) > v.maxKeyLen {
		issues = append(issues, ValidationIssue{
			Field:   "idempotency_key",
			Kind:    IssueInvalidKey,
			Message: fmt.Sprintf("idempotency key exceeds %d characters", v.maxKeyLen),
		})
	}

	return issues
}

func (v *RequestValidator) tokenIssues(token string) []ValidationIssue {
	var issues []ValidationIssue

	if len(token) < v.minTokenLen || len(token) > v.maxTokenLen {
		issues = append(issues, ValidationIssue{
			Field:   "payment_token",
			Kind:    IssueInvalidToken,
			Message: fmt.Sprintf("token length must be between %d and %d characters", v.minTokenLen, v.maxTokenLen),
		})
	}
	for _, r := range token {
		if r < '!' || r > '~' {
			issues = append(issues, ValidationIssue{
				Field:   "payment_token",
				Kind:    IssueInvalidToken,
				Message: "token must be printable ASCII without whitespace",
			})
			break
		}
	}
	if looksLikeCardNumber(token) {
		issues = append(issues, ValidationIssue{
			Field:   "payment_token",
			Kind:    IssueInvalidToken,
			Message: "value resembles a raw card number; send a vault token instead",
		})
	}
	return issues
}

// looksLikeCardNumber flags values that are plausibly a raw PAN: digits only
// (separators stripped), PAN-range length, passing the Luhn checksum. Opaque
// vault tokens never match all three.
func looksLikeCardNumber(value string) bool {
	digits := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-':
			return -1
		default:
			return 'x'
		}
	}, value)
	if strings.ContainsRune(digits, 'x') {
		return false
	}
	if len(digits) < 12 || len(digits) > 19 {
		return false
	}
	return luhnValid(digits)
}

func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func presenceIssue(fe validator.FieldError) ValidationIssue {
	field := jsonFieldNames[fe.StructField()]
	if field == "" {
		field = strings.ToLower(fe.StructField())
	}
	kind := IssueMissingField
	message := fmt.Sprintf("%s is required", field)
	// Zero and negative amounts both land here (required fires on the zero
	// value); report them as amount problems, not missing fields.
	if fe.StructField() == "AmountMinorUnits" {
		kind = IssueInvalidAmount
		message = "amount must be a positive number of minor units"
	}
	return ValidationIssue{Field: field, Kind: kind, Message: message}
}

var jsonFieldNames = map[string]string{
	"AmountMinorUnits": "amount_minor_units",
	"Currency":         "currency",
	"PaymentToken":     "payment_token",
	"IdempotencyKey":   "idempotency_key",
}
