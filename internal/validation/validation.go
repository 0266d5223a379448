package validation

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Result is the outcome of a single field check
type Result struct {
	IsValid bool   `json:"is_valid"`
	Error   string `json:"error,omitempty"`
}

func ok() Result { return Result{IsValid: true} }

func fail(msg string) Result { return Result{IsValid: false, Error: msg} }

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

const (
	MinPasswordLength = 6
	MinNameLength     = 2
	MaxNameLength     = 100

	MinStake = 1.0
	MaxStake = 10000.0
	MinOdds  = 1.01
	MaxOdds  = 1000.0
)

func Email(email string) Result {
	email = strings.TrimSpace(email)
	if email == "" {
		return fail("email is required")
	}
	if err := engine().Var(email, "email"); err != nil {
		return fail("invalid email format")
	}
	return ok()
}

func Password(password string) Result {
	if password == "" {
		return fail("password is required")
	}
	if len(password) < MinPasswordLength {
		return fail("password must be at least 6 characters")
	}
	return ok()
}

func Name(name string) Result {
	name = strings.TrimSpace(name)
	if name == "" {
		return fail("name is required")
	}
	n := len([]rune(name))
	if n < MinNameLength {
		return fail("name must be at least 2 characters")
	}
	if n > MaxNameLength {
		return fail("name must be at most 100 characters")
	}
	return ok()
}

// CPF checks a Brazilian taxpayer number, formatted or not
func CPF(cpf string) Result {
	digits := onlyDigits(cpf)
	if digits == "" {
		return fail("CPF is required")
	}
	if len(digits) != 11 {
		return fail("CPF must have 11 digits")
	}
	if strings.Count(digits, digits[:1]) == 11 {
		return fail("invalid CPF")
	}

	d := make([]int, 11)
	for i, r := range digits {
		d[i] = int(r - '0')
	}

	if cpfCheckDigit(d[:9], 10) != d[9] || cpfCheckDigit(d[:10], 11) != d[10] {
		return fail("invalid CPF")
	}
	return ok()
}

func cpfCheckDigit(d []int, weight int) int {
	sum := 0
	for _, v := range d {
		sum += v * weight
		weight--
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}

// Phone accepts 10 or 11 digit Brazilian numbers with any punctuation
func Phone(phone string) Result {
	digits := onlyDigits(phone)
	if digits == "" {
		return fail("phone is required")
	}
	if len(digits) < 10 || len(digits) > 11 {
		return fail("phone must have 10 or 11 digits")
	}
	return ok()
}

// CreditCard checks length and the Luhn checksum
func CreditCard(number string) Result {
	digits := onlyDigits(number)
	if digits == "" {
		return fail("card number is required")
	}
	if len(digits) < 13 || len(digits) > 19 {
		return fail("card number must have 13 to 19 digits")
	}
	if err := engine().Var(digits, "credit_card"); err != nil {
		return fail("invalid card number")
	}
	return ok()
}

func CVV(cvv string) Result {
	cvv = strings.TrimSpace(cvv)
	if cvv == "" {
		return fail("CVV is required")
	}
	if onlyDigits(cvv) != cvv || len(cvv) < 3 || len(cvv) > 4 {
		return fail("CVV must have 3 or 4 digits")
	}
	return ok()
}

// CardExpiry accepts MM/YY or MM/YYYY; the card is valid through the end
// of its expiry month
func CardExpiry(expiry string, now time.Time) Result {
	m, y, found := strings.Cut(strings.TrimSpace(expiry), "/")
	if !found {
		return fail("expiry must be MM/YY")
	}

	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return fail("invalid expiry month")
	}

	year, err := strconv.Atoi(y)
	if err != nil {
		return fail("invalid expiry year")
	}
	if len(y) == 2 {
		year += 2000
	}

	endOfMonth := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, now.Location())
	if !now.Before(endOfMonth) {
		return fail("card is expired")
	}
	return ok()
}

func Stake(amount float64) Result {
	if amount < MinStake {
		return fail("stake must be at least 1.00")
	}
	if amount > MaxStake {
		return fail("stake must be at most 10000.00")
	}
	return ok()
}

func Odds(odds float64) Result {
	if odds < MinOdds {
		return fail("odds must be at least 1.01")
	}
	if odds > MaxOdds {
		return fail("odds must be at most 1000")
	}
	return ok()
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
