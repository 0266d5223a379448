package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidators(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		got   Result
		valid bool
	}{
		{name: "email ok", got: Email("ana@example.com"), valid: true},
		{name: "email missing at", got: Email("ana.example.com")},
		{name: "email empty", got: Email("  ")},

		{name: "password ok", got: Password("secret"), valid: true},
		{name: "password short", got: Password("12345")},

		{name: "name ok", got: Name("Ana"), valid: true},
		{name: "name too short", got: Name("A")},
		{name: "name too long", got: Name(strings.Repeat("a", 101))},

		{name: "cpf formatted", got: CPF("529.982.247-25"), valid: true},
		{name: "cpf digits only", got: CPF("11144477735"), valid: true},
		{name: "cpf bad check digit", got: CPF("529.982.247-26")},
		{name: "cpf repeated digits", got: CPF("111.111.111-11")},
		{name: "cpf short", got: CPF("1234")},

		{name: "phone mobile", got: Phone("(11) 98765-4321"), valid: true},
		{name: "phone landline", got: Phone("11 3456-7890"), valid: true},
		{name: "phone short", got: Phone("98765-4321")},

		{name: "card visa", got: CreditCard("4111 1111 1111 1111"), valid: true},
		{name: "card bad luhn", got: CreditCard("4111111111111112")},
		{name: "card short", got: CreditCard("411111")},

		{name: "cvv three", got: CVV("123"), valid: true},
		{name: "cvv four", got: CVV("1234"), valid: true},
		{name: "cvv letters", got: CVV("12a")},

		{name: "expiry this month", got: CardExpiry("06/24", now), valid: true},
		{name: "expiry long year", got: CardExpiry("01/2030", now), valid: true},
		{name: "expiry past", got: CardExpiry("05/24", now)},
		{name: "expiry bad month", got: CardExpiry("13/25", now)},
		{name: "expiry no slash", got: CardExpiry("0625", now)},

		{name: "stake ok", got: Stake(10), valid: true},
		{name: "stake too low", got: Stake(0.5)},
		{name: "stake too high", got: Stake(20000)},

		{name: "odds ok", got: Odds(1.85), valid: true},
		{name: "odds too low", got: Odds(1.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.got.IsValid)
			if tt.valid {
				assert.Empty(t, tt.got.Error)
			} else {
				assert.NotEmpty(t, tt.got.Error)
			}
		})
	}
}
