package money

import (
	"strconv"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// TestDataGenerator generates statement amounts and references using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(0)}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(seed)}
}

// Amount returns a random two-place decimal between minCents and maxCents.
func (g *TestDataGenerator) Amount(minCents, maxCents int64) decimal.Decimal {
	if minCents > maxCents {
		minCents, maxCents = maxCents, minCents
	}
	cents := g.faker.Int64() % (maxCents - minCents + 1)
	if cents < 0 {
		cents = -cents
	}
	return decimal.New(minCents+cents, -2)
}

// SignedAmount returns a random amount that is negative about half the time.
func (g *TestDataGenerator) SignedAmount(maxCents int64) decimal.Decimal {
	d := g.Amount(0, maxCents)
	if g.faker.Bool() {
		return d.Neg()
	}
	return d
}

// LocaleText renders d the way vendor statements print it: thousands grouped
// with "." and a decimal comma, e.g. "12.345,60".
func LocaleText(d decimal.Decimal) string {
	rounded := d.Round(2)
	whole := rounded.Abs().Truncate(0).IntPart()
	cents := rounded.Abs().Sub(decimal.NewFromInt(whole)).Mul(decimal.NewFromInt(100)).IntPart()

	digits := strconv.FormatInt(whole, 10)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)

	text := strings.Join(groups, ".") + "," + leftPad(strconv.FormatInt(cents, 10), 2)
	if rounded.IsNegative() {
		return "-" + text
	}
	return text
}

// Reference returns a random numeric document reference with n digits and no
// leading zero.
func (g *TestDataGenerator) Reference(n int) string {
	if n <= 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte(byte('1' + g.faker.IntRange(0, 8)))
	for i := 1; i < n; i++ {
		sb.WriteByte(byte('0' + g.faker.IntRange(0, 9)))
	}
	return sb.String()
}

func leftPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
