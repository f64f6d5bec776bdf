package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// PairData tiene las dos patas sobre un índice común, en la moneda base.
type PairData struct {
	A         PriceSeries
	B         PriceSeries
	CurrencyA string // moneda de cotización antes de convertir
	CurrencyB string
}

// Len devuelve la cantidad de observaciones alineadas.
func (p PairData) Len() int {
	return p.A.Len()
}

// ParseFXPair separa un ticker FX de seis letras ("EURUSD", "EUR_USD", "EURUSD=X")
// en moneda base y moneda de cotización.
func ParseFXPair(ticker string) (base, quote string, err error) {
	var letters []rune
	for _, r := range ticker {
		if unicode.IsLetter(r) {
			letters = append(letters, r)
		}
	}
	if len(letters) == 7 && unicode.ToUpper(letters[6]) == 'X' {
		// sufijo estilo Yahoo, "EURUSD=X"
		letters = letters[:6]
	}
	if len(letters) != 6 {
		return "", "", fmt.Errorf("domain.ParseFXPair: cannot infer pair from %q, expected six letters: %w",
			ticker, ErrInvalidConfig)
	}
	s := strings.ToUpper(string(letters))
	return s[:3], s[3:], nil
}

// ConvertCurrency expresa en target un precio cotizado en source, usando una
// tasa FX cotizada como fxPair (base/quote).
func ConvertCurrency(price, rate float64, source, target, fxPair string) (float64, error) {
	source = strings.ToUpper(source)
	target = strings.ToUpper(target)
	if source == target {
		return price, nil
	}
	fxBase, fxQuote, err := ParseFXPair(fxPair)
	if err != nil {
		return 0, err
	}
	switch {
	case source == fxBase && target == fxQuote:
		return price * rate, nil
	case source == fxQuote && target == fxBase:
		if rate == 0 {
			return 0, fmt.Errorf("domain.ConvertCurrency: zero %s rate: %w", fxPair, ErrInsufficientData)
		}
		return price / rate, nil
	default:
		return 0, fmt.Errorf("domain.ConvertCurrency: %s cannot convert %s to %s: %w",
			fxPair, source, target, ErrInvalidConfig)
	}
}

// FXLeg es la serie FX que convierte una pata a la moneda base.
type FXLeg struct {
	Ticker string
	Series PriceSeries
}

// AlignPair hace un inner join por timestamp de las dos patas (y de las series
// FX que necesiten) y convierte cada pata a base. fxA/fxB pueden ser nil si la
// pata ya cotiza en base.
func AlignPair(a, b PriceData, base string, fxA, fxB *FXLeg) (PairData, error) {
	base = strings.ToUpper(base)
	if a.Currency != base && fxA == nil {
		return PairData{}, fmt.Errorf("domain.AlignPair: %s is quoted in %s, no FX series to convert to %s: %w",
			a.Series.Name, a.Currency, base, ErrInvalidConfig)
	}
	if b.Currency != base && fxB == nil {
		return PairData{}, fmt.Errorf("domain.AlignPair: %s is quoted in %s, no FX series to convert to %s: %w",
			b.Series.Name, b.Currency, base, ErrInvalidConfig)
	}

	idxA, idxB := index(a.Series), index(b.Series)
	var rateA, rateB map[int64]float64
	required := []map[int64]float64{idxB}
	if a.Currency != base {
		rateA = index(fxA.Series)
		required = append(required, rateA)
	}
	if b.Currency != base {
		rateB = index(fxB.Series)
		required = append(required, rateB)
	}

	var times []time.Time
	for _, p := range a.Series.Points {
		key := p.Time.UnixNano()
		ok := true
		for _, m := range required {
			if _, found := m[key]; !found {
				ok = false
				break
			}
		}
		if ok {
			times = append(times, p.Time)
		}
	}

	outA := PriceSeries{Name: a.Series.Name, Currency: base, Points: make([]Point, 0, len(times))}
	outB := PriceSeries{Name: b.Series.Name, Currency: base, Points: make([]Point, 0, len(times))}
	for _, t := range times {
		key := t.UnixNano()
		va, err := convertLeg(idxA[key], key, a.Currency, base, fxA, rateA)
		if err != nil {
			return PairData{}, err
		}
		vb, err := convertLeg(idxB[key], key, b.Currency, base, fxB, rateB)
		if err != nil {
			return PairData{}, err
		}
		if !isFinite(va) || !isFinite(vb) {
			continue
		}
		outA.Points = append(outA.Points, Point{Time: t, Value: va})
		outB.Points = append(outB.Points, Point{Time: t, Value: vb})
	}

	if err := outA.Validate(); err != nil {
		return PairData{}, err
	}
	return PairData{A: outA, B: outB, CurrencyA: a.Currency, CurrencyB: b.Currency}, nil
}

// convertLeg convierte un precio con la tasa del timestamp key. rates es el
// índice de fx.Series, armado una sola vez por AlignPair.
func convertLeg(price float64, key int64, source, base string, fx *FXLeg, rates map[int64]float64) (float64, error) {
	if source == base || fx == nil {
		return price, nil
	}
	return ConvertCurrency(price, rates[key], source, base, fx.Ticker)
}

func index(s PriceSeries) map[int64]float64 {
	m := make(map[int64]float64, len(s.Points))
	for _, p := range s.Points {
		m[p.Time.UnixNano()] = p.Value
	}
	return m
}
