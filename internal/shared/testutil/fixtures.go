package testutil

import (
	"github.com/brianvoe/gofakeit/v6"

	"rowmatch/pkg/contracts/domain"
)

// Column layout of the generated tables
var (
	FixtureDataColumns   = []string{"id", "city", "amount", "remark"}
	FixtureLookupColumns = []string{"key", "town", "value"}
)

// RandomTables builds a data and a lookup table from a seed. Values are drawn
// from small pools so that exact, duplicate and missed matches all occur, and
// about one cell in eight is null. Lookup rows copy a data row (with padding
// whitespace) half of the time. The lookup table pairs key/town/value with
// the data table's id/city/amount.
func RandomTables(seed int64, dataRows, lookupRows int) (data, lookup *domain.Table) {
	f := gofakeit.New(seed)
	cities := []string{f.City(), f.City(), f.City(), f.City()}

	cell := func(v domain.Value) domain.Value {
		if f.Number(0, 7) == 0 {
			return domain.Null()
		}
		return v
	}

	data = domain.NewTable(append([]string(nil), FixtureDataColumns...))
	for i := 0; i < dataRows; i++ {
		data.Rows = append(data.Rows, []domain.Value{
			cell(domain.Number(float64(f.Number(1, 6)))),
			cell(domain.Text(f.RandomString(cities))),
			cell(domain.Number(float64(f.Number(1, 3)) * 10)),
			domain.Text(f.Word()),
		})
	}

	lookup = domain.NewTable(append([]string(nil), FixtureLookupColumns...))
	for i := 0; i < lookupRows; i++ {
		if dataRows > 0 && f.Bool() {
			src := data.Rows[f.Number(0, dataRows-1)]
			lookup.Rows = append(lookup.Rows, []domain.Value{
				pad(f, src[0]),
				pad(f, src[1]),
				src[2],
			})
			continue
		}
		lookup.Rows = append(lookup.Rows, []domain.Value{
			cell(domain.Text(f.Numerify("#"))),
			cell(domain.Text(f.RandomString(cities))),
			cell(domain.Number(float64(f.Number(1, 3)) * 10)),
		})
	}
	return data, lookup
}

// pad re-types a cell as text with surrounding whitespace, which must not
// change how it normalizes
func pad(f *gofakeit.Faker, v domain.Value) domain.Value {
	if v.IsNull() {
		return v
	}
	switch f.Number(0, 2) {
	case 0:
		return domain.Text(" " + v.String())
	case 1:
		return domain.Text(v.String() + "\t")
	default:
		return v
	}
}

// Permutation returns a random ordering of 0..n-1
func Permutation(seed int64, n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	gofakeit.New(seed).ShuffleInts(p)
	return p
}

// Reorder returns a copy of t whose row k is t's row perm[k]
func Reorder(t *domain.Table, perm []int) *domain.Table {
	out := &domain.Table{Columns: append([]string(nil), t.Columns...), Rows: make([][]domain.Value, len(perm))}
	for k, src := range perm {
		out.Rows[k] = append([]domain.Value(nil), t.Rows[src]...)
	}
	return out
}
