package tabular

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"rowmatch/internal/matching"
	"rowmatch/pkg/contracts/domain"
)

func TestReadCSV(t *testing.T) {
	input := "name,qty,price,active,note\n" +
		"Alice,1,2.5,true,x\n" +
		"Bob,2,3,False,\n" +
		"Carol,NA,4,TRUE,n/a\n"

	tbl, err := ReadCSV(strings.NewReader(input), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "qty", "price", "active", "note"}, tbl.Columns)
	require.Equal(t, 3, tbl.Len())

	assert.Equal(t, domain.Text("Alice"), tbl.Cell(0, 0))
	assert.Equal(t, domain.Number(1), tbl.Cell(0, 1))
	assert.Equal(t, domain.Number(2.5), tbl.Cell(0, 2))
	assert.Equal(t, domain.Bool(true), tbl.Cell(0, 3))
	assert.Equal(t, domain.Bool(false), tbl.Cell(1, 3))
	assert.True(t, tbl.Cell(1, 4).IsNull(), "empty field is missing")
	assert.True(t, tbl.Cell(2, 1).IsNull(), "NA marker is missing")
	assert.True(t, tbl.Cell(2, 4).IsNull())
	assert.Equal(t, domain.Number(3), tbl.Cell(1, 2))
}

func TestReadCSVInference(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
		want  domain.ValueKind
	}{
		{name: "integers", cells: []string{"1", "2", " 3"}, want: domain.KindNumber},
		{name: "mixed numbers and text", cells: []string{"1", "two"}, want: domain.KindText},
		{name: "leading zeros stay numeric", cells: []string{"007"}, want: domain.KindNumber},
		{name: "hex is text", cells: []string{"0x10"}, want: domain.KindText},
		{name: "inf is text", cells: []string{"inf"}, want: domain.KindText},
		{name: "long integer ids stay exact numbers", cells: []string{"110101199003074518", "42"}, want: domain.KindNumber},
		{name: "integers beyond int64 are text", cells: []string{"12345678901234567890123", "1"}, want: domain.KindText},
		{name: "over-precise fraction is text", cells: []string{"0.12345678901234567891", "2"}, want: domain.KindText},
		{name: "booleans", cells: []string{"True", "false"}, want: domain.KindBool},
		{name: "yes is text", cells: []string{"yes"}, want: domain.KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := "col\n" + strings.Join(tt.cells, "\n") + "\n"
			tbl, err := ReadCSV(strings.NewReader(input), Options{})
			require.NoError(t, err)
			for i := range tt.cells {
				assert.Equal(t, tt.want, tbl.Cell(i, 0).Kind(), "row %d", i)
			}
		})
	}
}

func TestReadCSVLongIDsKeepDigits(t *testing.T) {
	data, err := ReadCSV(strings.NewReader("身份证号\n110101199003074518\n"), Options{})
	require.NoError(t, err)
	lookup, err := ReadCSV(strings.NewReader("身份证号\n110101199003074519\n"), Options{})
	require.NoError(t, err)

	assert.Equal(t, "110101199003074518", data.Cell(0, 0).String())
	assert.Equal(t, "110101199003074519", lookup.Cell(0, 0).String())

	pairing, err := matching.NewPairing([]string{"身份证号"}, []string{"身份证号"})
	require.NoError(t, err)
	res, err := matching.Compare(context.Background(), data, lookup, pairing)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusUnmatched, res.Records[0].Status)
	assert.Equal(t, domain.MatchStatistics{LookupRows: 1, DataRows: 1, Unmatched: 1, DataUnmatched: 1}, res.Statistics)
	assert.Equal(t, "110101199003074518", res.AnnotatedData.Cell(0, 0).String())
}

func TestReadCSVRawText(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a,b\n007,true\n"), Options{RawText: true})
	require.NoError(t, err)
	assert.Equal(t, domain.Text("007"), tbl.Cell(0, 0))
	assert.Equal(t, domain.Text("true"), tbl.Cell(0, 1))
}

func TestReadCSVEncodings(t *testing.T) {
	gb, err := simplifiedchinese.GB18030.NewEncoder().String("名称,数量\n苹果,3\n")
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
	}{
		{name: "utf-8", input: "名称,数量\n苹果,3\n"},
		{name: "utf-8 with bom", input: "\xEF\xBB\xBF名称,数量\n苹果,3\n"},
		{name: "gb18030", input: gb},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ReadCSV(strings.NewReader(tt.input), Options{})
			require.NoError(t, err)
			assert.Equal(t, []string{"名称", "数量"}, tbl.Columns)
			assert.Equal(t, domain.Text("苹果"), tbl.Cell(0, 0))
			assert.Equal(t, domain.Number(3), tbl.Cell(0, 1))
		})
	}
}

func TestReadCSVHeaders(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a,,a,a\n1,2,3,4\n"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "Unnamed: 1", "a.1", "a.2"}, tbl.Columns)
}

func TestReadCSVShortAndBlankRows(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a,b,c\n1\n\n,,\n"), Options{})
	require.NoError(t, err)

	require.Equal(t, 2, tbl.Len(), "empty lines are skipped")
	assert.Equal(t, domain.Number(1), tbl.Cell(0, 0))
	assert.True(t, tbl.Cell(0, 2).IsNull())
	for c := range tbl.Columns {
		assert.True(t, tbl.Cell(1, c).IsNull())
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    Options
		wantErr error
		wantMsg string
	}{
		{name: "empty input", input: "", wantErr: ErrEmptyFile},
		{name: "too many rows", input: "a\n1\n2\n3\n", opts: Options{MaxRows: 2}, wantErr: ErrTooManyRows},
		{name: "row wider than header", input: "a,b\n1,2\n1,2,3\n", wantMsg: "line 3: expected 2 fields, saw 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), tt.opts)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestReadCSVMaxRowsBoundary(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a\n1\n2\n"), Options{MaxRows: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
}
