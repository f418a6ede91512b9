package domain

import (
	"encoding/json"
	"fmt"
)

// Column names appended to the annotated tables
const (
	ColumnMatchStatus  = "匹配状态"
	ColumnMatchRows    = "匹配行号"
	ColumnMatchDetail  = "匹配详情"
	ColumnMatchedState = "被匹配状态"
	ColumnMatchedCount = "被匹配次数"
)

// Status labels written into the annotated tables
const (
	LabelMatched    = "匹配成功"
	LabelUnmatched  = "未匹配"
	LabelDuplicate  = "重复匹配"
	LabelDataHit    = "已被匹配"
	LabelDataMissed = "未被匹配"
)

// MatchStatus classifies a lookup row
type MatchStatus int

const (
	StatusUnmatched MatchStatus = iota
	StatusMatched
	StatusDuplicate
)

// String returns the machine-readable status name
func (s MatchStatus) String() string {
	switch s {
	case StatusMatched:
		return "matched"
	case StatusDuplicate:
		return "duplicate"
	default:
		return "unmatched"
	}
}

// Label returns the status text used in reports
func (s MatchStatus) Label() string {
	switch s {
	case StatusMatched:
		return LabelMatched
	case StatusDuplicate:
		return LabelDuplicate
	default:
		return LabelUnmatched
	}
}

// MarshalJSON encodes the status by name
func (s MatchStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name
func (s *MatchStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "matched":
		*s = StatusMatched
	case "duplicate":
		*s = StatusDuplicate
	case "unmatched":
		*s = StatusUnmatched
	default:
		return fmt.Errorf("unknown match status %q", name)
	}
	return nil
}

// MatchRecord is the outcome for one lookup row
type MatchRecord struct {
	LookupRow int         `json:"lookup_row"`
	Status    MatchStatus `json:"status"`
	DataRows  []int       `json:"data_rows"`
	RowLabel  string      `json:"row_label,omitempty"`
	Detail    string      `json:"detail"`
}

// DataRowAnnotation records how often a data row was matched
type DataRowAnnotation struct {
	DataRow    int  `json:"data_row"`
	Matched    bool `json:"matched"`
	MatchCount int  `json:"match_count"`
}

// Label returns the matched-state text used in reports
func (a DataRowAnnotation) Label() string {
	if a.Matched {
		return LabelDataHit
	}
	return LabelDataMissed
}

// MatchStatistics aggregates one comparison
type MatchStatistics struct {
	LookupRows    int `json:"lookup_rows"`
	DataRows      int `json:"data_rows"`
	Matched       int `json:"matched"`
	Unmatched     int `json:"unmatched"`
	Duplicate     int `json:"duplicate"`
	DataUnmatched int `json:"data_unmatched"`
}

// StatisticEntry is one labelled statistics line
type StatisticEntry struct {
	Label string `json:"label"`
	Value int    `json:"value"`
	// Total marks the row counts, which are printed without a percentage
	Total bool `json:"total"`
}

// Entries returns the statistics in report order
func (s MatchStatistics) Entries() []StatisticEntry {
	return []StatisticEntry{
		{Label: "查找表总行数", Value: s.LookupRows, Total: true},
		{Label: "数据表总行数", Value: s.DataRows, Total: true},
		{Label: "匹配成功行数", Value: s.Matched},
		{Label: "未匹配行数", Value: s.Unmatched},
		{Label: "重复匹配行数", Value: s.Duplicate},
		{Label: "数据表未被匹配行数", Value: s.DataUnmatched},
	}
}

// Percent returns n as a percentage of the lookup row count
func (s MatchStatistics) Percent(n int) float64 {
	if s.LookupRows == 0 {
		return 0
	}
	return float64(n) / float64(s.LookupRows) * 100
}

// ColumnPair couples a data table column with a lookup table column
type ColumnPair struct {
	DataColumn   string `json:"data_column"`
	LookupColumn string `json:"lookup_column"`
}

// ColumnPairing is the ordered list of compared columns
type ColumnPairing []ColumnPair

// DataColumns returns the data-side names in order
func (p ColumnPairing) DataColumns() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.DataColumn
	}
	return out
}

// LookupColumns returns the lookup-side names in order
func (p ColumnPairing) LookupColumns() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.LookupColumn
	}
	return out
}
