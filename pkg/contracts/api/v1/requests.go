// Package api contains the HTTP contract of the comparison service.
// Version v1 represents the current stable API version.
package api

import (
	"rowmatch/pkg/contracts/domain"
)

// CompareRequest asks for a comparison of two inline tables.
// DataColumns[i] is compared with LookupColumns[i].
type CompareRequest struct {
	Data          *domain.Table `json:"data" validate:"required"`
	Lookup        *domain.Table `json:"lookup" validate:"required"`
	DataColumns   []string      `json:"data_columns" validate:"required,min=1,dive,required"`
	LookupColumns []string      `json:"lookup_columns" validate:"required,min=1,dive,required"`
}

// UploadForm names the multipart fields of an upload comparison
const (
	FormDataFile      = "data_file"
	FormLookupFile    = "lookup_file"
	FormDataColumns   = "data_columns"
	FormLookupColumns = "lookup_columns"
	FormDataSheet     = "data_sheet"
	FormLookupSheet   = "lookup_sheet"
	FormFormat        = "format"
)
