package api

import (
	"rowmatch/pkg/contracts/domain"
)

// Response is the envelope of every successful JSON response
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// CompareResponse is the payload of a finished comparison
type CompareResponse struct {
	Statistics      domain.MatchStatistics     `json:"statistics"`
	Summary         []domain.StatisticEntry    `json:"summary"`
	LookupRecords   []domain.MatchRecord       `json:"lookup_records"`
	DataAnnotations []domain.DataRowAnnotation `json:"data_annotations"`
	AnnotatedData   *domain.Table              `json:"annotated_data"`
	AnnotatedLookup *domain.Table              `json:"annotated_lookup"`
	Pairing         domain.ColumnPairing       `json:"pairing"`
}

// HealthResponse reports service liveness
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}
