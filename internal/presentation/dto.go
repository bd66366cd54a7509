package presentation

import (
	"time"

	"github.com/renholm/switchboard/internal/dispatcher"
	"github.com/renholm/switchboard/internal/journal"
)

// OperatorDTO represents one dispatch table operator for presentation
type OperatorDTO struct {
	Name    string      `json:"name"`
	Schema  string      `json:"schema,omitempty"`
	Debug   string      `json:"debug,omitempty"`
	Kernels []KernelDTO `json:"kernels"`
}

// KernelDTO represents one kernel slot
type KernelDTO struct {
	Key      string `json:"key"`
	Debug    string `json:"debug,omitempty"`
	Inferred bool   `json:"inferred"`
}

// FallbackDTO represents one key-wide fallback
type FallbackDTO struct {
	Key   string `json:"key"`
	Debug string `json:"debug,omitempty"`
}

// TableDTO bundles the full dispatch table state
type TableDTO struct {
	Operators []OperatorDTO `json:"operators"`
	Fallbacks []FallbackDTO `json:"fallbacks,omitempty"`
}

// HistoryEntryDTO represents one journal row
type HistoryEntryDTO struct {
	RegistrationID string `json:"registration_id"`
	Action         string `json:"action"`
	Kind           string `json:"kind"`
	Operator       string `json:"operator,omitempty"`
	Namespace      string `json:"namespace,omitempty"`
	Key            string `json:"key,omitempty"`
	Debug          string `json:"debug,omitempty"`
	At             string `json:"at"`
}

// CallResultDTO reports one dispatched invocation
type CallResultDTO struct {
	Operator string `json:"operator"`
	Key      string `json:"key"`
	Fallback bool   `json:"fallback,omitempty"`
	Outputs  []any  `json:"outputs"`
}

// FromOperatorInfo converts one snapshot entry to a DTO.
func FromOperatorInfo(info dispatcher.OperatorInfo) OperatorDTO {
	kernels := make([]KernelDTO, len(info.Kernels))
	for i, k := range info.Kernels {
		kernels[i] = KernelDTO{
			Key:      k.Key.String(),
			Debug:    k.Debug,
			Inferred: k.HasInferred,
		}
	}

	dto := OperatorDTO{
		Name:    info.Name.String(),
		Debug:   info.SchemaDebug,
		Kernels: kernels,
	}
	if info.Schema != nil {
		dto.Schema = info.Schema.String()
	}
	return dto
}

// FromSnapshot converts a dispatcher snapshot to DTOs.
func FromSnapshot(infos []dispatcher.OperatorInfo) []OperatorDTO {
	dtos := make([]OperatorDTO, len(infos))
	for i, info := range infos {
		dtos[i] = FromOperatorInfo(info)
	}
	return dtos
}

// FromFallbacks converts fallback info to DTOs.
func FromFallbacks(infos []dispatcher.FallbackInfo) []FallbackDTO {
	dtos := make([]FallbackDTO, len(infos))
	for i, info := range infos {
		dtos[i] = FallbackDTO{Key: info.Key.String(), Debug: info.Debug}
	}
	return dtos
}

// FromJournalEntry converts one journal row to a DTO.
func FromJournalEntry(e journal.Entry) HistoryEntryDTO {
	return HistoryEntryDTO{
		RegistrationID: e.RegistrationID,
		Action:         string(e.Action),
		Kind:           e.Kind,
		Operator:       e.Operator,
		Namespace:      e.Namespace,
		Key:            e.Key,
		Debug:          e.Debug,
		At:             e.CreatedAt.Format(time.RFC3339),
	}
}

// FromJournalEntries converts journal rows to DTOs.
func FromJournalEntries(entries []journal.Entry) []HistoryEntryDTO {
	dtos := make([]HistoryEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = FromJournalEntry(e)
	}
	return dtos
}

// FromResolution converts a dispatch resolution and its outputs to a DTO.
func FromResolution(r dispatcher.Resolution, outputs []any) CallResultDTO {
	return CallResultDTO{
		Operator: r.Operator.String(),
		Key:      r.Key.String(),
		Fallback: r.Fallback,
		Outputs:  outputs,
	}
}
