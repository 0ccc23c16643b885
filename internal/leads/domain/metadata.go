package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// MetadataKind discriminates the Metadata union.
type MetadataKind string

const (
	MetadataListing MetadataKind = "listing"
	MetadataImport  MetadataKind = "import"
	MetadataGeneric MetadataKind = "generic"
)

const (
	maxGenericFields   = 50
	maxGenericKeyLen   = 64
	maxGenericValueLen = 1000
)

var (
	ErrNestedMetadata  = errors.New("metadata values must be scalars")
	ErrMetadataInvalid = errors.New("invalid metadata")
)

// ListingMetadata describes a lead scraped from or linked to a listing.
type ListingMetadata struct {
	MLSID        string `json:"mlsId,omitempty" validate:"omitempty,max=64"`
	ListingURL   string `json:"listingUrl,omitempty" validate:"omitempty,url,max=2048"`
	DaysOnMarket *int   `json:"daysOnMarket,omitempty" validate:"omitempty,gte=0"`
	PhotoCount   *int   `json:"photoCount,omitempty" validate:"omitempty,gte=0"`
	YearBuilt    *int   `json:"yearBuilt,omitempty" validate:"omitempty,gte=1800,lte=2100"`
}

// ImportMetadata describes a lead that came from a file import.
type ImportMetadata struct {
	FileName   string     `json:"fileName,omitempty" validate:"omitempty,max=255"`
	ImportedAt *time.Time `json:"importedAt,omitempty"`
	RowNumber  *int       `json:"rowNumber,omitempty" validate:"omitempty,gte=1"`
}

// Metadata is a tagged union of the known metadata shapes with a flat
// string map as the fallback. Exactly one of the shape pointers matches Kind.
// The zero value is empty generic metadata.
type Metadata struct {
	Kind    MetadataKind
	Listing *ListingMetadata
	Import  *ImportMetadata
	Fields  map[string]string
}

// IsZero reports whether m carries no information.
func (m Metadata) IsZero() bool {
	switch m.Kind {
	case MetadataListing:
		return m.Listing == nil
	case MetadataImport:
		return m.Import == nil
	default:
		return len(m.Fields) == 0
	}
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case MetadataListing:
		return marshalTagged(MetadataListing, m.Listing)
	case MetadataImport:
		return marshalTagged(MetadataImport, m.Import)
	default:
		fields := m.Fields
		if fields == nil {
			fields = map[string]string{}
		}
		return json.Marshal(struct {
			Kind   MetadataKind      `json:"kind"`
			Fields map[string]string `json:"fields"`
		}{MetadataGeneric, fields})
	}
}

func marshalTagged(kind MetadataKind, shape any) ([]byte, error) {
	body, err := json.Marshal(shape)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(body, []byte("null")) || bytes.Equal(body, []byte("{}")) {
		return []byte(fmt.Sprintf(`{"kind":%q}`, kind)), nil
	}
	return append([]byte(fmt.Sprintf(`{"kind":%q,`, kind)), body[1:]...), nil
}

// UnmarshalJSON decodes a tagged object. An unknown or missing kind folds
// every other key into generic fields; scalars are stringified and nested
// values are rejected with ErrNestedMetadata.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = Metadata{Kind: MetadataGeneric}
		return nil
	}

	var head struct {
		Kind MetadataKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("%w: %v", ErrMetadataInvalid, err)
	}

	switch head.Kind {
	case MetadataListing:
		var l ListingMetadata
		if err := json.Unmarshal(data, &l); err != nil {
			return fmt.Errorf("%w: %v", ErrMetadataInvalid, err)
		}
		*m = Metadata{Kind: MetadataListing, Listing: &l}
	case MetadataImport:
		var im ImportMetadata
		if err := json.Unmarshal(data, &im); err != nil {
			return fmt.Errorf("%w: %v", ErrMetadataInvalid, err)
		}
		*m = Metadata{Kind: MetadataImport, Import: &im}
	case MetadataGeneric:
		var g struct {
			Fields map[string]json.RawMessage `json:"fields"`
		}
		if err := json.Unmarshal(data, &g); err != nil {
			return fmt.Errorf("%w: %v", ErrMetadataInvalid, err)
		}
		fields, err := flattenScalars(g.Fields)
		if err != nil {
			return err
		}
		*m = Metadata{Kind: MetadataGeneric, Fields: fields}
	default:
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("%w: %v", ErrMetadataInvalid, err)
		}
		delete(raw, "kind")
		fields, err := flattenScalars(raw)
		if err != nil {
			return err
		}
		*m = Metadata{Kind: MetadataGeneric, Fields: fields}
	}
	return nil
}

func flattenScalars(raw map[string]json.RawMessage) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		trimmed := bytes.TrimSpace(value)
		if len(trimmed) == 0 {
			continue
		}
		switch trimmed[0] {
		case '{', '[':
			return nil, fmt.Errorf("%w: %q", ErrNestedMetadata, key)
		case '"':
			var s string
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMetadataInvalid, err)
			}
			out[key] = s
		case 'n':
			// null drops the key
		case 't', 'f':
			out[key] = strconv.FormatBool(trimmed[0] == 't')
		default:
			out[key] = string(trimmed)
		}
	}
	return out, nil
}

// Problems lists boundary violations of the generic fallback. Typed shapes
// are checked with struct tags by the caller.
func (m Metadata) Problems() []string {
	if m.Kind == MetadataListing || m.Kind == MetadataImport {
		return nil
	}
	var problems []string
	if len(m.Fields) > maxGenericFields {
		problems = append(problems, fmt.Sprintf("at most %d metadata fields are allowed", maxGenericFields))
	}
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "" || len(k) > maxGenericKeyLen {
			problems = append(problems, fmt.Sprintf("metadata key %q must be 1-%d characters", k, maxGenericKeyLen))
		}
		if len(m.Fields[k]) > maxGenericValueLen {
			problems = append(problems, fmt.Sprintf("metadata value for %q exceeds %d characters", k, maxGenericValueLen))
		}
	}
	return problems
}

// Merge overlays incoming onto m. Same-kind shapes merge field by field with
// incoming non-empty values winning; a different kind replaces m entirely.
func (m Metadata) Merge(incoming Metadata) Metadata {
	if incoming.IsZero() {
		return m
	}
	incoming.Kind = normalizedKind(incoming.Kind)
	if m.IsZero() || normalizedKind(m.Kind) != normalizedKind(incoming.Kind) {
		return incoming
	}

	switch m.Kind {
	case MetadataListing:
		merged := *m.Listing
		in := incoming.Listing
		if in.MLSID != "" {
			merged.MLSID = in.MLSID
		}
		if in.ListingURL != "" {
			merged.ListingURL = in.ListingURL
		}
		if in.DaysOnMarket != nil {
			merged.DaysOnMarket = in.DaysOnMarket
		}
		if in.PhotoCount != nil {
			merged.PhotoCount = in.PhotoCount
		}
		if in.YearBuilt != nil {
			merged.YearBuilt = in.YearBuilt
		}
		return Metadata{Kind: MetadataListing, Listing: &merged}
	case MetadataImport:
		merged := *m.Import
		in := incoming.Import
		if in.FileName != "" {
			merged.FileName = in.FileName
		}
		if in.ImportedAt != nil {
			merged.ImportedAt = in.ImportedAt
		}
		if in.RowNumber != nil {
			merged.RowNumber = in.RowNumber
		}
		return Metadata{Kind: MetadataImport, Import: &merged}
	default:
		fields := make(map[string]string, len(m.Fields)+len(incoming.Fields))
		for k, v := range m.Fields {
			fields[k] = v
		}
		for k, v := range incoming.Fields {
			fields[k] = v
		}
		return Metadata{Kind: MetadataGeneric, Fields: fields}
	}
}

func normalizedKind(k MetadataKind) MetadataKind {
	if k == MetadataListing || k == MetadataImport {
		return k
	}
	return MetadataGeneric
}
