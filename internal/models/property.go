// This file defines the core data structures (models) for the migration.
// A LegacyProperty is one row of the original dump; a Property is the
// normalized record that eventually becomes a content-repository document.

package models

// LegacyProperty is a single row from the legacy listings dump, typed at
// the parser boundary so the transformer never has to trust raw positions.
type LegacyProperty struct {
	ID         int64
	Deleted    bool
	IntentCode int // legacy "finalidade" code
	TypeCode   int // legacy property type code
	State      string
	City       string
	District   string
	Zone       string

	// Numeric fields stay nil when the dump held NULL, so "unknown"
	// is distinguishable from zero. Room counts arrive as fractional
	// decimals ("3.0") and are floored during transformation.
	Price      *float64
	Bedrooms   float64
	Bathrooms  float64
	Suites     float64
	AreaTotal  *float64
	AreaUsable *float64

	Title            string
	ShortDescription string
	Description      string
	// AltTitle is column 312 of the original dump, used by the old site
	// as a display title when the main one was blank.
	AltTitle string

	PhotoCount int
	Street     string
}

// PropertyType is the normalized listing category. The string values are
// the ones the public site displays, hence Portuguese.
type PropertyType string

const (
	TypeApartamento PropertyType = "Apartamento"
	TypeCobertura   PropertyType = "Cobertura"
	TypeFlat        PropertyType = "Flat"
	TypeKitnet      PropertyType = "Kitnet"
	TypeTerreno     PropertyType = "Terreno"
	TypeSobrado     PropertyType = "Sobrado"
	TypeCasa        PropertyType = "Casa"
	TypeChacara     PropertyType = "Chácara"
	TypeComercial   PropertyType = "Sala Comercial"
	TypeGalpao      PropertyType = "Galpão"
	TypeLoja        PropertyType = "Loja"
	TypeOutro       PropertyType = "Outro"
)

// ListingIntent says whether the property is offered for sale or rent.
type ListingIntent string

const (
	IntentVenda     ListingIntent = "Venda"
	IntentAluguel   ListingIntent = "Aluguel"
	IntentTemporada ListingIntent = "Temporada"
)

// Property is the canonical record produced by the transformer. The JSON
// field names match the documents the content repository serves.
type Property struct {
	SourceID   int64         `json:"_sourceId"`
	Slug       string        `json:"slug"`
	Type       PropertyType  `json:"tipoImovel"`
	Intent     ListingIntent `json:"finalidade"`
	Title      string        `json:"titulo"`
	State      string        `json:"estado,omitempty"`
	City       string        `json:"cidade,omitempty"`
	District   string        `json:"bairro,omitempty"`
	Street     string        `json:"endereco,omitempty"`
	Price      *float64      `json:"preco,omitempty"`
	Bedrooms   int           `json:"dormitorios"`
	Bathrooms  int           `json:"banheiros"`
	Suites     int           `json:"suites,omitempty"`
	AreaTotal  *float64      `json:"areaTotal,omitempty"`
	AreaUsable *float64      `json:"areaUtil,omitempty"`
	Desc       string        `json:"descricao,omitempty"`
	PhotoCount int           `json:"fotos"`
}
