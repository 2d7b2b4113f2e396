// Package transform maps legacy dump records onto canonical property
// records. Pure functions only; anything that fails minimal shape
// requirements is dropped (nil), never an error.
package transform

import (
	"fmt"
	"math"

	"github.com/andrevros/imovelsync/internal/models"
)

// Legacy code tables. Codes absent from the tables fall back to the
// defaults below rather than failing; the legacy CRM let agents type
// arbitrary integers into these columns.
var propertyTypes = map[int]models.PropertyType{
	1:  models.TypeApartamento,
	2:  models.TypeCobertura,
	3:  models.TypeFlat,
	4:  models.TypeKitnet,
	5:  models.TypeTerreno,
	6:  models.TypeSobrado,
	7:  models.TypeCasa,
	8:  models.TypeChacara,
	9:  models.TypeComercial,
	11: models.TypeGalpao,
	12: models.TypeLoja,
}

var listingIntents = map[int]models.ListingIntent{
	10: models.IntentAluguel,
	20: models.IntentVenda,
	30: models.IntentTemporada,
}

const (
	defaultType   = models.TypeOutro
	defaultIntent = models.IntentVenda
)

// PropertyTypeFor resolves a legacy type code, defaulting to Outro.
func PropertyTypeFor(code int) models.PropertyType {
	if t, ok := propertyTypes[code]; ok {
		return t
	}
	return defaultType
}

// ListingIntentFor resolves a legacy intent code, defaulting to Venda.
func ListingIntentFor(code int) models.ListingIntent {
	if i, ok := listingIntents[code]; ok {
		return i
	}
	return defaultIntent
}

// Record converts one legacy row into a canonical property. Returns nil
// when the row has no usable identifier.
func Record(legacy *models.LegacyProperty) *models.Property {
	if legacy == nil || legacy.ID <= 0 {
		return nil
	}

	propType := PropertyTypeFor(legacy.TypeCode)
	title := titleFor(legacy, propType)

	return &models.Property{
		SourceID:   legacy.ID,
		Slug:       Slugify(fmt.Sprintf("%s-%d", title, legacy.ID)),
		Type:       propType,
		Intent:     ListingIntentFor(legacy.IntentCode),
		Title:      title,
		State:      legacy.State,
		City:       legacy.City,
		District:   legacy.District,
		Street:     legacy.Street,
		Price:      legacy.Price,
		Bedrooms:   int(math.Floor(legacy.Bedrooms)),
		Bathrooms:  int(math.Floor(legacy.Bathrooms)),
		Suites:     int(math.Floor(legacy.Suites)),
		AreaTotal:  legacy.AreaTotal,
		AreaUsable: legacy.AreaUsable,
		Desc:       legacy.Description,
		PhotoCount: legacy.PhotoCount,
	}
}

// titleFor walks the ordered fallback chain of legacy text fields and
// synthesizes a "<type> em <district>" title when all are blank.
func titleFor(legacy *models.LegacyProperty, propType models.PropertyType) string {
	for _, candidate := range []string{legacy.Title, legacy.AltTitle, legacy.ShortDescription} {
		if candidate != "" {
			return candidate
		}
	}
	locality := legacy.District
	if locality == "" {
		locality = legacy.City
	}
	if locality == "" {
		return string(propType)
	}
	return fmt.Sprintf("%s em %s", propType, locality)
}
