// Package catalog holds the static reference data: cities, transport
// lines and report types. Nothing here changes at runtime.
package catalog

import "transitwatch/internal/models"

var cities = []models.City{
	{ID: "brazzaville", Name: "Brazzaville", Active: true},
	{ID: "pointe-noire", Name: "Pointe-Noire", Active: true},
}

var lines = []models.TransportLine{
	{ID: "line-1", Name: "Ligne 1 - Centre-ville → Bacongo", CityID: "brazzaville", Route: "Centre-ville - Bacongo", Active: true},
	{ID: "line-2", Name: "Ligne 2 - Poto-Poto → Moungali", CityID: "brazzaville", Route: "Poto-Poto - Moungali", Active: true},
	{ID: "line-3", Name: "Ligne 3 - Makélékélé → Talangaï", CityID: "brazzaville", Route: "Makélékélé - Talangaï", Active: true},
	{ID: "line-4", Name: "Ligne 4 - Ouenzé → Centre-ville", CityID: "brazzaville", Route: "Ouenzé - Centre-ville", Active: true},
	{ID: "line-5", Name: "Ligne A - Port → Loandjili", CityID: "pointe-noire", Route: "Port - Loandjili", Active: true},
	{ID: "line-6", Name: "Ligne B - Tié-Tié → Mongo-Mpoukou", CityID: "pointe-noire", Route: "Tié-Tié - Mongo-Mpoukou", Active: true},
}

var reportTypes = []models.ReportType{
	{Key: models.ReportNoBus, Label: "Absence de bus", Description: "Aucun bus depuis longtemps", Icon: "bus", Color: "#DC2626"},
	{Key: models.ReportOverpriced, Label: "Prix abusif", Description: "Tarif supérieur au prix normal", Icon: "dollar-sign", Color: "#F59E0B"},
	{Key: models.ReportOvercrowded, Label: "Surcharge", Description: "Trop de passagers dans le véhicule", Icon: "users", Color: "#8B5CF6"},
	{Key: models.ReportBreakdown, Label: "Panne", Description: "Véhicule en panne", Icon: "wrench", Color: "#EF4444"},
	{Key: models.ReportOther, Label: "Autre", Description: "Autre type de problème", Icon: "alert-triangle", Color: "#64748B"},
}

// Cities returns all cities
func Cities() []models.City {
	return append([]models.City(nil), cities...)
}

// Lines returns all transport lines, active or not
func Lines() []models.TransportLine {
	return append([]models.TransportLine(nil), lines...)
}

// ReportTypes returns the report type catalog in display order
func ReportTypes() []models.ReportType {
	return append([]models.ReportType(nil), reportTypes...)
}

// LinesByCity returns the active lines of a city. The result is a new
// slice on every call and is empty for an unknown city.
func LinesByCity(cityID string) []models.TransportLine {
	out := []models.TransportLine{}
	for _, l := range lines {
		if l.CityID == cityID && l.Active {
			out = append(out, l)
		}
	}
	return out
}

// City looks up a city by ID
func City(id string) (models.City, bool) {
	for _, c := range cities {
		if c.ID == id {
			return c, true
		}
	}
	return models.City{}, false
}

// Line looks up a line by ID
func Line(id string) (models.TransportLine, bool) {
	for _, l := range lines {
		if l.ID == id {
			return l, true
		}
	}
	return models.TransportLine{}, false
}

// ReportType looks up a report type by key
func ReportType(key models.ReportTypeKey) (models.ReportType, bool) {
	for _, rt := range reportTypes {
		if rt.Key == key {
			return rt, true
		}
	}
	return models.ReportType{}, false
}

// IsValidReportType reports whether key is one of the catalog keys
func IsValidReportType(key models.ReportTypeKey) bool {
	_, ok := ReportType(key)
	return ok
}
