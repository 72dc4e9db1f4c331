package types

import (
	dt "github.com/geodov/godov/pkg/dovtype"
)

const (
	nsBodem = "http://dov.vlaanderen.be/bodem"

	bodemParameterScheme = "https://data.bodemdata.be/id/conceptscheme/bodemobservatie_parameter"
)

// Bodemlocatie is a soil survey location.
var Bodemlocatie = dt.MustNew(dt.Definition{
	Name:      "bodemlocatie",
	Typename:  "bodem:bodemlocaties",
	Namespace: nsBodem,
	Fields: []dt.Field{
		dt.WFSField("pkey_bodemlocatie", "Bodemlocatiefiche", dt.String, dt.NotNull()),
		dt.WFSField("naam", "Naam", dt.String),
		dt.WFSField("type", "Type", dt.String),
		dt.WFSField("x", "X_mL72", dt.Float),
		dt.WFSField("y", "Y_mL72", dt.Float),
		dt.WFSField("mv_mtaw", "Z_mTAW", dt.Float),
		dt.WFSField("provincie", "Provincie", dt.String),
		dt.WFSField("gemeente", "Gemeente", dt.String),
		dt.WFSField("bodemstreek", "Bodemstreek", dt.String),
		dt.WFSField("invoerdatum", "Invoerdatum", dt.Date),
		dt.WFSField("educatieve_waarde", "Educatieve_waarde", dt.String),
		dt.XMLField("doel", "/bodemlocatie/doel", dt.String),
		dt.XMLField("erfgoed", "/bodemlocatie/erfgoed", dt.Boolean),
	},
})

// Bodemobservatie is a single soil observation. The parameter codes are
// described in a SKOS concept scheme rather than in the feature catalogue.
var Bodemobservatie = dt.MustNew(dt.Definition{
	Name:      "bodemobservatie",
	Typename:  "bodem:bodemobservaties",
	Namespace: nsBodem,
	Fields: []dt.Field{
		dt.WFSField("pkey_bodemobservatie", "Bodemobservatiefiche", dt.String, dt.NotNull()),
		dt.WFSField("pkey_bodemlocatie", "Bodemlocatiefiche", dt.String),
		dt.WFSField("pkey_parent", "Parentfiche", dt.String),
		dt.WFSField("x", "X_mL72", dt.Float),
		dt.WFSField("y", "Y_mL72", dt.Float),
		dt.WFSField("mv_mtaw", "Z_mTAW", dt.Float),
		dt.WFSField("diepte_van_cm", "Diepte_van_cm", dt.Float),
		dt.WFSField("diepte_tot_cm", "Diepte_tot_cm", dt.Float),
		dt.WFSField("observatiedatum", "Observatiedatum", dt.Date),
		dt.WFSField("invoerdatum", "Invoerdatum", dt.Date),
		dt.WFSField("parametergroep", "Parametergroep", dt.String),
		dt.WFSField("parameter", "Parameter", dt.String, dt.WithCodelist(bodemParameterScheme)),
		dt.WFSField("detectie", "Detectie", dt.String),
		dt.WFSField("waarde", "Waarde", dt.String),
		dt.WFSField("eenheid", "Eenheid", dt.String),
		dt.WFSField("veld_labo", "Veld_labo", dt.String),
		dt.WFSField("methode", "Methode", dt.String),
		dt.WFSField("betrouwbaarheid", "Betrouwbaarheid", dt.String),
		dt.WFSField("bron", "Bron", dt.String),
	},
})

// All maps the short family names used on the command line to their type.
var All = map[string]*dt.Type{
	"boring":            Boring,
	"sondering":         Sondering,
	"grondwaterfilter":  GrondwaterFilter,
	"grondwatermonster": GrondwaterMonster,
	"grondmonster":      Grondmonster,
	"bodemlocatie":      Bodemlocatie,
	"bodemobservatie":   Bodemobservatie,

	"informele_stratigrafie":                  InformeleStratigrafie,
	"formele_stratigrafie":                    FormeleStratigrafie,
	"hydrogeologische_stratigrafie":           HydrogeologischeStratigrafie,
	"lithologische_beschrijvingen":            LithologischeBeschrijvingen,
	"gecodeerde_lithologie":                   GecodeerdeLithologie,
	"geotechnische_codering":                  GeotechnischeCodering,
	"quartair_stratigrafie":                   QuartairStratigrafie,
	"informele_hydrogeologische_stratigrafie": InformeleHydrogeologischeStratigrafie,
}
