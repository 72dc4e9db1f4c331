package types

import (
	dt "github.com/geodov/godov/pkg/dovtype"
)

const (
	nsMeetnetten = "http://dov.vlaanderen.be/grondwater/gw_meetnetten"

	grondwaterfilterXSD  = "xdov/schema/latest/xsd/kern/gwmeetnet/FilterDataCodes.xsd"
	grondwatermonsterXSD = "xdov/schema/latest/xsd/kern/gwmeetnet/GrondwatermonsterDataCodes.xsd"
	grondwaterXSD        = "xdov/schema/latest/xsd/kern/interpretatie/HydrogeologischeStratigrafieDataCodes.xsd"
)

var Peilmeting = &dt.Subtype{
	Name:     "peilmeting",
	RootPath: ".//filtermeting/peilmeting",
	Fields: []dt.Field{
		dt.XMLField("datum", "/datum", dt.Date, dt.WithDefinition("Datum van opmeten.")),
		dt.XMLField("tijdstip", "/tijdstip", dt.String, dt.WithDefinition("Tijdstip van opmeten (optioneel).")),
		dt.XMLField("peil_mtaw", "/peil_mtaw", dt.Float, dt.WithDefinition("Diepte van de peilmeting, uitgedrukt in mTAW.")),
		dt.XMLField("betrouwbaarheid", "/betrouwbaarheid", dt.String,
			dt.WithXSD(grondwaterfilterXSD, "BetrouwbaarheidEnumType")),
		dt.XMLField("methode", "/methode", dt.String,
			dt.WithXSD(grondwaterfilterXSD, "PeilmetingMethodeEnumType")),
		dt.XMLField("filterstatus", "/filterstatus", dt.String,
			dt.WithXSD(grondwaterfilterXSD, "FilterstatusEnumType")),
		dt.XMLField("filtertoestand", "/filtertoestand", dt.Integer,
			dt.WithXSD(grondwaterfilterXSD, "FiltertoestandEnumType")),
	},
}

// GrondwaterFilter is a groundwater screen with its water level readings.
var GrondwaterFilter = dt.MustNew(dt.Definition{
	Name:      "filter",
	Typename:  "gw_meetnetten:meetnetten",
	Namespace: nsMeetnetten,
	Fields: []dt.Field{
		dt.WFSField("pkey_filter", "filterfiche", dt.String, dt.NotNull()),
		dt.WFSField("pkey_grondwaterlocatie", "putfiche", dt.String),
		dt.WFSField("gw_id", "GW_ID", dt.String),
		dt.WFSField("filternummer", "filternummer", dt.String),
		dt.WFSField("filtertype", "filtertype", dt.String),
		dt.WFSField("x", "X_mL72", dt.Float),
		dt.WFSField("y", "Y_mL72", dt.Float),
		dt.WFSField("start_grondwaterlocatie_mtaw", "Z_mTAW", dt.Float),
		dt.WFSField("gemeente", "gemeente", dt.String),
		dt.XMLField("meetnet_code", "/filter/meetnet", dt.String,
			dt.WithDefinition("Tot welk meetnet behoort deze filter."),
			dt.WithXSD(grondwaterfilterXSD, "MeetnetEnumType")),
		dt.XMLField("aquifer_code", "/filter/ligging/aquifer", dt.String,
			dt.WithDefinition("In welke watervoerende laag hangt de filter."),
			dt.WithXSD(grondwaterXSD, "AquiferEnumType")),
		dt.XMLField("grondwaterlichaam_code", "/filter/ligging/grondwaterlichaam", dt.String),
		dt.XMLField("regime", "/filter/ligging/regime", dt.String),
		dt.WFSField("diepte_onderkant_filter", "onderkant_filter_m", dt.Float),
		dt.WFSField("lengte_filter", "lengte_filter_m", dt.Float),
	},
	Subtype: Peilmeting,
})

var Observatie = &dt.Subtype{
	Name:     "observatie",
	RootPath: ".//grondwatermonster/observatie",
	Fields: []dt.Field{
		dt.XMLField("parametergroep", "/parametergroep", dt.String,
			dt.WithXSD(grondwatermonsterXSD, "ParametergroepEnumType")),
		dt.XMLField("parameter", "/parameter", dt.String,
			dt.WithXSD(grondwatermonsterXSD, "ParameterEnumType")),
		dt.XMLField("detectie", "/detectie", dt.String),
		dt.XMLField("waarde", "/waarde_numeriek", dt.Float),
		dt.XMLField("eenheid", "/eenheid", dt.String,
			dt.WithXSD(grondwatermonsterXSD, "EenheidEnumType")),
		dt.XMLField("veld_labo", "/veld_labo", dt.String),
	},
}

// GrondwaterMonster is a groundwater sample with its lab observations.
var GrondwaterMonster = dt.MustNew(dt.Definition{
	Name:      "grondwatermonster",
	Typename:  "gw_meetnetten:grondwatermonsters",
	Namespace: nsMeetnetten,
	Fields: []dt.Field{
		dt.WFSField("pkey_grondwatermonster", "grondwatermonsterfiche", dt.String, dt.NotNull()),
		dt.WFSField("grondwatermonsternummer", "grondwatermonsternummer", dt.String),
		dt.WFSField("pkey_grondwaterlocatie", "grondwaterlocatiefiche", dt.String),
		dt.WFSField("gw_id", "GW_ID", dt.String),
		dt.WFSField("pkey_filter", "filterfiche", dt.String),
		dt.WFSField("filternummer", "filternummer", dt.String),
		dt.WFSField("x", "X_mL72", dt.Float),
		dt.WFSField("y", "Y_mL72", dt.Float),
		dt.WFSField("start_grondwaterlocatie_mtaw", "Z_mTAW", dt.Float),
		dt.WFSField("gemeente", "gemeente", dt.String),
		dt.WFSField("datum_monstername", "datum_monstername", dt.Date),
	},
	Subtype: Observatie,
})
