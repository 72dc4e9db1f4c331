// Package types holds the object family definitions served by DOV.
package types

import (
	dt "github.com/geodov/godov/pkg/dovtype"
)

const (
	nsDovPub = "http://dov.vlaanderen.be/ocdov/dov-pub"

	boringXSD = "xdov/schema/latest/xsd/kern/boring/BoringDataCodes.xsd"
)

// BoorMethode lists the drilling methods used per depth interval.
var BoorMethode = &dt.Subtype{
	Name:     "boormethode",
	RootPath: ".//boring/details/boormethode",
	Fields: []dt.Field{
		dt.XMLField("diepte_methode_van", "/van", dt.Float,
			dt.WithDefinition("Bovenkant van de laag die met een bepaalde methode aangeboord werd, in meter.")),
		dt.XMLField("diepte_methode_tot", "/tot", dt.Float,
			dt.WithDefinition("Onderkant van de laag die met een bepaalde methode aangeboord werd, in meter.")),
		dt.XMLField("boormethode", "/methode", dt.String,
			dt.WithDefinition("Boormethode voor het diepte-interval."),
			dt.WithXSD(boringXSD, "BoormethodeEnumType")),
	},
}

// Boring is a borehole.
var Boring = dt.MustNew(dt.Definition{
	Name:      "boring",
	Typename:  "dov-pub:Boringen",
	Namespace: nsDovPub,
	Fields: []dt.Field{
		dt.WFSField("pkey_boring", "fiche", dt.String, dt.NotNull()),
		dt.WFSField("boornummer", "boornummer", dt.String),
		dt.WFSField("x", "X_mL72", dt.Float),
		dt.WFSField("y", "Y_mL72", dt.Float),
		dt.XMLField("mv_mtaw", "/boring/oorspronkelijk_maaiveld/waarde", dt.Float,
			dt.WithDefinition("Maaiveldhoogte in mTAW op dag dat de boring uitgevoerd werd.")),
		dt.WFSField("start_boring_mtaw", "Z_mTAW", dt.Float),
		dt.WFSField("gemeente", "gemeente", dt.String),
		dt.XMLField("diepte_boring_van", "/boring/diepte_van", dt.Float,
			dt.WithDefinition("Startdiepte van de boring (in meter)."), dt.NotNull()),
		dt.WFSField("diepte_boring_tot", "diepte_tot_m", dt.Float),
		dt.WFSField("datum_aanvang", "datum_aanvang", dt.Date),
		dt.WFSField("uitvoerder", "uitvoerder", dt.String),
		dt.XMLField("boorgatmeting", "/boring/boorgatmeting/uitgevoerd", dt.Boolean,
			dt.WithDefinition("Is er een boorgatmeting uitgevoerd (ja/nee).")),
	},
	Subtype: BoorMethode,
})
