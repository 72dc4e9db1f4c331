package types

import (
	dt "github.com/geodov/godov/pkg/dovtype"
)

const sonderingXSD = "xdov/schema/latest/xsd/kern/sondering/SonderingDataCodes.xsd"

// Meetdata holds the cone penetration readings per depth.
var Meetdata = &dt.Subtype{
	Name:     "meetdata",
	RootPath: ".//sondering/sondeonderzoek/penetratietest/meetdata",
	Fields: []dt.Field{
		dt.XMLField("z", "/sondeerdiepte", dt.Float, dt.WithDefinition("Diepte waarop sondeerparameters geregistreerd werden, uitgedrukt in meter ten opzichte van het aanvangspeil.")),
		dt.XMLField("qc", "/qc", dt.Float, dt.WithDefinition("Gemeten conusweerstand, uitgedrukt in MPa.")),
		dt.XMLField("Qt", "/Qt", dt.Float, dt.WithDefinition("Gemeten totale weerstand, uitgedrukt in kN.")),
		dt.XMLField("fs", "/fs", dt.Float, dt.WithDefinition("Gemeten plaatselijke kleefweerstand, uitgedrukt in kPa.")),
		dt.XMLField("u", "/u", dt.Float, dt.WithDefinition("Gemeten waterspanning, uitgedrukt in kPa.")),
		dt.XMLField("i", "/si/waarde", dt.Float, dt.WithDefinition("Gemeten inclinatie, uitgedrukt in graden.")),
	},
}

// Sondering is a cone penetration test.
var Sondering = dt.MustNew(dt.Definition{
	Name:      "sondering",
	Typename:  "dov-pub:Sonderingen",
	Namespace: nsDovPub,
	Fields: []dt.Field{
		dt.WFSField("pkey_sondering", "fiche", dt.String, dt.NotNull()),
		dt.WFSField("sondeernummer", "sondeernummer", dt.String),
		dt.WFSField("x", "X_mL72", dt.Float),
		dt.WFSField("y", "Y_mL72", dt.Float),
		dt.XMLField("mv_mtaw", "/sondering/sondeonderzoek/penetratietest/maaiveld/waarde", dt.Float,
			dt.WithDefinition("Maaiveldhoogte in mTAW op dag dat de sondering uitgevoerd werd.")),
		dt.WFSField("start_sondering_mtaw", "Z_mTAW", dt.Float),
		dt.XMLField("diepte_sondering_van", "/sondering/sondeonderzoek/penetratietest/diepte_van", dt.Float,
			dt.WithDefinition("Startdiepte van de sondering (in meter).")),
		dt.WFSField("diepte_sondering_tot", "sondeerdiepte", dt.Float),
		dt.WFSField("datum_aanvang", "datum_aanvang", dt.Date),
		dt.WFSField("uitvoerder", "uitvoerder", dt.String),
		dt.WFSField("sondeermethode", "sondeermethode", dt.String),
		dt.WFSField("apparaat", "apparaat_type", dt.String),
		dt.XMLField("datum_gw_meting", "/sondering/visueelonderzoek/datumtijd_waarneming_grondwaterstand", dt.DateTime,
			dt.WithDefinition("Datum en tijdstip van waarneming van de grondwaterstand.")),
		dt.XMLField("diepte_gw_m", "/sondering/visueelonderzoek/grondwaterstand", dt.Float,
			dt.WithDefinition("Diepte van de grondwaterstand, in meter.")),
		dt.XMLField("conus", "/sondering/sondeonderzoek/penetratietest/conus/conustype", dt.String,
			dt.WithXSD(sonderingXSD, "ConusTypeEnumType")),
	},
	Subtype: Meetdata,
})
