package types

import (
	"strings"

	"github.com/beevik/etree"

	dt "github.com/geodov/godov/pkg/dovtype"
)

const (
	nsBoringen = "http://dov.vlaanderen.be/ocdov/boringen"

	grondmonsterXSD = "xdov/schema/latest/xsd/kern/grondmonster/GrondmonsterDataCodes.xsd"
)

var Korrelverdeling = &dt.Subtype{
	Name:     "korrelverdeling",
	RootPath: ".//grondmonster/observatieData/observatie[parameter='KORRELVERDELING']/korrelverdeling/waarde",
	Fields: []dt.Field{
		dt.XMLField("diameter", "/diameter", dt.Float, dt.WithDefinition("Korreldiameter, in micrometer.")),
		dt.XMLField("fractie", "/fractie", dt.Float, dt.WithDefinition("Massafractie kleiner dan de diameter, in procent.")),
		dt.XMLField("methode", "/methode", dt.String, dt.WithXSD(grondmonsterXSD, "KorrelverdelingMethodeEnumType")),
	},
}

// observatieWaarde returns the value of the observation with the given
// parameter code, or nil when the sample has none.
func observatieWaarde(parameter string) dt.ComputeFunc {
	return func(root *etree.Element) (any, error) {
		for _, obs := range root.FindElements(".//grondmonster/observatieData/observatie") {
			p := obs.SelectElement("parameter")
			if p == nil || strings.TrimSpace(p.Text()) != parameter {
				continue
			}
			if w := obs.SelectElement("waarde"); w != nil {
				return dt.ParseValue(w.Text(), dt.String)
			}
		}
		return nil, nil
	}
}

// Grondmonster is a soil sample taken from a borehole.
var Grondmonster = dt.MustNew(dt.Definition{
	Name:      "grondmonster",
	Typename:  "boringen:grondmonsters",
	Namespace: nsBoringen,
	Fields: []dt.Field{
		dt.WFSField("pkey_grondmonster", "grondmonsterfiche", dt.String, dt.NotNull()),
		dt.WFSField("naam", "naam", dt.String),
		dt.WFSField("pkey_boring", "boringfiche", dt.String),
		dt.WFSField("boornummer", "boornummer", dt.String),
		dt.WFSField("datum", "datum", dt.Date),
		dt.WFSField("x", "X_mL72", dt.Float),
		dt.WFSField("y", "Y_mL72", dt.Float),
		dt.WFSField("gemeente", "gemeente", dt.String),
		dt.WFSField("diepte_van_m", "diepte_van_m", dt.Float),
		dt.WFSField("diepte_tot_m", "diepte_tot_m", dt.Float),
		dt.WFSField("peil_van_mtaw", "peil_van_mtaw", dt.Float),
		dt.WFSField("peil_tot_mtaw", "peil_tot_mtaw", dt.Float),
		dt.WFSField("monstertype", "monstertype", dt.String),
		dt.CustomField("astm_naam", dt.String, observatieWaarde("ASTM_NAAM"),
			dt.WithDefinition("Benaming van het grondmonster volgens de ASTM-classificatie.")),
		dt.CustomField("grondsoort_bggg", dt.String, observatieWaarde("GRONDSOORT_BGGG"),
			dt.WithDefinition("Grondsoort volgens de BGGG-classificatie.")),
	},
	Subtype: Korrelverdeling,
})
