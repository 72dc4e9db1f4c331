package types

import (
	"strings"

	"github.com/beevik/etree"

	dt "github.com/geodov/godov/pkg/dovtype"
)

const (
	nsInterpretaties = "http://dov.vlaanderen.be/ocdov/interpretaties"

	interpretatieXSD = "xdov/schema/latest/xsd/kern/interpretatie/InterpretatieDataCodes.xsd"
)

// interpretatie describes an interpretation layer. Every interpretation
// belongs to either a borehole or a cone penetration test; the WFS layer
// carries the key in Proeffiche and the kind in Type_proef.
type interpretatie struct {
	typename  string
	subtype   *dt.Subtype
	sondering bool // interpretation may belong to a sondering
}

func (i interpretatie) build() *dt.Type {
	fields := []dt.Field{
		dt.WFSField("pkey_interpretatie", "Interpretatiefiche", dt.String, dt.NotNull()),
		dt.WFSField("pkey_boring", "Proeffiche", dt.String),
	}
	if i.sondering {
		fields = append(fields, dt.WFSField("pkey_sondering", "Proeffiche", dt.String))
	}
	fields = append(fields,
		dt.WFSField("betrouwbaarheid_interpretatie", "Betrouwbaarheid", dt.String),
		dt.WFSField("x", "X_mL72", dt.Float),
		dt.WFSField("y", "Y_mL72", dt.Float),
		dt.WFSField("start_interpretatie_mtaw", "Z_mTAW", dt.Float),
	)
	return dt.MustNew(dt.Definition{
		Name:      "interpretatie",
		Typename:  i.typename,
		Namespace: nsInterpretaties,
		Fields:    fields,
		Subtype:   i.subtype,
		Requires:  []string{"Type_proef"},
		PostWFS:   splitProeffiche,
	})
}

// splitProeffiche keeps the Proeffiche key only in the column matching
// the Type_proef of the feature.
func splitProeffiche(obj *dt.Object, feature *etree.Element, ns string) error {
	kind := ""
	if el := dt.FindChild(feature, "Type_proef", ns); el != nil {
		kind = strings.ToLower(strings.TrimSpace(el.Text()))
	}
	if kind != "boring" {
		obj.Data["pkey_boring"] = nil
	}
	if _, ok := obj.Data["pkey_sondering"]; ok && kind != "sondering" {
		obj.Data["pkey_sondering"] = nil
	}
	return nil
}

func laag(rootpath string, extra ...dt.Field) *dt.Subtype {
	fields := []dt.Field{
		dt.XMLField("diepte_laag_van", "/van", dt.Float, dt.WithDefinition("Diepte van de bovenkant van de laag in meter.")),
		dt.XMLField("diepte_laag_tot", "/tot", dt.Float, dt.WithDefinition("Diepte van de onderkant van de laag in meter.")),
	}
	return &dt.Subtype{Name: "laag", RootPath: rootpath, Fields: append(fields, extra...)}
}

func beschrijving() dt.Field {
	return dt.XMLField("beschrijving", "/beschrijving", dt.String, dt.WithDefinition("Benoeming van de eenheid van de laag."))
}

func stratigrafischeLeden() []dt.Field {
	return []dt.Field{
		dt.XMLField("lid1", "/lid1", dt.String, dt.WithXSD(interpretatieXSD, "FormeleStratigrafieLedenEnumType")),
		dt.XMLField("relatie_lid1_lid2", "/relatie_lid1_lid2", dt.String, dt.WithXSD(interpretatieXSD, "RelatieLedenEnumType")),
		dt.XMLField("lid2", "/lid2", dt.String, dt.WithXSD(interpretatieXSD, "FormeleStratigrafieLedenEnumType")),
	}
}

func grondsoortCodering() []dt.Field {
	return []dt.Field{
		dt.XMLField("hoofdnaam1_grondsoort", "/hoofdnaam[1]/grondsoort", dt.String, dt.WithXSD(interpretatieXSD, "GrondsoortEnumType")),
		dt.XMLField("hoofdnaam2_grondsoort", "/hoofdnaam[2]/grondsoort", dt.String, dt.WithXSD(interpretatieXSD, "GrondsoortEnumType")),
		dt.XMLField("bijmenging1_plaatselijk", "/bijmenging[1]/plaatselijk", dt.Boolean),
		dt.XMLField("bijmenging1_hoeveelheid", "/bijmenging[1]/hoeveelheid", dt.String, dt.WithXSD(interpretatieXSD, "HoeveelheidEnumType")),
		dt.XMLField("bijmenging1_grondsoort", "/bijmenging[1]/grondsoort", dt.String, dt.WithXSD(interpretatieXSD, "GrondsoortEnumType")),
	}
}

var (
	InformeleStratigrafie = interpretatie{
		typename:  "interpretaties:informele_stratigrafie",
		subtype:   laag(".//informelestratigrafie/laag", beschrijving()),
		sondering: true,
	}.build()

	FormeleStratigrafie = interpretatie{
		typename:  "interpretaties:formele_stratigrafie",
		subtype:   laag(".//formelestratigrafie/laag", stratigrafischeLeden()...),
		sondering: true,
	}.build()

	HydrogeologischeStratigrafie = interpretatie{
		typename: "interpretaties:hydrogeologische_stratigrafie",
		subtype: laag(".//hydrogeologischeinterpretatie/laag",
			dt.XMLField("aquifer", "/aquifer", dt.String, dt.WithXSD(grondwaterXSD, "AquiferEnumType"))),
	}.build()

	LithologischeBeschrijvingen = interpretatie{
		typename: "interpretaties:lithologische_beschrijvingen",
		subtype:  laag(".//lithologischebeschrijving/laag", beschrijving()),
	}.build()

	GecodeerdeLithologie = interpretatie{
		typename: "interpretaties:gecodeerde_lithologie",
		subtype:  laag(".//gecodeerdelithologie/laag", grondsoortCodering()...),
	}.build()

	GeotechnischeCodering = interpretatie{
		typename: "interpretaties:geotechnische_coderingen",
		subtype:  laag(".//geotechnischecodering/laag", grondsoortCodering()...),
	}.build()

	QuartairStratigrafie = interpretatie{
		typename: "interpretaties:quartaire_stratigrafie",
		subtype:  laag(".//quartairstratigrafie/laag", stratigrafischeLeden()...),
	}.build()

	InformeleHydrogeologischeStratigrafie = interpretatie{
		typename: "interpretaties:informele_hydrogeologische_stratigrafie",
		subtype:  laag(".//informelehydrogeologischestratigrafie/laag", beschrijving()),
	}.build()
)
